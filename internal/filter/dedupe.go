package filter

import (
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/vburojevic/dunehmr/internal/domain"
)

// Dedupe collapses repeated identical diagnostics. The daemon re-reports
// unchanged warnings after every build.
type Dedupe struct {
	mu      sync.Mutex
	window  time.Duration // 0 = consecutive only
	clock   clock.Clock
	seen    map[string]*dedupeEntry
	lastKey string
}

type dedupeEntry struct {
	count     int
	firstSeen time.Time
	lastSeen  time.Time
}

// NewDedupe creates a deduplication filter.
// window=0 only collapses consecutive identical reports;
// window>0 collapses identical reports seen within the window.
func NewDedupe(window time.Duration, clk clock.Clock) *Dedupe {
	if clk == nil {
		clk = clock.New()
	}
	return &Dedupe{
		window: window,
		clock:  clk,
		seen:   make(map[string]*dedupeEntry),
	}
}

// DedupeResult holds the result of a dedupe check
type DedupeResult struct {
	ShouldEmit bool      // Whether this report should be emitted
	Count      int       // Number of occurrences (1 = first)
	FirstSeen  time.Time // First occurrence
	LastSeen   time.Time // Latest occurrence
}

// reportKey ignores the daemon id, which changes every time a diagnostic is re-sent
func reportKey(r domain.Report) string {
	return fmt.Sprintf("%s|%s:%d:%d|%s", r.Severity, r.File, r.Line, r.Column, r.Message)
}

// Check determines if a report should be emitted or suppressed
func (f *Dedupe) Check(r domain.Report) DedupeResult {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := reportKey(r)
	now := f.clock.Now()

	if f.window > 0 {
		f.cleanOldEntries(now)
	}

	if existing, ok := f.seen[key]; ok && (f.window > 0 || f.lastKey == key) {
		existing.count++
		existing.lastSeen = now
		return DedupeResult{
			ShouldEmit: false,
			Count:      existing.count,
			FirstSeen:  existing.firstSeen,
			LastSeen:   existing.lastSeen,
		}
	}

	f.seen[key] = &dedupeEntry{count: 1, firstSeen: now, lastSeen: now}
	f.lastKey = key
	return DedupeResult{ShouldEmit: true, Count: 1, FirstSeen: now, LastSeen: now}
}

// Suppressed returns how many times each repeated report was dropped
func (f *Dedupe) Suppressed() map[string]int {
	f.mu.Lock()
	defer f.mu.Unlock()

	result := make(map[string]int)
	for key, entry := range f.seen {
		if entry.count > 1 {
			result[key] = entry.count - 1
		}
	}
	return result
}

// Reset clears the deduplication state
func (f *Dedupe) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = make(map[string]*dedupeEntry)
	f.lastKey = ""
}

// cleanOldEntries removes entries outside the time window
func (f *Dedupe) cleanOldEntries(now time.Time) {
	cutoff := now.Add(-f.window)
	for key, entry := range f.seen {
		if entry.lastSeen.Before(cutoff) {
			delete(f.seen, key)
		}
	}
}
