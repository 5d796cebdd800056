// Package hmr decides what live clients should do after each build: apply a
// hot update, reload the page, or keep showing the current error.
package hmr

import (
	"slices"
	"sync"

	"github.com/samber/lo"

	"github.com/vburojevic/dunehmr/internal/domain"
)

// ModuleGraph resolves a source file to the module URLs that serve it.
// Untracked files return nil.
type ModuleGraph interface {
	ModulesByFile(path string) []string
}

// Sink receives diagnostics as they are surfaced
type Sink interface {
	// Error is called for every blocking error; it should reach the overlay
	Error(r domain.Report)
	// Warning is log-only and never affects reload decisions
	Warning(r domain.Report)
}

// DecisionKind is what clients are told after a successful build
type DecisionKind int

const (
	DecisionNone DecisionKind = iota
	DecisionHotUpdate
	DecisionFullReload
)

func (k DecisionKind) String() string {
	switch k {
	case DecisionHotUpdate:
		return "hot_update"
	case DecisionFullReload:
		return "full_reload"
	default:
		return "none"
	}
}

// Decision is the outcome of one build success
type Decision struct {
	Kind         DecisionKind
	Build        int
	Files        []string // drained source files, sorted
	Modules      []string // module URLs to hot swap, sorted
	ClearedError bool     // a blocking error was on screen before this build
}

// Stats counts what the aggregator has seen since start
type Stats struct {
	Builds      int `json:"builds"`
	Errors      int `json:"errors"`
	Warnings    int `json:"warnings"`
	HotUpdates  int `json:"hot_updates"`
	FullReloads int `json:"full_reloads"`
	Pending     int `json:"pending_files"`
}

// Aggregator tracks the current blocking error and the source files changed
// since the last successful build
type Aggregator struct {
	mu    sync.Mutex
	graph ModuleGraph
	sink  Sink

	currentError *domain.Report
	// errorShown stays set until a success, even if the error is removed,
	// so the overlay still gets dismissed
	errorShown bool
	changed    map[string]struct{}
	stats      Stats
}

// NewAggregator creates an aggregator. sink may be nil.
func NewAggregator(graph ModuleGraph, sink Sink) *Aggregator {
	return &Aggregator{
		graph:   graph,
		sink:    sink,
		changed: make(map[string]struct{}),
	}
}

// OnSourceFileChanged records an edited file. No update is pushed for it
// until a build succeeds.
func (a *Aggregator) OnSourceFileChanged(path string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.changed[path] = struct{}{}
}

// Pending reports whether path is waiting for a successful build
func (a *Aggregator) Pending(path string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.changed[path]
	return ok
}

// OnDiagnosticAdd surfaces a translated diagnostic. Errors replace any
// current error; warnings only reach the sink.
func (a *Aggregator) OnDiagnosticAdd(r domain.Report) {
	a.mu.Lock()
	if r.Severity == domain.SeverityWarning {
		a.stats.Warnings++
		a.mu.Unlock()
		if a.sink != nil {
			a.sink.Warning(r)
		}
		return
	}

	a.stats.Errors++
	a.currentError = &r
	a.errorShown = true
	a.mu.Unlock()

	if a.sink != nil {
		a.sink.Error(r)
	}
}

// OnDiagnosticRemove retracts diagnostic id. It returns true when that id
// was the current error.
func (a *Aggregator) OnDiagnosticRemove(id int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.currentError == nil || a.currentError.ID != id {
		return false
	}
	a.currentError = nil
	return true
}

// OnBuildSuccess drains the changed files and clears the current error.
// With nothing to hot swap, a page reload is still requested if an error
// was on screen.
func (a *Aggregator) OnBuildSuccess() Decision {
	a.mu.Lock()
	defer a.mu.Unlock()

	files := lo.Keys(a.changed)
	slices.Sort(files)
	a.changed = make(map[string]struct{})

	cleared := a.errorShown
	a.currentError = nil
	a.errorShown = false
	a.stats.Builds++

	d := Decision{
		Build:        a.stats.Builds,
		Files:        files,
		ClearedError: cleared,
	}

	if a.graph != nil {
		d.Modules = lo.Uniq(lo.FlatMap(files, func(f string, _ int) []string {
			return a.graph.ModulesByFile(f)
		}))
		slices.Sort(d.Modules)
	}

	switch {
	case len(d.Modules) > 0:
		d.Kind = DecisionHotUpdate
		a.stats.HotUpdates++
	case cleared:
		d.Kind = DecisionFullReload
		a.stats.FullReloads++
	default:
		d.Kind = DecisionNone
	}
	return d
}

// CurrentError returns the error on screen, or nil
func (a *Aggregator) CurrentError() *domain.Report {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.currentError == nil {
		return nil
	}
	r := *a.currentError
	return &r
}

// Stats returns a snapshot of the counters
func (a *Aggregator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.stats
	s.Pending = len(a.changed)
	return s
}
