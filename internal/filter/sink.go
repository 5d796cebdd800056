// Package filter narrows and collapses the diagnostics a watch run reports.
package filter

import (
	"sync"

	"github.com/vburojevic/dunehmr/internal/domain"
	"github.com/vburojevic/dunehmr/internal/output"
)

// Sink applies where clauses and warning deduplication to diagnostic events.
// Every other event passes through.
type Sink struct {
	output.Sink
	where  *WhereFilter
	dedupe *Dedupe

	mu      sync.Mutex
	emitted map[int]bool
}

// NewSink wraps next; it returns next unchanged when there is nothing to apply
func NewSink(next output.Sink, where *WhereFilter, dedupe *Dedupe) output.Sink {
	if where == nil && dedupe == nil {
		return next
	}
	return &Sink{Sink: next, where: where, dedupe: dedupe, emitted: make(map[int]bool)}
}

// Diagnostic drops filtered adds and the removals that belong to them
func (s *Sink) Diagnostic(e *domain.DiagnosticEvent) error {
	s.mu.Lock()
	if e.Action == "remove" {
		shown := s.emitted[e.Report.ID]
		delete(s.emitted, e.Report.ID)
		s.mu.Unlock()
		if !shown {
			return nil
		}
		return s.Sink.Diagnostic(e)
	}

	r := e.Report
	keep := s.where.Match(r)
	if keep && s.dedupe != nil && r.Severity == domain.SeverityWarning {
		keep = s.dedupe.Check(r).ShouldEmit
	}
	if keep {
		s.emitted[r.ID] = true
	}
	s.mu.Unlock()

	if !keep {
		return nil
	}
	return s.Sink.Diagnostic(e)
}
