package bridge

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/vburojevic/dunehmr/internal/domain"
	"github.com/vburojevic/dunehmr/internal/hmr"
	"github.com/vburojevic/dunehmr/internal/output"
)

// event is anything the loop reacts to
type event interface {
	isEvent()
}

type fileChangedEvent struct{ path string }
type successEvent struct{}
type progressEvent struct{ p domain.Progress }
type rpcErrorEvent struct{ err error }
type diagnosticEvent struct {
	d   domain.Diagnostic
	add bool
}

func (fileChangedEvent) isEvent() {}
func (successEvent) isEvent()     {}
func (progressEvent) isEvent()    {}
func (rpcErrorEvent) isEvent()    {}
func (diagnosticEvent) isEvent()  {}

// loop is the only goroutine that mutates the aggregator or pushes to clients
func (b *Bridge) loop(ctx context.Context) {
	defer close(b.stopped)
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-b.events:
			b.handle(ev)
			if b.opts.OnChange != nil {
				b.opts.OnChange(b.Snapshot())
			}
		}
	}
}

func (b *Bridge) handle(ev event) {
	switch ev := ev.(type) {
	case fileChangedEvent:
		b.agg.OnSourceFileChanged(ev.path)
		b.setLast("changed " + ev.path)

	case progressEvent:
		b.mu.Lock()
		b.progress = ev.p
		b.mu.Unlock()
		switch ev.p.State {
		case domain.ProgressFailed:
			b.opts.Metrics.Build("failed")
			b.setLast("build failed")
		case domain.ProgressInterrupted:
			b.opts.Metrics.Build("interrupted")
		}

	case successEvent:
		b.applyDecision(b.agg.OnBuildSuccess())

	case diagnosticEvent:
		b.handleDiagnostic(ev)

	case rpcErrorEvent:
		b.log.Warn("rpc error", zap.Error(ev.err))
		b.emit(func(s output.Sink) error { return s.RPCError(domain.NewRPCError(ev.err, false)) })
		b.setLast("rpc error")
	}
}

func (b *Bridge) handleDiagnostic(ev diagnosticEvent) {
	severity := string(ev.d.Severity)

	if ev.add {
		b.opts.Metrics.Diagnostic(severity, "add")
		report := b.translator.Translate(ev.d)
		b.agg.OnDiagnosticAdd(report)
		b.setLast(fmt.Sprintf("%s %d", severity, ev.d.ID))
		return
	}

	b.opts.Metrics.Diagnostic(severity, "remove")
	if b.agg.OnDiagnosticRemove(ev.d.ID) {
		b.log.Debug("current error removed", zap.Int("id", ev.d.ID))
	}
	removed := domain.Report{ID: ev.d.ID, Message: ev.d.Message, Severity: ev.d.Severity}
	b.emit(func(s output.Sink) error { return s.Diagnostic(domain.NewDiagnosticEvent("remove", removed)) })
}

func (b *Bridge) applyDecision(d hmr.Decision) {
	b.opts.Metrics.Build("success")
	b.emit(func(s output.Sink) error {
		return s.BuildSuccess(domain.NewBuildSuccess(d.Build, len(d.Files), d.ClearedError))
	})
	b.setLast(fmt.Sprintf("build #%d ok", d.Build))

	switch d.Kind {
	case hmr.DecisionHotUpdate:
		b.hub.ReloadModules(d.Modules)
		b.opts.Metrics.HotUpdate()
		b.emit(func(s output.Sink) error { return s.HotUpdate(domain.NewHotUpdate(d.Files, d.Modules)) })
		b.setLast(fmt.Sprintf("hot update (%d modules)", len(d.Modules)))

	case hmr.DecisionFullReload:
		b.hub.FullReload()
		b.opts.Metrics.FullReload()
		b.emit(func(s output.Sink) error { return s.FullReload(domain.NewFullReload("error cleared")) })
		b.setLast("full reload")
	}
}
