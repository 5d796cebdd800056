// Package bridge wires the daemon session, the source watcher and the dev
// server together around a single event loop that owns the aggregator.
package bridge

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vburojevic/dunehmr/internal/devserver"
	"github.com/vburojevic/dunehmr/internal/diagnostic"
	"github.com/vburojevic/dunehmr/internal/domain"
	"github.com/vburojevic/dunehmr/internal/hmr"
	"github.com/vburojevic/dunehmr/internal/metrics"
	"github.com/vburojevic/dunehmr/internal/output"
	"github.com/vburojevic/dunehmr/internal/rpc"
	"github.com/vburojevic/dunehmr/internal/watcher"
)

const eventBuffer = 256

// Options configures a Bridge
type Options struct {
	RunID          string // generated when empty
	Socket         string
	Root           string
	SrcDir         string
	Extensions     []string
	Listen         string // empty disables the HTTP server
	Watch          bool   // watch SrcDir for edits
	Plugin         string
	Client         rpc.ClientInfo
	ReconnectDelay time.Duration

	Fs      afero.Fs
	Sink    output.Sink
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	Clock   clock.Clock

	// OnChange is called from the event loop after every handled event
	OnChange func(Snapshot)
}

// Snapshot is the bridge state shown by /status and the terminal UI
type Snapshot struct {
	RunID        string          `json:"run_id"`
	State        string          `json:"state"`
	Progress     domain.Progress `json:"progress"`
	Stats        hmr.Stats       `json:"stats"`
	CurrentError *domain.Report  `json:"current_error,omitempty"`
	Clients      int             `json:"clients"`
	Last         string          `json:"last_event,omitempty"`
}

// Bridge owns every long-running component of a watch session
type Bridge struct {
	opts  Options
	log   *zap.Logger
	runID string

	graph      *devserver.Graph
	hub        *devserver.Hub
	agg        *hmr.Aggregator
	translator *diagnostic.Translator
	session    *rpc.Session

	events  chan event
	stopped chan struct{}

	mu       sync.Mutex
	progress domain.Progress
	last     string
}

// New builds a bridge; nothing runs until Run
func New(opts Options) *Bridge {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Plugin == "" {
		opts.Plugin = "dunehmr"
	}
	if opts.SrcDir == "" {
		opts.SrcDir = opts.Root
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = rpc.DefaultReconnectDelay
	}
	if opts.RunID == "" {
		opts.RunID = uuid.New().String()
	}

	b := &Bridge{
		opts:    opts,
		log:     opts.Logger,
		runID:   opts.RunID,
		events:  make(chan event, eventBuffer),
		stopped: make(chan struct{}),
	}
	b.graph = devserver.NewGraph(opts.Root, opts.SrcDir, opts.Extensions)
	b.hub = devserver.NewHub(opts.Logger.Named("hub"), opts.Metrics, opts.Clock)
	b.agg = hmr.NewAggregator(b.graph, reportSink{b})
	b.translator = diagnostic.NewTranslator(opts.Fs, opts.Logger.Named("diagnostic"))

	b.session = rpc.New(b, rpc.Options{
		SocketPath:     opts.Socket,
		ReconnectDelay: opts.ReconnectDelay,
		Client:         opts.Client,
		Clock:          opts.Clock,
		Logger:         opts.Logger.Named("rpc"),
		Metrics:        opts.Metrics,
	})
	return b
}

// RunID identifies this process in emitted events
func (b *Bridge) RunID() string { return b.runID }

// Hub exposes the websocket hub
func (b *Bridge) Hub() *devserver.Hub { return b.hub }

// Aggregator exposes the decision state
func (b *Bridge) Aggregator() *hmr.Aggregator { return b.agg }

// Session exposes the daemon session
func (b *Bridge) Session() *rpc.Session { return b.session }

// Run starts every component and blocks until ctx is done or one of them
// fails
func (b *Bridge) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if b.opts.Sink != nil {
		if err := b.opts.Sink.Ready(domain.NewReady(b.runID, b.opts.Socket, b.opts.Root, b.opts.Listen)); err != nil {
			b.log.Warn("ready event not written", zap.Error(err))
		}
	}

	g.Go(func() error {
		b.loop(ctx)
		return nil
	})

	g.Go(func() error {
		return b.runSession(ctx)
	})

	if b.opts.Watch {
		w := watcher.New(watcher.Options{
			Root:   b.opts.SrcDir,
			Match:  b.graph.Tracks,
			Logger: b.log.Named("watcher"),
		}, b.FileChanged)
		g.Go(func() error {
			return w.Run(ctx)
		})
	}

	if b.opts.Listen != "" {
		srv := devserver.NewServer(b.opts.Listen, b.hub, b.opts.Metrics, func() any {
			return b.Snapshot()
		}, b.log.Named("server"))
		g.Go(func() error {
			return srv.Run(ctx)
		})
	} else {
		g.Go(func() error {
			<-ctx.Done()
			b.hub.Close()
			return nil
		})
	}

	return g.Wait()
}

// runSession keeps a session alive across daemon restarts. Connection
// failures other than a missing socket end the run.
func (b *Bridge) runSession(ctx context.Context) error {
	for {
		err := b.session.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if !errors.Is(err, rpc.ErrDisconnected) {
			return err
		}

		b.enqueue(rpcErrorEvent{err: err})
		select {
		case <-ctx.Done():
			return nil
		case <-b.opts.Clock.After(b.opts.ReconnectDelay):
		}
	}
}

// FileChanged records a source edit; safe from any goroutine
func (b *Bridge) FileChanged(path string) {
	b.enqueue(fileChangedEvent{path: path})
}

func (b *Bridge) enqueue(ev event) {
	select {
	case b.events <- ev:
	case <-b.stopped:
	}
}

// Snapshot returns the current state; safe from any goroutine
func (b *Bridge) Snapshot() Snapshot {
	b.mu.Lock()
	progress, last := b.progress, b.last
	b.mu.Unlock()

	return Snapshot{
		RunID:        b.runID,
		State:        b.session.State().String(),
		Progress:     progress,
		Stats:        b.agg.Stats(),
		CurrentError: b.agg.CurrentError(),
		Clients:      b.hub.Clients(),
		Last:         last,
	}
}

func (b *Bridge) setLast(s string) {
	b.mu.Lock()
	b.last = s
	b.mu.Unlock()
}

// rpc.Handler: every callback is queued for the loop

func (b *Bridge) OnSuccess()                             { b.enqueue(successEvent{}) }
func (b *Bridge) OnProgress(p domain.Progress)           { b.enqueue(progressEvent{p: p}) }
func (b *Bridge) OnDiagnosticAdd(d domain.Diagnostic)    { b.enqueue(diagnosticEvent{d: d, add: true}) }
func (b *Bridge) OnDiagnosticRemove(d domain.Diagnostic) { b.enqueue(diagnosticEvent{d: d}) }
func (b *Bridge) OnRPCError(err error)                   { b.enqueue(rpcErrorEvent{err: err}) }

// reportSink receives surfaced diagnostics from the aggregator, inside the loop
type reportSink struct {
	b *Bridge
}

// Error pushes the overlay and logs the report
func (s reportSink) Error(r domain.Report) {
	s.b.hub.PushError(diagnostic.Overlay(r, s.b.opts.Plugin))
	s.b.emit(func(o output.Sink) error { return o.Diagnostic(domain.NewDiagnosticEvent("add", r)) })
}

// Warning only logs
func (s reportSink) Warning(r domain.Report) {
	s.b.emit(func(o output.Sink) error { return o.Diagnostic(domain.NewDiagnosticEvent("add", r)) })
}

func (b *Bridge) emit(fn func(output.Sink) error) {
	if b.opts.Sink == nil {
		return
	}
	if err := fn(b.opts.Sink); err != nil {
		b.log.Warn("output write failed", zap.Error(err))
	}
}
