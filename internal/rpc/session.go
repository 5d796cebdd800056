// Package rpc is the client side of the dune build daemon's RPC socket: the
// initialize/version-menu handshake followed by two long-poll loops, one for
// build progress and one for diagnostics.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/vburojevic/dunehmr/internal/domain"
	"github.com/vburojevic/dunehmr/internal/metrics"
	"github.com/vburojevic/dunehmr/internal/sexp"
)

// DefaultReconnectDelay is the wait between attempts while the socket is missing
const DefaultReconnectDelay = 200 * time.Millisecond

// DefaultTruncationTimeout is how long a partially received message may wait
// for the rest of its bytes before it is reported as truncated
const DefaultTruncationTimeout = 250 * time.Millisecond

// ErrDisconnected is returned by Run when the daemon closes the connection
var ErrDisconnected = errors.New("rpc: daemon closed the connection")

// State is the connection lifecycle state
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateHandshaking
	StateNegotiated
	StatePolling
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateHandshaking:
		return "handshaking"
	case StateNegotiated:
		return "negotiated"
	case StatePolling:
		return "polling"
	default:
		return "unknown"
	}
}

// Options configures a Session
type Options struct {
	// SocketPath is the daemon's unix socket, e.g. _build/.rpc/dune
	SocketPath string

	// ReconnectDelay is the fixed retry interval on ENOENT. Default: 200ms
	ReconnectDelay time.Duration

	// TruncationTimeout bounds the wait for the rest of a started message.
	// Default: 250ms
	TruncationTimeout time.Duration

	Client  ClientInfo
	Clock   clock.Clock
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// pollState tracks one channel's cursor and request sequence
type pollState struct {
	cursor      string
	seq         int
	outstanding bool
}

// Session owns the single socket to the daemon
type Session struct {
	opts    Options
	handler Handler
	log     *zap.Logger
	clock   clock.Clock

	state    atomic.Int32
	attempts atomic.Int64

	mu   sync.Mutex
	conn net.Conn

	// touched only by the read goroutine
	polls map[Channel]*pollState
}

// New creates a Session that reports to handler
func New(handler Handler, opts Options) *Session {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.TruncationTimeout <= 0 {
		opts.TruncationTimeout = DefaultTruncationTimeout
	}
	if opts.Client.Name == "" {
		opts.Client = DefaultClientInfo()
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if handler == nil {
		handler = Callbacks{}
	}
	return &Session{
		opts:    opts,
		handler: handler,
		log:     opts.Logger.With(zap.String("socket", opts.SocketPath)),
		clock:   opts.Clock,
	}
}

// State returns the current lifecycle state
func (s *Session) State() State {
	return State(s.state.Load())
}

// Attempts returns how many times a connection has been tried
func (s *Session) Attempts() int64 {
	return s.attempts.Load()
}

func (s *Session) setState(st State) {
	prev := State(s.state.Swap(int32(st)))
	if prev != st {
		s.log.Debug("rpc state", zap.Stringer("from", prev), zap.Stringer("to", st))
	}
}

// Run connects and serves the socket until ctx is done, the daemon hangs
// up, or a non-retryable connection error occurs. A cancelled context is not
// an error.
func (s *Session) Run(ctx context.Context) error {
	defer s.setState(StateDisconnected)

	for {
		s.setState(StateConnecting)
		s.attempts.Add(1)

		var d net.Dialer
		conn, err := d.DialContext(ctx, "unix", s.opts.SocketPath)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, syscall.ENOENT) {
				s.log.Debug("daemon socket not ready, retrying", zap.Duration("delay", s.opts.ReconnectDelay))
				s.opts.Metrics.Reconnect()
				select {
				case <-ctx.Done():
					return nil
				case <-s.clock.After(s.opts.ReconnectDelay):
				}
				continue
			}
			err = fmt.Errorf("connect %s: %w", s.opts.SocketPath, err)
			s.handler.OnRPCError(err)
			return err
		}

		return s.serve(ctx, conn)
	}
}

func (s *Session) serve(ctx context.Context, conn net.Conn) error {
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer func() {
		stop()
		conn.Close()
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
	}()

	s.polls = make(map[Channel]*pollState, len(Channels))
	for _, c := range Channels {
		s.polls[c] = &pollState{cursor: c.InitialCursor()}
	}

	s.log.Info("RPC socket connected")
	s.setState(StateHandshaking)
	s.send(InitializeRequest(s.opts.Client))

	in := &truncationReader{conn: conn, timeout: s.opts.TruncationTimeout}
	dec := sexp.NewDecoder(in)
	in.dec = dec

	// one report per corrupt stretch of input, however many resyncs it takes
	faulted := false
	fault := func(err error) {
		s.opts.Metrics.DecodeFault()
		if !faulted {
			s.handler.OnRPCError(fmt.Errorf("decode: %w", err))
		}
		faulted = true
	}

	for {
		v, err := dec.Decode()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var syn *sexp.SyntaxError
			switch {
			case errors.As(err, &syn):
				skipped := dec.Resync()
				s.log.Warn("skipping malformed input", zap.Error(err), zap.Int("skipped_bytes", skipped))
				fault(err)
				continue
			case errors.Is(err, os.ErrDeadlineExceeded):
				if !dec.Open() {
					continue
				}
				trunc := &sexp.SyntaxError{Offset: dec.Offset(), Msg: "truncated message"}
				dropped := dec.Discard()
				s.log.Warn("discarding truncated message", zap.Error(trunc), zap.Int("dropped_bytes", dropped))
				fault(trunc)
				continue
			case errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed):
				s.log.Info("RPC connection disconnected")
				return ErrDisconnected
			}
			err = fmt.Errorf("read: %w", err)
			s.handler.OnRPCError(err)
			return err
		}
		faulted = false
		s.dispatch(v)
	}
}

// truncationReader puts a deadline on reads made while a message is only
// partly received, so a length prefix longer than the bytes sent cannot
// stall the session
type truncationReader struct {
	conn    net.Conn
	dec     *sexp.Decoder
	timeout time.Duration
}

func (r *truncationReader) Read(p []byte) (int, error) {
	var deadline time.Time
	if r.dec.Open() {
		deadline = time.Now().Add(r.timeout)
	}
	if err := r.conn.SetReadDeadline(deadline); err != nil {
		return 0, err
	}
	return r.conn.Read(p)
}

// send writes a request; delivery is fire-and-forget
func (s *Session) send(req Request) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return
	}
	if _, err := conn.Write(req.Encode()); err != nil {
		s.log.Warn("write failed", zap.String("method", req.Method), zap.Error(err))
	}
}

func (s *Session) dispatch(v sexp.Value) {
	msg, ok := ParseMessage(v)
	if !ok {
		s.unhandled(v)
		return
	}

	switch id := msg.ID.(type) {
	case SimpleID:
		s.opts.Metrics.RPCMessage("handshake")
		s.handleHandshake(id, msg, v)
	case PollID:
		s.opts.Metrics.RPCMessage("poll")
		s.handlePoll(id, msg, v)
	}
}

func (s *Session) handleHandshake(id SimpleID, msg Message, raw sexp.Value) {
	switch id.Name {
	case idInitialize:
		if !msg.OK() {
			s.handler.OnRPCError(responseError(MethodInitialize, msg))
			return
		}
		s.send(VersionMenuRequest())

	case idVersionMenu:
		if !msg.OK() {
			s.handler.OnRPCError(responseError(MethodVersionMenu, msg))
			return
		}
		s.setState(StateNegotiated)
		for _, c := range Channels {
			s.poll(c)
		}
		s.setState(StatePolling)

	default:
		s.unhandled(raw)
	}
}

// poll issues the next request on a channel with its current cursor
func (s *Session) poll(c Channel) {
	st := s.polls[c]
	st.outstanding = true
	s.send(PollRequest(c, st.cursor, st.seq))
}

// channelFor resolves a response to the channel whose poll it answers. The
// tag carries the channel; the cursor is free to move.
func (s *Session) channelFor(id PollID) (Channel, bool) {
	c, ok := ChannelForTag(id.Tag)
	if !ok || !s.polls[c].outstanding {
		return 0, false
	}
	return c, true
}

func (s *Session) handlePoll(id PollID, msg Message, raw sexp.Value) {
	c, ok := s.channelFor(id)
	if !ok {
		s.unhandled(raw)
		return
	}

	st := s.polls[c]
	if id.Seq != st.seq {
		s.log.Debug("poll response sequence mismatch",
			zap.Stringer("channel", c), zap.Int("want", st.seq), zap.Int("got", id.Seq))
	}
	st.outstanding = false
	st.cursor = id.Cursor
	st.seq++

	if !msg.OK() {
		s.handler.OnRPCError(responseError(c.Method(), msg))
		s.poll(c)
		return
	}

	payload, _ := msg.Payload()
	switch c {
	case ChannelProgress:
		if p, ok := DecodeProgress(payload); ok {
			s.handler.OnProgress(p)
			if p.State == domain.ProgressSuccess {
				s.handler.OnSuccess()
			}
		}
	case ChannelDiagnostic:
		for _, ev := range DecodeDiagnosticEvents(payload) {
			switch ev.Action {
			case ActionAdd:
				s.handler.OnDiagnosticAdd(ev.Diagnostic)
			case ActionRemove:
				s.handler.OnDiagnosticRemove(ev.Diagnostic)
			}
		}
	}

	s.poll(c)
}

func (s *Session) unhandled(v sexp.Value) {
	s.opts.Metrics.RPCMessage("unhandled")
	s.log.Info("Unhandled payload", zap.Any("payload", sexp.ToJSON(v)))
}

func responseError(method string, msg Message) error {
	if msg.Error != nil {
		return fmt.Errorf("%s: daemon error %s", method, sexp.Encode(msg.Error))
	}
	return fmt.Errorf("%s: unexpected result %s", method, sexp.Encode(msg.Result))
}
