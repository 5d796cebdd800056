package rpc

import (
	"strconv"
	"strings"

	"github.com/vburojevic/dunehmr/internal/sexp"
)

// Method names understood by the daemon
const (
	MethodInitialize     = "initialize"
	MethodVersionMenu    = "version_menu"
	MethodPollProgress   = "poll/progress"
	MethodPollDiagnostic = "poll/diagnostic"
)

// Request ids of the handshake
const (
	idInitialize  = "initialize"
	idVersionMenu = "version menu"
)

// CorrelationID identifies a request and the response echoing it. It is
// either a SimpleID or a PollID.
type CorrelationID interface {
	Value() sexp.Value
	isCorrelationID()
}

// SimpleID is a one-atom id such as (initialize)
type SimpleID struct {
	Name string
}

// PollID is ((poll (<tag> <cursor>)) (i <seq>)). The tag names the channel
// and stays fixed; the cursor is whatever the daemon last handed back.
type PollID struct {
	Tag    string
	Cursor string
	Seq    int
}

func (SimpleID) isCorrelationID() {}
func (PollID) isCorrelationID()   {}

// Value returns the wire form of the id
func (id SimpleID) Value() sexp.Value {
	return sexp.A(id.Name)
}

// Value returns the wire form of the id
func (id PollID) Value() sexp.Value {
	return sexp.NewMap(
		sexp.P("poll", sexp.A(id.Tag, id.Cursor)),
		sexp.P("i", sexp.Atom(strconv.Itoa(id.Seq))),
	)
}

// ParseCorrelationID matches the id shapes the daemon echoes back
func ParseCorrelationID(v sexp.Value) (CorrelationID, bool) {
	switch t := v.(type) {
	case sexp.List:
		if len(t) != 1 {
			return nil, false
		}
		name, ok := sexp.AtomOf(t[0])
		if !ok {
			return nil, false
		}
		return SimpleID{Name: name}, true

	case *sexp.Map:
		poll, ok := t.Get("poll")
		if !ok {
			return nil, false
		}
		key, ok := poll.(sexp.List)
		if !ok || len(key) != 2 {
			return nil, false
		}
		tag, ok1 := sexp.AtomOf(key[0])
		cursor, ok2 := sexp.AtomOf(key[1])
		if !ok1 || !ok2 {
			return nil, false
		}
		id := PollID{Tag: tag, Cursor: cursor}
		if i, ok := sexp.FieldAtom(t, "i"); ok {
			n, err := strconv.Atoi(i)
			if err != nil {
				return nil, false
			}
			id.Seq = n
		}
		return id, true
	}
	return nil, false
}

// Channel is one of the two long-poll streams multiplexed over the socket
type Channel int

const (
	ChannelProgress Channel = iota
	ChannelDiagnostic
)

// Channels lists every poll channel in issue order
var Channels = []Channel{ChannelProgress, ChannelDiagnostic}

func (c Channel) String() string {
	switch c {
	case ChannelProgress:
		return "progress"
	case ChannelDiagnostic:
		return "diagnostic"
	default:
		return "unknown"
	}
}

// ChannelForTag resolves the channel named by a poll id's tag
func ChannelForTag(tag string) (Channel, bool) {
	for _, c := range Channels {
		if c.String() == tag {
			return c, true
		}
	}
	return 0, false
}

// Method returns the poll method for the channel
func (c Channel) Method() string {
	if c == ChannelDiagnostic {
		return MethodPollDiagnostic
	}
	return MethodPollProgress
}

// InitialCursor is the cursor a fresh connection starts polling from
func (c Channel) InitialCursor() string {
	if c == ChannelDiagnostic {
		return "1"
	}
	return "0"
}

// Request is an outgoing RPC call
type Request struct {
	ID     CorrelationID
	Method string
	Params sexp.Value
}

// Encode returns the wire form ((id ..) (method ..) (params ..))
func (r Request) Encode() []byte {
	return sexp.Encode(sexp.NewMap(
		sexp.P("id", r.ID.Value()),
		sexp.P("method", sexp.Atom(r.Method)),
		sexp.P("params", r.Params),
	))
}

// ClientInfo is advertised in the initialize request
type ClientInfo struct {
	Name            string
	Version         string
	DuneVersion     string // dotted, e.g. "3.15"
	ProtocolVersion string
}

// DefaultClientInfo returns the identity sent when none is configured
func DefaultClientInfo() ClientInfo {
	return ClientInfo{
		Name:            "dunehmr",
		Version:         "3",
		DuneVersion:     "3.15",
		ProtocolVersion: "0",
	}
}

// InitializeRequest builds the handshake request
func InitializeRequest(info ClientInfo) Request {
	return Request{
		ID:     SimpleID{Name: idInitialize},
		Method: MethodInitialize,
		Params: sexp.NewMap(
			sexp.P("dune_version", sexp.A(strings.Split(info.DuneVersion, ".")...)),
			sexp.P("id", sexp.A(info.Name, info.Version)),
			sexp.P("protocol_version", sexp.Atom(info.ProtocolVersion)),
		),
	}
}

// Supported poll-channel protocol versions
var (
	progressVersions   = []string{"1", "2"}
	diagnosticVersions = []string{"1", "2"}
)

// VersionMenuRequest advertises the poll protocol versions this client speaks
func VersionMenuRequest() Request {
	return Request{
		ID:     SimpleID{Name: idVersionMenu},
		Method: MethodVersionMenu,
		Params: sexp.NewMap(
			sexp.P(MethodPollProgress, sexp.A(progressVersions...)),
			sexp.P(MethodPollDiagnostic, sexp.A(diagnosticVersions...)),
		),
	}
}

// PollRequest asks for the next batch of events on a channel, from cursor
func PollRequest(c Channel, cursor string, seq int) Request {
	return Request{
		ID:     PollID{Tag: c.String(), Cursor: cursor, Seq: seq},
		Method: c.Method(),
		Params: sexp.A(c.String(), cursor),
	}
}

// Message is a decoded response
type Message struct {
	ID     CorrelationID
	Result sexp.Value
	Error  sexp.Value
}

// ParseMessage extracts a Message from a top-level value
func ParseMessage(v sexp.Value) (Message, bool) {
	m, ok := v.(*sexp.Map)
	if !ok {
		return Message{}, false
	}
	raw, ok := m.Get("id")
	if !ok {
		return Message{}, false
	}
	id, ok := ParseCorrelationID(raw)
	if !ok {
		return Message{}, false
	}
	msg := Message{ID: id}
	msg.Result, _ = m.Get("result")
	msg.Error, _ = m.Get("error")
	if msg.Result == nil && msg.Error == nil {
		return Message{}, false
	}
	return msg, true
}

// Status returns the first element of the result, "ok" on success
func (m Message) Status() string {
	s, ok := sexp.At(m.Result, 0)
	if !ok {
		return ""
	}
	a, _ := sexp.AtomOf(s)
	return a
}

// OK reports whether the response carries an ok result
func (m Message) OK() bool {
	return m.Error == nil && m.Status() == "ok"
}

// Payload returns the second element of the result
func (m Message) Payload() (sexp.Value, bool) {
	return sexp.At(m.Result, 1)
}
