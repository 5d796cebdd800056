package rpc

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vburojevic/dunehmr/internal/domain"
	"github.com/vburojevic/dunehmr/internal/sexp"
)

func TestInitializeRequestWireForm(t *testing.T) {
	req := InitializeRequest(ClientInfo{
		Name:            "vite-plugin-melange",
		Version:         "3",
		DuneVersion:     "3.15",
		ProtocolVersion: "0",
	})
	want := "((2:id(10:initialize))(6:method10:initialize)(6:params((12:dune_version(1:32:15))(2:id(19:vite-plugin-melange1:3))(16:protocol_version1:0))))"
	assert.Equal(t, want, string(req.Encode()))
}

func TestVersionMenuRequestWireForm(t *testing.T) {
	want := "((2:id(12:version menu))(6:method12:version_menu)(6:params((13:poll/progress(1:11:2))(15:poll/diagnostic(1:11:2)))))"
	assert.Equal(t, want, string(VersionMenuRequest().Encode()))
}

func TestPollRequestWireForm(t *testing.T) {
	tests := []struct {
		channel Channel
		cursor  string
		seq     int
		want    string
	}{
		{ChannelProgress, "0", 0, "((2:id((4:poll(8:progress1:0))(1:i1:0)))(6:method13:poll/progress)(6:params(8:progress1:0)))"},
		{ChannelDiagnostic, "1", 0, "((2:id((4:poll(10:diagnostic1:1))(1:i1:0)))(6:method15:poll/diagnostic)(6:params(10:diagnostic1:1)))"},
		{ChannelDiagnostic, "17", 12, "((2:id((4:poll(10:diagnostic2:17))(1:i2:12)))(6:method15:poll/diagnostic)(6:params(10:diagnostic2:17)))"},
	}
	for _, tt := range tests {
		t.Run(tt.channel.String()+"/"+strconv.Itoa(tt.seq), func(t *testing.T) {
			assert.Equal(t, tt.want, string(PollRequest(tt.channel, tt.cursor, tt.seq).Encode()))
		})
	}
}

func TestChannelDefaults(t *testing.T) {
	assert.Equal(t, "0", ChannelProgress.InitialCursor())
	assert.Equal(t, "1", ChannelDiagnostic.InitialCursor())
	assert.Equal(t, MethodPollProgress, ChannelProgress.Method())
	assert.Equal(t, MethodPollDiagnostic, ChannelDiagnostic.Method())
	assert.Equal(t, "unknown", Channel(7).String())

	c, ok := ChannelForTag("diagnostic")
	require.True(t, ok)
	assert.Equal(t, ChannelDiagnostic, c)
	_, ok = ChannelForTag("auto")
	assert.False(t, ok)
}

func TestParseCorrelationID(t *testing.T) {
	t.Run("simple", func(t *testing.T) {
		id, ok := ParseCorrelationID(sexp.A("version menu"))
		require.True(t, ok)
		assert.Equal(t, SimpleID{Name: "version menu"}, id)
	})

	t.Run("poll", func(t *testing.T) {
		id, ok := ParseCorrelationID(PollID{Tag: "auto", Cursor: "1", Seq: 4}.Value())
		require.True(t, ok)
		assert.Equal(t, PollID{Tag: "auto", Cursor: "1", Seq: 4}, id)
	})

	t.Run("poll without sequence", func(t *testing.T) {
		id, ok := ParseCorrelationID(sexp.NewMap(sexp.P("poll", sexp.A("auto", "0"))))
		require.True(t, ok)
		assert.Equal(t, PollID{Tag: "auto", Cursor: "0"}, id)
	})

	t.Run("rejects", func(t *testing.T) {
		for _, v := range []sexp.Value{
			sexp.Atom("initialize"),
			sexp.A("a", "b"),
			sexp.NewMap(sexp.P("other", sexp.A("x", "y"))),
			sexp.NewMap(sexp.P("poll", sexp.A("auto", "0")), sexp.P("i", sexp.Atom("x"))),
		} {
			_, ok := ParseCorrelationID(v)
			assert.False(t, ok, "%s", sexp.Encode(v))
		}
	})
}

func TestParseMessage(t *testing.T) {
	values, err := sexp.Decode([]byte("((2:id(10:initialize))(6:result(2:ok())))"))
	require.NoError(t, err)

	msg, ok := ParseMessage(values[0])
	require.True(t, ok)
	assert.Equal(t, SimpleID{Name: "initialize"}, msg.ID)
	assert.True(t, msg.OK())

	values, err = sexp.Decode([]byte("((2:id(10:initialize))(6:result(5:error1:x)))"))
	require.NoError(t, err)
	msg, ok = ParseMessage(values[0])
	require.True(t, ok)
	assert.False(t, msg.OK())
	assert.Equal(t, "error", msg.Status())

	_, ok = ParseMessage(sexp.A("x"))
	assert.False(t, ok)

	_, ok = ParseMessage(sexp.NewMap(sexp.P("id", sexp.A("initialize"))))
	assert.False(t, ok, "a message needs a result or an error")
}

func TestDecodeProgress(t *testing.T) {
	tests := []struct {
		name    string
		payload sexp.Value
		want    domain.Progress
		ok      bool
	}{
		{"none", sexp.Atom("None"), domain.Progress{}, false},
		{"success list", sexp.L(sexp.Atom("Some"), sexp.L(sexp.Atom("success"), sexp.NewMap())), domain.Progress{State: domain.ProgressSuccess}, true},
		{"success atom", sexp.L(sexp.Atom("Some"), sexp.Atom("success")), domain.Progress{State: domain.ProgressSuccess}, true},
		{"failed", sexp.L(sexp.Atom("Some"), sexp.Atom("failed")), domain.Progress{State: domain.ProgressFailed}, true},
		{"waiting", sexp.L(sexp.Atom("Some"), sexp.Atom("waiting")), domain.Progress{State: domain.ProgressWaiting}, true},
		{"in progress", sexp.L(sexp.Atom("Some"), sexp.L(sexp.Atom("in_progress"), sexp.NewMap(
			sexp.P("complete", sexp.Atom("3")),
			sexp.P("remaining", sexp.Atom("2")),
			sexp.P("failed", sexp.Atom("1")),
		))), domain.Progress{State: domain.ProgressInProgress, Complete: 3, Remaining: 2, Failed: 1}, true},
		{"unknown tag", sexp.L(sexp.Atom("Some"), sexp.Atom("restarting")), domain.Progress{State: domain.ProgressUnknown}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DecodeProgress(tt.payload)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestDecodeDiagnostic(t *testing.T) {
	raw := diagSexp(3, "/proj/src/truc.re", 1, 0, 11, 14, "error", "Unbound value asd\nHint: Did you mean asr?")

	// go through the wire to exercise the list->map coercion
	values, err := sexp.Decode(sexp.Encode(raw))
	require.NoError(t, err)

	d := DecodeDiagnostic(values[0])
	assert.Equal(t, 3, d.ID)
	assert.Equal(t, "/proj/src/truc.re", d.File)
	assert.Equal(t, "/proj", d.Directory)
	assert.Equal(t, domain.SeverityError, d.Severity)
	assert.Equal(t, "Unbound value asd\nHint: Did you mean asr?", d.Message)
	require.NotNil(t, d.Start)
	require.NotNil(t, d.End)
	assert.Equal(t, domain.Position{Line: 1, Column: 11, Offset: 11}, *d.Start)
	assert.Equal(t, domain.Position{Line: 1, Column: 14, Offset: 14}, *d.End)
}

func TestDecodeDiagnosticWithoutLoc(t *testing.T) {
	raw := sexp.NewMap(
		sexp.P("id", sexp.Atom("9")),
		sexp.P("message", sexp.L(sexp.Atom("Vbox"), sexp.L(sexp.Atom("0"), sexp.L(sexp.Atom("Box"), sexp.L(sexp.Atom("0"), sexp.A("Verbatim", "No rule found")))))),
		sexp.P("severity", sexp.Atom("warning")),
	)
	d := DecodeDiagnostic(raw)
	assert.Equal(t, 9, d.ID)
	assert.Empty(t, d.File)
	assert.Nil(t, d.Start)
	assert.Nil(t, d.End)
	assert.Equal(t, "No rule found", d.Message)
	assert.Equal(t, domain.SeverityWarning, d.Severity)
}

func TestDecodeDiagnosticEventsKeepsOrder(t *testing.T) {
	add := diagSexp(1, "/a.re", 1, 0, 0, 1, "error", "first")
	remove := diagSexp(1, "/a.re", 1, 0, 0, 1, "error", "first")
	add2 := diagSexp(2, "/b.re", 2, 4, 6, 7, "warning", "second")

	payload := sexp.L(sexp.Atom("Some"), sexp.NewMap(
		sexp.P("Add", add),
		sexp.P("Remove", remove),
		sexp.P("Add", add2),
	))
	values, err := sexp.Decode(sexp.Encode(payload))
	require.NoError(t, err)

	events := DecodeDiagnosticEvents(values[0])
	require.Len(t, events, 3)
	assert.Equal(t, ActionAdd, events[0].Action)
	assert.Equal(t, ActionRemove, events[1].Action)
	assert.Equal(t, ActionAdd, events[2].Action)
	assert.Equal(t, 2, events[2].Diagnostic.ID)
	assert.Equal(t, 2, events[2].Diagnostic.Start.Column)

	assert.Empty(t, DecodeDiagnosticEvents(sexp.Atom("None")))
}

// diagSexp builds a daemon diagnostic record with a single-line location.
func diagSexp(id int, file string, line, bol, cnum, endCnum int, severity, text string) sexp.Value {
	pos := func(c int) sexp.Value {
		return sexp.NewMap(
			sexp.P("pos_bol", sexp.Atom(strconv.Itoa(bol))),
			sexp.P("pos_cnum", sexp.Atom(strconv.Itoa(c))),
			sexp.P("pos_fname", sexp.Atom(file)),
			sexp.P("pos_lnum", sexp.Atom(strconv.Itoa(line))),
		)
	}
	return sexp.NewMap(
		sexp.P("directory", sexp.Atom("/proj")),
		sexp.P("id", sexp.Atom(strconv.Itoa(id))),
		sexp.P("loc", sexp.NewMap(sexp.P("start", pos(cnum)), sexp.P("stop", pos(endCnum)))),
		sexp.P("message", sexp.L(sexp.Atom("Vbox"), sexp.L(sexp.Atom("0"), sexp.L(sexp.Atom("Box"), sexp.L(sexp.Atom("0"), sexp.A("Verbatim", text)))))),
		sexp.P("promotion", sexp.NewMap()),
		sexp.P("related", sexp.NewMap()),
		sexp.P("severity", sexp.Atom(severity)),
		sexp.P("targets", sexp.NewMap()),
	)
}
