package output

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vburojevic/dunehmr/internal/domain"
)

func TestTextWriterLines(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewTextWriter(buf, TextOptions{})

	require.NoError(t, w.Ready(domain.NewReady("r", "/proj/_build/.rpc/dune", "/proj", "127.0.0.1:24678")))
	require.NoError(t, w.BuildSuccess(domain.NewBuildSuccess(2, 1, false)))
	require.NoError(t, w.HotUpdate(domain.NewHotUpdate(nil, []string{"/src/a.re", "/src/b.re"})))
	require.NoError(t, w.FullReload(domain.NewFullReload("error cleared")))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	assert.Equal(t, []string{
		"[dunehmr] watching /proj (daemon socket /proj/_build/.rpc/dune), hmr on ws://127.0.0.1:24678",
		"[dunehmr] build #2 succeeded (1 changed)",
		"[dunehmr] hmr update /src/a.re, /src/b.re",
		"[dunehmr] page reload error cleared",
	}, lines)
}

func TestTextWriterTimestamp(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.Date(2026, 1, 2, 10, 4, 5, 0, time.Local))

	buf := &bytes.Buffer{}
	w := NewTextWriter(buf, TextOptions{Timestamp: true, Clock: mock, Plugin: "melange"})
	require.NoError(t, w.FullReload(domain.NewFullReload("")))
	assert.Equal(t, "10:04:05 [melange] page reload\n", buf.String())
}

func TestTextWriterErrorReport(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewTextWriter(buf, TextOptions{ClearOnError: true})

	report := domain.Report{
		ID:       1,
		Message:  "Unbound value x",
		Severity: domain.SeverityError,
		File:     "/proj/src/a.re",
		Line:     3,
		Column:   6,
		Frame:    "  3 | let y = x;",
	}
	require.NoError(t, w.Diagnostic(domain.NewDiagnosticEvent("add", report)))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, clearScreen), "errors clear the screen first")
	assert.Contains(t, out, "[dunehmr] error\nUnbound value x\n")
	assert.Contains(t, out, "  File: /proj/src/a.re:3:6")
	assert.Contains(t, out, "    3 | let y = x;")
	assert.NotContains(t, out, "\x1b[3", "colors are off")
}

func TestTextWriterWarningIsOneLine(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewTextWriter(buf, TextOptions{ClearOnError: true})

	report := domain.Report{
		ID:       2,
		Message:  "unused variable z\nmore detail",
		Severity: domain.SeverityWarning,
		File:     "/proj/src/a.re",
		Line:     1,
		Column:   5,
	}
	require.NoError(t, w.Diagnostic(domain.NewDiagnosticEvent("add", report)))
	assert.Equal(t, "[dunehmr] warning /proj/src/a.re:1:5 unused variable z\n", buf.String())
}

func TestTextWriterRemovalAndRPCError(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewTextWriter(buf, TextOptions{})

	require.NoError(t, w.Diagnostic(domain.NewDiagnosticEvent("remove", domain.Report{ID: 9})))
	require.NoError(t, w.RPCError(domain.NewRPCError(errors.New("decode: unmatched closing paren"), false)))

	assert.Equal(t, "[dunehmr] diagnostic 9 resolved\n[dunehmr] rpc error decode: unmatched closing paren\n", buf.String())
}

func TestTextWriterColor(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewTextWriter(buf, TextOptions{Color: true})
	require.NoError(t, w.BuildSuccess(domain.NewBuildSuccess(1, 0, false)))
	assert.Contains(t, buf.String(), "\x1b[")
}

func TestIsTerminalRejectsBuffers(t *testing.T) {
	assert.False(t, IsTerminal(&bytes.Buffer{}))
}
