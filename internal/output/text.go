package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/charmbracelet/x/ansi"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/vburojevic/dunehmr/internal/diagnostic"
	"github.com/vburojevic/dunehmr/internal/domain"
)

// clearScreen moves the cursor home and erases the terminal
const clearScreen = "\x1b[2J\x1b[H"

// TextOptions configures a TextWriter
type TextOptions struct {
	// Color enables ANSI colors
	Color bool
	// Timestamp prefixes every line with the wall-clock time
	Timestamp bool
	// ClearOnError wipes the terminal before printing a blocking error
	ClearOnError bool
	// Plugin is the tag shown in brackets and in error reports
	Plugin string
	Clock  clock.Clock
}

// TextWriter prints events the way a dev server logs them
type TextWriter struct {
	mu   sync.Mutex
	w    io.Writer
	opts TextOptions

	dim, green, yellow, red, cyan *color.Color
}

// NewTextWriter creates a text writer
func NewTextWriter(w io.Writer, opts TextOptions) *TextWriter {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Plugin == "" {
		opts.Plugin = "dunehmr"
	}
	tw := &TextWriter{
		w:      w,
		opts:   opts,
		dim:    color.New(color.Faint),
		green:  color.New(color.FgGreen),
		yellow: color.New(color.FgYellow),
		red:    color.New(color.FgRed, color.Bold),
		cyan:   color.New(color.FgCyan),
	}
	for _, c := range []*color.Color{tw.dim, tw.green, tw.yellow, tw.red, tw.cyan} {
		if opts.Color {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return tw
}

// IsTerminal reports whether w is a terminal that can show colors
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (t *TextWriter) line(msg string) error {
	var b strings.Builder
	if t.opts.Timestamp {
		b.WriteString(t.dim.Sprint(t.opts.Clock.Now().Format("15:04:05")))
		b.WriteByte(' ')
	}
	b.WriteString(t.cyan.Sprintf("[%s]", t.opts.Plugin))
	b.WriteByte(' ')
	b.WriteString(msg)
	b.WriteByte('\n')

	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := io.WriteString(t.w, b.String())
	return err
}

func (t *TextWriter) Ready(e *domain.Ready) error {
	msg := fmt.Sprintf("watching %s (daemon socket %s)", e.Root, e.Socket)
	if e.Listen != "" {
		msg += fmt.Sprintf(", hmr on ws://%s", e.Listen)
	}
	return t.line(msg)
}

func (t *TextWriter) BuildSuccess(e *domain.BuildSuccess) error {
	msg := t.green.Sprintf("build #%d succeeded", e.Build)
	if e.ChangedFiles > 0 {
		msg += t.dim.Sprintf(" (%d changed)", e.ChangedFiles)
	}
	return t.line(msg)
}

func (t *TextWriter) HotUpdate(e *domain.HotUpdate) error {
	return t.line(t.green.Sprint("hmr update ") + t.dim.Sprint(strings.Join(e.Modules, ", ")))
}

func (t *TextWriter) FullReload(e *domain.FullReload) error {
	msg := t.green.Sprint("page reload")
	if e.Reason != "" {
		msg += " " + t.dim.Sprint(e.Reason)
	}
	return t.line(msg)
}

// Diagnostic prints errors in full, warnings as one line, and removals only as a note
func (t *TextWriter) Diagnostic(e *domain.DiagnosticEvent) error {
	r := e.Report
	if e.Action == "remove" {
		return t.line(t.dim.Sprintf("diagnostic %d resolved", r.ID))
	}

	if r.Severity == domain.SeverityWarning {
		where := ""
		if r.HasLocation() {
			where = fmt.Sprintf(" %s:%d:%d", r.File, r.Line, r.Column)
		}
		return t.line(t.yellow.Sprint("warning") + where + " " + firstLine(r.Message))
	}

	if t.opts.ClearOnError {
		t.mu.Lock()
		_, err := io.WriteString(t.w, clearScreen)
		t.mu.Unlock()
		if err != nil {
			return err
		}
	}
	pretty := diagnostic.Pretty(r, t.opts.Plugin)
	if !t.opts.Color {
		pretty = ansi.Strip(pretty)
	}
	return t.line(t.red.Sprint("error") + "\n" + pretty)
}

func (t *TextWriter) RPCError(e *domain.RPCError) error {
	label := "rpc error"
	if e.Fatal {
		label = "fatal rpc error"
	}
	return t.line(t.red.Sprint(label) + " " + e.Message)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
