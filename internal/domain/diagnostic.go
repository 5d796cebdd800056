package domain

import "strings"

// Severity is the daemon-reported severity of a diagnostic
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// ParseSeverity maps daemon severity atoms to a Severity; anything that is
// not a warning is treated as an error
func ParseSeverity(s string) Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "warning":
		return SeverityWarning
	default:
		return SeverityError
	}
}

// Position is one end of a diagnostic span. Line is 1-based, Column is the
// 0-based byte column within the line, Offset the 0-based byte offset in the file.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
	Offset int `json:"offset"`
}

// Diagnostic is a compiler error or warning as reported by the daemon
type Diagnostic struct {
	ID        int       `json:"id"`
	File      string    `json:"file,omitempty"`
	Directory string    `json:"directory,omitempty"`
	Start     *Position `json:"start,omitempty"`
	End       *Position `json:"end,omitempty"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
}

// IsError reports whether the diagnostic blocks the build
func (d *Diagnostic) IsError() bool {
	return d.Severity == SeverityError
}

// Report is a diagnostic resolved against its source file, ready for display.
// Line and Column are 1-based; both are zero when the daemon gave no location.
type Report struct {
	ID       int      `json:"id"`
	Message  string   `json:"message"`
	Frame    string   `json:"frame,omitempty"`
	Severity Severity `json:"severity"`
	File     string   `json:"file,omitempty"`
	Line     int      `json:"line,omitempty"`
	Column   int      `json:"column,omitempty"`
}

// HasLocation reports whether the report points at a file position
func (r *Report) HasLocation() bool {
	return r.File != "" && r.Line > 0
}

// ErrorLoc is the location block of an overlay payload
type ErrorLoc struct {
	File   string `json:"file,omitempty"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

// ErrorPayload is the error-overlay shape understood by the dev-server client
type ErrorPayload struct {
	Message    string    `json:"message"`
	Stack      string    `json:"stack"`
	ID         string    `json:"id,omitempty"`
	Frame      string    `json:"frame"`
	Plugin     string    `json:"plugin,omitempty"`
	PluginCode string    `json:"pluginCode,omitempty"`
	Loc        *ErrorLoc `json:"loc,omitempty"`
}
