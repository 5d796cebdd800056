// Package output renders bridge events for humans (text) and for tools
// (newline-delimited JSON).
package output

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/vburojevic/dunehmr/internal/domain"
)

// Sink receives every event the bridge reports
type Sink interface {
	Ready(e *domain.Ready) error
	BuildSuccess(e *domain.BuildSuccess) error
	HotUpdate(e *domain.HotUpdate) error
	FullReload(e *domain.FullReload) error
	Diagnostic(e *domain.DiagnosticEvent) error
	RPCError(e *domain.RPCError) error
}

// ErrorOutput is a command failure in ndjson mode
type ErrorOutput struct {
	Type          string `json:"type"` // "error"
	SchemaVersion int    `json:"schemaVersion"`
	Code          string `json:"code"`
	Message       string `json:"message"`
	Hint          string `json:"hint,omitempty"`
}

// NDJSONWriter writes one JSON object per line
type NDJSONWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewNDJSONWriter creates a new NDJSON writer
func NewNDJSONWriter(w io.Writer) *NDJSONWriter {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &NDJSONWriter{enc: enc}
}

// Write encodes any value as a single line
func (w *NDJSONWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Encode(v)
}

func (w *NDJSONWriter) Ready(e *domain.Ready) error               { return w.Write(e) }
func (w *NDJSONWriter) BuildSuccess(e *domain.BuildSuccess) error { return w.Write(e) }
func (w *NDJSONWriter) HotUpdate(e *domain.HotUpdate) error       { return w.Write(e) }
func (w *NDJSONWriter) FullReload(e *domain.FullReload) error     { return w.Write(e) }
func (w *NDJSONWriter) Diagnostic(e *domain.DiagnosticEvent) error {
	return w.Write(e)
}
func (w *NDJSONWriter) RPCError(e *domain.RPCError) error { return w.Write(e) }

// WriteError writes an error event
func (w *NDJSONWriter) WriteError(code, message string, hint ...string) error {
	out := &ErrorOutput{
		Type:          "error",
		SchemaVersion: domain.SchemaVersion,
		Code:          code,
		Message:       message,
	}
	if len(hint) > 0 {
		out.Hint = hint[0]
	}
	return w.Write(out)
}
