// Package diagnostic resolves daemon diagnostics against their source files
// and renders them for the terminal and the browser overlay.
package diagnostic

import (
	"path/filepath"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/vburojevic/dunehmr/internal/domain"
)

// Translator turns daemon diagnostics into display-ready reports
type Translator struct {
	fs  afero.Fs
	log *zap.Logger
}

// NewTranslator reads source text through fs. A nil fs means the OS filesystem.
func NewTranslator(fs afero.Fs, log *zap.Logger) *Translator {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Translator{fs: fs, log: log}
}

// Translate builds a Report. Diagnostics without a location yield a
// message-only report; an unreadable source file only drops the frame.
func (t *Translator) Translate(d domain.Diagnostic) domain.Report {
	r := domain.Report{
		ID:       d.ID,
		Message:  d.Message,
		Severity: d.Severity,
	}
	if d.Start == nil || d.File == "" {
		return r
	}

	r.File = t.resolve(d)
	r.Line = d.Start.Line
	r.Column = d.Start.Column + 1

	source, err := afero.ReadFile(t.fs, r.File)
	if err != nil {
		t.log.Debug("source unavailable for frame", zap.String("file", r.File), zap.Error(err))
		return r
	}

	end := d.Start.Offset
	if d.End != nil {
		end = d.End.Offset
	}
	r.Frame = RenderFrame(string(source), d.Start.Offset, end)
	return r
}

// resolve makes a daemon path absolute against the diagnostic's directory
func (t *Translator) resolve(d domain.Diagnostic) string {
	if filepath.IsAbs(d.File) || d.Directory == "" {
		return d.File
	}
	return filepath.Join(d.Directory, d.File)
}
