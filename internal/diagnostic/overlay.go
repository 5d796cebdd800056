package diagnostic

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/fatih/color"

	"github.com/vburojevic/dunehmr/internal/domain"
)

// PluginCode tags every overlay payload produced from a daemon diagnostic
const PluginCode = "MELANGE_COMPILATION_FAILED"

var (
	messageColor = color.New(color.FgRed)
	pluginColor  = color.New(color.FgMagenta)
	fileColor    = color.New(color.FgCyan)
	frameColor   = color.New(color.FgYellow)
)

// Overlay converts a report into the payload the browser error overlay
// renders. Terminal escape sequences are stripped from every text field.
func Overlay(r domain.Report, plugin string) domain.ErrorPayload {
	p := domain.ErrorPayload{
		Message:    ansi.Strip(r.Message),
		Frame:      ansi.Strip(r.Frame),
		ID:         r.File,
		Plugin:     plugin,
		PluginCode: PluginCode,
	}
	if r.HasLocation() {
		p.Loc = &domain.ErrorLoc{File: r.File, Line: r.Line, Column: r.Column}
	}
	return p
}

// Pretty formats a report for the terminal log: message, plugin, file
// position and the indented frame.
func Pretty(r domain.Report, plugin string) string {
	lines := []string{messageColor.Sprint(r.Message)}
	if plugin != "" {
		lines = append(lines, "  Plugin: "+pluginColor.Sprint(plugin))
	}
	if r.File != "" {
		loc := ""
		if r.HasLocation() {
			loc = fmt.Sprintf(":%d:%d", r.Line, r.Column)
		}
		lines = append(lines, "  File: "+fileColor.Sprint(r.File)+loc)
	}
	if r.Frame != "" {
		lines = append(lines, frameColor.Sprint(indent(r.Frame, 2)))
	}
	return strings.Join(lines, "\n")
}

func indent(s string, n int) string {
	prefix := strings.Repeat(" ", n)
	return prefix + strings.ReplaceAll(s, "\n", "\n"+prefix)
}
