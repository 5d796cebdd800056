package rpc

import (
	"strconv"

	"github.com/vburojevic/dunehmr/internal/domain"
	"github.com/vburojevic/dunehmr/internal/sexp"
)

// messagePath is the fixed shape (Vbox (0 (Box (0 (Verbatim <text>))))) the
// daemon wraps diagnostic text in.
var messagePath = []int{1, 1, 1, 1, 1}

// optionValue unwraps (Some x). None and anything else yield false.
func optionValue(v sexp.Value) (sexp.Value, bool) {
	l, ok := v.(sexp.List)
	if !ok || len(l) != 2 {
		return nil, false
	}
	if tag, _ := sexp.AtomOf(l[0]); tag != "Some" {
		return nil, false
	}
	return l[1], true
}

// DecodeProgress reads a poll/progress payload such as (Some (success ())).
func DecodeProgress(payload sexp.Value) (domain.Progress, bool) {
	inner, ok := optionValue(payload)
	if !ok {
		return domain.Progress{}, false
	}

	tag, ok := sexp.AtomOf(inner)
	var body sexp.Value
	if !ok {
		head, found := sexp.At(inner, 0)
		if !found {
			return domain.Progress{State: domain.ProgressUnknown}, true
		}
		tag, _ = sexp.AtomOf(head)
		body, _ = sexp.At(inner, 1)
	}

	p := domain.Progress{State: domain.ProgressUnknown}
	switch tag {
	case "success":
		p.State = domain.ProgressSuccess
	case "failed":
		p.State = domain.ProgressFailed
	case "interrupted":
		p.State = domain.ProgressInterrupted
	case "waiting":
		p.State = domain.ProgressWaiting
	case "in_progress":
		p.State = domain.ProgressInProgress
		p.Complete = atoiField(body, "complete")
		p.Remaining = atoiField(body, "remaining")
		p.Failed = atoiField(body, "failed")
	}
	return p, true
}

// DiagnosticAction says whether an event adds or retracts a diagnostic
type DiagnosticAction string

const (
	ActionAdd    DiagnosticAction = "Add"
	ActionRemove DiagnosticAction = "Remove"
)

// DiagnosticEvent is one entry of a poll/diagnostic batch
type DiagnosticEvent struct {
	Action     DiagnosticAction
	Diagnostic domain.Diagnostic
}

// DecodeDiagnosticEvents reads a poll/diagnostic payload such as
// (Some ((Add <diag>) (Remove <diag>))). Events keep wire order.
func DecodeDiagnosticEvents(payload sexp.Value) []DiagnosticEvent {
	inner, ok := optionValue(payload)
	if !ok {
		return nil
	}

	var entries []sexp.Pair
	switch t := inner.(type) {
	case *sexp.Map:
		entries = t.Pairs()
	case sexp.List:
		for _, e := range t {
			if l, ok := e.(sexp.List); ok && len(l) == 2 {
				entries = append(entries, sexp.Pair{Key: l[0], Value: l[1]})
			}
		}
	}

	events := make([]DiagnosticEvent, 0, len(entries))
	for _, e := range entries {
		tag, _ := sexp.AtomOf(e.Key)
		action := DiagnosticAction(tag)
		if action != ActionAdd && action != ActionRemove {
			continue
		}
		events = append(events, DiagnosticEvent{Action: action, Diagnostic: DecodeDiagnostic(e.Value)})
	}
	return events
}

// DecodeDiagnostic converts a daemon diagnostic record. Missing fields are
// left zero; a record without loc has nil Start/End.
func DecodeDiagnostic(v sexp.Value) domain.Diagnostic {
	d := domain.Diagnostic{
		ID: atoiField(v, "id"),
	}
	d.Directory, _ = sexp.FieldAtom(v, "directory")
	severity, _ := sexp.FieldAtom(v, "severity")
	d.Severity = domain.ParseSeverity(severity)

	if msg, ok := sexp.Field(v, "message"); ok {
		d.Message = messageText(msg)
	}

	if loc, ok := sexp.Field(v, "loc"); ok {
		if start, ok := sexp.Field(loc, "start"); ok {
			d.File, _ = sexp.FieldAtom(start, "pos_fname")
			d.Start = decodePosition(start)
		}
		if stop, ok := sexp.Field(loc, "stop"); ok {
			d.End = decodePosition(stop)
		}
	}
	return d
}

func messageText(msg sexp.Value) string {
	if leaf, ok := sexp.At(msg, messagePath...); ok {
		if text, ok := sexp.AtomOf(leaf); ok {
			return text
		}
	}
	if text, ok := sexp.AtomOf(msg); ok {
		return text
	}
	return string(sexp.Encode(msg))
}

func decodePosition(v sexp.Value) *domain.Position {
	cnum := atoiField(v, "pos_cnum")
	bol := atoiField(v, "pos_bol")
	col := cnum - bol
	if col < 0 {
		col = 0
	}
	return &domain.Position{
		Line:   atoiField(v, "pos_lnum"),
		Column: col,
		Offset: cnum,
	}
}

func atoiField(v sexp.Value, key string) int {
	s, ok := sexp.FieldAtom(v, key)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
