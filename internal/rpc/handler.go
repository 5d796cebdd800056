package rpc

import "github.com/vburojevic/dunehmr/internal/domain"

// Handler observes a Session. Every method is called from the session's
// single read goroutine, never concurrently.
type Handler interface {
	// OnSuccess fires when the progress channel reports a successful build
	OnSuccess()
	// OnProgress receives every decoded progress event, success included
	OnProgress(p domain.Progress)
	OnDiagnosticAdd(d domain.Diagnostic)
	OnDiagnosticRemove(d domain.Diagnostic)
	// OnRPCError receives decode faults, error responses and fatal connection errors
	OnRPCError(err error)
}

// Callbacks adapts plain functions to Handler. Nil fields are skipped.
type Callbacks struct {
	Success          func()
	Progress         func(domain.Progress)
	DiagnosticAdd    func(domain.Diagnostic)
	DiagnosticRemove func(domain.Diagnostic)
	RPCError         func(error)
}

func (c Callbacks) OnSuccess() {
	if c.Success != nil {
		c.Success()
	}
}

func (c Callbacks) OnProgress(p domain.Progress) {
	if c.Progress != nil {
		c.Progress(p)
	}
}

func (c Callbacks) OnDiagnosticAdd(d domain.Diagnostic) {
	if c.DiagnosticAdd != nil {
		c.DiagnosticAdd(d)
	}
}

func (c Callbacks) OnDiagnosticRemove(d domain.Diagnostic) {
	if c.DiagnosticRemove != nil {
		c.DiagnosticRemove(d)
	}
}

func (c Callbacks) OnRPCError(err error) {
	if c.RPCError != nil {
		c.RPCError(err)
	}
}
