package domain

import "time"

// SchemaVersion is stamped on every NDJSON event
const SchemaVersion = 1

// Ready is emitted once the bridge is up and waiting for the daemon
type Ready struct {
	Type          string `json:"type"`          // "ready"
	SchemaVersion int    `json:"schemaVersion"` // 1
	RunID         string `json:"run_id"`        // Unique per process
	Socket        string `json:"socket"`        // Daemon RPC socket path
	Root          string `json:"root"`          // Project root
	Listen        string `json:"listen,omitempty"`
	Timestamp     string `json:"timestamp"`
}

// BuildSuccess is emitted when the daemon reports a successful build
type BuildSuccess struct {
	Type          string `json:"type"` // "build_success"
	SchemaVersion int    `json:"schemaVersion"`
	Build         int    `json:"build"`         // Build number since start (1, 2, 3...)
	ChangedFiles  int    `json:"changed_files"` // Source files drained by this build
	ClearedError  bool   `json:"cleared_error"` // A blocking error was dismissed
	Timestamp     string `json:"timestamp"`
}

// HotUpdate lists the modules pushed to clients after a build
type HotUpdate struct {
	Type          string   `json:"type"` // "hot_update"
	SchemaVersion int      `json:"schemaVersion"`
	Files         []string `json:"files"`
	Modules       []string `json:"modules"`
	Timestamp     string   `json:"timestamp"`
}

// FullReload is emitted when every client is told to reload the page
type FullReload struct {
	Type          string `json:"type"` // "full_reload"
	SchemaVersion int    `json:"schemaVersion"`
	Reason        string `json:"reason"`
	Timestamp     string `json:"timestamp"`
}

// DiagnosticEvent wraps a translated diagnostic
type DiagnosticEvent struct {
	Type          string `json:"type"` // "diagnostic"
	SchemaVersion int    `json:"schemaVersion"`
	Action        string `json:"action"` // "add" or "remove"
	Report        Report `json:"report"`
	Timestamp     string `json:"timestamp"`
}

// RPCError is emitted for protocol and connection faults
type RPCError struct {
	Type          string `json:"type"` // "rpc_error"
	SchemaVersion int    `json:"schemaVersion"`
	Message       string `json:"message"`
	Fatal         bool   `json:"fatal"`
	Timestamp     string `json:"timestamp"`
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// NewReady creates a new Ready event
func NewReady(runID, socket, root, listen string) *Ready {
	return &Ready{
		Type:          "ready",
		SchemaVersion: SchemaVersion,
		RunID:         runID,
		Socket:        socket,
		Root:          root,
		Listen:        listen,
		Timestamp:     now(),
	}
}

// NewBuildSuccess creates a new BuildSuccess event
func NewBuildSuccess(build, changed int, clearedError bool) *BuildSuccess {
	return &BuildSuccess{
		Type:          "build_success",
		SchemaVersion: SchemaVersion,
		Build:         build,
		ChangedFiles:  changed,
		ClearedError:  clearedError,
		Timestamp:     now(),
	}
}

// NewHotUpdate creates a new HotUpdate event
func NewHotUpdate(files, modules []string) *HotUpdate {
	return &HotUpdate{
		Type:          "hot_update",
		SchemaVersion: SchemaVersion,
		Files:         files,
		Modules:       modules,
		Timestamp:     now(),
	}
}

// NewFullReload creates a new FullReload event
func NewFullReload(reason string) *FullReload {
	return &FullReload{
		Type:          "full_reload",
		SchemaVersion: SchemaVersion,
		Reason:        reason,
		Timestamp:     now(),
	}
}

// NewDiagnosticEvent creates a new DiagnosticEvent
func NewDiagnosticEvent(action string, report Report) *DiagnosticEvent {
	return &DiagnosticEvent{
		Type:          "diagnostic",
		SchemaVersion: SchemaVersion,
		Action:        action,
		Report:        report,
		Timestamp:     now(),
	}
}

// NewRPCError creates a new RPCError event
func NewRPCError(err error, fatal bool) *RPCError {
	return &RPCError{
		Type:          "rpc_error",
		SchemaVersion: SchemaVersion,
		Message:       err.Error(),
		Fatal:         fatal,
		Timestamp:     now(),
	}
}
