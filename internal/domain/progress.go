package domain

// ProgressState is the build state reported on the progress poll channel
type ProgressState string

const (
	ProgressWaiting     ProgressState = "waiting"
	ProgressInProgress  ProgressState = "in_progress"
	ProgressFailed      ProgressState = "failed"
	ProgressInterrupted ProgressState = "interrupted"
	ProgressSuccess     ProgressState = "success"
	ProgressUnknown     ProgressState = "unknown"
)

// Progress is one decoded progress event
type Progress struct {
	State     ProgressState `json:"state"`
	Complete  int           `json:"complete,omitempty"`
	Remaining int           `json:"remaining,omitempty"`
	Failed    int           `json:"failed,omitempty"`
}

// Done reports whether the build reached a terminal state
func (p Progress) Done() bool {
	switch p.State {
	case ProgressSuccess, ProgressFailed, ProgressInterrupted:
		return true
	}
	return false
}
