package models

// Phase is a UWS job execution phase as reported by the server. The client
// never infers a phase locally; every value originates from a status read.
type Phase string

const (
	PhasePending   Phase = "PENDING"
	PhaseQueued    Phase = "QUEUED"
	PhaseExecuting Phase = "EXECUTING"
	PhaseCompleted Phase = "COMPLETED"
	PhaseError     Phase = "ERROR"
	PhaseAborted   Phase = "ABORTED"
)

// IsTerminal reports whether the phase is final. Results are only available
// once a job reaches COMPLETED; ERROR and ABORTED carry no results.
func (p Phase) IsTerminal() bool {
	switch p {
	case PhaseCompleted, PhaseError, PhaseAborted:
		return true
	default:
		return false
	}
}

// IsActive reports whether the job is still waiting or running server-side
// and should continue to be polled.
func (p Phase) IsActive() bool {
	switch p {
	case PhasePending, PhaseQueued, PhaseExecuting:
		return true
	default:
		return false
	}
}

// ResultEntry is one downloadable output of a completed job: the unescaped
// xlink href of the file plus an optional server-provided name hint.
type ResultEntry struct {
	Href string
	Name string
}

// JobOutcome is the final per-job record produced by a bulk run: terminal
// phase, error message when the phase is ERROR or ABORTED, and the local
// paths of any downloaded files.
type JobOutcome struct {
	Location string
	Phase    Phase
	Message  string
	Files    []string
	Err      error
}
