package learning

// SessionStatus is the learning-session state machine:
// idle -> running -> {paused <-> running} -> {completed | stopped | error}
type SessionStatus string

const (
	SessionIdle      SessionStatus = "idle"
	SessionRunning   SessionStatus = "running"
	SessionPaused    SessionStatus = "paused"
	SessionCompleted SessionStatus = "completed"
	SessionStopped   SessionStatus = "stopped"
	SessionError     SessionStatus = "error"
)

// Terminal reports whether the status ends a session.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionStopped || s == SessionError
}

// StepStatus is the per-step state within one pass.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepSkipped   StepStatus = "skipped"
	StepError     StepStatus = "error"
)

// Resolved reports whether the step no longer runs in this pass.
func (s StepStatus) Resolved() bool {
	return s == StepCompleted || s == StepSkipped || s == StepError
}

// CanTransition is the single legal-transition check for session
// statuses. Every mutation of Session.Status goes through it so illegal
// transitions (e.g. resume from idle) are rejected uniformly.
func CanTransition(from, to SessionStatus) bool {
	switch from {
	case SessionIdle:
		return to == SessionRunning
	case SessionRunning:
		return to == SessionPaused || to == SessionCompleted || to == SessionStopped || to == SessionError
	case SessionPaused:
		return to == SessionRunning || to == SessionStopped
	case SessionCompleted, SessionStopped, SessionError:
		// Terminal states never transition; a restart is a fresh
		// session beginning at idle.
		return false
	default:
		return false
	}
}
