package process

// Status is the lifecycle state of a process instance.
type Status string

const (
	// StatusPending indicates that the instance has been accepted but no step
	// has executed yet.
	StatusPending Status = "pending"

	// StatusRunning indicates that the instance is actively executing steps.
	StatusRunning Status = "running"

	// StatusSuspended indicates that the instance is parked at its wait point
	// with a pending-wait descriptor attached.
	StatusSuspended Status = "suspended"

	// StatusCompleted indicates that every applicable step executed and the
	// instance produced a result.
	StatusCompleted Status = "completed"

	// StatusFailed indicates that a fatal step failure terminated the
	// instance.
	StatusFailed Status = "failed"

	// StatusTimedOut indicates that a wait deadline elapsed on a wait that the
	// definition declared fatal-on-timeout.
	StatusTimedOut Status = "timed-out"

	// StatusCancelled indicates that an operator cancelled the instance.
	StatusCancelled Status = "cancelled"
)

// IsTerminal returns true if s is a terminal status.
//
// An instance with a terminal status is immutable. Any attempt to checkpoint
// it again is rejected by the engine.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusTimedOut, StatusCancelled:
		return true
	default:
		return false
	}
}

// MustValidate panics if s is not a recognized status.
func (s Status) MustValidate() {
	switch s {
	case StatusPending,
		StatusRunning,
		StatusSuspended,
		StatusCompleted,
		StatusFailed,
		StatusTimedOut,
		StatusCancelled:
	default:
		panic("unrecognized process status: " + string(s))
	}
}
