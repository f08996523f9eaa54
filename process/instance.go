package process

import (
	"time"

	"github.com/dogmatiq/marshalkit"
)

// Instance is the in-memory representation of one run of a process
// definition.
//
// It is mutated only by the engine. Once Status reaches a terminal value the
// instance is immutable.
type Instance struct {
	// InstanceID is a unique identifier for this instance, assigned by the
	// engine when the instance is first created.
	InstanceID string

	// ProcessType is the name of the definition this instance executes.
	ProcessType string

	// BusinessKey is the caller-supplied identity of this logical process run.
	//
	// A second start with the same (ProcessType, BusinessKey) pair resolves to
	// this instance rather than creating a duplicate.
	BusinessKey string

	// Status is the instance's position in the lifecycle state machine.
	Status Status

	// CurrentStep is the index into the definition's step table of the next
	// step to execute.
	CurrentStep int

	// History is the audit trail of steps executed so far, in table order.
	History []StepRecord

	// Wait describes the suspend condition currently in effect, if any.
	//
	// It is non-nil only while Status is StatusSuspended. At most one wait is
	// pending per instance.
	Wait *PendingWait

	// Root is the application-defined state of the instance.
	Root Root

	// Result is a short human-readable description of the instance's outcome.
	// It is populated when the instance completes.
	Result string

	// FailureReason is a stable description of the fatal failure that
	// terminated the instance. It is populated only when Status is
	// StatusFailed.
	FailureReason string

	// CreatedAt is the time at which the instance was first accepted.
	CreatedAt time.Time

	// UpdatedAt is the time of the most recent checkpoint.
	UpdatedAt time.Time
}

// StepRecord is the audit record of one step in an instance's history.
type StepRecord struct {
	// Name is the step's name within the definition.
	Name string

	// Attempts are the individual execution attempts, including those that
	// failed transiently.
	Attempts []Attempt

	// Output is a short description of the step's outcome.
	Output string

	// Skipped is true if the step's condition excluded it from execution.
	Skipped bool

	// Fallback is true if the step's output was substituted by its recovery
	// function after its attempts were exhausted.
	Fallback bool

	// StartedAt and CompletedAt bound the step's execution, including retry
	// delays.
	StartedAt   time.Time
	CompletedAt time.Time
}

// Attempt records a single execution attempt of a step.
type Attempt struct {
	// Number is the 1-based attempt number.
	Number int

	// Error is the error produced by the attempt, or empty if it succeeded.
	Error string

	// NextRetryAt is the time at which the following attempt was scheduled.
	// It is zero on the final attempt.
	NextRetryAt time.Time
}

// PendingWait describes the single suspend condition active for an instance.
//
// Resolving a pending wait is atomic and exclusive. Exactly one of the signal
// or the deadline wins; the loser has no observable effect.
type PendingWait struct {
	// Step is the name of the wait point, used as the wait reason in logs and
	// history.
	Step string

	// SignalName is the name of the signal that satisfies the wait early.
	SignalName string

	// Deadline is the time at which the wait resolves as a timeout.
	Deadline time.Time
}

// Snapshot is the persisted form of an instance.
//
// The root state is stored as an opaque packet so that the snapshot itself
// can be registered with a single marshaler regardless of the definitions
// hosted by the engine.
type Snapshot struct {
	InstanceID    string
	ProcessType   string
	BusinessKey   string
	Status        Status
	CurrentStep   int
	History       []StepRecord
	Wait          *PendingWait
	Root          marshalkit.Packet
	Result        string
	FailureReason string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
