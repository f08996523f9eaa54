package process

import (
	"context"
	"time"

	"github.com/outreachkit/engage/retry"
)

// Root is the application-defined state of a process instance.
//
// The concrete type is provided by the definition and must be marshalable by
// the engine's marshaler.
type Root interface{}

// A Definition describes a bounded process shape: a fixed, ordered table of
// steps, executed in order by the engine for each instance of the process
// type.
type Definition interface {
	// ProcessType returns a unique name identifying the process.
	ProcessType() string

	// NewRoot returns a new, zero-valued root state for an instance.
	NewRoot() Root

	// Steps returns the step table, in execution order.
	//
	// The table is fixed. It must return equivalent steps on every call.
	Steps() []Step
}

// Step is one entry in a definition's step table.
//
// A step either executes work via Execute, or suspends the instance via Wait.
// The two are mutually exclusive.
type Step struct {
	// Name uniquely identifies the step within the definition.
	Name string

	// Applies reports whether the step executes for the given instance.
	//
	// If it is nil the step always executes. A step excluded by its condition
	// is recorded in the instance history as skipped, without invoking any
	// adapter.
	Applies func(s *Scope) bool

	// Execute performs the step's work, mutating the scope's root state.
	//
	// It returns a short description of the step's outcome, recorded in the
	// instance history.
	Execute func(ctx context.Context, s *Scope) (string, error)

	// Recover substitutes a fallback outcome after Execute has failed
	// permanently or exhausted its retries.
	//
	// If it is nil the failure is fatal: the instance terminates as failed.
	// Recover must be deterministic and side-effect free.
	Recover func(s *Scope, err error) (string, error)

	// Retry is the retry policy applied to Execute.
	//
	// A zero policy uses the engine's default.
	Retry retry.Policy

	// Wait marks the step as a suspend point instead of an executable step.
	Wait *WaitSpec
}

// WaitSpec describes a suspend point within a step table.
type WaitSpec struct {
	// SignalName is the name of the signal that satisfies the wait early.
	SignalName string

	// Timeout is the maximum time the instance remains suspended before the
	// wait resolves as a timeout.
	Timeout time.Duration

	// Applies reports whether the instance suspends at all.
	//
	// If it is nil the instance always suspends. When it returns false the
	// wait is bypassed and OnResume is invoked immediately with timedOut set
	// to true, so the definition records its no-wait outcome.
	Applies func(s *Scope) bool

	// OnResume folds the wait's resolution into the root state.
	//
	// payload is the signal payload, or empty if the wait timed out or was
	// bypassed. It returns a short description of the outcome, recorded in
	// the instance history.
	OnResume func(s *Scope, payload string, timedOut bool) (string, error)

	// FatalOnTimeout terminates the instance as timed-out when the deadline
	// elapses, instead of resuming with a timeout outcome.
	FatalOnTimeout bool
}

// IsWait returns true if the step is a suspend point.
func (s *Step) IsWait() bool {
	return s.Wait != nil
}
