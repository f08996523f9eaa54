// Package persistence defines the abstraction for durable process-instance
// storage.
package persistence

import (
	"github.com/dogmatiq/marshalkit"
)

// ProcessInstance is the persisted representation of a process instance.
//
// The instance's state is kept opaque to the store; only the fields needed to
// address, version and recover instances are structured.
type ProcessInstance struct {
	// ProcessType is the name of the definition the instance executes.
	ProcessType string

	// BusinessKey is the caller-supplied identity of the logical process run.
	// The (ProcessType, BusinessKey) pair is the instance's primary identity.
	BusinessKey string

	// InstanceID is the engine-assigned unique identifier of the instance.
	InstanceID string

	// Revision is the instance's version for optimistic concurrency control.
	//
	// A revision of zero indicates that the instance does not exist.
	Revision uint64

	// Terminal is true once the instance has reached a terminal status.
	//
	// Terminal instances are excluded from recovery listings and may never be
	// saved again.
	Terminal bool

	// Packet is the marshaled snapshot of the instance.
	Packet marshalkit.Packet
}
