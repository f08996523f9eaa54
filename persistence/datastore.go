package persistence

import "context"

// Provider is an interface used by the engine to obtain its data-store.
type Provider interface {
	// Open returns the data-store for a specific application.
	//
	// k is the identity key of the application.
	//
	// Data stores are opened for exclusive use. If another engine instance
	// has already opened this application's data-store, ErrDataStoreLocked is
	// returned.
	Open(ctx context.Context, k string) (DataStore, error)
}

// DataStore is an interface used by the engine to persist and recover process
// instances.
//
// The engine serializes writes to any given instance; the store only needs to
// serialize checkpoint writes per instance identity, which the revision check
// enforces.
type DataStore interface {
	// LoadProcessInstance loads the instance with the given process type and
	// business key.
	//
	// If no such instance exists it returns an instance with a revision of
	// zero, which can be saved to create the instance.
	LoadProcessInstance(ctx context.Context, ptype, key string) (ProcessInstance, error)

	// LoadProcessInstanceByID loads the instance with the given instance ID.
	//
	// ok is false if no such instance exists.
	LoadProcessInstanceByID(ctx context.Context, id string) (_ ProcessInstance, ok bool, _ error)

	// LoadActiveProcessInstances loads every instance that has not reached a
	// terminal status, for recovery after a restart.
	LoadActiveProcessInstances(ctx context.Context) ([]ProcessInstance, error)

	// SaveProcessInstance creates or updates an instance.
	//
	// inst.Revision must be the revision of the instance as currently
	// persisted, otherwise an optimistic concurrency conflict occurs and
	// ConflictError is returned. On success the persisted revision is
	// inst.Revision + 1.
	//
	// Saving an instance that is already persisted as terminal returns
	// ConflictError; terminal instances are immutable.
	SaveProcessInstance(ctx context.Context, inst ProcessInstance) error

	// Close closes the data-store, releasing it for use by another engine
	// instance.
	//
	// Any future operation on a closed data-store returns ErrDataStoreClosed.
	Close() error
}
