package engage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/outreachkit/engage/persistence"
	"github.com/outreachkit/engage/process"
)

// ErrInstanceNotFound is returned when an operation refers to a process
// instance that does not exist.
var ErrInstanceNotFound = errors.New("process instance not found")

// Start begins a new instance of the given process type, identified by the
// given business key.
//
// Starting is idempotent: if an instance already exists for this process
// type and business key, its ID is returned and no new instance is created,
// regardless of the existing instance's status. Two concurrent starts for
// the same business key resolve to a single instance.
//
// root is the instance's initial application-defined state. If it is nil,
// the definition's NewRoot() is used.
//
// Start() blocks until the engine is running.
func (e *Engine) Start(
	ctx context.Context,
	processType string,
	businessKey string,
	root process.Root,
) (string, error) {
	def, ok := e.defs[processType]
	if !ok {
		return "", fmt.Errorf(
			"no definition hosted for process type %q",
			processType,
		)
	}

	if businessKey == "" {
		return "", errors.New("business key must not be empty")
	}

	ds, err := e.ready(ctx)
	if err != nil {
		return "", err
	}

	existing, err := ds.LoadProcessInstance(ctx, processType, businessKey)
	if err != nil {
		return "", err
	}
	if existing.Revision > 0 {
		return existing.InstanceID, nil
	}

	if root == nil {
		root = def.NewRoot()
	}

	now := time.Now()
	inst := &process.Instance{
		InstanceID:  uuid.NewString(),
		ProcessType: processType,
		BusinessKey: businessKey,
		Status:      process.StatusPending,
		Root:        root,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	p, err := marshalInstance(e.opts.Marshaler, inst, 0)
	if err != nil {
		return "", err
	}

	if err := ds.SaveProcessInstance(ctx, p); err != nil {
		if !persistence.IsConflict(err) {
			return "", err
		}

		// A concurrent start won the race to create the instance. Resolve
		// to the winner.
		existing, err := ds.LoadProcessInstance(ctx, processType, businessKey)
		if err != nil {
			return "", err
		}

		return existing.InstanceID, nil
	}

	e.enqueue(inst.InstanceID)

	return inst.InstanceID, nil
}

// SendSignal delivers a named signal to the instance suspended on it,
// addressed by business key.
//
// It returns true if an instance was waiting for the signal. Signals that
// arrive while no instance is waiting are rejected, not buffered, and false
// is returned. A second signal for the same wait is likewise rejected.
//
// SendSignal() blocks until the engine is running.
func (e *Engine) SendSignal(
	ctx context.Context,
	businessKey string,
	name string,
	payload string,
) (bool, error) {
	if _, err := e.ready(ctx); err != nil {
		return false, err
	}

	return e.router.Deliver(businessKey, name, payload), nil
}

// Cancel requests cancelation of the instance with the given ID.
//
// A suspended instance is cancelled immediately; a running instance is
// cancelled at its next step boundary. Work already in flight for the
// current step is not interrupted. Cancelling an instance that has already
// reached a terminal status has no effect.
//
// Cancel() blocks until the engine is running.
func (e *Engine) Cancel(ctx context.Context, id string) error {
	ds, err := e.ready(ctx)
	if err != nil {
		return err
	}

	p, ok, err := ds.LoadProcessInstanceByID(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInstanceNotFound
	}
	if p.Terminal {
		return nil
	}

	e.m.Lock()
	e.cancels[id] = struct{}{}
	e.m.Unlock()

	e.cancelWait(id)
	e.enqueue(id)

	return nil
}

// Get returns the current state of the instance with the given ID.
//
// It does not block; the instance is returned in whatever state its most
// recent checkpoint left it.
func (e *Engine) Get(
	ctx context.Context,
	id string,
) (*process.Instance, error) {
	ds, err := e.ready(ctx)
	if err != nil {
		return nil, err
	}

	p, ok, err := ds.LoadProcessInstanceByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInstanceNotFound
	}

	return unmarshalInstance(e.opts.Marshaler, p)
}

// GetResult returns the instance with the given ID once it has reached a
// terminal status, blocking until it does so or ctx is canceled.
//
// The returned instance includes the full step history, the result or
// failure reason, and the terminal status.
func (e *Engine) GetResult(
	ctx context.Context,
	id string,
) (*process.Instance, error) {
	ds, err := e.ready(ctx)
	if err != nil {
		return nil, err
	}

	for {
		// Obtain the done-signal before loading, so that a terminal
		// checkpoint between the load and the wait can not be missed.
		done := e.doneSignal(id)

		p, ok, err := ds.LoadProcessInstanceByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrInstanceNotFound
		}

		if p.Terminal {
			return unmarshalInstance(e.opts.Marshaler, p)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-done:
		}
	}
}
