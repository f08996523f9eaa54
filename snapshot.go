package engage

import (
	"fmt"
	"reflect"

	"github.com/dogmatiq/marshalkit"
	"github.com/outreachkit/engage/persistence"
	"github.com/outreachkit/engage/process"
)

// marshalInstance converts an in-memory instance to its persisted
// representation at the given revision.
func marshalInstance(
	m marshalkit.Marshaler,
	inst *process.Instance,
	rev uint64,
) (persistence.ProcessInstance, error) {
	root, err := marshalRoot(m, inst.Root)
	if err != nil {
		return persistence.ProcessInstance{}, err
	}

	packet, err := m.Marshal(
		process.Snapshot{
			InstanceID:    inst.InstanceID,
			ProcessType:   inst.ProcessType,
			BusinessKey:   inst.BusinessKey,
			Status:        inst.Status,
			CurrentStep:   inst.CurrentStep,
			History:       inst.History,
			Wait:          inst.Wait,
			Root:          root,
			Result:        inst.Result,
			FailureReason: inst.FailureReason,
			CreatedAt:     inst.CreatedAt,
			UpdatedAt:     inst.UpdatedAt,
		},
	)
	if err != nil {
		return persistence.ProcessInstance{}, err
	}

	return persistence.ProcessInstance{
		ProcessType: inst.ProcessType,
		BusinessKey: inst.BusinessKey,
		InstanceID:  inst.InstanceID,
		Revision:    rev,
		Terminal:    inst.Status.IsTerminal(),
		Packet:      packet,
	}, nil
}

// unmarshalInstance converts a persisted instance back to its in-memory
// representation.
func unmarshalInstance(
	m marshalkit.Marshaler,
	rec persistence.ProcessInstance,
) (*process.Instance, error) {
	v, err := m.Unmarshal(rec.Packet)
	if err != nil {
		return nil, err
	}

	var snap process.Snapshot
	switch s := v.(type) {
	case process.Snapshot:
		snap = s
	case *process.Snapshot:
		snap = *s
	default:
		return nil, fmt.Errorf(
			"instance %s does not contain a snapshot, got %T",
			rec.InstanceID,
			v,
		)
	}

	snap.Status.MustValidate()

	root, err := unmarshalRoot(m, snap.Root)
	if err != nil {
		return nil, err
	}

	return &process.Instance{
		InstanceID:    snap.InstanceID,
		ProcessType:   snap.ProcessType,
		BusinessKey:   snap.BusinessKey,
		Status:        snap.Status,
		CurrentStep:   snap.CurrentStep,
		History:       snap.History,
		Wait:          snap.Wait,
		Root:          root,
		Result:        snap.Result,
		FailureReason: snap.FailureReason,
		CreatedAt:     snap.CreatedAt,
		UpdatedAt:     snap.UpdatedAt,
	}, nil
}

// marshalRoot marshals root state to a packet.
//
// Pointers are dereferenced so that root types are always identified by their
// value type, regardless of how the definition constructs them.
func marshalRoot(m marshalkit.Marshaler, root process.Root) (marshalkit.Packet, error) {
	v := reflect.ValueOf(root)
	for v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	return m.Marshal(v.Interface())
}

// unmarshalRoot unmarshals root state from a packet.
//
// It always returns a pointer, as steps mutate root state in place.
func unmarshalRoot(m marshalkit.Marshaler, p marshalkit.Packet) (process.Root, error) {
	v, err := m.Unmarshal(p)
	if err != nil {
		return nil, err
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr {
		ptr := reflect.New(rv.Type())
		ptr.Elem().Set(rv)
		v = ptr.Interface()
	}

	return v, nil
}
