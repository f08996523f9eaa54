package memorypersistence

import (
	"context"
	"sync"

	"github.com/outreachkit/engage/persistence"
)

// dataStore is an implementation of persistence.DataStore backed by an
// in-memory database.
type dataStore struct {
	m      sync.RWMutex
	db     *database
	closed bool
}

func (ds *dataStore) LoadProcessInstance(
	_ context.Context,
	ptype, key string,
) (persistence.ProcessInstance, error) {
	ds.m.RLock()
	defer ds.m.RUnlock()

	if ds.closed {
		return persistence.ProcessInstance{}, persistence.ErrDataStoreClosed
	}

	ds.db.mutex.RLock()
	defer ds.db.mutex.RUnlock()

	if inst, ok := ds.db.instances[instanceKey{ptype, key}]; ok {
		return inst, nil
	}

	return persistence.ProcessInstance{
		ProcessType: ptype,
		BusinessKey: key,
	}, nil
}

func (ds *dataStore) LoadProcessInstanceByID(
	_ context.Context,
	id string,
) (persistence.ProcessInstance, bool, error) {
	ds.m.RLock()
	defer ds.m.RUnlock()

	if ds.closed {
		return persistence.ProcessInstance{}, false, persistence.ErrDataStoreClosed
	}

	ds.db.mutex.RLock()
	defer ds.db.mutex.RUnlock()

	k, ok := ds.db.byID[id]
	if !ok {
		return persistence.ProcessInstance{}, false, nil
	}

	return ds.db.instances[k], true, nil
}

func (ds *dataStore) LoadActiveProcessInstances(
	_ context.Context,
) ([]persistence.ProcessInstance, error) {
	ds.m.RLock()
	defer ds.m.RUnlock()

	if ds.closed {
		return nil, persistence.ErrDataStoreClosed
	}

	ds.db.mutex.RLock()
	defer ds.db.mutex.RUnlock()

	var active []persistence.ProcessInstance
	for _, inst := range ds.db.instances {
		if !inst.Terminal {
			active = append(active, inst)
		}
	}

	return active, nil
}

func (ds *dataStore) SaveProcessInstance(
	_ context.Context,
	inst persistence.ProcessInstance,
) error {
	ds.m.RLock()
	defer ds.m.RUnlock()

	if ds.closed {
		return persistence.ErrDataStoreClosed
	}

	ds.db.mutex.Lock()
	defer ds.db.mutex.Unlock()

	k := instanceKey{inst.ProcessType, inst.BusinessKey}
	existing := ds.db.instances[k]

	if inst.Revision != existing.Revision || existing.Terminal {
		return persistence.ConflictError{
			ProcessType: inst.ProcessType,
			BusinessKey: inst.BusinessKey,
			Revision:    inst.Revision,
		}
	}

	inst.Revision++
	ds.db.instances[k] = inst
	ds.db.byID[inst.InstanceID] = k

	return nil
}

func (ds *dataStore) Close() error {
	ds.m.Lock()
	defer ds.m.Unlock()

	if ds.closed {
		return persistence.ErrDataStoreClosed
	}

	ds.closed = true
	ds.db.Close()

	return nil
}
