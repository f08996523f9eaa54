package boltpersistence

import (
	"context"
	"sync"

	"github.com/outreachkit/engage/internal/x/bboltx"
	"github.com/outreachkit/engage/persistence"
	"go.etcd.io/bbolt"
)

// dataStore is an implementation of persistence.DataStore for BoltDB.
type dataStore struct {
	db     *bbolt.DB
	appKey []byte

	m       sync.RWMutex
	release func(string) error
}

func (ds *dataStore) LoadProcessInstance(
	_ context.Context,
	ptype, key string,
) (_ persistence.ProcessInstance, err error) {
	defer bboltx.Recover(&err)

	ds.m.RLock()
	defer ds.m.RUnlock()

	if ds.release == nil {
		return persistence.ProcessInstance{}, persistence.ErrDataStoreClosed
	}

	inst := persistence.ProcessInstance{
		ProcessType: ptype,
		BusinessKey: key,
	}

	bboltx.View(
		ds.db,
		func(tx *bbolt.Tx) {
			if b := bboltx.Bucket(
				tx,
				ds.appKey,
				processBucketKey,
				[]byte(ptype),
			); b != nil {
				if data := b.Get([]byte(key)); data != nil {
					inst = unmarshalInstance(ptype, key, data)
				}
			}
		},
	)

	return inst, nil
}

func (ds *dataStore) LoadProcessInstanceByID(
	ctx context.Context,
	id string,
) (_ persistence.ProcessInstance, ok bool, err error) {
	defer bboltx.Recover(&err)

	ds.m.RLock()
	defer ds.m.RUnlock()

	if ds.release == nil {
		return persistence.ProcessInstance{}, false, persistence.ErrDataStoreClosed
	}

	var inst persistence.ProcessInstance

	bboltx.View(
		ds.db,
		func(tx *bbolt.Tx) {
			b := bboltx.Bucket(tx, ds.appKey, idBucketKey)
			if b == nil {
				return
			}

			data := b.Get([]byte(id))
			if data == nil {
				return
			}

			ptype, key := unmarshalInstanceRef(data)

			if pb := bboltx.Bucket(
				tx,
				ds.appKey,
				processBucketKey,
				[]byte(ptype),
			); pb != nil {
				if data := pb.Get([]byte(key)); data != nil {
					inst = unmarshalInstance(ptype, key, data)
					ok = true
				}
			}
		},
	)

	return inst, ok, nil
}

func (ds *dataStore) LoadActiveProcessInstances(
	_ context.Context,
) (_ []persistence.ProcessInstance, err error) {
	defer bboltx.Recover(&err)

	ds.m.RLock()
	defer ds.m.RUnlock()

	if ds.release == nil {
		return nil, persistence.ErrDataStoreClosed
	}

	var active []persistence.ProcessInstance

	bboltx.View(
		ds.db,
		func(tx *bbolt.Tx) {
			root := bboltx.Bucket(tx, ds.appKey, processBucketKey)
			if root == nil {
				return
			}

			bboltx.Must(root.ForEach(
				func(ptype, v []byte) error {
					if v != nil {
						// Not a nested process-type bucket.
						return nil
					}

					return root.Bucket(ptype).ForEach(
						func(key, data []byte) error {
							inst := unmarshalInstance(
								string(ptype),
								string(key),
								data,
							)

							if !inst.Terminal {
								active = append(active, inst)
							}

							return nil
						},
					)
				},
			))
		},
	)

	return active, nil
}

func (ds *dataStore) SaveProcessInstance(
	_ context.Context,
	inst persistence.ProcessInstance,
) (err error) {
	defer bboltx.Recover(&err)

	ds.m.RLock()
	defer ds.m.RUnlock()

	if ds.release == nil {
		return persistence.ErrDataStoreClosed
	}

	bboltx.Update(
		ds.db,
		func(tx *bbolt.Tx) {
			b := bboltx.CreateBucketIfNotExists(
				tx,
				ds.appKey,
				processBucketKey,
				[]byte(inst.ProcessType),
			)

			var (
				revision uint64
				terminal bool
			)

			if data := b.Get([]byte(inst.BusinessKey)); data != nil {
				existing := unmarshalInstance(
					inst.ProcessType,
					inst.BusinessKey,
					data,
				)
				revision = existing.Revision
				terminal = existing.Terminal
			}

			if inst.Revision != revision || terminal {
				bboltx.Must(persistence.ConflictError{
					ProcessType: inst.ProcessType,
					BusinessKey: inst.BusinessKey,
					Revision:    inst.Revision,
				})
			}

			inst.Revision++
			bboltx.Put(
				b,
				[]byte(inst.BusinessKey),
				marshalInstance(inst),
			)

			ids := bboltx.CreateBucketIfNotExists(
				tx,
				ds.appKey,
				idBucketKey,
			)
			bboltx.Put(
				ids,
				[]byte(inst.InstanceID),
				marshalInstanceRef(inst.ProcessType, inst.BusinessKey),
			)
		},
	)

	return nil
}

func (ds *dataStore) Close() error {
	ds.m.Lock()
	defer ds.m.Unlock()

	if ds.release == nil {
		return persistence.ErrDataStoreClosed
	}

	r := ds.release
	ds.db = nil
	ds.release = nil

	return r(string(ds.appKey))
}
