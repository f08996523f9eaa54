package fixtures

import (
	"context"

	"github.com/outreachkit/engage/persistence"
	"github.com/outreachkit/engage/persistence/memorypersistence"
)

// ProviderStub is a test implementation of the persistence.Provider
// interface.
type ProviderStub struct {
	persistence.Provider

	OpenFunc func(context.Context, string) (persistence.DataStore, error)
}

// Open returns a data-store for a specific application.
func (p *ProviderStub) Open(ctx context.Context, k string) (persistence.DataStore, error) {
	if p.OpenFunc != nil {
		return p.OpenFunc(ctx, k)
	}

	if p.Provider != nil {
		ds, err := p.Provider.Open(ctx, k)
		if ds != nil {
			ds = &DataStoreStub{DataStore: ds}
		}
		return ds, err
	}

	return nil, nil
}

// DataStoreStub is a test implementation of the persistence.DataStore
// interface.
type DataStoreStub struct {
	persistence.DataStore

	LoadProcessInstanceFunc        func(context.Context, string, string) (persistence.ProcessInstance, error)
	LoadProcessInstanceByIDFunc    func(context.Context, string) (persistence.ProcessInstance, bool, error)
	LoadActiveProcessInstancesFunc func(context.Context) ([]persistence.ProcessInstance, error)
	SaveProcessInstanceFunc        func(context.Context, persistence.ProcessInstance) error
	CloseFunc                      func() error
}

// NewDataStoreStub returns a new data-store stub that uses an in-memory
// persistence provider.
func NewDataStoreStub() *DataStoreStub {
	p := &ProviderStub{
		Provider: &memorypersistence.Provider{},
	}

	ds, err := p.Open(context.Background(), DefaultAppKey)
	if err != nil {
		panic(err)
	}

	return ds.(*DataStoreStub)
}

// LoadProcessInstance loads the instance with the given process type and
// business key.
func (ds *DataStoreStub) LoadProcessInstance(
	ctx context.Context,
	ptype, key string,
) (persistence.ProcessInstance, error) {
	if ds.LoadProcessInstanceFunc != nil {
		return ds.LoadProcessInstanceFunc(ctx, ptype, key)
	}

	if ds.DataStore != nil {
		return ds.DataStore.LoadProcessInstance(ctx, ptype, key)
	}

	return persistence.ProcessInstance{}, nil
}

// LoadProcessInstanceByID loads the instance with the given instance ID.
func (ds *DataStoreStub) LoadProcessInstanceByID(
	ctx context.Context,
	id string,
) (persistence.ProcessInstance, bool, error) {
	if ds.LoadProcessInstanceByIDFunc != nil {
		return ds.LoadProcessInstanceByIDFunc(ctx, id)
	}

	if ds.DataStore != nil {
		return ds.DataStore.LoadProcessInstanceByID(ctx, id)
	}

	return persistence.ProcessInstance{}, false, nil
}

// LoadActiveProcessInstances loads every instance that has not reached a
// terminal status.
func (ds *DataStoreStub) LoadActiveProcessInstances(
	ctx context.Context,
) ([]persistence.ProcessInstance, error) {
	if ds.LoadActiveProcessInstancesFunc != nil {
		return ds.LoadActiveProcessInstancesFunc(ctx)
	}

	if ds.DataStore != nil {
		return ds.DataStore.LoadActiveProcessInstances(ctx)
	}

	return nil, nil
}

// SaveProcessInstance creates or updates an instance.
func (ds *DataStoreStub) SaveProcessInstance(
	ctx context.Context,
	inst persistence.ProcessInstance,
) error {
	if ds.SaveProcessInstanceFunc != nil {
		return ds.SaveProcessInstanceFunc(ctx, inst)
	}

	if ds.DataStore != nil {
		return ds.DataStore.SaveProcessInstance(ctx, inst)
	}

	return nil
}

// Close closes the data-store.
func (ds *DataStoreStub) Close() error {
	if ds.CloseFunc != nil {
		return ds.CloseFunc()
	}

	if ds.DataStore != nil {
		return ds.DataStore.Close()
	}

	return nil
}
