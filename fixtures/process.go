// Package fixtures contains test fixtures and stubs of the engine's
// interfaces.
package fixtures

import (
	"reflect"

	"github.com/dogmatiq/marshalkit"
	"github.com/dogmatiq/marshalkit/codec"
	"github.com/dogmatiq/marshalkit/codec/json"
	"github.com/outreachkit/engage/process"
)

// DefaultAppKey is the default application key for test data-stores.
const DefaultAppKey = "bf6d9b39-b6a7-4fd1-ae01-78b4bfbc5274"

// ProcessRoot is a test implementation of the process.Root interface.
type ProcessRoot struct {
	Value string
}

// Marshaler is a marshaler that recognizes the engine's snapshot type and the
// fixture root types.
var Marshaler = newMarshaler()

func newMarshaler() marshalkit.Marshaler {
	m, err := codec.NewMarshaler(
		[]reflect.Type{
			reflect.TypeOf(process.Snapshot{}),
			reflect.TypeOf(ProcessRoot{}),
		},
		[]codec.Codec{
			&json.Codec{},
		},
	)
	if err != nil {
		panic(err)
	}

	return m
}

// DefinitionStub is a test implementation of the process.Definition
// interface.
type DefinitionStub struct {
	process.Definition

	ProcessTypeFunc func() string
	NewRootFunc     func() process.Root
	StepsFunc       func() []process.Step
}

// ProcessType returns a unique name identifying the process.
func (d *DefinitionStub) ProcessType() string {
	if d.ProcessTypeFunc != nil {
		return d.ProcessTypeFunc()
	}

	if d.Definition != nil {
		return d.Definition.ProcessType()
	}

	return "<process>"
}

// NewRoot returns a new, zero-valued root state for an instance.
func (d *DefinitionStub) NewRoot() process.Root {
	if d.NewRootFunc != nil {
		return d.NewRootFunc()
	}

	if d.Definition != nil {
		return d.Definition.NewRoot()
	}

	return &ProcessRoot{}
}

// Steps returns the step table, in execution order.
func (d *DefinitionStub) Steps() []process.Step {
	if d.StepsFunc != nil {
		return d.StepsFunc()
	}

	if d.Definition != nil {
		return d.Definition.Steps()
	}

	return nil
}
