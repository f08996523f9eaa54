// Package syncx contains extensions to the sync package from Go's standard
// library.
package syncx

import (
	"context"
	"sync"
)

// Mutex is a context-aware mutex.
//
// The zero-value is an unlocked mutex.
type Mutex struct {
	init sync.Once
	ch   chan struct{}
}

// Lock acquires an exclusive lock on the mutex.
//
// It blocks until the mutex is acquired, or ctx is canceled.
func (m *Mutex) Lock(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	m.initialize()

	select {
	case <-ctx.Done():
		return ctx.Err()

	case m.ch <- struct{}{}:
		return nil
	}
}

// TryLock acquires an exclusive lock on the mutex only if it can be acquired
// without blocking.
//
// It returns true if the lock was acquired.
func (m *Mutex) TryLock() bool {
	m.initialize()

	select {
	case m.ch <- struct{}{}:
		return true

	default:
		return false
	}
}

// Unlock releases the mutex.
//
// It panics if the mutex is not currently locked.
func (m *Mutex) Unlock() {
	m.initialize()

	select {
	case <-m.ch:

	default:
		panic("mutex is not locked")
	}
}

func (m *Mutex) initialize() {
	m.init.Do(func() {
		m.ch = make(chan struct{}, 1)
	})
}
