// Package timer schedules cancellable wake-ups for suspended process
// instances.
package timer

import (
	"context"
	"sync"
	"time"

	"github.com/outreachkit/engage/internal/x/containerx/pqueue"
)

// Manager schedules wake-ups from a single monitor goroutine.
//
// Wake-ups are held on a deadline-ordered priority queue; the monitor sleeps
// until the earliest deadline and is woken early whenever the front of the
// queue changes. The manager itself never holds a goroutine per pending
// wake-up, so a bounded pool can service many suspended instances.
type Manager struct {
	m       sync.Mutex
	pending pqueue.Queue

	wakeOnce sync.Once
	wake     chan struct{}
}

// Run services wake-ups until ctx is canceled.
//
// It must be running for scheduled wake-ups to fire.
func (m *Manager) Run(ctx context.Context) error {
	m.init()

	for {
		next, ok := m.next()

		if !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-m.wake:
				continue
			}
		}

		t := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()

		case <-m.wake:
			// The front of the queue changed, re-arm against the new earliest
			// deadline.
			t.Stop()

		case now := <-t.C:
			m.fire(now)
		}
	}
}

// After schedules a wake-up that fires d from now.
func (m *Manager) After(d time.Duration) *Wakeup {
	return m.At(time.Now().Add(d))
}

// At schedules a wake-up that fires at time t.
//
// A deadline in the past fires on the monitor's next pass.
func (m *Manager) At(t time.Time) *Wakeup {
	m.init()

	w := &Wakeup{
		manager: m,
		at:      t,
		ch:      make(chan time.Time, 1),
	}

	m.m.Lock()
	front := m.pending.Push(w)
	m.m.Unlock()

	if front {
		m.notify()
	}

	return w
}

// next returns the earliest pending deadline.
func (m *Manager) next() (time.Time, bool) {
	m.m.Lock()
	defer m.m.Unlock()

	e, ok := m.pending.Peek()
	if !ok {
		return time.Time{}, false
	}

	return e.(*Wakeup).at, true
}

// fire resolves every wake-up that is due at or before now.
func (m *Manager) fire(now time.Time) {
	m.m.Lock()
	defer m.m.Unlock()

	for {
		e, ok := m.pending.Peek()
		if !ok || e.(*Wakeup).at.After(now) {
			return
		}

		m.pending.Pop()

		w := e.(*Wakeup)
		w.resolved = true
		w.ch <- now
	}
}

// notify wakes the monitor goroutine so that it re-arms its timer.
func (m *Manager) notify() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Manager) init() {
	m.wakeOnce.Do(func() {
		m.wake = make(chan struct{}, 1)
	})
}

// A Wakeup is a single scheduled wake-up.
type Wakeup struct {
	manager *Manager
	at      time.Time
	ch      chan time.Time

	// resolved is true once the wake-up has fired or been cancelled.
	// It is guarded by the manager's mutex, which makes cancellation and
	// firing mutually exclusive: exactly one of the two takes effect.
	resolved bool
}

// Expired returns a channel that receives the firing time.
//
// The channel receives at most one value, and never closes.
func (w *Wakeup) Expired() <-chan time.Time {
	return w.ch
}

// Cancel suppresses the wake-up.
//
// It returns false if the wake-up already fired (or was already cancelled),
// in which case the firing time remains available on the Expired() channel.
func (w *Wakeup) Cancel() bool {
	w.manager.m.Lock()
	defer w.manager.m.Unlock()

	if w.resolved {
		return false
	}

	w.resolved = true
	w.manager.pending.Remove(w)

	return true
}

// Less implements pqueue.Elem; earlier deadlines are higher priority.
func (w *Wakeup) Less(e pqueue.Elem) bool {
	return w.at.Before(e.(*Wakeup).at)
}
