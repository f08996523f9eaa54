package signal

import (
	"sync"
	"time"
)

// Router delivers signals to waiting subscriptions.
//
// Subscriptions are single-use. Once a signal is delivered to a subscription
// it is retired, so a duplicate delivery for the same wait is a no-op.
// Signals that arrive while no subscription matches are rejected, not
// buffered.
//
// Subscribe() and Deliver() may be called concurrently from independent
// instances.
type Router struct {
	m    sync.Mutex
	subs map[subKey]*Subscription
}

// subKey identifies the wait a subscription or signal is addressed to.
type subKey struct {
	businessKey string
	name        string
}

// Subscribe registers interest in the next signal with the given name
// addressed to the given business key.
//
// At most one live subscription may exist per (businessKey, name) pair;
// subscribing again replaces the previous subscription, which will never
// receive a signal.
func (r *Router) Subscribe(businessKey, name string) *Subscription {
	r.m.Lock()
	defer r.m.Unlock()

	if r.subs == nil {
		r.subs = map[subKey]*Subscription{}
	}

	k := subKey{businessKey, name}

	if prev, ok := r.subs[k]; ok {
		prev.retire()
	}

	s := &Subscription{
		router: r,
		key:    k,
		ch:     make(chan Signal, 1),
	}

	r.subs[k] = s

	return s
}

// Deliver routes a signal to the live subscription matching its business key
// and name.
//
// It returns false if no live subscription matches; the signal is discarded
// so the caller can report that nothing is currently waiting. Delivery is
// exactly-once per subscription: the matching subscription is retired before
// Deliver returns, so a duplicate call returns false.
func (r *Router) Deliver(businessKey, name, payload string) bool {
	r.m.Lock()
	defer r.m.Unlock()

	k := subKey{businessKey, name}

	s, ok := r.subs[k]
	if !ok {
		return false
	}

	delete(r.subs, k)
	s.retired = true

	s.ch <- Signal{
		BusinessKey: businessKey,
		Name:        name,
		Payload:     payload,
		ReceivedAt:  time.Now(),
	}

	return true
}

// A Subscription is a single-use registration for one signal.
type Subscription struct {
	router  *Router
	key     subKey
	ch      chan Signal
	retired bool // guarded by router.m
}

// Signaled returns a channel that receives the subscription's signal.
//
// The channel receives at most one value, and never closes.
func (s *Subscription) Signaled() <-chan Signal {
	return s.ch
}

// Cancel retires the subscription if it is still live.
//
// Cancelation is race-free against delivery: if a concurrent Deliver() call
// has already matched the subscription, the signal remains available on the
// Signaled() channel.
func (s *Subscription) Cancel() {
	s.router.m.Lock()
	defer s.router.m.Unlock()

	if !s.retired {
		s.retired = true
		delete(s.router.subs, s.key)
	}
}

// retire marks the subscription as no longer live.
//
// The caller must hold the router's mutex.
func (s *Subscription) retire() {
	s.retired = true
}
