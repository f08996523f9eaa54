// Package engage provides a durable engine for executing bounded, multi-step
// business processes.
//
// A process is described by a definition: a fixed, ordered table of steps with
// per-step retry policies, fallback recovery and at most one suspend point.
// The engine persists a snapshot of each instance after every step, so that a
// restart resumes each instance exactly where it left off.
package engage

import (
	"context"
	"sync"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/outreachkit/engage/internal/cache"
	"github.com/outreachkit/engage/persistence"
	"github.com/outreachkit/engage/process"
	"github.com/outreachkit/engage/signal"
	"github.com/outreachkit/engage/timer"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Engine hosts a set of process definitions and executes their instances.
type Engine struct {
	opts   *engineOptions
	defs   map[string]process.Definition
	router *signal.Router
	timers *timer.Manager
	cache  *cache.Cache

	// ds is the application's data-store. It is populated by Run() before
	// started is closed.
	ds      persistence.DataStore
	started chan struct{}

	m           sync.Mutex
	queue       []string
	queued      map[string]struct{}
	wake        chan struct{}
	waits       map[string]*waitReg
	resolutions map[string]resolution
	cancels     map[string]struct{}
	done        map[string]chan struct{}
	failures    map[string]uint
}

// New returns a new engine that hosts the definitions provided via the
// WithDefinition() option.
func New(options ...EngineOption) *Engine {
	opts := resolveEngineOptions(options...)

	defs := map[string]process.Definition{}
	for _, d := range opts.Definitions {
		defs[d.ProcessType()] = d
	}

	return &Engine{
		opts:   opts,
		defs:   defs,
		router: &signal.Router{},
		timers: &timer.Manager{},
		cache: &cache.Cache{
			Logger: opts.Logger,
		},
		started:     make(chan struct{}),
		queued:      map[string]struct{}{},
		wake:        make(chan struct{}, 1),
		waits:       map[string]*waitReg{},
		resolutions: map[string]resolution{},
		cancels:     map[string]struct{}{},
		done:        map[string]chan struct{}{},
		failures:    map[string]uint{},
	}
}

// Run executes process instances until ctx is canceled or an error occurs.
//
// It opens the application's data-store, recovers any instances that were
// active when the engine last stopped, and then consumes work until ctx is
// canceled.
//
// Run() may be called at most once per engine.
func (e *Engine) Run(ctx context.Context) error {
	ds, err := e.opts.PersistenceProvider.Open(
		ctx,
		e.opts.ApplicationKey,
	)
	if err != nil {
		return err
	}
	defer ds.Close()

	e.ds = ds
	close(e.started)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return e.timers.Run(ctx)
	})

	g.Go(func() error {
		return e.cache.Run(ctx)
	})

	g.Go(func() error {
		if err := e.recoverInstances(ctx); err != nil {
			return err
		}

		return e.consume(ctx)
	})

	return g.Wait()
}

// ready blocks until Run() has opened the data-store, then returns it.
func (e *Engine) ready(ctx context.Context) (persistence.DataStore, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-e.started:
		return e.ds, nil
	}
}

// consume dispatches queued instances to workers until ctx is canceled.
func (e *Engine) consume(ctx context.Context) error {
	sem := semaphore.NewWeighted(
		int64(e.opts.ConcurrencyLimit),
	)

	for {
		id, ok := e.dequeue()

		if !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-e.wake:
				continue
			}
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			return err
		}

		go func() {
			defer sem.Release(1)
			e.dispatch(ctx, id)
		}()
	}
}

// dispatch executes a single instance, scheduling a retry with backoff if it
// can not be executed for infrastructure reasons.
func (e *Engine) dispatch(ctx context.Context, id string) {
	err := e.executeInstance(ctx, id)

	if err == nil {
		e.m.Lock()
		delete(e.failures, id)
		e.m.Unlock()
		return
	}

	if ctx.Err() != nil {
		return
	}

	e.m.Lock()
	e.failures[id]++
	n := e.failures[id]
	e.m.Unlock()

	delay := e.opts.RecoveryBackoff(err, n)

	logging.Log(
		e.opts.Logger,
		"instance %s could not be executed, retrying in %s: %s",
		id,
		delay,
		err,
	)

	w := e.timers.After(delay)

	go func() {
		select {
		case <-ctx.Done():
			w.Cancel()
		case <-w.Expired():
			e.enqueue(id)
		}
	}()
}

// enqueue adds an instance to the work queue.
//
// Enqueueing is idempotent: an instance that is already queued is not queued
// a second time.
func (e *Engine) enqueue(id string) {
	e.m.Lock()

	if _, ok := e.queued[id]; !ok {
		e.queued[id] = struct{}{}
		e.queue = append(e.queue, id)
	}

	e.m.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// dequeue removes the next instance from the work queue.
func (e *Engine) dequeue() (string, bool) {
	e.m.Lock()
	defer e.m.Unlock()

	if len(e.queue) == 0 {
		return "", false
	}

	id := e.queue[0]
	e.queue = e.queue[1:]
	delete(e.queued, id)

	return id, true
}

// doneSignal returns a channel that is closed when the instance with the
// given ID reaches a terminal status.
func (e *Engine) doneSignal(id string) <-chan struct{} {
	e.m.Lock()
	defer e.m.Unlock()

	ch, ok := e.done[id]
	if !ok {
		ch = make(chan struct{})
		e.done[id] = ch
	}

	return ch
}

// markDone wakes any callers blocked on the instance with the given ID and
// discards the engine's transient state for it.
func (e *Engine) markDone(id string) {
	e.m.Lock()
	defer e.m.Unlock()

	if ch, ok := e.done[id]; ok {
		close(ch)
		delete(e.done, id)
	}

	delete(e.cancels, id)
	delete(e.resolutions, id)
	delete(e.failures, id)
}

// cancelRequested returns true if an operator has requested cancelation of
// the instance with the given ID.
func (e *Engine) cancelRequested(id string) bool {
	e.m.Lock()
	defer e.m.Unlock()

	_, ok := e.cancels[id]
	return ok
}
