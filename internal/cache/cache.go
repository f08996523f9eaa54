// Package cache implements an in-memory cache of process instances, keyed by
// instance ID.
//
// Acquiring a record also acquires exclusive ownership of the instance, which
// is how the engine guarantees that two executions of the same instance never
// overlap.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/linger"
)

// DefaultTTL is the default *minimum* period of time to keep cache records in
// memory after they were last used.
const DefaultTTL = 1 * time.Hour

// Cache is an in-memory cache of process instances.
type Cache struct {
	// TTL is the *minimum* period of time to keep cache records in memory
	// after they were last used. If it is non-positive, DefaultTTL is used.
	TTL time.Duration

	// Logger is the target for log messages about modifications to the
	// cache.
	Logger logging.Logger

	records sync.Map
}

// Acquire locks and returns the cache record with the given ID.
//
// If the record has already been acquired, it blocks until the record is
// released or ctx is canceled.
func (c *Cache) Acquire(ctx context.Context, id string) (*Record, error) {
	for {
		rec := &Record{
			id:    id,
			cache: c,
		}

		if x, loaded := c.records.LoadOrStore(id, rec); loaded {
			rec = x.(*Record)
		} else if logging.IsDebug(c.Logger) {
			logging.Debug(
				c.Logger,
				"instance record added: %s (%p)",
				id,
				rec,
			)
		}

		if err := rec.m.Lock(ctx); err != nil {
			return nil, err
		}

		if rec.state != removed {
			return rec, nil
		}

		// This specific record was removed from the cache while we were
		// waiting for the lock, so we try again, creating a new record if
		// necessary. The mutex is unlocked so that any other blocked
		// acquirers discover the removal too.
		rec.m.Unlock()
	}
}

// Run evicts idle records from the cache until ctx is canceled.
func (c *Cache) Run(ctx context.Context) error {
	for {
		if err := linger.Sleep(ctx, c.TTL, DefaultTTL); err != nil {
			return err
		}

		c.records.Range(
			func(_, x interface{}) bool {
				rec := x.(*Record)
				rec.evict()
				return true
			},
		)
	}
}
