package cache

import (
	"github.com/dogmatiq/dodeca/logging"
	"github.com/outreachkit/engage/internal/x/syncx"
)

// Record is an entry in the cache.
type Record struct {
	// Instance is the cached process instance. A nil value means the
	// instance has not been loaded into the cache, it does not indicate
	// that the instance does not exist.
	Instance interface{}

	id    string
	cache *Cache
	m     syncx.Mutex
	state recordState
	keep  bool
}

type recordState int

const (
	// active means the record has been used since the last eviction cycle.
	active recordState = iota

	// idle means the record has not been used since the last eviction
	// cycle. Idle records are removed on the next cycle.
	idle

	// removed means the record has been removed from the cache. A removed
	// record must not be reused, as a new record may have been added to the
	// cache with the same ID.
	removed
)

// KeepAlive marks the record to be retained when it is released.
//
// If it is not called, the record is removed from the cache when it is
// released, forcing the next acquirer to reload the instance.
func (r *Record) KeepAlive() {
	r.keep = true
}

// Release unlocks the record, retaining it in the cache only if KeepAlive()
// was called since it was acquired.
func (r *Record) Release() {
	if r.keep {
		r.keep = false
		r.state = active
	} else {
		r.remove("released without keep-alive")
	}

	r.m.Unlock()
}

// remove removes the record from the cache. The record must be locked.
func (r *Record) remove(reason string) {
	r.state = removed
	r.cache.records.Delete(r.id)

	if logging.IsDebug(r.cache.Logger) {
		logging.Debug(
			r.cache.Logger,
			"instance record removed (%s): %s (%p)",
			reason,
			r.id,
			r,
		)
	}
}

// evict removes the record from the cache if it has been idle for a full
// eviction cycle.
func (r *Record) evict() {
	// Skip records that are currently locked. They are in use and hence
	// not eligible for eviction this cycle anyway.
	if !r.m.TryLock() {
		return
	}
	defer r.m.Unlock()

	switch r.state {
	case active:
		r.state = idle
	case idle:
		r.remove("evicted")
	}
}
