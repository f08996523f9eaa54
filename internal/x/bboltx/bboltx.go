// Package bboltx provides terse helpers for working with BoltDB databases.
//
// The MustXXX() functions panic with a PanicSentinel on failure; Recover()
// converts such a panic back into an error at the API boundary.
package bboltx

import (
	"context"
	"os"

	"github.com/dogmatiq/linger"
	"go.etcd.io/bbolt"
)

// PanicSentinel is a wrapper value used to identify panics that are caused by
// one of the MustXXX() functions.
type PanicSentinel struct {
	// Cause is the error that caused the panic.
	Cause error
}

// Must panics if err is non-nil.
func Must(err error) {
	if err != nil {
		panic(PanicSentinel{err})
	}
}

// Recover recovers from a panic caused by one of the MustXXX() functions.
//
// It is intended to be used in a defer statement. The error that caused the
// panic is assigned to *err.
func Recover(err *error) {
	if err == nil {
		panic("err must be a non-nil pointer")
	}

	switch v := recover().(type) {
	case PanicSentinel:
		*err = v.Cause
	case nil:
	default:
		panic(v)
	}
}

// Open creates and opens a database at the given path.
//
// If mode is zero, 0600 is used.
//
// If the deadline from ctx is sooner than opts.Timeout, the context deadline
// is used instead.
func Open(
	ctx context.Context,
	path string,
	mode os.FileMode,
	opts *bbolt.Options,
) (*bbolt.DB, error) {
	if mode == 0 {
		mode = 0600
	}

	if ctx.Err() != nil {
		// Bail early if the context has already ended, otherwise a
		// non-positive timeout in the BoltDB options would fall back to the
		// default timeout.
		return nil, ctx.Err()
	}

	if timeout, ok := linger.FromContextDeadline(ctx); ok {
		if opts == nil {
			clone := *bbolt.DefaultOptions
			opts = &clone
			opts.Timeout = timeout
		} else if opts.Timeout == 0 || opts.Timeout > timeout {
			clone := *opts
			opts = &clone
			opts.Timeout = timeout
		}
	}

	db, err := bbolt.Open(path, mode, opts)

	if err != nil && err.Error() == "timeout" {
		err = context.DeadlineExceeded
	}

	return db, err
}

// View executes a read-only transaction, propagating MustXXX() panics to the
// caller.
func View(db *bbolt.DB, fn func(*bbolt.Tx)) {
	Must(db.View(
		func(tx *bbolt.Tx) (err error) {
			defer Recover(&err)
			fn(tx)
			return nil
		},
	))
}

// Update executes a read/write transaction, propagating MustXXX() panics to
// the caller.
func Update(db *bbolt.DB, fn func(*bbolt.Tx)) {
	Must(db.Update(
		func(tx *bbolt.Tx) (err error) {
			defer Recover(&err)
			fn(tx)
			return nil
		},
	))
}
