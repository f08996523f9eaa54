package persistence

import (
	"errors"
	"fmt"
)

// ErrDataStoreClosed is returned when performing an operation on a data-store
// that has been closed.
var ErrDataStoreClosed = errors.New("data store is closed")

// ErrDataStoreLocked is returned by Provider.Open() if the data-store is
// already open for exclusive use by another engine instance.
var ErrDataStoreLocked = errors.New("data store is locked for exclusive use")

// ConflictError is an error indicating that a save caused an optimistic
// concurrency conflict.
type ConflictError struct {
	// ProcessType and BusinessKey identify the conflicting instance.
	ProcessType string
	BusinessKey string

	// Revision is the revision at which the save was attempted.
	Revision uint64
}

func (e ConflictError) Error() string {
	return fmt.Sprintf(
		"optimistic concurrency conflict saving instance %s/%s at revision %d",
		e.ProcessType,
		e.BusinessKey,
		e.Revision,
	)
}

// IsConflict returns true if err indicates an optimistic concurrency
// conflict.
func IsConflict(err error) bool {
	var c ConflictError
	return errors.As(err, &c)
}
