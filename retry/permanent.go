package retry

import "errors"

// PermanentError wraps an error to indicate that further attempts cannot
// succeed.
//
// The executor stops retrying as soon as it observes a permanent error,
// regardless of how many attempts the policy allows.
type PermanentError struct {
	Cause error
}

// Permanent wraps err to indicate that retrying cannot succeed.
//
// It returns nil if err is nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}

	return PermanentError{err}
}

func (e PermanentError) Error() string {
	return e.Cause.Error()
}

// Unwrap returns the underlying error.
func (e PermanentError) Unwrap() error {
	return e.Cause
}

// IsPermanent returns true if err indicates that retrying cannot succeed.
func IsPermanent(err error) bool {
	var p PermanentError
	return errors.As(err, &p)
}
