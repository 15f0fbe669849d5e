package plugin

import (
	"errors"
	"fmt"
)

// ErrInconsistent marks a programming-invariant violation in the data, such
// as an entity claiming a role its attributes cannot support. Never retried
// and never swallowed.
var ErrInconsistent = errors.New("inconsistent entity data")

// BackendError wraps a failure talking to a backend. Transient failures
// (connection refused, timeouts) are retried with backoff by the task
// layer; rejections are logged and not retried.
type BackendError struct {
	// Backend names the failing backend.
	Backend string
	// Op names the attempted operation.
	Op string
	// Transient marks the error as retryable.
	Transient bool
	// Err is the underlying failure.
	Err error
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Backend, e.Op, e.Err)
}

// Unwrap exposes the underlying failure.
func (e *BackendError) Unwrap() error { return e.Err }

// NewBackendError wraps a permanent backend rejection.
func NewBackendError(backend, op string, err error) *BackendError {
	return &BackendError{Backend: backend, Op: op, Err: err}
}

// NewTransientError wraps a retryable backend failure.
func NewTransientError(backend, op string, err error) *BackendError {
	return &BackendError{Backend: backend, Op: op, Transient: true, Err: err}
}

// IsTransient reports whether an error is a retryable backend failure.
func IsTransient(err error) bool {
	var be *BackendError
	return errors.As(err, &be) && be.Transient
}
