// Package apperr holds the sentinel errors shared across the store, services and transports.
package apperr

import "errors"

var (
	ErrInvalidPath   = errors.New("invalid path")
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")
	ErrDisabled      = errors.New("disabled")
)

// IsExpected reports whether err is one of the outcomes callers handle as a
// normal result rather than an IO failure.
func IsExpected(err error) bool {
	return errors.Is(err, ErrInvalidPath) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrDisabled)
}
