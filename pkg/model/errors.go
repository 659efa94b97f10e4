package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a document is not found.
	ErrNotFound = errors.New("document not found")
	// ErrExists is returned when creating a document that already exists.
	ErrExists = errors.New("document already exists")
	// ErrConflict is returned when a write carries a stale revision.
	ErrConflict = errors.New("revision conflict")
	// ErrDuplicateListener is returned when the same callback is
	// registered twice for the same event type.
	ErrDuplicateListener = errors.New("listener already registered")
	// ErrClosed is returned when operating on a closed hub, bus or store.
	ErrClosed = errors.New("closed")
	// ErrInternal marks invariant violations: defects in this layer or
	// in its data-source contract, never bad caller input. Callers should
	// treat these as fatal to the operation, not to the process.
	ErrInternal = errors.New("internal error")
)

// Internalf wraps ErrInternal with a formatted description so that
// invariant violations stay distinguishable from user and data errors.
func Internalf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInternal, fmt.Sprintf(format, args...))
}

// IsInternal reports whether err belongs to the internal invariant
// violation category.
func IsInternal(err error) bool {
	return errors.Is(err, ErrInternal)
}
