package storage

import "errors"

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("storage: not found")
	// ErrConflict is returned when a write violates a unique constraint.
	ErrConflict = errors.New("storage: conflict")
)
