// Package apperr defines the sentinel error classes shared across Waybill
// services. Services wrap these with context via fmt.Errorf and %w; the
// HTTP layer maps them to status codes with errors.Is.
package apperr

import "errors"

var (
	// ErrNotFound marks lookups for rows that do not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalid marks malformed or out-of-range input, rejected before
	// persistence.
	ErrInvalid = errors.New("invalid input")

	// ErrConflict marks invariant violations, such as starting a second
	// active sprint or completing a sprint that is not active.
	ErrConflict = errors.New("conflict")
)
