// Package apperr defines sentinel errors shared across layers.
package apperr

import "errors"

var (
	// ErrNotFound marks a missing destination log or resource.
	ErrNotFound = errors.New("not found")
	// ErrStoreUnavailable marks a durable dedup store that cannot be reached.
	ErrStoreUnavailable = errors.New("dedup store unavailable")
)
