package util

import "errors"

// Sentinel errors for common failure modes
var (
	// ErrValidation indicates malformed caller input; nothing was mutated
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates a song, supervisor or file lookup missed
	ErrNotFound = errors.New("not found")

	// ErrAllocationExhausted indicates no free legacy code could be found.
	// It signals catalog saturation, not a caller mistake.
	ErrAllocationExhausted = errors.New("identity allocation exhausted")

	// ErrTransient indicates a network or I/O failure worth re-presenting later
	ErrTransient = errors.New("transient I/O failure")

	// ErrWriterBusy indicates another process owns the catalog writer lock
	ErrWriterBusy = errors.New("catalog is owned by another writer")

	// ErrUnstable indicates a watched file kept changing size
	ErrUnstable = errors.New("file still being written")

	// ErrClosed indicates the catalog writer has shut down
	ErrClosed = errors.New("catalog writer closed")

	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrUnsupported indicates a file format that is not ingested
	ErrUnsupported = errors.New("unsupported")
)
