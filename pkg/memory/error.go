package memory

import "errors"

var (
	// ErrNotConfigured is returned when memory operations are attempted
	// but no memory store has been configured.
	ErrNotConfigured = errors.New("memory not configured")

	// ErrEmptyText is returned when storing a record with no text.
	ErrEmptyText = errors.New("memory text must not be empty")

	// ErrRetentionUnsupported is returned by CleanupOld when the vector
	// index cannot delete by timestamp.
	ErrRetentionUnsupported = errors.New("vector index does not support retention cleanup")
)
