package vector

import (
	"errors"
	"fmt"
)

var (
	// ErrIndex wraps every failed vector store operation.
	ErrIndex = errors.New("vector index operation failed")

	// ErrCollectionNotFound is returned when a collection has not been created.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrEmbedding is returned when embedding generation fails.
	ErrEmbedding = errors.New("embedding failed")

	// ErrConnection is returned when the vector store connection fails.
	ErrConnection = errors.New("vector store connection failed")
)

// DimensionError reports a vector whose length differs from the configured
// embedding width.
type DimensionError struct {
	Expected int
	Got      int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

// CheckDimensions returns a *DimensionError when len(vec) != dim. A dim of 0
// disables the check.
func CheckDimensions(vec []float32, dim int) error {
	if dim > 0 && len(vec) != dim {
		return &DimensionError{Expected: dim, Got: len(vec)}
	}
	return nil
}

// IndexError wraps err with ErrIndex and the failing operation.
func IndexError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrIndex, op, err)
}
