// Package vector provides the vector index contract used by mnemo and its
// driver implementations.
package vector

import (
	"context"
	"time"
)

// Collection names used across mnemo.
const (
	CollectionMemory   = "conversation_memory"
	CollectionChunks   = "document_chunks"
	CollectionInsights = "document_insights"
	CollectionSemantic = "semantic_search"
)

// DefaultDimensions is the embedding width of the reference deployment.
const DefaultDimensions uint = 1536

// Point is a vector plus its payload, ready for upsert.
type Point struct {
	// ID is optional. The index assigns a UUID when empty.
	ID string

	Vector []float32

	// Payload holds JSON compatible values: strings, numbers, bools,
	// []any and map[string]any.
	Payload map[string]any
}

// Match is a single k-NN search hit.
type Match struct {
	ID string

	// Score represents the similarity score (higher = more similar).
	Score float32

	Payload map[string]any
}

// Index handles collections of vectors with their payloads.
type Index interface {
	// CreateCollection creates a collection of vectors of width dim.
	// An existing collection is not an error.
	CreateCollection(ctx context.Context, name string, dim uint) error

	// Upsert stores points and returns their ids in input order.
	Upsert(ctx context.Context, collection string, points []Point) ([]string, error)

	// Search finds the limit most similar points to vec, best first.
	Search(ctx context.Context, collection string, vec []float32, limit int) ([]Match, error)

	// Delete removes points by id.
	Delete(ctx context.Context, collection string, ids []string) error

	// Close releases any resources held by the index.
	Close() error
}

// Pruner is implemented by indexes that can delete by a payload timestamp.
// field names a payload key holding unix seconds.
type Pruner interface {
	DeleteBefore(ctx context.Context, collection string, field string, cutoff time.Time) (int, error)
}
