// Package cached memoizes an Embedder's results in a ristretto cache so that
// repeated queries do not reach the provider.
package cached

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"

	"github.com/papercomputeco/mnemo/pkg/embeddings"
)

// DefaultMaxEntries bounds the cache when Config.MaxEntries is zero.
const DefaultMaxEntries = 10000

// Config configures the cache.
type Config struct {
	// MaxEntries is the approximate number of embeddings retained. Each
	// entry costs 1.
	MaxEntries int64
}

// Embedder wraps another Embedder with a text -> vector cache.
type Embedder struct {
	inner embeddings.Embedder
	cache *ristretto.Cache
}

// New wraps inner.
func New(inner embeddings.Embedder, c Config) (*Embedder, error) {
	if c.MaxEntries <= 0 {
		c.MaxEntries = DefaultMaxEntries
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: c.MaxEntries * 10,
		MaxCost:     c.MaxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedding cache: %w", err)
	}
	return &Embedder{inner: inner, cache: cache}, nil
}

// Embed returns the cached vector for text or computes and caches it. The
// returned slice is a copy.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e.cache.Get(text); ok {
		if vec, ok := v.([]float32); ok {
			return append([]float32(nil), vec...), nil
		}
	}
	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Set(text, append([]float32(nil), vec...), 1)
	return vec, nil
}

// Wait blocks until buffered writes are applied.
func (e *Embedder) Wait() {
	e.cache.Wait()
}

// Close closes the cache and the wrapped embedder.
func (e *Embedder) Close() error {
	e.cache.Close()
	return e.inner.Close()
}

var _ embeddings.Embedder = (*Embedder)(nil)
