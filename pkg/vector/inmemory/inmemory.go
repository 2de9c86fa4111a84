// Package inmemory provides an in-process vector.Index backed by maps and
// brute-force cosine similarity. It is used for tests and single-process
// deployments that do not need persistence.
package inmemory

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/mnemo/pkg/vector"
)

type collection struct {
	dim    uint
	points map[string]vector.Point
	order  []string
}

// Index is a concurrency-safe in-memory vector index.
type Index struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

// NewIndex returns an empty in-memory index.
func NewIndex() *Index {
	return &Index{collections: make(map[string]*collection)}
}

// CreateCollection registers a collection. Creating an existing collection
// is a no-op.
func (i *Index) CreateCollection(_ context.Context, name string, dim uint) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if _, ok := i.collections[name]; ok {
		return nil
	}
	i.collections[name] = &collection{dim: dim, points: make(map[string]vector.Point)}
	return nil
}

// Upsert stores points, replacing any point with the same id. Points without
// an id are assigned a fresh uuid.
func (i *Index) Upsert(_ context.Context, name string, points []vector.Point) ([]string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	c, ok := i.collections[name]
	if !ok {
		return nil, vector.IndexError("upsert "+name, vector.ErrCollectionNotFound)
	}

	ids := make([]string, 0, len(points))
	for _, p := range points {
		if err := vector.CheckDimensions(p.Vector, int(c.dim)); err != nil {
			return nil, err
		}
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if _, exists := c.points[p.ID]; !exists {
			c.order = append(c.order, p.ID)
		}
		c.points[p.ID] = vector.Point{
			ID:      p.ID,
			Vector:  append([]float32(nil), p.Vector...),
			Payload: p.Payload,
		}
		ids = append(ids, p.ID)
	}
	return ids, nil
}

// Search returns up to limit points ordered by descending cosine similarity.
// Ties keep insertion order.
func (i *Index) Search(_ context.Context, name string, vec []float32, limit int) ([]vector.Match, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	c, ok := i.collections[name]
	if !ok {
		return nil, vector.IndexError("search "+name, vector.ErrCollectionNotFound)
	}
	if err := vector.CheckDimensions(vec, int(c.dim)); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []vector.Match{}, nil
	}

	matches := make([]vector.Match, 0, len(c.order))
	for _, id := range c.order {
		p := c.points[id]
		matches = append(matches, vector.Match{
			ID:      p.ID,
			Score:   Cosine(vec, p.Vector),
			Payload: p.Payload,
		})
	}
	sort.SliceStable(matches, func(a, b int) bool {
		return matches[a].Score > matches[b].Score
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// Delete removes points by id. Unknown ids are ignored.
func (i *Index) Delete(_ context.Context, name string, ids []string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	c, ok := i.collections[name]
	if !ok {
		return vector.IndexError("delete "+name, vector.ErrCollectionNotFound)
	}
	remove := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		remove[id] = struct{}{}
		delete(c.points, id)
	}
	c.order = filterOrder(c.order, remove)
	return nil
}

// DeleteBefore removes every point whose payload field holds a unix
// timestamp (seconds) older than cutoff.
func (i *Index) DeleteBefore(_ context.Context, name, field string, cutoff time.Time) (int, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	c, ok := i.collections[name]
	if !ok {
		return 0, vector.IndexError("prune "+name, vector.ErrCollectionNotFound)
	}

	remove := make(map[string]struct{})
	for id, p := range c.points {
		ts, ok := vector.PayloadInt(p.Payload, field)
		if ok && ts < cutoff.Unix() {
			remove[id] = struct{}{}
			delete(c.points, id)
		}
	}
	c.order = filterOrder(c.order, remove)
	return len(remove), nil
}

// Count reports the number of points in a collection.
func (i *Index) Count(name string) int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if c, ok := i.collections[name]; ok {
		return len(c.points)
	}
	return 0
}

// Close is a no-op.
func (i *Index) Close() error {
	return nil
}

func filterOrder(order []string, remove map[string]struct{}) []string {
	if len(remove) == 0 {
		return order
	}
	kept := order[:0]
	for _, id := range order {
		if _, gone := remove[id]; !gone {
			kept = append(kept, id)
		}
	}
	return kept
}

// Cosine returns the cosine similarity of a and b. Zero-norm inputs score 0.
func Cosine(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for k := range a {
		dot += float64(a[k]) * float64(b[k])
		na += float64(a[k]) * float64(a[k])
		nb += float64(b[k]) * float64(b[k])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
