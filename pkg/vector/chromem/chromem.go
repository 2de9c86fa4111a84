// Package chromem provides an embedded vector.Index on chromem-go, optionally
// persisted to disk.
package chromem

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"

	"github.com/papercomputeco/mnemo/pkg/vector"
)

// Config holds configuration for the chromem index.
type Config struct {
	// Path persists collections as gob files under this directory.
	// Empty keeps everything in memory.
	Path string

	// Compress gzips persisted files.
	Compress bool
}

// Index implements vector.Index on chromem-go. chromem does not support
// range filters, so the index is not a vector.Pruner.
type Index struct {
	db     *chromem.DB
	logger *slog.Logger

	mu          sync.RWMutex
	collections map[string]*entry
}

type entry struct {
	col *chromem.Collection
	dim uint
}

// NewIndex opens an in-memory or persistent chromem database.
func NewIndex(c Config, logger *slog.Logger) (*Index, error) {
	db := chromem.NewDB()
	if c.Path != "" {
		var err error
		db, err = chromem.NewPersistentDB(c.Path, c.Compress)
		if err != nil {
			return nil, fmt.Errorf("%w: opening chromem db at %s: %w", vector.ErrConnection, c.Path, err)
		}
	}
	logger.Info("chromem vector index initialized", "path", c.Path)
	return &Index{db: db, logger: logger, collections: make(map[string]*entry)}, nil
}

// CreateCollection gets or creates a collection.
func (d *Index) CreateCollection(_ context.Context, name string, dim uint) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.collections[name]; ok {
		return nil
	}
	// Embeddings are always provided by the caller, so no embedding func.
	col, err := d.db.GetOrCreateCollection(name, nil, nil)
	if err != nil {
		return vector.IndexError("create collection "+name, err)
	}
	d.collections[name] = &entry{col: col, dim: dim}
	return nil
}

func (d *Index) lookup(name string) (*entry, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.collections[name]
	if !ok {
		return nil, vector.ErrCollectionNotFound
	}
	return e, nil
}

// Upsert adds documents. chromem replaces documents that share an id.
// Zero vectors are rejected because chromem normalizes every embedding.
func (d *Index) Upsert(ctx context.Context, name string, points []vector.Point) ([]string, error) {
	e, err := d.lookup(name)
	if err != nil {
		return nil, vector.IndexError("upsert "+name, err)
	}

	ids := make([]string, 0, len(points))
	for _, p := range points {
		if err := vector.CheckDimensions(p.Vector, int(e.dim)); err != nil {
			return nil, err
		}
		if isZero(p.Vector) {
			return nil, vector.IndexError("upsert "+name, fmt.Errorf("point %q has a zero vector", p.ID))
		}
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		content, err := json.Marshal(p.Payload)
		if err != nil {
			return nil, vector.IndexError("upsert "+name, fmt.Errorf("encoding payload for %s: %w", p.ID, err))
		}
		err = e.col.AddDocument(ctx, chromem.Document{
			ID:        p.ID,
			Content:   string(content),
			Embedding: append([]float32(nil), p.Vector...),
		})
		if err != nil {
			return nil, vector.IndexError("upsert "+name, err)
		}
		ids = append(ids, p.ID)
	}

	d.logger.Debug("upserted points to chromem", "collection", name, "count", len(ids))
	return ids, nil
}

// Search queries by embedding. chromem rejects nResults above the
// collection size, so the limit is capped at Count. A zero query vector
// matches nothing.
func (d *Index) Search(ctx context.Context, name string, vec []float32, limit int) ([]vector.Match, error) {
	e, err := d.lookup(name)
	if err != nil {
		return nil, vector.IndexError("search "+name, err)
	}
	if err := vector.CheckDimensions(vec, int(e.dim)); err != nil {
		return nil, err
	}

	limit = min(limit, e.col.Count())
	if limit <= 0 || isZero(vec) {
		return []vector.Match{}, nil
	}

	results, err := e.col.QueryEmbedding(ctx, vec, limit, nil, nil)
	if err != nil {
		return nil, vector.IndexError("search "+name, err)
	}

	matches := make([]vector.Match, 0, len(results))
	for _, r := range results {
		m := vector.Match{ID: r.ID, Score: r.Similarity}
		if math.IsNaN(float64(m.Score)) {
			m.Score = 0
		}
		if err := json.Unmarshal([]byte(r.Content), &m.Payload); err != nil {
			d.logger.Warn("skipping chromem document with undecodable payload", "id", r.ID, "error", err)
			continue
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// Delete removes documents by id.
func (d *Index) Delete(ctx context.Context, name string, ids []string) error {
	e, err := d.lookup(name)
	if err != nil {
		return vector.IndexError("delete "+name, err)
	}
	if len(ids) == 0 {
		return nil
	}
	if err := e.col.Delete(ctx, nil, nil, ids...); err != nil {
		return vector.IndexError("delete "+name, err)
	}
	return nil
}

// Close is a no-op. Persistent databases write through on every change.
func (d *Index) Close() error {
	return nil
}

func isZero(v []float32) bool {
	for _, f := range v {
		if f != 0 {
			return false
		}
	}
	return true
}
