package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/papercomputeco/mnemo/pkg/vector"
	"github.com/papercomputeco/mnemo/pkg/vector/inmemory"
)

// ErrMockIndex is returned by MockIndex operations configured to fail.
var ErrMockIndex = errors.New("mock index failure")

// MockIndex is an in-memory vector index that records upserts and can be
// told to fail.
type MockIndex struct {
	*inmemory.Index

	mu sync.Mutex

	// Upserts records the points passed to each Upsert call, per collection.
	Upserts map[string][][]vector.Point

	FailUpsert bool
	FailSearch bool
}

func NewMockIndex() *MockIndex {
	return &MockIndex{
		Index:   inmemory.NewIndex(),
		Upserts: make(map[string][][]vector.Point),
	}
}

func (m *MockIndex) Upsert(ctx context.Context, collection string, points []vector.Point) ([]string, error) {
	m.mu.Lock()
	m.Upserts[collection] = append(m.Upserts[collection], points)
	fail := m.FailUpsert
	m.mu.Unlock()

	if fail {
		return nil, vector.IndexError("upsert "+collection, ErrMockIndex)
	}
	return m.Index.Upsert(ctx, collection, points)
}

func (m *MockIndex) Search(ctx context.Context, collection string, vec []float32, limit int) ([]vector.Match, error) {
	m.mu.Lock()
	fail := m.FailSearch
	m.mu.Unlock()

	if fail {
		return nil, vector.IndexError("search "+collection, ErrMockIndex)
	}
	return m.Index.Search(ctx, collection, vec, limit)
}

// UpsertCalls reports how many Upsert calls collection received.
func (m *MockIndex) UpsertCalls(collection string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Upserts[collection])
}
