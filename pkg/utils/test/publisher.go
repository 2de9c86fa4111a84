package testutils

import (
	"context"
	"sync"

	"github.com/papercomputeco/mnemo/pkg/eventstream"
)

// MockPublisher records published events.
type MockPublisher struct {
	mu sync.Mutex

	Memories  []*eventstream.MemoryStoredEvent
	Documents []*eventstream.DocumentProcessedEvent

	// Err, when set, is returned by every publish.
	Err error
}

func (m *MockPublisher) PublishMemory(_ context.Context, event *eventstream.MemoryStoredEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Memories = append(m.Memories, event)
	return nil
}

func (m *MockPublisher) PublishDocument(_ context.Context, event *eventstream.DocumentProcessedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Documents = append(m.Documents, event)
	return nil
}

func (m *MockPublisher) Close() error {
	return nil
}

// MemoryEvents returns a snapshot of the published memory events.
func (m *MockPublisher) MemoryEvents() []*eventstream.MemoryStoredEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*eventstream.MemoryStoredEvent(nil), m.Memories...)
}
