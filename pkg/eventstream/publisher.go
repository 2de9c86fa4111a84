package eventstream

import "context"

// Publisher publishes mnemo events to an event stream backend.
type Publisher interface {
	PublishMemory(ctx context.Context, event *MemoryStoredEvent) error
	PublishDocument(ctx context.Context, event *DocumentProcessedEvent) error
	Close() error
}
