package eventstream

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeMemoryStored is emitted after a memory record is stored.
	EventTypeMemoryStored = "mnemo.memory.stored"

	// EventTypeDocumentProcessed is emitted after a document has been chunked
	// and its insights extracted.
	EventTypeDocumentProcessed = "mnemo.document.processed"
)

// EventSource identifies the emitting deployment.
type EventSource struct {
	Service  string `json:"service"`
	Instance string `json:"instance,omitempty"`
}

// MemoryStoredEvent is a transport-neutral payload for a stored memory.
type MemoryStoredEvent struct {
	SchemaVersion int         `json:"schema_version"`
	EventType     string      `json:"event_type"`
	EventID       string      `json:"event_id"`
	EmittedAt     time.Time   `json:"emitted_at"`
	Source        EventSource `json:"source"`

	MemoryID   string    `json:"memory_id"`
	SessionID  string    `json:"session_id"`
	Role       string    `json:"role"`
	Text       string    `json:"text"`
	Importance float64   `json:"importance"`
	TopicTags  []string  `json:"topic_tags,omitempty"`
	StoredAt   time.Time `json:"stored_at"`
}

// NewMemoryStoredEvent fills the envelope fields of a MemoryStoredEvent.
func NewMemoryStoredEvent(source EventSource, memoryID, sessionID, role, text string) *MemoryStoredEvent {
	now := time.Now().UTC()
	return &MemoryStoredEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeMemoryStored,
		EventID:       uuid.NewString(),
		EmittedAt:     now,
		Source:        source,
		MemoryID:      memoryID,
		SessionID:     sessionID,
		Role:          role,
		Text:          text,
		StoredAt:      now,
	}
}

// DocumentProcessedEvent is a transport-neutral payload for a processed document.
type DocumentProcessedEvent struct {
	SchemaVersion int         `json:"schema_version"`
	EventType     string      `json:"event_type"`
	EventID       string      `json:"event_id"`
	EmittedAt     time.Time   `json:"emitted_at"`
	Source        EventSource `json:"source"`

	DocumentPath string        `json:"document_path,omitempty"`
	Chunks       int           `json:"chunks"`
	Insights     int           `json:"insights"`
	Duration     time.Duration `json:"duration_ns"`
}

// NewDocumentProcessedEvent fills the envelope fields of a DocumentProcessedEvent.
func NewDocumentProcessedEvent(source EventSource, path string, chunks, insights int, took time.Duration) *DocumentProcessedEvent {
	return &DocumentProcessedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeDocumentProcessed,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source:        source,
		DocumentPath:  path,
		Chunks:        chunks,
		Insights:      insights,
		Duration:      took,
	}
}
