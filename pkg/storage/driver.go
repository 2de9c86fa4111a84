// Package storage defines the relational log: the conversation journal, the
// key/value knowledge base and the document insight log that sit beside the
// vector index.
package storage

import (
	"context"
	"time"
)

// Conversation is one logged turn.
type Conversation struct {
	ID        int64
	Timestamp time.Time
	Actor     string
	Content   string
	Tag       string
}

// Knowledge is a key/value fact in the knowledge base.
type Knowledge struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}

// DocumentInsight is an insight extracted from a document, as logged.
type DocumentInsight struct {
	ID           int64
	Timestamp    time.Time
	DocumentPath string
	InsightText  string
	Relevance    float64
	InsightType  string
}

// Driver persists and queries the relational log.
type Driver interface {
	// Append logs a conversation turn and returns its id. A zero Timestamp
	// is set to now.
	Append(ctx context.Context, c *Conversation) (int64, error)

	// Recent returns the newest conversation turns, newest first.
	Recent(ctx context.Context, limit int) ([]*Conversation, error)

	// Search returns turns whose content contains pattern, newest first.
	Search(ctx context.Context, pattern string, limit int) ([]*Conversation, error)

	// SaveKnowledge inserts or replaces the value stored under key.
	SaveKnowledge(ctx context.Context, key, value string) error

	// GetKnowledge returns the entry stored under key or NotFoundError.
	GetKnowledge(ctx context.Context, key string) (*Knowledge, error)

	// SaveInsight logs a document insight and returns its id.
	SaveInsight(ctx context.Context, in *DocumentInsight) (int64, error)

	// DocumentInsights returns the insights logged for a document, by
	// descending relevance.
	DocumentInsights(ctx context.Context, documentPath string) ([]*DocumentInsight, error)

	// SearchInsights returns insights whose text contains pattern, by
	// descending relevance.
	SearchInsights(ctx context.Context, pattern string, limit int) ([]*DocumentInsight, error)

	// Close releases the underlying connection.
	Close() error
}
