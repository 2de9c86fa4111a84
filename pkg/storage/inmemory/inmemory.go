// Package inmemory provides a map-backed storage.Driver for tests and for
// running without a database.
package inmemory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/papercomputeco/mnemo/pkg/storage"
)

// Driver implements storage.Driver in memory.
type Driver struct {
	mu sync.RWMutex

	conversations []*storage.Conversation
	knowledge     map[string]*storage.Knowledge
	insights      []*storage.DocumentInsight

	nextConversation int64
	nextInsight      int64
}

// NewDriver creates a new in-memory driver.
func NewDriver() *Driver {
	return &Driver{
		knowledge: make(map[string]*storage.Knowledge),
	}
}

func (s *Driver) Append(_ context.Context, c *storage.Conversation) (int64, error) {
	if c == nil {
		return 0, errors.New("cannot append nil conversation")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextConversation++
	stored := *c
	stored.ID = s.nextConversation
	if stored.Timestamp.IsZero() {
		stored.Timestamp = time.Now()
	}
	s.conversations = append(s.conversations, &stored)
	return stored.ID, nil
}

func (s *Driver) Recent(_ context.Context, limit int) ([]*storage.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newestFirst(s.conversations, limit, func(*storage.Conversation) bool { return true }), nil
}

func (s *Driver) Search(_ context.Context, pattern string, limit int) ([]*storage.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newestFirst(s.conversations, limit, func(c *storage.Conversation) bool {
		return strings.Contains(c.Content, pattern)
	}), nil
}

func (s *Driver) SaveKnowledge(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.knowledge[key] = &storage.Knowledge{Key: key, Value: value, UpdatedAt: time.Now()}
	return nil
}

func (s *Driver) GetKnowledge(_ context.Context, key string) (*storage.Knowledge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	k, ok := s.knowledge[key]
	if !ok {
		return nil, storage.NotFoundError{Key: key}
	}
	out := *k
	return &out, nil
}

func (s *Driver) SaveInsight(_ context.Context, in *storage.DocumentInsight) (int64, error) {
	if in == nil {
		return 0, errors.New("cannot save nil insight")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextInsight++
	stored := *in
	stored.ID = s.nextInsight
	if stored.Timestamp.IsZero() {
		stored.Timestamp = time.Now()
	}
	s.insights = append(s.insights, &stored)
	return stored.ID, nil
}

func (s *Driver) DocumentInsights(_ context.Context, documentPath string) ([]*storage.DocumentInsight, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return byRelevance(s.insights, 0, func(in *storage.DocumentInsight) bool {
		return in.DocumentPath == documentPath
	}), nil
}

func (s *Driver) SearchInsights(_ context.Context, pattern string, limit int) ([]*storage.DocumentInsight, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return byRelevance(s.insights, limit, func(in *storage.DocumentInsight) bool {
		return strings.Contains(in.InsightText, pattern)
	}), nil
}

// Count returns the number of logged conversation turns.
func (s *Driver) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conversations)
}

// Close is a no-op for the in-memory driver.
func (s *Driver) Close() error {
	return nil
}

func newestFirst(all []*storage.Conversation, limit int, keep func(*storage.Conversation) bool) []*storage.Conversation {
	out := make([]*storage.Conversation, 0)
	for i := len(all) - 1; i >= 0; i-- {
		if keep(all[i]) {
			c := *all[i]
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func byRelevance(all []*storage.DocumentInsight, limit int, keep func(*storage.DocumentInsight) bool) []*storage.DocumentInsight {
	out := make([]*storage.DocumentInsight, 0)
	for _, in := range all {
		if keep(in) {
			c := *in
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Relevance > out[j].Relevance
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
