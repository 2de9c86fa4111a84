// Package semantic is a free-form text index in the semantic_search
// collection, searchable by embedding and filterable by source.
package semantic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/papercomputeco/mnemo/pkg/llm"
	"github.com/papercomputeco/mnemo/pkg/logger"
	"github.com/papercomputeco/mnemo/pkg/memory"
	"github.com/papercomputeco/mnemo/pkg/vector"
)

const chatPrompt = "Relevant search results:\n%s\n\nUser: %s\nAssistant:"

// chatResults is how many results ground a Chat answer.
const chatResults = 5

// Result is one search hit.
type Result struct {
	Text     string            `json:"text"`
	Score    float32           `json:"score"`
	Source   string            `json:"source"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Config configures a Search.
type Config struct {
	Index vector.Index

	// Dimensions defaults to vector.DefaultDimensions.
	Dimensions int

	// Backend and Memory are only needed by Chat.
	Backend llm.Backend
	Memory  *memory.Store

	Logger *slog.Logger
}

// Search indexes and queries semantic_search.
type Search struct {
	index   vector.Index
	dim     int
	backend llm.Backend
	memory  *memory.Store
	logger  *slog.Logger
}

// New returns a Search over cfg.Index.
func New(cfg Config) (*Search, error) {
	if cfg.Index == nil {
		return nil, errors.New("semantic: index is required")
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = int(vector.DefaultDimensions)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	return &Search{
		index:   cfg.Index,
		dim:     cfg.Dimensions,
		backend: cfg.Backend,
		memory:  cfg.Memory,
		logger:  cfg.Logger,
	}, nil
}

// EnsureCollection creates the semantic_search collection.
func (s *Search) EnsureCollection(ctx context.Context) error {
	return s.index.CreateCollection(ctx, vector.CollectionSemantic, uint(s.dim))
}

// IndexText stores text under source and returns the point id.
func (s *Search) IndexText(ctx context.Context, text, source string, embedding []float32, metadata map[string]string) (string, error) {
	if err := vector.CheckDimensions(embedding, s.dim); err != nil {
		return "", err
	}

	payload := map[string]any{
		"text":   text,
		"source": source,
	}
	if metadata != nil {
		meta := make(map[string]any, len(metadata))
		for k, v := range metadata {
			meta[k] = v
		}
		payload["metadata"] = meta
	}

	ids, err := s.index.Upsert(ctx, vector.CollectionSemantic, []vector.Point{{Vector: embedding, Payload: payload}})
	if err != nil {
		return "", fmt.Errorf("failed to index text: %w", err)
	}
	if len(ids) != 1 {
		return "", vector.IndexError("upsert "+vector.CollectionSemantic, errors.New("index returned no id"))
	}
	return ids[0], nil
}

// Search returns up to limit results nearest to embedding. Hits without
// text or source are dropped.
func (s *Search) Search(ctx context.Context, embedding []float32, limit int) ([]Result, error) {
	if err := vector.CheckDimensions(embedding, s.dim); err != nil {
		return nil, err
	}
	matches, err := s.index.Search(ctx, vector.CollectionSemantic, embedding, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		text, ok := vector.PayloadString(m.Payload, "text")
		if !ok {
			continue
		}
		source, ok := vector.PayloadString(m.Payload, "source")
		if !ok {
			continue
		}
		results = append(results, Result{
			Text:     text,
			Score:    m.Score,
			Source:   source,
			Metadata: vector.PayloadStringMap(m.Payload, "metadata"),
		})
	}
	return results, nil
}

// SearchBySource fetches twice limit results and keeps those from source.
func (s *Search) SearchBySource(ctx context.Context, embedding []float32, source string, limit int) ([]Result, error) {
	results, err := s.Search(ctx, embedding, limit*2)
	if err != nil {
		return nil, err
	}

	out := results[:0]
	for _, r := range results {
		if r.Source == source {
			out = append(out, r)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// FormatResults renders results as numbered "[Score: 0.00] text (Source: s)" lines.
func FormatResults(results []Result) string {
	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "%d. [Score: %.2f] %s (Source: %s)\n", i+1, r.Score, r.Text, r.Source)
	}
	return b.String()
}

// Chat answers userMessage grounded on the closest indexed texts and stores
// the exchange as a "chat" memory.
func (s *Search) Chat(ctx context.Context, userMessage string) (string, error) {
	if s.backend == nil {
		return "", errors.New("semantic: chat requires a backend")
	}

	embedding, err := s.backend.Embed(ctx, userMessage)
	if err != nil {
		return "", err
	}
	results, err := s.Search(ctx, embedding, chatResults)
	if err != nil {
		return "", err
	}

	response, err := s.backend.Complete(ctx, fmt.Sprintf(chatPrompt, FormatResults(results), userMessage))
	if err != nil {
		return "", err
	}

	if s.memory != nil {
		exchange := "Q: " + userMessage + "\nA: " + response
		responseEmbedding, err := s.backend.Embed(ctx, response)
		if err != nil {
			return "", err
		}
		if _, err := s.memory.Store(ctx, exchange, "chat", responseEmbedding, nil); err != nil {
			return "", err
		}
	}
	return response, nil
}
