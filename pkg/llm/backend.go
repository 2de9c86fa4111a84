// Package llm defines the completion backend contract shared by every
// provider, the registry that selects one by name, and the provider error
// type.
package llm

import (
	"context"
	"sync"
)

// Default generation settings.
const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1024
)

// Backend is the closed set of operations mnemo needs from a model provider.
type Backend interface {
	// Complete sends a single-turn prompt and returns the model's text.
	Complete(ctx context.Context, prompt string) (string, error)

	// Embed returns the embedding of text. Backends without native
	// embeddings delegate to their fallback Embedder or return
	// ErrEmbeddingsUnsupported.
	Embed(ctx context.Context, text string) ([]float32, error)

	// DescribeModel reports which provider and models are in use.
	DescribeModel() ModelInfo

	// UpdateSystemPrompt replaces the system prompt sent with each completion.
	UpdateSystemPrompt(prompt string)
}

// Embedder is the embedding half of a backend. embeddings.Embedder
// implementations satisfy it.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ModelInfo describes a configured backend.
type ModelInfo struct {
	Provider       string `json:"provider"`
	Model          string `json:"model"`
	EmbeddingModel string `json:"embedding_model,omitempty"`
}

// SystemPrompt is a concurrency-safe holder backends embed to implement
// UpdateSystemPrompt.
type SystemPrompt struct {
	mu     sync.RWMutex
	prompt string
}

// UpdateSystemPrompt replaces the stored prompt.
func (s *SystemPrompt) UpdateSystemPrompt(prompt string) {
	s.mu.Lock()
	s.prompt = prompt
	s.mu.Unlock()
}

// Get returns the current prompt.
func (s *SystemPrompt) Get() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prompt
}
