package testutils

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/papercomputeco/mnemo/pkg/llm"
)

// ErrMockBackend is returned by MockBackend completions configured to fail.
var ErrMockBackend = errors.New("mock backend failure")

// MockBackend is a scripted llm.Backend.
type MockBackend struct {
	mu sync.Mutex

	// Responses are returned in order; once exhausted Default is returned.
	Responses []string
	Default   string

	// Respond, when set, computes the completion from the prompt and takes
	// precedence over Responses.
	Respond func(prompt string) (string, error)

	// FailOnPrompt fails any completion whose prompt contains it.
	FailOnPrompt string

	Embedder *MockEmbedder

	Prompts      []string
	SystemPrompt string
}

func NewMockBackend(responses ...string) *MockBackend {
	return &MockBackend{
		Responses: responses,
		Embedder:  NewMockEmbedder(),
	}
}

func (m *MockBackend) Complete(_ context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Prompts = append(m.Prompts, prompt)

	if m.FailOnPrompt != "" && strings.Contains(prompt, m.FailOnPrompt) {
		return "", llm.NewProviderError("mock", "complete", 0, ErrMockBackend)
	}
	if m.Respond != nil {
		return m.Respond(prompt)
	}
	if len(m.Responses) > 0 {
		out := m.Responses[0]
		m.Responses = m.Responses[1:]
		return out, nil
	}
	return m.Default, nil
}

func (m *MockBackend) Embed(ctx context.Context, text string) ([]float32, error) {
	return m.Embedder.Embed(ctx, text)
}

func (m *MockBackend) DescribeModel() llm.ModelInfo {
	return llm.ModelInfo{Provider: "mock", Model: "mock-model"}
}

func (m *MockBackend) UpdateSystemPrompt(prompt string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SystemPrompt = prompt
}

// CurrentSystemPrompt returns the last prompt set by UpdateSystemPrompt.
func (m *MockBackend) CurrentSystemPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.SystemPrompt
}

// PromptCount reports how many completions were requested.
func (m *MockBackend) PromptCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Prompts)
}
