// Package ollama implements llm.Backend on a local Ollama server.
package ollama

import (
	"context"
	"strings"

	embedollama "github.com/papercomputeco/mnemo/pkg/embeddings/ollama"
	"github.com/papercomputeco/mnemo/pkg/llm"
)

const (
	Provider       = "ollama"
	DefaultModel   = "llama3.2"
	DefaultBaseURL = embedollama.DefaultBaseURL
)

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  chatOptions   `json:"options"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type chatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}

// Backend completes through /api/chat and embeds through /api/embed.
type Backend struct {
	llm.SystemPrompt

	opts     llm.Options
	embedder *embedollama.Embedder
}

// New returns an Ollama backend. No API key is needed.
func New(opts llm.Options) (llm.Backend, error) {
	opts = opts.WithDefaults(DefaultModel, embedollama.DefaultEmbeddingModel, DefaultBaseURL)
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")

	embedder, err := embedollama.NewEmbedder(embedollama.EmbedderConfig{
		BaseURL:    opts.BaseURL,
		Model:      opts.EmbeddingModel,
		HTTPClient: opts.HTTPClient,
	})
	if err != nil {
		return nil, err
	}
	b := &Backend{opts: opts, embedder: embedder}
	b.UpdateSystemPrompt(opts.SystemPrompt)
	return b, nil
}

func (b *Backend) Complete(ctx context.Context, prompt string) (string, error) {
	var messages []chatMessage
	if sys := b.Get(); sys != "" {
		messages = append(messages, chatMessage{Role: "system", Content: sys})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	var resp chatResponse
	err := llm.PostJSON(ctx, b.opts.HTTPClient, Provider, "complete", b.opts.BaseURL+"/api/chat", nil, chatRequest{
		Model:    b.opts.Model,
		Messages: messages,
		Stream:   false,
		Options:  chatOptions{Temperature: b.opts.Temperature, NumPredict: b.opts.MaxTokens},
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Message.Content, nil
}

// Embed prefers an explicitly configured fallback embedder over Ollama's own.
func (b *Backend) Embed(ctx context.Context, text string) ([]float32, error) {
	if b.opts.Embedder != nil {
		return b.opts.Embedder.Embed(ctx, text)
	}
	return b.embedder.Embed(ctx, text)
}

func (b *Backend) DescribeModel() llm.ModelInfo {
	return llm.ModelInfo{Provider: Provider, Model: b.opts.Model, EmbeddingModel: b.opts.EmbeddingModel}
}
