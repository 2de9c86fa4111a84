// Package openai implements llm.Backend for OpenAI and the OpenAI-compatible
// chat completion APIs of DeepSeek and OpenRouter.
package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/papercomputeco/mnemo/pkg/llm"
)

// Provider names and defaults.
const (
	ProviderOpenAI     = "openai"
	ProviderDeepSeek   = "deepseek"
	ProviderOpenRouter = "openrouter"

	DefaultModel          = "gpt-4-turbo-preview"
	DefaultEmbeddingModel = "text-embedding-3-small"
	DefaultBaseURL        = "https://api.openai.com/v1"

	DefaultDeepSeekModel   = "deepseek-chat"
	DefaultDeepSeekBaseURL = "https://api.deepseek.com/v1"

	DefaultOpenRouterModel   = "anthropic/claude-3-opus"
	DefaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
)

// Backend talks to an OpenAI-compatible /chat/completions endpoint.
type Backend struct {
	llm.SystemPrompt

	provider string
	opts     llm.Options
	headers  map[string]string

	// nativeEmbeddings is true when the provider serves /embeddings.
	nativeEmbeddings bool
}

// New returns an OpenAI backend with native embeddings.
func New(opts llm.Options) (llm.Backend, error) {
	return newBackend(ProviderOpenAI, opts.WithDefaults(DefaultModel, DefaultEmbeddingModel, DefaultBaseURL), true, nil)
}

// NewDeepSeek returns a DeepSeek backend. Embeddings go to opts.Embedder.
func NewDeepSeek(opts llm.Options) (llm.Backend, error) {
	return newBackend(ProviderDeepSeek, opts.WithDefaults(DefaultDeepSeekModel, "", DefaultDeepSeekBaseURL), false, nil)
}

// NewOpenRouter returns an OpenRouter backend. Embeddings go to
// opts.Embedder.
func NewOpenRouter(opts llm.Options) (llm.Backend, error) {
	return newBackend(ProviderOpenRouter, opts.WithDefaults(DefaultOpenRouterModel, "", DefaultOpenRouterBaseURL), false, map[string]string{
		"HTTP-Referer": "https://github.com/papercomputeco/mnemo",
		"X-Title":      "mnemo",
	})
}

func newBackend(provider string, opts llm.Options, native bool, extra map[string]string) (*Backend, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%s: API key is required", provider)
	}
	headers := map[string]string{"Authorization": "Bearer " + opts.APIKey}
	for k, v := range extra {
		headers[k] = v
	}
	b := &Backend{
		provider:         provider,
		opts:             opts,
		headers:          headers,
		nativeEmbeddings: native,
	}
	b.UpdateSystemPrompt(opts.SystemPrompt)
	return b, nil
}

// Complete sends the system prompt and the user prompt as one chat turn.
func (b *Backend) Complete(ctx context.Context, prompt string) (string, error) {
	var messages []chatMessage
	if sys := b.Get(); sys != "" {
		messages = append(messages, chatMessage{Role: "system", Content: sys})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	var resp chatResponse
	err := llm.PostJSON(ctx, b.opts.HTTPClient, b.provider, "complete", b.opts.BaseURL+"/chat/completions", b.headers, chatRequest{
		Model:       b.opts.Model,
		Messages:    messages,
		Temperature: b.opts.Temperature,
		MaxTokens:   b.opts.MaxTokens,
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", llm.NewProviderError(b.provider, "complete", 0, errors.New(resp.Error.Message))
	}
	if len(resp.Choices) == 0 {
		return "", llm.NewProviderError(b.provider, "complete", 0, llm.ErrEmptyResponse)
	}
	return resp.Choices[0].Message.Content, nil
}

// Embed calls /embeddings on OpenAI and delegates elsewhere.
func (b *Backend) Embed(ctx context.Context, text string) ([]float32, error) {
	if !b.nativeEmbeddings {
		if b.opts.Embedder == nil {
			return nil, llm.NewProviderError(b.provider, "embed", 0, llm.ErrEmbeddingsUnsupported)
		}
		return b.opts.Embedder.Embed(ctx, text)
	}

	var resp embeddingResponse
	err := llm.PostJSON(ctx, b.opts.HTTPClient, b.provider, "embed", b.opts.BaseURL+"/embeddings", b.headers, embeddingRequest{
		Model: b.opts.EmbeddingModel,
		Input: text,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, llm.NewProviderError(b.provider, "embed", 0, errors.New(resp.Error.Message))
	}
	if len(resp.Data) == 0 {
		return nil, llm.NewProviderError(b.provider, "embed", 0, llm.ErrEmptyResponse)
	}
	return resp.Data[0].Embedding, nil
}

// DescribeModel reports the configured models.
func (b *Backend) DescribeModel() llm.ModelInfo {
	info := llm.ModelInfo{Provider: b.provider, Model: b.opts.Model}
	if b.nativeEmbeddings {
		info.EmbeddingModel = b.opts.EmbeddingModel
	}
	return info
}
