// Package anthropic implements llm.Backend on the Anthropic Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/papercomputeco/mnemo/pkg/llm"
)

const (
	Provider       = "anthropic"
	DefaultModel   = "claude-haiku-4-5-20251001"
	DefaultBaseURL = "https://api.anthropic.com"
)

// Backend completes prompts through the Anthropic SDK. Anthropic has no
// embeddings API, so Embed goes to the fallback embedder.
type Backend struct {
	llm.SystemPrompt

	client *sdk.Client
	opts   llm.Options
}

// New returns an Anthropic backend.
func New(opts llm.Options) (llm.Backend, error) {
	opts = opts.WithDefaults(DefaultModel, "", DefaultBaseURL)
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%s: API key is required", Provider)
	}

	client := sdk.NewClient(
		option.WithAPIKey(opts.APIKey),
		option.WithBaseURL(opts.BaseURL),
		option.WithHTTPClient(opts.HTTPClient),
		option.WithMaxRetries(2),
	)
	b := &Backend{client: &client, opts: opts}
	b.UpdateSystemPrompt(opts.SystemPrompt)
	return b, nil
}

// Complete sends one user message and joins the text blocks of the reply.
func (b *Backend) Complete(ctx context.Context, prompt string) (string, error) {
	params := sdk.MessageNewParams{
		Model:       sdk.Model(b.opts.Model),
		MaxTokens:   int64(b.opts.MaxTokens),
		Temperature: sdk.Float(b.opts.Temperature),
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
	}
	if sys := b.Get(); sys != "" {
		params.System = []sdk.TextBlockParam{{Text: sys}}
	}

	resp, err := b.client.Messages.New(ctx, params)
	if err != nil {
		status := 0
		var apiErr *sdk.Error
		if errors.As(err, &apiErr) {
			status = apiErr.StatusCode
		}
		return "", llm.NewProviderError(Provider, "complete", status, err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", llm.NewProviderError(Provider, "complete", 0, llm.ErrEmptyResponse)
	}
	return sb.String(), nil
}

func (b *Backend) Embed(ctx context.Context, text string) ([]float32, error) {
	if b.opts.Embedder == nil {
		return nil, llm.NewProviderError(Provider, "embed", 0, llm.ErrEmbeddingsUnsupported)
	}
	return b.opts.Embedder.Embed(ctx, text)
}

func (b *Backend) DescribeModel() llm.ModelInfo {
	return llm.ModelInfo{Provider: Provider, Model: b.opts.Model}
}
