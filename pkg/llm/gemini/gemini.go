// Package gemini implements llm.Backend on Google's Generative Language API.
package gemini

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/papercomputeco/mnemo/pkg/llm"
)

const (
	Provider       = "gemini"
	DefaultModel   = "gemini-pro"
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
)

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Backend calls models/{model}:generateContent. The system prompt is
// prepended to the user turn. Embeddings go to the fallback embedder.
type Backend struct {
	llm.SystemPrompt

	opts llm.Options
}

// New returns a Gemini backend.
func New(opts llm.Options) (llm.Backend, error) {
	opts = opts.WithDefaults(DefaultModel, "", DefaultBaseURL)
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%s: API key is required", Provider)
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	b := &Backend{opts: opts}
	b.UpdateSystemPrompt(opts.SystemPrompt)
	return b, nil
}

func (b *Backend) Complete(ctx context.Context, prompt string) (string, error) {
	text := prompt
	if sys := b.Get(); sys != "" {
		text = sys + "\n" + prompt
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", b.opts.BaseURL, b.opts.Model, url.QueryEscape(b.opts.APIKey))
	var resp generateResponse
	err := llm.PostJSON(ctx, b.opts.HTTPClient, Provider, "complete", endpoint, nil, generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: text}}}},
		GenerationConfig: generationConfig{
			Temperature:     b.opts.Temperature,
			MaxOutputTokens: b.opts.MaxTokens,
		},
	}, &resp)
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", llm.NewProviderError(Provider, "complete", 0, llm.ErrEmptyResponse)
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
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
