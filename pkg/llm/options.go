package llm

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/papercomputeco/mnemo/pkg/logger"
)

// DefaultTimeout bounds a single provider HTTP call.
const DefaultTimeout = 60 * time.Second

// Options configure a backend at construction.
type Options struct {
	APIKey         string
	Model          string
	EmbeddingModel string
	BaseURL        string

	// Temperature defaults to DefaultTemperature when zero.
	Temperature float64

	// MaxTokens defaults to DefaultMaxTokens when zero.
	MaxTokens int

	SystemPrompt string

	// Embedder serves Embed for backends without native embeddings.
	Embedder Embedder

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// WithDefaults fills zero fields with defaults and returns the copy.
func (o Options) WithDefaults(model, embeddingModel, baseURL string) Options {
	if o.Model == "" {
		o.Model = model
	}
	if o.EmbeddingModel == "" {
		o.EmbeddingModel = embeddingModel
	}
	if o.BaseURL == "" {
		o.BaseURL = baseURL
	}
	if o.Temperature == 0 {
		o.Temperature = DefaultTemperature
	}
	if o.MaxTokens == 0 {
		o.MaxTokens = DefaultMaxTokens
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}
	if o.Logger == nil {
		o.Logger = logger.Nop()
	}
	return o
}
