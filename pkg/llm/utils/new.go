// Package llmutils wires the built-in backends into an llm.Registry.
package llmutils

import (
	"github.com/papercomputeco/mnemo/pkg/credentials"
	"github.com/papercomputeco/mnemo/pkg/llm"
	"github.com/papercomputeco/mnemo/pkg/llm/anthropic"
	"github.com/papercomputeco/mnemo/pkg/llm/gemini"
	"github.com/papercomputeco/mnemo/pkg/llm/ollama"
	"github.com/papercomputeco/mnemo/pkg/llm/openai"
)

// DefaultRegistry returns a registry holding every built-in backend.
func DefaultRegistry() *llm.Registry {
	r := llm.NewRegistry()
	r.Register(openai.ProviderOpenAI, openai.New)
	r.Register(openai.ProviderDeepSeek, openai.NewDeepSeek)
	r.Register(openai.ProviderOpenRouter, openai.NewOpenRouter)
	r.Register(anthropic.Provider, anthropic.New)
	r.Register(ollama.Provider, ollama.New)
	r.Register(gemini.Provider, gemini.New)
	return r
}

type NewBackendOpts struct {
	Provider string
	Options  llm.Options

	// Credentials resolves the API key when Options.APIKey is empty.
	Credentials *credentials.Manager

	// RequestsPerSecond rate limits the backend when positive.
	RequestsPerSecond float64
	Burst             int
}

// NewBackend resolves the API key (explicit > credentials.toml > env) and
// builds the named backend from the default registry.
func NewBackend(o *NewBackendOpts) (*llm.Active, error) {
	opts := o.Options
	opts.APIKey = o.Credentials.Resolve(o.Provider, opts.APIKey)

	active, err := DefaultRegistry().New(o.Provider, opts)
	if err != nil {
		return nil, err
	}
	active.Backend = llm.NewRateLimited(active.Backend, o.RequestsPerSecond, o.Burst)
	return active, nil
}
