package llm

import (
	"errors"
	"fmt"
)

var (
	// ErrEmbeddingsUnsupported is returned by backends that cannot embed and
	// have no fallback embedder.
	ErrEmbeddingsUnsupported = errors.New("embeddings not supported by this backend")

	// ErrUnknownBackend is returned by the registry for unregistered names.
	ErrUnknownBackend = errors.New("unknown backend")

	// ErrEmptyResponse is returned when a provider answers with no content.
	ErrEmptyResponse = errors.New("empty response")
)

// ProviderError reports a failed backend call: transport, auth, quota or an
// unexpected response format.
type ProviderError struct {
	Provider string
	Op       string

	// StatusCode is the HTTP status when the provider answered, else 0.
	StatusCode int

	Err error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s failed (status %d): %v", e.Provider, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError builds a *ProviderError.
func NewProviderError(provider, op string, status int, err error) error {
	return &ProviderError{Provider: provider, Op: op, StatusCode: status, Err: err}
}
