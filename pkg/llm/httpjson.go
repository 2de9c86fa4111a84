package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	json "github.com/goccy/go-json"
)

// PostJSON marshals in, POSTs it to url and decodes the 200 response into
// out. Every failure is returned as a *ProviderError.
func PostJSON(ctx context.Context, client *http.Client, provider, op, url string, headers map[string]string, in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return NewProviderError(provider, op, 0, fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return NewProviderError(provider, op, 0, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return NewProviderError(provider, op, 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return NewProviderError(provider, op, resp.StatusCode, fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return NewProviderError(provider, op, resp.StatusCode, fmt.Errorf("api error: %s", string(body)))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return NewProviderError(provider, op, resp.StatusCode, fmt.Errorf("unmarshal response: %w", err))
	}
	return nil
}
