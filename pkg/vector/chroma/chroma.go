// Package chroma provides a vector.Index backed by Chroma's REST API.
package chroma

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/papercomputeco/mnemo/pkg/vector"
)

const (
	defaultMaxRetries    = 5
	defaultRetryDelay    = 500 * time.Millisecond
	defaultMaxRetryDelay = 5 * time.Second

	collectionsPath = "/api/v2/tenants/default_tenant/databases/default_database/collections"
)

// Index implements vector.Index and vector.Pruner on Chroma. Payloads are
// stored as JSON in the record document. Scalar payload fields are mirrored
// into record metadata so they can be filtered on.
type Index struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	mu          sync.RWMutex
	collections map[string]collectionInfo
}

type collectionInfo struct {
	id  string
	dim uint
}

// Config holds configuration for the Chroma index.
type Config struct {
	// URL is the Chroma server URL (e.g., "http://localhost:8000").
	URL string

	// MaxRetries bounds connection attempts while Chroma starts up.
	MaxRetries int

	// RetryDelay is the initial backoff between attempts. It doubles per
	// attempt up to MaxRetryDelay.
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
}

// NewIndex creates a Chroma index and waits for the server to answer its
// heartbeat.
func NewIndex(c Config, logger *slog.Logger) (*Index, error) {
	if c.URL == "" {
		return nil, errors.New("chroma URL is required")
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = defaultRetryDelay
	}
	if c.MaxRetryDelay <= 0 {
		c.MaxRetryDelay = defaultMaxRetryDelay
	}

	d := &Index{
		baseURL:     strings.TrimRight(c.URL, "/"),
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		logger:      logger,
		collections: make(map[string]collectionInfo),
	}

	delay := c.RetryDelay
	var lastErr error
	for attempt := 1; attempt <= c.MaxRetries; attempt++ {
		lastErr = d.heartbeat(context.Background())
		if lastErr == nil {
			logger.Info("connected to Chroma", "url", c.URL, "attempts", attempt)
			return d, nil
		}
		logger.Debug("chroma not ready", "attempt", attempt, "error", lastErr)
		if attempt < c.MaxRetries {
			time.Sleep(delay)
			delay = min(delay*2, c.MaxRetryDelay)
		}
	}
	return nil, fmt.Errorf("%w: connecting to chroma after %d attempts: %w", vector.ErrConnection, c.MaxRetries, lastErr)
}

func (d *Index) heartbeat(ctx context.Context) error {
	resp, err := d.do(ctx, http.MethodGet, "/api/v2/heartbeat", nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// do sends a JSON request and returns the response when the status is 2xx.
func (d *Index) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, d.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, string(msg))
	}
	return resp, nil
}

// CreateCollection gets or creates a cosine-space collection.
func (d *Index) CreateCollection(ctx context.Context, name string, dim uint) error {
	resp, err := d.do(ctx, http.MethodGet, collectionsPath+"/"+name, nil)
	if err != nil {
		resp, err = d.do(ctx, http.MethodPost, collectionsPath, chromaCreateCollectionRequest{
			Name:     name,
			Metadata: map[string]any{"hnsw:space": "cosine"},
		})
		if err != nil {
			return vector.IndexError("create collection "+name, err)
		}
	}
	defer resp.Body.Close()

	var collection chromaCollection
	if err := json.NewDecoder(resp.Body).Decode(&collection); err != nil {
		return vector.IndexError("create collection "+name, fmt.Errorf("decoding collection response: %w", err))
	}

	d.mu.Lock()
	d.collections[name] = collectionInfo{id: collection.ID, dim: dim}
	d.mu.Unlock()

	d.logger.Debug("chroma collection ready", "collection", name, "collection_id", collection.ID)
	return nil
}

func (d *Index) lookup(name string) (collectionInfo, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	info, ok := d.collections[name]
	if !ok {
		return collectionInfo{}, vector.ErrCollectionNotFound
	}
	return info, nil
}

// Upsert stores points through the collection upsert endpoint.
func (d *Index) Upsert(ctx context.Context, name string, points []vector.Point) ([]string, error) {
	info, err := d.lookup(name)
	if err != nil {
		return nil, vector.IndexError("upsert "+name, err)
	}
	if len(points) == 0 {
		return []string{}, nil
	}

	req := chromaUpsertRequest{
		IDs:        make([]string, len(points)),
		Embeddings: make([][]float32, len(points)),
		Metadatas:  make([]map[string]any, len(points)),
		Documents:  make([]string, len(points)),
	}
	for i, p := range points {
		if err := vector.CheckDimensions(p.Vector, int(info.dim)); err != nil {
			return nil, err
		}
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		doc, err := json.Marshal(p.Payload)
		if err != nil {
			return nil, vector.IndexError("upsert "+name, fmt.Errorf("encoding payload for %s: %w", p.ID, err))
		}
		req.IDs[i] = p.ID
		req.Embeddings[i] = p.Vector
		req.Metadatas[i] = scalarMetadata(p.Payload)
		req.Documents[i] = string(doc)
	}

	resp, err := d.do(ctx, http.MethodPost, collectionsPath+"/"+info.id+"/upsert", req)
	if err != nil {
		return nil, vector.IndexError("upsert "+name, err)
	}
	resp.Body.Close()

	d.logger.Debug("upserted points to chroma", "collection", name, "count", len(points))
	return req.IDs, nil
}

// Search queries the collection. Scores are 1 - cosine distance.
func (d *Index) Search(ctx context.Context, name string, vec []float32, limit int) ([]vector.Match, error) {
	info, err := d.lookup(name)
	if err != nil {
		return nil, vector.IndexError("search "+name, err)
	}
	if err := vector.CheckDimensions(vec, int(info.dim)); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []vector.Match{}, nil
	}

	resp, err := d.do(ctx, http.MethodPost, collectionsPath+"/"+info.id+"/query", chromaQueryRequest{
		QueryEmbeddings: [][]float32{vec},
		NResults:        limit,
		Include:         []string{"documents", "distances"},
	})
	if err != nil {
		return nil, vector.IndexError("search "+name, err)
	}
	defer resp.Body.Close()

	var queryResp chromaQueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&queryResp); err != nil {
		return nil, vector.IndexError("search "+name, fmt.Errorf("decoding query response: %w", err))
	}

	matches := []vector.Match{}
	// Only one query embedding is sent.
	if len(queryResp.IDs) == 0 {
		return matches, nil
	}
	for i, id := range queryResp.IDs[0] {
		m := vector.Match{ID: id}
		if len(queryResp.Distances) > 0 && i < len(queryResp.Distances[0]) {
			m.Score = 1 - queryResp.Distances[0][i]
		}
		if len(queryResp.Documents) > 0 && i < len(queryResp.Documents[0]) && queryResp.Documents[0][i] != "" {
			if err := json.Unmarshal([]byte(queryResp.Documents[0][i]), &m.Payload); err != nil {
				d.logger.Warn("skipping chroma record with undecodable payload", "id", id, "error", err)
				continue
			}
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// Delete removes records by id.
func (d *Index) Delete(ctx context.Context, name string, ids []string) error {
	info, err := d.lookup(name)
	if err != nil {
		return vector.IndexError("delete "+name, err)
	}
	if len(ids) == 0 {
		return nil
	}
	resp, err := d.do(ctx, http.MethodPost, collectionsPath+"/"+info.id+"/delete", chromaDeleteRequest{IDs: ids})
	if err != nil {
		return vector.IndexError("delete "+name, err)
	}
	resp.Body.Close()

	d.logger.Debug("deleted points from chroma", "collection", name, "count", len(ids))
	return nil
}

// DeleteBefore deletes records whose metadata field is below cutoff's unix
// seconds. Chroma does not report how many records matched, so the count
// is always -1.
func (d *Index) DeleteBefore(ctx context.Context, name, field string, cutoff time.Time) (int, error) {
	info, err := d.lookup(name)
	if err != nil {
		return 0, vector.IndexError("prune "+name, err)
	}
	resp, err := d.do(ctx, http.MethodPost, collectionsPath+"/"+info.id+"/delete", chromaDeleteRequest{
		Where: map[string]any{field: map[string]any{"$lt": cutoff.Unix()}},
	})
	if err != nil {
		return 0, vector.IndexError("prune "+name, err)
	}
	resp.Body.Close()
	return -1, nil
}

// Close is a no-op; the HTTP client holds no resources that need release.
func (d *Index) Close() error {
	return nil
}

// scalarMetadata keeps the payload fields Chroma accepts as metadata.
func scalarMetadata(payload map[string]any) map[string]any {
	meta := make(map[string]any)
	for k, v := range payload {
		switch v.(type) {
		case string, bool, int, int32, int64, float32, float64:
			meta[k] = v
		}
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}
