// Package qdrant provides a vector.Index backed by Qdrant over gRPC.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	qc "github.com/qdrant/go-client/qdrant"

	"github.com/papercomputeco/mnemo/pkg/vector"
)

const (
	restPort = 6333
	grpcPort = 6334

	// originalIDKey holds caller ids that are not UUIDs. Qdrant only accepts
	// UUIDs and unsigned integers as point ids.
	originalIDKey = "_mnemo_id"
)

// idNamespace seeds the deterministic UUIDs derived from non-UUID ids.
var idNamespace = uuid.MustParse("6f9a3f0e-5b7c-4a52-9d0e-1c2b3a4d5e6f")

// Config holds configuration for the Qdrant index.
type Config struct {
	// URL is the Qdrant endpoint, e.g. "http://localhost:6333". The REST
	// port is rewritten to the gRPC port.
	URL    string
	APIKey string
}

// Index implements vector.Index and vector.Pruner on Qdrant.
type Index struct {
	client *qc.Client
	logger *slog.Logger

	mu   sync.RWMutex
	dims map[string]uint
}

// NewIndex dials Qdrant.
func NewIndex(c Config, logger *slog.Logger) (*Index, error) {
	host, port, useTLS, err := ParseURL(c.URL)
	if err != nil {
		return nil, err
	}

	client, err := qc.NewClient(&qc.Config{
		Host:   host,
		Port:   port,
		APIKey: c.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: qdrant %s:%d: %w", vector.ErrConnection, host, port, err)
	}

	logger.Info("connected to Qdrant", "host", host, "port", port, "tls", useTLS)
	return &Index{client: client, logger: logger, dims: make(map[string]uint)}, nil
}

// ParseURL splits a Qdrant URL into its gRPC host, port and TLS setting.
// A missing port or the REST port maps to the gRPC port.
func ParseURL(raw string) (string, int, bool, error) {
	if raw == "" {
		return "", 0, false, errors.New("qdrant URL is required")
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		// bare host[:port]
		u, err = url.Parse("http://" + raw)
		if err != nil {
			return "", 0, false, fmt.Errorf("parsing qdrant URL %q: %w", raw, err)
		}
	}

	port := grpcPort
	if p := u.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return "", 0, false, fmt.Errorf("parsing qdrant port %q: %w", p, err)
		}
		port = n
	}
	if port == restPort {
		port = grpcPort
	}
	return u.Hostname(), port, u.Scheme == "https", nil
}

// CreateCollection creates a cosine collection when it does not exist.
func (d *Index) CreateCollection(ctx context.Context, name string, dim uint) error {
	exists, err := d.client.CollectionExists(ctx, name)
	if err != nil {
		return vector.IndexError("create collection "+name, err)
	}
	if !exists {
		err = d.client.CreateCollection(ctx, &qc.CreateCollection{
			CollectionName: name,
			VectorsConfig: qc.NewVectorsConfig(&qc.VectorParams{
				Size:     uint64(dim),
				Distance: qc.Distance_Cosine,
			}),
		})
		if err != nil {
			return vector.IndexError("create collection "+name, err)
		}
		d.logger.Info("created qdrant collection", "collection", name, "dimensions", dim)
	}

	d.mu.Lock()
	d.dims[name] = dim
	d.mu.Unlock()
	return nil
}

func (d *Index) dimFor(name string) (uint, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	dim, ok := d.dims[name]
	if !ok {
		return 0, vector.ErrCollectionNotFound
	}
	return dim, nil
}

// PointID maps a caller id onto a Qdrant UUID. UUIDs pass through; any other
// string maps to a stable name-based UUID.
func PointID(id string) (string, bool) {
	if _, err := uuid.Parse(id); err == nil {
		return id, false
	}
	return uuid.NewSHA1(idNamespace, []byte(id)).String(), true
}

// Upsert writes points and waits for the write to be applied.
func (d *Index) Upsert(ctx context.Context, name string, points []vector.Point) ([]string, error) {
	dim, err := d.dimFor(name)
	if err != nil {
		return nil, vector.IndexError("upsert "+name, err)
	}
	if len(points) == 0 {
		return []string{}, nil
	}

	ids := make([]string, 0, len(points))
	structs := make([]*qc.PointStruct, 0, len(points))
	for _, p := range points {
		if err := vector.CheckDimensions(p.Vector, int(dim)); err != nil {
			return nil, err
		}
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		payload := NormalizePayload(p.Payload)
		qid, derived := PointID(p.ID)
		if derived {
			payload[originalIDKey] = p.ID
		}
		values, err := qc.TryValueMap(payload)
		if err != nil {
			return nil, vector.IndexError("upsert "+name, fmt.Errorf("encoding payload for %s: %w", p.ID, err))
		}
		structs = append(structs, &qc.PointStruct{
			Id:      qc.NewID(qid),
			Vectors: qc.NewVectors(p.Vector...),
			Payload: values,
		})
		ids = append(ids, p.ID)
	}

	_, err = d.client.Upsert(ctx, &qc.UpsertPoints{
		CollectionName: name,
		Wait:           qc.PtrOf(true),
		Points:         structs,
	})
	if err != nil {
		return nil, vector.IndexError("upsert "+name, err)
	}

	d.logger.Debug("upserted points to qdrant", "collection", name, "count", len(ids))
	return ids, nil
}

// Search runs a nearest-neighbour query. Qdrant reports cosine similarity
// directly as the score.
func (d *Index) Search(ctx context.Context, name string, vec []float32, limit int) ([]vector.Match, error) {
	dim, err := d.dimFor(name)
	if err != nil {
		return nil, vector.IndexError("search "+name, err)
	}
	if err := vector.CheckDimensions(vec, int(dim)); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []vector.Match{}, nil
	}

	points, err := d.client.Query(ctx, &qc.QueryPoints{
		CollectionName: name,
		Query:          qc.NewQuery(vec...),
		Limit:          qc.PtrOf(uint64(limit)),
		WithPayload:    qc.NewWithPayload(true),
	})
	if err != nil {
		return nil, vector.IndexError("search "+name, err)
	}

	matches := make([]vector.Match, 0, len(points))
	for _, p := range points {
		payload := PayloadFromValues(p.GetPayload())
		id := p.GetId().GetUuid()
		if id == "" {
			id = strconv.FormatUint(p.GetId().GetNum(), 10)
		}
		if orig, ok := payload[originalIDKey].(string); ok {
			id = orig
			delete(payload, originalIDKey)
		}
		matches = append(matches, vector.Match{ID: id, Score: p.GetScore(), Payload: payload})
	}
	return matches, nil
}

// Delete removes points by id.
func (d *Index) Delete(ctx context.Context, name string, ids []string) error {
	if _, err := d.dimFor(name); err != nil {
		return vector.IndexError("delete "+name, err)
	}
	if len(ids) == 0 {
		return nil
	}
	pids := make([]*qc.PointId, len(ids))
	for i, id := range ids {
		qid, _ := PointID(id)
		pids[i] = qc.NewID(qid)
	}
	_, err := d.client.Delete(ctx, &qc.DeletePoints{
		CollectionName: name,
		Wait:           qc.PtrOf(true),
		Points:         qc.NewPointsSelector(pids...),
	})
	if err != nil {
		return vector.IndexError("delete "+name, err)
	}
	d.logger.Debug("deleted points from qdrant", "collection", name, "count", len(ids))
	return nil
}

// DeleteBefore deletes points whose numeric payload field is below cutoff's
// unix seconds, returning how many matched.
func (d *Index) DeleteBefore(ctx context.Context, name, field string, cutoff time.Time) (int, error) {
	filter := &qc.Filter{
		Must: []*qc.Condition{
			qc.NewRange(field, &qc.Range{Lt: qc.PtrOf(float64(cutoff.Unix()))}),
		},
	}
	count, err := d.client.Count(ctx, &qc.CountPoints{
		CollectionName: name,
		Filter:         filter,
		Exact:          qc.PtrOf(true),
	})
	if err != nil {
		return 0, vector.IndexError("prune "+name, err)
	}
	if count == 0 {
		return 0, nil
	}
	_, err = d.client.Delete(ctx, &qc.DeletePoints{
		CollectionName: name,
		Wait:           qc.PtrOf(true),
		Points:         qc.NewPointsSelectorFilter(filter),
	})
	if err != nil {
		return 0, vector.IndexError("prune "+name, err)
	}
	return int(count), nil
}

// Close closes the gRPC connection.
func (d *Index) Close() error {
	return d.client.Close()
}
