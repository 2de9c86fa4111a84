// Package memory is mnemo's session-scoped conversational memory. Every
// stored turn becomes one vector in the conversation_memory collection
// together with its role, session, importance and topic tags.
package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/papercomputeco/mnemo/pkg/logger"
	"github.com/papercomputeco/mnemo/pkg/metrics"
	"github.com/papercomputeco/mnemo/pkg/vector"
)

const (
	// DefaultSessionID is used for records stored without a current session.
	DefaultSessionID = "default"

	// DefaultImportance is given to records stored without analysis.
	DefaultImportance = 1.0

	// candidateFetch is how many records session and topic scans read.
	candidateFetch = 100
)

// Sessions is the part of session.Manager the store needs.
type Sessions interface {
	CurrentID() string
	SetSummary(ctx context.Context, summary string) bool
}

// Completer produces text completions.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Config configures a Store.
type Config struct {
	Index vector.Index

	// Sessions is optional; without it records go to DefaultSessionID.
	Sessions Sessions

	// Dimensions defaults to vector.DefaultDimensions.
	Dimensions int

	// Clock defaults to time.Now.
	Clock func() time.Time

	Logger *slog.Logger
}

// Store reads and writes memory records.
type Store struct {
	index    vector.Index
	sessions Sessions
	dim      int
	clock    func() time.Time
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewStore returns a Store over cfg.Index.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Index == nil {
		return nil, ErrNotConfigured
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = int(vector.DefaultDimensions)
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	return &Store{
		index:    cfg.Index,
		sessions: cfg.Sessions,
		dim:      cfg.Dimensions,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
		tracer:   otel.Tracer("github.com/papercomputeco/mnemo/pkg/memory"),
	}, nil
}

// EnsureCollection creates the conversation_memory collection.
func (s *Store) EnsureCollection(ctx context.Context) error {
	return s.index.CreateCollection(ctx, vector.CollectionMemory, uint(s.dim))
}

// Dimensions returns the embedding width the store accepts.
func (s *Store) Dimensions() int {
	return s.dim
}

// Store records one turn with importance DefaultImportance and no tags, in
// the current session. It returns the index-assigned id.
func (s *Store) Store(ctx context.Context, text, role string, embedding []float32, metadata map[string]any) (string, error) {
	return s.StoreRecord(ctx, Record{
		Text:       text,
		Role:       role,
		Importance: DefaultImportance,
		Metadata:   metadata,
	}, embedding)
}

// StoreRecord stores rec with its own importance and tags. An empty
// session id is filled from the current session, a zero timestamp with now.
// Importance is clamped to [0, 1].
func (s *Store) StoreRecord(ctx context.Context, rec Record, embedding []float32) (id string, err error) {
	ctx, span := s.tracer.Start(ctx, "memory.Store", trace.WithAttributes(attribute.String("memory.role", rec.Role)))
	defer span.End()
	start := time.Now()
	defer func() { metrics.ObserveMemoryOp("store", start, err) }()

	if err := vector.CheckDimensions(embedding, s.dim); err != nil {
		return "", err
	}
	if strings.TrimSpace(rec.Text) == "" {
		return "", ErrEmptyText
	}

	if rec.SessionID == "" {
		rec.SessionID = s.currentSession()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = s.clock()
	}
	rec.Importance = clamp(rec.Importance)

	payload, err := rec.toPayload()
	if err != nil {
		return "", fmt.Errorf("encoding memory metadata: %w", err)
	}

	ids, err := s.index.Upsert(ctx, vector.CollectionMemory, []vector.Point{{
		ID:      rec.ID,
		Vector:  embedding,
		Payload: payload,
	}})
	if err != nil {
		return "", fmt.Errorf("failed to store memory: %w", err)
	}
	if len(ids) != 1 {
		return "", vector.IndexError("upsert "+vector.CollectionMemory, errors.New("index returned no id"))
	}

	metrics.RecordMemoryStored(rec.Role)
	s.logger.Debug("stored memory", "id", ids[0], "role", rec.Role, "session_id", rec.SessionID)
	return ids[0], nil
}

// SearchSimilar returns up to limit records nearest to embedding, in the
// index's ranking. Hits that do not decode to a record are dropped.
func (s *Store) SearchSimilar(ctx context.Context, embedding []float32, limit int) (records []Record, err error) {
	ctx, span := s.tracer.Start(ctx, "memory.SearchSimilar")
	defer span.End()
	start := time.Now()
	defer func() { metrics.ObserveMemoryOp("search", start, err) }()

	if err := vector.CheckDimensions(embedding, s.dim); err != nil {
		return nil, err
	}
	return s.search(ctx, embedding, limit)
}

// GetRecent returns the newest limit records. The index has no time
// ordering, so this scans a zero-vector query of at least candidateFetch
// hits and sorts them by timestamp.
func (s *Store) GetRecent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		return []Record{}, nil
	}
	records, err := s.scan(ctx, max(limit, candidateFetch))
	if err != nil {
		return nil, err
	}
	sortNewestFirst(records)
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// SearchBySession returns the scanned records of one session, oldest first.
// The scan is bounded by candidateFetch and is not exhaustive.
func (s *Store) SearchBySession(ctx context.Context, sessionID string) ([]Record, error) {
	records, err := s.scan(ctx, candidateFetch)
	if err != nil {
		return nil, err
	}

	out := make([]Record, 0, len(records))
	for _, r := range records {
		if r.SessionID == sessionID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// TopicContext returns up to limit scanned records tagged with topic, most
// important first.
func (s *Store) TopicContext(ctx context.Context, topic string, limit int) ([]Record, error) {
	records, err := s.scan(ctx, candidateFetch)
	if err != nil {
		return nil, err
	}

	out := make([]Record, 0)
	for _, r := range records {
		if r.HasTag(topic) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Importance > out[j].Importance })
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CleanupOld deletes records older than retentionDays when the index
// supports deleting by timestamp. Otherwise nothing is touched and
// ErrRetentionUnsupported is returned.
func (s *Store) CleanupOld(ctx context.Context, retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, fmt.Errorf("retention must be at least one day, got %d", retentionDays)
	}
	pruner, ok := s.index.(vector.Pruner)
	if !ok {
		s.logger.Warn("retention cleanup skipped", "reason", ErrRetentionUnsupported)
		return 0, ErrRetentionUnsupported
	}

	cutoff := s.clock().AddDate(0, 0, -retentionDays)
	n, err := pruner.DeleteBefore(ctx, vector.CollectionMemory, keyTimestamp, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up memories: %w", err)
	}
	s.logger.Info("cleaned up old memories", "deleted", n, "cutoff", cutoff)
	return n, nil
}

// Summarize renders records as "[YYYY-MM-DD HH:MM:SS] role: text" lines.
func Summarize(records []Record) string {
	var b strings.Builder
	for _, r := range records {
		fmt.Fprintf(&b, "[%s] %s: %s\n", r.Timestamp.UTC().Format(time.DateTime), r.Role, r.Text)
	}
	return b.String()
}

func (s *Store) scan(ctx context.Context, limit int) ([]Record, error) {
	return s.search(ctx, make([]float32, s.dim), limit)
}

func (s *Store) search(ctx context.Context, embedding []float32, limit int) ([]Record, error) {
	matches, err := s.index.Search(ctx, vector.CollectionMemory, embedding, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search memories: %w", err)
	}

	records := make([]Record, 0, len(matches))
	for _, m := range matches {
		if r, ok := recordFromMatch(m); ok {
			records = append(records, r)
		}
	}
	return records, nil
}

// CurrentSessionID returns the id new records are stored under.
func (s *Store) CurrentSessionID() string {
	return s.currentSession()
}

func (s *Store) currentSession() string {
	if s.sessions == nil {
		return DefaultSessionID
	}
	if id := s.sessions.CurrentID(); id != "" {
		return id
	}
	return DefaultSessionID
}

func sortNewestFirst(records []Record) {
	sort.SliceStable(records, func(i, j int) bool { return records[i].Timestamp.After(records[j].Timestamp) })
}
