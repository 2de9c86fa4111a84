package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/papercomputeco/mnemo/pkg/llm"
	"github.com/papercomputeco/mnemo/pkg/logger"
	"github.com/papercomputeco/mnemo/pkg/metrics"
	"github.com/papercomputeco/mnemo/pkg/storage"
	"github.com/papercomputeco/mnemo/pkg/vector"
)

const insightPrompt = `Extract key insights from the following text and format them as a JSON array.

Each insight must be an object with exactly these fields:
"text": (string) The insight text
"relevance": (number) Importance score between 0 and 1

Example format:
[
  {"text": "First key insight here", "relevance": 0.95},
  {"text": "Second key insight here", "relevance": 0.85}
]

Text to analyze:
%s

Respond ONLY with the JSON array. Do not add any explanations or additional text.`

const quickAnalysisPrompt = "Please analyze this text and provide the key insights in a clear, concise way:\n\n%s"

// InsightTypeDocument tags insights logged from document processing.
const InsightTypeDocument = "document"

// Completer is the completion half of llm.Backend.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Config configures an Extractor.
type Config struct {
	Completer Completer
	Embedder  llm.Embedder
	Index     vector.Index

	// Log, when set, receives every extracted insight.
	Log storage.Driver

	// Dimensions is the expected embedding width. Zero disables the check.
	Dimensions int

	// CacheSize bounds the processed-chunk cache. Defaults to DefaultCacheSize.
	CacheSize int

	// ChunkWords is the chunk window. Defaults to DefaultChunkWords.
	ChunkWords int

	// IndexInsights also embeds each insight's text into the
	// document_insights collection.
	IndexInsights bool

	Logger *slog.Logger
}

// Extractor runs the document pipeline: chunk, extract insights, embed and
// index.
type Extractor struct {
	completer     Completer
	embedder      llm.Embedder
	index         vector.Index
	log           storage.Driver
	cache         *Cache
	chunkWords    int
	dimensions    int
	indexInsights bool
	logger        *slog.Logger
	tracer        trace.Tracer
}

// NewExtractor validates cfg and returns an Extractor.
func NewExtractor(cfg Config) (*Extractor, error) {
	if cfg.Completer == nil {
		return nil, errors.New("document extractor requires a completer")
	}
	if cfg.Embedder == nil {
		return nil, errors.New("document extractor requires an embedder")
	}
	if cfg.Index == nil {
		return nil, errors.New("document extractor requires a vector index")
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	if cfg.ChunkWords <= 0 {
		cfg.ChunkWords = DefaultChunkWords
	}

	return &Extractor{
		completer:     cfg.Completer,
		embedder:      cfg.Embedder,
		index:         cfg.Index,
		log:           cfg.Log,
		cache:         NewCache(cfg.CacheSize),
		chunkWords:    cfg.ChunkWords,
		dimensions:    cfg.Dimensions,
		indexInsights: cfg.IndexInsights,
		logger:        cfg.Logger,
		tracer:        otel.Tracer("github.com/papercomputeco/mnemo/pkg/document"),
	}, nil
}

// EnsureCollections creates the chunk and insight collections.
func (e *Extractor) EnsureCollections(ctx context.Context) error {
	dim := uint(e.dimensions)
	if dim == 0 {
		dim = vector.DefaultDimensions
	}
	for _, name := range []string{vector.CollectionChunks, vector.CollectionInsights} {
		if err := e.index.CreateCollection(ctx, name, dim); err != nil {
			return fmt.Errorf("creating collection %s: %w", name, err)
		}
	}
	return nil
}

// ChunkWords is the chunk window Process uses.
func (e *Extractor) ChunkWords() int {
	return e.chunkWords
}

// Cache exposes the processed-chunk cache.
func (e *Extractor) Cache() *Cache {
	return e.cache
}

// chunkResult is the per-chunk pipeline state, stored by chunk position.
type chunkResult struct {
	chunk     DocumentChunk
	insights  []Insight
	embedding []float32
	cached    bool
	failed    bool
}

// Process extracts insights from text. Per-chunk completion or embedding
// failures are logged and degrade that chunk only; Process fails only when
// ctx is done.
func (e *Extractor) Process(ctx context.Context, text string, metadata map[string]any) ([]Insight, error) {
	ctx, span := e.tracer.Start(ctx, "document.Process")
	defer span.End()

	chunks := Chunk(text, e.chunkWords)
	span.SetAttributes(attribute.Int("document.chunks", len(chunks)))

	results := make([]*chunkResult, len(chunks))
	var misses []*chunkResult
	for i, c := range chunks {
		r := &chunkResult{chunk: c}
		if entry, ok := e.cache.Get(CacheKey(c.PageNumber, c.ChunkIndex)); ok {
			r.insights = entry.Insights
			r.embedding = entry.Embedding
			r.cached = true
			metrics.RecordChunk(metrics.ChunkCached)
		} else {
			misses = append(misses, r)
		}
		results[i] = r
	}

	e.extract(ctx, misses, metadata)

	extracted := make([]*chunkResult, 0, len(misses))
	for _, r := range misses {
		if !r.failed {
			extracted = append(extracted, r)
		}
	}
	e.embed(ctx, extracted)

	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	e.upsertChunks(ctx, extracted, metadata)

	for _, r := range extracted {
		e.cache.Put(CacheKey(r.chunk.PageNumber, r.chunk.ChunkIndex), CacheEntry{
			Chunk:     r.chunk,
			Embedding: r.embedding,
			Insights:  r.insights,
		})
	}

	var all []Insight
	var fresh []Insight
	for _, r := range results {
		all = append(all, r.insights...)
		if !r.cached {
			fresh = append(fresh, r.insights...)
		}
	}

	e.logInsights(ctx, fresh, metadata)
	if e.indexInsights {
		e.upsertInsights(ctx, fresh)
	}

	metrics.RecordInsights(len(all))
	span.SetAttributes(attribute.Int("document.insights", len(all)))
	e.logger.Debug("processed document",
		"chunks", len(chunks),
		"cached", len(chunks)-len(misses),
		"insights", len(all),
	)
	return all, nil
}

// extract asks the completer for each chunk's insights.
func (e *Extractor) extract(ctx context.Context, misses []*chunkResult, metadata map[string]any) {
	_, errs := mapBounded(ctx, misses, FanOutLimit, func(ctx context.Context, r *chunkResult) (struct{}, error) {
		insights, err := e.ExtractInsights(ctx, r.chunk.Text)
		if err != nil {
			return struct{}{}, err
		}
		for i := range insights {
			meta := map[string]any{
				"page":  r.chunk.PageNumber,
				"chunk": r.chunk.ChunkIndex,
			}
			maps.Copy(meta, metadata)
			insights[i].Metadata = meta
		}
		r.insights = insights
		return struct{}{}, nil
	})

	for i, err := range errs {
		if err != nil {
			misses[i].failed = true
			metrics.RecordChunk(metrics.ChunkLLMFailed)
			e.logger.Warn("insight extraction failed",
				"page", misses[i].chunk.PageNumber,
				"chunk", misses[i].chunk.ChunkIndex,
				"error", err,
			)
		}
	}
}

// embed fills each chunk's embedding. A chunk whose embedding fails or has
// the wrong width keeps its insights but is not indexed.
func (e *Extractor) embed(ctx context.Context, chunks []*chunkResult) {
	embeddings, errs := mapBounded(ctx, chunks, FanOutLimit, func(ctx context.Context, r *chunkResult) ([]float32, error) {
		emb, err := e.embedder.Embed(ctx, r.chunk.Text)
		if err != nil {
			return nil, err
		}
		if err := vector.CheckDimensions(emb, e.dimensions); err != nil {
			return nil, err
		}
		return emb, nil
	})

	for i, r := range chunks {
		if errs[i] != nil {
			metrics.RecordChunk(metrics.ChunkEmbedFailed)
			e.logger.Warn("chunk embedding failed",
				"page", r.chunk.PageNumber,
				"chunk", r.chunk.ChunkIndex,
				"error", errs[i],
			)
			continue
		}
		r.embedding = embeddings[i]
		for j := range r.insights {
			r.insights[j].Embedding = slices.Clone(r.embedding)
		}
		metrics.RecordChunk(metrics.ChunkExtracted)
	}
}

func (e *Extractor) upsertChunks(ctx context.Context, chunks []*chunkResult, metadata map[string]any) {
	points := make([]vector.Point, 0, len(chunks))
	for _, r := range chunks {
		if r.embedding == nil {
			continue
		}
		payload := map[string]any{}
		maps.Copy(payload, metadata)
		payload["text"] = r.chunk.Text
		payload["page"] = r.chunk.PageNumber
		payload["chunk"] = r.chunk.ChunkIndex
		points = append(points, vector.Point{Vector: r.embedding, Payload: payload})
	}
	if len(points) == 0 {
		return
	}

	if _, err := e.index.Upsert(ctx, vector.CollectionChunks, points); err != nil {
		e.logger.Warn("failed to store chunk vectors", "points", len(points), "error", err)
	}
}

func (e *Extractor) upsertInsights(ctx context.Context, insights []Insight) {
	if len(insights) == 0 {
		return
	}

	embeddings, errs := mapBounded(ctx, insights, FanOutLimit, func(ctx context.Context, in Insight) ([]float32, error) {
		emb, err := e.embedder.Embed(ctx, in.Text)
		if err != nil {
			return nil, err
		}
		return emb, vector.CheckDimensions(emb, e.dimensions)
	})

	points := make([]vector.Point, 0, len(insights))
	for i, in := range insights {
		if errs[i] != nil {
			e.logger.Warn("insight embedding failed", "error", errs[i])
			continue
		}
		payload := map[string]any{}
		maps.Copy(payload, in.Metadata)
		payload["text"] = in.Text
		payload["relevance"] = in.Relevance
		points = append(points, vector.Point{Vector: embeddings[i], Payload: payload})
	}
	if len(points) == 0 {
		return
	}

	if _, err := e.index.Upsert(ctx, vector.CollectionInsights, points); err != nil {
		e.logger.Warn("failed to store insight vectors", "points", len(points), "error", err)
	}
}

func (e *Extractor) logInsights(ctx context.Context, insights []Insight, metadata map[string]any) {
	if e.log == nil {
		return
	}
	path, _ := vector.PayloadString(metadata, "source")
	now := time.Now()
	for _, in := range insights {
		_, err := e.log.SaveInsight(ctx, &storage.DocumentInsight{
			Timestamp:    now,
			DocumentPath: path,
			InsightText:  in.Text,
			Relevance:    in.Relevance,
			InsightType:  InsightTypeDocument,
		})
		if err != nil {
			e.logger.Warn("failed to log insight", "error", err)
			return
		}
	}
}

// ExtractInsights asks the completer for the insights in text and runs the
// reply through ParseInsights.
func (e *Extractor) ExtractInsights(ctx context.Context, text string) ([]Insight, error) {
	resp, err := e.completer.Complete(ctx, fmt.Sprintf(insightPrompt, text))
	if err != nil {
		return nil, fmt.Errorf("failed to get completion: %w", err)
	}
	return ParseInsights(resp), nil
}

// QuickAnalyze returns a free-form analysis of text in a single completion.
func (e *Extractor) QuickAnalyze(ctx context.Context, text string) (string, error) {
	resp, err := e.completer.Complete(ctx, fmt.Sprintf(quickAnalysisPrompt, text))
	if err != nil {
		return "", fmt.Errorf("failed to get quick analysis: %w", err)
	}
	return resp, nil
}
