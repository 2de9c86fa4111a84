// Package worker provides an asynchronous worker pool for persisting
// conversation turns as memory records. Each job is embedded, optionally
// tagged, stored in the memory index, appended to the relational log and
// announced on the event stream.
//
// The pool keeps this work off the chat path so a reply can be returned
// before the assistant's turn has been stored.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/papercomputeco/mnemo/pkg/eventstream"
	"github.com/papercomputeco/mnemo/pkg/llm"
	"github.com/papercomputeco/mnemo/pkg/logger"
	"github.com/papercomputeco/mnemo/pkg/memory"
	"github.com/papercomputeco/mnemo/pkg/metrics"
	"github.com/papercomputeco/mnemo/pkg/storage"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
	defaultJobTimeout        = time.Minute
)

// Job is one conversation turn to persist.
type Job struct {
	Text string
	Role string

	// SessionID pins the record to a session. Empty uses the session that
	// is current when the job runs.
	SessionID string

	Metadata map[string]any

	// Embedding is used as is when set; otherwise the pool embeds Text.
	Embedding []float32

	// Analyze asks the configured Tagger for topic tags and importance.
	Analyze bool

	// LogTag is written to the relational log when the turn has no tags.
	LogTag string

	// Timestamp is when the turn happened. Zero means the time the job runs.
	Timestamp time.Time
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Store receives the memory records.
	Store *memory.Store

	// Embedder embeds jobs that arrive without an embedding.
	Embedder llm.Embedder

	// Tagger is the optional completer used for jobs with Analyze set.
	Tagger memory.Completer

	// Log is the optional relational log.
	Log storage.Driver

	// Publisher is the optional event stream publisher.
	Publisher eventstream.Publisher
	Source    eventstream.EventSource

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// JobTimeout bounds the work on a single job (defaults to one minute).
	JobTimeout time.Duration

	Logger *slog.Logger
}

// Pool processes memory jobs asynchronously.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Store == nil {
		return nil, errors.New("worker: memory store is required")
	}
	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}
	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaultJobTimeout
	}
	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}
	if c.Logger == nil {
		c.Logger = logger.Nop()
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full or the pool is
// closed, resulting in the job being dropped.
func (p *Pool) Enqueue(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.logger.Error("job not queued, pool closed", "role", job.Role)
		metrics.RecordWorkerDrop()
		return false
	}

	select {
	case p.queue <- job:
		metrics.SetWorkerQueueDepth(len(p.queue))
		p.logger.Debug("job queued", "role", job.Role, "session_id", job.SessionID)
		return true
	default:
		metrics.RecordWorkerDrop()
		p.logger.Error("job not queued, queue full, job dropped", "role", job.Role, "session_id", job.SessionID)
		return false
	}
}

// Close stops accepting jobs and waits for queued ones to drain.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
	metrics.SetWorkerQueueDepth(0)
}

func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range p.queue {
		metrics.SetWorkerQueueDepth(len(p.queue))
		p.processJob(job)
	}

	p.logger.Debug("memory worker stopped", "worker_id", id)
}

// processJob stores one turn. Only a failure to embed or store ends the
// job early; log and publish failures are logged and skipped.
func (p *Pool) processJob(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.JobTimeout)
	defer cancel()

	rec, id, err := p.storeTurn(ctx, job)
	if err != nil {
		p.logger.Error("async memory storage failed", "role", job.Role, "error", err)
		return
	}
	p.logger.Info("memory stored", "id", id, "role", rec.Role, "session_id", rec.SessionID)

	if p.config.Log != nil {
		tag := job.LogTag
		if len(rec.TopicTags) > 0 {
			tag = rec.TopicTags[0]
		}
		if _, err := p.config.Log.Append(ctx, &storage.Conversation{
			Timestamp: rec.Timestamp,
			Actor:     rec.Role,
			Content:   rec.Text,
			Tag:       tag,
		}); err != nil {
			p.logger.Warn("failed to log conversation turn", "id", id, "error", err)
		}
	}

	if p.config.Publisher != nil {
		event := eventstream.NewMemoryStoredEvent(p.config.Source, id, rec.SessionID, rec.Role, rec.Text)
		event.Importance = rec.Importance
		event.TopicTags = rec.TopicTags
		if err := p.config.Publisher.PublishMemory(ctx, event); err != nil {
			p.logger.Warn("failed to publish memory event", "id", id, "error", err)
		}
	}
}

func (p *Pool) storeTurn(ctx context.Context, job Job) (memory.Record, string, error) {
	embedding := job.Embedding
	if embedding == nil {
		if p.config.Embedder == nil {
			return memory.Record{}, "", errors.New("job has no embedding and no embedder is configured")
		}
		var err error
		embedding, err = p.config.Embedder.Embed(ctx, job.Text)
		if err != nil {
			return memory.Record{}, "", fmt.Errorf("generating embedding: %w", err)
		}
	}

	rec := memory.Record{
		Text:       job.Text,
		Role:       job.Role,
		SessionID:  job.SessionID,
		Importance: memory.DefaultImportance,
		Metadata:   job.Metadata,
		Timestamp:  job.Timestamp,
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	if rec.SessionID == "" {
		rec.SessionID = p.config.Store.CurrentSessionID()
	}

	if job.Analyze && p.config.Tagger != nil {
		tags, importance, err := memory.AnalyzeAndTag(ctx, p.config.Tagger, job.Text)
		if err != nil {
			p.logger.Warn("failed to tag memory, storing untagged", "error", err)
		} else {
			rec.TopicTags = tags
			rec.Importance = importance
		}
	}

	id, err := p.config.Store.StoreRecord(ctx, rec, embedding)
	if err != nil {
		return rec, "", err
	}
	return rec, id, nil
}
