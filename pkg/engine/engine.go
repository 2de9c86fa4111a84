// Package engine assembles a running mnemo from its configuration: the LLM
// backend and embedder, the vector index, the relational log, sessions,
// memory, documents, the turn worker pool and the event stream.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/papercomputeco/mnemo/pkg/assembler"
	"github.com/papercomputeco/mnemo/pkg/chat"
	"github.com/papercomputeco/mnemo/pkg/config"
	"github.com/papercomputeco/mnemo/pkg/credentials"
	"github.com/papercomputeco/mnemo/pkg/document"
	"github.com/papercomputeco/mnemo/pkg/eventstream"
	"github.com/papercomputeco/mnemo/pkg/llm"
	"github.com/papercomputeco/mnemo/pkg/logger"
	"github.com/papercomputeco/mnemo/pkg/memory"
	"github.com/papercomputeco/mnemo/pkg/memory/worker"
	"github.com/papercomputeco/mnemo/pkg/personality"
	"github.com/papercomputeco/mnemo/pkg/semantic"
	"github.com/papercomputeco/mnemo/pkg/session"
	"github.com/papercomputeco/mnemo/pkg/storage"
	"github.com/papercomputeco/mnemo/pkg/topics"
	"github.com/papercomputeco/mnemo/pkg/vector"
)

// ServiceName identifies mnemo in published events.
const ServiceName = "mnemo"

// Options configure New. Backend, Index, Log and SessionStore replace the
// configured component when set.
type Options struct {
	Config *config.Config

	// ConfigDir overrides the .mnemo directory used for credentials and
	// default database files.
	ConfigDir string

	Backend      llm.Backend
	Index        vector.Index
	Log          storage.Driver
	SessionStore session.Store
	Publisher    eventstream.Publisher

	// DisableWorkers stores assistant turns synchronously instead of through
	// the worker pool.
	DisableWorkers bool

	Logger *slog.Logger
}

// Engine holds every wired component.
type Engine struct {
	Config *config.Config

	Backend  llm.Backend
	Embedder llm.Embedder
	Index    vector.Index
	Log      storage.Driver

	Sessions  *session.Manager
	Memory    *memory.Store
	Assembler *assembler.Assembler
	Documents *document.Extractor
	Semantic  *semantic.Search
	Pool      *worker.Pool
	Chat      *chat.Service
	Topics    *topics.Generator

	Publisher eventstream.Publisher
	Source    eventstream.EventSource

	logger *slog.Logger

	mu          sync.RWMutex
	personality *personality.Profile

	closers []func() error
}

// New builds an Engine. On error every component built so far is closed.
func New(ctx context.Context, opts Options) (e *Engine, err error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	e = &Engine{Config: cfg, logger: log, Source: eventSource()}
	defer func() {
		if err != nil {
			_ = e.Close()
			e = nil
		}
	}()

	if cfg.Personality.Path != "" {
		e.personality, err = personality.Load(cfg.Personality.Path)
		if err != nil {
			return nil, err
		}
	}

	creds, err := credentials.NewManager(opts.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("loading credentials: %w", err)
	}

	if err := e.buildBackend(opts, creds); err != nil {
		return nil, err
	}
	if err := e.buildIndex(opts, creds); err != nil {
		return nil, err
	}
	if err := e.buildLog(ctx, opts); err != nil {
		return nil, err
	}
	if err := e.buildSessions(ctx, opts); err != nil {
		return nil, err
	}
	if err := e.buildPublisher(opts); err != nil {
		return nil, err
	}
	if err := e.buildMemory(ctx, opts); err != nil {
		return nil, err
	}
	if err := e.buildDocuments(ctx); err != nil {
		return nil, err
	}

	e.Topics = topics.NewGenerator(e.Backend, topics.NewCache(0, 0), log)

	log.Debug("engine ready",
		"llm", cfg.LLM.Provider,
		"embedding", cfg.Embedding.Provider,
		"vector_store", cfg.VectorStore.Provider,
		"storage", cfg.Storage.Driver,
		"session_store", cfg.Session.Store,
		"events", cfg.Events.Publisher,
	)
	return e, nil
}

func (e *Engine) buildMemory(ctx context.Context, opts Options) error {
	cfg := e.Config
	dim := int(cfg.Embedding.Dimensions)

	var err error
	e.Memory, err = memory.NewStore(memory.Config{
		Index:      e.Index,
		Sessions:   e.Sessions,
		Dimensions: dim,
		Logger:     e.logger,
	})
	if err != nil {
		return err
	}
	if err := e.Memory.EnsureCollection(ctx); err != nil {
		return fmt.Errorf("creating memory collection: %w", err)
	}

	e.Assembler = assembler.New(assembler.Config{Memory: e.Memory, Logger: e.logger})

	e.Semantic, err = semantic.New(semantic.Config{
		Index:      e.Index,
		Dimensions: dim,
		Backend:    e.Backend,
		Memory:     e.Memory,
		Logger:     e.logger,
	})
	if err != nil {
		return err
	}
	if err := e.Semantic.EnsureCollection(ctx); err != nil {
		return fmt.Errorf("creating semantic collection: %w", err)
	}

	if !opts.DisableWorkers {
		e.Pool, err = worker.NewPool(&worker.Config{
			Store:      e.Memory,
			Embedder:   e.Backend,
			Tagger:     e.Backend,
			Log:        e.Log,
			Publisher:  e.Publisher,
			Source:     e.Source,
			NumWorkers: cfg.Memory.Workers,
			QueueSize:  cfg.Memory.QueueSize,
			Logger:     e.logger,
		})
		if err != nil {
			return err
		}
		e.closers = append(e.closers, func() error {
			e.Pool.Close()
			return nil
		})
	}

	e.Chat, err = chat.NewService(chat.Config{
		Backend:          e.Backend,
		Sessions:         e.Sessions,
		Memory:           e.Memory,
		Assembler:        e.Assembler,
		Pool:             e.Pool,
		AnalyzeResponses: cfg.Memory.AnalyzeResponses,
		Log:              e.Log,
		Publisher:        e.Publisher,
		Source:           e.Source,
		Logger:           e.logger,
	})
	return err
}

func (e *Engine) buildDocuments(ctx context.Context) error {
	cfg := e.Config
	var err error
	e.Documents, err = document.NewExtractor(document.Config{
		Completer:     e.Backend,
		Embedder:      e.Backend,
		Index:         e.Index,
		Log:           e.Log,
		Dimensions:    int(cfg.Embedding.Dimensions),
		CacheSize:     cfg.Document.CacheSize,
		ChunkWords:    cfg.Document.ChunkWords,
		IndexInsights: cfg.Document.IndexInsights,
		Logger:        e.logger,
	})
	if err != nil {
		return err
	}
	return e.Documents.EnsureCollections(ctx)
}

// Personality returns the loaded personality profile, if any.
func (e *Engine) Personality() *personality.Profile {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.personality
}

// WatchPersonality reloads the personality file on change and swaps the
// backend's system prompt. It blocks until ctx is done and is a no-op
// without a configured personality file.
func (e *Engine) WatchPersonality(ctx context.Context) error {
	path := e.Config.Personality.Path
	if path == "" {
		return nil
	}
	return personality.Watch(ctx, path, func(p *personality.Profile) {
		e.mu.Lock()
		e.personality = p
		e.mu.Unlock()
		e.Backend.UpdateSystemPrompt(p.SystemPrompt())
		e.logger.Info("personality reloaded", "name", p.Name)
	}, e.logger)
}

// NextTopic generates a fresh conversation topic for the loaded
// personality.
func (e *Engine) NextTopic(ctx context.Context) (string, error) {
	p := e.Personality()
	if p == nil {
		return "", errors.New("no personality configured")
	}
	return e.Topics.Next(ctx, p)
}

// Cleanup applies the configured memory retention. Indexes that cannot
// prune are skipped.
func (e *Engine) Cleanup(ctx context.Context) (int, error) {
	days := e.Config.Memory.RetentionDays
	if days <= 0 {
		return 0, nil
	}
	n, err := e.Memory.CleanupOld(ctx, days)
	if errors.Is(err, memory.ErrRetentionUnsupported) {
		e.logger.Debug("vector store does not support retention, skipping cleanup")
		return 0, nil
	}
	return n, err
}

// Close stops the worker pool first so queued turns are stored, then
// releases the publisher, log and index.
func (e *Engine) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	return errors.Join(errs...)
}

func eventSource() eventstream.EventSource {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return eventstream.EventSource{Service: ServiceName, Instance: fmt.Sprintf("%s-%d", host, time.Now().Unix())}
}
