package engine

import (
	"context"
	"fmt"

	"github.com/papercomputeco/mnemo/pkg/credentials"
	"github.com/papercomputeco/mnemo/pkg/dotdir"
	"github.com/papercomputeco/mnemo/pkg/embeddings"
	"github.com/papercomputeco/mnemo/pkg/embeddings/cached"
	embeddingutils "github.com/papercomputeco/mnemo/pkg/embeddings/utils"
	"github.com/papercomputeco/mnemo/pkg/eventstream/kafka"
	"github.com/papercomputeco/mnemo/pkg/eventstream/nop"
	"github.com/papercomputeco/mnemo/pkg/llm"
	llmutils "github.com/papercomputeco/mnemo/pkg/llm/utils"
	"github.com/papercomputeco/mnemo/pkg/session"
	sessionredis "github.com/papercomputeco/mnemo/pkg/session/redis"
	"github.com/papercomputeco/mnemo/pkg/storage/inmemory"
	"github.com/papercomputeco/mnemo/pkg/storage/postgres"
	"github.com/papercomputeco/mnemo/pkg/storage/sqlite"
	vectorutils "github.com/papercomputeco/mnemo/pkg/vector/utils"
)

// Provider and driver names understood by New beyond the factories' own.
const (
	// EmbeddingBackend embeds with the LLM backend itself.
	EmbeddingBackend = "backend"

	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
	StorageMemory   = "memory"

	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"

	PublisherNop   = "nop"
	PublisherKafka = "kafka"

	defaultLogFile    = "mnemo.db"
	defaultVectorFile = "vectors.db"
)

// embeddingBackend routes Embed to a dedicated embedder while completions
// go to the wrapped backend.
type embeddingBackend struct {
	llm.Backend
	embedder llm.Embedder
}

func (b *embeddingBackend) Embed(ctx context.Context, text string) ([]float32, error) {
	return b.embedder.Embed(ctx, text)
}

// backendEmbedder adapts a backend's own Embed to embeddings.Embedder.
type backendEmbedder struct {
	llm.Backend
}

func (backendEmbedder) Close() error { return nil }

func (e *Engine) buildBackend(opts Options, creds *credentials.Manager) error {
	if opts.Backend != nil {
		e.Backend = opts.Backend
		e.Embedder = opts.Backend
		return nil
	}
	cfg := e.Config

	var dedicated embeddings.Embedder
	if p := cfg.Embedding.Provider; p != "" && p != EmbeddingBackend {
		var err error
		dedicated, err = embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
			ProviderType: p,
			TargetURL:    cfg.Embedding.Target,
			Model:        cfg.Embedding.Model,
			APIKey:       creds.Resolve(p, ""),
			CacheEntries: cfg.Embedding.CacheEntries,
		})
		if err != nil {
			return fmt.Errorf("creating embedder: %w", err)
		}
		e.closers = append(e.closers, dedicated.Close)
	}

	var systemPrompt string
	if e.personality != nil {
		systemPrompt = e.personality.SystemPrompt()
	}

	var fallback llm.Embedder
	if dedicated != nil {
		fallback = dedicated
	}
	active, err := llmutils.NewBackend(&llmutils.NewBackendOpts{
		Provider: cfg.LLM.Provider,
		Options: llm.Options{
			Model:          cfg.LLM.Model,
			EmbeddingModel: cfg.Embedding.Model,
			BaseURL:        cfg.LLM.BaseURL,
			Temperature:    cfg.LLM.Temperature,
			SystemPrompt:   systemPrompt,
			Embedder:       fallback,
			Logger:         e.logger,
		},
		Credentials:       creds,
		RequestsPerSecond: cfg.LLM.RequestsPerSecond,
	})
	if err != nil {
		return err
	}

	switch {
	case dedicated != nil:
		e.Backend = &embeddingBackend{Backend: active, embedder: dedicated}
	case cfg.Embedding.CacheEntries > 0:
		memo, err := cached.New(backendEmbedder{active}, cached.Config{MaxEntries: cfg.Embedding.CacheEntries})
		if err != nil {
			return err
		}
		e.closers = append(e.closers, memo.Close)
		e.Backend = &embeddingBackend{Backend: active, embedder: memo}
	default:
		e.Backend = active
	}
	e.Embedder = e.Backend
	return nil
}

func (e *Engine) buildIndex(opts Options, creds *credentials.Manager) error {
	if opts.Index != nil {
		e.Index = opts.Index
		return nil
	}
	cfg := e.Config.VectorStore

	target := cfg.Target
	if target == "" && cfg.Provider == vectorutils.ProviderSQLiteVec {
		var err error
		target, err = dotdir.NewManager().File(opts.ConfigDir, defaultVectorFile)
		if err != nil {
			return err
		}
	}

	index, err := vectorutils.NewIndex(&vectorutils.NewIndexOpts{
		ProviderType: cfg.Provider,
		TargetURL:    target,
		APIKey:       creds.Resolve(cfg.Provider, ""),
		Logger:       e.logger,
	})
	if err != nil {
		return fmt.Errorf("creating vector index: %w", err)
	}
	e.Index = index
	e.closers = append(e.closers, index.Close)

	if cfg.Provider == vectorutils.ProviderChromem {
		e.logger.Warn("chromem cannot answer zero-vector queries; recent memories, session history, topic context and document summaries will be empty",
			"vector_store", cfg.Provider)
	}
	return nil
}

func (e *Engine) buildLog(ctx context.Context, opts Options) error {
	if opts.Log != nil {
		e.Log = opts.Log
		return nil
	}
	cfg := e.Config.Storage

	switch cfg.Driver {
	case StorageSQLite, "":
		path := cfg.SQLitePath
		if path == "" {
			var err error
			path, err = dotdir.NewManager().File(opts.ConfigDir, defaultLogFile)
			if err != nil {
				return err
			}
		}
		d, err := sqlite.NewDriver(ctx, path)
		if err != nil {
			return fmt.Errorf("opening sqlite log: %w", err)
		}
		e.Log = d
	case StoragePostgres:
		d, err := postgres.NewDriver(ctx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("opening postgres log: %w", err)
		}
		e.Log = d
	case StorageMemory:
		e.Log = inmemory.NewDriver()
	default:
		return fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
	e.closers = append(e.closers, e.Log.Close)
	return nil
}

func (e *Engine) buildSessions(ctx context.Context, opts Options) error {
	cfg := e.Config.Session

	store := opts.SessionStore
	if store == nil {
		switch cfg.Store {
		case SessionStoreMemory, "":
		case SessionStoreRedis:
			rs, err := sessionredis.New(ctx, sessionredis.Config{Addr: cfg.RedisAddr})
			if err != nil {
				return err
			}
			e.closers = append(e.closers, rs.Close)
			store = rs
		default:
			return fmt.Errorf("unsupported session store: %s", cfg.Store)
		}
	}

	e.Sessions = session.NewManager(session.Config{
		Window: cfg.WindowDuration(),
		Store:  store,
		Logger: e.logger,
	})
	return e.Sessions.Restore(ctx)
}

func (e *Engine) buildPublisher(opts Options) error {
	if opts.Publisher != nil {
		e.Publisher = opts.Publisher
		return nil
	}
	cfg := e.Config.Events

	switch cfg.Publisher {
	case PublisherNop, "":
		e.Publisher = nop.NewPublisher()
	case PublisherKafka:
		p, err := kafka.NewPublisher(kafka.Config{Brokers: cfg.BrokerList(), Topic: cfg.Topic})
		if err != nil {
			return err
		}
		e.Publisher = p
	default:
		return fmt.Errorf("unsupported event publisher: %s", cfg.Publisher)
	}
	e.closers = append(e.closers, e.Publisher.Close)
	return nil
}
