package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config represents the persistent mnemo configuration stored as config.toml
// in the .mnemo/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Storage     StorageConfig     `toml:"storage"`
	VectorStore VectorStoreConfig `toml:"vector_store"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	LLM         LLMConfig         `toml:"llm"`
	Memory      MemoryConfig      `toml:"memory"`
	Document    DocumentConfig    `toml:"document"`
	Session     SessionConfig     `toml:"session"`
	Events      EventsConfig      `toml:"events"`
	API         APIConfig         `toml:"api"`
	Personality PersonalityConfig `toml:"personality"`
}

// StorageConfig selects the relational log driver.
type StorageConfig struct {
	// Driver is one of "sqlite", "postgres" or "inmemory".
	Driver      string `toml:"driver,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// VectorStoreConfig holds vector index settings.
type VectorStoreConfig struct {
	Provider string `toml:"provider,omitempty"`
	Target   string `toml:"target,omitempty"`
}

// EmbeddingConfig holds embedding provider settings. The "backend" provider
// embeds with the configured LLM backend.
type EmbeddingConfig struct {
	Provider     string `toml:"provider,omitempty"`
	Target       string `toml:"target,omitempty"`
	Model        string `toml:"model,omitempty"`
	Dimensions   uint   `toml:"dimensions,omitempty"`
	CacheEntries int64  `toml:"cache_entries,omitempty"`
}

// LLMConfig selects the completion backend.
type LLMConfig struct {
	Provider          string  `toml:"provider,omitempty"`
	Model             string  `toml:"model,omitempty"`
	BaseURL           string  `toml:"base_url,omitempty"`
	Temperature       float64 `toml:"temperature,omitempty"`
	RequestsPerSecond float64 `toml:"requests_per_second,omitempty"`
}

// MemoryConfig holds conversational memory settings.
type MemoryConfig struct {
	RetentionDays    int  `toml:"retention_days,omitempty"`
	AnalyzeResponses bool `toml:"analyze_responses"`
	Workers          uint `toml:"workers,omitempty"`
	QueueSize        uint `toml:"queue_size,omitempty"`
}

// DocumentConfig holds document processing settings.
type DocumentConfig struct {
	ChunkWords    int  `toml:"chunk_words,omitempty"`
	CacheSize     int  `toml:"cache_size,omitempty"`
	IndexInsights bool `toml:"index_insights"`
}

// SessionConfig selects where sessions are kept.
type SessionConfig struct {
	// Store is "memory" or "redis".
	Store     string `toml:"store,omitempty"`
	RedisAddr string `toml:"redis_addr,omitempty"`
	Window    string `toml:"window,omitempty"`
}

// WindowDuration parses Window, falling back to the default on error.
func (s SessionConfig) WindowDuration() time.Duration {
	d, err := time.ParseDuration(s.Window)
	if err != nil || d <= 0 {
		return defaultSessionWindow
	}
	return d
}

// EventsConfig selects the event stream publisher.
type EventsConfig struct {
	// Publisher is "nop" or "kafka".
	Publisher string `toml:"publisher,omitempty"`

	// Brokers is a comma separated broker list.
	Brokers string `toml:"brokers,omitempty"`
	Topic   string `toml:"topic,omitempty"`
}

// BrokerList splits Brokers.
func (e EventsConfig) BrokerList() []string {
	var out []string
	for _, b := range strings.Split(e.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// PersonalityConfig points at an optional personality profile.
type PersonalityConfig struct {
	Path  string `toml:"path,omitempty"`
	Watch bool   `toml:"watch"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func boolKey(name string, field func(c *Config) *bool) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strconv.FormatBool(*field(c)) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = b
			return nil
		},
	}
}

func uintKey(name string, field func(c *Config) *uint) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(*field(c)), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = uint(n)
			return nil
		},
	}
}

func intKey(name string, field func(c *Config) *int) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.Itoa(*field(c))
		},
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = n
			return nil
		},
	}
}

func floatKey(name string, field func(c *Config) *float64) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatFloat(*field(c), 'g', -1, 64)
		},
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = f
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.driver":       stringKey(func(c *Config) *string { return &c.Storage.Driver }),
	"storage.sqlite_path":  stringKey(func(c *Config) *string { return &c.Storage.SQLitePath }),
	"storage.postgres_dsn": stringKey(func(c *Config) *string { return &c.Storage.PostgresDSN }),

	"vector_store.provider": stringKey(func(c *Config) *string { return &c.VectorStore.Provider }),
	"vector_store.target":   stringKey(func(c *Config) *string { return &c.VectorStore.Target }),

	"embedding.provider":   stringKey(func(c *Config) *string { return &c.Embedding.Provider }),
	"embedding.target":     stringKey(func(c *Config) *string { return &c.Embedding.Target }),
	"embedding.model":      stringKey(func(c *Config) *string { return &c.Embedding.Model }),
	"embedding.dimensions": uintKey("embedding.dimensions", func(c *Config) *uint { return &c.Embedding.Dimensions }),
	"embedding.cache_entries": {
		get: func(c *Config) string {
			if c.Embedding.CacheEntries == 0 {
				return ""
			}
			return strconv.FormatInt(c.Embedding.CacheEntries, 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for embedding.cache_entries: %w", err)
			}
			c.Embedding.CacheEntries = n
			return nil
		},
	},

	"llm.provider":            stringKey(func(c *Config) *string { return &c.LLM.Provider }),
	"llm.model":               stringKey(func(c *Config) *string { return &c.LLM.Model }),
	"llm.base_url":            stringKey(func(c *Config) *string { return &c.LLM.BaseURL }),
	"llm.temperature":         floatKey("llm.temperature", func(c *Config) *float64 { return &c.LLM.Temperature }),
	"llm.requests_per_second": floatKey("llm.requests_per_second", func(c *Config) *float64 { return &c.LLM.RequestsPerSecond }),

	"memory.retention_days":    intKey("memory.retention_days", func(c *Config) *int { return &c.Memory.RetentionDays }),
	"memory.analyze_responses": boolKey("memory.analyze_responses", func(c *Config) *bool { return &c.Memory.AnalyzeResponses }),
	"memory.workers":           uintKey("memory.workers", func(c *Config) *uint { return &c.Memory.Workers }),
	"memory.queue_size":        uintKey("memory.queue_size", func(c *Config) *uint { return &c.Memory.QueueSize }),

	"document.chunk_words":    intKey("document.chunk_words", func(c *Config) *int { return &c.Document.ChunkWords }),
	"document.cache_size":     intKey("document.cache_size", func(c *Config) *int { return &c.Document.CacheSize }),
	"document.index_insights": boolKey("document.index_insights", func(c *Config) *bool { return &c.Document.IndexInsights }),

	"session.store":      stringKey(func(c *Config) *string { return &c.Session.Store }),
	"session.redis_addr": stringKey(func(c *Config) *string { return &c.Session.RedisAddr }),
	"session.window": {
		get: func(c *Config) string { return c.Session.Window },
		set: func(c *Config, v string) error {
			if _, err := time.ParseDuration(v); err != nil {
				return fmt.Errorf("invalid value for session.window: %w", err)
			}
			c.Session.Window = v
			return nil
		},
	},

	"events.publisher": stringKey(func(c *Config) *string { return &c.Events.Publisher }),
	"events.brokers":   stringKey(func(c *Config) *string { return &c.Events.Brokers }),
	"events.topic":     stringKey(func(c *Config) *string { return &c.Events.Topic }),

	"api.listen": stringKey(func(c *Config) *string { return &c.API.Listen }),

	"personality.path":  stringKey(func(c *Config) *string { return &c.Personality.Path }),
	"personality.watch": boolKey("personality.watch", func(c *Config) *bool { return &c.Personality.Watch }),
}

// orderedKeys lists the keys in TOML section order.
var orderedKeys = []string{
	"storage.driver", "storage.sqlite_path", "storage.postgres_dsn",
	"vector_store.provider", "vector_store.target",
	"embedding.provider", "embedding.target", "embedding.model", "embedding.dimensions", "embedding.cache_entries",
	"llm.provider", "llm.model", "llm.base_url", "llm.temperature", "llm.requests_per_second",
	"memory.retention_days", "memory.analyze_responses", "memory.workers", "memory.queue_size",
	"document.chunk_words", "document.cache_size", "document.index_insights",
	"session.store", "session.redis_addr", "session.window",
	"events.publisher", "events.brokers", "events.topic",
	"api.listen",
	"personality.path", "personality.watch",
}
