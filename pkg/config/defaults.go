package config

import "time"

const (
	defaultStorageDriver = "sqlite"

	defaultVectorProvider = "sqlite-vec"

	defaultLLMProvider = "openai"
	defaultTemperature = 0.7

	// "backend" embeds with the LLM backend itself.
	defaultEmbeddingProvider   = "backend"
	defaultEmbeddingDimensions = 1536
	defaultEmbeddingCache      = 1000

	defaultRetentionDays = 30
	defaultWorkers       = 3
	defaultQueueSize     = 256

	defaultChunkWords = 1000
	defaultCacheSize  = 100

	defaultSessionStore  = "memory"
	defaultSessionWindow = 30 * time.Minute

	defaultEventsPublisher = "nop"
	defaultEventsTopic     = "mnemo.events"

	defaultAPIListen = ":8081"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Driver: defaultStorageDriver,
		},
		VectorStore: VectorStoreConfig{
			Provider: defaultVectorProvider,
		},
		Embedding: EmbeddingConfig{
			Provider:     defaultEmbeddingProvider,
			Dimensions:   defaultEmbeddingDimensions,
			CacheEntries: defaultEmbeddingCache,
		},
		LLM: LLMConfig{
			Provider:    defaultLLMProvider,
			Temperature: defaultTemperature,
		},
		Memory: MemoryConfig{
			RetentionDays: defaultRetentionDays,
			Workers:       defaultWorkers,
			QueueSize:     defaultQueueSize,
		},
		Document: DocumentConfig{
			ChunkWords:    defaultChunkWords,
			CacheSize:     defaultCacheSize,
			IndexInsights: true,
		},
		Session: SessionConfig{
			Store:  defaultSessionStore,
			Window: defaultSessionWindow.String(),
		},
		Events: EventsConfig{
			Publisher: defaultEventsPublisher,
			Topic:     defaultEventsTopic,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
	}
}
