package document

import (
	"fmt"
	"maps"
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CacheEntry is a fully processed chunk.
type CacheEntry struct {
	Chunk     DocumentChunk
	Embedding []float32
	Insights  []Insight
}

// CacheKey is the cache key for a chunk position.
func CacheKey(page, chunk int) string {
	return fmt.Sprintf("page_%d_chunk_%d", page, chunk)
}

// Cache is a bounded LRU of processed chunks. Get and Put both count as a
// touch. It never performs I/O while holding its lock.
type Cache struct {
	lru *lru.Cache[string, CacheEntry]
}

// NewCache returns a cache holding at most size entries. A non-positive size
// uses DefaultCacheSize.
func NewCache(size int) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	// lru.New only fails for non-positive sizes.
	c, _ := lru.New[string, CacheEntry](size)
	return &Cache{lru: c}
}

// Get returns the entry under key. A miss returns the zero entry and false.
func (c *Cache) Get(key string) (CacheEntry, bool) {
	e, ok := c.lru.Get(key)
	if !ok {
		return CacheEntry{}, false
	}
	return e.clone(), true
}

// Put stores entry under key, evicting the least recently used entry when
// the cache is full. It reports whether an eviction happened.
func (c *Cache) Put(key string, entry CacheEntry) bool {
	return c.lru.Add(key, entry.clone())
}

// Contains reports whether key is cached without touching it.
func (c *Cache) Contains(key string) bool {
	return c.lru.Contains(key)
}

// Keys returns the cached keys from least to most recently used.
func (c *Cache) Keys() []string {
	return c.lru.Keys()
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	return c.lru.Len()
}

// Purge empties the cache.
func (c *Cache) Purge() {
	c.lru.Purge()
}

// clone copies e down to the embeddings and metadata maps so callers never
// share backing storage with the cache.
func (e CacheEntry) clone() CacheEntry {
	out := CacheEntry{
		Chunk:     e.Chunk,
		Embedding: slices.Clone(e.Embedding),
		Insights:  make([]Insight, len(e.Insights)),
	}
	out.Chunk.Metadata = maps.Clone(e.Chunk.Metadata)
	for i, in := range e.Insights {
		in.Embedding = slices.Clone(in.Embedding)
		in.Metadata = maps.Clone(in.Metadata)
		out.Insights[i] = in
	}
	return out
}
