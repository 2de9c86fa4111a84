// Package topics generates fresh discussion topics for a personality and
// remembers recent ones so they are not repeated.
package topics

import (
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const (
	DefaultTTL      = 24 * time.Hour
	DefaultCapacity = 1000
)

// Cache remembers recently used topics. Entries expire after the TTL and
// the oldest entry is evicted once the capacity is reached.
type Cache struct {
	mu       sync.Mutex
	items    *gocache.Cache
	capacity int
	clock    func() time.Time
}

// NewCache returns a Cache. Non-positive values take the defaults.
func NewCache(ttl time.Duration, capacity int) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		items:    gocache.New(ttl, ttl/4),
		capacity: capacity,
		clock:    time.Now,
	}
}

// IsUnique reports whether topic neither contains nor is contained by a
// remembered topic, ignoring case. A blank topic is never unique.
func (c *Cache) IsUnique(topic string) bool {
	needle := strings.ToLower(strings.TrimSpace(topic))
	if needle == "" {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for cached := range c.items.Items() {
		if strings.Contains(cached, needle) || strings.Contains(needle, cached) {
			return false
		}
	}
	return true
}

// Add remembers topic. Blank topics are ignored.
func (c *Cache) Add(topic string) {
	key := strings.ToLower(strings.TrimSpace(topic))
	if key == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.items.Get(key); !exists && c.items.ItemCount() >= c.capacity {
		c.evictOldest()
	}
	c.items.Set(key, c.clock(), gocache.DefaultExpiration)
}

// Len returns the number of remembered topics.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items.Items())
}

// Clear forgets every topic.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items.Flush()
}

func (c *Cache) evictOldest() {
	var (
		oldestKey string
		oldest    time.Time
	)
	for k, item := range c.items.Items() {
		added, _ := item.Object.(time.Time)
		if oldestKey == "" || added.Before(oldest) {
			oldestKey, oldest = k, added
		}
	}
	if oldestKey != "" {
		c.items.Delete(oldestKey)
	}
}
