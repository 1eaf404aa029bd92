// Package cache keeps rendered configurations between requests.
// It uses patrickmn/go-cache for TTL-based expiry; a pass over a table
// invalidates that table's entry.
package cache

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const configPrefix = "config:"

// Cache wraps go-cache with hit accounting and per-table keys.
//
// Each table carries a generation that moves on every SetConfig and
// Invalidate. A reader that renders on a miss fills the cache with
// FillConfig, which refuses the value if the generation moved meanwhile.
type Cache struct {
	store  *gocache.Cache
	hits   atomic.Int64
	misses atomic.Int64

	mu          sync.Mutex
	generations map[string]uint64
}

// New creates a new cache with the given TTL and cleanup interval.
// defaultTTL is the default expiration time for cache entries.
// cleanupInterval is how often expired items are removed from memory.
func New(defaultTTL, cleanupInterval time.Duration) *Cache {
	return &Cache{
		store:       gocache.New(defaultTTL, cleanupInterval),
		generations: make(map[string]uint64),
	}
}

// Get retrieves a value from the cache.
func (c *Cache) Get(key string) (any, bool) {
	v, ok := c.store.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return v, ok
}

// Set stores a value in the cache with default TTL.
func (c *Cache) Set(key string, value any) {
	c.store.Set(key, value, gocache.DefaultExpiration)
}

// Delete removes a value from the cache.
func (c *Cache) Delete(key string) {
	c.store.Delete(key)
}

// Clear removes all items from the cache.
func (c *Cache) Clear() {
	c.store.Flush()
}

// Config returns the rendered configuration cached for table.
func (c *Cache) Config(table string) (string, bool) {
	v, ok := c.Get(configPrefix + table)
	if !ok {
		return "", false
	}
	config, ok := v.(string)
	return config, ok
}

// SetConfig caches the configuration a pass just rendered for table.
func (c *Cache) SetConfig(table, config string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[table]++
	c.Set(configPrefix+table, config)
}

// Generation returns the current generation of table.
func (c *Cache) Generation(table string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[table]
}

// FillConfig caches config if table is still at generation gen, and reports
// whether it did.
func (c *Cache) FillConfig(table string, gen uint64, config string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[table] != gen {
		return false
	}
	c.Set(configPrefix+table, config)
	return true
}

// Invalidate drops everything cached for table.
func (c *Cache) Invalidate(table string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[table]++
	c.Delete(configPrefix + table)
}

// Tables lists the tables with a cached configuration.
func (c *Cache) Tables() []string {
	var tables []string
	for key := range c.store.Items() {
		if table, ok := strings.CutPrefix(key, configPrefix); ok {
			tables = append(tables, table)
		}
	}
	return tables
}

// ItemCount returns the number of items in the cache.
func (c *Cache) ItemCount() int {
	return c.store.ItemCount()
}

// Stats returns cache statistics.
type Stats struct {
	ItemCount int   `json:"item_count"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
}

// GetStats returns current cache statistics.
func (c *Cache) GetStats() Stats {
	return Stats{
		ItemCount: c.store.ItemCount(),
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
	}
}
