package fetch

import (
	"sync"
	"time"

	"github.com/wonny/limitup/internal/contracts"
	"github.com/wonny/limitup/pkg/logger"
)

// Cache is the process-local TTL cache shared by all fetchers
// ⭐ SSOT: fetch 결과 캐싱은 이 구조체에서만 (fetch 경로만 쓰기)
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	logger  *logger.Logger
	now     func() time.Time
}

type cacheEntry struct {
	value     interface{}
	provider  string
	tag       contracts.DataTag
	fetchedAt time.Time
	expiresAt time.Time
}

// NewCache creates an empty cache
func NewCache(log *logger.Logger) *Cache {
	return &Cache{
		entries: make(map[string]*cacheEntry),
		logger:  log,
		now:     time.Now,
	}
}

func (c *Cache) get(key string) (*cacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || c.now().After(e.expiresAt) {
		return nil, false
	}
	return e, true
}

func (c *Cache) set(key string, e *cacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = e
}

// Delete removes one entry
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
}

// Clear removes everything
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.logger.Info("Cleared fetch cache")
}

// Len returns the number of entries, expired or not
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// CleanStale removes expired entries
func (c *Cache) CleanStale() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	count := 0

	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
			count++
		}
	}

	if count > 0 {
		c.logger.WithField("count", count).Info("Cleaned stale fetch cache entries")
	}

	return count
}

// CacheStats summarizes the cache
type CacheStats struct {
	TotalCount int            `json:"total_count"`
	StaleCount int            `json:"stale_count"`
	ByTag      map[string]int `json:"by_tag"`
}

// Stats returns cache statistics
func (c *Cache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := CacheStats{
		TotalCount: len(c.entries),
		ByTag:      make(map[string]int),
	}

	now := c.now()
	for _, e := range c.entries {
		if now.After(e.expiresAt) {
			stats.StaleCount++
		}
		stats.ByTag[string(e.tag)]++
	}

	return stats
}
