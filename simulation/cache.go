package simulation

import (
	"sync"
	"time"
)

// ComparisonCache memoizes the deduplicated comparison view between
// store mutations, so repeated reads do not rebuild rows or re-hit the
// persistence backend. Implementations may be swapped (in-memory, Redis,
// none).
type ComparisonCache interface {
	// Get returns cached rows, or nil on a miss or expiry.
	Get() []ComparisonRow

	// Set stores rows in the cache.
	Set(rows []ComparisonRow)

	// Invalidate clears the cache, forcing a rebuild on the next read.
	Invalidate()

	// IsValid reports whether the cache currently holds usable data.
	IsValid() bool
}

// CacheConfig controls cache expiry. A zero TTL means entries live until
// explicitly invalidated by a store mutation.
type CacheConfig struct {
	TTL time.Duration
}

// DefaultCacheConfig returns the mutation-invalidated, no-TTL default.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{TTL: 0}
}

// InMemoryComparisonCache is a thread-safe in-memory ComparisonCache.
type InMemoryComparisonCache struct {
	mu       sync.RWMutex
	rows     []ComparisonRow
	cachedAt time.Time
	config   CacheConfig
	valid    bool
}

// NewInMemoryComparisonCache creates an empty cache with the given
// config.
func NewInMemoryComparisonCache(config CacheConfig) *InMemoryComparisonCache {
	return &InMemoryComparisonCache{config: config}
}

func (c *InMemoryComparisonCache) Get() []ComparisonRow {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.valid {
		return nil
	}
	if c.config.TTL > 0 && time.Since(c.cachedAt) > c.config.TTL {
		return nil
	}

	// Copy so callers cannot mutate the cached slice.
	rows := make([]ComparisonRow, len(c.rows))
	copy(rows, c.rows)
	return rows
}

func (c *InMemoryComparisonCache) Set(rows []ComparisonRow) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rows = make([]ComparisonRow, len(rows))
	copy(c.rows, rows)
	c.cachedAt = time.Now()
	c.valid = true
}

func (c *InMemoryComparisonCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.valid = false
	c.rows = nil
}

func (c *InMemoryComparisonCache) IsValid() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.valid {
		return false
	}
	if c.config.TTL > 0 {
		return time.Since(c.cachedAt) <= c.config.TTL
	}
	return true
}
