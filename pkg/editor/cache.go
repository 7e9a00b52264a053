package editor

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

const minSweepInterval = time.Minute

// CacheStats reports cache effectiveness counters.
type CacheStats struct {
	Hits    int64
	Misses  int64
	HitRate float64
	Size    int
}

type cacheEntry struct {
	key         string
	value       any
	timestamp   time.Time
	ttl         time.Duration
	accessCount int64
	lastAccess  time.Time
}

// Cache is a bounded, TTL-based store for fetched schema data. Lookups never
// fail: a miss is a normal outcome. At capacity it evicts the lowest
// quartile of entries ranked by ascending access count, then ascending
// last-access time.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]*cacheEntry
	maxSize    int
	defaultTTL time.Duration
	hits       int64
	misses     int64
	now        func() time.Time
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithCacheClock overrides the cache's time source, for tests.
func WithCacheClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

// NewCache creates a cache bounded to maxSize entries with the given
// default TTL.
func NewCache(maxSize int, defaultTTL time.Duration, opts ...CacheOption) *Cache {
	c := &Cache{
		entries:    make(map[string]*cacheEntry),
		maxSize:    maxSize,
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CacheKey builds a cache key from a resource type and its parameters,
// e.g. CacheKey("schema", id) -> "schema:<id>".
func CacheKey(resource string, params ...string) string {
	if len(params) == 0 {
		return resource
	}
	return resource + ":" + strings.Join(params, ":")
}

// Get returns the cached value if present and unexpired. Expired entries
// are deleted on lookup and count as misses.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	entry, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if now.Sub(entry.timestamp) >= entry.ttl {
		delete(c.entries, key)
		c.misses++
		return nil, false
	}

	entry.accessCount++
	entry.lastAccess = now
	c.hits++
	return entry.value, true
}

// Set inserts or replaces an entry with the default TTL.
func (c *Cache) Set(key string, value any) {
	c.SetTTL(key, value, c.defaultTTL)
}

// SetTTL inserts or replaces an entry with an explicit TTL.
func (c *Cache) SetTTL(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if existing, ok := c.entries[key]; ok {
		existing.value = value
		existing.timestamp = now
		existing.ttl = ttl
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictLocked()
	}

	c.entries[key] = &cacheEntry{
		key:        key,
		value:      value,
		timestamp:  now,
		ttl:        ttl,
		lastAccess: now,
	}
}

// evictLocked removes the lowest quartile of entries, at least one,
// preferring rarely- and least-recently-used entries.
func (c *Cache) evictLocked() {
	if len(c.entries) == 0 {
		return
	}

	// Expected sizes are tens to low hundreds; a scan-and-sort is simpler
	// to verify than auxiliary order bookkeeping.
	candidates := make([]*cacheEntry, 0, len(c.entries))
	for _, e := range c.entries {
		candidates = append(candidates, e)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].accessCount != candidates[j].accessCount {
			return candidates[i].accessCount < candidates[j].accessCount
		}
		return candidates[i].lastAccess.Before(candidates[j].lastAccess)
	})

	evictCount := len(candidates) / 4
	if evictCount < 1 {
		evictCount = 1
	}
	for _, e := range candidates[:evictCount] {
		delete(c.entries, e.key)
	}
}

// Invalidate removes every entry whose key contains the pattern, e.g. a
// schema ID or the "schemas" list prefix. Returns the number removed.
func (c *Cache) Invalidate(pattern string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.entries {
		if strings.Contains(key, pattern) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Sweep removes all expired entries and returns the number removed.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, entry := range c.entries {
		if now.Sub(entry.timestamp) >= entry.ttl {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Stats returns hit/miss counters and the current size.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := CacheStats{
		Hits:   c.hits,
		Misses: c.misses,
		Size:   len(c.entries),
	}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRate = float64(c.hits) / float64(total)
	}
	return stats
}

// Len returns the current entry count.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// sweepInterval derives the proactive sweep cadence from the default TTL.
func (c *Cache) sweepInterval() time.Duration {
	interval := c.defaultTTL / 5
	if interval < minSweepInterval {
		interval = minSweepInterval
	}
	return interval
}

// Run sweeps expired entries on a fixed interval until ctx is cancelled.
func (c *Cache) Run(ctx context.Context) {
	interval := c.sweepInterval()
	slog.Info("cache sweeper started",
		"component", "cache",
		"interval", interval.String(),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("cache sweeper stopped",
				"component", "cache",
				"reason", "context_cancelled",
			)
			return
		case <-ticker.C:
			if removed := c.Sweep(); removed > 0 {
				slog.Debug("cache sweep completed",
					"component", "cache",
					"removed", removed,
				)
			}
		}
	}
}
