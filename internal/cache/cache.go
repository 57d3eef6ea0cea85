// Package cache provides an in-process TTL cache for lookup results.
package cache

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// DefaultTTL applies when Set is called without a positive ttl.
const DefaultTTL = time.Hour

// DefaultCleanupInterval is how often RunJanitor sweeps expired entries.
const DefaultCleanupInterval = 10 * time.Minute

type entry[T any] struct {
	value     T
	createdAt time.Time
	expiresAt time.Time
}

// Stats describes the cache contents. Expired entries are counted until a
// read or a sweep evicts them.
type Stats struct {
	TotalEntries   int     `json:"totalEntries"`
	ExpiredEntries int     `json:"expiredEntries"`
	ValidEntries   int     `json:"validEntries"`
	Hits           int64   `json:"hits"`
	Misses         int64   `json:"misses"`
	HitRate        float64 `json:"hitRate"`
}

// Cache is a concurrent-safe map with per-entry expiry. Entries are dropped
// lazily on read and by Cleanup.
type Cache[T any] struct {
	mu         sync.Mutex
	entries    map[string]entry[T]
	defaultTTL time.Duration
	hits       atomic.Int64
	misses     atomic.Int64

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	ttl time.Duration
	now func() time.Time
}

// WithDefaultTTL overrides DefaultTTL.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(o *options) { o.ttl = ttl }
}

// WithClock overrides the clock used for expiry.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New creates an empty cache.
func New[T any](opts ...Option) *Cache[T] {
	o := options{ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.ttl <= 0 {
		o.ttl = DefaultTTL
	}
	return &Cache[T]{
		entries:    make(map[string]entry[T]),
		defaultTTL: o.ttl,
		nowFunc:    o.now,
	}
}

// Get returns the value for key while now <= expiresAt. An expired entry is
// evicted and reported as absent.
func (c *Cache[T]) Get(key string) (T, bool) {
	var zero T

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		return zero, false
	}
	if c.nowFunc().After(e.expiresAt) {
		delete(c.entries, key)
		c.misses.Add(1)
		zap.L().Debug("cache: entry expired", zap.String("key", key))
		return zero, false
	}

	c.hits.Add(1)
	return e.value, true
}

// Set stores value under key, replacing any previous entry. A ttl <= 0 uses
// the cache default.
func (c *Cache[T]) Set(key string, value T, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	now := c.nowFunc()

	c.mu.Lock()
	c.entries[key] = entry[T]{value: value, createdAt: now, expiresAt: now.Add(ttl)}
	c.mu.Unlock()

	zap.L().Debug("cache: stored entry", zap.String("key", key), zap.Duration("ttl", ttl))
}

// Delete removes key and reports whether it was present.
func (c *Cache[T]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.entries[key]
	delete(c.entries, key)
	return ok
}

// Clear drops every entry and returns how many were removed.
func (c *Cache[T]) Clear() int {
	c.mu.Lock()
	n := len(c.entries)
	c.entries = make(map[string]entry[T])
	c.mu.Unlock()

	zap.L().Info("cache: cleared", zap.Int("entries", n))
	return n
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Keys returns the stored keys in sorted order.
func (c *Cache[T]) Keys() []string {
	c.mu.Lock()
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	c.mu.Unlock()

	sort.Strings(keys)
	return keys
}

// Cleanup evicts every expired entry and returns the number evicted.
func (c *Cache[T]) Cleanup() int {
	now := c.nowFunc()

	c.mu.Lock()
	evicted := 0
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
			evicted++
		}
	}
	c.mu.Unlock()

	if evicted > 0 {
		zap.L().Info("cache: cleaned up expired entries", zap.Int("evicted", evicted))
	}
	return evicted
}

// Stats returns a snapshot of the cache contents and hit counters.
func (c *Cache[T]) Stats() Stats {
	now := c.nowFunc()

	c.mu.Lock()
	total := len(c.entries)
	expired := 0
	for _, e := range c.entries {
		if now.After(e.expiresAt) {
			expired++
		}
	}
	c.mu.Unlock()

	hits := c.hits.Load()
	misses := c.misses.Load()
	var hitRate float64
	if sum := hits + misses; sum > 0 {
		hitRate = float64(hits) / float64(sum)
	}

	return Stats{
		TotalEntries:   total,
		ExpiredEntries: expired,
		ValidEntries:   total - expired,
		Hits:           hits,
		Misses:         misses,
		HitRate:        hitRate,
	}
}

// RunJanitor calls Cleanup every interval until ctx is cancelled. It bounds
// memory held by entries that are never read again.
func (c *Cache[T]) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}

	log := zap.L().With(zap.String("component", "cache.janitor"))
	log.Info("starting cache janitor", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("cache janitor stopped")
			return
		case <-ticker.C:
			c.Cleanup()
		}
	}
}
