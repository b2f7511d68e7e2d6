package cache

import (
	"context"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/inventcures/virtual-tumor-board-sub003/internal/domain"
)

// Cache composes the in-memory tier with an optional Redis tier. It is the
// type injected into the document pipeline. Failures are logged and treated
// as misses; caching never fails a request.
type Cache struct {
	memory    *MemoryCache
	redis     *RedisTier
	logger    *logrus.Logger
	redisHits atomic.Int64
}

// New creates a cache. redis may be nil for a memory-only cache.
func New(memory *MemoryCache, redis *RedisTier, logger *logrus.Logger) *Cache {
	if logger == nil {
		logger = logrus.New()
	}
	return &Cache{memory: memory, redis: redis, logger: logger}
}

// Get looks key up in memory, then in Redis. A Redis hit repopulates memory.
func (c *Cache) Get(ctx context.Context, key Key) (entry *domain.CacheEntry, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.WithField("panic", r).Warn("Cache lookup failed")
			entry, ok = nil, false
		}
	}()

	if entry, ok := c.memory.Get(key); ok {
		return entry, true
	}
	if c.redis == nil {
		return nil, false
	}

	entry, ok, err := c.redis.Get(ctx, key)
	if err != nil {
		c.logger.WithError(err).WithField("cache_key", key).Warn("Redis cache lookup failed")
		return nil, false
	}
	if !ok {
		return nil, false
	}
	c.redisHits.Add(1)
	c.memory.recordTierHit(entry.ProcessingTimeMs)
	entry.HitCount++
	if err := c.redis.Set(ctx, key, entry); err != nil {
		c.logger.WithError(err).WithField("cache_key", key).Warn("Redis hit count update failed")
	}
	c.memory.Put(key, entry)
	return entry, true
}

// Put stores entry in every tier.
func (c *Cache) Put(ctx context.Context, key Key, entry *domain.CacheEntry) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.WithField("panic", r).Warn("Cache store failed")
		}
	}()

	c.memory.Put(key, entry)
	if c.redis == nil {
		return
	}
	stored, ok := c.memory.peek(key)
	if !ok {
		return
	}
	if err := c.redis.Set(ctx, key, stored); err != nil {
		c.logger.WithError(err).WithField("cache_key", key).Warn("Redis cache store failed")
	}
}

// Stats returns the memory tier statistics plus Redis hits.
func (c *Cache) Stats() Stats {
	s := c.memory.Stats()
	s.RedisHits = c.redisHits.Load()
	return s
}

// Ping checks the Redis tier. A memory-only cache is always reachable.
func (c *Cache) Ping(ctx context.Context) error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Ping(ctx)
}

// HasRedis reports whether a Redis tier is configured.
func (c *Cache) HasRedis() bool {
	return c.redis != nil
}

// Close releases the Redis tier, if any.
func (c *Cache) Close() error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Close()
}
