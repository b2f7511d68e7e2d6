package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/inventcures/virtual-tumor-board-sub003/internal/domain"
)

// RedisTier stores cache entries in Redis so results survive restarts and are
// shared between replicas.
type RedisTier struct {
	redis *redis.Client
	ttl   time.Duration
	now   func() time.Time
}

// NewRedisTier connects to the Redis instance named by config.RedisURL.
func NewRedisTier(ctx context.Context, config domain.CacheConfig) (*RedisTier, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	if config.MaxRetries > 0 {
		opts.MaxRetries = config.MaxRetries
	}
	if config.RedisDB > 0 {
		opts.DB = config.RedisDB
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisTierFromClient(client, config.TTL), nil
}

// NewRedisTierFromClient wraps an existing client.
func NewRedisTierFromClient(client *redis.Client, ttl time.Duration) *RedisTier {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisTier{redis: client, ttl: ttl, now: time.Now}
}

// Get returns the entry stored under key. A missing, corrupt or expired entry is a miss.
func (r *RedisTier) Get(ctx context.Context, key Key) (*domain.CacheEntry, bool, error) {
	val, err := r.redis.Get(ctx, string(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get cache entry: %w", err)
	}

	var entry domain.CacheEntry
	if err := json.Unmarshal(val, &entry); err != nil {
		r.redis.Del(ctx, string(key))
		return nil, false, nil
	}
	if r.now().Sub(entry.CachedAt) > r.ttl {
		r.redis.Del(ctx, string(key))
		return nil, false, nil
	}
	return &entry, true, nil
}

// Set stores entry with a Redis expiry equal to its remaining lifetime.
func (r *RedisTier) Set(ctx context.Context, key Key, entry *domain.CacheEntry) error {
	remaining := r.ttl - r.now().Sub(entry.CachedAt)
	if remaining <= 0 {
		return nil
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}
	return r.redis.Set(ctx, string(key), data, remaining).Err()
}

// Ping checks the Redis connection.
func (r *RedisTier) Ping(ctx context.Context) error {
	return r.redis.Ping(ctx).Err()
}

// Close closes the Redis client.
func (r *RedisTier) Close() error {
	return r.redis.Close()
}
