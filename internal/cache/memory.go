// Package cache provides the content-addressed cache of single-pass document
// results: an in-memory LRU tier with a fixed TTL and an optional Redis tier.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/inventcures/virtual-tumor-board-sub003/internal/domain"
)

const (
	// DefaultTTL is the lifetime of a cached result.
	DefaultTTL = 24 * time.Hour
	// DefaultMaxItems bounds the in-memory tier.
	DefaultMaxItems = 100
	// keyPrefixBytes bounds how much of the content is hashed.
	keyPrefixBytes = 64 * 1024
)

// Key identifies a document by content.
type Key string

// KeyFor derives the cache key from a bounded content prefix, the total
// content length and the media type. Documents that differ only beyond the
// prefix but share length and type collide; that is accepted.
func KeyFor(content []byte, mimeType string) Key {
	prefix := content
	if len(prefix) > keyPrefixBytes {
		prefix = prefix[:keyPrefixBytes]
	}
	h := sha256.New()
	h.Write(prefix)
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(len(content))))
	h.Write([]byte{0})
	h.Write([]byte(mimeType))
	return Key("doc:" + hex.EncodeToString(h.Sum(nil)))
}

// Stats reports cache effectiveness.
type Stats struct {
	Size           int     `json:"size"`
	Hits           int64   `json:"hits"`
	Misses         int64   `json:"misses"`
	HitRate        float64 `json:"hitRate"`
	TotalTimeSaved int64   `json:"totalTimeSavedMs"`
	Evictions      int64   `json:"evictions"`
	Expirations    int64   `json:"expirations"`
	RedisHits      int64   `json:"redisHits,omitempty"`
}

// MemoryCache is a capacity-bounded LRU of cache entries with lazy TTL expiry.
// All methods are safe for concurrent use.
type MemoryCache struct {
	mu    sync.Mutex
	lru   *lru.Cache[Key, *domain.CacheEntry]
	ttl   time.Duration
	now   func() time.Time
	stats Stats
}

// NewMemoryCache creates a cache holding at most maxItems entries for ttl each.
func NewMemoryCache(maxItems int, ttl time.Duration) (*MemoryCache, error) {
	if maxItems <= 0 {
		return nil, fmt.Errorf("cache capacity must be positive, got %d", maxItems)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	l, err := lru.New[Key, *domain.CacheEntry](maxItems)
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU: %w", err)
	}
	return &MemoryCache{lru: l, ttl: ttl, now: time.Now}, nil
}

// TTL returns the fixed entry lifetime.
func (c *MemoryCache) TTL() time.Duration {
	return c.ttl
}

// Get returns a copy of the entry for key and promotes it to most recently used.
// Expired entries are removed and reported as a miss.
func (c *MemoryCache) Get(key Key) (*domain.CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.lru.Get(key)
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	if c.now().Sub(entry.CachedAt) > c.ttl {
		c.lru.Remove(key)
		c.stats.Expirations++
		c.stats.Misses++
		return nil, false
	}

	entry.HitCount++
	c.stats.Hits++
	c.stats.TotalTimeSaved += entry.ProcessingTimeMs
	return copyEntry(entry), true
}

// Put stores entry under key, replacing any existing entry and evicting the
// least recently used entry when the cache is full.
func (c *MemoryCache) Put(key Key, entry *domain.CacheEntry) {
	if entry == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := copyEntry(entry)
	stored.CacheKey = string(key)
	stored.TTL = c.ttl
	if stored.CachedAt.IsZero() {
		stored.CachedAt = c.now()
	}
	c.lru.Remove(key)
	if c.lru.Add(key, stored) {
		c.stats.Evictions++
	}
}

// recordTierHit turns the miss just counted for a lookup into a hit served by
// a lower tier, so the hit rate and time saved cover every tier.
func (c *MemoryCache) recordTierHit(timeSavedMs int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stats.Misses > 0 {
		c.stats.Misses--
	}
	c.stats.Hits++
	c.stats.TotalTimeSaved += timeSavedMs
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	return c.lru.Len()
}

// Purge drops every entry and resets the counters.
func (c *MemoryCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
	c.stats = Stats{}
}

// Stats returns a snapshot of the counters.
func (c *MemoryCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	s.Size = c.lru.Len()
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

func copyEntry(e *domain.CacheEntry) *domain.CacheEntry {
	cp := *e
	cp.ExtractedData = e.ExtractedData.Clone()
	cp.Warnings = append([]string(nil), e.Warnings...)
	if e.Score != nil {
		score := *e.Score
		cp.Score = &score
	}
	return &cp
}

// peek returns a copy of the stored entry without promoting it or counting a lookup.
func (c *MemoryCache) peek(key Key) (*domain.CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.lru.Peek(key)
	if !ok {
		return nil, false
	}
	return copyEntry(entry), true
}
