package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func newRedisTier(t *testing.T) (*RedisTier, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisTierFromClient(client, DefaultTTL), mr
}

func TestCache_MemoryOnly(t *testing.T) {
	mem, _ := newTestCache(t, 10)
	c := New(mem, nil, newTestLogger())
	ctx := context.Background()

	_, ok := c.Get(ctx, "K")
	assert.False(t, ok)

	c.Put(ctx, "K", entry(40))
	got, ok := c.Get(ctx, "K")
	require.True(t, ok)
	assert.Equal(t, "adenocarcinoma", got.ExtractedData.Histology)
	assert.Equal(t, int64(0), c.Stats().RedisHits)
	assert.NoError(t, c.Close())
}

func TestCache_RedisTierRepopulatesMemory(t *testing.T) {
	tier, mr := newRedisTier(t)
	ctx := context.Background()

	writer := New(mustMemory(t), tier, newTestLogger())
	writer.Put(ctx, "K", entry(40))
	assert.True(t, mr.Exists("K"))

	reader := New(mustMemory(t), tier, newTestLogger())
	got, ok := reader.Get(ctx, "K")
	require.True(t, ok)
	assert.Equal(t, "adenocarcinoma", got.ExtractedData.Histology)
	assert.Equal(t, 1, got.HitCount)

	stats := reader.Stats()
	assert.Equal(t, int64(1), stats.RedisHits)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Zero(t, stats.Misses)
	assert.Equal(t, 1.0, stats.HitRate)
	assert.Equal(t, int64(40), stats.TotalTimeSaved)

	other := New(mustMemory(t), tier, newTestLogger())
	again, ok := other.Get(ctx, "K")
	require.True(t, ok)
	assert.Equal(t, 2, again.HitCount, "hit count is written back to redis")

	_, ok = reader.memory.Get("K")
	assert.True(t, ok, "redis hit is copied into memory")
}

func TestCache_RedisEntryExpires(t *testing.T) {
	tier, mr := newRedisTier(t)
	ctx := context.Background()

	New(mustMemory(t), tier, newTestLogger()).Put(ctx, "K", entry(40))
	mr.FastForward(25 * time.Hour)

	_, ok := New(mustMemory(t), tier, newTestLogger()).Get(ctx, "K")
	assert.False(t, ok)
}

func TestCache_RedisFailureIsAMiss(t *testing.T) {
	tier, mr := newRedisTier(t)
	mr.Close()

	c := New(mustMemory(t), tier, newTestLogger())
	c.Put(context.Background(), "K", entry(40))

	_, ok := New(mustMemory(t), tier, newTestLogger()).Get(context.Background(), "K")
	assert.False(t, ok)
}

func TestRedisTier_CorruptEntryDropped(t *testing.T) {
	tier, mr := newRedisTier(t)
	require.NoError(t, mr.Set("K", "{not json"))

	_, ok, err := tier.Get(context.Background(), "K")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists("K"))
}

func mustMemory(t *testing.T) *MemoryCache {
	t.Helper()
	m, err := NewMemoryCache(10, DefaultTTL)
	require.NoError(t, err)
	return m
}

func TestCache_Ping(t *testing.T) {
	ctx := context.Background()

	memoryOnly := New(mustMemory(t), nil, newTestLogger())
	assert.False(t, memoryOnly.HasRedis())
	assert.NoError(t, memoryOnly.Ping(ctx))

	tier, mr := newRedisTier(t)
	c := New(mustMemory(t), tier, newTestLogger())
	assert.True(t, c.HasRedis())
	assert.NoError(t, c.Ping(ctx))

	mr.Close()
	assert.Error(t, c.Ping(ctx))
}
