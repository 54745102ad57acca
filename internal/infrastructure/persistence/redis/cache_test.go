package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelcoders/roadmap-progress/internal/domain/progress"
	"github.com/pixelcoders/roadmap-progress/pkg/circuitbreaker"
)

// unreachableCache points at a port nothing listens on.
func unreachableCache() *Cache {
	return NewCacheFromClient(redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	}))
}

func TestConfig_Options(t *testing.T) {
	opts, err := DefaultConfig("redis://:pw@cache.internal:6380/2").Options()
	require.NoError(t, err)
	assert.Equal(t, "cache.internal:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, "pw", opts.Password)
	assert.Equal(t, 10, opts.PoolSize)

	_, err = DefaultConfig("http://nope").Options()
	assert.ErrorIs(t, err, ErrCacheConnection)
}

func TestCache_Validation(t *testing.T) {
	c := unreachableCache()
	defer c.Close()
	ctx := context.Background()

	assert.ErrorIs(t, c.Set(ctx, "", 1, time.Minute), ErrCacheKeyEmpty)
	assert.ErrorIs(t, c.Set(ctx, "k", nil, time.Minute), ErrCacheNilValue)
	assert.ErrorIs(t, c.Set(ctx, "k", 1, -time.Second), ErrCacheInvalidTTL)
	assert.ErrorIs(t, c.Get(ctx, "", nil), ErrCacheKeyEmpty)
	assert.NoError(t, c.Delete(ctx))
	assert.ErrorIs(t, c.Publish(ctx, "", nil), ErrCacheKeyEmpty)

	_, err := c.Counter(ctx, "")
	assert.ErrorIs(t, err, ErrCacheKeyEmpty)
	_, err = c.Incr(ctx, "", time.Minute)
	assert.ErrorIs(t, err, ErrCacheKeyEmpty)
	_, err = c.Incr(ctx, "k", -time.Second)
	assert.ErrorIs(t, err, ErrCacheInvalidTTL)
}

func TestProgressCache_DegradesToMiss(t *testing.T) {
	c := unreachableCache()
	defer c.Close()
	ctx := context.Background()

	breaker := circuitbreaker.New("test", circuitbreaker.WithFailureThreshold(2), circuitbreaker.WithTimeout(time.Hour))
	pc := NewProgressCache(c, breaker, 0, nil)

	_, ok := pc.Generation(ctx, "u1")
	assert.False(t, ok)
	for i := 0; i < 2; i++ {
		views, ok := pc.GetViews(ctx, "u1", 0)
		assert.False(t, ok)
		assert.Nil(t, views)
	}
	assert.True(t, breaker.IsOpen())

	_, ok = pc.Generation(ctx, "u1")
	assert.False(t, ok)
	pc.SetViews(ctx, "u1", 0, []progress.View{{UserID: "u1", RoadmapID: "frontend_dev"}})
	assert.Error(t, pc.Invalidate(ctx, "u1"))
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "progress:u1:0", ProgressKey("u1", 0))
	assert.Equal(t, "progress:u1:7", ProgressKey("u1", 7))
	assert.Equal(t, "progress_gen:u1", ProgressGenerationKey("u1"))
	assert.Equal(t, "pubsub:progress.node_completed", PubSubChannel("progress.node_completed"))
}
