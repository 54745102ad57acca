package redis

import (
	"context"
	"errors"
	"time"

	"github.com/pixelcoders/roadmap-progress/internal/domain/progress"
	"github.com/pixelcoders/roadmap-progress/pkg/circuitbreaker"
	"github.com/pixelcoders/roadmap-progress/pkg/logger"
)

// ProgressCache caches a user's progress list. Lists are stored under the
// user's current generation; Invalidate bumps the generation, so a list
// loaded before an invalidation is written under a key no reader asks for.
// Reads and writes go through a circuit breaker and failures degrade to a
// miss.
type ProgressCache struct {
	cache   *Cache
	breaker *circuitbreaker.CircuitBreaker
	ttl     time.Duration
	genTTL  time.Duration
	log     *logger.Logger
}

// NewProgressCache creates a ProgressCache. A zero ttl uses TTLProgressCache.
func NewProgressCache(cache *Cache, breaker *circuitbreaker.CircuitBreaker, ttl time.Duration, log *logger.Logger) *ProgressCache {
	if ttl <= 0 {
		ttl = TTLProgressCache
	}
	if log == nil {
		log = logger.Nop()
	}
	return &ProgressCache{
		cache:   cache,
		breaker: breaker,
		ttl:     ttl,
		genTTL:  max(TTLProgressGeneration, 2*ttl),
		log:     log.With(logger.Component("progress-cache")),
	}
}

// Generation returns the user's current view generation. ok is false when
// the cache cannot be reached.
func (c *ProgressCache) Generation(ctx context.Context, userID string) (int64, bool) {
	var gen int64
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		gen, err = c.cache.Counter(ctx, ProgressGenerationKey(userID))
		return err
	})
	if err != nil {
		c.logFailure("generation", userID, err)
		return 0, false
	}
	return gen, true
}

// GetViews returns the list cached under gen and whether it was found.
func (c *ProgressCache) GetViews(ctx context.Context, userID string, gen int64) ([]progress.View, bool) {
	var views []progress.View
	hit := false
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		err := c.cache.Get(ctx, ProgressKey(userID, gen), &views)
		if errors.Is(err, ErrCacheMiss) {
			return nil
		}
		if err != nil {
			return err
		}
		hit = true
		return nil
	})
	if err != nil {
		c.logFailure("get", userID, err)
		return nil, false
	}
	return views, hit
}

// SetViews stores the list under gen for the configured TTL.
func (c *ProgressCache) SetViews(ctx context.Context, userID string, gen int64, views []progress.View) {
	if views == nil {
		views = []progress.View{}
	}
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.cache.Set(ctx, ProgressKey(userID, gen), views, c.ttl)
	})
	if err != nil {
		c.logFailure("set", userID, err)
	}
}

// Invalidate moves the user to a new generation. It bypasses the breaker: a
// skipped bump would leave a stale list for up to the TTL.
func (c *ProgressCache) Invalidate(ctx context.Context, userID string) error {
	_, err := c.cache.Incr(ctx, ProgressGenerationKey(userID), c.genTTL)
	return err
}

func (c *ProgressCache) logFailure(op, userID string, err error) {
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
		c.log.Debug("cache bypassed", logger.Operation(op), logger.UserID(userID))
		return
	}
	c.log.Warn("cache operation failed", logger.Operation(op), logger.UserID(userID), logger.Err(err))
}
