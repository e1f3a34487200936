// Package redisrepo mirrors Override publications into Redis with a TTL
// matching the decay half-life: a horizontally scaled Appetite Calculator
// can then read a materialized Override snapshot without round-tripping to
// the Pattern Aggregator's single in-process Store.
package redisrepo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/learn"
	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/scope"
)

// keyPrefix namespaces override cache keys from any other use of the same
// Redis instance.
const keyPrefix = "trendcore:override:"

// OverrideCache publishes and serves learn.Override snapshots through
// Redis, keyed by scope key.
type OverrideCache struct {
	client   *redis.Client
	halfLife time.Duration
}

// NewOverrideCache constructs an OverrideCache. ttl should match the
// configured Override decay half-life (learn.DefaultHalfLife if unset) —
// an entry this stale is already close enough to neutral that recomputing
// it from the Lesson Store directly is cheaper than trusting the cache.
func NewOverrideCache(client *redis.Client, ttl time.Duration) *OverrideCache {
	if ttl <= 0 {
		ttl = learn.DefaultHalfLife
	}
	return &OverrideCache{client: client, halfLife: ttl}
}

func cacheKey(key scope.Key) string {
	return keyPrefix + string(key)
}

// Publish mirrors a materialized Override into Redis under its scope key,
// with expiry set to the cache's configured half-life.
func (c *OverrideCache) Publish(ctx context.Context, ov learn.Override) error {
	data, err := json.Marshal(ov)
	if err != nil {
		return fmt.Errorf("marshal override %s: %w", ov.ScopeKey, err)
	}
	if err := c.client.Set(ctx, cacheKey(ov.ScopeKey), data, c.halfLife).Err(); err != nil {
		return fmt.Errorf("publish override %s to redis: %w", ov.ScopeKey, err)
	}
	return nil
}

// Get reads a cached Override snapshot, returning ok=false on a cache miss
// (key absent or expired) rather than an error — callers should fall back
// to learn.Store.Get, which always succeeds.
func (c *OverrideCache) Get(ctx context.Context, key scope.Key) (ov learn.Override, ok bool) {
	data, err := c.client.Get(ctx, cacheKey(key)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Warn().Err(err).Str("scope_key", string(key)).Msg("override cache read failed")
		}
		return learn.Override{}, false
	}
	if err := json.Unmarshal(data, &ov); err != nil {
		log.Warn().Err(err).Str("scope_key", string(key)).Msg("override cache decode failed")
		return learn.Override{}, false
	}
	return ov, true
}

// Invalidate removes a cached Override, e.g. immediately after a fresh
// Lesson epoch is published so stale readers don't serve it until the TTL
// would otherwise expire it.
func (c *OverrideCache) Invalidate(ctx context.Context, key scope.Key) error {
	if err := c.client.Del(ctx, cacheKey(key)).Err(); err != nil {
		return fmt.Errorf("invalidate override cache %s: %w", key, err)
	}
	return nil
}
