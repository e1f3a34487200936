package redisrepo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/learn"
	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/scope"
)

func TestCacheKeyIsNamespacedByPrefix(t *testing.T) {
	assert.Equal(t, "trendcore:override:abc123", cacheKey(scope.Key("abc123")))
}

func TestNewOverrideCacheDefaultsHalfLifeWhenTTLNonPositive(t *testing.T) {
	c := NewOverrideCache(nil, 0)
	assert.Equal(t, learn.DefaultHalfLife, c.halfLife)

	c2 := NewOverrideCache(nil, 10*time.Minute)
	assert.Equal(t, 10*time.Minute, c2.halfLife)
}
