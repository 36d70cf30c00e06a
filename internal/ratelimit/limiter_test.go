package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/neuroselftrack/internal/cache"
	"github.com/ZanzyTHEbar/neuroselftrack/internal/monitoring"
)

func newFallbackLimiter(t *testing.T, config Config) (*RateLimiter, *monitoring.Metrics) {
	t.Helper()
	redisClient, err := cache.NewRedisClient("", "", 0)
	require.NoError(t, err)

	metrics := monitoring.NewMetrics()
	limiter := NewRateLimiter(redisClient, config, metrics)
	t.Cleanup(limiter.Close)
	return limiter, metrics
}

func TestRateLimiterFallbackMode(t *testing.T) {
	limiter, metrics := newFallbackLimiter(t, DefaultConfig())

	ctx := context.Background()
	rateLimit := Rate{Limit: 5, Period: time.Minute}

	for i := 0; i < 5; i++ {
		result, err := limiter.Allow(ctx, "test:session:123", rateLimit)
		require.NoError(t, err)
		assert.True(t, result.Allowed, "Request %d should be allowed", i+1)
		assert.Equal(t, 5, result.Limit)
	}

	result, err := limiter.Allow(ctx, "test:session:123", rateLimit)
	require.NoError(t, err)
	assert.False(t, result.Allowed, "6th request should be blocked")
	assert.Greater(t, result.RetryAfter, time.Duration(0))
	assert.Equal(t, 0, result.Remaining)

	assert.EqualValues(t, 6, metrics.GetRateLimitStats()["fallback_count"])
}

func TestRateLimiterMultipleKeys(t *testing.T) {
	limiter, _ := newFallbackLimiter(t, DefaultConfig())

	ctx := context.Background()
	rateLimit := Rate{Limit: 3, Period: time.Minute}

	for _, key := range []string{"ip:1", "ip:2", "ip:3"} {
		for i := 0; i < 3; i++ {
			result, err := limiter.Allow(ctx, key, rateLimit)
			require.NoError(t, err)
			assert.True(t, result.Allowed, "Key %s request %d should be allowed", key, i+1)
		}

		result, err := limiter.Allow(ctx, key, rateLimit)
		require.NoError(t, err)
		assert.False(t, result.Allowed, "Key %s 4th request should be blocked", key)
	}
}

func TestRateLimiterRejectsInvalidRate(t *testing.T) {
	limiter, _ := newFallbackLimiter(t, DefaultConfig())

	_, err := limiter.Allow(context.Background(), "k", Rate{Limit: 0, Period: time.Minute})
	assert.Error(t, err)

	_, err = limiter.Allow(context.Background(), "k", Rate{Limit: 1})
	assert.Error(t, err)
}

func TestRateLimiterDisabledFallbackAllowsEverything(t *testing.T) {
	config := DefaultConfig()
	config.EnableFallback = false
	limiter, _ := newFallbackLimiter(t, config)

	for i := 0; i < 10; i++ {
		result, err := limiter.Allow(context.Background(), "k", Rate{Limit: 1, Period: time.Hour})
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	}
}

func TestRateLimiterStats(t *testing.T) {
	limiter, _ := newFallbackLimiter(t, DefaultConfig())

	for i := 0; i < 3; i++ {
		_, _ = limiter.Allow(context.Background(), "test:stats", Rate{Limit: 5, Period: time.Minute})
	}

	stats := limiter.GetStats()
	assert.False(t, stats["redis_enabled"].(bool))
	assert.True(t, stats["fallback_enabled"].(bool))
	assert.Equal(t, 1, stats["fallback_limiters"])

	statsConfig := stats["config"].(map[string]interface{})
	assert.Equal(t, 120, statsConfig["ip_limit_per_min"])
}

func TestRateLimiterCleanupDropsIdleBuckets(t *testing.T) {
	limiter, _ := newFallbackLimiter(t, DefaultConfig())
	ctx := context.Background()

	_, err := limiter.Allow(ctx, "short", Rate{Limit: 5, Period: time.Millisecond})
	require.NoError(t, err)
	_, err = limiter.Allow(ctx, "long", Rate{Limit: 5, Period: time.Hour})
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	limiter.cleanup()

	assert.Equal(t, 1, limiter.GetStats()["fallback_limiters"])
}

func TestRateLimiterConcurrency(t *testing.T) {
	limiter, _ := newFallbackLimiter(t, DefaultConfig())

	ctx := context.Background()
	rateLimit := Rate{Limit: 100, Period: time.Hour}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				result, err := limiter.Allow(ctx, "test:concurrent", rateLimit)
				assert.NoError(t, err)
				if err == nil && result.Allowed {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	// refill over the test run is negligible against a one hour period
	assert.GreaterOrEqual(t, allowed, 100)
	assert.LessOrEqual(t, allowed, 101)
}

func TestRateLimiterDifferentPeriods(t *testing.T) {
	limiter, _ := newFallbackLimiter(t, DefaultConfig())

	tests := []struct {
		name   string
		limit  int
		period time.Duration
	}{
		{"per second", 10, time.Second},
		{"per minute", 60, time.Minute},
		{"per hour", 1000, time.Hour},
		{"per day", 5000, 24 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := limiter.Allow(context.Background(), fmt.Sprintf("test:%s", tt.name), Rate{Limit: tt.limit, Period: tt.period})
			require.NoError(t, err)
			assert.True(t, result.Allowed)
			assert.Equal(t, tt.limit, result.Limit)
			assert.Equal(t, tt.limit-1, result.Remaining)
		})
	}
}
