package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"golang.org/x/time/rate"

	"github.com/ZanzyTHEbar/neuroselftrack/internal/cache"
	"github.com/ZanzyTHEbar/neuroselftrack/internal/monitoring"
)

// Config holds rate limiter configuration
type Config struct {
	IPLimitPerMin       int // all requests from one IP
	AnalysisLimitPerMin int // GET /sessions/:id/analysis per IP
	ImportLimitPerMin   int // EEG uploads per IP
	EnableFallback      bool
	CleanupInterval     time.Duration
}

// DefaultConfig returns default rate limiting configuration
func DefaultConfig() Config {
	return Config{
		IPLimitPerMin:       120,
		AnalysisLimitPerMin: 30,
		ImportLimitPerMin:   10,
		EnableFallback:      true,
		CleanupInterval:     10 * time.Minute,
	}
}

// Rate is a number of requests allowed per period.
type Rate struct {
	Limit  int
	Period time.Duration
}

// PerMinute returns a Rate of n requests per minute.
func PerMinute(n int) Rate {
	return Rate{Limit: n, Period: time.Minute}
}

// Result represents the result of a rate limit check
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

type fallbackEntry struct {
	limiter  *rate.Limiter
	period   time.Duration
	lastSeen time.Time
}

// RateLimiter provides distributed rate limiting with Redis and in-memory fallback
type RateLimiter struct {
	redisLimiter *redis_rate.Limiter
	redisClient  *cache.RedisClient
	config       Config
	metrics      *monitoring.Metrics

	fallbackLimiters map[string]*fallbackEntry
	fallbackMutex    sync.Mutex

	stop     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a new rate limiter with Redis and in-memory fallback
func NewRateLimiter(redisClient *cache.RedisClient, config Config, metrics *monitoring.Metrics) *RateLimiter {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultConfig().CleanupInterval
	}

	rl := &RateLimiter{
		redisClient:      redisClient,
		config:           config,
		metrics:          metrics,
		fallbackLimiters: make(map[string]*fallbackEntry),
		stop:             make(chan struct{}),
	}

	if redisClient.IsEnabled() {
		rl.redisLimiter = redis_rate.NewLimiter(redisClient.GetClient())
		slog.Info("Redis rate limiter initialized")
	} else {
		slog.Warn("Redis unavailable, using in-memory rate limiting only")
	}

	go rl.cleanupLoop()

	return rl
}

// AllowIP checks the global per-minute limit for an IP address
func (rl *RateLimiter) AllowIP(ctx context.Context, ip string) (*Result, error) {
	return rl.Allow(ctx, "ratelimit:ip:"+ip, PerMinute(rl.config.IPLimitPerMin))
}

// Allow checks key against r using Redis when available and the in-memory
// token bucket otherwise.
func (rl *RateLimiter) Allow(ctx context.Context, key string, r Rate) (*Result, error) {
	if r.Limit <= 0 || r.Period <= 0 {
		return nil, fmt.Errorf("invalid rate %d per %s", r.Limit, r.Period)
	}

	if rl.redisClient.IsEnabled() && rl.redisLimiter != nil {
		result, err := rl.allowRedis(ctx, key, r)
		if err == nil {
			return result, nil
		}
		slog.Warn("Redis rate limit check failed, using fallback", "key", key, "error", err)
		if rl.metrics != nil {
			rl.metrics.IncrementRateLimitRedisError()
		}
		if !rl.config.EnableFallback {
			return nil, err
		}
	}

	if !rl.config.EnableFallback {
		return &Result{Allowed: true, Limit: r.Limit, Remaining: r.Limit, ResetAt: time.Now()}, nil
	}

	if rl.metrics != nil {
		rl.metrics.IncrementRateLimitFallback()
	}
	return rl.allowFallback(key, r), nil
}

// allowRedis uses the GCRA limiter from redis_rate
func (rl *RateLimiter) allowRedis(ctx context.Context, key string, r Rate) (*Result, error) {
	res, err := rl.redisLimiter.Allow(ctx, key, redis_rate.Limit{
		Rate:   r.Limit,
		Burst:  r.Limit,
		Period: r.Period,
	})
	if err != nil {
		return nil, fmt.Errorf("redis rate limit check failed: %w", err)
	}

	retryAfter := res.RetryAfter
	if retryAfter < 0 {
		retryAfter = 0
	}

	return &Result{
		Allowed:    res.Allowed > 0,
		Limit:      res.Limit.Rate,
		Remaining:  res.Remaining,
		ResetAt:    time.Now().Add(res.ResetAfter),
		RetryAfter: retryAfter,
	}, nil
}

// allowFallback uses a token bucket of size r.Limit refilled over r.Period
func (rl *RateLimiter) allowFallback(key string, r Rate) *Result {
	now := time.Now()

	rl.fallbackMutex.Lock()
	entry, exists := rl.fallbackLimiters[key]
	if !exists || entry.period != r.Period || entry.limiter.Burst() != r.Limit {
		entry = &fallbackEntry{
			limiter: rate.NewLimiter(rate.Limit(float64(r.Limit)/r.Period.Seconds()), r.Limit),
			period:  r.Period,
		}
		rl.fallbackLimiters[key] = entry
	}
	entry.lastSeen = now
	rl.fallbackMutex.Unlock()

	result := &Result{Limit: r.Limit, ResetAt: now.Add(r.Period)}

	if entry.limiter.AllowN(now, 1) {
		result.Allowed = true
	} else {
		reservation := entry.limiter.ReserveN(now, 1)
		if reservation.OK() {
			result.RetryAfter = reservation.DelayFrom(now)
			reservation.CancelAt(now)
		} else {
			result.RetryAfter = r.Period
		}
		if result.RetryAfter <= 0 {
			result.RetryAfter = time.Second
		}
	}

	remaining := int(entry.limiter.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	result.Remaining = remaining

	return result
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.cleanup()
		}
	}
}

// cleanup drops fallback buckets idle for longer than their period; such a
// bucket has refilled completely and is equivalent to a fresh one.
func (rl *RateLimiter) cleanup() {
	now := time.Now()

	rl.fallbackMutex.Lock()
	defer rl.fallbackMutex.Unlock()

	removed := 0
	for key, entry := range rl.fallbackLimiters {
		if now.Sub(entry.lastSeen) > entry.period {
			delete(rl.fallbackLimiters, key)
			removed++
		}
	}
	if removed > 0 {
		slog.Debug("Cleaned up fallback rate limiters", "removed", removed, "remaining", len(rl.fallbackLimiters))
	}
}

// Close stops the background cleanup.
func (rl *RateLimiter) Close() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// Config returns the limits in effect.
func (rl *RateLimiter) Config() Config {
	return rl.config
}

// GetStats returns rate limiter statistics
func (rl *RateLimiter) GetStats() map[string]interface{} {
	rl.fallbackMutex.Lock()
	fallbackCount := len(rl.fallbackLimiters)
	rl.fallbackMutex.Unlock()

	stats := map[string]interface{}{
		"redis_enabled":     rl.redisClient.IsEnabled(),
		"fallback_enabled":  rl.config.EnableFallback,
		"fallback_limiters": fallbackCount,
		"config": map[string]interface{}{
			"ip_limit_per_min":       rl.config.IPLimitPerMin,
			"analysis_limit_per_min": rl.config.AnalysisLimitPerMin,
			"import_limit_per_min":   rl.config.ImportLimitPerMin,
		},
	}

	if rl.redisClient.IsEnabled() {
		stats["redis_pool"] = rl.redisClient.GetPoolStats()
	}

	return stats
}
