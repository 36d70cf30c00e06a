package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// InvalidateIP removes all rate limit state for an IP address
func (rl *RateLimiter) InvalidateIP(ctx context.Context, ip string) error {
	if !rl.redisClient.IsEnabled() {
		rl.deleteFallback(func(key string) bool {
			return key == "ratelimit:ip:"+ip || (strings.HasPrefix(key, "ratelimit:endpoint:") && strings.HasSuffix(key, ":"+ip))
		})
		slog.Info("Invalidated IP rate limits (in-memory)", "ip", ip)
		return nil
	}

	if err := rl.deleteByPattern(ctx, "ratelimit:ip:"+ip); err != nil {
		return err
	}
	return rl.deleteByPattern(ctx, "ratelimit:endpoint:*:"+ip)
}

// InvalidateAll removes all rate limit state
func (rl *RateLimiter) InvalidateAll(ctx context.Context) error {
	if !rl.redisClient.IsEnabled() {
		count := rl.deleteFallback(func(string) bool { return true })
		slog.Warn("Invalidated all rate limits (in-memory)", "count", count)
		return nil
	}

	slog.Warn("Invalidating ALL rate limits")
	return rl.deleteByPattern(ctx, "ratelimit:*")
}

// GetKeyCount returns the number of tracked rate limit keys
func (rl *RateLimiter) GetKeyCount(ctx context.Context) (int, error) {
	if !rl.redisClient.IsEnabled() {
		rl.fallbackMutex.Lock()
		defer rl.fallbackMutex.Unlock()
		return len(rl.fallbackLimiters), nil
	}

	client := rl.redisClient.GetClient()
	var cursor uint64
	count := 0
	for {
		keys, next, err := client.Scan(ctx, cursor, "*ratelimit:*", 100).Result()
		if err != nil {
			return 0, fmt.Errorf("failed to scan keys: %w", err)
		}
		count += len(keys)
		cursor = next
		if cursor == 0 {
			return count, nil
		}
	}
}

func (rl *RateLimiter) deleteFallback(match func(key string) bool) int {
	rl.fallbackMutex.Lock()
	defer rl.fallbackMutex.Unlock()

	count := 0
	for key := range rl.fallbackLimiters {
		if match(key) {
			delete(rl.fallbackLimiters, key)
			count++
		}
	}
	return count
}

// deleteByPattern deletes all Redis keys matching a pattern. redis_rate
// stores its state under a "rate:" prefix so both forms are scanned.
func (rl *RateLimiter) deleteByPattern(ctx context.Context, pattern string) error {
	client := rl.redisClient.GetClient()
	deletedCount := 0

	for _, p := range []string{pattern, redisRatePrefix + pattern} {
		var cursor uint64
		for {
			keys, nextCursor, err := client.Scan(ctx, cursor, p, 100).Result()
			if err != nil {
				return fmt.Errorf("failed to scan keys: %w", err)
			}

			if len(keys) > 0 {
				deleted, err := client.Del(ctx, keys...).Result()
				if err != nil {
					return fmt.Errorf("failed to delete keys: %w", err)
				}
				deletedCount += int(deleted)
			}

			cursor = nextCursor
			if cursor == 0 {
				break
			}
		}
	}

	slog.Info("Deleted rate limit keys by pattern", "pattern", pattern, "count", deletedCount)
	return nil
}

const redisRatePrefix = "rate:"
