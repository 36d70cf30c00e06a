package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ZanzyTHEbar/neuroselftrack/internal/resilience"
)

// RedisClient wraps the Redis client with health checks and graceful degradation
type RedisClient struct {
	client  *redis.Client
	enabled bool
	addr    string
}

// NewRedisClient creates a new Redis client with connection pooling. An empty
// address yields a disabled client and callers fall back to in-memory state.
func NewRedisClient(addr, password string, db int) (*RedisClient, error) {
	if addr == "" {
		slog.Warn("Redis address not configured, using in-memory cache and rate limiting")
		return &RedisClient{enabled: false}, nil
	}

	slog.Info("Initializing Redis client", "addr", addr, "db", db)

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
		PoolTimeout:  4 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		slog.Error("Redis ping failed, falling back to in-memory state", "error", err)
		_ = client.Close()
		return &RedisClient{enabled: false, addr: addr}, fmt.Errorf("redis ping failed: %w", err)
	}

	slog.Info("Redis client connected successfully", "addr", addr)

	return &RedisClient{
		client:  client,
		enabled: true,
		addr:    addr,
	}, nil
}

// GetClient returns the underlying Redis client
func (r *RedisClient) GetClient() *redis.Client {
	return r.client
}

// IsEnabled returns whether Redis is enabled and healthy
func (r *RedisClient) IsEnabled() bool {
	return r != nil && r.enabled
}

// HealthCheck performs a health check on the Redis connection
func (r *RedisClient) HealthCheck(ctx context.Context) error {
	if !r.IsEnabled() {
		return fmt.Errorf("redis is disabled")
	}

	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (r *RedisClient) Close() error {
	if r.IsEnabled() && r.client != nil {
		slog.Info("Closing Redis client connection")
		return r.client.Close()
	}
	return nil
}

// GetPoolStats returns Redis connection pool statistics
func (r *RedisClient) GetPoolStats() map[string]interface{} {
	if !r.IsEnabled() || r.client == nil {
		return map[string]interface{}{
			"enabled": false,
		}
	}

	stats := r.client.PoolStats()

	return map[string]interface{}{
		"enabled":     true,
		"addr":        r.addr,
		"hits":        stats.Hits,
		"misses":      stats.Misses,
		"timeouts":    stats.Timeouts,
		"total_conns": stats.TotalConns,
		"idle_conns":  stats.IdleConns,
		"stale_conns": stats.StaleConns,
	}
}

// RedisStore keeps cache entries in Redis with a fixed TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a store on an enabled client.
func NewRedisStore(client *RedisClient, ttl time.Duration) (*RedisStore, error) {
	if !client.IsEnabled() {
		return nil, fmt.Errorf("redis is disabled")
	}
	return &RedisStore{client: client.GetClient(), ttl: ttl}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, data []byte) error {
	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// DeletePrefix scans for matching keys rather than using KEYS.
func (s *RedisStore) DeletePrefix(ctx context.Context, prefix string) error {
	var cursor uint64
	deleted := 0

	for {
		keys, next, err := s.client.Scan(ctx, cursor, prefix+"*", 100).Result()
		if err != nil {
			return fmt.Errorf("failed to scan keys: %w", err)
		}

		if len(keys) > 0 {
			n, err := s.client.Del(ctx, keys...).Result()
			if err != nil {
				return fmt.Errorf("failed to delete keys: %w", err)
			}
			deleted += int(n)
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	slog.Debug("Deleted cache keys by prefix", "prefix", prefix, "count", deleted)
	return nil
}

func (s *RedisStore) Backend() string { return "redis" }

// NewStore returns a Redis store backed by an in-memory fallback when the
// client is enabled, and the in-memory cache alone otherwise.
func NewStore(client *RedisClient, ttl time.Duration) Store {
	memory := NewCache(ttl)
	redisStore, err := NewRedisStore(client, ttl)
	if err != nil {
		return memory
	}
	breaker := resilience.NewCircuitBreaker(resilience.Config{
		FailureThreshold: 3,
		RecoveryTimeout:  30 * time.Second,
	})
	return NewFallbackStore(redisStore, memory, breaker)
}
