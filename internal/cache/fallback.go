package cache

import (
	"context"
	"log/slog"

	"github.com/ZanzyTHEbar/neuroselftrack/internal/resilience"
)

// FallbackStore serves from primary while its circuit breaker is closed
// and from secondary while it is open or a call fails. Deletes go to both
// so that switching backends never resurfaces a stale entry.
type FallbackStore struct {
	primary   Store
	secondary Store
	breaker   *resilience.CircuitBreaker
}

// NewFallbackStore guards primary with breaker.
func NewFallbackStore(primary, secondary Store, breaker *resilience.CircuitBreaker) *FallbackStore {
	return &FallbackStore{primary: primary, secondary: secondary, breaker: breaker}
}

func (s *FallbackStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var (
		data []byte
		ok   bool
	)
	err := s.breaker.Call(func() error {
		var err error
		data, ok, err = s.primary.Get(ctx, key)
		return err
	})
	if err == nil {
		return data, ok, nil
	}
	s.degraded("get", err)
	return s.secondary.Get(ctx, key)
}

func (s *FallbackStore) Set(ctx context.Context, key string, data []byte) error {
	err := s.breaker.Call(func() error { return s.primary.Set(ctx, key, data) })
	if err == nil {
		return nil
	}
	s.degraded("set", err)
	return s.secondary.Set(ctx, key, data)
}

func (s *FallbackStore) Delete(ctx context.Context, keys ...string) error {
	if err := s.breaker.Call(func() error { return s.primary.Delete(ctx, keys...) }); err != nil {
		s.degraded("delete", err)
	}
	return s.secondary.Delete(ctx, keys...)
}

func (s *FallbackStore) DeletePrefix(ctx context.Context, prefix string) error {
	if err := s.breaker.Call(func() error { return s.primary.DeletePrefix(ctx, prefix) }); err != nil {
		s.degraded("delete_prefix", err)
	}
	return s.secondary.DeletePrefix(ctx, prefix)
}

// Backend names the store currently serving reads.
func (s *FallbackStore) Backend() string {
	if s.breaker.State() == resilience.StateOpen {
		return s.secondary.Backend()
	}
	return s.primary.Backend()
}

// Close stops the secondary's cleanup loop when it has one.
func (s *FallbackStore) Close() {
	if c, ok := s.secondary.(interface{ Close() }); ok {
		c.Close()
	}
}

// Breaker exposes the breaker for health reporting.
func (s *FallbackStore) Breaker() *resilience.CircuitBreaker { return s.breaker }

func (s *FallbackStore) degraded(op string, err error) {
	slog.Warn("Cache backend unavailable, using fallback",
		"operation", op,
		"primary", s.primary.Backend(),
		"fallback", s.secondary.Backend(),
		"error", err,
	)
}
