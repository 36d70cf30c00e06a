package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/ZanzyTHEbar/neuroselftrack/internal/analysis"
	"github.com/ZanzyTHEbar/neuroselftrack/internal/monitoring"
)

const resultKeyPrefix = "analysis:"

// ResultCache stores finished analysis results per session. Entries are
// zstd-compressed JSON since a result echoes the full raw recording.
type ResultCache struct {
	store   Store
	enc     *zstd.Encoder
	dec     *zstd.Decoder
	logger  *monitoring.Logger
	metrics *monitoring.Metrics
}

// NewResultCache wraps store. logger and metrics may be nil.
func NewResultCache(store Store, logger *monitoring.Logger, metrics *monitoring.Metrics) (*ResultCache, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	return &ResultCache{
		store:   store,
		enc:     enc,
		dec:     dec,
		logger:  logger,
		metrics: metrics,
	}, nil
}

func resultKey(sessionID string) string {
	return resultKeyPrefix + sessionID
}

// Get returns the cached result for sessionID. Backend and decoding failures
// are logged and reported as a miss.
func (rc *ResultCache) Get(ctx context.Context, sessionID string) (*analysis.Result, bool) {
	key := resultKey(sessionID)

	data, found, err := rc.store.Get(ctx, key)
	if err == nil && found {
		var raw []byte
		raw, err = rc.dec.DecodeAll(data, nil)
		if err == nil {
			var result analysis.Result
			if err = json.Unmarshal(raw, &result); err == nil {
				rc.record(key, true)
				return &result, true
			}
		}
	}

	if err != nil && rc.logger != nil {
		rc.logger.Warn("Cached analysis unreadable", "key", key, "backend", rc.store.Backend(), "error", err)
	}
	rc.record(key, false)
	return nil, false
}

// Put stores result under its session id.
func (rc *ResultCache) Put(ctx context.Context, result *analysis.Result) error {
	if result == nil || result.SessionID == "" {
		return fmt.Errorf("result has no session id")
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode analysis result: %w", err)
	}

	key := resultKey(result.SessionID)
	if err := rc.store.Set(ctx, key, rc.enc.EncodeAll(raw, nil)); err != nil {
		return err
	}
	if rc.logger != nil {
		rc.logger.CacheLogger("set", key, rc.store.Backend(), false)
	}
	return nil
}

// Invalidate drops the cached result of each session.
func (rc *ResultCache) Invalidate(ctx context.Context, sessionIDs ...string) error {
	keys := make([]string, 0, len(sessionIDs))
	for _, id := range sessionIDs {
		keys = append(keys, resultKey(id))
	}
	return rc.store.Delete(ctx, keys...)
}

// InvalidateAll drops every cached analysis result.
func (rc *ResultCache) InvalidateAll(ctx context.Context) error {
	return rc.store.DeletePrefix(ctx, resultKeyPrefix)
}

// Backend names the underlying store.
func (rc *ResultCache) Backend() string {
	return rc.store.Backend()
}

func (rc *ResultCache) record(key string, hit bool) {
	if rc.metrics != nil {
		if hit {
			rc.metrics.IncrementCacheHit()
		} else {
			rc.metrics.IncrementCacheMiss()
		}
	}
	if rc.logger != nil {
		rc.logger.CacheLogger("get", key, rc.store.Backend(), hit)
	}
}
