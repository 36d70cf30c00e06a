package cache

import (
	"context"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/neuroselftrack/internal/analysis"
	"github.com/ZanzyTHEbar/neuroselftrack/internal/monitoring"
)

func newTestCache(t *testing.T, ttl time.Duration) *Cache {
	t.Helper()
	c := NewCache(ttl)
	t.Cleanup(c.Close)
	return c
}

func TestCacheSetGetDelete(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, time.Minute)

	require.NoError(t, c.Set(ctx, "a", []byte("1")))
	data, found, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("1"), data)

	require.NoError(t, c.Delete(ctx, "a", "missing"))
	_, found, _ = c.Get(ctx, "a")
	assert.False(t, found)
}

func TestCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, 10*time.Millisecond)

	require.NoError(t, c.Set(ctx, "a", []byte("1")))
	time.Sleep(25 * time.Millisecond)

	_, found, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, found)

	stats := c.Stats()
	assert.Equal(t, 1, stats["expired_items"])
	assert.Equal(t, "memory", stats["backend"])
}

func TestCacheDeletePrefix(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, time.Minute)

	for _, key := range []string{"analysis:1", "analysis:2", "http:/users/u1/summary"} {
		require.NoError(t, c.Set(ctx, key, []byte("x")))
	}

	require.NoError(t, c.DeletePrefix(ctx, "analysis:"))
	assert.Equal(t, 1, c.Size())

	c.Clear()
	assert.Equal(t, 0, c.Size())
}

func TestNewStoreFallsBackToMemory(t *testing.T) {
	client, err := NewRedisClient("", "", 0)
	require.NoError(t, err)
	assert.False(t, client.IsEnabled())
	assert.Error(t, client.HealthCheck(context.Background()))
	assert.Equal(t, false, client.GetPoolStats()["enabled"])
	assert.NoError(t, client.Close())

	store := NewStore(client, time.Minute)
	assert.Equal(t, "memory", store.Backend())
	if c, ok := store.(*Cache); ok {
		c.Close()
	}

	_, err = NewRedisStore(client, time.Minute)
	assert.Error(t, err)
}

func TestResultCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	metrics := monitoring.NewMetrics()
	rc, err := NewResultCache(newTestCache(t, time.Minute), nil, metrics)
	require.NoError(t, err)

	_, found := rc.Get(ctx, "s1")
	assert.False(t, found)

	result := &analysis.Result{
		SessionID:    "s1",
		Status:       analysis.StatusAnalyzed,
		SamplingRate: 256,
		SampleCount:  2,
		Quality:      &analysis.QualityReport{Passed: true},
		BandPowers:   analysis.BandPowers{"alpha": 1.5, "beta": 0.75},
		Metrics: &analysis.CognitiveMetrics{
			Focus:      2,
			Relaxation: analysis.Score(math.NaN()),
			Clarity:    4.1,
			Undefined:  []string{"relaxation"},
		},
		Raw: []analysis.Sample{{Timestamp: 1, Channel1: 0.5, Channel2: -0.5}, {Timestamp: 2}},
	}
	require.NoError(t, rc.Put(ctx, result))

	cached, found := rc.Get(ctx, "s1")
	require.True(t, found)
	assert.Equal(t, result.Status, cached.Status)
	assert.Equal(t, result.BandPowers, cached.BandPowers)
	assert.Equal(t, result.Raw, cached.Raw)
	assert.False(t, cached.Metrics.Relaxation.Defined())
	assert.InDelta(t, 4.1, float64(cached.Metrics.Clarity), 1e-9)

	require.NoError(t, rc.Invalidate(ctx, "s1"))
	_, found = rc.Get(ctx, "s1")
	assert.False(t, found)

	stats := metrics.GetStats()
	assert.EqualValues(t, 1, stats["cache_hits"])
	assert.EqualValues(t, 2, stats["cache_misses"])
}

func TestResultCacheRejectsAnonymousResult(t *testing.T) {
	rc, err := NewResultCache(newTestCache(t, time.Minute), nil, nil)
	require.NoError(t, err)

	assert.Error(t, rc.Put(context.Background(), &analysis.Result{}))
	assert.Error(t, rc.Put(context.Background(), nil))
}

func TestResultCacheTreatsGarbageAsMiss(t *testing.T) {
	ctx := context.Background()
	store := newTestCache(t, time.Minute)
	logger := monitoring.NewLoggerWithWriter(io.Discard, 0)
	rc, err := NewResultCache(store, logger, nil)
	require.NoError(t, err)

	require.NoError(t, store.Set(ctx, resultKey("s1"), []byte("not zstd")))
	_, found := rc.Get(ctx, "s1")
	assert.False(t, found)
}

func TestResponseMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	store := newTestCache(t, time.Minute)

	calls := 0
	r := gin.New()
	r.GET("/users/:id/summary", ResponseMiddleware(store, nil), func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{"user": c.Param("id"), "calls": calls})
	})

	get := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users/u1/summary", nil))
		return w
	}

	first := get()
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))

	second := get()
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, calls)

	require.NoError(t, InvalidateUserResponses(ctx, store, "u1"))
	third := get()
	assert.Equal(t, "MISS", third.Header().Get("X-Cache"))
	assert.Equal(t, 2, calls)

	require.NoError(t, InvalidateAllResponses(ctx, store))
	assert.Equal(t, "MISS", get().Header().Get("X-Cache"))
	assert.Equal(t, 3, calls)
}
