package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exhaust(t *testing.T, limiter *RateLimiter, key string, r Rate) {
	t.Helper()
	for i := 0; i < r.Limit; i++ {
		_, err := limiter.Allow(context.Background(), key, r)
		require.NoError(t, err)
	}
	result, err := limiter.Allow(context.Background(), key, r)
	require.NoError(t, err)
	require.False(t, result.Allowed)
}

func TestInvalidateIP(t *testing.T) {
	limiter, _ := newFallbackLimiter(t, DefaultConfig())
	ctx := context.Background()
	r := Rate{Limit: 2, Period: time.Hour}

	exhaust(t, limiter, "ratelimit:ip:10.0.0.1", r)
	exhaust(t, limiter, "ratelimit:endpoint:analysis:10.0.0.1", r)
	exhaust(t, limiter, "ratelimit:ip:10.0.0.2", r)

	require.NoError(t, limiter.InvalidateIP(ctx, "10.0.0.1"))

	result, err := limiter.Allow(ctx, "ratelimit:ip:10.0.0.1", r)
	require.NoError(t, err)
	assert.True(t, result.Allowed)

	result, err = limiter.Allow(ctx, "ratelimit:endpoint:analysis:10.0.0.1", r)
	require.NoError(t, err)
	assert.True(t, result.Allowed)

	result, err = limiter.Allow(ctx, "ratelimit:ip:10.0.0.2", r)
	require.NoError(t, err)
	assert.False(t, result.Allowed, "other IPs keep their state")
}

func TestInvalidateAll(t *testing.T) {
	limiter, _ := newFallbackLimiter(t, DefaultConfig())
	ctx := context.Background()

	for _, key := range []string{"a", "b", "c"} {
		_, err := limiter.Allow(ctx, key, Rate{Limit: 5, Period: time.Minute})
		require.NoError(t, err)
	}

	count, err := limiter.GetKeyCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	require.NoError(t, limiter.InvalidateAll(ctx))

	count, err = limiter.GetKeyCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestEndpointRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter, metrics := newFallbackLimiter(t, DefaultConfig())

	r := gin.New()
	r.GET("/sessions/:id/analysis", limiter.EndpointRateLimitMiddleware("analysis", 2), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	codes := make([]int, 0, 3)
	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/sessions/s1/analysis", nil)
		req.RemoteAddr = "192.0.2.10:1234"
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
		last = w
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.NotEmpty(t, last.Header().Get("Retry-After"))
	assert.Equal(t, "2", last.Header().Get("X-RateLimit-Endpoint-Limit"))
	assert.Contains(t, last.Body.String(), "rate_limit")

	blocks := metrics.GetRateLimitStats()["endpoint_blocks"].(map[string]int64)
	assert.EqualValues(t, 1, blocks["analysis"])
}

func TestIPRateLimitMiddlewareHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	config := DefaultConfig()
	config.IPLimitPerMin = 1
	limiter, metrics := newFallbackLimiter(t, config)

	r := gin.New()
	r.Use(limiter.IPRateLimitMiddleware())
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.EqualValues(t, 1, metrics.GetRateLimitStats()["ip_blocks"])
}

func TestHandleRateLimitStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter, _ := newFallbackLimiter(t, DefaultConfig())

	r := gin.New()
	r.GET("/ratelimit/status", limiter.HandleRateLimitStatus())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ratelimit/status", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "analysis_per_minute")
}

func TestResetHandlers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter, _ := newFallbackLimiter(t, DefaultConfig())
	ctx := context.Background()
	rate := Rate{Limit: 1, Period: time.Hour}

	r := gin.New()
	r.DELETE("/ratelimit", limiter.HandleResetAll())
	r.DELETE("/ratelimit/ip/:ip", limiter.HandleResetIP())

	exhaust(t, limiter, "ratelimit:ip:10.0.0.1", rate)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/ratelimit/ip/not-an-ip", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/ratelimit/ip/10.0.0.1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ip":"10.0.0.1"`)

	result, err := limiter.Allow(ctx, "ratelimit:ip:10.0.0.1", rate)
	require.NoError(t, err)
	assert.True(t, result.Allowed)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/ratelimit", nil))
	require.Equal(t, http.StatusOK, w.Code)

	count, err := limiter.GetKeyCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}
