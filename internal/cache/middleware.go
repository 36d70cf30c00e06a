package cache

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ZanzyTHEbar/neuroselftrack/internal/monitoring"
)

const responseKeyPrefix = "http:"

// ResponseMiddleware caches successful GET responses keyed by request URI.
// It is meant for derived read-only views such as insights.
func ResponseMiddleware(store Store, metrics *monitoring.Metrics) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.Request.Method != http.MethodGet {
			ctx.Next()
			return
		}

		cacheKey := responseKeyPrefix + ctx.Request.URL.RequestURI()

		cachedData, found, err := store.Get(ctx.Request.Context(), cacheKey)
		if err != nil {
			slog.Warn("Response cache lookup failed", "key", cacheKey, "error", err)
		}
		if found {
			if metrics != nil {
				metrics.IncrementCacheHit()
			}
			ctx.Header("X-Cache", "HIT")
			ctx.Data(http.StatusOK, "application/json; charset=utf-8", cachedData)
			ctx.Abort()
			return
		}

		if metrics != nil {
			metrics.IncrementCacheMiss()
		}

		wrapper := &responseWriter{ResponseWriter: ctx.Writer, body: &bytes.Buffer{}}
		ctx.Writer = wrapper
		ctx.Header("X-Cache", "MISS")
		ctx.Next()

		if ctx.Writer.Status() == http.StatusOK && len(ctx.Errors) == 0 {
			if err := store.Set(ctx.Request.Context(), cacheKey, wrapper.body.Bytes()); err != nil {
				slog.Warn("Failed to cache response", "key", cacheKey, "error", err)
			}
		}
	}
}

// InvalidateUserResponses drops cached views under /users/<userID>/.
func InvalidateUserResponses(ctx context.Context, store Store, userID string) error {
	return store.DeletePrefix(ctx, responseKeyPrefix+"/users/"+userID+"/")
}

// InvalidateAllResponses drops every cached view.
func InvalidateAllResponses(ctx context.Context, store Store) error {
	return store.DeletePrefix(ctx, responseKeyPrefix)
}

// responseWriter wraps gin.ResponseWriter to capture response body
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(data []byte) (int, error) {
	w.body.Write(data)
	return w.ResponseWriter.Write(data)
}

func (w *responseWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
