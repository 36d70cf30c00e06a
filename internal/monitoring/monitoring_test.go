package monitoring

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		" warn ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for input, expected := range tests {
		assert.Equal(t, expected, ParseLevel(input), input)
	}
}

func TestLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, slog.LevelInfo)

	logger.AnalysisLogger("session-1", "analyzed", 2048, 15*time.Millisecond, false)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Analysis Completed", entry["msg"])
	assert.Equal(t, "session-1", entry["session_id"])
	assert.Equal(t, float64(2048), entry["sample_count"])
	assert.Contains(t, entry, "timestamp")
}

func TestImportLoggerFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, slog.LevelInfo)

	logger.ImportLogger("s", "edf", 0, 0, errors.New("bad header"))

	assert.Contains(t, buf.String(), `"level":"WARN"`)
	assert.Contains(t, buf.String(), "bad header")
}

func TestMetricsStats(t *testing.T) {
	m := NewMetrics()

	m.IncrementRequest()
	m.IncrementRequest()
	m.RecordRequest("/health", http.MethodGet, 200, 10*time.Millisecond)
	m.RecordRequest("/sessions/:id", http.MethodGet, 404, 30*time.Millisecond)
	m.IncrementCacheHit()
	m.IncrementCacheMiss()
	m.RecordAnalysis("analyzed", "", time.Millisecond)
	m.RecordAnalysis("rejected", "flatline", time.Millisecond)
	m.RecordImport("csv", 512)
	m.IncrementRateLimitEndpoint("/sessions/:id/analysis")

	stats := m.GetStats()

	assert.Equal(t, int64(2), stats["total_requests"])
	assert.Equal(t, int64(1), stats["error_count"])
	assert.Equal(t, 50.0, stats["cache_hit_rate_percent"])
	assert.Equal(t, int64(512), stats["samples_imported"])
	assert.Equal(t, map[int]int64{200: 1, 404: 1}, stats["status_code_distribution"])

	analyses := stats["analyses"].(map[string]interface{})
	assert.Equal(t, map[string]int64{"analyzed": 1, "rejected": 1}, analyses["by_status"])
	assert.Equal(t, map[string]int64{"flatline": 1}, analyses["quality_rejections"])

	rl := stats["rate_limit"].(map[string]interface{})
	assert.Equal(t, map[string]int64{"/sessions/:id/analysis": 1}, rl["endpoint_blocks"])
}

func TestPercentileResponseTime(t *testing.T) {
	m := NewMetrics()
	assert.Equal(t, time.Duration(0), m.GetPercentileResponseTime(50))

	for i := 1; i <= 100; i++ {
		m.RecordResponseTime(time.Duration(i) * time.Millisecond)
	}
	assert.Equal(t, 50*time.Millisecond, m.GetPercentileResponseTime(50))
	assert.Equal(t, 100*time.Millisecond, m.GetPercentileResponseTime(100))
}

func TestMonitoringMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, slog.LevelInfo)
	metrics := NewMetrics()

	router := gin.New()
	router.Use(MonitoringMiddleware(metrics, logger))
	router.GET("/sessions/:id", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sessions/abc", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, int64(1), metrics.RequestCount)
	assert.Equal(t, map[int]int64{204: 1}, metrics.GetStatusCodeDistribution())
	assert.Contains(t, buf.String(), "HTTP Request")
}

func TestSecurityMonitoringMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, slog.LevelInfo)

	router := gin.New()
	router.Use(SecurityMonitoringMiddleware(logger))
	router.GET("/users", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/users?q=1%20UNION%20SELECT%20name", nil)
	req.Header.Set("User-Agent", "Mozilla/5.0")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, buf.String(), "potential_sql_injection")

	buf.Reset()
	req = httptest.NewRequest(http.MethodGet, "/users", nil)
	req.Header.Set("User-Agent", "curl/8.0")
	router.ServeHTTP(httptest.NewRecorder(), req)
	assert.Empty(t, buf.String())
}
