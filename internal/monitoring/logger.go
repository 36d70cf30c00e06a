package monitoring

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// Logger provides structured logging with domain helpers
type Logger struct {
	*slog.Logger
}

// NewLogger creates a JSON logger on stdout at the given level
func NewLogger(level slog.Level) *Logger {
	return NewLoggerWithWriter(os.Stdout, level)
}

// NewLoggerWithWriter creates a JSON logger writing to w
func NewLoggerWithWriter(w io.Writer, level slog.Level) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{
					Key:   "timestamp",
					Value: slog.StringValue(a.Value.Time().Format(time.RFC3339)),
				}
			}
			return a
		},
	})

	return &Logger{
		Logger: slog.New(handler),
	}
}

// ParseLevel maps debug, info, warn and error to a slog level. Anything
// else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// RequestLogger logs HTTP request details
func (l *Logger) RequestLogger(method, path, ip, userAgent string, statusCode int, duration time.Duration) {
	l.Info("HTTP Request",
		"method", method,
		"path", path,
		"ip", ip,
		"user_agent", userAgent,
		"status_code", statusCode,
		"duration_ms", duration.Milliseconds(),
	)
}

// AnalysisLogger logs the outcome of a session analysis
func (l *Logger) AnalysisLogger(sessionID, status string, sampleCount int, duration time.Duration, cacheHit bool) {
	l.Info("Analysis Completed",
		"session_id", sessionID,
		"status", status,
		"sample_count", sampleCount,
		"duration_ms", duration.Milliseconds(),
		"cache_hit", cacheHit,
	)
}

// ImportLogger logs a recording import
func (l *Logger) ImportLogger(sessionID, format string, samples int, duration time.Duration, err error) {
	if err != nil {
		l.Warn("EEG Import Failed",
			"session_id", sessionID,
			"format", format,
			"error", err.Error(),
		)
		return
	}
	l.Info("EEG Imported",
		"session_id", sessionID,
		"format", format,
		"samples", samples,
		"duration_ms", duration.Milliseconds(),
	)
}

// APIErrorLogger logs API errors with context
func (l *Logger) APIErrorLogger(err error, method, path, ip string, statusCode int) {
	_, file, line, ok := runtime.Caller(2)
	caller := "unknown"
	if ok {
		caller = file + ":" + strconv.Itoa(line)
	}

	l.Error("API Error",
		"error", err.Error(),
		"method", method,
		"path", path,
		"ip", ip,
		"status_code", statusCode,
		"caller", caller,
	)
}

// CacheLogger logs cache operations
func (l *Logger) CacheLogger(operation, key, backend string, hit bool) {
	l.Debug("Cache Operation",
		"operation", operation,
		"key", key,
		"backend", backend,
		"hit", hit,
	)
}

// SystemLogger logs system-level events
func (l *Logger) SystemLogger(event, details string) {
	l.Info("System Event",
		"event", event,
		"details", details,
		"uptime", time.Since(startTime).String(),
	)
}

// SecurityLogger logs security-related events
func (l *Logger) SecurityLogger(event, ip, userAgent string, details map[string]interface{}) {
	attrs := []any{
		"event", event,
		"ip", ip,
		"user_agent", userAgent,
	}
	for key, value := range details {
		attrs = append(attrs, key, value)
	}

	l.Warn("Security Event", attrs...)
}

// PerformanceLogger logs performance metrics
func (l *Logger) PerformanceLogger(metric string, value float64, unit string) {
	l.Log(context.Background(), slog.LevelWarn, "Performance Metric",
		"metric", metric,
		"value", value,
		"unit", unit,
	)
}

var startTime = time.Now()
