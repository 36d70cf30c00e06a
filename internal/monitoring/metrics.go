package monitoring

import (
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

const maxResponseSamples = 1000

// latencyWindow keeps the most recent response times for percentiles.
type latencyWindow struct {
	mu      sync.RWMutex
	samples []time.Duration
	ewma    atomic.Int64 // nanoseconds
}

func (w *latencyWindow) add(d time.Duration) {
	w.ewma.Store((w.ewma.Load() + d.Nanoseconds()) / 2)

	w.mu.Lock()
	w.samples = append(w.samples, d)
	if len(w.samples) > maxResponseSamples {
		w.samples = w.samples[len(w.samples)-maxResponseSamples:]
	}
	w.mu.Unlock()
}

func (w *latencyWindow) percentile(p float64) time.Duration {
	w.mu.RLock()
	sorted := append([]time.Duration(nil), w.samples...)
	w.mu.RUnlock()

	if len(sorted) == 0 {
		return 0
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	i := int(float64(len(sorted)-1) * p / 100)
	return sorted[min(max(i, 0), len(sorted)-1)]
}

// counterSet is a labelled counter.
type counterSet[K comparable] struct {
	mu     sync.RWMutex
	counts map[K]int64
}

func newCounterSet[K comparable]() *counterSet[K] {
	return &counterSet[K]{counts: make(map[K]int64)}
}

func (s *counterSet[K]) inc(key K) {
	s.mu.Lock()
	s.counts[key]++
	s.mu.Unlock()
}

func (s *counterSet[K]) snapshot() map[K]int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[K]int64, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out
}

// Metrics holds the in-process counters reported by /health. Every
// recorder also feeds the matching Prometheus collector.
type Metrics struct {
	RequestCount    int64
	ErrorCount      int64
	CacheHits       int64
	CacheMisses     int64
	SamplesImported int64
	StartTime       time.Time

	latency  latencyWindow
	byStatus *counterSet[int]

	analyses   *counterSet[string]
	rejections *counterSet[string]

	RateLimitIPBlocks      int64
	RateLimitRedisErrors   int64
	RateLimitFallbackCount int64
	endpointBlocks         *counterSet[string]
}

// NewMetrics creates an empty metrics registry.
func NewMetrics() *Metrics {
	return &Metrics{
		StartTime:      time.Now(),
		byStatus:       newCounterSet[int](),
		analyses:       newCounterSet[string](),
		rejections:     newCounterSet[string](),
		endpointBlocks: newCounterSet[string](),
	}
}

func (m *Metrics) IncrementRequest() {
	atomic.AddInt64(&m.RequestCount, 1)
}

func (m *Metrics) IncrementError() {
	atomic.AddInt64(&m.ErrorCount, 1)
}

// IncrementCacheHit counts an analysis result served from cache.
func (m *Metrics) IncrementCacheHit() {
	atomic.AddInt64(&m.CacheHits, 1)
	CacheRequestsTotal.WithLabelValues("hit").Inc()
}

// IncrementCacheMiss counts an analysis that had to be computed.
func (m *Metrics) IncrementCacheMiss() {
	atomic.AddInt64(&m.CacheMisses, 1)
	CacheRequestsTotal.WithLabelValues("miss").Inc()
}

// RecordRequest records one finished HTTP request.
func (m *Metrics) RecordRequest(route, method string, statusCode int, duration time.Duration) {
	m.RecordResponseTime(duration)
	m.RecordRequestByStatus(statusCode)
	if statusCode >= 400 {
		m.IncrementError()
	}
	RequestsTotal.WithLabelValues(route, method, strconv.Itoa(statusCode)).Inc()
	RequestDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

func (m *Metrics) RecordResponseTime(duration time.Duration) {
	m.latency.add(duration)
}

func (m *Metrics) RecordRequestByStatus(statusCode int) {
	m.byStatus.inc(statusCode)
}

// RecordAnalysis counts a pipeline outcome. reason is the quality gate
// reason for rejected recordings and ignored otherwise.
func (m *Metrics) RecordAnalysis(status, reason string, duration time.Duration) {
	m.analyses.inc(status)
	AnalysesTotal.WithLabelValues(status).Inc()
	if reason != "" {
		m.rejections.inc(reason)
		QualityRejectionsTotal.WithLabelValues(reason).Inc()
	}
	AnalysisDuration.Observe(duration.Seconds())
}

// RecordImport counts imported samples per file format.
func (m *Metrics) RecordImport(format string, samples int) {
	atomic.AddInt64(&m.SamplesImported, int64(samples))
	SamplesImportedTotal.WithLabelValues(format).Add(float64(samples))
}

// GetPercentileResponseTime returns the p-th percentile of the last
// responses, or 0 before the first one.
func (m *Metrics) GetPercentileResponseTime(percentile float64) time.Duration {
	return m.latency.percentile(percentile)
}

func (m *Metrics) GetStatusCodeDistribution() map[int]int64 {
	return m.byStatus.snapshot()
}

// GetAnalysisStats returns analysis outcomes and quality rejections.
func (m *Metrics) GetAnalysisStats() map[string]interface{} {
	return map[string]interface{}{
		"by_status":          m.analyses.snapshot(),
		"quality_rejections": m.rejections.snapshot(),
	}
}

func percent(part, whole int64) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// GetStats returns a snapshot of every counter.
func (m *Metrics) GetStats() map[string]interface{} {
	requests := atomic.LoadInt64(&m.RequestCount)
	errs := atomic.LoadInt64(&m.ErrorCount)
	hits := atomic.LoadInt64(&m.CacheHits)
	misses := atomic.LoadInt64(&m.CacheMisses)

	return map[string]interface{}{
		"uptime_seconds":           time.Since(m.StartTime).Seconds(),
		"start_time":               m.StartTime.Format(time.RFC3339),
		"total_requests":           requests,
		"error_count":              errs,
		"error_rate_percent":       percent(errs, requests),
		"cache_hits":               hits,
		"cache_misses":             misses,
		"cache_hit_rate_percent":   percent(hits, hits+misses),
		"samples_imported":         atomic.LoadInt64(&m.SamplesImported),
		"avg_response_time_ms":     millis(time.Duration(m.latency.ewma.Load())),
		"p50_response_time_ms":     millis(m.latency.percentile(50)),
		"p95_response_time_ms":     millis(m.latency.percentile(95)),
		"p99_response_time_ms":     millis(m.latency.percentile(99)),
		"status_code_distribution": m.GetStatusCodeDistribution(),
		"analyses":                 m.GetAnalysisStats(),
		"rate_limit":               m.GetRateLimitStats(),
	}
}

func (m *Metrics) IncrementRateLimitIPBlock() {
	atomic.AddInt64(&m.RateLimitIPBlocks, 1)
	RateLimitedTotal.WithLabelValues("ip").Inc()
}

func (m *Metrics) IncrementRateLimitRedisError() {
	atomic.AddInt64(&m.RateLimitRedisErrors, 1)
}

func (m *Metrics) IncrementRateLimitFallback() {
	atomic.AddInt64(&m.RateLimitFallbackCount, 1)
}

// IncrementRateLimitEndpoint counts a request refused by an endpoint limit.
func (m *Metrics) IncrementRateLimitEndpoint(endpoint string) {
	m.endpointBlocks.inc(endpoint)
	RateLimitedTotal.WithLabelValues(endpoint).Inc()
}

func (m *Metrics) GetRateLimitStats() map[string]interface{} {
	return map[string]interface{}{
		"ip_blocks":       atomic.LoadInt64(&m.RateLimitIPBlocks),
		"redis_errors":    atomic.LoadInt64(&m.RateLimitRedisErrors),
		"fallback_count":  atomic.LoadInt64(&m.RateLimitFallbackCount),
		"endpoint_blocks": m.endpointBlocks.snapshot(),
	}
}
