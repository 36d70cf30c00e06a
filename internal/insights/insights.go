// Package insights derives dashboard statistics from a user's session
// history: when they perform best, under which conditions, and which
// self-reported measures move together.
package insights

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/ZanzyTHEbar/neuroselftrack/internal/database"
)

// Metric names as stored in the lifestyle and journal tables.
const (
	MetricMood         = "mood_score"
	MetricFocus        = "focus_score"
	MetricClarity      = "mental_clarity"
	MetricEnergy       = "energy_level"
	MetricStress       = "stress_level"
	MetricProductivity = "productivity_score"
	MetricSleepQuality = "sleep_quality"
)

// AllMetrics lists every metric Correlations accepts.
var AllMetrics = []string{
	MetricMood, MetricFocus, MetricClarity, MetricEnergy,
	MetricStress, MetricProductivity, MetricSleepQuality,
}

// KeyMetrics are the measures reported in overall performance insights.
var KeyMetrics = []string{
	MetricFocus, MetricClarity, MetricMood, MetricEnergy, MetricProductivity,
}

// metricValue returns the named metric of r, or NaN when unknown or missing.
func metricValue(r database.SessionRecord, name string) float64 {
	switch name {
	case MetricMood:
		return r.Mood
	case MetricFocus:
		return r.Focus
	case MetricClarity:
		return r.Clarity
	case MetricEnergy:
		return r.Energy
	case MetricStress:
		return r.Stress
	case MetricProductivity:
		return r.Productivity
	case MetricSleepQuality:
		return r.SleepQuality
	}
	return math.NaN()
}

// IsMetric reports whether name is a known metric.
func IsMetric(name string) bool {
	for _, m := range AllMetrics {
		if m == name {
			return true
		}
	}
	return false
}

// ParseHour extracts the hour from a "HH:MM" time of day, falling back to a
// bare hour number. ok is false for anything else.
func ParseHour(timeOfDay string) (hour int, ok bool) {
	s := strings.TrimSpace(timeOfDay)
	if s == "" {
		return 0, false
	}
	if t, err := time.Parse("15:04", s); err == nil {
		return t.Hour(), true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || f < 0 || f >= 24 || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

// nanMean is the mean of the finite values of xs, NaN when there are none.
func nanMean(xs []float64) float64 {
	finite := dropNaN(xs)
	if len(finite) == 0 {
		return math.NaN()
	}
	return stat.Mean(finite, nil)
}

func dropNaN(xs []float64) []float64 {
	out := make([]float64, 0, len(xs))
	for _, x := range xs {
		if !math.IsNaN(x) && !math.IsInf(x, 0) {
			out = append(out, x)
		}
	}
	return out
}

// column collects one metric from every record.
func column(records []database.SessionRecord, get func(database.SessionRecord) float64) []float64 {
	out := make([]float64, len(records))
	for i, r := range records {
		out[i] = get(r)
	}
	return out
}

// weightedMean averages the finite values with their weights renormalised
// over the values present.
func weightedMean(values, weights []float64) float64 {
	var sum, total float64
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		sum += v * weights[i]
		total += weights[i]
	}
	if total == 0 {
		return math.NaN()
	}
	return sum / total
}

// mode returns the most frequent non-empty value, the smallest on ties.
func mode(values []string) string {
	counts := make(map[string]int)
	for _, v := range values {
		if v != "" {
			counts[v]++
		}
	}
	best, bestCount := "", 0
	for v, n := range counts {
		if n > bestCount || (n == bestCount && v < best) {
			best, bestCount = v, n
		}
	}
	return best
}

// groupBy partitions records by key, skipping records whose key is invalid.
// Keys are returned in ascending order.
func groupBy[K int | float64 | string](records []database.SessionRecord, key func(database.SessionRecord) (K, bool)) ([]K, map[K][]database.SessionRecord) {
	groups := make(map[K][]database.SessionRecord)
	for _, r := range records {
		k, ok := key(r)
		if !ok {
			continue
		}
		groups[k] = append(groups[k], r)
	}

	keys := make([]K, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys, groups
}

func byHour(r database.SessionRecord) (int, bool) {
	return ParseHour(r.TimeOfDay)
}

func byString(get func(database.SessionRecord) string) func(database.SessionRecord) (string, bool) {
	return func(r database.SessionRecord) (string, bool) {
		v := get(r)
		return v, v != ""
	}
}

func finiteOrNil(x float64) *float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return nil
	}
	return &x
}
