package insights

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/ZanzyTHEbar/neuroselftrack/internal/database"
)

// KeyCorrelationThreshold is the |r| above which a correlation is reported.
const KeyCorrelationThreshold = 0.3

// Correlation is the Pearson coefficient of two metrics over the N
// sessions that report both.
type Correlation struct {
	A string  `json:"metric_a"`
	B string  `json:"metric_b"`
	R float64 `json:"r"`
	N int     `json:"n"`
}

// Correlations computes pairwise Pearson coefficients for every pair of
// metrics using pairwise complete observations. Pairs with fewer than two
// observations or a constant metric have no coefficient and are omitted.
func Correlations(records []database.SessionRecord, metrics []string) ([]Correlation, error) {
	for _, m := range metrics {
		if !IsMetric(m) {
			return nil, fmt.Errorf("unknown metric %q", m)
		}
	}

	var out []Correlation
	for i := 0; i < len(metrics); i++ {
		for j := i + 1; j < len(metrics); j++ {
			var xs, ys []float64
			for _, r := range records {
				x, y := metricValue(r, metrics[i]), metricValue(r, metrics[j])
				if math.IsNaN(x) || math.IsNaN(y) {
					continue
				}
				xs = append(xs, x)
				ys = append(ys, y)
			}
			if len(xs) < 2 {
				continue
			}

			r := stat.Correlation(xs, ys, nil)
			if math.IsNaN(r) || math.IsInf(r, 0) {
				continue
			}
			out = append(out, Correlation{A: metrics[i], B: metrics[j], R: r, N: len(xs)})
		}
	}
	return out, nil
}

// KeyCorrelations keeps the correlations among KeyMetrics whose magnitude
// exceeds KeyCorrelationThreshold.
func KeyCorrelations(records []database.SessionRecord) []Correlation {
	all, _ := Correlations(records, KeyMetrics)

	var out []Correlation
	for _, c := range all {
		if math.Abs(c.R) > KeyCorrelationThreshold {
			out = append(out, c)
		}
	}
	return out
}
