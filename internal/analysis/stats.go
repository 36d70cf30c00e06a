package analysis

import "math"

func clip(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// slidingWindow keeps running sums over the last size values.
type slidingWindow struct {
	values []float64
	head   int
	count  int
	sum    float64
	sumSq  float64
}

func newSlidingWindow(size int) *slidingWindow {
	return &slidingWindow{values: make([]float64, size)}
}

func (w *slidingWindow) push(v float64) {
	if w.count == len(w.values) {
		old := w.values[w.head]
		w.sum -= old
		w.sumSq -= old * old
	} else {
		w.count++
	}
	w.values[w.head] = v
	w.sum += v
	w.sumSq += v * v
	w.head = (w.head + 1) % len(w.values)
}

func (w *slidingWindow) full() bool {
	return w.count == len(w.values)
}

// stdDev is the sample standard deviation (n-1) of the buffered values.
func (w *slidingWindow) stdDev() float64 {
	if w.count < 2 {
		return 0
	}
	n := float64(w.count)
	mean := w.sum / n
	variance := (w.sumSq - n*mean*mean) / (n - 1)
	if variance < 0 {
		return 0
	}
	return math.Sqrt(variance)
}

// rollingStdDev returns the sample standard deviation of every full window of
// x, centred on offset to keep the running sums well conditioned.
func rollingStdDev(x []float64, window int, offset float64) []float64 {
	if window < 2 || len(x) < window {
		return nil
	}
	out := make([]float64, 0, len(x)-window+1)
	w := newSlidingWindow(window)
	for _, v := range x {
		w.push(v - offset)
		if w.full() {
			out = append(out, w.stdDev())
		}
	}
	return out
}
