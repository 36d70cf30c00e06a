package analysis

import (
	"context"
	"io"
	"log/slog"
	"math"
	"math/rand"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sine(freq, amplitude, fs float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/fs)
	}
	return out
}

func uniformNoise(seed int64, amplitude float64, n int) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := range out {
		out[i] = amplitude * (2*rng.Float64() - 1)
	}
	return out
}

func toSamples(fs float64, ch1, ch2 []float64) []Sample {
	samples := make([]Sample, len(ch1))
	for i := range ch1 {
		samples[i] = Sample{Timestamp: float64(i) / fs, Channel1: ch1[i], Channel2: ch2[i]}
	}
	return samples
}

type stubSource struct {
	samples []Sample
	err     error
	calls   int
}

func (s *stubSource) LoadEEGSamples(_ context.Context, _ string) ([]Sample, error) {
	s.calls++
	return s.samples, s.err
}
