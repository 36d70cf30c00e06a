package analysis

import (
	"bytes"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckSignalQuality(t *testing.T) {
	noise := uniformNoise(1, 10, 2000)

	withSpike := append([]float64(nil), noise...)
	withSpike[500] = -1500

	withBurst := uniformNoise(6, 1, 2000)
	for i := 1000; i < 1100; i++ {
		withBurst[i] *= 100
	}

	withNaN := append([]float64(nil), noise...)
	withNaN[10] = math.NaN()

	tests := []struct {
		name     string
		channels [][]float64
		passed   bool
		reason   QualityReason
		channel  int
	}{
		{
			name:     "uniform noise passes",
			channels: [][]float64{noise, uniformNoise(2, 10, 2000)},
			passed:   true,
		},
		{
			name:     "constant channel is flat",
			channels: [][]float64{noise, make([]float64, 2000)},
			reason:   ReasonFlatline,
			channel:  2,
		},
		{
			name:     "single sample is flat",
			channels: [][]float64{{3}},
			reason:   ReasonFlatline,
			channel:  1,
		},
		{
			name:     "one extreme sample fails",
			channels: [][]float64{withSpike},
			reason:   ReasonExtreme,
			channel:  1,
		},
		{
			name:     "noise burst fails",
			channels: [][]float64{withBurst},
			reason:   ReasonNoiseBurst,
			channel:  1,
		},
		{
			name:     "short channel skips the burst check",
			channels: [][]float64{uniformNoise(3, 10, 50)},
			passed:   true,
		},
		{
			name:     "no channels fails closed",
			channels: nil,
			reason:   ReasonCheckError,
		},
		{
			name:     "mismatched lengths fail closed",
			channels: [][]float64{noise, noise[:10]},
			reason:   ReasonCheckError,
			channel:  2,
		},
		{
			name:     "empty channel fails closed",
			channels: [][]float64{{}},
			reason:   ReasonCheckError,
			channel:  1,
		},
		{
			name:     "non-finite value fails closed",
			channels: [][]float64{withNaN},
			reason:   ReasonCheckError,
			channel:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := CheckSignalQuality(discardLogger(), tt.channels...)
			assert.Equal(t, tt.passed, report.Passed)
			assert.Equal(t, tt.reason, report.Reason)
			assert.Equal(t, tt.channel, report.Channel)
			if !tt.passed {
				assert.NotEmpty(t, report.Message)
			}
		})
	}
}

func TestCheckSignalQualityLogsWarning(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	report := CheckSignalQuality(logger, make([]float64, 300))

	assert.False(t, report.Passed)
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "reason=flatline")
}

func TestCheckSignalQualityPassIsSilent(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	report := CheckSignalQuality(logger, uniformNoise(4, 1, 500))

	assert.True(t, report.Passed)
	assert.Empty(t, buf.String())
}

func TestSignalQualityOK(t *testing.T) {
	assert.True(t, SignalQualityOK(uniformNoise(5, 1, 400)))
	assert.False(t, SignalQualityOK(make([]float64, 400)))
}

func TestRollingStdDev(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5, 6}

	got := rollingStdDev(x, 3, 0)

	assert.Len(t, got, 4)
	for _, v := range got {
		assert.InDelta(t, 1.0, v, 1e-12)
	}
	assert.Nil(t, rollingStdDev(x, 10, 0))
}
