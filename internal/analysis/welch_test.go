package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWelchWindow(t *testing.T) {
	tests := []struct {
		name    string
		n       int
		segment int
		overlap int
	}{
		{name: "single sample", n: 1, segment: 1, overlap: 0},
		{name: "three samples floor at one", n: 3, segment: 1, overlap: 0},
		{name: "four samples", n: 4, segment: 1, overlap: 0},
		{name: "eight samples", n: 8, segment: 2, overlap: 1},
		{name: "odd segment", n: 20, segment: 5, overlap: 2},
		{name: "quarter of input", n: 400, segment: 100, overlap: 50},
		{name: "capped at 256", n: 76800, segment: 256, overlap: 128},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := WelchWindow(tt.n)
			assert.Equal(t, tt.segment, p.SegmentLength)
			assert.Equal(t, tt.overlap, p.Overlap)
		})
	}
}

func TestWelchWindowInvariants(t *testing.T) {
	for n := 4; n < 3000; n += 7 {
		p := WelchWindow(n)
		assert.Equal(t, min(256, n/4), p.SegmentLength, "n=%d", n)
		assert.GreaterOrEqual(t, p.SegmentLength, 1, "n=%d", n)
		assert.LessOrEqual(t, p.SegmentLength, n, "n=%d", n)
		assert.Less(t, p.Overlap, p.SegmentLength, "n=%d", n)
		assert.GreaterOrEqual(t, p.Step(), 1, "n=%d", n)
	}
}

func TestHann(t *testing.T) {
	assert.Equal(t, []float64{1}, hann(1))

	w := hann(4)
	assert.InDeltaSlice(t, []float64{0, 0.5, 1, 0.5}, w, 1e-12)
}

func TestEstimatePSD(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		_, err := EstimatePSD(nil, 256)
		assert.ErrorIs(t, err, ErrNoSamples)
	})

	t.Run("invalid sampling rate", func(t *testing.T) {
		_, err := EstimatePSD([]float64{1, 2, 3, 4}, 0)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("single sample", func(t *testing.T) {
		psd, err := EstimatePSD([]float64{5}, 256)
		require.NoError(t, err)
		assert.Equal(t, []float64{0}, psd.Frequencies)
		assert.Equal(t, []float64{0}, psd.Density)
	})

	t.Run("sine power lands on its bin", func(t *testing.T) {
		fs := 256.0
		x := sine(10, 1, fs, 256*60)

		psd, err := EstimatePSD(x, fs)
		require.NoError(t, err)

		require.Len(t, psd.Frequencies, 129)
		require.Len(t, psd.Density, 129)
		assert.Equal(t, 0.0, psd.Frequencies[0])
		assert.Equal(t, 128.0, psd.Frequencies[128])

		peak := 0
		for k, d := range psd.Density {
			assert.GreaterOrEqual(t, d, 0.0)
			if d > psd.Density[peak] {
				peak = k
			}
		}
		assert.Equal(t, 10.0, psd.Frequencies[peak])

		// Density scaling preserves the signal's mean power A^2/2.
		total := BandPower(Band{Name: "all", Low: 0, High: fs / 2}, psd)
		assert.InDelta(t, 0.5, total, 1e-3)
	})

	t.Run("constant offset is removed", func(t *testing.T) {
		fs := 128.0
		x := sine(8, 2, fs, 2048)
		shifted := make([]float64, len(x))
		for i, v := range x {
			shifted[i] = v + 40
		}

		a, err := EstimatePSD(x, fs)
		require.NoError(t, err)
		b, err := EstimatePSD(shifted, fs)
		require.NoError(t, err)

		assert.InDeltaSlice(t, a.Density, b.Density, 1e-9)
	})

	t.Run("frequencies ascend", func(t *testing.T) {
		psd, err := EstimatePSD(uniformNoise(7, 1, 1000), 250)
		require.NoError(t, err)
		for k := 1; k < len(psd.Frequencies); k++ {
			assert.Greater(t, psd.Frequencies[k], psd.Frequencies[k-1])
		}
	})
}
