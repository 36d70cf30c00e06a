package analysis

import (
	"fmt"
	"math"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const maxSegmentLength = 256

// WelchParams describes how a channel is cut into overlapping segments.
type WelchParams struct {
	SegmentLength int `json:"segment_length"`
	Overlap       int `json:"overlap"`
}

// Step is the distance between consecutive segment starts.
func (p WelchParams) Step() int { return p.SegmentLength - p.Overlap }

// WelchWindow returns the segmentation used for a channel of n samples:
// min(256, n/4) samples per segment, floored at 1, with half overlap kept
// strictly below the segment length.
func WelchWindow(n int) WelchParams {
	nperseg := min(maxSegmentLength, n/4)
	if nperseg < 1 {
		nperseg = 1
	}
	return WelchParams{
		SegmentLength: nperseg,
		Overlap:       min(nperseg/2, nperseg-1),
	}
}

// hann returns a periodic Hann window of length n.
func hann(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for k := range w {
		w[k] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(k)/float64(n))
	}
	return w
}

// EstimatePSD estimates the one-sided power spectral density of x with
// Welch's method: Hann-windowed, mean-detrended segments averaged after
// density scaling.
func EstimatePSD(x []float64, fs float64) (PSD, error) {
	if len(x) == 0 {
		return PSD{}, ErrNoSamples
	}
	if fs <= 0 || !isFinite(fs) {
		return PSD{}, fmt.Errorf("%w: sampling rate %v", ErrInvalidConfig, fs)
	}

	params := WelchWindow(len(x))
	nperseg := params.SegmentLength
	window := hann(nperseg)
	scale := 1 / (fs * floats.Dot(window, window))

	bins := nperseg/2 + 1
	density := make([]float64, bins)
	segment := make([]float64, nperseg)
	segments := 0

	for start := 0; start+nperseg <= len(x); start += params.Step() {
		copy(segment, x[start:start+nperseg])
		mean := stat.Mean(segment, nil)
		for i := range segment {
			segment[i] = (segment[i] - mean) * window[i]
		}
		spectrum := fft.FFTReal(segment)
		for k := 0; k < bins; k++ {
			re, im := real(spectrum[k]), imag(spectrum[k])
			density[k] += re*re + im*im
		}
		segments++
	}

	floats.Scale(scale/float64(segments), density)

	// Fold negative frequencies onto positive ones. DC and, for even
	// segment lengths, the Nyquist bin have no mirror.
	last := bins
	if nperseg%2 == 0 {
		last = bins - 1
	}
	for k := 1; k < last; k++ {
		density[k] *= 2
	}

	freqs := make([]float64, bins)
	for k := range freqs {
		freqs[k] = float64(k) * fs / float64(nperseg)
	}

	return PSD{Frequencies: freqs, Density: density}, nil
}
