package analysis

import (
	"fmt"
	"math"
)

const DefaultSamplingRate = 256.0

// Band names read by the cognitive score calculator.
const (
	BandDelta = "delta"
	BandTheta = "theta"
	BandAlpha = "alpha"
	BandBeta  = "beta"
	BandGamma = "gamma"
)

var requiredBands = []string{BandDelta, BandTheta, BandAlpha, BandBeta}

// DefaultBands returns the standard EEG band catalog.
func DefaultBands() []Band {
	return []Band{
		{Name: BandDelta, Low: 0.5, High: 4},
		{Name: BandTheta, Low: 4, High: 8},
		{Name: BandAlpha, Low: 8, High: 13},
		{Name: BandBeta, Low: 13, High: 30},
		{Name: BandGamma, Low: 30, High: 50},
	}
}

// Config holds the tunables of the spectral pipeline.
type Config struct {
	SamplingRate float64 `json:"sampling_rate" yaml:"sampling_rate"`
	Bands        []Band  `json:"bands" yaml:"bands"`
}

func DefaultConfig() Config {
	return Config{
		SamplingRate: DefaultSamplingRate,
		Bands:        DefaultBands(),
	}
}

// Validate checks the sampling rate and that the band catalog is ascending,
// non-overlapping and contains every band the scores are computed from.
func (c Config) Validate() error {
	if c.SamplingRate <= 0 || math.IsNaN(c.SamplingRate) || math.IsInf(c.SamplingRate, 0) {
		return fmt.Errorf("%w: sampling rate must be positive and finite, got %v", ErrInvalidConfig, c.SamplingRate)
	}
	if len(c.Bands) == 0 {
		return fmt.Errorf("%w: band catalog is empty", ErrInvalidConfig)
	}

	seen := make(map[string]bool, len(c.Bands))
	for i, b := range c.Bands {
		if b.Name == "" {
			return fmt.Errorf("%w: band %d has no name", ErrInvalidConfig, i)
		}
		if seen[b.Name] {
			return fmt.Errorf("%w: duplicate band %q", ErrInvalidConfig, b.Name)
		}
		seen[b.Name] = true
		if b.Low < 0 || !(b.Low < b.High) || math.IsInf(b.High, 0) {
			return fmt.Errorf("%w: band %q needs 0 <= low < high, got [%v, %v]", ErrInvalidConfig, b.Name, b.Low, b.High)
		}
		if i > 0 && c.Bands[i-1].High > b.Low {
			return fmt.Errorf("%w: band %q overlaps or precedes %q", ErrInvalidConfig, b.Name, c.Bands[i-1].Name)
		}
	}

	for _, name := range requiredBands {
		if !seen[name] {
			return fmt.Errorf("%w: band %q is required", ErrInvalidConfig, name)
		}
	}
	return nil
}
