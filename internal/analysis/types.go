package analysis

import (
	"bytes"
	"math"
	"strconv"
)

// Sample is one row of a two-channel recording. Timestamp is in unix seconds.
type Sample struct {
	Timestamp float64 `json:"timestamp"`
	Channel1  float64 `json:"channel1"`
	Channel2  float64 `json:"channel2"`
}

// Band is a named frequency interval in Hz.
type Band struct {
	Name string  `json:"name" yaml:"name"`
	Low  float64 `json:"low" yaml:"low"`
	High float64 `json:"high" yaml:"high"`
}

// BandPowers maps a band name to its power averaged over both channels.
type BandPowers map[string]float64

// PSD is a one-sided power spectral density estimate of a single channel.
type PSD struct {
	Frequencies []float64 `json:"frequencies"`
	Density     []float64 `json:"density"`
}

// Score is a cognitive score in [1, 5]. NaN marks a score that could not be
// computed and is encoded as JSON null.
type Score float64

// Undefined returns the marker used for scores whose ratio has no denominator.
func Undefined() Score { return Score(math.NaN()) }

// Defined reports whether the score holds a finite value.
func (s Score) Defined() bool {
	f := float64(s)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func (s Score) MarshalJSON() ([]byte, error) {
	if !s.Defined() {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, float64(s), 'f', -1, 64), nil
}

func (s *Score) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*s = Undefined()
		return nil
	}
	f, err := strconv.ParseFloat(string(bytes.TrimSpace(data)), 64)
	if err != nil {
		return err
	}
	*s = Score(f)
	return nil
}

type CognitiveMetrics struct {
	Focus      Score `json:"focus_score"`
	Relaxation Score `json:"relaxation_score"`
	Clarity    Score `json:"clarity_score"`
	// Undefined lists the scores whose ratio had a zero or non-finite denominator.
	Undefined []string `json:"undefined,omitempty"`
}

// Status tells the three outcomes of a pipeline run apart.
type Status string

const (
	StatusNoData   Status = "no_data"
	StatusRejected Status = "rejected"
	StatusAnalyzed Status = "analyzed"
)

type QualityReason string

const (
	ReasonFlatline   QualityReason = "flatline"
	ReasonExtreme    QualityReason = "extreme_value"
	ReasonNoiseBurst QualityReason = "noise_burst"
	ReasonCheckError QualityReason = "check_error"
)

// QualityReport is the outcome of the signal quality gate. Channel is the
// 1-based index of the offending channel, or 0 when no single channel is at fault.
type QualityReport struct {
	Passed  bool          `json:"passed"`
	Reason  QualityReason `json:"reason,omitempty"`
	Channel int           `json:"channel,omitempty"`
	Message string        `json:"message,omitempty"`
}

// Result is the outcome of analysing one session.
type Result struct {
	SessionID    string            `json:"session_id,omitempty"`
	Status       Status            `json:"status"`
	SamplingRate float64           `json:"sampling_rate"`
	SampleCount  int               `json:"sample_count"`
	Quality      *QualityReport    `json:"quality,omitempty"`
	BandPowers   BandPowers        `json:"band_powers,omitempty"`
	Metrics      *CognitiveMetrics `json:"metrics,omitempty"`
	Raw          []Sample          `json:"raw,omitempty"`
}

// WithoutRaw returns a shallow copy of r with the echoed samples dropped.
func (r *Result) WithoutRaw() *Result {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Raw = nil
	return &cp
}
