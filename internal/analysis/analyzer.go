package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// SampleSource loads the recording of a session ordered by timestamp.
type SampleSource interface {
	LoadEEGSamples(ctx context.Context, sessionID string) ([]Sample, error)
}

// Analyzer runs the spectral pipeline: quality gate, Welch PSD per channel,
// band power aggregation and cognitive scores. It holds no mutable state.
type Analyzer struct {
	source SampleSource
	config Config
	logger *slog.Logger
}

// NewAnalyzer creates an analyzer reading from source. The config is validated.
func NewAnalyzer(source SampleSource, cfg Config, logger *slog.Logger) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	bands := make([]Band, len(cfg.Bands))
	copy(bands, cfg.Bands)
	cfg.Bands = bands

	return &Analyzer{
		source: source,
		config: cfg,
		logger: logger,
	}, nil
}

func (a *Analyzer) Config() Config {
	return a.config
}

// AnalyzeSession loads a session's samples and analyzes them. An empty
// session yields StatusNoData, not an error.
func (a *Analyzer) AnalyzeSession(ctx context.Context, sessionID string) (*Result, error) {
	if a.source == nil {
		return nil, errors.New("analysis: analyzer has no sample source")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	samples, err := a.source.LoadEEGSamples(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load samples for session %s: %w", sessionID, err)
	}

	result, err := a.AnalyzeSamples(samples)
	if err != nil {
		a.logger.Error("Session analysis failed", "session_id", sessionID, "error", err)
		return nil, err
	}
	result.SessionID = sessionID
	return result, nil
}

// AnalyzeSamples runs the pipeline on in-memory samples. Panics in any stage
// are returned as a *ComputationError.
func (a *Analyzer) AnalyzeSamples(samples []Sample) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &ComputationError{Stage: "pipeline", Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	result = &Result{
		Status:       StatusNoData,
		SamplingRate: a.config.SamplingRate,
		SampleCount:  len(samples),
		Raw:          samples,
	}
	if len(samples) == 0 {
		return result, nil
	}

	ch1, ch2 := splitChannels(samples)

	quality := CheckSignalQuality(a.logger, ch1, ch2)
	result.Quality = &quality
	if !quality.Passed {
		result.Status = StatusRejected
		return result, nil
	}

	psd1, err := EstimatePSD(ch1, a.config.SamplingRate)
	if err != nil {
		return nil, &ComputationError{Stage: "psd", Err: err}
	}
	psd2, err := EstimatePSD(ch2, a.config.SamplingRate)
	if err != nil {
		return nil, &ComputationError{Stage: "psd", Err: err}
	}

	powers := AggregateBandPowers(a.config.Bands, psd1, psd2)
	metrics, err := ComputeCognitiveMetrics(powers)
	if err != nil {
		return nil, &ComputationError{Stage: "metrics", Err: err}
	}

	result.Status = StatusAnalyzed
	result.BandPowers = powers
	result.Metrics = &metrics

	if len(metrics.Undefined) > 0 {
		a.logger.Warn("Cognitive scores undefined", "scores", metrics.Undefined)
	}
	return result, nil
}

func splitChannels(samples []Sample) ([]float64, []float64) {
	ch1 := make([]float64, len(samples))
	ch2 := make([]float64, len(samples))
	for i, s := range samples {
		ch1[i] = s.Channel1
		ch2[i] = s.Channel2
	}
	return ch1, ch2
}
