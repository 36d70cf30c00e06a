package analysis

import (
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Signal quality thresholds.
const (
	FlatlineStdDev   = 1e-6
	ExtremeAmplitude = 1000.0
	NoiseWindow      = 100
	NoiseBurstFactor = 5.0
)

// CheckSignalQuality rejects channels that are flat, contain extreme values
// or show a noise burst. Any fault inside the check itself fails it. A failed
// check is logged once as a warning.
func CheckSignalQuality(logger *slog.Logger, channels ...[]float64) (report QualityReport) {
	if logger == nil {
		logger = slog.Default()
	}

	defer func() {
		if r := recover(); r != nil {
			report = QualityReport{
				Reason:  ReasonCheckError,
				Message: fmt.Sprintf("quality check failed: %v", r),
			}
		}
		if !report.Passed {
			logger.Warn("Signal quality check failed",
				"reason", report.Reason,
				"channel", report.Channel,
				"message", report.Message,
			)
		}
	}()

	return checkChannels(channels)
}

// SignalQualityOK is the boolean form of CheckSignalQuality using the default logger.
func SignalQualityOK(channels ...[]float64) bool {
	return CheckSignalQuality(nil, channels...).Passed
}

func checkChannels(channels [][]float64) QualityReport {
	if len(channels) == 0 {
		return QualityReport{Reason: ReasonCheckError, Message: "no channels supplied"}
	}

	n := len(channels[0])
	for i, ch := range channels {
		idx := i + 1
		if len(ch) != n {
			return QualityReport{
				Reason:  ReasonCheckError,
				Channel: idx,
				Message: fmt.Sprintf("channel %d has %d samples, expected %d", idx, len(ch), n),
			}
		}
		if report, ok := checkChannel(idx, ch); !ok {
			return report
		}
	}
	return QualityReport{Passed: true}
}

func checkChannel(idx int, x []float64) (QualityReport, bool) {
	fail := func(reason QualityReason, format string, args ...any) (QualityReport, bool) {
		return QualityReport{Reason: reason, Channel: idx, Message: fmt.Sprintf(format, args...)}, false
	}

	if len(x) == 0 {
		return fail(ReasonCheckError, "channel %d is empty", idx)
	}
	for i, v := range x {
		if !isFinite(v) {
			return fail(ReasonCheckError, "channel %d has non-finite value at sample %d", idx, i)
		}
	}

	mean, std := stat.PopMeanStdDev(x, nil)
	if std < FlatlineStdDev {
		return fail(ReasonFlatline, "channel %d is flat (std %.3g)", idx, std)
	}

	if peak := math.Max(floats.Max(x), -floats.Min(x)); peak > ExtremeAmplitude {
		return fail(ReasonExtreme, "channel %d has amplitude %.1f above %.0f", idx, peak, ExtremeAmplitude)
	}

	rolling := rollingStdDev(x, NoiseWindow, mean)
	if len(rolling) == 0 {
		return QualityReport{Passed: true}, true
	}
	limit := NoiseBurstFactor * stat.Mean(rolling, nil)
	if burst := floats.Max(rolling); burst > limit {
		return fail(ReasonNoiseBurst, "channel %d rolling std %.3g exceeds %.3g", idx, burst, limit)
	}
	return QualityReport{Passed: true}, true
}
