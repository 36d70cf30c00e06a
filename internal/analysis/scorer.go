package analysis

import "fmt"

const (
	scoreMin  = 1.0
	scoreMax  = 5.0
	scoreMid  = 3.0
	scoreGain = 2.0
)

// ComputeCognitiveMetrics maps band powers to focus, relaxation and clarity:
//
//	focus      = 3 + (beta/alpha - 1) * 2
//	relaxation = 3 + (alpha/theta - 1) * 2
//	clarity    = 3 + alpha/(theta+delta) * 2
//
// each clamped to [1, 5] and rounded to one decimal. A zero or non-finite
// denominator leaves that score undefined.
func ComputeCognitiveMetrics(bp BandPowers) (CognitiveMetrics, error) {
	powers := make(map[string]float64, len(requiredBands))
	for _, name := range requiredBands {
		p, ok := bp[name]
		if !ok {
			return CognitiveMetrics{}, fmt.Errorf("%w: %s", ErrMissingBand, name)
		}
		powers[name] = p
	}

	delta, theta := powers[BandDelta], powers[BandTheta]
	alpha, beta := powers[BandAlpha], powers[BandBeta]

	m := CognitiveMetrics{
		Focus:      ratioScore(beta, alpha, -1),
		Relaxation: ratioScore(alpha, theta, -1),
		Clarity:    ratioScore(alpha, theta+delta, 0),
	}
	for _, s := range []struct {
		name  string
		score Score
	}{
		{"focus_score", m.Focus},
		{"relaxation_score", m.Relaxation},
		{"clarity_score", m.Clarity},
	} {
		if !s.score.Defined() {
			m.Undefined = append(m.Undefined, s.name)
		}
	}
	return m, nil
}

func ratioScore(num, den, offset float64) Score {
	if den == 0 || !isFinite(den) || !isFinite(num) {
		return Undefined()
	}
	ratio := num / den
	if !isFinite(ratio) {
		return Undefined()
	}
	return Score(round1(clip(scoreMid+(ratio+offset)*scoreGain, scoreMin, scoreMax)))
}
