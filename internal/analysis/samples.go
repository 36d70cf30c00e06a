package analysis

import "fmt"

// ValidateSamples checks that every value is finite and timestamps never go
// backwards.
func ValidateSamples(samples []Sample) error {
	for i, s := range samples {
		if !isFinite(s.Timestamp) || !isFinite(s.Channel1) || !isFinite(s.Channel2) {
			return fmt.Errorf("sample %d has a non-finite value", i)
		}
		if i > 0 && s.Timestamp < samples[i-1].Timestamp {
			return fmt.Errorf("sample %d timestamp %v precedes %v", i, s.Timestamp, samples[i-1].Timestamp)
		}
	}
	return nil
}
