package analysis

import (
	"errors"
	"fmt"
)

var (
	ErrNoSamples     = errors.New("analysis: no samples")
	ErrMissingBand   = errors.New("analysis: missing band power")
	ErrInvalidConfig = errors.New("analysis: invalid configuration")
)

// ComputationError is returned when a pipeline stage faults on data that
// passed the quality gate. Stage names the step that failed.
type ComputationError struct {
	Stage string
	Err   error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("analysis: %s failed: %v", e.Stage, e.Err)
}

func (e *ComputationError) Unwrap() error { return e.Err }
