package macenko

import (
	"errors"
	"fmt"
)

// Error kinds reported by the pipeline stages. Match them with errors.Is.
var (
	// ErrConfiguration reports a non-positive Io or an out-of-range alpha/beta
	ErrConfiguration = errors.New("configuration error")

	// ErrInsufficientData reports that no pixel survived the background filter
	ErrInsufficientData = errors.New("insufficient data")

	// ErrNumerical reports a degenerate covariance or a singular stain basis
	ErrNumerical = errors.New("numerical error")

	// ErrDegenerateStain reports a stain whose robust max concentration is zero
	ErrDegenerateStain = errors.New("degenerate stain")
)

// Stage names used in StageError
const (
	StageConfiguration = "configuration"
	StageDensity       = "optical density"
	StageFilter        = "background filter"
	StageEstimator     = "stain vector estimation"
	StageSolver        = "concentration solve"
	StageNormalize     = "normalization"
)

// StageError describes a failure of one pipeline stage
type StageError struct {
	// Stage is the stage that first detected the problem
	Stage string

	// Kind is one of the Err* sentinels above
	Kind error

	// Detail is a human readable description of the offending value
	Detail string
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v: %s", e.Stage, e.Kind, e.Detail)
}

func (e *StageError) Unwrap() error {
	return e.Kind
}

// NewStageError builds a *StageError with a formatted detail
func NewStageError(stage string, kind error, format string, args ...interface{}) error {
	return &StageError{
		Stage:  stage,
		Kind:   kind,
		Detail: fmt.Sprintf(format, args...),
	}
}
