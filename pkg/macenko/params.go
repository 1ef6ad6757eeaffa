package macenko

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Default configuration values
const (
	DefaultIo    = 240.0
	DefaultAlpha = 1.0
	DefaultBeta  = 0.15

	// MaxAlpha bounds the angle percentile; alpha and 100-alpha must not cross
	MaxAlpha = 50.0
)

// Reference is the canonical stain appearance every input is mapped to
type Reference struct {
	// StainMatrix is 3×2: rows are R, G, B optical densities, column 0 is
	// hematoxylin and column 1 is eosin
	StainMatrix *mat.Dense

	// MaxConcentrations holds the robust max concentration per stain
	MaxConcentrations [2]float64
}

// DefaultReference returns a fresh copy of the standard H&E reference
func DefaultReference() Reference {
	return Reference{
		StainMatrix: mat.NewDense(3, 2, []float64{
			0.5626, 0.2159,
			0.7201, 0.8012,
			0.4062, 0.5581,
		}),
		MaxConcentrations: [2]float64{1.9705, 1.0308},
	}
}

// Params holds the normalization parameters for one invocation
type Params struct {
	// Io is the assumed transmitted light intensity
	Io float64

	// Alpha is the percentile used for the robust angle extremes
	Alpha float64

	// Beta is the optical density below which a channel counts as background
	Beta float64

	// Reference is the target stain appearance
	Reference Reference

	// StainImages enables reconstruction of the single-stain H and E images
	StainImages bool
}

// DefaultParams returns parameters with the standard defaults
func DefaultParams() *Params {
	return &Params{
		Io:          DefaultIo,
		Alpha:       DefaultAlpha,
		Beta:        DefaultBeta,
		Reference:   DefaultReference(),
		StainImages: true,
	}
}

// Validate checks every scalar and the reference data
func (p *Params) Validate() error {
	if err := validateIo(p.Io); err != nil {
		return err
	}
	if err := validateAlpha(p.Alpha); err != nil {
		return err
	}
	if math.IsNaN(p.Beta) || math.IsInf(p.Beta, 0) || p.Beta < 0 {
		return NewStageError(StageConfiguration, ErrConfiguration, "beta must be a finite value >= 0, got %v", p.Beta)
	}
	return p.Reference.Validate()
}

// Validate checks the shape and values of the reference data
func (r Reference) Validate() error {
	if r.StainMatrix == nil {
		return NewStageError(StageConfiguration, ErrConfiguration, "reference stain matrix is missing")
	}
	if rows, cols := r.StainMatrix.Dims(); rows != 3 || cols != 2 {
		return NewStageError(StageConfiguration, ErrConfiguration, "reference stain matrix must be 3x2, got %dx%d", rows, cols)
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 2; j++ {
			if v := r.StainMatrix.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return NewStageError(StageConfiguration, ErrConfiguration, "reference stain matrix has non-finite entry at (%d, %d)", i, j)
			}
		}
	}
	for i, v := range r.MaxConcentrations {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return NewStageError(StageConfiguration, ErrConfiguration, "reference max concentration %d must be positive, got %v", i, v)
		}
	}
	return nil
}

func validateIo(io float64) error {
	if math.IsNaN(io) || math.IsInf(io, 0) || io <= 0 {
		return NewStageError(StageConfiguration, ErrConfiguration, "Io must be a finite positive value, got %v", io)
	}
	return nil
}

func validateAlpha(alpha float64) error {
	if math.IsNaN(alpha) || alpha < 0 || alpha > MaxAlpha {
		return NewStageError(StageConfiguration, ErrConfiguration, "alpha must be within [0, %g], got %v", MaxAlpha, alpha)
	}
	return nil
}
