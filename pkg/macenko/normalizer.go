package macenko

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"stainnorm/internal/models"
)

// ProgressCallback receives stage progress. A call with total == 0 is an
// informational message only.
type ProgressCallback func(completed, total int, message string)

// Diagnostics summarizes the intermediate quantities of one normalization.
// They are useful for rejecting images whose stain basis is unreliable.
type Diagnostics struct {
	// TotalPixels is the number of pixels in the input
	TotalPixels int

	// TissuePixels is the number of pixels kept by the background filter
	TissuePixels int

	// Eigenvalues of the OD covariance, ascending
	Eigenvalues [3]float64

	// MinAngle and MaxAngle are the robust extreme angles in the principal plane
	MinAngle float64
	MaxAngle float64

	// Condition is the 2-norm condition number of the estimated stain matrix
	Condition float64

	// MaxConcentrations are the robust (99th percentile) max concentrations
	MaxConcentrations [2]float64

	// MeanConcentrations are the mean concentrations before rescaling
	MeanConcentrations [2]float64
}

// TissueFraction returns the share of pixels used for basis estimation
func (d Diagnostics) TissueFraction() float64 {
	if d.TotalPixels == 0 {
		return 0
	}
	return float64(d.TissuePixels) / float64(d.TotalPixels)
}

// Result holds the outputs of one normalization
type Result struct {
	// Normalized is the input mapped onto the reference stain appearance
	Normalized *models.Image

	// Hematoxylin and Eosin are the single-stain images; nil unless
	// Params.StainImages is set
	Hematoxylin *models.Image
	Eosin       *models.Image

	// StainMatrix is the estimated 3×2 basis of the input
	StainMatrix *mat.Dense

	// Concentrations is the 2×N concentration matrix before rescaling
	Concentrations *mat.Dense

	Diagnostics Diagnostics
}

// Normalizer runs the Macenko pipeline:
// 1. Optical density transform
// 2. Background filtering
// 3. Stain vector estimation
// 4. Concentration solve on every pixel
// 5. Rescaling against the reference and reconstruction
//
// A Normalizer holds no per-image state and may be shared by goroutines
// as long as the progress callback is safe for concurrent use.
type Normalizer struct {
	params           *Params
	progressCallback ProgressCallback
}

// NewNormalizer creates a normalizer with the given parameters.
// A nil params selects DefaultParams.
func NewNormalizer(params *Params) *Normalizer {
	if params == nil {
		params = DefaultParams()
	}
	return &Normalizer{params: params}
}

// SetProgressCallback installs a callback that is invoked after every stage
func (n *Normalizer) SetProgressCallback(callback ProgressCallback) {
	n.progressCallback = callback
}

// Params returns the parameters the normalizer was created with
func (n *Normalizer) Params() *Params {
	return n.params
}

const totalStages = 5

// Normalize maps img onto the reference stain appearance. Any stage
// failure aborts the whole run and is returned as a *StageError.
func (n *Normalizer) Normalize(img *models.Image) (*Result, error) {
	p := n.params
	if err := p.Validate(); err != nil {
		return nil, err
	}

	od, err := OpticalDensity(img, p.Io)
	if err != nil {
		return nil, err
	}
	n.reportProgress(1, totalStages, "optical density computed")

	odHat, err := FilterBackground(od, p.Beta)
	if err != nil {
		return nil, err
	}
	tissue, _ := odHat.Dims()
	n.reportProgress(0, 0, fmt.Sprintf("%d of %d pixels kept as tissue", tissue, img.Len()))
	n.reportProgress(2, totalStages, "background filtered")

	basis, err := EstimateStainVectors(odHat, p.Alpha)
	if err != nil {
		return nil, err
	}
	n.reportProgress(3, totalStages, "stain vectors estimated")

	conc, err := SolveConcentrations(od, basis.Matrix)
	if err != nil {
		return nil, err
	}
	n.reportProgress(4, totalStages, "concentrations solved")

	maxC, err := RobustMaxConcentrations(conc)
	if err != nil {
		return nil, err
	}
	scaled := ScaleConcentrations(conc, maxC, p.Reference.MaxConcentrations)

	result := &Result{
		Normalized:     Reconstruct(scaled, p.Reference.StainMatrix, p.Io, img.Width, img.Height),
		StainMatrix:    basis.Matrix,
		Concentrations: conc,
		Diagnostics: Diagnostics{
			TotalPixels:       img.Len(),
			TissuePixels:      tissue,
			Eigenvalues:       basis.Eigenvalues,
			MinAngle:          basis.MinAngle,
			MaxAngle:          basis.MaxAngle,
			Condition:         mat.Cond(basis.Matrix, 2),
			MaxConcentrations: maxC,
			MeanConcentrations: [2]float64{
				stat.Mean(conc.RawRowView(0), nil),
				stat.Mean(conc.RawRowView(1), nil),
			},
		},
	}
	if p.StainImages {
		result.Hematoxylin = ReconstructStain(scaled, p.Reference.StainMatrix, models.Hematoxylin, p.Io, img.Width, img.Height)
		result.Eosin = ReconstructStain(scaled, p.Reference.StainMatrix, models.Eosin, p.Io, img.Width, img.Height)
	}
	n.reportProgress(5, totalStages, "image reconstructed")

	return result, nil
}

func (n *Normalizer) reportProgress(completed, total int, message string) {
	if n.progressCallback != nil {
		n.progressCallback(completed, total, message)
	}
}
