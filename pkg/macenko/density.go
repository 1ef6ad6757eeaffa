package macenko

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"stainnorm/internal/models"
)

// OpticalDensity converts an RGB image to an N×3 optical density matrix,
// one row per pixel in row-major order:
//
//	OD = -log((I + 1) / Io)
//
// The +1 offset keeps zero-intensity pixels finite.
func OpticalDensity(img *models.Image, io float64) (*mat.Dense, error) {
	if math.IsNaN(io) || math.IsInf(io, 0) || io <= 0 {
		return nil, NewStageError(StageDensity, ErrConfiguration, "Io must be a finite positive value, got %v", io)
	}
	n := img.Len()
	if n == 0 || len(img.Pix) != n*3 {
		return nil, NewStageError(StageDensity, ErrInsufficientData, "image is %dx%d with %d samples", img.Width, img.Height, len(img.Pix))
	}

	data := make([]float64, n*3)
	for i, v := range img.Pix {
		data[i] = -math.Log((float64(v) + 1) / io)
	}
	return mat.NewDense(n, 3, data), nil
}

// FilterBackground keeps the rows of od whose three channels are all >= beta.
// Surviving rows keep their order. The result only feeds stain estimation;
// concentrations are always solved on the unfiltered matrix.
func FilterBackground(od *mat.Dense, beta float64) (*mat.Dense, error) {
	rows, _ := od.Dims()
	kept := make([]float64, 0, rows*3)
	for i := 0; i < rows; i++ {
		row := od.RawRowView(i)
		if floats.Min(row) >= beta {
			kept = append(kept, row...)
		}
	}
	if len(kept) == 0 {
		return nil, NewStageError(StageFilter, ErrInsufficientData, "all %d pixels are below beta=%v", rows, beta)
	}
	return mat.NewDense(len(kept)/3, 3, kept), nil
}
