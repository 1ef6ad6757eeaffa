package macenko

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"stainnorm/internal/models"
)

// MaxIntensity is the upper clip applied to reconstructed intensities
const MaxIntensity = 255.0

// RobustMaxConcentrations returns the 99th percentile of each row of the
// 2×N concentration matrix. A zero (or non-finite) entry means the stain is
// absent and the image cannot be rescaled.
func RobustMaxConcentrations(conc *mat.Dense) ([2]float64, error) {
	var maxC [2]float64
	for s := 0; s < 2; s++ {
		v := percentile(conc.RawRowView(s), 99)
		if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return maxC, NewStageError(StageNormalize, ErrDegenerateStain, "robust max concentration of %v is %v", models.Stain(s), v)
		}
		maxC[s] = v
	}
	return maxC, nil
}

// ScaleConcentrations returns C2 with C2[s, i] = C[s, i] / maxC[s] * maxCRef[s]
func ScaleConcentrations(conc *mat.Dense, maxC, maxCRef [2]float64) *mat.Dense {
	scaled := mat.DenseCopyOf(conc)
	for s := 0; s < 2; s++ {
		row := scaled.RawRowView(s)
		for i, v := range row {
			row[i] = v / maxC[s] * maxCRef[s]
		}
	}
	return scaled
}

// Reconstruct rebuilds an RGB image from scaled concentrations against a
// stain matrix: I = Io · exp(-HE · C2), clipped at 255.
func Reconstruct(scaled, stainMatrix mat.Matrix, io float64, width, height int) *models.Image {
	var od mat.Dense
	od.Mul(stainMatrix, scaled)
	return densityToImage(&od, io, width, height)
}

// ReconstructStain rebuilds the image of a single stain by dropping the
// other stain's concentrations.
func ReconstructStain(scaled, stainMatrix mat.Matrix, stain models.Stain, io float64, width, height int) *models.Image {
	s := int(stain)
	_, n := scaled.Dims()
	column := mat.NewVecDense(3, mat.Col(nil, s, stainMatrix))
	amounts := mat.NewVecDense(n, mat.Row(nil, s, scaled))

	var od mat.Dense
	od.Outer(1, column, amounts)
	return densityToImage(&od, io, width, height)
}

// densityToImage converts a 3×N optical density matrix back to pixels
func densityToImage(od *mat.Dense, io float64, width, height int) *models.Image {
	img := models.NewImage(width, height)
	for ch := 0; ch < 3; ch++ {
		for i, v := range od.RawRowView(ch) {
			img.Pix[i*3+ch] = clipIntensity(io * math.Exp(-v))
		}
	}
	return img
}

// clipIntensity caps v at 255 and truncates it to 8 bits. exp never
// yields a negative intensity so no lower clip is applied.
func clipIntensity(v float64) uint8 {
	if v > MaxIntensity {
		v = MaxIntensity
	}
	return uint8(v)
}
