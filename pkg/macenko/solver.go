package macenko

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// SolveConcentrations recovers the 2×N stain concentrations C from
// HE · C ≈ ODᵀ using the minimum-norm least-squares solution.
//
// od must be the full N×3 optical density matrix, not the filtered subset:
// every pixel is reconstructed. Singular values below eps·max(3, 2)·σmax
// are treated as zero; a basis whose effective rank drops below two
// (collinear stain vectors) is reported as ErrNumerical.
func SolveConcentrations(od, he mat.Matrix) (*mat.Dense, error) {
	if r, c := he.Dims(); r != 3 || c != 2 {
		return nil, NewStageError(StageSolver, ErrNumerical, "stain basis must be 3x2, got %dx%d", r, c)
	}
	if _, c := od.Dims(); c != 3 {
		return nil, NewStageError(StageSolver, ErrNumerical, "optical density must have 3 columns, got %d", c)
	}

	var svd mat.SVD
	if ok := svd.Factorize(he, mat.SVDFull); !ok {
		return nil, NewStageError(StageSolver, ErrNumerical, "SVD of the stain basis failed")
	}
	rank := svd.Rank(3 * epsilon)
	if rank < 2 {
		return nil, NewStageError(StageSolver, ErrNumerical, "stain basis has rank %d, stain vectors are collinear", rank)
	}

	var conc mat.Dense
	svd.SolveTo(&conc, od.T(), rank)
	return &conc, nil
}

// epsilon is the float64 machine epsilon
var epsilon = math.Nextafter(1, 2) - 1
