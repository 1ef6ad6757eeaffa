package macenko

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// minVariance is the smallest largest-eigenvalue accepted as a spread cloud
const minVariance = 1e-12

// StainBasis is the two-stain colour basis estimated from one image
type StainBasis struct {
	// Matrix is 3×2; column 0 is hematoxylin, column 1 is eosin
	Matrix *mat.Dense

	// Eigenvalues of the OD covariance in ascending order
	Eigenvalues [3]float64

	// MinAngle and MaxAngle are the alpha and 100-alpha percentiles of the
	// sample angles within the principal plane
	MinAngle float64
	MaxAngle float64
}

// EstimateStainVectors derives the hematoxylin and eosin directions from
// the filtered optical density cloud.
//
// The cloud is projected on the plane of the two largest principal
// components and the robust extreme angles within that plane are mapped
// back to OD space. The eigenvectors are negated before projection and the
// vector with the larger red component is taken as hematoxylin; both are
// conventions of the reference algorithm and must not change. The ordering
// heuristic is known to be fragile when both stains have a similar red
// response.
func EstimateStainVectors(odHat *mat.Dense, alpha float64) (*StainBasis, error) {
	if err := validateAlpha(alpha); err != nil {
		return nil, err
	}
	n, _ := odHat.Dims()
	if n < 3 {
		return nil, NewStageError(StageEstimator, ErrNumerical, "covariance needs at least 3 samples, got %d", n)
	}

	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, odHat, nil)

	var eig mat.EigenSym
	if ok := eig.Factorize(&cov, true); !ok {
		return nil, NewStageError(StageEstimator, ErrNumerical, "eigendecomposition of the OD covariance did not converge")
	}
	values := eig.Values(nil)
	if !(values[2] > minVariance) {
		return nil, NewStageError(StageEstimator, ErrNumerical, "OD samples have no variance (largest eigenvalue %g)", values[2])
	}

	var vecs mat.Dense
	eig.VectorsTo(&vecs)
	vecs.Scale(-1, &vecs)

	// columns 1 and 2 hold the two largest eigenvalues
	plane := vecs.Slice(0, 3, 1, 3)

	var proj mat.Dense
	proj.Mul(odHat, plane)

	phi := make([]float64, n)
	for i := 0; i < n; i++ {
		phi[i] = math.Atan2(proj.At(i, 1), proj.At(i, 0))
	}
	minPhi := percentile(phi, alpha)
	maxPhi := percentile(phi, 100-alpha)

	vMin := planeDirection(plane, minPhi)
	vMax := planeDirection(plane, maxPhi)

	he := mat.NewDense(3, 2, nil)
	if vMin.AtVec(0) > vMax.AtVec(0) {
		he.SetCol(0, vMin.RawVector().Data)
		he.SetCol(1, vMax.RawVector().Data)
	} else {
		he.SetCol(0, vMax.RawVector().Data)
		he.SetCol(1, vMin.RawVector().Data)
	}

	return &StainBasis{
		Matrix:      he,
		Eigenvalues: [3]float64{values[0], values[1], values[2]},
		MinAngle:    minPhi,
		MaxAngle:    maxPhi,
	}, nil
}

// planeDirection maps an angle in the principal plane back to OD space
func planeDirection(plane mat.Matrix, theta float64) *mat.VecDense {
	var v mat.VecDense
	v.MulVec(plane, mat.NewVecDense(2, []float64{math.Cos(theta), math.Sin(theta)}))
	return &v
}
