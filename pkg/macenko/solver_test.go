package macenko

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// TestSolveConcentrationsExact verifies that noise-free mixtures are unmixed exactly
func TestSolveConcentrationsExact(t *testing.T) {
	he := DefaultReference().StainMatrix
	truth := mat.NewDense(2, 4, []float64{
		0.0, 0.5, 1.2, 2.0,
		1.0, 0.3, 0.0, 0.7,
	})

	var odT mat.Dense
	odT.Mul(he, truth)

	var od mat.Dense
	od.CloneFrom(odT.T())

	conc, err := SolveConcentrations(&od, he)
	if err != nil {
		t.Fatalf("SolveConcentrations failed: %v", err)
	}
	if !mat.EqualApprox(conc, truth, 1e-9) {
		t.Errorf("Expected concentrations %v, got %v", mat.Formatted(truth), mat.Formatted(conc))
	}
}

// TestSolveConcentrationsRoundTrip renders a known concentration profile with
// the reference stains, quantizes it to 8 bits and recovers the profile
func TestSolveConcentrationsRoundTrip(t *testing.T) {
	var profile [][2]float64
	var pixels [][3]uint8
	for i := 0; i < 10; i++ {
		for j := 0; j < 10; j++ {
			c := [2]float64{0.1 + 0.1*float64(i), 0.1 + 0.1*float64(j)}
			profile = append(profile, c)
			pixels = append(pixels, mixPixel(c[0], c[1]))
		}
	}

	od, err := OpticalDensity(imageFromPixels(10, pixels), DefaultIo)
	if err != nil {
		t.Fatalf("OpticalDensity failed: %v", err)
	}
	conc, err := SolveConcentrations(od, DefaultReference().StainMatrix)
	if err != nil {
		t.Fatalf("SolveConcentrations failed: %v", err)
	}

	rows, cols := conc.Dims()
	if rows != 2 || cols != len(profile) {
		t.Fatalf("Expected 2x%d concentrations, got %dx%d", len(profile), rows, cols)
	}
	for i, c := range profile {
		for s := 0; s < 2; s++ {
			if got := conc.At(s, i); math.Abs(got-c[s]) > 0.075 {
				t.Errorf("Pixel %d stain %d: expected concentration %.3f, got %.3f", i, s, c[s], got)
			}
		}
	}
}

// TestSolveConcentrationsCollinear verifies that a rank-deficient basis is rejected
func TestSolveConcentrationsCollinear(t *testing.T) {
	he := mat.NewDense(3, 2, []float64{
		0.5, 1.0,
		0.7, 1.4,
		0.4, 0.8,
	})
	od := mat.NewDense(1, 3, []float64{0.5, 0.7, 0.4})

	_, err := SolveConcentrations(od, he)
	if !errors.Is(err, ErrNumerical) {
		t.Errorf("Expected numerical error, got %v", err)
	}
}

// TestSolveConcentrationsShape verifies the basis shape check
func TestSolveConcentrationsShape(t *testing.T) {
	od := mat.NewDense(1, 3, []float64{0.5, 0.7, 0.4})
	_, err := SolveConcentrations(od, mat.NewDense(3, 3, nil))
	if !errors.Is(err, ErrNumerical) {
		t.Errorf("Expected numerical error for 3x3 basis, got %v", err)
	}
}
