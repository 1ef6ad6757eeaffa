package macenko

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"stainnorm/internal/models"
)

// mixPixel renders a pixel whose optical density is ch*H + ce*E for the
// default reference stains, inverting the +1 offset of OpticalDensity
func mixPixel(ch, ce float64) [3]uint8 {
	ref := DefaultReference().StainMatrix
	var rgb [3]uint8
	for c := 0; c < 3; c++ {
		od := ref.At(c, 0)*ch + ref.At(c, 1)*ce
		v := math.Round(DefaultIo*math.Exp(-od) - 1)
		rgb[c] = uint8(math.Max(0, math.Min(255, v)))
	}
	return rgb
}

// imageFromPixels lays pixels out row by row in an image of the given width
func imageFromPixels(width int, pixels [][3]uint8) *models.Image {
	height := (len(pixels) + width - 1) / width
	img := models.NewImage(width, height)
	for i, p := range pixels {
		img.Set(i%width, i/width, p)
	}
	return img
}

// angleDegrees returns the orientation-independent angle between two vectors
func angleDegrees(a, b []float64) float64 {
	va := mat.NewVecDense(len(a), a)
	vb := mat.NewVecDense(len(b), b)
	cos := math.Abs(mat.Dot(va, vb)) / (mat.Norm(va, 2) * mat.Norm(vb, 2))
	return math.Acos(math.Min(1, cos)) * 180 / math.Pi
}

func referenceColumn(s models.Stain) []float64 {
	return mat.Col(nil, int(s), DefaultReference().StainMatrix)
}
