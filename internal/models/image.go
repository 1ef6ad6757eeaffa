package models

import (
	"image"
	"image/color"
)

// Image is an 8-bit RGB micrograph stored row-major, three bytes per pixel
type Image struct {
	// Pix holds the samples in R, G, B order; len(Pix) == Width*Height*3
	Pix []uint8

	// Width and Height are the dimensions in pixels
	Width  int
	Height int
}

// NewImage allocates a zeroed image of the given size
func NewImage(width, height int) *Image {
	return &Image{
		Pix:    make([]uint8, width*height*3),
		Width:  width,
		Height: height,
	}
}

// Len returns the number of pixels
func (m *Image) Len() int {
	return m.Width * m.Height
}

// At returns the RGB triple at (x, y)
func (m *Image) At(x, y int) [3]uint8 {
	i := (y*m.Width + x) * 3
	return [3]uint8{m.Pix[i], m.Pix[i+1], m.Pix[i+2]}
}

// Set stores an RGB triple at (x, y)
func (m *Image) Set(x, y int, rgb [3]uint8) {
	i := (y*m.Width + x) * 3
	copy(m.Pix[i:i+3], rgb[:])
}

// ToRGBA converts the image to an opaque *image.RGBA for encoding
func (m *Image) ToRGBA() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, m.Width, m.Height))
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			p := m.At(x, y)
			img.SetRGBA(x, y, color.RGBA{R: p[0], G: p[1], B: p[2], A: 255})
		}
	}
	return img
}

// Stain identifies one of the two dyes separated by the normalizer.
// The value doubles as the column index in a stain matrix.
type Stain int

const (
	Hematoxylin Stain = iota
	Eosin
)

func (s Stain) String() string {
	switch s {
	case Hematoxylin:
		return "hematoxylin"
	case Eosin:
		return "eosin"
	default:
		return "unknown"
	}
}
