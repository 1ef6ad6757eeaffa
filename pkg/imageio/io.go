// Package imageio decodes raster files into stainnorm images and encodes
// results back to disk.
package imageio

import (
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp" // Register WebP decoder

	"stainnorm/internal/models"
)

// LoadImage loads an RGB image from the specified path.
// Supports PNG, JPEG, GIF, TIFF, BMP and WebP. Alpha is discarded.
func LoadImage(path string) (*models.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", path, err)
	}

	return FromImage(img), nil
}

// FromImage converts any decoded image to a row-major RGB image.
// Colors are taken unpremultiplied and alpha is dropped, so a transparent
// white pixel stays white.
func FromImage(img image.Image) *models.Image {
	bounds := img.Bounds()
	out := models.NewImage(bounds.Dx(), bounds.Dy())

	if nrgba, ok := img.(*image.NRGBA); ok {
		for y := 0; y < out.Height; y++ {
			start := nrgba.PixOffset(bounds.Min.X, bounds.Min.Y+y)
			row := nrgba.Pix[start : start+out.Width*4]
			for x := 0; x < out.Width; x++ {
				copy(out.Pix[(y*out.Width+x)*3:], row[x*4:x*4+3])
			}
		}
		return out
	}

	for y := 0; y < out.Height; y++ {
		for x := 0; x < out.Width; x++ {
			c := color.NRGBAModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA)
			out.Set(x, y, [3]uint8{c.R, c.G, c.B})
		}
	}
	return out
}

// SaveImage saves an RGB image to the specified path.
// Format is determined by file extension (png, jpg/jpeg, gif, tif/tiff, bmp).
func SaveImage(img *models.Image, path string) error {
	return Encode(img.ToRGBA(), path)
}

// Encode writes any image.Image using the format implied by the extension
func Encode(img image.Image, path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	encode, ok := encoders[ext]
	if !ok {
		return fmt.Errorf("unsupported output format %q", ext)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	if err := encode(f, img); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return nil
}

var encoders = map[string]func(io.Writer, image.Image) error{
	".png":  png.Encode,
	".jpg":  encodeJPEG,
	".jpeg": encodeJPEG,
	".gif": func(w io.Writer, img image.Image) error {
		return gif.Encode(w, img, nil)
	},
	".tif":  encodeTIFF,
	".tiff": encodeTIFF,
	".bmp":  bmp.Encode,
}

func encodeJPEG(w io.Writer, img image.Image) error {
	return jpeg.Encode(w, img, &jpeg.Options{Quality: 95})
}

func encodeTIFF(w io.Writer, img image.Image) error {
	return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
}

// SiblingPath derives an output path next to path with a suffix before the
// extension, e.g. out.png + "_H" -> out_H.png
func SiblingPath(path, suffix string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + suffix + ext
}
