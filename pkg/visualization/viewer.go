package visualization

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"path/filepath"

	"golang.org/x/image/draw"

	"stainnorm/internal/models"
	"stainnorm/pkg/imageio"
	"stainnorm/pkg/macenko"
)

// Viewer renders the separated outputs of one normalization
type Viewer struct {
	// original is the image that was normalized
	original *models.Image

	// result holds the normalized image, stain images and concentrations
	result *macenko.Result
}

// NewViewer creates a viewer for an input image and its normalization result
func NewViewer(original *models.Image, result *macenko.Result) *Viewer {
	return &Viewer{
		original: original,
		result:   result,
	}
}

// ConcentrationMap renders the concentration of one stain as a 16-bit
// grayscale image. Values are scaled by the robust max concentration so the
// 99th percentile maps to white; negative concentrations map to black.
func (v *Viewer) ConcentrationMap(stain models.Stain) (*image.Gray16, error) {
	if stain != models.Hematoxylin && stain != models.Eosin {
		return nil, fmt.Errorf("invalid stain: %d", stain)
	}
	if v.result.Concentrations == nil {
		return nil, fmt.Errorf("result has no concentrations")
	}

	width, height := v.original.Width, v.original.Height
	row := v.result.Concentrations.RawRowView(int(stain))
	if len(row) != width*height {
		return nil, fmt.Errorf("concentration row has %d values for a %dx%d image", len(row), width, height)
	}
	scale := v.result.Diagnostics.MaxConcentrations[stain]

	img := image.NewGray16(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			value := uint16(math.Max(0, math.Min(65535, row[y*width+x]/scale*65535)))
			img.SetGray16(x, y, color.Gray16{Y: value})
		}
	}
	return img, nil
}

// ExtractRegion extracts a rectangle of the normalized image
func (v *Viewer) ExtractRegion(startX, startY, sizeX, sizeY int) (*models.Image, error) {
	if startX < 0 || startY < 0 {
		return nil, fmt.Errorf("start coordinates must be non-negative")
	}

	if sizeX <= 0 || sizeY <= 0 {
		return nil, fmt.Errorf("size dimensions must be positive")
	}

	src := v.result.Normalized
	if startX+sizeX > src.Width || startY+sizeY > src.Height {
		return nil, fmt.Errorf("region extends beyond image boundaries")
	}

	region := models.NewImage(sizeX, sizeY)
	for y := 0; y < sizeY; y++ {
		srcStart := ((startY+y)*src.Width + startX) * 3
		copy(region.Pix[y*sizeX*3:(y+1)*sizeX*3], src.Pix[srcStart:srcStart+sizeX*3])
	}
	return region, nil
}

// Panel composes original | normalized | hematoxylin | eosin side by side.
// Stain images are left out when the result does not carry them.
func (v *Viewer) Panel() *image.RGBA {
	tiles := []*models.Image{v.original, v.result.Normalized}
	if v.result.Hematoxylin != nil && v.result.Eosin != nil {
		tiles = append(tiles, v.result.Hematoxylin, v.result.Eosin)
	}

	width, height := v.original.Width, v.original.Height
	panel := image.NewRGBA(image.Rect(0, 0, width*len(tiles), height))
	for i, tile := range tiles {
		dst := image.Rect(i*width, 0, (i+1)*width, height)
		draw.Draw(panel, dst, tile.ToRGBA(), image.Point{}, draw.Src)
	}
	return panel
}

// SaveConcentrationMaps writes one PNG per stain into outputDir
func (v *Viewer) SaveConcentrationMaps(outputDir string) error {
	for _, stain := range []models.Stain{models.Hematoxylin, models.Eosin} {
		img, err := v.ConcentrationMap(stain)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("concentration_%s.png", stain))
		if err := imageio.Encode(img, filename); err != nil {
			return err
		}
	}
	return nil
}

// SavePanel writes the comparison panel to filename
func (v *Viewer) SavePanel(filename string) error {
	return imageio.Encode(v.Panel(), filename)
}
