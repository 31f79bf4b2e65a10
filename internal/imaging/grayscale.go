package imaging

import (
	"fmt"
	"image"

	"github.com/anthonynsimon/bild/effect"
)

// Grayscale collapses img to single-channel 8-bit intensity samples.
//
// An *image.Gray whose bounds start at the origin is returned as-is; its
// samples are already intensities. Every other color model is reduced to
// BT.601 luminance (0.299 R + 0.587 G + 0.114 B). The returned image always
// has its top-left pixel at (0,0).
func Grayscale(img image.Image) (*image.Gray, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: image is nil or empty", ErrInvalidInput)
	}

	if g, ok := img.(*image.Gray); ok && g.Bounds().Min == (image.Point{}) {
		return g, nil
	}

	// BT.601 luma; bild writes the same value to R, G and B.
	reduced := effect.GrayscaleWithWeights(img, 0.299, 0.587, 0.114)

	b := reduced.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		row := out.Pix[y*out.Stride : y*out.Stride+b.Dx()]
		for x := range row {
			row[x] = reduced.RGBAAt(b.Min.X+x, b.Min.Y+y).R
		}
	}
	return out, nil
}
