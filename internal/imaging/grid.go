package imaging

import (
	"fmt"
	"image"
	"image/color"
	"strconv"
	"strings"

	"golang.org/x/image/draw"
)

// ParseHexColor parses a hex color string like "#FF0000" or "#FF000080".
func ParseHexColor(hex string) (color.RGBA, error) {
	hex = strings.TrimPrefix(hex, "#")

	val, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("%w: invalid hex color %q", ErrInvalidInput, hex)
	}

	switch len(hex) {
	case 6:
		return color.RGBA{R: uint8(val >> 16), G: uint8(val >> 8), B: uint8(val), A: 255}, nil
	case 8:
		return color.RGBA{R: uint8(val >> 24), G: uint8(val >> 16), B: uint8(val >> 8), A: uint8(val)}, nil
	default:
		return color.RGBA{}, fmt.Errorf("%w: hex color %q must have 6 or 8 digits", ErrInvalidInput, hex)
	}
}

// DrawGrid draws one-pixel lines every spacing pixels across img, composited
// over the existing pixels so a translucent c lets the image show through.
// Lines start at spacing, not at the image edge.
func DrawGrid(img draw.Image, spacing int, c color.Color) {
	if spacing < 1 {
		return
	}
	bounds := img.Bounds()
	src := image.NewUniform(c)

	// Vertical lines
	for x := bounds.Min.X + spacing; x < bounds.Max.X; x += spacing {
		line := image.Rect(x, bounds.Min.Y, x+1, bounds.Max.Y)
		draw.Draw(img, line, src, image.Point{}, draw.Over)
	}

	// Horizontal lines
	for y := bounds.Min.Y + spacing; y < bounds.Max.Y; y += spacing {
		line := image.Rect(bounds.Min.X, y, bounds.Max.X, y+1)
		draw.Draw(img, line, src, image.Point{}, draw.Over)
	}
}
