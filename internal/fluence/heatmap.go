package fluence

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	"github.com/disintegration/imaging"
	colorful "github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/draw"

	imgutil "github.com/ironsheep/fluence-tools-mcp/internal/imaging"
)

// HeatColor maps a fluence value to its heat-map color. The value is clamped
// to [0,1] and mapped to hue (1-v)*240 at full saturation and brightness, so
// 0 is blue, 0.5 is green and 1 is red. Alpha is always 255.
func HeatColor(v float64) color.RGBA {
	hue := (1 - clampUnit(v)) * 240
	r, g, b := colorful.Hsv(hue, 1, 1).Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// RenderHeatMap renders m as an RGBA image with one pixel per cell. The
// result depends only on the matrix values.
func RenderHeatMap(m *Matrix) (*image.RGBA, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: matrix is nil", ErrInvalidInput)
	}

	rows, cols := m.Dims()
	img := image.NewRGBA(image.Rect(0, 0, cols, rows))
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			img.SetRGBA(x, y, HeatColor(m.At(y, x)))
		}
	}
	return img, nil
}

// HeatMapOptions controls how a heat map is enlarged for display.
type HeatMapOptions struct {
	// Scale enlarges each cell to a Scale x Scale block. Values below 1 mean 1.
	Scale int

	// GridColor, when set, outlines the cells in this "#RRGGBB" or
	// "#RRGGBBAA" color. It is ignored below a scale of 3, where the lines
	// would cover most of each cell.
	GridColor string
}

// HeatMapResult contains a rendered heat map encoded for display.
type HeatMapResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Scale       int    `json:"scale"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// EncodeHeatMapPNG renders m and returns it as base64 PNG.
func EncodeHeatMapPNG(m *Matrix, opts HeatMapOptions) (*HeatMapResult, error) {
	out, scale, err := renderEnlarged(m, opts)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("failed to encode heat map: %w", err)
	}

	return &HeatMapResult{
		Width:       out.Bounds().Dx(),
		Height:      out.Bounds().Dy(),
		Scale:       scale,
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}

// SaveHeatMapPNG writes the heat map of m to path as a PNG file. The
// encoding is PNG whatever the extension of path.
func SaveHeatMapPNG(m *Matrix, path string, opts HeatMapOptions) error {
	out, _, err := renderEnlarged(m, opts)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to save heat map: %w", err)
	}
	if err := imaging.Encode(f, out, imaging.PNG); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode heat map: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to save heat map: %w", err)
	}
	return nil
}

// renderEnlarged renders m, scales every cell to a crisp square block with
// nearest-neighbour resampling and draws the optional cell grid.
func renderEnlarged(m *Matrix, opts HeatMapOptions) (draw.Image, int, error) {
	scale := opts.Scale
	if scale < 1 {
		scale = 1
	}

	var grid color.RGBA
	if opts.GridColor != "" {
		c, err := imgutil.ParseHexColor(opts.GridColor)
		if err != nil {
			return nil, 0, err
		}
		grid = c
	}

	img, err := RenderHeatMap(m)
	if err != nil {
		return nil, 0, err
	}
	if scale == 1 {
		return img, scale, nil
	}

	b := img.Bounds()
	out := imaging.Resize(img, b.Dx()*scale, b.Dy()*scale, imaging.NearestNeighbor)
	if opts.GridColor != "" && scale >= 3 {
		imgutil.DrawGrid(out, scale, grid)
	}
	return out, scale, nil
}
