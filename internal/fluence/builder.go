package fluence

import (
	"fmt"
	"image"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Strategy names accepted by NewBuilder.
const (
	StrategyPixel       = "pixel"
	StrategyCellAverage = "cell-average"
)

// Builder converts single-channel intensity samples into a normalized
// fluence matrix and its origin.
type Builder interface {
	Build(samples *image.Gray, resolutionMm float64) (*Matrix, error)
}

// BuilderOptions selects and parameterizes a Builder.
type BuilderOptions struct {
	// Strategy is StrategyPixel (default) or StrategyCellAverage.
	Strategy string

	// PhysicalWidthMm and PhysicalHeightMm give the physical extent of the
	// sampled image for the cell-average strategy. Zero means
	// pixels * resolution on that axis.
	PhysicalWidthMm  float64
	PhysicalHeightMm float64
}

// NewBuilder returns the Builder named by opts.Strategy.
func NewBuilder(opts BuilderOptions) (Builder, error) {
	switch opts.Strategy {
	case "", StrategyPixel:
		return PixelStrategy{}, nil
	case StrategyCellAverage:
		if opts.PhysicalWidthMm < 0 || opts.PhysicalHeightMm < 0 {
			return nil, fmt.Errorf("%w: physical size must not be negative", ErrInvalidInput)
		}
		return CellAverageStrategy{
			PhysicalWidthMm:  opts.PhysicalWidthMm,
			PhysicalHeightMm: opts.PhysicalHeightMm,
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown matrix strategy %q", ErrInvalidInput, opts.Strategy)
	}
}

// PixelStrategy maps every sample to one cell:
//
//	matrix[y][x] = sample(x,y) / max(samples)
//
// An all-zero image divides by 1 and yields an all-zero matrix.
type PixelStrategy struct{}

// Build implements Builder.
func (PixelStrategy) Build(samples *image.Gray, resolutionMm float64) (*Matrix, error) {
	if err := checkSamples(samples, resolutionMm); err != nil {
		return nil, err
	}

	b := samples.Bounds()
	w, h := b.Dx(), b.Dy()

	flat := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			flat[y*w+x] = float64(samples.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
		}
	}

	normalize(flat)
	return newMatrixFromFlat(h, w, flat, resolutionMm), nil
}

// CellAverageStrategy partitions the image into resolution-sized physical
// cells and averages the samples that fall in each one. The matrix shape is
// decoupled from the pixel grid: a 400 px image declared 100 mm wide gives 40
// columns at 2.5 mm.
type CellAverageStrategy struct {
	PhysicalWidthMm  float64
	PhysicalHeightMm float64
}

// Build implements Builder.
func (s CellAverageStrategy) Build(samples *image.Gray, resolutionMm float64) (*Matrix, error) {
	if err := checkSamples(samples, resolutionMm); err != nil {
		return nil, err
	}

	b := samples.Bounds()
	w, h := b.Dx(), b.Dy()

	physW := s.PhysicalWidthMm
	if physW == 0 {
		physW = float64(w) * resolutionMm
	}
	physH := s.PhysicalHeightMm
	if physH == 0 {
		physH = float64(h) * resolutionMm
	}

	cols := cellCount(physW, resolutionMm)
	rows := cellCount(physH, resolutionMm)

	flat := make([]float64, rows*cols)
	cell := make([]float64, 0, 64)
	for r := 0; r < rows; r++ {
		y0, y1 := pixelSpan(r, resolutionMm, h, physH)
		for c := 0; c < cols; c++ {
			x0, x1 := pixelSpan(c, resolutionMm, w, physW)
			cell = cell[:0]
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					cell = append(cell, float64(samples.GrayAt(b.Min.X+x, b.Min.Y+y).Y))
				}
			}
			flat[r*cols+c] = stat.Mean(cell, nil)
		}
	}

	normalize(flat)
	return newMatrixFromFlat(rows, cols, flat, resolutionMm), nil
}

// cellCount is the number of cells covering size millimeters, at least one.
func cellCount(sizeMm, resolutionMm float64) int {
	n := int(math.Round(sizeMm / resolutionMm))
	if n < 1 {
		return 1
	}
	return n
}

// pixelSpan returns the half-open pixel range covered by cell i along an axis
// of n pixels spanning sizeMm. The range always holds at least one pixel.
func pixelSpan(i int, resolutionMm float64, n int, sizeMm float64) (lo, hi int) {
	lo = int(math.Floor(float64(i) * resolutionMm * float64(n) / sizeMm))
	hi = int(math.Ceil(float64(i+1) * resolutionMm * float64(n) / sizeMm))
	if lo > n-1 {
		lo = n - 1
	}
	if lo < 0 {
		lo = 0
	}
	if hi > n {
		hi = n
	}
	if hi <= lo {
		hi = lo + 1
	}
	return lo, hi
}

// normalize divides every value by the maximum (1 when the maximum is 0) and
// clamps to [0,1].
func normalize(values []float64) {
	maxSample := floats.Max(values)
	if maxSample == 0 {
		maxSample = 1
	}
	for i, v := range values {
		values[i] = clampUnit(v / maxSample)
	}
}

func checkSamples(samples *image.Gray, resolutionMm float64) error {
	if samples == nil || samples.Bounds().Empty() {
		return fmt.Errorf("%w: intensity samples are nil or empty", ErrInvalidInput)
	}
	if resolutionMm <= 0 {
		return fmt.Errorf("%w: resolution must be positive, got %v", ErrInvalidInput, resolutionMm)
	}
	return nil
}
