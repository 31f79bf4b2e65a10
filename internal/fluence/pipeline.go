package fluence

import (
	"fmt"
	"image"

	"github.com/ironsheep/fluence-tools-mcp/internal/imaging"
)

// Options configures a full image to matrix conversion.
type Options struct {
	// SamplingResolutionMm is the physical size assumed for one source pixel
	// when deciding whether to downsample.
	SamplingResolutionMm float64

	// MaxPhysicalWidthMm is the widest image accepted at full resolution.
	MaxPhysicalWidthMm float64

	// Filter names the resampling kernel: box, nearest, linear or lanczos.
	Filter string

	// ResolutionMm is the cell size of the resulting matrix.
	ResolutionMm float64

	// Builder selects the matrix strategy.
	Builder BuilderOptions

	// Region restricts the conversion to part of the image. Nil converts the
	// whole image.
	Region *imaging.Region
}

// DefaultOptions returns the standard conversion settings: 2.5 mm pixels,
// a 200 mm width limit, box resampling and direct pixel mapping.
func DefaultOptions() Options {
	return Options{
		SamplingResolutionMm: imaging.DefaultSamplingResolutionMm,
		MaxPhysicalWidthMm:   imaging.DefaultMaxPhysicalWidthMm,
		Filter:               "box",
		ResolutionMm:         DefaultResolutionMm,
		Builder:              BuilderOptions{Strategy: StrategyPixel},
	}
}

// Result is the outcome of one conversion.
type Result struct {
	Matrix *Matrix `json:"-"`

	SourceWidth   int  `json:"source_width"`
	SourceHeight  int  `json:"source_height"`
	SampledWidth  int  `json:"sampled_width"`
	SampledHeight int  `json:"sampled_height"`
	Downsampled   bool `json:"downsampled"`

	Region *imaging.Region `json:"region,omitempty"`

	Rows     int     `json:"rows"`
	Cols     int     `json:"cols"`
	Origin   Origin  `json:"origin"`
	Strategy string  `json:"strategy"`
	MaxValue float64 `json:"max_value"`
}

// Convert crops the image to the optional region and runs it through the
// Sampler, the GrayscaleReducer and the configured Builder. The source image
// is not modified and is not referenced by the result.
func Convert(img image.Image, opts Options) (*Result, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: image is nil or empty", ErrInvalidInput)
	}

	filter, err := imaging.ParseFilter(opts.Filter)
	if err != nil {
		return nil, err
	}
	builder, err := NewBuilder(opts.Builder)
	if err != nil {
		return nil, err
	}

	src := img
	if opts.Region != nil {
		if src, err = imaging.Crop(img, *opts.Region); err != nil {
			return nil, err
		}
	}

	sampled, err := imaging.DownsampleWith(src, opts.SamplingResolutionMm, opts.MaxPhysicalWidthMm, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to sample image: %w", err)
	}
	gray, err := imaging.Grayscale(sampled)
	if err != nil {
		return nil, fmt.Errorf("failed to reduce image: %w", err)
	}
	m, err := builder.Build(gray, opts.ResolutionMm)
	if err != nil {
		return nil, fmt.Errorf("failed to build matrix: %w", err)
	}

	strategy := opts.Builder.Strategy
	if strategy == "" {
		strategy = StrategyPixel
	}
	rows, cols := m.Dims()
	return &Result{
		Matrix:        m,
		SourceWidth:   img.Bounds().Dx(),
		SourceHeight:  img.Bounds().Dy(),
		SampledWidth:  sampled.Bounds().Dx(),
		SampledHeight: sampled.Bounds().Dy(),
		Downsampled:   imaging.NeedsDownsample(src.Bounds().Dx(), opts.SamplingResolutionMm, opts.MaxPhysicalWidthMm),
		Region:        opts.Region,
		Rows:          rows,
		Cols:          cols,
		Origin:        m.Origin(),
		Strategy:      strategy,
		MaxValue:      m.Max(),
	}, nil
}
