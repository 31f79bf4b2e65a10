package imaging

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// ErrInvalidInput is returned when a stage receives a nil or empty image.
var ErrInvalidInput = errors.New("invalid input")

// Default sampling parameters.
const (
	DefaultSamplingResolutionMm = 2.5
	DefaultMaxPhysicalWidthMm   = 200.0
)

// Resampling kernels accepted by ParseFilter.
var filters = map[string]imaging.ResampleFilter{
	"box":     imaging.Box,
	"nearest": imaging.NearestNeighbor,
	"linear":  imaging.Linear,
	"lanczos": imaging.Lanczos,
}

// ParseFilter returns the resampling kernel for name. An empty name selects
// the area-preserving box filter.
func ParseFilter(name string) (imaging.ResampleFilter, error) {
	if name == "" {
		return imaging.Box, nil
	}
	f, ok := filters[name]
	if !ok {
		return imaging.ResampleFilter{}, fmt.Errorf("%w: unknown resampling filter %q", ErrInvalidInput, name)
	}
	return f, nil
}

// NeedsDownsample reports whether an image of the given pixel width, sampled at
// samplingResolutionMm per pixel, exceeds maxPhysicalWidthMm.
func NeedsDownsample(width int, samplingResolutionMm, maxPhysicalWidthMm float64) bool {
	return float64(width)*samplingResolutionMm > maxPhysicalWidthMm
}

// Downsample returns a half-resolution copy of img when its physical width
// exceeds maxPhysicalWidthMm, and img itself otherwise. The input is never
// modified.
//
// Output dimensions are round(width*0.5) x round(height*0.5). Resampling uses
// the box filter; see DownsampleWith for other kernels.
func Downsample(img image.Image, samplingResolutionMm, maxPhysicalWidthMm float64) (image.Image, error) {
	return DownsampleWith(img, samplingResolutionMm, maxPhysicalWidthMm, imaging.Box)
}

// DownsampleWith is Downsample with an explicit resampling kernel.
func DownsampleWith(img image.Image, samplingResolutionMm, maxPhysicalWidthMm float64, filter imaging.ResampleFilter) (image.Image, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: image is nil or empty", ErrInvalidInput)
	}

	bounds := img.Bounds()
	if !NeedsDownsample(bounds.Dx(), samplingResolutionMm, maxPhysicalWidthMm) {
		return img, nil
	}

	w := halve(bounds.Dx())
	h := halve(bounds.Dy())
	return imaging.Resize(img, w, h, filter), nil
}

// halve rounds n*0.5 half away from zero, never below one pixel.
func halve(n int) int {
	v := int(math.Round(float64(n) * 0.5))
	if v < 1 {
		return 1
	}
	return v
}
