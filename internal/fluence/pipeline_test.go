package fluence

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/ironsheep/fluence-tools-mcp/internal/imaging"
)

func TestConvert_SmallGrayImage(t *testing.T) {
	src := grayFrom([][]uint8{
		{0, 0, 0, 0, 0, 0, 0, 0},
		{0, 255, 255, 0, 0, 0, 0, 0},
		{0, 255, 255, 0, 0, 0, 0, 0},
		{0, 0, 0, 0, 0, 0, 0, 0},
		{0, 0, 0, 0, 0, 0, 0, 0},
		{0, 0, 0, 0, 0, 0, 0, 0},
		{0, 0, 0, 0, 0, 0, 0, 0},
		{0, 0, 0, 0, 0, 0, 0, 0},
	})

	res, err := Convert(src, DefaultOptions())
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}

	if res.Downsampled {
		t.Error("8 px image should not be downsampled")
	}
	if res.Rows != 8 || res.Cols != 8 {
		t.Errorf("dims: got %dx%d, want 8x8", res.Rows, res.Cols)
	}
	if res.Origin != (Origin{X: -8.75, Y: 8.75}) {
		t.Errorf("Origin: got %+v, want {-8.75 8.75}", res.Origin)
	}
	if res.Strategy != StrategyPixel {
		t.Errorf("Strategy: got %s, want %s", res.Strategy, StrategyPixel)
	}
	if res.MaxValue != 1 {
		t.Errorf("MaxValue: got %v, want 1", res.MaxValue)
	}
	if res.Matrix.At(1, 1) != 1 || res.Matrix.At(0, 0) != 0 {
		t.Errorf("unexpected cells: (1,1)=%v (0,0)=%v", res.Matrix.At(1, 1), res.Matrix.At(0, 0))
	}
}

func TestConvert_DownsamplesWideImage(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 81, 81))
	for y := 0; y < 81; y++ {
		for x := 0; x < 81; x++ {
			src.Set(x, y, color.RGBA{255, 255, 255, 255})
		}
	}

	res, err := Convert(src, DefaultOptions())
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if !res.Downsampled {
		t.Error("81 px image should be downsampled")
	}
	if res.SourceWidth != 81 || res.SampledWidth != 41 || res.SampledHeight != 41 {
		t.Errorf("sizes: source %d, sampled %dx%d", res.SourceWidth, res.SampledWidth, res.SampledHeight)
	}
	if res.Rows != 41 || res.Cols != 41 {
		t.Errorf("matrix dims: got %dx%d, want 41x41", res.Rows, res.Cols)
	}
	if res.Origin != (Origin{X: -50, Y: 50}) {
		t.Errorf("Origin: got %+v, want {-50 50}", res.Origin)
	}
	if res.MaxValue != 1 {
		t.Errorf("uniform white should normalize to 1, got %v", res.MaxValue)
	}
}

func TestConvert_AllZeroColorImage(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 5, 3))
	for i := 3; i < len(src.Pix); i += 4 {
		src.Pix[i] = 255
	}

	res, err := Convert(src, DefaultOptions())
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if res.MaxValue != 0 {
		t.Errorf("black image: MaxValue got %v, want 0", res.MaxValue)
	}
}

func TestConvert_CellAverage(t *testing.T) {
	opts := DefaultOptions()
	opts.ResolutionMm = 5
	opts.Builder = BuilderOptions{Strategy: StrategyCellAverage, PhysicalWidthMm: 20, PhysicalHeightMm: 10}

	res, err := Convert(uniformGray(16, 8, 90), opts)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if res.Cols != 4 || res.Rows != 2 {
		t.Errorf("dims: got %dx%d, want 2x4", res.Rows, res.Cols)
	}
	if res.Strategy != StrategyCellAverage {
		t.Errorf("Strategy: got %s", res.Strategy)
	}
}

func TestConvert_Errors(t *testing.T) {
	if _, err := Convert(nil, DefaultOptions()); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("nil image: got %v, want ErrInvalidInput", err)
	}

	opts := DefaultOptions()
	opts.Filter = "sinc"
	if _, err := Convert(uniformGray(2, 2, 1), opts); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("bad filter: got %v, want ErrInvalidInput", err)
	}

	opts = DefaultOptions()
	opts.Builder.Strategy = "mystery"
	if _, err := Convert(uniformGray(2, 2, 1), opts); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("bad strategy: got %v, want ErrInvalidInput", err)
	}

	opts = DefaultOptions()
	opts.ResolutionMm = 0
	if _, err := Convert(uniformGray(2, 2, 1), opts); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("zero resolution: got %v, want ErrInvalidInput", err)
	}
}

func TestConvert_Region(t *testing.T) {
	src := grayFrom([][]uint8{
		{0, 0, 0, 0},
		{0, 255, 0, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
	})

	opts := DefaultOptions()
	opts.Region = &imaging.Region{X1: 0, Y1: 0, X2: 3, Y2: 2}

	res, err := Convert(src, opts)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if res.SourceWidth != 4 || res.SourceHeight != 4 {
		t.Errorf("source: got %dx%d, want 4x4", res.SourceWidth, res.SourceHeight)
	}
	if res.Rows != 2 || res.Cols != 3 {
		t.Fatalf("dims: got %dx%d, want 2 rows x 3 cols", res.Rows, res.Cols)
	}
	if res.Region == nil || *res.Region != *opts.Region {
		t.Errorf("Region: got %v, want %v", res.Region, opts.Region)
	}
	if res.Matrix.At(1, 1) != 1 || res.Matrix.At(0, 0) != 0 {
		t.Errorf("values: got %v", res.Matrix.Values())
	}
	if res.Origin != (Origin{X: -2.5, Y: 1.25}) {
		t.Errorf("Origin: got %+v, want {-2.5 1.25}", res.Origin)
	}

	opts.Region = &imaging.Region{X1: 0, Y1: 0, X2: 5, Y2: 2}
	if _, err := Convert(src, opts); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("region outside image: got %v, want ErrInvalidInput", err)
	}
}
