package imaging

import (
	"errors"
	"image"
	"image/color"
	"testing"
)

func TestCrop(t *testing.T) {
	img := uniformRGBA(100, 80, color.RGBA{200, 100, 50, 255})
	img.Set(10, 20, color.RGBA{0, 0, 0, 255})

	cropped, err := Crop(img, Region{10, 20, 60, 50})
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}

	b := cropped.Bounds()
	if b.Min != (image.Point{}) {
		t.Errorf("cropped image should start at (0,0), got %v", b.Min)
	}
	if b.Dx() != 50 || b.Dy() != 30 {
		t.Errorf("size: got %dx%d, want 50x30", b.Dx(), b.Dy())
	}
	if r, _, _, _ := cropped.At(0, 0).RGBA(); r != 0 {
		t.Error("region top-left should be the marked source pixel")
	}
}

func TestCrop_OffsetBounds(t *testing.T) {
	img := uniformRGBA(40, 40, color.RGBA{0, 0, 0, 255})
	img.Set(15, 15, color.RGBA{255, 255, 255, 255})
	sub := img.SubImage(image.Rect(10, 10, 30, 30))

	cropped, err := Crop(sub, Region{5, 5, 10, 10})
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}
	if r, _, _, _ := cropped.At(0, 0).RGBA(); r>>8 != 255 {
		t.Error("region is relative to the image's top-left corner")
	}
}

func TestCrop_Invalid(t *testing.T) {
	img := uniformRGBA(100, 80, color.RGBA{0, 0, 0, 255})

	tests := []struct {
		name   string
		img    image.Image
		region Region
	}{
		{"nil image", nil, Region{0, 0, 1, 1}},
		{"negative origin", img, Region{-1, 0, 10, 10}},
		{"past right edge", img, Region{0, 0, 101, 10}},
		{"past bottom edge", img, Region{0, 0, 10, 81}},
		{"empty width", img, Region{10, 10, 10, 20}},
		{"inverted", img, Region{20, 20, 10, 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Crop(tt.img, tt.region); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("got %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestNamedRegion(t *testing.T) {
	tests := []struct {
		name string
		want Region
	}{
		{"top-left", Region{0, 0, 50, 40}},
		{"top-right", Region{50, 0, 100, 40}},
		{"bottom-left", Region{0, 40, 50, 80}},
		{"bottom-right", Region{50, 40, 100, 80}},
		{"top-half", Region{0, 0, 100, 40}},
		{"bottom-half", Region{0, 40, 100, 80}},
		{"left-half", Region{0, 0, 50, 80}},
		{"right-half", Region{50, 0, 100, 80}},
		{"center", Region{25, 20, 75, 60}},
	}

	if len(tests) != len(RegionNames) {
		t.Fatalf("RegionNames has %d names, test covers %d", len(RegionNames), len(tests))
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NamedRegion(100, 80, tt.name)
			if err != nil {
				t.Fatalf("NamedRegion failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}

	if _, err := NamedRegion(100, 80, "middle"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("unknown name: got %v, want ErrInvalidInput", err)
	}
}
