package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/ironsheep/fluence-tools-mcp/internal/config"
	"github.com/ironsheep/fluence-tools-mcp/internal/fluence"
	"github.com/ironsheep/fluence-tools-mcp/internal/imaging"
)

func main() {
	// Parse command line arguments
	inPath := flag.String("in", "", "Input image (png, jpeg, gif, bmp, tiff or webp)")
	outPath := flag.String("out", "", "Output file; the .optimal_fluence extension is added when missing")
	heatMapPath := flag.String("heatmap", "", "Optional PNG heat map preview")
	configPath := flag.String("config", "fluence.yaml", "YAML configuration file")
	region := flag.String("region", "", "Convert only part of the image: top-left, top-right, bottom-left, bottom-right, top-half, bottom-half, left-half, right-half or center")
	flag.Parse()

	// Validate inputs
	if *inPath == "" || *outPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	img, err := imaging.NewImageCache().Load(*inPath)
	if err != nil {
		log.Fatalf("Failed to load image: %v", err)
	}

	opts := cfg.ConvertOptions()
	if *region != "" {
		b := img.Bounds()
		r, err := imaging.NamedRegion(b.Dx(), b.Dy(), *region)
		if err != nil {
			log.Fatalf("Invalid region: %v", err)
		}
		opts.Region = &r
	}

	result, err := fluence.Convert(img, opts)
	if err != nil {
		log.Fatalf("Conversion failed: %v", err)
	}

	out := fluence.EnsureExtension(*outPath)
	if err := fluence.WriteFile(out, result.Matrix, cfg.WriteOptions()); err != nil {
		log.Fatalf("Export failed: %v", err)
	}

	fmt.Printf("Source image:  %dx%d\n", result.SourceWidth, result.SourceHeight)
	if result.Downsampled {
		fmt.Printf("Downsampled:   %dx%d\n", result.SampledWidth, result.SampledHeight)
	}
	fmt.Printf("Matrix:        %d cols x %d rows (%s)\n", result.Cols, result.Rows, result.Strategy)
	fmt.Printf("Origin:        %.4f, %.4f mm\n", result.Origin.X, result.Origin.Y)
	fmt.Printf("Fluence saved: %s\n", out)

	if *heatMapPath != "" {
		if err := fluence.SaveHeatMapPNG(result.Matrix, *heatMapPath, cfg.HeatMapOptions()); err != nil {
			log.Fatalf("Heat map failed: %v", err)
		}
		fmt.Printf("Heat map:      %s\n", *heatMapPath)
	}
}
