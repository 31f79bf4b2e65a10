// Package config provides configuration loading and management for the
// fluence tools. It handles loading configuration from YAML files and
// provides default values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ironsheep/fluence-tools-mcp/internal/fluence"
	"github.com/ironsheep/fluence-tools-mcp/internal/imaging"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Sampling controls the downsampling decision for imported images
	Sampling struct {
		// ResolutionMm is the physical size assumed for one source pixel
		ResolutionMm float64 `yaml:"resolutionMm"`

		// MaxPhysicalWidthMm is the widest image kept at full resolution
		MaxPhysicalWidthMm float64 `yaml:"maxPhysicalWidthMm"`

		// Filter is the resampling kernel: box, nearest, linear or lanczos
		Filter string `yaml:"filter"`
	} `yaml:"sampling"`

	// Matrix controls how intensity samples become a fluence matrix
	Matrix struct {
		// Strategy is "pixel" or "cell-average"
		Strategy string `yaml:"strategy"`

		// ResolutionMm is the cell size of the matrix
		ResolutionMm float64 `yaml:"resolutionMm"`

		// PhysicalWidthMm and PhysicalHeightMm size the image for the
		// cell-average strategy; zero means pixels * resolution
		PhysicalWidthMm  float64 `yaml:"physicalWidthMm"`
		PhysicalHeightMm float64 `yaml:"physicalHeightMm"`
	} `yaml:"matrix"`

	// Export controls the optimal fluence file header
	Export struct {
		SpacingXMm float64 `yaml:"spacingXMm"`
		SpacingYMm float64 `yaml:"spacingYMm"`
	} `yaml:"export"`

	// HeatMap controls the preview image
	HeatMap struct {
		// Scale enlarges each cell to Scale x Scale pixels
		Scale int `yaml:"scale"`

		// GridColor outlines cells ("#RRGGBB" or "#RRGGBBAA"); empty for none
		GridColor string `yaml:"gridColor"`
	} `yaml:"heatMap"`

	// Delivery configures the planning system that receives pushed matrices
	Delivery struct {
		// DropFolder is the directory a planning system imports from; empty
		// disables pushing
		DropFolder string `yaml:"dropFolder"`
	} `yaml:"delivery"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Sampling.ResolutionMm = imaging.DefaultSamplingResolutionMm
	cfg.Sampling.MaxPhysicalWidthMm = imaging.DefaultMaxPhysicalWidthMm
	cfg.Sampling.Filter = "box"

	cfg.Matrix.Strategy = fluence.StrategyPixel
	cfg.Matrix.ResolutionMm = fluence.DefaultResolutionMm

	cfg.Export.SpacingXMm = fluence.DefaultSpacingMm
	cfg.Export.SpacingYMm = fluence.DefaultSpacingMm

	cfg.HeatMap.Scale = 8

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}

// Validate reports every out-of-range setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Sampling.ResolutionMm <= 0 {
		errs = append(errs, fmt.Errorf("sampling.resolutionMm must be positive, got %v", c.Sampling.ResolutionMm))
	}
	if c.Sampling.MaxPhysicalWidthMm <= 0 {
		errs = append(errs, fmt.Errorf("sampling.maxPhysicalWidthMm must be positive, got %v", c.Sampling.MaxPhysicalWidthMm))
	}
	if _, err := imaging.ParseFilter(c.Sampling.Filter); err != nil {
		errs = append(errs, fmt.Errorf("sampling.filter: %w", err))
	}
	if _, err := fluence.NewBuilder(c.builderOptions()); err != nil {
		errs = append(errs, fmt.Errorf("matrix: %w", err))
	}
	if c.Matrix.ResolutionMm <= 0 {
		errs = append(errs, fmt.Errorf("matrix.resolutionMm must be positive, got %v", c.Matrix.ResolutionMm))
	}
	if c.Export.SpacingXMm <= 0 || c.Export.SpacingYMm <= 0 {
		errs = append(errs, fmt.Errorf("export spacing must be positive, got %v x %v", c.Export.SpacingXMm, c.Export.SpacingYMm))
	}
	if c.HeatMap.Scale < 1 {
		errs = append(errs, fmt.Errorf("heatMap.scale must be at least 1, got %d", c.HeatMap.Scale))
	}
	if c.HeatMap.GridColor != "" {
		if _, err := imaging.ParseHexColor(c.HeatMap.GridColor); err != nil {
			errs = append(errs, fmt.Errorf("heatMap.gridColor: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// ConvertOptions returns the pipeline options described by the configuration.
func (c *Config) ConvertOptions() fluence.Options {
	return fluence.Options{
		SamplingResolutionMm: c.Sampling.ResolutionMm,
		MaxPhysicalWidthMm:   c.Sampling.MaxPhysicalWidthMm,
		Filter:               c.Sampling.Filter,
		ResolutionMm:         c.Matrix.ResolutionMm,
		Builder:              c.builderOptions(),
	}
}

// WriteOptions returns the export header settings.
func (c *Config) WriteOptions() fluence.WriteOptions {
	return fluence.WriteOptions{
		SpacingX: c.Export.SpacingXMm,
		SpacingY: c.Export.SpacingYMm,
	}
}

// HeatMapOptions returns the preview settings.
func (c *Config) HeatMapOptions() fluence.HeatMapOptions {
	return fluence.HeatMapOptions{
		Scale:     c.HeatMap.Scale,
		GridColor: c.HeatMap.GridColor,
	}
}

func (c *Config) builderOptions() fluence.BuilderOptions {
	return fluence.BuilderOptions{
		Strategy:         c.Matrix.Strategy,
		PhysicalWidthMm:  c.Matrix.PhysicalWidthMm,
		PhysicalHeightMm: c.Matrix.PhysicalHeightMm,
	}
}
