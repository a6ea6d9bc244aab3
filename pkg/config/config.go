// Package config provides configuration loading and management for mrivolumestopng.
// It handles loading configuration from YAML files and provides default values
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"mrivolumestopng/pkg/overlay"
	"mrivolumestopng/pkg/volume"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// NumCores specifies how many frames are converted concurrently
		NumCores int `yaml:"numCores"`

		// FrameAxis is the volume axis frames are taken along (x, y or z)
		FrameAxis string `yaml:"frameAxis"`
	} `yaml:"processing"`

	// Input dataset locations
	Input struct {
		// LabeledDir holds one directory per patient with images and targets
		LabeledDir string `yaml:"labeledDir"`

		// UnlabeledDir holds one directory per patient with images only
		UnlabeledDir string `yaml:"unlabeledDir"`

		// Extension filters acquisition files
		Extension string `yaml:"extension"`
	} `yaml:"input"`

	// Overlay blend parameters
	Overlay struct {
		// Alpha is the overlay opacity in [0, 1]
		Alpha float64 `yaml:"alpha"`

		// Color is the RGB overlay color
		Color []int `yaml:"color"`
	} `yaml:"overlay"`

	// Output parameters
	Output struct {
		// Dir is the root of the generated PNG tree
		Dir string `yaml:"dir"`

		// Width and Height resize every PNG; 0 keeps the native size
		Width  int `yaml:"width"`
		Height int `yaml:"height"`

		// Verbose enables debug logging
		Verbose bool `yaml:"verbose"`

		// MetricsFile receives batch counters in Prometheus textfile format
		MetricsFile string `yaml:"metricsFile"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Processing.NumCores = runtime.NumCPU()
	cfg.Processing.FrameAxis = string(volume.DefaultAxis)

	cfg.Input.LabeledDir = "data/trackrad2025_labeled_training_data"
	cfg.Input.UnlabeledDir = "data/trackrad2025_unlabeled_training_data"
	cfg.Input.Extension = ".mha"

	cfg.Overlay.Alpha = overlay.DefaultAlpha
	cfg.Overlay.Color = []int{int(overlay.DefaultColor.R), int(overlay.DefaultColor.G), int(overlay.DefaultColor.B)}

	cfg.Output.Dir = "images"

	return cfg
}

// Validate checks value ranges
func (c *Config) Validate() error {
	if c.Processing.NumCores < 1 {
		return fmt.Errorf("processing.numCores must be at least 1, got %d", c.Processing.NumCores)
	}
	if _, err := volume.ParseAxis(c.Processing.FrameAxis); err != nil {
		return fmt.Errorf("processing.frameAxis: %w", err)
	}
	if _, err := c.OverlayOptions(); err != nil {
		return err
	}
	if c.Output.Width < 0 || c.Output.Height < 0 {
		return fmt.Errorf("output.width and output.height must be non-negative")
	}
	return nil
}

// OverlayOptions converts the overlay section into blend options
func (c *Config) OverlayOptions() (overlay.Options, error) {
	if len(c.Overlay.Color) != 3 {
		return overlay.Options{}, fmt.Errorf("overlay.color must have 3 channels, got %d", len(c.Overlay.Color))
	}
	var rgb [3]uint8
	for i, ch := range c.Overlay.Color {
		if ch < 0 || ch > 255 {
			return overlay.Options{}, fmt.Errorf("overlay.color channel %d out of range: %d", i, ch)
		}
		rgb[i] = uint8(ch)
	}
	opts := overlay.Options{
		Alpha: c.Overlay.Alpha,
		Color: overlay.Color{R: rgb[0], G: rgb[1], B: rgb[2]},
	}
	if err := opts.Validate(); err != nil {
		return overlay.Options{}, fmt.Errorf("overlay.alpha: %w", err)
	}
	return opts, nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
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
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
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
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
