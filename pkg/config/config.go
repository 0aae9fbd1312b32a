// Package config provides configuration loading and management for tsefig.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/MRsources/Article-MAGMA24-RMRI/pkg/phantom"
	"github.com/MRsources/Article-MAGMA24-RMRI/pkg/sequence"
	"github.com/MRsources/Article-MAGMA24-RMRI/pkg/tse"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config represents the application configuration loaded from YAML
type Config struct {
	// System holds the scanner limits
	System struct {
		// MaxGrad is the maximum gradient amplitude in mT/m
		MaxGrad float64 `yaml:"maxGrad"`

		// MaxSlew is the maximum slew rate in T/m/s
		MaxSlew float64 `yaml:"maxSlew"`

		RFRingdownTime      float64 `yaml:"rfRingdownTime"`
		RFDeadTime          float64 `yaml:"rfDeadTime"`
		ADCDeadTime         float64 `yaml:"adcDeadTime"`
		GradRasterTime      float64 `yaml:"gradRasterTime"`
		RFRasterTime        float64 `yaml:"rfRasterTime"`
		ADCRasterTime       float64 `yaml:"adcRasterTime"`
		BlockDurationRaster float64 `yaml:"blockDurationRaster"`
	} `yaml:"system"`

	// Simulation parameters
	Simulation struct {
		// Workers specifies how many goroutines simulate spins concurrently
		Workers int `yaml:"workers"`

		// SpinsPerVoxel is the number of isochromats along the readout per voxel
		SpinsPerVoxel int `yaml:"spinsPerVoxel"`

		// SpinsAcrossSlice is the number of isochromat layers through the slice
		SpinsAcrossSlice int `yaml:"spinsAcrossSlice"`

		// SlabFactor sets the simulated slab as a multiple of the slice thickness
		SlabFactor float64 `yaml:"slabFactor"`

		// Seed drives the jitter of the slice layers
		Seed int64 `yaml:"seed"`
	} `yaml:"simulation"`

	// Phantom describes the numerical brain
	Phantom struct {
		Tissues  map[string]phantom.Tissue `yaml:"tissues"`
		Ellipses []phantom.Ellipse         `yaml:"ellipses"`
	} `yaml:"phantom"`

	// Output parameters
	Output struct {
		// Figure is the path of the composite figure (.png or .jpg)
		Figure string `yaml:"figure"`

		// PanelScale magnifies every panel by nearest-neighbour upscaling
		PanelScale int `yaml:"panelScale"`

		// SaveIntermediaryResults writes each variant's image and k-space
		SaveIntermediaryResults bool `yaml:"saveIntermediaryResults"`

		// IntermediaryDir is where intermediary results are written
		IntermediaryDir string `yaml:"intermediaryDir"`

		// Verbose enables debug logging
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`

	// Variants are the sequence variants in panel order
	Variants []Variant `yaml:"variants"`
}

// Variant is one entry of the variants list. Fields missing from the YAML
// keep the values of tse.DefaultParams, so a variant only needs to name
// what it changes.
type Variant struct {
	tse.Params `yaml:",inline"`
}

// UnmarshalYAML decodes a variant on top of the default parameters.
func (v *Variant) UnmarshalYAML(value *yaml.Node) error {
	v.Params = tse.DefaultParams()
	return value.Decode(&v.Params)
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	lim := sequence.DefaultLimits()
	cfg.System.MaxGrad = 28
	cfg.System.MaxSlew = 150
	cfg.System.RFRingdownTime = lim.RFRingdownTime
	cfg.System.RFDeadTime = lim.RFDeadTime
	cfg.System.ADCDeadTime = lim.ADCDeadTime
	cfg.System.GradRasterTime = lim.GradRasterTime
	cfg.System.RFRasterTime = lim.RFRasterTime
	cfg.System.ADCRasterTime = lim.ADCRasterTime
	cfg.System.BlockDurationRaster = lim.BlockDurationRaster

	cfg.Simulation.Workers = runtime.NumCPU() // Use all available cores by default
	cfg.Simulation.SpinsPerVoxel = 3
	cfg.Simulation.SpinsAcrossSlice = 16
	cfg.Simulation.SlabFactor = 1.5
	cfg.Simulation.Seed = 1

	cfg.Phantom.Tissues = phantom.DefaultTissues()
	cfg.Phantom.Ellipses = phantom.DefaultEllipses()

	cfg.Output.Figure = "tse_artifacts.png"
	cfg.Output.PanelScale = 4
	cfg.Output.SaveIntermediaryResults = false
	cfg.Output.IntermediaryDir = "intermediary_results"
	cfg.Output.Verbose = false

	for _, p := range tse.FigureVariants() {
		cfg.Variants = append(cfg.Variants, Variant{Params: p})
	}

	return cfg
}

// Limits converts the system section to sequence limits.
func (c *Config) Limits() sequence.Limits {
	return sequence.Limits{
		MaxGrad:             sequence.GradFromMilliTesla(c.System.MaxGrad),
		MaxSlew:             sequence.SlewFromTeslaPerMeterPerSecond(c.System.MaxSlew),
		RFRingdownTime:      c.System.RFRingdownTime,
		RFDeadTime:          c.System.RFDeadTime,
		ADCDeadTime:         c.System.ADCDeadTime,
		GradRasterTime:      c.System.GradRasterTime,
		RFRasterTime:        c.System.RFRasterTime,
		ADCRasterTime:       c.System.ADCRasterTime,
		BlockDurationRaster: c.System.BlockDurationRaster,
	}
}

// VariantParams returns the variants as builder parameters.
func (c *Config) VariantParams() []tse.Params {
	out := make([]tse.Params, len(c.Variants))
	for i, v := range c.Variants {
		out[i] = v.Params
	}
	return out
}

// SetResolution overrides the resolution of every variant.
func (c *Config) SetResolution(n int) {
	for i := range c.Variants {
		c.Variants[i].Resolution = n
	}
}

// Validate checks the configuration for values that cannot produce a figure.
func (c *Config) Validate() error {
	s := c.System
	for name, v := range map[string]float64{
		"maxGrad":             s.MaxGrad,
		"maxSlew":             s.MaxSlew,
		"gradRasterTime":      s.GradRasterTime,
		"rfRasterTime":        s.RFRasterTime,
		"adcRasterTime":       s.ADCRasterTime,
		"blockDurationRaster": s.BlockDurationRaster,
	} {
		if v <= 0 {
			return fmt.Errorf("%w: system.%s must be positive, got %g", ErrInvalidConfig, name, v)
		}
	}
	if s.RFRingdownTime < 0 || s.RFDeadTime < 0 || s.ADCDeadTime < 0 {
		return fmt.Errorf("%w: system dead and ringdown times must not be negative", ErrInvalidConfig)
	}

	if c.Simulation.SpinsPerVoxel < 1 || c.Simulation.SpinsAcrossSlice < 1 {
		return fmt.Errorf("%w: simulation needs at least one spin per voxel and layer", ErrInvalidConfig)
	}
	if c.Simulation.SlabFactor < 0 {
		return fmt.Errorf("%w: negative slab factor %g", ErrInvalidConfig, c.Simulation.SlabFactor)
	}

	for _, e := range c.Phantom.Ellipses {
		if _, ok := c.Phantom.Tissues[e.Tissue]; !ok {
			return fmt.Errorf("%w: ellipse references unknown tissue %q", ErrInvalidConfig, e.Tissue)
		}
	}

	if c.Output.Figure == "" {
		return fmt.Errorf("%w: output.figure is empty", ErrInvalidConfig)
	}
	if c.Output.PanelScale < 1 {
		return fmt.Errorf("%w: output.panelScale must be at least 1", ErrInvalidConfig)
	}

	if len(c.Variants) == 0 {
		return fmt.Errorf("%w: no variants configured", ErrInvalidConfig)
	}
	for i, v := range c.Variants {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("variant %d (%s): %w", i, v.Name, err)
		}
	}
	return nil
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
