// Package config provides configuration loading and management for stainnorm.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	"stainnorm/pkg/macenko"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Normalization parameters
	Normalization struct {
		// Io is the assumed transmitted light intensity
		Io float64 `yaml:"io"`

		// Alpha is the percentile used for the robust stain angle extremes
		Alpha float64 `yaml:"alpha"`

		// Beta is the optical density threshold for background pixels
		Beta float64 `yaml:"beta"`
	} `yaml:"normalization"`

	// Reference stain appearance
	Reference struct {
		// StainMatrix has one row per RGB channel and one column per stain
		// (hematoxylin, eosin)
		StainMatrix [][]float64 `yaml:"stainMatrix"`

		// MaxConcentrations holds the reference robust max concentration per stain
		MaxConcentrations []float64 `yaml:"maxConcentrations"`
	} `yaml:"reference"`

	// Output parameters
	Output struct {
		// SaveStainImages writes the hematoxylin and eosin images next to the output
		SaveStainImages bool `yaml:"saveStainImages"`

		// SaveConcentrationMaps writes 16-bit grayscale concentration maps
		SaveConcentrationMaps bool `yaml:"saveConcentrationMaps"`

		// SavePanel writes a side-by-side comparison image
		SavePanel bool `yaml:"savePanel"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Normalization.Io = macenko.DefaultIo
	cfg.Normalization.Alpha = macenko.DefaultAlpha
	cfg.Normalization.Beta = macenko.DefaultBeta

	ref := macenko.DefaultReference()
	cfg.Reference.StainMatrix = make([][]float64, 3)
	for i := range cfg.Reference.StainMatrix {
		cfg.Reference.StainMatrix[i] = mat.Row(nil, i, ref.StainMatrix)
	}
	cfg.Reference.MaxConcentrations = ref.MaxConcentrations[:]

	cfg.Output.SaveStainImages = true
	cfg.Output.SaveConcentrationMaps = false
	cfg.Output.SavePanel = false
	cfg.Output.Verbose = true

	return cfg
}

// Params converts the configuration into validated normalization parameters
func (c *Config) Params() (*macenko.Params, error) {
	ref, err := c.reference()
	if err != nil {
		return nil, err
	}

	params := &macenko.Params{
		Io:          c.Normalization.Io,
		Alpha:       c.Normalization.Alpha,
		Beta:        c.Normalization.Beta,
		Reference:   ref,
		StainImages: c.Output.SaveStainImages,
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return params, nil
}

func (c *Config) reference() (macenko.Reference, error) {
	var ref macenko.Reference

	rows := c.Reference.StainMatrix
	if len(rows) != 3 {
		return ref, macenko.NewStageError(macenko.StageConfiguration, macenko.ErrConfiguration, "reference stainMatrix must have 3 rows, got %d", len(rows))
	}
	data := make([]float64, 0, 6)
	for i, row := range rows {
		if len(row) != 2 {
			return ref, macenko.NewStageError(macenko.StageConfiguration, macenko.ErrConfiguration, "reference stainMatrix row %d must have 2 values, got %d", i, len(row))
		}
		data = append(data, row...)
	}
	if len(c.Reference.MaxConcentrations) != 2 {
		return ref, macenko.NewStageError(macenko.StageConfiguration, macenko.ErrConfiguration, "reference maxConcentrations must have 2 values, got %d", len(c.Reference.MaxConcentrations))
	}

	ref.StainMatrix = mat.NewDense(3, 2, data)
	copy(ref.MaxConcentrations[:], c.Reference.MaxConcentrations)
	return ref, nil
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
