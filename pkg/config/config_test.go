package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"stainnorm/pkg/macenko"
)

// TestDefaultConfig verifies that the defaults produce valid parameters
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	params, err := cfg.Params()
	if err != nil {
		t.Fatalf("Default config produced invalid params: %v", err)
	}
	if params.Io != 240 || params.Alpha != 1 || params.Beta != 0.15 {
		t.Errorf("Expected Io=240 alpha=1 beta=0.15, got Io=%v alpha=%v beta=%v", params.Io, params.Alpha, params.Beta)
	}
	if params.Reference.StainMatrix.At(1, 1) != 0.8012 {
		t.Errorf("Expected reference eosin green 0.8012, got %v", params.Reference.StainMatrix.At(1, 1))
	}
	if params.Reference.MaxConcentrations != [2]float64{1.9705, 1.0308} {
		t.Errorf("Expected reference max concentrations [1.9705 1.0308], got %v", params.Reference.MaxConcentrations)
	}
}

// TestLoadConfigMissingFile verifies that a missing file yields the defaults
func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Normalization.Io != macenko.DefaultIo {
		t.Errorf("Expected default Io, got %v", cfg.Normalization.Io)
	}
}

// TestLoadConfigPartial verifies that values absent from the file keep their defaults
func TestLoadConfigPartial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "normalization:\n  alpha: 2.5\noutput:\n  savePanel: true\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Normalization.Alpha != 2.5 {
		t.Errorf("Expected alpha 2.5, got %v", cfg.Normalization.Alpha)
	}
	if cfg.Normalization.Beta != macenko.DefaultBeta {
		t.Errorf("Expected default beta, got %v", cfg.Normalization.Beta)
	}
	if !cfg.Output.SavePanel {
		t.Error("Expected savePanel to be true")
	}
	if len(cfg.Reference.StainMatrix) != 3 {
		t.Errorf("Expected default reference matrix, got %v", cfg.Reference.StainMatrix)
	}
}

// TestSaveAndLoadConfig verifies that a saved configuration loads back
func TestSaveAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Normalization.Io = 250
	cfg.Reference.StainMatrix[0][0] = 0.65
	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	params, err := loaded.Params()
	if err != nil {
		t.Fatalf("Params failed: %v", err)
	}
	if params.Io != 250 {
		t.Errorf("Expected Io 250, got %v", params.Io)
	}
	if params.Reference.StainMatrix.At(0, 0) != 0.65 {
		t.Errorf("Expected reference hematoxylin red 0.65, got %v", params.Reference.StainMatrix.At(0, 0))
	}
}

// TestLoadConfigInvalidYAML verifies that malformed files are reported
func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("normalization: [1, 2"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("Expected error for malformed YAML, got nil")
	}
}

// TestParamsValidation verifies that bad values surface as configuration errors
func TestParamsValidation(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{"negative Io", func(c *Config) { c.Normalization.Io = -1 }},
		{"alpha out of range", func(c *Config) { c.Normalization.Alpha = 75 }},
		{"negative beta", func(c *Config) { c.Normalization.Beta = -0.5 }},
		{"short stain matrix", func(c *Config) { c.Reference.StainMatrix = c.Reference.StainMatrix[:2] }},
		{"wide stain matrix row", func(c *Config) { c.Reference.StainMatrix[1] = []float64{0.1, 0.2, 0.3} }},
		{"missing max concentration", func(c *Config) { c.Reference.MaxConcentrations = []float64{1.9705} }},
		{"negative max concentration", func(c *Config) { c.Reference.MaxConcentrations = []float64{1.9705, -1} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			_, err := cfg.Params()
			if !errors.Is(err, macenko.ErrConfiguration) {
				t.Errorf("Expected configuration error, got %v", err)
			}
			var stageErr *macenko.StageError
			if !errors.As(err, &stageErr) || stageErr.Stage != macenko.StageConfiguration {
				t.Errorf("Expected error from stage %q, got %v", macenko.StageConfiguration, err)
			}
		})
	}
}

// TestCreateDefaultConfigFile verifies that the default file is written
func TestCreateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stainnorm.yaml")
	if err := CreateDefaultConfigFile(path); err != nil {
		t.Fatalf("CreateDefaultConfigFile failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Expected config file to exist: %v", err)
	}
}
