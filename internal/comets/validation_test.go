package comets

import (
	"strings"
	"testing"
)

// validConfig returns a config that passes every check ValidateConfig
// performs without touching the filesystem.
func validConfig() Config {
	return Config{
		Name: "soil-patch",
		Grid: GridConfig{Width: 20, Height: 20},
		Models: []ModelConfig{
			{File: "models/e_coli_core.xml"},
		},
		Founders: []FounderConfig{
			{Count: 5, Biomass: 1e-7},
		},
	}
}

func TestValidateConfig_Valid(t *testing.T) {
	if err := ValidateConfig(validConfig()); err != nil {
		t.Fatalf("expected no validation error, got: %v", err)
	}
}

func TestValidateConfig_MissingName(t *testing.T) {
	cfg := validConfig()
	cfg.Name = ""

	err := ValidateConfig(cfg)
	if err == nil {
		t.Fatal("expected validation error for missing name, got nil")
	}
	if !strings.Contains(err.Error(), "experiment name is required") {
		t.Fatalf("expected error message about the name, got: %v", err)
	}
}

func TestValidateConfig_BadGrid(t *testing.T) {
	cfg := validConfig()
	cfg.Grid = GridConfig{Width: 0, Height: 20}

	err := ValidateConfig(cfg)
	if err == nil {
		t.Fatal("expected validation error for bad grid, got nil")
	}
	if !strings.Contains(err.Error(), "grid size must be positive") {
		t.Fatalf("expected error message about grid size, got: %v", err)
	}
}

func TestValidateConfig_NoModels(t *testing.T) {
	cfg := validConfig()
	cfg.Models = nil

	err := ValidateConfig(cfg)
	if err == nil {
		t.Fatal("expected validation error for missing models, got nil")
	}
	if !strings.Contains(err.Error(), "at least one model is required") {
		t.Fatalf("expected error message about models, got: %v", err)
	}
}

func TestValidateConfig_ModelIssues(t *testing.T) {
	tests := []struct {
		name   string
		models []ModelConfig
		errMsg string
	}{
		{
			name:   "missing file",
			models: []ModelConfig{{ID: "m1"}},
			errMsg: "model file path is required",
		},
		{
			name: "duplicate ID",
			models: []ModelConfig{
				{ID: "m1", File: "a.xml"},
				{ID: "m1", File: "b.xml"},
			},
			errMsg: "duplicate model ID: m1",
		},
		{
			name: "bound without reaction",
			models: []ModelConfig{
				{File: "a.xml", Bounds: []BoundConfig{{Lower: -1, Upper: 1}}},
			},
			errMsg: "reaction ID is required",
		},
		{
			name: "inverted bound",
			models: []ModelConfig{
				{File: "a.xml", Bounds: []BoundConfig{{Reaction: "EX_glc__D_e", Lower: 5, Upper: -5}}},
			},
			errMsg: "lower bound 5 exceeds upper bound -5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Models = tt.models
			cfg.Founders = nil

			err := ValidateConfig(cfg)
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Fatalf("expected error message containing %q, got: %v", tt.errMsg, err)
			}
		})
	}
}

func TestValidateConfig_RockIssues(t *testing.T) {
	cfg := validConfig()
	cfg.Rocks = &RocksConfig{Clusters: -1}
	err := ValidateConfig(cfg)
	if err == nil || !strings.Contains(err.Error(), "cluster count must be non-negative") {
		t.Fatalf("expected error about cluster count, got: %v", err)
	}

	cfg.Rocks = &RocksConfig{Clusters: 3, MeanClusterSize: 0}
	err = ValidateConfig(cfg)
	if err == nil || !strings.Contains(err.Error(), "mean cluster size must be positive") {
		t.Fatalf("expected error about cluster size, got: %v", err)
	}

	// Zero clusters with no size is a valid no-op.
	cfg.Rocks = &RocksConfig{}
	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("expected no validation error, got: %v", err)
	}
}

func TestValidateConfig_FounderIssues(t *testing.T) {
	tests := []struct {
		name    string
		founder FounderConfig
		errMsg  string
	}{
		{
			name:    "non-positive biomass",
			founder: FounderConfig{Count: 3},
			errMsg:  "initial biomass must be positive",
		},
		{
			name:    "unknown model",
			founder: FounderConfig{Model: "bacillus", Count: 3, Biomass: 1e-7},
			errMsg:  "model 'bacillus' does not exist",
		},
		{
			name:    "no count or cells",
			founder: FounderConfig{Biomass: 1e-7},
			errMsg:  "either a colony count or explicit cells are required",
		},
		{
			name:    "cell outside grid",
			founder: FounderConfig{Biomass: 1e-7, Cells: []CellConfig{{X: 25, Y: 5}}},
			errMsg:  "cell (25, 5) is outside the grid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Founders = []FounderConfig{tt.founder}

			err := ValidateConfig(cfg)
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Fatalf("expected error message containing %q, got: %v", tt.errMsg, err)
			}
		})
	}
}

func TestValidateConfig_FounderModelByFileName(t *testing.T) {
	// Without an explicit ID the loader names models after the file, so
	// founder groups may reference the base name.
	cfg := validConfig()
	cfg.Founders = []FounderConfig{{Model: "e_coli_core", Count: 3, Biomass: 1e-7}}
	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("expected base-name reference to validate, got: %v", err)
	}

	cfg.Models = []ModelConfig{{ID: "ecoli", File: "models/e_coli_core.xml"}}
	cfg.Founders = []FounderConfig{{Model: "ecoli", Count: 3, Biomass: 1e-7}}
	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("expected explicit-ID reference to validate, got: %v", err)
	}
}

func TestValidateConfig_MediaIssues(t *testing.T) {
	cfg := validConfig()
	cfg.Media = &MediaConfig{Initial: map[string]float64{"glc__D_e": -0.1}}
	err := ValidateConfig(cfg)
	if err == nil || !strings.Contains(err.Error(), "must be non-negative") {
		t.Fatalf("expected error about negative concentration, got: %v", err)
	}

	cfg.Media = &MediaConfig{Refresh: []RefreshRuleConfig{{X: 30, Y: 0}}}
	err = ValidateConfig(cfg)
	if err == nil || !strings.Contains(err.Error(), "media refresh rule at index 0") {
		t.Fatalf("expected error about the refresh rule cell, got: %v", err)
	}

	cfg.Media = &MediaConfig{Static: []StaticRuleConfig{{X: 0, Y: -2}}}
	err = ValidateConfig(cfg)
	if err == nil || !strings.Contains(err.Error(), "media static rule at index 0") {
		t.Fatalf("expected error about the static rule cell, got: %v", err)
	}
}

func TestValidateConfig_ParamIssues(t *testing.T) {
	cfg := validConfig()
	cfg.Params = map[string]any{"maxCycle": 100}
	err := ValidateConfig(cfg)
	if err == nil || !strings.Contains(err.Error(), `unknown parameter "maxCycle"`) {
		t.Fatalf("expected error about the unknown parameter, got: %v", err)
	}

	cfg.Params = map[string]any{"maxCycles": 10.5}
	err = ValidateConfig(cfg)
	if err == nil || !strings.Contains(err.Error(), "wants an integer") {
		t.Fatalf("expected error about the parameter type, got: %v", err)
	}

	// JSON-decoded numbers arrive as float64 and are accepted for int keys.
	cfg.Params = map[string]any{"maxCycles": 100.0, "writeMediaLog": true}
	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("expected no validation error, got: %v", err)
	}
}

func TestValidateConfig_CollectsAllIssues(t *testing.T) {
	cfg := Config{
		Founders: []FounderConfig{{Biomass: -1}},
	}

	err := ValidateConfig(cfg)
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	validationErr, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if len(validationErr.Issues) < 4 {
		t.Fatalf("expected issues for name, grid, models and founders, got: %v", validationErr.Issues)
	}
}

func TestValidationError_Error(t *testing.T) {
	empty := &ValidationError{}
	if !strings.Contains(empty.Error(), "unknown validation error") {
		t.Errorf("expected placeholder message, got %q", empty.Error())
	}

	single := &ValidationError{Issues: []string{"one thing broke"}}
	if single.Error() != "one thing broke" {
		t.Errorf("expected the bare issue, got %q", single.Error())
	}

	multi := &ValidationError{Issues: []string{"first", "second"}}
	if multi.Error() != "experiment validation errors: first; second" {
		t.Errorf("expected joined issues, got %q", multi.Error())
	}
	if !multi.HasIssues() {
		t.Error("expected HasIssues to be true")
	}
}
