package comets

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// ValidationError collects multiple validation issues
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "invalid experiment: unknown validation error"
	}
	if len(e.Issues) == 1 {
		return e.Issues[0]
	}
	return "experiment validation errors: " + strings.Join(e.Issues, "; ")
}

func (e *ValidationError) Add(issue string) {
	e.Issues = append(e.Issues, issue)
}

func (e *ValidationError) Addf(format string, v ...any) {
	e.Issues = append(e.Issues, fmt.Sprintf(format, v...))
}

func (e *ValidationError) HasIssues() bool {
	return len(e.Issues) > 0
}

// ValidateConfig performs comprehensive validation of an experiment Config.
// It checks everything that can be checked without touching the filesystem:
// grid geometry, placement knobs, media rule coordinates, biomass arity and
// parameter overrides. Model files are only validated for non-empty paths;
// their content is checked when the models are loaded.
func ValidateConfig(cfg Config) error {
	err := &ValidationError{}

	if cfg.Name == "" {
		err.Add("experiment name is required")
	}

	if cfg.Grid.Width <= 0 || cfg.Grid.Height <= 0 {
		err.Addf("grid size must be positive, got %dx%d", cfg.Grid.Width, cfg.Grid.Height)
	}

	if len(cfg.Models) == 0 {
		err.Add("at least one model is required")
	}
	// Names a founder group may reference: explicit IDs plus the file
	// base names the loader falls back to. SBML-internal IDs are only
	// known after loading, so this check stays permissive for those.
	modelIDs := make(map[string]bool)
	modelNames := make(map[string]bool)
	for i, mc := range cfg.Models {
		prefix := fmt.Sprintf("model at index %d", i)
		if mc.File == "" {
			err.Add(prefix + ": model file path is required")
		} else {
			base := filepath.Base(mc.File)
			modelNames[strings.TrimSuffix(base, filepath.Ext(base))] = true
		}
		if mc.ID != "" {
			if modelIDs[mc.ID] {
				err.Add("duplicate model ID: " + mc.ID)
			}
			modelIDs[mc.ID] = true
			modelNames[mc.ID] = true
		}
		for j, bo := range mc.Bounds {
			if bo.Reaction == "" {
				err.Addf("%s bound override at index %d: reaction ID is required", prefix, j)
			}
			if bo.Lower > bo.Upper {
				err.Addf("%s bound override %q: lower bound %g exceeds upper bound %g", prefix, bo.Reaction, bo.Lower, bo.Upper)
			}
		}
	}

	if cfg.Rocks != nil {
		if cfg.Rocks.Clusters < 0 {
			err.Addf("rocks: cluster count must be non-negative, got %d", cfg.Rocks.Clusters)
		}
		if cfg.Rocks.Clusters > 0 && cfg.Rocks.MeanClusterSize <= 0 {
			err.Addf("rocks: mean cluster size must be positive, got %g", cfg.Rocks.MeanClusterSize)
		}
	}

	inGrid := func(x, y int) bool {
		return x >= 0 && y >= 0 && x < cfg.Grid.Width && y < cfg.Grid.Height
	}

	for i, fc := range cfg.Founders {
		prefix := fmt.Sprintf("founder group at index %d", i)
		if fc.Biomass <= 0 {
			err.Add(prefix + ": initial biomass must be positive")
		}
		if fc.Model != "" && len(cfg.Models) > 0 && !modelNames[fc.Model] {
			err.Add(prefix + ": model '" + fc.Model + "' does not exist")
		}
		if fc.Count <= 0 && len(fc.Cells) == 0 {
			err.Add(prefix + ": either a colony count or explicit cells are required")
		}
		for _, c := range fc.Cells {
			if !inGrid(c.X, c.Y) {
				err.Addf("%s: cell (%d, %d) is outside the grid", prefix, c.X, c.Y)
			}
		}
	}

	if cfg.Media != nil {
		for name, conc := range cfg.Media.Initial {
			if conc < 0 {
				err.Addf("media: initial concentration for '%s' must be non-negative, got %g", name, conc)
			}
		}
		for i, rule := range cfg.Media.Refresh {
			if !inGrid(rule.X, rule.Y) {
				err.Addf("media refresh rule at index %d: cell (%d, %d) is outside the grid", i, rule.X, rule.Y)
			}
		}
		for i, rule := range cfg.Media.Static {
			if !inGrid(rule.X, rule.Y) {
				err.Addf("media static rule at index %d: cell (%d, %d) is outside the grid", i, rule.X, rule.Y)
			}
		}
	}

	if len(cfg.Params) > 0 {
		scratch := DefaultParams()
		keys := make([]string, 0, len(cfg.Params))
		for key := range cfg.Params {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if serr := scratch.Set(key, cfg.Params[key]); serr != nil {
				err.Addf("params: %v", serr)
			}
		}
	}

	if err.HasIssues() {
		return err
	}
	return nil
}
