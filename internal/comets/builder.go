package comets

import (
	"fmt"
	"math/rand"
	"path/filepath"
	"time"
)

// BuildExperiment turns a validated Config into a runnable Experiment:
// models are loaded and adjusted, rocks are grown, founder colonies are
// sampled against the occupied set and the media rules are layered on.
// Construction order is fixed here: rocks first, then founders, then
// media, so the geometric disjointness the layout guarantees can never
// be violated by a config.
func BuildExperiment(cfg Config, logger Logger) (*Experiment, error) {
	if logger == nil {
		logger = NewNoOpLogger()
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	grid, err := NewGrid(cfg.Grid.Width, cfg.Grid.Height)
	if err != nil {
		return nil, err
	}

	models := make([]*Model, 0, len(cfg.Models))
	modelIndex := make(map[string]int, len(cfg.Models))
	for _, mc := range cfg.Models {
		m, err := loadModelFile(mc.File)
		if err != nil {
			return nil, err
		}
		if mc.ID != "" {
			m.ID = mc.ID
		}
		if mc.Objective != "" {
			if err := m.SetObjective(mc.Objective); err != nil {
				return nil, fmt.Errorf("model %s: %w", m.ID, err)
			}
		}
		for _, bo := range mc.Bounds {
			if err := m.SetBounds(bo.Reaction, bo.Lower, bo.Upper); err != nil {
				return nil, fmt.Errorf("model %s: %w", m.ID, err)
			}
		}
		if _, dup := modelIndex[m.ID]; dup {
			return nil, fmt.Errorf("duplicate model ID %q after loading", m.ID)
		}
		modelIndex[m.ID] = len(models)
		models = append(models, m)
		logger.Infof("loaded model %s: %d reactions, %d metabolites, %d exchanges",
			m.ID, len(m.Reactions), len(m.Metabolites), len(m.Exchanges))
	}

	layout := NewLayout(grid, models...)

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	if cfg.Rocks != nil && cfg.Rocks.Clusters > 0 {
		rocks, err := RockClusters(grid, cfg.Rocks.Clusters, cfg.Rocks.MeanClusterSize, rng)
		if err != nil {
			return nil, fmt.Errorf("rock placement: %w", err)
		}
		if err := layout.AddBarrier(rocks...); err != nil {
			return nil, fmt.Errorf("rock placement: %w", err)
		}
		logger.Infof("placed %d rock cells in %d clusters", len(rocks), cfg.Rocks.Clusters)
	}

	for i, fc := range cfg.Founders {
		mi, err := resolveFounderModel(fc.Model, models, modelIndex)
		if err != nil {
			return nil, fmt.Errorf("founder group %d: %w", i, err)
		}
		var cells []Cell
		if len(fc.Cells) > 0 {
			for _, cc := range fc.Cells {
				cells = append(cells, Cell{X: cc.X, Y: cc.Y})
			}
		} else {
			cells, err = ScatterFounders(grid, fc.Count, layout.Occupied(), rng)
			if err != nil {
				return nil, fmt.Errorf("founder group %d (%s): %w", i, models[mi].ID, err)
			}
		}
		for _, c := range cells {
			biomass := make([]float64, len(models))
			biomass[mi] = fc.Biomass
			if err := layout.AddFounder(Founder{X: c.X, Y: c.Y, Biomass: biomass}); err != nil {
				return nil, fmt.Errorf("founder group %d (%s): %w", i, models[mi].ID, err)
			}
		}
		logger.Infof("placed %d colonies of %s at %g gDW each", len(cells), models[mi].ID, fc.Biomass)
	}

	if cfg.Media != nil {
		if err := applyMediaConfig(layout, cfg.Media); err != nil {
			return nil, err
		}
	}

	params := DefaultParams()
	for key, value := range cfg.Params {
		if err := params.Set(key, value); err != nil {
			return nil, err
		}
	}

	return &Experiment{
		Name:   cfg.Name,
		Seed:   seed,
		Models: models,
		Layout: layout,
		Params: params,
		Engine: cfg.Engine,
	}, nil
}

// loadModelFile loads either an SBML file or an already converted model
// file, keyed on extension.
func loadModelFile(path string) (*Model, error) {
	switch filepath.Ext(path) {
	case ".cmd", ".txt":
		return ReadModelFile(path)
	default:
		return LoadSBML(path)
	}
}

func resolveFounderModel(id string, models []*Model, index map[string]int) (int, error) {
	if id == "" {
		if len(models) != 1 {
			return 0, fmt.Errorf("model must be named when the experiment has %d models", len(models))
		}
		return 0, nil
	}
	mi, ok := index[id]
	if !ok {
		return 0, fmt.Errorf("model %q does not exist", id)
	}
	return mi, nil
}

func applyMediaConfig(layout *Layout, mc *MediaConfig) error {
	for _, name := range mc.Extra {
		layout.AddMetabolite(name)
	}
	for name, conc := range mc.Initial {
		if err := layout.SetInitialConcentration(name, conc); err != nil {
			return fmt.Errorf("media: %w", err)
		}
	}
	if mc.DiffusionDefault > 0 {
		if err := layout.SetDiffusionDefault(mc.DiffusionDefault); err != nil {
			return fmt.Errorf("media: %w", err)
		}
	}
	for name, d := range mc.Diffusion {
		if err := layout.SetDiffusion(name, d); err != nil {
			return fmt.Errorf("media: %w", err)
		}
	}
	for name, amt := range mc.GlobalRefresh {
		if err := layout.SetGlobalRefresh(name, amt); err != nil {
			return fmt.Errorf("media: %w", err)
		}
	}
	for _, rule := range mc.Refresh {
		if err := layout.AddRefreshRule(rule.X, rule.Y, rule.Amounts); err != nil {
			return fmt.Errorf("media: %w", err)
		}
	}
	for name, conc := range mc.GlobalStatic {
		if err := layout.SetGlobalStatic(name, conc); err != nil {
			return fmt.Errorf("media: %w", err)
		}
	}
	for _, rule := range mc.Static {
		if err := layout.AddStaticRule(rule.X, rule.Y, rule.Conc); err != nil {
			return fmt.Errorf("media: %w", err)
		}
	}
	return nil
}
