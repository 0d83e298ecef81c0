package comets

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

type GridConfig struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type BoundConfig struct {
	Reaction string  `json:"reaction"`
	Lower    float64 `json:"lower"`
	Upper    float64 `json:"upper"`
}

type ModelConfig struct {
	ID        string        `json:"id,omitempty"`
	File      string        `json:"file"`
	Objective string        `json:"objective,omitempty"`
	Bounds    []BoundConfig `json:"bounds,omitempty"`
}

type RocksConfig struct {
	Clusters        int     `json:"clusters"`
	MeanClusterSize float64 `json:"mean_cluster_size"`
}

type CellConfig struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// FounderConfig describes the colonies of one model: either an explicit
// cell list or a count to scatter at random.
type FounderConfig struct {
	Model   string       `json:"model,omitempty"`
	Count   int          `json:"count,omitempty"`
	Biomass float64      `json:"biomass"`
	Cells   []CellConfig `json:"cells,omitempty"`
}

type RefreshRuleConfig struct {
	X       int                `json:"x"`
	Y       int                `json:"y"`
	Amounts map[string]float64 `json:"amounts"`
}

type StaticRuleConfig struct {
	X    int                `json:"x"`
	Y    int                `json:"y"`
	Conc map[string]float64 `json:"concentrations"`
}

type MediaConfig struct {
	Initial          map[string]float64  `json:"initial,omitempty"`
	DiffusionDefault float64             `json:"diffusion_default,omitempty"`
	Diffusion        map[string]float64  `json:"diffusion,omitempty"`
	GlobalRefresh    map[string]float64  `json:"global_refresh,omitempty"`
	Refresh          []RefreshRuleConfig `json:"refresh,omitempty"`
	GlobalStatic     map[string]float64  `json:"global_static,omitempty"`
	Static           []StaticRuleConfig  `json:"static,omitempty"`
	Extra            []string            `json:"extra_metabolites,omitempty"`
}

// Config is the JSON description of a full experiment: models with bound
// overrides, the grid, procedural rock and founder placement, the media
// environment, parameter overrides and the engine location. A zero Seed
// means "seed from the clock"; any other value makes placement
// reproducible.
type Config struct {
	Name     string          `json:"name"`
	Seed     int64           `json:"seed,omitempty"`
	Grid     GridConfig      `json:"grid"`
	Models   []ModelConfig   `json:"models"`
	Rocks    *RocksConfig    `json:"rocks,omitempty"`
	Founders []FounderConfig `json:"founders"`
	Media    *MediaConfig    `json:"media,omitempty"`
	Params   map[string]any  `json:"params,omitempty"`
	Engine   EngineConfig    `json:"engine,omitempty"`
}

// ParseConfig decodes an experiment config from JSON.
func ParseConfig(r io.Reader) (Config, error) {
	var cfg Config
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode experiment config: %w", err)
	}
	return cfg, nil
}

// LoadConfig reads an experiment config from a JSON file.
func LoadConfig(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()
	cfg, err := ParseConfig(f)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}
