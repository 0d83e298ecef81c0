package comets

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// ParamClass says which of the two engine parameter files a key belongs
// to: the global simulation file or the spatial package file.
type ParamClass int

const (
	GlobalParam ParamClass = iota
	PackageParam
)

func (c ParamClass) String() string {
	if c == PackageParam {
		return "package"
	}
	return "global"
}

// Default log file names, relative to the staging directory.
const (
	TotalBiomassLogName = "total_biomass.txt"
	BiomassLogName      = "biomass.txt"
	MediaLogName        = "media.txt"
	FluxLogName         = "flux.txt"
)

type paramDef struct {
	class ParamClass
	def   any
}

// paramDefs is the full key table: every known parameter with its file
// class and default value. The default's type fixes the key's type.
var paramDefs = map[string]paramDef{
	// Simulation control.
	"maxCycles":  {GlobalParam, 200},
	"timeStep":   {GlobalParam, 0.1},
	"deathRate":  {GlobalParam, 0.0},
	"cellSize":   {GlobalParam, 1e-13},
	"randomSeed": {GlobalParam, 0},

	// Logging cadence and destinations.
	"writeTotalBiomassLog": {GlobalParam, true},
	"totalBiomassLogRate":  {GlobalParam, 1},
	"TotalBiomassLogName":  {GlobalParam, TotalBiomassLogName},
	"writeBiomassLog":      {GlobalParam, false},
	"BiomassLogName":       {GlobalParam, BiomassLogName},
	"BiomassLogRate":       {GlobalParam, 1},
	"writeMediaLog":        {GlobalParam, false},
	"MediaLogName":         {GlobalParam, MediaLogName},
	"MediaLogRate":         {GlobalParam, 5},
	"writeFluxLog":         {GlobalParam, false},
	"FluxLogName":          {GlobalParam, FluxLogName},
	"FluxLogRate":          {GlobalParam, 5},
	"useLogNameTimeStamp":  {GlobalParam, false},

	// Batch transfer.
	"batchDilution": {GlobalParam, false},
	"dilFactor":     {GlobalParam, 10.0},
	"dilTime":       {GlobalParam, 2.0},

	// Spatial package physics.
	"spaceWidth":       {PackageParam, 0.02},
	"maxSpaceBiomass":  {PackageParam, 0.1},
	"minSpaceBiomass":  {PackageParam, 2.5e-11},
	"allowCellOverlap": {PackageParam, true},
	"toroidalWorld":    {PackageParam, false},
	"numDiffPerStep":   {PackageParam, 10},
	"numExRxnSubsteps": {PackageParam, 5},
	"numRunThreads":    {PackageParam, 1},
	"growthDiffRate":   {PackageParam, 0.0},
	"flowDiffRate":     {PackageParam, 3e-9},
	"defaultDiffConst": {PackageParam, 1e-5},

	// Uptake kinetics defaults.
	"defaultVmax": {PackageParam, 10.0},
	"defaultKm":   {PackageParam, 0.01},
	"defaultHill": {PackageParam, 1.0},

	// Engine behavior switches.
	"exchangestyle":      {PackageParam, "Monod Style"},
	"biomassMotionStyle": {PackageParam, "Diffusion 2D(Crank-Nicolson)"},
	"showCycleTime":      {PackageParam, false},
	"showCycleCount":     {PackageParam, true},
}

// Params is the flat key/value simulation configuration handed to the
// engine. Values are bool, int, float64 or string; every key belongs to
// the known-key table, which guards against silently ignored typos.
type Params struct {
	values map[string]any
}

// DefaultParams returns a Params populated with the engine defaults.
func DefaultParams() *Params {
	p := &Params{values: make(map[string]any, len(paramDefs))}
	for k, d := range paramDefs {
		p.values[k] = d.def
	}
	return p
}

// Set overrides one parameter. Unknown keys and type mismatches are
// errors; ints are accepted for float keys.
func (p *Params) Set(key string, value any) error {
	def, ok := paramDefs[key]
	if !ok {
		return fmt.Errorf("unknown parameter %q", key)
	}
	switch def.def.(type) {
	case bool:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("parameter %q wants a bool, got %T", key, value)
		}
	case int:
		switch v := value.(type) {
		case int:
		case float64:
			if v != float64(int(v)) {
				return fmt.Errorf("parameter %q wants an integer, got %g", key, v)
			}
			value = int(v)
		default:
			return fmt.Errorf("parameter %q wants an integer, got %T", key, value)
		}
	case float64:
		switch v := value.(type) {
		case float64:
		case int:
			value = float64(v)
		default:
			return fmt.Errorf("parameter %q wants a number, got %T", key, value)
		}
	case string:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("parameter %q wants a string, got %T", key, value)
		}
	}
	p.values[key] = value
	return nil
}

// Get returns the raw value of a parameter.
func (p *Params) Get(key string) (any, bool) {
	v, ok := p.values[key]
	return v, ok
}

// Bool returns a bool parameter (false when absent or mistyped).
func (p *Params) Bool(key string) bool {
	v, _ := p.values[key].(bool)
	return v
}

// Int returns an int parameter (0 when absent or mistyped).
func (p *Params) Int(key string) int {
	v, _ := p.values[key].(int)
	return v
}

// Float returns a float parameter (0 when absent or mistyped).
func (p *Params) Float(key string) float64 {
	switch v := p.values[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

// String returns a string parameter ("" when absent or mistyped).
func (p *Params) String(key string) string {
	v, _ := p.values[key].(string)
	return v
}

// Keys returns all parameter keys in sorted order.
func (p *Params) Keys() []string {
	keys := make([]string, 0, len(p.values))
	for k := range p.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Validate checks the parameter set for values the engine would choke on.
func (p *Params) Validate() error {
	err := &ValidationError{}
	if p.Int("maxCycles") <= 0 {
		err.Addf("maxCycles must be positive, got %d", p.Int("maxCycles"))
	}
	if p.Float("timeStep") <= 0 {
		err.Addf("timeStep must be positive, got %g", p.Float("timeStep"))
	}
	if p.Float("spaceWidth") <= 0 {
		err.Addf("spaceWidth must be positive, got %g", p.Float("spaceWidth"))
	}
	for _, key := range []string{"totalBiomassLogRate", "BiomassLogRate", "MediaLogRate", "FluxLogRate"} {
		if p.Int(key) <= 0 {
			err.Addf("%s must be positive, got %d", key, p.Int(key))
		}
	}
	if p.Float("maxSpaceBiomass") <= p.Float("minSpaceBiomass") {
		err.Addf("maxSpaceBiomass %g must exceed minSpaceBiomass %g", p.Float("maxSpaceBiomass"), p.Float("minSpaceBiomass"))
	}
	if p.Int("numRunThreads") <= 0 {
		err.Addf("numRunThreads must be positive, got %d", p.Int("numRunThreads"))
	}
	if err.HasIssues() {
		return err
	}
	return nil
}

// WriteGlobal renders the global parameter file.
func (p *Params) WriteGlobal(w io.Writer) error {
	return p.writeClass(w, GlobalParam)
}

// WritePackage renders the spatial package parameter file.
func (p *Params) WritePackage(w io.Writer) error {
	return p.writeClass(w, PackageParam)
}

// writeClass renders "key = value" lines for one file class, keys sorted,
// booleans lowercase.
func (p *Params) writeClass(w io.Writer, class ParamClass) error {
	bw := bufio.NewWriter(w)
	for _, k := range p.Keys() {
		if paramDefs[k].class != class {
			continue
		}
		fmt.Fprintf(bw, "%s = %s\n", k, renderParamValue(p.values[k]))
	}
	return bw.Flush()
}

// WriteFiles writes both parameter files into dir and returns their
// paths.
func (p *Params) WriteFiles(dir string) (globalPath, packagePath string, err error) {
	globalPath = filepath.Join(dir, "global_params.txt")
	packagePath = filepath.Join(dir, "package_params.txt")
	for _, item := range []struct {
		path  string
		class ParamClass
	}{
		{globalPath, GlobalParam},
		{packagePath, PackageParam},
	} {
		f, err := os.Create(item.path)
		if err != nil {
			return "", "", fmt.Errorf("failed to create %s parameter file: %w", item.class, err)
		}
		werr := p.writeClass(f, item.class)
		cerr := f.Close()
		if werr != nil {
			return "", "", fmt.Errorf("failed to write %s parameters: %w", item.class, werr)
		}
		if cerr != nil {
			return "", "", fmt.Errorf("failed to write %s parameters: %w", item.class, cerr)
		}
	}
	return globalPath, packagePath, nil
}

func renderParamValue(v any) string {
	switch val := v.(type) {
	case bool:
		if val {
			return "true"
		}
		return "false"
	case int:
		return fmt.Sprintf("%d", val)
	case float64:
		return formatFloat(val)
	case string:
		return val
	}
	return fmt.Sprintf("%v", v)
}
