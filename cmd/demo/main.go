// A worked soil-root-air scenario built entirely in code, no config
// file: two cross-feeding models on a vertical soil slice with an air
// boundary on top, a root running down the middle, rock clusters, a
// ring of fermenter colonies around the root tip and scavengers
// scattered through the bulk soil. The experiment is staged to disk
// and, when a simulation engine is installed, executed.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"time"

	"cometskit/internal/comets"
)

// Scenario geometry: the top rows are air, the root occupies one
// column from the surface down, everything else is soil.
const (
	gridWidth  = 30
	gridHeight = 24
	airRows    = 2
	rootX      = 15
)

type stderrLogger struct {
	verbose bool
}

func (l *stderrLogger) Debugf(format string, v ...any) {
	if l.verbose {
		fmt.Fprintf(os.Stderr, format+"\n", v...)
	}
}

func (l *stderrLogger) Infof(format string, v ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", v...)
}

func (l *stderrLogger) Warnf(format string, v ...any) {
	fmt.Fprintf(os.Stderr, "warning: "+format+"\n", v...)
}

func (l *stderrLogger) Errorf(format string, v ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", v...)
}

func main() {
	var (
		outDir     = flag.String("out", "", "staging directory (default: a fresh temp directory)")
		javaBin    = flag.String("java", "", "java binary to launch the engine with")
		cometsHome = flag.String("comets-home", "", "engine installation directory (bin/ and lib/ jars)")
		seed       = flag.Int64("seed", 42, "random seed for rock and founder placement")
		verbose    = flag.Bool("v", false, "verbose output")
	)
	flag.Parse()

	logger := &stderrLogger{verbose: *verbose}

	exp, err := buildScenario(*seed)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error building scenario: %v\n", err)
		os.Exit(1)
	}
	exp.Engine = comets.EngineConfig{JavaBin: *javaBin, CometsHome: *cometsHome}

	dir := *outDir
	if dir == "" {
		dir, err = os.MkdirTemp("", "cometskit-demo-")
		if err != nil {
			fmt.Fprintf(os.Stderr, "error creating staging directory: %v\n", err)
			os.Exit(1)
		}
	}

	runner := comets.NewRunner(exp.Engine, logger)
	staged, err := runner.Stage(exp, dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error staging experiment: %v\n", err)
		os.Exit(1)
	}

	if !engineAvailable(exp.Engine) {
		fmt.Println("No simulation engine found; the experiment was staged but not run.")
		printStaged(staged)
		fmt.Println("Point --java at a JVM and --comets-home at the engine installation to execute it.")
		return
	}

	result, err := runner.Run(context.Background(), staged)
	if err != nil {
		if errors.Is(err, comets.ErrEngineNotFound) {
			fmt.Println("No simulation engine found; the experiment was staged but not run.")
			printStaged(staged)
			return
		}
		fmt.Fprintf(os.Stderr, "error running engine: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Simulation finished: %d cycles in %s\n", result.Cycles, result.Duration.Round(10*time.Millisecond))
	printFinalBiomass(exp, result)
	fmt.Printf("Logs are in %s\n", staged.Dir)
}

// buildScenario assembles the experiment: models, layout, placement,
// media rules and parameters.
func buildScenario(seed int64) (*comets.Experiment, error) {
	fermenter := fermenterModel()
	scavenger := scavengerModel()

	// Soil glucose is scarce away from the root; tighten the
	// fermenter's uptake below the model default.
	if err := fermenter.SetBounds("EX_glc__D_e", -8, 1000); err != nil {
		return nil, err
	}

	grid, err := comets.NewGrid(gridWidth, gridHeight)
	if err != nil {
		return nil, err
	}
	layout := comets.NewLayout(grid, fermenter, scavenger)
	rng := rand.New(rand.NewSource(seed))

	// Rock clusters, kept out of the air rows and the root column.
	rocks, err := comets.RockClusters(grid, 6, 6, rng)
	if err != nil {
		return nil, err
	}
	for _, c := range rocks {
		if c.Y < airRows || c.X == rootX {
			continue
		}
		if err := layout.AddBarrier(c); err != nil {
			return nil, err
		}
	}

	// Fermenters ring the root tip, where exudates are richest.
	tip := comets.Cell{X: rootX, Y: gridHeight - 6}
	occupied := layout.Occupied()
	for _, c := range comets.Ring(grid, tip, 4, 10) {
		if c.Y < airRows || occupied[c] {
			continue
		}
		if err := layout.AddFounder(comets.Founder{X: c.X, Y: c.Y, Biomass: []float64{1e-7, 0}}); err != nil {
			return nil, err
		}
		occupied[c] = true
	}

	// Scavengers start scattered through the bulk soil.
	forbidden := layout.Occupied()
	for x := 0; x < gridWidth; x++ {
		for y := 0; y < airRows; y++ {
			forbidden[comets.Cell{X: x, Y: y}] = true
		}
	}
	cells, err := comets.ScatterFounders(grid, 12, forbidden, rng)
	if err != nil {
		return nil, err
	}
	for _, c := range cells {
		if err := layout.AddFounder(comets.Founder{X: c.X, Y: c.Y, Biomass: []float64{0, 5e-8}}); err != nil {
			return nil, err
		}
	}

	if err := setupMedia(layout); err != nil {
		return nil, err
	}

	params := comets.DefaultParams()
	overrides := map[string]any{
		"maxCycles":       240,
		"timeStep":        0.05,
		"writeBiomassLog": true,
		"BiomassLogRate":  20,
		"writeMediaLog":   true,
		"MediaLogRate":    40,
		"spaceWidth":      0.05,
		"defaultVmax":     10.0,
		"defaultKm":       0.01,
	}
	for k, v := range overrides {
		if err := params.Set(k, v); err != nil {
			return nil, err
		}
	}

	return &comets.Experiment{
		Name:   "soil-root-air",
		Seed:   seed,
		Models: []*comets.Model{fermenter, scavenger},
		Layout: layout,
		Params: params,
	}, nil
}

// setupMedia writes the environment rules: uniform starting nutrients,
// fast oxygen diffusion, oxygen clamped at the air boundary and root
// exudates refreshing along the root column.
func setupMedia(layout *comets.Layout) error {
	if err := layout.SetInitialConcentration("glc__D_e", 0.005); err != nil {
		return err
	}
	if err := layout.SetInitialConcentration("o2_e", 0.5); err != nil {
		return err
	}
	if err := layout.SetDiffusionDefault(5e-6); err != nil {
		return err
	}
	if err := layout.SetDiffusion("o2_e", 2e-5); err != nil {
		return err
	}

	for x := 0; x < gridWidth; x++ {
		for y := 0; y < airRows; y++ {
			if err := layout.AddStaticRule(x, y, map[string]float64{"o2_e": 10}); err != nil {
				return err
			}
		}
	}
	for y := airRows; y < gridHeight; y++ {
		if err := layout.AddRefreshRule(rootX, y, map[string]float64{"glc__D_e": 1e-4}); err != nil {
			return err
		}
	}
	return nil
}

// engineAvailable reports whether a run can actually be attempted: a
// resolvable java binary and at least one engine jar on the classpath.
func engineAvailable(engine comets.EngineConfig) bool {
	if engine.Classpath() == "" {
		return false
	}
	bin := engine.JavaBin
	if bin == "" {
		bin = "java"
	}
	_, err := exec.LookPath(bin)
	return err == nil
}

func printStaged(staged *comets.Staged) {
	fmt.Printf("Experiment %s staged in %s\n", staged.Name, staged.Dir)
	fmt.Println("Input files:")
	files := append([]string{}, staged.ModelPaths...)
	files = append(files, staged.LayoutPath, staged.GlobalPath, staged.PackagePath, staged.ScriptPath)
	sort.Strings(files)
	for _, f := range files {
		fmt.Printf("  %s\n", filepath.Base(f))
	}
}

func printFinalBiomass(exp *comets.Experiment, result *comets.RunResult) {
	if result.Logs.TotalBiomass == "" {
		return
	}
	series, err := comets.ReadTotalBiomassFile(result.Logs.TotalBiomass)
	if err != nil {
		fmt.Printf("  (total biomass log unreadable: %v)\n", err)
		return
	}
	final := series.Final()
	fmt.Println("Final biomass:")
	for i, m := range exp.Models {
		if i < len(final) {
			fmt.Printf("  %s: %g\n", m.ID, final[i])
		}
	}
}
