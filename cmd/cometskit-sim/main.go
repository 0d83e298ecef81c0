package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"cometskit/internal/comets"
	"cometskit/internal/comets/viz"
)

// stderrLogger prints runner progress to stderr. Debug lines only appear
// with -v.
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
		configFile = flag.String("config", "", "path to experiment config JSON file (required)")
		outDir     = flag.String("out", "", "staging directory (default: a fresh temp directory)")
		javaBin    = flag.String("java", "", "java binary to launch the engine with")
		cometsHome = flag.String("comets-home", "", "engine installation directory (bin/ and lib/ jars)")
		seed       = flag.Int64("seed", 0, "override the config's random seed")
		stageOnly  = flag.Bool("stage-only", false, "write the input files and stop without launching the engine")
		plots      = flag.Bool("plots", false, "render growth curves and a final biomass heatmap after the run")
		movie      = flag.Bool("movie", false, "render a biomass timelapse AVI after the run")
		verbose    = flag.Bool("v", false, "verbose output")
	)
	flag.Parse()

	if *configFile == "" {
		fmt.Fprintf(os.Stderr, "error: --config is required\n")
		flag.Usage()
		os.Exit(1)
	}

	logger := &stderrLogger{verbose: *verbose}

	cfg, err := comets.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}
	if *seed != 0 {
		cfg.Seed = *seed
	}

	exp, err := comets.BuildExperiment(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error building experiment: %v\n", err)
		os.Exit(1)
	}

	dir := *outDir
	if dir == "" {
		dir, err = os.MkdirTemp("", "cometskit-")
		if err != nil {
			fmt.Fprintf(os.Stderr, "error creating staging directory: %v\n", err)
			os.Exit(1)
		}
	}

	engine := exp.Engine
	if *javaBin != "" {
		engine.JavaBin = *javaBin
	}
	if *cometsHome != "" {
		engine.CometsHome = *cometsHome
	}

	runner := comets.NewRunner(engine, logger)
	staged, err := runner.Stage(exp, dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error staging experiment: %v\n", err)
		os.Exit(1)
	}

	if *stageOnly {
		printStaged(staged)
		return
	}

	result, err := runner.Run(context.Background(), staged)
	if err != nil {
		if errors.Is(err, comets.ErrEngineNotFound) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			fmt.Fprintf(os.Stderr, "hint: point --java at a JVM and --comets-home at the engine installation\n")
		} else {
			fmt.Fprintf(os.Stderr, "error running engine: %v\n", err)
			for _, line := range lastOutput(result) {
				fmt.Fprintf(os.Stderr, "  engine: %s\n", line)
			}
		}
		os.Exit(1)
	}

	printSummary(exp, result)

	if *plots {
		if err := renderPlots(exp, result, dir); err != nil {
			fmt.Fprintf(os.Stderr, "error rendering plots: %v\n", err)
			os.Exit(1)
		}
	}
	if *movie {
		if err := renderMovie(exp, result, dir); err != nil {
			fmt.Fprintf(os.Stderr, "error rendering movie: %v\n", err)
			os.Exit(1)
		}
	}
}

func lastOutput(result *comets.RunResult) []string {
	if result == nil {
		return nil
	}
	return result.OutputTail
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

func printSummary(exp *comets.Experiment, result *comets.RunResult) {
	fmt.Printf("Simulation finished (experiment=%s, cycles=%d, wall=%s)\n",
		exp.Name, result.Cycles, result.Duration.Round(10*time.Millisecond))
	if result.Logs.TotalBiomass == "" {
		return
	}
	series, err := comets.ReadTotalBiomassFile(result.Logs.TotalBiomass)
	if err != nil {
		fmt.Printf("  (total biomass log unreadable: %v)\n", err)
		return
	}
	fmt.Println("Final biomass:")
	final := series.Final()
	for i, m := range exp.Models {
		if i < len(final) {
			fmt.Printf("  %s: %g\n", m.ID, final[i])
		}
	}
}

// renderPlots writes growth_curves.png and, when the spatial biomass log
// was enabled, biomass_final.png next to the engine output.
func renderPlots(exp *comets.Experiment, result *comets.RunResult, dir string) error {
	if result.Logs.TotalBiomass != "" {
		series, err := comets.ReadTotalBiomassFile(result.Logs.TotalBiomass)
		if err != nil {
			return fmt.Errorf("reading total biomass log: %w", err)
		}
		names := make([]string, len(exp.Models))
		for i, m := range exp.Models {
			names[i] = m.ID
		}
		out := filepath.Join(dir, "growth_curves.png")
		if err := viz.GrowthCurves(series, names, out); err != nil {
			return fmt.Errorf("plotting growth curves: %w", err)
		}
		fmt.Printf("Wrote %s\n", out)
	}

	if result.Logs.Biomass != "" {
		bl, err := comets.ReadBiomassLogFile(result.Logs.Biomass)
		if err != nil {
			return fmt.Errorf("reading biomass log: %w", err)
		}
		cycles := bl.Cycles()
		if len(cycles) == 0 {
			return nil
		}
		last := cycles[len(cycles)-1]
		for mi, m := range exp.Models {
			field, err := bl.Field(last, mi, exp.Layout.Grid)
			if err != nil {
				return fmt.Errorf("extracting biomass field: %w", err)
			}
			img, err := viz.Heatmap(field, viz.HeatmapOptions{
				Barriers: exp.Layout.Barriers,
				Label:    fmt.Sprintf("%s, cycle %d", m.ID, last),
			})
			if err != nil {
				return fmt.Errorf("rendering heatmap: %w", err)
			}
			out := filepath.Join(dir, fmt.Sprintf("biomass_final_%s.png", m.ID))
			if err := viz.SavePNG(img, out); err != nil {
				return fmt.Errorf("writing heatmap: %w", err)
			}
			fmt.Printf("Wrote %s\n", out)
		}
	}

	if result.Logs.Media != "" {
		if err := renderMediaChart(exp, result, dir); err != nil {
			return err
		}
	}
	return nil
}

// renderMediaChart plots the grid-wide total of the first media
// metabolite over the logged cycles.
func renderMediaChart(exp *comets.Experiment, result *comets.RunResult, dir string) error {
	ml, err := comets.ReadMediaLogFile(result.Logs.Media)
	if err != nil {
		return fmt.Errorf("reading media log: %w", err)
	}
	cycles := ml.Cycles()
	if len(cycles) == 0 || len(exp.Layout.Media.Names) == 0 {
		return nil
	}

	name := exp.Layout.Media.Names[0]
	totals := make([]float64, len(cycles))
	for i, cycle := range cycles {
		field, err := ml.FieldNamed(cycle, name, exp.Layout.Media, exp.Layout.Grid)
		if err != nil {
			return fmt.Errorf("extracting media field: %w", err)
		}
		sum := 0.0
		for _, row := range field {
			for _, v := range row {
				sum += v
			}
		}
		totals[i] = sum
	}

	out := filepath.Join(dir, "media_"+sanitizeName(name)+".png")
	if err := viz.MediaChart(cycles, totals, name, out); err != nil {
		return fmt.Errorf("plotting media chart: %w", err)
	}
	fmt.Printf("Wrote %s\n", out)
	return nil
}

// renderMovie writes a timelapse AVI of the first model's spatial
// biomass across every logged cycle.
func renderMovie(exp *comets.Experiment, result *comets.RunResult, dir string) error {
	if result.Logs.Biomass == "" {
		return fmt.Errorf("the biomass log is disabled; enable writeBiomassLog to render a movie")
	}
	bl, err := comets.ReadBiomassLogFile(result.Logs.Biomass)
	if err != nil {
		return fmt.Errorf("reading biomass log: %w", err)
	}
	cycles := bl.Cycles()
	if len(cycles) == 0 {
		return fmt.Errorf("the biomass log holds no cycles")
	}

	frames := make([]viz.Frame, 0, len(cycles))
	for _, cycle := range cycles {
		field, err := bl.Field(cycle, 0, exp.Layout.Grid)
		if err != nil {
			return fmt.Errorf("extracting biomass field: %w", err)
		}
		frames = append(frames, viz.Frame{Cycle: cycle, Field: field})
	}

	out := filepath.Join(dir, "timelapse.avi")
	opts := viz.HeatmapOptions{
		Barriers: exp.Layout.Barriers,
		Label:    exp.Models[0].ID,
	}
	if err := viz.Timelapse(frames, opts, out, 8); err != nil {
		return fmt.Errorf("rendering timelapse: %w", err)
	}
	fmt.Printf("Wrote %s\n", out)
	return nil
}

func sanitizeName(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
