package comets

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// File names used inside a staging directory.
const (
	LayoutFileName = "layout.txt"
	ScriptFileName = "comets_script.txt"
)

// ErrEngineNotFound is returned when the Java binary cannot be located.
var ErrEngineNotFound = errors.New("simulation engine not found")

// EngineConfig locates and shapes the external engine invocation. The
// engine is a Java program: its jars live under CometsHome (bin/ and
// lib/), and the entry class is started with a -loader argument pointing
// at the staged script file.
type EngineConfig struct {
	JavaBin        string   `json:"java_bin,omitempty"`
	CometsHome     string   `json:"comets_home,omitempty"`
	MainClass      string   `json:"main_class,omitempty"`
	JavaOpts       []string `json:"java_opts,omitempty"`
	ClasspathExtra []string `json:"classpath_extra,omitempty"`
}

// withDefaults fills unset fields: "java" on PATH, the stock entry class
// and the COMETS_HOME environment variable.
func (ec EngineConfig) withDefaults() EngineConfig {
	if ec.JavaBin == "" {
		ec.JavaBin = "java"
	}
	if ec.MainClass == "" {
		ec.MainClass = "comets_scr.comets"
	}
	if ec.CometsHome == "" {
		ec.CometsHome = os.Getenv("COMETS_HOME")
	}
	return ec
}

// Classpath assembles the engine classpath: every jar under
// CometsHome/bin and CometsHome/lib (sorted for determinism), followed
// by any extra entries, joined with the OS path list separator.
func (ec EngineConfig) Classpath() string {
	ec = ec.withDefaults()
	var entries []string
	if ec.CometsHome != "" {
		for _, sub := range []string{"bin", "lib"} {
			jars, err := filepath.Glob(filepath.Join(ec.CometsHome, sub, "*.jar"))
			if err == nil {
				sort.Strings(jars)
				entries = append(entries, jars...)
			}
		}
	}
	entries = append(entries, ec.ClasspathExtra...)
	return strings.Join(entries, string(os.PathListSeparator))
}

// LogPaths holds the absolute paths of the log files a run will produce.
// Paths are empty when the corresponding log is disabled.
type LogPaths struct {
	TotalBiomass string
	Biomass      string
	Media        string
	Flux         string
}

// Staged is an experiment written to disk: the staging directory with
// model, layout, parameter and script files, plus where the logs will
// appear. The engine runs with the staging directory as its working
// directory, so everything inside is referenced by file name.
type Staged struct {
	RunID       string
	Name        string
	Dir         string
	ScriptPath  string
	LayoutPath  string
	GlobalPath  string
	PackagePath string
	ModelPaths  []string
	MaxCycles   int
	Logs        LogPaths
}

// RunResult summarizes a finished engine invocation.
type RunResult struct {
	RunID      string
	Cycles     int
	Duration   time.Duration
	ExitCode   int
	OutputTail []string
	Logs       LogPaths
}

// Runner stages experiments and drives the external engine process. A
// NotificationManager may be attached to fan out run lifecycle and
// per-cycle progress events.
type Runner struct {
	Engine        EngineConfig
	Logger        Logger
	Notifications *NotificationManager
}

// NewRunner creates a runner. A nil logger is replaced with a no-op one.
func NewRunner(engine EngineConfig, logger Logger) *Runner {
	if logger == nil {
		logger = NewNoOpLogger()
	}
	return &Runner{Engine: engine, Logger: logger}
}

// Stage validates the experiment and writes every file the engine needs
// into dir: one model file per model, the layout, both parameter files
// and the loader script naming them.
func (r *Runner) Stage(exp *Experiment, dir string) (*Staged, error) {
	if err := exp.Validate(); err != nil {
		return nil, fmt.Errorf("experiment %s is not runnable: %w", exp.Name, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}

	staged := &Staged{
		RunID:     NewRandomID(),
		Name:      exp.Name,
		Dir:       dir,
		MaxCycles: exp.Params.Int("maxCycles"),
	}

	for _, m := range exp.Models {
		path, err := m.WriteFile(dir)
		if err != nil {
			return nil, err
		}
		staged.ModelPaths = append(staged.ModelPaths, path)
		r.Logger.Debugf("staged model %s at %s", m.ID, path)
	}

	layoutPath, err := exp.Layout.WriteFile(dir, LayoutFileName)
	if err != nil {
		return nil, err
	}
	staged.LayoutPath = layoutPath

	globalPath, packagePath, err := exp.Params.WriteFiles(dir)
	if err != nil {
		return nil, err
	}
	staged.GlobalPath = globalPath
	staged.PackagePath = packagePath

	script := fmt.Sprintf("load_comets_parameters %s\nload_package_parameters %s\nload_layout %s\n",
		filepath.Base(globalPath), filepath.Base(packagePath), LayoutFileName)
	staged.ScriptPath = filepath.Join(dir, ScriptFileName)
	if err := os.WriteFile(staged.ScriptPath, []byte(script), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write loader script: %w", err)
	}

	if exp.Params.Bool("writeTotalBiomassLog") {
		staged.Logs.TotalBiomass = filepath.Join(dir, exp.Params.String("TotalBiomassLogName"))
	}
	if exp.Params.Bool("writeBiomassLog") {
		staged.Logs.Biomass = filepath.Join(dir, exp.Params.String("BiomassLogName"))
	}
	if exp.Params.Bool("writeMediaLog") {
		staged.Logs.Media = filepath.Join(dir, exp.Params.String("MediaLogName"))
	}
	if exp.Params.Bool("writeFluxLog") {
		staged.Logs.Flux = filepath.Join(dir, exp.Params.String("FluxLogName"))
	}

	r.Logger.Infof("staged experiment %s in %s (%d models, %dx%d grid)",
		exp.Name, dir, len(exp.Models), exp.Layout.Grid.Width, exp.Layout.Grid.Height)
	return staged, nil
}

// BuildCommand constructs the engine invocation without starting it:
// java [opts] -classpath <jars> <mainClass> -loader <script>, run from
// the staging directory.
func (r *Runner) BuildCommand(ctx context.Context, staged *Staged) *exec.Cmd {
	engine := r.Engine.withDefaults()
	args := append([]string{}, engine.JavaOpts...)
	if cp := engine.Classpath(); cp != "" {
		args = append(args, "-classpath", cp)
	}
	args = append(args, engine.MainClass, "-loader", filepath.Base(staged.ScriptPath))
	cmd := exec.CommandContext(ctx, engine.JavaBin, args...)
	cmd.Dir = staged.Dir
	return cmd
}

// Run starts the staged engine process and follows it to completion. The
// engine's stdout is scanned line by line: "Cycle N" lines become
// progress events, lines starting with "Error" are collected as engine
// failures (the engine can exit zero after an internal error, so exit
// status alone is not trusted). The context cancels the process.
func (r *Runner) Run(ctx context.Context, staged *Staged) (*RunResult, error) {
	cmd := r.BuildCommand(ctx, staged)

	// Stdout is scanned live for progress; stderr goes to its own buffer
	// (exec copies it on a separate goroutine) and both are merged into
	// the output tail after Wait.
	var stdoutBuf, stderrBuf bytes.Buffer
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open engine stdout: %w", err)
	}
	cmd.Stderr = &stderrBuf

	start := time.Now()
	r.Logger.Infof("starting engine for run %s: %s", staged.RunID, strings.Join(cmd.Args, " "))
	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrEngineNotFound, err)
		}
		return nil, fmt.Errorf("failed to start engine: %w", err)
	}

	r.emit(Event{RunID: staged.RunID, Type: EventRunStarted, TotalCycles: staged.MaxCycles,
		Message: "engine started for " + staged.Name})

	cycles := 0
	var engineErrors []string
	sc := bufio.NewScanner(stdout)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		stdoutBuf.WriteString(line)
		stdoutBuf.WriteByte('\n')

		trimmed := strings.TrimSpace(line)
		if n, ok := parseCycleLine(trimmed); ok {
			cycles = n
			r.Logger.Debugf("run %s at cycle %d/%d", staged.RunID, n, staged.MaxCycles)
			r.emit(Event{RunID: staged.RunID, Type: EventRunProgress, Cycle: n, TotalCycles: staged.MaxCycles})
			continue
		}
		if strings.HasPrefix(trimmed, "Error") {
			engineErrors = append(engineErrors, trimmed)
			r.Logger.Warnf("run %s engine error: %s", staged.RunID, trimmed)
		}
	}
	scanErr := sc.Err()

	waitErr := cmd.Wait()
	result := &RunResult{
		RunID:      staged.RunID,
		Cycles:     cycles,
		Duration:   time.Since(start),
		ExitCode:   cmd.ProcessState.ExitCode(),
		OutputTail: tailLines(stdoutBuf.String()+stderrBuf.String(), 50),
		Logs:       staged.Logs,
	}

	fail := func(err error) (*RunResult, error) {
		r.emit(Event{RunID: staged.RunID, Type: EventRunFailed, Cycle: cycles,
			TotalCycles: staged.MaxCycles, Message: err.Error()})
		return result, err
	}

	if ctx.Err() != nil {
		return fail(fmt.Errorf("run %s canceled: %w", staged.RunID, ctx.Err()))
	}
	if waitErr != nil {
		return fail(fmt.Errorf("engine exited with %d: %w; tail: %s",
			result.ExitCode, waitErr, strings.Join(result.OutputTail, " | ")))
	}
	if scanErr != nil {
		return fail(fmt.Errorf("failed to read engine output: %w", scanErr))
	}
	if len(engineErrors) > 0 {
		return fail(fmt.Errorf("engine reported %d errors, first: %s", len(engineErrors), engineErrors[0]))
	}

	r.Logger.Infof("run %s completed: %d cycles in %s", staged.RunID, cycles, result.Duration)
	r.emit(Event{RunID: staged.RunID, Type: EventRunCompleted, Cycle: cycles,
		TotalCycles: staged.MaxCycles, Message: "run completed"})
	return result, nil
}

// StageAndRun is the one-call path used by the batch CLI.
func (r *Runner) StageAndRun(ctx context.Context, exp *Experiment, dir string) (*RunResult, error) {
	staged, err := r.Stage(exp, dir)
	if err != nil {
		return nil, err
	}
	return r.Run(ctx, staged)
}

func (r *Runner) emit(ev Event) {
	if r.Notifications == nil {
		return
	}
	ev.Timestamp = time.Now().Unix()
	r.Notifications.Enqueue(ev, r.Notifications.ListNotifiers())
}

// parseCycleLine matches the engine's per-cycle stdout lines ("Cycle 12").
func parseCycleLine(line string) (int, bool) {
	if !strings.HasPrefix(line, "Cycle ") {
		return 0, false
	}
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0, false
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

func tailLines(s string, n int) []string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	if len(lines) == 1 && lines[0] == "" {
		return nil
	}
	return lines
}
