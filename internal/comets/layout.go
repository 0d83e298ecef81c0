package comets

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Grid is the fixed 2D simulation lattice. Dimensions are set at
// construction and never change.
type Grid struct {
	Width  int
	Height int
}

// NewGrid creates a grid, rejecting non-positive dimensions.
func NewGrid(width, height int) (Grid, error) {
	if width <= 0 || height <= 0 {
		return Grid{}, fmt.Errorf("grid size must be positive, got %dx%d", width, height)
	}
	return Grid{Width: width, Height: height}, nil
}

// Contains reports whether the cell lies inside the grid.
func (g Grid) Contains(c Cell) bool {
	return c.X >= 0 && c.Y >= 0 && c.X < g.Width && c.Y < g.Height
}

// Area returns the number of cells in the grid.
func (g Grid) Area() int {
	return g.Width * g.Height
}

// Cell is one grid location.
type Cell struct {
	X int
	Y int
}

// Founder is one initial colony: a cell plus per-model starting biomass
// in grams dry weight.
type Founder struct {
	X       int
	Y       int
	Biomass []float64
}

// Layout is the spatial side of an experiment: the grid, the models that
// live on it, rock barriers, founder colonies and the metabolite
// environment. Barriers and founders are kept disjoint by the setters;
// the placement sampler excludes Occupied() cells, so the two never
// collide regardless of construction order.
type Layout struct {
	Grid       Grid
	Models     []*Model
	Barriers   []Cell
	InitialPop []Founder
	Media      *MediaSpec

	barrierSet map[Cell]bool
	founderSet map[Cell]bool
}

// NewLayout creates a layout for the given models. The media metabolite
// list is seeded from the models' exchange metabolites in first-seen
// order, all at zero concentration.
func NewLayout(grid Grid, models ...*Model) *Layout {
	l := &Layout{
		Grid:       grid,
		Models:     models,
		Media:      newMediaSpec(),
		barrierSet: make(map[Cell]bool),
		founderSet: make(map[Cell]bool),
	}
	for _, m := range models {
		for _, met := range m.ExchangeMetabolites() {
			l.Media.addMetabolite(met)
		}
	}
	return l
}

// AddBarrier marks cells as impassable rock. Cells outside the grid or
// already holding a colony are rejected; duplicate rocks are ignored.
func (l *Layout) AddBarrier(cells ...Cell) error {
	for _, c := range cells {
		if !l.Grid.Contains(c) {
			return fmt.Errorf("barrier cell (%d, %d) is outside the %dx%d grid", c.X, c.Y, l.Grid.Width, l.Grid.Height)
		}
		if l.founderSet[c] {
			return fmt.Errorf("barrier cell (%d, %d) is occupied by a colony", c.X, c.Y)
		}
	}
	for _, c := range cells {
		if l.barrierSet[c] {
			continue
		}
		l.barrierSet[c] = true
		l.Barriers = append(l.Barriers, c)
	}
	return nil
}

// AddFounder places one colony. The cell must be inside the grid, off the
// rocks and not already founded; the biomass vector must carry one entry
// per model with at least one positive amount.
func (l *Layout) AddFounder(f Founder) error {
	c := Cell{X: f.X, Y: f.Y}
	if !l.Grid.Contains(c) {
		return fmt.Errorf("founder cell (%d, %d) is outside the %dx%d grid", f.X, f.Y, l.Grid.Width, l.Grid.Height)
	}
	if l.barrierSet[c] {
		return fmt.Errorf("founder cell (%d, %d) is a barrier", f.X, f.Y)
	}
	if l.founderSet[c] {
		return fmt.Errorf("founder cell (%d, %d) is already occupied", f.X, f.Y)
	}
	if len(f.Biomass) != len(l.Models) {
		return fmt.Errorf("founder at (%d, %d) carries %d biomass entries for %d models", f.X, f.Y, len(f.Biomass), len(l.Models))
	}
	positive := false
	for _, b := range f.Biomass {
		if b < 0 {
			return fmt.Errorf("founder at (%d, %d) has negative biomass", f.X, f.Y)
		}
		if b > 0 {
			positive = true
		}
	}
	if !positive {
		return fmt.Errorf("founder at (%d, %d) has no biomass", f.X, f.Y)
	}
	l.founderSet[c] = true
	l.InitialPop = append(l.InitialPop, f)
	return nil
}

// Occupied returns the set of cells already claimed by barriers or
// colonies. The placement sampler takes this as its forbidden set.
func (l *Layout) Occupied() map[Cell]bool {
	out := make(map[Cell]bool, len(l.barrierSet)+len(l.founderSet))
	for c := range l.barrierSet {
		out[c] = true
	}
	for c := range l.founderSet {
		out[c] = true
	}
	return out
}

// ModelFileNames returns the model file names in model order, as written
// on the layout's model_file line.
func (l *Layout) ModelFileNames() []string {
	names := make([]string, len(l.Models))
	for i, m := range l.Models {
		names[i] = m.FileName()
	}
	return names
}

// Validate re-checks the full layout and collects every violation. The
// setters already enforce these rules; Validate covers layouts assembled
// directly from literals.
func (l *Layout) Validate() error {
	err := &ValidationError{}
	if l.Grid.Width <= 0 || l.Grid.Height <= 0 {
		err.Addf("grid size must be positive, got %dx%d", l.Grid.Width, l.Grid.Height)
	}
	if len(l.Models) == 0 {
		err.Add("layout has no models")
	}

	rocks := make(map[Cell]bool, len(l.Barriers))
	for _, c := range l.Barriers {
		if !l.Grid.Contains(c) {
			err.Addf("barrier cell (%d, %d) is outside the grid", c.X, c.Y)
		}
		rocks[c] = true
	}

	seen := make(map[Cell]bool, len(l.InitialPop))
	for _, f := range l.InitialPop {
		c := Cell{X: f.X, Y: f.Y}
		if !l.Grid.Contains(c) {
			err.Addf("founder cell (%d, %d) is outside the grid", f.X, f.Y)
		}
		if rocks[c] {
			err.Addf("founder at (%d, %d) sits on a barrier", f.X, f.Y)
		}
		if seen[c] {
			err.Addf("multiple founders at (%d, %d)", f.X, f.Y)
		}
		seen[c] = true
		if len(f.Biomass) != len(l.Models) {
			err.Addf("founder at (%d, %d) carries %d biomass entries for %d models", f.X, f.Y, len(f.Biomass), len(l.Models))
		}
	}

	if l.Media != nil {
		for _, r := range l.Media.RefreshRules {
			if !l.Grid.Contains(Cell{X: r.X, Y: r.Y}) {
				err.Addf("media refresh rule at (%d, %d) is outside the grid", r.X, r.Y)
			}
		}
		for _, s := range l.Media.StaticRules {
			if !l.Grid.Contains(Cell{X: s.X, Y: s.Y}) {
				err.Addf("static media rule at (%d, %d) is outside the grid", s.X, s.Y)
			}
		}
	}

	if err.HasIssues() {
		return err
	}
	return nil
}

// Write renders the layout in the engine's layout file format. Blocks are
// terminated by "//" lines; coordinates are 0-based; media columns follow
// the layout's metabolite order.
func (l *Layout) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)

	fmt.Fprint(bw, "model_file")
	for _, name := range l.ModelFileNames() {
		fmt.Fprintf(bw, " %s", name)
	}
	fmt.Fprintln(bw)

	fmt.Fprintln(bw, "  model_world")
	fmt.Fprintf(bw, "    grid_size %d %d\n", l.Grid.Width, l.Grid.Height)

	fmt.Fprintln(bw, "    world_media")
	for _, name := range l.Media.Names {
		fmt.Fprintf(bw, "      %s %s\n", name, formatFloat(l.Media.Initial[name]))
	}
	fmt.Fprintln(bw, "    //")

	if l.Media.DiffusionDefault > 0 {
		fmt.Fprintf(bw, "    diffusion_constants %s\n", formatFloat(l.Media.DiffusionDefault))
		for i, name := range l.Media.Names {
			if d, ok := l.Media.Diffusion[name]; ok {
				fmt.Fprintf(bw, "      %d %s\n", i+1, formatFloat(d))
			}
		}
		fmt.Fprintln(bw, "    //")
	}

	fmt.Fprint(bw, "    media_refresh")
	for _, name := range l.Media.Names {
		fmt.Fprintf(bw, " %s", formatFloat(l.Media.GlobalRefresh[name]))
	}
	fmt.Fprintln(bw)
	for _, r := range l.Media.RefreshRules {
		fmt.Fprintf(bw, "      %d %d", r.X, r.Y)
		for _, name := range l.Media.Names {
			fmt.Fprintf(bw, " %s", formatFloat(r.Amounts[name]))
		}
		fmt.Fprintln(bw)
	}
	fmt.Fprintln(bw, "    //")

	fmt.Fprint(bw, "    static_media")
	for _, name := range l.Media.Names {
		conc, ok := l.Media.GlobalStatic[name]
		fmt.Fprintf(bw, " %d %s", boolFlag(ok), formatFloat(conc))
	}
	fmt.Fprintln(bw)
	for _, s := range l.Media.StaticRules {
		fmt.Fprintf(bw, "      %d %d", s.X, s.Y)
		for _, name := range l.Media.Names {
			conc, ok := s.Conc[name]
			fmt.Fprintf(bw, " %d %s", boolFlag(ok), formatFloat(conc))
		}
		fmt.Fprintln(bw)
	}
	fmt.Fprintln(bw, "    //")

	if len(l.Barriers) > 0 {
		fmt.Fprintln(bw, "    barrier")
		for _, c := range l.Barriers {
			fmt.Fprintf(bw, "      %d %d\n", c.X, c.Y)
		}
		fmt.Fprintln(bw, "    //")
	}

	fmt.Fprintln(bw, "  //")

	fmt.Fprintln(bw, "  initial_pop")
	for _, f := range l.InitialPop {
		fmt.Fprintf(bw, "    %d %d", f.X, f.Y)
		for _, b := range f.Biomass {
			fmt.Fprintf(bw, " %s", formatFloat(b))
		}
		fmt.Fprintln(bw)
	}
	fmt.Fprintln(bw, "  //")

	fmt.Fprintln(bw, "//")

	return bw.Flush()
}

// WriteFile writes the layout file into dir under the given name and
// returns its path.
func (l *Layout) WriteFile(dir, name string) (string, error) {
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create layout file: %w", err)
	}
	defer f.Close()
	if err := l.Write(f); err != nil {
		return "", fmt.Errorf("failed to write layout: %w", err)
	}
	return path, nil
}

func boolFlag(b bool) int {
	if b {
		return 1
	}
	return 0
}
