package comets

import "fmt"

// MediaSpec describes the metabolite environment: a uniform initial
// concentration field per metabolite, optionally layered with diffusion
// overrides, periodic refresh amounts and static (clamped) concentration
// rules, globally or per cell. The engine re-applies refresh amounts and
// static clamps every cycle, which is how open boundaries such as an air
// interface or a root surface are mimicked.
type MediaSpec struct {
	Names            []string
	Initial          map[string]float64
	DiffusionDefault float64
	Diffusion        map[string]float64
	GlobalRefresh    map[string]float64
	RefreshRules     []RefreshRule
	GlobalStatic     map[string]float64
	StaticRules      []StaticRule

	index map[string]int
}

// RefreshRule adds the given metabolite amounts to one cell every
// refresh interval.
type RefreshRule struct {
	X       int
	Y       int
	Amounts map[string]float64
}

// StaticRule clamps the listed metabolites of one cell back to fixed
// concentrations every cycle.
type StaticRule struct {
	X    int
	Y    int
	Conc map[string]float64
}

func newMediaSpec() *MediaSpec {
	return &MediaSpec{
		Initial:       make(map[string]float64),
		Diffusion:     make(map[string]float64),
		GlobalRefresh: make(map[string]float64),
		GlobalStatic:  make(map[string]float64),
		index:         make(map[string]int),
	}
}

func (ms *MediaSpec) addMetabolite(name string) {
	if _, ok := ms.index[name]; ok {
		return
	}
	ms.index[name] = len(ms.Names)
	ms.Names = append(ms.Names, name)
}

// MetaboliteIndex returns the column index of a metabolite in the media
// ordering.
func (ms *MediaSpec) MetaboliteIndex(name string) (int, bool) {
	i, ok := ms.index[name]
	return i, ok
}

// AddMetabolite extends the media metabolite list beyond what the models
// exchange (e.g. an inert tracer). Duplicates are ignored.
func (l *Layout) AddMetabolite(name string) {
	l.Media.addMetabolite(name)
}

func (l *Layout) checkMetabolite(name string) error {
	if _, ok := l.Media.index[name]; !ok {
		return fmt.Errorf("metabolite %q is not part of this layout's media", name)
	}
	return nil
}

func (l *Layout) checkCell(x, y int) error {
	if !l.Grid.Contains(Cell{X: x, Y: y}) {
		return fmt.Errorf("cell (%d, %d) is outside the %dx%d grid", x, y, l.Grid.Width, l.Grid.Height)
	}
	return nil
}

// SetInitialConcentration sets the uniform starting concentration of one
// metabolite across the whole grid.
func (l *Layout) SetInitialConcentration(name string, conc float64) error {
	if err := l.checkMetabolite(name); err != nil {
		return err
	}
	if conc < 0 {
		return fmt.Errorf("initial concentration for %s must be non-negative, got %g", name, conc)
	}
	l.Media.Initial[name] = conc
	return nil
}

// SetDiffusionDefault sets the default diffusion constant applied to all
// metabolites.
func (l *Layout) SetDiffusionDefault(d float64) error {
	if d <= 0 {
		return fmt.Errorf("diffusion constant must be positive, got %g", d)
	}
	l.Media.DiffusionDefault = d
	return nil
}

// SetDiffusion overrides the diffusion constant of one metabolite.
func (l *Layout) SetDiffusion(name string, d float64) error {
	if err := l.checkMetabolite(name); err != nil {
		return err
	}
	if d < 0 {
		return fmt.Errorf("diffusion constant for %s must be non-negative, got %g", name, d)
	}
	l.Media.Diffusion[name] = d
	return nil
}

// SetGlobalRefresh adds the given amount of a metabolite to every cell at
// each refresh interval.
func (l *Layout) SetGlobalRefresh(name string, amount float64) error {
	if err := l.checkMetabolite(name); err != nil {
		return err
	}
	l.Media.GlobalRefresh[name] = amount
	return nil
}

// AddRefreshRule adds per-cycle metabolite amounts to a single cell, e.g.
// root exudates entering the soil at the root surface.
func (l *Layout) AddRefreshRule(x, y int, amounts map[string]float64) error {
	if err := l.checkCell(x, y); err != nil {
		return err
	}
	copied := make(map[string]float64, len(amounts))
	for name, amt := range amounts {
		if err := l.checkMetabolite(name); err != nil {
			return err
		}
		copied[name] = amt
	}
	l.Media.RefreshRules = append(l.Media.RefreshRules, RefreshRule{X: x, Y: y, Amounts: copied})
	return nil
}

// SetGlobalStatic clamps a metabolite to a fixed concentration across the
// whole grid.
func (l *Layout) SetGlobalStatic(name string, conc float64) error {
	if err := l.checkMetabolite(name); err != nil {
		return err
	}
	if conc < 0 {
		return fmt.Errorf("static concentration for %s must be non-negative, got %g", name, conc)
	}
	l.Media.GlobalStatic[name] = conc
	return nil
}

// AddStaticRule clamps metabolites of a single cell to fixed
// concentrations, e.g. oxygen held constant along the air boundary.
func (l *Layout) AddStaticRule(x, y int, conc map[string]float64) error {
	if err := l.checkCell(x, y); err != nil {
		return err
	}
	copied := make(map[string]float64, len(conc))
	for name, c := range conc {
		if err := l.checkMetabolite(name); err != nil {
			return err
		}
		if c < 0 {
			return fmt.Errorf("static concentration for %s must be non-negative, got %g", name, c)
		}
		copied[name] = c
	}
	l.Media.StaticRules = append(l.Media.StaticRules, StaticRule{X: x, Y: y, Conc: copied})
	return nil
}
