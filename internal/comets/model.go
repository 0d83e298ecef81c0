package comets

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Default flux bounds applied to reactions that do not declare their own.
const (
	DefaultLowerBound = -1000.0
	DefaultUpperBound = 1000.0
)

// Objective styles understood by the simulation engine.
const (
	ObjectiveStyleMaxMinTotal = "MAX_OBJECTIVE_MIN_TOTAL"
	ObjectiveStyleMax         = "MAXIMIZE_OBJECTIVE_FLUX"
)

// Metabolite is one chemical species of a metabolic model.
type Metabolite struct {
	ID          string
	Name        string
	Compartment string
}

// Reaction is one reaction of a metabolic model. Stoich maps metabolite
// index to stoichiometric coefficient (negative for substrates, positive
// for products). Bounds constrain the flux the solver may assign.
type Reaction struct {
	ID            string
	Name          string
	LowerBound    float64
	UpperBound    float64
	ObjectiveCoef float64
	Stoich        map[int]float64
}

// Model is a genome-scale metabolic model in the simulator representation:
// a stoichiometric matrix with named rows and columns, flux bounds, an
// objective reaction and the list of exchange reactions through which the
// organism trades metabolites with its environment. Models are loaded from
// SBML files or built programmatically, then written as model files for the
// engine to consume.
type Model struct {
	ID          string
	Metabolites []Metabolite
	Reactions   []Reaction
	Exchanges   []int

	DefaultLB      float64
	DefaultUB      float64
	ObjectiveStyle string
	Optimizer      string

	// Michaelis-Menten uptake defaults, written only when set.
	VmaxDefault float64
	KmDefault   float64
	HillDefault float64
}

// NewModel creates an empty model with engine-default bounds, objective
// style and optimizer.
func NewModel(id string) *Model {
	return &Model{
		ID:             id,
		DefaultLB:      DefaultLowerBound,
		DefaultUB:      DefaultUpperBound,
		ObjectiveStyle: ObjectiveStyleMaxMinTotal,
		Optimizer:      "GUROBI",
	}
}

// AddMetabolite appends a metabolite and returns its index.
func (m *Model) AddMetabolite(met Metabolite) int {
	m.Metabolites = append(m.Metabolites, met)
	return len(m.Metabolites) - 1
}

// AddReaction appends a reaction and returns its index. Zero bounds are
// replaced with the model defaults so that programmatically built models
// behave like loaded ones.
func (m *Model) AddReaction(r Reaction) int {
	if r.LowerBound == 0 && r.UpperBound == 0 {
		r.LowerBound = m.DefaultLB
		r.UpperBound = m.DefaultUB
	}
	if r.Stoich == nil {
		r.Stoich = make(map[int]float64)
	}
	m.Reactions = append(m.Reactions, r)
	return len(m.Reactions) - 1
}

// ReactionIndex returns the index of the reaction with the given ID.
func (m *Model) ReactionIndex(id string) (int, bool) {
	for i := range m.Reactions {
		if m.Reactions[i].ID == id {
			return i, true
		}
	}
	return 0, false
}

// MetaboliteIndex returns the index of the metabolite with the given ID.
func (m *Model) MetaboliteIndex(id string) (int, bool) {
	for i := range m.Metabolites {
		if m.Metabolites[i].ID == id {
			return i, true
		}
	}
	return 0, false
}

// SetBounds overrides the flux bounds of one reaction. This is how uptake
// rates are constrained before a simulation (e.g. limiting a glucose
// exchange to -10 mmol/gDW/h).
func (m *Model) SetBounds(reactionID string, lower, upper float64) error {
	if lower > upper {
		return fmt.Errorf("reaction %s: lower bound %g exceeds upper bound %g", reactionID, lower, upper)
	}
	i, ok := m.ReactionIndex(reactionID)
	if !ok {
		return fmt.Errorf("reaction %s not found in model %s", reactionID, m.ID)
	}
	m.Reactions[i].LowerBound = lower
	m.Reactions[i].UpperBound = upper
	return nil
}

// Bounds returns the flux bounds of one reaction.
func (m *Model) Bounds(reactionID string) (lower, upper float64, err error) {
	i, ok := m.ReactionIndex(reactionID)
	if !ok {
		return 0, 0, fmt.Errorf("reaction %s not found in model %s", reactionID, m.ID)
	}
	return m.Reactions[i].LowerBound, m.Reactions[i].UpperBound, nil
}

// SetObjective makes the given reaction the (sole) objective.
func (m *Model) SetObjective(reactionID string) error {
	i, ok := m.ReactionIndex(reactionID)
	if !ok {
		return fmt.Errorf("reaction %s not found in model %s", reactionID, m.ID)
	}
	for j := range m.Reactions {
		m.Reactions[j].ObjectiveCoef = 0
	}
	m.Reactions[i].ObjectiveCoef = 1
	return nil
}

// Objective returns the index of the objective reaction.
func (m *Model) Objective() (int, bool) {
	for i := range m.Reactions {
		if m.Reactions[i].ObjectiveCoef != 0 {
			return i, true
		}
	}
	return 0, false
}

// DetectExchanges marks every reaction touching exactly one metabolite as
// an exchange reaction. Boundary species are already removed on SBML load,
// so a one-sided reaction is the uptake/secretion interface of the model.
func (m *Model) DetectExchanges() {
	m.Exchanges = m.Exchanges[:0]
	for i := range m.Reactions {
		if len(m.Reactions[i].Stoich) == 1 {
			m.Exchanges = append(m.Exchanges, i)
		}
	}
}

// ExchangeMetabolites returns the IDs of the metabolites traded through
// the exchange reactions, in exchange-reaction order. The layout seeds its
// media from this list.
func (m *Model) ExchangeMetabolites() []string {
	out := make([]string, 0, len(m.Exchanges))
	for _, ri := range m.Exchanges {
		for mi := range m.Reactions[ri].Stoich {
			out = append(out, m.Metabolites[mi].ID)
		}
	}
	return out
}

// Validate checks the model for structural problems, collecting every
// issue found.
func (m *Model) Validate() error {
	err := &ValidationError{}
	if m.ID == "" {
		err.Add("model ID is required")
	}
	if len(m.Reactions) == 0 {
		err.Add("model has no reactions")
	}
	if len(m.Metabolites) == 0 {
		err.Add("model has no metabolites")
	}
	for i := range m.Reactions {
		r := &m.Reactions[i]
		if r.LowerBound > r.UpperBound {
			err.Addf("reaction %s: lower bound %g exceeds upper bound %g", r.ID, r.LowerBound, r.UpperBound)
		}
		for mi := range r.Stoich {
			if mi < 0 || mi >= len(m.Metabolites) {
				err.Addf("reaction %s references metabolite index %d out of range", r.ID, mi)
			}
		}
	}
	if _, ok := m.Objective(); !ok {
		err.Add("model has no objective reaction")
	}
	for _, ri := range m.Exchanges {
		if ri < 0 || ri >= len(m.Reactions) {
			err.Addf("exchange reaction index %d out of range", ri)
		}
	}
	if err.HasIssues() {
		return err
	}
	return nil
}

// Write renders the model in the engine's model file format: keyword
// blocks terminated by "//" lines, with 1-based matrix indices.
func (m *Model) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "SMATRIX  %d  %d\n", len(m.Metabolites), len(m.Reactions))
	for ri := range m.Reactions {
		mets := make([]int, 0, len(m.Reactions[ri].Stoich))
		for mi := range m.Reactions[ri].Stoich {
			mets = append(mets, mi)
		}
		sort.Ints(mets)
		for _, mi := range mets {
			fmt.Fprintf(bw, "    %d   %d   %s\n", mi+1, ri+1, formatFloat(m.Reactions[ri].Stoich[mi]))
		}
	}
	fmt.Fprintln(bw, "//")

	fmt.Fprintf(bw, "BOUNDS  %s  %s\n", formatFloat(m.DefaultLB), formatFloat(m.DefaultUB))
	for ri := range m.Reactions {
		r := &m.Reactions[ri]
		fmt.Fprintf(bw, "    %d   %s   %s\n", ri+1, formatFloat(r.LowerBound), formatFloat(r.UpperBound))
	}
	fmt.Fprintln(bw, "//")

	fmt.Fprintln(bw, "OBJECTIVE")
	if oi, ok := m.Objective(); ok {
		fmt.Fprintf(bw, "    %d\n", oi+1)
	}
	fmt.Fprintln(bw, "//")

	fmt.Fprintln(bw, "METABOLITE_NAMES")
	for i := range m.Metabolites {
		fmt.Fprintf(bw, "    %s\n", m.Metabolites[i].ID)
	}
	fmt.Fprintln(bw, "//")

	fmt.Fprintln(bw, "REACTION_NAMES")
	for i := range m.Reactions {
		fmt.Fprintf(bw, "    %s\n", m.Reactions[i].ID)
	}
	fmt.Fprintln(bw, "//")

	fmt.Fprint(bw, "EXCHANGE_REACTIONS\n")
	for _, ri := range m.Exchanges {
		fmt.Fprintf(bw, " %d", ri+1)
	}
	fmt.Fprint(bw, "\n//\n")

	if m.VmaxDefault > 0 {
		fmt.Fprintf(bw, "VMAX_VALUES %s\n//\n", formatFloat(m.VmaxDefault))
	}
	if m.KmDefault > 0 {
		fmt.Fprintf(bw, "KM_VALUES %s\n//\n", formatFloat(m.KmDefault))
	}
	if m.HillDefault > 0 {
		fmt.Fprintf(bw, "HILL_COEFFICIENTS %s\n//\n", formatFloat(m.HillDefault))
	}

	if m.ObjectiveStyle != "" {
		fmt.Fprintf(bw, "OBJECTIVE_STYLE\n    %s\n//\n", m.ObjectiveStyle)
	}
	if m.Optimizer != "" {
		fmt.Fprintf(bw, "OPTIMIZER %s\n//\n", m.Optimizer)
	}

	return bw.Flush()
}

// FileName returns the model file name used when staging (<id>.cmd).
func (m *Model) FileName() string {
	return m.ID + ".cmd"
}

// WriteFile writes the model file into dir and returns its path.
func (m *Model) WriteFile(dir string) (string, error) {
	path := filepath.Join(dir, m.FileName())
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create model file: %w", err)
	}
	defer f.Close()
	if err := m.Write(f); err != nil {
		return "", fmt.Errorf("failed to write model %s: %w", m.ID, err)
	}
	return path, nil
}

// ReadModelFile parses a model file written by Write (or by the original
// tooling) back into a Model. The model ID is taken from the file name.
func ReadModelFile(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open model file: %w", err)
	}
	defer f.Close()
	id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	m, err := ParseModelFile(id, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// ParseModelFile parses the engine model file format from r.
func ParseModelFile(id string, r io.Reader) (*Model, error) {
	m := NewModel(id)
	m.ObjectiveStyle = ""
	m.Optimizer = ""

	var metNames, rxnNames []string
	type smatEntry struct {
		met, rxn int
		coef     float64
	}
	var smat []smatEntry
	type boundEntry struct {
		rxn    int
		lb, ub float64
	}
	var bounds []boundEntry
	objective := -1
	var exchanges []int
	nMets, nRxns := 0, 0

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	block := ""
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if line == "//" {
			block = ""
			continue
		}
		fields := strings.Fields(line)
		if block == "" {
			switch fields[0] {
			case "SMATRIX":
				if len(fields) != 3 {
					return nil, fmt.Errorf("line %d: SMATRIX header needs 2 dimensions", lineNo)
				}
				nMets, _ = strconv.Atoi(fields[1])
				nRxns, _ = strconv.Atoi(fields[2])
				block = "SMATRIX"
			case "BOUNDS":
				if len(fields) != 3 {
					return nil, fmt.Errorf("line %d: BOUNDS header needs 2 defaults", lineNo)
				}
				m.DefaultLB, _ = strconv.ParseFloat(fields[1], 64)
				m.DefaultUB, _ = strconv.ParseFloat(fields[2], 64)
				block = "BOUNDS"
			case "OBJECTIVE":
				block = "OBJECTIVE"
			case "METABOLITE_NAMES":
				block = "METABOLITE_NAMES"
			case "REACTION_NAMES":
				block = "REACTION_NAMES"
			case "EXCHANGE_REACTIONS":
				block = "EXCHANGE_REACTIONS"
			case "VMAX_VALUES":
				if len(fields) > 1 {
					m.VmaxDefault, _ = strconv.ParseFloat(fields[1], 64)
				}
				block = "VMAX_VALUES"
			case "KM_VALUES":
				if len(fields) > 1 {
					m.KmDefault, _ = strconv.ParseFloat(fields[1], 64)
				}
				block = "KM_VALUES"
			case "HILL_COEFFICIENTS":
				if len(fields) > 1 {
					m.HillDefault, _ = strconv.ParseFloat(fields[1], 64)
				}
				block = "HILL_COEFFICIENTS"
			case "OBJECTIVE_STYLE":
				block = "OBJECTIVE_STYLE"
			case "OPTIMIZER":
				if len(fields) > 1 {
					m.Optimizer = fields[1]
				}
				block = "OPTIMIZER"
			default:
				return nil, fmt.Errorf("line %d: unknown block %q", lineNo, fields[0])
			}
			continue
		}

		switch block {
		case "SMATRIX":
			if len(fields) != 3 {
				return nil, fmt.Errorf("line %d: SMATRIX entry needs 3 fields", lineNo)
			}
			met, err1 := strconv.Atoi(fields[0])
			rxn, err2 := strconv.Atoi(fields[1])
			coef, err3 := strconv.ParseFloat(fields[2], 64)
			if err1 != nil || err2 != nil || err3 != nil {
				return nil, fmt.Errorf("line %d: malformed SMATRIX entry %q", lineNo, line)
			}
			smat = append(smat, smatEntry{met - 1, rxn - 1, coef})
		case "BOUNDS":
			if len(fields) != 3 {
				return nil, fmt.Errorf("line %d: BOUNDS entry needs 3 fields", lineNo)
			}
			rxn, err1 := strconv.Atoi(fields[0])
			lb, err2 := strconv.ParseFloat(fields[1], 64)
			ub, err3 := strconv.ParseFloat(fields[2], 64)
			if err1 != nil || err2 != nil || err3 != nil {
				return nil, fmt.Errorf("line %d: malformed BOUNDS entry %q", lineNo, line)
			}
			bounds = append(bounds, boundEntry{rxn - 1, lb, ub})
		case "OBJECTIVE":
			idx, err := strconv.Atoi(fields[0])
			if err != nil {
				return nil, fmt.Errorf("line %d: malformed OBJECTIVE entry %q", lineNo, line)
			}
			objective = idx - 1
		case "METABOLITE_NAMES":
			metNames = append(metNames, fields[0])
		case "REACTION_NAMES":
			rxnNames = append(rxnNames, fields[0])
		case "EXCHANGE_REACTIONS":
			for _, fv := range fields {
				idx, err := strconv.Atoi(fv)
				if err != nil {
					return nil, fmt.Errorf("line %d: malformed exchange index %q", lineNo, fv)
				}
				exchanges = append(exchanges, idx-1)
			}
		case "OBJECTIVE_STYLE":
			m.ObjectiveStyle = fields[0]
		case "VMAX_VALUES", "KM_VALUES", "HILL_COEFFICIENTS", "OPTIMIZER":
			// per-reaction overrides are accepted but not retained
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}

	if len(metNames) != nMets {
		return nil, fmt.Errorf("metabolite name count %d does not match SMATRIX dimension %d", len(metNames), nMets)
	}
	if len(rxnNames) != nRxns {
		return nil, fmt.Errorf("reaction name count %d does not match SMATRIX dimension %d", len(rxnNames), nRxns)
	}

	for _, name := range metNames {
		m.Metabolites = append(m.Metabolites, Metabolite{ID: name, Name: name})
	}
	for _, name := range rxnNames {
		m.Reactions = append(m.Reactions, Reaction{
			ID:         name,
			Name:       name,
			LowerBound: m.DefaultLB,
			UpperBound: m.DefaultUB,
			Stoich:     make(map[int]float64),
		})
	}
	for _, e := range smat {
		if e.rxn < 0 || e.rxn >= nRxns || e.met < 0 || e.met >= nMets {
			return nil, fmt.Errorf("SMATRIX entry (%d, %d) out of range", e.met+1, e.rxn+1)
		}
		m.Reactions[e.rxn].Stoich[e.met] = e.coef
	}
	for _, b := range bounds {
		if b.rxn < 0 || b.rxn >= nRxns {
			return nil, fmt.Errorf("BOUNDS entry for reaction %d out of range", b.rxn+1)
		}
		m.Reactions[b.rxn].LowerBound = b.lb
		m.Reactions[b.rxn].UpperBound = b.ub
	}
	if objective >= 0 {
		if objective >= nRxns {
			return nil, fmt.Errorf("OBJECTIVE index %d out of range", objective+1)
		}
		m.Reactions[objective].ObjectiveCoef = 1
	}
	for _, ri := range exchanges {
		if ri < 0 || ri >= nRxns {
			return nil, fmt.Errorf("exchange index %d out of range", ri+1)
		}
	}
	m.Exchanges = exchanges

	return m, nil
}

// formatFloat renders floats the way the engine files carry them: shortest
// decimal form, scientific notation for very small or large magnitudes.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
