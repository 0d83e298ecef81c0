package comets

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// SBML decode structs. Only the subset genome-scale models actually use is
// mapped: species, reactions with stoichiometry, flux bounds (FBC v2
// attributes resolved through the parameter list, or the older
// kinetic-law parameter convention) and the active objective. Namespaced
// elements and attributes (fbc:*) are matched by local name.
type sbmlDocument struct {
	XMLName xml.Name  `xml:"sbml"`
	Level   int       `xml:"level,attr"`
	Version int       `xml:"version,attr"`
	Model   sbmlModel `xml:"model"`
}

type sbmlModel struct {
	ID         string          `xml:"id,attr"`
	Name       string          `xml:"name,attr"`
	Species    []sbmlSpecies   `xml:"listOfSpecies>species"`
	Reactions  []sbmlReaction  `xml:"listOfReactions>reaction"`
	Parameters []sbmlParameter `xml:"listOfParameters>parameter"`
	Objectives sbmlObjectives  `xml:"listOfObjectives"`
}

type sbmlSpecies struct {
	ID                string `xml:"id,attr"`
	Name              string `xml:"name,attr"`
	Compartment       string `xml:"compartment,attr"`
	BoundaryCondition bool   `xml:"boundaryCondition,attr"`
}

type sbmlSpeciesRef struct {
	Species       string `xml:"species,attr"`
	Stoichiometry string `xml:"stoichiometry,attr"`
}

type sbmlReaction struct {
	ID             string           `xml:"id,attr"`
	Name           string           `xml:"name,attr"`
	Reversible     string           `xml:"reversible,attr"`
	LowerFluxBound string           `xml:"lowerFluxBound,attr"`
	UpperFluxBound string           `xml:"upperFluxBound,attr"`
	Reactants      []sbmlSpeciesRef `xml:"listOfReactants>speciesReference"`
	Products       []sbmlSpeciesRef `xml:"listOfProducts>speciesReference"`
	KineticLaw     *sbmlKineticLaw  `xml:"kineticLaw"`
}

type sbmlKineticLaw struct {
	Parameters      []sbmlParameter `xml:"listOfParameters>parameter"`
	LocalParameters []sbmlParameter `xml:"listOfLocalParameters>localParameter"`
}

type sbmlParameter struct {
	ID    string  `xml:"id,attr"`
	Value float64 `xml:"value,attr"`
}

type sbmlObjectives struct {
	ActiveObjective string          `xml:"activeObjective,attr"`
	Objectives      []sbmlObjective `xml:"objective"`
}

type sbmlObjective struct {
	ID             string              `xml:"id,attr"`
	FluxObjectives []sbmlFluxObjective `xml:"listOfFluxObjectives>fluxObjective"`
}

type sbmlFluxObjective struct {
	Reaction    string  `xml:"reaction,attr"`
	Coefficient float64 `xml:"coefficient,attr"`
}

// LoadSBML reads a genome-scale metabolic model from an SBML file and
// converts it to the simulator representation. Boundary species are
// removed, exchange reactions are detected and flux bounds are resolved
// from whichever convention the file uses.
func LoadSBML(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SBML file: %w", err)
	}
	defer f.Close()
	m, err := ParseSBML(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if m.ID == "" {
		m.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return m, nil
}

// ParseSBML decodes SBML from r and converts it to a Model.
func ParseSBML(r io.Reader) (*Model, error) {
	var doc sbmlDocument
	dec := xml.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode SBML: %w", err)
	}
	if len(doc.Model.Reactions) == 0 {
		return nil, fmt.Errorf("SBML model %q declares no reactions", doc.Model.ID)
	}

	m := NewModel(doc.Model.ID)

	// Boundary species are the environment side of exchange fluxes; they
	// are dropped so that exchange reactions become one-sided. The legacy
	// "_b" suffix convention is honored alongside the explicit flag.
	boundary := make(map[string]bool)
	metIndex := make(map[string]int)
	for _, sp := range doc.Model.Species {
		if sp.BoundaryCondition || strings.HasSuffix(sp.ID, "_b") {
			boundary[sp.ID] = true
			continue
		}
		idx := m.AddMetabolite(Metabolite{ID: sp.ID, Name: sp.Name, Compartment: sp.Compartment})
		metIndex[sp.ID] = idx
	}
	if len(m.Metabolites) == 0 {
		return nil, fmt.Errorf("SBML model %q declares no non-boundary species", doc.Model.ID)
	}

	params := make(map[string]float64, len(doc.Model.Parameters))
	for _, p := range doc.Model.Parameters {
		params[p.ID] = p.Value
	}

	for _, rx := range doc.Model.Reactions {
		lb, ub, err := resolveBounds(rx, params)
		if err != nil {
			return nil, fmt.Errorf("reaction %s: %w", rx.ID, err)
		}
		r := Reaction{
			ID:            rx.ID,
			Name:          rx.Name,
			LowerBound:    lb,
			UpperBound:    ub,
			ObjectiveCoef: kineticParam(rx.KineticLaw, "OBJECTIVE_COEFFICIENT", 0),
			Stoich:        make(map[int]float64),
		}
		for _, ref := range rx.Reactants {
			if boundary[ref.Species] {
				continue
			}
			idx, ok := metIndex[ref.Species]
			if !ok {
				return nil, fmt.Errorf("reaction %s references unknown species %q", rx.ID, ref.Species)
			}
			r.Stoich[idx] -= refStoichiometry(ref)
		}
		for _, ref := range rx.Products {
			if boundary[ref.Species] {
				continue
			}
			idx, ok := metIndex[ref.Species]
			if !ok {
				return nil, fmt.Errorf("reaction %s references unknown species %q", rx.ID, ref.Species)
			}
			r.Stoich[idx] += refStoichiometry(ref)
		}
		m.AddReaction(r)
	}

	applyFBCObjective(m, doc.Model.Objectives)
	if _, ok := m.Objective(); !ok {
		// Older files leave the objective implicit; fall back to the
		// biomass reaction when there is exactly one candidate.
		candidate := -1
		for i := range m.Reactions {
			if strings.Contains(strings.ToLower(m.Reactions[i].ID), "biomass") {
				if candidate >= 0 {
					candidate = -1
					break
				}
				candidate = i
			}
		}
		if candidate >= 0 {
			m.Reactions[candidate].ObjectiveCoef = 1
		}
	}

	m.DetectExchanges()
	return m, nil
}

// resolveBounds finds a reaction's flux bounds. FBC v2 files reference
// shared parameters by ID; level 2 files carry LOWER_BOUND/UPPER_BOUND
// kinetic-law parameters; anything else gets the defaults for its
// reversibility.
func resolveBounds(rx sbmlReaction, params map[string]float64) (float64, float64, error) {
	lb := DefaultLowerBound
	if !reversible(rx) {
		lb = 0
	}
	ub := DefaultUpperBound

	if rx.LowerFluxBound != "" {
		v, ok := params[rx.LowerFluxBound]
		if !ok {
			return 0, 0, fmt.Errorf("lower flux bound references unknown parameter %q", rx.LowerFluxBound)
		}
		lb = v
	} else {
		lb = kineticParam(rx.KineticLaw, "LOWER_BOUND", lb)
	}

	if rx.UpperFluxBound != "" {
		v, ok := params[rx.UpperFluxBound]
		if !ok {
			return 0, 0, fmt.Errorf("upper flux bound references unknown parameter %q", rx.UpperFluxBound)
		}
		ub = v
	} else {
		ub = kineticParam(rx.KineticLaw, "UPPER_BOUND", ub)
	}

	if lb > ub {
		return 0, 0, fmt.Errorf("lower bound %g exceeds upper bound %g", lb, ub)
	}
	return lb, ub, nil
}

// reversible reports the reaction's reversibility; SBML defaults to true
// when the attribute is absent.
func reversible(rx sbmlReaction) bool {
	if rx.Reversible == "" {
		return true
	}
	v, err := strconv.ParseBool(rx.Reversible)
	if err != nil {
		return true
	}
	return v
}

// kineticParam looks up a named parameter in a reaction's kinetic law.
func kineticParam(kl *sbmlKineticLaw, id string, fallback float64) float64 {
	if kl == nil {
		return fallback
	}
	for _, p := range kl.Parameters {
		if p.ID == id {
			return p.Value
		}
	}
	for _, p := range kl.LocalParameters {
		if p.ID == id {
			return p.Value
		}
	}
	return fallback
}

// refStoichiometry parses a species reference's stoichiometry, defaulting
// to 1 when the attribute is absent.
func refStoichiometry(ref sbmlSpeciesRef) float64 {
	if ref.Stoichiometry == "" {
		return 1
	}
	v, err := strconv.ParseFloat(ref.Stoichiometry, 64)
	if err != nil {
		return 1
	}
	return v
}

// applyFBCObjective transfers the active FBC objective onto the model's
// reactions.
func applyFBCObjective(m *Model, objs sbmlObjectives) {
	var active *sbmlObjective
	for i := range objs.Objectives {
		if objs.Objectives[i].ID == objs.ActiveObjective {
			active = &objs.Objectives[i]
			break
		}
	}
	if active == nil && len(objs.Objectives) > 0 {
		active = &objs.Objectives[0]
	}
	if active == nil {
		return
	}
	for _, fo := range active.FluxObjectives {
		if i, ok := m.ReactionIndex(fo.Reaction); ok {
			coef := fo.Coefficient
			if coef == 0 {
				coef = 1
			}
			m.Reactions[i].ObjectiveCoef = coef
		}
	}
}
