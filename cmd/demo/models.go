package main

import "cometskit/internal/comets"

// fermenterModel builds a toy glucose fermenter: it takes up glucose
// and a little oxygen and leaks acetate into the shared environment.
func fermenterModel() *comets.Model {
	m := comets.NewModel("fermenter")

	glc := m.AddMetabolite(comets.Metabolite{ID: "glc__D_e", Name: "D-Glucose", Compartment: "e"})
	o2 := m.AddMetabolite(comets.Metabolite{ID: "o2_e", Name: "Oxygen", Compartment: "e"})
	ac := m.AddMetabolite(comets.Metabolite{ID: "ac_e", Name: "Acetate", Compartment: "e"})

	m.AddReaction(comets.Reaction{
		ID: "EX_glc__D_e", Name: "Glucose exchange",
		LowerBound: -10, UpperBound: 1000,
		Stoich: map[int]float64{glc: -1},
	})
	m.AddReaction(comets.Reaction{
		ID: "EX_o2_e", Name: "Oxygen exchange",
		LowerBound: -5, UpperBound: 1000,
		Stoich: map[int]float64{o2: -1},
	})
	m.AddReaction(comets.Reaction{
		ID: "EX_ac_e", Name: "Acetate exchange",
		LowerBound: -1000, UpperBound: 1000,
		Stoich: map[int]float64{ac: -1},
	})
	m.AddReaction(comets.Reaction{
		ID: "GROWTH_fermenter", Name: "Fermentative growth",
		LowerBound: 0, UpperBound: 1000, ObjectiveCoef: 1,
		Stoich: map[int]float64{glc: -1, o2: -0.5, ac: 1.5},
	})

	m.DetectExchanges()
	return m
}

// scavengerModel builds the cross-feeding partner: an obligate aerobe
// that grows on the fermenter's acetate.
func scavengerModel() *comets.Model {
	m := comets.NewModel("scavenger")

	ac := m.AddMetabolite(comets.Metabolite{ID: "ac_e", Name: "Acetate", Compartment: "e"})
	o2 := m.AddMetabolite(comets.Metabolite{ID: "o2_e", Name: "Oxygen", Compartment: "e"})

	m.AddReaction(comets.Reaction{
		ID: "EX_ac_e", Name: "Acetate exchange",
		LowerBound: -8, UpperBound: 1000,
		Stoich: map[int]float64{ac: -1},
	})
	m.AddReaction(comets.Reaction{
		ID: "EX_o2_e", Name: "Oxygen exchange",
		LowerBound: -20, UpperBound: 1000,
		Stoich: map[int]float64{o2: -1},
	})
	m.AddReaction(comets.Reaction{
		ID: "GROWTH_scavenger", Name: "Aerobic growth on acetate",
		LowerBound: 0, UpperBound: 1000, ObjectiveCoef: 1,
		Stoich: map[int]float64{ac: -1, o2: -1},
	})

	m.DetectExchanges()
	return m
}
