package comets

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// The engine writes MATLAB-style text logs. Coordinates and metabolite
// indices inside them are 1-based; everything returned from the parsers
// here is 0-based. Matrix allocation lines ("... = sparse(w, h);",
// "... = cell(1, n);") carry no data and are skipped.

// TotalBiomassSeries is the parsed total biomass log: one row per logged
// cycle with the grid-summed biomass of every model.
type TotalBiomassSeries struct {
	Cycles  []int
	Biomass [][]float64
}

// NumModels returns the number of model columns.
func (s *TotalBiomassSeries) NumModels() int {
	if len(s.Biomass) == 0 {
		return 0
	}
	return len(s.Biomass[0])
}

// Model returns the biomass time course of one model.
func (s *TotalBiomassSeries) Model(i int) ([]float64, error) {
	if i < 0 || i >= s.NumModels() {
		return nil, fmt.Errorf("model index %d out of range (%d models)", i, s.NumModels())
	}
	out := make([]float64, len(s.Biomass))
	for row := range s.Biomass {
		out[row] = s.Biomass[row][i]
	}
	return out, nil
}

// Final returns the biomass of every model at the last logged cycle.
func (s *TotalBiomassSeries) Final() []float64 {
	if len(s.Biomass) == 0 {
		return nil
	}
	last := s.Biomass[len(s.Biomass)-1]
	out := make([]float64, len(last))
	copy(out, last)
	return out
}

// ParseTotalBiomass parses the tab-separated total biomass log: each row
// is a cycle number followed by one biomass value per model.
func ParseTotalBiomass(r io.Reader) (*TotalBiomassSeries, error) {
	s := &TotalBiomassSeries{}
	sc := newLogScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, fmt.Errorf("line %d: total biomass row needs a cycle and at least one value", lineNo)
		}
		cycle, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: malformed cycle %q", lineNo, fields[0])
		}
		row := make([]float64, len(fields)-1)
		for i, fv := range fields[1:] {
			v, err := strconv.ParseFloat(fv, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: malformed biomass value %q", lineNo, fv)
			}
			row[i] = v
		}
		if s.NumModels() != 0 && len(row) != s.NumModels() {
			return nil, fmt.Errorf("line %d: row has %d values, expected %d", lineNo, len(row), s.NumModels())
		}
		s.Cycles = append(s.Cycles, cycle)
		s.Biomass = append(s.Biomass, row)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read total biomass log: %w", err)
	}
	return s, nil
}

// ReadTotalBiomassFile parses the total biomass log at path.
func ReadTotalBiomassFile(path string) (*TotalBiomassSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open total biomass log: %w", err)
	}
	defer f.Close()
	s, err := ParseTotalBiomass(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// BiomassLog is the parsed spatial biomass log: per logged cycle and
// model, the occupied cells and their biomass.
type BiomassLog struct {
	entries   map[int]map[int]map[Cell]float64
	numModels int
}

// Cycles returns the logged cycles in ascending order.
func (bl *BiomassLog) Cycles() []int {
	out := make([]int, 0, len(bl.entries))
	for c := range bl.entries {
		out = append(out, c)
	}
	sort.Ints(out)
	return out
}

// NumModels returns the number of models seen in the log.
func (bl *BiomassLog) NumModels() int {
	return bl.numModels
}

// Field densifies one cycle and model onto the grid, returning a
// row-major [height][width] matrix.
func (bl *BiomassLog) Field(cycle, model int, grid Grid) ([][]float64, error) {
	byModel, ok := bl.entries[cycle]
	if !ok {
		return nil, fmt.Errorf("cycle %d not present in biomass log", cycle)
	}
	field := newField(grid)
	for c, v := range byModel[model] {
		if !grid.Contains(c) {
			return nil, fmt.Errorf("biomass log cell (%d, %d) outside the %dx%d grid", c.X, c.Y, grid.Width, grid.Height)
		}
		field[c.Y][c.X] = v
	}
	return field, nil
}

// ParseBiomassLog parses the spatial biomass log. Data lines look like
// "biomass_<cycle>_<model>(x, y) = 1.5E-6;".
func ParseBiomassLog(r io.Reader) (*BiomassLog, error) {
	bl := &BiomassLog{entries: make(map[int]map[int]map[Cell]float64)}
	sc := newLogScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.Contains(line, "sparse(") {
			continue
		}
		if !strings.HasPrefix(line, "biomass_") {
			return nil, fmt.Errorf("line %d: unexpected biomass log line %q", lineNo, line)
		}
		rest := line[len("biomass_"):]
		open := strings.IndexByte(rest, '(')
		if open < 0 {
			return nil, fmt.Errorf("line %d: malformed biomass log line %q", lineNo, line)
		}
		var cycle, model int
		if _, err := fmt.Sscanf(rest[:open], "%d_%d", &cycle, &model); err != nil {
			return nil, fmt.Errorf("line %d: malformed cycle/model in %q", lineNo, line)
		}
		cell, value, err := parseCellAssignment(rest[open:])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		byModel := bl.entries[cycle]
		if byModel == nil {
			byModel = make(map[int]map[Cell]float64)
			bl.entries[cycle] = byModel
		}
		if byModel[model] == nil {
			byModel[model] = make(map[Cell]float64)
		}
		byModel[model][cell] = value
		if model+1 > bl.numModels {
			bl.numModels = model + 1
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read biomass log: %w", err)
	}
	return bl, nil
}

// ReadBiomassLogFile parses the spatial biomass log at path.
func ReadBiomassLogFile(path string) (*BiomassLog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open biomass log: %w", err)
	}
	defer f.Close()
	bl, err := ParseBiomassLog(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return bl, nil
}

// MediaLog is the parsed media log: per logged cycle and metabolite, the
// cells whose concentration differs from zero.
type MediaLog struct {
	entries map[int]map[int]map[Cell]float64
	numMets int
}

// Cycles returns the logged cycles in ascending order.
func (ml *MediaLog) Cycles() []int {
	out := make([]int, 0, len(ml.entries))
	for c := range ml.entries {
		out = append(out, c)
	}
	sort.Ints(out)
	return out
}

// NumMetabolites returns the number of metabolite slots seen in the log.
func (ml *MediaLog) NumMetabolites() int {
	return ml.numMets
}

// Field densifies one cycle and metabolite index onto the grid.
func (ml *MediaLog) Field(cycle, met int, grid Grid) ([][]float64, error) {
	byMet, ok := ml.entries[cycle]
	if !ok {
		return nil, fmt.Errorf("cycle %d not present in media log", cycle)
	}
	field := newField(grid)
	for c, v := range byMet[met] {
		if !grid.Contains(c) {
			return nil, fmt.Errorf("media log cell (%d, %d) outside the %dx%d grid", c.X, c.Y, grid.Width, grid.Height)
		}
		field[c.Y][c.X] = v
	}
	return field, nil
}

// FieldNamed densifies one cycle of a metabolite resolved by name
// through the layout's media ordering.
func (ml *MediaLog) FieldNamed(cycle int, name string, media *MediaSpec, grid Grid) ([][]float64, error) {
	idx, ok := media.MetaboliteIndex(name)
	if !ok {
		return nil, fmt.Errorf("metabolite %q is not part of the layout media", name)
	}
	return ml.Field(cycle, idx, grid)
}

// ParseMediaLog parses the media log. Data lines look like
// "media_<cycle>{<met>}(x, y) = 2.0E-5;".
func ParseMediaLog(r io.Reader) (*MediaLog, error) {
	ml := &MediaLog{entries: make(map[int]map[int]map[Cell]float64)}
	sc := newLogScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.Contains(line, "sparse(") || strings.Contains(line, "cell(") {
			continue
		}
		if !strings.HasPrefix(line, "media_") {
			return nil, fmt.Errorf("line %d: unexpected media log line %q", lineNo, line)
		}
		rest := line[len("media_"):]
		open := strings.IndexByte(rest, '(')
		if open < 0 {
			return nil, fmt.Errorf("line %d: malformed media log line %q", lineNo, line)
		}
		var cycle, met int
		if _, err := fmt.Sscanf(rest[:open], "%d{%d}", &cycle, &met); err != nil {
			return nil, fmt.Errorf("line %d: malformed cycle/metabolite in %q", lineNo, line)
		}
		cell, value, err := parseCellAssignment(rest[open:])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		met-- // 1-based in the log
		byMet := ml.entries[cycle]
		if byMet == nil {
			byMet = make(map[int]map[Cell]float64)
			ml.entries[cycle] = byMet
		}
		if byMet[met] == nil {
			byMet[met] = make(map[Cell]float64)
		}
		byMet[met][cell] = value
		if met+1 > ml.numMets {
			ml.numMets = met + 1
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read media log: %w", err)
	}
	return ml, nil
}

// ReadMediaLogFile parses the media log at path.
func ReadMediaLogFile(path string) (*MediaLog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open media log: %w", err)
	}
	defer f.Close()
	ml, err := ParseMediaLog(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ml, nil
}

// FluxLog is the parsed flux log: per logged cycle, cell and model, the
// full flux vector the solver assigned.
type FluxLog struct {
	entries map[int]map[Cell]map[int][]float64
}

// Cycles returns the logged cycles in ascending order.
func (fl *FluxLog) Cycles() []int {
	out := make([]int, 0, len(fl.entries))
	for c := range fl.entries {
		out = append(out, c)
	}
	sort.Ints(out)
	return out
}

// At returns the flux vector of one model in one cell at one cycle.
func (fl *FluxLog) At(cycle int, c Cell, model int) ([]float64, bool) {
	byCell, ok := fl.entries[cycle]
	if !ok {
		return nil, false
	}
	byModel, ok := byCell[c]
	if !ok {
		return nil, false
	}
	fluxes, ok := byModel[model]
	return fluxes, ok
}

// ParseFluxLog parses the flux log. Data lines look like
// "fluxes{<cycle>}{<x>}{<y>}{<model>} = [0.1 -2.5 ...];".
func ParseFluxLog(r io.Reader) (*FluxLog, error) {
	fl := &FluxLog{entries: make(map[int]map[Cell]map[int][]float64)}
	sc := newLogScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "fluxes{") {
			return nil, fmt.Errorf("line %d: unexpected flux log line %q", lineNo, line)
		}
		var cycle, x, y, model int
		header := line[len("fluxes"):]
		if _, err := fmt.Sscanf(header, "{%d}{%d}{%d}{%d}", &cycle, &x, &y, &model); err != nil {
			return nil, fmt.Errorf("line %d: malformed flux log indices in %q", lineNo, line)
		}
		openBracket := strings.IndexByte(line, '[')
		closeBracket := strings.LastIndexByte(line, ']')
		if openBracket < 0 || closeBracket < openBracket {
			return nil, fmt.Errorf("line %d: malformed flux vector in %q", lineNo, line)
		}
		fields := strings.Fields(line[openBracket+1 : closeBracket])
		fluxes := make([]float64, len(fields))
		for i, fv := range fields {
			v, err := strconv.ParseFloat(fv, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: malformed flux value %q", lineNo, fv)
			}
			fluxes[i] = v
		}
		cell := Cell{X: x - 1, Y: y - 1}
		byCell := fl.entries[cycle]
		if byCell == nil {
			byCell = make(map[Cell]map[int][]float64)
			fl.entries[cycle] = byCell
		}
		if byCell[cell] == nil {
			byCell[cell] = make(map[int][]float64)
		}
		byCell[cell][model-1] = fluxes
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read flux log: %w", err)
	}
	return fl, nil
}

// ReadFluxLogFile parses the flux log at path.
func ReadFluxLogFile(path string) (*FluxLog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open flux log: %w", err)
	}
	defer f.Close()
	fl, err := ParseFluxLog(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return fl, nil
}

// parseCellAssignment parses the "(x, y) = value;" tail shared by the
// biomass and media log grammars, converting coordinates to 0-based.
func parseCellAssignment(s string) (Cell, float64, error) {
	closeParen := strings.IndexByte(s, ')')
	if !strings.HasPrefix(s, "(") || closeParen < 0 {
		return Cell{}, 0, fmt.Errorf("malformed cell reference %q", s)
	}
	coords := strings.Split(s[1:closeParen], ",")
	if len(coords) != 2 {
		return Cell{}, 0, fmt.Errorf("malformed cell reference %q", s)
	}
	x, err1 := strconv.Atoi(strings.TrimSpace(coords[0]))
	y, err2 := strconv.Atoi(strings.TrimSpace(coords[1]))
	if err1 != nil || err2 != nil {
		return Cell{}, 0, fmt.Errorf("malformed coordinates %q", s[:closeParen+1])
	}
	rest := strings.TrimSpace(s[closeParen+1:])
	rest = strings.TrimPrefix(rest, "=")
	rest = strings.TrimSuffix(strings.TrimSpace(rest), ";")
	value, err := strconv.ParseFloat(strings.TrimSpace(rest), 64)
	if err != nil {
		return Cell{}, 0, fmt.Errorf("malformed value in %q", s)
	}
	return Cell{X: x - 1, Y: y - 1}, value, nil
}

// newField allocates a zeroed row-major [height][width] matrix.
func newField(grid Grid) [][]float64 {
	field := make([][]float64, grid.Height)
	for y := range field {
		field[y] = make([]float64, grid.Width)
	}
	return field
}

func newLogScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return sc
}
