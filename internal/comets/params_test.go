package comets

import (
	"bytes"
	"os"
	"sort"
	"strings"
	"testing"
)

func TestDefaultParams(t *testing.T) {
	p := DefaultParams()

	if p.Int("maxCycles") != 200 {
		t.Errorf("expected maxCycles 200, got %d", p.Int("maxCycles"))
	}
	if p.Float("timeStep") != 0.1 {
		t.Errorf("expected timeStep 0.1, got %g", p.Float("timeStep"))
	}
	if !p.Bool("writeTotalBiomassLog") {
		t.Error("expected writeTotalBiomassLog on by default")
	}
	if p.Bool("writeBiomassLog") {
		t.Error("expected writeBiomassLog off by default")
	}
	if p.String("exchangestyle") != "Monod Style" {
		t.Errorf("expected Monod Style exchange, got %q", p.String("exchangestyle"))
	}
	if p.String("TotalBiomassLogName") != TotalBiomassLogName {
		t.Errorf("expected default log name %q, got %q", TotalBiomassLogName, p.String("TotalBiomassLogName"))
	}

	if err := p.Validate(); err != nil {
		t.Errorf("expected defaults to validate, got: %v", err)
	}

	keys := p.Keys()
	if !sort.StringsAreSorted(keys) {
		t.Error("expected Keys to be sorted")
	}
	if len(keys) != len(paramDefs) {
		t.Errorf("expected %d keys, got %d", len(paramDefs), len(keys))
	}
}

func TestParamsSet(t *testing.T) {
	p := DefaultParams()

	tests := []struct {
		name   string
		key    string
		value  any
		errMsg string
	}{
		{name: "int for int key", key: "maxCycles", value: 500},
		{name: "whole float for int key", key: "maxCycles", value: 500.0},
		{name: "float for float key", key: "timeStep", value: 0.05},
		{name: "int for float key", key: "defaultVmax", value: 18},
		{name: "bool for bool key", key: "writeMediaLog", value: true},
		{name: "string for string key", key: "exchangestyle", value: "Standard FBA"},
		{
			name:   "unknown key",
			key:    "maxCycle",
			value:  10,
			errMsg: `unknown parameter "maxCycle"`,
		},
		{
			name:   "fractional float for int key",
			key:    "maxCycles",
			value:  10.5,
			errMsg: "wants an integer",
		},
		{
			name:   "string for int key",
			key:    "maxCycles",
			value:  "10",
			errMsg: "wants an integer",
		},
		{
			name:   "int for bool key",
			key:    "writeMediaLog",
			value:  1,
			errMsg: "wants a bool",
		},
		{
			name:   "bool for float key",
			key:    "timeStep",
			value:  true,
			errMsg: "wants a number",
		},
		{
			name:   "int for string key",
			key:    "exchangestyle",
			value:  3,
			errMsg: "wants a string",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.Set(tt.key, tt.value)
			if tt.errMsg == "" {
				if err != nil {
					t.Fatalf("expected Set to succeed, got: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Fatalf("expected error containing %q, got: %v", tt.errMsg, err)
			}
		})
	}

	// Coercions land as the key's declared type.
	p.Set("maxCycles", 120.0)
	if v, _ := p.Get("maxCycles"); v != 120 {
		t.Errorf("expected coerced int 120, got %v (%T)", v, v)
	}
	p.Set("defaultVmax", 18)
	if v, _ := p.Get("defaultVmax"); v != 18.0 {
		t.Errorf("expected coerced float 18, got %v (%T)", v, v)
	}
	if p.Float("defaultVmax") != 18 {
		t.Errorf("expected Float accessor 18, got %g", p.Float("defaultVmax"))
	}
}

func TestParamsAccessors_ZeroOnMismatch(t *testing.T) {
	p := DefaultParams()

	if p.Bool("maxCycles") {
		t.Error("expected Bool on an int key to be false")
	}
	if p.Int("exchangestyle") != 0 {
		t.Error("expected Int on a string key to be 0")
	}
	if p.Float("writeMediaLog") != 0 {
		t.Error("expected Float on a bool key to be 0")
	}
	if p.String("timeStep") != "" {
		t.Error("expected String on a float key to be empty")
	}
	if _, ok := p.Get("noSuchKey"); ok {
		t.Error("expected Get on an unknown key to report absence")
	}

	// Float reads int-typed keys too.
	if p.Float("maxCycles") != 200 {
		t.Errorf("expected Float(maxCycles) 200, got %g", p.Float("maxCycles"))
	}
}

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name   string
		tweak  func(p *Params)
		errMsg string
	}{
		{
			name:   "zero cycles",
			tweak:  func(p *Params) { p.Set("maxCycles", 0) },
			errMsg: "maxCycles must be positive",
		},
		{
			name:   "zero time step",
			tweak:  func(p *Params) { p.Set("timeStep", 0.0) },
			errMsg: "timeStep must be positive",
		},
		{
			name:   "zero space width",
			tweak:  func(p *Params) { p.Set("spaceWidth", 0.0) },
			errMsg: "spaceWidth must be positive",
		},
		{
			name:   "zero log rate",
			tweak:  func(p *Params) { p.Set("MediaLogRate", 0) },
			errMsg: "MediaLogRate must be positive",
		},
		{
			name:   "inverted biomass range",
			tweak:  func(p *Params) { p.Set("maxSpaceBiomass", 1e-12) },
			errMsg: "must exceed minSpaceBiomass",
		},
		{
			name:   "zero threads",
			tweak:  func(p *Params) { p.Set("numRunThreads", 0) },
			errMsg: "numRunThreads must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.tweak(p)
			err := p.Validate()
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Fatalf("expected error containing %q, got: %v", tt.errMsg, err)
			}
		})
	}
}

func TestParamsWrite(t *testing.T) {
	p := DefaultParams()
	p.Set("maxCycles", 240)
	p.Set("writeMediaLog", true)

	var global bytes.Buffer
	if err := p.WriteGlobal(&global); err != nil {
		t.Fatalf("expected WriteGlobal to succeed, got: %v", err)
	}
	var pkg bytes.Buffer
	if err := p.WritePackage(&pkg); err != nil {
		t.Fatalf("expected WritePackage to succeed, got: %v", err)
	}

	g := global.String()
	for _, want := range []string{
		"maxCycles = 240\n",
		"timeStep = 0.1\n",
		"writeMediaLog = true\n",
		"writeBiomassLog = false\n",
		"TotalBiomassLogName = total_biomass.txt\n",
	} {
		if !strings.Contains(g, want) {
			t.Errorf("expected global file to contain %q, got:\n%s", want, g)
		}
	}
	if strings.Contains(g, "spaceWidth") {
		t.Error("expected spatial keys out of the global file")
	}

	k := pkg.String()
	for _, want := range []string{
		"spaceWidth = 0.02\n",
		"exchangestyle = Monod Style\n",
		"minSpaceBiomass = 2.5e-11\n",
		"allowCellOverlap = true\n",
	} {
		if !strings.Contains(k, want) {
			t.Errorf("expected package file to contain %q, got:\n%s", want, k)
		}
	}
	if strings.Contains(k, "maxCycles") {
		t.Error("expected global keys out of the package file")
	}

	// Lines come out in sorted key order within each file.
	var gkeys []string
	for _, line := range strings.Split(strings.TrimSpace(g), "\n") {
		gkeys = append(gkeys, strings.SplitN(line, " = ", 2)[0])
	}
	if !sort.StringsAreSorted(gkeys) {
		t.Errorf("expected sorted global keys, got %v", gkeys)
	}
}

func TestParamsWriteFiles(t *testing.T) {
	p := DefaultParams()
	dir := t.TempDir()

	globalPath, packagePath, err := p.WriteFiles(dir)
	if err != nil {
		t.Fatalf("expected WriteFiles to succeed, got: %v", err)
	}
	if !strings.HasSuffix(globalPath, "global_params.txt") {
		t.Errorf("expected global_params.txt, got %q", globalPath)
	}
	if !strings.HasSuffix(packagePath, "package_params.txt") {
		t.Errorf("expected package_params.txt, got %q", packagePath)
	}

	data, err := os.ReadFile(globalPath)
	if err != nil {
		t.Fatalf("expected to read global params, got: %v", err)
	}
	if !strings.Contains(string(data), "maxCycles = 200\n") {
		t.Errorf("expected default maxCycles line, got:\n%s", data)
	}
}
