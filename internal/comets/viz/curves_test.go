package viz

import (
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cometskit/internal/comets"
)

func TestGrowthCurves(t *testing.T) {
	series := &comets.TotalBiomassSeries{
		Cycles: []int{0, 1, 2, 3},
		Biomass: [][]float64{
			{1e-7, 5e-8},
			{2e-7, 6e-8},
			{4e-7, 9e-8},
			{8e-7, 1.5e-7},
		},
	}

	path := filepath.Join(t.TempDir(), "growth.png")
	// One name short: the second line falls back to a generated label.
	if err := GrowthCurves(series, []string{"e_coli"}, path); err != nil {
		t.Fatalf("expected plot to succeed, got %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("expected the file to exist, got %v", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("expected a decodable PNG, got %v", err)
	}
	if img.Bounds().Dx() == 0 || img.Bounds().Dy() == 0 {
		t.Errorf("expected a non-empty image, got bounds %v", img.Bounds())
	}
}

func TestGrowthCurves_Errors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "growth.png")

	err := GrowthCurves(nil, nil, path)
	if err == nil || !strings.Contains(err.Error(), "empty biomass series") {
		t.Errorf("expected empty-series error, got %v", err)
	}

	err = GrowthCurves(&comets.TotalBiomassSeries{}, nil, path)
	if err == nil || !strings.Contains(err.Error(), "empty biomass series") {
		t.Errorf("expected empty-series error, got %v", err)
	}

	if _, statErr := os.Stat(path); statErr == nil {
		t.Error("expected no file to be written on error")
	}
}
