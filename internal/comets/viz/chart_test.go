package viz

import (
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestMediaChart(t *testing.T) {
	cycles := []int{0, 10, 20, 30}
	totals := []float64{110, 84, 52, 31}

	path := filepath.Join(t.TempDir(), "glc.png")
	if err := MediaChart(cycles, totals, "glc__D_e", path); err != nil {
		t.Fatalf("expected chart to succeed, got %v", err)
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

func TestMediaChart_Errors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "glc.png")

	err := MediaChart(nil, nil, "glc__D_e", path)
	if err == nil || !strings.Contains(err.Error(), "empty media series") {
		t.Errorf("expected empty-series error, got %v", err)
	}

	err = MediaChart([]int{0, 1}, []float64{3, 2, 1}, "glc__D_e", path)
	if err == nil || !strings.Contains(err.Error(), "2 cycles but 3 totals") {
		t.Errorf("expected length-mismatch error, got %v", err)
	}
}
