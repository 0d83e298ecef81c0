package viz

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testFrames() []Frame {
	return []Frame{
		{Cycle: 0, Field: [][]float64{{0, 0}, {1, 0}}},
		{Cycle: 10, Field: [][]float64{{0, 1}, {2, 1}}},
		{Cycle: 20, Field: [][]float64{{1, 2}, {4, 2}}},
	}
}

func TestTimelapse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "colony.avi")

	if err := Timelapse(testFrames(), HeatmapOptions{Scale: 16}, path, 2); err != nil {
		t.Fatalf("expected encoding to succeed, got %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected the file to exist, got %v", err)
	}
	if len(data) < 12 {
		t.Fatalf("expected a non-trivial movie, got %d bytes", len(data))
	}
	if string(data[:4]) != "RIFF" || string(data[8:12]) != "AVI " {
		t.Errorf("expected a RIFF AVI container, got header %q", data[:12])
	}
}

func TestTimelapse_DefaultFPS(t *testing.T) {
	path := filepath.Join(t.TempDir(), "colony.avi")

	if err := Timelapse(testFrames(), HeatmapOptions{}, path, 0); err != nil {
		t.Fatalf("expected encoding to succeed with the default rate, got %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected the file to exist, got %v", err)
	}
}

func TestTimelapse_Errors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "colony.avi")

	err := Timelapse(nil, HeatmapOptions{}, path, 4)
	if err == nil || !strings.Contains(err.Error(), "without frames") {
		t.Errorf("expected no-frames error, got %v", err)
	}

	mixed := []Frame{
		{Cycle: 0, Field: [][]float64{{0, 1}}},
		{Cycle: 10, Field: [][]float64{{0}, {1}}},
	}
	err = Timelapse(mixed, HeatmapOptions{}, path, 4)
	if err == nil || !strings.Contains(err.Error(), "frame 1 has size") {
		t.Errorf("expected size-mismatch error, got %v", err)
	}
}

func TestFrameOptions(t *testing.T) {
	got := frameOptions(HeatmapOptions{}, 5)
	if got.Label != "cycle 5" {
		t.Errorf("expected label 'cycle 5', got %q", got.Label)
	}

	got = frameOptions(HeatmapOptions{Label: "glucose"}, 5)
	if got.Label != "glucose, cycle 5" {
		t.Errorf("expected label 'glucose, cycle 5', got %q", got.Label)
	}
}
