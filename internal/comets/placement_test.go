package comets

import (
	"math/rand"
	"testing"
)

func TestRockClusters(t *testing.T) {
	grid, _ := NewGrid(20, 20)
	rng := rand.New(rand.NewSource(1))

	cells, err := RockClusters(grid, 5, 6, rng)
	if err != nil {
		t.Fatalf("expected RockClusters to succeed, got: %v", err)
	}
	if len(cells) != 30 {
		t.Fatalf("expected 30 rock cells (5 clusters of mean size 6), got %d", len(cells))
	}

	seen := make(map[Cell]bool, len(cells))
	for _, c := range cells {
		if !grid.Contains(c) {
			t.Errorf("expected rock %v inside the grid", c)
		}
		if seen[c] {
			t.Errorf("expected unique rocks, got duplicate %v", c)
		}
		seen[c] = true
	}
}

func TestRockClusters_Reproducible(t *testing.T) {
	grid, _ := NewGrid(15, 15)

	a, err := RockClusters(grid, 4, 5, rand.New(rand.NewSource(42)))
	if err != nil {
		t.Fatalf("expected RockClusters to succeed, got: %v", err)
	}
	b, err := RockClusters(grid, 4, 5, rand.New(rand.NewSource(42)))
	if err != nil {
		t.Fatalf("expected RockClusters to succeed, got: %v", err)
	}

	if len(a) != len(b) {
		t.Fatalf("expected identical runs for the same seed, got %d and %d cells", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("expected identical cell order for the same seed, differs at %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestRockClusters_Errors(t *testing.T) {
	grid, _ := NewGrid(5, 5)
	rng := rand.New(rand.NewSource(1))

	tests := []struct {
		name     string
		clusters int
		meanSize float64
	}{
		{"negative clusters", -1, 5},
		{"non-positive mean size", 2, 0},
		{"area exceeds grid", 5, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := RockClusters(grid, tt.clusters, tt.meanSize, rng); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}

	// Zero clusters is a no-op, not an error.
	cells, err := RockClusters(grid, 0, 5, rng)
	if err != nil {
		t.Errorf("expected zero clusters to succeed, got: %v", err)
	}
	if len(cells) != 0 {
		t.Errorf("expected no cells, got %d", len(cells))
	}
}

func TestScatterFounders(t *testing.T) {
	grid, _ := NewGrid(10, 10)
	rng := rand.New(rand.NewSource(7))

	forbidden := map[Cell]bool{}
	for x := 0; x < 10; x++ {
		forbidden[Cell{X: x, Y: 0}] = true
	}

	cells, err := ScatterFounders(grid, 12, forbidden, rng)
	if err != nil {
		t.Fatalf("expected ScatterFounders to succeed, got: %v", err)
	}
	if len(cells) != 12 {
		t.Fatalf("expected 12 colonies, got %d", len(cells))
	}

	seen := make(map[Cell]bool, len(cells))
	for _, c := range cells {
		if forbidden[c] {
			t.Errorf("expected colony %v off the forbidden row", c)
		}
		if !grid.Contains(c) {
			t.Errorf("expected colony %v inside the grid", c)
		}
		if seen[c] {
			t.Errorf("expected unique colonies, got duplicate %v", c)
		}
		seen[c] = true
	}
}

func TestScatterFounders_FullGrid(t *testing.T) {
	grid, _ := NewGrid(3, 3)
	rng := rand.New(rand.NewSource(1))

	forbidden := map[Cell]bool{}
	for x := 0; x < 3; x++ {
		for y := 0; y < 3; y++ {
			forbidden[Cell{X: x, Y: y}] = true
		}
	}
	delete(forbidden, Cell{X: 1, Y: 1})

	// One free cell: asking for one works, asking for two fails fast.
	cells, err := ScatterFounders(grid, 1, forbidden, rng)
	if err != nil {
		t.Fatalf("expected one colony to fit, got: %v", err)
	}
	if len(cells) != 1 || cells[0] != (Cell{X: 1, Y: 1}) {
		t.Errorf("expected the single free cell, got %v", cells)
	}

	if _, err := ScatterFounders(grid, 2, forbidden, rng); err == nil {
		t.Error("expected error when colonies outnumber free cells, got nil")
	}

	if _, err := ScatterFounders(grid, -1, nil, rng); err == nil {
		t.Error("expected error for negative count, got nil")
	}

	cells, err = ScatterFounders(grid, 0, nil, rng)
	if err != nil || len(cells) != 0 {
		t.Errorf("expected zero colonies to be a no-op, got %v, %v", cells, err)
	}
}

func TestRing(t *testing.T) {
	grid, _ := NewGrid(20, 20)

	cells := Ring(grid, Cell{X: 10, Y: 10}, 4, 8)
	if len(cells) != 8 {
		t.Fatalf("expected 8 ring cells, got %d", len(cells))
	}

	// First position sits on the positive X axis.
	if cells[0] != (Cell{X: 14, Y: 10}) {
		t.Errorf("expected first ring cell at (14, 10), got %v", cells[0])
	}

	seen := make(map[Cell]bool, len(cells))
	for _, c := range cells {
		dx, dy := c.X-10, c.Y-10
		d2 := dx*dx + dy*dy
		if d2 < 4 || d2 > 32 {
			t.Errorf("expected cell %v near radius 4, got squared distance %d", c, d2)
		}
		if seen[c] {
			t.Errorf("expected distinct ring cells, got duplicate %v", c)
		}
		seen[c] = true
	}
}

func TestRing_ClipsAndDedupes(t *testing.T) {
	grid, _ := NewGrid(6, 6)

	// A ring around a corner cell is clipped to the grid.
	for _, c := range Ring(grid, Cell{X: 0, Y: 0}, 3, 12) {
		if !grid.Contains(c) {
			t.Errorf("expected clipped cell inside the grid, got %v", c)
		}
	}

	// Tiny radius with many points collapses to a few unique cells.
	cells := Ring(grid, Cell{X: 3, Y: 3}, 1, 16)
	seen := make(map[Cell]bool)
	for _, c := range cells {
		if seen[c] {
			t.Errorf("expected deduped cells, got duplicate %v", c)
		}
		seen[c] = true
	}
	if len(cells) > 8 {
		t.Errorf("expected at most 8 unique cells on a unit ring, got %d", len(cells))
	}

	if got := Ring(grid, Cell{X: 3, Y: 3}, 2, 0); got != nil {
		t.Errorf("expected nil for zero count, got %v", got)
	}
}
