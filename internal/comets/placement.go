package comets

import (
	"fmt"
	"math"
	"math/rand"
)

// RockClusters generates barrier cells by seeding clusters at random
// locations and growing each by random walk until the total rock area
// reaches clusters * meanSize. Growth picks a random existing rock and
// spreads to a random free 4-neighbor, which produces the irregular
// blob-shaped obstacles the soil scenarios use. The returned cells are
// unique and inside the grid.
func RockClusters(grid Grid, clusters int, meanSize float64, rng *rand.Rand) ([]Cell, error) {
	if clusters < 0 {
		return nil, fmt.Errorf("cluster count must be non-negative, got %d", clusters)
	}
	if clusters == 0 {
		return nil, nil
	}
	if meanSize <= 0 {
		return nil, fmt.Errorf("mean cluster size must be positive, got %g", meanSize)
	}

	area := grid.Width * grid.Height
	target := int(math.Round(float64(clusters) * meanSize))
	if target < clusters {
		target = clusters
	}
	if target >= area {
		return nil, fmt.Errorf("requested rock area %d does not fit a %dx%d grid", target, grid.Width, grid.Height)
	}

	rocks := make(map[Cell]bool, target)
	cells := make([]Cell, 0, target)

	// Seed one cell per cluster, retrying collisions.
	attempts := 0
	for len(cells) < clusters {
		if attempts > 100*clusters+1000 {
			return nil, fmt.Errorf("could not place %d cluster seeds on a %dx%d grid", clusters, grid.Width, grid.Height)
		}
		attempts++
		c := Cell{X: rng.Intn(grid.Width), Y: rng.Intn(grid.Height)}
		if rocks[c] {
			continue
		}
		rocks[c] = true
		cells = append(cells, c)
	}

	// Grow until the target area is reached.
	attempts = 0
	for len(cells) < target {
		if attempts > 100*target+1000 {
			return nil, fmt.Errorf("rock growth stalled at %d of %d cells", len(cells), target)
		}
		attempts++
		from := cells[rng.Intn(len(cells))]
		n := neighbor4(from, rng)
		if !grid.Contains(n) || rocks[n] {
			continue
		}
		rocks[n] = true
		cells = append(cells, n)
	}

	return cells, nil
}

// ScatterFounders samples n unique cells uniformly at random, rejecting
// any cell in the forbidden set (rocks, previously placed colonies). The
// sampler is bounded: when the grid is too full to satisfy the request it
// returns an error instead of spinning.
func ScatterFounders(grid Grid, n int, forbidden map[Cell]bool, rng *rand.Rand) ([]Cell, error) {
	if n < 0 {
		return nil, fmt.Errorf("founder count must be non-negative, got %d", n)
	}
	if n == 0 {
		return nil, nil
	}

	free := grid.Width*grid.Height - len(forbidden)
	if n > free {
		return nil, fmt.Errorf("cannot place %d colonies: only %d free cells on a %dx%d grid", n, free, grid.Width, grid.Height)
	}

	chosen := make(map[Cell]bool, n)
	cells := make([]Cell, 0, n)
	attempts := 0
	for len(cells) < n {
		if attempts > 100*n+1000 {
			return nil, fmt.Errorf("placement gave up after %d attempts: %d of %d colonies placed", attempts, len(cells), n)
		}
		attempts++
		c := Cell{X: rng.Intn(grid.Width), Y: rng.Intn(grid.Height)}
		if forbidden[c] || chosen[c] {
			continue
		}
		chosen[c] = true
		cells = append(cells, c)
	}

	return cells, nil
}

// Ring returns up to count distinct cells evenly spaced on a circle of
// the given radius around center, clipped to the grid.
func Ring(grid Grid, center Cell, radius float64, count int) []Cell {
	if count <= 0 {
		return nil
	}
	seen := make(map[Cell]bool, count)
	cells := make([]Cell, 0, count)
	for i := 0; i < count; i++ {
		angle := 2 * math.Pi * float64(i) / float64(count)
		c := Cell{
			X: center.X + int(math.Round(radius*math.Cos(angle))),
			Y: center.Y + int(math.Round(radius*math.Sin(angle))),
		}
		if !grid.Contains(c) || seen[c] {
			continue
		}
		seen[c] = true
		cells = append(cells, c)
	}
	return cells
}

// neighbor4 picks one of the four von Neumann neighbors at random.
func neighbor4(c Cell, rng *rand.Rand) Cell {
	switch rng.Intn(4) {
	case 0:
		return Cell{X: c.X + 1, Y: c.Y}
	case 1:
		return Cell{X: c.X - 1, Y: c.Y}
	case 2:
		return Cell{X: c.X, Y: c.Y + 1}
	default:
		return Cell{X: c.X, Y: c.Y - 1}
	}
}
