package viz

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"cometskit/internal/comets"
)

// GrowthCurves plots the grid-summed biomass of every model against the
// simulation cycle and saves the figure as a PNG. Names label the lines
// in model order; missing names fall back to "model N".
func GrowthCurves(series *comets.TotalBiomassSeries, names []string, path string) error {
	if series == nil || len(series.Cycles) == 0 {
		return fmt.Errorf("cannot plot an empty biomass series")
	}

	p := plot.New()
	p.Title.Text = "Total biomass over time"
	p.X.Label.Text = "Cycle"
	p.Y.Label.Text = "Biomass (gDW)"
	p.Legend.Top = true

	var lines []interface{}
	for i := 0; i < series.NumModels(); i++ {
		values, err := series.Model(i)
		if err != nil {
			return err
		}
		points := make(plotter.XYs, len(series.Cycles))
		for j := range points {
			points[j].X = float64(series.Cycles[j])
			points[j].Y = values[j]
		}
		name := fmt.Sprintf("model %d", i)
		if i < len(names) && names[i] != "" {
			name = names[i]
		}
		lines = append(lines, name, points)
	}

	if err := plotutil.AddLinePoints(p, lines...); err != nil {
		return fmt.Errorf("failed to add biomass lines: %w", err)
	}
	if err := p.Save(8*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save growth curves: %w", err)
	}
	return nil
}
