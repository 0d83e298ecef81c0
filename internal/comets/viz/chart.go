package viz

import (
	"fmt"
	"os"

	"github.com/wcharczuk/go-chart/v2"
)

// MediaChart plots the grid-summed concentration of one metabolite
// against the simulation cycle and writes the chart as a PNG. Cycles
// and totals run in parallel.
func MediaChart(cycles []int, totals []float64, metName, path string) error {
	if len(cycles) == 0 {
		return fmt.Errorf("cannot chart an empty media series")
	}
	if len(cycles) != len(totals) {
		return fmt.Errorf("media series has %d cycles but %d totals", len(cycles), len(totals))
	}

	xs := make([]float64, len(cycles))
	for i, c := range cycles {
		xs[i] = float64(c)
	}

	graph := chart.Chart{
		Title: metName + " over time",
		XAxis: chart.XAxis{
			Name:  "Cycle",
			Style: chart.Style{FontSize: 10.0},
			ValueFormatter: func(v interface{}) string {
				return fmt.Sprintf("%d", int(v.(float64)))
			},
		},
		YAxis: chart.YAxis{
			Name:  "Total amount (mmol)",
			Style: chart.Style{FontSize: 10.0},
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    metName,
				XValues: xs,
				YValues: totals,
				Style: chart.Style{
					StrokeColor: chart.ColorBlue,
					StrokeWidth: 2.0,
				},
			},
		},
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()
	if err := graph.Render(chart.PNG, f); err != nil {
		return fmt.Errorf("failed to render media chart: %w", err)
	}
	return nil
}
