// Package viz renders parsed simulation output: spatial fields as
// color-mapped heatmaps, biomass trajectories as line plots and logged
// field sequences as timelapse movies.
package viz

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"cometskit/internal/comets"
)

// HeatmapOptions shapes the rendering of one spatial field.
type HeatmapOptions struct {
	// Scale is the edge length in pixels of one grid cell. Zero means 8.
	Scale int
	// Color is the full-intensity cell color. Zero value means green.
	Color color.RGBA
	// Min and Max fix the value range mapped onto the color ramp. When
	// Max <= Min the range is taken from the field itself.
	Min float64
	Max float64
	// Barriers are painted as rock on top of the field.
	Barriers []comets.Cell
	// Label is drawn in the top-left corner when non-empty.
	Label string
}

var (
	rockColor       = color.RGBA{169, 169, 169, 255}
	backgroundColor = color.RGBA{0, 0, 0, 255}
	labelColor      = color.RGBA{255, 255, 255, 255}
)

// Heatmap renders a row-major [height][width] field as a color-mapped
// raster. Cell values are mapped linearly from black to the full
// intensity color; barrier cells are overlaid in gray.
func Heatmap(field [][]float64, opts HeatmapOptions) (*image.RGBA, error) {
	height := len(field)
	if height == 0 || len(field[0]) == 0 {
		return nil, fmt.Errorf("cannot render an empty field")
	}
	width := len(field[0])
	for y, row := range field {
		if len(row) != width {
			return nil, fmt.Errorf("field row %d has %d columns, expected %d", y, len(row), width)
		}
	}

	scale := opts.Scale
	if scale <= 0 {
		scale = 8
	}
	full := opts.Color
	if full == (color.RGBA{}) {
		full = color.RGBA{0, 255, 0, 255}
	}

	lo, hi := opts.Min, opts.Max
	if hi <= lo {
		lo, hi = fieldRange(field)
	}

	img := image.NewRGBA(image.Rect(0, 0, width*scale, height*scale))
	draw.Draw(img, img.Bounds(), &image.Uniform{backgroundColor}, image.Point{}, draw.Src)

	for y, row := range field {
		for x, v := range row {
			t := rampPosition(v, lo, hi)
			if t <= 0 {
				continue
			}
			c := color.RGBA{
				R: uint8(t * float64(full.R)),
				G: uint8(t * float64(full.G)),
				B: uint8(t * float64(full.B)),
				A: 255,
			}
			cellRect := image.Rect(x*scale, y*scale, (x+1)*scale, (y+1)*scale)
			draw.Draw(img, cellRect, &image.Uniform{c}, image.Point{}, draw.Src)
		}
	}

	for _, c := range opts.Barriers {
		if c.X < 0 || c.Y < 0 || c.X >= width || c.Y >= height {
			continue
		}
		cellRect := image.Rect(c.X*scale, c.Y*scale, (c.X+1)*scale, (c.Y+1)*scale)
		draw.Draw(img, cellRect, &image.Uniform{rockColor}, image.Point{}, draw.Src)
	}

	if opts.Label != "" {
		addLabel(img, 4, 14, opts.Label, labelColor)
	}
	return img, nil
}

// SavePNG writes an image as a PNG file.
func SavePNG(img image.Image, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return nil
}

// fieldRange scans a field for its minimum and maximum value.
func fieldRange(field [][]float64) (lo, hi float64) {
	lo, hi = field[0][0], field[0][0]
	for _, row := range field {
		for _, v := range row {
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
	}
	return lo, hi
}

// rampPosition maps v into [0, 1] over the lo..hi range. A collapsed
// range renders positive values at full intensity.
func rampPosition(v, lo, hi float64) float64 {
	if hi <= lo {
		if v > lo {
			return 1
		}
		return 0
	}
	t := (v - lo) / (hi - lo)
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}

// addLabel draws a text label onto the image at the given baseline.
func addLabel(img *image.RGBA, x, y int, label string, col color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(label)
}
