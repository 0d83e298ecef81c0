package viz

import (
	"bytes"
	"fmt"
	"image/jpeg"

	"github.com/icza/mjpeg"
)

// Frame is one timelapse frame: a spatial field and the cycle it was
// logged at.
type Frame struct {
	Cycle int
	Field [][]float64
}

// Timelapse encodes a sequence of spatial fields into an MJPEG AVI.
// Every frame is rendered with the same options and labeled with its
// cycle; all fields must share the first frame's dimensions.
func Timelapse(frames []Frame, opts HeatmapOptions, path string, fps int) error {
	if len(frames) == 0 {
		return fmt.Errorf("cannot encode a movie without frames")
	}
	if fps <= 0 {
		fps = 4
	}

	first, err := Heatmap(frames[0].Field, frameOptions(opts, frames[0].Cycle))
	if err != nil {
		return fmt.Errorf("frame 0: %w", err)
	}
	bounds := first.Bounds()

	writer, err := mjpeg.New(path, int32(bounds.Dx()), int32(bounds.Dy()), int32(fps))
	if err != nil {
		return fmt.Errorf("failed to create movie %s: %w", path, err)
	}

	var buf bytes.Buffer
	jpegOptions := &jpeg.Options{Quality: 75}
	for i, frame := range frames {
		img := first
		if i > 0 {
			img, err = Heatmap(frame.Field, frameOptions(opts, frame.Cycle))
			if err != nil {
				writer.Close()
				return fmt.Errorf("frame %d: %w", i, err)
			}
			if img.Bounds() != bounds {
				writer.Close()
				return fmt.Errorf("frame %d has size %v, expected %v", i, img.Bounds(), bounds)
			}
		}
		if err := jpeg.Encode(&buf, img, jpegOptions); err != nil {
			writer.Close()
			return fmt.Errorf("frame %d: failed to encode: %w", i, err)
		}
		if err := writer.AddFrame(buf.Bytes()); err != nil {
			writer.Close()
			return fmt.Errorf("frame %d: failed to append: %w", i, err)
		}
		buf.Reset()
	}

	// The AVI index is written on close.
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize movie %s: %w", path, err)
	}
	return nil
}

func frameOptions(opts HeatmapOptions, cycle int) HeatmapOptions {
	label := fmt.Sprintf("cycle %d", cycle)
	if opts.Label != "" {
		label = opts.Label + ", " + label
	}
	opts.Label = label
	return opts
}
