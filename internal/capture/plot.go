package capture

import (
	"fmt"
	"image/color"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// PlotOptions controls Plot.
type PlotOptions struct {
	Title string
	// MaxPoints decimates long captures for drawing. Zero draws every
	// sample.
	MaxPoints int
	Width     vg.Length
	Height    vg.Length
}

// Plot draws every column against the sample index and writes a PNG to w.
func Plot(t *Table, opts PlotOptions, w io.Writer) error {
	if t.Rows() == 0 {
		return fmt.Errorf("capture has no samples")
	}
	if opts.Width == 0 {
		opts.Width = 14 * vg.Inch
	}
	if opts.Height == 0 {
		opts.Height = 6 * vg.Inch
	}

	p := plot.New()
	p.Title.Text = opts.Title
	p.X.Label.Text = "Sample"
	p.Y.Label.Text = "Amplitude (counts)"

	stride := 1
	if opts.MaxPoints > 0 && t.Rows() > opts.MaxPoints {
		stride = int(math.Ceil(float64(t.Rows()) / float64(opts.MaxPoints)))
	}

	colors := generateColors(len(t.Columns))
	for i, col := range t.Columns {
		pts := make(plotter.XYs, 0, len(col)/stride+1)
		for j := 0; j < len(col); j += stride {
			pts = append(pts, plotter.XY{X: float64(j), Y: col[j]})
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		line.Color = colors[i]
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("ch %d", i+1), line)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	wt, err := p.WriterTo(opts.Width, opts.Height, "png")
	if err != nil {
		return fmt.Errorf("render plot: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write plot: %w", err)
	}
	return nil
}

func generateColors(n int) []color.Color {
	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		r, g, b := hslToRGB(float64(i)/float64(n), 0.7, 0.5)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

// hslToRGB converts HSL to RGB (0-255 range)
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	var q float64
	if l < 0.5 {
		q = l * (1 + s)
	} else {
		q = l + s - l*s
	}
	p := 2*l - q
	rf := hueToRGB(p, q, h+1.0/3.0)
	gf := hueToRGB(p, q, h)
	bf := hueToRGB(p, q, h-1.0/3.0)
	return uint8(rf * 255), uint8(gf * 255), uint8(bf * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t++
	}
	if t > 1 {
		t--
	}
	switch {
	case t < 1.0/6.0:
		return p + (q-p)*6*t
	case t < 0.5:
		return q
	case t < 2.0/3.0:
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}
