// Package calplot renders diagnostic PNGs for a calibration run: the
// normalized samples against the fitted power-law curve, and the
// resulting inverse lookup table. The plots are for human inspection
// only; nothing downstream consumes them.
package calplot

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/luminance.report/internal/gamma"
)

// channelColors follows the usual R/G/B reading for three-channel runs;
// single-channel runs use the gray entry.
var channelColors = []color.RGBA{
	{R: 0xd6, G: 0x3a, B: 0x3a, A: 0xff},
	{R: 0x2f, G: 0x9e, B: 0x44, A: 0xff},
	{R: 0x2b, G: 0x58, B: 0xd8, A: 0xff},
}

var grayColor = color.RGBA{R: 0x44, G: 0x44, B: 0x44, A: 0xff}

func channelColor(channels, c int) color.RGBA {
	if channels == 1 {
		return grayColor
	}
	return channelColors[c%len(channelColors)]
}

func channelLabel(channels, c int) string {
	if channels == 1 {
		return "luminance"
	}
	return []string{"red", "green", "blue"}[c%3]
}

// Generate writes the fit plot and the table plot for one run into dir
// and returns the created file paths.
func Generate(dir, runID string, gun []float64, lum [][]float64, res *gamma.Result) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create plot dir: %w", err)
	}

	fitPath := filepath.Join(dir, fmt.Sprintf("%s-fit.png", runID))
	if err := plotFit(fitPath, gun, lum, res); err != nil {
		return nil, err
	}

	tablePath := filepath.Join(dir, fmt.Sprintf("%s-table.png", runID))
	if err := plotTable(tablePath, res); err != nil {
		return nil, err
	}

	return []string{fitPath, tablePath}, nil
}

// plotFit draws each channel's normalized samples and its fitted curve.
func plotFit(path string, gun []float64, lum [][]float64, res *gamma.Result) error {
	p := plot.New()
	p.Title.Text = "Measured response vs fitted power law"
	p.X.Label.Text = "Normalized gun value"
	p.Y.Label.Text = "Normalized luminance"
	p.Legend.Top = true

	channels := len(res.Gamma)
	col := make([]float64, len(lum))
	for c := 0; c < channels; c++ {
		for i, row := range lum {
			col[i] = row[c]
		}
		in, out, err := gamma.Normalize(gun, col, res.Method)
		if err != nil {
			return fmt.Errorf("channel %d: %w", c, err)
		}

		pts := make(plotter.XYs, len(in))
		for i := range in {
			pts[i] = plotter.XY{X: in[i], Y: out[i]}
		}
		scatter, err := plotter.NewScatter(pts)
		if err != nil {
			return fmt.Errorf("channel %d scatter: %w", c, err)
		}
		scatter.GlyphStyle.Color = channelColor(channels, c)
		scatter.GlyphStyle.Radius = vg.Points(3)

		curve := plotter.NewFunction(fitCurve(res, c))
		curve.Color = channelColor(channels, c)
		curve.Width = vg.Points(1.5)

		p.Add(scatter, curve)
		p.Legend.Add(fmt.Sprintf("%s (γ=%.3f)", channelLabel(channels, c), res.Gamma[c]), scatter)
	}

	p.X.Min, p.X.Max = 0, 1
	p.Y.Min = 0

	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}

// fitCurve returns the fitted model for a channel, including the
// asymptote when one was fitted so the overlay matches the data it was
// fitted against.
func fitCurve(res *gamma.Result, c int) func(float64) float64 {
	asym := 0.0
	if res.LowAsymptote != nil {
		asym = res.LowAsymptote[c]
	}
	g := res.Gamma[c]
	return func(x float64) float64 {
		if x < 0 {
			return asym
		}
		return asym + math.Pow(x, g)
	}
}

// plotTable draws the inverse lookup table columns.
func plotTable(path string, res *gamma.Result) error {
	p := plot.New()
	p.Title.Text = "Inverse lookup table"
	p.X.Label.Text = "Desired output luminance"
	p.Y.Label.Text = "Required gun value"
	p.Legend.Top = true
	p.Legend.Left = true

	channels := len(res.Gamma)
	for c := 0; c < channels; c++ {
		pts := make(plotter.XYs, len(res.Table))
		for i := range res.Table {
			pts[i] = plotter.XY{X: float64(i) / (gamma.TableSize - 1), Y: res.Table[i][c]}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("channel %d line: %w", c, err)
		}
		line.Color = channelColor(channels, c)
		line.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add(channelLabel(channels, c), line)
	}

	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, 1

	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}
