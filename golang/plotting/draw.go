package plotting

import (
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/tarstars/hep_boosting/golang/hist"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// share of the canvas height taken by the ratio pad
const ratioPadFraction = 0.3

//ParseColor turns a named or "#rrggbb" color into an RGBA value.
func ParseColor(c string) color.Color {
	hex := strings.TrimPrefix(hist.ResolveColor(c), "#")
	if len(hex) != 6 {
		return color.Black
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.Black
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
}

func translucent(c color.Color, alpha uint8) color.Color {
	r, g, b, _ := c.RGBA()
	return color.NRGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: alpha}
}

//stepXYs draws visible bin contents as a step line over the bin edges.
func stepXYs(edges, vals []float64) plotter.XYs {
	xys := make(plotter.XYs, 0, 2*len(vals))
	for i, v := range vals {
		xys = append(xys, plotter.XY{X: edges[i], Y: v}, plotter.XY{X: edges[i+1], Y: v})
	}
	return xys
}

func scaledVals(h *hist.Histogram, f float64) []float64 {
	vals := h.Vals()
	for i := range vals {
		vals[i] *= f
	}
	return vals
}

//histLine is an unfilled step line of a histogram, scaled by its drawing scale.
func histLine(h *hist.Histogram) (*plotter.Line, error) {
	line, err := plotter.NewLine(stepXYs(h.Axis().Edges, scaledVals(h, h.DrawScale)))
	if err != nil {
		return nil, errors.Wrapf(err, "line of %s", h.Label)
	}
	line.Color = ParseColor(h.Color)
	line.Width = vg.Points(1.5)
	return line, nil
}

type pointErrors struct {
	plotter.XYs
	plotter.YErrors
}

//histPoints draws bin contents as markers at the bin centers with vertical error bars.
func histPoints(h *hist.Histogram) (*plotter.Scatter, *plotter.YErrorBars, error) {
	centers := h.Axis().Centers()
	vals, errs := h.Vals(), h.Err()
	pts := pointErrors{XYs: make(plotter.XYs, len(vals)), YErrors: make(plotter.YErrors, len(vals))}
	for i := range vals {
		pts.XYs[i] = plotter.XY{X: centers[i], Y: vals[i]}
		pts.YErrors[i].Low, pts.YErrors[i].High = errs[i], errs[i]
	}
	scatter, err := plotter.NewScatter(pts.XYs)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "points of %s", h.Label)
	}
	scatter.Color = ParseColor(h.Color)
	scatter.Shape = draw.CircleGlyph{}
	scatter.Radius = vg.Points(2)
	bars, err := plotter.NewYErrorBars(pts)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "error bars of %s", h.Label)
	}
	bars.Color = scatter.Color
	return scatter, bars, nil
}

//errorBand is a hatched-like translucent band of vals +- errs drawn bin by bin.
func errorBand(edges, vals, errs []float64, c color.Color) ([]plot.Plotter, error) {
	var out []plot.Plotter
	for i := range vals {
		if errs[i] == 0 || math.IsNaN(errs[i]) {
			continue
		}
		lo, hi := vals[i]-errs[i], vals[i]+errs[i]
		poly, err := plotter.NewPolygon(plotter.XYs{
			{X: edges[i], Y: lo}, {X: edges[i+1], Y: lo}, {X: edges[i+1], Y: hi}, {X: edges[i], Y: hi},
		})
		if err != nil {
			return nil, err
		}
		poly.Color = translucent(c, 0x60)
		poly.LineStyle.Width = 0
		out = append(out, poly)
	}
	return out, nil
}

//save writes the plots stacked vertically into one file; with two plots the second is a ratio pad.
func save(fileName string, width, height vg.Length, plots ...*plot.Plot) error {
	ext := strings.TrimPrefix(filepath.Ext(fileName), ".")
	canvas, err := draw.NewFormattedCanvas(width, height, ext)
	if err != nil {
		return errors.Wrapf(err, "canvas for %s", fileName)
	}
	dc := draw.New(canvas)
	switch len(plots) {
	case 1:
		plots[0].Draw(dc)
	case 2:
		split := dc.Min.Y + (dc.Max.Y-dc.Min.Y)*ratioPadFraction
		top, bottom := dc, dc
		top.Min.Y, bottom.Max.Y = split, split
		plots[0].Draw(top)
		plots[1].Draw(bottom)
	default:
		return errors.Errorf("%s: cannot lay out %d pads", fileName, len(plots))
	}

	f, err := os.Create(fileName)
	if err != nil {
		return errors.Wrapf(err, "create %s", fileName)
	}
	if _, err := canvas.WriteTo(f); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "write %s", fileName)
	}
	return errors.Wrapf(f.Close(), "close %s", fileName)
}

func horizontalLine(x0, x1, y float64, c color.Color, dashed bool) (*plotter.Line, error) {
	line, err := plotter.NewLine(plotter.XYs{{X: x0, Y: y}, {X: x1, Y: y}})
	if err != nil {
		return nil, err
	}
	line.Color = c
	if dashed {
		line.Dashes = []vg.Length{vg.Points(2), vg.Points(2)}
	}
	return line, nil
}
