package plotting

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/tarstars/hep_boosting/golang/bdt"
	"github.com/tarstars/hep_boosting/golang/fom"
	"github.com/tarstars/hep_boosting/golang/hist"
	"github.com/tarstars/hep_boosting/golang/mva"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Shape colors of the signal and the summed background.
const (
	SignalColor     = "#ef8a62"
	BackgroundColor = "#67a9cf"
)

func normalized(h *hist.Histogram) *hist.Histogram {
	out := h.Copy()
	if total := h.Integral(true); total != 0 {
		out.Scale(1 / total)
	}
	out.DrawScale = 1
	return out
}

func (p *Plotter) shapePlot(sig, bkg *hist.Histogram) (*plot.Plot, error) {
	pl := plot.New()
	pl.Y.Label.Text = "Normalized Events (A.U)"
	lo, hi := sig.XRange()
	pl.X.Min, pl.X.Max = lo, hi
	for _, h := range []*hist.Histogram{
		normalized(sig).WithStyle("Signal", SignalColor),
		normalized(bkg).WithStyle("Background", BackgroundColor),
	} {
		line, err := histLine(h)
		if err != nil {
			return nil, err
		}
		line.FillColor = translucent(line.Color, 0x50)
		pl.Add(line)
		pl.Legend.Add(h.Label, line)
	}
	pl.Legend.Top = true
	return pl, nil
}

//PlotShape overlays the unit-normalised signal and background shapes.
func (p *Plotter) PlotShape(name string, sig, bkg *hist.Histogram) error {
	pl, err := p.shapePlot(sig, bkg)
	if err != nil {
		return err
	}
	pl.Title.Text = p.label(false)
	pl.X.Label.Text = sig.AxisName
	return errors.Wrap(save(p.FileName(name), p.Width, p.Height, pl), name)
}

//PlotFOM draws the shapes with the figure of merit of a lower cut below them and returns
//the best value and its cut.
func (p *Plotter) PlotFOM(name string, sig, bkg *hist.Histogram, scan *fom.ScanResult) (float64, float64, error) {
	best, cut := scan.Best()
	top, err := p.shapePlot(sig, bkg)
	if err != nil {
		return 0, 0, err
	}
	top.Title.Text = p.label(false)
	top.HideX()

	bottom := plot.New()
	bottom.X.Label.Text = sig.AxisName
	bottom.Y.Label.Text = "FOM"
	bottom.X.Min, bottom.X.Max = top.X.Min, top.X.Max

	xys := make(plotter.XYs, 0, len(scan.Thresholds))
	for i, t := range scan.Thresholds {
		if !math.IsNaN(scan.FOM[i]) && !math.IsInf(scan.FOM[i], 0) {
			xys = append(xys, plotter.XY{X: t, Y: scan.FOM[i]})
		}
	}
	if len(xys) == 0 {
		return 0, 0, errors.Errorf("%s: figure of merit is undefined everywhere", name)
	}
	if sig.Axis().IsDiscrete() {
		stepped := make(plotter.XYs, 0, 2*len(xys))
		for _, xy := range xys {
			stepped = append(stepped, xy, plotter.XY{X: xy.X + 1, Y: xy.Y})
		}
		xys = stepped
	}
	line, err := plotter.NewLine(xys)
	if err != nil {
		return 0, 0, err
	}
	line.Color = ParseColor("k")
	maxLine, err := horizontalLine(bottom.X.Min, bottom.X.Max, best, line.Color, true)
	if err != nil {
		return 0, 0, err
	}
	bottom.Add(line, maxLine)
	bottom.Legend.Add(fmt.Sprintf("%s = %.3f, cut = %.2f", scan.Kind.Label(), best, cut), line)
	bottom.Legend.Top = true

	return best, cut, errors.Wrap(save(p.FileName(name), p.Width, p.Height, top, bottom), name)
}

//PlotEfficiency draws the per-bin selection efficiency of every group as points with errors.
func (p *Plotter) PlotEfficiency(name string, effs map[string]*hist.Histogram) error {
	if len(effs) == 0 {
		return errors.Errorf("%s: no efficiencies", name)
	}
	groups := make([]string, 0, len(effs))
	for group := range effs {
		groups = append(groups, group)
	}
	sort.Strings(groups)

	pl := plot.New()
	pl.Title.Text = p.label(false)
	pl.Y.Label.Text = "Efficiency"
	pl.Y.Min, pl.Y.Max = 0, 1.05
	for _, group := range groups {
		eff := effs[group].Copy().WithStyle(p.Groups.LegendName(group), p.Groups.Color(group))
		pl.X.Label.Text = eff.AxisName
		points, bars, err := histPoints(eff)
		if err != nil {
			return err
		}
		pl.Add(points, bars)
		pl.Legend.Add(eff.Label, points)
	}
	pl.Legend.Top = true
	return errors.Wrap(save(p.FileName(name), p.Width, p.Height, pl), name)
}

//PlotROC draws the curves with their areas and the diagonal of a random classifier.
func (p *Plotter) PlotROC(name string, curves map[string]*fom.Curve) error {
	if len(curves) == 0 {
		return errors.Errorf("%s: no curves", name)
	}
	labels := make([]string, 0, len(curves))
	for label := range curves {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	pl := plot.New()
	pl.Title.Text = p.label(false)
	pl.X.Label.Text = "False Positive Rate"
	pl.Y.Label.Text = "True Positive Rate"
	pl.X.Min, pl.X.Max, pl.Y.Min, pl.Y.Max = 0, 1, 0, 1
	pl.Add(plotter.NewGrid())
	for i, label := range labels {
		c := curves[label]
		xys := make(plotter.XYs, len(c.FPR))
		for k := range c.FPR {
			xys[k] = plotter.XY{X: c.FPR[k], Y: c.TPR[k]}
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return errors.Wrapf(err, "roc %s", label)
		}
		line.Color = plotutil.Color(i)
		line.Width = vg.Points(1.5)
		pl.Add(line)
		pl.Legend.Add(fmt.Sprintf("%s AUC = %.3f", label, c.AUC), line)
	}
	diagonal, err := plotter.NewLine(plotter.XYs{{X: 0, Y: 0}, {X: 1, Y: 1}})
	if err != nil {
		return err
	}
	diagonal.Dashes = []vg.Length{vg.Points(2), vg.Points(2)}
	pl.Add(diagonal)
	pl.Legend.Left = false
	return errors.Wrap(save(p.FileName(name), p.Width, p.Height, pl), name)
}

//PlotOvertrain draws the training shapes as filled areas and the test shapes as points.
func (p *Plotter) PlotOvertrain(name string, res *mva.Overtrain) error {
	pl := plot.New()
	pl.Title.Text = fmt.Sprintf("train FOM = %.3f, test FOM = %.3f", res.TrainFOM, res.TestFOM)
	pl.X.Label.Text = "BDT score"
	pl.Y.Label.Text = "Normalized Events (A.U)"
	pl.X.Min, pl.X.Max = 0, 1
	for _, h := range []*hist.Histogram{res.TrainSignal, res.TrainBackground} {
		line, err := histLine(normalized(h))
		if err != nil {
			return err
		}
		line.FillColor = translucent(line.Color, 0x50)
		pl.Add(line)
		pl.Legend.Add(h.Label, line)
	}
	for _, h := range []*hist.Histogram{res.TestSignal, res.TestBackground} {
		points, bars, err := histPoints(normalized(h))
		if err != nil {
			return err
		}
		pl.Add(points, bars)
		pl.Legend.Add(h.Label, points)
	}
	pl.Legend.Top = true
	return errors.Wrap(save(p.FileName(name), p.Width, p.Height, pl), name)
}

//PlotImportance draws the total gain of every feature as horizontal bars, largest on top.
func (p *Plotter) PlotImportance(name string, importance map[string]float64) error {
	if len(importance) == 0 {
		return errors.Errorf("%s: no feature was used", name)
	}
	names := make([]string, 0, len(importance))
	for feature := range importance {
		names = append(names, feature)
	}
	sort.Slice(names, func(i, j int) bool {
		if importance[names[i]] != importance[names[j]] {
			return importance[names[i]] < importance[names[j]]
		}
		return names[i] > names[j]
	})
	values := make(plotter.Values, len(names))
	for i, feature := range names {
		values[i] = importance[feature]
	}

	pl := plot.New()
	pl.X.Label.Text = "Total gain"
	bars, err := plotter.NewBarChart(values, vg.Points(10))
	if err != nil {
		return errors.Wrap(err, name)
	}
	bars.Horizontal = true
	bars.Color = ParseColor("blue")
	pl.Add(bars)
	pl.NominalY(names...)
	height := p.Height
	if h := vg.Points(float64(14 * len(names))); h > height {
		height = h
	}
	return errors.Wrap(save(p.FileName(name), p.Width, height, pl), name)
}

//PlotTrainingProgress draws the learning curves; the fom curves go to a lower pad.
func (p *Plotter) PlotTrainingProgress(name string, dump bdt.LearningCurvesDump) error {
	if len(dump.Values) == 0 {
		return errors.Errorf("%s: empty learning curves", name)
	}
	top, bottom := plot.New(), plot.New()
	top.Y.Label.Text = "loss"
	fomCurves := 0
	bottom.Y.Label.Text = "FOM"
	bottom.X.Label.Text = "Number of trees"
	for i, title := range dump.Titles {
		curve, _ := dump.Curve(title)
		xys := make(plotter.XYs, len(curve))
		for k, v := range curve {
			xys[k] = plotter.XY{X: float64(k + 1), Y: v}
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return errors.Wrapf(err, "curve %s", title)
		}
		line.Color = plotutil.Color(i)
		pad := top
		if strings.HasSuffix(title, "-fom") {
			pad = bottom
			fomCurves++
		}
		pad.Add(line)
		pad.Legend.Add(title, line)
	}
	top.Legend.Top = true
	bottom.Legend.Top = true
	if fomCurves == 0 {
		top.X.Label.Text = bottom.X.Label.Text
		return errors.Wrap(save(p.FileName(name), p.Width, p.Height, top), name)
	}
	top.HideX()
	return errors.Wrap(save(p.FileName(name), p.Width, p.Height, top, bottom), name)
}
