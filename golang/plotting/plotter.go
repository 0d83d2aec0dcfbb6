// Package plotting draws analysis histograms and classifier diagnostics with gonum/plot.
package plotting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/tarstars/hep_boosting/golang/hist"
	"github.com/tarstars/hep_boosting/golang/ntuple"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

//Plotter draws the groups of one year into OutDir.
type Plotter struct {
	Groups      *ntuple.GroupInfo
	Signal      string
	Backgrounds []string
	Data        string
	OutDir      string
	Format      string
	Year        string
	Lumi        float64
	Width       vg.Length
	Height      vg.Length
}

//NewPlotter sets up a plotter; the background "all" selects every group but the signal and data.
func NewPlotter(groups *ntuple.GroupInfo, signal string, backgrounds []string, data, outdir, format, year string, lumi float64) (*Plotter, error) {
	if len(backgrounds) == 1 && backgrounds[0] == "all" {
		backgrounds = nil
		for _, g := range groups.Groups() {
			if g != signal && g != data {
				backgrounds = append(backgrounds, g)
			}
		}
	}
	if err := os.MkdirAll(outdir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create %s", outdir)
	}
	if format == "" {
		format = "png"
	}
	return &Plotter{
		Groups:      groups,
		Signal:      signal,
		Backgrounds: backgrounds,
		Data:        data,
		OutDir:      outdir,
		Format:      format,
		Year:        year,
		Lumi:        lumi,
		Width:       6 * vg.Inch,
		Height:      5 * vg.Inch,
	}, nil
}

//FileName is the output path of a figure.
func (p *Plotter) FileName(name string) string {
	return filepath.Join(p.OutDir, fmt.Sprintf("%s_%s.%s", name, p.Year, p.Format))
}

func (p *Plotter) wanted(group string) bool {
	if group == p.Signal || group == p.Data {
		return true
	}
	for _, b := range p.Backgrounds {
		if b == group {
			return true
		}
	}
	return false
}

//SetHistGroups sums member histograms into their plot groups; members outside the drawn
//groups are dropped.
func (p *Plotter) SetHistGroups(members map[string]*hist.Histogram) (map[string]*hist.Histogram, error) {
	names := make([]string, 0, len(members))
	for name := range members {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]*hist.Histogram)
	for _, member := range names {
		h := members[member]
		group, ok := p.Groups.GroupOf(member)
		if !ok || !p.wanted(group) {
			continue
		}
		if _, ok := out[group]; !ok {
			g := hist.New(h.Axes...).WithStyle(p.Groups.LegendName(group), p.Groups.Color(group))
			g.Group, g.AxisName = group, h.AxisName
			out[group] = g
		}
		if err := out[group].Add(h); err != nil {
			return nil, errors.Wrapf(err, "group %s, member %s", group, member)
		}
	}
	return out, nil
}

//Systematic is a shift of one group, either a histogram or a fraction of the nominal.
type Systematic struct {
	Name     string
	Group    string
	Shift    *hist.Histogram
	Fraction float64
}

func (s Systematic) shiftOf(nominal *hist.Histogram) *hist.Histogram {
	if s.Shift != nil {
		return s.Shift
	}
	return nominal.Scaled(s.Fraction)
}

//MakeStack stacks the background groups ordered by their integral.
func (p *Plotter) MakeStack(groups map[string]*hist.Histogram, systs []Systematic) (*hist.Stack, error) {
	var axes []hist.Axis
	for _, h := range groups {
		axes = h.Axes
		break
	}
	stack := hist.NewStack(true, axes...)
	for _, b := range p.Backgrounds {
		if h, ok := groups[b]; ok {
			if err := stack.Push(h); err != nil {
				return nil, errors.Wrapf(err, "stack %s", b)
			}
		}
	}
	for _, s := range systs {
		nominal, ok := groups[s.Group]
		if !ok || s.Group == p.Signal || s.Group == p.Data {
			continue
		}
		if err := stack.AddSyst(s.shiftOf(nominal)); err != nil {
			return nil, errors.Wrapf(err, "systematic %s", s.Name)
		}
	}
	return stack, nil
}

func (p *Plotter) label(hasData bool) string {
	kind := "Simulation"
	if hasData {
		kind = "Preliminary"
	}
	return fmt.Sprintf("CMS %s    %.1f fb^-1 (13 TeV)", kind, p.Lumi)
}

//PlotStack draws the stacked backgrounds with their error band, the signal as a line and the
//data as points. A ratio pad of data over the stack is added when data is present.
func (p *Plotter) PlotStack(name string, groups map[string]*hist.Histogram, systs []Systematic) error {
	if len(groups) == 0 {
		return errors.Errorf("%s: nothing to plot", name)
	}
	stack, err := p.MakeStack(groups, systs)
	if err != nil {
		return err
	}
	signal := groups[p.Signal]
	if signal != nil {
		signal = signal.Copy()
		for _, s := range systs {
			if s.Group == p.Signal {
				if err := signal.AddSyst(s.shiftOf(groups[p.Signal])); err != nil {
					return errors.Wrapf(err, "systematic %s", s.Name)
				}
			}
		}
	}
	data := groups[p.Data]
	hasData := data != nil && !data.Empty()
	var axisName string
	for _, h := range groups {
		axisName = h.AxisName
		break
	}

	top := plot.New()
	top.Title.Text = p.label(hasData)
	top.Y.Label.Text = "Events"
	edges := stack.Axis().Edges
	lo, hi := stack.XRange()
	top.X.Min, top.X.Max = lo, hi
	top.Add(plotter.NewGrid())

	cumulative := make([][]float64, len(stack.Members))
	running := make([]float64, stack.Axis().Bins())
	for i, m := range stack.Members {
		for k, v := range m.Vals() {
			running[k] += v
		}
		cumulative[i] = append([]float64(nil), running...)
	}
	for i := len(stack.Members) - 1; i >= 0; i-- {
		line, err := plotter.NewLine(stepXYs(edges, cumulative[i]))
		if err != nil {
			return err
		}
		line.FillColor = ParseColor(stack.Members[i].Color)
		line.Color = line.FillColor
		top.Add(line)
	}
	for _, m := range stack.Members {
		line, err := histLine(m)
		if err != nil {
			return err
		}
		line.FillColor = line.Color
		top.Legend.Add(m.Name(), line)
	}
	if !stack.Empty() {
		band, err := errorBand(edges, stack.Vals(), stack.TotalErr(), ParseColor("grey"))
		if err != nil {
			return err
		}
		top.Add(band...)
	}
	if signal != nil {
		line, err := histLine(signal)
		if err != nil {
			return err
		}
		top.Add(line)
		top.Legend.Add(signal.Name(), line)
	}
	if hasData {
		points, bars, err := histPoints(data)
		if err != nil {
			return err
		}
		top.Add(points, bars)
		top.Legend.Add(data.Name(), points)
	}
	top.Legend.Top = true

	if !hasData {
		top.X.Label.Text = axisName
		return errors.Wrap(save(p.FileName(name), p.Width, p.Height, top), name)
	}

	ratio, err := data.Div(stack.Histogram)
	if err != nil {
		return errors.Wrapf(err, "%s: ratio", name)
	}
	ratio.Color = "k"
	selfRatio, err := stack.SelfRatio()
	if err != nil {
		return errors.Wrapf(err, "%s: band", name)
	}
	bottom := plot.New()
	bottom.X.Label.Text = axisName
	bottom.Y.Label.Text = "Data/MC"
	bottom.X.Min, bottom.X.Max = lo, hi
	bottom.Y.Min, bottom.Y.Max = 0, 2
	band, err := errorBand(edges, selfRatio.Vals(), selfRatio.TotalErr(), ParseColor("grey"))
	if err != nil {
		return err
	}
	bottom.Add(band...)
	unit, err := horizontalLine(lo, hi, 1, ParseColor("k"), true)
	if err != nil {
		return err
	}
	points, bars, err := histPoints(ratio)
	if err != nil {
		return err
	}
	bottom.Add(unit, points, bars)
	top.HideX()

	log.Debug().Str("plot", name).Float64("data", data.Integral(true)).Float64("mc", stack.Integral(true)).Msg("stack plot")
	return errors.Wrap(save(p.FileName(name), p.Width, p.Height, top, bottom), name)
}
