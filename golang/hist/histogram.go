// Package hist implements weighted histograms with statistical and systematic uncertainties.
package hist

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
)

const divEpsilon = 1e-10

//Breakdown is the contribution of one sample to a group histogram.
type Breakdown struct {
	SumW  float64
	SumW2 float64
	NRaw  int
}

//Histogram stores weighted sums and sums of squared weights for one or two axes.
//Storage includes underflow and overflow bins.
type Histogram struct {
	Axes      []Axis
	Group     string
	Label     string
	AxisName  string
	Color     string
	DrawScale float64
	Breakdown map[string]Breakdown

	values    []float64
	variances []float64
	syst      []float64
}

//New creates an empty histogram.
func New(axes ...Axis) *Histogram {
	if len(axes) == 0 {
		axes = []Axis{{Edges: []float64{0, 1}}}
	}
	size := 1
	for _, a := range axes {
		size *= a.Extent()
	}
	return &Histogram{
		Axes:      axes,
		Color:     Colors["k"],
		DrawScale: 1,
		Breakdown: make(map[string]Breakdown),
		values:    make([]float64, size),
		variances: make([]float64, size),
	}
}

//Axis returns the first axis.
func (h *Histogram) Axis() Axis {
	return h.Axes[0]
}

//WithStyle sets the legend label and the color, resolving named colors.
func (h *Histogram) WithStyle(label, color string) *Histogram {
	h.Label = label
	h.Color = ResolveColor(color)
	return h
}

//Copy makes a deep copy.
func (h *Histogram) Copy() *Histogram {
	out := *h
	out.values = append([]float64(nil), h.values...)
	out.variances = append([]float64(nil), h.variances...)
	if h.syst != nil {
		out.syst = append([]float64(nil), h.syst...)
	}
	out.Breakdown = make(map[string]Breakdown, len(h.Breakdown))
	for k, v := range h.Breakdown {
		out.Breakdown[k] = v
	}
	return &out
}

//Empty reports a histogram without any entry.
func (h *Histogram) Empty() bool {
	for _, v := range h.values {
		if v != 0 {
			return false
		}
	}
	for _, v := range h.variances {
		if v != 0 {
			return false
		}
	}
	return true
}

func (h *Histogram) flatIndex(bins []int) int {
	idx := 0
	for k, a := range h.Axes {
		idx = idx*a.Extent() + bins[k] + 1
	}
	return idx
}

//Fill adds weighted entries; under- and overflow are folded into the edge bins.
//A nil weights slice means unit weights.
func (h *Histogram) Fill(weights []float64, coords ...[]float64) error {
	if err := h.fill(weights, coords); err != nil {
		return err
	}
	h.foldFlow()
	return nil
}

//FillFlow adds weighted entries keeping under- and overflow separate.
func (h *Histogram) FillFlow(weights []float64, coords ...[]float64) error {
	return h.fill(weights, coords)
}

//FillMember fills the histogram and records the contribution of member.
func (h *Histogram) FillMember(member string, weights []float64, coords ...[]float64) error {
	if err := h.Fill(weights, coords...); err != nil {
		return err
	}
	b := Breakdown{NRaw: len(coords[0])}
	for i := range coords[0] {
		w := 1.0
		if weights != nil {
			w = weights[i]
		}
		b.SumW += w
		b.SumW2 += w * w
	}
	h.Breakdown[member] = b
	return nil
}

func (h *Histogram) fill(weights []float64, coords [][]float64) error {
	if len(coords) != len(h.Axes) {
		return errors.Errorf("fill needs %d coordinates, got %d", len(h.Axes), len(coords))
	}
	n := len(coords[0])
	for _, c := range coords {
		if len(c) != n {
			return errors.New("fill coordinates have different lengths")
		}
	}
	if weights != nil && len(weights) != n {
		return errors.Errorf("fill has %d weights for %d entries", len(weights), n)
	}
	bins := make([]int, len(h.Axes))
	for i := 0; i < n; i++ {
		for k, a := range h.Axes {
			bins[k] = a.Index(coords[k][i])
		}
		w := 1.0
		if weights != nil {
			w = weights[i]
		}
		idx := h.flatIndex(bins)
		h.values[idx] += w
		h.variances[idx] += w * w
	}
	return nil
}

//forEachCell visits every storage cell with its bin coordinates (-1 and Bins() are flow).
func (h *Histogram) forEachCell(visit func(idx int, bins []int)) {
	bins := make([]int, len(h.Axes))
	for k := range bins {
		bins[k] = -1
	}
	for {
		visit(h.flatIndex(bins), bins)
		k := len(bins) - 1
		for ; k >= 0; k-- {
			bins[k]++
			if bins[k] <= h.Axes[k].Bins() {
				break
			}
			bins[k] = -1
		}
		if k < 0 {
			return
		}
	}
}

func clampBins(h *Histogram, bins []int) []int {
	out := make([]int, len(bins))
	for k, b := range bins {
		switch {
		case b < 0:
			out[k] = 0
		case b >= h.Axes[k].Bins():
			out[k] = h.Axes[k].Bins() - 1
		default:
			out[k] = b
		}
	}
	return out
}

func (h *Histogram) foldFlow() {
	for _, store := range [][]float64{h.values, h.variances, h.syst} {
		if store != nil {
			h.foldInto(store, store)
		}
	}
}

//foldInto adds every flow cell of src into its nearest visible cell of dst and clears it.
func (h *Histogram) foldInto(dst, src []float64) {
	h.forEachCell(func(idx int, bins []int) {
		target := h.flatIndex(clampBins(h, bins))
		if target != idx {
			dst[target] += src[idx]
			src[idx] = 0
		}
	})
}

//visible returns the visible cells of store with the flow folded into the edge bins.
func (h *Histogram) visible(store []float64) []float64 {
	if store == nil {
		return nil
	}
	tmp := append([]float64(nil), store...)
	h.foldInto(tmp, tmp)
	var out []float64
	h.forEachCell(func(idx int, bins []int) {
		for k, b := range bins {
			if b < 0 || b >= h.Axes[k].Bins() {
				return
			}
		}
		out = append(out, tmp[idx])
	})
	return out
}

//Vals returns the visible bin contents (row-major for two axes) with the flow folded in.
func (h *Histogram) Vals() []float64 {
	return h.visible(h.values)
}

//SumW2 returns the visible variances with the flow folded in.
func (h *Histogram) SumW2() []float64 {
	return h.visible(h.variances)
}

//Err returns the statistical error per visible bin.
func (h *Histogram) Err() []float64 {
	out := h.SumW2()
	for i, v := range out {
		out[i] = math.Sqrt(v)
	}
	return out
}

//SetData overwrites the visible contents; sumw2 may be nil.
func (h *Histogram) SetData(vals, sumw2 []float64) error {
	n := len(h.Vals())
	if len(vals) != n || (sumw2 != nil && len(sumw2) != n) {
		return errors.Errorf("set data needs %d bins", n)
	}
	i := 0
	h.forEachCell(func(idx int, bins []int) {
		for k, b := range bins {
			if b < 0 || b >= h.Axes[k].Bins() {
				h.values[idx], h.variances[idx] = 0, 0
				return
			}
		}
		h.values[idx] = vals[i]
		if sumw2 != nil {
			h.variances[idx] = sumw2[i]
		}
		i++
	})
	return nil
}

func (h *Histogram) compatible(o *Histogram) error {
	if len(h.Axes) != len(o.Axes) {
		return errors.Errorf("histograms have %d and %d axes", len(h.Axes), len(o.Axes))
	}
	for k := range h.Axes {
		if !h.Axes[k].Equal(o.Axes[k]) {
			return errors.Errorf("axis %d binnings differ", k)
		}
	}
	return nil
}

//Add accumulates o (contents, variances, systematics and member breakdown).
func (h *Histogram) Add(o *Histogram) error {
	return h.addScaled(o, 1)
}

//Sub subtracts o; variances still add.
func (h *Histogram) Sub(o *Histogram) error {
	return h.addScaled(o, -1)
}

func (h *Histogram) addScaled(o *Histogram, sign float64) error {
	if err := h.compatible(o); err != nil {
		return err
	}
	for i := range h.values {
		h.values[i] += sign * o.values[i]
		h.variances[i] += o.variances[i]
	}
	if o.syst != nil {
		if h.syst == nil {
			h.syst = make([]float64, len(h.values))
		}
		for i := range h.syst {
			h.syst[i] += o.syst[i]
		}
	}
	for member, b := range o.Breakdown {
		cur := h.Breakdown[member]
		cur.SumW += sign * b.SumW
		cur.SumW2 += b.SumW2
		cur.NRaw += b.NRaw
		h.Breakdown[member] = cur
	}
	return nil
}

//Div returns h/o propagating errors of independent histograms:
//var(c) = (var(a)/a^2 + var(b)/b^2) c^2.
func (h *Histogram) Div(o *Histogram) (*Histogram, error) {
	if err := h.compatible(o); err != nil {
		return nil, err
	}
	out := h.Copy()
	out.syst = nil
	for i := range out.values {
		a, b := h.values[i], o.values[i]
		rel := h.variances[i]/(a*a+divEpsilon) + o.variances[i]/(b*b+divEpsilon)
		c := a / (b + divEpsilon)
		out.values[i] = c
		out.variances[i] = rel * c * c
	}
	return out, nil
}

//Scale multiplies contents by f (variances by f^2).
func (h *Histogram) Scale(f float64) {
	for i := range h.values {
		h.values[i] *= f
		h.variances[i] *= f * f
	}
	if h.syst != nil {
		for i := range h.syst {
			h.syst[i] *= f * f
		}
	}
	for member, b := range h.Breakdown {
		b.SumW *= f
		b.SumW2 *= f * f
		h.Breakdown[member] = b
	}
}

//Scaled returns a scaled copy.
func (h *Histogram) Scaled(f float64) *Histogram {
	out := h.Copy()
	out.Scale(f)
	return out
}

//ScaleForPlot only changes how the histogram is drawn.
func (h *Histogram) ScaleForPlot(f float64) {
	h.DrawScale = f
}

//Integral sums the contents, with or without the flow bins.
func (h *Histogram) Integral(flow bool) float64 {
	return h.sum(h.values, flow)
}

//Variance sums the variances, with or without the flow bins.
func (h *Histogram) Variance(flow bool) float64 {
	return h.sum(h.variances, flow)
}

func (h *Histogram) sum(store []float64, flow bool) float64 {
	total := 0.0
	h.forEachCell(func(idx int, bins []int) {
		if !flow {
			for k, b := range bins {
				if b < 0 || b >= h.Axes[k].Bins() {
					return
				}
			}
		}
		total += store[idx]
	})
	return total
}

//IntErr returns the integral and its variance (or error when sqrtErr) rounded to digits.
func (h *Histogram) IntErr(sqrtErr bool, digits int) [2]float64 {
	tot, v := h.Integral(true), h.Variance(true)
	if sqrtErr {
		v = math.Sqrt(v)
	}
	return [2]float64{round(tot, digits), round(v, digits)}
}

//AddSyst adds the squared content of a shift histogram to the systematic error.
//A nil shift only allocates the systematic storage.
func (h *Histogram) AddSyst(shift *Histogram) error {
	if h.syst == nil {
		h.syst = make([]float64, len(h.values))
	}
	if shift == nil {
		return nil
	}
	if err := h.compatible(shift); err != nil {
		return err
	}
	for i, v := range shift.values {
		h.syst[i] += v * v
	}
	return nil
}

//HasSyst reports whether systematic errors were attached.
func (h *Histogram) HasSyst() bool {
	return h.syst != nil
}

//SystErr2 returns the squared systematic error per visible bin.
func (h *Histogram) SystErr2() []float64 {
	if h.syst == nil {
		return make([]float64, len(h.Vals()))
	}
	return h.visible(h.syst)
}

//TotalErr is the statistical and systematic error added in quadrature.
func (h *Histogram) TotalErr() []float64 {
	stat := h.SumW2()
	syst := h.SystErr2()
	for i := range stat {
		stat[i] = math.Sqrt(stat[i] + syst[i])
	}
	return stat
}

//SelfRatio is the histogram divided by itself: unit contents with relative errors.
func (h *Histogram) SelfRatio() (*Histogram, error) {
	out := New(h.Axes...)
	vals := h.Vals()
	sumw2 := h.SumW2()
	ratio := make([]float64, len(vals))
	relVar := make([]float64, len(vals))
	for i, v := range vals {
		if math.Abs(v) > 1e-5 {
			ratio[i] = 1
		}
		relVar[i] = sumw2[i] / (v*v + divEpsilon)
	}
	if err := out.SetData(ratio, relVar); err != nil {
		return nil, err
	}
	if h.syst != nil {
		syst := h.SystErr2()
		out.syst = make([]float64, len(out.values))
		i := 0
		out.forEachCell(func(idx int, bins []int) {
			for k, b := range bins {
				if b < 0 || b >= out.Axes[k].Bins() {
					return
				}
			}
			out.syst[idx] = syst[i] / (vals[i]*vals[i] + divEpsilon)
			i++
		})
	}
	return out, nil
}

//Name is the legend entry, with the drawing scale appended when it is not one.
func (h *Histogram) Name() string {
	if h.DrawScale == 1 {
		return h.Label
	}
	if h.DrawScale == math.Trunc(h.DrawScale) {
		return fmt.Sprintf("%s x %d", h.Label, int(h.DrawScale))
	}
	return fmt.Sprintf("%s x %.2f", h.Label, h.DrawScale)
}

//XRange returns the range of the first axis.
func (h *Histogram) XRange() (float64, float64) {
	return h.Axes[0].Range()
}

func round(x float64, digits int) float64 {
	p := math.Pow(10, float64(digits))
	return math.Round(x*p) / p
}
