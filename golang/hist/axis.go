package hist

import (
	"sort"

	"github.com/pkg/errors"
)

//Axis is a binning given by ascending bin edges. The upper edge is exclusive: a value equal
//to the last edge goes to the overflow bin.
type Axis struct {
	Edges []float64
}

//NewRegular creates n equal bins on [lo, hi).
func NewRegular(n int, lo, hi float64) (Axis, error) {
	if n < 1 || !(hi > lo) {
		return Axis{}, errors.Errorf("invalid regular axis (%d, %g, %g)", n, lo, hi)
	}
	edges := make([]float64, n+1)
	step := (hi - lo) / float64(n)
	for i := range edges {
		edges[i] = lo + float64(i)*step
	}
	edges[n] = hi
	return Axis{Edges: edges}, nil
}

//NewVariable creates bins from explicit edges.
func NewVariable(edges []float64) (Axis, error) {
	if len(edges) < 2 {
		return Axis{}, errors.New("an axis needs at least two edges")
	}
	for i := 1; i < len(edges); i++ {
		if !(edges[i] > edges[i-1]) {
			return Axis{}, errors.Errorf("axis edges must be strictly increasing, got %v", edges)
		}
	}
	return Axis{Edges: append([]float64(nil), edges...)}, nil
}

//Bins is the number of visible bins.
func (a Axis) Bins() int {
	return len(a.Edges) - 1
}

//Extent is the number of bins including underflow and overflow.
func (a Axis) Extent() int {
	return len(a.Edges) + 1
}

//Index returns the visible bin of x, -1 for underflow and Bins() for overflow.
func (a Axis) Index(x float64) int {
	return sort.Search(len(a.Edges), func(i int) bool { return a.Edges[i] > x }) - 1
}

//Centers of the visible bins.
func (a Axis) Centers() []float64 {
	out := make([]float64, a.Bins())
	for i := range out {
		out[i] = (a.Edges[i] + a.Edges[i+1]) / 2
	}
	return out
}

//Widths of the visible bins.
func (a Axis) Widths() []float64 {
	out := make([]float64, a.Bins())
	for i := range out {
		out[i] = a.Edges[i+1] - a.Edges[i]
	}
	return out
}

//Range returns the first and the last edge.
func (a Axis) Range() (float64, float64) {
	return a.Edges[0], a.Edges[len(a.Edges)-1]
}

//Equal compares binnings.
func (a Axis) Equal(b Axis) bool {
	if len(a.Edges) != len(b.Edges) {
		return false
	}
	for i := range a.Edges {
		if a.Edges[i] != b.Edges[i] {
			return false
		}
	}
	return true
}

//IsDiscrete reports unit-width bins (integer valued variables such as object counts).
func (a Axis) IsDiscrete() bool {
	for _, w := range a.Widths() {
		if w != 1 {
			return false
		}
	}
	return true
}
