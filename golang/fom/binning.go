package fom

import (
	"github.com/tarstars/hep_boosting/golang/hist"
	"gonum.org/v1/gonum/floats"
)

//Linspace returns n points from lo to hi inclusive.
func Linspace(lo, hi float64, n int) []float64 {
	if n < 2 {
		return []float64{lo}
	}
	return floats.Span(make([]float64, n), lo, hi)
}

//weightedCounts histograms the selected values; the last edge is inclusive and
//values outside the edges are dropped.
func weightedCounts(edges, values, weights []float64, keep func(i int) bool) []float64 {
	axis := hist.Axis{Edges: edges}
	counts := make([]float64, axis.Bins())
	_, hi := axis.Range()
	for i, v := range values {
		if keep != nil && !keep(i) {
			continue
		}
		bin := axis.Index(v)
		if v == hi {
			bin = axis.Bins() - 1
		}
		if bin < 0 || bin >= axis.Bins() {
			continue
		}
		counts[bin] += weights[i]
	}
	return counts
}

//reverseCumsum sums every bin with all the bins above it.
func reverseCumsum(x []float64) []float64 {
	out := make([]float64, len(x))
	acc := 0.0
	for i := len(x) - 1; i >= 0; i-- {
		acc += x[i]
		out[i] = acc
	}
	return out
}
