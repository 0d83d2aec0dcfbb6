package fom

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

//Events is one sample seen through a single variable.
type Events struct {
	Values  []float64
	Weights []float64
}

//passing sums the weights of events with values above threshold.
func (e Events) passing(threshold float64) float64 {
	total := 0.0
	for i, v := range e.Values {
		if v > threshold {
			total += e.Weights[i]
		}
	}
	return total
}

//ScanResult holds the significance of the selection var > threshold for every threshold.
type ScanResult struct {
	Kind       Kind
	Thresholds []float64
	Sig        []float64
	Bkg        []float64
	FOM        []float64
}

//Scan evaluates a lower cut on a variable at every threshold.
func Scan(sig Events, bkgs []Events, thresholds []float64, kind Kind) (*ScanResult, error) {
	if len(thresholds) == 0 {
		return nil, errors.New("fom scan needs at least one threshold")
	}
	for _, e := range append([]Events{sig}, bkgs...) {
		if len(e.Values) != len(e.Weights) {
			return nil, errors.Errorf("fom scan got %d values and %d weights", len(e.Values), len(e.Weights))
		}
	}
	res := &ScanResult{
		Kind:       kind,
		Thresholds: append([]float64(nil), thresholds...),
		Sig:        make([]float64, len(thresholds)),
		Bkg:        make([]float64, len(thresholds)),
		FOM:        make([]float64, len(thresholds)),
	}
	for i, cut := range thresholds {
		res.Sig[i] = sig.passing(cut)
		for _, b := range bkgs {
			res.Bkg[i] += b.passing(cut)
		}
		res.FOM[i] = kind.Apply(res.Sig[i], res.Bkg[i])
	}
	return res, nil
}

//Best returns the largest figure of merit and its threshold; NaN entries are ignored.
func (r *ScanResult) Best() (float64, float64) {
	best, cut := math.Inf(-1), math.NaN()
	for i, v := range r.FOM {
		if !math.IsNaN(v) && v > best {
			best, cut = v, r.Thresholds[i]
		}
	}
	return best, cut
}

//ApproxLikelihood scans nsteps prediction cuts in [0, 1]; for each it histograms var over the
//passing events and combines the per-bin likelihoods. It returns the best value and cut,
//or (0, -1) when no cut gives a positive significance.
func ApproxLikelihood(values, pred, weights []float64, isSignal []bool, edges []float64, nsteps int) (float64, float64, error) {
	if len(values) != len(pred) || len(pred) != len(weights) || len(weights) != len(isSignal) {
		return 0, -1, errors.New("approx likelihood inputs differ in length")
	}
	if len(edges) < 2 {
		return 0, -1, errors.New("approx likelihood needs at least one bin")
	}
	best, bestCut := 0.0, -1.0
	for _, cut := range Linspace(0, 1, nsteps) {
		s := weightedCounts(edges, values, weights, func(i int) bool { return isSignal[i] && pred[i] > cut })
		b := weightedCounts(edges, values, weights, func(i int) bool { return !isSignal[i] && pred[i] > cut })
		if v := BinnedLikelihood(s, b); v > best {
			best, bestCut = v, cut
		}
	}
	return best, bestCut, nil
}

//CutFOM histograms predictions in nbins on [0, 1] and returns the best S/sqrt(S+B)
//of a lower cut on the prediction together with that cut.
func CutFOM(pred, weights []float64, isSignal []bool, nbins int) (float64, float64, error) {
	if len(pred) != len(weights) || len(pred) != len(isSignal) {
		return 0, 0, errors.New("cut fom inputs differ in length")
	}
	if nbins < 1 {
		return 0, 0, errors.Errorf("cut fom needs positive bins, got %d", nbins)
	}
	edges := Linspace(0, 1, nbins+1)
	sig := reverseCumsum(weightedCounts(edges, pred, weights, func(i int) bool { return isSignal[i] }))
	tot := reverseCumsum(weightedCounts(edges, pred, weights, nil))
	ratio := make([]float64, len(sig))
	for i := range sig {
		ratio[i] = sig[i] / math.Sqrt(tot[i])
		if math.IsNaN(ratio[i]) {
			ratio[i] = math.Inf(-1)
		}
	}
	idx := floats.MaxIdx(ratio)
	if math.IsInf(ratio[idx], -1) {
		return 0, 0, errors.New("cut fom has no populated bins")
	}
	return ratio[idx], edges[idx], nil
}

//PredictionFOM histograms signal probabilities into nbins on [0, 1] and returns BinnedFOMMetric.
func PredictionFOM(prob, label, weights []float64, nbins int) float64 {
	edges := Linspace(0, 1, nbins+1)
	s := weightedCounts(edges, prob, weights, func(i int) bool { return label[i] == 1 })
	b := weightedCounts(edges, prob, weights, func(i int) bool { return label[i] == 0 })
	return BinnedFOMMetric(s, b)
}
