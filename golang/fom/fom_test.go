package fom

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func TestSignificance(t *testing.T) {
	assert.InDelta(t, 0.49593, LikelihoodSig(5, 100), 1e-4)
	assert.InDelta(t, 0.5, AsymptoticSig(5, 100), 1e-6)
	assert.InDelta(t, 0.05, SOverBRatio(5, 100), 1e-6)
	zeroBkg := LikelihoodSig(10, 0)
	assert.False(t, math.IsInf(zeroBkg, 0) || math.IsNaN(zeroBkg))
	assert.Greater(t, zeroBkg, 10.0)

	k, err := ParseKind("s/sqrtb")
	require.NoError(t, err)
	assert.Equal(t, SOverSqrtB, k)
	_, err = ParseKind("s/b^2")
	assert.Error(t, err)
}

func TestScanBest(t *testing.T) {
	sig := Events{Values: []float64{1, 2, 3}, Weights: []float64{1, 1, 1}}
	bkg := Events{Values: []float64{0.5, 0.5, 2.8}, Weights: []float64{4, 4, 1}}
	res, err := Scan(sig, []Events{bkg}, []float64{0, 1.5, 2.5}, SOverSqrtB)
	require.NoError(t, err)

	assert.Equal(t, []float64{3, 2, 1}, res.Sig)
	assert.Equal(t, []float64{9, 1, 1}, res.Bkg)
	assert.True(t, cmp.Equal([]float64{1, 2, 1}, res.FOM, cmpopts.EquateApprox(1e-5, 0)), res.FOM)
	best, cut := res.Best()
	assert.InDelta(t, 2, best, 1e-4)
	assert.Equal(t, 1.5, cut)

	_, err = Scan(sig, nil, nil, Likelihood)
	assert.Error(t, err)
	_, err = Scan(Events{Values: []float64{1}}, nil, []float64{0}, Likelihood)
	assert.Error(t, err)
}

func TestBinnedLikelihoodSkipsEmptyBackground(t *testing.T) {
	assert.Equal(t, 0.0, BinnedLikelihood([]float64{1}, []float64{0}))
	assert.InDelta(t, 0.93037, BinnedLikelihood([]float64{1, 2}, []float64{0, 4}), 1e-4)
	assert.Less(t, BinnedFOMMetric([]float64{1, 2}, []float64{0, 4}), 0.0)
}

func TestApproxLikelihood(t *testing.T) {
	values := []float64{0.5, 0.5, 0.5, 0.5, 1.5}
	pred := []float64{0.9, 0.9, 0.2, 0.2, 0.95}
	weights := []float64{1, 1, 1, 1, 1}
	isSignal := []bool{true, true, false, false, false}

	best, cut, err := ApproxLikelihood(values, pred, weights, isSignal, []float64{0, 1, 2}, 21)
	require.NoError(t, err)
	assert.InDelta(t, 1.24305, best, 1e-4)
	assert.Equal(t, 0.0, cut)

	_, _, err = ApproxLikelihood(values, pred[:2], weights, isSignal, []float64{0, 1}, 21)
	assert.Error(t, err)
}

func TestCutFOM(t *testing.T) {
	pred := []float64{0.95, 0.85, 0.15, 0.25, 0.92}
	weights := []float64{1, 1, 1, 1, 1}
	isSignal := []bool{true, true, false, false, false}
	best, cut, err := CutFOM(pred, weights, isSignal, 10)
	require.NoError(t, err)
	assert.InDelta(t, 2/math.Sqrt(3), best, 1e-9)
	assert.InDelta(t, 0.3, cut, 1e-9)
}

func TestLinspace(t *testing.T) {
	cases := []struct {
		lo, hi float64
		n      int
		want   []float64
	}{
		{0, 1, 5, []float64{0, 0.25, 0.5, 0.75, 1}},
		{0, 1, 2, []float64{0, 1}},
		{-1, 1, 3, []float64{-1, 0, 1}},
		{2, 2, 3, []float64{2, 2, 2}},
		{0.5, 1, 1, []float64{0.5}},
		{0.5, 1, 0, []float64{0.5}},
	}
	for _, tc := range cases {
		got := Linspace(tc.lo, tc.hi, tc.n)
		assert.True(t, cmp.Equal(tc.want, got, cmpopts.EquateApprox(0, 1e-12)), "%v", got)
	}
	edges := Linspace(0, 1+1.0/4, 6)
	assert.InDelta(t, 0.25, edges[1]-edges[0], 1e-12)
	assert.InDelta(t, 1.25, edges[len(edges)-1], 1e-12)
}

func TestROC(t *testing.T) {
	pred := []float64{0.1, 0.4, 0.35, 0.8}
	truth := []bool{false, false, true, true}

	c, err := ROC(pred, truth, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, c.AUC, 1e-12)
	assert.Equal(t, 0.0, c.FPR[0])
	assert.Equal(t, 1.0, c.TPR[len(c.TPR)-1])

	weighted, err := ROC(pred, truth, []float64{1, -1, 2, 2})
	require.NoError(t, err)
	assert.InDelta(t, 0.75, weighted.AUC, 1e-12)

	binned, err := BinnedROC(pred, truth, nil, 100)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, binned.AUC, 1e-9)
	assert.InDelta(t, 1.0, binned.FPR[len(binned.FPR)-1], 1e-12)

	signed, err := BinnedROC(pred, truth, []float64{3, -1, 2, 2}, 100)
	require.NoError(t, err)
	assert.InDelta(t, 1.25, signed.AUC, 1e-9)
	assert.InDelta(t, -0.5, floats.Min(signed.FPR), 1e-12)
	absolute, err := BinnedROC(pred, truth, []float64{3, 1, 2, 2}, 100)
	require.NoError(t, err)
	assert.InDelta(t, 0.875, absolute.AUC, 1e-9)
	_, err = BinnedROC(pred, truth, []float64{1, -1, 2, 2}, 100)
	assert.Error(t, err)

	_, err = ROC(nil, nil, nil)
	assert.Error(t, err)
	_, err = ROC([]float64{0.5}, []bool{true}, nil)
	assert.Error(t, err)
}

func TestConfusion(t *testing.T) {
	st, err := Confusion(
		[]float64{0.9, 0.8, 0.3, 0.6, 0.1},
		[]bool{true, true, true, false, false},
		[]float64{1, 1, 1, 2, 2}, 0.5)
	require.NoError(t, err)
	assert.Equal(t, [4]int{1, 1, 1, 2}, [4]int{st.TN, st.FP, st.FN, st.TP})
	assert.InDelta(t, 2.0/3, st.Precision, 1e-12)
	assert.InDelta(t, 2.0/3, st.Recall, 1e-12)
	assert.InDelta(t, 2.0/3, st.F1, 1e-12)
	assert.InDelta(t, 1.0/6, st.MCC, 1e-12)
	assert.InDelta(t, 1.0, st.FOM, 1e-12)
	assert.Contains(t, st.String(), "cut 0.500")
}
