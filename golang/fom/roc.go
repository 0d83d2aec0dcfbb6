package fom

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

//Curve is a receiver operating characteristic ordered by increasing false positive rate.
type Curve struct {
	Label      string
	FPR        []float64
	TPR        []float64
	Thresholds []float64
	AUC        float64
}

func checkLabeled(pred []float64, truth []bool, weights []float64) error {
	if len(pred) == 0 {
		return errors.New("roc needs at least one event")
	}
	if len(pred) != len(truth) || (weights != nil && len(weights) != len(pred)) {
		return errors.New("roc inputs differ in length")
	}
	var pos, neg bool
	for _, t := range truth {
		pos = pos || t
		neg = neg || !t
	}
	if !pos || !neg {
		return errors.New("roc needs both signal and background events")
	}
	return nil
}

//ROC computes the exact weighted curve over every distinct prediction. Weights enter by
//absolute value so the rates stay monotonic; use BinnedROC for signed weights.
func ROC(pred []float64, truth []bool, weights []float64) (*Curve, error) {
	if err := checkLabeled(pred, truth, weights); err != nil {
		return nil, err
	}
	y := append([]float64(nil), pred...)
	classes := append([]bool(nil), truth...)
	w := make([]float64, len(y))
	for i := range w {
		w[i] = 1
		if weights != nil {
			w[i] = math.Abs(weights[i])
		}
	}
	stat.SortWeightedLabeled(y, classes, w)
	tpr, fpr, thresh := stat.ROC(nil, y, classes, w)
	c := &Curve{FPR: fpr, TPR: tpr, Thresholds: thresh}
	c.AUC = integrate.Trapezoidal(fpr, tpr)
	return c, nil
}

//BinnedROC histograms predictions into nbins+1 bins on [0, 1+1/nbins] and accumulates the
//rates from the highest bin down. Weights are signed; both classes need a positive total.
func BinnedROC(pred []float64, truth []bool, weights []float64, nbins int) (*Curve, error) {
	if err := checkLabeled(pred, truth, weights); err != nil {
		return nil, err
	}
	if nbins < 1 {
		return nil, errors.Errorf("binned roc needs positive bins, got %d", nbins)
	}
	if weights == nil {
		weights = make([]float64, len(pred))
		floats.AddConst(1, weights)
	}
	edges := Linspace(0, 1+1/float64(nbins), nbins+2)
	s := weightedCounts(edges, pred, weights, func(i int) bool { return truth[i] })
	b := weightedCounts(edges, pred, weights, func(i int) bool { return !truth[i] })
	sTot, bTot := floats.Sum(s), floats.Sum(b)
	if sTot <= 0 || bTot <= 0 {
		return nil, errors.Errorf("binned roc needs positive class weights, got %g and %g", sTot, bTot)
	}
	floats.Reverse(s)
	floats.Reverse(b)
	tpr := make([]float64, len(s))
	fpr := make([]float64, len(b))
	floats.CumSum(tpr, s)
	floats.CumSum(fpr, b)
	floats.Scale(1/sTot, tpr)
	floats.Scale(1/bTot, fpr)

	c := &Curve{FPR: fpr, TPR: tpr}
	for i := 1; i < len(fpr); i++ {
		c.AUC += (fpr[i] - fpr[i-1]) * (tpr[i] + tpr[i-1]) / 2
	}
	return c, nil
}
