package fom

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
)

//Stats summarises a classifier at one prediction cut. Counts are unweighted, FOM uses weights.
type Stats struct {
	Cut               float64
	TN, FP, FN, TP    int
	Precision, Recall float64
	F1, MCC, FOM      float64
}

//Confusion classifies events with pred > cut as signal.
func Confusion(pred []float64, truth []bool, weights []float64, cut float64) (Stats, error) {
	if len(pred) == 0 {
		return Stats{}, errors.New("confusion needs at least one event")
	}
	if len(pred) != len(truth) || len(pred) != len(weights) {
		return Stats{}, errors.New("confusion inputs differ in length")
	}
	st := Stats{Cut: cut}
	var sig, bkg float64
	for i, p := range pred {
		pass := p > cut
		switch {
		case pass && truth[i]:
			st.TP++
		case pass:
			st.FP++
		case truth[i]:
			st.FN++
		default:
			st.TN++
		}
		if pass {
			if truth[i] {
				sig += weights[i]
			} else {
				bkg += weights[i]
			}
		}
	}
	n := float64(len(pred))
	tp, fp, fn := float64(st.TP), float64(st.FP), float64(st.FN)
	st.Precision = tp / (tp + fp)
	st.Recall = tp / (tp + fn)
	st.F1 = 2 * st.Precision * st.Recall / (st.Precision + st.Recall)
	s := (tp + fn) / n
	p := (tp + fp) / n
	st.MCC = (tp/n - s*p) / math.Sqrt(p*s*(1-p)*(1-s))
	st.FOM = sig / math.Sqrt(sig+bkg)
	return st, nil
}

func (s Stats) String() string {
	return fmt.Sprintf("cut %0.3f: precision %0.3f recall %0.3f f1 %0.3f mcc %0.3f fom %0.3f",
		s.Cut, s.Precision, s.Recall, s.F1, s.MCC, s.FOM)
}
