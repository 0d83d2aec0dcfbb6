// Package fom computes figures of merit used to choose selections and to score classifiers.
package fom

import (
	"math"

	"github.com/pkg/errors"
)

const bkgEpsilon = 1e-5

//Kind names a significance estimator.
type Kind string

const (
	Likelihood Kind = "likely"
	SOverSqrtB Kind = "s/sqrtb"
	SOverB     Kind = "s/b"
)

//ParseKind validates a significance name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case Likelihood, SOverSqrtB, SOverB:
		return k, nil
	}
	return "", errors.Errorf("significance type %q not allowed", s)
}

//Apply evaluates the estimator for signal s and background b.
func (k Kind) Apply(s, b float64) float64 {
	switch k {
	case SOverSqrtB:
		return AsymptoticSig(s, b)
	case SOverB:
		return SOverBRatio(s, b)
	default:
		return LikelihoodSig(s, b)
	}
}

//Label is the formula shown on figures.
func (k Kind) Label() string {
	switch k {
	case SOverSqrtB:
		return "s/sqrt(b)"
	case SOverB:
		return "s/b"
	default:
		return "sqrt(2(s+b)ln(1+s/b)-2s)"
	}
}

//LikelihoodSig is the asymptotic Poisson significance of s over b.
func LikelihoodSig(s, b float64) float64 {
	return math.Sqrt(2*(s+b)*math.Log(1+s/(b+bkgEpsilon)) - 2*s)
}

//AsymptoticSig is s/sqrt(b).
func AsymptoticSig(s, b float64) float64 {
	return s / math.Sqrt(b+bkgEpsilon)
}

//SOverBRatio is s/b.
func SOverBRatio(s, b float64) float64 {
	return s / (b + bkgEpsilon)
}

//BinnedLikelihood combines per-bin likelihood significances; bins without a finite term are skipped.
func BinnedLikelihood(s, b []float64) float64 {
	total := 0.0
	for i := range s {
		term := 2 * ((s[i]+b[i])*math.Log(1+s[i]/b[i]) - s[i])
		if math.IsNaN(term) || math.IsInf(term, 0) {
			continue
		}
		total += term
	}
	return math.Sqrt(total)
}

//BinnedFOMMetric is the negated combined significance minimised during training.
func BinnedFOMMetric(s, b []float64) float64 {
	total := 0.0
	for i := range s {
		total += (s[i]+b[i])*math.Log(1+s[i]/(b[i]+bkgEpsilon)) - s[i]
	}
	return -math.Sqrt(2 * total)
}
