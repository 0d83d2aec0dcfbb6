package bdt

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

const probEpsilon = 1e-15

//SplitLoss supplies the first and the second derivative of a loss with respect to the raw prediction.
type SplitLoss interface {
	lossDer1(target, bias float64) float64
	lossDer2(target, bias float64) float64
	Name() string
}

//MseLoss is the squared error 0.5*(bias-target)^2.
type MseLoss struct{}

func (MseLoss) lossDer1(target, bias float64) float64 { return bias - target }
func (MseLoss) lossDer2(_, _ float64) float64         { return 1 }

//Name of the loss in saved models.
func (MseLoss) Name() string { return "mse" }

//LogLoss is the binary cross entropy of sigmoid(bias).
type LogLoss struct{}

func (LogLoss) lossDer1(target, bias float64) float64 {
	return Sigmoid(bias) - target
}

func (LogLoss) lossDer2(_, bias float64) float64 {
	p := Sigmoid(bias)
	return math.Max(p*(1-p), 1e-16)
}

//Name of the loss in saved models.
func (LogLoss) Name() string { return "logloss" }

//LossByName restores a loss from its saved name.
func LossByName(name string) (SplitLoss, error) {
	switch name {
	case "logloss", "binary:logistic":
		return LogLoss{}, nil
	case "mse", "reg:squarederror":
		return MseLoss{}, nil
	}
	return nil, errors.Errorf("unknown loss %q", name)
}

//Sigmoid maps a raw score to a probability.
func Sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

//Logloss is the weighted binary cross entropy; raw scores are converted when applySigmoid is set.
func Logloss(target, prediction, weight *mat.Dense, applySigmoid bool) float64 {
	h := Height(target)
	sum, norm := 0.0, 0.0
	for p := 0; p < h; p++ {
		y, pr := target.At(p, 0), prediction.At(p, 0)
		if applySigmoid {
			pr = Sigmoid(pr)
		}
		pr = math.Min(math.Max(pr, probEpsilon), 1-probEpsilon)
		w := 1.0
		if weight != nil {
			w = weight.At(p, 0)
		}
		sum -= w * (y*math.Log(pr) + (1-y)*math.Log(1-pr))
		norm += w
	}
	return sum / norm
}

//Rmse is the weighted root mean squared error.
func Rmse(target, prediction, weight *mat.Dense) float64 {
	h := Height(target)
	sum, norm := 0.0, 0.0
	for p := 0; p < h; p++ {
		d := prediction.At(p, 0) - target.At(p, 0)
		w := 1.0
		if weight != nil {
			w = weight.At(p, 0)
		}
		sum += w * d * d
		norm += w
	}
	return math.Sqrt(sum / norm)
}
