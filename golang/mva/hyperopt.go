package mva

import (
	"context"
	"math"
	"math/rand"
	"sort"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/tarstars/hep_boosting/golang/bdt"
	"github.com/tarstars/hep_boosting/golang/fom"
)

// prediction bins of the hyperparameter objective
const objectiveBins = 15

//Dist is the prior of one hyperparameter.
type Dist int

const (
	Uniform Dist = iota
	QUniform
	LogUniform
)

//Range describes how one hyperparameter is drawn. Step only applies to QUniform.
type Range struct {
	Name string
	Dist Dist
	Low  float64
	High float64
	Step float64
}

//Sample draws one value.
func (r Range) Sample(rnd *rand.Rand) float64 {
	switch r.Dist {
	case QUniform:
		step := r.Step
		if step <= 0 {
			step = 1
		}
		v := math.Round((r.Low+rnd.Float64()*(r.High-r.Low))/step) * step
		return math.Min(math.Max(v, r.Low), r.High)
	case LogUniform:
		lo, hi := math.Log(r.Low), math.Log(r.High)
		return math.Exp(lo + rnd.Float64()*(hi-lo))
	default:
		return r.Low + rnd.Float64()*(r.High-r.Low)
	}
}

//Space is the set of searched hyperparameters.
type Space []Range

//DefaultSpace is the usual xgboost search space of the analysis.
func DefaultSpace() Space {
	return Space{
		{Name: "max_depth", Dist: QUniform, Low: 1, High: 5, Step: 1},
		{Name: "gamma", Dist: Uniform, Low: 1, High: 9},
		{Name: "eta", Dist: LogUniform, Low: 0.001, High: 0.5},
		{Name: "colsample_bytree", Dist: Uniform, Low: 0.5, High: 1},
		{Name: "min_child_weight", Dist: QUniform, Low: 0, High: 10, Step: 1},
		{Name: "subsample", Dist: Uniform, Low: 0.5, High: 1},
		{Name: "n_estimators", Dist: QUniform, Low: 100, High: 1000, Step: 50},
	}
}

func (space Space) validate() error {
	for _, r := range space {
		switch {
		case !(r.High >= r.Low):
			return errors.Errorf("%s: empty range [%g, %g]", r.Name, r.Low, r.High)
		case r.Dist == LogUniform && r.Low <= 0:
			return errors.Errorf("%s: log uniform range must be positive", r.Name)
		}
	}
	return nil
}

//Trial is one evaluated point of the space.
type Trial struct {
	Index  int
	Params map[string]float64
	Loss   float64
	Err    error
}

//Objective evaluates a point; lower is better.
type Objective func(ctx context.Context, point map[string]float64) (float64, error)

//HyperSearch draws trials random points of the space and returns the trials ordered by loss,
//failed trials last.
func HyperSearch(ctx context.Context, space Space, trials int, seed int64, objective Objective) ([]Trial, error) {
	if trials < 1 {
		return nil, errors.Errorf("trials must be positive, got %d", trials)
	}
	if err := space.validate(); err != nil {
		return nil, err
	}
	rnd := rand.New(rand.NewSource(seed))
	out := make([]Trial, 0, trials)
	for i := 0; i < trials; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		point := make(map[string]float64, len(space))
		for _, r := range space {
			point[r.Name] = r.Sample(rnd)
		}
		loss, err := objective(ctx, point)
		trial := Trial{Index: i, Params: point, Loss: loss, Err: err}
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			log.Warn().Err(err).Int("trial", i).Msg("trial failed")
		} else {
			log.Info().Int("trial", i).Float64("loss", loss).Interface("params", point).Msg("trial done")
		}
		out = append(out, trial)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if (out[i].Err == nil) != (out[j].Err == nil) {
			return out[i].Err == nil
		}
		return out[i].Loss < out[j].Loss
	})
	if out[0].Err != nil {
		return out, errors.Wrap(out[0].Err, "every trial failed")
	}
	return out, nil
}

//ApplyPoint overrides booster parameters by their xgboost names.
func ApplyPoint(params bdt.Params, point map[string]float64) (bdt.Params, error) {
	for name, v := range point {
		switch name {
		case "max_depth":
			params.MaxDepth = int(v)
		case "gamma":
			params.Gamma = v
		case "eta":
			params.LearningRate = v
		case "colsample_bytree":
			params.ColsampleByTree = v
		case "min_child_weight":
			params.MinChildWeight = v
		case "subsample":
			params.Subsample = v
		case "n_estimators":
			params.NStages = int(v)
		case "reg_lambda":
			params.RegLambda = v
		default:
			return params, errors.Errorf("unknown hyperparameter %q", name)
		}
	}
	return params, nil
}

//Objective trains on the holder's sets with base overridden by the point and returns the
//negated binned significance of the validation set. The holder's model is left untouched.
func (h *Holder) Objective(base bdt.Params) Objective {
	return func(ctx context.Context, point map[string]float64) (float64, error) {
		params, err := ApplyPoint(base, point)
		if err != nil {
			return 0, err
		}
		params.EarlyStoppingRounds = 100
		if h.ValidationSet.Len() == 0 {
			return 0, errors.New("validation set is empty")
		}
		booster, err := h.fit(ctx, params)
		if err != nil {
			return 0, err
		}
		prob, err := h.predictWith(booster, h.ValidationSet)
		if err != nil {
			return 0, err
		}
		label, err := h.ValidationSet.Column(ClassIDColumn)
		if err != nil {
			return 0, err
		}
		return fom.PredictionFOM(prob, label, absWeights(h.ValidationSet), objectiveBins), nil
	}
}
