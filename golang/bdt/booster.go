// Package bdt implements gradient boosted decision trees whose leaves are linear in an optional basis.
package bdt

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path"
	"sort"

	"github.com/goccy/go-graphviz"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/tarstars/hep_boosting/golang/fom"
	"gonum.org/v1/gonum/mat"
)

// number of prediction bins of the fom learning curve
const fomBins = 20

//Params collect arguments required to train a booster.
type Params struct {
	Train               *Dataset
	EvalSets            []*Dataset
	Loss                SplitLoss
	NStages             int
	LearningRate        float64
	RegLambda           float64
	Gamma               float64
	MinChildWeight      float64
	MaxDepth            int
	Subsample           float64
	ColsampleByTree     float64
	ThreadsNum          int
	Seed                int64
	EarlyStoppingRounds int
	UnbalancedLoss      float64
	FeatureNames        []string
	Bias                *mat.Dense
}

//DefaultParams mirror the usual xgboost defaults of the analysis.
func DefaultParams() Params {
	return Params{
		Loss:                LogLoss{},
		NStages:             500,
		LearningRate:        0.09,
		RegLambda:           1,
		MinChildWeight:      1e-6,
		MaxDepth:            10,
		Subsample:           1,
		ColsampleByTree:     0.75,
		ThreadsNum:          1,
		Seed:                12345,
		EarlyStoppingRounds: 1500,
	}
}

func (params *Params) validate() error {
	if params.Train == nil {
		return errors.New("no training dataset")
	}
	if err := params.Train.validate(); err != nil {
		return errors.Wrap(err, "training dataset")
	}
	_, w := params.Train.Features.Dims()
	for _, ev := range params.EvalSets {
		if err := ev.validate(); err != nil {
			return errors.Wrap(err, "evaluation dataset")
		}
		if _, ew := ev.Features.Dims(); ew != w {
			return errors.Errorf("evaluation dataset %s has %d features, want %d", ev.Description, ew, w)
		}
		if ev.BasisWidth() != params.Train.BasisWidth() {
			return errors.Errorf("evaluation dataset %s has basis width %d, want %d", ev.Description, ev.BasisWidth(), params.Train.BasisWidth())
		}
	}
	switch {
	case params.Loss == nil:
		return errors.New("no loss")
	case params.NStages < 1:
		return errors.Errorf("n_stages must be positive, got %d", params.NStages)
	case params.LearningRate <= 0:
		return errors.Errorf("learning rate must be positive, got %g", params.LearningRate)
	case params.RegLambda < 0 || params.Gamma < 0 || params.MinChildWeight < 0:
		return errors.New("regularisation parameters must not be negative")
	case params.Subsample <= 0 || params.Subsample > 1:
		return errors.Errorf("subsample must be in (0, 1], got %g", params.Subsample)
	case params.ColsampleByTree <= 0 || params.ColsampleByTree > 1:
		return errors.Errorf("colsample_bytree must be in (0, 1], got %g", params.ColsampleByTree)
	case params.FeatureNames != nil && len(params.FeatureNames) != w:
		return errors.Errorf("%d feature names for %d features", len(params.FeatureNames), w)
	}
	return nil
}

//Booster is the model class.
type Booster struct {
	Trees               []OneTree
	LearningCurveTitles []string
	LossName            string
	FeatureNames        []string
	BestIteration       int
	BestScore           float64
}

//Train grows params.NStages trees, or fewer when early stopping triggers on the last metric
//of the last evaluation set (the fom for logloss models, lower is better).
func Train(ctx context.Context, params Params) (*Booster, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	ds := params.Train
	h, w := ds.Features.Dims()
	booster := &Booster{LossName: params.Loss.Name(), FeatureNames: params.FeatureNames, BestIteration: -1}

	bias := mat.NewDense(h, 1, nil)
	if params.Bias != nil {
		bias.Copy(params.Bias)
	}
	evalBiases := make([]*mat.Dense, len(params.EvalSets))
	for ind, ev := range params.EvalSets {
		evalBiases[ind] = mat.NewDense(ev.Len(), 1, nil)
		for _, metric := range booster.metricNames() {
			booster.LearningCurveTitles = append(booster.LearningCurveTitles, fmt.Sprintf("%s-%s", ev.Description, metric))
		}
	}

	rnd := rand.New(rand.NewSource(params.Seed))
	tp := &treeParams{
		loss:           params.Loss,
		regLambda:      params.RegLambda,
		gamma:          params.Gamma,
		minChildWeight: params.MinChildWeight,
		maxDepth:       params.MaxDepth,
		learningRate:   params.LearningRate,
		threadsNum:     params.ThreadsNum,
		unbalancedLoss: params.UnbalancedLoss,
	}

	sinceBest := 0
	for stage := 0; stage < params.NStages; stage++ {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrapf(err, "training stopped at tree %d", stage)
		}
		tp.columns = sampleIndices(rnd, w, params.ColsampleByTree)

		treeSet, treeBias := ds, bias
		if params.Subsample < 1 {
			treeSet, treeBias = ds.Rows(sampleIndices(rnd, h, params.Subsample), bias)
		}
		tree := NewTree(treeSet, treeBias, tp)
		bias.Add(bias, tree.PredictValue(ds.Features, ds.Basis))

		for ind, ev := range params.EvalSets {
			evalBiases[ind].Add(evalBiases[ind], tree.PredictValue(ev.Features, ev.Basis))
			row := booster.evaluate(ev, evalBiases[ind])
			tree.LearningCurveRow = append(tree.LearningCurveRow, row...)
			log.Debug().Int("tree", stage+1).Str("set", ev.Description).Floats64("metrics", row).Msg("learning curve")
		}
		booster.Trees = append(booster.Trees, tree)

		if len(params.EvalSets) > 0 {
			score := tree.LearningCurveRow[len(tree.LearningCurveRow)-1]
			if booster.BestIteration < 0 || score < booster.BestScore {
				booster.BestIteration, booster.BestScore, sinceBest = stage, score, 0
			} else {
				sinceBest++
			}
			if params.EarlyStoppingRounds > 0 && sinceBest >= params.EarlyStoppingRounds {
				log.Info().Int("best_iteration", booster.BestIteration).Float64("best_score", booster.BestScore).Msg("early stopping")
				break
			}
		}
	}
	if booster.BestIteration < 0 {
		booster.BestIteration = len(booster.Trees) - 1
	}
	log.Info().Int("trees", len(booster.Trees)).Int("best_iteration", booster.BestIteration).Msg("booster trained")
	return booster, nil
}

//sampleIndices draws round(fraction*n) distinct sorted indices, at least one.
func sampleIndices(rnd *rand.Rand, n int, fraction float64) []int {
	if fraction >= 1 {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out
	}
	k := int(math.Max(1, math.Round(fraction*float64(n))))
	out := rnd.Perm(n)[:k]
	sort.Ints(out)
	return out
}

func (booster *Booster) metricNames() []string {
	if booster.LossName == (LogLoss{}).Name() {
		return []string{"logloss", "fom"}
	}
	return []string{"rmse"}
}

func (booster *Booster) evaluate(ev *Dataset, raw *mat.Dense) []float64 {
	if booster.LossName != (LogLoss{}).Name() {
		return []float64{Rmse(ev.Label, raw, ev.Weight)}
	}
	h := ev.Len()
	prob, label, weight := make([]float64, h), make([]float64, h), make([]float64, h)
	for p := 0; p < h; p++ {
		prob[p] = Sigmoid(raw.At(p, 0))
		label[p] = ev.Label.At(p, 0)
		weight[p] = ev.weight(p)
	}
	fomValue := fom.PredictionFOM(prob, label, weight, fomBins)
	if math.IsNaN(fomValue) {
		fomValue = 0
	}
	return []float64{Logloss(ev.Label, raw, ev.Weight, true), fomValue}
}

//PredictRaw sums the first treesNumber trees, all of them when treesNumber is not positive.
func (booster *Booster) PredictRaw(features, basis *mat.Dense, treesNumber int) *mat.Dense {
	n := len(booster.Trees)
	if treesNumber > 0 && treesNumber < n {
		n = treesNumber
	}
	prediction := mat.NewDense(Height(features), 1, nil)
	for treeInd := 0; treeInd < n; treeInd++ {
		prediction.Add(prediction, booster.Trees[treeInd].PredictValue(features, basis))
	}
	return prediction
}

//PredictProba returns the signal probability for logloss models and the raw value otherwise.
//It uses the trees up to the best iteration.
func (booster *Booster) PredictProba(features, basis *mat.Dense) []float64 {
	raw := booster.PredictRaw(features, basis, booster.BestIteration+1)
	out := make([]float64, Height(raw))
	for p := range out {
		out[p] = raw.At(p, 0)
		if booster.LossName == (LogLoss{}).Name() {
			out[p] = Sigmoid(out[p])
		}
	}
	return out
}

//Importance sums the split gain of every feature over all trees.
func (booster *Booster) Importance() map[string]float64 {
	out := make(map[string]float64)
	for _, tree := range booster.Trees {
		for _, node := range tree.TreeNodes {
			if !node.IsLeaf() {
				out[featureName(booster.FeatureNames, node.FeatureNumber)] += node.Gain
			}
		}
	}
	return out
}

//Save writes the model as JSON.
func (booster *Booster) Save(filename string) error {
	modelByteRepr, err := json.MarshalIndent(booster, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode model")
	}
	return errors.Wrapf(os.WriteFile(filename, modelByteRepr, 0o644), "write model %s", filename)
}

//LoadModel reads a model written by Save.
func LoadModel(filename string) (*Booster, error) {
	source, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrap(err, "open model")
	}
	defer func() { _ = source.Close() }()

	booster := &Booster{}
	if err := json.NewDecoder(source).Decode(booster); err != nil {
		return nil, errors.Wrapf(err, "decode model %s", filename)
	}
	if _, err := LossByName(booster.LossName); err != nil {
		return nil, err
	}
	return booster, nil
}

//RenderTrees draws every tree into picturesDirectory as <prefix>_<index>.<figureType>.
func (booster *Booster) RenderTrees(dumpPrefix, figureType, picturesDirectory string) error {
	graphvizType, ok := map[string]graphviz.Format{
		"png": graphviz.PNG,
		"svg": graphviz.SVG,
		"jpg": graphviz.JPG,
	}[figureType]
	if !ok {
		return errors.Errorf("unknown figure type %q", figureType)
	}

	for graphInd, currentTree := range booster.Trees {
		filename := fmt.Sprintf("%s_%05d.%s", dumpPrefix, graphInd, figureType)
		graphViz, graph, err := currentTree.DrawGraph(booster.FeatureNames)
		if err != nil {
			return errors.Wrapf(err, "draw tree %d", graphInd)
		}
		err = graphViz.RenderFilename(graph, graphvizType, path.Join(picturesDirectory, filename))
		_ = graph.Close()
		_ = graphViz.Close()
		if err != nil {
			return errors.Wrapf(err, "render tree %d", graphInd)
		}
	}
	return nil
}

//LearningCurvesDump is the on-disk form of the learning curves.
type LearningCurvesDump struct {
	Titles []string
	Values [][]float64
}

//LearningCurves collects the per tree metric rows.
func (booster *Booster) LearningCurves() LearningCurvesDump {
	dump := LearningCurvesDump{Titles: booster.LearningCurveTitles, Values: make([][]float64, 0, len(booster.Trees))}
	for _, currentTree := range booster.Trees {
		dump.Values = append(dump.Values, currentTree.LearningCurveRow)
	}
	return dump
}

//Curve returns one learning curve by title.
func (dump LearningCurvesDump) Curve(title string) ([]float64, bool) {
	for ind, t := range dump.Titles {
		if t != title {
			continue
		}
		out := make([]float64, len(dump.Values))
		for stage, row := range dump.Values {
			out[stage] = row[ind]
		}
		return out, true
	}
	return nil, false
}

//DumpLearningCurves writes the learning curves as JSON.
func (booster *Booster) DumpLearningCurves(filenameLearningCurves string) error {
	bytesResult, err := json.MarshalIndent(booster.LearningCurves(), "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode learning curves")
	}
	return errors.Wrapf(os.WriteFile(filenameLearningCurves, bytesResult, 0o644), "write %s", filenameLearningCurves)
}

//StagedMetrics recomputes the learning curve of a dataset tree by tree.
//Every row holds the metrics named by MetricNames.
func (booster *Booster) StagedMetrics(ds *Dataset) ([][]float64, error) {
	if err := ds.validate(); err != nil {
		return nil, err
	}
	raw := mat.NewDense(ds.Len(), 1, nil)
	out := make([][]float64, 0, len(booster.Trees))
	for _, tree := range booster.Trees {
		raw.Add(raw, tree.PredictValue(ds.Features, ds.Basis))
		out = append(out, booster.evaluate(ds, raw))
	}
	return out, nil
}

//MetricNames lists the learning curve metrics of the model's loss.
func (booster *Booster) MetricNames() []string {
	return booster.metricNames()
}
