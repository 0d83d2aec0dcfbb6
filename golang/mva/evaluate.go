package mva

import (
	"math"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/tarstars/hep_boosting/golang/fom"
	"github.com/tarstars/hep_boosting/golang/hist"
	"github.com/tarstars/hep_boosting/golang/ntuple"
)

const (
	rocBins       = 100
	overtrainBins = 15
)

func (h *Holder) sampleMask(s *ntuple.Sample, classNames ...string) ([]bool, error) {
	ids, err := s.Column(SampleColumn)
	if err != nil {
		return nil, err
	}
	want := make(map[float64]bool)
	for _, className := range classNames {
		for _, name := range h.Groups[className] {
			if id, ok := h.sampleMap[name]; ok {
				want[float64(id)] = true
			}
		}
	}
	out := make([]bool, len(ids))
	for i, id := range ids {
		out[i] = want[id]
	}
	return out, nil
}

func invert(mask []bool) []bool {
	out := make([]bool, len(mask))
	for i, m := range mask {
		out[i] = !m
	}
	return out
}

func pick(values []float64, mask []bool) []float64 {
	out := make([]float64, 0, len(values))
	for i, v := range values {
		if mask[i] {
			out = append(out, v)
		}
	}
	return out
}

//trainLike is the training set without OnlyTrain events, completed by the NotTrained
//events of the test set, with predictions.
func (h *Holder) trainLike(year string) (*ntuple.Sample, []float64, error) {
	test, err := h.testSet(year)
	if err != nil {
		return nil, nil, err
	}
	testPred, err := h.TestPrediction(year)
	if err != nil {
		return nil, nil, err
	}
	onlyTrain, err := h.sampleMask(h.TrainSet, ClassOnlyTrain)
	if err != nil {
		return nil, nil, err
	}
	train := h.TrainSet.Filter(invert(onlyTrain))
	pred, err := h.Predict(train)
	if err != nil {
		return nil, nil, err
	}
	notTrained, err := h.sampleMask(test, ClassNotTrained)
	if err != nil {
		return nil, nil, err
	}
	if err := train.Concat(test.Filter(notTrained)); err != nil {
		return nil, nil, err
	}
	return train, append(pred, pick(testPred, notTrained)...), nil
}

//ROCCurves returns binned curves of the test set ("test"), the training set ("train") and,
//for every subgroup, of the test set restricted to the signal and the subgroup samples.
//Events enter with their signed scale factors.
func (h *Holder) ROCCurves(year string, subgroups map[string][]string) (map[string]*fom.Curve, error) {
	test, err := h.testSet(year)
	if err != nil {
		return nil, err
	}
	testPred, err := h.TestPrediction(year)
	if err != nil {
		return nil, err
	}
	testTruth, err := isSignal(test)
	if err != nil {
		return nil, err
	}
	curves := make(map[string]*fom.Curve)
	if curves["test"], err = fom.BinnedROC(testPred, testTruth, test.Weights(), rocBins); err != nil {
		return nil, errors.Wrap(err, "test roc")
	}

	train, trainPred, err := h.trainLike(year)
	if err != nil {
		return nil, err
	}
	trainTruth, err := isSignal(train)
	if err != nil {
		return nil, err
	}
	if curves["train"], err = fom.BinnedROC(trainPred, trainTruth, train.Weights(), rocBins); err != nil {
		return nil, errors.Wrap(err, "train roc")
	}

	ids, err := test.Column(SampleColumn)
	if err != nil {
		return nil, err
	}
	weights := test.Weights()
	for name, members := range subgroups {
		want := make(map[float64]bool)
		for _, member := range members {
			if id, ok := h.sampleMap[member]; ok {
				want[float64(id)] = true
			}
		}
		mask := make([]bool, len(ids))
		for i, id := range ids {
			mask[i] = testTruth[i] || want[id]
		}
		truth := make([]bool, 0, len(mask))
		for i, keep := range mask {
			if keep {
				truth = append(truth, testTruth[i])
			}
		}
		curve, err := fom.BinnedROC(pick(testPred, mask), truth, pick(weights, mask), rocBins)
		if err != nil {
			log.Warn().Err(err).Str("subgroup", name).Msg("no roc curve")
			continue
		}
		curves[name] = curve
	}
	for name, curve := range curves {
		curve.Label = name
	}
	return curves, nil
}

//Overtrain holds the prediction shapes of the training and test sets.
type Overtrain struct {
	TrainSignal     *hist.Histogram
	TrainBackground *hist.Histogram
	TestSignal      *hist.Histogram
	TestBackground  *hist.Histogram
	TrainFOM        float64
	TestFOM         float64
}

func predictionShapes(pred []float64, truth []bool, weights []float64) (sig, bkg *hist.Histogram, fomValue float64, err error) {
	axis, err := hist.NewRegular(overtrainBins, 0, 1)
	if err != nil {
		return nil, nil, 0, err
	}
	sig, bkg = hist.New(axis), hist.New(axis)
	if err := sig.Fill(pick(weights, truth), pick(pred, truth)); err != nil {
		return nil, nil, 0, err
	}
	if err := bkg.Fill(pick(weights, invert(truth)), pick(pred, invert(truth))); err != nil {
		return nil, nil, 0, err
	}
	fomValue = -fom.BinnedFOMMetric(sig.Vals(), bkg.Vals())
	if math.IsNaN(fomValue) {
		fomValue = 0
	}
	return sig, bkg, fomValue, nil
}

//OvertrainTest compares the prediction shapes and significances of the training and test sets.
func (h *Holder) OvertrainTest(year string) (*Overtrain, error) {
	test, err := h.testSet(year)
	if err != nil {
		return nil, err
	}
	testPred, err := h.TestPrediction(year)
	if err != nil {
		return nil, err
	}
	testTruth, err := isSignal(test)
	if err != nil {
		return nil, err
	}
	train, trainPred, err := h.trainLike(year)
	if err != nil {
		return nil, err
	}
	trainTruth, err := isSignal(train)
	if err != nil {
		return nil, err
	}

	out := &Overtrain{}
	if out.TrainSignal, out.TrainBackground, out.TrainFOM, err = predictionShapes(trainPred, trainTruth, train.Weights()); err != nil {
		return nil, err
	}
	if out.TestSignal, out.TestBackground, out.TestFOM, err = predictionShapes(testPred, testTruth, test.Weights()); err != nil {
		return nil, err
	}
	out.TrainSignal.WithStyle("Train Signal", "blue")
	out.TrainBackground.WithStyle("Train Background", "red")
	out.TestSignal.WithStyle("Test Signal", "blue")
	out.TestBackground.WithStyle("Test Background", "red")
	log.Info().Str("year", year).Float64("train_fom", out.TrainFOM).Float64("test_fom", out.TestFOM).Msg("overtrain test")
	return out, nil
}

//ApproxLikelihood scans prediction cuts of the test set of a year and combines the
//likelihood significance over the bins of variable.
func (h *Holder) ApproxLikelihood(variable string, edges []float64, year string) (best, cut float64, err error) {
	test, err := h.testSet(year)
	if err != nil {
		return 0, -1, err
	}
	pred, err := h.TestPrediction(year)
	if err != nil {
		return 0, -1, err
	}
	values, err := test.Column(variable)
	if err != nil {
		return 0, -1, err
	}
	truth, err := isSignal(test)
	if err != nil {
		return 0, -1, err
	}
	return fom.ApproxLikelihood(values, pred, test.Weights(), truth, edges, 21)
}

//Output writes the test events of a year with their prediction, one directory per sample.
func (h *Holder) Output(dir, year string) error {
	test, err := h.testSet(year)
	if err != nil {
		return err
	}
	pred, err := h.TestPrediction(year)
	if err != nil {
		return err
	}
	withPred := test.Subset(rangeIndex(test.Len()))
	if err := withPred.AddColumn(PredictionColumn, append([]float64(nil), pred...)); err != nil {
		return err
	}
	ids, err := withPred.Column(SampleColumn)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(h.sampleMap))
	for name := range h.sampleMap {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		id := float64(h.sampleMap[name])
		mask := make([]bool, len(ids))
		found := false
		for i, v := range ids {
			mask[i] = v == id
			found = found || mask[i]
		}
		if !found {
			continue
		}
		if err := ntuple.WriteSampleDir(filepath.Join(dir, year, name), withPred.Filter(mask)); err != nil {
			return err
		}
	}
	return nil
}

func rangeIndex(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}
