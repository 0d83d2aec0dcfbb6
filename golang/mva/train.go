package mva

import (
	"context"
	"math"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/tarstars/hep_boosting/golang/bdt"
	"github.com/tarstars/hep_boosting/golang/fom"
	"github.com/tarstars/hep_boosting/golang/ntuple"
	"golang.org/x/sync/errgroup"
)

// Output files of a trained model.
const (
	ModelFile          = "model.json"
	LearningCurvesFile = "learning_curves.json"
)

// prediction bins of the cut scan on the test set
const cutFOMBins = 100

func absWeights(s *ntuple.Sample) []float64 {
	src := s.Weights()
	out := make([]float64, len(src))
	for i, w := range src {
		out[i] = math.Abs(w)
	}
	return out
}

func isSignal(s *ntuple.Sample) ([]bool, error) {
	classID, err := s.Column(ClassIDColumn)
	if err != nil {
		return nil, err
	}
	out := make([]bool, len(classID))
	for i, c := range classID {
		out[i] = c == float64(ClassIDs[ClassSignal])
	}
	return out, nil
}

//dataset turns a sample into a booster dataset weighted by the given column,
//by the absolute scale factor when weightColumn is empty.
func (h *Holder) dataset(s *ntuple.Sample, weightColumn, description string) (*bdt.Dataset, error) {
	features, err := s.Matrix(h.UseVars)
	if err != nil {
		return nil, err
	}
	label, err := s.Column(ClassIDColumn)
	if err != nil {
		return nil, err
	}
	weight := absWeights(s)
	if weightColumn != "" {
		if weight, err = s.Column(weightColumn); err != nil {
			return nil, err
		}
	}
	return bdt.NewDataset(features, label, weight, description)
}

//fit trains a booster on the holder's sets without touching the holder's model.
func (h *Holder) fit(ctx context.Context, params bdt.Params) (*bdt.Booster, error) {
	if h.TrainSet.Len() == 0 {
		return nil, errors.New("training set is empty")
	}
	train, err := h.dataset(h.TrainSet, h.WeightColumn, "train")
	if err != nil {
		return nil, errors.Wrap(err, "training set")
	}
	watch, err := h.dataset(h.TrainSet, "", "train")
	if err != nil {
		return nil, err
	}
	params.Train = train
	params.EvalSets = []*bdt.Dataset{watch}
	if h.ValidationSet.Len() > 0 {
		validation, err := h.dataset(h.ValidationSet, "", "validation")
		if err != nil {
			return nil, errors.Wrap(err, "validation set")
		}
		params.EvalSets = append(params.EvalSets, validation)
	}
	params.FeatureNames = h.UseVars

	log.Info().Int("train", h.TrainSet.Len()).Int("validation", h.ValidationSet.Len()).
		Int("stages", params.NStages).Int("max_depth", params.MaxDepth).Str("weight", h.WeightColumn).Msg("training")
	return bdt.Train(ctx, params)
}

//Train fits the booster on the training set, weighted by WeightColumn, and watches the
//training and validation sets. The model and its learning curves are written to outdir
//unless it is empty.
func (h *Holder) Train(ctx context.Context, params bdt.Params, outdir string) error {
	booster, err := h.fit(ctx, params)
	if err != nil {
		return err
	}
	h.Booster = booster
	if outdir == "" {
		return nil
	}
	if err := h.Booster.Save(filepath.Join(outdir, ModelFile)); err != nil {
		return err
	}
	return h.Booster.DumpLearningCurves(filepath.Join(outdir, LearningCurvesFile))
}

//LoadModel reads a booster written by Train.
func (h *Holder) LoadModel(outdir string) error {
	booster, err := bdt.LoadModel(filepath.Join(outdir, ModelFile))
	if err != nil {
		return err
	}
	h.Booster = booster
	return nil
}

//Predict returns the signal probability of every event of a sample.
func (h *Holder) Predict(s *ntuple.Sample) ([]float64, error) {
	return h.predictWith(h.Booster, s)
}

func (h *Holder) predictWith(booster *bdt.Booster, s *ntuple.Sample) ([]float64, error) {
	if booster == nil {
		return nil, errors.New("no model trained or loaded")
	}
	if s.Len() == 0 {
		return nil, nil
	}
	features, err := s.Matrix(h.UseVars)
	if err != nil {
		return nil, err
	}
	return booster.PredictProba(features, nil), nil
}

func (h *Holder) testSet(year string) (*ntuple.Sample, error) {
	s, ok := h.TestSets[year]
	if !ok {
		return nil, errors.Errorf("year %s is not set up", year)
	}
	return s, nil
}

//ApplyModel predicts the test set of a year. With withAUC the area under the ROC curve
//and the best cut significance are recorded as well.
func (h *Holder) ApplyModel(year string, withAUC bool) error {
	test, err := h.testSet(year)
	if err != nil {
		return err
	}
	pred, err := h.Predict(test)
	if err != nil {
		return err
	}
	h.predTest[year] = pred
	if !withAUC {
		return nil
	}
	truth, err := isSignal(test)
	if err != nil {
		return err
	}
	curve, err := fom.ROC(pred, truth, absWeights(test))
	if err != nil {
		return errors.Wrapf(err, "year %s", year)
	}
	h.AUC[year] = curve.AUC
	best, cut, err := fom.CutFOM(pred, test.Weights(), truth, cutFOMBins)
	if err != nil {
		return errors.Wrapf(err, "year %s", year)
	}
	h.FOM[year] = best
	log.Info().Str("year", year).Float64("auc", curve.AUC).Float64("fom", best).Float64("cut", cut).Msg("model applied")
	return nil
}

//TestPrediction returns the predictions stored by ApplyModel.
func (h *Holder) TestPrediction(year string) ([]float64, error) {
	pred, ok := h.predTest[year]
	if !ok {
		return nil, errors.Errorf("model not applied to year %s", year)
	}
	return pred, nil
}

//Stats is the confusion matrix of the test set of a year at a cut.
func (h *Holder) Stats(year string, cut float64) (fom.Stats, error) {
	test, err := h.testSet(year)
	if err != nil {
		return fom.Stats{}, err
	}
	pred, err := h.TestPrediction(year)
	if err != nil {
		return fom.Stats{}, err
	}
	truth, err := isSignal(test)
	if err != nil {
		return fom.Stats{}, err
	}
	return fom.Confusion(pred, truth, test.Weights(), cut)
}

//ApplyAll applies the model to several years concurrently.
func (h *Holder) ApplyAll(ctx context.Context, years []string, withAUC bool) error {
	type applied struct {
		pred     []float64
		auc, fom float64
	}
	results := make([]applied, len(years))
	g, ctx := errgroup.WithContext(ctx)
	for i, year := range years {
		i, year := i, year
		test, err := h.testSet(year)
		if err != nil {
			return err
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			pred, err := h.Predict(test)
			if err != nil {
				return err
			}
			results[i].pred = pred
			if !withAUC {
				return nil
			}
			truth, err := isSignal(test)
			if err != nil {
				return err
			}
			curve, err := fom.ROC(pred, truth, absWeights(test))
			if err != nil {
				return errors.Wrapf(err, "year %s", year)
			}
			results[i].auc = curve.AUC
			results[i].fom, _, err = fom.CutFOM(pred, test.Weights(), truth, cutFOMBins)
			return errors.Wrapf(err, "year %s", year)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for i, year := range years {
		h.predTest[year] = results[i].pred
		if withAUC {
			h.AUC[year], h.FOM[year] = results[i].auc, results[i].fom
		}
	}
	return nil
}
