package bdt

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

//separableDataset puts signal above x = 0.5; the second feature is constant.
func separableDataset(t *testing.T, n int, description string) *Dataset {
	t.Helper()
	features := mat.NewDense(n, 2, nil)
	label := make([]float64, n)
	for p := 0; p < n; p++ {
		x := float64(p) / float64(n)
		features.Set(p, 0, x)
		if x > 0.5 {
			label[p] = 1
		}
	}
	ds, err := NewDataset(features, label, nil, description)
	require.NoError(t, err)
	return ds
}

func logLossParams(train *Dataset, evals ...*Dataset) Params {
	params := DefaultParams()
	params.Train = train
	params.EvalSets = evals
	params.NStages = 10
	params.MaxDepth = 2
	params.LearningRate = 0.3
	params.ColsampleByTree = 1
	params.ThreadsNum = 2
	params.EarlyStoppingRounds = 0
	params.FeatureNames = []string{"x", "noise"}
	return params
}

func TestTrainSeparatesClasses(t *testing.T) {
	train := separableDataset(t, 200, "train")
	test := separableDataset(t, 90, "test")

	booster, err := Train(context.Background(), logLossParams(train, train, test))
	require.NoError(t, err)
	require.Len(t, booster.Trees, 10)
	assert.Equal(t, []string{"train-logloss", "train-fom", "test-logloss", "test-fom"}, booster.LearningCurveTitles)

	prob := booster.PredictProba(test.Features, nil)
	for p, pr := range prob {
		x := test.Features.At(p, 0)
		if x > 0.55 {
			assert.Greater(t, pr, 0.5, "x=%g", x)
		}
		if x < 0.45 {
			assert.Less(t, pr, 0.5, "x=%g", x)
		}
	}

	curve, ok := booster.LearningCurves().Curve("test-logloss")
	require.True(t, ok)
	assert.Less(t, curve[len(curve)-1], curve[0])
	_, ok = booster.LearningCurves().Curve("missing")
	assert.False(t, ok)

	importance := booster.Importance()
	assert.Greater(t, importance["x"], 0.0)
	assert.Zero(t, importance["noise"])
}

func TestSaveLoadKeepsPredictions(t *testing.T) {
	train := separableDataset(t, 100, "train")
	booster, err := Train(context.Background(), logLossParams(train, train))
	require.NoError(t, err)

	dir := t.TempDir()
	modelPath := filepath.Join(dir, "model.json")
	require.NoError(t, booster.Save(modelPath))
	loaded, err := LoadModel(modelPath)
	require.NoError(t, err)

	assert.Equal(t, booster.PredictProba(train.Features, nil), loaded.PredictProba(train.Features, nil))
	assert.Equal(t, booster.BestIteration, loaded.BestIteration)

	curvesPath := filepath.Join(dir, "curves.json")
	require.NoError(t, booster.DumpLearningCurves(curvesPath))
	info, err := os.Stat(curvesPath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	_, err = LoadModel(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestEarlyStoppingKeepsBestIteration(t *testing.T) {
	train := separableDataset(t, 100, "train")
	params := logLossParams(train, train)
	params.NStages = 200
	params.EarlyStoppingRounds = 3
	booster, err := Train(context.Background(), params)
	require.NoError(t, err)

	n := len(booster.Trees)
	require.True(t, booster.BestIteration >= 0 && booster.BestIteration < n)
	if n < params.NStages {
		assert.Equal(t, params.EarlyStoppingRounds, n-1-booster.BestIteration)
	}
	best, ok := booster.LearningCurves().Curve("train-fom")
	require.True(t, ok)
	assert.Equal(t, booster.BestScore, best[booster.BestIteration])
}

func TestSubsamplingIsReproducible(t *testing.T) {
	train := separableDataset(t, 120, "train")
	params := logLossParams(train)
	params.Subsample = 0.5
	params.ColsampleByTree = 0.5
	params.ThreadsNum = 1

	first, err := Train(context.Background(), params)
	require.NoError(t, err)
	second, err := Train(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, first.PredictProba(train.Features, nil), second.PredictProba(train.Features, nil))
}

func TestTrainValidatesParams(t *testing.T) {
	train := separableDataset(t, 20, "train")
	for name, mutate := range map[string]func(*Params){
		"no train":      func(p *Params) { p.Train = nil },
		"no stages":     func(p *Params) { p.NStages = 0 },
		"subsample":     func(p *Params) { p.Subsample = 1.5 },
		"colsample":     func(p *Params) { p.ColsampleByTree = 0 },
		"feature names": func(p *Params) { p.FeatureNames = []string{"x"} },
		"eval width": func(p *Params) {
			ev, err := NewDataset(mat.NewDense(2, 1, []float64{1, 2}), []float64{0, 1}, nil, "bad")
			require.NoError(t, err)
			p.EvalSets = []*Dataset{ev}
		},
	} {
		params := logLossParams(train)
		mutate(&params)
		_, err := Train(context.Background(), params)
		assert.Error(t, err, name)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Train(ctx, logLossParams(train))
	assert.Error(t, err)

	_, err = NewDataset(mat.NewDense(2, 1, nil), []float64{1}, nil, "short")
	assert.Error(t, err)
}

func TestRenderTrees(t *testing.T) {
	train := separableDataset(t, 50, "train")
	params := logLossParams(train)
	params.NStages = 1
	booster, err := Train(context.Background(), params)
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, booster.RenderTrees("tree", "svg", dir))
	_, err = os.Stat(filepath.Join(dir, "tree_00000.svg"))
	assert.NoError(t, err)
	assert.Error(t, booster.RenderTrees("tree", "bmp", dir))
}

func TestLossByName(t *testing.T) {
	loss, err := LossByName("binary:logistic")
	require.NoError(t, err)
	assert.Equal(t, LogLoss{}, loss)
	_, err = LossByName("poisson")
	assert.Error(t, err)
}

func TestStagedMetricsMatchLearningCurves(t *testing.T) {
	train := separableDataset(t, 120, "train")
	booster, err := Train(context.Background(), logLossParams(train, train))
	require.NoError(t, err)

	staged, err := booster.StagedMetrics(train)
	require.NoError(t, err)
	require.Len(t, staged, len(booster.Trees))
	assert.Equal(t, []string{"logloss", "fom"}, booster.MetricNames())
	for stage, row := range staged {
		assert.InDeltaSlice(t, booster.Trees[stage].LearningCurveRow, row, 1e-12)
	}
}
