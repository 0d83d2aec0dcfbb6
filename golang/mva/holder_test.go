package mva

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarstars/hep_boosting/golang/ntuple"
)

func gaussSample(t *testing.T, name string, n int, mean, sf float64, seed int64) *ntuple.Sample {
	t.Helper()
	rnd := rand.New(rand.NewSource(seed))
	x := make([]float64, n)
	y := make([]float64, n)
	for i := range x {
		x[i] = mean + rnd.NormFloat64()
		y[i] = rnd.NormFloat64()
	}
	s := ntuple.NewSample(name)
	require.NoError(t, s.AddColumn("x", x))
	require.NoError(t, s.AddColumn("y", y))
	s.SetConstant(ntuple.WeightColumn, sf)
	return s
}

func testGroups() map[string][]string {
	return map[string][]string{
		ClassSignal:     {"tttt"},
		ClassBackground: {"ttbar"},
		ClassNotTrained: {"ttz"},
	}
}

func testSamples(t *testing.T) map[string]*ntuple.Sample {
	return map[string]*ntuple.Sample{
		"tttt":  gaussSample(t, "tttt", 1000, 1.5, 0.01, 1),
		"ttbar": gaussSample(t, "ttbar", 1000, -1.5, 0.5, 2),
		"ttz":   gaussSample(t, "ttz", 200, 0, 0.1, 3),
	}
}

func column(t *testing.T, s *ntuple.Sample, name string) []float64 {
	t.Helper()
	values, err := s.Column(name)
	require.NoError(t, err)
	return values
}

func sum(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total
}

func TestShouldTrain(t *testing.T) {
	h := NewHolder([]string{"x"}, testGroups(), "signal", "Nominal")
	assert.True(t, h.ShouldTrain(1000, ClassSignal))
	assert.False(t, h.ShouldTrain(300, ClassSignal))
	assert.False(t, h.ShouldTrain(1000, ClassNotTrained))

	h.Region = "ttbar_cr"
	assert.False(t, h.ShouldTrain(1000, ClassSignal))
	h.Region, h.SystName = "signal", "JES_up"
	assert.False(t, h.ShouldTrain(1000, ClassBackground))
}

func TestSplitRescalesWeights(t *testing.T) {
	h := NewHolder([]string{"x"}, testGroups(), "signal", "Nominal")
	df, err := h.prepare(gaussSample(t, "tttt", 1000, 0, 1, 4), ClassSignal)
	require.NoError(t, err)

	rest, part, err := h.split(df, 0.3)
	require.NoError(t, err)
	assert.Equal(t, 300, part.Len())
	assert.Equal(t, 700, rest.Len())
	assert.InDelta(t, 1000, sum(part.Weights()), 1e-9)
	assert.InDelta(t, 1000, sum(rest.Weights()), 1e-9)
	assert.InDelta(t, 1000.0/300, column(t, part, TrainWeightColumn)[0], 1e-12)

	again, _, err := h.split(df, 0.3)
	require.NoError(t, err)
	assert.Equal(t, column(t, rest, "x"), column(t, again, "x"), "seeded shuffle")

	_, _, err = h.split(df, 0.0001)
	assert.Error(t, err)
}

func TestSetupYear(t *testing.T) {
	h := NewHolder([]string{"x", "y"}, testGroups(), "signal", "Nominal")
	samples := testSamples(t)
	require.NoError(t, h.SetupYear("2018", samples))

	assert.Equal(t, 2*255, h.TrainSet.Len())
	assert.Equal(t, 2*45, h.ValidationSet.Len())
	test := h.TestSets["2018"]
	assert.Equal(t, 2*700+200, test.Len())

	ids := column(t, test, SampleColumn)
	ttz := 0
	for _, id := range ids {
		if name, ok := h.SampleName(int(id)); ok && name == "ttz" {
			ttz++
		}
	}
	assert.Equal(t, 200, ttz, "not trained samples go to the test set whole")

	classID := column(t, h.TrainSet, ClassIDColumn)
	weights := column(t, h.TrainSet, TrainWeightColumn)
	perClass := map[float64][]float64{}
	for i, c := range classID {
		perClass[c] = append(perClass[c], weights[i])
	}
	for c, w := range perClass {
		assert.InDelta(t, float64(len(w)), sum(w), 1e-6, "class %g", c)
	}
	assert.InDelta(t, 2.0, column(t, h.TrainSet, SplitWeightColumn)[0], 1e-12, "0.6 of the events needed, 0.3 drawn")

	assert.InDelta(t, 1000*0.01, sum(test.Filter(maskOf(ids, float64(h.sampleMap["tttt"]))).Weights()), 1e-9)
}

func maskOf(ids []float64, id float64) []bool {
	out := make([]bool, len(ids))
	for i, v := range ids {
		out[i] = v == id
	}
	return out
}

func TestSetupYearControlRegion(t *testing.T) {
	h := NewHolder([]string{"x"}, testGroups(), "ttbar_cr", "Nominal")
	samples := testSamples(t)
	delete(samples, "ttz")
	require.NoError(t, h.SetupYear("2017", samples))

	assert.Equal(t, 0, h.TrainSet.Len())
	assert.Equal(t, 2000, h.TestSets["2017"].Len())
	assert.False(t, h.Empty())
}

func TestSetupYearMissingColumn(t *testing.T) {
	h := NewHolder([]string{"z"}, testGroups(), "signal", "Nominal")
	assert.Error(t, h.SetupYear("2016", testSamples(t)))
}

func TestClassReweight(t *testing.T) {
	s := ntuple.NewSample("train")
	require.NoError(t, s.AddColumn(ClassIDColumn, []float64{1, 1, 0, 0, 0}))
	require.NoError(t, s.AddColumn(TrainWeightColumn, []float64{1, 3, 2, 2, 2}))
	require.NoError(t, ClassReweight(s))
	assert.Equal(t, []float64{0.5, 1.5, 1, 1, 1}, column(t, s, TrainWeightColumn))
}

//classWeights sums the booster weights of the training set per class and per sample.
func classWeights(t *testing.T, h *Holder) (map[float64]float64, map[string]float64) {
	t.Helper()
	ds, err := h.dataset(h.TrainSet, h.WeightColumn, "train")
	require.NoError(t, err)
	ids := column(t, h.TrainSet, SampleColumn)
	perClass := map[float64]float64{}
	perSample := map[string]float64{}
	rows, _ := ds.Weight.Dims()
	require.Len(t, ids, rows)
	for p := 0; p < rows; p++ {
		w := ds.Weight.At(p, 0)
		perClass[ds.Label.At(p, 0)] += w
		name, ok := h.SampleName(int(ids[p]))
		require.True(t, ok)
		perSample[name] += w
	}
	return perClass, perSample
}

func TestSetupYearBalancesTrainingWeights(t *testing.T) {
	groups := map[string][]string{
		ClassSignal:     {"tttt"},
		ClassBackground: {"ttbar", "ttw"},
		ClassOnlyTrain:  {"ttx"},
	}
	samples := map[string]*ntuple.Sample{
		"tttt":  gaussSample(t, "tttt", 1000, 1.5, 0.01, 1),
		"ttbar": gaussSample(t, "ttbar", 2000, -1.5, 0.5, 2),
		"ttw":   gaussSample(t, "ttw", 1000, -1, 0.1, 3),
		"ttx":   gaussSample(t, "ttx", 1000, -1, 0.2, 4),
	}
	h := NewHolder([]string{"x", "y"}, groups, "signal", "Nominal")
	require.NoError(t, h.SetupYear("2018", samples))

	split := column(t, h.TrainSet, SplitWeightColumn)
	assert.Greater(t, split[0], 1.0)

	perClass, perSample := classWeights(t, h)
	require.Len(t, perClass, 2)
	assert.InEpsilon(t, perClass[1], perClass[0], 0.01, "both classes carry the same training weight")
	assert.InEpsilon(t, 10, perSample["ttbar"]/perSample["ttw"], 0.02, "samples follow their scale factor sums")
	assert.InEpsilon(t, 2, perSample["ttx"]/perSample["ttw"], 0.02)

	h.WeightColumn = TrainWeightColumn
	perClass, _ = classWeights(t, h)
	classID := column(t, h.TrainSet, ClassIDColumn)
	counts := map[float64]float64{}
	for _, c := range classID {
		counts[c]++
	}
	for c, w := range perClass {
		assert.InDelta(t, counts[c], w, 1e-6, "class %g", c)
	}
}
