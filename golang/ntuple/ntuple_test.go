package ntuple

import (
	"context"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func makeSample(t *testing.T) *Sample {
	t.Helper()
	s := NewSample("ttw")
	require.NoError(t, s.AddColumn("HT", []float64{100, 250, 400, 550}))
	require.NoError(t, s.AddColumn(WeightColumn, []float64{0.5, 1, 1.5, 2}))
	return s
}

func TestAddColumnRejectsWrongLength(t *testing.T) {
	s := makeSample(t)
	err := s.AddColumn("Met", []float64{1, 2})
	assert.Error(t, err)
}

func TestFilterAndConcat(t *testing.T) {
	s := makeSample(t)
	cut := s.Filter([]bool{false, true, true, false})
	assert.Equal(t, 2, cut.Len())
	ht, err := cut.Column("HT")
	require.NoError(t, err)
	assert.Equal(t, []float64{250, 400}, ht)

	require.NoError(t, cut.Concat(s))
	assert.Equal(t, 6, cut.Len())
	w := cut.Weights()
	assert.Equal(t, []float64{1, 1.5, 0.5, 1, 1.5, 2}, w)
}

func TestConcatIntoEmptySample(t *testing.T) {
	empty := NewSample("all")
	require.NoError(t, empty.Concat(makeSample(t)))
	assert.Equal(t, 4, empty.Len())
	assert.Equal(t, []string{"HT", WeightColumn}, empty.Columns())
}

func TestWeightsDefaultToOne(t *testing.T) {
	s := NewSample("data")
	require.NoError(t, s.AddColumn("HT", []float64{1, 2, 3}))
	assert.Equal(t, []float64{1, 1, 1}, s.Weights())
}

func TestParseCut(t *testing.T) {
	cases := []struct {
		in   string
		want Cut
	}{
		{"HT>300", Cut{"HT", ">", 300}},
		{"4top_sig<0.925", Cut{"4top_sig", "<", 0.925}},
		{"NJets==4", Cut{"NJets", "==", 4}},
		{" Met < -1 ", Cut{"Met", "<", -1}},
	}
	for _, tc := range cases {
		got, err := ParseCut(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got)
	}

	for _, bad := range []string{"HT", "HT>abc", ">3"} {
		_, err := ParseCut(bad)
		assert.Error(t, err, bad)
	}
}

func TestApplyCuts(t *testing.T) {
	s := makeSample(t)
	cuts, err := ParseCuts([]string{"HT>200", "HT<500"})
	require.NoError(t, err)
	out, err := ApplyCuts(s, cuts)
	require.NoError(t, err)
	ht, _ := out.Column("HT")
	assert.Equal(t, []float64{250, 400}, ht)

	_, err = ApplyCuts(s, []Cut{{Var: "missing", Op: ">", Value: 0}})
	assert.Error(t, err)
}

func TestCutMask(t *testing.T) {
	s := makeSample(t)
	cases := []struct {
		name string
		cuts []Cut
		want []bool
	}{
		{"none", nil, []bool{true, true, true, true}},
		{"greater", []Cut{{"HT", ">", 250}}, []bool{false, false, true, true}},
		{"less", []Cut{{"HT", "<", 250}}, []bool{true, false, false, false}},
		{"equal", []Cut{{"HT", "==", 400}}, []bool{false, false, true, false}},
		{"all of", []Cut{{"HT", ">", 100}, {WeightColumn, "<", 2}}, []bool{false, true, true, false}},
		{"nothing", []Cut{{"HT", ">", 1000}}, []bool{false, false, false, false}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mask, err := CutMask(s, tc.cuts)
			require.NoError(t, err)
			assert.Equal(t, tc.want, mask)
		})
	}

	_, err := CutMask(s, []Cut{{"HT", ">", 0}, {"Met", ">", 0}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Met>0")

	empty, err := CutMask(NewSample("empty"), []Cut{{"HT", ">", 0}})
	assert.Error(t, err)
	assert.Nil(t, empty)
}

func TestCollectionNames(t *testing.T) {
	s := makeSample(t)
	for _, name := range []string{"Muons", "Jets"} {
		coll := NewCollection(name)
		require.NoError(t, coll.AddVar("pt", mat.NewDense(4, 1, []float64{1, 2, 3, 4})))
		require.NoError(t, s.AddCollection(coll))
	}
	assert.Equal(t, []string{"Jets", "Muons"}, s.CollectionNames())

	_, err := s.Collection("Electrons")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[Jets Muons]")
}

func TestSampleDirRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := makeSample(t)
	sampleDir := filepath.Join(dir, "ttw")
	require.NoError(t, WriteSampleDir(sampleDir, s))

	nan := math.NaN()
	pt := mat.NewDense(4, 2, []float64{
		50, 30,
		80, nan,
		nan, nan,
		120, 40,
	})
	require.NoError(t, WriteNpy(filepath.Join(sampleDir, "Jets.pt.npy"), pt))

	samples, err := LoadSamples(context.Background(), dir, []string{"ttw", "missing"}, 2)
	require.NoError(t, err)
	require.Len(t, samples, 1)

	loaded := samples["ttw"]
	assert.Equal(t, 4, loaded.Len())
	ht, err := loaded.Column("HT")
	require.NoError(t, err)
	assert.Equal(t, []float64{100, 250, 400, 550}, ht)

	jets, err := loaded.Collection("Jets")
	require.NoError(t, err)
	assert.Equal(t, 2, jets.Num(0))
	assert.Equal(t, 1, jets.Num(1))
	assert.Equal(t, 0, jets.Num(2))
	v, ok := jets.Get("pt", 3, 1)
	assert.True(t, ok)
	assert.Equal(t, 40.0, v)
	_, ok = jets.Get("pt", 1, 1)
	assert.False(t, ok)
}

func TestCollectionSubsetAndConcat(t *testing.T) {
	nan := math.NaN()
	a := NewCollection("Jets")
	require.NoError(t, a.AddVar("pt", mat.NewDense(2, 1, []float64{10, 20})))
	b := NewCollection("Jets")
	require.NoError(t, b.AddVar("pt", mat.NewDense(1, 2, []float64{30, nan})))

	merged, err := a.Concat(b)
	require.NoError(t, err)
	assert.Equal(t, 3, merged.Len())
	assert.Equal(t, 2, merged.Width())
	_, ok := merged.Get("pt", 0, 1)
	assert.False(t, ok)

	sub := merged.Subset([]int{2})
	v, ok := sub.Get("pt", 0, 0)
	assert.True(t, ok)
	assert.Equal(t, 30.0, v)
}

func TestReadCSV(t *testing.T) {
	in := "HT,scale_factor\n100,0.5\n200,1.5\n"
	s, err := ReadCSV(strings.NewReader(in), "csv")
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []float64{0.5, 1.5}, s.Weights())

	_, err = ReadCSV(strings.NewReader("a,b\n1\n"), "bad")
	assert.Error(t, err)
}

func TestGroupInfo(t *testing.T) {
	gi := NewGroupInfo([]Group{
		{Name: "ttX", Members: []string{"ttw", "ttz"}, Color: "blue", Legend: "ttX"},
		{Name: "nonprompt", Members: []string{"nonprompt"}, DataDriven: true},
	})
	assert.Equal(t, []string{"ttX", "nonprompt"}, gi.Groups())
	group, ok := gi.GroupOf("ttz")
	assert.True(t, ok)
	assert.Equal(t, "ttX", group)
	assert.Equal(t, "k", gi.Color("nonprompt"))
	assert.Equal(t, "nonprompt", gi.LegendName("nonprompt"))
	assert.True(t, gi.IsDataDriven("nonprompt"))
	assert.Equal(t, []string{"nonprompt", "ttw", "ttz"}, gi.Members("ttX", "nonprompt", "unknown"))
}
