package kinematics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarstars/hep_boosting/golang/ntuple"
	"gonum.org/v1/gonum/mat"
)

func TestDeltaPhiWraps(t *testing.T) {
	assert.InDelta(t, 6.0-2*math.Pi, DeltaPhi(3.0, -3.0), 1e-12)
	assert.InDelta(t, 2*math.Pi-6.0, DeltaPhi(-3.0, 3.0), 1e-12)
	assert.InDelta(t, 0.5, DeltaPhi(1.0, 0.5), 1e-12)
	assert.InDelta(t, math.Pi, DeltaPhi(math.Pi, 0), 1e-12)
}

func TestBackToBackMasslessPair(t *testing.T) {
	a := Object{Pt: 40, Eta: 0, Phi: 0}
	b := Object{Pt: 40, Eta: 0, Phi: math.Pi}
	assert.InDelta(t, 80.0, InvariantMass(a, b), 1e-9)
	assert.InDelta(t, 80.0, PairMT(a, b), 1e-9)
	assert.InDelta(t, -1.0, CosDeltaTheta(a, b), 1e-12)
	assert.InDelta(t, math.Pi, DeltaR(a, b), 1e-12)
}

func TestEnergyIncludesMass(t *testing.T) {
	o := Object{Pt: 3, Eta: 0, Phi: 0, Mass: 4}
	assert.InDelta(t, 5.0, o.Energy(), 1e-12)
	assert.InDelta(t, 3.0, o.Px(), 1e-12)
	assert.InDelta(t, 0.0, o.Pz(), 1e-12)
}

func eventSample(t *testing.T) *ntuple.Sample {
	t.Helper()
	nan := math.NaN()
	s := ntuple.NewSample("tttt")
	require.NoError(t, s.AddColumn("HT", []float64{300, 500}))
	require.NoError(t, s.AddColumn(MetColumn, []float64{50, 20}))
	require.NoError(t, s.AddColumn(MetPhiColumn, []float64{math.Pi, 0}))

	jets := ntuple.NewCollection("Jets")
	require.NoError(t, jets.AddVar("pt", mat.NewDense(2, 2, []float64{40, 40, 60, nan})))
	require.NoError(t, jets.AddVar("eta", mat.NewDense(2, 2, []float64{0, 0, 1, nan})))
	require.NoError(t, jets.AddVar("phi", mat.NewDense(2, 2, []float64{0, math.Pi, 0, nan})))
	require.NoError(t, jets.AddVar("mass", mat.NewDense(2, 2, []float64{0, 0, 0, nan})))
	require.NoError(t, s.AddCollection(jets))
	return s
}

func TestCreateVariables(t *testing.T) {
	s := eventSample(t)
	vars, err := ParseVariables(
		[]string{"NJets", "HT_copy", "j2Pt", "jet_mass", "mT_1", "cosdphi_1"},
		map[string]string{
			"NJets":     "num(Jets)",
			"HT_copy":   "col(HT)",
			"j2Pt":      "get(Jets, pt, 1)",
			"jet_mass":  "mass(Jets,0,Jets,1)",
			"mT_1":      "mt(Jets,0)",
			"cosdphi_1": "cosdphimet(Jets,0)",
		})
	require.NoError(t, err)
	require.NoError(t, CreateVariables(s, vars))

	col := func(name string) []float64 {
		values, err := s.Column(name)
		require.NoError(t, err)
		return values
	}
	assert.Equal(t, []float64{2, 1}, col("NJets"))
	assert.Equal(t, []float64{300, 500}, col("HT_copy"))
	assert.Equal(t, []float64{40, Pad}, col("j2Pt"))
	assert.InDelta(t, 80.0, col("jet_mass")[0], 1e-9)
	assert.Equal(t, Pad, col("jet_mass")[1])
	assert.InDelta(t, math.Sqrt(8000), col("mT_1")[0], 1e-9)
	assert.InDelta(t, 0.0, col("mT_1")[1], 1e-9)
	assert.InDelta(t, -1.0, col("cosdphi_1")[0], 1e-12)
}

func TestParseVariableErrors(t *testing.T) {
	for _, expr := range []string{"HT", "foo(Jets)", "get(Jets,pt)", "dr(Jets,a,Jets,1)", "num()"} {
		_, err := ParseVariable("x", expr)
		assert.Error(t, err, expr)
	}
	v, err := ParseVariable("x", "num(Missing)")
	require.NoError(t, err)
	_, err = v.Eval(eventSample(t))
	assert.Error(t, err)
}
