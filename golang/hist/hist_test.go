package hist

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var approx = cmpopts.EquateApprox(0, 1e-9)

func regular(t *testing.T, n int, lo, hi float64) Axis {
	t.Helper()
	a, err := NewRegular(n, lo, hi)
	require.NoError(t, err)
	return a
}

func TestAxisIndex(t *testing.T) {
	a := regular(t, 4, 0, 4)
	assert.Equal(t, -1, a.Index(-0.1))
	assert.Equal(t, 0, a.Index(0))
	assert.Equal(t, 3, a.Index(3.99))
	assert.Equal(t, 4, a.Index(4))
	assert.Equal(t, []float64{0.5, 1.5, 2.5, 3.5}, a.Centers())
	assert.True(t, a.IsDiscrete())

	_, err := NewVariable([]float64{0, 2, 1})
	assert.Error(t, err)
	_, err = NewRegular(0, 0, 1)
	assert.Error(t, err)
}

func TestFillFoldsFlow(t *testing.T) {
	h := New(regular(t, 4, 0, 4))
	require.NoError(t, h.Fill([]float64{1, 2, 3, 4}, []float64{-1, 0.5, 3.5, 10}))
	assert.Equal(t, []float64{3, 0, 0, 7}, h.Vals())
	assert.Equal(t, []float64{5, 0, 0, 25}, h.SumW2())
	assert.Equal(t, 10.0, h.Integral(false))
	assert.Equal(t, [2]float64{10, 5.48}, h.IntErr(true, 2))
}

func TestFillFlowKeepsFlow(t *testing.T) {
	h := New(regular(t, 4, 0, 4))
	require.NoError(t, h.FillFlow(nil, []float64{-1, 0.5, 3.5, 10}))
	assert.Equal(t, 2.0, h.Integral(false))
	assert.Equal(t, 4.0, h.Integral(true))
	assert.Equal(t, []float64{2, 0, 0, 2}, h.Vals())
}

func TestFill2D(t *testing.T) {
	h := New(regular(t, 2, 0, 2), regular(t, 2, 0, 2))
	require.NoError(t, h.Fill([]float64{1, 2}, []float64{0.5, 5}, []float64{1.5, -1}))
	assert.Equal(t, []float64{0, 1, 2, 0}, h.Vals())

	assert.Error(t, h.Fill(nil, []float64{1}))
	assert.Error(t, h.Fill([]float64{1}, []float64{1, 2}, []float64{1, 2}))
}

func TestFillMemberBreakdown(t *testing.T) {
	h := New(regular(t, 2, 0, 2))
	require.NoError(t, h.FillMember("ttz", []float64{0.5, 0.5, 1}, []float64{0.1, 1.1, 1.2}))
	o := New(regular(t, 2, 0, 2))
	require.NoError(t, o.FillMember("ttw", []float64{2}, []float64{0.3}))
	require.NoError(t, h.Add(o))

	assert.Equal(t, Breakdown{SumW: 2, SumW2: 1.5, NRaw: 3}, h.Breakdown["ttz"])
	assert.Equal(t, Breakdown{SumW: 2, SumW2: 4, NRaw: 1}, h.Breakdown["ttw"])
	assert.Equal(t, []float64{2.5, 1.5}, h.Vals())
}

func TestArithmeticNeedsSameBinning(t *testing.T) {
	h := New(regular(t, 2, 0, 2))
	o := New(regular(t, 3, 0, 2))
	assert.Error(t, h.Add(o))
	assert.Error(t, h.Sub(o))
	_, err := h.Div(o)
	assert.Error(t, err)
}

func TestDivPropagatesErrors(t *testing.T) {
	a := New(regular(t, 1, 0, 1))
	b := New(regular(t, 1, 0, 1))
	require.NoError(t, a.SetData([]float64{2}, []float64{2}))
	require.NoError(t, b.SetData([]float64{4}, []float64{4}))
	c, err := a.Div(b)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, c.Vals()[0], 1e-8)
	assert.InDelta(t, (2.0/4+4.0/16)*0.25, c.SumW2()[0], 1e-8)

	zero := New(regular(t, 1, 0, 1))
	c, err = a.Div(zero)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(c.Vals()[0]))
}

func TestScaleAndSub(t *testing.T) {
	h := New(regular(t, 2, 0, 2))
	require.NoError(t, h.Fill([]float64{1, 3}, []float64{0.5, 1.5}))
	s := h.Scaled(2)
	assert.Equal(t, []float64{2, 6}, s.Vals())
	assert.Equal(t, []float64{4, 36}, s.SumW2())
	assert.Equal(t, []float64{1, 3}, h.Vals())

	require.NoError(t, s.Sub(h))
	assert.Equal(t, []float64{1, 3}, s.Vals())
	assert.Equal(t, []float64{5, 45}, s.SumW2())
}

func TestSystematicsAndSelfRatio(t *testing.T) {
	h := New(regular(t, 2, 0, 2))
	require.NoError(t, h.SetData([]float64{4, 0}, []float64{4, 0}))
	shift := New(regular(t, 2, 0, 2))
	require.NoError(t, shift.SetData([]float64{3, 0}, nil))
	require.NoError(t, h.AddSyst(shift))

	assert.Equal(t, []float64{9, 0}, h.SystErr2())
	assert.True(t, cmp.Equal([]float64{math.Sqrt(13), 0}, h.TotalErr(), approx))

	r, err := h.SelfRatio()
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0}, r.Vals())
	assert.True(t, cmp.Equal([]float64{0.25, 0}, r.SumW2(), approx), r.SumW2())
	assert.True(t, cmp.Equal([]float64{9.0 / 16, 0}, r.SystErr2(), approx), r.SystErr2())
}

func TestName(t *testing.T) {
	h := New().WithStyle("ttbar", "red")
	assert.Equal(t, "#bd1f01", h.Color)
	assert.Equal(t, "ttbar", h.Name())
	h.ScaleForPlot(2)
	assert.Equal(t, "ttbar x 2", h.Name())
	h.ScaleForPlot(2.5)
	assert.Equal(t, "ttbar x 2.50", h.Name())
	assert.Equal(t, "#123456", ResolveColor("#123456"))
	assert.Equal(t, "#000000", ResolveColor("nope"))
}

func TestEfficiency(t *testing.T) {
	top := New(regular(t, 2, 0, 2))
	bot := New(regular(t, 2, 0, 2))
	require.NoError(t, top.SetData([]float64{10, 5}, []float64{10, 5}))
	require.NoError(t, bot.SetData([]float64{10, 10}, []float64{10, 10}))

	eff, err := Efficiency(top, bot, false)
	require.NoError(t, err)
	assert.InDelta(t, 11.0/12, eff.Vals()[0], 1e-6)
	assert.InDelta(t, 0.5, eff.Vals()[1], 1e-6)
	assert.Greater(t, eff.Err()[1], 0.0)

	low, err := Efficiency(top, bot, true)
	require.NoError(t, err)
	assert.Less(t, low.Vals()[0], eff.Vals()[0])
	assert.Less(t, low.Vals()[1], 0.5)
}

func TestStackOrdersBySum(t *testing.T) {
	axis := regular(t, 1, 0, 1)
	s := NewStack(true, axis)
	for _, g := range []struct {
		name string
		w    float64
	}{{"small", 3}, {"big", 10}, {"mid", 5}} {
		h := New(axis)
		h.Group = g.name
		require.NoError(t, h.Fill([]float64{g.w}, []float64{0.5}))
		require.NoError(t, s.Push(h))
	}
	var order []string
	for _, m := range s.Members {
		order = append(order, m.Group)
	}
	assert.Equal(t, []string{"big", "mid", "small"}, order)
	assert.Equal(t, 18.0, s.Integral(true))

	s.Get("big").Scale(0.5)
	require.NoError(t, s.Recalculate())
	assert.Equal(t, 13.0, s.Integral(true))
	assert.Nil(t, s.Get("missing"))

	plain := NewStack(false, axis)
	require.NoError(t, plain.Push(s.Get("small")))
	require.NoError(t, plain.Push(s.Get("big")))
	assert.Equal(t, "small", plain.Members[0].Group)
}
