package report

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarstars/hep_boosting/golang/hist"
)

func yield(t *testing.T, member string, n int, weight float64) *hist.Histogram {
	t.Helper()
	axis, err := hist.NewRegular(2, 0, 2)
	require.NoError(t, err)
	h := hist.New(axis)
	values := make([]float64, n)
	weights := make([]float64, n)
	for i := range weights {
		values[i] = float64(i % 2)
		weights[i] = weight
	}
	require.NoError(t, h.FillMember(member, weights, values))
	return h
}

func TestSigFig(t *testing.T) {
	assert.Equal(t, 1230.0, SigFig(1234.5, 3))
	assert.InDelta(t, 0.000457, SigFig(0.00045678, 3), 1e-12)
	assert.Equal(t, -2.5, SigFig(-2.46, 2))
	assert.Equal(t, 0.0, SigFig(0, 3))
	assert.True(t, math.IsInf(SigFig(math.Inf(1), 3), 1))
}

func TestRatios(t *testing.T) {
	l := NewLogFile("njets", 59.7)
	l.AddMC("tttt", yield(t, "tttt", 4, 1), true)
	l.AddMC("ttbar", yield(t, "ttbar", 16, 1), false)

	v, e := l.SigBkgRatio()
	assert.InDelta(t, 0.25, v, 1e-12)
	assert.InDelta(t, 0.25*math.Sqrt(4.0/16+16.0/256), e, 1e-12)

	v, e = l.Likelihood()
	assert.InDelta(t, 4/math.Sqrt(16+1e-5), v, 1e-12)
	assert.InDelta(t, v*math.Sqrt(4.0/16+0.25*16.0/256), e, 1e-12)
}

func TestWriteOut(t *testing.T) {
	SetMetaInfo("2026-10-18 10:00", "analysis plot --year 2018")
	l := NewLogFile("njets", 59.7)
	l.Details = "NJets = num(Jets)"
	signal := yield(t, "tttt", 4, 0.5)
	bkg := yield(t, "ttbar_lep", 10, 1)
	require.NoError(t, bkg.Add(yield(t, "ttbar_had", 20, 1)))
	l.AddMC("ttt", signal, true)
	l.AddMC("ttbar", bkg, false)
	l.AddBreakdown("ttbar", bkg, 2)
	l.AddData(yield(t, "data", 33, 1))

	dir := t.TempDir()
	require.NoError(t, l.WriteOut(dir, "njets_2018"))
	raw, err := os.ReadFile(filepath.Join(dir, "njets_2018.log"))
	require.NoError(t, err)
	out := string(raw)

	assert.True(t, strings.HasPrefix(out, "<html><pre><code>\n"))
	assert.True(t, strings.HasSuffix(out, "</code></pre></html>\n"))
	assert.Contains(t, out, "The command was: analysis plot --year 2018")
	assert.Contains(t, out, "Luminosity: 59.70 fb^{-1}")
	assert.Contains(t, out, "Total sum of Monte Carlo: 32 +/- ")
	assert.Contains(t, out, "Number of events in data 33")
	assert.Contains(t, out, "NJets = num(Jets)")
	assert.Less(t, strings.Index(out, "ttbar_had"), strings.Index(out, "ttbar_lep"))
}

func TestWriteToWithoutSignal(t *testing.T) {
	l := NewLogFile("met", 41.5)
	l.AddMC("ttbar", yield(t, "ttbar", 3, 1), false)
	var buf bytes.Buffer
	_, err := l.WriteTo(&buf)
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "S/B")
}

func TestWriteHTML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, MakePlotPaths(dir))
	for _, name := range []string{"njets_2018.png", "ht_2018.svg", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, PlotsDir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, LogsDir, "njets_2018.log"), []byte("x"), 0o644))

	require.NoError(t, WriteHTML(dir, "Signal region <2018>", []string{"2017"}))
	raw, err := os.ReadFile(filepath.Join(dir, "index.html"))
	require.NoError(t, err)
	page := string(raw)

	assert.Contains(t, page, "Signal region &lt;2018&gt;")
	assert.Contains(t, page, `href="2017/index.html"`)
	assert.Contains(t, page, `href="logs/njets_2018.log"`)
	assert.Contains(t, page, `src="plots/ht_2018.svg"`)
	assert.NotContains(t, page, "notes.txt")
	assert.NotContains(t, page, "logs/ht_2018.log")
	assert.Less(t, strings.Index(page, "ht_2018"), strings.Index(page, "njets_2018"))
}
