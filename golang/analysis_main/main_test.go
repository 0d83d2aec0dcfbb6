package main

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarstars/hep_boosting/golang/config"
	"github.com/tarstars/hep_boosting/golang/ntuple"
)

const testYAML = `
years: ["2018"]
signal: sig
groups:
  - {name: sig, members: [tttt], color: red}
  - {name: bkg, members: [ttbar], color: blue}
  - {name: data, members: [data]}
classes:
  Signal: [tttt]
  Background: [ttbar]
use_vars: [x, y]
plots:
  - {name: x, var: x, bins: {n: 10, lo: -4, hi: 4}}
bdt:
  n_estimators: 5
  max_depth: 2
  eta: 0.3
  colsample_bytree: 1
  early_stopping_rounds: 0
`

func writeSample(t *testing.T, dir, name string, n int, mean, sf float64, seed int64) {
	t.Helper()
	rnd := rand.New(rand.NewSource(seed))
	s := ntuple.NewSample(name)
	x, y, w := make([]float64, n), make([]float64, n), make([]float64, n)
	for i := range x {
		x[i] = mean + rnd.NormFloat64()
		y[i] = rnd.NormFloat64()
		w[i] = sf
	}
	require.NoError(t, s.AddColumn("x", x))
	require.NoError(t, s.AddColumn("y", y))
	require.NoError(t, s.AddColumn(ntuple.WeightColumn, w))
	require.NoError(t, ntuple.WriteSampleDir(filepath.Join(dir, name), s))
}

//setupArea writes an input tree and a config file and returns the config path.
func setupArea(t *testing.T) (string, string) {
	t.Helper()
	root := t.TempDir()
	input := filepath.Join(root, "input", "2018")
	writeSample(t, input, "tttt", 600, 1.5, 0.01, 1)
	writeSample(t, input, "ttbar", 600, -1.5, 0.5, 2)
	writeSample(t, input, "data", 300, -1, 1, 3)

	output := filepath.Join(root, "output")
	yaml := testYAML + "input_dir: " + filepath.Join(root, "input") + "\noutput_dir: " + output + "\n"
	cfgFile := filepath.Join(root, "analysis.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte(yaml), 0o644))
	return cfgFile, output
}

func run(t *testing.T, args ...string) error {
	t.Helper()
	cmd := newRootCommand()
	cmd.SetArgs(args)
	return cmd.ExecuteContext(context.Background())
}

func TestBackgroundGroups(t *testing.T) {
	cfg, err := config.Parse([]byte(testYAML))
	require.NoError(t, err)
	assert.Equal(t, []string{"bkg"}, backgroundGroups(cfg))
	cfg.Backgrounds = []string{"sig"}
	assert.Equal(t, []string{"sig"}, backgroundGroups(cfg))
}

func TestPlotCommand(t *testing.T) {
	cfgFile, output := setupArea(t)
	require.NoError(t, run(t, "-c", cfgFile, "plot"))

	for _, file := range []string{
		filepath.Join(output, "2018", "plots", "x_2018.png"),
		filepath.Join(output, "2018", "logs", "x_2018.log"),
		filepath.Join(output, "2018", "index.html"),
		filepath.Join(output, "index.html"),
	} {
		_, err := os.Stat(file)
		assert.NoError(t, err, file)
	}

	require.NoError(t, run(t, "-c", cfgFile, "fom"))
	_, err := os.Stat(filepath.Join(output, "2018", "plots", "x_fom_2018.png"))
	assert.NoError(t, err)
}

func TestEfficiencyCommand(t *testing.T) {
	cfgFile, output := setupArea(t)
	require.NoError(t, run(t, "-c", cfgFile, "eff", "--cut", "y>0"))
	_, err := os.Stat(filepath.Join(output, "2018", "plots", "x_eff_2018.png"))
	assert.NoError(t, err)

	assert.Error(t, run(t, "-c", cfgFile, "eff"))
	assert.Error(t, run(t, "-c", cfgFile, "eff", "--cut", "y~0"))
	assert.Error(t, run(t, "-c", cfgFile, "eff", "--cut", "z>0"))
}

func TestTrainAndPredict(t *testing.T) {
	cfgFile, output := setupArea(t)
	require.NoError(t, run(t, "-c", cfgFile, "train"))

	model := filepath.Join(output, "model", "model.json")
	_, err := os.Stat(model)
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(output, "model", "importance_all.png"))
	assert.NoError(t, err)

	treeDir := filepath.Join(output, "trees")
	require.NoError(t, run(t, "graph", "--model", model, "--dir", treeDir))
	_, err = os.Stat(filepath.Join(treeDir, "tree_00000.svg"))
	assert.NoError(t, err)

	features := filepath.Join(output, "features.npy")
	require.NoError(t, ntuple.WriteNpy(features, []float64{1, 0, -1, 0}))
	assert.Error(t, run(t, "predict", "--features", features, "--model", filepath.Join(output, "missing.json")))
}

func TestMissingConfig(t *testing.T) {
	assert.Error(t, run(t, "-c", filepath.Join(t.TempDir(), "missing.yaml"), "plot"))
	assert.Error(t, run(t, "graph"))
}
