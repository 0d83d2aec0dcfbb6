package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tarstars/hep_boosting/golang/bdt"
	"github.com/tarstars/hep_boosting/golang/ntuple"
	"gonum.org/v1/gonum/mat"
)

func markRequired(cmd *cobra.Command, names ...string) {
	for _, name := range names {
		if err := cmd.MarkFlagRequired(name); err != nil {
			log.Panic().Err(err).Str("flag", name).Msg("unknown flag")
		}
	}
}

func newGraphCommand() *cobra.Command {
	var model, figureType, dir, prefix string
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Render every tree of a model with graphviz",
		RunE: func(cmd *cobra.Command, args []string) error {
			booster, err := bdt.LoadModel(model)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return errors.Wrapf(err, "create %s", dir)
			}
			return booster.RenderTrees(prefix, figureType, dir)
		},
	}
	cmd.Flags().StringVar(&model, "model", "", "model file")
	cmd.Flags().StringVar(&figureType, "type", "svg", "figure type: svg, png or jpg")
	cmd.Flags().StringVar(&dir, "dir", "trees", "pictures directory")
	cmd.Flags().StringVar(&prefix, "prefix", "tree", "file name prefix")
	markRequired(cmd, "model")
	return cmd
}

func newPredictCommand() *cobra.Command {
	var model, features, basis, output string
	var trees int
	var raw bool
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict a feature matrix stored as npy",
		RunE: func(cmd *cobra.Command, args []string) error {
			booster, err := bdt.LoadModel(model)
			if err != nil {
				return err
			}
			x, err := bdt.ReadNpy(features)
			if err != nil {
				return err
			}
			var b *mat.Dense
			if basis != "" {
				if b, err = bdt.ReadNpy(basis); err != nil {
					return err
				}
			}
			if raw || trees > 0 {
				return ntuple.WriteNpy(output, booster.PredictRaw(x, b, trees))
			}
			return ntuple.WriteNpy(output, booster.PredictProba(x, b))
		},
	}
	cmd.Flags().StringVar(&model, "model", "", "model file")
	cmd.Flags().StringVar(&features, "features", "", "feature matrix (npy)")
	cmd.Flags().StringVar(&basis, "basis", "", "leaf basis matrix (npy), constant leaves when empty")
	cmd.Flags().StringVar(&output, "output", "prediction.npy", "prediction file")
	cmd.Flags().IntVar(&trees, "trees", 0, "number of trees summed into a raw prediction, all when 0")
	cmd.Flags().BoolVar(&raw, "raw", false, "write the raw score instead of the probability")
	markRequired(cmd, "model", "features")
	return cmd
}

func newLcurveCommand() *cobra.Command {
	var model, features, basis, label, output, curves string
	cmd := &cobra.Command{
		Use:   "lcurve",
		Short: "Recompute the learning curve of a model on an npy dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			booster, err := bdt.LoadModel(model)
			if err != nil {
				return err
			}
			if curves != "" {
				if err := booster.DumpLearningCurves(curves); err != nil {
					return err
				}
			}
			if features == "" {
				return nil
			}
			ds, err := bdt.ReadDataset(features, basis, label)
			if err != nil {
				return err
			}
			staged, err := booster.StagedMetrics(ds)
			if err != nil {
				return err
			}
			names := booster.MetricNames()
			out := mat.NewDense(len(staged), len(names), nil)
			for stage, row := range staged {
				out.SetRow(stage, row)
			}
			log.Info().Strs("metrics", names).Int("trees", len(staged)).Str("file", output).Msg("learning curve")
			return ntuple.WriteNpy(output, out)
		},
	}
	cmd.Flags().StringVar(&model, "model", "", "model file")
	cmd.Flags().StringVar(&features, "features", "", "feature matrix (npy)")
	cmd.Flags().StringVar(&basis, "basis", "", "leaf basis matrix (npy)")
	cmd.Flags().StringVar(&label, "label", "", "label column (npy)")
	cmd.Flags().StringVar(&output, "output", "learning_curve.npy", "staged metrics, one row per tree")
	cmd.Flags().StringVar(&curves, "curves", "", "also dump the stored learning curves as JSON")
	markRequired(cmd, "model")
	return cmd
}
