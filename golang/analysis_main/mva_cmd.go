package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tarstars/hep_boosting/golang/config"
	"github.com/tarstars/hep_boosting/golang/mva"
	"github.com/tarstars/hep_boosting/golang/plotting"
	"gopkg.in/yaml.v3"
)

func newModelPlotter(cfg *config.Config, dir, year string, lumi float64) (*plotting.Plotter, error) {
	return plotting.NewPlotter(cfg.GroupInfo(), cfg.Signal, cfg.Backgrounds, cfg.Data, dir, cfg.Format, year, lumi)
}

func newTrainCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "train",
		Short: "Split the samples and train the signal classifier",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			holder, err := setupHolder(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			params, err := cfg.BDTParams()
			if err != nil {
				return err
			}
			dir := modelDir(cfg)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return errors.Wrapf(err, "create %s", dir)
			}
			if err := holder.Train(cmd.Context(), params, dir); err != nil {
				return err
			}
			plotter, err := newModelPlotter(cfg, dir, "all", totalLumi(cfg))
			if err != nil {
				return err
			}
			if err := plotter.PlotImportance("importance", holder.Booster.Importance()); err != nil {
				return err
			}
			return plotter.PlotTrainingProgress("training", holder.Booster.LearningCurves())
		},
	}
}

//trainsOn reports whether the test sets keep a variable.
func trainsOn(cfg *config.Config, variable string) bool {
	for _, v := range cfg.UseVars {
		if v == variable {
			return true
		}
	}
	return false
}

//appliedHolder rebuilds the split of a trained model and predicts every test set.
func appliedHolder(cmd *cobra.Command, opts *options) (*config.Config, *mva.Holder, error) {
	cfg, err := opts.load()
	if err != nil {
		return nil, nil, err
	}
	holder, err := setupHolder(cmd.Context(), cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := holder.LoadModel(modelDir(cfg)); err != nil {
		return nil, nil, err
	}
	if err := holder.ApplyAll(cmd.Context(), cfg.Years, true); err != nil {
		return nil, nil, err
	}
	return cfg, holder, nil
}

func newApplyCommand(opts *options) *cobra.Command {
	var cut float64
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Predict the test events and write them with their score",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, holder, err := appliedHolder(cmd, opts)
			if err != nil {
				return err
			}
			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"year", "auc", "fom", "tp", "fp", "tn", "fn", "precision", "recall", "mcc"})
			for _, year := range cfg.Years {
				if err := holder.Output(filepath.Join(cfg.OutputDir, "predictions"), year); err != nil {
					return err
				}
				stats, err := holder.Stats(year, cut)
				if err != nil {
					return err
				}
				table.Append([]string{
					year,
					fmt.Sprintf("%.4f", holder.AUC[year]),
					fmt.Sprintf("%.3f", holder.FOM[year]),
					fmt.Sprint(stats.TP), fmt.Sprint(stats.FP), fmt.Sprint(stats.TN), fmt.Sprint(stats.FN),
					fmt.Sprintf("%.3f", stats.Precision),
					fmt.Sprintf("%.3f", stats.Recall),
					fmt.Sprintf("%.3f", stats.MCC),
				})
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().Float64Var(&cut, "cut", 0.5, "score cut of the confusion matrix")
	return cmd
}

func newROCCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "roc",
		Short: "Draw ROC curves and the overtraining check of every year",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, holder, err := appliedHolder(cmd, opts)
			if err != nil {
				return err
			}
			gi := cfg.GroupInfo()
			subgroups := make(map[string][]string)
			for _, g := range backgroundGroups(cfg) {
				subgroups[g] = gi.Members(g)
			}
			for _, year := range cfg.Years {
				plotter, err := yearPlotter(cfg, year)
				if err != nil {
					return err
				}
				curves, err := holder.ROCCurves(year, subgroups)
				if err != nil {
					return err
				}
				if err := plotter.PlotROC("roc", curves); err != nil {
					return err
				}
				overtrain, err := holder.OvertrainTest(year)
				if err != nil {
					return err
				}
				if err := plotter.PlotOvertrain("overtrain", overtrain); err != nil {
					return err
				}
				for _, p := range cfg.Plots {
					if !trainsOn(cfg, p.Var) {
						continue
					}
					axis, err := p.Bins.Axis()
					if err != nil {
						return err
					}
					best, cut, err := holder.ApproxLikelihood(p.Var, axis.Edges, year)
					if err != nil {
						return err
					}
					log.Info().Str("year", year).Str("var", p.Var).Float64("likelihood", best).Float64("cut", cut).Msg("approximate likelihood")
				}
			}
			return nil
		},
	}
}

func newHyperoptCommand(opts *options) *cobra.Command {
	var trials int
	cmd := &cobra.Command{
		Use:   "hyperopt",
		Short: "Random search over the booster hyperparameters",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if trials > 0 {
				cfg.MVA.Trials = trials
			}
			holder, err := setupHolder(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			params, err := cfg.BDTParams()
			if err != nil {
				return err
			}
			space := mva.DefaultSpace()
			results, err := mva.HyperSearch(cmd.Context(), space, cfg.MVA.Trials, cfg.MVA.RandomState, holder.Objective(params))
			if err != nil {
				return err
			}

			names := make([]string, 0, len(space))
			for _, r := range space {
				names = append(names, r.Name)
			}
			sort.Strings(names)
			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader(append([]string{"trial", "loss"}, names...))
			for _, trial := range results {
				row := []string{fmt.Sprint(trial.Index), fmt.Sprintf("%.4f", trial.Loss)}
				if trial.Err != nil {
					row[1] = "failed"
				}
				for _, name := range names {
					row = append(row, fmt.Sprintf("%.4g", trial.Params[name]))
				}
				table.Append(row)
			}
			table.Render()

			if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
				return errors.Wrapf(err, "create %s", cfg.OutputDir)
			}
			best, err := yaml.Marshal(map[string]interface{}{"loss": results[0].Loss, "params": results[0].Params})
			if err != nil {
				return errors.Wrap(err, "encode best trial")
			}
			fileName := filepath.Join(cfg.OutputDir, "hyperopt.yaml")
			log.Info().Str("file", fileName).Float64("loss", results[0].Loss).Msg("best trial")
			return errors.Wrapf(os.WriteFile(fileName, best, 0o644), "write %s", fileName)
		},
	}
	cmd.Flags().IntVar(&trials, "trials", 0, "number of trials (overrides the config)")
	return cmd
}
