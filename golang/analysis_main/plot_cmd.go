package main

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tarstars/hep_boosting/golang/config"
	"github.com/tarstars/hep_boosting/golang/fom"
	"github.com/tarstars/hep_boosting/golang/hist"
	"github.com/tarstars/hep_boosting/golang/ntuple"
	"github.com/tarstars/hep_boosting/golang/plotting"
	"github.com/tarstars/hep_boosting/golang/report"
)

// digits of the per sample yields in the logs
const breakdownDigits = 3

//backgroundGroups expands "all" into every group that is neither signal nor data.
func backgroundGroups(cfg *config.Config) []string {
	if len(cfg.Backgrounds) != 1 || cfg.Backgrounds[0] != "all" {
		return cfg.Backgrounds
	}
	var out []string
	for _, g := range cfg.GroupInfo().Groups() {
		if g != cfg.Signal && g != cfg.Data {
			out = append(out, g)
		}
	}
	return out
}

//yearPlotter draws into output/<year>/plots.
func yearPlotter(cfg *config.Config, year string) (*plotting.Plotter, error) {
	dir := yearDir(cfg, year)
	if err := report.MakePlotPaths(dir); err != nil {
		return nil, err
	}
	return newModelPlotter(cfg, filepath.Join(dir, report.PlotsDir), year, cfg.Lumi[year])
}

func newPlotCommand(opts *options) *cobra.Command {
	var info string
	cmd := &cobra.Command{
		Use:   "plot",
		Short: "Draw the stacked distributions of every configured variable",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			for _, year := range cfg.Years {
				samples, err := loadYear(cmd.Context(), cfg, year)
				if err != nil {
					return errors.Wrapf(err, "year %s", year)
				}
				if err := plotYear(cfg, year, samples); err != nil {
					return errors.Wrapf(err, "year %s", year)
				}
				if info != "" {
					if err := plotting.PrintInfo(os.Stdout, info, groupSamples(cfg, samples)); err != nil {
						return err
					}
				}
				if err := report.WriteHTML(yearDir(cfg, year), year, nil); err != nil {
					return err
				}
			}
			return report.WriteHTML(cfg.OutputDir, cfg.Region, cfg.Years)
		},
	}
	cmd.Flags().StringVar(&info, "info", "", "print the statistics of `variable` per group")
	return cmd
}

//plotYear draws every plot of a year and writes its yield log next to it.
func plotYear(cfg *config.Config, year string, samples map[string]*ntuple.Sample) error {
	plotter, err := yearPlotter(cfg, year)
	if err != nil {
		return err
	}
	hists, err := fillHists(cfg, samples)
	if err != nil {
		return err
	}
	for _, p := range cfg.Plots {
		groups, err := plotter.SetHistGroups(hists[p.Name])
		if err != nil {
			return errors.Wrapf(err, "plot %s", p.Name)
		}
		if err := plotter.PlotStack(p.Name, groups, nil); err != nil {
			return err
		}

		logFile := report.NewLogFile(p.Name, cfg.Lumi[year])
		for _, g := range plotter.Backgrounds {
			if h, ok := groups[g]; ok {
				logFile.AddMC(g, h, false)
			}
		}
		if h, ok := groups[cfg.Signal]; ok {
			logFile.AddMC(cfg.Signal, h, true)
		}
		if h, ok := groups[cfg.Data]; ok {
			logFile.AddData(h)
		}
		for _, g := range append([]string{cfg.Signal}, plotter.Backgrounds...) {
			if h, ok := groups[g]; ok {
				logFile.AddBreakdown(g, h, breakdownDigits)
			}
		}
		if err := logFile.WriteOut(filepath.Join(yearDir(cfg, year), report.LogsDir), p.Name+"_"+year); err != nil {
			return err
		}
		log.Info().Str("plot", p.Name).Str("year", year).Msg("plotted")
	}
	return nil
}

//groupSamples merges the samples of every group.
func groupSamples(cfg *config.Config, samples map[string]*ntuple.Sample) map[string]*ntuple.Sample {
	gi := cfg.GroupInfo()
	out := make(map[string]*ntuple.Sample)
	for _, g := range gi.Groups() {
		merged := ntuple.NewSample(g)
		for _, m := range gi.Members(g) {
			s, ok := samples[m]
			if !ok {
				continue
			}
			if err := merged.Concat(s); err != nil {
				log.Warn().Err(err).Str("group", g).Str("sample", m).Msg("cannot merge sample")
			}
		}
		if merged.Len() > 0 {
			out[g] = merged
		}
	}
	return out
}

//events collects a variable of the given samples with their weights.
func events(samples map[string]*ntuple.Sample, members []string, variable string) (fom.Events, error) {
	var e fom.Events
	for _, m := range members {
		s, ok := samples[m]
		if !ok {
			continue
		}
		values, err := s.Column(variable)
		if err != nil {
			return e, errors.Wrapf(err, "sample %s", m)
		}
		e.Values = append(e.Values, values...)
		e.Weights = append(e.Weights, s.Weights()...)
	}
	return e, nil
}

func newFOMCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "fom",
		Short: "Scan a lower cut on every plotted variable",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			kind, err := fom.ParseKind(cfg.Significance)
			if err != nil {
				return err
			}
			gi := cfg.GroupInfo()
			bkgMembers := gi.Members(backgroundGroups(cfg)...)
			sigMembers := gi.Members(cfg.Signal)
			for _, year := range cfg.Years {
				samples, err := loadYear(cmd.Context(), cfg, year)
				if err != nil {
					return errors.Wrapf(err, "year %s", year)
				}
				plotter, err := yearPlotter(cfg, year)
				if err != nil {
					return err
				}
				hists, err := fillHists(cfg, samples)
				if err != nil {
					return err
				}
				for _, p := range cfg.Plots {
					sig, err := events(samples, sigMembers, p.Var)
					if err != nil {
						return err
					}
					bkg, err := events(samples, bkgMembers, p.Var)
					if err != nil {
						return err
					}
					axis, err := p.Bins.Axis()
					if err != nil {
						return err
					}
					scan, err := fom.Scan(sig, []fom.Events{bkg}, axis.Edges, kind)
					if err != nil {
						return errors.Wrapf(err, "plot %s", p.Name)
					}
					sigHist, err := sumMembers(hists[p.Name], sigMembers, axis)
					if err != nil {
						return err
					}
					bkgHist, err := sumMembers(hists[p.Name], bkgMembers, axis)
					if err != nil {
						return err
					}
					best, cut, err := plotter.PlotFOM(p.Name+"_fom", sigHist, bkgHist, scan)
					if err != nil {
						return err
					}
					log.Info().Str("year", year).Str("var", p.Var).Float64("fom", best).Float64("cut", cut).Msg("best lower cut")
				}
			}
			return nil
		},
	}
}

func newEfficiencyCommand(opts *options) *cobra.Command {
	var cutSpec string
	cmd := &cobra.Command{
		Use:   "eff",
		Short: "Draw the efficiency of an extra cut for every group and plotted variable",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			cut, err := ntuple.ParseCut(cutSpec)
			if err != nil {
				return err
			}
			gi := cfg.GroupInfo()
			groups := append([]string{cfg.Signal}, backgroundGroups(cfg)...)
			for _, year := range cfg.Years {
				samples, err := loadYear(cmd.Context(), cfg, year)
				if err != nil {
					return errors.Wrapf(err, "year %s", year)
				}
				passing := make(map[string]*ntuple.Sample, len(samples))
				for name, s := range samples {
					if passing[name], err = ntuple.ApplyCuts(s, []ntuple.Cut{cut}); err != nil {
						return errors.Wrapf(err, "sample %s", name)
					}
				}
				all, err := fillHists(cfg, samples)
				if err != nil {
					return err
				}
				selected, err := fillHists(cfg, passing)
				if err != nil {
					return err
				}
				plotter, err := yearPlotter(cfg, year)
				if err != nil {
					return err
				}
				for _, p := range cfg.Plots {
					axis, err := p.Bins.Axis()
					if err != nil {
						return err
					}
					effs := make(map[string]*hist.Histogram)
					for _, group := range groups {
						members := gi.Members(group)
						bot, err := sumMembers(all[p.Name], members, axis)
						if err != nil {
							return err
						}
						if bot.Integral(false) == 0 {
							continue
						}
						top, err := sumMembers(selected[p.Name], members, axis)
						if err != nil {
							return err
						}
						if effs[group], err = hist.Efficiency(top, bot, false); err != nil {
							return errors.Wrapf(err, "plot %s, group %s", p.Name, group)
						}
					}
					if err := plotter.PlotEfficiency(p.Name+"_eff", effs); err != nil {
						return err
					}
					log.Info().Str("year", year).Str("var", p.Var).Stringer("cut", cut).Int("groups", len(effs)).Msg("efficiency drawn")
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&cutSpec, "cut", "", "selection whose efficiency is drawn, e.g. \"NJets>4\"")
	markRequired(cmd, "cut")
	return cmd
}

func sumMembers(members map[string]*hist.Histogram, names []string, axis hist.Axis) (*hist.Histogram, error) {
	out := hist.New(axis)
	for _, name := range names {
		h, ok := members[name]
		if !ok {
			continue
		}
		out.AxisName = h.AxisName
		if err := out.Add(h); err != nil {
			return nil, errors.Wrapf(err, "sample %s", name)
		}
	}
	return out, nil
}

func newHTMLCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "html",
		Short: "Write the index pages of the output area",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			var years []string
			for _, year := range cfg.Years {
				if _, err := os.Stat(yearDir(cfg, year)); err != nil {
					continue
				}
				if err := report.WriteHTML(yearDir(cfg, year), year, nil); err != nil {
					return err
				}
				years = append(years, year)
			}
			if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
				return errors.Wrapf(err, "create %s", cfg.OutputDir)
			}
			return report.WriteHTML(cfg.OutputDir, cfg.Region, years)
		},
	}
}
