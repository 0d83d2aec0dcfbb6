package main

import (
	"context"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/tarstars/hep_boosting/golang/config"
	"github.com/tarstars/hep_boosting/golang/hist"
	"github.com/tarstars/hep_boosting/golang/kinematics"
	"github.com/tarstars/hep_boosting/golang/mva"
	"github.com/tarstars/hep_boosting/golang/ntuple"
)

//loadYear reads the samples of a year, adds the derived variables and applies the selection.
func loadYear(ctx context.Context, cfg *config.Config, year string) (map[string]*ntuple.Sample, error) {
	samples, err := ntuple.LoadSamples(ctx, filepath.Join(cfg.InputDir, year), cfg.Samples(), cfg.Workers)
	if err != nil {
		return nil, err
	}
	vars, err := cfg.ParseVariables()
	if err != nil {
		return nil, err
	}
	cuts, err := cfg.ParseCuts()
	if err != nil {
		return nil, err
	}
	for name, s := range samples {
		if err := kinematics.CreateVariables(s, vars); err != nil {
			return nil, errors.Wrapf(err, "sample %s", name)
		}
		if samples[name], err = ntuple.ApplyCuts(s, cuts); err != nil {
			return nil, errors.Wrapf(err, "sample %s", name)
		}
		log.Debug().Str("sample", name).Int("before", s.Len()).Int("after", samples[name].Len()).Msg("selection")
	}
	return samples, nil
}

//setupHolder splits every configured year into training, validation and test events.
func setupHolder(ctx context.Context, cfg *config.Config) (*mva.Holder, error) {
	holder := cfg.NewHolder()
	for _, year := range cfg.Years {
		samples, err := loadYear(ctx, cfg, year)
		if err != nil {
			return nil, errors.Wrapf(err, "year %s", year)
		}
		if err := holder.SetupYear(year, samples); err != nil {
			return nil, err
		}
	}
	return holder, nil
}

//fillHists histograms every configured plot for every sample.
func fillHists(cfg *config.Config, samples map[string]*ntuple.Sample) (map[string]map[string]*hist.Histogram, error) {
	out := make(map[string]map[string]*hist.Histogram, len(cfg.Plots))
	for _, p := range cfg.Plots {
		axis, err := p.Bins.Axis()
		if err != nil {
			return nil, err
		}
		members := make(map[string]*hist.Histogram, len(samples))
		for name, s := range samples {
			values, err := s.Column(p.Var)
			if err != nil {
				return nil, errors.Wrapf(err, "plot %s, sample %s", p.Name, name)
			}
			h := hist.New(axis)
			h.AxisName = p.AxisName
			if h.AxisName == "" {
				h.AxisName = p.Var
			}
			if err := h.FillMember(name, s.Weights(), ntuple.Clean(values)); err != nil {
				return nil, errors.Wrapf(err, "plot %s, sample %s", p.Name, name)
			}
			members[name] = h
		}
		out[p.Name] = members
	}
	return out, nil
}

func yearDir(cfg *config.Config, year string) string {
	return filepath.Join(cfg.OutputDir, year)
}

func modelDir(cfg *config.Config) string {
	return filepath.Join(cfg.OutputDir, "model")
}

func totalLumi(cfg *config.Config) float64 {
	total := 0.0
	for _, year := range cfg.Years {
		total += cfg.Lumi[year]
	}
	return total
}
