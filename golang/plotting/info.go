package plotting

import (
	"fmt"
	"io"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/tarstars/hep_boosting/golang/ntuple"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

//VarInfo summarises one variable of a group.
type VarInfo struct {
	Name     string
	Events   float64
	Raw      int
	Mean     float64
	Std      float64
	Kurtosis float64
}

//Info computes per group statistics of a variable, ordered by decreasing mean.
func Info(varname string, groups map[string]*ntuple.Sample) ([]VarInfo, error) {
	out := make([]VarInfo, 0, len(groups))
	for name, s := range groups {
		if s.Len() == 0 {
			continue
		}
		x, err := s.Column(varname)
		if err != nil {
			return nil, errors.Wrapf(err, "group %s", name)
		}
		mean, std := stat.PopMeanStdDev(x, nil)
		out = append(out, VarInfo{
			Name:     name,
			Events:   floats.Sum(s.Weights()),
			Raw:      len(x),
			Mean:     mean,
			Std:      std,
			Kurtosis: stat.ExKurtosis(x, nil),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Mean > out[j].Mean })
	return out, nil
}

//PrintInfo writes the statistics of a variable as a table.
func PrintInfo(w io.Writer, varname string, groups map[string]*ntuple.Sample) error {
	info, err := Info(varname, groups)
	if err != nil {
		return err
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"name", "events", "raw events", "mean+-std", "kurtosis"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	for _, v := range info {
		table.Append([]string{
			v.Name,
			fmt.Sprintf("%.2f", v.Events),
			fmt.Sprintf("%d", v.Raw),
			fmt.Sprintf("%.2f+-%.2f", v.Mean, v.Std),
			fmt.Sprintf("%.2f", v.Kurtosis),
		})
	}
	table.Render()
	return nil
}
