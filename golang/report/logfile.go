// Package report writes the per plot event yield logs and the html index of a plot area.
package report

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/tarstars/hep_boosting/golang/hist"
)

const (
	kindBkg = iota
	kindSignal
	kindData
	kindTotal
)

// Run information printed at the top of every log.
var (
	CallTime string
	Command  string
)

//SetMetaInfo records when and how the program was started.
func SetMetaInfo(callTime, command string) {
	CallTime, Command = callTime, command
}

//SigFig rounds x to p significant figures; zero and non-finite values are returned as is.
func SigFig(x float64, p int) float64 {
	if x == 0 || math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	mags := math.Pow(10, float64(p-1)-math.Floor(math.Log10(math.Abs(x))))
	return math.Round(x*mags) / mags
}

//LogFile collects the yields of one plot.
type LogFile struct {
	Name string
	Lumi float64
	// Details is appended verbatim, e.g. the plotted variable definition.
	Details string

	plotRows  [][]string
	breakRows [][]string
	// integral and variance per kind
	sums [4][2]float64
}

//NewLogFile creates an empty log of a plot.
func NewLogFile(name string, lumi float64) *LogFile {
	return &LogFile{Name: name, Lumi: lumi}
}

func (l *LogFile) accumulate(kind int, h *hist.Histogram) {
	ie := h.IntErr(false, 12)
	l.sums[kind][0] += ie[0]
	l.sums[kind][1] += ie[1]
}

func intErrRow(name string, h *hist.Histogram) []string {
	ie := h.IntErr(true, 2)
	return []string{name, fmt.Sprint(ie[0]), fmt.Sprint(ie[1])}
}

//AddMC adds a simulated group; isSignal selects whether it counts as signal or background.
func (l *LogFile) AddMC(group string, h *hist.Histogram, isSignal bool) {
	kind := kindBkg
	if isSignal {
		kind = kindSignal
	}
	l.plotRows = append(l.plotRows, intErrRow(group, h))
	l.accumulate(kind, h)
	l.accumulate(kindTotal, h)
}

//AddData adds the observed events.
func (l *LogFile) AddData(h *hist.Histogram) {
	l.plotRows = append(l.plotRows, intErrRow("Data", h))
	l.accumulate(kindData, h)
}

//AddBreakdown lists the samples of a group by decreasing yield.
func (l *LogFile) AddBreakdown(group string, h *hist.Histogram, digits int) {
	samples := make([]string, 0, len(h.Breakdown))
	for sample := range h.Breakdown {
		samples = append(samples, sample)
	}
	sort.Slice(samples, func(i, j int) bool {
		return h.Breakdown[samples[i]].SumW > h.Breakdown[samples[j]].SumW
	})
	p := math.Pow(10, float64(digits))
	for _, sample := range samples {
		b := h.Breakdown[sample]
		l.breakRows = append(l.breakRows, []string{
			group,
			sample,
			fmt.Sprint(math.Round(b.SumW*p) / p),
			fmt.Sprint(math.Round(math.Sqrt(b.SumW2)*p) / p),
			fmt.Sprint(b.NRaw),
		})
		group = ""
	}
}

//SigBkgRatio is S/B with its error.
func (l *LogFile) SigBkgRatio() (float64, float64) {
	sig, sigErr := l.sums[kindSignal][0], l.sums[kindSignal][1]
	bkg, bkgErr := l.sums[kindBkg][0], l.sums[kindBkg][1]
	ratio := sig / bkg
	return ratio, ratio * math.Sqrt(sigErr/(sig*sig)+bkgErr/(bkg*bkg))
}

//Likelihood is S/sqrt(B) with its error.
func (l *LogFile) Likelihood() (float64, float64) {
	sig, sigErr := l.sums[kindSignal][0], l.sums[kindSignal][1]
	bkg, bkgErr := l.sums[kindBkg][0], l.sums[kindBkg][1]
	value := sig / math.Sqrt(bkg+1e-5)
	return value, value * math.Sqrt(sigErr/(sig*sig)+0.25*bkgErr/(bkg*bkg))
}

func renderTable(w io.Writer, header []string, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.AppendBulk(rows)
	table.Render()
}

//WriteTo renders the log.
func (l *LogFile) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	rule := strings.Repeat("-", 80)
	b.WriteString("<html><pre><code>\n")
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "Script called at %s \n", CallTime)
	fmt.Fprintf(&b, "The command was: %s \n", Command)
	fmt.Fprintf(&b, "The name of this Histogram is: %s \n", l.Name)
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "Luminosity: %0.2f fb^{-1}\n\n", l.Lumi)
	renderTable(&b, []string{"Plot Group", "Weighted Events", "Error"}, l.plotRows)
	b.WriteString("\n")

	if l.sums[kindTotal] != [2]float64{} {
		fmt.Fprintf(&b, "Total sum of Monte Carlo: %v +/- %v \n",
			SigFig(l.sums[kindTotal][0], 3), SigFig(math.Sqrt(l.sums[kindTotal][1]), 3))
	}
	if l.sums[kindSignal] != [2]float64{} {
		fmt.Fprintf(&b, "Total sum of background Monte Carlo: %v +/- %v \n",
			SigFig(l.sums[kindBkg][0], 3), SigFig(math.Sqrt(l.sums[kindBkg][1]), 3))
		v, e := l.SigBkgRatio()
		fmt.Fprintf(&b, "Ratio S/B: %v +/- %v \n", SigFig(v, 3), SigFig(e, 3))
		v, e = l.Likelihood()
		fmt.Fprintf(&b, "Ratio S/sqrt(B): %v +/- %v \n", SigFig(v, 3), SigFig(e, 3))
	}
	if l.sums[kindData] != [2]float64{} {
		fmt.Fprintf(&b, "Number of events in data %v \n", l.sums[kindData][0])
	}
	b.WriteString("\n")
	renderTable(&b, []string{"Plot Group", "Sample", "Weighted Events", "Error", "Raw Events"}, l.breakRows)
	b.WriteString("\n")
	if l.Details != "" {
		fmt.Fprintf(&b, "\n%s\n", l.Details)
	}
	b.WriteString("</code></pre></html>\n")

	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

//WriteOut writes <dir>/<outputName>.log.
func (l *LogFile) WriteOut(dir, outputName string) error {
	fileName := filepath.Join(dir, outputName+".log")
	f, err := os.Create(fileName)
	if err != nil {
		return errors.Wrapf(err, "create %s", fileName)
	}
	if _, err := l.WriteTo(f); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "write %s", fileName)
	}
	return errors.Wrapf(f.Close(), "close %s", fileName)
}
