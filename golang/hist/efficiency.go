package hist

import (
	"math"

	"gonum.org/v1/gonum/mathext"
)

// one sigma two sided tail probability
const effAlpha = (1 - 0.682689492137) / 2

//Efficiency computes top/bot per bin as the Beta(a, b) posterior of a weighted pass fraction with
//a = top*bot/sumw2(bot)+1 and b = (bot-top)*bot/sumw2(bot)+1.
//The value is the posterior mean, or the lower edge of the interval when asymm is set.
func Efficiency(top, bot *Histogram, asymm bool) (*Histogram, error) {
	if err := top.compatible(bot); err != nil {
		return nil, err
	}
	tv, bv, bw2 := top.Vals(), bot.Vals(), bot.SumW2()
	eff := make([]float64, len(tv))
	err2 := make([]float64, len(tv))
	for i := range tv {
		a := tv[i]*bv[i]/(bw2[i]+1e-6) + 1
		b := (bv[i]-tv[i])*bv[i]/(bw2[i]+1e-6) + 1
		if a <= 0 || b <= 0 || math.IsNaN(a) || math.IsNaN(b) {
			continue
		}
		lo := mathext.InvRegIncBeta(a, b, effAlpha)
		hi := mathext.InvRegIncBeta(a, b, 1-effAlpha)
		if asymm {
			eff[i] = lo
			err2[i] = (hi - lo) * (hi - lo) / 4
		} else {
			mean := a / (a + b)
			eff[i] = mean
			err2[i] = ((mean-lo)*(mean-lo) + (hi-mean)*(hi-mean)) / 2
		}
	}
	out := New(top.Axes...)
	out.AxisName = top.AxisName
	if err := out.SetData(eff, err2); err != nil {
		return nil, err
	}
	return out, nil
}
