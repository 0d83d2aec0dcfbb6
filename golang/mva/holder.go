// Package mva prepares training, validation and test sets for the signal classifier,
// trains it and evaluates it per data taking year.
package mva

import (
	"math"
	"math/rand"
	"sort"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/tarstars/hep_boosting/golang/bdt"
	"github.com/tarstars/hep_boosting/golang/ntuple"
)

// Training classes of the group dictionary.
const (
	ClassSignal     = "Signal"
	ClassBackground = "Background"
	ClassNotTrained = "NotTrained"
	ClassOnlyTrain  = "OnlyTrain"
)

// Derived columns added to every event.
const (
	ClassIDColumn     = "classID"
	SampleColumn      = "sampleName"
	TrainWeightColumn = "train_weight"
	SplitWeightColumn = "split_weight"
	PredictionColumn  = "Signal"
)

//ClassIDs maps the training classes to labels.
var ClassIDs = map[string]int{
	ClassSignal:     1,
	ClassBackground: 0,
	ClassNotTrained: 0,
	ClassOnlyTrain:  0,
}

var classOrder = []string{ClassSignal, ClassBackground, ClassNotTrained, ClassOnlyTrain}

//Holder keeps the event sets of the classifier.
type Holder struct {
	UseVars         []string
	Groups          map[string][]string
	Region          string
	SystName        string
	SplitRatio      float64
	ValidationRatio float64
	MinTrainEvents  int
	RandomState     int64
	// WeightColumn is the column the booster trains with: split_weight, balanced per sample,
	// or train_weight, normalised per class.
	WeightColumn string

	TrainSet      *ntuple.Sample
	ValidationSet *ntuple.Sample
	TestSets      map[string]*ntuple.Sample

	AUC map[string]float64
	FOM map[string]float64

	Booster *bdt.Booster

	sampleMap map[string]int
	predTest  map[string][]float64
}

//NewHolder creates a holder with the usual split settings.
func NewHolder(useVars []string, groups map[string][]string, region, systName string) *Holder {
	return &Holder{
		UseVars:         useVars,
		Groups:          groups,
		Region:          region,
		SystName:        systName,
		SplitRatio:      0.3,
		ValidationRatio: 0.15,
		MinTrainEvents:  100,
		RandomState:     12345,
		WeightColumn:    SplitWeightColumn,
		TrainSet:        ntuple.NewSample("train"),
		ValidationSet:   ntuple.NewSample("validation"),
		TestSets:        make(map[string]*ntuple.Sample),
		AUC:             make(map[string]float64),
		FOM:             make(map[string]float64),
		sampleMap:       make(map[string]int),
		predTest:        make(map[string][]float64),
	}
}

//Empty reports a holder without any test set.
func (h *Holder) Empty() bool {
	return len(h.TestSets) == 0
}

//ShouldTrain decides whether a sample of a class enters the training.
func (h *Holder) ShouldTrain(nEvents int, className string) bool {
	enoughEvents := float64(nEvents)*h.SplitRatio > float64(h.MinTrainEvents)
	trainableClass := className != ClassNotTrained
	isSRNominal := h.Region == "signal" && h.SystName == "Nominal"
	return enoughEvents && trainableClass && isSRNominal
}

//SampleID returns the numeric id stored in the sampleName column.
func (h *Holder) SampleID(sample string) int {
	id, ok := h.sampleMap[sample]
	if !ok {
		id = len(h.sampleMap)
		h.sampleMap[sample] = id
	}
	return id
}

//SampleName resolves an id of the sampleName column.
func (h *Holder) SampleName(id int) (string, bool) {
	for name, v := range h.sampleMap {
		if v == id {
			return name, true
		}
	}
	return "", false
}

func (h *Holder) fileVars() []string {
	return append(append([]string(nil), h.UseVars...), ntuple.WeightColumn)
}

//prepare keeps the training variables and adds the derived columns.
func (h *Holder) prepare(sample *ntuple.Sample, className string) (*ntuple.Sample, error) {
	out := ntuple.NewSample(sample.Name)
	for _, name := range h.fileVars() {
		values, err := sample.Column(name)
		if err != nil {
			return nil, err
		}
		if err := out.AddColumn(name, ntuple.Clean(values)); err != nil {
			return nil, err
		}
	}
	n := float64(sample.Len())
	total := 0.0
	for _, w := range sample.Weights() {
		total += w
	}
	out.SetConstant(ClassIDColumn, float64(ClassIDs[className]))
	out.SetConstant(SampleColumn, float64(h.SampleID(sample.Name)))
	out.SetConstant(TrainWeightColumn, total/n)
	out.SetConstant(SplitWeightColumn, 1)
	return out, nil
}

//split draws a random fraction of the events; both parts are rescaled to the size of the whole.
//It returns the rest first and the drawn part second.
func (h *Holder) split(workset *ntuple.Sample, fraction float64) (rest, part *ntuple.Sample, err error) {
	n := workset.Len()
	k := int(math.Floor(fraction * float64(n)))
	if k < 1 || k >= n {
		return nil, nil, errors.Errorf("cannot split %d events of %q with fraction %g", n, workset.Name, fraction)
	}
	perm := rand.New(rand.NewSource(h.RandomState)).Perm(n)
	partIdx, restIdx := perm[:k], perm[k:]
	sort.Ints(partIdx)
	sort.Ints(restIdx)
	part, rest = workset.Subset(partIdx), workset.Subset(restIdx)
	for _, piece := range []*ntuple.Sample{part, rest} {
		factor := float64(n) / float64(piece.Len())
		for _, column := range []string{ntuple.WeightColumn, TrainWeightColumn} {
			if err := piece.Scale(column, factor); err != nil {
				return nil, nil, err
			}
		}
	}
	return rest, part, nil
}

//trainBudget holds the scale factor sum of every training class and the number of
//training events shared between the classes.
type trainBudget struct {
	classTotal map[string]float64
	events     float64
}

//budget sums the samples large enough to be trained on; OnlyTrain and Background share one total.
func (h *Holder) budget(samples map[string]*ntuple.Sample) trainBudget {
	b := trainBudget{classTotal: make(map[string]float64)}
	minEvents := float64(h.MinTrainEvents) / h.SplitRatio
	nEvents := 0
	for _, className := range []string{ClassSignal, ClassBackground, ClassOnlyTrain} {
		for _, name := range h.Groups[className] {
			s, ok := samples[name]
			if !ok || float64(s.Len()) < minEvents {
				continue
			}
			for _, w := range s.Weights() {
				b.classTotal[className] += w
			}
			nEvents += s.Len()
		}
	}
	bkg := b.classTotal[ClassBackground] + b.classTotal[ClassOnlyTrain]
	b.classTotal[ClassBackground], b.classTotal[ClassOnlyTrain] = bkg, bkg
	b.events = h.SplitRatio * float64(nEvents)
	return b
}

//trainPercent is the fraction of a sample needed for its share of the class weight in the
//training events. It is the split ratio when the class has no weight.
func (b trainBudget) trainPercent(df *ntuple.Sample, className string, splitRatio float64) float64 {
	total := b.classTotal[className]
	if total == 0 || df.Len() == 0 {
		return splitRatio
	}
	sum := 0.0
	for _, w := range df.Weights() {
		sum += w
	}
	return sum / total * b.events / float64(df.Len())
}

//SetupYear splits the samples of one year into training, validation and test events.
//Every trained sample gets split_weight so that its training events carry its share of the
//class scale factor sum, and every class the same total.
//Samples missing from the input are skipped with a warning.
func (h *Holder) SetupYear(year string, samples map[string]*ntuple.Sample) error {
	trainSet := ntuple.NewSample("train")
	validationSet := ntuple.NewSample("validation")
	testSet := ntuple.NewSample("test_" + year)
	budget := h.budget(samples)

	for _, className := range classOrder {
		for _, name := range h.Groups[className] {
			raw, ok := samples[name]
			if !ok {
				log.Warn().Str("sample", name).Str("year", year).Msg("sample not found")
				continue
			}
			df, err := h.prepare(raw, className)
			if err != nil {
				return errors.Wrapf(err, "year %s", year)
			}
			n := float64(df.Len())
			minEvents := float64(h.MinTrainEvents)
			percent := budget.trainPercent(df, className, h.SplitRatio)

			var train *ntuple.Sample
			switch {
			case className == ClassOnlyTrain:
				switch {
				case n < minEvents || (percent < 1 && percent*n <= minEvents):
					continue
				case percent >= 1:
					if err := df.Scale(SplitWeightColumn, percent); err != nil {
						return err
					}
					train = df
				default:
					if _, train, err = h.split(df, percent); err != nil {
						return err
					}
				}
			case !h.ShouldTrain(df.Len(), className):
				log.Debug().Str("sample", name).Msg("not trained on")
				if err := testSet.Concat(df); err != nil {
					return err
				}
				continue
			default:
				ratio := h.SplitRatio
				switch {
				case percent < ratio && percent*n > minEvents:
					ratio = percent
				case percent*n <= minEvents:
					ratio = minEvents / n
					err = df.Scale(SplitWeightColumn, percent/ratio)
				default:
					err = df.Scale(SplitWeightColumn, percent/ratio)
				}
				if err != nil {
					return err
				}
				var test *ntuple.Sample
				if test, train, err = h.split(df, ratio); err != nil {
					return err
				}
				if err := testSet.Concat(test); err != nil {
					return err
				}
			}

			if h.ValidationRatio > 0 && float64(train.Len())*h.ValidationRatio > 1 {
				var validation *ntuple.Sample
				if train, validation, err = h.split(train, h.ValidationRatio); err != nil {
					return err
				}
				if err := validationSet.Concat(validation); err != nil {
					return err
				}
			}
			if err := trainSet.Concat(train); err != nil {
				return err
			}
			log.Debug().Str("sample", name).Int("train", train.Len()).Float64("train_percent", percent).Msg("sample split")
		}
	}

	if trainSet.Len() > 0 {
		if err := ClassReweight(trainSet); err != nil {
			return err
		}
	}
	if err := h.TrainSet.Concat(trainSet); err != nil {
		return err
	}
	if err := h.ValidationSet.Concat(validationSet); err != nil {
		return err
	}
	h.TestSets[year] = testSet
	log.Info().Str("year", year).Int("train", trainSet.Len()).Int("validation", validationSet.Len()).
		Int("test", testSet.Len()).Msg("year set up")
	return nil
}

//ClassReweight scales train_weight so that the mean weight of every class is one.
func ClassReweight(workset *ntuple.Sample) error {
	classID, err := workset.Column(ClassIDColumn)
	if err != nil {
		return err
	}
	weight, err := workset.Column(TrainWeightColumn)
	if err != nil {
		return err
	}
	count := make(map[float64]int)
	sum := make(map[float64]float64)
	for i, c := range classID {
		count[c]++
		sum[c] += weight[i]
	}
	for i, c := range classID {
		if sum[c] != 0 {
			weight[i] *= float64(count[c]) / sum[c]
		}
	}
	return nil
}
