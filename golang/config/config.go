// Package config reads the YAML analysis description shared by every command.
package config

import (
	"os"
	"sort"

	"github.com/pkg/errors"
	"github.com/tarstars/hep_boosting/golang/bdt"
	"github.com/tarstars/hep_boosting/golang/hist"
	"github.com/tarstars/hep_boosting/golang/kinematics"
	"github.com/tarstars/hep_boosting/golang/mva"
	"github.com/tarstars/hep_boosting/golang/ntuple"
	"gopkg.in/yaml.v3"
)

//Variable is a derived column and its expression.
type Variable struct {
	Name string `yaml:"name"`
	Expr string `yaml:"expr"`
}

//Binning is either n regular bins on [lo, hi) or explicit edges.
type Binning struct {
	N     int       `yaml:"n"`
	Lo    float64   `yaml:"lo"`
	Hi    float64   `yaml:"hi"`
	Edges []float64 `yaml:"edges"`
}

//Axis builds the histogram axis.
func (b Binning) Axis() (hist.Axis, error) {
	if len(b.Edges) > 0 {
		return hist.NewVariable(b.Edges)
	}
	return hist.NewRegular(b.N, b.Lo, b.Hi)
}

//Plot is one histogrammed variable.
type Plot struct {
	Name     string  `yaml:"name"`
	Var      string  `yaml:"var"`
	AxisName string  `yaml:"axis_name"`
	Bins     Binning `yaml:"bins"`
}

//BDT holds the booster settings under their xgboost names.
type BDT struct {
	Loss                string  `yaml:"objective"`
	NStages             int     `yaml:"n_estimators"`
	LearningRate        float64 `yaml:"eta"`
	RegLambda           float64 `yaml:"reg_lambda"`
	Gamma               float64 `yaml:"gamma"`
	MinChildWeight      float64 `yaml:"min_child_weight"`
	MaxDepth            int     `yaml:"max_depth"`
	Subsample           float64 `yaml:"subsample"`
	ColsampleByTree     float64 `yaml:"colsample_bytree"`
	ThreadsNum          int     `yaml:"threads_num"`
	Seed                int64   `yaml:"seed"`
	EarlyStoppingRounds int     `yaml:"early_stopping_rounds"`
}

//MVA holds the train/test split settings.
type MVA struct {
	SplitRatio      float64 `yaml:"split_ratio"`
	ValidationRatio float64 `yaml:"validation_ratio"`
	MinTrainEvents  int     `yaml:"min_train_events"`
	RandomState     int64   `yaml:"random_state"`
	Trials          int     `yaml:"trials"`
	// TrainWeight is the column the booster is trained on: split_weight or train_weight.
	TrainWeight string `yaml:"train_weight"`
}

//Config is the whole analysis description.
type Config struct {
	InputDir     string              `yaml:"input_dir"`
	OutputDir    string              `yaml:"output_dir"`
	Years        []string            `yaml:"years"`
	Lumi         map[string]float64  `yaml:"lumi"`
	Region       string              `yaml:"region"`
	Syst         string              `yaml:"syst"`
	Signal       string              `yaml:"signal"`
	Data         string              `yaml:"data"`
	Backgrounds  []string            `yaml:"backgrounds"`
	Groups       []ntuple.Group      `yaml:"groups"`
	Classes      map[string][]string `yaml:"classes"`
	Variables    []Variable          `yaml:"variables"`
	UseVars      []string            `yaml:"use_vars"`
	Cuts         []string            `yaml:"cuts"`
	Plots        []Plot              `yaml:"plots"`
	Significance string              `yaml:"significance"`
	Format       string              `yaml:"format"`
	Workers      int                 `yaml:"workers"`
	BDT          BDT                 `yaml:"bdt"`
	MVA          MVA                 `yaml:"mva"`
}

//Default returns the settings used for keys missing from the file.
func Default() *Config {
	params := bdt.DefaultParams()
	return &Config{
		OutputDir:    "output",
		Region:       "signal",
		Syst:         "Nominal",
		Data:         "data",
		Backgrounds:  []string{"all"},
		Significance: "likely",
		Format:       "png",
		Workers:      4,
		Lumi:         map[string]float64{"2016": 35.9, "2017": 41.5, "2018": 59.7},
		BDT: BDT{
			Loss:                params.Loss.Name(),
			NStages:             params.NStages,
			LearningRate:        params.LearningRate,
			RegLambda:           params.RegLambda,
			Gamma:               params.Gamma,
			MinChildWeight:      params.MinChildWeight,
			MaxDepth:            params.MaxDepth,
			Subsample:           params.Subsample,
			ColsampleByTree:     params.ColsampleByTree,
			ThreadsNum:          params.ThreadsNum,
			Seed:                params.Seed,
			EarlyStoppingRounds: params.EarlyStoppingRounds,
		},
		MVA: MVA{
			SplitRatio:      0.3,
			ValidationRatio: 0.15,
			MinTrainEvents:  100,
			RandomState:     12345,
			Trials:          20,
			TrainWeight:     mva.SplitWeightColumn,
		},
	}
}

//Load reads a YAML file over the defaults and validates the result.
func Load(fileName string) (*Config, error) {
	raw, err := os.ReadFile(fileName)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	return Parse(raw)
}

//Parse decodes YAML over the defaults and validates the result.
func Parse(raw []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "validate config")
	}
	return cfg, nil
}

//Validate checks references between the sections.
func (c *Config) Validate() error {
	if len(c.Years) == 0 {
		return errors.New("no years")
	}
	for _, year := range c.Years {
		if _, ok := c.Lumi[year]; !ok {
			return errors.Errorf("no luminosity for year %s", year)
		}
	}
	known := make(map[string]bool)
	for _, g := range c.Groups {
		if g.Name == "" {
			return errors.New("group without a name")
		}
		known[g.Name] = true
	}
	if c.Signal != "" && !known[c.Signal] {
		return errors.Errorf("signal group %q is not defined", c.Signal)
	}
	for _, b := range c.Backgrounds {
		if b != "all" && !known[b] {
			return errors.Errorf("background group %q is not defined", b)
		}
	}
	for className := range c.Classes {
		if _, ok := mva.ClassIDs[className]; !ok {
			return errors.Errorf("unknown training class %q", className)
		}
	}
	if _, err := c.ParseVariables(); err != nil {
		return err
	}
	if _, err := ntuple.ParseCuts(c.Cuts); err != nil {
		return err
	}
	for _, p := range c.Plots {
		if _, err := p.Bins.Axis(); err != nil {
			return errors.Wrapf(err, "plot %s", p.Name)
		}
	}
	if _, err := bdt.LossByName(c.BDT.Loss); err != nil {
		return err
	}
	if c.MVA.SplitRatio <= 0 || c.MVA.SplitRatio >= 1 {
		return errors.Errorf("split_ratio must be in (0, 1), got %g", c.MVA.SplitRatio)
	}
	if c.MVA.ValidationRatio < 0 || c.MVA.ValidationRatio >= 1 {
		return errors.Errorf("validation_ratio must be in [0, 1), got %g", c.MVA.ValidationRatio)
	}
	if c.MVA.TrainWeight != mva.SplitWeightColumn && c.MVA.TrainWeight != mva.TrainWeightColumn {
		return errors.Errorf("train_weight must be %s or %s, got %q", mva.SplitWeightColumn, mva.TrainWeightColumn, c.MVA.TrainWeight)
	}
	return nil
}

//GroupInfo indexes the plot groups.
func (c *Config) GroupInfo() *ntuple.GroupInfo {
	return ntuple.NewGroupInfo(c.Groups)
}

//Samples lists every sample named by the groups and the training classes.
func (c *Config) Samples() []string {
	seen := make(map[string]bool)
	for _, g := range c.Groups {
		for _, m := range g.Members {
			seen[m] = true
		}
	}
	for _, members := range c.Classes {
		for _, m := range members {
			seen[m] = true
		}
	}
	out := make([]string, 0, len(seen))
	for m := range seen {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

//ParseVariables compiles the derived variables in file order.
func (c *Config) ParseVariables() ([]*kinematics.Variable, error) {
	vars := make([]*kinematics.Variable, 0, len(c.Variables))
	for _, v := range c.Variables {
		parsed, err := kinematics.ParseVariable(v.Name, v.Expr)
		if err != nil {
			return nil, err
		}
		vars = append(vars, parsed)
	}
	return vars, nil
}

//ParseCuts compiles the event selection.
func (c *Config) ParseCuts() ([]ntuple.Cut, error) {
	return ntuple.ParseCuts(c.Cuts)
}

//BDTParams converts the booster section; datasets are filled in by the caller.
func (c *Config) BDTParams() (bdt.Params, error) {
	loss, err := bdt.LossByName(c.BDT.Loss)
	if err != nil {
		return bdt.Params{}, err
	}
	return bdt.Params{
		Loss:                loss,
		NStages:             c.BDT.NStages,
		LearningRate:        c.BDT.LearningRate,
		RegLambda:           c.BDT.RegLambda,
		Gamma:               c.BDT.Gamma,
		MinChildWeight:      c.BDT.MinChildWeight,
		MaxDepth:            c.BDT.MaxDepth,
		Subsample:           c.BDT.Subsample,
		ColsampleByTree:     c.BDT.ColsampleByTree,
		ThreadsNum:          c.BDT.ThreadsNum,
		Seed:                c.BDT.Seed,
		EarlyStoppingRounds: c.BDT.EarlyStoppingRounds,
	}, nil
}

//trainingClasses moves the members of data-driven groups out of the trained classes.
func (c *Config) trainingClasses() map[string][]string {
	gi := c.GroupInfo()
	fromData := make(map[string]bool)
	for _, group := range gi.Groups() {
		if !gi.IsDataDriven(group) {
			continue
		}
		for _, m := range gi.Members(group) {
			fromData[m] = true
		}
	}
	classes := make(map[string][]string, len(c.Classes))
	for className, members := range c.Classes {
		for _, m := range members {
			target := className
			if fromData[m] {
				target = mva.ClassNotTrained
			}
			classes[target] = append(classes[target], m)
		}
	}
	return classes
}

//NewHolder creates the classifier holder of the configured region.
func (c *Config) NewHolder() *mva.Holder {
	h := mva.NewHolder(c.UseVars, c.trainingClasses(), c.Region, c.Syst)
	h.WeightColumn = c.MVA.TrainWeight
	h.SplitRatio = c.MVA.SplitRatio
	h.ValidationRatio = c.MVA.ValidationRatio
	h.MinTrainEvents = c.MVA.MinTrainEvents
	h.RandomState = c.MVA.RandomState
	return h
}
