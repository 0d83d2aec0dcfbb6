package ntuple

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

//Cut is a single selection on a column, written as "var<val", "var>val" or "var==val".
type Cut struct {
	Var   string
	Op    string
	Value float64
}

func (c Cut) String() string {
	return fmt.Sprintf("%s%s%g", c.Var, c.Op, c.Value)
}

//Pass evaluates the cut on a value.
func (c Cut) Pass(v float64) bool {
	switch c.Op {
	case "<":
		return v < c.Value
	case ">":
		return v > c.Value
	default:
		return v == c.Value
	}
}

//ParseCut parses a cut string. The equality operator is checked first so "a==1" is not read as "a=" "=1".
func ParseCut(s string) (Cut, error) {
	for _, op := range []string{"==", "<", ">"} {
		if lhs, rhs, found := strings.Cut(s, op); found {
			value, err := strconv.ParseFloat(strings.TrimSpace(rhs), 64)
			if err != nil {
				return Cut{}, errors.Wrapf(err, "cut %q is not formatted correctly", s)
			}
			name := strings.TrimSpace(lhs)
			if name == "" {
				return Cut{}, errors.Errorf("cut %q has no variable", s)
			}
			return Cut{Var: name, Op: op, Value: value}, nil
		}
	}
	return Cut{}, errors.Errorf("cut %q is not formatted correctly", s)
}

//ParseCuts parses a list of cut strings.
func ParseCuts(specs []string) ([]Cut, error) {
	cuts := make([]Cut, 0, len(specs))
	for _, spec := range specs {
		cut, err := ParseCut(spec)
		if err != nil {
			return nil, err
		}
		cuts = append(cuts, cut)
	}
	return cuts, nil
}

//CutMask returns the events passing all cuts.
func CutMask(sample *Sample, cuts []Cut) ([]bool, error) {
	mask := make([]bool, sample.Len())
	for i := range mask {
		mask[i] = true
	}
	for _, cut := range cuts {
		values, err := sample.Column(cut.Var)
		if err != nil {
			return nil, errors.Wrapf(err, "cut %s", cut)
		}
		for i, v := range values {
			mask[i] = mask[i] && cut.Pass(v)
		}
	}
	return mask, nil
}

//ApplyCuts returns the events of sample passing all cuts.
func ApplyCuts(sample *Sample, cuts []Cut) (*Sample, error) {
	if len(cuts) == 0 {
		return sample, nil
	}
	mask, err := CutMask(sample, cuts)
	if err != nil {
		return nil, err
	}
	return sample.Filter(mask), nil
}
