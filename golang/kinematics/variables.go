package kinematics

import (
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/tarstars/hep_boosting/golang/ntuple"
)

// Missing transverse momentum columns used by mt and cosdphimet.
const (
	MetColumn    = "Met"
	MetPhiColumn = "Met_phi"
)

type evalFunc func(s *ntuple.Sample) ([]float64, error)

//Variable is a derived quantity computed for every event of a sample.
type Variable struct {
	Name string
	Expr string
	eval evalFunc
}

//Eval computes the variable for every event.
func (v *Variable) Eval(s *ntuple.Sample) ([]float64, error) {
	values, err := v.eval(s)
	return values, errors.Wrapf(err, "variable %s = %s", v.Name, v.Expr)
}

type pairFunc func(a, b Object) float64

var pairFuncs = map[string]pairFunc{
	"dr":      DeltaR,
	"dphi":    func(a, b Object) float64 { return DeltaPhi(a.Phi, b.Phi) },
	"deta":    func(a, b Object) float64 { return a.Eta - b.Eta },
	"mass":    InvariantMass,
	"pairmt":  PairMT,
	"mt2part": PairMT,
	"cos":     CosDeltaTheta,
}

//ParseVariable compiles an expression such as "dr(TightLepton,0,Jets,0)".
//
//Supported forms:
//
//	col(NAME)                 a flat column
//	num(COLL)                 number of objects
//	get(COLL,VAR,IDX)         a variable of one object
//	dr|dphi|deta|mass|pairmt|mt2part|cos(C1,I1,C2,I2)
//	mt(COLL,IDX)              transverse mass with the MET
//	cosdphimet(COLL,IDX)      cosine of the azimuthal angle to the MET
func ParseVariable(name, expr string) (*Variable, error) {
	fn, args, err := splitCall(expr)
	if err != nil {
		return nil, err
	}
	v := &Variable{Name: name, Expr: expr}

	switch fn {
	case "col":
		if len(args) != 1 {
			return nil, arityError(expr, 1)
		}
		column := args[0]
		v.eval = func(s *ntuple.Sample) ([]float64, error) {
			values, err := s.Column(column)
			if err != nil {
				return nil, err
			}
			return append([]float64(nil), values...), nil
		}
	case "num":
		if len(args) != 1 {
			return nil, arityError(expr, 1)
		}
		collName := args[0]
		v.eval = func(s *ntuple.Sample) ([]float64, error) {
			coll, err := s.Collection(collName)
			if err != nil {
				return nil, err
			}
			out := make([]float64, s.Len())
			for p := range out {
				out[p] = float64(coll.Num(p))
			}
			return out, nil
		}
	case "get":
		if len(args) != 3 {
			return nil, arityError(expr, 3)
		}
		idx, err := strconv.Atoi(args[2])
		if err != nil {
			return nil, errors.Wrapf(err, "index in %q", expr)
		}
		collName, varName := args[0], args[1]
		v.eval = func(s *ntuple.Sample) ([]float64, error) {
			coll, err := s.Collection(collName)
			if err != nil {
				return nil, err
			}
			out := make([]float64, s.Len())
			for p := range out {
				val, ok := coll.Get(varName, p, idx)
				if !ok {
					val = Pad
				}
				out[p] = val
			}
			return out, nil
		}
	case "mt", "cosdphimet":
		if len(args) != 2 {
			return nil, arityError(expr, 2)
		}
		idx, err := strconv.Atoi(args[1])
		if err != nil {
			return nil, errors.Wrapf(err, "index in %q", expr)
		}
		collName, useMT := args[0], fn == "mt"
		v.eval = func(s *ntuple.Sample) ([]float64, error) {
			coll, err := s.Collection(collName)
			if err != nil {
				return nil, err
			}
			met, err := s.Column(MetColumn)
			if err != nil {
				return nil, err
			}
			metPhi, err := s.Column(MetPhiColumn)
			if err != nil {
				return nil, err
			}
			out := make([]float64, s.Len())
			for p := range out {
				obj, ok := Pick(coll, p, idx)
				switch {
				case !ok:
					out[p] = Pad
				case useMT:
					out[p] = MT(obj, met[p], metPhi[p])
				default:
					out[p] = math.Cos(obj.Phi - metPhi[p])
				}
			}
			return out, nil
		}
	default:
		pf, ok := pairFuncs[fn]
		if !ok {
			return nil, errors.Errorf("unknown function %q in %q", fn, expr)
		}
		if len(args) != 4 {
			return nil, arityError(expr, 4)
		}
		i1, err := strconv.Atoi(args[1])
		if err != nil {
			return nil, errors.Wrapf(err, "index in %q", expr)
		}
		i2, err := strconv.Atoi(args[3])
		if err != nil {
			return nil, errors.Wrapf(err, "index in %q", expr)
		}
		c1, c2 := args[0], args[2]
		v.eval = func(s *ntuple.Sample) ([]float64, error) {
			coll1, err := s.Collection(c1)
			if err != nil {
				return nil, err
			}
			coll2, err := s.Collection(c2)
			if err != nil {
				return nil, err
			}
			out := make([]float64, s.Len())
			for p := range out {
				a, okA := Pick(coll1, p, i1)
				b, okB := Pick(coll2, p, i2)
				if !okA || !okB {
					out[p] = Pad
					continue
				}
				out[p] = pf(a, b)
			}
			return out, nil
		}
	}
	return v, nil
}

//ParseVariables compiles a name -> expression table in the given name order.
func ParseVariables(names []string, exprs map[string]string) ([]*Variable, error) {
	vars := make([]*Variable, 0, len(names))
	for _, name := range names {
		expr, ok := exprs[name]
		if !ok {
			return nil, errors.Errorf("variable %q has no expression", name)
		}
		v, err := ParseVariable(name, expr)
		if err != nil {
			return nil, err
		}
		vars = append(vars, v)
	}
	return vars, nil
}

//CreateVariables evaluates vars and stores them as columns of the sample.
func CreateVariables(s *ntuple.Sample, vars []*Variable) error {
	for _, v := range vars {
		values, err := v.Eval(s)
		if err != nil {
			return err
		}
		if err := s.AddColumn(v.Name, values); err != nil {
			return err
		}
	}
	return nil
}

func splitCall(expr string) (string, []string, error) {
	expr = strings.TrimSpace(expr)
	open := strings.IndexByte(expr, '(')
	if open <= 0 || !strings.HasSuffix(expr, ")") {
		return "", nil, errors.Errorf("expression %q is not a call", expr)
	}
	fn := strings.TrimSpace(expr[:open])
	body := expr[open+1 : len(expr)-1]
	var args []string
	for _, arg := range strings.Split(body, ",") {
		arg = strings.TrimSpace(arg)
		if arg == "" {
			return "", nil, errors.Errorf("empty argument in %q", expr)
		}
		args = append(args, arg)
	}
	return fn, args, nil
}

func arityError(expr string, n int) error {
	return errors.Errorf("%q expects %d arguments", expr, n)
}
