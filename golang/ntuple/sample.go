package ntuple

import (
	"math"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// WeightColumn is the per-event weight every sample carries.
const WeightColumn = "scale_factor"

// NanFill replaces NaN values before they reach a histogram.
const NanFill = -1000.0

//Sample is a column table of events belonging to one physics sample (a member of a plot group).
//Flat per-event values live in columns, per-object values (jets, leptons) live in collections.
type Sample struct {
	Name        string
	columns     map[string][]float64
	order       []string
	collections map[string]*Collection
	length      int
}

//NewSample creates an empty sample.
func NewSample(name string) *Sample {
	return &Sample{
		Name:        name,
		columns:     make(map[string][]float64),
		collections: make(map[string]*Collection),
		length:      -1,
	}
}

//Len returns the number of events.
func (s *Sample) Len() int {
	if s.length < 0 {
		return 0
	}
	return s.length
}

//AddColumn stores a column. All columns and collections of a sample have the same length.
func (s *Sample) AddColumn(name string, values []float64) error {
	if s.length >= 0 && len(values) != s.length {
		return errors.Errorf("column %q of sample %q has %d events, expected %d", name, s.Name, len(values), s.length)
	}
	if _, ok := s.columns[name]; !ok {
		s.order = append(s.order, name)
	}
	s.columns[name] = values
	s.length = len(values)
	return nil
}

//AddCollection stores a per-object collection.
func (s *Sample) AddCollection(coll *Collection) error {
	if s.length >= 0 && coll.Len() != s.length {
		return errors.Errorf("collection %q of sample %q has %d events, expected %d", coll.Name, s.Name, coll.Len(), s.length)
	}
	s.collections[coll.Name] = coll
	s.length = coll.Len()
	return nil
}

//HasColumn checks whether the column exists.
func (s *Sample) HasColumn(name string) bool {
	_, ok := s.columns[name]
	return ok
}

//Column returns the values of a column.
func (s *Sample) Column(name string) ([]float64, error) {
	values, ok := s.columns[name]
	if !ok {
		return nil, errors.Errorf("sample %q has no column %q", s.Name, name)
	}
	return values, nil
}

//Collection returns a per-object collection.
func (s *Sample) Collection(name string) (*Collection, error) {
	coll, ok := s.collections[name]
	if !ok {
		return nil, errors.Errorf("sample %q has no collection %q, have %v", s.Name, name, s.CollectionNames())
	}
	return coll, nil
}

//Columns returns column names in insertion order.
func (s *Sample) Columns() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

//CollectionNames returns the sorted collection names.
func (s *Sample) CollectionNames() []string {
	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

//Weights returns the scale_factor column or unit weights when it is missing.
func (s *Sample) Weights() []float64 {
	if w, ok := s.columns[WeightColumn]; ok {
		return w
	}
	w := make([]float64, s.Len())
	for i := range w {
		w[i] = 1
	}
	return w
}

//SetConstant adds (or overwrites) a column filled with one value.
func (s *Sample) SetConstant(name string, value float64) {
	values := make([]float64, s.Len())
	for i := range values {
		values[i] = value
	}
	_ = s.AddColumn(name, values)
}

//Scale multiplies a column in place.
func (s *Sample) Scale(name string, factor float64) error {
	values, err := s.Column(name)
	if err != nil {
		return err
	}
	for i := range values {
		values[i] *= factor
	}
	return nil
}

//Subset returns a new sample with the events at idx (in that order).
func (s *Sample) Subset(idx []int) *Sample {
	out := NewSample(s.Name)
	out.length = len(idx)
	for _, name := range s.order {
		src := s.columns[name]
		dst := make([]float64, len(idx))
		for k, i := range idx {
			dst[k] = src[i]
		}
		out.order = append(out.order, name)
		out.columns[name] = dst
	}
	for name, coll := range s.collections {
		out.collections[name] = coll.Subset(idx)
	}
	return out
}

//Filter keeps the events where mask is true.
func (s *Sample) Filter(mask []bool) *Sample {
	idx := make([]int, 0, len(mask))
	for i, keep := range mask {
		if keep {
			idx = append(idx, i)
		}
	}
	return s.Subset(idx)
}

//Concat appends the events of other. Both samples must have the same columns.
func (s *Sample) Concat(other *Sample) error {
	if other == nil || other.Len() == 0 {
		return nil
	}
	if s.Len() == 0 && len(s.order) == 0 {
		copied := other.Subset(rangeIndex(other.Len()))
		s.columns, s.order, s.collections, s.length = copied.columns, copied.order, copied.collections, copied.length
		return nil
	}
	for _, name := range s.order {
		if !other.HasColumn(name) {
			return errors.Errorf("cannot concat %q into %q: column %q missing", other.Name, s.Name, name)
		}
	}
	for _, name := range s.order {
		s.columns[name] = append(s.columns[name], other.columns[name]...)
	}
	for name, coll := range s.collections {
		otherColl, ok := other.collections[name]
		if !ok {
			return errors.Errorf("cannot concat %q into %q: collection %q missing", other.Name, s.Name, name)
		}
		merged, err := coll.Concat(otherColl)
		if err != nil {
			return err
		}
		s.collections[name] = merged
	}
	s.length += other.Len()
	return nil
}

//Matrix packs the named columns into an events x len(names) matrix.
func (s *Sample) Matrix(names []string) (*mat.Dense, error) {
	h := s.Len()
	if h == 0 || len(names) == 0 {
		return nil, errors.Errorf("sample %q: cannot build an empty matrix", s.Name)
	}
	out := mat.NewDense(h, len(names), nil)
	for q, name := range names {
		values, err := s.Column(name)
		if err != nil {
			return nil, err
		}
		for p, v := range values {
			out.Set(p, q, v)
		}
	}
	return out, nil
}

//Clean returns a copy of the column with NaN replaced by NanFill.
func Clean(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			v = NanFill
		}
		out[i] = v
	}
	return out
}

func rangeIndex(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}
