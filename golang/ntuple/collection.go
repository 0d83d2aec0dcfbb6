package ntuple

import (
	"math"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

//Collection holds per-object variables (pt, eta, phi, mass, ...) of a particle collection.
//Every variable is an events x maxObjects matrix padded with NaN, objects ordered by pt.
type Collection struct {
	Name string
	vars map[string]*mat.Dense
	h, w int
}

//NewCollection creates an empty collection.
func NewCollection(name string) *Collection {
	return &Collection{Name: name, vars: make(map[string]*mat.Dense), h: -1}
}

//Len returns the number of events.
func (c *Collection) Len() int {
	if c.h < 0 {
		return 0
	}
	return c.h
}

//Width returns the maximal number of objects per event.
func (c *Collection) Width() int {
	return c.w
}

//AddVar stores a per-object variable.
func (c *Collection) AddVar(name string, values *mat.Dense) error {
	h, w := values.Dims()
	if c.h >= 0 && (h != c.h || w != c.w) {
		return errors.Errorf("collection %q: variable %q has shape %dx%d, expected %dx%d", c.Name, name, h, w, c.h, c.w)
	}
	c.vars[name] = values
	c.h, c.w = h, w
	return nil
}

//Vars returns the sorted variable names.
func (c *Collection) Vars() []string {
	names := make([]string, 0, len(c.vars))
	for name := range c.vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

//Num returns the number of objects in the event.
func (c *Collection) Num(event int) int {
	ref, ok := c.vars["pt"]
	if !ok {
		for _, m := range c.vars {
			ref = m
			break
		}
	}
	if ref == nil {
		return 0
	}
	n := 0
	for q := 0; q < c.w; q++ {
		if !math.IsNaN(ref.At(event, q)) {
			n++
		}
	}
	return n
}

//Get returns a variable of the idx-th object; ok is false for a missing object.
func (c *Collection) Get(name string, event, idx int) (float64, bool) {
	m, exists := c.vars[name]
	if !exists || idx < 0 || idx >= c.w {
		return 0, false
	}
	v := m.At(event, idx)
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

//Subset returns the collection restricted to the events at idx.
func (c *Collection) Subset(idx []int) *Collection {
	out := NewCollection(c.Name)
	for name, m := range c.vars {
		if len(idx) == 0 || c.w == 0 {
			out.vars[name] = nil
			continue
		}
		sub := mat.NewDense(len(idx), c.w, nil)
		for k, p := range idx {
			sub.SetRow(k, m.RawRowView(p))
		}
		out.vars[name] = sub
	}
	out.h, out.w = len(idx), c.w
	return out
}

//Concat stacks the events of two collections, padding the narrower one with NaN.
func (c *Collection) Concat(other *Collection) (*Collection, error) {
	out := NewCollection(c.Name)
	w := c.w
	if other.w > w {
		w = other.w
	}
	h := c.Len() + other.Len()
	if h == 0 || w == 0 {
		out.h, out.w = h, w
		return out, nil
	}
	for name, top := range c.vars {
		bottom, ok := other.vars[name]
		if !ok {
			return nil, errors.Errorf("collection %q: variable %q missing in concatenated part", c.Name, name)
		}
		merged := mat.NewDense(h, w, nil)
		copyPadded(merged, top, 0, c.Len(), c.w)
		copyPadded(merged, bottom, c.Len(), other.Len(), other.w)
		out.vars[name] = merged
	}
	out.h, out.w = h, w
	return out, nil
}

func copyPadded(dst, src *mat.Dense, offset, rows, cols int) {
	_, w := dst.Dims()
	for p := 0; p < rows; p++ {
		for q := 0; q < w; q++ {
			v := math.NaN()
			if q < cols && src != nil {
				v = src.At(p, q)
			}
			dst.Set(offset+p, q, v)
		}
	}
}
