package bdt

import "math"

//IntIterable is the interface for iteration over a collection of integers.
type IntIterable interface {
	HasNext() bool
	GetNext() int
	DistToMiddle(int) float64
}

//Range is an iterator over the half interval [begin, end) with the step step.
type Range struct {
	begin, end, step, pos int
}

//NewRange initializes a new iterator; a negative step walks from begin down to end+1.
func NewRange(start, end, step int) *Range {
	return &Range{start, end, step, start}
}

//GetNext returns the current position and advances.
func (r *Range) GetNext() int {
	val := r.pos
	r.pos += r.step
	return val
}

//HasNext checks whether there are more values in the iterator.
func (r *Range) HasNext() bool {
	if r.step > 0 {
		return r.pos < r.end
	}
	return r.pos > r.end
}

//DistToMiddle is the distance from a position to the middle of the scanned records; it
//penalises unbalanced splits when the unbalanced loss is set.
func (r *Range) DistToMiddle(point int) float64 {
	lo, hi := r.begin, r.end
	if r.step < 0 {
		lo, hi = r.end+1, r.begin+1
	}
	return math.Abs(float64(point) - (float64(lo)+float64(hi)-1.0)/2.0)
}
