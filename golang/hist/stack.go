package hist

//Stack is a histogram holding the sum of its members, kept in drawing order.
type Stack struct {
	*Histogram
	Members []*Histogram
	BySum   bool
}

//NewStack creates an empty stack; with bySum members are ordered by decreasing integral.
func NewStack(bySum bool, axes ...Axis) *Stack {
	return &Stack{Histogram: New(axes...), BySum: bySum}
}

//Push adds a member and accumulates it into the total.
func (s *Stack) Push(h *Histogram) error {
	if err := s.Histogram.Add(h); err != nil {
		return err
	}
	if !s.BySum {
		s.Members = append(s.Members, h)
		return nil
	}
	integral := h.Integral(true)
	idx := len(s.Members)
	for i, m := range s.Members {
		if m.Integral(true) < integral {
			idx = i
			break
		}
	}
	s.Members = append(s.Members, nil)
	copy(s.Members[idx+1:], s.Members[idx:])
	s.Members[idx] = h
	return nil
}

//Recalculate rebuilds the total from the members, e.g. after a member was rescaled.
func (s *Stack) Recalculate() error {
	total := New(s.Axes...)
	total.Label, total.Color, total.Group = s.Label, s.Color, s.Group
	for _, m := range s.Members {
		if err := total.Add(m); err != nil {
			return err
		}
	}
	s.Histogram = total
	return nil
}

//Get returns the member of a group or nil.
func (s *Stack) Get(group string) *Histogram {
	for _, m := range s.Members {
		if m.Group == group {
			return m
		}
	}
	return nil
}

//Empty reports a stack without members.
func (s *Stack) Empty() bool {
	return len(s.Members) == 0
}
