package camera

import "slices"

// OutputSet is the ordered list of targets wired into the device
// configuration. Targets must be comparable; in practice they are pointers.
type OutputSet struct {
	targets []Target
}

// NewOutputSet returns a set holding targets, skipping nils and duplicates.
func NewOutputSet(targets ...Target) *OutputSet {
	s := &OutputSet{}
	for _, t := range targets {
		s.Add(t)
	}
	return s
}

// Add appends t unless it is nil or already present.
func (s *OutputSet) Add(t Target) {
	if t == nil || s.Contains(t) {
		return
	}
	s.targets = append(s.targets, t)
}

// Remove drops t from the set.
func (s *OutputSet) Remove(t Target) {
	s.targets = slices.DeleteFunc(s.targets, func(x Target) bool { return x == t })
}

// Contains reports membership.
func (s *OutputSet) Contains(t Target) bool {
	return slices.Contains(s.targets, t)
}

// Len returns the number of targets.
func (s *OutputSet) Len() int {
	return len(s.targets)
}

// Targets returns a copy of the targets in insertion order.
func (s *OutputSet) Targets() []Target {
	return slices.Clone(s.targets)
}

// Reset empties the set.
func (s *OutputSet) Reset() {
	s.targets = nil
}

