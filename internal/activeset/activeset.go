// Package activeset implements the strided active-set algebra used to derive
// team membership from (start, stride, size) triplets.
//
// An active set describes the PE ranks start, start+stride, ..., start+stride*(size-1)
// of some enclosing index space (a parent team, or the world). The same triplet
// form is used both relative to a parent team and relative to the world; Project
// composes a parent-relative triplet into world coordinates.
package activeset

import "github.com/pkg/errors"

// Set is a (start, stride, size) triplet describing a strided subset of PE ranks.
type Set struct {
	Start  int
	Stride int
	Size   int
}

// Validate rejects malformed triplets before any translation is attempted.
// A non-positive stride or size, or a negative start, is a malformed-argument
// failure, never a silent truncation.
func (s Set) Validate() error {
	if s.Start < 0 {
		return errors.Errorf("active set start must be non-negative, got %d", s.Start)
	}
	if s.Stride < 1 {
		return errors.Errorf("active set stride must be positive, got %d", s.Stride)
	}
	if s.Size < 1 {
		return errors.Errorf("active set size must be positive, got %d", s.Size)
	}
	return nil
}

// Translate returns the zero-based index of pe within the set, or ok=false if
// pe is not a member. This is the sole membership test: a PE is absent if it
// precedes start, does not land on the stride, or indexes past size.
func (s Set) Translate(pe int) (idx int, ok bool) {
	if pe < s.Start || (pe-s.Start)%s.Stride != 0 {
		return -1, false
	}
	idx = (pe - s.Start) / s.Stride
	if idx >= s.Size {
		return -1, false
	}
	return idx, true
}

// Contains reports whether pe is a member of the set.
func (s Set) Contains(pe int) bool {
	_, ok := s.Translate(pe)
	return ok
}

// PE returns the enclosing-space rank of the idx-th member.
func (s Set) PE(idx int) int {
	return s.Start + idx*s.Stride
}

// End returns the enclosing-space rank of the last member.
func (s Set) End() int {
	return s.Start + s.Stride*(s.Size-1)
}

// Project composes s, given relative to a parent whose own world-relative
// description is parent, into world coordinates:
//
//	start' = parent.Start + s.Start*parent.Stride
//	stride' = s.Stride * parent.Stride
//
// The size is carried through unchanged.
func (s Set) Project(parent Set) Set {
	return Set{
		Start:  parent.Start + s.Start*parent.Stride,
		Stride: s.Stride * parent.Stride,
		Size:   s.Size,
	}
}
