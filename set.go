package chainmap

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Set is a chain of membership-only frames with exclusive ownership.
type Set[T comparable] struct {
	frames []map[T]struct{}
}

// NewSet returns a chain holding frame as its only frame.
func NewSet[T comparable](frame map[T]struct{}) *Set[T] {
	if frame == nil {
		frame = make(map[T]struct{})
	}
	return &Set[T]{frames: []map[T]struct{}{frame}}
}

// NewEmptySet returns a chain with a single empty frame.
func NewEmptySet[T comparable]() *Set[T] {
	return NewSet[T](nil)
}

// NewSetOf returns a single-frame chain containing values.
func NewSetOf[T comparable](values ...T) *Set[T] {
	frame := make(map[T]struct{}, len(values))
	for _, v := range values {
		frame[v] = struct{}{}
	}
	return NewSet(frame)
}

// Len returns the number of frames.
func (s *Set[T]) Len() int {
	return len(s.frames)
}

// Insert adds value to the leaf frame when it is not visible anywhere in the
// chain and reports whether it did. A value already present in any frame is
// reported as a duplicate and the leaf is left unchanged. A zero-length chain
// gets a fresh leaf first.
func (s *Set[T]) Insert(value T) bool {
	if s.Contains(value) {
		return false
	}
	if len(s.frames) == 0 {
		s.frames = append(s.frames, make(map[T]struct{}))
	}
	s.frames[len(s.frames)-1][value] = struct{}{}
	return true
}

// Contains reports whether any frame holds value.
func (s *Set[T]) Contains(value T) bool {
	_, ok := s.IndexOf(value)
	return ok
}

// IndexOf returns the highest frame index holding value.
func (s *Set[T]) IndexOf(value T) (int, bool) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if _, ok := s.frames[i][value]; ok {
			return i, true
		}
	}
	return -1, false
}

// HasAt reports whether frame index exists and holds value.
func (s *Set[T]) HasAt(index int, value T) bool {
	if index < 0 || index >= len(s.frames) {
		return false
	}
	_, ok := s.frames[index][value]
	return ok
}

// LeafHas reports whether the leaf frame holds value.
func (s *Set[T]) LeafHas(value T) bool {
	return s.HasAt(len(s.frames)-1, value)
}

// Frame returns the live frame at index.
func (s *Set[T]) Frame(index int) (map[T]struct{}, error) {
	if index < 0 || index >= len(s.frames) {
		return nil, indexError("frame", index, len(s.frames))
	}
	return s.frames[index], nil
}

// PushChild appends an empty frame.
func (s *Set[T]) PushChild() {
	s.frames = append(s.frames, make(map[T]struct{}))
}

// PushChildWith appends frame as the new leaf.
func (s *Set[T]) PushChildWith(frame map[T]struct{}) {
	if frame == nil {
		frame = make(map[T]struct{})
	}
	s.frames = append(s.frames, frame)
}

// PopChild removes and returns the leaf frame, clearing the sole frame in
// place instead when only one is left.
func (s *Set[T]) PopChild() map[T]struct{} {
	switch len(s.frames) {
	case 0:
		return nil
	case 1:
		prev := s.frames[0]
		s.frames[0] = make(map[T]struct{})
		return prev
	}
	last := len(s.frames) - 1
	leaf := s.frames[last]
	s.frames[last] = nil
	s.frames = s.frames[:last]
	return leaf
}

// SplitOff moves frames [index, Len()) into a new chain.
func (s *Set[T]) SplitOff(index int) (*Set[T], error) {
	if index < 0 || index > len(s.frames) {
		return nil, indexError("split_off", index, len(s.frames))
	}
	tail := make([]map[T]struct{}, len(s.frames)-index)
	copy(tail, s.frames[index:])
	clear(s.frames[index:])
	s.frames = s.frames[:index]
	return &Set[T]{frames: tail}, nil
}

// Append moves other's frames after s's leaf, leaving other empty.
func (s *Set[T]) Append(other *Set[T]) {
	if other == nil || other == s {
		return
	}
	s.frames = append(s.frames, other.frames...)
	other.frames = nil
}

// Clone deep-copies every frame.
func (s *Set[T]) Clone() *Set[T] {
	frames := make([]map[T]struct{}, len(s.frames))
	for i, frame := range s.frames {
		frames[i] = maps.Clone(frame)
		if frames[i] == nil {
			frames[i] = make(map[T]struct{})
		}
	}
	return &Set[T]{frames: frames}
}

// Values returns every visible member once, in no particular order.
func (s *Set[T]) Values() []T {
	seen := make(map[T]struct{})
	for _, frame := range s.frames {
		maps.Copy(seen, frame)
	}
	return slices.Collect(maps.Keys(seen))
}

// Equal compares the chains frame by frame.
func (s *Set[T]) Equal(other *Set[T]) bool {
	if s == other {
		return true
	}
	if s == nil || other == nil || len(s.frames) != len(other.frames) {
		return false
	}
	for i := range s.frames {
		if !maps.Equal(s.frames[i], other.frames[i]) {
			return false
		}
	}
	return true
}

func (s *Set[T]) String() string {
	var b strings.Builder
	b.WriteString("Set[")
	for i, frame := range s.frames {
		if i > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, "%v", slices.Collect(maps.Keys(frame)))
	}
	b.WriteString("]")
	return b.String()
}
