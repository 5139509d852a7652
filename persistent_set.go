package chainmap

import (
	"github.com/benbjohnson/immutable"
)

// PersistentSet is the structurally shared counterpart of Set. Frames are
// persistent hash maps with empty values; Clone is O(1). The zero value holds
// zero frames and Insert gives it a leaf.
type PersistentSet[T comparable] struct {
	frames *immutable.List[*immutable.Map[T, struct{}]]
	hasher immutable.Hasher[T]
}

// NewPersistentSet returns a chain holding frame as its only frame.
func NewPersistentSet[T comparable](frame *immutable.Map[T, struct{}], opts ...PersistentOption[T]) *PersistentSet[T] {
	cfg := applyPersistentOptions(opts)
	s := &PersistentSet[T]{hasher: cfg.hasher}
	if frame == nil {
		frame = s.newFrame()
	}
	s.frames = immutable.NewList(frame)
	return s
}

// NewPersistentEmptySet returns a chain with a single empty frame.
func NewPersistentEmptySet[T comparable](opts ...PersistentOption[T]) *PersistentSet[T] {
	return NewPersistentSet[T](nil, opts...)
}

// NewPersistentSetOf returns a single-frame chain containing values.
func NewPersistentSetOf[T comparable](values ...T) *PersistentSet[T] {
	return PersistentSetFrom(values)
}

// PersistentSetFrom is NewPersistentSetOf with construction options, e.g. a
// WithHasher for key types the default hasher does not cover.
func PersistentSetFrom[T comparable](values []T, opts ...PersistentOption[T]) *PersistentSet[T] {
	s := NewPersistentEmptySet(opts...)
	frame := s.list().Get(0)
	for _, v := range values {
		frame = frame.Set(v, struct{}{})
	}
	s.frames = s.list().Set(0, frame)
	return s
}

func (s *PersistentSet[T]) newFrame() *immutable.Map[T, struct{}] {
	return immutable.NewMap[T, struct{}](s.hasher)
}

// Len returns the number of frames.
func (s *PersistentSet[T]) Len() int {
	return s.list().Len()
}

// list returns the frame vector. A zero value gets an empty vector and
// behaves as a chain with zero frames.
func (s *PersistentSet[T]) list() *immutable.List[*immutable.Map[T, struct{}]] {
	if s.frames == nil {
		s.frames = immutable.NewList[*immutable.Map[T, struct{}]]()
	}
	return s.frames
}

// Clone returns an independent chain sharing all storage with s.
func (s *PersistentSet[T]) Clone() *PersistentSet[T] {
	return &PersistentSet[T]{frames: s.frames, hasher: s.hasher}
}

// Insert adds value to the leaf when no frame holds it yet and reports
// whether it did.
func (s *PersistentSet[T]) Insert(value T) bool {
	if s.Contains(value) {
		return false
	}
	if s.list().Len() == 0 {
		s.frames = s.list().Append(s.newFrame())
	}
	last := s.list().Len() - 1
	s.frames = s.list().Set(last, s.list().Get(last).Set(value, struct{}{}))
	return true
}

// Contains reports whether any frame holds value.
func (s *PersistentSet[T]) Contains(value T) bool {
	_, ok := s.IndexOf(value)
	return ok
}

// IndexOf returns the highest frame index holding value.
func (s *PersistentSet[T]) IndexOf(value T) (int, bool) {
	for i := s.list().Len() - 1; i >= 0; i-- {
		if _, ok := s.list().Get(i).Get(value); ok {
			return i, true
		}
	}
	return -1, false
}

// HasAt reports whether frame index exists and holds value.
func (s *PersistentSet[T]) HasAt(index int, value T) bool {
	if index < 0 || index >= s.list().Len() {
		return false
	}
	_, ok := s.list().Get(index).Get(value)
	return ok
}

// LeafHas reports whether the leaf frame holds value.
func (s *PersistentSet[T]) LeafHas(value T) bool {
	return s.HasAt(s.list().Len()-1, value)
}

// Frame returns the persistent frame at index.
func (s *PersistentSet[T]) Frame(index int) (*immutable.Map[T, struct{}], error) {
	if index < 0 || index >= s.list().Len() {
		return nil, indexError("frame", index, s.list().Len())
	}
	return s.list().Get(index), nil
}

// PushChild appends an empty frame.
func (s *PersistentSet[T]) PushChild() {
	s.frames = s.list().Append(s.newFrame())
}

// PushChildWith appends frame as the new leaf.
func (s *PersistentSet[T]) PushChildWith(frame *immutable.Map[T, struct{}]) {
	if frame == nil {
		frame = s.newFrame()
	}
	s.frames = s.list().Append(frame)
}

// PopChild removes and returns the leaf frame, replacing the sole frame with
// an empty one instead when only one is left.
func (s *PersistentSet[T]) PopChild() *immutable.Map[T, struct{}] {
	n := s.list().Len()
	switch n {
	case 0:
		return nil
	case 1:
		prev := s.list().Get(0)
		s.frames = s.list().Set(0, s.newFrame())
		return prev
	}
	leaf := s.list().Get(n - 1)
	s.frames = s.list().Slice(0, n-1)
	return leaf
}

// SplitOff moves frames [index, Len()) into a new chain.
func (s *PersistentSet[T]) SplitOff(index int) (*PersistentSet[T], error) {
	n := s.list().Len()
	if index < 0 || index > n {
		return nil, indexError("split_off", index, n)
	}
	tail := &PersistentSet[T]{hasher: s.hasher}
	if index == n {
		tail.frames = immutable.NewList[*immutable.Map[T, struct{}]]()
	} else {
		tail.frames = s.list().Slice(index, n)
	}
	if index == 0 {
		s.frames = immutable.NewList[*immutable.Map[T, struct{}]]()
	} else {
		s.frames = s.list().Slice(0, index)
	}
	return tail, nil
}

// Append moves other's frames after s's leaf, leaving other with zero frames.
func (s *PersistentSet[T]) Append(other *PersistentSet[T]) {
	if other == nil || other == s {
		return
	}
	itr := other.list().Iterator()
	for !itr.Done() {
		_, frame := itr.Next()
		s.frames = s.list().Append(frame)
	}
	other.frames = immutable.NewList[*immutable.Map[T, struct{}]]()
}

// Values returns every visible member once, in no particular order.
func (s *PersistentSet[T]) Values() []T {
	seen := make(map[T]struct{})
	var out []T
	itr := s.list().Iterator()
	for !itr.Done() {
		_, frame := itr.Next()
		fitr := frame.Iterator()
		for !fitr.Done() {
			v, _, _ := fitr.Next()
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

// Equal compares the chains frame by frame, treating shared frames as equal.
func (s *PersistentSet[T]) Equal(other *PersistentSet[T]) bool {
	if s == other {
		return true
	}
	if s == nil || other == nil || s.list().Len() != other.list().Len() {
		return false
	}
	for i := 0; i < s.list().Len(); i++ {
		a, b := s.list().Get(i), other.list().Get(i)
		if a == b {
			continue
		}
		if !framesEqual(a, b, func(struct{}, struct{}) bool { return true }) {
			return false
		}
	}
	return true
}
