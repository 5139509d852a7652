package chainmap

import (
	"fmt"
	"iter"
	"maps"
	"strings"
)

// Map is a chain of exclusively owned frames. Index 0 is the outermost frame,
// Len()-1 is the leaf. Lookups scan from the leaf back to the root so newer
// bindings shadow older ones; unindexed writes always land in the leaf.
//
// A Map is not safe for concurrent mutation.
type Map[K comparable, V any] struct {
	frames []map[K]V
}

// New returns a chain holding frame as its only frame. A nil frame is replaced
// by an empty one.
func New[K comparable, V any](frame map[K]V) *Map[K, V] {
	if frame == nil {
		frame = make(map[K]V)
	}
	return &Map[K, V]{frames: []map[K]V{frame}}
}

// NewEmpty returns a chain with a single empty frame.
func NewEmpty[K comparable, V any]() *Map[K, V] {
	return New[K, V](nil)
}

// Len returns the number of frames in the chain.
func (m *Map[K, V]) Len() int {
	return len(m.frames)
}

// Insert writes key into the leaf frame and returns the value the leaf held
// for key before the write. Shadowed bindings in older frames are ignored.
func (m *Map[K, V]) Insert(key K, value V) (V, bool) {
	if len(m.frames) == 0 {
		var zero V
		return zero, false
	}
	return insertFrame(m.frames[len(m.frames)-1], key, value)
}

// InsertAt writes key into frame index and returns that frame's previous
// binding. It fails with ErrIndexOutOfRange, leaving the chain untouched, when
// index does not address an existing frame.
func (m *Map[K, V]) InsertAt(index int, key K, value V) (V, bool, error) {
	if index < 0 || index >= len(m.frames) {
		var zero V
		return zero, false, indexError("insert_at", index, len(m.frames))
	}
	prev, ok := insertFrame(m.frames[index], key, value)
	return prev, ok, nil
}

func insertFrame[K comparable, V any](frame map[K]V, key K, value V) (V, bool) {
	prev, ok := frame[key]
	frame[key] = value
	return prev, ok
}

// Get returns the value bound to key in the newest frame that contains it.
func (m *Map[K, V]) Get(key K) (V, bool) {
	return m.GetBefore(len(m.frames), key)
}

// GetBefore searches frames [0, index) from newest to oldest, returning the
// binding as it was visible to the scope at index. An index at or past Len
// searches the whole chain.
func (m *Map[K, V]) GetBefore(index int, key K) (V, bool) {
	if i, ok := m.indexBefore(index, key); ok {
		return m.frames[i][key], true
	}
	var zero V
	return zero, false
}

// GetMut resolves key like Get and returns a handle that writes back into the
// frame owning the binding.
func (m *Map[K, V]) GetMut(key K) (*Entry[K, V], bool) {
	return m.GetBeforeMut(len(m.frames), key)
}

// GetBeforeMut resolves key like GetBefore and returns a writable handle.
func (m *Map[K, V]) GetBeforeMut(index int, key K) (*Entry[K, V], bool) {
	i, ok := m.indexBefore(index, key)
	if !ok {
		return nil, false
	}
	return newEntry[K, V](m, i, key, m.frames[i][key]), true
}

// Update replaces the visible binding for key in place using fn. It reports
// false when key is unbound.
func (m *Map[K, V]) Update(key K, fn func(V) V) bool {
	i, ok := m.IndexOf(key)
	if !ok {
		return false
	}
	m.frames[i][key] = fn(m.frames[i][key])
	return true
}

// MustGet returns the visible value for key and panics when it is unbound.
func (m *Map[K, V]) MustGet(key K) V {
	v, ok := m.Get(key)
	if !ok {
		panic("chainmap: no entry found for key")
	}
	return v
}

func (m *Map[K, V]) indexBefore(index int, key K) (int, bool) {
	if index > len(m.frames) {
		index = len(m.frames)
	}
	for i := index - 1; i >= 0; i-- {
		if _, ok := m.frames[i][key]; ok {
			return i, true
		}
	}
	return -1, false
}

// IndexOf returns the highest frame index whose frame binds key.
func (m *Map[K, V]) IndexOf(key K) (int, bool) {
	return m.indexBefore(len(m.frames), key)
}

// HasAt reports whether frame index exists and binds key. It does not look at
// any other frame.
func (m *Map[K, V]) HasAt(index int, key K) bool {
	if index < 0 || index >= len(m.frames) {
		return false
	}
	_, ok := m.frames[index][key]
	return ok
}

// LeafHas reports whether the leaf frame binds key.
func (m *Map[K, V]) LeafHas(key K) bool {
	return m.HasAt(len(m.frames)-1, key)
}

// Frame returns the frame stored at index. The returned map is the live frame.
func (m *Map[K, V]) Frame(index int) (map[K]V, error) {
	if index < 0 || index >= len(m.frames) {
		return nil, indexError("frame", index, len(m.frames))
	}
	return m.frames[index], nil
}

// Frames iterates frames from the root (index 0) to the leaf.
func (m *Map[K, V]) Frames() iter.Seq2[int, map[K]V] {
	return func(yield func(int, map[K]V) bool) {
		for i, frame := range m.frames {
			if !yield(i, frame) {
				return
			}
		}
	}
}

// PushChild appends an empty frame as the new leaf.
func (m *Map[K, V]) PushChild() {
	m.frames = append(m.frames, make(map[K]V))
}

// PushChildWith appends frame as the new leaf. A nil frame is replaced by an
// empty one.
func (m *Map[K, V]) PushChildWith(frame map[K]V) {
	if frame == nil {
		frame = make(map[K]V)
	}
	m.frames = append(m.frames, frame)
}

// PopChild removes the leaf frame and returns it. When only one frame is left
// the chain keeps its length: the sole frame is swapped for an empty one and
// its previous contents are returned. A zero-length chain returns nil.
func (m *Map[K, V]) PopChild() map[K]V {
	switch len(m.frames) {
	case 0:
		return nil
	case 1:
		prev := m.frames[0]
		m.frames[0] = make(map[K]V)
		return prev
	}
	last := len(m.frames) - 1
	leaf := m.frames[last]
	m.frames[last] = nil
	m.frames = m.frames[:last]
	return leaf
}

// SplitOff moves frames [index, Len()) into a new chain and keeps [0, index)
// in m. Either side may end up with zero frames; callers must push or append
// before treating it as a regular chain again.
func (m *Map[K, V]) SplitOff(index int) (*Map[K, V], error) {
	if index < 0 || index > len(m.frames) {
		return nil, indexError("split_off", index, len(m.frames))
	}
	tail := make([]map[K]V, len(m.frames)-index)
	copy(tail, m.frames[index:])
	clear(m.frames[index:])
	m.frames = m.frames[:index]
	return &Map[K, V]{frames: tail}, nil
}

// Append moves every frame of other after m's leaf, leaving other empty.
func (m *Map[K, V]) Append(other *Map[K, V]) {
	if other == nil || other == m {
		return
	}
	m.frames = append(m.frames, other.frames...)
	other.frames = nil
}

// Clone returns a deep copy: every frame is copied, values are copied by
// assignment.
func (m *Map[K, V]) Clone() *Map[K, V] {
	frames := make([]map[K]V, len(m.frames))
	for i, frame := range m.frames {
		frames[i] = maps.Clone(frame)
		if frames[i] == nil {
			frames[i] = make(map[K]V)
		}
	}
	return &Map[K, V]{frames: frames}
}

// Flatten returns the visible view of the chain: every bound key with the
// value Get would return for it.
func (m *Map[K, V]) Flatten() map[K]V {
	out := make(map[K]V)
	for _, frame := range m.frames {
		maps.Copy(out, frame)
	}
	return out
}

// Keys yields every bound key once, starting with the leaf frame's keys and
// moving outward. Map iteration order applies within a frame.
func (m *Map[K, V]) Keys() iter.Seq[K] {
	return func(yield func(K) bool) {
		seen := make(map[K]struct{})
		for i := len(m.frames) - 1; i >= 0; i-- {
			for key := range m.frames[i] {
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				if !yield(key) {
					return
				}
			}
		}
	}
}

// EqualFunc compares the two chains frame by frame using eq for values.
func (m *Map[K, V]) EqualFunc(other *Map[K, V], eq func(V, V) bool) bool {
	if m == other {
		return true
	}
	if m == nil || other == nil || len(m.frames) != len(other.frames) {
		return false
	}
	for i := range m.frames {
		if !maps.EqualFunc(m.frames[i], other.frames[i], eq) {
			return false
		}
	}
	return true
}

// Equal reports whether a and b hold equal frame sequences.
func Equal[K, V comparable](a, b *Map[K, V]) bool {
	return a.EqualFunc(b, func(x, y V) bool { return x == y })
}

func (m *Map[K, V]) String() string {
	var b strings.Builder
	b.WriteString("Map[")
	for i, frame := range m.frames {
		if i > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, "%v", frame)
	}
	b.WriteString("]")
	return b.String()
}
