package chainmap

import (
	"fmt"
	"iter"
	"strings"

	"github.com/benbjohnson/immutable"
)

// PersistentOption configures a persistent chain at construction time.
type PersistentOption[K any] func(*persistentConfig[K])

type persistentConfig[K any] struct {
	hasher immutable.Hasher[K]
}

// WithHasher sets the hasher used for frames the chain creates itself
// (PushChild, the empty frame left behind by PopChild). It is required for key
// types the immutable package cannot hash by default, such as structs.
func WithHasher[K any](hasher immutable.Hasher[K]) PersistentOption[K] {
	return func(cfg *persistentConfig[K]) {
		cfg.hasher = hasher
	}
}

func applyPersistentOptions[K any](opts []PersistentOption[K]) persistentConfig[K] {
	cfg := persistentConfig[K]{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// PersistentMap is a chain of frames stored in a persistent vector of
// persistent hash maps. Clone is O(1): both copies share every node until one
// of them writes, and a write only copies the path from the touched frame to
// the root of the vector. Query results are identical to Map for the same
// frame sequence.
//
// Methods swap the receiver's root pointer; use Clone to branch. The zero
// value holds zero frames, like the receiver of SplitOff(0); PushChild before
// writing to it.
type PersistentMap[K comparable, V any] struct {
	frames *immutable.List[*immutable.Map[K, V]]
	hasher immutable.Hasher[K]
}

// NewPersistent returns a chain holding frame as its only frame. A nil frame
// is replaced by an empty one.
func NewPersistent[K comparable, V any](frame *immutable.Map[K, V], opts ...PersistentOption[K]) *PersistentMap[K, V] {
	cfg := applyPersistentOptions(opts)
	p := &PersistentMap[K, V]{hasher: cfg.hasher}
	if frame == nil {
		frame = p.newFrame()
	}
	p.frames = immutable.NewList(frame)
	return p
}

// NewPersistentEmpty returns a chain with a single empty frame.
func NewPersistentEmpty[K comparable, V any](opts ...PersistentOption[K]) *PersistentMap[K, V] {
	return NewPersistent[K, V](nil, opts...)
}

// PersistentFromMap copies frame into a persistent frame and wraps it.
func PersistentFromMap[K comparable, V any](frame map[K]V, opts ...PersistentOption[K]) *PersistentMap[K, V] {
	cfg := applyPersistentOptions(opts)
	return NewPersistent(frameFromMap(cfg.hasher, frame), opts...)
}

// Freeze converts an exclusive chain into a persistent one with the same
// frame sequence. m is left untouched.
func Freeze[K comparable, V any](m *Map[K, V], opts ...PersistentOption[K]) *PersistentMap[K, V] {
	cfg := applyPersistentOptions(opts)
	p := &PersistentMap[K, V]{hasher: cfg.hasher, frames: immutable.NewList[*immutable.Map[K, V]]()}
	for _, frame := range m.frames {
		p.frames = p.list().Append(frameFromMap(cfg.hasher, frame))
	}
	return p
}

func frameFromMap[K comparable, V any](hasher immutable.Hasher[K], frame map[K]V) *immutable.Map[K, V] {
	out := immutable.NewMap[K, V](hasher)
	for k, v := range frame {
		out = out.Set(k, v)
	}
	return out
}

func (p *PersistentMap[K, V]) newFrame() *immutable.Map[K, V] {
	return immutable.NewMap[K, V](p.hasher)
}

// Len returns the number of frames in the chain.
func (p *PersistentMap[K, V]) Len() int {
	return p.list().Len()
}

// list returns the frame vector. A zero value gets an empty vector and
// behaves as a chain with zero frames.
func (p *PersistentMap[K, V]) list() *immutable.List[*immutable.Map[K, V]] {
	if p.frames == nil {
		p.frames = immutable.NewList[*immutable.Map[K, V]]()
	}
	return p.frames
}

// Clone returns an independent chain sharing all storage with p.
func (p *PersistentMap[K, V]) Clone() *PersistentMap[K, V] {
	return &PersistentMap[K, V]{frames: p.frames, hasher: p.hasher}
}

// Insert writes key into the leaf frame and returns the value the leaf held
// for key before the write.
func (p *PersistentMap[K, V]) Insert(key K, value V) (V, bool) {
	n := p.list().Len()
	if n == 0 {
		var zero V
		return zero, false
	}
	prev, ok, _ := p.InsertAt(n-1, key, value)
	return prev, ok
}

// InsertAt writes key into frame index and returns that frame's previous
// binding. Out of range indexes fail with ErrIndexOutOfRange and leave the
// chain untouched.
func (p *PersistentMap[K, V]) InsertAt(index int, key K, value V) (V, bool, error) {
	if index < 0 || index >= p.list().Len() {
		var zero V
		return zero, false, indexError("insert_at", index, p.list().Len())
	}
	frame := p.list().Get(index)
	prev, ok := frame.Get(key)
	p.frames = p.list().Set(index, frame.Set(key, value))
	return prev, ok, nil
}

// Get returns the value bound to key in the newest frame that contains it.
func (p *PersistentMap[K, V]) Get(key K) (V, bool) {
	return p.GetBefore(p.list().Len(), key)
}

// GetBefore searches frames [0, index) from newest to oldest. An index at or
// past Len searches the whole chain.
func (p *PersistentMap[K, V]) GetBefore(index int, key K) (V, bool) {
	if index > p.list().Len() {
		index = p.list().Len()
	}
	for i := index - 1; i >= 0; i-- {
		if v, ok := p.list().Get(i).Get(key); ok {
			return v, true
		}
	}
	var zero V
	return zero, false
}

// GetMut resolves key like Get and returns a handle writing back into the
// owning frame. Writes through the handle copy-on-write like InsertAt.
func (p *PersistentMap[K, V]) GetMut(key K) (*Entry[K, V], bool) {
	return p.GetBeforeMut(p.list().Len(), key)
}

// GetBeforeMut resolves key like GetBefore and returns a writable handle.
func (p *PersistentMap[K, V]) GetBeforeMut(index int, key K) (*Entry[K, V], bool) {
	i, ok := p.indexBefore(index, key)
	if !ok {
		return nil, false
	}
	v, _ := p.list().Get(i).Get(key)
	return newEntry[K, V](p, i, key, v), true
}

// Update replaces the visible binding for key using fn. It reports false when
// key is unbound.
func (p *PersistentMap[K, V]) Update(key K, fn func(V) V) bool {
	i, ok := p.IndexOf(key)
	if !ok {
		return false
	}
	frame := p.list().Get(i)
	v, _ := frame.Get(key)
	p.frames = p.list().Set(i, frame.Set(key, fn(v)))
	return true
}

// MustGet returns the visible value for key and panics when it is unbound.
func (p *PersistentMap[K, V]) MustGet(key K) V {
	v, ok := p.Get(key)
	if !ok {
		panic("chainmap: no entry found for key")
	}
	return v
}

func (p *PersistentMap[K, V]) indexBefore(index int, key K) (int, bool) {
	if index > p.list().Len() {
		index = p.list().Len()
	}
	for i := index - 1; i >= 0; i-- {
		if _, ok := p.list().Get(i).Get(key); ok {
			return i, true
		}
	}
	return -1, false
}

// IndexOf returns the highest frame index whose frame binds key.
func (p *PersistentMap[K, V]) IndexOf(key K) (int, bool) {
	return p.indexBefore(p.list().Len(), key)
}

// HasAt reports whether frame index exists and binds key.
func (p *PersistentMap[K, V]) HasAt(index int, key K) bool {
	if index < 0 || index >= p.list().Len() {
		return false
	}
	_, ok := p.list().Get(index).Get(key)
	return ok
}

// LeafHas reports whether the leaf frame binds key.
func (p *PersistentMap[K, V]) LeafHas(key K) bool {
	return p.HasAt(p.list().Len()-1, key)
}

// Frame returns the persistent frame stored at index.
func (p *PersistentMap[K, V]) Frame(index int) (*immutable.Map[K, V], error) {
	if index < 0 || index >= p.list().Len() {
		return nil, indexError("frame", index, p.list().Len())
	}
	return p.list().Get(index), nil
}

// Frames iterates frames from the root (index 0) to the leaf.
func (p *PersistentMap[K, V]) Frames() iter.Seq2[int, *immutable.Map[K, V]] {
	return func(yield func(int, *immutable.Map[K, V]) bool) {
		itr := p.list().Iterator()
		for !itr.Done() {
			i, frame := itr.Next()
			if !yield(i, frame) {
				return
			}
		}
	}
}

// PushChild appends an empty frame as the new leaf.
func (p *PersistentMap[K, V]) PushChild() {
	p.frames = p.list().Append(p.newFrame())
}

// PushChildWith appends frame as the new leaf. A nil frame is replaced by an
// empty one.
func (p *PersistentMap[K, V]) PushChildWith(frame *immutable.Map[K, V]) {
	if frame == nil {
		frame = p.newFrame()
	}
	p.frames = p.list().Append(frame)
}

// PopChild removes and returns the leaf frame. With a single frame left the
// chain keeps its length and the frame is replaced by an empty one. A
// zero-length chain returns nil.
func (p *PersistentMap[K, V]) PopChild() *immutable.Map[K, V] {
	n := p.list().Len()
	switch n {
	case 0:
		return nil
	case 1:
		prev := p.list().Get(0)
		p.frames = p.list().Set(0, p.newFrame())
		return prev
	}
	leaf := p.list().Get(n - 1)
	p.frames = p.list().Slice(0, n-1)
	return leaf
}

// SplitOff moves frames [index, Len()) into a new chain and keeps [0, index)
// in p. Both halves keep sharing storage with any earlier clone of p. Either
// half may be left with zero frames until it is pushed to or appended.
func (p *PersistentMap[K, V]) SplitOff(index int) (*PersistentMap[K, V], error) {
	n := p.list().Len()
	if index < 0 || index > n {
		return nil, indexError("split_off", index, n)
	}
	tail := &PersistentMap[K, V]{hasher: p.hasher}
	if index == n {
		tail.frames = immutable.NewList[*immutable.Map[K, V]]()
	} else {
		tail.frames = p.list().Slice(index, n)
	}
	if index == 0 {
		p.frames = immutable.NewList[*immutable.Map[K, V]]()
	} else {
		p.frames = p.list().Slice(0, index)
	}
	return tail, nil
}

// Append moves other's frames after p's leaf and leaves other with zero
// frames. Clones of other taken before the call keep their frames. Appending
// a chain to itself is a no-op.
func (p *PersistentMap[K, V]) Append(other *PersistentMap[K, V]) {
	if other == nil || other == p {
		return
	}
	itr := other.list().Iterator()
	for !itr.Done() {
		_, frame := itr.Next()
		p.frames = p.list().Append(frame)
	}
	other.frames = immutable.NewList[*immutable.Map[K, V]]()
}

// Thaw copies the chain into an exclusive Map.
func (p *PersistentMap[K, V]) Thaw() *Map[K, V] {
	m := &Map[K, V]{frames: make([]map[K]V, 0, p.list().Len())}
	for _, frame := range p.Frames() {
		m.frames = append(m.frames, frameToMap(frame))
	}
	return m
}

func frameToMap[K comparable, V any](frame *immutable.Map[K, V]) map[K]V {
	out := make(map[K]V, frame.Len())
	itr := frame.Iterator()
	for !itr.Done() {
		k, v, _ := itr.Next()
		out[k] = v
	}
	return out
}

// Flatten returns every visible binding with the value Get would return.
func (p *PersistentMap[K, V]) Flatten() map[K]V {
	out := make(map[K]V)
	for _, frame := range p.Frames() {
		itr := frame.Iterator()
		for !itr.Done() {
			k, v, _ := itr.Next()
			out[k] = v
		}
	}
	return out
}

// Keys yields every bound key once, leaf frame first.
func (p *PersistentMap[K, V]) Keys() iter.Seq[K] {
	return func(yield func(K) bool) {
		seen := make(map[K]struct{})
		frames := p.list()
		for i := frames.Len() - 1; i >= 0; i-- {
			for itr := frames.Get(i).Iterator(); !itr.Done(); {
				key, _, _ := itr.Next()
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

// SharesFrame reports whether frame index of p and of other is the same
// persistent node, meaning neither chain has written to it since they
// diverged.
func (p *PersistentMap[K, V]) SharesFrame(other *PersistentMap[K, V], index int) bool {
	if other == nil || index < 0 || index >= p.list().Len() || index >= other.list().Len() {
		return false
	}
	return p.list().Get(index) == other.list().Get(index)
}

// EqualFunc compares the chains frame by frame. Frames that are the same
// shared node are equal without looking at their contents.
func (p *PersistentMap[K, V]) EqualFunc(other *PersistentMap[K, V], eq func(V, V) bool) bool {
	if p == other {
		return true
	}
	if p == nil || other == nil || p.list().Len() != other.list().Len() {
		return false
	}
	if p.frames == other.frames {
		return true
	}
	for i := 0; i < p.list().Len(); i++ {
		a, b := p.list().Get(i), other.list().Get(i)
		if a == b {
			continue
		}
		if !framesEqual(a, b, eq) {
			return false
		}
	}
	return true
}

func framesEqual[K comparable, V any](a, b *immutable.Map[K, V], eq func(V, V) bool) bool {
	if a.Len() != b.Len() {
		return false
	}
	itr := a.Iterator()
	for !itr.Done() {
		k, v, _ := itr.Next()
		w, ok := b.Get(k)
		if !ok || !eq(v, w) {
			return false
		}
	}
	return true
}

// EqualPersistent reports whether a and b hold equal frame sequences.
func EqualPersistent[K, V comparable](a, b *PersistentMap[K, V]) bool {
	return a.EqualFunc(b, func(x, y V) bool { return x == y })
}

func (p *PersistentMap[K, V]) String() string {
	var b strings.Builder
	b.WriteString("PersistentMap[")
	for i, frame := range p.Frames() {
		if i > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, "%v", frameToMap(frame))
	}
	b.WriteString("]")
	return b.String()
}
