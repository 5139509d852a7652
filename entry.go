package chainmap

// frameWriter is implemented by both map variants so an Entry can write back
// into the frame it was resolved from.
type frameWriter[K comparable, V any] interface {
	InsertAt(index int, key K, value V) (V, bool, error)
}

// Entry is a handle to one binding resolved by GetMut or GetBeforeMut. It
// stays bound to the frame that owned the binding at lookup time, so Set never
// shadows or moves the binding into another frame.
//
// A handle is invalidated by structural changes to its chain (PopChild,
// SplitOff); Set then fails with ErrIndexOutOfRange or writes to whichever
// frame now lives at the same index.
type Entry[K comparable, V any] struct {
	owner frameWriter[K, V]
	index int
	key   K
	value V
}

func newEntry[K comparable, V any](owner frameWriter[K, V], index int, key K, value V) *Entry[K, V] {
	return &Entry[K, V]{owner: owner, index: index, key: key, value: value}
}

// Index reports the frame index that owns the binding.
func (e *Entry[K, V]) Index() int {
	return e.index
}

// Key returns the bound key.
func (e *Entry[K, V]) Key() K {
	return e.key
}

// Value returns the value observed at lookup time or written by the last Set.
func (e *Entry[K, V]) Value() V {
	return e.value
}

// Set overwrites the binding in its owning frame and returns the previous
// value held by that frame.
func (e *Entry[K, V]) Set(value V) (V, error) {
	prev, _, err := e.owner.InsertAt(e.index, e.key, value)
	if err != nil {
		var zero V
		return zero, err
	}
	e.value = value
	return prev, nil
}
