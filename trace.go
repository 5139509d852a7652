package chainmap

import (
	"encoding/json"
)

// Trace captures provenance for one key across every frame of a chain,
// ordered from the leaf to the root.
type Trace[K comparable, V any] struct {
	Key       K               `json:"key"`
	Effective int             `json:"effective"`
	Frames    []Provenance[V] `json:"frames"`
}

// Provenance records what one frame holds for the traced key.
type Provenance[V any] struct {
	Index int  `json:"index"`
	Value V    `json:"value,omitempty"`
	Found bool `json:"found"`
}

// Found reports whether any frame binds the traced key.
func (t Trace[K, V]) Found() bool {
	return t.Effective >= 0
}

// Shadowed returns the bindings hidden by the effective one, newest first.
func (t Trace[K, V]) Shadowed() []Provenance[V] {
	var out []Provenance[V]
	for _, p := range t.Frames {
		if p.Found && p.Index < t.Effective {
			out = append(out, p)
		}
	}
	return out
}

// ToJSON serialises the trace for logging or transport helpers.
func (t Trace[K, V]) ToJSON() ([]byte, error) {
	return json.Marshal(t)
}

// TraceFromJSON deserialises a payload produced by ToJSON.
func TraceFromJSON[K comparable, V any](payload []byte) (Trace[K, V], error) {
	var trace Trace[K, V]
	if err := json.Unmarshal(payload, &trace); err != nil {
		return Trace[K, V]{}, err
	}
	return trace, nil
}

func buildTrace[K comparable, V any](key K, frames int, lookup func(int) (V, bool)) Trace[K, V] {
	trace := Trace[K, V]{Key: key, Effective: -1, Frames: make([]Provenance[V], 0, frames)}
	for i := frames - 1; i >= 0; i-- {
		v, ok := lookup(i)
		trace.Frames = append(trace.Frames, Provenance[V]{Index: i, Value: v, Found: ok})
		if ok && trace.Effective < 0 {
			trace.Effective = i
		}
	}
	return trace
}

// Trace reports what every frame holds for key.
func (m *Map[K, V]) Trace(key K) Trace[K, V] {
	return buildTrace(key, len(m.frames), func(i int) (V, bool) {
		v, ok := m.frames[i][key]
		return v, ok
	})
}

// Trace reports what every frame holds for key.
func (p *PersistentMap[K, V]) Trace(key K) Trace[K, V] {
	return buildTrace(key, p.frames.Len(), func(i int) (V, bool) {
		return p.frames.Get(i).Get(key)
	})
}
