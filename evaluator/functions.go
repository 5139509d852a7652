package evaluator

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	chainmap "github.com/goliatone/go-chainmap"
)

// Function is a host function callable from expressions.
type Function func(args ...any) (any, error)

// FunctionRegistry holds host functions in frames, like a scope chain: Child
// returns a registry whose registrations shadow the parent's without changing
// it. Names are case-insensitive.
type FunctionRegistry struct {
	mu    sync.RWMutex
	chain *chainmap.PersistentMap[string, Function]
}

// NewFunctionRegistry returns an empty registry with a single frame.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{chain: chainmap.NewPersistentEmpty[string, Function]()}
}

func (r *FunctionRegistry) frames() *chainmap.PersistentMap[string, Function] {
	if r.chain == nil {
		r.chain = chainmap.NewPersistentEmpty[string, Function]()
	}
	return r.chain
}

// Register adds fn under name to the newest frame. A name may shadow one
// registered by a parent but not repeat one in its own frame.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	if fn == nil {
		return fmt.Errorf("evaluator: function %q is nil", name)
	}
	if name == "" {
		return fmt.Errorf("evaluator: function name must not be empty")
	}
	key := strings.ToLower(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frames().LeafHas(key) {
		return fmt.Errorf("evaluator: function %q already registered", name)
	}
	r.frames().Insert(key, fn)
	return nil
}

// Child returns a registry that sees every function of r and registers into
// a frame of its own.
func (r *FunctionRegistry) Child() *FunctionRegistry {
	child := r.Clone()
	child.chain.PushChild()
	return child
}

// Clone returns an independent registry in O(1).
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return NewFunctionRegistry()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return &FunctionRegistry{chain: r.frames().Clone()}
}

// Lookup returns the innermost function registered under name.
func (r *FunctionRegistry) Lookup(name string) (Function, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.chain == nil {
		return nil, false
	}
	return r.chain.Get(strings.ToLower(name))
}

// Call runs the function registered under name.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	if r == nil {
		return nil, fmt.Errorf("evaluator: function registry is nil")
	}
	fn, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("evaluator: function %q not registered", name)
	}
	return fn(args...)
}

// Names returns the visible function names, sorted.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.chain == nil {
		return nil
	}
	names := slices.Collect(r.chain.Keys())
	slices.Sort(names)
	return names
}

// binder returns a closure calling the function registered under name.
func (r *FunctionRegistry) binder(name string) func(...any) (any, error) {
	return func(args ...any) (any, error) {
		return r.Call(name, args...)
	}
}
