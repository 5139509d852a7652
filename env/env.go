package env

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/benbjohnson/immutable"
	"github.com/google/uuid"

	chainmap "github.com/goliatone/go-chainmap"
	"github.com/goliatone/go-chainmap/layering"
	"github.com/goliatone/go-chainmap/pkg/activity"
)

// Environment is a lexical scope chain for interpreters and layered
// configuration. Frame 0 is the global frame; the last frame is the current
// scope. Every frame carries a layering.Label.
//
// Fork is O(1) and forks never observe each other's writes. An Environment is
// not safe for concurrent mutation; fork one per goroutine instead.
type Environment struct {
	id      string
	chain   *chainmap.PersistentMap[string, any]
	labels  *immutable.List[layering.Label]
	cfg     config
	emitter *activity.Emitter
}

// New returns an environment holding a single global frame.
func New(opts ...Option) *Environment {
	cfg := applyOptions(opts)
	e := &Environment{
		id:      cfg.id,
		chain:   chainmap.PersistentFromMap(cfg.globals),
		labels:  immutable.NewList(layering.Global()),
		cfg:     cfg,
		emitter: activity.NewEmitter(cfg.hooks, activity.Config{Enabled: len(cfg.hooks) > 0, Channel: cfg.channel}),
	}
	if e.id == "" {
		e.id = uuid.NewString()
	}
	return e
}

// ID identifies the environment in activity events.
func (e *Environment) ID() string {
	return e.id
}

// Depth returns the number of frames.
func (e *Environment) Depth() int {
	return e.chain.Len()
}

// Label returns the label of the current frame.
func (e *Environment) Label() layering.Label {
	return e.labels.Get(e.labels.Len() - 1)
}

// Labels returns frame labels from the global frame to the current one.
func (e *Environment) Labels() []layering.Label {
	out := make([]layering.Label, 0, e.labels.Len())
	for itr := e.labels.Iterator(); !itr.Done(); {
		_, label := itr.Next()
		out = append(out, label)
	}
	return out
}

// Enter pushes an empty frame labelled label.
func (e *Environment) Enter(label layering.Label) error {
	return e.EnterWith(label, nil)
}

// EnterWith pushes a frame labelled label pre-populated with bindings, e.g.
// the parameters of a call.
func (e *Environment) EnterWith(label layering.Label, bindings map[string]any) error {
	if e.cfg.strictNesting && !e.Label().Encloses(label) {
		return fmt.Errorf("%w: %s inside %s", ErrInvalidNesting, label, e.Label())
	}
	if len(bindings) == 0 {
		e.chain.PushChild()
	} else {
		e.chain.PushChildWith(frameOf(bindings))
	}
	e.labels = e.labels.Append(label)
	e.emitScope(activity.BuildScopeEnteredEvent, activity.ScopeEventInput{
		Label:    label.Identifier(),
		Bindings: len(bindings),
	})
	return nil
}

// Leave pops the current frame and returns its bindings and label. Leaving
// the global frame clears it in place and the depth stays at one.
func (e *Environment) Leave() (map[string]any, layering.Label) {
	label := e.Label()
	frame := e.chain.PopChild()
	if n := e.labels.Len(); n > 1 {
		e.labels = e.labels.Slice(0, n-1)
	}
	bindings := bindingsOf(frame)
	e.emitScope(activity.BuildScopeLeftEvent, activity.ScopeEventInput{
		Label:    label.Identifier(),
		Bindings: len(bindings),
	})
	return bindings, label
}

// Define binds name in the current frame, returning any value it replaced in
// that frame. Outer bindings are shadowed, not modified.
func (e *Environment) Define(name string, value any) (any, bool) {
	return e.chain.Insert(name, value)
}

// DefineAt binds name in the frame at depth (0 is global).
func (e *Environment) DefineAt(depth int, name string, value any) (any, bool, error) {
	prev, ok, err := e.chain.InsertAt(depth, name, value)
	if err != nil {
		return nil, false, fmt.Errorf("env: define %q: %w", name, err)
	}
	return prev, ok, nil
}

// Assign updates name in the frame that currently provides it and returns
// that frame's depth. Assigning a name no frame binds fails with ErrUnbound.
func (e *Environment) Assign(name string, value any) (int, error) {
	entry, ok := e.chain.GetMut(name)
	if !ok {
		return -1, fmt.Errorf("%w: %q", ErrUnbound, name)
	}
	if _, err := entry.Set(value); err != nil {
		return -1, fmt.Errorf("env: assign %q: %w", name, err)
	}
	return entry.Index(), nil
}

// Lookup resolves name from the current frame outward.
func (e *Environment) Lookup(name string) (any, bool) {
	return e.chain.Get(name)
}

// LookupBefore resolves name using only frames below depth, e.g. to read the
// binding a local shadows.
func (e *Environment) LookupBefore(depth int, name string) (any, bool) {
	return e.chain.GetBefore(depth, name)
}

// Resolve returns the depth of the frame providing name.
func (e *Environment) Resolve(name string) (int, bool) {
	return e.chain.IndexOf(name)
}

// IsLocal reports whether the current frame binds name itself.
func (e *Environment) IsLocal(name string) bool {
	return e.chain.LeafHas(name)
}

// Trace reports every frame's binding for name.
func (e *Environment) Trace(name string) chainmap.Trace[string, any] {
	return e.chain.Trace(name)
}

// Fork returns an independent environment sharing every frame with e. The
// fork gets a fresh ID and the same configuration.
func (e *Environment) Fork() *Environment {
	fork := e.derive(e.chain.Clone(), e.labels)
	fork.id = uuid.NewString()
	return fork
}

// Hoist detaches the frames at depth and above into a new environment and
// leaves e with the frames below. depth must be in [1, Depth()) so both sides
// keep at least one frame.
func (e *Environment) Hoist(depth int) (*Environment, error) {
	n := e.Depth()
	if depth < 1 || depth >= n {
		return nil, fmt.Errorf("env: hoist depth %d outside [1,%d): %w", depth, n, chainmap.ErrIndexOutOfRange)
	}
	tail, err := e.chain.SplitOff(depth)
	if err != nil {
		return nil, fmt.Errorf("env: hoist: %w", err)
	}
	detached := e.derive(tail, e.labels.Slice(depth, n))
	detached.id = uuid.NewString()
	e.labels = e.labels.Slice(0, depth)

	e.emitScope(activity.BuildScopeHoistedEvent, activity.ScopeEventInput{
		Label:  detached.labels.Get(0).Identifier(),
		Frames: n - depth,
	})
	return detached, nil
}

// Graft appends other's frames on top of e. other is left unchanged; grafting
// an environment onto itself is a no-op. With WithStrictNesting the current
// label must enclose other's outermost label.
func (e *Environment) Graft(other *Environment) error {
	if other == nil {
		return ErrNilEnvironment
	}
	if other == e {
		return nil
	}
	if first := other.labels.Get(0); e.cfg.strictNesting && !e.Label().Encloses(first) {
		return fmt.Errorf("%w: graft %s inside %s", ErrInvalidNesting, first, e.Label())
	}
	e.chain.Append(other.chain.Clone())
	for itr := other.labels.Iterator(); !itr.Done(); {
		_, label := itr.Next()
		e.labels = e.labels.Append(label)
	}
	e.emitScope(activity.BuildScopeGraftedEvent, activity.ScopeEventInput{
		Label:  e.Label().Identifier(),
		Frames: other.Depth(),
	})
	return nil
}

// SharesFrame reports whether e and other hold the identical frame at depth,
// which is true for frames neither side has written since a Fork.
func (e *Environment) SharesFrame(other *Environment, depth int) bool {
	if other == nil {
		return false
	}
	return e.chain.SharesFrame(other.chain, depth)
}

// Chain returns a copy of the underlying chain. Writes to it do not affect e.
func (e *Environment) Chain() *chainmap.PersistentMap[string, any] {
	return e.chain.Clone()
}

func (e *Environment) String() string {
	return fmt.Sprintf("Environment[%s depth=%d leaf=%s]", e.id, e.Depth(), e.Label())
}

func (e *Environment) derive(chain *chainmap.PersistentMap[string, any], labels *immutable.List[layering.Label]) *Environment {
	return &Environment{
		id:      e.id,
		chain:   chain,
		labels:  labels,
		cfg:     e.cfg,
		emitter: e.emitter,
	}
}

func (e *Environment) emitScope(build func(activity.ScopeEventInput) activity.Event, input activity.ScopeEventInput) {
	if !e.emitter.Enabled() {
		return
	}
	input.Actor = e.cfg.actor
	input.EnvID = e.id
	input.Depth = e.Depth()
	e.notify(context.Background(), build(input))
}

func (e *Environment) notify(ctx context.Context, event activity.Event) {
	if err := e.emitter.Emit(ctx, event); err != nil {
		e.cfg.logger.LogAttrs(ctx, slog.LevelWarn, "activity hook failed",
			slog.String("env", e.id),
			slog.String("verb", event.Verb),
			slog.Any("error", err),
		)
	}
}

func frameOf(bindings map[string]any) *immutable.Map[string, any] {
	b := immutable.NewMapBuilder[string, any](nil)
	for name, value := range bindings {
		b.Set(name, value)
	}
	return b.Map()
}

func bindingsOf(frame *immutable.Map[string, any]) map[string]any {
	out := make(map[string]any)
	if frame == nil {
		return out
	}
	for itr := frame.Iterator(); !itr.Done(); {
		name, value, _ := itr.Next()
		out[name] = value
	}
	return out
}
