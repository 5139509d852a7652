package evaluator

import (
	"slices"
	"time"
)

const (
	builtinNow      = "now"
	builtinArgs     = "args"
	builtinMetadata = "metadata"
	builtinScope    = "scope"
)

// resolver answers name lookups for one evaluation.
type resolver struct {
	ctx      Context
	builtins map[string]any
}

func newResolver(ctx Context) *resolver {
	now := time.Now()
	if ctx.Now != nil {
		now = *ctx.Now
	}
	args, metadata := ctx.Args, ctx.Metadata
	if args == nil {
		args = map[string]any{}
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	return &resolver{
		ctx: ctx,
		builtins: map[string]any{
			builtinNow:      now,
			builtinArgs:     args,
			builtinMetadata: metadata,
			builtinScope:    ctx.ScopeLabel(),
		},
	}
}

func (r *resolver) lookup(name string) (any, bool) {
	if value, ok := r.ctx.Bindings[name]; ok {
		return value, true
	}
	if r.ctx.Chain != nil {
		if value, ok := r.ctx.Chain.Get(name); ok {
			return value, true
		}
	}
	value, ok := r.builtins[name]
	return value, ok
}

// names returns every resolvable name, sorted.
func (r *resolver) names() []string {
	seen := make(map[string]struct{}, len(r.builtins)+len(r.ctx.Bindings))
	for name := range r.builtins {
		seen[name] = struct{}{}
	}
	for name := range r.ctx.Bindings {
		seen[name] = struct{}{}
	}
	if r.ctx.Chain != nil {
		for name := range r.ctx.Chain.Keys() {
			seen[name] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}
