package env

import (
	"github.com/goliatone/go-chainmap/evaluator"
	"github.com/goliatone/go-chainmap/pkg/hydrate"
	"github.com/goliatone/go-chainmap/layering"
)

// Bindings returns the visible view: every name bound anywhere in the chain
// with the value Lookup would return.
func (e *Environment) Bindings() map[string]any {
	return e.chain.Flatten()
}

// Snapshot returns the visible view with nested map[string]any values merged
// across frames, so a leaf binding {"db": {"host": h}} keeps the port an
// outer frame set under "db". The result shares no maps with the chain.
func (e *Environment) Snapshot() map[string]any {
	frames := make([]map[string]any, 0, e.Depth())
	for i := e.Depth() - 1; i >= 0; i-- {
		frame, err := e.chain.Frame(i)
		if err != nil {
			continue
		}
		frames = append(frames, bindingsOf(frame))
	}
	return layering.MergeBindings(frames...)
}

// Decode hydrates a T from the environment's Snapshot through JSON tags.
func Decode[T any](e *Environment, opts ...hydrate.DecoderOption[T]) (T, error) {
	ctx := hydrate.Context{
		Scope: e.Label().Identifier(),
		Depth: e.Depth(),
	}
	return hydrate.NewDecoder(opts...).Decode(ctx, e.Snapshot())
}

// Evaluate runs expr with the configured evaluator. Names resolve through
// the chain exactly as Lookup resolves them, and the current frame label is
// reported as the evaluation scope.
func (e *Environment) Evaluate(expr string) (any, error) {
	return e.EvaluateWith(evaluator.Context{}, expr)
}

// EvaluateWith runs expr with ctx. The chain is always the environment's;
// ctx.Bindings shadow it for this call only. Scope defaults to the current
// frame label.
func (e *Environment) EvaluateWith(ctx evaluator.Context, expr string) (any, error) {
	ctx.Chain = e.chain.Clone()
	if ctx.Scope == "" {
		ctx.Scope = e.Label().Identifier()
	}
	return evaluator.Run(e.cfg.evaluator, e.cfg.evalLogger, ctx, expr)
}

// Evaluator returns the evaluator used by Evaluate.
func (e *Environment) Evaluator() evaluator.Evaluator {
	return e.cfg.evaluator
}
