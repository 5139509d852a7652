package evaluator

import (
	"iter"
	"time"
)

// Chain is the read side of a scope chain. *chainmap.Map[string, any] and
// *chainmap.PersistentMap[string, any] both satisfy it.
type Chain interface {
	Get(name string) (any, bool)
	Keys() iter.Seq[string]
}

// Context carries the inputs an expression is evaluated against.
//
// Names resolve in this order: Bindings, then Chain from the leaf frame
// outward, then the builtins now, args, metadata and scope. A binding or chain
// entry called "scope" therefore hides the builtin in every engine.
type Context struct {
	// Chain is consulted name by name; nothing is copied out of it up front.
	Chain    Chain
	// Bindings shadow the chain for a single call.
	Bindings map[string]any
	Now      *time.Time
	Args     map[string]any
	Metadata map[string]any
	// Scope is the label of the frame the expression runs in.
	Scope    string
}

// ScopeLabel returns the scope name used in errors and log events.
func (ctx Context) ScopeLabel() string {
	if ctx.Scope != "" {
		return ctx.Scope
	}
	return "unknown"
}

// Evaluator executes expressions against a Context.
type Evaluator interface {
	Evaluate(ctx Context, expr string) (any, error)
	Compile(expr string) (CompiledRule, error)
}

// CompiledRule is a parsed expression that can run against many contexts.
type CompiledRule interface {
	Evaluate(ctx Context) (any, error)
}

type engine interface {
	engine() string
}

// EngineName reports the engine backing e: expr, cel, js, or custom for
// evaluators defined outside this package.
func EngineName(e Evaluator) string {
	if e == nil {
		return "unknown"
	}
	if named, ok := e.(engine); ok {
		return named.engine()
	}
	return "custom"
}
