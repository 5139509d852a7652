//go:build js_eval

package evaluator

import (
	"fmt"

	"github.com/dop251/goja"
)

// scopeObject is the global the wrapped expression runs inside a with
// statement of, so free identifiers are looked up through the resolver.
const scopeObject = "__chainmap_scope"

type jsEvaluator struct {
	cfg engineConfig
}

// NewJS returns an Evaluator backed by goja. Registered functions are
// callable by name or through call("name", args...).
func NewJS(opts ...Option) Evaluator {
	return &jsEvaluator{cfg: applyOptions(opts)}
}

func (e *jsEvaluator) engine() string {
	return "js"
}

func (e *jsEvaluator) Evaluate(ctx Context, expression string) (any, error) {
	program, err := e.load(expression)
	if err != nil {
		return nil, WrapEvaluationError("js", expression, ctx.ScopeLabel(), err)
	}
	return e.run(ctx, expression, program)
}

func (e *jsEvaluator) Compile(expression string) (CompiledRule, error) {
	program, err := e.load(expression)
	if err != nil {
		return nil, err
	}
	return ruleFunc(func(ctx Context) (any, error) {
		return e.run(ctx, expression, program)
	}), nil
}

func (e *jsEvaluator) load(expression string) (*goja.Program, error) {
	if expression == "" {
		return nil, compileError("js", expression, ErrEmptyExpression)
	}
	if cached, ok := e.cfg.load(expression); ok {
		if program, ok := cached.(*goja.Program); ok {
			return program, nil
		}
	}
	source := fmt.Sprintf("(function(){ with (%s) { return (%s); } })()", scopeObject, expression)
	program, err := goja.Compile("", source, false)
	if err != nil {
		return nil, compileError("js", expression, err)
	}
	e.cfg.store(expression, program)
	return program, nil
}

// run uses a fresh runtime per call; goja runtimes are not safe for
// concurrent use.
func (e *jsEvaluator) run(ctx Context, expression string, program *goja.Program) (any, error) {
	vm := goja.New()
	if fns := e.cfg.functions; fns != nil {
		_ = vm.Set("call", func(name string, args ...any) (any, error) {
			return fns.Call(name, args...)
		})
		for _, name := range fns.Names() {
			_ = vm.Set(name, fns.binder(name))
		}
	}
	_ = vm.Set(scopeObject, vm.NewDynamicObject(&jsScope{vm: vm, r: newResolver(ctx)}))

	value, err := vm.RunProgram(program)
	if err != nil {
		return nil, runError("js", expression, ctx, err)
	}
	return value.Export(), nil
}

// jsScope exposes a resolver as a read-only goja object. Writes are
// rejected, so assignments inside an expression never reach the chain.
type jsScope struct {
	vm *goja.Runtime
	r  *resolver
}

func (s *jsScope) Get(key string) goja.Value {
	value, ok := s.r.lookup(key)
	if !ok {
		return nil
	}
	return s.vm.ToValue(value)
}

func (s *jsScope) Set(string, goja.Value) bool {
	return false
}

func (s *jsScope) Has(key string) bool {
	_, ok := s.r.lookup(key)
	return ok
}

func (s *jsScope) Delete(string) bool {
	return false
}

func (s *jsScope) Keys() []string {
	return s.r.names()
}

// JSAvailable reports whether the binary was built with the js_eval tag.
func JSAvailable() bool {
	return true
}
