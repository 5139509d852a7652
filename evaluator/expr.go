package evaluator

import (
	"fmt"

	exprlang "github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
	exprvm "github.com/expr-lang/expr/vm"
)

// exprEvaluator runs github.com/expr-lang/expr programs. Each program records
// the identifiers it references, and a run resolves only those names.
type exprEvaluator struct {
	cfg engineConfig
}

type exprProgram struct {
	program *exprvm.Program
	names   []string
}

// NewExpr returns an Evaluator backed by expr-lang/expr. Registered functions
// are callable by name or through call("name", args...).
func NewExpr(opts ...Option) Evaluator {
	return &exprEvaluator{cfg: applyOptions(opts)}
}

func (e *exprEvaluator) engine() string {
	return "expr"
}

func (e *exprEvaluator) Evaluate(ctx Context, expression string) (any, error) {
	program, err := e.load(expression)
	if err != nil {
		return nil, WrapEvaluationError("expr", expression, ctx.ScopeLabel(), err)
	}
	return e.run(ctx, expression, program)
}

func (e *exprEvaluator) Compile(expression string) (CompiledRule, error) {
	program, err := e.load(expression)
	if err != nil {
		return nil, err
	}
	return ruleFunc(func(ctx Context) (any, error) {
		return e.run(ctx, expression, program)
	}), nil
}

func (e *exprEvaluator) load(expression string) (*exprProgram, error) {
	if expression == "" {
		return nil, compileError("expr", expression, ErrEmptyExpression)
	}
	if cached, ok := e.cfg.load(expression); ok {
		if program, ok := cached.(*exprProgram); ok {
			return program, nil
		}
	}

	tree, err := parser.Parse(expression)
	if err != nil {
		return nil, compileError("expr", expression, err)
	}
	collector := &identifiers{seen: map[string]struct{}{}}
	ast.Walk(&tree.Node, collector)

	// builtins are declared without a type so a chain binding of any type may
	// replace them at run time
	declared := map[string]any{
		builtinNow:      nil,
		builtinArgs:     nil,
		builtinMetadata: nil,
		builtinScope:    nil,
	}
	options := []exprlang.Option{
		exprlang.Env(declared),
		exprlang.AllowUndefinedVariables(),
	}
	if fns := e.cfg.functions; fns != nil {
		options = append(options, exprlang.Function("call", func(args ...any) (any, error) {
			if len(args) == 0 {
				return nil, fmt.Errorf("evaluator: call expects a function name")
			}
			name, ok := args[0].(string)
			if !ok {
				return nil, fmt.Errorf("evaluator: call name must be a string, got %T", args[0])
			}
			return fns.Call(name, args[1:]...)
		}))
		for _, name := range fns.Names() {
			if name != "call" {
				options = append(options, exprlang.Function(name, fns.binder(name)))
			}
		}
	}
	compiled, err := exprlang.Compile(expression, options...)
	if err != nil {
		return nil, compileError("expr", expression, err)
	}

	program := &exprProgram{program: compiled, names: collector.names}
	e.cfg.store(expression, program)
	return program, nil
}

func (e *exprEvaluator) run(ctx Context, expression string, program *exprProgram) (any, error) {
	r := newResolver(ctx)
	env := make(map[string]any, len(program.names))
	for _, name := range program.names {
		if value, ok := r.lookup(name); ok {
			env[name] = value
		}
	}
	result, err := exprlang.Run(program.program, env)
	if err != nil {
		return nil, runError("expr", expression, ctx, err)
	}
	return result, nil
}

// identifiers collects the free names an expression reads.
type identifiers struct {
	seen  map[string]struct{}
	names []string
}

func (c *identifiers) Visit(node *ast.Node) {
	ident, ok := (*node).(*ast.IdentifierNode)
	if !ok {
		return
	}
	if _, dup := c.seen[ident.Value]; dup {
		return
	}
	c.seen[ident.Value] = struct{}{}
	c.names = append(c.names, ident.Value)
}

type ruleFunc func(Context) (any, error)

func (f ruleFunc) Evaluate(ctx Context) (any, error) {
	return f(ctx)
}
