package evaluator

import (
	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
	"github.com/google/cel-go/interpreter"
)

// celEvaluator runs cel-go programs built from parsed, unchecked ASTs, so no
// variable has to be declared ahead of time. Identifiers are resolved through
// an activation that asks the Context for each name when the program reads it.
type celEvaluator struct {
	cfg    engineConfig
	env    *celgo.Env
	envErr error
}

// NewCEL returns an Evaluator backed by cel-go. Registered functions are
// reachable as call("name", [args...]).
func NewCEL(opts ...Option) Evaluator {
	e := &celEvaluator{cfg: applyOptions(opts)}
	var envOpts []celgo.EnvOption
	if e.cfg.functions != nil {
		envOpts = append(envOpts, celgo.Function("call",
			celgo.Overload("call_string_list",
				[]*celgo.Type{celgo.StringType, celgo.ListType(celgo.DynType)},
				celgo.DynType,
				celgo.BinaryBinding(e.call),
			),
		))
	}
	e.env, e.envErr = celgo.NewEnv(envOpts...)
	return e
}

func (e *celEvaluator) engine() string {
	return "cel"
}

func (e *celEvaluator) Evaluate(ctx Context, expression string) (any, error) {
	program, err := e.load(expression)
	if err != nil {
		return nil, WrapEvaluationError("cel", expression, ctx.ScopeLabel(), err)
	}
	return e.run(ctx, expression, program)
}

func (e *celEvaluator) Compile(expression string) (CompiledRule, error) {
	program, err := e.load(expression)
	if err != nil {
		return nil, err
	}
	return ruleFunc(func(ctx Context) (any, error) {
		return e.run(ctx, expression, program)
	}), nil
}

func (e *celEvaluator) load(expression string) (celgo.Program, error) {
	if expression == "" {
		return nil, compileError("cel", expression, ErrEmptyExpression)
	}
	if e.envErr != nil {
		return nil, compileError("cel", expression, e.envErr)
	}
	if cached, ok := e.cfg.load(expression); ok {
		if program, ok := cached.(celgo.Program); ok {
			return program, nil
		}
	}
	parsed, issues := e.env.Parse(expression)
	if issues != nil && issues.Err() != nil {
		return nil, compileError("cel", expression, issues.Err())
	}
	program, err := e.env.Program(parsed)
	if err != nil {
		return nil, compileError("cel", expression, err)
	}
	e.cfg.store(expression, program)
	return program, nil
}

func (e *celEvaluator) run(ctx Context, expression string, program celgo.Program) (any, error) {
	out, _, err := program.Eval(activation{newResolver(ctx)})
	if err != nil {
		return nil, runError("cel", expression, ctx, err)
	}
	return out.Value(), nil
}

// activation adapts a resolver to cel-go's name resolution.
type activation struct {
	r *resolver
}

func (a activation) ResolveName(name string) (any, bool) {
	return a.r.lookup(name)
}

func (a activation) Parent() interpreter.Activation {
	return nil
}

func (e *celEvaluator) call(nameVal, argsVal ref.Val) ref.Val {
	name, ok := nameVal.Value().(string)
	if !ok {
		return types.NewErr("evaluator: call name must be a string")
	}
	lister, ok := argsVal.(traits.Lister)
	if !ok {
		return types.NewErr("evaluator: call arguments must be a list")
	}
	size, _ := lister.Size().Value().(int64)
	args := make([]any, 0, size)
	for i := int64(0); i < size; i++ {
		args = append(args, lister.Get(types.Int(i)).Value())
	}
	result, err := e.cfg.functions.Call(name, args...)
	if err != nil {
		return types.NewErr("%s", err.Error())
	}
	if result == nil {
		return types.NullValue
	}
	return types.DefaultTypeAdapter.NativeToValue(result)
}
