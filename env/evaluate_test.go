package env

import (
	"errors"
	"testing"

	"github.com/goliatone/go-chainmap/evaluator"
)

func TestEvaluateUsesVisibleBindings(t *testing.T) {
	e := New(WithGlobals(map[string]any{"limit": 10, "name": "svc"}))
	_ = e.Enter(mainFn)
	e.Define("limit", 3)

	got, err := e.Evaluate(`limit < 5 && name == "svc"`)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got != true {
		t.Fatalf("expected leaf binding to win, got %#v", got)
	}

	fork := e.Fork()
	fork.Define("limit", 50)
	if got, _ := e.Evaluate(`limit`); got != 3 {
		t.Fatalf("fork must not affect parent evaluation, got %#v", got)
	}
}

func TestEvaluateLogsScope(t *testing.T) {
	var events []evaluator.LogEvent
	e := New(WithEvaluatorLogger(evaluator.LoggerFunc(func(event evaluator.LogEvent) {
		events = append(events, event)
	})))
	_ = e.Enter(mainFn)

	if _, err := e.Evaluate(`1 +`); err == nil {
		t.Fatalf("expected syntax error")
	}
	var evalErr *evaluator.EvaluationError
	_, err := e.Evaluate(`1 +`)
	if !errors.As(err, &evalErr) || evalErr.Scope != "function:main" || evalErr.Engine != "expr" {
		t.Fatalf("expected scoped EvaluationError, got %v", err)
	}
	if len(events) != 2 || events[0].Scope != "function:main" {
		t.Fatalf("unexpected log events %+v", events)
	}
}

func TestEvaluateWithOverrides(t *testing.T) {
	e := New(WithGlobals(map[string]any{"x": 1}))
	got, err := e.EvaluateWith(evaluator.Context{
		Bindings: map[string]any{"x": 41},
		Args:     map[string]any{"delta": 1},
	}, `x + args.delta`)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got != 42 {
		t.Fatalf("expected explicit bindings to be used, got %#v", got)
	}
}

func TestCustomFunctionsAndEngines(t *testing.T) {
	e := New(
		WithGlobals(map[string]any{"n": 4}),
		WithCustomFunction("double", func(args ...any) (any, error) {
			return args[0].(int) * 2, nil
		}),
	)
	got, err := e.Evaluate(`double(n)`)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got != 8 {
		t.Fatalf("expected 8, got %#v", got)
	}

	cel := New(WithGlobals(map[string]any{"n": 4}), WithEvaluator(evaluator.NewCEL()))
	got, err = cel.Evaluate(`n * 2`)
	if err != nil {
		t.Fatalf("cel evaluate: %v", err)
	}
	if got != int64(8) {
		t.Fatalf("expected cel int64 8, got %#v", got)
	}
	if evaluator.EngineName(cel.Evaluator()) != "cel" {
		t.Fatalf("expected cel engine")
	}
}

func TestEvaluateWithoutEvaluator(t *testing.T) {
	e := New()
	e.cfg.evaluator = nil
	if _, err := e.Evaluate("1"); !errors.Is(err, evaluator.ErrNoEvaluator) {
		t.Fatalf("expected ErrNoEvaluator, got %v", err)
	}
}

func TestEvaluateMatchesLookupAcrossEngines(t *testing.T) {
	cases := []struct {
		engine evaluator.Evaluator
		expr   string
	}{
		{evaluator.NewExpr(), `x == nil && scope == "configured"`},
		{evaluator.NewCEL(), `x == null && scope == "configured"`},
	}
	for _, tc := range cases {
		name := evaluator.EngineName(tc.engine)
		e := New(WithGlobals(map[string]any{"x": 1, "scope": "configured"}), WithEvaluator(tc.engine))
		_ = e.Enter(mainFn)
		e.Define("x", nil)

		got, err := e.Evaluate(tc.expr)
		if err != nil {
			t.Fatalf("%s: evaluate: %v", name, err)
		}
		if got != true {
			t.Fatalf("%s: expected shadowed nil and chain scope binding, got %#v", name, got)
		}
	}
}
