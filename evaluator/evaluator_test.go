package evaluator

import (
	"bytes"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"testing"
	"time"

	chainmap "github.com/goliatone/go-chainmap"
)

var engineFactories = []struct {
	name string
	new  func(opts ...Option) Evaluator
}{
	{name: "expr", new: NewExpr},
	{name: "cel", new: NewCEL},
	{name: "js", new: NewJS},
}

func scopeBindings() map[string]any {
	return map[string]any{
		"limit":   10,
		"name":    "svc",
		"enabled": true,
	}
}

func scopeChain() *chainmap.PersistentMap[string, any] {
	chain := chainmap.PersistentFromMap(map[string]any{"limit": 10, "name": "svc"})
	chain.PushChild()
	chain.Insert("enabled", true)
	return chain
}

func TestEnginesEvaluateBindings(t *testing.T) {
	for _, factory := range engineFactories {
		t.Run(factory.name, func(t *testing.T) {
			for _, cache := range []ProgramCache{nil, NewMapCache()} {
				e := factory.new(WithProgramCache(cache))
				if e == nil {
					t.Skipf("%s evaluator not available in this build", factory.name)
				}
				ctx := Context{Chain: scopeChain(), Scope: "function:main"}
				got, err := e.Evaluate(ctx, `enabled && limit > 5 && name == "svc"`)
				if err != nil {
					t.Fatalf("evaluate: %v", err)
				}
				if got != true {
					t.Fatalf("expected true, got %#v", got)
				}
			}
		})
	}
}

func TestEnginesCompiledRuleReusesProgram(t *testing.T) {
	for _, factory := range engineFactories {
		t.Run(factory.name, func(t *testing.T) {
			e := factory.new(WithProgramCache(NewMapCache()))
			if e == nil {
				t.Skipf("%s evaluator not available in this build", factory.name)
			}
			rule, err := e.Compile(`limit > 5`)
			if err != nil {
				t.Fatalf("compile: %v", err)
			}
			for limit, want := range map[int]bool{1: false, 6: true} {
				got, err := rule.Evaluate(Context{Bindings: map[string]any{"limit": limit}})
				if err != nil {
					t.Fatalf("evaluate limit=%d: %v", limit, err)
				}
				if got != want {
					t.Fatalf("limit=%d: expected %v, got %#v", limit, want, got)
				}
			}
		})
	}
}

func TestEnginesRejectEmptyExpression(t *testing.T) {
	for _, factory := range engineFactories {
		t.Run(factory.name, func(t *testing.T) {
			e := factory.new()
			if e == nil {
				t.Skipf("%s evaluator not available in this build", factory.name)
			}
			if _, err := e.Evaluate(Context{}, ""); !errors.Is(err, ErrEmptyExpression) {
				t.Fatalf("expected ErrEmptyExpression, got %v", err)
			}
			if _, err := e.Compile(""); !errors.Is(err, ErrEmptyExpression) {
				t.Fatalf("expected ErrEmptyExpression from compile, got %v", err)
			}
		})
	}
}

func TestEnginesReportScopeOnFailure(t *testing.T) {
	for _, factory := range engineFactories {
		t.Run(factory.name, func(t *testing.T) {
			e := factory.new()
			if e == nil {
				t.Skipf("%s evaluator not available in this build", factory.name)
			}
			_, err := e.Evaluate(Context{Scope: "block:loop"}, `limit >`)
			var evalErr *EvaluationError
			if !errors.As(err, &evalErr) {
				t.Fatalf("expected EvaluationError, got %T (%v)", err, err)
			}
			if evalErr.Engine != factory.name {
				t.Fatalf("expected engine %s, got %q", factory.name, evalErr.Engine)
			}
			if evalErr.Expr != "limit >" || evalErr.Phase != PhaseCompile || evalErr.Scope != "block:loop" {
				t.Fatalf("unexpected failure metadata %+v", evalErr)
			}
		})
	}
}

func asInt(value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("unsupported argument %T", value)
	}
}

func doubleRegistry(t *testing.T) *FunctionRegistry {
	t.Helper()
	registry := NewFunctionRegistry()
	err := registry.Register("double", func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("double expects one argument")
		}
		n, err := asInt(args[0])
		if err != nil {
			return nil, err
		}
		return n * 2, nil
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return registry
}

func TestExprCallsRegisteredFunctions(t *testing.T) {
	e := NewExpr(WithFunctionRegistry(doubleRegistry(t)), WithProgramCache(NewMapCache()))
	got, err := e.Evaluate(Context{Bindings: scopeBindings()}, `double(limit) == 20 && call("double", 2) == 4`)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got != true {
		t.Fatalf("expected true, got %#v", got)
	}
}

func TestCELCallsRegisteredFunctions(t *testing.T) {
	e := NewCEL(WithFunctionRegistry(doubleRegistry(t)))
	got, err := e.Evaluate(Context{Bindings: scopeBindings()}, `call("double", [limit]) == 20`)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got != true {
		t.Fatalf("expected true, got %#v", got)
	}
}

func TestCELProgramsAreCachedByExpression(t *testing.T) {
	cache := NewMapCache()
	e := NewCEL(WithProgramCache(cache))
	for _, bindings := range []map[string]any{{"x": 1, "y": 2}, {"x": 1, "y": 2, "z": 0}} {
		got, err := e.Evaluate(Context{Bindings: bindings}, `x + y`)
		if err != nil {
			t.Fatalf("evaluate: %v", err)
		}
		if got != int64(3) {
			t.Fatalf("expected 3, got %#v", got)
		}
	}
	if cache.Len() != 1 {
		t.Fatalf("expected one cached program regardless of binding names, got %d", cache.Len())
	}
	_, err := e.Evaluate(Context{}, `x + y`)
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) || evalErr.Phase != PhaseRun {
		t.Fatalf("expected unresolved name to fail at run time, got %v", err)
	}
}

func TestEnginesResolveNamesInTheSameOrder(t *testing.T) {
	chain := chainmap.PersistentFromMap(map[string]any{"scope": "chain", "level": 1})
	chain.PushChild()
	chain.Insert("level", 2)

	cases := []struct {
		name string
		ctx  Context
		expr string
		want any
	}{
		{
			name: "chain hides builtin",
			ctx:  Context{Chain: chain, Scope: "function:main"},
			expr: `scope == "chain"`,
			want: true,
		},
		{
			name: "bindings hide chain",
			ctx:  Context{Chain: chain, Bindings: map[string]any{"scope": "local"}, Scope: "function:main"},
			expr: `scope == "local"`,
			want: true,
		},
		{
			name: "builtin when unbound",
			ctx:  Context{Scope: "function:main"},
			expr: `scope == "function:main"`,
			want: true,
		},
		{
			name: "leaf frame wins",
			ctx:  Context{Chain: chain},
			expr: `level == 2`,
			want: true,
		},
	}

	for _, factory := range engineFactories {
		e := factory.new()
		if e == nil {
			continue
		}
		for _, tc := range cases {
			t.Run(factory.name+"/"+tc.name, func(t *testing.T) {
				got, err := e.Evaluate(tc.ctx, tc.expr)
				if err != nil {
					t.Fatalf("evaluate: %v", err)
				}
				if got != tc.want {
					t.Fatalf("expected %v, got %#v", tc.want, got)
				}
			})
		}
	}
}

func TestExprResolvesOnlyReferencedNames(t *testing.T) {
	chain := &countingChain{values: map[string]any{"a": 1, "b": 2, "c": 3}}
	got, err := NewExpr().Evaluate(Context{Chain: chain}, `a + a`)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got != 2 {
		t.Fatalf("expected 2, got %#v", got)
	}
	if len(chain.gets) != 1 || chain.gets[0] != "a" {
		t.Fatalf("expected a single lookup of a, got %v", chain.gets)
	}
}

func TestCELResolvesNamesLazily(t *testing.T) {
	chain := &countingChain{values: map[string]any{"flag": false, "limit": 3}}
	got, err := NewCEL().Evaluate(Context{Chain: chain}, `flag && limit > 1`)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got != false {
		t.Fatalf("expected false, got %#v", got)
	}
	if slices.Contains(chain.gets, "limit") {
		t.Fatalf("expected short circuit to skip limit, lookups %v", chain.gets)
	}
}

// countingChain records every Get.
type countingChain struct {
	values map[string]any
	gets   []string
}

func (c *countingChain) Get(name string) (any, bool) {
	c.gets = append(c.gets, name)
	v, ok := c.values[name]
	return v, ok
}

func (c *countingChain) Keys() iter.Seq[string] {
	return maps.Keys(c.values)
}

func TestFunctionRegistryGuards(t *testing.T) {
	registry := NewFunctionRegistry()
	if err := registry.Register("f", nil); err == nil {
		t.Fatalf("expected nil function to be rejected")
	}
	if err := registry.Register("", func(...any) (any, error) { return nil, nil }); err == nil {
		t.Fatalf("expected empty name to be rejected")
	}
	fn := func(...any) (any, error) { return "ok", nil }
	if err := registry.Register("Greet", fn); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register("greet", fn); err == nil {
		t.Fatalf("expected duplicate to be rejected case-insensitively")
	}
	clone := registry.Clone()
	if err := clone.Register("other", fn); err != nil {
		t.Fatalf("register on clone: %v", err)
	}
	if len(registry.Names()) != 1 || len(clone.Names()) != 2 {
		t.Fatalf("expected clone to be independent: %v vs %v", registry.Names(), clone.Names())
	}
	if _, err := registry.Call("missing"); err == nil {
		t.Fatalf("expected unknown function to fail")
	}
	var nilRegistry *FunctionRegistry
	if _, err := nilRegistry.Call("greet"); err == nil {
		t.Fatalf("expected nil registry to fail")
	}
}

func TestFunctionRegistryChildShadows(t *testing.T) {
	parent := NewFunctionRegistry()
	_ = parent.Register("label", func(...any) (any, error) { return "parent", nil })
	_ = parent.Register("shared", func(...any) (any, error) { return "shared", nil })

	child := parent.Child()
	if err := child.Register("LABEL", func(...any) (any, error) { return "child", nil }); err != nil {
		t.Fatalf("expected child to shadow a parent function: %v", err)
	}
	if got, _ := child.Call("label"); got != "child" {
		t.Fatalf("expected child function, got %v", got)
	}
	if got, _ := parent.Call("label"); got != "parent" {
		t.Fatalf("parent must not see child registrations, got %v", got)
	}
	if got, _ := child.Call("shared"); got != "shared" {
		t.Fatalf("expected child to reach parent functions, got %v", got)
	}
	if names := child.Names(); !slices.Equal(names, []string{"label", "shared"}) {
		t.Fatalf("unexpected names %v", names)
	}

	got, err := NewExpr(WithFunctionRegistry(child)).Evaluate(Context{}, `label() + "/" + call("shared")`)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got != "child/shared" {
		t.Fatalf("unexpected result %#v", got)
	}
}

func TestRunLogsEvaluation(t *testing.T) {
	var events []LogEvent
	logger := LoggerFunc(func(event LogEvent) {
		events = append(events, event)
	})
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	ctx := Context{Bindings: scopeBindings(), Now: &now, Scope: "module:core"}

	got, err := Run(NewExpr(), logger, ctx, `limit * 2`)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got != 20 {
		t.Fatalf("expected 20, got %#v", got)
	}
	if _, err := Run(NewExpr(), logger, ctx, `limit +`); err == nil {
		t.Fatalf("expected syntax error")
	}
	if len(events) != 2 {
		t.Fatalf("expected two log events, got %d", len(events))
	}
	if events[0].Engine != "expr" || events[0].Scope != "module:core" || events[0].Err != nil {
		t.Fatalf("unexpected success event %+v", events[0])
	}
	if events[1].Err == nil {
		t.Fatalf("expected failure event to carry the error")
	}
}

func TestRunWithoutEvaluator(t *testing.T) {
	if _, err := Run(nil, nil, Context{}, "1"); !errors.Is(err, ErrNoEvaluator) {
		t.Fatalf("expected ErrNoEvaluator, got %v", err)
	}
	if _, err := Run(NewExpr(), nil, Context{}, ""); !errors.Is(err, ErrEmptyExpression) {
		t.Fatalf("expected ErrEmptyExpression, got %v", err)
	}
}

func TestSlogLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := SlogLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	logger.LogEvaluation(LogEvent{Engine: "cel", Expr: "x", Scope: "global"})
	logger.LogEvaluation(LogEvent{Engine: "cel", Expr: "y", Err: errors.New("boom")})

	out := buf.String()
	if !strings.Contains(out, "evaluation completed") || !strings.Contains(out, "engine=cel") {
		t.Fatalf("missing success line: %s", out)
	}
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "error=boom") {
		t.Fatalf("missing failure line: %s", out)
	}
}

func TestEngineName(t *testing.T) {
	if EngineName(NewExpr()) != "expr" || EngineName(NewCEL()) != "cel" {
		t.Fatalf("unexpected engine names")
	}
	if EngineName(nil) != "unknown" {
		t.Fatalf("expected unknown for nil evaluator")
	}
	if js := NewJS(); js != nil && EngineName(js) != "js" {
		t.Fatalf("expected js engine name")
	}
}
