package evaluator

import (
	"errors"
	"strings"
	"testing"
)

func TestWrapEvaluationErrorCreatesMetadata(t *testing.T) {
	base := errors.New("boom")
	err := WrapEvaluationError("expr", "flag && missing", "function:main", base)

	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected EvaluationError, got %T", err)
	}
	if evalErr.Engine != "expr" {
		t.Fatalf("expected engine expr, got %q", evalErr.Engine)
	}
	if evalErr.Expr != "flag && missing" {
		t.Fatalf("expected expression metadata, got %q", evalErr.Expr)
	}
	if evalErr.Scope != "function:main" {
		t.Fatalf("expected scope metadata, got %q", evalErr.Scope)
	}
	if !errors.Is(evalErr.Err, base) {
		t.Fatalf("wrapped error should unwrap to base error")
	}
	if !strings.HasPrefix(err.Error(), "evaluator: expr ") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestWrapEvaluationErrorAugmentsExisting(t *testing.T) {
	base := errors.New("compile failure")
	existing := &EvaluationError{
		Engine: "expr",
		Err:    base,
	}

	err := WrapEvaluationError("cel", "rule", "block:7", existing)
	if !errors.Is(err, base) {
		t.Fatalf("expected base error to unwrap")
	}
	if existing.Engine != "expr" {
		t.Fatalf("existing engine should not be overwritten, got %q", existing.Engine)
	}
	if existing.Expr != "rule" {
		t.Fatalf("expression should be filled, got %q", existing.Expr)
	}
	if existing.Scope != "block:7" {
		t.Fatalf("scope should be filled, got %q", existing.Scope)
	}
}

func TestEvaluationErrorMessage(t *testing.T) {
	err := &EvaluationError{
		Engine: "cel",
		Expr:   "x +",
		Scope:  "function:main",
		Phase:  PhaseCompile,
		Err:    errors.New("syntax"),
	}
	if got, want := err.Error(), `evaluator: cel compile in function:main "x +": syntax`; got != want {
		t.Fatalf("unexpected message:\nwant %s\n got %s", want, got)
	}

	_, empty := NewExpr().Evaluate(Context{}, "")
	if !errors.Is(empty, ErrEmptyExpression) {
		t.Fatalf("expected ErrEmptyExpression, got %v", empty)
	}
	var evalErr *EvaluationError
	if !errors.As(empty, &evalErr) || evalErr.Phase != PhaseCompile || evalErr.Scope != "unknown" {
		t.Fatalf("expected compile-phase error with scope filled, got %+v", evalErr)
	}

	var nilErr *EvaluationError
	if nilErr.Error() != "<nil>" || nilErr.Unwrap() != nil {
		t.Fatalf("expected nil-safe EvaluationError")
	}
	if WrapEvaluationError("expr", "x", "global", nil) != nil {
		t.Fatalf("expected nil passthrough")
	}
}
