package evaluator

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoEvaluator is returned by Run when no evaluator is configured.
	ErrNoEvaluator = errors.New("evaluator: not configured")
	// ErrEmptyExpression is returned for blank expressions.
	ErrEmptyExpression = errors.New("evaluator: expression must not be empty")
)

// Phase names the step an evaluation failed in.
type Phase string

const (
	PhaseCompile Phase = "compile"
	PhaseRun     Phase = "run"
)

// EvaluationError reports which engine failed on which expression, in which
// scope and phase.
type EvaluationError struct {
	Engine string
	Expr   string
	Scope  string
	Phase  Phase
	Err    error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString("evaluator: ")
	b.WriteString(e.Engine)
	if e.Phase != "" {
		b.WriteString(" ")
		b.WriteString(string(e.Phase))
	}
	if e.Scope != "" {
		fmt.Fprintf(&b, " in %s", e.Scope)
	}
	fmt.Fprintf(&b, " %q: %v", e.Expr, e.Err)
	return b.String()
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func compileError(engine, expr string, err error) error {
	return &EvaluationError{Engine: engine, Expr: expr, Phase: PhaseCompile, Err: err}
}

func runError(engine, expr string, ctx Context, err error) error {
	return &EvaluationError{Engine: engine, Expr: expr, Scope: ctx.ScopeLabel(), Phase: PhaseRun, Err: err}
}

// WrapEvaluationError attaches engine, expression and scope to err. An
// EvaluationError already in the chain has its blank fields filled instead of
// being wrapped again.
func WrapEvaluationError(engine, expr, scope string, err error) error {
	if err == nil {
		return nil
	}
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		return &EvaluationError{Engine: engine, Expr: expr, Scope: scope, Err: err}
	}
	if evalErr.Engine == "" {
		evalErr.Engine = engine
	}
	if evalErr.Expr == "" {
		evalErr.Expr = expr
	}
	if evalErr.Scope == "" {
		evalErr.Scope = scope
	}
	return evalErr
}
