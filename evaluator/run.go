package evaluator

import "time"

// Run evaluates expr with e against ctx and reports the attempt to logger.
// Failures come back as *EvaluationError carrying the scope label. A nil
// logger discards the event.
func Run(e Evaluator, logger Logger, ctx Context, expr string) (any, error) {
	if expr == "" {
		return nil, ErrEmptyExpression
	}
	if e == nil {
		return nil, ErrNoEvaluator
	}
	if logger == nil {
		logger = NoopLogger()
	}
	name, scope := EngineName(e), ctx.ScopeLabel()

	start := time.Now()
	value, err := e.Evaluate(ctx, expr)
	err = WrapEvaluationError(name, expr, scope, err)
	logger.LogEvaluation(LogEvent{
		Engine:   name,
		Expr:     expr,
		Scope:    scope,
		Duration: time.Since(start),
		Err:      err,
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}
