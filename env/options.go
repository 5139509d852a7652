package env

import (
	"log/slog"
	"maps"

	"github.com/goliatone/go-chainmap/evaluator"
	"github.com/goliatone/go-chainmap/pkg/activity"
)

// Option configures an Environment.
type Option func(*config)

type config struct {
	id            string
	globals       map[string]any
	evaluator     evaluator.Evaluator
	evalLogger    evaluator.Logger
	cache         evaluator.ProgramCache
	functions     *evaluator.FunctionRegistry
	logger        *slog.Logger
	hooks         activity.Hooks
	channel       string
	actor         activity.Actor
	strictNesting bool
}

// WithID sets the environment identifier used in activity events. A random
// UUID is used otherwise.
func WithID(id string) Option {
	return func(cfg *config) {
		cfg.id = id
	}
}

// WithGlobals seeds the global frame.
func WithGlobals(globals map[string]any) Option {
	return func(cfg *config) {
		cfg.globals = maps.Clone(globals)
	}
}

// WithEvaluator replaces the default expr evaluator.
func WithEvaluator(e evaluator.Evaluator) Option {
	return func(cfg *config) {
		cfg.evaluator = e
	}
}

// WithEvaluatorLogger records every Evaluate call.
func WithEvaluatorLogger(logger evaluator.Logger) Option {
	return func(cfg *config) {
		if logger == nil {
			logger = evaluator.NoopLogger()
		}
		cfg.evalLogger = logger
	}
}

// WithProgramCache is passed to the default evaluator.
func WithProgramCache(cache evaluator.ProgramCache) Option {
	return func(cfg *config) {
		cfg.cache = cache
	}
}

// WithFunctionRegistry is passed to the default evaluator.
func WithFunctionRegistry(registry *evaluator.FunctionRegistry) Option {
	return func(cfg *config) {
		if registry == nil {
			return
		}
		cfg.functions = registry.Clone()
	}
}

// WithCustomFunction registers fn under name for the default evaluator.
func WithCustomFunction(name string, fn evaluator.Function) Option {
	return func(cfg *config) {
		if cfg.functions == nil {
			cfg.functions = evaluator.NewFunctionRegistry()
		}
		_ = cfg.functions.Register(name, fn)
	}
}

// WithLogger sets the structured logger used for hook failures and
// checkpoint diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

// WithActivityHooks emits scope and checkpoint lifecycle events to hooks.
func WithActivityHooks(hooks activity.Hooks) Option {
	return func(cfg *config) {
		cfg.hooks = append(activity.Hooks(nil), hooks...)
	}
}

// WithActivityChannel overrides activity.DefaultChannel.
func WithActivityChannel(channel string) Option {
	return func(cfg *config) {
		cfg.channel = channel
	}
}

// WithActor stamps identity fields onto every emitted event.
func WithActor(actor activity.Actor) Option {
	return func(cfg *config) {
		cfg.actor = actor
	}
}

// WithStrictNesting makes Enter reject labels the current leaf cannot
// enclose, such as a module inside a function.
func WithStrictNesting() Option {
	return func(cfg *config) {
		cfg.strictNesting = true
	}
}

func applyOptions(opts []Option) config {
	cfg := config{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.evalLogger == nil {
		cfg.evalLogger = evaluator.NoopLogger()
	}
	if cfg.evaluator == nil {
		if cfg.cache == nil {
			cfg.cache = evaluator.NewMapCache()
		}
		cfg.evaluator = evaluator.NewExpr(
			evaluator.WithProgramCache(cfg.cache),
			evaluator.WithFunctionRegistry(cfg.functions),
		)
	}
	return cfg
}
