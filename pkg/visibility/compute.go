// Package visibility computes which fields of a form are shown given the
// current value tree and each field's visibility condition.
package visibility

import (
	"strings"

	"go.uber.org/zap"

	"github.com/goliatone/go-formsync/internal/valuepath"
	"github.com/goliatone/go-formsync/pkg/model"
	"github.com/goliatone/go-formsync/pkg/schema"
)

// Option configures Compute and Evaluate.
type Option func(*options)

type options struct {
	evaluator Evaluator
	extras    map[string]any
	logger    *zap.Logger
}

// WithEvaluator sets the evaluator used for expression conditions. Without
// one, expression conditions fall back to their operator, or to visible.
func WithEvaluator(evaluator Evaluator) Option {
	return func(o *options) {
		o.evaluator = evaluator
	}
}

// WithExtras passes additional context to the expression evaluator.
func WithExtras(extras map[string]any) Option {
	return func(o *options) {
		o.extras = extras
	}
}

// WithLogger reports evaluator failures at debug level.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func buildOptions(opts []Option) options {
	cfg := options{logger: zap.NewNop()}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	return cfg
}

// Compute returns the visibility of every field keyed by field name. Fields
// without a condition are always visible.
func Compute(fields []model.FieldDefinition, values map[string]any, opts ...Option) map[string]bool {
	cfg := buildOptions(opts)
	out := make(map[string]bool, len(fields))
	for _, field := range fields {
		out[field.Name] = evaluate(field.Name, field.Visibility, values, cfg)
	}
	return out
}

// Evaluate reports whether a single condition holds for values. A nil
// condition is visible.
func Evaluate(cond *schema.Condition, values map[string]any, opts ...Option) bool {
	return evaluate("", cond, values, buildOptions(opts))
}

func evaluate(fieldPath string, cond *schema.Condition, values map[string]any, cfg options) bool {
	if cond == nil {
		return true
	}

	if expression := strings.TrimSpace(cond.Expression); expression != "" && cfg.evaluator != nil {
		visible, err := cfg.evaluator.Eval(fieldPath, expression, Context{Values: values, Extras: cfg.extras})
		if err != nil {
			cfg.logger.Debug("visibility: expression failed, field stays visible",
				zap.String("field", fieldPath),
				zap.String("expression", expression),
				zap.Error(err),
			)
			return true
		}
		return visible
	}

	if cond.Field == "" {
		return true
	}
	actual, _ := valuepath.Get(values, cond.Field)
	return Match(cond.Operator, actual, cond.Value)
}

// Match applies operator to the dependent value and the expected value.
// Unknown operators match, so a misconfigured rule never hides a field.
func Match(operator schema.Operator, actual, expected any) bool {
	switch operator {
	case schema.OpEquals:
		return valuepath.Equal(actual, expected)
	case schema.OpNotEquals:
		return !valuepath.Equal(actual, expected)
	case schema.OpContains:
		if items, ok := valuepath.Slice(actual); ok {
			for _, item := range items {
				if valuepath.Equal(item, expected) {
					return true
				}
			}
			return false
		}
		return strings.Contains(valuepath.String(actual), valuepath.String(expected))
	case schema.OpGreaterThan:
		a, _ := valuepath.Coerce(actual)
		b, _ := valuepath.Coerce(expected)
		return a > b
	case schema.OpLessThan:
		a, _ := valuepath.Coerce(actual)
		b, _ := valuepath.Coerce(expected)
		return a < b
	default:
		return true
	}
}
