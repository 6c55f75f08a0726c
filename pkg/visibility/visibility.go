package visibility

// Evaluator decides visibility from a free-form expression attached to a
// field. It is consulted only for conditions that carry an Expression.
type Evaluator interface {
	Eval(fieldPath, expression string, ctx Context) (bool, error)
}

// Context provides inputs to an Evaluator. Values is the current form value
// tree while Extras allows callers to inject arbitrary context such as user
// roles or feature flags.
type Context struct {
	Values map[string]any
	Extras map[string]any
}

// EvaluatorFunc adapts a function into an Evaluator.
type EvaluatorFunc func(fieldPath, expression string, ctx Context) (bool, error)

// Eval delegates to the underlying function.
func (fn EvaluatorFunc) Eval(fieldPath, expression string, ctx Context) (bool, error) {
	return fn(fieldPath, expression, ctx)
}
