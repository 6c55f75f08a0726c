package expr

import (
	"fmt"
	"strings"
	"sync"

	exprlang "github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/goliatone/go-formsync/internal/valuepath"
	"github.com/goliatone/go-formsync/pkg/visibility"
)

// Evaluator evaluates visibility expressions written in expr-lang syntax.
//
// Top-level form values are exposed as variables (`contactPreference ==
// "phone"`), the whole tree as `values` (`values.address.country == "US"`)
// and caller extras as `extras` (`"admin" in extras.roles`). A helper
// `value(path)` reads dot/bracket paths. Undefined variables evaluate to nil.
// Compiled programs are cached per expression.
//
// The names `values`, `extras`, `field` and `value` are reserved. A form field
// with one of those names is still reachable as `values.value` or
// `value("value")`.
type Evaluator struct {
	mu       sync.RWMutex
	programs map[string]*vm.Program
}

// New returns an evaluator with an empty program cache.
func New() *Evaluator {
	return &Evaluator{programs: make(map[string]*vm.Program)}
}

// Eval compiles (once) and runs expression against ctx. An empty expression
// is visible.
func (e *Evaluator) Eval(fieldPath, expression string, ctx visibility.Context) (bool, error) {
	trimmed := strings.TrimSpace(expression)
	if trimmed == "" {
		return true, nil
	}

	program, err := e.compile(trimmed)
	if err != nil {
		return false, err
	}

	out, err := exprlang.Run(program, environment(fieldPath, ctx))
	if err != nil {
		return false, fmt.Errorf("visibility/expr: run %q: %w", trimmed, err)
	}
	visible, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("visibility/expr: %q returned %T, want bool", trimmed, out)
	}
	return visible, nil
}

func (e *Evaluator) compile(expression string) (*vm.Program, error) {
	e.mu.RLock()
	program, ok := e.programs[expression]
	e.mu.RUnlock()
	if ok {
		return program, nil
	}

	program, err := exprlang.Compile(expression,
		exprlang.AllowUndefinedVariables(),
		exprlang.AsBool(),
	)
	if err != nil {
		return nil, fmt.Errorf("visibility/expr: compile %q: %w", expression, err)
	}

	e.mu.Lock()
	e.programs[expression] = program
	e.mu.Unlock()
	return program, nil
}

func environment(fieldPath string, ctx visibility.Context) map[string]any {
	values := ctx.Values
	if values == nil {
		values = map[string]any{}
	}
	extras := ctx.Extras
	if extras == nil {
		extras = map[string]any{}
	}
	env := map[string]any{
		"values": values,
		"extras": extras,
		"field":  fieldPath,
		"value": func(path string) any {
			found, _ := valuepath.Get(values, path)
			return found
		},
	}
	for key, value := range ctx.Values {
		if _, reserved := env[key]; !reserved {
			env[key] = value
		}
	}
	return env
}
