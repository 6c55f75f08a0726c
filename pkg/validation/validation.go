package validation

import (
	"errors"
	"fmt"

	"github.com/goliatone/go-formsync/pkg/schema"
)

// ErrFailed is wrapped by Result.Err.
var ErrFailed = errors.New("validation: failed")

const (
	// RootField is the field reported for failures not tied to a property.
	RootField = "root"
	// CodeCustom marks refinement failures and recovered internal errors.
	CodeCustom = schema.CodeCustom

	internalFailureMessage = "Validation failed"
)

// Error is a single field-level validation failure.
type Error struct {
	// Field is Path joined with dots, or "root".
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Path    []any  `json:"path"`
}

// Result is the outcome of a validation pass. Data holds the parsed value
// (defaults applied, unknown keys stripped) when Success is true.
type Result struct {
	Success bool    `json:"success"`
	Data    any     `json:"data,omitempty"`
	Errors  []Error `json:"errors,omitempty"`
}

// Validate runs the node's native validation against value. Failures are
// returned in the result and never as a Go error; a panic raised while
// validating becomes a single root error with code "custom".
func Validate(node *schema.Node, value any) (result Result) {
	defer func() {
		if recovered := recover(); recovered != nil {
			result = Result{
				Errors: []Error{{
					Field:   RootField,
					Message: internalFailureMessage,
					Code:    CodeCustom,
					Path:    []any{},
				}},
			}
		}
	}()

	if node == nil {
		return Result{Success: true, Data: value}
	}

	data, issues := node.Parse(value)
	if len(issues) == 0 {
		return Result{Success: true, Data: data}
	}
	return Result{Errors: FromIssues(issues)}
}

// ValidateField validates a single top-level property of an object schema.
// Unknown fields pass.
func ValidateField(node *schema.Node, field string, value any) []Error {
	base := schema.Base(node)
	prop, ok := base.Property(field)
	if !ok {
		return nil
	}
	result := Validate(schema.Object(schema.Field(field, prop)), map[string]any{field: value})
	return result.Errors
}

// FromIssues converts native issues into validation errors.
func FromIssues(issues schema.Issues) []Error {
	if len(issues) == 0 {
		return nil
	}
	out := make([]Error, 0, len(issues))
	for _, issue := range issues {
		path := issue.Path
		if path == nil {
			path = []any{}
		}
		field := schema.JoinPath(path)
		if field == "" {
			field = RootField
		}
		out = append(out, Error{
			Field:   field,
			Message: issue.Message,
			Code:    issue.Code,
			Path:    path,
		})
	}
	return out
}

// FieldErrors maps each field path to its first error message.
func (r Result) FieldErrors() map[string]string {
	if len(r.Errors) == 0 {
		return nil
	}
	out := make(map[string]string, len(r.Errors))
	for _, err := range r.Errors {
		if _, exists := out[err.Field]; exists {
			continue
		}
		out[err.Field] = err.Message
	}
	return out
}

// Messages maps each field path to its distinct, trimmed messages in order.
func (r Result) Messages() map[string][]string {
	if len(r.Errors) == 0 {
		return nil
	}
	grouped := make(map[string][]string)
	for _, err := range r.Errors {
		grouped[err.Field] = append(grouped[err.Field], err.Message)
	}
	out := make(map[string][]string, len(grouped))
	for field, messages := range grouped {
		if normalized := normalizeMessages(messages); len(normalized) > 0 {
			out[field] = normalized
		}
	}
	return out
}

// Err returns the result as an error, or nil when validation succeeded.
func (r Result) Err() error {
	if r.Success {
		return nil
	}
	if len(r.Errors) == 0 {
		return ErrFailed
	}
	first := r.Errors[0]
	if len(r.Errors) == 1 {
		return fmt.Errorf("%w: %s: %s", ErrFailed, first.Field, first.Message)
	}
	return fmt.Errorf("%w: %s: %s (and %d more)", ErrFailed, first.Field, first.Message, len(r.Errors)-1)
}
