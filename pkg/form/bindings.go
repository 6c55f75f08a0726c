package form

import (
	"github.com/goliatone/go-formsync/pkg/model"
	"github.com/goliatone/go-formsync/pkg/visibility"
)

// FieldBinding is what the rendering layer receives for one field. The
// renderer picks the presentation for Widget; writes must go through
// SetValue.
type FieldBinding struct {
	Name     string
	Label    string
	Widget   model.Widget
	Config   model.FieldConfig
	Required bool

	definition model.FieldDefinition
	engine     *Engine
	visibility []visibility.Option
}

// Value returns the field's current value.
func (b FieldBinding) Value() any {
	value, _ := b.engine.Get(b.Name)
	return value
}

// SetValue writes the field's value as a user edit.
func (b FieldBinding) SetValue(value any) error {
	return b.engine.SetValue(b.Name, value)
}

// Error returns the field's last validation error, if any.
func (b FieldBinding) Error() string {
	return b.engine.Error(b.Name)
}

// Visible evaluates the field's visibility condition against the current
// values.
func (b FieldBinding) Visible() bool {
	return visibility.Evaluate(b.definition.Visibility, b.engine.Values(), b.visibility...)
}

// Definition returns the field definition the binding was built from.
func (b FieldBinding) Definition() model.FieldDefinition {
	return b.definition
}

// Bindings exposes one binding per analysed field, in analysis order.
func (e *Engine) Bindings(analysis model.SchemaAnalysis, opts ...visibility.Option) []FieldBinding {
	out := make([]FieldBinding, 0, len(analysis.Fields))
	for _, field := range analysis.Fields {
		out = append(out, FieldBinding{
			Name:       field.Name,
			Label:      field.Label,
			Widget:     field.Widget,
			Config:     field.Config,
			Required:   field.Required,
			definition: field,
			engine:     e,
			visibility: opts,
		})
	}
	return out
}

// Visibility computes the visibility map for the analysed fields against the
// current values.
func (e *Engine) Visibility(analysis model.SchemaAnalysis, opts ...visibility.Option) map[string]bool {
	return visibility.Compute(analysis.Fields, e.Values(), opts...)
}
