package model

import "github.com/goliatone/go-formsync/pkg/schema"

// Widget is the input control a field renders as.
type Widget string

const (
	WidgetText     Widget = "text"
	WidgetEmail    Widget = "email"
	WidgetURL      Widget = "url"
	WidgetNumber   Widget = "number"
	WidgetRange    Widget = "range"
	WidgetTextarea Widget = "textarea"
	WidgetSelect   Widget = "select"
	WidgetRadio    Widget = "radio"
	WidgetCheckbox Widget = "checkbox"
	WidgetDate     Widget = "date"
	WidgetArray    Widget = "array"
	WidgetObject   Widget = "object"
	WidgetRecord   Widget = "record"
)

// Complexity is advisory metadata describing how involved a form is.
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

const (
	ValidationRuleRequired   = "required"
	ValidationRuleMin        = "min"
	ValidationRuleMax        = "max"
	ValidationRuleMinLength  = "minLength"
	ValidationRuleMaxLength  = "maxLength"
	ValidationRulePattern    = "pattern"
	ValidationRuleEmail      = "email"
	ValidationRuleURL        = "url"
	ValidationRuleInteger    = "integer"
	ValidationRuleMultipleOf = "multipleOf"
	ValidationRuleMinItems   = "minItems"
	ValidationRuleMaxItems   = "maxItems"
)

// ValidationRule represents a single validation constraint applied to a field.
// Numeric bounds and length limits encode their threshold in Params["value"]
// while pattern rules preserve the original expression in Params["pattern"].
// Boolean flags such as exclusivity are encoded as string values to keep JSON
// snapshots stable.
type ValidationRule struct {
	Kind   string            `json:"kind"`
	Params map[string]string `json:"params,omitempty"`
}

// Option is one choice of a radio or select widget.
type Option struct {
	Label string `json:"label"`
	Value any    `json:"value"`
}

// FieldConfig carries widget configuration merged from schema constraints and
// mapping heuristics. Pointer fields are nil when the constraint is absent.
type FieldConfig struct {
	Min         *float64          `json:"min,omitempty"`
	Max         *float64          `json:"max,omitempty"`
	Step        *float64          `json:"step,omitempty"`
	MinLength   *int              `json:"minLength,omitempty"`
	MaxLength   *int              `json:"maxLength,omitempty"`
	Pattern     string            `json:"pattern,omitempty"`
	Rows        int               `json:"rows,omitempty"`
	Options     []Option          `json:"options,omitempty"`
	MinItems    *int              `json:"minItems,omitempty"`
	MaxItems    *int              `json:"maxItems,omitempty"`
	Element     *schema.Node      `json:"-"`
	Shape       []schema.Property `json:"-"`
	Description string            `json:"description,omitempty"`
	Extra       map[string]string `json:"extra,omitempty"`
}

// FieldDefinition describes one top-level property of an object schema.
type FieldDefinition struct {
	Name        string            `json:"name"`
	Label       string            `json:"label,omitempty"`
	Widget      Widget            `json:"widget"`
	Config      FieldConfig       `json:"config"`
	Required    bool              `json:"required"`
	Default     any               `json:"default,omitempty"`
	Visibility  *schema.Condition `json:"visibility,omitempty"`
	Validations []ValidationRule  `json:"validations,omitempty"`
	// Node is the property's schema node, wrappers included.
	Node *schema.Node `json:"-"`
}

// SchemaAnalysis summarises an object schema.
type SchemaAnalysis struct {
	Fields          []FieldDefinition `json:"fields"`
	HasArrays       bool              `json:"hasArrays"`
	HasObjects      bool              `json:"hasObjects"`
	HasConditionals bool              `json:"hasConditionals"`
	Complexity      Complexity        `json:"complexity"`
}

// Field returns the definition named name.
func (a SchemaAnalysis) Field(name string) (FieldDefinition, bool) {
	for _, field := range a.Fields {
		if field.Name == name {
			return field, true
		}
	}
	return FieldDefinition{}, false
}
