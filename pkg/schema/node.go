package schema

// Kind tags a schema node. Concrete kinds describe data; wrapper kinds
// (optional, nullable, default, effect) always carry exactly one Inner node.
type Kind string

const (
	KindString             Kind = "string"
	KindNumber             Kind = "number"
	KindBoolean            Kind = "boolean"
	KindDate               Kind = "date"
	KindEnum               Kind = "enum"
	KindArray              Kind = "array"
	KindObject             Kind = "object"
	KindMap                Kind = "map"
	KindUnion              Kind = "union"
	KindDiscriminatedUnion Kind = "discriminated-union"
	KindOptional           Kind = "optional"
	KindNullable           Kind = "nullable"
	KindDefault            Kind = "default"
	KindEffect             Kind = "effect"
	KindUnknown            Kind = "unknown"
)

// IsWrapper reports whether the kind wraps a single inner node.
func (k Kind) IsWrapper() bool {
	switch k {
	case KindOptional, KindNullable, KindDefault, KindEffect:
		return true
	default:
		return false
	}
}

// CheckKind identifies a declared constraint on a node.
type CheckKind string

const (
	CheckMinLength  CheckKind = "min-length"
	CheckMaxLength  CheckKind = "max-length"
	CheckEmail      CheckKind = "email"
	CheckURL        CheckKind = "url"
	CheckRegex      CheckKind = "regex"
	CheckMin        CheckKind = "min"
	CheckMax        CheckKind = "max"
	CheckInt        CheckKind = "int"
	CheckMultipleOf CheckKind = "multiple-of"
	CheckMinItems   CheckKind = "min-items"
	CheckMaxItems   CheckKind = "max-items"
)

// Check is a single declared constraint. Value holds numeric thresholds,
// Pattern holds regular expressions. Checks keep declaration order.
type Check struct {
	Kind      CheckKind `json:"kind"`
	Value     float64   `json:"value,omitempty"`
	Pattern   string    `json:"pattern,omitempty"`
	Exclusive bool      `json:"exclusive,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// Operator enumerates the comparison used by a visibility Condition.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not-equals"
	OpContains    Operator = "contains"
	OpGreaterThan Operator = "greater-than"
	OpLessThan    Operator = "less-than"
)

// Condition declares when a field should be shown. Expression, when set,
// takes precedence over the Field/Operator/Value triple and is evaluated by an
// expression evaluator.
type Condition struct {
	Field      string   `json:"dependentField,omitempty" yaml:"field"`
	Value      any      `json:"expectedValue,omitempty" yaml:"value"`
	Operator   Operator `json:"operator,omitempty" yaml:"operator"`
	Expression string   `json:"expression,omitempty" yaml:"expression"`
}

// Property is one entry of an object shape.
type Property struct {
	Name string
	Node *Node
}

// RefineFunc runs after the inner node of an effect parsed successfully.
// Returning an error reports a custom issue on the effect's path.
type RefineFunc func(value any) error

// Node describes one unit of a schema. Nodes are treated as immutable once
// built; the builder helpers always return new nodes.
type Node struct {
	Kind Kind

	Checks []Check

	// Shape lists object properties in declaration order.
	Shape []Property
	// Element is the array item schema.
	Element *Node
	// Values is the map value schema.
	Values *Node
	// Options holds the literal values of an enum.
	Options []any
	// Alternatives holds union members.
	Alternatives []*Node
	// Discriminator names the tag property of a discriminated union.
	Discriminator string

	// Inner is set for wrapper kinds only.
	Inner        *Node
	DefaultValue any
	Refinement   RefineFunc

	// Tag carries the source kind name when Kind is KindUnknown.
	Tag         string
	Description string
	Visibility  *Condition
	Meta        map[string]any
}

// Property returns the shape entry with the given name.
func (n *Node) Property(name string) (*Node, bool) {
	if n == nil {
		return nil, false
	}
	for _, prop := range n.Shape {
		if prop.Name == name {
			return prop.Node, true
		}
	}
	return nil, false
}

// Keys returns the property names of an object node in declaration order.
func (n *Node) Keys() []string {
	if n == nil || len(n.Shape) == 0 {
		return nil
	}
	keys := make([]string, 0, len(n.Shape))
	for _, prop := range n.Shape {
		keys = append(keys, prop.Name)
	}
	return keys
}

// Check returns the first check of the given kind.
func (n *Node) Check(kind CheckKind) (Check, bool) {
	if n == nil {
		return Check{}, false
	}
	for _, check := range n.Checks {
		if check.Kind == kind {
			return check, true
		}
	}
	return Check{}, false
}

func (n *Node) clone() *Node {
	if n == nil {
		return nil
	}
	out := *n
	if len(n.Checks) > 0 {
		out.Checks = append([]Check(nil), n.Checks...)
	}
	if len(n.Shape) > 0 {
		out.Shape = append([]Property(nil), n.Shape...)
	}
	if len(n.Options) > 0 {
		out.Options = append([]any(nil), n.Options...)
	}
	if len(n.Alternatives) > 0 {
		out.Alternatives = append([]*Node(nil), n.Alternatives...)
	}
	if len(n.Meta) > 0 {
		out.Meta = make(map[string]any, len(n.Meta))
		for k, v := range n.Meta {
			out.Meta[k] = v
		}
	}
	return &out
}
