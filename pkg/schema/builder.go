package schema

// String returns a string node.
func String() *Node { return &Node{Kind: KindString} }

// Number returns a number node.
func Number() *Node { return &Node{Kind: KindNumber} }

// Int returns a number node constrained to integers.
func Int() *Node { return Number().Int() }

// Boolean returns a boolean node.
func Boolean() *Node { return &Node{Kind: KindBoolean} }

// Date returns a date node. Values may be time.Time or RFC 3339 / YYYY-MM-DD
// strings.
func Date() *Node { return &Node{Kind: KindDate} }

// Enum returns a node accepting one of the supplied literal values.
func Enum(values ...any) *Node {
	return &Node{Kind: KindEnum, Options: append([]any(nil), values...)}
}

// Literal is a single-valued enum, mostly used as a union discriminant.
func Literal(value any) *Node { return Enum(value) }

// Array returns an array node with the given element schema.
func Array(element *Node) *Node { return &Node{Kind: KindArray, Element: element} }

// Object returns an object node whose shape keeps the supplied order.
func Object(props ...Property) *Node {
	return &Node{Kind: KindObject, Shape: append([]Property(nil), props...)}
}

// Field pairs a property name with its schema for Object.
func Field(name string, node *Node) Property { return Property{Name: name, Node: node} }

// Map returns a record-like node with string keys.
func Map(values *Node) *Node { return &Node{Kind: KindMap, Values: values} }

// Union returns a node accepting any of the alternatives, tried in order.
func Union(alternatives ...*Node) *Node {
	return &Node{Kind: KindUnion, Alternatives: append([]*Node(nil), alternatives...)}
}

// DiscriminatedUnion returns a union of object alternatives tagged by the
// discriminator property.
func DiscriminatedUnion(discriminator string, alternatives ...*Node) *Node {
	return &Node{
		Kind:          KindDiscriminatedUnion,
		Discriminator: discriminator,
		Alternatives:  append([]*Node(nil), alternatives...),
	}
}

// Unknown returns a node of an unrecognised kind. tag records the source name.
func Unknown(tag string) *Node { return &Node{Kind: KindUnknown, Tag: tag} }

// Optional wraps inner so absent values are accepted.
func Optional(inner *Node) *Node { return &Node{Kind: KindOptional, Inner: inner} }

// Nullable wraps inner so nil values are accepted.
func Nullable(inner *Node) *Node { return &Node{Kind: KindNullable, Inner: inner} }

// Default wraps inner with a value used when input is absent.
func Default(inner *Node, value any) *Node {
	return &Node{Kind: KindDefault, Inner: inner, DefaultValue: value}
}

// Effect wraps inner with a refinement run after inner parsing succeeds.
func Effect(inner *Node, refine RefineFunc) *Node {
	return &Node{Kind: KindEffect, Inner: inner, Refinement: refine}
}

func (n *Node) with(check Check) *Node {
	out := n.clone()
	if out == nil {
		return nil
	}
	out.Checks = append(out.Checks, check)
	return out
}

// MinLength requires at least size characters.
func (n *Node) MinLength(size int) *Node {
	return n.with(Check{Kind: CheckMinLength, Value: float64(size)})
}

// MaxLength allows at most size characters.
func (n *Node) MaxLength(size int) *Node {
	return n.with(Check{Kind: CheckMaxLength, Value: float64(size)})
}

// Email requires an e-mail address.
func (n *Node) Email() *Node { return n.with(Check{Kind: CheckEmail}) }

// URL requires an absolute URL.
func (n *Node) URL() *Node { return n.with(Check{Kind: CheckURL}) }

// Regex requires the value to match pattern.
func (n *Node) Regex(pattern string) *Node {
	return n.with(Check{Kind: CheckRegex, Pattern: pattern})
}

// Min sets an inclusive lower bound.
func (n *Node) Min(value float64) *Node { return n.with(Check{Kind: CheckMin, Value: value}) }

// Max sets an inclusive upper bound.
func (n *Node) Max(value float64) *Node { return n.with(Check{Kind: CheckMax, Value: value}) }

// Gt sets an exclusive lower bound.
func (n *Node) Gt(value float64) *Node {
	return n.with(Check{Kind: CheckMin, Value: value, Exclusive: true})
}

// Lt sets an exclusive upper bound.
func (n *Node) Lt(value float64) *Node {
	return n.with(Check{Kind: CheckMax, Value: value, Exclusive: true})
}

// Int restricts a number to integers.
func (n *Node) Int() *Node { return n.with(Check{Kind: CheckInt}) }

// MultipleOf requires the number to be a multiple of step.
func (n *Node) MultipleOf(step float64) *Node {
	return n.with(Check{Kind: CheckMultipleOf, Value: step})
}

// MinItems requires at least size array elements.
func (n *Node) MinItems(size int) *Node {
	return n.with(Check{Kind: CheckMinItems, Value: float64(size)})
}

// MaxItems allows at most size array elements.
func (n *Node) MaxItems(size int) *Node {
	return n.with(Check{Kind: CheckMaxItems, Value: float64(size)})
}

// Describe attaches a human description.
func (n *Node) Describe(description string) *Node {
	out := n.clone()
	if out != nil {
		out.Description = description
	}
	return out
}

// When attaches a visibility condition.
func (n *Node) When(cond Condition) *Node {
	out := n.clone()
	if out != nil {
		c := cond
		out.Visibility = &c
	}
	return out
}

// Optional wraps the node, see Optional.
func (n *Node) Optional() *Node { return Optional(n) }

// Nullable wraps the node, see Nullable.
func (n *Node) Nullable() *Node { return Nullable(n) }

// Default wraps the node, see Default.
func (n *Node) Default(value any) *Node { return Default(n, value) }

// Refine wraps the node in an effect, see Effect.
func (n *Node) Refine(fn RefineFunc) *Node { return Effect(n, fn) }
