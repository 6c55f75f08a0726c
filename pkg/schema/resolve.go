package schema

// MaxUnwrapDepth caps wrapper peeling. Schemas are acyclic, the cap only
// guards against malformed input.
const MaxUnwrapDepth = 64

// Resolved is the concrete view of a node once wrappers are stripped.
type Resolved struct {
	// Kind is always concrete (never a wrapper kind). Unrecognised kinds and
	// nil nodes resolve to KindUnknown.
	Kind Kind
	// Node is the concrete node, nil when resolution ran out of nodes.
	Node *Node

	Optional   bool
	Nullable   bool
	HasDefault bool
	Default    any

	// Description and Visibility come from the outermost layer declaring them.
	Description string
	Visibility  *Condition

	// Depth counts the wrapper layers peeled.
	Depth int
}

// Resolve peels default, optional, nullable and effect wrappers until a
// concrete kind remains. It never panics and never fails: anything it does not
// recognise is reported as KindUnknown.
func Resolve(node *Node) Resolved {
	out := Resolved{Kind: KindUnknown}
	current := node
	for out.Depth < MaxUnwrapDepth {
		if current == nil {
			return out
		}
		if out.Description == "" {
			out.Description = current.Description
		}
		if out.Visibility == nil && current.Visibility != nil {
			out.Visibility = current.Visibility
		}

		switch current.Kind {
		case KindDefault:
			if !out.HasDefault {
				out.HasDefault = true
				out.Default = current.DefaultValue
			}
		case KindOptional:
			out.Optional = true
		case KindNullable:
			out.Optional = true
			out.Nullable = true
		case KindEffect:
		case KindString, KindNumber, KindBoolean, KindDate, KindEnum, KindArray,
			KindObject, KindMap, KindUnion, KindDiscriminatedUnion:
			out.Kind = current.Kind
			out.Node = current
			return out
		default:
			out.Node = current
			return out
		}
		current = current.Inner
		out.Depth++
	}
	return out
}

// Base returns the concrete node under any wrappers, or nil.
func Base(node *Node) *Node {
	return Resolve(node).Node
}
