package model

// Decorator enriches an analysis after the schema-derived fields have been
// built, e.g. to override labels or attach extra config.
type Decorator interface {
	Decorate(*SchemaAnalysis) error
}

// DecoratorFunc adapts a function into a Decorator.
type DecoratorFunc func(*SchemaAnalysis) error

// Decorate calls the underlying function.
func (fn DecoratorFunc) Decorate(analysis *SchemaAnalysis) error {
	return fn(analysis)
}
