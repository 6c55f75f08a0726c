// Package model turns schema nodes into field definitions consumed by the
// rendering layer. MapToField picks a widget for a single resolved node using
// fixed heuristics (long strings become textareas, narrow numeric ranges
// become sliders, small enumerations become radio groups). Analyze applies
// the mapping to every top-level property of an object schema, derives
// validation rules in a separate pass and classifies the form's complexity.
// Analyzer memoizes analyses per schema reference.
package model
