// Package defaults builds the initial value tree of an object schema.
package defaults

import (
	"github.com/goliatone/go-formsync/internal/valuepath"
	"github.com/goliatone/go-formsync/pkg/schema"
)

// Synthesize returns the initial values for every property of an object
// schema. Explicit defaults are used verbatim; otherwise arrays start empty,
// nested objects recurse, booleans are false, numbers 0 and strings "".
// Properties of any other kind are omitted. Non-object schemas yield an empty
// map.
func Synthesize(node *schema.Node) map[string]any {
	out := map[string]any{}
	root := schema.Base(node)
	if root == nil || root.Kind != schema.KindObject {
		return out
	}
	for _, prop := range root.Shape {
		if value, ok := Value(prop.Node); ok {
			out[prop.Name] = value
		}
	}
	return out
}

// Value returns the initial value for a single node and whether one exists.
func Value(node *schema.Node) (any, bool) {
	resolved := schema.Resolve(node)
	if resolved.HasDefault {
		return valuepath.Clone(resolved.Default), true
	}
	switch resolved.Kind {
	case schema.KindArray:
		return []any{}, true
	case schema.KindObject:
		return Synthesize(resolved.Node), true
	case schema.KindBoolean:
		return false, true
	case schema.KindNumber:
		return float64(0), true
	case schema.KindString:
		return "", true
	default:
		return nil, false
	}
}
