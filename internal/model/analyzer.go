package model

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/goliatone/go-formsync/pkg/schema"
)

const (
	moderateFieldCount = 10
	complexFieldCount  = 20
	complexNestedProps = 5
)

// Analyzer converts object schemas into field definitions.
type Analyzer struct {
	opts Options
}

// New creates an Analyzer with the supplied options.
func New(options Options) *Analyzer {
	opts := defaultOptions()
	if options.Labeler != nil {
		opts.Labeler = options.Labeler
	}
	if options.Logger != nil {
		opts.Logger = options.Logger
	}
	return &Analyzer{opts: opts}
}

// Analyze produces one FieldDefinition per top-level property of an object
// schema, in declaration order. Non-object schemas yield an empty analysis.
func (a *Analyzer) Analyze(node *schema.Node) SchemaAnalysis {
	analysis := SchemaAnalysis{Fields: []FieldDefinition{}}
	root := schema.Resolve(node)
	if root.Kind != schema.KindObject {
		a.opts.Logger.Debug("analyze: schema is not an object", zap.String("kind", string(root.Kind)))
		analysis.Complexity = ComplexitySimple
		return analysis
	}

	for _, prop := range root.Node.Shape {
		analysis.Fields = append(analysis.Fields, a.fieldFromProperty(prop))
	}
	classify(&analysis)
	return analysis
}

func (a *Analyzer) fieldFromProperty(prop schema.Property) FieldDefinition {
	resolved := schema.Resolve(prop.Node)
	if resolved.Kind == schema.KindUnknown {
		tag := ""
		if resolved.Node != nil {
			tag = resolved.Node.Tag
		}
		a.opts.Logger.Debug("analyze: unrecognised schema kind, using text field",
			zap.String("field", prop.Name),
			zap.String("tag", tag),
		)
	}

	widget, cfg := MapToField(resolved)
	cfg.Extra = metadataFromNode(prop.Node, resolved.Node)

	field := FieldDefinition{
		Name:        prop.Name,
		Label:       a.opts.Labeler(prop.Name),
		Widget:      widget,
		Config:      cfg,
		Required:    IsRequired(prop.Node),
		Visibility:  resolved.Visibility,
		Validations: ExtractValidations(prop.Node),
		Node:        prop.Node,
	}
	if resolved.HasDefault {
		field.Default = resolved.Default
	}
	return field
}

func classify(analysis *SchemaAnalysis) {
	nestedHeavy := false
	for _, field := range analysis.Fields {
		switch field.Widget {
		case WidgetArray:
			analysis.HasArrays = true
		case WidgetObject:
			analysis.HasObjects = true
			if len(field.Config.Shape) > complexNestedProps {
				nestedHeavy = true
			}
		}
		if field.Visibility != nil {
			analysis.HasConditionals = true
		}
	}

	count := len(analysis.Fields)
	switch {
	case analysis.HasConditionals || count > complexFieldCount || nestedHeavy:
		analysis.Complexity = ComplexityComplex
	case analysis.HasArrays || analysis.HasObjects || count > moderateFieldCount:
		analysis.Complexity = ComplexityModerate
	default:
		analysis.Complexity = ComplexitySimple
	}
}

// metadataFromNode flattens scalar Meta entries from the property node and its
// concrete node into strings. The outer layer wins on conflicts.
func metadataFromNode(outer, base *schema.Node) map[string]string {
	out := map[string]string{}
	for _, node := range []*schema.Node{base, outer} {
		if node == nil {
			continue
		}
		for key, raw := range node.Meta {
			switch value := raw.(type) {
			case string:
				out[key] = value
			case bool, int, int64, float64:
				out[key] = fmt.Sprint(value)
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
