// Package openapi converts OpenAPI 3 documents and standalone JSON Schema
// documents into schema.Node trees.
package openapi

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formsync/pkg/schema"
)

const (
	// ExtensionPrefix namespaces vendor extensions copied into Node.Meta with
	// the prefix stripped, so "x-formsync-widget" becomes Meta["widget"].
	ExtensionPrefix = "x-formsync-"
	// ExtensionOrder lists property names in display order.
	ExtensionOrder = ExtensionPrefix + "order"
	// ExtensionVisibility holds a visibility condition, either an expression
	// string or an object with field, operator and value keys.
	ExtensionVisibility = ExtensionPrefix + "visibility"
)

var (
	ErrOperationNotFound = errors.New("openapi: operation not found")
	ErrNoRequestSchema   = errors.New("openapi: operation has no request body schema")
	ErrSchemaNotFound    = errors.New("openapi: component schema not found")
)

// Option configures a Converter.
type Option func(*Converter)

// WithLogger sets the logger used to report constructs that map to unknown
// nodes.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Converter) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Converter maps kin-openapi schemas onto schema nodes. It holds no per-call
// state and is safe for concurrent use.
type Converter struct {
	logger *zap.Logger
}

// NewConverter returns a Converter with options applied.
func NewConverter(opts ...Option) *Converter {
	c := &Converter{logger: zap.NewNop()}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

var defaultConverter = NewConverter()

// LoadDocument parses and validates an OpenAPI document. Local references are
// resolved by the loader.
func LoadDocument(ctx context.Context, data []byte) (*openapi3.T, error) {
	if len(data) == 0 {
		return nil, errors.New("openapi: document payload is empty")
	}
	loader := openapi3.NewLoader()
	loader.Context = ctx
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("openapi: load document: %w", err)
	}
	if err := doc.Validate(ctx, openapi3.DisableExamplesValidation()); err != nil {
		return nil, fmt.Errorf("openapi: validate document: %w", err)
	}
	return doc, nil
}

// RequestSchema converts the request body schema of the operation with the
// given operationId using the default converter.
func RequestSchema(doc *openapi3.T, operationID string) (*schema.Node, error) {
	return defaultConverter.RequestSchema(doc, operationID)
}

// ComponentSchema converts a named entry of components.schemas using the
// default converter.
func ComponentSchema(doc *openapi3.T, name string) (*schema.Node, error) {
	return defaultConverter.ComponentSchema(doc, name)
}

// FromSchemaRef converts ref using the default converter.
func FromSchemaRef(ref *openapi3.SchemaRef) *schema.Node {
	return defaultConverter.FromSchemaRef(ref)
}

// ParseSchema converts a standalone JSON or YAML schema document using the
// default converter.
func ParseSchema(data []byte) (*schema.Node, error) {
	return defaultConverter.ParseSchema(data)
}

// RequestSchema converts the request body schema of an operation. Operations
// without an operationId are addressed as "method:path", e.g. "post:/pets".
// application/json content is preferred when a body offers several types.
func (c *Converter) RequestSchema(doc *openapi3.T, operationID string) (*schema.Node, error) {
	if doc == nil || doc.Paths == nil {
		return nil, fmt.Errorf("%w: %s", ErrOperationNotFound, operationID)
	}
	for path, item := range doc.Paths.Map() {
		if item == nil {
			continue
		}
		for method, op := range item.Operations() {
			if op == nil {
				continue
			}
			id := op.OperationID
			if id == "" {
				id = strings.ToLower(method) + ":" + path
			}
			if id != operationID {
				continue
			}
			ref := requestBodySchema(op)
			if ref == nil {
				return nil, fmt.Errorf("%w: %s", ErrNoRequestSchema, operationID)
			}
			return c.FromSchemaRef(ref), nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrOperationNotFound, operationID)
}

func requestBodySchema(op *openapi3.Operation) *openapi3.SchemaRef {
	if op.RequestBody == nil || op.RequestBody.Value == nil {
		return nil
	}
	content := op.RequestBody.Value.Content
	if mt, ok := content["application/json"]; ok && mt != nil && mt.Schema != nil {
		return mt.Schema
	}
	types := make([]string, 0, len(content))
	for name := range content {
		types = append(types, name)
	}
	sort.Strings(types)
	for _, name := range types {
		if mt := content[name]; mt != nil && mt.Schema != nil {
			return mt.Schema
		}
	}
	return nil
}

// ComponentSchema converts a named entry of components.schemas.
func (c *Converter) ComponentSchema(doc *openapi3.T, name string) (*schema.Node, error) {
	if doc == nil || doc.Components == nil {
		return nil, fmt.Errorf("%w: %s", ErrSchemaNotFound, name)
	}
	ref, ok := doc.Components.Schemas[name]
	if !ok || ref == nil {
		return nil, fmt.Errorf("%w: %s", ErrSchemaNotFound, name)
	}
	return c.FromSchemaRef(ref), nil
}

// ParseSchema converts a standalone JSON or YAML schema document. References
// are not resolved and map to unknown nodes.
func (c *Converter) ParseSchema(data []byte) (*schema.Node, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("openapi: parse schema: %w", err)
	}
	if _, ok := raw.(map[string]any); !ok {
		return nil, errors.New("openapi: schema document must be an object")
	}
	payload, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("openapi: parse schema: %w", err)
	}
	var value openapi3.Schema
	if err := json.Unmarshal(payload, &value); err != nil {
		return nil, fmt.Errorf("openapi: parse schema: %w", err)
	}
	return c.FromSchemaRef(&openapi3.SchemaRef{Value: &value}), nil
}

// FromSchemaRef converts ref into a node tree. Unresolved references,
// unsupported types and recursive schemas become unknown nodes, which the
// analyzer renders as text fields.
func (c *Converter) FromSchemaRef(ref *openapi3.SchemaRef) *schema.Node {
	w := &walker{logger: c.logger, visiting: map[*openapi3.Schema]bool{}}
	return w.convert(ref)
}

type walker struct {
	logger   *zap.Logger
	visiting map[*openapi3.Schema]bool
}

func (w *walker) convert(ref *openapi3.SchemaRef) *schema.Node {
	if ref == nil {
		return schema.Unknown("missing")
	}
	if ref.Value == nil {
		w.logger.Debug("unresolved schema reference", zap.String("ref", ref.Ref))
		return schema.Unknown("ref")
	}
	src := ref.Value
	if w.visiting[src] {
		w.logger.Debug("recursive schema", zap.String("ref", ref.Ref))
		return schema.Unknown("recursive")
	}
	w.visiting[src] = true
	defer delete(w.visiting, src)

	if len(src.AllOf) > 0 {
		src = mergeAllOf(src)
	}
	node, nullable := w.concrete(src)
	return decorate(node, src, nullable)
}

func (w *walker) concrete(src *openapi3.Schema) (*schema.Node, bool) {
	types, nullable := typesOf(src)

	if alts := alternativesOf(src); len(alts) > 0 {
		members := make([]*schema.Node, 0, len(alts))
		for _, alt := range alts {
			if alt != nil && alt.Value != nil && isNullOnly(alt.Value) {
				nullable = true
				continue
			}
			members = append(members, w.convert(alt))
		}
		if len(members) == 1 {
			return members[0], nullable
		}
		if src.Discriminator != nil && src.Discriminator.PropertyName != "" {
			return schema.DiscriminatedUnion(src.Discriminator.PropertyName, members...), nullable
		}
		return schema.Union(members...), nullable
	}

	if len(src.Enum) > 0 {
		options := make([]any, 0, len(src.Enum))
		for _, value := range src.Enum {
			if value == nil {
				nullable = true
				continue
			}
			options = append(options, value)
		}
		return schema.Enum(options...), nullable
	}

	typ := ""
	if len(types) > 0 {
		typ = types[0]
	}
	if typ == "" && (len(src.Properties) > 0 || src.AdditionalProperties.Schema != nil) {
		typ = "object"
	}

	switch typ {
	case "string":
		return stringNode(src), nullable
	case "integer":
		return numberNode(schema.Int(), src), nullable
	case "number":
		return numberNode(schema.Number(), src), nullable
	case "boolean":
		return schema.Boolean(), nullable
	case "array":
		var element *schema.Node
		if src.Items != nil {
			element = w.convert(src.Items)
		} else {
			element = schema.Unknown("any")
		}
		node := schema.Array(element)
		if src.MinItems > 0 {
			node = node.MinItems(int(src.MinItems))
		}
		if src.MaxItems != nil {
			node = node.MaxItems(int(*src.MaxItems))
		}
		return node, nullable
	case "object":
		return w.objectNode(src), nullable
	case "":
		return schema.Unknown("any"), nullable
	default:
		w.logger.Debug("unsupported schema type", zap.String("type", typ))
		return schema.Unknown(typ), nullable
	}
}

func (w *walker) objectNode(src *openapi3.Schema) *schema.Node {
	if len(src.Properties) == 0 && src.AdditionalProperties.Schema != nil {
		return schema.Map(w.convert(src.AdditionalProperties.Schema))
	}

	required := make(map[string]bool, len(src.Required))
	for _, name := range src.Required {
		required[name] = true
	}

	props := make([]schema.Property, 0, len(src.Properties))
	for _, name := range propertyOrder(src) {
		ref := src.Properties[name]
		node := w.convert(ref)
		hasDefault := ref != nil && ref.Value != nil && ref.Value.Default != nil
		if !required[name] && !hasDefault {
			node = schema.Optional(node)
		}
		props = append(props, schema.Field(name, node))
	}
	return schema.Object(props...)
}

// propertyOrder returns the names listed in the order extension first, then
// the remaining properties alphabetically.
func propertyOrder(src *openapi3.Schema) []string {
	names := make([]string, 0, len(src.Properties))
	seen := make(map[string]bool, len(src.Properties))
	if listed, ok := src.Extensions[ExtensionOrder].([]any); ok {
		for _, raw := range listed {
			name, ok := raw.(string)
			if !ok || seen[name] {
				continue
			}
			if _, exists := src.Properties[name]; exists {
				names = append(names, name)
				seen[name] = true
			}
		}
	}
	rest := make([]string, 0, len(src.Properties))
	for name := range src.Properties {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(names, rest...)
}

func stringNode(src *openapi3.Schema) *schema.Node {
	switch src.Format {
	case "date", "date-time":
		return schema.Date()
	}
	node := schema.String()
	if src.MinLength > 0 {
		node = node.MinLength(int(src.MinLength))
	}
	if src.MaxLength != nil {
		node = node.MaxLength(int(*src.MaxLength))
	}
	switch src.Format {
	case "email":
		node = node.Email()
	case "uri", "url":
		node = node.URL()
	}
	if src.Pattern != "" {
		node = node.Regex(src.Pattern)
	}
	return node
}

func numberNode(node *schema.Node, src *openapi3.Schema) *schema.Node {
	if src.Min != nil {
		if src.ExclusiveMin {
			node = node.Gt(*src.Min)
		} else {
			node = node.Min(*src.Min)
		}
	}
	if src.Max != nil {
		if src.ExclusiveMax {
			node = node.Lt(*src.Max)
		} else {
			node = node.Max(*src.Max)
		}
	}
	if src.MultipleOf != nil && *src.MultipleOf > 0 {
		node = node.MultipleOf(*src.MultipleOf)
	}
	return node
}

// decorate layers description, metadata, visibility, nullability and default
// onto a concrete node, innermost first.
func decorate(node *schema.Node, src *openapi3.Schema, nullable bool) *schema.Node {
	if src.Description != "" {
		node = node.Describe(src.Description)
	}
	if meta := metaOf(src); len(meta) > 0 {
		node = withMeta(node, meta)
	}
	if cond, ok := visibilityOf(src.Extensions[ExtensionVisibility]); ok {
		node = node.When(cond)
	}
	if nullable || src.Nullable {
		node = schema.Nullable(node)
	}
	if src.Default != nil {
		node = schema.Default(node, src.Default)
	}
	return node
}

func withMeta(node *schema.Node, meta map[string]any) *schema.Node {
	out := *node
	out.Meta = make(map[string]any, len(node.Meta)+len(meta))
	for key, value := range node.Meta {
		out.Meta[key] = value
	}
	for key, value := range meta {
		out.Meta[key] = value
	}
	return &out
}

func metaOf(src *openapi3.Schema) map[string]any {
	meta := map[string]any{}
	if src.Title != "" {
		meta["title"] = src.Title
	}
	if src.Format != "" {
		meta["format"] = src.Format
	}
	if src.ReadOnly {
		meta["readOnly"] = true
	}
	for key, value := range src.Extensions {
		if key == ExtensionOrder || key == ExtensionVisibility || !strings.HasPrefix(key, ExtensionPrefix) {
			continue
		}
		meta[strings.TrimPrefix(key, ExtensionPrefix)] = value
	}
	return meta
}

func visibilityOf(raw any) (schema.Condition, bool) {
	switch value := raw.(type) {
	case string:
		if strings.TrimSpace(value) == "" {
			return schema.Condition{}, false
		}
		return schema.Condition{Expression: value}, true
	case map[string]any:
		cond := schema.Condition{Value: value["value"]}
		cond.Field, _ = value["field"].(string)
		cond.Expression, _ = value["expression"].(string)
		if op, ok := value["operator"].(string); ok && op != "" {
			cond.Operator = schema.Operator(op)
		} else {
			cond.Operator = schema.OpEquals
		}
		if cond.Field == "" && cond.Expression == "" {
			return schema.Condition{}, false
		}
		return cond, true
	default:
		return schema.Condition{}, false
	}
}

func typesOf(src *openapi3.Schema) ([]string, bool) {
	if src.Type == nil {
		return nil, false
	}
	var (
		out      []string
		nullable bool
	)
	for _, typ := range src.Type.Slice() {
		if typ == "null" {
			nullable = true
			continue
		}
		out = append(out, typ)
	}
	return out, nullable
}

func isNullOnly(src *openapi3.Schema) bool {
	types, nullable := typesOf(src)
	return nullable && len(types) == 0
}

func alternativesOf(src *openapi3.Schema) openapi3.SchemaRefs {
	if len(src.OneOf) > 0 {
		return src.OneOf
	}
	return src.AnyOf
}

// mergeAllOf folds allOf members into a copy of src. Properties, required
// names and extensions accumulate; scalar attributes keep the first value
// set.
func mergeAllOf(src *openapi3.Schema) *openapi3.Schema {
	merged := *src
	merged.AllOf = nil
	merged.Properties = openapi3.Schemas{}
	for name, prop := range src.Properties {
		merged.Properties[name] = prop
	}
	merged.Required = append([]string(nil), src.Required...)
	merged.Extensions = map[string]any{}
	for key, value := range src.Extensions {
		merged.Extensions[key] = value
	}

	for _, part := range src.AllOf {
		if part == nil || part.Value == nil {
			continue
		}
		value := part.Value
		if len(value.AllOf) > 0 {
			value = mergeAllOf(value)
		}
		if merged.Type == nil && value.Type != nil {
			merged.Type = value.Type
		}
		if merged.Description == "" {
			merged.Description = value.Description
		}
		if merged.Discriminator == nil {
			merged.Discriminator = value.Discriminator
		}
		if merged.Default == nil {
			merged.Default = value.Default
		}
		for name, prop := range value.Properties {
			if _, exists := merged.Properties[name]; !exists {
				merged.Properties[name] = prop
			}
		}
		merged.Required = append(merged.Required, value.Required...)
		for key, ext := range value.Extensions {
			if _, exists := merged.Extensions[key]; !exists {
				merged.Extensions[key] = ext
			}
		}
	}
	return &merged
}
