// Package formsync derives forms from schemas and keeps their values in sync
// with a document store.
//
// The subpackages can be used on their own; this package wires the common
// path of loading a schema, building a form and binding it to a document.
package formsync

import (
	"context"
	"fmt"

	"github.com/goliatone/go-formsync/pkg/docsync"
	"github.com/goliatone/go-formsync/pkg/form"
	"github.com/goliatone/go-formsync/pkg/schema"
	"github.com/goliatone/go-formsync/pkg/schema/openapi"
	"github.com/goliatone/go-formsync/pkg/store"
)

// Source identifies where a schema document is read from.
type Source = openapi.Source

// Ref addresses one document in a store.
type Ref = store.Ref

// SourceFromFile, SourceFromFS and SourceFromURL re-export the openapi
// source constructors.
var (
	SourceFromFile = openapi.SourceFromFile
	SourceFromFS   = openapi.SourceFromFS
	SourceFromURL  = openapi.SourceFromURL
)

// LoadSchema reads src and converts it. With an operationID the source is an
// OpenAPI document and the operation's request body is used; otherwise the
// source is a standalone schema.
func LoadSchema(ctx context.Context, src Source, operationID string, options ...openapi.LoaderOption) (*schema.Node, error) {
	data, err := openapi.NewLoader(options...).Load(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("formsync: load %s: %w", src, err)
	}
	if operationID == "" {
		return openapi.ParseSchema(data)
	}
	doc, err := openapi.LoadDocument(ctx, data)
	if err != nil {
		return nil, err
	}
	return openapi.RequestSchema(doc, operationID)
}

// NewForm loads a schema as LoadSchema does and returns a form seeded with
// its defaults.
func NewForm(ctx context.Context, src Source, operationID string, options ...openapi.LoaderOption) (*form.Engine, error) {
	node, err := LoadSchema(ctx, src, operationID, options...)
	if err != nil {
		return nil, err
	}
	return form.New(form.WithSchema(node)), nil
}

// Sync creates a docsync engine for node over docs and binds it. The caller
// owns the engine and must Close it.
func Sync(ctx context.Context, docs store.DocumentStore, node *schema.Node, options ...docsync.Option) (*docsync.Engine, error) {
	engine, err := docsync.New(docs, append([]docsync.Option{docsync.WithSchema(node)}, options...)...)
	if err != nil {
		return nil, err
	}
	if err := engine.Bind(ctx); err != nil {
		_ = engine.Close()
		return nil, err
	}
	return engine, nil
}
