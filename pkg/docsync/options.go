package docsync

import (
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-formsync/pkg/form"
	"github.com/goliatone/go-formsync/pkg/schema"
	"github.com/goliatone/go-formsync/pkg/store"
)

// Transform rewrites a document payload. Transforms receive their own copy
// and return the value to use.
type Transform func(map[string]any) map[string]any

// Option configures an Engine.
type Option func(*Engine)

// WithCollection sets the collection new documents are created in.
func WithCollection(collection string) Option {
	return func(e *Engine) {
		e.binding.Collection = collection
	}
}

// WithDocumentID binds to an existing document in the configured collection.
func WithDocumentID(id string) Option {
	return func(e *Engine) {
		e.binding.DocumentID = id
	}
}

// WithDocumentRef binds to an explicit document reference.
func WithDocumentRef(ref store.Ref) Option {
	return func(e *Engine) {
		e.binding.Collection = ref.Collection
		e.binding.DocumentID = ref.ID
	}
}

// WithForm sets the form engine whose value tree is synchronised. Without
// it the engine creates one from the schema.
func WithForm(f *form.Engine) Option {
	return func(e *Engine) {
		e.form = f
	}
}

// WithSchema sets the schema that gates saves. Defaults to the form schema.
func WithSchema(node *schema.Node) Option {
	return func(e *Engine) {
		e.schema = node
	}
}

// WithAutoSave saves after delay of inactivity following each local edit.
// Zero disables auto-save.
func WithAutoSave(delay time.Duration) Option {
	return func(e *Engine) {
		e.autoSave = delay
	}
}

// WithMetadata toggles the _metadata stamps. Enabled by default.
func WithMetadata(enabled bool) Option {
	return func(e *Engine) {
		e.includeMetadata = enabled
	}
}

// WithUser supplies the id of the acting user. An empty id is stored as null.
func WithUser(user func() string) Option {
	return func(e *Engine) {
		e.user = user
	}
}

// WithTransformBeforeSave runs fn on the assembled payload right before the
// write call.
func WithTransformBeforeSave(fn Transform) Option {
	return func(e *Engine) {
		e.beforeSave = fn
	}
}

// WithTransformAfterLoad runs fn on snapshot data before it reaches the form.
func WithTransformAfterLoad(fn Transform) Option {
	return func(e *Engine) {
		e.afterLoad = fn
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock overrides the clock driving the auto-save debounce.
func WithClock(clock Clock) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithOnStateChange registers a state transition callback.
func WithOnStateChange(fn func(State)) Option {
	return func(e *Engine) {
		e.onStateChange = fn
	}
}

// WithOnSaved registers a callback receiving the saved document ref.
func WithOnSaved(fn func(store.Ref)) Option {
	return func(e *Engine) {
		e.onSaved = fn
	}
}

// WithOnError registers a callback receiving load and save failures.
func WithOnError(fn func(error)) Option {
	return func(e *Engine) {
		e.onError = fn
	}
}
