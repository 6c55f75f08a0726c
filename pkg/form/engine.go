// Package form owns the live value tree of one mounted form. All reads and
// writes go through the engine's path API; collaborators such as the document
// sync engine and the upload coordinator never hold their own copy.
package form

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/goliatone/go-formsync/internal/valuepath"
	"github.com/goliatone/go-formsync/pkg/defaults"
	"github.com/goliatone/go-formsync/pkg/schema"
	"github.com/goliatone/go-formsync/pkg/validation"
)

var errEmptyPath = errors.New("form: path is required")

// Source identifies who changed the value tree.
type Source string

const (
	SourceUser   Source = "user"
	SourceRemote Source = "remote"
	SourceReset  Source = "reset"
	SourceUpload Source = "upload"
)

// Change describes one mutation of the value tree. Path is empty when the
// whole tree was replaced. Values is a snapshot taken after the change.
type Change struct {
	Path   string
	Value  any
	Source Source
	Values map[string]any
}

// Listener observes value tree changes. Listeners run synchronously on the
// goroutine that made the change, after the engine lock is released.
type Listener func(Change)

// Option configures an Engine.
type Option func(*Engine)

// WithSchema sets the schema used by Validate and seeds the tree with its
// synthesized defaults.
func WithSchema(node *schema.Node) Option {
	return func(e *Engine) {
		e.schema = node
	}
}

// WithValues seeds the tree. Values are merged over schema defaults.
func WithValues(values map[string]any) Option {
	return func(e *Engine) {
		e.initial = values
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

// Engine holds the form value tree plus the latest validation errors.
type Engine struct {
	schema  *schema.Node
	initial map[string]any
	logger  *zap.Logger

	mu        sync.RWMutex
	values    map[string]any
	errors    map[string]string
	listeners map[int]Listener
	nextID    int
}

// New constructs an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		logger:    zap.NewNop(),
		errors:    map[string]string{},
		listeners: map[int]Listener{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	e.values = defaults.Synthesize(e.schema)
	for key, value := range e.initial {
		e.values[key] = valuepath.Clone(value)
	}
	e.initial = nil
	return e
}

// Schema returns the engine schema, possibly nil.
func (e *Engine) Schema() *schema.Node {
	return e.schema
}

// Get reads the value at path.
func (e *Engine) Get(path string) (any, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	value, ok := valuepath.Get(e.values, path)
	if !ok {
		return nil, false
	}
	return valuepath.Clone(value), true
}

// Values returns a deep copy of the value tree.
func (e *Engine) Values() map[string]any {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return valuepath.CloneMap(e.values)
}

// SetValue writes value at path as a user edit.
func (e *Engine) SetValue(path string, value any) error {
	return e.SetValueFrom(SourceUser, path, value)
}

// SetValueFrom writes value at path and tags the change with source.
func (e *Engine) SetValueFrom(source Source, path string, value any) error {
	if path == "" {
		return errEmptyPath
	}
	e.mu.Lock()
	if err := valuepath.Set(e.values, path, valuepath.Clone(value)); err != nil {
		e.mu.Unlock()
		return fmt.Errorf("form: set value: %w", err)
	}
	delete(e.errors, path)
	change := Change{Path: path, Value: value, Source: source, Values: valuepath.CloneMap(e.values)}
	listeners := e.snapshotListeners()
	e.mu.Unlock()

	e.notify(listeners, change)
	return nil
}

// Reset replaces the whole tree. A nil map clears it.
func (e *Engine) Reset(values map[string]any, source Source) {
	e.mu.Lock()
	e.values = valuepath.CloneMap(values)
	if e.values == nil {
		e.values = map[string]any{}
	}
	e.errors = map[string]string{}
	change := Change{Source: source, Values: valuepath.CloneMap(e.values)}
	listeners := e.snapshotListeners()
	e.mu.Unlock()

	e.logger.Debug("form: value tree reset", zap.String("source", string(source)), zap.Int("keys", len(change.Values)))
	e.notify(listeners, change)
}

// Subscribe registers fn for future changes and returns a function removing
// it.
func (e *Engine) Subscribe(fn Listener) func() {
	if fn == nil {
		return func() {}
	}
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.listeners[id] = fn
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.listeners, id)
			e.mu.Unlock()
		})
	}
}

// Validate checks the current tree against the engine schema and stores the
// resulting field errors. Without a schema the tree is always valid.
func (e *Engine) Validate() validation.Result {
	values := e.Values()
	if e.schema == nil {
		return validation.Result{Success: true, Data: values}
	}
	result := validation.Validate(e.schema, values)

	e.mu.Lock()
	e.errors = result.FieldErrors()
	if e.errors == nil {
		e.errors = map[string]string{}
	}
	e.mu.Unlock()
	return result
}

// Errors returns the field errors from the last validation.
func (e *Engine) Errors() map[string]string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]string, len(e.errors))
	for key, value := range e.errors {
		out[key] = value
	}
	return out
}

// Error returns the stored error for one field path.
func (e *Engine) Error(path string) string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.errors[path]
}

// SetErrors replaces the stored field errors, e.g. with errors reported by a
// remote store.
func (e *Engine) SetErrors(errs map[string]string) {
	e.mu.Lock()
	e.errors = make(map[string]string, len(errs))
	for key, value := range errs {
		e.errors[key] = value
	}
	e.mu.Unlock()
}

func (e *Engine) snapshotListeners() []Listener {
	if len(e.listeners) == 0 {
		return nil
	}
	ids := make([]int, 0, len(e.listeners))
	for id := range e.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]Listener, 0, len(ids))
	for _, id := range ids {
		out = append(out, e.listeners[id])
	}
	return out
}

func (e *Engine) notify(listeners []Listener, change Change) {
	for _, listener := range listeners {
		listener(change)
	}
}
