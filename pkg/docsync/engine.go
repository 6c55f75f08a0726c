// Package docsync keeps a form's value tree in step with a remote document.
//
// An Engine subscribes to the bound document and applies every snapshot to
// the form through its public API, writes the form back on Save (or after
// the auto-save debounce) and stamps creation and update metadata. Load and
// save failures are kept in state and never stop the form from being edited.
//
// A save in flight does not hold back incoming snapshots. The last snapshot
// applied wins, even if it predates the save that is still running.
package docsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-formsync/internal/valuepath"
	"github.com/goliatone/go-formsync/pkg/form"
	"github.com/goliatone/go-formsync/pkg/schema"
	"github.com/goliatone/go-formsync/pkg/store"
	"github.com/goliatone/go-formsync/pkg/validation"
)

// Engine synchronises one form with one document.
type Engine struct {
	docs            store.DocumentStore
	form            *form.Engine
	schema          *schema.Node
	autoSave        time.Duration
	includeMetadata bool
	user            func() string
	beforeSave      Transform
	afterLoad       Transform
	logger          *zap.Logger
	clock           Clock
	onStateChange   func(State)
	onSaved         func(store.Ref)
	onError         func(error)

	ctx       context.Context
	cancel    context.CancelFunc
	debouncer *Debouncer
	formUnsub func()

	// saveMu serialises writes so a create finishes before the next save.
	saveMu sync.Mutex

	mu          sync.Mutex
	state       State
	err         error
	binding     Binding
	unsubscribe store.Unsubscribe
	closed      bool
}

// New creates an engine writing to docs. Call Bind to start listening to an
// existing document.
func New(docs store.DocumentStore, opts ...Option) (*Engine, error) {
	if docs == nil {
		return nil, ErrNilStore
	}
	e := &Engine{
		docs:            docs,
		includeMetadata: true,
		logger:          zap.NewNop(),
		clock:           SystemClock,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	if e.form == nil {
		e.form = form.New(form.WithSchema(e.schema), form.WithLogger(e.logger))
	}
	if e.schema == nil {
		e.schema = e.form.Schema()
	}
	if e.binding.DocumentID != "" && e.binding.Collection == "" {
		return nil, ErrMissingCollection
	}

	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.debouncer = NewDebouncer(e.autoSave, e.clock)
	e.formUnsub = e.form.Subscribe(e.handleChange)
	return e, nil
}

// Form returns the synchronised form engine.
func (e *Engine) Form() *form.Engine {
	return e.form
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Err returns the last load or save failure, cleared by the next success.
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Binding returns a copy of the current binding.
func (e *Engine) Binding() Binding {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.binding
	if out.LastSnapshot != nil {
		snap := *out.LastSnapshot
		snap.Data = valuepath.CloneMap(snap.Data)
		out.LastSnapshot = &snap
	}
	if out.Metadata != nil {
		meta := *out.Metadata
		out.Metadata = &meta
	}
	return out
}

// Bind subscribes to the configured document. Without a document id the
// engine stays unbound until the first save creates one. Calling Bind again
// while subscribed does nothing.
func (e *Engine) Bind(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	ref, ok := e.binding.Ref()
	if !ok || e.unsubscribe != nil {
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()

	e.transition(StateLoading, nil, false)
	return e.subscribe(ctx, ref)
}

// Save writes the current form values. It validates first when a schema is
// available and returns the validation error without touching the store.
func (e *Engine) Save(ctx context.Context) error {
	if err := e.checkSavable(); err != nil {
		return err
	}
	values := e.form.Values()
	if result := e.validateForm(values); !result.Success {
		return result.Err()
	}
	return e.save(ctx, values)
}

// SaveValues writes values instead of the form tree.
func (e *Engine) SaveValues(ctx context.Context, values map[string]any) error {
	if err := e.checkSavable(); err != nil {
		return err
	}
	if e.schema != nil {
		if result := validation.Validate(e.schema, values); !result.Success {
			return result.Err()
		}
	}
	return e.save(ctx, values)
}

// Close cancels the subscription and any pending auto-save. A save already
// in flight may still complete but no longer reports back.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	unsubscribe := e.unsubscribe
	e.unsubscribe = nil
	e.mu.Unlock()

	e.debouncer.Stop()
	e.formUnsub()
	e.cancel()
	if unsubscribe != nil {
		unsubscribe()
	}
	e.logger.Debug("docsync: engine closed")
	return nil
}

func (e *Engine) checkSavable() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if e.binding.Collection == "" {
		return ErrMissingCollection
	}
	return nil
}

func (e *Engine) subscribe(ctx context.Context, ref store.Ref) error {
	if ctx == nil {
		ctx = e.ctx
	}
	// The subscription ends on Close or when the caller's ctx is done.
	subCtx, cancel := context.WithCancel(e.ctx)
	stopOnCallerDone := context.AfterFunc(ctx, cancel)

	unsubscribe, err := e.docs.Subscribe(subCtx, ref, e.handleSnapshot)
	if err != nil {
		stopOnCallerDone()
		cancel()
		syncErr := &SyncError{Op: OpLoad, Ref: ref, Err: err}
		e.transition(StateError, syncErr, true)
		return syncErr
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		stopOnCallerDone()
		cancel()
		unsubscribe()
		return ErrClosed
	}
	e.unsubscribe = func() {
		stopOnCallerDone()
		cancel()
		unsubscribe()
	}
	e.mu.Unlock()

	e.logger.Debug("docsync: subscribed", zap.String("ref", ref.String()))
	return nil
}

func (e *Engine) handleSnapshot(snap store.Snapshot, err error) {
	if e.isClosed() {
		return
	}
	if err != nil {
		ref, _ := e.Binding().Ref()
		e.logger.Warn("docsync: snapshot error", zap.String("ref", ref.String()), zap.Error(err))
		e.transition(StateError, &SyncError{Op: OpLoad, Ref: ref, Err: err}, true)
		return
	}

	data := valuepath.CloneMap(snap.Data)
	if snap.Exists && e.afterLoad != nil {
		data = e.afterLoad(data)
	}
	meta := parseMetadata(data[MetadataKey])
	delete(data, MetadataKey)

	if snap.Exists {
		e.form.Reset(data, form.SourceRemote)
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	last := snap
	last.Data = valuepath.CloneMap(snap.Data)
	e.binding.LastSnapshot = &last
	if meta != nil {
		e.binding.Metadata = meta
	}
	next, changed := e.state, false
	switch {
	case e.state == StateLoading:
		next, changed = StateBound, true
	case e.state == StateError && isLoadError(e.err):
		next, changed = StateBound, true
	}
	e.mu.Unlock()
	if changed {
		e.transition(next, nil, false)
	}
}

func (e *Engine) handleChange(change form.Change) {
	if change.Source == form.SourceRemote || e.autoSave <= 0 {
		return
	}
	e.debouncer.Trigger(e.runAutoSave)
}

func (e *Engine) runAutoSave() {
	if err := e.checkSavable(); err != nil {
		if !errors.Is(err, ErrClosed) {
			e.logger.Debug("docsync: auto-save skipped", zap.Error(err))
		}
		return
	}
	values := e.form.Values()
	if result := e.validateForm(values); !result.Success {
		e.logger.Debug("docsync: auto-save skipped, form invalid", zap.Int("errors", len(result.Errors)))
		return
	}
	// Failures are already recorded in state and reported through OnError.
	_ = e.save(e.ctx, values)
}

// validateForm checks values against the engine schema, which may differ from
// the form's own, and stores the field errors on the form.
func (e *Engine) validateForm(values map[string]any) validation.Result {
	if e.schema == nil {
		return validation.Result{Success: true, Data: values}
	}
	result := validation.Validate(e.schema, values)
	e.form.SetErrors(result.FieldErrors())
	return result
}

func (e *Engine) save(ctx context.Context, values map[string]any) error {
	e.saveMu.Lock()
	defer e.saveMu.Unlock()

	e.mu.Lock()
	binding := e.binding
	e.mu.Unlock()

	e.transition(StateSaving, nil, false)

	payload := valuepath.CloneMap(values)
	if payload == nil {
		payload = map[string]any{}
	}
	delete(payload, MetadataKey)
	creating := binding.DocumentID == ""
	if e.includeMetadata {
		payload[MetadataKey] = e.stamp(creating)
	}
	if e.beforeSave != nil {
		payload = e.beforeSave(payload)
	}

	ref := store.Ref{Collection: binding.Collection, ID: binding.DocumentID}
	var err error
	if creating {
		ref.ID, err = e.docs.Create(ctx, binding.Collection, payload)
	} else {
		// Merge keeps the creation stamps the payload does not repeat.
		err = e.docs.Set(ctx, ref, payload, true)
	}

	if err != nil {
		op := OpUpdate
		if creating {
			op = OpCreate
		}
		syncErr := &SyncError{Op: op, Ref: ref, Err: err}
		e.logger.Warn("docsync: save failed", zap.String("op", op), zap.String("ref", ref.String()), zap.Error(err))
		e.transition(StateError, syncErr, true)
		return syncErr
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	if creating {
		e.binding.DocumentID = ref.ID
	}
	e.mu.Unlock()

	e.logger.Debug("docsync: saved", zap.String("ref", ref.String()), zap.Bool("created", creating))
	e.transition(StateBound, nil, false)
	if e.onSaved != nil {
		e.onSaved(ref)
	}

	if creating {
		if err := e.subscribe(e.ctx, ref); err != nil && !errors.Is(err, ErrClosed) {
			return err
		}
	}
	return nil
}

func (e *Engine) stamp(creating bool) map[string]any {
	var actor any
	if e.user != nil {
		if id := e.user(); id != "" {
			actor = id
		}
	}
	meta := map[string]any{
		"updatedAt": store.ServerTimestamp,
		"updatedBy": actor,
	}
	if creating {
		meta["createdAt"] = store.ServerTimestamp
		meta["createdBy"] = actor
	}
	return meta
}

// transition moves to next. With report, err is retained and passed to
// OnError; otherwise the retained error is cleared unless next is an error
// state. Callbacks are skipped once the engine is closed.
func (e *Engine) transition(next State, err error, report bool) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	changed := e.state != next
	e.state = next
	switch {
	case report:
		e.err = err
	case next == StateBound:
		e.err = nil
	}
	onState, onError := e.onStateChange, e.onError
	e.mu.Unlock()

	if changed && onState != nil {
		onState(next)
	}
	if report && onError != nil {
		onError(err)
	}
}

func (e *Engine) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

func isLoadError(err error) bool {
	var syncErr *SyncError
	return errors.As(err, &syncErr) && syncErr.Op == OpLoad
}

// String renders the engine binding for logs.
func (e *Engine) String() string {
	b := e.Binding()
	return fmt.Sprintf("docsync(%s/%s, %s)", b.Collection, b.DocumentID, e.State())
}
