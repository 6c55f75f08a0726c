// Package upload coordinates blob uploads and hands the resolved reference
// back to the form. Each upload is tracked by a Task that moves from Idle to
// Uploading and ends Complete or Failed; callbacks see every progress tick
// and exactly one terminal event.
package upload

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/goliatone/go-formsync/pkg/form"
	"github.com/goliatone/go-formsync/pkg/store"
)

// State is the lifecycle state of one upload.
type State int

const (
	StateIdle State = iota
	StateUploading
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateUploading:
		return "uploading"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrNilStore is returned by New without a blob store.
var ErrNilStore = errors.New("upload: blob store is required")

// Error reports a failed upload.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("upload: %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Callbacks observe one upload. All of them are optional and run on the
// upload goroutine, one at a time.
type Callbacks struct {
	// OnProgress receives the percentage transferred, 0 to 100, never
	// decreasing.
	OnProgress func(percent float64)
	OnComplete func(reference string)
	OnError    func(err error)
}

// Item is one entry of a batch upload.
type Item struct {
	Path      string
	Data      []byte
	Callbacks Callbacks
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the coordinator logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithConcurrency caps how many uploads of a batch run at once. Zero or less
// runs all of them together.
func WithConcurrency(n int) Option {
	return func(c *Coordinator) {
		c.concurrency = n
	}
}

// Coordinator starts uploads against a blob store.
type Coordinator struct {
	blobs       store.BlobStore
	logger      *zap.Logger
	concurrency int
}

// New creates a coordinator.
func New(blobs store.BlobStore, opts ...Option) (*Coordinator, error) {
	if blobs == nil {
		return nil, ErrNilStore
	}
	c := &Coordinator{blobs: blobs, logger: zap.NewNop()}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Upload starts uploading data to path and returns its task immediately.
func (c *Coordinator) Upload(ctx context.Context, path string, data []byte, cb Callbacks) *Task {
	task := newTask(path, cb)
	go c.run(ctx, task, data, nil)
	return task
}

// UploadAll starts every item and returns their tasks in the same order. A
// failed item does not stop the others.
func (c *Coordinator) UploadAll(ctx context.Context, items []Item) []*Task {
	tasks := make([]*Task, len(items))
	var slots chan struct{}
	if c.concurrency > 0 {
		slots = make(chan struct{}, c.concurrency)
	}
	for i, item := range items {
		tasks[i] = newTask(item.Path, item.Callbacks)
		go c.run(ctx, tasks[i], item.Data, slots)
	}
	return tasks
}

// UploadToField uploads data and writes the resolved reference to field.
func (c *Coordinator) UploadToField(ctx context.Context, f *form.Engine, field, path string, data []byte, cb Callbacks) *Task {
	return c.Upload(ctx, path, data, BindToForm(f, field, cb))
}

// BindToForm wraps cb so a completed upload stores its reference at field
// through the form engine. A failing write is reported through OnError.
func BindToForm(f *form.Engine, field string, cb Callbacks) Callbacks {
	next := cb.OnComplete
	onError := cb.OnError
	cb.OnComplete = func(reference string) {
		if err := f.SetValueFrom(form.SourceUpload, field, reference); err != nil {
			if onError != nil {
				onError(fmt.Errorf("upload: bind %s: %w", field, err))
			}
			return
		}
		if next != nil {
			next(reference)
		}
	}
	return cb
}

func (c *Coordinator) run(ctx context.Context, task *Task, data []byte, slots chan struct{}) {
	if slots != nil {
		select {
		case slots <- struct{}{}:
			defer func() { <-slots }()
		case <-ctx.Done():
			task.fail(&Error{Path: task.Path, Err: ctx.Err()})
			return
		}
	}

	task.start()
	c.logger.Debug("upload: started", zap.String("path", task.Path), zap.Int("bytes", len(data)))

	reference, err := c.blobs.Upload(ctx, task.Path, data, task.progress)
	if err != nil {
		c.logger.Warn("upload: failed", zap.String("path", task.Path), zap.Error(err))
		task.fail(&Error{Path: task.Path, Err: err})
		return
	}
	c.logger.Debug("upload: complete", zap.String("path", task.Path), zap.String("reference", reference))
	task.complete(reference)
}

// Task tracks one upload.
type Task struct {
	Path string

	cb   Callbacks
	done chan struct{}
	once sync.Once

	// cbMu keeps callbacks from overlapping.
	cbMu sync.Mutex

	mu        sync.Mutex
	state     State
	percent   float64
	reference string
	err       error
}

func newTask(path string, cb Callbacks) *Task {
	return &Task{Path: path, cb: cb, done: make(chan struct{})}
}

// State returns the current state.
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Progress returns the last reported percentage.
func (t *Task) Progress() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.percent
}

// Reference returns the resolved reference once complete.
func (t *Task) Reference() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reference
}

// Err returns the failure once failed.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Done is closed when the task completes or fails.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task ends or ctx is done.
func (t *Task) Wait(ctx context.Context) (string, error) {
	select {
	case <-t.done:
		t.mu.Lock()
		defer t.mu.Unlock()
		return t.reference, t.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (t *Task) start() {
	t.mu.Lock()
	if t.state == StateIdle {
		t.state = StateUploading
	}
	t.mu.Unlock()
}

func (t *Task) progress(transferred, total int64) {
	percent := 100.0
	if total > 0 {
		percent = float64(transferred) / float64(total) * 100
	}
	percent = min(max(percent, 0), 100)

	t.cbMu.Lock()
	defer t.cbMu.Unlock()

	t.mu.Lock()
	if t.state != StateUploading {
		t.mu.Unlock()
		return
	}
	if percent < t.percent {
		percent = t.percent
	}
	t.percent = percent
	t.mu.Unlock()

	if t.cb.OnProgress != nil {
		t.cb.OnProgress(percent)
	}
}

func (t *Task) complete(reference string) {
	t.once.Do(func() {
		t.cbMu.Lock()
		defer t.cbMu.Unlock()

		t.mu.Lock()
		t.state = StateComplete
		t.reference = reference
		t.mu.Unlock()

		if t.cb.OnComplete != nil {
			t.cb.OnComplete(reference)
		}
		t.release()
	})
}

func (t *Task) fail(err error) {
	t.once.Do(func() {
		t.cbMu.Lock()
		defer t.cbMu.Unlock()

		t.mu.Lock()
		t.state = StateFailed
		t.err = err
		t.mu.Unlock()

		if t.cb.OnError != nil {
			t.cb.OnError(err)
		}
		t.release()
	})
}

// release drops the callbacks and signals waiters.
func (t *Task) release() {
	t.cb = Callbacks{}
	close(t.done)
}
