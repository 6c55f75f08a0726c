// Package store defines the document and blob store contracts consumed by the
// sync engine and the upload coordinator, plus helpers shared by the
// adapters under store/.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned by Get and Update when the document is missing.
	ErrNotFound = errors.New("store: document not found")
	// ErrInvalidRef is returned for refs without a collection or id.
	ErrInvalidRef = errors.New("store: invalid document reference")
	// ErrClosed is returned after the store has been closed.
	ErrClosed = errors.New("store: closed")
)

// Ref addresses one document.
type Ref struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
}

// Path renders the ref as "collection/id".
func (r Ref) Path() string {
	return r.Collection + "/" + r.ID
}

func (r Ref) String() string {
	return r.Path()
}

// Validate reports ErrInvalidRef when either part is empty.
func (r Ref) Validate() error {
	if strings.TrimSpace(r.Collection) == "" || strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("%w: %q", ErrInvalidRef, r.Path())
	}
	return nil
}

// ParseRef parses "collection/id". Nested collection paths keep everything
// up to the last slash as the collection.
func ParseRef(path string) (Ref, error) {
	trimmed := strings.Trim(strings.TrimSpace(path), "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx <= 0 || idx == len(trimmed)-1 {
		return Ref{}, fmt.Errorf("%w: %q", ErrInvalidRef, path)
	}
	return Ref{Collection: trimmed[:idx], ID: trimmed[idx+1:]}, nil
}

// Snapshot is one observed state of a document. Exists is false when the
// document has not been written yet; Data is then nil.
type Snapshot struct {
	Ref       Ref            `json:"ref"`
	Exists    bool           `json:"exists"`
	Data      map[string]any `json:"data,omitempty"`
	UpdatedAt time.Time      `json:"updatedAt,omitempty"`
}

// SnapshotFunc receives snapshot-or-error events in delivery order.
type SnapshotFunc func(Snapshot, error)

// Unsubscribe stops snapshot delivery. It is safe to call more than once.
type Unsubscribe func()

// DocumentStore is the remote document store the sync engine writes to.
type DocumentStore interface {
	// Subscribe delivers the current snapshot followed by every change until
	// the returned function is called or ctx is cancelled.
	Subscribe(ctx context.Context, ref Ref, fn SnapshotFunc) (Unsubscribe, error)
	// Create stores data under a generated id and returns it.
	Create(ctx context.Context, collection string, data map[string]any) (string, error)
	// Set writes data. With merge, nested maps are merged into the existing
	// document instead of replacing it.
	Set(ctx context.Context, ref Ref, data map[string]any, merge bool) error
	// Update applies partial to an existing document. Keys may be dotted
	// paths ("_metadata.updatedAt").
	Update(ctx context.Context, ref Ref, partial map[string]any) error
	// Get reads the current snapshot.
	Get(ctx context.Context, ref Ref) (Snapshot, error)
}

// ProgressFunc reports upload progress in bytes.
type ProgressFunc func(transferred, total int64)

// BlobStore uploads binary payloads and returns a stable reference (URL).
type BlobStore interface {
	Upload(ctx context.Context, path string, data []byte, progress ProgressFunc) (string, error)
}
