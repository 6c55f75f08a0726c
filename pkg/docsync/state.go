package docsync

import (
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-formsync/pkg/store"
)

// State is the lifecycle state of a bound form.
type State int

const (
	StateUnbound State = iota
	StateLoading
	StateBound
	StateSaving
	StateError
)

func (s State) String() string {
	switch s {
	case StateUnbound:
		return "unbound"
	case StateLoading:
		return "loading"
	case StateBound:
		return "bound"
	case StateSaving:
		return "saving"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MetadataKey is the document field holding the write stamps.
const MetadataKey = "_metadata"

var (
	// ErrMissingCollection is returned by Save when neither a collection nor
	// a document ref was configured.
	ErrMissingCollection = errors.New("docsync: collection is required")
	// ErrNilStore is returned by New without a document store.
	ErrNilStore = errors.New("docsync: document store is required")
	// ErrClosed is returned by operations after Close.
	ErrClosed = errors.New("docsync: engine closed")
)

// Operations reported by SyncError.
const (
	OpLoad   = "load"
	OpCreate = "create"
	OpUpdate = "update"
)

// SyncError wraps a load or save failure. It is retained by the engine until
// the next successful save or snapshot.
type SyncError struct {
	Op  string
	Ref store.Ref
	Err error
}

func (e *SyncError) Error() string {
	if e.Ref.ID == "" {
		return fmt.Sprintf("docsync: %s %s: %v", e.Op, e.Ref.Collection, e.Err)
	}
	return fmt.Sprintf("docsync: %s %s: %v", e.Op, e.Ref, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

// Metadata holds the creation and update stamps of a document.
type Metadata struct {
	CreatedAt time.Time
	CreatedBy string
	UpdatedAt time.Time
	UpdatedBy string
}

// Binding describes the document a form is bound to. DocumentID stays empty
// until the first save creates the document and never changes afterwards.
type Binding struct {
	Collection   string
	DocumentID   string
	LastSnapshot *store.Snapshot
	Metadata     *Metadata
}

// Ref returns the document reference, or false while unbound.
func (b Binding) Ref() (store.Ref, bool) {
	if b.Collection == "" || b.DocumentID == "" {
		return store.Ref{}, false
	}
	return store.Ref{Collection: b.Collection, ID: b.DocumentID}, true
}

func parseMetadata(raw any) *Metadata {
	fields, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	meta := &Metadata{}
	meta.CreatedAt, _ = store.AsTime(fields["createdAt"])
	meta.UpdatedAt, _ = store.AsTime(fields["updatedAt"])
	meta.CreatedBy, _ = fields["createdBy"].(string)
	meta.UpdatedBy, _ = fields["updatedBy"].(string)
	return meta
}
