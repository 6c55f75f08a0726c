// Package memory provides an in-process DocumentStore and BlobStore. It keeps
// everything in maps guarded by a mutex and is meant for tests, demos and the
// CLI's default driver.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-formsync/internal/valuepath"
	"github.com/goliatone/go-formsync/pkg/store"
)

// DefaultChunkSize is the number of bytes reported per progress tick.
const DefaultChunkSize = 64 * 1024

// Option customises a Store.
type Option func(*Store)

// WithClock overrides the clock used to resolve server timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides the generator used by Create.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithChunkSize sets how many bytes each upload progress tick covers.
func WithChunkSize(size int) Option {
	return func(s *Store) {
		if size > 0 {
			s.chunkSize = size
		}
	}
}

type document struct {
	data      map[string]any
	updatedAt time.Time
}

// Store implements store.DocumentStore and store.BlobStore in memory.
type Store struct {
	mu        sync.RWMutex
	docs      map[string]document
	blobs     map[string][]byte
	hub       *store.Hub
	now       func() time.Time
	newID     func() string
	chunkSize int
	closed    bool
}

var (
	_ store.DocumentStore = (*Store)(nil)
	_ store.BlobStore     = (*Store)(nil)
)

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		docs:      make(map[string]document),
		blobs:     make(map[string][]byte),
		hub:       store.NewHub(),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
		chunkSize: DefaultChunkSize,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *Store) Subscribe(ctx context.Context, ref store.Ref, fn store.SnapshotFunc) (store.Unsubscribe, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, fmt.Errorf("memory: subscribe %s: nil callback", ref)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, store.ErrClosed
	}
	return s.hub.Subscribe(ctx, ref, s.snapshotLocked(ref), fn), nil
}

func (s *Store) Create(ctx context.Context, collection string, data map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(collection) == "" {
		return "", fmt.Errorf("%w: empty collection", store.ErrInvalidRef)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", store.ErrClosed
	}
	ref := store.Ref{Collection: collection, ID: s.newID()}
	s.writeLocked(ref, data)
	return ref.ID, nil
}

func (s *Store) Set(ctx context.Context, ref store.Ref, data map[string]any, merge bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ref.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}
	if existing, ok := s.docs[ref.Path()]; ok && merge {
		data = store.Merge(existing.data, data)
	}
	s.writeLocked(ref, data)
	return nil
}

func (s *Store) Update(ctx context.Context, ref store.Ref, partial map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ref.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}
	existing, ok := s.docs[ref.Path()]
	if !ok {
		return fmt.Errorf("%w: %s", store.ErrNotFound, ref)
	}
	updated, err := store.ApplyUpdate(existing.data, partial)
	if err != nil {
		return err
	}
	s.writeLocked(ref, updated)
	return nil
}

func (s *Store) Get(ctx context.Context, ref store.Ref) (store.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return store.Snapshot{}, err
	}
	if err := ref.Validate(); err != nil {
		return store.Snapshot{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return store.Snapshot{}, store.ErrClosed
	}
	return s.snapshotLocked(ref), nil
}

// Upload stores data under path, reporting progress in chunks, and returns a
// "memory://" reference.
func (s *Store) Upload(ctx context.Context, path string, data []byte, progress store.ProgressFunc) (string, error) {
	path = strings.Trim(strings.TrimSpace(path), "/")
	if path == "" {
		return "", fmt.Errorf("memory: upload: empty path")
	}
	total := int64(len(data))
	for sent := int64(0); sent < total; {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		sent += int64(s.chunkSize)
		if sent > total {
			sent = total
		}
		if progress != nil && sent < total {
			progress(sent, total)
		}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", store.ErrClosed
	}
	s.blobs[path] = append([]byte(nil), data...)
	s.mu.Unlock()

	if progress != nil {
		progress(total, total)
	}
	return "memory://" + path, nil
}

// Blob returns a copy of an uploaded payload.
func (s *Store) Blob(path string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[strings.Trim(path, "/")]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

// Close stops every subscription. Further calls fail with store.ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	s.hub.Close()
	return nil
}

func (s *Store) writeLocked(ref store.Ref, data map[string]any) {
	now := s.now()
	resolved := store.ResolveTimestamps(data, now)
	if resolved == nil {
		resolved = map[string]any{}
	}
	s.docs[ref.Path()] = document{data: resolved, updatedAt: now}
	s.hub.Publish(store.Snapshot{Ref: ref, Exists: true, Data: resolved, UpdatedAt: now})
}

func (s *Store) snapshotLocked(ref store.Ref) store.Snapshot {
	doc, ok := s.docs[ref.Path()]
	if !ok {
		return store.Snapshot{Ref: ref}
	}
	return store.Snapshot{
		Ref:       ref,
		Exists:    true,
		Data:      valuepath.CloneMap(doc.data),
		UpdatedAt: doc.updatedAt,
	}
}
