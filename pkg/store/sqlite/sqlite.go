// Package sqlite persists documents in a SQLite database through the pure Go
// modernc.org/sqlite driver. Document bodies are stored as JSON; snapshot
// subscriptions are served in-process.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/goliatone/go-formsync/pkg/store"
)

const schemaSQL = `CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	data       TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (collection, id)
)`

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

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Store implements store.DocumentStore on SQLite.
type Store struct {
	db     *sql.DB
	owned  bool
	hub    *store.Hub
	now    func() time.Time
	logger *zap.Logger

	// mu serialises writes so snapshots are published in commit order.
	mu     sync.Mutex
	closed bool
}

var _ store.DocumentStore = (*Store)(nil)

// Open opens (or creates) the database at dsn and prepares the schema.
// Use ":memory:" for a private in-memory database.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("sqlite: dsn is required")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", dsn, err)
	}
	// Each connection to ":memory:" would see its own database.
	db.SetMaxOpenConns(1)
	s, err := New(ctx, db, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// New wraps an existing database handle and creates the documents table if
// needed. The caller keeps ownership of db.
func New(ctx context.Context, db *sql.DB, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, errors.New("sqlite: nil database")
	}
	s := &Store{
		db:     db,
		hub:    store.NewHub(),
		now:    func() time.Time { return time.Now().UTC() },
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Subscribe(ctx context.Context, ref store.Ref, fn store.SnapshotFunc) (store.Unsubscribe, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, fmt.Errorf("sqlite: subscribe %s: nil callback", ref)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, store.ErrClosed
	}
	snap, err := s.read(ctx, s.db, ref)
	if err != nil {
		return nil, err
	}
	return s.hub.Subscribe(ctx, ref, snap, fn), nil
}

func (s *Store) Create(ctx context.Context, collection string, data map[string]any) (string, error) {
	if strings.TrimSpace(collection) == "" {
		return "", fmt.Errorf("%w: empty collection", store.ErrInvalidRef)
	}
	ref := store.Ref{Collection: collection, ID: uuid.NewString()}
	err := s.write(ctx, ref, func(store.Snapshot) (map[string]any, error) {
		return data, nil
	})
	if err != nil {
		return "", err
	}
	return ref.ID, nil
}

func (s *Store) Set(ctx context.Context, ref store.Ref, data map[string]any, merge bool) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	return s.write(ctx, ref, func(current store.Snapshot) (map[string]any, error) {
		if merge && current.Exists {
			return store.Merge(current.Data, data), nil
		}
		return data, nil
	})
}

func (s *Store) Update(ctx context.Context, ref store.Ref, partial map[string]any) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	return s.write(ctx, ref, func(current store.Snapshot) (map[string]any, error) {
		if !current.Exists {
			return nil, fmt.Errorf("%w: %s", store.ErrNotFound, ref)
		}
		return store.ApplyUpdate(current.Data, partial)
	})
}

func (s *Store) Get(ctx context.Context, ref store.Ref) (store.Snapshot, error) {
	if err := ref.Validate(); err != nil {
		return store.Snapshot{}, err
	}
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return store.Snapshot{}, store.ErrClosed
	}
	return s.read(ctx, s.db, ref)
}

// Close stops subscriptions and closes the database when Open created it.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.hub.Close()
	if s.owned {
		return s.db.Close()
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) read(ctx context.Context, q queryer, ref store.Ref) (store.Snapshot, error) {
	var payload, updated string
	err := q.QueryRowContext(ctx,
		`SELECT data, updated_at FROM documents WHERE collection = ? AND id = ?`,
		ref.Collection, ref.ID,
	).Scan(&payload, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Snapshot{Ref: ref}, nil
	}
	if err != nil {
		return store.Snapshot{}, fmt.Errorf("sqlite: read %s: %w", ref, err)
	}
	data, err := store.DecodeDocument([]byte(payload))
	if err != nil {
		return store.Snapshot{}, fmt.Errorf("sqlite: read %s: %w", ref, err)
	}
	updatedAt, _ := store.AsTime(updated)
	return store.Snapshot{Ref: ref, Exists: true, Data: data, UpdatedAt: updatedAt}, nil
}

func (s *Store) write(ctx context.Context, ref store.Ref, build func(store.Snapshot) (map[string]any, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	current, err := s.read(ctx, tx, ref)
	if err != nil {
		return err
	}
	data, err := build(current)
	if err != nil {
		return err
	}

	now := s.now()
	payload, err := store.EncodeDocument(store.ResolveTimestamps(data, now))
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (collection, id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		ref.Collection, ref.ID, string(payload), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("sqlite: write %s: %w", ref, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit %s: %w", ref, err)
	}

	// Publish what a reader would see, with timestamps in their stored form.
	stored, err := store.DecodeDocument(payload)
	if err != nil {
		return err
	}
	s.hub.Publish(store.Snapshot{Ref: ref, Exists: true, Data: stored, UpdatedAt: now})
	s.logger.Debug("sqlite: document written", zap.String("ref", ref.String()), zap.Int("bytes", len(payload)))
	return nil
}
