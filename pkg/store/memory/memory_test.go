package memory_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-formsync/pkg/store"
	"github.com/goliatone/go-formsync/pkg/store/memory"
)

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestStore_CreateResolvesTimestamps(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := memory.New(memory.WithClock(fixedClock(now)), memory.WithIDGenerator(func() string { return "doc-1" }))
	ctx := context.Background()

	id, err := s.Create(ctx, "forms", map[string]any{
		"title":     "Hello",
		"_metadata": map[string]any{"createdAt": store.ServerTimestamp},
	})
	require.NoError(t, err)
	assert.Equal(t, "doc-1", id)

	snap, err := s.Get(ctx, store.Ref{Collection: "forms", ID: id})
	require.NoError(t, err)
	assert.True(t, snap.Exists)
	assert.Equal(t, now, snap.UpdatedAt)
	assert.Equal(t, now, snap.Data["_metadata"].(map[string]any)["createdAt"])

	_, err = s.Create(ctx, " ", nil)
	assert.ErrorIs(t, err, store.ErrInvalidRef)
}

func TestStore_SetMergeAndUpdate(t *testing.T) {
	t.Parallel()

	s := memory.New()
	ctx := context.Background()
	ref := store.Ref{Collection: "forms", ID: "a"}

	require.NoError(t, s.Set(ctx, ref, map[string]any{
		"title":     "one",
		"_metadata": map[string]any{"createdBy": "u1", "updatedBy": "u1"},
	}, false))
	require.NoError(t, s.Set(ctx, ref, map[string]any{
		"title":     "two",
		"_metadata": map[string]any{"updatedBy": "u2"},
	}, true))

	snap, err := s.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"title":     "two",
		"_metadata": map[string]any{"createdBy": "u1", "updatedBy": "u2"},
	}, snap.Data)

	require.NoError(t, s.Update(ctx, ref, map[string]any{"_metadata.updatedBy": "u3"}))
	snap, err = s.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "u1", snap.Data["_metadata"].(map[string]any)["createdBy"])
	assert.Equal(t, "u3", snap.Data["_metadata"].(map[string]any)["updatedBy"])

	require.NoError(t, s.Set(ctx, ref, map[string]any{"title": "three"}, false))
	snap, err = s.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"title": "three"}, snap.Data)

	err = s.Update(ctx, store.Ref{Collection: "forms", ID: "missing"}, map[string]any{"x": 1})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_GetMissingAndCopies(t *testing.T) {
	t.Parallel()

	s := memory.New()
	ctx := context.Background()
	ref := store.Ref{Collection: "forms", ID: "a"}

	snap, err := s.Get(ctx, ref)
	require.NoError(t, err)
	assert.False(t, snap.Exists)
	assert.Nil(t, snap.Data)

	require.NoError(t, s.Set(ctx, ref, map[string]any{"nested": map[string]any{"v": 1}}, false))
	snap, err = s.Get(ctx, ref)
	require.NoError(t, err)
	snap.Data["nested"].(map[string]any)["v"] = 2

	again, err := s.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, 1, again.Data["nested"].(map[string]any)["v"])
}

func TestStore_Subscribe(t *testing.T) {
	t.Parallel()

	s := memory.New()
	ctx := context.Background()
	ref := store.Ref{Collection: "forms", ID: "live"}

	var (
		mu     sync.Mutex
		titles []any
	)
	unsubscribe, err := s.Subscribe(ctx, ref, func(snap store.Snapshot, err error) {
		assert.NoError(t, err)
		mu.Lock()
		defer mu.Unlock()
		if !snap.Exists {
			titles = append(titles, nil)
			return
		}
		titles = append(titles, snap.Data["title"])
	})
	require.NoError(t, err)

	require.NoError(t, s.Set(ctx, ref, map[string]any{"title": "a"}, false))
	require.NoError(t, s.Set(ctx, ref, map[string]any{"title": "b"}, true))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(titles) == 3
	}, time.Second, 5*time.Millisecond)

	unsubscribe()
	unsubscribe()
	require.NoError(t, s.Set(ctx, ref, map[string]any{"title": "c"}, true))
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []any{nil, "a", "b"}, titles)
}

func TestStore_UploadProgress(t *testing.T) {
	t.Parallel()

	s := memory.New(memory.WithChunkSize(4))
	var ticks [][2]int64
	ref, err := s.Upload(context.Background(), "/avatars/me.png", []byte("0123456789"), func(sent, total int64) {
		ticks = append(ticks, [2]int64{sent, total})
	})
	require.NoError(t, err)
	assert.Equal(t, "memory://avatars/me.png", ref)
	assert.Equal(t, [][2]int64{{4, 10}, {8, 10}, {10, 10}}, ticks)

	data, ok := s.Blob("avatars/me.png")
	require.True(t, ok)
	assert.Equal(t, "0123456789", string(data))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Upload(ctx, "x", []byte("abc"), nil)
	assert.True(t, errors.Is(err, context.Canceled))

	_, err = s.Upload(context.Background(), "", []byte("abc"), nil)
	assert.Error(t, err)
}

func TestStore_Close(t *testing.T) {
	t.Parallel()

	s := memory.New()
	ref := store.Ref{Collection: "forms", ID: "a"}
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err := s.Get(context.Background(), ref)
	assert.ErrorIs(t, err, store.ErrClosed)
	_, err = s.Subscribe(context.Background(), ref, func(store.Snapshot, error) {})
	assert.ErrorIs(t, err, store.ErrClosed)
}
