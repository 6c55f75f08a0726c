package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-formsync/pkg/store"
)

func TestParseRef(t *testing.T) {
	ref, err := store.ParseRef("forms/abc")
	require.NoError(t, err)
	assert.Equal(t, store.Ref{Collection: "forms", ID: "abc"}, ref)

	nested, err := store.ParseRef("/orgs/acme/forms/abc/")
	require.NoError(t, err)
	assert.Equal(t, store.Ref{Collection: "orgs/acme/forms", ID: "abc"}, nested)

	for _, bad := range []string{"", "forms", "forms/", "/abc"} {
		_, err := store.ParseRef(bad)
		assert.ErrorIs(t, err, store.ErrInvalidRef, bad)
	}

	assert.ErrorIs(t, store.Ref{Collection: "forms"}.Validate(), store.ErrInvalidRef)
	assert.NoError(t, ref.Validate())
	assert.Equal(t, "forms/abc", ref.String())
}

func TestMerge_PreservesNestedFields(t *testing.T) {
	existing := map[string]any{
		"title": "old",
		"_metadata": map[string]any{
			"createdAt": "t0",
			"createdBy": "u1",
			"updatedAt": "t0",
		},
		"tags": []any{"a", "b"},
	}
	incoming := map[string]any{
		"title":     "new",
		"_metadata": map[string]any{"updatedAt": "t1", "updatedBy": "u2"},
		"tags":      []any{"c"},
	}

	got := store.Merge(existing, incoming)
	assert.Equal(t, map[string]any{
		"title": "new",
		"_metadata": map[string]any{
			"createdAt": "t0",
			"createdBy": "u1",
			"updatedAt": "t1",
			"updatedBy": "u2",
		},
		"tags": []any{"c"},
	}, got)
	assert.Equal(t, "old", existing["title"], "inputs must not be modified")
}

func TestApplyUpdate_DottedKeys(t *testing.T) {
	existing := map[string]any{
		"_metadata": map[string]any{"createdAt": "t0", "updatedAt": "t0"},
		"address":   map[string]any{"street": "Main", "city": "Oslo"},
	}
	got, err := store.ApplyUpdate(existing, map[string]any{
		"_metadata.updatedAt": "t1",
		"address":             map[string]any{"street": "High"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"_metadata": map[string]any{"createdAt": "t0", "updatedAt": "t1"},
		"address":   map[string]any{"street": "High"},
	}, got)

	_, err = store.ApplyUpdate(map[string]any{"title": "x"}, map[string]any{"title.inner": 1})
	assert.Error(t, err)
}

func TestServerTimestamp(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	data := map[string]any{
		"title":     "x",
		"_metadata": map[string]any{"createdAt": store.ServerTimestamp, "createdBy": nil},
		"history":   []any{store.ServerTimestamp},
	}

	resolved := store.ResolveTimestamps(data, now)
	assert.Equal(t, now, resolved["_metadata"].(map[string]any)["createdAt"])
	assert.Equal(t, now, resolved["history"].([]any)[0])
	assert.True(t, store.IsServerTimestamp(data["_metadata"].(map[string]any)["createdAt"]), "input must keep the sentinel")

	payload, err := store.EncodeDocument(data)
	require.NoError(t, err)
	decoded, err := store.DecodeDocument(payload)
	require.NoError(t, err)
	assert.True(t, store.IsServerTimestamp(decoded["_metadata"].(map[string]any)["createdAt"]))

	restored := store.RestoreTimestamps(decoded)
	assert.Equal(t, store.ServerTimestamp, restored["_metadata"].(map[string]any)["createdAt"])
	assert.False(t, store.IsServerTimestamp(map[string]any{".sv": "timestamp", "extra": 1}))
}

func TestCodec(t *testing.T) {
	now := time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)
	payload, err := store.EncodeDocument(map[string]any{"n": 1, "at": now, "nested": map[string]any{"ok": true}})
	require.NoError(t, err)

	decoded, err := store.DecodeDocument(payload)
	require.NoError(t, err)
	assert.Equal(t, float64(1), decoded["n"])
	assert.Equal(t, map[string]any{"ok": true}, decoded["nested"])

	at, ok := store.AsTime(decoded["at"])
	require.True(t, ok)
	assert.True(t, now.Equal(at))

	empty, err := store.DecodeDocument(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = store.DecodeDocument([]byte("{"))
	assert.Error(t, err)

	_, ok = store.AsTime("yesterday")
	assert.False(t, ok)
	_, ok = store.AsTime(time.Time{})
	assert.False(t, ok)
}

func TestHub_OrderedDelivery(t *testing.T) {
	hub := store.NewHub()
	defer hub.Close()

	ref := store.Ref{Collection: "forms", ID: "a"}
	var (
		mu   sync.Mutex
		seen []any
		done = make(chan struct{})
	)
	unsubscribe := hub.Subscribe(context.Background(), ref, store.Snapshot{Ref: ref}, func(snap store.Snapshot, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			seen = append(seen, err.Error())
		} else if !snap.Exists {
			seen = append(seen, "initial")
		} else {
			seen = append(seen, snap.Data["n"])
		}
		if len(seen) == 12 {
			close(done)
		}
	})
	defer unsubscribe()

	for i := 0; i < 10; i++ {
		hub.Publish(store.Snapshot{Ref: ref, Exists: true, Data: map[string]any{"n": i}})
	}
	hub.Fail(ref, errors.New("boom"))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for events")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []any{"initial", 0, 1, 2, 3, 4, 5, 6, 7, 8, 9, "boom"}, seen)
	assert.Equal(t, 1, hub.Subscribers(ref))
}

func TestHub_UnsubscribeAndContext(t *testing.T) {
	hub := store.NewHub()
	ref := store.Ref{Collection: "forms", ID: "b"}

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan struct{}, 1)
	hub.Subscribe(ctx, ref, store.Snapshot{Ref: ref}, func(store.Snapshot, error) {
		select {
		case first <- struct{}{}:
		default:
		}
	})
	<-first
	cancel()

	require.Eventually(t, func() bool { return hub.Subscribers(ref) == 0 }, time.Second, 5*time.Millisecond)

	hub.Close()
	errs := make(chan error, 1)
	hub.Subscribe(context.Background(), ref, store.Snapshot{}, func(_ store.Snapshot, err error) { errs <- err })
	select {
	case err := <-errs:
		assert.ErrorIs(t, err, store.ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("expected closed error")
	}
}
