package remote_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-formsync/pkg/store"
	"github.com/goliatone/go-formsync/pkg/store/memory"
	"github.com/goliatone/go-formsync/pkg/store/remote"
)

func newPair(t *testing.T) (*memory.Store, *remote.Client) {
	t.Helper()
	backend := memory.New(memory.WithChunkSize(4))
	srv := httptest.NewServer(remote.NewServer(backend, backend))
	t.Cleanup(func() {
		srv.Close()
		_ = backend.Close()
	})
	client, err := remote.NewClient(srv.URL)
	require.NoError(t, err)
	return backend, client
}

func TestClient_DocumentRoundTrip(t *testing.T) {
	backend, client := newPair(t)
	ctx := context.Background()

	id, err := client.Create(ctx, "profiles", map[string]any{
		"name":      "Ada",
		"_metadata": map[string]any{"createdAt": store.ServerTimestamp, "createdBy": nil},
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)
	ref := store.Ref{Collection: "profiles", ID: id}

	// The sentinel crosses the wire and is resolved by the backend.
	stored, err := backend.Get(ctx, ref)
	require.NoError(t, err)
	_, isTime := stored.Data["_metadata"].(map[string]any)["createdAt"].(time.Time)
	assert.True(t, isTime)

	require.NoError(t, client.Set(ctx, ref, map[string]any{
		"name":      "Grace",
		"_metadata": map[string]any{"updatedAt": store.ServerTimestamp, "updatedBy": "u2"},
	}, true))
	require.NoError(t, client.Update(ctx, ref, map[string]any{"_metadata.note": "hi"}))

	snap, err := client.Get(ctx, ref)
	require.NoError(t, err)
	require.True(t, snap.Exists)
	assert.Equal(t, ref, snap.Ref)
	assert.Equal(t, "Grace", snap.Data["name"])
	meta := snap.Data["_metadata"].(map[string]any)
	assert.Equal(t, "u2", meta["updatedBy"])
	assert.Equal(t, "hi", meta["note"])
	_, ok := store.AsTime(meta["createdAt"])
	assert.True(t, ok)
	_, ok = store.AsTime(meta["updatedAt"])
	assert.True(t, ok)
}

func TestClient_ErrorMapping(t *testing.T) {
	_, client := newPair(t)
	ctx := context.Background()

	err := client.Update(ctx, store.Ref{Collection: "profiles", ID: "missing"}, map[string]any{"a": 1})
	assert.ErrorIs(t, err, store.ErrNotFound)

	missing, err := client.Get(ctx, store.Ref{Collection: "profiles", ID: "missing"})
	require.NoError(t, err)
	assert.False(t, missing.Exists)

	_, err = client.Create(ctx, "", nil)
	assert.ErrorIs(t, err, store.ErrInvalidRef)

	_, err = remote.NewClient("ftp://example.com")
	assert.Error(t, err)
}

func TestClient_Watch(t *testing.T) {
	_, client := newPair(t)
	ctx := context.Background()
	ref := store.Ref{Collection: "profiles", ID: "live"}

	var (
		mu    sync.Mutex
		names []any
	)
	unsubscribe, err := client.Subscribe(ctx, ref, func(snap store.Snapshot, err error) {
		assert.NoError(t, err)
		mu.Lock()
		defer mu.Unlock()
		if !snap.Exists {
			names = append(names, nil)
			return
		}
		names = append(names, snap.Data["name"])
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(names) == 1
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, client.Set(ctx, ref, map[string]any{"name": "a"}, false))
	require.NoError(t, client.Set(ctx, ref, map[string]any{"name": "b"}, true))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(names) == 3
	}, 2*time.Second, 5*time.Millisecond)

	unsubscribe()
	unsubscribe()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []any{nil, "a", "b"}, names)
}

func TestClient_Upload(t *testing.T) {
	backend, client := newPair(t)

	var (
		mu   sync.Mutex
		last [2]int64
	)
	ref, err := client.Upload(context.Background(), "avatars/me.png", []byte("0123456789"), func(sent, total int64) {
		mu.Lock()
		defer mu.Unlock()
		last = [2]int64{sent, total}
	})
	require.NoError(t, err)
	assert.Equal(t, "memory://avatars/me.png", ref)

	mu.Lock()
	assert.Equal(t, [2]int64{10, 10}, last)
	mu.Unlock()

	data, ok := backend.Blob("avatars/me.png")
	require.True(t, ok)
	assert.Equal(t, "0123456789", string(data))
}

func TestServer_WithoutBlobs(t *testing.T) {
	srv := httptest.NewServer(remote.NewServer(memory.New(), nil))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodPut, srv.URL+"/blobs/x", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	health, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}
