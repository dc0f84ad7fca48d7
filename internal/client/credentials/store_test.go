package credentials

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	tokens []string
}

func (r *recorder) record(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens = append(r.tokens, token)
}

func (r *recorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.tokens...)
}

func exerciseStore(t *testing.T, store *Store) {
	t.Helper()
	ctx := context.Background()
	rec := &recorder{}
	unsubscribe := store.Subscribe(rec.record)

	_, ok := store.Get(ctx)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "aaa.bbb.ccc"))
	token, ok := store.Get(ctx)
	require.True(t, ok)
	assert.Equal(t, "aaa.bbb.ccc", token)

	require.NoError(t, store.Clear(ctx))
	_, ok = store.Get(ctx)
	assert.False(t, ok)

	unsubscribe()
	require.NoError(t, store.Set(ctx, "ddd.eee.fff"))

	if diff := cmp.Diff([]string{"aaa.bbb.ccc", ""}, rec.seen()); diff != "" {
		t.Fatalf("notifications mismatch (-want +got):\n%s", diff)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory(""))
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token")
	exerciseStore(t, New(NewFileBackend(path), nil))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "feedtrack.db")
	backend, err := OpenSQLite(ctx, path, "http://a.example")
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	exerciseStore(t, New(backend, nil))

	other, err := OpenSQLite(ctx, path, "http://b.example")
	require.NoError(t, err)
	t.Cleanup(func() { other.Close() })
	_, err = other.Load(ctx)
	assert.ErrorIs(t, err, ErrNoToken, "profiles must not share tokens")
}

func TestSetPersistsBeforeReturning(t *testing.T) {
	ctx := context.Background()
	backend := NewFileBackend(filepath.Join(t.TempDir(), "token"))
	store := New(backend, nil)

	var observed string
	store.Subscribe(func(string) {
		observed, _ = backend.Load(ctx)
	})
	require.NoError(t, store.Set(ctx, "abc.def.ghi"))
	assert.Equal(t, "abc.def.ghi", observed, "subscribers must see the durable value")

	reopened := New(NewFileBackend(backend.Path()), nil)
	token, ok := reopened.Get(ctx)
	require.True(t, ok)
	assert.Equal(t, "abc.def.ghi", token)
}

func TestUnavailableStorageBehavesLoggedOut(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend("old.token.value")
	store := New(backend, nil)
	backend.FailWrites = errors.New("disk full")

	err := store.Set(ctx, "new.token.value")
	assert.ErrorIs(t, err, ErrUnavailable)
	_, ok := store.Get(ctx)
	assert.False(t, ok)

	assert.ErrorIs(t, store.Clear(ctx), ErrUnavailable)
	_, ok = store.Get(ctx)
	assert.False(t, ok)

	backend.FailWrites = nil
	require.NoError(t, store.Set(ctx, "fresh.token.value"))
	token, ok := store.Get(ctx)
	require.True(t, ok)
	assert.Equal(t, "fresh.token.value", token)
}

func TestClearIfOnlyClearsMatchingToken(t *testing.T) {
	ctx := context.Background()
	store := NewMemory("first.token.x")

	cleared, err := store.ClearIf(ctx, "stale.token.x")
	require.NoError(t, err)
	assert.False(t, cleared)
	token, _ := store.Get(ctx)
	assert.Equal(t, "first.token.x", token)

	cleared, err = store.ClearIf(ctx, "first.token.x")
	require.NoError(t, err)
	assert.True(t, cleared)
	_, ok := store.Get(ctx)
	assert.False(t, ok)
}

func TestSetEmptyTokenClears(t *testing.T) {
	ctx := context.Background()
	store := NewMemory("a.b.c")
	require.NoError(t, store.Set(ctx, "   "))
	_, ok := store.Get(ctx)
	assert.False(t, ok)
}

func TestFileWatchNotifiesExternalLogout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	path := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(path, []byte("a.b.c"), 0o600))
	store := New(NewFileBackend(path), nil)

	changes := make(chan string, 4)
	store.Subscribe(func(token string) { changes <- token })

	done := make(chan error, 1)
	go func() { done <- store.Watch(ctx) }()

	// fsnotify needs the watch registered before the change lands.
	require.Eventually(t, func() bool {
		_ = os.Remove(path)
		select {
		case token := <-changes:
			return token == ""
		case <-time.After(100 * time.Millisecond):
			_ = os.WriteFile(path, []byte("a.b.c"), 0o600)
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestOpenUnknownBackend(t *testing.T) {
	_, _, err := Open(context.Background(), "keyring", "", "", "", nil)
	assert.Error(t, err)
}
