package authgate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"feedtrack/internal/client/api"
	"feedtrack/internal/client/credentials"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeChecker answers identity checks from a function and counts calls.
type fakeChecker struct {
	calls  atomic.Int32
	mu     sync.Mutex
	tokens []string
	answer func(ctx context.Context, token string) (*api.User, error)
}

func (f *fakeChecker) CheckIdentity(ctx context.Context, token string) (*api.User, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.tokens = append(f.tokens, token)
	f.mu.Unlock()
	return f.answer(ctx, token)
}

func accept(context.Context, string) (*api.User, error) {
	return &api.User{ID: 1, Username: "alice", Role: "student"}, nil
}

func reject(context.Context, string) (*api.User, error) {
	return nil, api.ErrUnauthorized
}

func TestNoTokenSkipsNetwork(t *testing.T) {
	checker := &fakeChecker{answer: accept}
	gate := New(checker, credentials.NewMemory(""))
	defer gate.Close()

	assert.False(t, gate.IsLoggedIn())
	assert.Equal(t, StateUnauthenticated, gate.Check(context.Background(), "/projects"))
	assert.Equal(t, int32(0), checker.calls.Load())
}

func TestValidTokenAuthenticatesOncePerPath(t *testing.T) {
	checker := &fakeChecker{answer: accept}
	gate := New(checker, credentials.NewMemory("a.b.c"))
	defer gate.Close()

	assert.Equal(t, StateUnknown, gate.State())
	assert.True(t, gate.IsLoggedIn(), "optimistic before the first check")

	assert.Equal(t, StateAuthenticated, gate.Check(context.Background(), "/projects"))
	assert.Equal(t, StateAuthenticated, gate.Check(context.Background(), "/projects"))
	assert.Equal(t, int32(1), checker.calls.Load())

	assert.Equal(t, StateAuthenticated, gate.Check(context.Background(), "/login"))
	assert.Equal(t, int32(2), checker.calls.Load())
	assert.Equal(t, 2, gate.Requests())
}

func TestMarkCheckedSuppressesRedirectRecheck(t *testing.T) {
	checker := &fakeChecker{answer: accept}
	gate := New(checker, credentials.NewMemory("a.b.c"))
	defer gate.Close()

	require.Equal(t, StateAuthenticated, gate.Check(context.Background(), "/login"))
	gate.MarkChecked("/projects")
	assert.Equal(t, StateAuthenticated, gate.Check(context.Background(), "/projects"))
	assert.Equal(t, int32(1), checker.calls.Load())
}

func TestFailedCheckClearsTokenAndRedirects(t *testing.T) {
	for name, answer := range map[string]func(context.Context, string) (*api.User, error){
		"unauthorized": reject,
		"server error": func(context.Context, string) (*api.User, error) {
			return nil, &api.RequestError{Status: 500, Message: "boom"}
		},
		"network": func(context.Context, string) (*api.User, error) {
			return nil, errors.New("connection refused")
		},
	} {
		t.Run(name, func(t *testing.T) {
			store := credentials.NewMemory("a.b.c")
			evictions := 0
			gate := New(&fakeChecker{answer: answer}, store, WithEvictHandler(func() { evictions++ }))
			defer gate.Close()

			assert.Equal(t, StateUnauthenticated, gate.Check(context.Background(), "/projects"))
			_, ok := store.Get(context.Background())
			assert.False(t, ok)
			assert.False(t, gate.IsLoggedIn())
			assert.Equal(t, 1, evictions)
		})
	}
}

func TestMalformedSuccessStillAuthenticates(t *testing.T) {
	checker := &fakeChecker{answer: func(context.Context, string) (*api.User, error) {
		return nil, api.ErrInvalidResponse
	}}
	store := credentials.NewMemory("a.b.c")
	gate := New(checker, store)
	defer gate.Close()

	assert.Equal(t, StateAuthenticated, gate.Check(context.Background(), "/projects"))
	_, ok := store.Get(context.Background())
	assert.True(t, ok)
}

func TestTimeoutFailsClosed(t *testing.T) {
	checker := &fakeChecker{answer: func(ctx context.Context, _ string) (*api.User, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	store := credentials.NewMemory("a.b.c")
	gate := New(checker, store, WithTimeout(20*time.Millisecond))
	defer gate.Close()

	assert.Equal(t, StateUnauthenticated, gate.Check(context.Background(), "/projects"))
	_, ok := store.Get(context.Background())
	assert.False(t, ok)
}

func TestCallerCancellationKeepsToken(t *testing.T) {
	checker := &fakeChecker{answer: func(ctx context.Context, _ string) (*api.User, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	store := credentials.NewMemory("a.b.c")
	gate := New(checker, store)
	defer gate.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, StateUnknown, gate.Check(ctx, "/projects"))
	_, ok := store.Get(context.Background())
	assert.True(t, ok)
	assert.True(t, gate.IsLoggedIn())
}

func TestSupersededFailureNeverClearsNewToken(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	checker := &fakeChecker{answer: func(_ context.Context, token string) (*api.User, error) {
		if token == "old.token.x" {
			close(entered)
			<-release
			return nil, api.ErrUnauthorized
		}
		return accept(context.Background(), token)
	}}
	store := credentials.NewMemory("old.token.x")
	evictions := 0
	gate := New(checker, store, WithEvictHandler(func() { evictions++ }))
	defer gate.Close()

	done := make(chan State, 1)
	go func() { done <- gate.Check(context.Background(), "/projects") }()
	<-entered

	require.NoError(t, store.Set(context.Background(), "new.token.y"))
	close(release)
	<-done

	token, ok := store.Get(context.Background())
	require.True(t, ok)
	assert.Equal(t, "new.token.y", token)
	assert.Equal(t, 0, evictions)
	assert.True(t, gate.IsLoggedIn())

	assert.Equal(t, StateAuthenticated, gate.Check(context.Background(), "/projects"))
}

func TestConcurrentChecksShareFlight(t *testing.T) {
	release := make(chan struct{})
	checker := &fakeChecker{answer: func(_ context.Context, token string) (*api.User, error) {
		<-release
		return accept(context.Background(), token)
	}}
	gate := New(checker, credentials.NewMemory("a.b.c"))
	defer gate.Close()

	var wg sync.WaitGroup
	results := make([]State, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = gate.Check(context.Background(), "/projects")
		}(i)
	}
	require.Eventually(t, func() bool { return checker.calls.Load() == 1 }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	for _, state := range results {
		assert.Equal(t, StateAuthenticated, state)
	}
	assert.Equal(t, int32(1), checker.calls.Load())
}

func TestExternalLogoutFlipsState(t *testing.T) {
	store := credentials.NewMemory("a.b.c")
	gate := New(&fakeChecker{answer: accept}, store)
	defer gate.Close()

	require.Equal(t, StateAuthenticated, gate.Check(context.Background(), "/projects"))
	require.NoError(t, store.Clear(context.Background()))
	assert.Equal(t, StateUnauthenticated, gate.State())
	assert.False(t, gate.IsLoggedIn())

	require.NoError(t, store.Set(context.Background(), "d.e.f"))
	assert.Equal(t, StateUnknown, gate.State())
	assert.True(t, gate.IsLoggedIn())
}
