package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedtrack/internal/client/credentials"
)

func newTestClient(t *testing.T, token string, handler http.HandlerFunc) (*Client, *credentials.Store, *atomic.Int32) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	store := credentials.NewMemory(token)
	hooks := &atomic.Int32{}
	client := New(srv.URL, store)
	client.SetUnauthorizedHandler(func() { hooks.Add(1) })
	return client, store, hooks
}

func TestAttachesBearerToken(t *testing.T) {
	var seen string
	client, _, _ := newTestClient(t, "abc.def.ghi", func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	})
	require.NoError(t, client.Get(context.Background(), "/project/", nil))
	assert.Equal(t, "Bearer abc.def.ghi", seen)
}

func TestOmitsHeaderWithoutToken(t *testing.T) {
	var present bool
	client, _, _ := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		_, present = r.Header["Authorization"]
	})
	require.NoError(t, client.Get(context.Background(), "/health", nil))
	assert.False(t, present)
}

func TestUnauthorizedEvictsSession(t *testing.T) {
	client, store, hooks := newTestClient(t, "abc.def.ghi", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	err := client.Delete(context.Background(), "/project/7", nil)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, ok := store.Get(context.Background())
	assert.False(t, ok)
	assert.Equal(t, int32(1), hooks.Load())
}

func TestUnauthorizedForSupersededTokenKeepsNewSession(t *testing.T) {
	var store *credentials.Store
	client, store, hooks := newTestClient(t, "old.token.x", func(w http.ResponseWriter, r *http.Request) {
		// A new login lands while this request is in flight.
		_ = store.Set(context.Background(), "new.token.x")
		w.WriteHeader(http.StatusUnauthorized)
	})
	err := client.Get(context.Background(), "/project/", nil)
	assert.ErrorIs(t, err, ErrUnauthorized)

	token, ok := store.Get(context.Background())
	require.True(t, ok)
	assert.Equal(t, "new.token.x", token)
	assert.Equal(t, int32(0), hooks.Load())
}

func TestErrorMessageExtraction(t *testing.T) {
	cases := []struct {
		name string
		body string
		code int
		want string
	}{
		{"message field", `{"message":"name is taken","error":"dup"}`, 409, "name is taken"},
		{"error field", `{"error":"not_enrolled"}`, 403, "not_enrolled"},
		{"plain text", `boom`, 500, "Internal Server Error"},
		{"empty", ``, 404, "Not Found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client, _, hooks := newTestClient(t, "a.b.c", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.code)
				io.WriteString(w, tc.body)
			})
			err := client.Get(context.Background(), "/x", nil)
			var reqErr *RequestError
			require.True(t, errors.As(err, &reqErr))
			assert.Equal(t, tc.code, reqErr.Status)
			assert.Equal(t, tc.want, reqErr.Message)
			assert.Zero(t, hooks.Load())
		})
	}
}

func TestRawResults(t *testing.T) {
	bodies := map[string]string{
		"/empty": "",
		"/json":  `{"a":1}`,
		"/text":  "hello there",
	}
	client, _, _ := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, bodies[r.URL.Path])
	})
	ctx := context.Background()

	value, err := client.Raw(ctx, http.MethodGet, "/empty", nil)
	require.NoError(t, err)
	assert.Nil(t, value)

	value, err = client.Raw(ctx, http.MethodGet, "/json", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": float64(1)}, value)

	value, err = client.Raw(ctx, http.MethodGet, "/text", nil)
	require.NoError(t, err)
	assert.Equal(t, "hello there", value)

	var text string
	require.NoError(t, client.Get(ctx, "/text", &text))
	assert.Equal(t, "hello there", text)

	var obj map[string]int
	assert.ErrorIs(t, client.Get(ctx, "/text", &obj), ErrInvalidResponse)

	untouched := map[string]int{"keep": 1}
	require.NoError(t, client.Get(ctx, "/empty", &untouched))
	assert.Equal(t, map[string]int{"keep": 1}, untouched)
}

func TestWrappersSendMethodAndBody(t *testing.T) {
	type echo struct {
		Method string `json:"method"`
		Body   string `json:"body"`
	}
	client, _, _ := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.NewEncoder(w).Encode(echo{Method: r.Method, Body: string(body)})
	})
	ctx := context.Background()

	var got echo
	require.NoError(t, client.Post(ctx, "/x", map[string]string{"k": "v"}, &got))
	assert.Equal(t, echo{Method: http.MethodPost, Body: "{\"k\":\"v\"}"}, got)
	require.NoError(t, client.Put(ctx, "/x", map[string]int{"n": 1}, &got))
	assert.Equal(t, http.MethodPut, got.Method)
	require.NoError(t, client.Delete(ctx, "/x", &got))
	assert.Equal(t, echo{Method: http.MethodDelete}, got)
}

func TestTimeoutIsTransportError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	client := New(srv.URL, credentials.NewMemory("a.b.c"), WithTimeout(50*time.Millisecond))
	err := client.Get(context.Background(), "/slow", nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnauthorized)
	var reqErr *RequestError
	assert.False(t, errors.As(err, &reqErr))
}

type countingTransport struct {
	calls atomic.Int32
}

func (c *countingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	c.calls.Add(1)
	return http.DefaultTransport.RoundTrip(r)
}

func TestTimeoutKeepsCustomHTTPClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	transport := &countingTransport{}
	custom := &http.Client{Transport: transport}
	orders := map[string][]Option{
		"timeout last":  {WithHTTPClient(custom), WithTimeout(time.Second)},
		"timeout first": {WithTimeout(time.Second), WithHTTPClient(custom)},
	}
	for name, opts := range orders {
		t.Run(name, func(t *testing.T) {
			before := transport.calls.Load()
			client := New(srv.URL, credentials.NewMemory(""), opts...)
			require.NoError(t, client.Get(context.Background(), "/health", nil))
			assert.Equal(t, before+1, transport.calls.Load())
			assert.Equal(t, time.Second, client.http.Timeout)
			assert.Zero(t, custom.Timeout)
		})
	}
}
