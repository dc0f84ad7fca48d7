package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginStripsQuotes(t *testing.T) {
	var got Credentials
	client, store, hooks := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/login" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewDecoder(r.Body).Decode(&got)
		io.WriteString(w, `"abc.def.ghi"`)
	})
	token, err := client.Login(context.Background(), Credentials{Username: "alice", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", token)
	assert.Equal(t, Credentials{Username: "alice", Password: "secret123"}, got)

	_, ok := store.Get(context.Background())
	assert.False(t, ok, "the client never stores the token itself")
	assert.Zero(t, hooks.Load())
}

func TestLoginRejectedIsNotAnEviction(t *testing.T) {
	client, store, hooks := newTestClient(t, "still.valid.token", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":"invalid_credentials","message":"invalid credentials"}`)
	})
	_, err := client.Login(context.Background(), Credentials{Username: "alice", Password: "nope"})
	var reqErr *RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, "invalid credentials", reqErr.Message)
	assert.Zero(t, hooks.Load())
	_, ok := store.Get(context.Background())
	assert.True(t, ok)
}

func TestLoginValidatesBeforeSending(t *testing.T) {
	called := false
	client, _, _ := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) { called = true })
	_, err := client.Login(context.Background(), Credentials{Username: " ", Password: "x"})
	assert.True(t, IsValidation(err))
	assert.False(t, called)
}

func TestRegisterStatusMessages(t *testing.T) {
	cases := map[int]string{
		http.StatusBadRequest:          MsgRegisterInvalid,
		http.StatusConflict:            MsgRegisterDuplicate,
		http.StatusInternalServerError: MsgRegisterServer,
		http.StatusTeapot:              MsgRegisterUnknown,
	}
	for status, want := range cases {
		client, _, _ := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		})
		err := client.Register(context.Background(), Registration{
			Username: "alice", Email: "alice@example.local", Password: "secret123", Role: "student",
		})
		var reqErr *RequestError
		require.True(t, errors.As(err, &reqErr), "status %d", status)
		assert.Equal(t, want, reqErr.Message)
	}
}

func TestRegisterValidation(t *testing.T) {
	client, _, _ := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request to %s", r.URL.Path)
	})
	bad := []Registration{
		{Email: "a@b.c", Password: "x", Role: "student"},
		{Username: "a", Email: "not-an-email", Password: "x", Role: "student"},
		{Username: "a", Email: "a@b.c", Role: "student"},
		{Username: "a", Email: "a@b.c", Password: "x", Role: "janitor"},
	}
	for _, reg := range bad {
		assert.True(t, IsValidation(client.Register(context.Background(), reg)), "%+v", reg)
	}
}

func TestTypedEndpointsRejectShapeMismatch(t *testing.T) {
	bodies := map[string]string{
		"/project/":              `[{"id":1,"name":"A"},{"id":0,"name":"broken"}]`,
		"/project/2":             `{"id":2}`,
		"/project/3/feedback/":   `[{"id":1,"title":"x","status":"wontfix","priority":"low"}]`,
		"/project/4/enrollment/": `null`,
	}
	client, _, _ := newTestClient(t, "a.b.c", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, bodies[r.URL.Path])
	})
	ctx := context.Background()

	_, err := client.ListProjects(ctx)
	assert.ErrorIs(t, err, ErrInvalidResponse)
	_, err = client.GetProject(ctx, 2)
	assert.ErrorIs(t, err, ErrInvalidResponse)
	_, err = client.ListFeedback(ctx, 3)
	assert.ErrorIs(t, err, ErrInvalidResponse)
	_, err = client.ListEnrollments(ctx, 4)
	assert.ErrorIs(t, err, ErrInvalidResponse)
	_, err = client.GetProject(ctx, 5)
	assert.ErrorIs(t, err, ErrInvalidResponse, "empty body where a record is expected")
}

func TestEndpointPaths(t *testing.T) {
	var seen []string
	client, _, _ := newTestClient(t, "a.b.c", func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Method+" "+r.URL.RequestURI())
		w.WriteHeader(http.StatusNoContent)
	})
	ctx := context.Background()

	require.NoError(t, client.DeleteProject(ctx, 7))
	require.NoError(t, client.Unenroll(ctx, 7, 12))
	require.NoError(t, client.DeleteFeedback(ctx, 7, 3))
	require.NoError(t, client.DetachLabel(ctx, 7, 3, 4))
	require.NoError(t, client.DeleteComment(ctx, 7, 3, 5))

	want := []string{
		"DELETE /project/7",
		"DELETE /project/7/enrollment/?user_id=12",
		"DELETE /project/7/feedback/3/",
		"DELETE /project/7/feedback/3/labels/4",
		"DELETE /project/7/feedback/3/comments/5",
	}
	if diff := cmp.Diff(want, seen); diff != "" {
		t.Fatalf("paths mismatch (-want +got):\n%s", diff)
	}
}

func TestCheckIdentityUsesGivenToken(t *testing.T) {
	client, store, hooks := newTestClient(t, "stored.token.x", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer checked.token.x" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		io.WriteString(w, `{"id":1,"username":"alice","email":"a@b.c","role":"student"}`)
	})
	user, err := client.CheckIdentity(context.Background(), "checked.token.x")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)

	_, err = client.CheckIdentity(context.Background(), "other.token.x")
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Zero(t, hooks.Load())
	_, ok := store.Get(context.Background())
	assert.True(t, ok, "identity checks leave eviction to the caller")
}

func TestFindUserByUsername(t *testing.T) {
	var queries []string
	client, _, _ := newTestClient(t, "a.b.c", func(w http.ResponseWriter, r *http.Request) {
		queries = append(queries, r.URL.RequestURI())
		if r.URL.Query().Get("username") == "sam lee" {
			io.WriteString(w, `[{"id":12,"username":"sam lee","email":"s@x.y","role":"student"}]`)
			return
		}
		io.WriteString(w, `[]`)
	})
	ctx := context.Background()

	user, err := client.FindUser(ctx, " sam lee ")
	require.NoError(t, err)
	assert.Equal(t, int64(12), user.ID)

	_, err = client.FindUser(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNoSuchUser)

	_, err = client.FindUser(ctx, "  ")
	assert.True(t, IsValidation(err))
	assert.Equal(t, []string{"/api/users?username=sam+lee", "/api/users?username=ghost"}, queries)
}

func TestUpdateFeedbackOmitsUnsetFields(t *testing.T) {
	var body map[string]any
	client, _, _ := newTestClient(t, "a.b.c", func(w http.ResponseWriter, r *http.Request) {
		body = nil
		_ = json.NewDecoder(r.Body).Decode(&body)
		io.WriteString(w, `{"id":3,"project_id":7,"creator_id":1,"title":"renamed","description":"kept","status":"resolved","priority":"high"}`)
	})

	_, err := client.UpdateFeedback(context.Background(), 7, 3, FeedbackInput{Title: "renamed"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"title": "renamed"}, body)

	empty := ""
	_, err = client.UpdateFeedback(context.Background(), 7, 3, FeedbackInput{Title: "renamed", Description: &empty})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"title": "renamed", "description": ""}, body)
}
