package tui

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"feedtrack/internal/client/api"
	"feedtrack/internal/client/app"
	"feedtrack/internal/client/credentials"
	"feedtrack/internal/client/router"
	"feedtrack/internal/client/views"
	"feedtrack/internal/config"
	feedhttp "feedtrack/internal/http"
	"feedtrack/internal/repository"
)

// loggedOutModel never touches the network: with no token the gate resolves
// locally.
func loggedOutModel(t *testing.T) Model {
	t.Helper()
	session := app.New("http://127.0.0.1:1", credentials.NewMemory(""))
	t.Cleanup(session.Close)
	m := New(context.Background(), session, nil)
	return apply(t, m, m.Init())
}

// teacherModel is signed in as a teacher against an in-memory server.
func teacherModel(t *testing.T) (Model, *app.Session) {
	t.Helper()
	cfg := config.Config{
		DatabaseURL:    config.MemoryDatabase,
		JWTSecret:      "test-secret",
		JWTIssuer:      "feedtrack-test",
		AccessTokenTTL: 15 * time.Minute,
	}
	srv := httptest.NewServer(feedhttp.NewServer(cfg, repository.NewMemory(), nil, zap.NewNop()).Router())
	t.Cleanup(srv.Close)

	session := app.New(srv.URL, credentials.NewMemory(""))
	t.Cleanup(session.Close)
	ctx := context.Background()
	_, err := session.Register(ctx, api.Registration{
		Username: "tina", Email: "tina@example.local", Password: "secret123", Role: "teacher",
	})
	require.NoError(t, err)
	_, err = session.Login(ctx, "tina", "secret123")
	require.NoError(t, err)

	m := New(ctx, session, nil)
	return apply(t, m, m.Init()), session
}

func apply(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	require.NotNil(t, cmd)
	next, _ := m.Update(cmd())
	return next.(Model)
}

func press(m Model, msg tea.KeyMsg) (Model, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestStartsOnLogin(t *testing.T) {
	m := loggedOutModel(t)
	assert.Equal(t, router.ViewLogin, m.decision.View)
	assert.Contains(t, m.View(), "sign in")
}

func TestLoginFormTyping(t *testing.T) {
	m := loggedOutModel(t)
	m, _ = press(m, runes("alice"))
	m, _ = press(m, tea.KeyMsg{Type: tea.KeyTab})
	m, _ = press(m, runes("pw"))

	values := m.login.values()
	assert.Equal(t, "alice", values[0])
	assert.Equal(t, "pw", values[1])
	assert.NotContains(t, m.View(), "pw")
}

func TestEmptyLoginShowsValidationError(t *testing.T) {
	m := loggedOutModel(t)
	m, cmd := press(m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.True(t, m.busy)
	m = apply(t, m, cmd)

	assert.False(t, m.busy)
	assert.Contains(t, m.errLine, "username")
	assert.Equal(t, router.ViewLogin, m.decision.View)
}

func TestRegisterRoundTrip(t *testing.T) {
	m := loggedOutModel(t)
	m, cmd := press(m, tea.KeyMsg{Type: tea.KeyCtrlR})
	m = apply(t, m, cmd)
	assert.Equal(t, router.ViewRegister, m.decision.View)

	m, cmd = press(m, tea.KeyMsg{Type: tea.KeyEsc})
	m = apply(t, m, cmd)
	assert.Equal(t, router.ViewLogin, m.decision.View)
}

func TestErrorLine(t *testing.T) {
	m := loggedOutModel(t)

	next, _ := m.Update(doneMsg{err: views.ErrStale})
	m = next.(Model)
	assert.Empty(t, m.errLine)

	next, _ = m.Update(doneMsg{err: errors.New("boom")})
	m = next.(Model)
	assert.Equal(t, "boom", m.errLine)
	assert.True(t, strings.Contains(m.View(), "boom"))

	m, _ = press(m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Empty(t, m.errLine)
}

func TestUnauthorizedReresolves(t *testing.T) {
	m := loggedOutModel(t)
	next, cmd := m.Update(doneMsg{err: api.ErrUnauthorized})
	m = next.(Model)
	assert.Empty(t, m.errLine)
	require.NotNil(t, cmd)
	_, ok := cmd().(resolvedMsg)
	assert.True(t, ok)
}

func TestCtrlCQuits(t *testing.T) {
	m := loggedOutModel(t)
	_, cmd := press(m, tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	_, ok := cmd().(tea.QuitMsg)
	assert.True(t, ok)
}

func TestNextStatusCycles(t *testing.T) {
	assert.Equal(t, "in_progress", nextStatus("open"))
	assert.Equal(t, "open", nextStatus("closed"))
	assert.Equal(t, "open", nextStatus("bogus"))
}

var (
	tab   = tea.KeyMsg{Type: tea.KeyTab}
	enter = tea.KeyMsg{Type: tea.KeyEnter}
)

func TestFeedbackEditorCreatesWithEveryField(t *testing.T) {
	m, s := teacherModel(t)
	ctx := context.Background()
	project, err := s.Projects.Create(ctx, api.ProjectInput{Name: "Compilers"})
	require.NoError(t, err)
	_, err = s.OpenProject(ctx, project.ID)
	require.NoError(t, err)
	m = apply(t, m, m.resolve())
	require.Equal(t, router.ViewFeedbackList, m.decision.View)

	m, _ = press(m, runes("n"))
	require.NotNil(t, m.editor)
	m, cmd := press(m, enter)
	assert.Nil(t, cmd)
	assert.Contains(t, m.errLine, "title")
	require.NotNil(t, m.editor, "a validation error keeps the editor open")

	m, _ = press(m, runes("Parser crash"))
	m, _ = press(m, tab)
	m, _ = press(m, runes("Fails on *nested* input"))
	m, _ = press(m, tab)
	m, _ = press(m, runes("resolved"))
	m, _ = press(m, tab)
	m, _ = press(m, runes("high"))
	assert.Contains(t, m.View(), "enter: save")

	m, cmd = press(m, enter)
	assert.Nil(t, m.editor)
	m = apply(t, m, cmd)
	require.Empty(t, m.errLine)

	items := s.Feedback.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "Parser crash", items[0].Title)
	assert.Equal(t, "Fails on *nested* input", items[0].Description)
	assert.Equal(t, "resolved", items[0].Status)
	assert.Equal(t, "high", items[0].Priority)
}

func TestDetailKeysEditFeedbackCommentsAndLabels(t *testing.T) {
	m, s := teacherModel(t)
	ctx := context.Background()
	project, err := s.Projects.Create(ctx, api.ProjectInput{Name: "Compilers"})
	require.NoError(t, err)
	_, err = s.OpenProject(ctx, project.ID)
	require.NoError(t, err)
	desc := "Original text"
	item, err := s.Feedback.Create(ctx, api.FeedbackInput{Title: "Slow build", Description: &desc, Priority: "high"})
	require.NoError(t, err)
	_, err = s.OpenFeedback(ctx, item.ID)
	require.NoError(t, err)
	_, err = s.Detail.AttachLabel(ctx, api.LabelInput{Name: "bug"})
	require.NoError(t, err)
	for _, content := range []string{"first", "second"} {
		_, err = s.Detail.AddComment(ctx, api.CommentInput{Content: content})
		require.NoError(t, err)
	}
	m = apply(t, m, m.resolve())
	require.Equal(t, router.ViewFeedbackDetail, m.decision.View)

	m, cmd := press(m, runes("s"))
	m = apply(t, m, cmd)
	f := s.Detail.Feedback()
	assert.Equal(t, "in_progress", f.Status)
	assert.Equal(t, "high", f.Priority)
	assert.Equal(t, "Original text", f.Description)

	m, _ = press(m, runes("e"))
	require.NotNil(t, m.editor)
	assert.Equal(t, []string{"Slow build", "Original text", "in_progress", "high"}, m.editor.form.values())
	m.editor.form.inputs[1].SetValue("")
	m.editor.form.inputs[3].SetValue("low")
	m, cmd = press(m, enter)
	m = apply(t, m, cmd)
	require.Empty(t, m.errLine)
	f = s.Detail.Feedback()
	assert.Equal(t, "low", f.Priority)
	assert.Empty(t, f.Description)
	assert.Equal(t, "in_progress", f.Status)

	target := s.Detail.Comments()[0]
	m, _ = press(m, runes("E"))
	require.NotNil(t, m.prompt)
	assert.Equal(t, target.Content, m.prompt.input.Value())
	m.prompt.input.SetValue("edited")
	m, cmd = press(m, enter)
	m = apply(t, m, cmd)
	require.Empty(t, m.errLine)
	assert.Equal(t, "edited", s.Detail.Comments()[0].Content)

	m, _ = press(m, runes("j"))
	assert.Equal(t, 1, m.cursor)
	doomed := s.Detail.Comments()[1]
	m, cmd = press(m, runes("X"))
	m = apply(t, m, cmd)
	remaining := s.Detail.Comments()
	require.Len(t, remaining, 1)
	assert.NotEqual(t, doomed.ID, remaining[0].ID)
	assert.Equal(t, 0, m.cursor)

	m, _ = press(m, runes("u"))
	require.NotNil(t, m.prompt)
	assert.Equal(t, "bug", m.prompt.input.Value())
	m, cmd = press(m, enter)
	m = apply(t, m, cmd)
	require.Empty(t, m.errLine)
	assert.Empty(t, s.Detail.Labels())
}

func TestEnrollPromptAcceptsUsername(t *testing.T) {
	m, s := teacherModel(t)
	ctx := context.Background()
	require.NoError(t, s.Client().Register(ctx, api.Registration{
		Username: "sam", Email: "sam@example.local", Password: "secret123", Role: "student",
	}))
	_, err := s.Projects.Create(ctx, api.ProjectInput{Name: "Databases"})
	require.NoError(t, err)
	m = apply(t, m, m.resolve())

	m, cmd := press(m, runes("m"))
	m = apply(t, m, cmd)
	m, _ = press(m, runes("a"))
	require.NotNil(t, m.prompt)
	m.prompt.input.SetValue("sam")
	m, cmd = press(m, enter)
	m = apply(t, m, cmd)
	require.Empty(t, m.errLine)

	sam, err := s.Client().FindUser(ctx, "sam")
	require.NoError(t, err)
	_, enrolled := s.Projects.Enrollment()
	assert.Equal(t, []int64{sam.ID}, enrolled)

	m, _ = press(m, runes("a"))
	m.prompt.input.SetValue("ghost")
	m, cmd = press(m, enter)
	m = apply(t, m, cmd)
	assert.Equal(t, `no user named "ghost"`, m.errLine)
}

func TestFeedbackInputFromEditor(t *testing.T) {
	created := feedbackInput([]string{" Crash ", "", "", ""}, false)
	assert.Equal(t, "Crash", created.Title)
	assert.Nil(t, created.Description)

	edited := feedbackInput([]string{"Crash", "", "closed", "low"}, true)
	require.NotNil(t, edited.Description)
	assert.Empty(t, *edited.Description)
	assert.Equal(t, "closed", edited.Status)
	assert.Equal(t, "low", edited.Priority)
}
