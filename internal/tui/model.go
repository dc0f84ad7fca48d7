// Package tui renders the client as a bubbletea program. Network work runs
// in commands; results come back as messages and are applied on the event
// loop.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"go.uber.org/zap"

	"feedtrack/internal/client/api"
	"feedtrack/internal/client/app"
	"feedtrack/internal/client/router"
	"feedtrack/internal/client/views"
	"feedtrack/internal/model"
)

// resolvedMsg carries a routing decision, plus the error of any fetch that
// ran for it.
type resolvedMsg struct {
	decision router.Decision
	err      error
}

// doneMsg reports a mutation that does not change the view.
type doneMsg struct {
	status string
	err    error
}

type Model struct {
	ctx     context.Context
	session *app.Session
	logger  *zap.Logger

	decision router.Decision
	width    int
	busy     bool
	errLine  string
	status   string

	login    form
	register form
	cursor   int
	prompt   *prompt
	editor   *editor
}

func New(ctx context.Context, session *app.Session, logger *zap.Logger) Model {
	if logger == nil {
		logger = zap.NewNop()
	}
	return Model{
		ctx:     ctx,
		session: session,
		logger:  logger,
		login: newForm(
			field{placeholder: "username"},
			field{placeholder: "password", secret: true},
		),
		register: newForm(
			field{placeholder: "username"},
			field{placeholder: "email"},
			field{placeholder: "password", secret: true},
			field{placeholder: "role (student, teacher, admin)"},
		),
		width: 80,
	}
}

func (m Model) Init() tea.Cmd {
	return m.resolve()
}

func (m Model) resolve() tea.Cmd {
	s, ctx := m.session, m.ctx
	return func() tea.Msg {
		d := s.Current(ctx)
		return resolvedMsg{decision: d, err: s.Refresh(ctx, d)}
	}
}

func (m Model) navigate(path string) tea.Cmd {
	s, ctx := m.session, m.ctx
	return func() tea.Msg {
		d := s.Navigate(ctx, path)
		return resolvedMsg{decision: d, err: s.Refresh(ctx, d)}
	}
}

func (m Model) transition(fn func(ctx context.Context) (router.Decision, error)) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		d, err := fn(ctx)
		return resolvedMsg{decision: d, err: err}
	}
}

func (m Model) mutate(status string, fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return doneMsg{status: status, err: fn(ctx)}
	}
}

// fail shows err on the error line. Stale results are dropped and an ended
// session re-resolves to the login view instead of showing an error.
func (m *Model) fail(err error) tea.Cmd {
	switch {
	case err == nil, errors.Is(err, views.ErrStale):
		return nil
	case errors.Is(err, api.ErrUnauthorized) && !m.session.Gate().IsLoggedIn():
		m.errLine = ""
		return m.resolve()
	}
	m.logger.Debug("request failed", zap.Error(err))
	m.errLine = err.Error()
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case resolvedMsg:
		m.busy = false
		if msg.decision.View != m.decision.View {
			if m.decision.View == router.ViewLogin {
				m.login.reset()
			}
			m.cursor = 0
			m.prompt = nil
			m.editor = nil
		}
		m.decision = msg.decision
		m.clampCursor()
		return m, m.fail(msg.err)
	case doneMsg:
		m.busy = false
		m.clampCursor()
		if msg.err != nil {
			return m, m.fail(msg.err)
		}
		m.status = msg.status
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, m.forward(msg)
}

// forward routes non-key messages such as cursor blinks to the active input.
func (m *Model) forward(msg tea.Msg) tea.Cmd {
	if m.prompt != nil {
		var cmd tea.Cmd
		m.prompt.input, cmd = m.prompt.input.Update(msg)
		return cmd
	}
	if m.editor != nil {
		return m.editor.form.update(msg)
	}
	switch m.decision.View {
	case router.ViewLogin:
		return m.login.update(msg)
	case router.ViewRegister:
		return m.register.update(msg)
	}
	return nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}
	if m.prompt != nil {
		return m.handlePrompt(msg)
	}
	if m.editor != nil {
		return m.handleEditor(msg)
	}
	if m.errLine != "" && msg.Type == tea.KeyEsc {
		m.errLine = ""
		return m, nil
	}
	switch m.decision.View {
	case router.ViewLogin:
		return m.handleLogin(msg)
	case router.ViewRegister:
		return m.handleRegister(msg)
	}
	if m.busy {
		return m, nil
	}
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "up", "k":
		m.cursor--
		m.clampCursor()
		return m, nil
	case "down", "j":
		m.cursor++
		m.clampCursor()
		return m, nil
	case "r":
		m.busy = true
		return m, m.resolve()
	case "L":
		m.busy = true
		s := m.session
		return m, m.transition(func(ctx context.Context) (router.Decision, error) {
			return s.Logout(ctx), nil
		})
	}
	switch m.decision.View {
	case router.ViewProjects:
		return m.handleProjects(msg)
	case router.ViewFeedbackList:
		return m.handleFeedbackList(msg)
	case router.ViewFeedbackDetail:
		return m.handleDetail(msg)
	}
	return m, nil
}

func (m Model) handlePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.prompt = nil
		return m, nil
	case tea.KeyEnter:
		p := m.prompt
		m.prompt = nil
		cmd := p.submit(strings.TrimSpace(p.input.Value()))
		if cmd != nil {
			m.busy = true
			m.errLine = ""
		}
		return m, cmd
	}
	var cmd tea.Cmd
	m.prompt.input, cmd = m.prompt.input.Update(msg)
	return m, cmd
}

func (m Model) handleEditor(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.editor = nil
		m.errLine = ""
		return m, nil
	case tea.KeyTab, tea.KeyDown:
		m.editor.form.next()
		return m, nil
	case tea.KeyShiftTab, tea.KeyUp:
		m.editor.form.prev()
		return m, nil
	case tea.KeyEnter:
		cmd, err := m.editor.submit(m.editor.form.values())
		if err != nil {
			m.errLine = err.Error()
			return m, nil
		}
		m.editor = nil
		m.errLine = ""
		m.busy = true
		return m, cmd
	}
	return m, m.editor.form.update(msg)
}

func (m Model) handleLogin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyTab, tea.KeyShiftTab:
		m.login.next()
		return m, nil
	case tea.KeyCtrlR:
		m.errLine = ""
		return m, m.navigate(router.PathRegister)
	case tea.KeyEnter:
		if m.busy {
			return m, nil
		}
		values := m.login.values()
		m.busy = true
		m.errLine = ""
		s := m.session
		return m, m.transition(func(ctx context.Context) (router.Decision, error) {
			d, err := s.Login(ctx, values[0], values[1])
			var reqErr *api.RequestError
			if errors.As(err, &reqErr) && reqErr.Status == 401 {
				return s.Current(ctx), errors.New("invalid username or password")
			}
			if err != nil {
				return s.Current(ctx), err
			}
			return d, s.Refresh(ctx, d)
		})
	}
	return m, m.login.update(msg)
}

func (m Model) handleRegister(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyTab, tea.KeyShiftTab:
		m.register.next()
		return m, nil
	case tea.KeyEsc:
		m.errLine = ""
		return m, m.navigate(router.PathLogin)
	case tea.KeyEnter:
		if m.busy {
			return m, nil
		}
		v := m.register.values()
		m.busy = true
		m.errLine = ""
		s := m.session
		reg := api.Registration{Username: v[0], Email: v[1], Password: v[2], Role: v[3]}
		m.register.reset()
		m.status = ""
		return m, m.transition(func(ctx context.Context) (router.Decision, error) {
			d, err := s.Register(ctx, reg)
			if err != nil {
				return s.Current(ctx), err
			}
			return d, nil
		})
	}
	return m, m.register.update(msg)
}

func (m Model) handleProjects(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	s := m.session
	projects := s.Projects.Items()
	aff := s.Affordances(m.ctx)
	var selected *api.Project
	if m.cursor < len(projects) {
		selected = &projects[m.cursor]
	}

	switch msg.String() {
	case "enter":
		if selected == nil {
			return m, nil
		}
		id := selected.ID
		m.busy = true
		return m, m.transition(func(ctx context.Context) (router.Decision, error) {
			return s.OpenProject(ctx, id)
		})
	case "n":
		if !aff.CreateProject {
			return m, nil
		}
		m.prompt = newPrompt("New project name", "", func(name string) tea.Cmd {
			return m.mutate("project created", func(ctx context.Context) error {
				_, err := s.Projects.Create(ctx, api.ProjectInput{Name: name})
				return err
			})
		})
	case "e":
		if !aff.EditProject || selected == nil {
			return m, nil
		}
		id, desc := selected.ID, selected.Description
		m.prompt = newPrompt("Rename project", selected.Name, func(name string) tea.Cmd {
			return m.mutate("project updated", func(ctx context.Context) error {
				_, err := s.Projects.Update(ctx, id, api.ProjectInput{Name: name, Description: desc})
				return err
			})
		})
	case "d":
		if !aff.DeleteProject || selected == nil {
			return m, nil
		}
		id := selected.ID
		m.busy = true
		return m, m.mutate("project deleted", func(ctx context.Context) error {
			return s.Projects.Delete(ctx, id)
		})
	case "m":
		if !aff.ManageEnrollment || selected == nil {
			return m, nil
		}
		id := selected.ID
		m.busy = true
		return m, m.mutate("", func(ctx context.Context) error {
			return s.Projects.OpenEnrollment(ctx, id)
		})
	case "a", "x":
		if open, _ := s.Projects.Enrollment(); open == 0 {
			return m, nil
		}
		add := msg.String() == "a"
		title := "Enroll user (username or id)"
		if !add {
			title = "Unenroll user (username or id)"
		}
		m.prompt = newPrompt(title, "", func(value string) tea.Cmd {
			return m.mutate("enrollment updated", func(ctx context.Context) error {
				userID, err := s.ResolveUser(ctx, value)
				if errors.Is(err, api.ErrNoSuchUser) {
					return fmt.Errorf("no user named %q", value)
				}
				if err != nil {
					return err
				}
				if add {
					return s.Projects.Enroll(ctx, userID)
				}
				return s.Projects.Unenroll(ctx, userID)
			})
		})
	case "esc":
		s.Projects.CloseEnrollment()
	}
	return m, nil
}

func (m Model) handleFeedbackList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	s := m.session
	items := s.Feedback.Items()
	var selected *api.Feedback
	if m.cursor < len(items) {
		selected = &items[m.cursor]
	}

	switch msg.String() {
	case "enter":
		if selected == nil {
			return m, nil
		}
		id := selected.ID
		m.busy = true
		return m, m.transition(func(ctx context.Context) (router.Decision, error) {
			return s.OpenFeedback(ctx, id)
		})
	case "n":
		m.editor = newFeedbackEditor("New feedback", func(values []string) (tea.Cmd, error) {
			in := feedbackInput(values, false)
			if err := in.Validate(); err != nil {
				return nil, err
			}
			return m.mutate("feedback created", func(ctx context.Context) error {
				_, err := s.Feedback.Create(ctx, in)
				return err
			}), nil
		})
	case "e":
		if selected == nil {
			return m, nil
		}
		id := selected.ID
		m.editor = newFeedbackEditor("Edit feedback", func(values []string) (tea.Cmd, error) {
			in := feedbackInput(values, true)
			if err := in.Validate(); err != nil {
				return nil, err
			}
			return m.mutate("feedback updated", func(ctx context.Context) error {
				_, err := s.Feedback.Update(ctx, id, in)
				return err
			}), nil
		}, selected.Title, selected.Description, selected.Status, selected.Priority)
	case "d":
		if selected == nil {
			return m, nil
		}
		id := selected.ID
		m.busy = true
		return m, m.mutate("feedback deleted", func(ctx context.Context) error {
			return s.Feedback.Delete(ctx, id)
		})
	case "esc", "backspace":
		m.busy = true
		return m, m.transition(s.Back)
	}
	return m, nil
}

func nextStatus(current string) string {
	for i, status := range model.Statuses {
		if string(status) == current {
			return string(model.Statuses[(i+1)%len(model.Statuses)])
		}
	}
	return string(model.StatusOpen)
}

func (m Model) handleDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	s := m.session
	feedback := s.Detail.Feedback()
	if feedback == nil {
		if msg.String() == "esc" || msg.String() == "backspace" {
			m.busy = true
			return m, m.transition(s.Back)
		}
		return m, nil
	}

	comments := s.Detail.Comments()
	var comment *api.Comment
	if m.cursor < len(comments) {
		comment = &comments[m.cursor]
	}
	manageLabels := s.Affordances(m.ctx).ManageLabels

	switch msg.String() {
	case "s":
		in := api.FeedbackInput{Title: feedback.Title, Status: nextStatus(feedback.Status)}
		m.busy = true
		return m, m.mutate("status changed", func(ctx context.Context) error {
			_, err := s.Detail.Update(ctx, in)
			return err
		})
	case "e":
		m.editor = newFeedbackEditor("Edit feedback", func(values []string) (tea.Cmd, error) {
			in := feedbackInput(values, true)
			if err := in.Validate(); err != nil {
				return nil, err
			}
			return m.mutate("feedback updated", func(ctx context.Context) error {
				_, err := s.Detail.Update(ctx, in)
				return err
			}), nil
		}, feedback.Title, feedback.Description, feedback.Status, feedback.Priority)
	case "c":
		m.prompt = newPrompt("Comment", "", func(content string) tea.Cmd {
			return m.mutate("comment added", func(ctx context.Context) error {
				_, err := s.Detail.AddComment(ctx, api.CommentInput{Content: content})
				return err
			})
		})
	case "E":
		if comment == nil {
			return m, nil
		}
		id := comment.ID
		m.prompt = newPrompt("Edit comment", comment.Content, func(content string) tea.Cmd {
			return m.mutate("comment updated", func(ctx context.Context) error {
				_, err := s.Detail.EditComment(ctx, id, api.CommentInput{Content: content})
				return err
			})
		})
	case "X":
		if comment == nil {
			return m, nil
		}
		id := comment.ID
		m.busy = true
		return m, m.mutate("comment deleted", func(ctx context.Context) error {
			return s.Detail.DeleteComment(ctx, id)
		})
	case "u":
		labels := s.Detail.Labels()
		if !manageLabels || len(labels) == 0 {
			return m, nil
		}
		var value string
		if len(labels) == 1 {
			value = labels[0].Name
		}
		m.prompt = newPrompt("Detach label", value, func(name string) tea.Cmd {
			return m.mutate("label detached", func(ctx context.Context) error {
				for _, l := range labels {
					if strings.EqualFold(l.Name, name) {
						return s.Detail.DetachLabel(ctx, l.ID)
					}
				}
				return fmt.Errorf("no label named %q", name)
			})
		})
	case "l":
		if !manageLabels {
			return m, nil
		}
		m.prompt = newPrompt("Label (name #rrggbb)", "", func(value string) tea.Cmd {
			in := api.LabelInput{Name: value}
			if i := strings.LastIndex(value, " #"); i >= 0 {
				in = api.LabelInput{Name: strings.TrimSpace(value[:i]), Color: value[i+1:]}
			}
			return m.mutate("label attached", func(ctx context.Context) error {
				_, err := s.Detail.AttachLabel(ctx, in)
				return err
			})
		})
	case "d":
		m.busy = true
		return m, m.transition(func(ctx context.Context) (router.Decision, error) {
			if err := s.Detail.Delete(ctx); err != nil {
				return s.Current(ctx), err
			}
			return s.Back(ctx)
		})
	case "esc", "backspace":
		m.busy = true
		return m, m.transition(s.Back)
	}
	return m, nil
}

func (m *Model) clampCursor() {
	n := 0
	switch m.decision.View {
	case router.ViewProjects:
		n = len(m.session.Projects.Items())
	case router.ViewFeedbackList:
		n = len(m.session.Feedback.Items())
	case router.ViewFeedbackDetail:
		n = len(m.session.Detail.Comments())
	}
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m Model) renderMarkdown(text string) string {
	width := m.width - 4
	if width < 20 {
		width = 20
	}
	r, err := glamour.NewTermRenderer(glamour.WithStandardStyle("dark"), glamour.WithWordWrap(width))
	if err != nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}

func roleLine(m Model) string {
	identity := m.session.Identity(m.ctx)
	if identity == nil {
		return ""
	}
	return fmt.Sprintf("%s (%s)", identity.Username, identity.Role)
}
