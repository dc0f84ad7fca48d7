package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"feedtrack/internal/client/router"
)

func (m Model) View() string {
	var body string
	switch m.decision.View {
	case router.ViewLogin:
		body = m.viewLogin()
	case router.ViewRegister:
		body = m.viewRegister()
	case router.ViewProjects:
		body = m.viewProjects()
	case router.ViewFeedbackList:
		body = m.viewFeedbackList()
	case router.ViewFeedbackDetail:
		body = m.viewDetail()
	}

	parts := []string{body}
	if m.prompt != nil {
		parts = append(parts, panelStyle.Render(m.prompt.title+"\n"+m.prompt.input.View()))
	}
	if m.editor != nil {
		parts = append(parts, panelStyle.Render(m.editor.title+"\n"+m.editor.form.view()+
			subtleStyle.Render("tab: next field · enter: save · esc: cancel")))
	}
	if m.busy {
		parts = append(parts, subtleStyle.Render("working..."))
	}
	if m.errLine != "" {
		parts = append(parts, errorStyle.Render("error: "+m.errLine)+subtleStyle.Render("  (esc to dismiss)"))
	} else if m.status != "" {
		parts = append(parts, statusStyle.Render(m.status))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...) + "\n"
}

func (m Model) header(title string) string {
	who := roleLine(m)
	if who == "" {
		return titleStyle.Render(title)
	}
	return titleStyle.Render(title) + subtleStyle.Render("  "+who)
}

func (m Model) viewLogin() string {
	return m.header("feedtrack · sign in") + "\n\n" +
		m.login.view() +
		helpStyle.Render("tab: next field · enter: sign in · ctrl+r: register · ctrl+c: quit")
}

func (m Model) viewRegister() string {
	return m.header("feedtrack · register") + "\n\n" +
		m.register.view() +
		helpStyle.Render("tab: next field · enter: create account · esc: back to sign in")
}

func (m Model) viewProjects() string {
	var b strings.Builder
	b.WriteString(m.header("Projects"))
	b.WriteString("\n\n")

	projects := m.session.Projects.Items()
	if len(projects) == 0 {
		b.WriteString(subtleStyle.Render("no projects yet"))
		b.WriteByte('\n')
	}
	for i, p := range projects {
		line := p.Name
		if p.Description != nil && *p.Description != "" {
			line += subtleStyle.Render(" · " + *p.Description)
		}
		b.WriteString(m.row(i, line))
	}

	if open, ids := m.session.Projects.Enrollment(); open != 0 {
		list := "none"
		if len(ids) > 0 {
			parts := make([]string, len(ids))
			for i, id := range ids {
				parts[i] = fmt.Sprintf("#%d", id)
			}
			list = strings.Join(parts, ", ")
		}
		b.WriteString("\n")
		b.WriteString(panelStyle.Render(fmt.Sprintf("Enrolled in project %d: %s\na: enroll · x: unenroll · esc: close", open, list)))
		b.WriteByte('\n')
	}

	help := "↑/↓: move · enter: open · r: refresh · L: logout · q: quit"
	if aff := m.session.Affordances(m.ctx); aff.CreateProject {
		help = "n: new · e: rename · d: delete · m: enrollment · " + help
	}
	b.WriteString(helpStyle.Render(help))
	return b.String()
}

func (m Model) viewFeedbackList() string {
	var b strings.Builder
	b.WriteString(m.header(fmt.Sprintf("Feedback · project %d", m.session.Feedback.ProjectID())))
	b.WriteString("\n\n")

	items := m.session.Feedback.Items()
	if len(items) == 0 {
		b.WriteString(subtleStyle.Render("no feedback yet"))
		b.WriteByte('\n')
	}
	for i, f := range items {
		b.WriteString(m.row(i, fmt.Sprintf("%-40s %-12s %s", f.Title, f.Status, f.Priority)))
	}
	b.WriteString(helpStyle.Render("↑/↓: move · enter: open · n: new · e: edit · d: delete · esc: back · L: logout"))
	return b.String()
}

func (m Model) viewDetail() string {
	var b strings.Builder
	f := m.session.Detail.Feedback()
	if f == nil {
		b.WriteString(m.header("Feedback"))
		b.WriteString("\n\n")
		b.WriteString(subtleStyle.Render("loading..."))
		return b.String()
	}
	b.WriteString(m.header(f.Title))
	b.WriteString("\n")
	b.WriteString(subtleStyle.Render(fmt.Sprintf("status %s · priority %s", f.Status, f.Priority)))
	b.WriteString("\n")

	if labels := m.session.Detail.Labels(); len(labels) > 0 {
		rendered := make([]string, len(labels))
		for i, l := range labels {
			rendered[i] = labelStyle(l.Color).Render(l.Name)
		}
		b.WriteString(strings.Join(rendered, " "))
		b.WriteString("\n")
	}
	if f.Description != "" {
		b.WriteString(m.renderMarkdown(f.Description))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(titleStyle.Render("Comments"))
	b.WriteString("\n")
	comments := m.session.Detail.Comments()
	if len(comments) == 0 {
		b.WriteString(subtleStyle.Render("no comments"))
		b.WriteString("\n")
	}
	for i, c := range comments {
		who := c.Username
		if who == "" {
			who = fmt.Sprintf("user %d", c.UserID)
		}
		if i == m.cursor {
			b.WriteString(selectedStyle.Render("> "))
		} else {
			b.WriteString("  ")
		}
		b.WriteString(selectedStyle.Render(who))
		b.WriteString(subtleStyle.Render(" " + c.CreatedAt.Format("2006-01-02 15:04")))
		b.WriteString("\n    ")
		b.WriteString(c.Content)
		b.WriteString("\n")
	}

	help := "e: edit · s: cycle status · c: comment · ↑/↓ E/X: edit/delete comment · d: delete · esc: back"
	if m.session.Affordances(m.ctx).ManageLabels {
		help = "l/u: attach/detach label · " + help
	}
	b.WriteString(helpStyle.Render(help))
	return b.String()
}

func (m Model) row(i int, text string) string {
	if i == m.cursor {
		return selectedStyle.Render("> "+text) + "\n"
	}
	return "  " + text + "\n"
}
