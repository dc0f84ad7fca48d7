package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"feedtrack/internal/client/api"
)

type field struct {
	placeholder string
	secret      bool
	// limit overrides the default character limit.
	limit int
}

// form is a vertical stack of text inputs with one focused at a time.
type form struct {
	inputs []textinput.Model
	focus  int
}

func newForm(fields ...field) form {
	f := form{inputs: make([]textinput.Model, len(fields))}
	for i, fl := range fields {
		in := textinput.New()
		in.Placeholder = fl.placeholder
		in.CharLimit = 128
		if fl.limit > 0 {
			in.CharLimit = fl.limit
		}
		if fl.secret {
			in.EchoMode = textinput.EchoPassword
			in.EchoCharacter = '•'
		}
		f.inputs[i] = in
	}
	f.inputs[0].Focus()
	return f
}

func (f *form) next() {
	f.inputs[f.focus].Blur()
	f.focus = (f.focus + 1) % len(f.inputs)
	f.inputs[f.focus].Focus()
}

func (f *form) prev() {
	f.inputs[f.focus].Blur()
	f.focus = (f.focus + len(f.inputs) - 1) % len(f.inputs)
	f.inputs[f.focus].Focus()
}

// set fills the inputs in order; extra values are ignored.
func (f *form) set(values ...string) {
	for i, v := range values {
		if i < len(f.inputs) {
			f.inputs[i].SetValue(v)
		}
	}
}

func (f *form) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return cmd
}

func (f *form) values() []string {
	out := make([]string, len(f.inputs))
	for i, in := range f.inputs {
		out[i] = in.Value()
	}
	return out
}

func (f *form) reset() {
	for i := range f.inputs {
		f.inputs[i].SetValue("")
		f.inputs[i].Blur()
	}
	f.focus = 0
	f.inputs[0].Focus()
}

func (f *form) view() string {
	var b strings.Builder
	for _, in := range f.inputs {
		b.WriteString(in.View())
		b.WriteByte('\n')
	}
	return b.String()
}

// prompt is a one-line input that runs submit on enter.
type prompt struct {
	title  string
	input  textinput.Model
	submit func(value string) tea.Cmd
}

func newPrompt(title, value string, submit func(string) tea.Cmd) *prompt {
	in := textinput.New()
	in.CharLimit = 256
	in.SetValue(value)
	in.Focus()
	return &prompt{title: title, input: in, submit: submit}
}

// editor is a multi-field form shown as a panel over the current view.
// submit returns an error to keep the panel open and show it.
type editor struct {
	title  string
	form   form
	submit func(values []string) (tea.Cmd, error)
}

func newFeedbackEditor(title string, submit func(values []string) (tea.Cmd, error), values ...string) *editor {
	f := newForm(
		field{placeholder: "title"},
		field{placeholder: "description (markdown)", limit: 4000},
		field{placeholder: "status (open, in_progress, resolved, closed)"},
		field{placeholder: "priority (low, medium, high)"},
	)
	f.set(values...)
	return &editor{title: title, form: f, submit: submit}
}

// feedbackInput maps editor values to a request. On edit an empty
// description is sent so it can be cleared; on create it is left out.
func feedbackInput(values []string, edit bool) api.FeedbackInput {
	in := api.FeedbackInput{
		Title:    strings.TrimSpace(values[0]),
		Status:   strings.TrimSpace(values[2]),
		Priority: strings.TrimSpace(values[3]),
	}
	if desc := strings.TrimSpace(values[1]); desc != "" || edit {
		in.Description = &desc
	}
	return in
}
