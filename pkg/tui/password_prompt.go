package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// PasswordPromptModel asks for the master password
type PasswordPromptModel struct {
	input       textinput.Model
	title       string
	description string
	err         error
	attempts    int
}

// PasswordSubmittedMsg is sent when password is submitted
type PasswordSubmittedMsg struct {
	Password  string
	Cancelled bool
}

// NewPasswordPromptModel creates a new password prompt
func NewPasswordPromptModel(title, description string) *PasswordPromptModel {
	input := textinput.New()
	input.Placeholder = "Enter password"
	input.EchoMode = textinput.EchoPassword
	input.EchoCharacter = '•'
	input.CharLimit = 256
	input.Width = 50
	input.Prompt = "> "
	input.Focus()

	return &PasswordPromptModel{
		input:       input,
		title:       title,
		description: description,
	}
}

func (m *PasswordPromptModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *PasswordPromptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "enter":
			password := m.input.Value()
			m.input.Reset()
			m.attempts++
			return m, func() tea.Msg {
				return PasswordSubmittedMsg{Password: password}
			}
		case "esc":
			return m, func() tea.Msg {
				return PasswordSubmittedMsg{Cancelled: true}
			}
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// SetError shows err under the input, nil clears it
func (m *PasswordPromptModel) SetError(err error) {
	m.err = err
}

// Attempts is the number of submitted passwords
func (m *PasswordPromptModel) Attempts() int {
	return m.attempts
}

func (m *PasswordPromptModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n\n")
	if m.description != "" {
		b.WriteString(helpStyle.Render(m.description))
		b.WriteString("\n\n")
	}
	b.WriteString(m.input.View())
	b.WriteString("\n\n")
	if m.err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("✗ %v", m.err)))
		b.WriteString("\n\n")
	}
	b.WriteString(helpStyle.Italic(true).Render("enter: submit • esc: cancel"))

	return boxStyle.Render(b.String())
}
