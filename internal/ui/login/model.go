package login

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/carpool-client/internal/theme"
)

// SubmitMsg is dispatched when the user completes the form.
type SubmitMsg struct {
	Email    string
	Password string
}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	email    string
	password string
}

// Model is the login form.
type Model struct {
	form    *huh.Form
	fb      *formBindings
	err     string
	pending bool
	width   int
	height  int
}

// New creates a new login form model.
func New(width, height int) Model {
	return Model{fb: &formBindings{}, width: width, height: height}
}

// Start resets the form, keeping the last email, and focuses it.
func (m *Model) Start() tea.Cmd {
	m.fb.password = ""
	m.pending = false
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Placeholder("you@university.edu").
				Value(&m.fb.email).
				Validate(validateEmail),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&m.fb.password).
				Validate(validateRequired("Password")),
		),
	).WithWidth(max(m.width-4, 20)).WithShowHelp(false)
	return m.form.Init()
}

// SetError shows msg under the form and restarts it for another try.
func (m *Model) SetError(msg string) tea.Cmd {
	m.err = msg
	return m.Start()
}

// Pending reports whether a submitted login is awaiting its result.
func (m Model) Pending() bool { return m.pending }

// Update handles messages for the login form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil || m.pending {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		m.pending = true
		m.err = ""
		submit := SubmitMsg{Email: strings.TrimSpace(m.fb.email), Password: m.fb.password}
		return m, func() tea.Msg { return submit }
	}
	if m.form.State == huh.StateAborted {
		return m, tea.Quit
	}

	return m, cmd
}

// View renders the login form.
func (m Model) View() string {
	parts := []string{theme.TitleStyle.Render("Sign in to Carpool")}
	if m.form != nil {
		parts = append(parts, m.form.View())
	}
	if m.pending {
		parts = append(parts, theme.HelpStyle.Render("Signing in..."))
	}
	if m.err != "" {
		parts = append(parts, theme.ErrorStyle.Render(m.err))
	}

	return theme.PanelStyle.
		Width(max(m.width-4, 0)).
		Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	if m.form != nil {
		m.form = m.form.WithWidth(max(width-4, 20))
	}
}

func validateRequired(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func validateEmail(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return errors.New("Email is required")
	}
	if !strings.Contains(s, "@") {
		return errors.New("Email must contain @")
	}
	return nil
}
