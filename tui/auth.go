package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"showtimedb-cli/service"
	"showtimedb-cli/store"
)

// authForm is the sign-in / sign-up prompt. Input survives failed attempts.
type authForm struct {
	register   bool
	reason     string
	email      textinput.Model
	password   textinput.Model
	focus      int
	submitting bool
	err        string
}

func newAuthForm(reason, email string) authForm {
	e := textinput.New()
	e.Placeholder = "you@example.com"
	e.Prompt = "Email    "
	e.CharLimit = 254
	e.Cursor.SetMode(cursor.CursorStatic)
	e.SetValue(email)

	p := textinput.New()
	p.Placeholder = "password"
	p.Prompt = "Password "
	p.EchoMode = textinput.EchoPassword
	p.EchoCharacter = '•'
	p.CharLimit = 128
	p.Cursor.SetMode(cursor.CursorStatic)

	f := authForm{reason: reason, email: e, password: p}
	if email != "" {
		f.focus = 1
	}
	f.syncFocus()
	return f
}

func (f *authForm) syncFocus() {
	if f.focus == 0 {
		f.email.Focus()
		f.password.Blur()
		return
	}
	f.email.Blur()
	f.password.Focus()
}

func (f *authForm) update(msg tea.Msg) tea.Cmd {
	if f.submitting {
		return nil
	}
	var cmd tea.Cmd
	if f.focus == 0 {
		f.email, cmd = f.email.Update(msg)
	} else {
		f.password, cmd = f.password.Update(msg)
	}
	return cmd
}

func (f authForm) view() string {
	title := "Sign in"
	if f.register {
		title = "Create account"
	}
	lines := []string{lipgloss.NewStyle().Bold(true).Render(title)}
	if f.reason != "" {
		lines = append(lines, hint(f.reason))
	}
	lines = append(lines, "", f.email.View(), f.password.View(), "")
	switch {
	case f.submitting:
		lines = append(lines, "Contacting the movie service...")
	case f.err != "":
		lines = append(lines, lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Render(f.err))
	}
	if f.register {
		lines = append(lines, hint("Already have an account? ctrl+n to sign in."))
	} else {
		lines = append(lines, hint("New here? ctrl+n to create an account."))
	}
	return lipgloss.NewStyle().
		Padding(1, 3).
		Border(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("63")).
		Render(strings.Join(lines, "\n"))
}

// openAuth shows the auth form. returnState is where esc or a successful
// sign-in without a pending show lands.
func (m *appModel) openAuth(returnState appState, reason string) tea.Cmd {
	m.auth = newAuthForm(reason, store.LastEmail())
	m.authReturn = returnState
	m.state = stateAuth
	return nil
}

func (m appModel) handleAuthKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.Back):
		if m.auth.submitting {
			return m, nil, true
		}
		m.flow.CancelAuth()
		m.state = m.authReturn
		return m, nil, true
	case key.Matches(msg, m.keys.SwitchMode):
		m.auth.register = !m.auth.register
		m.auth.err = ""
		return m, nil, true
	case key.Matches(msg, m.keys.NextField), key.Matches(msg, m.keys.PrevField):
		m.auth.focus = 1 - m.auth.focus
		m.auth.syncFocus()
		return m, nil, true
	case key.Matches(msg, m.keys.Select):
		if m.auth.submitting {
			return m, nil, true
		}
		if m.auth.focus == 0 && m.auth.password.Value() == "" {
			m.auth.focus = 1
			m.auth.syncFocus()
			return m, nil, true
		}
		email := strings.TrimSpace(m.auth.email.Value())
		password := m.auth.password.Value()
		if err := service.ValidateCredentials(email, password, m.auth.register); err != nil {
			m.auth.err = service.UserMessage(err)
			return m, nil, true
		}
		m.auth.err = ""
		m.auth.submitting = true
		return m, tea.Batch(m.authCmd(m.auth.register, email, password), m.spinner.Tick), true
	}
	return m, nil, false
}

func (m appModel) handleAuthResult(msg authMsg) (tea.Model, tea.Cmd) {
	if m.state != stateAuth {
		return m, nil
	}
	m.auth.submitting = false
	if msg.err != nil {
		m.log.Warn("authentication failed", "email", msg.email, "error", msg.err)
		m.auth.err = service.UserMessage(msg.err)
		return m, nil
	}
	if err := m.session.Login(msg.result); err != nil {
		m.auth.err = service.UserMessage(err)
		return m, nil
	}
	if err := store.RememberEmail(msg.email); err != nil {
		m.log.Warn("remember email", "error", err)
	}
	m.notice = "Signed in as " + msg.result.User.Email + "."

	if _, ok := m.flow.ResumeAfterAuth(); ok {
		cmd := m.startSeatLoad()
		return m, cmd
	}
	m.state = m.authReturn
	return m, nil
}
