package ui

import (
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/mher0919/launchpad/internal/db"
)

// newAuthForm builds the login form, or the registration form on first run.
func (m *AppModel) newAuthForm() *huh.Form {
	m.email = ""
	m.password = ""
	m.confirm = ""

	fields := []huh.Field{
		huh.NewInput().
			Key("email").
			Title("Email").
			Value(&m.email),
		huh.NewInput().
			Key("password").
			Title("Password").
			EchoMode(huh.EchoModePassword).
			Value(&m.password),
	}
	if m.currentView == ViewRegister {
		fields = append(fields, huh.NewInput().
			Key("confirm").
			Title("Confirm password").
			EchoMode(huh.EchoModePassword).
			Value(&m.confirm))
	}

	width := m.width - 4
	if width < 40 {
		width = 40
	}

	return huh.NewForm(huh.NewGroup(fields...)).
		WithTheme(huh.ThemeDracula()).
		WithWidth(width).
		WithShowHelp(true)
}

func (m *AppModel) updateAuth(msg tea.Msg) (tea.Model, tea.Cmd) {
	form, cmd := m.authForm.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.authForm = f
	}

	if m.authForm.State != huh.StateCompleted {
		return m, cmd
	}

	if m.currentView == ViewRegister {
		return m.completeRegister()
	}
	return m.completeLogin()
}

func (m *AppModel) completeLogin() (tea.Model, tea.Cmd) {
	user, err := m.database.Authenticate(m.email, m.password)
	if err != nil {
		m.authError = err.Error()
		m.authForm = m.newAuthForm()
		return m, m.authForm.Init()
	}

	GetLogger().Info("user %s logged in", user.Email)
	m.userEmail = user.Email
	m.authError = ""
	m.currentView = ViewDashboard
	return m, nil
}

func (m *AppModel) completeRegister() (tea.Model, tea.Cmd) {
	if m.password != m.confirm {
		m.authError = db.ErrPasswordMismatch.Error()
		m.authForm = m.newAuthForm()
		return m, m.authForm.Init()
	}

	user, err := m.database.RegisterUser(m.email, m.password)
	if err != nil {
		m.authError = err.Error()
		m.authForm = m.newAuthForm()
		return m, m.authForm.Init()
	}

	GetLogger().Info("user %s registered", user.Email)
	// Registered users log in straight away
	m.userEmail = user.Email
	m.authError = ""
	m.currentView = ViewDashboard
	return m, nil
}

func (m *AppModel) viewAuth() string {
	title := "Login"
	if m.currentView == ViewRegister {
		title = "Welcome! Create the first account"
	}

	parts := []string{
		Title.Render(title),
		"",
		m.authForm.View(),
	}
	if m.authError != "" {
		parts = append(parts, "", Error.Render(m.authError))
	}

	content := lipgloss.JoinVertical(lipgloss.Left, parts...)
	return m.centered(FocusedBox.Render(content))
}

// newChangePwForm builds the change-password form.
func (m *AppModel) newChangePwForm() *huh.Form {
	m.currentPw = ""
	m.newPw = ""
	m.confirmPw = ""

	width := m.width - 4
	if width < 40 {
		width = 40
	}

	return huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Key("current").
			Title("Current password").
			EchoMode(huh.EchoModePassword).
			Value(&m.currentPw),
		huh.NewInput().
			Key("new").
			Title("New password").
			EchoMode(huh.EchoModePassword).
			Value(&m.newPw),
		huh.NewInput().
			Key("confirm").
			Title("Confirm new password").
			EchoMode(huh.EchoModePassword).
			Value(&m.confirmPw),
	)).
		WithTheme(huh.ThemeDracula()).
		WithWidth(width).
		WithShowHelp(true)
}

func (m *AppModel) updateChangePassword(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.String() == "esc" {
		m.currentView = ViewDashboard
		m.changePwForm = nil
		m.changePwMsg = ""
		return m, nil
	}

	form, cmd := m.changePwForm.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.changePwForm = f
	}

	if m.changePwForm.State != huh.StateCompleted {
		return m, cmd
	}

	err := m.database.ChangePassword(m.userEmail, m.currentPw, m.newPw, m.confirmPw)
	if err != nil {
		if errors.Is(err, db.ErrInvalidCredentials) {
			m.changePwMsg = "current password incorrect"
		} else {
			m.changePwMsg = err.Error()
		}
		m.changePwForm = m.newChangePwForm()
		return m, m.changePwForm.Init()
	}

	GetLogger().Info("user %s changed password", m.userEmail)
	m.currentView = ViewDashboard
	m.changePwForm = nil
	m.changePwMsg = ""
	return m, nil
}

func (m *AppModel) viewChangePassword() string {
	parts := []string{
		Title.Render("Change Password"),
		"",
		m.changePwForm.View(),
	}
	if m.changePwMsg != "" {
		parts = append(parts, "", Error.Render(m.changePwMsg))
	}
	parts = append(parts, "", Dim.Render("esc to cancel"))

	content := lipgloss.JoinVertical(lipgloss.Left, parts...)
	return m.centered(FocusedBox.Render(content))
}

// centered places content in the middle of the window.
func (m *AppModel) centered(content string) string {
	if m.width == 0 || m.height == 0 {
		return content
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}
