package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/mher0919/launchpad/internal/db"
	"github.com/mher0919/launchpad/internal/runner"
)

const (
	headerHeight = 3
	footerHeight = 2
)

func (m *AppModel) initViewport() {
	w := m.width - 4
	h := m.height - headerHeight - footerHeight - 2
	if w < 10 {
		w = 10
	}
	if h < 3 {
		h = 3
	}
	if !m.ready {
		m.viewport = viewport.New(w, h)
		m.ready = true
	} else {
		m.viewport.Width = w
		m.viewport.Height = h
	}
	m.updateViewport()
}

func (m *AppModel) updateDashboard(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	switch keyMsg.String() {
	case "s":
		if m.runner.State() == runner.StateIdle && !m.updating {
			return m, m.startRun()
		}
		return m, nil

	case "x":
		m.runner.Stop()
		return m, nil

	case "u":
		if m.runner.State() == runner.StateIdle && !m.updating {
			m.updating = true
			return m, m.runUpdate()
		}
		return m, nil

	case "R":
		if m.updateApplied {
			return m, m.relaunch()
		}
		return m, nil

	case "p":
		m.currentView = ViewChangePassword
		m.changePwForm = m.newChangePwForm()
		return m, m.changePwForm.Init()

	case "q", "ctrl+c":
		if m.runner.State() == runner.StateRunning {
			m.quitConfirmValue = false
			m.quitConfirm = huh.NewForm(huh.NewGroup(
				huh.NewConfirm().
					Key("quit").
					Title("Automation is running. Quit anyway?").
					Description("The automation process will be stopped").
					Affirmative("Quit").
					Negative("Stay").
					Value(&m.quitConfirmValue),
			)).WithTheme(huh.ThemeDracula()).
				WithWidth(m.width - 4).
				WithShowHelp(true)
			m.currentView = ViewQuitConfirm
			return m, m.quitConfirm.Init()
		}
		m.Cleanup()
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(keyMsg)
	return m, cmd
}

func (m *AppModel) updateQuitConfirm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.String() == "esc" {
		m.currentView = ViewDashboard
		m.quitConfirm = nil
		return m, nil
	}

	form, cmd := m.quitConfirm.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.quitConfirm = f
	}

	if m.quitConfirm.State == huh.StateCompleted {
		if m.quitConfirmValue {
			m.runner.Stop()
			m.runner.Wait()
			m.Cleanup()
			return m, tea.Quit
		}
		m.currentView = ViewDashboard
		m.quitConfirm = nil
		return m, nil
	}

	return m, cmd
}

func (m *AppModel) viewQuitConfirm() string {
	return m.centered(FocusedBox.Render(m.quitConfirm.View()))
}

func (m *AppModel) viewDashboard() string {
	header := m.renderHeader()
	log := Box.Width(m.width - 2).Render(m.viewport.View())
	footer := m.renderFooter()
	return lipgloss.JoinVertical(lipgloss.Left, header, log, footer)
}

func (m *AppModel) renderHeader() string {
	var status string
	switch {
	case m.updating:
		status = m.spinner.View() + " " + Warning.Render("Updating...")
	case m.runner.State() == runner.StateRunning:
		status = m.spinner.View() + " " + Success.Render(IconRunning()+" Running")
	case m.runner.State() == runner.StateStopping:
		status = m.spinner.View() + " " + Warning.Render(IconWarning()+" Stopping...")
	default:
		status = Dim.Render(IconStopped() + " Stopped")
	}

	title := Title.Render("Launchpad") + Dim.Render(" "+m.version)
	user := Dim.Render(m.userEmail)

	right := user
	if m.latestRelease != nil {
		right = Warning.Render(fmt.Sprintf("%s update %s available ", IconWarning(), m.latestRelease.Version)) + user
	}

	gap := m.width - lipgloss.Width(title) - lipgloss.Width(status) - lipgloss.Width(right) - 6
	if gap < 1 {
		gap = 1
	}

	line := title + "  " + status + strings.Repeat(" ", gap) + right
	return lipgloss.NewStyle().Padding(1, 1, 0, 1).Render(line)
}

func (m *AppModel) renderFooter() string {
	keys := []struct{ key, desc string }{
		{"s", "start"},
		{"x", "stop"},
		{"u", "update"},
		{"p", "password"},
		{"q", "quit"},
	}
	if m.updateApplied {
		keys = append(keys, struct{ key, desc string }{"R", IconDone() + " restart to apply update"})
	}

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, HelpKey.Render(k.key)+" "+HelpDesc.Render(k.desc))
	}
	return lipgloss.NewStyle().Padding(0, 1).Render(strings.Join(parts, "  "))
}

// updateViewport re-renders the log lines into the viewport.
func (m *AppModel) updateViewport() {
	if !m.ready {
		return
	}

	// Check if user is at bottom before updating content
	wasAtBottom := m.viewport.AtBottom()

	var b strings.Builder
	for _, line := range m.lines {
		b.WriteString(renderLine(line))
		b.WriteByte('\n')
	}
	m.viewport.SetContent(b.String())

	if wasAtBottom {
		m.viewport.GotoBottom()
	}
}

// renderLine formats a single log line with its kind color.
func renderLine(line runner.Line) string {
	style := lipgloss.NewStyle()
	switch line.Kind {
	case db.KindError:
		style = Error
	case db.KindSuccess:
		style = Success
	case db.KindSystem:
		style = System
	}

	timeStr := line.Time.Format("15:04:05")
	return fmt.Sprintf("%s %s", Dim.Render(timeStr), style.Render(line.Text))
}
