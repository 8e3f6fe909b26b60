package ui

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/mher0919/launchpad/internal/config"
	"github.com/mher0919/launchpad/internal/db"
	"github.com/mher0919/launchpad/internal/runner"
	"github.com/mher0919/launchpad/internal/updater"
)

// View identifies the active screen.
type View int

const (
	ViewLogin View = iota
	ViewRegister
	ViewDashboard
	ViewChangePassword
	ViewQuitConfirm
)

// Messages for async operations.
type lineMsg struct{ line runner.Line }
type startedMsg struct{ err error }
type updateFinishedMsg struct{ err error }
type relaunchMsg struct{ err error }
type releaseCheckMsg struct{ release *updater.LatestRelease }

// AppModel is the top-level bubbletea model.
type AppModel struct {
	database *db.DB
	cfg      *config.Config
	runner   *runner.Runner
	updater  *updater.Updater
	version  string

	currentView View
	userEmail   string

	// Login/register form state
	authForm  *huh.Form
	email     string
	password  string
	confirm   string
	authError string

	// Change password form state
	changePwForm *huh.Form
	currentPw    string
	newPw        string
	confirmPw    string
	changePwMsg  string

	// Quit confirmation state
	quitConfirm      *huh.Form
	quitConfirmValue bool

	// Log view
	lines    []runner.Line
	viewport viewport.Model
	spinner  spinner.Model
	lineCh   chan runner.Line
	ready    bool

	// Update state
	updating      bool
	updateApplied bool
	latestRelease *updater.LatestRelease

	width  int
	height int
}

// NewAppModel creates the application model.
func NewAppModel(database *db.DB, cfg *config.Config, run *runner.Runner, upd *updater.Updater, version string) *AppModel {
	if cfg.Theme != "" {
		SetTheme(cfg.Theme)
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(ColorPrimary)

	m := &AppModel{
		database: database,
		cfg:      cfg,
		runner:   run,
		updater:  upd,
		version:  version,
		spinner:  s,
	}

	// First run: no users yet, registration required before login
	if n, err := database.CountUsers(); err == nil && n == 0 {
		m.currentView = ViewRegister
	} else {
		m.currentView = ViewLogin
	}
	m.authForm = m.newAuthForm()

	return m
}

// Init subscribes to runner output and kicks off the release check.
func (m *AppModel) Init() tea.Cmd {
	m.lineCh = m.runner.Subscribe()
	return tea.Batch(
		m.spinner.Tick,
		m.authForm.Init(),
		m.waitForLine(),
		m.checkRelease(),
	)
}

// Cleanup unsubscribes from runner output.
func (m *AppModel) Cleanup() {
	if m.lineCh != nil {
		m.runner.Unsubscribe(m.lineCh)
		m.lineCh = nil
	}
}

// Update handles messages.
func (m *AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.initViewport()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case lineMsg:
		m.lines = append(m.lines, msg.line)
		m.updateViewport()
		return m, m.waitForLine()

	case startedMsg:
		if msg.err != nil {
			GetLogger().Error("start failed: %v", msg.err)
		}
		return m, nil

	case updateFinishedMsg:
		m.updating = false
		if msg.err == nil {
			m.updateApplied = true
		} else {
			GetLogger().Error("update failed: %v", msg.err)
		}
		return m, nil

	case relaunchMsg:
		if msg.err != nil {
			GetLogger().Error("relaunch failed: %v", msg.err)
			return m, nil
		}
		return m, tea.Quit

	case releaseCheckMsg:
		if msg.release != nil && updater.IsNewerVersion(m.version, msg.release.Version) {
			m.latestRelease = msg.release
		}
		return m, nil
	}

	switch m.currentView {
	case ViewLogin, ViewRegister:
		return m.updateAuth(msg)
	case ViewChangePassword:
		return m.updateChangePassword(msg)
	case ViewQuitConfirm:
		return m.updateQuitConfirm(msg)
	default:
		return m.updateDashboard(msg)
	}
}

// View renders the active screen.
func (m *AppModel) View() string {
	switch m.currentView {
	case ViewLogin, ViewRegister:
		return m.viewAuth()
	case ViewChangePassword:
		return m.viewChangePassword()
	case ViewQuitConfirm:
		return m.viewQuitConfirm()
	default:
		return m.viewDashboard()
	}
}

// waitForLine blocks on the runner's line channel.
func (m *AppModel) waitForLine() tea.Cmd {
	return func() tea.Msg {
		if m.lineCh == nil {
			return nil
		}
		line, ok := <-m.lineCh
		if !ok {
			return nil
		}
		return lineMsg{line: line}
	}
}

// checkRelease queries GitHub for a newer release in the background.
func (m *AppModel) checkRelease() tea.Cmd {
	repo := m.cfg.ReleaseRepo
	return func() tea.Msg {
		return releaseCheckMsg{release: updater.FetchLatestRelease(context.Background(), repo)}
	}
}

// startRun launches the automation in the background.
func (m *AppModel) startRun() tea.Cmd {
	email := m.userEmail
	return func() tea.Msg {
		return startedMsg{err: m.runner.Start(context.Background(), email)}
	}
}

// runUpdate applies the self-update, streaming its progress into the log.
func (m *AppModel) runUpdate() tea.Cmd {
	return func() tea.Msg {
		err := m.updater.Update(context.Background(), m.runner.Emit)
		if err != nil {
			m.runner.Emit(db.KindError, "Update failed: "+err.Error())
		}
		return updateFinishedMsg{err: err}
	}
}

// relaunch starts the restart script and quits.
func (m *AppModel) relaunch() tea.Cmd {
	return func() tea.Msg {
		return relaunchMsg{err: m.updater.Relaunch(m.runner.Emit)}
	}
}
