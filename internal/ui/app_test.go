package ui

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mher0919/launchpad/internal/config"
	"github.com/mher0919/launchpad/internal/db"
	"github.com/mher0919/launchpad/internal/runner"
	"github.com/mher0919/launchpad/internal/updater"
)

func newTestModel(t *testing.T) (*AppModel, *db.DB) {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	run := runner.New(database, []string{"true"}, t.TempDir(), time.Second)
	upd := updater.New(t.TempDir(), cfg.RepoURL)
	return NewAppModel(database, cfg, run, upd, "v1.0.0"), database
}

func TestFirstRunRequiresRegistration(t *testing.T) {
	m, _ := newTestModel(t)
	if m.currentView != ViewRegister {
		t.Errorf("expected register view on empty store, got %v", m.currentView)
	}
}

func TestExistingUsersGetLoginView(t *testing.T) {
	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()
	if _, err := database.RegisterUser("a@example.com", "secret1"); err != nil {
		t.Fatalf("failed to register user: %v", err)
	}

	cfg := config.DefaultConfig()
	run := runner.New(database, []string{"true"}, t.TempDir(), time.Second)
	upd := updater.New(t.TempDir(), cfg.RepoURL)
	m := NewAppModel(database, cfg, run, upd, "v1.0.0")

	if m.currentView != ViewLogin {
		t.Errorf("expected login view, got %v", m.currentView)
	}
}

func TestRenderLine(t *testing.T) {
	line := runner.Line{
		Kind: db.KindError,
		Text: "Error: something broke",
		Time: time.Date(2025, 1, 2, 15, 4, 5, 0, time.UTC),
	}

	out := renderLine(line)
	if !strings.Contains(out, "Error: something broke") {
		t.Errorf("rendered line missing text: %q", out)
	}
	if !strings.Contains(out, "15:04:05") {
		t.Errorf("rendered line missing timestamp: %q", out)
	}
}

func TestSetTheme(t *testing.T) {
	t.Cleanup(func() { SetTheme("onedark") })

	if err := SetTheme("nord"); err != nil {
		t.Fatalf("failed to set theme: %v", err)
	}
	if CurrentTheme().Name != "nord" {
		t.Errorf("expected nord theme, got %q", CurrentTheme().Name)
	}

	if err := SetTheme("no-such-theme"); err == nil {
		t.Error("expected error for unknown theme")
	}
	// Failed switch keeps the previous theme
	if CurrentTheme().Name != "nord" {
		t.Errorf("theme changed on failed switch: %q", CurrentTheme().Name)
	}
}

func TestListThemes(t *testing.T) {
	names := ListThemes()
	if len(names) != len(BuiltinThemes) {
		t.Errorf("expected %d themes, got %d", len(BuiltinThemes), len(names))
	}
}

func TestIconFallback(t *testing.T) {
	want := IconDoneASCII
	if SupportsUnicode() {
		want = IconDoneUnicode
	}
	if got := IconDone(); got != want {
		t.Errorf("IconDone() = %q, want %q", got, want)
	}
	if got := Icon("x", "y"); got != "x" && got != "y" {
		t.Errorf("Icon returned neither variant: %q", got)
	}
}
