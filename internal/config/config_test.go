package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromMissingFile(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing file should fall back to defaults: %v", err)
	}
	if cfg.ScriptCommand != "npx" {
		t.Errorf("expected default script command npx, got %q", cfg.ScriptCommand)
	}
	if cfg.RepoURL != DefaultRepoURL {
		t.Errorf("expected default repo URL, got %q", cfg.RepoURL)
	}
	if cfg.StopGrace != DefaultGracePeriod {
		t.Errorf("expected default grace period, got %v", cfg.StopGrace)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `script_command: python3
script_args: ["bot.py", "--verbose"]
app_dir: /opt/launchpad
repo_url: https://example.com/repo.git
stop_grace: 10s
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.ScriptCommand != "python3" {
		t.Errorf("expected python3, got %q", cfg.ScriptCommand)
	}
	if len(cfg.ScriptArgs) != 2 || cfg.ScriptArgs[1] != "--verbose" {
		t.Errorf("unexpected script args: %v", cfg.ScriptArgs)
	}
	if cfg.AppDir != "/opt/launchpad" {
		t.Errorf("unexpected app dir: %q", cfg.AppDir)
	}
	if cfg.StopGrace != 10*time.Second {
		t.Errorf("expected 10s grace, got %v", cfg.StopGrace)
	}
}

func TestLoadFromPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("theme: nord\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Theme != "nord" {
		t.Errorf("expected theme nord, got %q", cfg.Theme)
	}
	// Empty fields fall back to defaults
	if cfg.ScriptCommand != "npx" {
		t.Errorf("expected default script command, got %q", cfg.ScriptCommand)
	}
	if cfg.ReleaseRepo != DefaultReleaseRepo {
		t.Errorf("expected default release repo, got %q", cfg.ReleaseRepo)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg := DefaultConfig()
	cfg.Theme = "nord"
	cfg.StopGrace = 9 * time.Second

	if err := Save(cfg); err != nil {
		t.Fatalf("failed to save config: %v", err)
	}
	if _, err := os.Stat(ConfigPath()); err != nil {
		t.Fatalf("config file not written at ConfigPath: %v", err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("failed to load saved config: %v", err)
	}
	if loaded.Theme != "nord" {
		t.Errorf("expected theme nord, got %q", loaded.Theme)
	}
	if loaded.StopGrace != 9*time.Second {
		t.Errorf("expected 9s grace, got %v", loaded.StopGrace)
	}
	if loaded.RepoURL != cfg.RepoURL {
		t.Errorf("repo URL changed on round trip: %q", loaded.RepoURL)
	}
}

func TestScriptArgv(t *testing.T) {
	cfg := &Config{
		ScriptCommand: "npx",
		ScriptArgs:    []string{"ts-node", filepath.Join("src", "main.ts")},
		AppDir:        "/opt/app",
	}

	argv := cfg.ScriptArgv()
	if len(argv) != 3 {
		t.Fatalf("expected 3 argv entries, got %d", len(argv))
	}
	if argv[0] != "npx" {
		t.Errorf("expected npx, got %q", argv[0])
	}
	// Bare subcommand is untouched, relative path is resolved
	if argv[1] != "ts-node" {
		t.Errorf("expected ts-node untouched, got %q", argv[1])
	}
	if argv[2] != filepath.Join("/opt/app", "src", "main.ts") {
		t.Errorf("expected resolved script path, got %q", argv[2])
	}
}

func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()
	got := expandPath("~/scripts")
	if got != filepath.Join(home, "scripts") {
		t.Errorf("expected home expansion, got %q", got)
	}
	if expandPath("/abs/path") != "/abs/path" {
		t.Error("absolute path should be untouched")
	}
	if expandPath("") != "" {
		t.Error("empty path should be untouched")
	}
}
