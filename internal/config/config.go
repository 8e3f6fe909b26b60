// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults for a stock installation.
const (
	DefaultRepoURL     = "https://github.com/Mher0919/Ideal-Choice-Home-Health.git"
	DefaultReleaseRepo = "Mher0919/Ideal-Choice-Home-Health"
	DefaultGracePeriod = 5 * time.Second
)

// Config holds application configuration.
type Config struct {
	// ScriptCommand is the automation program to run. ScriptArgs are its
	// arguments; relative paths in args are resolved against AppDir.
	ScriptCommand string   `yaml:"script_command"`
	ScriptArgs    []string `yaml:"script_args"`

	// AppDir is the installation directory updates are applied to.
	// Empty means the directory containing the running executable.
	AppDir string `yaml:"app_dir"`

	// RepoURL is the git repository the self-update clones or pulls.
	RepoURL string `yaml:"repo_url"`

	// ReleaseRepo is the GitHub owner/repo queried for release tags.
	ReleaseRepo string `yaml:"release_repo"`

	// DatabasePath overrides the default database location.
	DatabasePath string `yaml:"database_path"`

	// Theme selects the UI color theme.
	Theme string `yaml:"theme"`

	// StopGrace is how long Stop waits after SIGTERM before SIGKILL.
	StopGrace time.Duration `yaml:"stop_grace"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		ScriptCommand: "npx",
		ScriptArgs:    []string{"ts-node", filepath.Join("src", "main.ts")},
		RepoURL:       DefaultRepoURL,
		ReleaseRepo:   DefaultReleaseRepo,
		Theme:         "onedark",
		StopGrace:     DefaultGracePeriod,
	}
}

// configPath returns the path to the config file.
func configPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		homeDir, _ := os.UserHomeDir()
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "launchpad", "config.yaml")
}

// ConfigPath returns the path where the config file is located.
func ConfigPath() string {
	return configPath()
}

// Load reads the configuration from the config file.
// Falls back to defaults if the file doesn't exist.
func Load() (*Config, error) {
	return LoadFrom(configPath())
}

// LoadFrom reads the configuration from an explicit path.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.AppDir = expandPath(cfg.AppDir)
	cfg.DatabasePath = expandPath(cfg.DatabasePath)

	// Ensure reasonable defaults for fields left empty in the file
	if cfg.ScriptCommand == "" {
		cfg.ScriptCommand = "npx"
		cfg.ScriptArgs = []string{"ts-node", filepath.Join("src", "main.ts")}
	}
	if cfg.RepoURL == "" {
		cfg.RepoURL = DefaultRepoURL
	}
	if cfg.ReleaseRepo == "" {
		cfg.ReleaseRepo = DefaultReleaseRepo
	}
	if cfg.StopGrace <= 0 {
		cfg.StopGrace = DefaultGracePeriod
	}

	return cfg, nil
}

// Save writes the configuration to the config file.
func Save(cfg *Config) error {
	path := configPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// ResolveAppDir returns the installation directory: the configured AppDir,
// or the directory containing the running executable.
func (c *Config) ResolveAppDir() string {
	if c.AppDir != "" {
		return c.AppDir
	}
	exe, err := os.Executable()
	if err != nil {
		cwd, _ := os.Getwd()
		return cwd
	}
	return filepath.Dir(exe)
}

// ScriptArgv returns the full argv for the automation command, with
// relative paths in args resolved against the app directory.
func (c *Config) ScriptArgv() []string {
	appDir := c.ResolveAppDir()
	argv := make([]string, 0, len(c.ScriptArgs)+1)
	argv = append(argv, c.ScriptCommand)
	for _, a := range c.ScriptArgs {
		if looksLikePath(a) && !filepath.IsAbs(a) {
			a = filepath.Join(appDir, a)
		}
		argv = append(argv, a)
	}
	return argv
}

// looksLikePath reports whether an argument contains a path separator.
// Bare flags and subcommands are passed through untouched.
func looksLikePath(s string) bool {
	return filepath.Base(s) != s
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[1:])
	}
	return path
}
