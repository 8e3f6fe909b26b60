// Package ui provides the terminal user interface.
package ui

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// unicodeSupported caches whether the terminal supports Unicode.
// Initialized once on first call to SupportsUnicode().
var (
	unicodeSupported     bool
	unicodeSupportedOnce sync.Once
)

// SupportsUnicode returns true if the terminal likely supports Unicode
// characters. It checks LANG, LC_ALL, and LC_CTYPE for UTF-8 indicators.
func SupportsUnicode() bool {
	unicodeSupportedOnce.Do(func() {
		for _, envVar := range []string{"LC_ALL", "LC_CTYPE", "LANG"} {
			val := strings.ToLower(os.Getenv(envVar))
			if strings.Contains(val, "utf-8") || strings.Contains(val, "utf8") {
				unicodeSupported = true
				return
			}
		}
	})
	return unicodeSupported
}

// Icon constants - Unicode and ASCII versions
const (
	// Unicode icons
	IconRunningUnicode = "▶"
	IconStoppedUnicode = "◦"
	IconDoneUnicode    = "✓"
	IconWarningUnicode = "⚠"

	// ASCII fallbacks
	IconRunningASCII = ">"
	IconStoppedASCII = "o"
	IconDoneASCII    = "*"
	IconWarningASCII = "!"
)

// Icon returns the appropriate icon based on terminal Unicode support.
func Icon(unicodeIcon, asciiIcon string) string {
	if SupportsUnicode() {
		return unicodeIcon
	}
	return asciiIcon
}

// IconRunning returns the running status icon.
func IconRunning() string { return Icon(IconRunningUnicode, IconRunningASCII) }

// IconStopped returns the stopped status icon.
func IconStopped() string { return Icon(IconStoppedUnicode, IconStoppedASCII) }

// IconDone returns the done icon.
func IconDone() string { return Icon(IconDoneUnicode, IconDoneASCII) }

// IconWarning returns the warning icon.
func IconWarning() string { return Icon(IconWarningUnicode, IconWarningASCII) }

// Theme defines all colors used in the UI.
type Theme struct {
	Name string

	Primary   string // main accent (header, borders)
	Secondary string // secondary accent (system log lines)
	Muted     string // dimmed text, timestamps

	Success string // success lines, done state
	Warning string // warnings, update notices
	Error   string // error lines, stopped state
}

// BuiltinThemes contains all built-in themes.
var BuiltinThemes = map[string]Theme{
	"onedark": OneDarkTheme,
	"nord":    NordTheme,
}

// OneDarkTheme is inspired by Atom's One Dark theme - subtle and easy on the eyes.
var OneDarkTheme = Theme{
	Name:      "onedark",
	Primary:   "#61AFEF",
	Secondary: "#56B6C2",
	Muted:     "#5C6370",
	Success:   "#98C379",
	Warning:   "#E5C07B",
	Error:     "#E06C75",
}

// NordTheme uses the Nord palette.
var NordTheme = Theme{
	Name:      "nord",
	Primary:   "#88C0D0",
	Secondary: "#81A1C1",
	Muted:     "#4C566A",
	Success:   "#A3BE8C",
	Warning:   "#EBCB8B",
	Error:     "#BF616A",
}

var currentTheme = OneDarkTheme

// Color variables, refreshed on theme change.
var (
	ColorPrimary   = lipgloss.Color(currentTheme.Primary)
	ColorSecondary = lipgloss.Color(currentTheme.Secondary)
	ColorMuted     = lipgloss.Color(currentTheme.Muted)
	ColorSuccess   = lipgloss.Color(currentTheme.Success)
	ColorWarning   = lipgloss.Color(currentTheme.Warning)
	ColorError     = lipgloss.Color(currentTheme.Error)
)

// Text styles.
var (
	Dim     = lipgloss.NewStyle().Foreground(ColorMuted)
	Bold    = lipgloss.NewStyle().Bold(true)
	Title   = lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
	Success = lipgloss.NewStyle().Foreground(ColorSuccess)
	Warning = lipgloss.NewStyle().Foreground(ColorWarning)
	Error   = lipgloss.NewStyle().Foreground(ColorError)
	System  = lipgloss.NewStyle().Foreground(ColorSecondary)

	Box = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorMuted).
		Padding(0, 1)

	FocusedBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorPrimary).
			Padding(0, 1)

	HelpKey  = lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true)
	HelpDesc = lipgloss.NewStyle().Foreground(ColorMuted)
)

// CurrentTheme returns the current theme.
func CurrentTheme() Theme {
	return currentTheme
}

// SetTheme sets the current theme by name.
func SetTheme(name string) error {
	theme, ok := BuiltinThemes[name]
	if !ok {
		return fmt.Errorf("unknown theme: %s", name)
	}
	currentTheme = theme
	refreshStyles()
	return nil
}

// refreshStyles updates all lipgloss styles after a theme change.
func refreshStyles() {
	t := currentTheme

	ColorPrimary = lipgloss.Color(t.Primary)
	ColorSecondary = lipgloss.Color(t.Secondary)
	ColorMuted = lipgloss.Color(t.Muted)
	ColorSuccess = lipgloss.Color(t.Success)
	ColorWarning = lipgloss.Color(t.Warning)
	ColorError = lipgloss.Color(t.Error)

	Dim = lipgloss.NewStyle().Foreground(ColorMuted)
	Title = lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
	Success = lipgloss.NewStyle().Foreground(ColorSuccess)
	Warning = lipgloss.NewStyle().Foreground(ColorWarning)
	Error = lipgloss.NewStyle().Foreground(ColorError)
	System = lipgloss.NewStyle().Foreground(ColorSecondary)

	Box = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorMuted).
		Padding(0, 1)
	FocusedBox = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorPrimary).
		Padding(0, 1)
	HelpKey = lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true)
	HelpDesc = lipgloss.NewStyle().Foreground(ColorMuted)
}

// ListThemes returns the names of all built-in themes.
func ListThemes() []string {
	names := make([]string, 0, len(BuiltinThemes))
	for name := range BuiltinThemes {
		names = append(names, name)
	}
	return names
}
