// launchpad is the terminal launcher for the automation script.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mher0919/launchpad/internal/config"
	"github.com/mher0919/launchpad/internal/db"
	"github.com/mher0919/launchpad/internal/runner"
	"github.com/mher0919/launchpad/internal/ui"
	"github.com/mher0919/launchpad/internal/updater"
)

var (
	version = "dev"

	// Styles for CLI output
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	systemStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#56B6C2"))
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "launchpad",
		Short:   "Launcher for the automation script",
		Long:    "A terminal launcher that authenticates a local user, runs the automation script, and keeps the installation up to date.",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI()
		},
	}
	rootCmd.SetVersionTemplate(`{{.Version}}
`)

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(updateCmd())
	rootCmd.AddCommand(runsCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}

// openAll loads config and opens the database.
func openAll() (*config.Config, *db.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	dbPath := cfg.DatabasePath
	if dbPath == "" {
		dbPath = db.DefaultPath()
	}
	database, err := db.Open(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	return cfg, database, nil
}

// runTUI starts the interactive terminal interface.
func runTUI() error {
	cfg, database, err := openAll()
	if err != nil {
		return err
	}
	defer database.Close()
	defer ui.CloseLogger()

	appDir := cfg.ResolveAppDir()
	run := runner.New(database, cfg.ScriptArgv(), appDir, cfg.StopGrace)
	upd := updater.New(appDir, cfg.RepoURL)

	model := ui.NewAppModel(database, cfg, run, upd, version)
	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run TUI: %w", err)
	}
	return nil
}

// runCmd runs the automation once without the TUI.
func runCmd() *cobra.Command {
	var noAuth bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the automation headless, streaming output to stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !noAuth {
				return fmt.Errorf("headless runs skip login; pass --no-auth to confirm")
			}

			cfg, database, err := openAll()
			if err != nil {
				return err
			}
			defer database.Close()

			run := runner.NewWithLogging(database, cfg.ScriptArgv(), cfg.ResolveAppDir(), cfg.StopGrace, os.Stderr)
			ch := run.Subscribe()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := run.Start(ctx, ""); err != nil {
				run.Unsubscribe(ch)
				return err
			}

			drainLines(run, ch, os.Stdout)

			latest, err := database.ListRuns(1)
			if err == nil && len(latest) == 1 && latest[0].Status == db.RunStatusFailed {
				return fmt.Errorf("automation failed: %s", latest[0].ExitMessage)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noAuth, "no-auth", false, "Run without authenticating (for supervised environments)")
	return cmd
}

// drainLines prints subscribed lines until the run completes, then flushes
// whatever the channel still buffers so the tail of the output is not lost.
func drainLines(run *runner.Runner, ch chan runner.Line, out io.Writer) {
	printed := make(chan struct{})
	go func() {
		for line := range ch {
			fmt.Fprintln(out, renderCLILine(line))
		}
		close(printed)
	}()

	run.Wait()
	run.Unsubscribe(ch)
	<-printed
}

func renderCLILine(line runner.Line) string {
	ts := dimStyle.Render(line.Time.Format("15:04:05"))
	switch line.Kind {
	case db.KindError:
		return ts + " " + errorStyle.Render(line.Text)
	case db.KindSuccess:
		return ts + " " + successStyle.Render(line.Text)
	case db.KindSystem:
		return ts + " " + systemStyle.Render(line.Text)
	default:
		return ts + " " + line.Text
	}
}

// userCmd manages the credential store.
func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage launcher users",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <email>",
		Short: "Register a new user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, database, err := openAll()
			if err != nil {
				return err
			}
			defer database.Close()

			password, err := promptPassword("Password: ")
			if err != nil {
				return err
			}
			confirm, err := promptPassword("Confirm password: ")
			if err != nil {
				return err
			}
			if password != confirm {
				return db.ErrPasswordMismatch
			}

			user, err := database.RegisterUser(args[0], password)
			if err != nil {
				return err
			}
			fmt.Println(successStyle.Render("Registered " + user.Email))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List registered users",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, database, err := openAll()
			if err != nil {
				return err
			}
			defer database.Close()

			users, err := database.ListUsers()
			if err != nil {
				return err
			}
			if len(users) == 0 {
				fmt.Println(dimStyle.Render("No users registered"))
				return nil
			}
			for _, u := range users {
				fmt.Printf("%s  %s\n", u.Email, dimStyle.Render(u.CreatedAt.Format("2006-01-02")))
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <email>",
		Short: "Remove a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, database, err := openAll()
			if err != nil {
				return err
			}
			defer database.Close()

			if err := database.DeleteUser(args[0]); err != nil {
				return err
			}
			fmt.Println(successStyle.Render("Removed " + args[0]))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "passwd <email>",
		Short: "Change a user's password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, database, err := openAll()
			if err != nil {
				return err
			}
			defer database.Close()

			current, err := promptPassword("Current password: ")
			if err != nil {
				return err
			}
			newPw, err := promptPassword("New password: ")
			if err != nil {
				return err
			}
			confirm, err := promptPassword("Confirm new password: ")
			if err != nil {
				return err
			}

			if err := database.ChangePassword(args[0], current, newPw, confirm); err != nil {
				return err
			}
			fmt.Println(successStyle.Render("Password changed"))
			return nil
		},
	})

	return cmd
}

// promptPassword reads a password without echoing when stdin is a terminal.
func promptPassword(prompt string) (string, error) {
	fmt.Print(prompt)

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		data, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(data), nil
	}

	// Piped input (scripts, tests)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// updateCmd applies the self-update from the terminal.
func updateCmd() *cobra.Command {
	var relaunch bool

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update the installation from the remote repository",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, database, err := openAll()
			if err != nil {
				return err
			}
			defer database.Close()

			upd := updater.NewWithLogging(cfg.ResolveAppDir(), cfg.RepoURL, os.Stderr)

			sink := func(kind, text string) {
				switch kind {
				case db.KindError:
					fmt.Println(errorStyle.Render(text))
				case db.KindSuccess:
					fmt.Println(successStyle.Render(text))
				case db.KindSystem:
					fmt.Println(systemStyle.Render(text))
				default:
					fmt.Println(text)
				}
			}

			if err := upd.Update(cmd.Context(), sink); err != nil {
				return err
			}

			if relaunch {
				if err := upd.Relaunch(sink); err != nil {
					return err
				}
				os.Exit(0)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&relaunch, "relaunch", false, "Restart the binary after updating")
	return cmd
}

// runsCmd inspects past automation runs.
func runsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent automation runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, database, err := openAll()
			if err != nil {
				return err
			}
			defer database.Close()

			runs, err := database.ListRuns(20)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println(dimStyle.Render("No runs yet"))
				return nil
			}
			for _, r := range runs {
				status := r.Status
				switch r.Status {
				case db.RunStatusDone:
					status = successStyle.Render(r.Status)
				case db.RunStatusFailed:
					status = errorStyle.Render(r.Status)
				}
				fmt.Printf("%s  %s  %s  %s\n",
					r.ID[:8], r.StartedAt.Format("2006-01-02 15:04"), status, dimStyle.Render(r.Command))
			}
			return nil
		},
	}

	var follow bool
	showCmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the captured output of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, database, err := openAll()
			if err != nil {
				return err
			}
			defer database.Close()

			// Accept the short prefix printed by `runs`
			runs, err := database.ListRuns(100)
			if err != nil {
				return err
			}
			var runID string
			for _, r := range runs {
				if strings.HasPrefix(r.ID, args[0]) {
					runID = r.ID
					break
				}
			}
			if runID == "" {
				return fmt.Errorf("run %s not found", args[0])
			}

			lines, err := database.GetRunLines(runID, 10000)
			if err != nil {
				return err
			}
			var lastID int64
			for _, l := range lines {
				fmt.Println(renderRunLine(l))
				lastID = l.ID
			}
			if !follow {
				return nil
			}
			return followRun(cmd.Context(), database, runID, lastID)
		},
	}
	showCmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new output while the run is in progress")
	cmd.AddCommand(showCmd)

	return cmd
}

// followRun polls for new output lines until the run leaves the running
// state, printing each line once.
func followRun(ctx context.Context, database *db.DB, runID string, lastID int64) error {
	for {
		run, err := database.GetRun(runID)
		if err != nil {
			return err
		}

		lines, err := database.GetRunLinesSince(runID, lastID)
		if err != nil {
			return err
		}
		for _, l := range lines {
			fmt.Println(renderRunLine(l))
			lastID = l.ID
		}

		// Status was read before the lines, so a finished run has had its
		// final output printed by the time we see the terminal state.
		if run == nil || run.Status != db.RunStatusRunning {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func renderRunLine(l *db.RunLine) string {
	return renderCLILine(runner.Line{Kind: l.Kind, Text: l.Content, Time: l.CreatedAt})
}

// configCmd inspects and writes the configuration file.
func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the configuration file location",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(config.ConfigPath())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the effective configuration to disk for editing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := config.Save(cfg); err != nil {
				return err
			}
			fmt.Println(successStyle.Render("Wrote " + config.ConfigPath()))
			return nil
		},
	})

	return cmd
}

// versionCmd prints the version and checks for a newer release.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version and check for updates",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("launchpad " + version)

			cfg, err := config.Load()
			if err != nil {
				return
			}
			release := updater.FetchLatestRelease(cmd.Context(), cfg.ReleaseRepo)
			if release != nil && updater.IsNewerVersion(version, release.Version) {
				fmt.Println(dimStyle.Render(fmt.Sprintf("Update available: %s (%s)", release.Version, release.URL)))
			}
		},
	}
}
