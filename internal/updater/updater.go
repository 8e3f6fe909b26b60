// Package updater replaces the installation from the remote repository.
package updater

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/mher0919/launchpad/internal/db"
)

// ErrGitMissing is returned when git is not on PATH. Nothing is modified.
var ErrGitMissing = errors.New("git is not installed")

// Sink receives progress and git output lines during an update.
type Sink func(kind, text string)

// Updater applies updates to the installation directory.
type Updater struct {
	AppDir  string
	RepoURL string
	// ExePath is the running executable, never overwritten by an update.
	ExePath string

	logger *log.Logger
}

// New creates an updater for the given installation directory.
func New(appDir, repoURL string) *Updater {
	exe, _ := os.Executable()
	return &Updater{
		AppDir:  appDir,
		RepoURL: repoURL,
		ExePath: exe,
		logger:  log.NewWithOptions(io.Discard, log.Options{Prefix: "updater"}),
	}
}

// NewWithLogging creates an updater that logs to w.
func NewWithLogging(appDir, repoURL string, w io.Writer) *Updater {
	u := New(appDir, repoURL)
	u.logger = log.NewWithOptions(w, log.Options{Prefix: "updater"})
	return u
}

// Update pulls the latest files from the remote repository over the
// installation. If the app directory is itself a git checkout, a plain
// pull updates it in place. Otherwise the repository is cloned to a
// temporary sibling directory and copied over the installation; the clone
// completes fully before any file is touched, so a failed clone leaves
// the installation untouched.
func (u *Updater) Update(ctx context.Context, sink Sink) error {
	if _, err := exec.LookPath("git"); err != nil {
		return ErrGitMissing
	}

	sink(db.KindSystem, "Checking for updates...")

	gitDir := filepath.Join(u.AppDir, ".git")
	if _, err := os.Stat(gitDir); err == nil {
		u.logger.Info("Updating via git pull", "dir", u.AppDir)
		if err := u.streamGit(ctx, sink, "-C", u.AppDir, "pull"); err != nil {
			return fmt.Errorf("git pull: %w", err)
		}
		sink(db.KindSuccess, "App updated successfully!")
		return nil
	}

	tmpDir := u.AppDir + "_tmp_update"
	// Leftovers from an interrupted update would corrupt the clone
	if err := os.RemoveAll(tmpDir); err != nil {
		return fmt.Errorf("clean temp dir: %w", err)
	}

	u.logger.Info("Updating via clone", "repo", u.RepoURL, "tmp", tmpDir)
	if err := u.streamGit(ctx, sink, "clone", u.RepoURL, tmpDir); err != nil {
		os.RemoveAll(tmpDir)
		return fmt.Errorf("git clone: %w", err)
	}

	if err := u.copyTree(tmpDir, u.AppDir); err != nil {
		return fmt.Errorf("copy update: %w", err)
	}

	if err := os.RemoveAll(tmpDir); err != nil {
		return fmt.Errorf("remove temp dir: %w", err)
	}

	sink(db.KindSuccess, "App updated successfully!")
	return nil
}

// streamGit runs git with the given args, feeding each combined output
// line to the sink.
func (u *Updater) streamGit(ctx context.Context, sink Sink, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)

	pr, pw, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("create pipe: %w", err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return err
	}
	pw.Close()

	scanner := bufio.NewScanner(pr)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		sink(db.KindInfo, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		sink(db.KindError, fmt.Sprintf("Error reading git output: %v", err))
	}
	pr.Close()

	return cmd.Wait()
}

// copyTree copies every top-level entry of src into dst. Directories
// replace their destination wholesale; files are copied with their mode.
// The running executable is skipped wherever it appears.
func (u *Updater) copyTree(src, dst string) error {
	entries, err := os.ReadDir(src)
	if err != nil {
		return fmt.Errorf("read %s: %w", src, err)
	}

	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())

		if entry.IsDir() {
			if u.containsExe(dstPath) {
				// Merge instead of replace so the executable survives
				if err := u.copyDirMerge(srcPath, dstPath); err != nil {
					return err
				}
				continue
			}
			if err := os.RemoveAll(dstPath); err != nil {
				return fmt.Errorf("remove %s: %w", dstPath, err)
			}
			if err := copyDir(srcPath, dstPath); err != nil {
				return err
			}
			continue
		}

		if u.isExePath(dstPath) {
			continue
		}
		if err := copyFile(srcPath, dstPath); err != nil {
			return err
		}
	}
	return nil
}

// copyDirMerge copies src into an existing dst without removing files,
// skipping the running executable.
func (u *Updater) copyDirMerge(src, dst string) error {
	entries, err := os.ReadDir(src)
	if err != nil {
		return fmt.Errorf("read %s: %w", src, err)
	}
	if err := os.MkdirAll(dst, 0755); err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}

	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())

		if entry.IsDir() {
			if err := u.copyDirMerge(srcPath, dstPath); err != nil {
				return err
			}
			continue
		}
		if u.isExePath(dstPath) {
			continue
		}
		if err := copyFile(srcPath, dstPath); err != nil {
			return err
		}
	}
	return nil
}

// isExePath reports whether path names the running executable.
func (u *Updater) isExePath(path string) bool {
	if u.ExePath == "" {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	exe, err := filepath.Abs(u.ExePath)
	if err != nil {
		return false
	}
	return abs == exe
}

// containsExe reports whether the running executable lives under dir.
func (u *Updater) containsExe(dir string) bool {
	if u.ExePath == "" {
		return false
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	exe, err := filepath.Abs(u.ExePath)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(abs, exe)
	if err != nil {
		return false
	}
	return rel != ".." && !filepath.IsAbs(rel) && !hasDotDotPrefix(rel)
}

func hasDotDotPrefix(rel string) bool {
	return rel == ".." || len(rel) > 2 && rel[:3] == ".."+string(filepath.Separator)
}

func copyDir(src, dst string) error {
	entries, err := os.ReadDir(src)
	if err != nil {
		return fmt.Errorf("read %s: %w", src, err)
	}
	if err := os.MkdirAll(dst, 0755); err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}

	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())
		if entry.IsDir() {
			if err := copyDir(srcPath, dstPath); err != nil {
				return err
			}
			continue
		}
		if err := copyFile(srcPath, dstPath); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy %s: %w", dst, err)
	}
	return out.Close()
}

// relaunchScript is the restart helper written next to the installation.
const relaunchScript = `#!/bin/sh
sleep 2
exec %q
`

// WriteRelaunchScript writes a shell script that waits briefly and
// re-executes the binary. Returns the script path.
func (u *Updater) WriteRelaunchScript() (string, error) {
	if u.ExePath == "" {
		return "", errors.New("unknown executable path")
	}

	path := filepath.Join(u.AppDir, "update-restart.sh")
	content := fmt.Sprintf(relaunchScript, u.ExePath)
	if err := os.WriteFile(path, []byte(content), 0755); err != nil {
		return "", fmt.Errorf("write relaunch script: %w", err)
	}
	return path, nil
}

// Relaunch starts the relaunch script detached from this process. The
// caller is expected to exit immediately afterwards; the script re-execs
// the (freshly updated) binary once this process is gone.
func (u *Updater) Relaunch(sink Sink) error {
	path, err := u.WriteRelaunchScript()
	if err != nil {
		return err
	}

	cmd := exec.Command("sh", path)
	// Detach so the script survives this process exiting
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start relaunch script: %w", err)
	}

	sink(db.KindSystem, "Restarting app to apply updates...")
	u.logger.Info("Relaunching", "script", path)
	return nil
}
