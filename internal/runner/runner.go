// Package runner supervises the external automation process.
package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mher0919/launchpad/internal/db"
)

// ErrAlreadyRunning is returned by Start while a run is in progress.
var ErrAlreadyRunning = errors.New("automation is already running")

// State describes the supervisor's lifecycle.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateStopping
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	default:
		return "Stopped"
	}
}

// Line is one captured or synthesized output line.
type Line struct {
	Seq  int64
	Kind string // db.KindInfo, KindSuccess, KindError, KindSystem
	Text string
	Time time.Time
}

// maxLineSize is the longest output line delivered whole; longer lines
// are truncated to this size.
const maxLineSize = 1024 * 1024

// Runner manages the automation subprocess.
type Runner struct {
	database *db.DB
	argv     []string
	dir      string
	grace    time.Duration
	logger   *log.Logger

	mu      sync.Mutex
	state   State
	cmd     *exec.Cmd
	runID   string
	seq     int64
	stopped bool // set by Stop so the exit line reports "stopped" not "failed"
	done    chan struct{}

	subsMu sync.RWMutex
	subs   []chan Line
}

// New creates a runner that keeps its own logging quiet (for TUI embedding).
func New(database *db.DB, argv []string, dir string, grace time.Duration) *Runner {
	return &Runner{
		database: database,
		argv:     argv,
		dir:      dir,
		grace:    grace,
		logger:   log.NewWithOptions(io.Discard, log.Options{Prefix: "runner"}),
	}
}

// NewWithLogging creates a runner that logs to w (for headless mode).
func NewWithLogging(database *db.DB, argv []string, dir string, grace time.Duration, w io.Writer) *Runner {
	r := New(database, argv, dir, grace)
	r.logger = log.NewWithOptions(w, log.Options{Prefix: "runner"})
	return r
}

// State returns the current lifecycle state.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// RunID returns the ID of the current (or most recent) run.
func (r *Runner) RunID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runID
}

// Subscribe returns a channel that receives every line from now on.
// Slow subscribers drop lines rather than block the output reader.
func (r *Runner) Subscribe() chan Line {
	ch := make(chan Line, 100)
	r.subsMu.Lock()
	r.subs = append(r.subs, ch)
	r.subsMu.Unlock()
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (r *Runner) Unsubscribe(ch chan Line) {
	r.subsMu.Lock()
	defer r.subsMu.Unlock()

	for i, sub := range r.subs {
		if sub == ch {
			r.subs = append(r.subs[:i], r.subs[i+1:]...)
			close(ch)
			break
		}
	}
}

func (r *Runner) broadcast(line Line) {
	r.subsMu.RLock()
	defer r.subsMu.RUnlock()

	for _, ch := range r.subs {
		select {
		case ch <- line:
		default:
			// Channel full, skip
		}
	}
}

// Classify maps an output line to a log kind by keyword, matching the
// conventions of the automation script: anything mentioning an error is
// an error, a finish notice is a success, everything else is info.
func Classify(text string) string {
	lower := strings.ToLower(text)
	if strings.Contains(lower, "error") {
		return db.KindError
	}
	if strings.Contains(lower, "finished") || strings.Contains(text, "✅") {
		return db.KindSuccess
	}
	return db.KindInfo
}

// Start launches the automation command. It returns once the process has
// started; output streams to subscribers in the background. The context
// cancels the run the same way Stop does.
func (r *Runner) Start(ctx context.Context, startedBy string) error {
	r.mu.Lock()
	if r.state != StateIdle {
		r.mu.Unlock()
		return ErrAlreadyRunning
	}

	command := strings.Join(r.argv, " ")
	run, err := r.database.CreateRun(command, startedBy)
	if err != nil {
		r.mu.Unlock()
		return fmt.Errorf("record run: %w", err)
	}

	cmd := exec.Command(r.argv[0], r.argv[1:]...)
	cmd.Dir = r.dir
	// Own process group so Stop can signal the whole tree
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	// Single pipe shared by stdout and stderr keeps lines in arrival order
	pr, pw, err := os.Pipe()
	if err != nil {
		r.mu.Unlock()
		r.database.FinishRun(run.ID, db.RunStatusFailed, err.Error())
		return fmt.Errorf("create pipe: %w", err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		r.mu.Unlock()
		r.database.FinishRun(run.ID, db.RunStatusFailed, err.Error())
		r.emitTo(run.ID, db.KindError, fmt.Sprintf("Failed to start: %v", err))
		return fmt.Errorf("start %s: %w", r.argv[0], err)
	}
	// The child holds its own copy of the write end
	pw.Close()

	r.state = StateRunning
	r.cmd = cmd
	r.runID = run.ID
	r.stopped = false
	r.done = make(chan struct{})
	done := r.done
	r.mu.Unlock()

	r.logger.Info("Automation started", "pid", cmd.Process.Pid, "command", command)
	r.emit(db.KindSystem, "Starting automation...")

	// Cancel on context close while the run is live
	go func() {
		select {
		case <-ctx.Done():
			r.Stop()
		case <-done:
		}
	}()

	go r.consume(pr, cmd, run.ID, done)
	return nil
}

// consume reads output lines until the pipe closes, then reaps the process
// and finalizes the run.
func (r *Runner) consume(pr *os.File, cmd *exec.Cmd, runID string, done chan struct{}) {
	r.streamLines(pr)
	pr.Close()

	waitErr := cmd.Wait()

	r.mu.Lock()
	stopped := r.stopped
	r.state = StateIdle
	r.cmd = nil
	r.mu.Unlock()

	switch {
	case stopped:
		r.database.FinishRun(runID, db.RunStatusStopped, "stopped by user")
		r.emit(db.KindSystem, "Automation stopped by user.")
		r.logger.Info("Automation stopped", "run", runID)
	case waitErr != nil:
		r.database.FinishRun(runID, db.RunStatusFailed, waitErr.Error())
		r.emit(db.KindError, fmt.Sprintf("Automation exited with error: %v", waitErr))
		r.logger.Error("Automation failed", "run", runID, "error", waitErr)
	default:
		r.database.FinishRun(runID, db.RunStatusDone, "exit status 0")
		r.emit(db.KindSuccess, "Automation finished!")
		r.logger.Info("Automation finished", "run", runID)
	}

	close(done)
}

// streamLines emits each output line with its classification. A line longer
// than maxLineSize is emitted truncated and its remainder discarded, so the
// stream keeps going instead of killing the child with a broken pipe. Read
// errors other than end-of-stream are reported as an error line.
func (r *Runner) streamLines(src io.Reader) {
	br := bufio.NewReaderSize(src, 64*1024)
	var line []byte
	discarding := false
	for {
		chunk, err := br.ReadSlice('\n')
		if discarding {
			if err == nil {
				discarding = false
			}
		} else {
			line = append(line, chunk...)
			if len(line) > maxLineSize {
				r.emitRaw(line[:maxLineSize])
				r.emit(db.KindSystem, fmt.Sprintf("Output line exceeded %d bytes and was truncated", maxLineSize))
				line = line[:0]
				discarding = err == bufio.ErrBufferFull
			} else if err == nil {
				r.emitRaw(line)
				line = line[:0]
			}
		}

		if err == nil || err == bufio.ErrBufferFull {
			continue
		}
		if len(line) > 0 && !discarding {
			r.emitRaw(line)
		}
		if err != io.EOF {
			r.emit(db.KindError, fmt.Sprintf("Error reading automation output: %v", err))
		}
		return
	}
}

func (r *Runner) emitRaw(raw []byte) {
	text := strings.TrimRight(string(raw), "\r\n")
	r.emit(Classify(text), text)
}

// Stop terminates the automation process tree. SIGTERM goes to the process
// group first; SIGKILL follows after the grace period if the process is
// still alive. Stop is a no-op when nothing is running.
func (r *Runner) Stop() error {
	r.mu.Lock()
	if r.state != StateRunning || r.cmd == nil || r.cmd.Process == nil {
		r.mu.Unlock()
		return nil
	}
	r.state = StateStopping
	r.stopped = true
	pgid := -r.cmd.Process.Pid
	grace := r.grace
	done := r.done
	r.mu.Unlock()

	if err := syscall.Kill(pgid, syscall.SIGTERM); err != nil {
		// Process group already gone, escalate immediately
		syscall.Kill(pgid, syscall.SIGKILL)
		return nil
	}

	go func() {
		select {
		case <-done:
			// Exited within the grace period
		case <-time.After(grace):
			// ESRCH from a dead process group is harmless
			syscall.Kill(pgid, syscall.SIGKILL)
		}
	}()

	return nil
}

// Wait blocks until the current run finishes. Returns immediately if idle.
func (r *Runner) Wait() {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	if done != nil {
		<-done
	}
}

// emit records a line for the current run and broadcasts it.
func (r *Runner) emit(kind, text string) {
	r.mu.Lock()
	runID := r.runID
	r.mu.Unlock()
	r.emitTo(runID, kind, text)
}

func (r *Runner) emitTo(runID, kind, text string) {
	if runID != "" {
		r.database.AppendRunLine(runID, kind, text)
	}

	r.mu.Lock()
	r.seq++
	seq := r.seq
	r.mu.Unlock()

	r.broadcast(Line{Seq: seq, Kind: kind, Text: text, Time: time.Now()})
}

// Emit publishes a system line from outside the supervisor (the updater
// streams its progress through the same log view).
func (r *Runner) Emit(kind, text string) {
	r.emitTo("", kind, text)
}
