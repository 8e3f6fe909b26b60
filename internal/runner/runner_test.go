package runner

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mher0919/launchpad/internal/db"
)

func openTestDB(t *testing.T) *db.DB {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func TestClassify(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Error: connection refused", db.KindError},
		{"TypeError: foo is not a function", db.KindError},
		{"an ERROR occurred", db.KindError},
		{"Finished processing 10 records", db.KindSuccess},
		{"✅ all done", db.KindSuccess},
		{"processing page 3", db.KindInfo},
		{"", db.KindInfo},
	}

	for _, tt := range tests {
		if got := Classify(tt.text); got != tt.want {
			t.Errorf("Classify(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

// collect drains lines until a line satisfies stop, or the timeout hits.
func collect(t *testing.T, ch chan Line, stop func(Line) bool) []Line {
	t.Helper()
	var lines []Line
	deadline := time.After(10 * time.Second)
	for {
		select {
		case line, ok := <-ch:
			if !ok {
				return lines
			}
			lines = append(lines, line)
			if stop(line) {
				return lines
			}
		case <-deadline:
			t.Fatalf("timed out waiting for lines, got %d so far", len(lines))
		}
	}
}

func TestRunStreamsClassifiedLines(t *testing.T) {
	database := openTestDB(t)
	argv := []string{"sh", "-c", `echo "processing page 1"; echo "Error: timeout" >&2; echo "Finished"`}
	r := New(database, argv, t.TempDir(), time.Second)

	ch := r.Subscribe()
	defer r.Unsubscribe(ch)

	if err := r.Start(context.Background(), "tester"); err != nil {
		t.Fatalf("failed to start: %v", err)
	}

	lines := collect(t, ch, func(l Line) bool {
		return l.Kind == db.KindSuccess && l.Text == "Automation finished!"
	})
	r.Wait()

	kinds := map[string]string{}
	for _, l := range lines {
		kinds[l.Text] = l.Kind
	}
	if kinds["processing page 1"] != db.KindInfo {
		t.Errorf("expected info line, got %q", kinds["processing page 1"])
	}
	if kinds["Error: timeout"] != db.KindError {
		t.Errorf("expected stderr error line, got %q", kinds["Error: timeout"])
	}
	if kinds["Finished"] != db.KindSuccess {
		t.Errorf("expected success line, got %q", kinds["Finished"])
	}

	// Lines were also persisted for the run
	stored, err := database.GetRunLines(r.RunID(), 100)
	if err != nil {
		t.Fatalf("failed to get run lines: %v", err)
	}
	if len(stored) < 4 {
		t.Errorf("expected at least 4 stored lines, got %d", len(stored))
	}

	run, err := database.GetRun(r.RunID())
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}
	if run.Status != db.RunStatusDone {
		t.Errorf("expected run status done, got %q", run.Status)
	}
	if run.StartedBy != "tester" {
		t.Errorf("expected started_by tester, got %q", run.StartedBy)
	}
}

func TestOversizedLineIsTruncatedNotFatal(t *testing.T) {
	database := openTestDB(t)
	// 2 MiB on a single line, then more output that must still come through
	script := `head -c 2097152 /dev/zero | tr '\0' x; echo; echo "after the big line"; echo "Finished"`
	r := New(database, []string{"sh", "-c", script}, t.TempDir(), time.Second)

	ch := r.Subscribe()
	defer r.Unsubscribe(ch)

	if err := r.Start(context.Background(), ""); err != nil {
		t.Fatalf("failed to start: %v", err)
	}

	lines := collect(t, ch, func(l Line) bool {
		return l.Kind == db.KindSuccess && l.Text == "Automation finished!"
	})
	r.Wait()

	var truncated, notice, after, finished bool
	for _, l := range lines {
		switch {
		case len(l.Text) == maxLineSize:
			truncated = true
		case l.Kind == db.KindSystem && strings.Contains(l.Text, "truncated"):
			notice = true
		case l.Text == "after the big line":
			after = true
		case l.Text == "Finished":
			finished = true
		}
	}
	if !truncated {
		t.Error("expected the oversized line delivered at the truncation limit")
	}
	if !notice {
		t.Error("expected a truncation notice line")
	}
	if !after {
		t.Error("expected output after the oversized line to come through")
	}
	if !finished {
		t.Error("expected the final script line to come through")
	}

	run, err := database.GetRun(r.RunID())
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}
	if run.Status != db.RunStatusDone {
		t.Errorf("expected run status done, got %q (exit %q)", run.Status, run.ExitMessage)
	}
}

func TestStartWhileRunning(t *testing.T) {
	database := openTestDB(t)
	r := New(database, []string{"sleep", "10"}, t.TempDir(), time.Second)

	if err := r.Start(context.Background(), ""); err != nil {
		t.Fatalf("failed to start: %v", err)
	}
	defer func() {
		r.Stop()
		r.Wait()
	}()

	if err := r.Start(context.Background(), ""); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("expected ErrAlreadyRunning, got %v", err)
	}
}

func TestStopTerminatesProcessTree(t *testing.T) {
	database := openTestDB(t)
	// The shell spawns a child; the group signal must reach both
	r := New(database, []string{"sh", "-c", "sleep 30"}, t.TempDir(), 2*time.Second)

	if err := r.Start(context.Background(), ""); err != nil {
		t.Fatalf("failed to start: %v", err)
	}
	if r.State() != StateRunning {
		t.Fatalf("expected running state, got %v", r.State())
	}

	start := time.Now()
	if err := r.Stop(); err != nil {
		t.Fatalf("failed to stop: %v", err)
	}
	r.Wait()

	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("stop took too long: %v", elapsed)
	}
	if r.State() != StateIdle {
		t.Errorf("expected idle after stop, got %v", r.State())
	}

	run, err := database.GetRun(r.RunID())
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}
	if run.Status != db.RunStatusStopped {
		t.Errorf("expected run status stopped, got %q", run.Status)
	}
}

func TestStopWhileIdle(t *testing.T) {
	database := openTestDB(t)
	r := New(database, []string{"true"}, t.TempDir(), time.Second)

	if err := r.Stop(); err != nil {
		t.Errorf("stop while idle should be a no-op, got %v", err)
	}
}

func TestStartCommandNotFound(t *testing.T) {
	database := openTestDB(t)
	r := New(database, []string{"/nonexistent/automation-script"}, t.TempDir(), time.Second)

	if err := r.Start(context.Background(), ""); err == nil {
		t.Fatal("expected error for missing command")
	}
	if r.State() != StateIdle {
		t.Errorf("expected idle after failed start, got %v", r.State())
	}

	// A failed start can be retried
	r2 := New(database, []string{"true"}, t.TempDir(), time.Second)
	if err := r2.Start(context.Background(), ""); err != nil {
		t.Errorf("failed to start after earlier failure: %v", err)
	}
	r2.Wait()
}

func TestFailedRunRecordsError(t *testing.T) {
	database := openTestDB(t)
	r := New(database, []string{"sh", "-c", "exit 3"}, t.TempDir(), time.Second)

	ch := r.Subscribe()
	defer r.Unsubscribe(ch)

	if err := r.Start(context.Background(), ""); err != nil {
		t.Fatalf("failed to start: %v", err)
	}

	lines := collect(t, ch, func(l Line) bool {
		return l.Kind == db.KindError
	})
	r.Wait()

	last := lines[len(lines)-1]
	if last.Kind != db.KindError {
		t.Errorf("expected final error line, got %q", last.Kind)
	}

	run, err := database.GetRun(r.RunID())
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}
	if run.Status != db.RunStatusFailed {
		t.Errorf("expected run status failed, got %q", run.Status)
	}
}

func TestContextCancelStopsRun(t *testing.T) {
	database := openTestDB(t)
	r := New(database, []string{"sleep", "30"}, t.TempDir(), 2*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	if err := r.Start(ctx, ""); err != nil {
		t.Fatalf("failed to start: %v", err)
	}

	cancel()
	r.Wait()

	if r.State() != StateIdle {
		t.Errorf("expected idle after context cancel, got %v", r.State())
	}
}
