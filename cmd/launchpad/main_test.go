package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mher0919/launchpad/internal/db"
	"github.com/mher0919/launchpad/internal/runner"
)

func TestDrainLinesFlushesTail(t *testing.T) {
	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	run := runner.New(database, []string{"sh", "-c", `echo one; echo "Finished"`}, t.TempDir(), time.Second)
	ch := run.Subscribe()

	if err := run.Start(context.Background(), ""); err != nil {
		t.Fatalf("failed to start: %v", err)
	}

	var out bytes.Buffer
	drainLines(run, ch, &out)

	// The final status line lands in the channel just before the run
	// completes; it must be printed, not left buffered.
	got := out.String()
	for _, want := range []string{"one", "Finished", "Automation finished!"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}
