package db

import (
	"testing"
)

func TestRunLifecycle(t *testing.T) {
	db := openTestDB(t)

	run, err := db.CreateRun("npx ts-node src/main.ts", "alice@example.com")
	if err != nil {
		t.Fatalf("failed to create run: %v", err)
	}
	if run.Status != RunStatusRunning {
		t.Errorf("expected status running, got %q", run.Status)
	}

	if err := db.FinishRun(run.ID, RunStatusDone, "exit status 0"); err != nil {
		t.Fatalf("failed to finish run: %v", err)
	}

	got, err := db.GetRun(run.ID)
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}
	if got.Status != RunStatusDone {
		t.Errorf("expected status done, got %q", got.Status)
	}
	if got.FinishedAt == nil {
		t.Error("expected finished_at to be set")
	}
	if got.ExitMessage != "exit status 0" {
		t.Errorf("expected exit message, got %q", got.ExitMessage)
	}
}

func TestRunLines(t *testing.T) {
	db := openTestDB(t)

	run, err := db.CreateRun("echo test", "")
	if err != nil {
		t.Fatalf("failed to create run: %v", err)
	}

	db.AppendRunLine(run.ID, KindSystem, "Starting automation")
	db.AppendRunLine(run.ID, KindInfo, "processing page 1")
	db.AppendRunLine(run.ID, KindError, "Error: timeout on page 2")
	db.AppendRunLine(run.ID, KindSuccess, "Finished")

	lines, err := db.GetRunLines(run.ID, 100)
	if err != nil {
		t.Fatalf("failed to get run lines: %v", err)
	}
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d", len(lines))
	}
	if lines[0].Kind != KindSystem || lines[2].Kind != KindError {
		t.Errorf("lines out of order: %q, %q", lines[0].Kind, lines[2].Kind)
	}

	// Incremental fetch picks up only new lines
	since, err := db.GetRunLinesSince(run.ID, lines[1].ID)
	if err != nil {
		t.Fatalf("failed to get run lines since: %v", err)
	}
	if len(since) != 2 {
		t.Fatalf("expected 2 lines since, got %d", len(since))
	}
	if since[0].Content != "Error: timeout on page 2" {
		t.Errorf("unexpected first incremental line: %q", since[0].Content)
	}
}

func TestListRuns(t *testing.T) {
	db := openTestDB(t)

	if _, err := db.CreateRun("first", ""); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}
	if _, err := db.CreateRun("second", ""); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}

	runs, err := db.ListRuns(10)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}

	runs, err = db.ListRuns(1)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run with limit, got %d", len(runs))
	}
}
