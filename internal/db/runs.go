package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run statuses.
const (
	RunStatusRunning = "running"
	RunStatusDone    = "done"
	RunStatusFailed  = "failed"
	RunStatusStopped = "stopped"
)

// Line kinds for captured output.
const (
	KindInfo    = "info"
	KindSuccess = "success"
	KindError   = "error"
	KindSystem  = "system"
)

// Run represents one invocation of the automation command.
type Run struct {
	ID          string
	Command     string
	StartedBy   string
	Status      string
	ExitMessage string
	StartedAt   time.Time
	FinishedAt  *time.Time
}

// RunLine is a single captured output line.
type RunLine struct {
	ID        int64
	RunID     string
	Kind      string
	Content   string
	CreatedAt time.Time
}

// CreateRun records the start of a run and returns it.
func (db *DB) CreateRun(command, startedBy string) (*Run, error) {
	id := uuid.New().String()
	now := time.Now()

	_, err := db.Exec(`
		INSERT INTO runs (id, command, started_by, status, started_at)
		VALUES (?, ?, ?, ?, ?)
	`, id, command, startedBy, RunStatusRunning, now)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}

	return &Run{
		ID:        id,
		Command:   command,
		StartedBy: startedBy,
		Status:    RunStatusRunning,
		StartedAt: now,
	}, nil
}

// FinishRun marks a run as finished with a final status and message.
func (db *DB) FinishRun(runID, status, exitMessage string) error {
	_, err := db.Exec(`
		UPDATE runs SET status = ?, exit_message = ?, finished_at = ?
		WHERE id = ?
	`, status, exitMessage, time.Now(), runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID. Returns nil if not found.
func (db *DB) GetRun(runID string) (*Run, error) {
	var r Run
	var finished sql.NullTime
	err := db.QueryRow(`
		SELECT id, command, started_by, status, exit_message, started_at, finished_at
		FROM runs WHERE id = ?
	`, runID).Scan(&r.ID, &r.Command, &r.StartedBy, &r.Status, &r.ExitMessage, &r.StartedAt, &finished)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	if finished.Valid {
		r.FinishedAt = &finished.Time
	}
	return &r, nil
}

// ListRuns returns the most recent runs, newest first.
func (db *DB) ListRuns(limit int) ([]*Run, error) {
	rows, err := db.Query(`
		SELECT id, command, started_by, status, exit_message, started_at, finished_at
		FROM runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var r Run
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.Command, &r.StartedBy, &r.Status, &r.ExitMessage, &r.StartedAt, &finished); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if finished.Valid {
			r.FinishedAt = &finished.Time
		}
		runs = append(runs, &r)
	}
	return runs, rows.Err()
}

// AppendRunLine stores a captured output line for a run.
func (db *DB) AppendRunLine(runID, kind, content string) error {
	_, err := db.Exec(`
		INSERT INTO run_lines (run_id, kind, content) VALUES (?, ?, ?)
	`, runID, kind, content)
	if err != nil {
		return fmt.Errorf("append run line: %w", err)
	}
	return nil
}

// GetRunLines returns up to limit lines for a run, oldest first.
func (db *DB) GetRunLines(runID string, limit int) ([]*RunLine, error) {
	rows, err := db.Query(`
		SELECT id, run_id, kind, content, created_at
		FROM run_lines WHERE run_id = ?
		ORDER BY id ASC LIMIT ?
	`, runID, limit)
	if err != nil {
		return nil, fmt.Errorf("query run lines: %w", err)
	}
	defer rows.Close()

	return scanRunLines(rows)
}

// GetRunLinesSince returns lines for a run with an ID greater than sinceID.
func (db *DB) GetRunLinesSince(runID string, sinceID int64) ([]*RunLine, error) {
	rows, err := db.Query(`
		SELECT id, run_id, kind, content, created_at
		FROM run_lines WHERE run_id = ? AND id > ?
		ORDER BY id ASC
	`, runID, sinceID)
	if err != nil {
		return nil, fmt.Errorf("query run lines: %w", err)
	}
	defer rows.Close()

	return scanRunLines(rows)
}

func scanRunLines(rows *sql.Rows) ([]*RunLine, error) {
	var lines []*RunLine
	for rows.Next() {
		var l RunLine
		if err := rows.Scan(&l.ID, &l.RunID, &l.Kind, &l.Content, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run line: %w", err)
		}
		lines = append(lines, &l)
	}
	return lines, rows.Err()
}
