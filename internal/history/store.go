// Package history keeps a local SQLite log of homing runs.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// timeLayout sorts lexically in start order
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run is one recorded homing run
type Run struct {
	ID          string
	StartedAt   time.Time
	Kinematics  string
	Command     string
	Duration    time.Duration // Simulated or measured motion time
	Moves       int
	Untriggered int      // Search moves that never met their endstop condition
	Position    [4]int32 // Logical X/Y/Z/E afterwards, micrometers
	Err         string
}

// OK reports whether the run finished without error
func (r Run) OK() bool {
	return r.Err == ""
}

// Store persists runs
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("history path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func ensureSchema(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS homing_runs (
	id TEXT PRIMARY KEY,
	started_at TEXT NOT NULL,
	kinematics TEXT NOT NULL,
	command TEXT NOT NULL,
	duration_ns INTEGER NOT NULL,
	moves INTEGER NOT NULL,
	untriggered INTEGER NOT NULL,
	x INTEGER NOT NULL,
	y INTEGER NOT NULL,
	z INTEGER NOT NULL,
	e INTEGER NOT NULL,
	error TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS homing_runs_started ON homing_runs (started_at);`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("initialize history schema: %w", err)
	}
	return nil
}

// Record stores a run, filling in the ID and start time when unset. The
// stored run is returned.
func (s *Store) Record(ctx context.Context, run Run) (Run, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	run.StartedAt = run.StartedAt.UTC()

	if _, err := s.db.ExecContext(
		ctx,
		`INSERT INTO homing_runs (id, started_at, kinematics, command, duration_ns, moves, untriggered, x, y, z, e, error)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.StartedAt.Format(timeLayout),
		run.Kinematics,
		run.Command,
		int64(run.Duration),
		run.Moves,
		run.Untriggered,
		run.Position[0], run.Position[1], run.Position[2], run.Position[3],
		run.Err,
	); err != nil {
		return Run{}, fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	return run, nil
}

// Recent returns up to limit runs, newest first
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, started_at, kinematics, command, duration_ns, moves, untriggered, x, y, z, e, error
FROM homing_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run      Run
			started  string
			duration int64
		)
		if err := rows.Scan(&run.ID, &started, &run.Kinematics, &run.Command, &duration,
			&run.Moves, &run.Untriggered,
			&run.Position[0], &run.Position[1], &run.Position[2], &run.Position[3],
			&run.Err); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.StartedAt, err = time.Parse(timeLayout, started)
		if err != nil {
			return nil, fmt.Errorf("parse start time of run %s: %w", run.ID, err)
		}
		run.Duration = time.Duration(duration)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}
