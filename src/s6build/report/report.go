// Package report keeps a local SQLite history of s6build invocations,
// one row per setup, update, or build run.
package report

import (
	"database/sql"
	"time"

	"github.com/eebbk/s6build/src/common/errors"
	"github.com/eebbk/s6build/src/common/logs"
	"github.com/eebbk/s6build/src/common/paths"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultPath is where the invocation history lives unless configured
// otherwise.
const DefaultPath = "~/.s6build/history.db"

// Mode identifies which pipeline an invocation ran.
type Mode string

const (
	ModeSetup  Mode = "setup"
	ModeUpdate Mode = "update"
	ModeBuild  Mode = "build"
)

// Invocation is one recorded s6build run.
type Invocation struct {
	ID          string    `json:"id"`
	Mode        Mode      `json:"mode"`
	Product     string    `json:"product"`
	Target      string    `json:"target,omitempty"`
	Arch        string    `json:"arch"`
	Toolchain   string    `json:"toolchain,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMS  int64     `json:"duration_ms"`
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
	ExitCode    int       `json:"exit_code"`
}

// Store wraps the SQLite connection holding the invocation history.
type Store struct {
	db   *sql.DB
	log  *logs.Logger
	path string
}

// Open opens (or creates) the history database at the given path.
func Open(log *logs.Logger, path string) (*Store, error) {
	expanded := paths.Expand(path)
	if err := paths.EnsureDir(expanded); err != nil {
		return nil, errors.ErrReportOpenFailed.WithMessagef("failed to create history directory for %s", expanded).WithCause(err)
	}

	db, err := sql.Open("sqlite3", expanded)
	if err != nil {
		return nil, errors.ErrReportOpenFailed.WithCause(err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, errors.ErrReportOpenFailed.WithCause(err)
	}

	store := &Store{
		db:   db,
		log:  log,
		path: expanded,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, errors.ErrReportOpenFailed.WithCause(err)
	}

	return store, nil
}

// initSchema creates the history table
func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS invocations (
		id TEXT PRIMARY KEY,
		mode TEXT NOT NULL,
		product TEXT NOT NULL,
		target TEXT,
		arch TEXT NOT NULL,
		toolchain TEXT,
		started_at DATETIME NOT NULL,
		completed_at DATETIME,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		success INTEGER NOT NULL DEFAULT 0,
		error_message TEXT,
		exit_code INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_invocations_started ON invocations(started_at);
	CREATE INDEX IF NOT EXISTS idx_invocations_mode ON invocations(mode);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Path returns the history file path.
func (s *Store) Path() string {
	return s.path
}

// Record inserts one invocation row. A missing ID gets a fresh UUID
// and a zero duration is derived from the timestamps.
func (s *Store) Record(inv *Invocation) error {
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	if inv.DurationMS == 0 && !inv.CompletedAt.IsZero() {
		inv.DurationMS = inv.CompletedAt.Sub(inv.StartedAt).Milliseconds()
	}

	query := `
		INSERT INTO invocations (id, mode, product, target, arch, toolchain,
			started_at, completed_at, duration_ms, success, error_message, exit_code)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query,
		inv.ID, inv.Mode, inv.Product, inv.Target, inv.Arch, inv.Toolchain,
		inv.StartedAt, inv.CompletedAt, inv.DurationMS, inv.Success, inv.Error, inv.ExitCode,
	)
	if err != nil {
		return errors.ErrReportWriteFailed.WithCause(err)
	}

	s.log.Debug("Recorded invocation", "id", inv.ID, "mode", inv.Mode, "success", inv.Success)
	return nil
}

// selectInvocationsQuery is the base SELECT query for invocations
const selectInvocationsQuery = `
	SELECT id, mode, product, target, arch, toolchain,
		started_at, completed_at, duration_ms, success, error_message, exit_code
	FROM invocations
`

// Recent returns the most recent invocations, newest first.
func (s *Store) Recent(limit int) ([]Invocation, error) {
	if limit <= 0 {
		limit = 20
	}

	query := selectInvocationsQuery + ` ORDER BY started_at DESC LIMIT ?`
	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.DomainReport, errors.CodeReportNotFound, "failed to list invocations")
	}
	defer rows.Close()

	var invocations []Invocation
	for rows.Next() {
		var inv Invocation
		var target, toolchain, errMsg sql.NullString
		var completedAt sql.NullTime
		if err := rows.Scan(
			&inv.ID, &inv.Mode, &inv.Product, &target, &inv.Arch, &toolchain,
			&inv.StartedAt, &completedAt, &inv.DurationMS, &inv.Success, &errMsg, &inv.ExitCode,
		); err != nil {
			return nil, errors.Wrap(err, errors.DomainReport, errors.CodeReportNotFound, "failed to scan invocation")
		}
		inv.Target = target.String
		inv.Toolchain = toolchain.String
		inv.Error = errMsg.String
		inv.CompletedAt = completedAt.Time
		invocations = append(invocations, inv)
	}

	return invocations, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
