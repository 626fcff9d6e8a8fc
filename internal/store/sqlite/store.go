package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

type Store struct {
	db *sql.DB
}

type BuildRecord struct {
	BuildID        string `json:"buildId"`
	AppID          string `json:"appId"`
	ManifestPath   string `json:"manifestPath"`
	ManifestDigest string `json:"manifestDigest"`
	BuildSystem    string `json:"buildSystem"`
	Rebuild        bool   `json:"rebuild"`
	Status         string `json:"status"`
	Steps          int    `json:"steps"`
	StartedAt      string `json:"startedAt"`
	EndedAt        string `json:"endedAt,omitempty"`
	LastError      string `json:"lastError,omitempty"`
}

type StepRecord struct {
	BuildID    string `json:"buildId"`
	Index      int    `json:"index"`
	Command    string `json:"command"`
	ExitCode   *int   `json:"exitCode,omitempty"`
	DurationMS int64  `json:"durationMs"`
}

// Open creates stateDir if needed and opens history.db inside it.
func Open(stateDir string) (*Store, error) {
	if stateDir == "" {
		stateDir = ".flatpak/fbh"
	}
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, err
	}
	dbPath := filepath.Join(stateDir, "history.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS builds (
			build_id TEXT PRIMARY KEY,
			app_id TEXT NOT NULL,
			manifest_path TEXT NOT NULL,
			manifest_digest TEXT NOT NULL,
			build_system TEXT NOT NULL,
			rebuild INTEGER NOT NULL,
			status TEXT NOT NULL,
			steps INTEGER NOT NULL DEFAULT 0,
			started_at TEXT NOT NULL,
			ended_at TEXT,
			last_error TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS steps (
			build_id TEXT NOT NULL,
			step_index INTEGER NOT NULL,
			command TEXT NOT NULL,
			exit_code INTEGER,
			duration_ms INTEGER NOT NULL,
			PRIMARY KEY(build_id, step_index),
			FOREIGN KEY(build_id) REFERENCES builds(build_id)
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) InsertBuild(r BuildRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO builds (build_id, app_id, manifest_path, manifest_digest, build_system, rebuild, status, steps, started_at, ended_at, last_error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.BuildID, r.AppID, r.ManifestPath, r.ManifestDigest, r.BuildSystem, boolInt(r.Rebuild), r.Status, r.Steps,
		r.StartedAt, nullableString(r.EndedAt), nullableString(r.LastError),
	)
	return err
}

func (s *Store) InsertStep(r StepRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO steps (build_id, step_index, command, exit_code, duration_ms) VALUES (?, ?, ?, ?, ?)`,
		r.BuildID, r.Index, r.Command, nullableInt(r.ExitCode), r.DurationMS,
	)
	return err
}

func (s *Store) UpdateBuildCompletion(buildID, status string, steps int, lastError string) error {
	_, err := s.db.Exec(
		`UPDATE builds SET status = ?, steps = ?, ended_at = ?, last_error = ? WHERE build_id = ?`,
		status, steps, time.Now().UTC().Format(time.RFC3339Nano), nullableString(lastError), buildID,
	)
	return err
}

const buildColumns = `build_id, app_id, manifest_path, manifest_digest, build_system, rebuild, status, steps, started_at, COALESCE(ended_at,''), COALESCE(last_error,'')`

type scanner interface {
	Scan(dest ...any) error
}

func scanBuild(row scanner) (BuildRecord, error) {
	var r BuildRecord
	var rebuild int
	if err := row.Scan(&r.BuildID, &r.AppID, &r.ManifestPath, &r.ManifestDigest, &r.BuildSystem, &rebuild, &r.Status, &r.Steps, &r.StartedAt, &r.EndedAt, &r.LastError); err != nil {
		return BuildRecord{}, err
	}
	r.Rebuild = rebuild != 0
	return r, nil
}

func (s *Store) GetBuild(buildID string) (BuildRecord, error) {
	r, err := scanBuild(s.db.QueryRow(`SELECT `+buildColumns+` FROM builds WHERE build_id = ?`, buildID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return BuildRecord{}, fmt.Errorf("build not found: %s", buildID)
		}
		return BuildRecord{}, err
	}
	return r, nil
}

// ListBuilds returns the most recent builds first.
func (s *Store) ListBuilds(limit int) ([]BuildRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(`SELECT `+buildColumns+` FROM builds ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]BuildRecord, 0)
	for rows.Next() {
		r, err := scanBuild(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) ListSteps(buildID string) ([]StepRecord, error) {
	rows, err := s.db.Query(`SELECT build_id, step_index, command, exit_code, duration_ms FROM steps WHERE build_id = ? ORDER BY step_index`, buildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]StepRecord, 0)
	for rows.Next() {
		var r StepRecord
		var exit sql.NullInt64
		if err := rows.Scan(&r.BuildID, &r.Index, &r.Command, &exit, &r.DurationMS); err != nil {
			return nil, err
		}
		if exit.Valid {
			v := int(exit.Int64)
			r.ExitCode = &v
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func nullableString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
