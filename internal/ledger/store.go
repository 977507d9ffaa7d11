package ledger

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"mixdown/internal/assembly"
	"mixdown/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema
// changes; old databases are rejected rather than migrated in place.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database was created by a different
// schema version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// ErrRunNotFound indicates no ledger row exists for the run id.
var ErrRunNotFound = errors.New("run not found")

// Status is the ledger lifecycle state of a run.
type Status string

const (
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

// Chapter is the serialized form of one timing manifest entry.
type Chapter struct {
	Type            string  `json:"type"`
	Title           string  `json:"title"`
	StartSeconds    float64 `json:"start_seconds"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// Run is one ledger row.
type Run struct {
	ID              int64
	RunID           string
	Title           string
	Status          Status
	Stage           string
	Error           string
	OutputPath      string
	DurationSeconds float64
	SizeBytes       int64
	Chapters        []Chapter
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Store records assembly runs in SQLite. The ledger is bookkeeping for
// operators; the engine itself never reads it back during a run.
type Store struct {
	db   *sql.DB
	path string
}

// Open connects to the ledger database at the configured path, creating
// it and its schema as needed.
func Open(cfg *config.Config) (*Store, error) {
	dbPath := cfg.Paths.LedgerPath
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("ensure ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return nil
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to reset)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

// StartRun inserts a running row for a new assembly invocation.
func (s *Store) StartRun(ctx context.Context, runID, title string) (*Run, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, title, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?)`,
		runID, title, StatusRunning, timestamp, timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return s.GetRun(ctx, runID)
}

// CompleteRun records the finished artifact and its chapter manifest.
func (s *Store) CompleteRun(ctx context.Context, result *assembly.EpisodeAssembly) error {
	chapters := make([]Chapter, len(result.Chapters))
	for i, chapter := range result.Chapters {
		chapters[i] = Chapter{
			Type:            chapter.Type.String(),
			Title:           chapter.Title,
			StartSeconds:    chapter.Start.Seconds(),
			DurationSeconds: chapter.Duration.Seconds(),
		}
	}
	chaptersJSON, err := json.Marshal(chapters)
	if err != nil {
		return fmt.Errorf("marshal chapters: %w", err)
	}

	return s.updateRun(ctx, result.RunID,
		`UPDATE runs SET status = ?, stage = ?, output_path = ?, duration_seconds = ?,
              size_bytes = ?, chapters_json = ?, updated_at = ? WHERE run_id = ?`,
		StatusComplete, "complete", result.OutputPath, result.TotalDuration.Seconds(),
		result.FileSizeBytes, string(chaptersJSON), nowStamp(), result.RunID,
	)
}

// FailRun records the failing stage and cause for a broken run.
func (s *Store) FailRun(ctx context.Context, runID, stage string, cause error) error {
	message := ""
	if cause != nil {
		message = cause.Error()
	}
	return s.updateRun(ctx, runID,
		`UPDATE runs SET status = ?, stage = ?, error = ?, updated_at = ? WHERE run_id = ?`,
		StatusFailed, stage, message, nowStamp(), runID,
	)
}

func (s *Store) updateRun(ctx context.Context, runID, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// GetRun returns the ledger row for a run id.
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" WHERE run_id = ?", runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first. A non-positive
// limit returns all rows.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	query := selectColumns + " ORDER BY created_at DESC, id DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

const selectColumns = `SELECT id, run_id, title, status, stage, error, output_path,
    duration_seconds, size_bytes, chapters_json, created_at, updated_at FROM runs`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var status, chaptersJSON, createdAt, updatedAt string
	err := row.Scan(&run.ID, &run.RunID, &run.Title, &status, &run.Stage, &run.Error,
		&run.OutputPath, &run.DurationSeconds, &run.SizeBytes, &chaptersJSON,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	run.Status = Status(status)
	if chaptersJSON != "" {
		if err := json.Unmarshal([]byte(chaptersJSON), &run.Chapters); err != nil {
			return nil, fmt.Errorf("decode chapters for %s: %w", run.RunID, err)
		}
	}
	run.CreatedAt = parseStamp(createdAt)
	run.UpdatedAt = parseStamp(updatedAt)
	return &run, nil
}

func nowStamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func parseStamp(value string) time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}
