package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrRunNotFound reports an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// Store manages the run history database.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the ledger database and applies migrations.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure ledger directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
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

	store := &Store{db: db, path: path}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// StartRun inserts a run in the running state. StartedAt defaults to now.
func (s *Store) StartRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		return errors.New("start run: empty id")
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	if run.OptionsJSON == "" {
		run.OptionsJSON = "{}"
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, status, mode, input_dir, output_dir, options_json)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		formatTime(run.StartedAt),
		StatusRunning,
		run.Mode,
		run.InputDir,
		run.OutputDir,
		run.OptionsJSON,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun stamps the run's final status.
func (s *Store) FinishRun(ctx context.Context, id string, status Status, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, finished_at = ?, error_message = ? WHERE id = ?`,
		status,
		formatTime(time.Now()),
		nullableString(errMsg),
		id,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run %s: %w", id, ErrRunNotFound)
	}
	return nil
}

// RecordBundle appends a bundle outcome to its run.
func (s *Store) RecordBundle(ctx context.Context, result BundleResult) error {
	if result.RecordedAt.IsZero() {
		result.RecordedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bundle_results (
            run_id, bundle, status, output_path, cameras, frames_written,
            messages_copied, duration_ms, error_message, recorded_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.RunID,
		result.Bundle,
		result.Status,
		nullableString(result.OutputPath),
		result.Cameras,
		result.FramesWritten,
		int64(result.MessagesCopied),
		result.Duration.Milliseconds(),
		nullableString(result.Error),
		formatTime(result.RecordedAt),
	)
	if err != nil {
		return fmt.Errorf("insert bundle result: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs first with bundle tallies. A
// non-positive limit returns every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT r.id, r.started_at, r.finished_at, r.status, r.mode, r.input_dir,
                r.output_dir, r.options_json, r.error_message,
                (SELECT COUNT(1) FROM bundle_results b WHERE b.run_id = r.id),
                (SELECT COUNT(1) FROM bundle_results b WHERE b.run_id = r.id AND b.status = ?)
         FROM runs r ORDER BY r.started_at DESC, r.id`
	args := []any{StatusFailed}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run        Run
			startedAt  string
			finishedAt sql.NullString
			errMsg     sql.NullString
		)
		if err := rows.Scan(&run.ID, &startedAt, &finishedAt, &run.Status, &run.Mode, &run.InputDir,
			&run.OutputDir, &run.OptionsJSON, &errMsg, &run.Bundles, &run.FailedBundles); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.StartedAt = parseTime(startedAt)
		if finishedAt.Valid {
			run.FinishedAt = parseTime(finishedAt.String)
		}
		run.Error = errMsg.String
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// Bundles returns a run's bundle outcomes in recording order.
func (s *Store) Bundles(ctx context.Context, runID string) ([]BundleResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, bundle, status, output_path, cameras, frames_written,
                messages_copied, duration_ms, error_message, recorded_at
         FROM bundle_results WHERE run_id = ? ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list bundles: %w", err)
	}
	defer rows.Close()

	var results []BundleResult
	for rows.Next() {
		var (
			result     BundleResult
			outputPath sql.NullString
			messages   int64
			durationMS int64
			errMsg     sql.NullString
			recordedAt string
		)
		if err := rows.Scan(&result.RunID, &result.Bundle, &result.Status, &outputPath, &result.Cameras,
			&result.FramesWritten, &messages, &durationMS, &errMsg, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan bundle result: %w", err)
		}
		result.OutputPath = outputPath.String
		result.MessagesCopied = uint64(messages)
		result.Duration = time.Duration(durationMS) * time.Millisecond
		result.Error = errMsg.String
		result.RecordedAt = parseTime(recordedAt)
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bundle results: %w", err)
	}
	return results, nil
}

// timeLayout is fixed width so stored stamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) time.Time {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
