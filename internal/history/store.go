package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound indicates the requested job does not exist.
var ErrNotFound = errors.New("job not found")

// Store manages job persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open initializes or connects to the history database at path.
func Open(path string) (*Store, error) {
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

// Path returns the on-disk database location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Create inserts a new job and fills its ID and timestamps.
func (s *Store) Create(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job must not be nil")
	}
	if job.Status == "" {
		job.Status = StatusPending
	}
	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now

	const query = `INSERT INTO jobs (
		request_id, url, format, frame_rate, duration_ms, fit_requested,
		fit_strategy, surface_width, surface_height, status, output_path,
		fallback_path, error_message, progress_stage, progress_percent,
		progress_message, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var res sql.Result
	err := s.retryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = s.db.ExecContext(ctx, query,
			job.RequestID, job.URL, job.Format, job.FrameRate, job.DurationMs,
			boolToInt(job.FitRequested), job.FitStrategy, job.SurfaceWidth,
			job.SurfaceHeight, string(job.Status), job.OutputPath,
			job.FallbackPath, job.ErrorMessage, job.ProgressStage,
			job.ProgressPercent, job.ProgressMessage,
			formatTime(job.CreatedAt), formatTime(job.UpdatedAt))
		return execErr
	})
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("read job id: %w", err)
	}
	job.ID = id
	return nil
}

// Update persists the full mutable state of a job.
func (s *Store) Update(ctx context.Context, job *Job) error {
	if job == nil || job.ID == 0 {
		return errors.New("job with id required")
	}
	job.UpdatedAt = time.Now().UTC()

	const query = `UPDATE jobs SET
		fit_strategy = ?, surface_width = ?, surface_height = ?, status = ?,
		output_path = ?, fallback_path = ?, error_message = ?,
		progress_stage = ?, progress_percent = ?, progress_message = ?,
		updated_at = ?
	WHERE id = ?`

	return s.execExpectingRow(ctx, job.ID, query,
		job.FitStrategy, job.SurfaceWidth, job.SurfaceHeight, string(job.Status),
		job.OutputPath, job.FallbackPath, job.ErrorMessage,
		job.ProgressStage, job.ProgressPercent, job.ProgressMessage,
		formatTime(job.UpdatedAt), job.ID)
}

// UpdateProgress persists only the progress fields, for frequent updates
// during recording and conversion.
func (s *Store) UpdateProgress(ctx context.Context, job *Job) error {
	if job == nil || job.ID == 0 {
		return errors.New("job with id required")
	}
	job.UpdatedAt = time.Now().UTC()

	const query = `UPDATE jobs SET
		progress_stage = ?, progress_percent = ?, progress_message = ?, updated_at = ?
	WHERE id = ?`

	return s.execExpectingRow(ctx, job.ID, query,
		job.ProgressStage, job.ProgressPercent, job.ProgressMessage,
		formatTime(job.UpdatedAt), job.ID)
}

// GetByID returns a single job.
func (s *Store) GetByID(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" FROM jobs WHERE id = ?", id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get job %d: %w", id, err)
	}
	return job, nil
}

// List returns jobs ordered newest first. A non-positive limit returns all.
func (s *Store) List(ctx context.Context, limit int) ([]*Job, error) {
	query := selectColumns + " FROM jobs ORDER BY id DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Clear removes terminal jobs; with all set, every job is removed.
func (s *Store) Clear(ctx context.Context, all bool) (int64, error) {
	query := "DELETE FROM jobs WHERE status IN (?, ?)"
	args := []any{string(StatusCompleted), string(StatusFailed)}
	if all {
		query = "DELETE FROM jobs"
		args = nil
	}
	var res sql.Result
	err := s.retryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	})
	if err != nil {
		return 0, fmt.Errorf("clear jobs: %w", err)
	}
	return res.RowsAffected()
}

const selectColumns = `SELECT id, request_id, url, format, frame_rate,
	duration_ms, fit_requested, fit_strategy, surface_width, surface_height,
	status, output_path, fallback_path, error_message, progress_stage,
	progress_percent, progress_message, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		job          Job
		fitRequested int
		status       string
		createdAt    string
		updatedAt    string
	)
	err := row.Scan(&job.ID, &job.RequestID, &job.URL, &job.Format,
		&job.FrameRate, &job.DurationMs, &fitRequested, &job.FitStrategy,
		&job.SurfaceWidth, &job.SurfaceHeight, &status, &job.OutputPath,
		&job.FallbackPath, &job.ErrorMessage, &job.ProgressStage,
		&job.ProgressPercent, &job.ProgressMessage, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	job.Status = Status(status)
	job.CreatedAt = parseTime(createdAt)
	job.UpdatedAt = parseTime(updatedAt)
	return &job, nil
}

func (s *Store) execExpectingRow(ctx context.Context, id int64, query string, args ...any) error {
	var res sql.Result
	err := s.retryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("update job %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update job %d: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return nil
}

func (s *Store) retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == 5 {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
