package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements JobStore on a local SQLite database. SQLite
// serializes writers, which gives Put/Take/Remove their per-operation
// atomicity; Take additionally wraps its select+delete in one transaction.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	// A single connection avoids SQLITE_BUSY between concurrent handlers.
	db.SetMaxOpenConns(1)
	s := &SQLiteStore{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS pending_jobs (
			id TEXT PRIMARY KEY,
			text TEXT NOT NULL,
			voice_id TEXT NOT NULL,
			avatar_id TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_pending_jobs_key ON pending_jobs (text, voice_id, created_at);`,
		`CREATE TABLE IF NOT EXISTS video_results (
			job_id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			video_url TEXT,
			completed_at DATETIME NOT NULL
		);`,
	}
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("initializing schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Put(ctx context.Context, job PendingJob) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO pending_jobs (id, text, voice_id, avatar_id, created_at) VALUES (?, ?, ?, ?, ?)",
		job.ID, job.Text, job.VoiceID, job.AvatarID, job.CreatedAt.UTC())
	return err
}

func (s *SQLiteStore) FindLatest(ctx context.Context, text, voiceID string) (PendingJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, text, voice_id, avatar_id, created_at FROM pending_jobs
		 WHERE text = ? AND voice_id = ?
		 ORDER BY created_at DESC, id LIMIT 1`,
		text, voiceID)
	return scanJob(row)
}

// Take resolves and consumes the most recent matching job in a single
// transaction, so two concurrent callbacks for duplicate content cannot both
// resume the same job.
func (s *SQLiteStore) Take(ctx context.Context, text, voiceID string) (PendingJob, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return PendingJob{}, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT id, text, voice_id, avatar_id, created_at FROM pending_jobs
		 WHERE text = ? AND voice_id = ?
		 ORDER BY created_at DESC, id LIMIT 1`,
		text, voiceID)
	job, err := scanJob(row)
	if err != nil {
		return PendingJob{}, err
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM pending_jobs WHERE id = ?", job.ID); err != nil {
		return PendingJob{}, err
	}
	if err := tx.Commit(); err != nil {
		return PendingJob{}, err
	}
	return job, nil
}

// Remove deletes by storage identity. Removing an id that is already gone is
// not an error.
func (s *SQLiteStore) Remove(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM pending_jobs WHERE id = ?", id)
	return err
}

// PurgeOlderThan deletes pending jobs created before cutoff and reports how
// many were removed.
func (s *SQLiteStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM pending_jobs WHERE created_at < ?", cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) SaveResult(ctx context.Context, res VideoResult) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO video_results (job_id, status, video_url, completed_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(job_id) DO UPDATE SET status = excluded.status,
			video_url = excluded.video_url, completed_at = excluded.completed_at`,
		res.JobID, res.Status, res.VideoURL, res.CompletedAt.UTC())
	return err
}

func (s *SQLiteStore) Result(ctx context.Context, jobID string) (VideoResult, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT job_id, status, video_url, completed_at FROM video_results WHERE job_id = ?",
		jobID)
	var res VideoResult
	var url sql.NullString
	if err := row.Scan(&res.JobID, &res.Status, &url, &res.CompletedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return VideoResult{}, ErrNotFound
		}
		return VideoResult{}, err
	}
	res.VideoURL = url.String
	return res, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanJob(row *sql.Row) (PendingJob, error) {
	var job PendingJob
	if err := row.Scan(&job.ID, &job.Text, &job.VoiceID, &job.AvatarID, &job.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return PendingJob{}, ErrNotFound
		}
		return PendingJob{}, err
	}
	return job, nil
}
