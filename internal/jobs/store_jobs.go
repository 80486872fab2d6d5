package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Save inserts or replaces the persisted snapshot of job.
func (s *Store) Save(ctx context.Context, job Job) error {
	_, err := s.exec(
		ctx,
		`INSERT INTO jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            status = excluded.status,
            progress = excluded.progress,
            error_message = excluded.error_message,
            result_path = excluded.result_path,
            speaker_count = excluded.speaker_count,
            segment_count = excluded.segment_count,
            flagged_segments = excluded.flagged_segments,
            drifted_segments = excluded.drifted_segments,
            cancel_requested = excluded.cancel_requested,
            updated_at = excluded.updated_at,
            started_at = excluded.started_at,
            completed_at = excluded.completed_at`,
		job.ID,
		job.Source,
		job.TargetLanguage,
		nullableString(job.SourceLanguage),
		nullableString(job.AccentHint),
		string(job.Status),
		job.Progress,
		nullableString(job.ErrorMessage),
		nullableString(job.ResultPath),
		job.SpeakerCount,
		job.SegmentCount,
		job.FlaggedSegments,
		job.DriftedSegments,
		boolToInt(job.CancelRequested),
		formatTime(job.CreatedAt),
		formatTime(job.UpdatedAt),
		nullableTime(job.StartedAt),
		nullableTime(job.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("save job %s: %w", job.ID, err)
	}
	return nil
}

// GetByID fetches a job by identifier. A missing job returns ok=false.
func (s *Store) GetByID(ctx context.Context, id string) (Job, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, false, nil
	}
	if err != nil {
		return Job{}, false, fmt.Errorf("get job: %w", err)
	}
	return job, true, nil
}

// List returns jobs newest first, optionally filtered by status.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, string(status))
		}
	}
	query += ` ORDER BY created_at DESC, id`
	return s.queryJobs(ctx, query, args...)
}

// Recent returns the newest limit jobs.
func (s *Store) Recent(ctx context.Context, limit int) ([]Job, error) {
	if limit <= 0 {
		return nil, nil
	}
	return s.queryJobs(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC, id LIMIT ?`, limit)
}

// FinishedBefore returns terminal jobs last updated before cutoff.
func (s *Store) FinishedBefore(ctx context.Context, cutoff time.Time) ([]Job, error) {
	return s.queryJobs(
		ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE status IN (?, ?) AND updated_at < ? ORDER BY updated_at`,
		string(StatusCompleted),
		string(StatusFailed),
		formatTime(cutoff),
	)
}

// Unfinished returns jobs that are not in a terminal state.
func (s *Store) Unfinished(ctx context.Context) ([]Job, error) {
	return s.queryJobs(
		ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE status NOT IN (?, ?) ORDER BY created_at`,
		string(StatusCompleted),
		string(StatusFailed),
	)
}

// Remove deletes a job row. It reports whether a row existed.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	res, err := s.exec(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("remove job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClearFinished deletes every completed or failed job.
func (s *Store) ClearFinished(ctx context.Context) (int64, error) {
	res, err := s.exec(ctx, `DELETE FROM jobs WHERE status IN (?, ?)`, string(StatusCompleted), string(StatusFailed))
	if err != nil {
		return 0, fmt.Errorf("clear finished jobs: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) queryJobs(ctx context.Context, query string, args ...any) ([]Job, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, job)
	}
	return out, rows.Err()
}
