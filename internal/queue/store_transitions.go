package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Transition moves a job along a single state-machine edge. The from status
// must still match when the update lands; otherwise ErrConflict is returned
// and nothing changes. Edges not listed in the state machine are rejected
// with ErrInvalidTransition.
func (s *Store) Transition(ctx context.Context, id string, from, to Status) (*Job, error) {
	if !CanTransition(from, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return s.transition(ctx, id, from, func(job *Job) {
		job.Status = to
	})
}

// Fail transitions an active job to failed, recording the human-readable
// reason. Progress is cleared since it is meaningless outside active stages.
func (s *Store) Fail(ctx context.Context, id string, from Status, message string) (*Job, error) {
	if !CanTransition(from, StatusFailed) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, StatusFailed)
	}
	return s.transition(ctx, id, from, func(job *Job) {
		job.Status = StatusFailed
		job.ErrorMessage = message
		job.Progress = 0
		job.CurrentTask = ""
	})
}

// CancelFrom transitions a job from a known non-terminal status to cancelled.
func (s *Store) CancelFrom(ctx context.Context, id string, from Status) (*Job, error) {
	if !CanTransition(from, StatusCancelled) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, StatusCancelled)
	}
	return s.transition(ctx, id, from, func(job *Job) {
		job.Status = StatusCancelled
		job.Progress = 0
		job.CurrentTask = ""
	})
}

// Retry resubmits a failed job: status returns to queued, the retry count is
// incremented, and progress, current task, and error message are reset.
// Jobs in any other status are rejected with ErrNotRetryable.
func (s *Store) Retry(ctx context.Context, id string) (*Job, error) {
	job, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != StatusFailed {
		return nil, fmt.Errorf("%w: status is %s", ErrNotRetryable, job.Status)
	}
	return s.transition(ctx, id, StatusFailed, func(job *Job) {
		job.Status = StatusQueued
		job.RetryCount++
		job.Progress = 0
		job.CurrentTask = "Waiting in queue"
		job.ErrorMessage = ""
	})
}

// Complete transitions a rendering job to completed and runs attach inside
// the same transaction, so clip records become queryable atomically with the
// status change. No observer can see a completed job without its clips.
func (s *Store) Complete(ctx context.Context, id string, attach func(tx *sql.Tx) error) (*Job, error) {
	var result *Job
	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transition tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		job, err := getJobTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if job.Status != StatusRendering {
			return fmt.Errorf("%w: expected %s, have %s", ErrConflict, StatusRendering, job.Status)
		}

		job.Status = StatusCompleted
		job.Progress = 100
		job.CurrentTask = "Completed"
		job.ErrorMessage = ""
		job.UpdatedAt = time.Now().UTC()

		if err := updateJobTx(ctx, tx, job); err != nil {
			return err
		}
		if attach != nil {
			if err := attach(tx); err != nil {
				return fmt.Errorf("attach clips: %w", err)
			}
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit completion: %w", err)
		}
		result = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) transition(ctx context.Context, id string, from Status, mutate func(*Job)) (*Job, error) {
	var result *Job
	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transition tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		job, err := getJobTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if job.Status != from {
			return fmt.Errorf("%w: expected %s, have %s", ErrConflict, from, job.Status)
		}

		mutate(job)
		job.UpdatedAt = time.Now().UTC()

		if err := updateJobTx(ctx, tx, job); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit transition: %w", err)
		}
		result = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func getJobTx(ctx context.Context, tx *sql.Tx, id string) (*Job, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

func updateJobTx(ctx context.Context, tx *sql.Tx, job *Job) error {
	_, err := tx.ExecContext(
		ctx,
		`UPDATE jobs
         SET status = ?, progress = ?, current_task = ?, error_message = ?,
             retry_count = ?, title = ?, thumbnail = ?, duration = ?, updated_at = ?
         WHERE id = ?`,
		job.Status,
		job.Progress,
		nullableString(job.CurrentTask),
		nullableString(job.ErrorMessage),
		job.RetryCount,
		nullableString(job.Title),
		nullableString(job.Thumbnail),
		job.Duration,
		job.UpdatedAt.Format(time.RFC3339Nano),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

// UpdateMetadata persists probe results (title, thumbnail, duration) without
// touching lifecycle fields.
func (s *Store) UpdateMetadata(ctx context.Context, id, title, thumbnail string, duration float64) error {
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(
			ctx,
			`UPDATE jobs SET title = ?, thumbnail = ?, duration = ?, updated_at = ? WHERE id = ?`,
			nullableString(title),
			nullableString(thumbnail),
			duration,
			time.Now().UTC().Format(time.RFC3339Nano),
			id,
		)
		if err != nil {
			return fmt.Errorf("update metadata: %w", err)
		}
		return nil
	})
}
