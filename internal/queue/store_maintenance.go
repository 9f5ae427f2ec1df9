package queue

import (
	"context"
	"fmt"
	"time"
)

// ResetStuckActive returns jobs left in an active state by an unclean daemon
// shutdown back to queued so they are re-admitted on the next pass.
func (s *Store) ResetStuckActive(ctx context.Context) (int64, error) {
	var affected int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(
			ctx,
			`UPDATE jobs
             SET status = ?, progress = 0, current_task = 'Waiting in queue',
                 error_message = NULL, updated_at = ?
             WHERE status IN (?, ?, ?, ?)`,
			StatusQueued,
			time.Now().UTC().Format(time.RFC3339Nano),
			StatusDownloading, StatusTranscribing, StatusClipping, StatusRendering,
		)
		if err != nil {
			return fmt.Errorf("reset stuck jobs: %w", err)
		}
		affected, err = res.RowsAffected()
		return err
	})
	return affected, err
}

// PruneTerminal deletes terminal jobs (completed, failed, cancelled) last
// updated before the cutoff. Clips are untouched: the library outlives job
// records.
func (s *Store) PruneTerminal(ctx context.Context, cutoff time.Time) (int64, error) {
	var affected int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(
			ctx,
			`DELETE FROM jobs WHERE status IN (?, ?, ?) AND updated_at < ?`,
			StatusCompleted, StatusFailed, StatusCancelled,
			cutoff.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("prune terminal jobs: %w", err)
		}
		affected, err = res.RowsAffected()
		return err
	})
	return affected, err
}

// Remove deletes a job by identifier.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// Clear removes all jobs from the queue.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs`)
	if err != nil {
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	return res.RowsAffected()
}
