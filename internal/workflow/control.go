package workflow

import (
	"context"
	"fmt"
	"time"

	"trendclip/internal/events"
	"trendclip/internal/joblog"
	"trendclip/internal/logging"
	"trendclip/internal/queue"
	"trendclip/internal/sources"
	"trendclip/internal/stage"
)

// Submit validates and enqueues a new job, then probes source metadata in
// the background so the dashboard shows a real title while the job waits.
func (m *Manager) Submit(ctx context.Context, sourceURL string, sourceType sources.Type) (*queue.Job, error) {
	job, err := m.store.NewJob(ctx, queue.NewJobParams{
		SourceURL:  sourceURL,
		SourceType: sourceType,
	})
	if err != nil {
		return nil, err
	}

	m.appendLog(ctx, joblog.LevelInfo, "Job added to queue", sourceURL, job.ID)
	m.publishJobEvent(events.TypeJobCreated, job)

	if m.prober != nil && sourceType != sources.TypeLocalFile {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			probeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
			defer cancel()

			meta, err := m.prober.Probe(probeCtx, sourceURL)
			if err != nil {
				m.logger.Debug("metadata probe failed",
					logging.String(logging.FieldJobID, job.ID), logging.Error(err))
				return
			}
			if err := m.store.UpdateMetadata(probeCtx, job.ID, meta.Title, meta.Thumbnail, meta.Duration); err != nil {
				m.logger.Debug("metadata update failed",
					logging.String(logging.FieldJobID, job.ID), logging.Error(err))
				return
			}
			if updated, err := m.store.GetByID(probeCtx, job.ID); err == nil {
				m.publishJobEvent(events.TypeJobUpdated, updated)
			}
		}()
	}
	return job, nil
}

// Cancel stops a job. Queued jobs are cancelled immediately. Active jobs are
// asked to stop cooperatively; if the executor does not acknowledge within
// the grace period the transition is forced and the slot reclaimed.
func (m *Manager) Cancel(ctx context.Context, id string) error {
	job, err := m.store.GetByID(ctx, id)
	if err != nil {
		return err
	}

	switch {
	case job.Status == queue.StatusQueued:
		cancelled, err := m.store.CancelFrom(ctx, id, queue.StatusQueued)
		if err != nil {
			return err
		}
		m.publishJobEvent(events.TypeJobCancelled, cancelled)
		m.appendLog(ctx, joblog.LevelInfo, "Job cancelled", "", id)
		return nil

	case queue.IsActiveStatus(job.Status):
		m.mu.Lock()
		stop, running := m.executors[id]
		m.mu.Unlock()

		if !running {
			// Active in the store but no executor: interrupted by a
			// crash. Force the transition directly.
			return m.forceCancel(ctx, id)
		}

		stop()
		deadline := time.Now().Add(m.cancelGrace)
		for time.Now().Before(deadline) {
			current, err := m.store.GetByID(ctx, id)
			if err != nil {
				return err
			}
			if queue.IsTerminalStatus(current.Status) {
				return nil
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(50 * time.Millisecond):
			}
		}
		return m.forceCancel(ctx, id)

	default:
		return fmt.Errorf("%w: status is %s", queue.ErrNotCancellable, job.Status)
	}
}

// forceCancel transitions whatever non-terminal status the job currently
// holds to cancelled.
func (m *Manager) forceCancel(ctx context.Context, id string) error {
	job, err := m.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if queue.IsTerminalStatus(job.Status) {
		return nil
	}
	cancelled, err := m.store.CancelFrom(ctx, id, job.Status)
	if err != nil {
		return err
	}
	m.publishJobEvent(events.TypeJobCancelled, cancelled)
	m.appendLog(ctx, joblog.LevelInfo, "Job cancelled", "cancellation was forced after the grace period", id)
	return nil
}

// Retry returns a failed job to the queue. The next admission captures a
// fresh settings snapshot.
func (m *Manager) Retry(ctx context.Context, id string) (*queue.Job, error) {
	job, err := m.store.Retry(ctx, id)
	if err != nil {
		return nil, err
	}
	m.appendLog(ctx, joblog.LevelInfo, "Job queued for retry",
		fmt.Sprintf("attempt %d", job.RetryCount+1), id)
	m.publishJobEvent(events.TypeJobUpdated, job)
	return job, nil
}

// DashboardStats aggregates queue and library counters for the dashboard's
// overview cards.
type DashboardStats struct {
	TotalProcessed        int     `json:"totalProcessed"`
	TotalFailed           int     `json:"totalFailed"`
	ActiveJobs            int     `json:"activeJobs"`
	QueuedJobs            int     `json:"queuedJobs"`
	TotalClips            int     `json:"totalClips"`
	AverageProcessingTime float64 `json:"averageProcessingTime"`
}

// Stats computes dashboard statistics from the stores.
func (m *Manager) Stats(ctx context.Context) (DashboardStats, error) {
	health, err := m.store.Health(ctx)
	if err != nil {
		return DashboardStats{}, err
	}

	stats := DashboardStats{
		TotalProcessed: health.Completed,
		TotalFailed:    health.Failed,
		ActiveJobs:     health.Active,
		QueuedJobs:     health.Queued,
	}

	completed, err := m.store.List(ctx, queue.StatusCompleted)
	if err != nil {
		return DashboardStats{}, err
	}
	var total time.Duration
	for _, job := range completed {
		total += job.UpdatedAt.Sub(job.CreatedAt)
	}
	if len(completed) > 0 {
		stats.AverageProcessingTime = (total / time.Duration(len(completed))).Seconds()
	}

	if m.clipStore != nil {
		all, err := m.clipStore.List(ctx, "")
		if err != nil {
			return DashboardStats{}, err
		}
		stats.TotalClips = len(all)
	}
	return stats, nil
}

// StageHealth reports readiness of every configured stage.
func (m *Manager) StageHealth(ctx context.Context) []stage.Health {
	results := make([]stage.Health, 0, len(m.stages))
	for _, pipelineStage := range m.stages {
		results = append(results, pipelineStage.Handler.HealthCheck(ctx))
	}
	return results
}
