package workflow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"trendclip/internal/api"
	"trendclip/internal/clips"
	"trendclip/internal/events"
	"trendclip/internal/joblog"
	"trendclip/internal/logging"
	"trendclip/internal/pipeline"
	"trendclip/internal/queue"
	"trendclip/internal/settings"
	"trendclip/internal/stage"
)

// runJob drives one admitted job through the stage sequence. The job is
// already in the first stage's status when this runs. Exactly one terminal
// outcome is reported: completed with clips, failed with a reason, or
// cancelled.
func (m *Manager) runJob(ctx context.Context, job *queue.Job, snapshot settings.AppSettings) {
	jobLogger := m.logger.With(logging.String(logging.FieldJobID, job.ID))
	start := time.Now()

	workdir := filepath.Join(m.cfg.Paths.StagingDir, job.ID)
	if err := os.MkdirAll(workdir, 0o755); err != nil {
		m.failJob(ctx, jobLogger, job, m.stages[0].Status,
			fmt.Sprintf("cannot create staging directory: %v", err))
		return
	}
	defer os.RemoveAll(workdir)

	env := &stage.Env{
		Job:      job,
		Settings: snapshot,
		Workdir:  workdir,
		Report: func(percent int, task string) {
			m.reportProgress(ctx, job.ID, percent, task)
		},
	}

	m.appendLog(ctx, joblog.LevelInfo, "Job admitted for processing", job.SourceURL, job.ID)

	current := m.stages[0].Status
	for i, pipelineStage := range m.stages {
		if i > 0 {
			updated, err := m.store.Transition(ctx, job.ID, current, pipelineStage.Status)
			if err != nil {
				// A forced cancel won the race; stop quietly.
				jobLogger.Warn("stage transition refused",
					logging.String(logging.FieldStage, pipelineStage.Name), logging.Error(err))
				return
			}
			current = pipelineStage.Status
			env.Job = updated
			m.publishJobEvent(events.TypeJobUpdated, updated)
		}

		stageLogger := jobLogger.With(logging.String(logging.FieldStage, pipelineStage.Name))
		if aware, ok := pipelineStage.Handler.(stage.LoggerAware); ok {
			aware.SetLogger(stageLogger)
		}
		stageLogger.Info("stage started",
			logging.String(logging.FieldEventType, "stage_start"),
			logging.String("status", string(pipelineStage.Status)),
		)

		stageStart := time.Now()
		if err := pipelineStage.Handler.Execute(ctx, env); err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				m.acknowledgeCancel(context.WithoutCancel(ctx), jobLogger, job, current)
				return
			}
			stageLogger.Error("stage failed",
				logging.String(logging.FieldEventType, "stage_failure"),
				logging.Error(err),
			)
			m.failJob(ctx, jobLogger, job, current, pipeline.Message(err))
			return
		}
		stageLogger.Info("stage completed",
			logging.String(logging.FieldEventType, "stage_complete"),
			logging.Duration("stage_duration", time.Since(stageStart)),
		)

		if i == 0 && env.Media != nil {
			m.recordMetadata(ctx, job.ID, env)
		}
	}

	m.completeJob(ctx, jobLogger, job, env, time.Since(start))
}

// reportProgress persists a progress update and mirrors it to the event
// stream. Updates for jobs that left the active states are dropped by the
// store, so a lagging executor cannot repaint a cancelled job.
func (m *Manager) reportProgress(ctx context.Context, jobID string, percent int, task string) {
	if ctx.Err() != nil {
		return
	}
	if err := m.store.UpdateProgress(ctx, jobID, percent, task); err != nil {
		m.logger.Debug("progress update failed",
			logging.String(logging.FieldJobID, jobID), logging.Error(err))
		return
	}
	if m.hub != nil {
		m.hub.Publish(events.Event{
			Type:  events.TypeJobUpdated,
			JobID: jobID,
			Payload: map[string]any{
				"progress":    percent,
				"currentTask": task,
			},
		})
	}
}

// recordMetadata persists the downloaded media's title and duration onto the
// job so list views show real names instead of URLs.
func (m *Manager) recordMetadata(ctx context.Context, jobID string, env *stage.Env) {
	title := env.Job.Title
	if title == "" {
		title = env.Media.Title
	}
	if err := m.store.UpdateMetadata(ctx, jobID, title, env.Job.Thumbnail, env.Media.Duration); err != nil {
		m.logger.Debug("metadata update failed",
			logging.String(logging.FieldJobID, jobID), logging.Error(err))
	}
}

// completeJob atomically marks the job completed and inserts its clips. No
// observer sees a completed job without the clips already queryable.
func (m *Manager) completeJob(ctx context.Context, jobLogger *slog.Logger, job *queue.Job, env *stage.Env, elapsed time.Duration) {
	inserted := make([]string, 0, len(env.Clips))
	completed, err := m.store.Complete(ctx, job.ID, func(tx *sql.Tx) error {
		for _, params := range env.Clips {
			clipID, err := clips.InsertTx(ctx, tx, params)
			if err != nil {
				return err
			}
			inserted = append(inserted, clipID)
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			m.acknowledgeCancel(context.WithoutCancel(ctx), jobLogger, job, queue.StatusRendering)
			return
		}
		jobLogger.Error("failed to persist completion", logging.Error(err))
		m.failJob(ctx, jobLogger, job, queue.StatusRendering,
			fmt.Sprintf("failed to persist completion: %v", err))
		return
	}

	m.publishJobEvent(events.TypeJobCompleted, completed)
	if m.hub != nil && m.clipStore != nil {
		for _, clipID := range inserted {
			if clip, err := m.clipStore.Get(ctx, clipID); err == nil {
				m.hub.Publish(events.Event{Type: events.TypeClipCreated, JobID: job.ID, Payload: api.NewClip(clip)})
			}
		}
	}

	title := completed.Title
	if title == "" {
		title = completed.SourceURL
	}
	m.appendLog(ctx, joblog.LevelSuccess, "Job completed",
		fmt.Sprintf("%d clip(s) rendered in %s", len(inserted), elapsed.Round(time.Second)), job.ID)
	if err := m.notifier.NotifyJobCompleted(ctx, title, len(inserted)); err != nil {
		m.logger.Debug("completion notification failed", logging.Error(err))
	}

	m.noteOutcome(ctx, false)
}

func (m *Manager) failJob(ctx context.Context, jobLogger *slog.Logger, job *queue.Job, from queue.Status, message string) {
	failed, err := m.store.Fail(ctx, job.ID, from, message)
	if err != nil {
		jobLogger.Error("failed to persist failure", logging.Error(err))
		return
	}

	m.publishJobEvent(events.TypeJobFailed, failed)
	m.appendLog(ctx, joblog.LevelError, "Job failed", message, job.ID)

	title := failed.Title
	if title == "" {
		title = failed.SourceURL
	}
	if err := m.notifier.NotifyJobFailed(ctx, title, message); err != nil {
		m.logger.Debug("failure notification failed", logging.Error(err))
	}

	m.noteOutcome(ctx, true)
}

// acknowledgeCancel transitions a cooperatively cancelled job to cancelled.
// The forced path in Cancel may have beaten us here; ErrConflict and
// ErrInvalidTransition then just mean the work is already done.
func (m *Manager) acknowledgeCancel(ctx context.Context, jobLogger *slog.Logger, job *queue.Job, from queue.Status) {
	cancelled, err := m.store.CancelFrom(ctx, job.ID, from)
	if err != nil {
		if !errors.Is(err, queue.ErrConflict) && !errors.Is(err, queue.ErrInvalidTransition) {
			jobLogger.Error("failed to persist cancellation", logging.Error(err))
		}
		return
	}
	m.publishJobEvent(events.TypeJobCancelled, cancelled)
	m.appendLog(ctx, joblog.LevelInfo, "Job cancelled", "", job.ID)
}
