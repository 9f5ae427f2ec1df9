package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"trendclip/internal/sources"
)

const jobColumns = "id, source_url, source_type, title, thumbnail, duration, status, progress, current_task, error_message, retry_count, created_at, updated_at"

// NewJobParams describes a submission accepted by NewJob.
type NewJobParams struct {
	SourceURL  string
	SourceType sources.Type
	Title      string
	Thumbnail  string
	Duration   float64
}

// NewJob validates the source and inserts a job in the queued state.
// Validation failures surface as *sources.InvalidSourceError before anything
// is persisted.
func (s *Store) NewJob(ctx context.Context, params NewJobParams) (*Job, error) {
	if err := sources.Validate(params.SourceURL, params.SourceType); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)
	id := uuid.NewString()

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO jobs (
            id, source_url, source_type, title, thumbnail, duration,
            status, progress, current_task, retry_count, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, 0, ?, ?)`,
		id,
		params.SourceURL,
		string(params.SourceType),
		nullableString(params.Title),
		nullableString(params.Thumbnail),
		params.Duration,
		StatusQueued,
		"Waiting in queue",
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a job by identifier. Missing jobs return ErrNotFound.
func (s *Store) GetByID(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// List returns a snapshot of jobs filtered by status set (or all jobs when no
// status is provided), newest first.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + jobColumns + ` FROM jobs`
	orderClause := ` ORDER BY created_at DESC, id DESC`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// NextQueued returns the oldest queued job, or nil when the queue is drained.
// Admission is FIFO by creation time.
func (s *Store) NextQueued(ctx context.Context) (*Job, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE status = ? ORDER BY created_at, id LIMIT 1`,
		StatusQueued,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next queued job: %w", err)
	}
	return job, nil
}

// CountActive returns the number of jobs currently occupying a concurrency slot.
func (s *Store) CountActive(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM jobs WHERE status IN (?, ?, ?, ?)`,
		StatusDownloading, StatusTranscribing, StatusClipping, StatusRendering,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active jobs: %w", err)
	}
	return count, nil
}

// UpdateProgress persists a progress report for an active job. Reports against
// jobs that have left the active states are dropped silently so a lagging
// executor cannot resurrect a cancelled job's progress display.
func (s *Store) UpdateProgress(ctx context.Context, id string, percent int, task string) error {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(
			ctx,
			`UPDATE jobs SET progress = ?, current_task = ?, updated_at = ?
             WHERE id = ? AND status IN (?, ?, ?, ?)`,
			percent,
			nullableString(task),
			time.Now().UTC().Format(time.RFC3339Nano),
			id,
			StatusDownloading, StatusTranscribing, StatusClipping, StatusRendering,
		)
		if err != nil {
			return fmt.Errorf("update progress: %w", err)
		}
		return nil
	})
}

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates queue state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusQueued:
			health.Queued += count
		case StatusCompleted:
			health.Completed += count
		case StatusFailed:
			health.Failed += count
		case StatusCancelled:
			health.Cancelled += count
		default:
			if IsActiveStatus(status) {
				health.Active += count
			}
		}
	}
	return health, nil
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id           string
		sourceURL    string
		sourceType   string
		title        sql.NullString
		thumbnail    sql.NullString
		duration     sql.NullFloat64
		statusStr    string
		progress     sql.NullInt64
		currentTask  sql.NullString
		errorMessage sql.NullString
		retryCount   sql.NullInt64
		createdRaw   string
		updatedRaw   string
	)

	if err := scanner.Scan(
		&id,
		&sourceURL,
		&sourceType,
		&title,
		&thumbnail,
		&duration,
		&statusStr,
		&progress,
		&currentTask,
		&errorMessage,
		&retryCount,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:           id,
		SourceURL:    sourceURL,
		SourceType:   sources.Type(sourceType),
		Title:        title.String,
		Thumbnail:    thumbnail.String,
		Duration:     duration.Float64,
		Status:       Status(statusStr),
		Progress:     int(progress.Int64),
		CurrentTask:  currentTask.String,
		ErrorMessage: errorMessage.String,
		RetryCount:   int(retryCount.Int64),
	}

	if created, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	return job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
