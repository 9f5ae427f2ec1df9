package clips

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a clip id does not exist.
var ErrNotFound = errors.New("clip not found")

const clipColumns = "id, job_id, title, description, thumbnail, duration, file_path, source_title, source_url, hashtags, status, uploaded_to, created_at, updated_at"

// Store owns ProcessedClip records. It shares the queue's database handle so
// clip insertion can ride the job-completion transaction.
type Store struct {
	db *sql.DB
}

// NewStore wires the clip store onto an existing database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// NewClipParams describes a clip produced by the rendering stage.
type NewClipParams struct {
	JobID       string
	Title       string
	Description string
	Thumbnail   string
	Duration    float64
	FilePath    string
	SourceTitle string
	SourceURL   string
	Hashtags    []string
}

// InsertTx inserts a clip inside an existing transaction. The queue store's
// completion flow calls this so no observer sees a completed job without its
// clips already queryable.
func InsertTx(ctx context.Context, tx *sql.Tx, params NewClipParams) (string, error) {
	hashtags, err := encodeStrings(params.Hashtags)
	if err != nil {
		return "", fmt.Errorf("encode hashtags: %w", err)
	}

	id := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO clips (
            id, job_id, title, description, thumbnail, duration, file_path,
            source_title, source_url, hashtags, status, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		params.JobID,
		params.Title,
		nullableString(params.Description),
		nullableString(params.Thumbnail),
		params.Duration,
		params.FilePath,
		nullableString(params.SourceTitle),
		nullableString(params.SourceURL),
		hashtags,
		StatusReady,
		now,
		now,
	)
	if err != nil {
		return "", fmt.Errorf("insert clip: %w", err)
	}
	return id, nil
}

// Get fetches a clip by identifier.
func (s *Store) Get(ctx context.Context, id string) (*ProcessedClip, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+clipColumns+` FROM clips WHERE id = ?`, id)
	clip, err := scanClip(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get clip: %w", err)
	}
	return clip, nil
}

// List returns the library newest first, optionally narrowed by a substring
// filter over title, description, and hashtags.
func (s *Store) List(ctx context.Context, filter string) ([]*ProcessedClip, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+clipColumns+` FROM clips ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list clips: %w", err)
	}
	defer rows.Close()

	var result []*ProcessedClip
	for rows.Next() {
		clip, err := scanClip(rows)
		if err != nil {
			return nil, err
		}
		if clip.matchesFilter(filter) {
			result = append(result, clip)
		}
	}
	return result, rows.Err()
}

// ListByJob returns clips produced by one job, oldest first.
func (s *Store) ListByJob(ctx context.Context, jobID string) ([]*ProcessedClip, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+clipColumns+` FROM clips WHERE job_id = ? ORDER BY created_at, id`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("list clips for job: %w", err)
	}
	defer rows.Close()

	var result []*ProcessedClip
	for rows.Next() {
		clip, err := scanClip(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, clip)
	}
	return result, rows.Err()
}

// CountByJob reports how many clips a job produced.
func (s *Store) CountByJob(ctx context.Context, jobID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM clips WHERE job_id = ?`, jobID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count clips: %w", err)
	}
	return count, nil
}

// MarkUploading flags a clip as having an upload in flight.
func (s *Store) MarkUploading(ctx context.Context, id string) (*ProcessedClip, error) {
	return s.mutate(ctx, id, func(clip *ProcessedClip) {
		clip.Status = StatusUploading
	})
}

// MarkUploaded records a completed upload. The platform joins UploadedTo if
// not already present; repeated calls for the same platform are idempotent.
func (s *Store) MarkUploaded(ctx context.Context, id string, platform Platform) (*ProcessedClip, error) {
	if _, ok := platformSet[platform]; !ok {
		return nil, fmt.Errorf("unknown platform %q", platform)
	}
	return s.mutate(ctx, id, func(clip *ProcessedClip) {
		clip.Status = StatusUploaded
		if !clip.Uploaded(platform) {
			clip.UploadedTo = append(clip.UploadedTo, platform)
		}
	})
}

// Remove deletes a clip record. The rendered file on disk is untouched.
func (s *Store) Remove(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM clips WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("remove clip: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove clip: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) mutate(ctx context.Context, id string, mutate func(*ProcessedClip)) (*ProcessedClip, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin clip tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT `+clipColumns+` FROM clips WHERE id = ?`, id)
	clip, err := scanClip(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get clip: %w", err)
	}

	mutate(clip)
	clip.UpdatedAt = time.Now().UTC()

	uploadedTo, err := encodePlatforms(clip.UploadedTo)
	if err != nil {
		return nil, fmt.Errorf("encode uploaded platforms: %w", err)
	}
	_, err = tx.ExecContext(
		ctx,
		`UPDATE clips SET status = ?, uploaded_to = ?, updated_at = ? WHERE id = ?`,
		clip.Status,
		uploadedTo,
		clip.UpdatedAt.Format(time.RFC3339Nano),
		clip.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update clip: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit clip update: %w", err)
	}
	return clip, nil
}

func scanClip(scanner interface{ Scan(dest ...any) error }) (*ProcessedClip, error) {
	var (
		id          string
		jobID       string
		title       string
		description sql.NullString
		thumbnail   sql.NullString
		duration    sql.NullFloat64
		filePath    string
		sourceTitle sql.NullString
		sourceURL   sql.NullString
		hashtagsRaw sql.NullString
		statusStr   string
		uploadedRaw sql.NullString
		createdRaw  string
		updatedRaw  string
	)

	if err := scanner.Scan(
		&id,
		&jobID,
		&title,
		&description,
		&thumbnail,
		&duration,
		&filePath,
		&sourceTitle,
		&sourceURL,
		&hashtagsRaw,
		&statusStr,
		&uploadedRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	clip := &ProcessedClip{
		ID:          id,
		JobID:       jobID,
		Title:       title,
		Description: description.String,
		Thumbnail:   thumbnail.String,
		Duration:    duration.Float64,
		FilePath:    filePath,
		SourceTitle: sourceTitle.String,
		SourceURL:   sourceURL.String,
		Status:      Status(statusStr),
	}

	if hashtagsRaw.Valid && hashtagsRaw.String != "" {
		if err := json.Unmarshal([]byte(hashtagsRaw.String), &clip.Hashtags); err != nil {
			return nil, fmt.Errorf("decode hashtags: %w", err)
		}
	}
	if uploadedRaw.Valid && uploadedRaw.String != "" {
		if err := json.Unmarshal([]byte(uploadedRaw.String), &clip.UploadedTo); err != nil {
			return nil, fmt.Errorf("decode uploaded platforms: %w", err)
		}
	}

	if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		clip.CreatedAt = created
	}
	if updated, err := time.Parse(time.RFC3339Nano, updatedRaw); err == nil {
		clip.UpdatedAt = updated
	}
	return clip, nil
}

func encodeStrings(values []string) (any, error) {
	if len(values) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func encodePlatforms(values []Platform) (any, error) {
	if len(values) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
