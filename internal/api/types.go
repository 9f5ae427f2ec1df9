package api

import (
	"time"

	"trendclip/internal/clips"
	"trendclip/internal/joblog"
	"trendclip/internal/queue"
	"trendclip/internal/sources"
	"trendclip/internal/stage"
)

// Job is the wire representation of a queue job.
type Job struct {
	ID           string       `json:"id"`
	SourceURL    string       `json:"sourceUrl"`
	SourceType   sources.Type `json:"sourceType"`
	Title        string       `json:"title,omitempty"`
	Thumbnail    string       `json:"thumbnail,omitempty"`
	Duration     float64      `json:"duration,omitempty"`
	Status       queue.Status `json:"status"`
	Progress     int          `json:"progress"`
	CurrentTask  string       `json:"currentTask,omitempty"`
	ErrorMessage string       `json:"errorMessage,omitempty"`
	RetryCount   int          `json:"retryCount"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// NewJob converts a stored job to its wire form.
func NewJob(job *queue.Job) Job {
	return Job{
		ID:           job.ID,
		SourceURL:    job.SourceURL,
		SourceType:   job.SourceType,
		Title:        job.Title,
		Thumbnail:    job.Thumbnail,
		Duration:     job.Duration,
		Status:       job.Status,
		Progress:     job.Progress,
		CurrentTask:  job.CurrentTask,
		ErrorMessage: job.ErrorMessage,
		RetryCount:   job.RetryCount,
		CreatedAt:    job.CreatedAt,
		UpdatedAt:    job.UpdatedAt,
	}
}

// NewJobs converts a slice of stored jobs.
func NewJobs(jobs []*queue.Job) []Job {
	out := make([]Job, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, NewJob(job))
	}
	return out
}

// Clip is the wire representation of a processed clip.
type Clip struct {
	ID          string           `json:"id"`
	JobID       string           `json:"jobId"`
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	Thumbnail   string           `json:"thumbnail,omitempty"`
	Duration    float64          `json:"duration"`
	FilePath    string           `json:"filePath"`
	SourceTitle string           `json:"sourceTitle,omitempty"`
	SourceURL   string           `json:"sourceUrl,omitempty"`
	Hashtags    []string         `json:"hashtags"`
	Status      clips.Status     `json:"status"`
	UploadedTo  []clips.Platform `json:"uploadedTo"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// NewClip converts a stored clip to its wire form.
func NewClip(clip *clips.ProcessedClip) Clip {
	hashtags := clip.Hashtags
	if hashtags == nil {
		hashtags = []string{}
	}
	uploaded := clip.UploadedTo
	if uploaded == nil {
		uploaded = []clips.Platform{}
	}
	return Clip{
		ID:          clip.ID,
		JobID:       clip.JobID,
		Title:       clip.Title,
		Description: clip.Description,
		Thumbnail:   clip.Thumbnail,
		Duration:    clip.Duration,
		FilePath:    clip.FilePath,
		SourceTitle: clip.SourceTitle,
		SourceURL:   clip.SourceURL,
		Hashtags:    hashtags,
		Status:      clip.Status,
		UploadedTo:  uploaded,
		CreatedAt:   clip.CreatedAt,
		UpdatedAt:   clip.UpdatedAt,
	}
}

// NewClips converts a slice of stored clips.
func NewClips(list []*clips.ProcessedClip) []Clip {
	out := make([]Clip, 0, len(list))
	for _, clip := range list {
		out = append(out, NewClip(clip))
	}
	return out
}

// LogEntry is the wire representation of a dashboard log line.
type LogEntry struct {
	ID        string       `json:"id"`
	Timestamp time.Time    `json:"timestamp"`
	Level     joblog.Level `json:"level"`
	Message   string       `json:"message"`
	Details   string       `json:"details,omitempty"`
	JobID     string       `json:"jobId,omitempty"`
}

// NewLogEntry converts a stored log entry to its wire form.
func NewLogEntry(entry *joblog.Entry) LogEntry {
	return LogEntry{
		ID:        entry.ID,
		Timestamp: entry.Timestamp,
		Level:     entry.Level,
		Message:   entry.Message,
		Details:   entry.Details,
		JobID:     entry.JobID,
	}
}

// NewLogEntries converts a slice of stored log entries.
func NewLogEntries(entries []*joblog.Entry) []LogEntry {
	out := make([]LogEntry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, NewLogEntry(entry))
	}
	return out
}

// Stats mirrors the dashboard overview counters.
type Stats struct {
	TotalProcessed        int     `json:"totalProcessed"`
	TotalFailed           int     `json:"totalFailed"`
	ActiveJobs            int     `json:"activeJobs"`
	QueuedJobs            int     `json:"queuedJobs"`
	TotalClips            int     `json:"totalClips"`
	AverageProcessingTime float64 `json:"averageProcessingTime"`
}

// StageHealth reports one pipeline stage's readiness.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// NewStageHealth converts stage health results to their wire form.
func NewStageHealth(results []stage.Health) []StageHealth {
	out := make([]StageHealth, 0, len(results))
	for _, result := range results {
		out = append(out, StageHealth{Name: result.Name, Ready: result.Ready, Detail: result.Detail})
	}
	return out
}

// QueueCounts summarizes jobs per lifecycle bucket.
type QueueCounts struct {
	Total     int `json:"total"`
	Queued    int `json:"queued"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
}

// NewQueueCounts converts a queue health summary to its wire form.
func NewQueueCounts(health queue.HealthSummary) QueueCounts {
	return QueueCounts{
		Total:     health.Total,
		Queued:    health.Queued,
		Active:    health.Active,
		Completed: health.Completed,
		Failed:    health.Failed,
		Cancelled: health.Cancelled,
	}
}

// StatusReport is the daemon's answer to GET /api/status.
type StatusReport struct {
	Version string        `json:"version"`
	Started time.Time     `json:"started"`
	Queue   QueueCounts   `json:"queue"`
	Stages  []StageHealth `json:"stages"`
}

// SubmitRequest is the body of POST /api/jobs.
type SubmitRequest struct {
	SourceURL  string       `json:"sourceUrl"`
	SourceType sources.Type `json:"sourceType"`
}

// UploadedRequest is the body of POST /api/clips/{id}/uploaded.
type UploadedRequest struct {
	Platform string `json:"platform"`
}

// ErrorResponse is the envelope every error status carries.
type ErrorResponse struct {
	Error string `json:"error"`
}
