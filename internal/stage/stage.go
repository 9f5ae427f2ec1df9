package stage

import (
	"context"
	"log/slog"

	"trendclip/internal/clips"
	"trendclip/internal/queue"
	"trendclip/internal/settings"
)

// Handler describes the contract the workflow manager needs from each
// pipeline stage.
type Handler interface {
	Execute(context.Context, *Env) error
	HealthCheck(context.Context) Health
}

// LoggerAware lets the manager hand a job-scoped logger to a handler before
// execution.
type LoggerAware interface {
	SetLogger(*slog.Logger)
}

// Env carries one job through the stage sequence. Each stage reads the
// artifacts of its predecessors and appends its own; the settings snapshot is
// fixed at admission and never re-read mid-pipeline.
type Env struct {
	Job      *queue.Job
	Settings settings.AppSettings
	Workdir  string

	// Report forwards a progress update to the queue manager. Always
	// non-nil during execution.
	Report func(percent int, task string)

	Media      *MediaFile
	Transcript *Transcript
	Plans      []ClipPlan
	Clips      []clips.NewClipParams
}

// Progress is a nil-safe Report call.
func (e *Env) Progress(percent int, task string) {
	if e.Report != nil {
		e.Report(percent, task)
	}
}

// MediaFile is the downloaded source video.
type MediaFile struct {
	Path     string
	Title    string
	Duration float64
}

// Segment is one span of transcribed speech.
type Segment struct {
	Start float64
	End   float64
	Text  string
}

// Transcript is the transcription stage's output, segments in time order.
type Transcript struct {
	Language string
	Segments []Segment
}

// Duration returns the time covered from the first to the last segment.
func (t *Transcript) Duration() float64 {
	if t == nil || len(t.Segments) == 0 {
		return 0
	}
	return t.Segments[len(t.Segments)-1].End - t.Segments[0].Start
}

// ClipPlan is a highlight window the clipping stage selected for rendering.
type ClipPlan struct {
	Title       string
	Description string
	Start       float64
	End         float64
	Hashtags    []string
}

// Duration returns the planned clip length in seconds.
func (p ClipPlan) Duration() float64 {
	return p.End - p.Start
}
