package queue

import (
	"strings"
	"time"

	"trendclip/internal/sources"
)

// Status represents the lifecycle of a job.
type Status string

const (
	StatusQueued       Status = "queued"
	StatusDownloading  Status = "downloading"
	StatusTranscribing Status = "transcribing"
	StatusClipping     Status = "clipping"
	StatusRendering    Status = "rendering"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
	StatusCancelled    Status = "cancelled"
)

var allStatuses = []Status{
	StatusQueued,
	StatusDownloading,
	StatusTranscribing,
	StatusClipping,
	StatusRendering,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// activeStatuses are the four pipeline stages that count against the
// concurrency cap.
var activeStatuses = map[Status]struct{}{
	StatusDownloading:  {},
	StatusTranscribing: {},
	StatusClipping:     {},
	StatusRendering:    {},
}

// transitions is the complete set of legal status edges. Any edge absent here
// is rejected by the store.
var transitions = map[Status]map[Status]struct{}{
	StatusQueued: {
		StatusDownloading: {},
		StatusCancelled:   {},
	},
	StatusDownloading: {
		StatusTranscribing: {},
		StatusFailed:       {},
		StatusCancelled:    {},
	},
	StatusTranscribing: {
		StatusClipping:  {},
		StatusFailed:    {},
		StatusCancelled: {},
	},
	StatusClipping: {
		StatusRendering: {},
		StatusFailed:    {},
		StatusCancelled: {},
	},
	StatusRendering: {
		StatusCompleted: {},
		StatusFailed:    {},
		StatusCancelled: {},
	},
	StatusFailed: {
		StatusQueued: {},
	},
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// CanTransition reports whether the from → to edge is part of the state machine.
func CanTransition(from, to Status) bool {
	targets, ok := transitions[from]
	if !ok {
		return false
	}
	_, ok = targets[to]
	return ok
}

// IsActiveStatus reports whether a status occupies a concurrency slot.
func IsActiveStatus(status Status) bool {
	_, ok := activeStatuses[status]
	return ok
}

// IsTerminalStatus reports whether no further transition except an explicit
// retry is possible. Failed jobs are terminal until retried.
func IsTerminalStatus(status Status) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// ActiveStatuses returns the stage statuses in pipeline order.
func ActiveStatuses() []Status {
	return []Status{StatusDownloading, StatusTranscribing, StatusClipping, StatusRendering}
}

// Job represents one source-to-clips processing request persisted in SQLite.
type Job struct {
	ID           string
	SourceURL    string
	SourceType   sources.Type
	Title        string
	Thumbnail    string
	Duration     float64
	Status       Status
	Progress     int
	CurrentTask  string
	ErrorMessage string
	RetryCount   int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsActive returns true when the job occupies a concurrency slot.
func (j Job) IsActive() bool {
	return IsActiveStatus(j.Status)
}

// IsTerminal returns true when the job has reached a terminal status.
func (j Job) IsTerminal() bool {
	return IsTerminalStatus(j.Status)
}

// HealthSummary describes aggregated queue counts per key lifecycle states.
type HealthSummary struct {
	Total     int
	Queued    int
	Active    int
	Completed int
	Failed    int
	Cancelled int
}
