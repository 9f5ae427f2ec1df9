package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"trendclip/internal/pipeline"
	"trendclip/internal/settings"
)

// StatusError carries the HTTP status and error message of a failed request.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed with status %d", e.Code)
}

// IsNotFound reports whether the error is a 404 from the daemon.
func IsNotFound(err error) bool {
	statusErr, ok := err.(*StatusError)
	return ok && statusErr.Code == http.StatusNotFound
}

// Client talks to a running daemon over its HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a client for the given bind address. A bare host:port is
// promoted to an http URL.
func NewClient(address string) *Client {
	baseURL := address
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("is the daemon running? %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var envelope ErrorResponse
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(data, &envelope) != nil || envelope.Error == "" {
			envelope.Error = strings.TrimSpace(string(data))
		}
		return &StatusError{Code: resp.StatusCode, Message: envelope.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// ListJobs fetches the queue, newest first.
func (c *Client) ListJobs(ctx context.Context) ([]Job, error) {
	var jobs []Job
	if err := c.do(ctx, http.MethodGet, "/api/jobs", nil, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// GetJob fetches a single job by id.
func (c *Client) GetJob(ctx context.Context, id string) (Job, error) {
	var job Job
	err := c.do(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(id), nil, &job)
	return job, err
}

// SubmitJob enqueues a new source for processing.
func (c *Client) SubmitJob(ctx context.Context, request SubmitRequest) (Job, error) {
	var job Job
	err := c.do(ctx, http.MethodPost, "/api/jobs", request, &job)
	return job, err
}

// CancelJob cancels a queued or active job.
func (c *Client) CancelJob(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/api/jobs/"+url.PathEscape(id)+"/cancel", nil, nil)
}

// RetryJob returns a failed job to the queue.
func (c *Client) RetryJob(ctx context.Context, id string) (Job, error) {
	var job Job
	err := c.do(ctx, http.MethodPost, "/api/jobs/"+url.PathEscape(id)+"/retry", nil, &job)
	return job, err
}

// ListClips fetches processed clips, optionally filtered by search text.
func (c *Client) ListClips(ctx context.Context, filter string) ([]Clip, error) {
	path := "/api/clips"
	if filter != "" {
		path += "?filter=" + url.QueryEscape(filter)
	}
	var list []Clip
	if err := c.do(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// MarkClipUploaded records a platform upload on a clip.
func (c *Client) MarkClipUploaded(ctx context.Context, id, platform string) (Clip, error) {
	var clip Clip
	err := c.do(ctx, http.MethodPost, "/api/clips/"+url.PathEscape(id)+"/uploaded",
		UploadedRequest{Platform: platform}, &clip)
	return clip, err
}

// GetSettings fetches the stored settings with API keys masked.
func (c *Client) GetSettings(ctx context.Context) (settings.AppSettings, error) {
	var record settings.AppSettings
	err := c.do(ctx, http.MethodGet, "/api/settings", nil, &record)
	return record, err
}

// UpdateSettings saves new settings. Masked keys in the payload keep their
// stored values; the response is masked again.
func (c *Client) UpdateSettings(ctx context.Context, record settings.AppSettings) (settings.AppSettings, error) {
	var saved settings.AppSettings
	err := c.do(ctx, http.MethodPut, "/api/settings", record, &saved)
	return saved, err
}

// ListLogs fetches dashboard log entries filtered by search text and level.
func (c *Client) ListLogs(ctx context.Context, search, level string) ([]LogEntry, error) {
	query := url.Values{}
	if search != "" {
		query.Set("search", search)
	}
	if level != "" {
		query.Set("level", level)
	}
	path := "/api/logs"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var entries []LogEntry
	if err := c.do(ctx, http.MethodGet, path, nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Stats fetches the dashboard overview counters.
func (c *Client) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := c.do(ctx, http.MethodGet, "/api/stats", nil, &stats)
	return stats, err
}

// Status fetches the daemon status report.
func (c *Client) Status(ctx context.Context) (StatusReport, error) {
	var report StatusReport
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &report)
	return report, err
}

// Metadata probes a source URL without enqueueing it.
func (c *Client) Metadata(ctx context.Context, sourceURL string) (pipeline.Metadata, error) {
	var meta pipeline.Metadata
	err := c.do(ctx, http.MethodGet, "/api/metadata?url="+url.QueryEscape(sourceURL), nil, &meta)
	return meta, err
}
