package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"trendclip/internal/config"
)

const userAgent = "TrendClip-Go/0.1.0"

// Service defines the notification surface exposed to workflow components.
type Service interface {
	NotifyJobCompleted(ctx context.Context, title string, clipCount int) error
	NotifyJobFailed(ctx context.Context, title, reason string) error
	NotifyQueueDrained(ctx context.Context, processed, failed int, duration time.Duration) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:     topic,
		client:       &http.Client{Timeout: timeout},
		jobCompleted: cfg.Notifications.JobCompleted,
		jobFailed:    cfg.Notifications.JobFailed,
		queueDrained: cfg.Notifications.QueueDrained,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint     string
	client       *http.Client
	jobCompleted bool
	jobFailed    bool
	queueDrained bool
}

func (n *ntfyService) NotifyJobCompleted(ctx context.Context, title string, clipCount int) error {
	if !n.jobCompleted {
		return nil
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = "untitled source"
	}
	noun := "clips"
	if clipCount == 1 {
		noun = "clip"
	}
	return n.send(ctx, payload{
		title:   "TrendClip - Job Complete",
		message: fmt.Sprintf("%d %s ready from %s", clipCount, noun, title),
		tags:    []string{"trendclip", "job", "completed"},
	})
}

func (n *ntfyService) NotifyJobFailed(ctx context.Context, title, reason string) error {
	if !n.jobFailed {
		return nil
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = "untitled source"
	}
	message := fmt.Sprintf("Processing failed: %s", title)
	if reason = strings.TrimSpace(reason); reason != "" {
		message = fmt.Sprintf("%s\nReason: %s", message, reason)
	}
	return n.send(ctx, payload{
		title:    "TrendClip - Job Failed",
		message:  message,
		tags:     []string{"trendclip", "job", "failed"},
		priority: "high",
	})
}

func (n *ntfyService) NotifyQueueDrained(ctx context.Context, processed, failed int, duration time.Duration) error {
	if !n.queueDrained {
		return nil
	}
	return n.send(ctx, payload{
		title:   "TrendClip - Queue Drained",
		message: fmt.Sprintf("Processed %d job(s), %d failed, in %s", processed, failed, duration.Round(time.Second)),
		tags:    []string{"trendclip", "queue", "drained"},
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:   "TrendClip - Test",
		message: "Notifications are configured correctly",
		tags:    []string{"trendclip", "test"},
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("notification rejected: status %d", resp.StatusCode)
	}
	return nil
}

type noopService struct{}

func (noopService) NotifyJobCompleted(context.Context, string, int) error { return nil }
func (noopService) NotifyJobFailed(context.Context, string, string) error { return nil }
func (noopService) NotifyQueueDrained(context.Context, int, int, time.Duration) error {
	return nil
}
func (noopService) TestNotification(context.Context) error { return nil }
