package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"folio/internal/config"
)

const userAgent = "Folio/0.1.0"

// Service is the notification surface the ingest pipeline reports through.
type Service interface {
	NotifyIngestStarted(ctx context.Context, source string, fileCount int) error
	NotifyIngestCompleted(ctx context.Context, source string, processed, duplicates int, duration time.Duration) error
	NotifyIngestFailed(ctx context.Context, source string, err error) error
	TestNotification(ctx context.Context) error
}

// NewService builds an ntfy-backed notifier when a topic is configured and a
// noop otherwise, so callers never branch on configuration themselves.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyIngestStarted(ctx context.Context, source string, fileCount int) error {
	return n.send(ctx, payload{
		title:   "Folio - Ingest Started",
		message: fmt.Sprintf("Importing %s (%d files)", strings.TrimSpace(source), fileCount),
		tags:    []string{"folio", "ingest", "started"},
	})
}

func (n *ntfyService) NotifyIngestCompleted(ctx context.Context, source string, processed, duplicates int, duration time.Duration) error {
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}

	message := fmt.Sprintf("Imported %s: %d files in %s", strings.TrimSpace(source), processed, duration)
	if duplicates > 0 {
		message = fmt.Sprintf("%s, %d duplicates flagged", message, duplicates)
	}
	return n.send(ctx, payload{
		title:   "Folio - Ingest Complete",
		message: message,
		tags:    []string{"folio", "ingest", "completed"},
	})
}

func (n *ntfyService) NotifyIngestFailed(ctx context.Context, source string, err error) error {
	detail := "unknown"
	if err != nil {
		detail = strings.TrimSpace(err.Error())
	}
	return n.send(ctx, payload{
		title:    "Folio - Ingest Failed",
		message:  fmt.Sprintf("Import of %s failed: %s", strings.TrimSpace(source), detail),
		tags:     []string{"folio", "ingest", "error"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "Folio - Test",
		message:  "Notification system test",
		tags:     []string{"folio", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyIngestStarted(context.Context, string, int) error { return nil }
func (noopService) NotifyIngestCompleted(context.Context, string, int, int, time.Duration) error {
	return nil
}
func (noopService) NotifyIngestFailed(context.Context, string, error) error { return nil }
func (noopService) TestNotification(context.Context) error                  { return nil }
