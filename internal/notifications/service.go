package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"repack/internal/config"
)

const userAgent = "repack/0.1.0"

// Service defines the notification surface exposed to the pipeline and watcher.
type Service interface {
	NotifyJobComplete(ctx context.Context, title, archivePath string) error
	NotifyJobFailed(ctx context.Context, title string, cause error) error
	NotifyWatchDrained(ctx context.Context, processed, failed int, duration time.Duration) error
	TestNotification(ctx context.Context) error
}

// NewService returns an ntfy-backed Service, or a noop one when the topic
// is left blank so callers never have to branch on configuration.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &ntfyService{
		endpoint:     topic,
		client:       &http.Client{Timeout: timeout},
		jobComplete:  cfg.Notifications.JobComplete,
		jobFailed:    cfg.Notifications.JobFailed,
		watchDrained: cfg.Notifications.WatchDrained,
	}
}

// note is one outgoing ntfy message.
type note struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint     string
	client       *http.Client
	jobComplete  bool
	jobFailed    bool
	watchDrained bool
}

func (n *ntfyService) NotifyJobComplete(ctx context.Context, title, archivePath string) error {
	if !n.jobComplete {
		return nil
	}
	message := fmt.Sprintf("✅ Packaged: %s", strings.TrimSpace(title))
	if archivePath = strings.TrimSpace(archivePath); archivePath != "" {
		message += "\nFile: " + archivePath
	}
	return n.publish(ctx, note{
		title:    "Repack - Complete",
		message:  message,
		tags:     []string{"repack", "job", "completed"},
		priority: "high",
	})
}

func (n *ntfyService) NotifyJobFailed(ctx context.Context, title string, cause error) error {
	if !n.jobFailed {
		return nil
	}
	headline := "❌ Failed"
	if title = strings.TrimSpace(title); title != "" {
		headline += ": " + title
	}
	detail := "unknown error"
	if cause != nil {
		detail = strings.TrimSpace(cause.Error())
	}
	return n.publish(ctx, note{
		title:    "Repack - Failed",
		message:  headline + "\n" + detail,
		tags:     []string{"repack", "job", "failed"},
		priority: "high",
	})
}

func (n *ntfyService) NotifyWatchDrained(ctx context.Context, processed, failed int, duration time.Duration) error {
	if !n.watchDrained {
		return nil
	}
	if duration < 0 {
		duration = 0
	}
	elapsed := duration.Round(time.Second).String()

	msg := note{tags: []string{"repack", "watch", "drained"}}
	if failed == 0 {
		msg.title = "Repack - Drop Folder Clear"
		msg.message = fmt.Sprintf("Processed %d items in %s", processed, elapsed)
	} else {
		msg.title = "Repack - Drop Folder Clear (with errors)"
		msg.message = fmt.Sprintf("%d succeeded, %d failed in %s", processed, failed, elapsed)
	}
	return n.publish(ctx, msg)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.publish(ctx, note{
		title:    "Repack - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"repack", "test"},
		priority: "low",
	})
}

func (n *ntfyService) publish(ctx context.Context, msg note) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.message))
	if err != nil {
		return fmt.Errorf("create ntfy request: %w", err)
	}
	headers := map[string]string{
		"User-Agent":   userAgent,
		"Content-Type": "text/plain; charset=utf-8",
		"Title":        msg.title,
		"Tags":         strings.Join(msg.tags, ","),
	}
	if p := msg.priority; p != "" && p != "default" {
		headers["Priority"] = p
	}
	for name, value := range headers {
		if value != "" {
			req.Header.Set(name, value)
		}
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post to ntfy: %w", err)
	}
	defer resp.Body.Close()
	return checkNtfyResponse(resp)
}

// checkNtfyResponse drains the body so the connection is reusable, keeping a
// short snippet for the error message on failure.
func checkNtfyResponse(resp *http.Response) error {
	if resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
}

type noopService struct{}

func (noopService) NotifyJobComplete(context.Context, string, string) error { return nil }
func (noopService) NotifyJobFailed(context.Context, string, error) error    { return nil }
func (noopService) NotifyWatchDrained(context.Context, int, int, time.Duration) error {
	return nil
}
func (noopService) TestNotification(context.Context) error { return nil }
