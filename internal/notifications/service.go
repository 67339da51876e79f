package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"scribe/internal/config"
)

const userAgent = "scribe/0.1.0"

// Event names a notification.
type Event string

const (
	EventJobCompleted Event = "job_completed"
	EventJobFailed    Event = "job_failed"
	EventRunCompleted Event = "run_completed"
	EventTest         Event = "test"
)

// Payload carries event fields. Keys used per event:
//
//	job_completed: name, segments, duration
//	job_failed:    name, stage, error, quarantined
//	run_completed: processed, failed, duration
type Payload map[string]any

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds an ntfy-backed service, or a no-op when no topic is set.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint:  topic,
		client:    &http.Client{Timeout: timeout},
		onSuccess: cfg.Notifications.OnSuccess,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint  string
	client    *http.Client
	onSuccess bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := n.render(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) render(event Event, payload Payload) (message, bool) {
	switch event {
	case EventJobCompleted:
		if !n.onSuccess {
			return message{}, false
		}
		return message{
			title: "Scribe - Transcribed",
			body: fmt.Sprintf("✅ %s: %d subtitle cues in %s",
				payload.text("name"), payload.number("segments"), formatDuration(payload.duration("duration"))),
			tags: []string{"scribe", "job", "completed"},
		}, true
	case EventJobFailed:
		body := fmt.Sprintf("❌ %s failed", payload.text("name"))
		if stage := payload.text("stage"); stage != "" {
			body += " at " + stage
		}
		if reason := payload.text("error"); reason != "" {
			body += ": " + reason
		}
		if quarantined, _ := payload["quarantined"].(bool); quarantined {
			body += "\nMoved to quarantine"
		}
		return message{
			title:    "Scribe - Job Failed",
			body:     body,
			tags:     []string{"scribe", "job", "failed"},
			priority: "high",
		}, true
	case EventRunCompleted:
		processed, failed := payload.number("processed"), payload.number("failed")
		if processed+failed == 0 {
			return message{}, false
		}
		elapsed := formatDuration(payload.duration("duration"))
		if failed == 0 {
			return message{
				title: "Scribe - Run Complete",
				body:  fmt.Sprintf("Transcribed %d file(s) in %s", processed, elapsed),
				tags:  []string{"scribe", "run", "completed"},
			}, true
		}
		return message{
			title: "Scribe - Run Complete (with errors)",
			body:  fmt.Sprintf("%d succeeded, %d failed in %s", processed, failed, elapsed),
			tags:  []string{"scribe", "run", "completed"},
		}, true
	case EventTest:
		return message{
			title:    "Scribe - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"scribe", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" {
		req.Header.Set("Priority", msg.priority)
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

func (p Payload) text(key string) string {
	switch v := p[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	case fmt.Stringer:
		return v.String()
	default:
		return ""
	}
}

func (p Payload) number(key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}

func (p Payload) duration(key string) time.Duration {
	d, _ := p[key].(time.Duration)
	return d
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d <= 0 {
		return "0s"
	}
	return d.String()
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
