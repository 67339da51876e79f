package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"scribe/internal/config"
	"scribe/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventJobFailed, notifications.Payload{"name": "a.wav"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:  "job failed",
			event: notifications.EventJobFailed,
			payload: notifications.Payload{
				"name":        "lecture.mp4",
				"stage":       "transcribe",
				"error":       errors.New("model crashed"),
				"quarantined": true,
			},
			expectTitle:    "Scribe - Job Failed",
			expectMessage:  "❌ lecture.mp4 failed at transcribe: model crashed\nMoved to quarantine",
			expectTags:     "scribe,job,failed",
			expectPriority: "high",
		},
		{
			name:  "job completed",
			event: notifications.EventJobCompleted,
			payload: notifications.Payload{
				"name":     "a.wav",
				"segments": 2,
				"duration": 1500 * time.Millisecond,
			},
			expectTitle:   "Scribe - Transcribed",
			expectMessage: "✅ a.wav: 2 subtitle cues in 2s",
			expectTags:    "scribe,job,completed",
		},
		{
			name:          "run completed",
			event:         notifications.EventRunCompleted,
			payload:       notifications.Payload{"processed": 3, "failed": 0, "duration": 90 * time.Second},
			expectTitle:   "Scribe - Run Complete",
			expectMessage: "Transcribed 3 file(s) in 1m30s",
			expectTags:    "scribe,run,completed",
		},
		{
			name:          "run completed with errors",
			event:         notifications.EventRunCompleted,
			payload:       notifications.Payload{"processed": 2, "failed": 1, "duration": time.Duration(0)},
			expectTitle:   "Scribe - Run Complete (with errors)",
			expectMessage: "2 succeeded, 1 failed in 0s",
			expectTags:    "scribe,run,completed",
		},
		{
			name:           "test",
			event:          notifications.EventTest,
			expectTitle:    "Scribe - Test",
			expectMessage:  "🧪 Notification system test",
			expectTags:     "scribe,test",
			expectPriority: "low",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, _ := io.ReadAll(r.Body)
				captured.body = string(body)
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5
			cfg.Notifications.OnSuccess = true

			svc := notifications.NewService(&cfg)
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceSuppressesQuietEvents(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	svc := notifications.NewService(&cfg)
	quiet := []struct {
		event   notifications.Event
		payload notifications.Payload
	}{
		{notifications.EventJobCompleted, notifications.Payload{"name": "a.wav"}},
		{notifications.EventRunCompleted, notifications.Payload{"processed": 0, "failed": 0}},
		{notifications.Event("unknown"), nil},
	}
	for _, q := range quiet {
		if err := svc.Publish(context.Background(), q.event, q.payload); err != nil {
			t.Fatalf("expected no error for %s, got %v", q.event, err)
		}
	}
	if calls != 0 {
		t.Fatalf("expected no requests, got %d", calls)
	}
}

func TestNtfyServiceReportsHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic reserved", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	err := notifications.NewService(&cfg).Publish(context.Background(), notifications.EventTest, nil)
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected 403 error, got %v", err)
	}
}
