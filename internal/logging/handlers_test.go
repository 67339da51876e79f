package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestNewTeeHandlerCollapses(t *testing.T) {
	if _, ok := newTeeHandler(nil, nil).(nopHandler); !ok {
		t.Fatal("expected nop handler when both sides are nil")
	}
	var buf bytes.Buffer
	console := slog.NewJSONHandler(&buf, nil)
	if h := newTeeHandler(console, nil); h != console {
		t.Fatal("expected console handler returned unwrapped")
	}
}

func TestTeeHandlerRespectsPerSideLevel(t *testing.T) {
	var consoleBuf, fileBuf bytes.Buffer
	h := newTeeHandler(
		slog.NewTextHandler(&consoleBuf, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewTextHandler(&fileBuf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)
	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected tee enabled for debug")
	}

	logger := slog.New(h).With("component", "dispatch")
	logger.Debug("queued")
	logger.Info("started")

	if strings.Contains(consoleBuf.String(), "queued") {
		t.Fatalf("console received debug record: %q", consoleBuf.String())
	}
	for _, want := range []string{"queued", "started", "component=dispatch"} {
		if !strings.Contains(fileBuf.String(), want) {
			t.Fatalf("file log missing %q: %q", want, fileBuf.String())
		}
	}
}

func TestWithSessionStampsRecords(t *testing.T) {
	var buf bytes.Buffer
	slog.New(withSession(slog.NewTextHandler(&buf, nil), "abc")).WithGroup("g").Info("hello")
	if !strings.Contains(buf.String(), "session_id=abc") {
		t.Fatalf("expected session id in %q", buf.String())
	}
}
