package transcriber

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"scribe/internal/config"
)

type slowTranscriber struct {
	active  atomic.Int32
	peak    atomic.Int32
	release chan struct{}
}

func (s *slowTranscriber) Transcribe(ctx context.Context, path string) (Result, error) {
	n := s.active.Add(1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	defer s.active.Add(-1)
	select {
	case <-s.release:
	case <-time.After(20 * time.Millisecond):
	}
	return Result{Text: path}, nil
}

func (s *slowTranscriber) Name() string { return "slow" }

func (s *slowTranscriber) Close() error { return nil }

func TestSerializeAllowsOneCallAtATime(t *testing.T) {
	inner := &slowTranscriber{release: make(chan struct{})}
	guarded := Serialize(inner)
	if Serialize(guarded) != guarded {
		t.Fatal("Serialize should not double-wrap")
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := guarded.Transcribe(context.Background(), "x"); err != nil {
				t.Errorf("Transcribe: %v", err)
			}
		}()
	}
	wg.Wait()

	if peak := inner.peak.Load(); peak != 1 {
		t.Fatalf("expected at most one concurrent call, saw %d", peak)
	}
}

func TestSerializeHonorsContextWhileWaiting(t *testing.T) {
	inner := &slowTranscriber{release: make(chan struct{})}
	guarded := Serialize(inner).(*serialized)
	guarded.slot <- struct{}{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := guarded.Transcribe(ctx, "x"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNewSelectsBackend(t *testing.T) {
	cfg := config.Default()
	backend, err := New(&cfg, nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, ok := backend.(*WhisperX); !ok {
		t.Fatalf("expected WhisperX backend, got %T", backend)
	}

	cfg.Transcription.Backend = config.BackendOpenAI
	cfg.Transcription.Serialize = true
	backend, err = New(&cfg, nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, ok := backend.(*serialized); !ok {
		t.Fatalf("expected serialized wrapper, got %T", backend)
	}
	if backend.Name() != "openai/whisper-1" {
		t.Fatalf("unexpected backend name %q", backend.Name())
	}

	cfg.Transcription.Backend = "vosk"
	if _, err := New(&cfg, nil); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestSecondsToMS(t *testing.T) {
	tests := []struct {
		in   float64
		want int64
	}{
		{0, 0},
		{-1, 0},
		{1.2344, 1234},
		{0.0006, 1},
		{61.234, 61234},
	}
	for _, tt := range tests {
		if got := secondsToMS(tt.in); got != tt.want {
			t.Errorf("secondsToMS(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
