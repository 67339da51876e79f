package journal_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"scribe/internal/journal"
	"scribe/internal/testsupport"
)

func TestRecordAndRecent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJournal(t, cfg)
	ctx := context.Background()

	if store.Path() != filepath.Join(cfg.Paths.LogDir, "journal.db") {
		t.Fatalf("unexpected journal path %q", store.Path())
	}

	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	first := journal.Entry{JobID: "job-1", SourcePath: "/in/a.wav", Name: "a.wav", Success: true,
		Segments: 2, SubtitlePath: "/out/srt/a.srt", StartedAt: started, Duration: 1500 * time.Millisecond}
	second := journal.Entry{JobID: "job-2", SourcePath: "/in/b.mp3", Name: "b.mp3", Error: "model crashed",
		StartedAt: started.Add(time.Minute), Duration: 200 * time.Millisecond}

	for _, e := range []journal.Entry{first, second} {
		if id, err := store.Record(ctx, e); err != nil || id == 0 {
			t.Fatalf("Record returned id=%d err=%v", id, err)
		}
	}

	entries, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].JobID != "job-2" || entries[0].Success || entries[0].Error != "model crashed" {
		t.Fatalf("unexpected newest entry: %+v", entries[0])
	}
	if entries[1].Attempt != 1 || !entries[1].StartedAt.Equal(started) || entries[1].Duration != 1500*time.Millisecond {
		t.Fatalf("unexpected oldest entry: %+v", entries[1])
	}

	limited, err := store.Recent(ctx, 1)
	if err != nil || len(limited) != 1 {
		t.Fatalf("Recent(1) returned %d entries, err=%v", len(limited), err)
	}
}

func TestRecordRequiresIdentity(t *testing.T) {
	store := testsupport.MustOpenJournal(t, testsupport.NewConfig(t))
	if _, err := store.Record(context.Background(), journal.Entry{Name: "a.wav"}); err == nil {
		t.Fatal("expected error without job id and source path")
	}
}

func TestFailuresSinceSuccess(t *testing.T) {
	store := testsupport.MustOpenJournal(t, testsupport.NewConfig(t))
	ctx := context.Background()

	record := func(success bool) {
		t.Helper()
		if _, err := store.Record(ctx, journal.Entry{JobID: "j", SourcePath: "/in/a.wav", Name: "a.wav", Success: success}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	record(false)
	record(false)
	if n, err := store.FailuresSinceSuccess(ctx, "/in/a.wav"); err != nil || n != 2 {
		t.Fatalf("expected 2 failures, got %d err=%v", n, err)
	}
	record(true)
	record(false)
	if n, err := store.FailuresSinceSuccess(ctx, "/in/a.wav"); err != nil || n != 1 {
		t.Fatalf("expected 1 failure after success, got %d err=%v", n, err)
	}
	if n, err := store.FailuresSinceSuccess(ctx, "/in/other.wav"); err != nil || n != 0 {
		t.Fatalf("expected 0 failures for unknown path, got %d err=%v", n, err)
	}

	attempts, err := store.Attempts(ctx, "/in/a.wav")
	if err != nil {
		t.Fatalf("Attempts: %v", err)
	}
	if len(attempts) != 4 || !attempts[2].Success {
		t.Fatalf("unexpected attempts: %+v", attempts)
	}
}

func TestStatsAndClear(t *testing.T) {
	store := testsupport.MustOpenJournal(t, testsupport.NewConfig(t))
	ctx := context.Background()

	empty, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats on empty journal: %v", err)
	}
	if empty.Total != 0 || empty.AverageDuration != 0 {
		t.Fatalf("unexpected empty stats: %+v", empty)
	}

	for i, ok := range []bool{true, true, false} {
		e := journal.Entry{JobID: "j", SourcePath: "/in/x.wav", Name: "x.wav", Success: ok, Duration: time.Duration(i+1) * time.Second}
		if _, err := store.Record(ctx, e); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 3 || stats.Succeeded != 2 || stats.Failed != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.AverageDuration != 2*time.Second {
		t.Fatalf("unexpected average duration: %v", stats.AverageDuration)
	}

	removed, err := store.Clear(ctx)
	if err != nil || removed != 3 {
		t.Fatalf("Clear removed %d err=%v", removed, err)
	}
	if entries, _ := store.Recent(ctx, 0); len(entries) != 0 {
		t.Fatalf("expected empty journal after clear, got %d", len(entries))
	}
}

func TestConcurrentRecord(t *testing.T) {
	store := testsupport.MustOpenJournal(t, testsupport.NewConfig(t))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Record(ctx, journal.Entry{JobID: "j", SourcePath: "/in/c.wav", Name: "c.wav", Success: true}); err != nil {
				t.Errorf("Record: %v", err)
			}
		}()
	}
	wg.Wait()

	stats, err := store.Stats(ctx)
	if err != nil || stats.Total != 8 {
		t.Fatalf("expected 8 entries, got %+v err=%v", stats, err)
	}
}

func TestReopenKeepsEntries(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := journal.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := store.Record(context.Background(), journal.Entry{JobID: "j", SourcePath: "/in/a.wav", Name: "a.wav"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := testsupport.MustOpenJournal(t, cfg)
	entries, err := reopened.Recent(context.Background(), 0)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected 1 entry after reopen, got %d err=%v", len(entries), err)
	}
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := journal.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = store.Close()

	db, err := sql.Open("sqlite", cfg.JournalPath())
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = db.Close()

	if _, err := journal.Open(cfg); !errors.Is(err, journal.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}
