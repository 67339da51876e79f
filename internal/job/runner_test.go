package job_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"scribe/internal/config"
	"scribe/internal/job"
	"scribe/internal/media"
	"scribe/internal/testsupport"
	"scribe/internal/transcriber"
)

func newRunner(t *testing.T, cfg *config.Config, fake *testsupport.FakeTranscriber, recorder job.Recorder) *job.Runner {
	t.Helper()
	runner, err := job.NewRunner(job.Options{
		Config:      cfg,
		Transcriber: fake,
		Recorder:    recorder,
		RunID:       "run-test",
	})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	return runner
}

func mediaFile(t *testing.T, cfg *config.Config, rel string) media.File {
	t.Helper()
	path := testsupport.WriteMedia(t, cfg.Paths.InputDir, rel, 64)
	file, ok := media.NewFile(cfg.Paths.InputDir, path)
	if !ok {
		t.Fatalf("media.NewFile rejected %s", path)
	}
	return file
}

func TestProcessWritesOutputsAndArchives(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithDirectories())
	fake := testsupport.NewFakeTranscriber()
	fake.SetResult("a.wav", transcriber.Result{
		Text: "hello world",
		Segments: []transcriber.Segment{
			{StartMS: 0, EndMS: 1500, Text: "hello"},
			{StartMS: 1500, EndMS: 3000, Text: "world"},
		},
	})
	runner := newRunner(t, cfg, fake, nil)
	file := mediaFile(t, cfg, "a.wav")

	out := runner.Process(context.Background(), file)
	if !out.Success || out.Err != nil {
		t.Fatalf("expected success, got %v", out.Err)
	}
	if out.ID == "" || out.Attempt != 1 || out.Segments != 2 {
		t.Fatalf("unexpected outcome %+v", out)
	}

	txt := testsupport.ReadFile(t, filepath.Join(cfg.Paths.TranscriptDir, "a.txt"))
	if txt != "hello world" {
		t.Fatalf("transcript = %q", txt)
	}
	srt := testsupport.ReadFile(t, filepath.Join(cfg.Paths.SubtitleDir, "a.srt"))
	want := "1\n00:00:00,000 --> 00:00:01,500\nhello\n\n2\n00:00:01,500 --> 00:00:03,000\nworld\n\n"
	if srt != want {
		t.Fatalf("srt = %q, want %q", srt, want)
	}
	archived := filepath.Join(cfg.Paths.ArchiveDir, "a.wav")
	if out.ArchivePath != archived {
		t.Fatalf("archive path = %s, want %s", out.ArchivePath, archived)
	}
	if _, err := os.Stat(archived); err != nil {
		t.Fatalf("archived file missing: %v", err)
	}
	testsupport.AssertMissing(t, file.Path)

	summary := runner.Summary()
	if summary.Processed != 1 || summary.Failed != 0 || summary.Total() != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestProcessSkipsTranscriptWhenDisabled(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithoutTranscript(), testsupport.WithDirectories())
	runner := newRunner(t, cfg, testsupport.NewFakeTranscriber(), nil)
	file := mediaFile(t, cfg, "clip.MP3")

	out := runner.Process(context.Background(), file)
	if !out.Success {
		t.Fatalf("expected success, got %v", out.Err)
	}
	if out.TranscriptPath != "" {
		t.Fatalf("unexpected transcript path %s", out.TranscriptPath)
	}
	testsupport.AssertMissing(t, filepath.Join(cfg.Paths.TranscriptDir, "clip.txt"))
	if _, err := os.Stat(filepath.Join(cfg.Paths.SubtitleDir, "clip.srt")); err != nil {
		t.Fatalf("subtitle missing: %v", err)
	}
}

func TestProcessMirrorsNestedLayout(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithDirectories())
	runner := newRunner(t, cfg, testsupport.NewFakeTranscriber(), nil)
	file := mediaFile(t, cfg, filepath.Join("show", "ep.v2.mp4"))

	out := runner.Process(context.Background(), file)
	if !out.Success {
		t.Fatalf("expected success, got %v", out.Err)
	}
	for _, path := range []string{
		filepath.Join(cfg.Paths.TranscriptDir, "show", "ep.v2.txt"),
		filepath.Join(cfg.Paths.SubtitleDir, "show", "ep.v2.srt"),
		filepath.Join(cfg.Paths.ArchiveDir, "show", "ep.v2.mp4"),
	} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected %s: %v", path, err)
		}
	}
}

func TestProcessTranscribeFailureLeavesSource(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithDirectories())
	fake := testsupport.NewFakeTranscriber()
	fake.FailWith("bad.wav", errors.New("decoder exploded"))
	runner := newRunner(t, cfg, fake, nil)
	file := mediaFile(t, cfg, "bad.wav")

	out := runner.Process(context.Background(), file)
	if out.Success {
		t.Fatal("expected failure")
	}
	if !errors.Is(out.Err, job.ErrTranscribe) {
		t.Fatalf("error %v is not ErrTranscribe", out.Err)
	}
	if _, err := os.Stat(file.Path); err != nil {
		t.Fatalf("source should remain: %v", err)
	}
	testsupport.AssertMissing(t, filepath.Join(cfg.Paths.TranscriptDir, "bad.txt"))
	testsupport.AssertMissing(t, filepath.Join(cfg.Paths.SubtitleDir, "bad.srt"))
	testsupport.AssertMissing(t, filepath.Join(cfg.Paths.ArchiveDir, "bad.wav"))

	if summary := runner.Summary(); summary.Failed != 1 || summary.Processed != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestProcessOutputFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithDirectories())
	// A regular file where the transcript directory should be.
	if err := os.RemoveAll(cfg.Paths.TranscriptDir); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := os.WriteFile(cfg.Paths.TranscriptDir, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	runner := newRunner(t, cfg, testsupport.NewFakeTranscriber(), nil)
	file := mediaFile(t, cfg, "a.wav")

	out := runner.Process(context.Background(), file)
	if !errors.Is(out.Err, job.ErrOutput) {
		t.Fatalf("error %v is not ErrOutput", out.Err)
	}
	if _, err := os.Stat(file.Path); err != nil {
		t.Fatalf("source should remain: %v", err)
	}
}

func TestProcessQuarantinesFailedSource(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithFailurePolicy(config.FailureQuarantine, 3),
		testsupport.WithDirectories(),
	)
	fake := testsupport.NewFakeTranscriber()
	fake.FailWith("bad.wav", errors.New("unsupported codec"))
	runner := newRunner(t, cfg, fake, nil)
	file := mediaFile(t, cfg, filepath.Join("sub", "bad.wav"))

	out := runner.Process(context.Background(), file)
	want := filepath.Join(cfg.Paths.QuarantineDir, "sub", "bad.wav")
	if out.QuarantinePath != want {
		t.Fatalf("quarantine path = %q, want %q", out.QuarantinePath, want)
	}
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("quarantined file missing: %v", err)
	}
	testsupport.AssertMissing(t, file.Path)
}

func TestProcessSettleFailsForVanishedFile(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithDirectories())
	cfg.Workflow.SettleSeconds = 1
	fake := testsupport.NewFakeTranscriber()
	runner := newRunner(t, cfg, fake, nil)
	file := mediaFile(t, cfg, "gone.wav")
	if err := os.Remove(file.Path); err != nil {
		t.Fatalf("remove: %v", err)
	}

	out := runner.Process(context.Background(), file)
	if !errors.Is(out.Err, job.ErrSettle) {
		t.Fatalf("error %v is not ErrSettle", out.Err)
	}
	if len(fake.Calls()) != 0 {
		t.Fatalf("transcriber should not be called, got %v", fake.Calls())
	}
}

func TestProcessWaitsForGrowingFileToSettle(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithDirectories())
	cfg.Workflow.SettleSeconds = 1
	fake := testsupport.NewFakeTranscriber()
	runner := newRunner(t, cfg, fake, nil)
	file := mediaFile(t, cfg, "upload.wav")

	appended := make(chan error, 1)
	go func() {
		time.Sleep(300 * time.Millisecond)
		f, err := os.OpenFile(file.Path, os.O_APPEND|os.O_WRONLY, 0)
		if err != nil {
			appended <- err
			return
		}
		_, err = f.Write([]byte("more audio"))
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		appended <- err
	}()

	start := time.Now()
	out := runner.Process(context.Background(), file)
	if err := <-appended; err != nil {
		t.Fatalf("append: %v", err)
	}
	if out.Err != nil {
		t.Fatalf("Process: %v", out.Err)
	}
	if elapsed := time.Since(start); elapsed < 2*time.Second {
		t.Fatalf("settled after %s, want at least two checks", elapsed)
	}
	if len(fake.Calls()) != 1 {
		t.Fatalf("transcriber calls = %v", fake.Calls())
	}
	if _, err := os.Stat(out.ArchivePath); err != nil {
		t.Fatalf("archive missing: %v", err)
	}
}

type stubProber struct {
	info media.Info
	err  error
}

func (p stubProber) Probe(context.Context, string) (media.Info, error) {
	return p.info, p.err
}

func TestProcessRejectsFileWithoutAudio(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithDirectories())
	fake := testsupport.NewFakeTranscriber()
	runner, err := job.NewRunner(job.Options{
		Config:      cfg,
		Transcriber: fake,
		Prober:      stubProber{info: media.Info{VideoStreams: 1}},
	})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	file := mediaFile(t, cfg, "silent.mp4")

	out := runner.Process(context.Background(), file)
	if !errors.Is(out.Err, job.ErrProbe) || job.Stage(out.Err) != "probe" {
		t.Fatalf("expected probe failure, got %v", out.Err)
	}
	if len(fake.Calls()) != 0 {
		t.Fatalf("transcriber should not be called, got %v", fake.Calls())
	}
	if _, err := os.Stat(file.Path); err != nil {
		t.Fatalf("source should stay in input: %v", err)
	}
}

func TestProcessRecordsProbedDuration(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithDirectories())
	fake := testsupport.NewFakeTranscriber()
	runner, err := job.NewRunner(job.Options{
		Config:      cfg,
		Transcriber: fake,
		Prober:      stubProber{info: media.Info{AudioStreams: 1, Duration: 3 * time.Second}},
	})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	out := runner.Process(context.Background(), mediaFile(t, cfg, "talk.mp3"))
	if !out.Success {
		t.Fatalf("expected success, got %v", out.Err)
	}
	if out.MediaDuration != 3*time.Second {
		t.Fatalf("unexpected media duration %v", out.MediaDuration)
	}
}

func TestConcurrentJobsFailIndependently(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithDirectories())
	fake := testsupport.NewFakeTranscriber()
	fake.FailWith("bad.mp3", errors.New("model crashed"))
	runner := newRunner(t, cfg, fake, nil)
	good := mediaFile(t, cfg, "good.wav")
	bad := mediaFile(t, cfg, "bad.mp3")

	var wg sync.WaitGroup
	for _, file := range []media.File{good, bad} {
		wg.Add(1)
		go func(f media.File) {
			defer wg.Done()
			runner.Process(context.Background(), f)
		}(file)
	}
	wg.Wait()

	if _, err := os.Stat(filepath.Join(cfg.Paths.SubtitleDir, "good.srt")); err != nil {
		t.Fatalf("good.srt missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.ArchiveDir, "good.wav")); err != nil {
		t.Fatalf("good.wav not archived: %v", err)
	}
	if _, err := os.Stat(bad.Path); err != nil {
		t.Fatalf("bad.mp3 should stay in input: %v", err)
	}
	summary := runner.Summary()
	if summary.Processed != 1 || summary.Failed != 1 || len(summary.Outcomes) != 2 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestProcessRecordsJournalAndCountsAttempts(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithDirectories())
	store := testsupport.MustOpenJournal(t, cfg)
	fake := testsupport.NewFakeTranscriber()
	fake.FailWith("flaky.wav", errors.New("first"), errors.New("second"))
	runner := newRunner(t, cfg, fake, store)
	file := mediaFile(t, cfg, "flaky.wav")

	var attempts []int
	for i := 0; i < 3; i++ {
		out := runner.Process(context.Background(), file)
		attempts = append(attempts, out.Attempt)
	}
	if attempts[0] != 1 || attempts[1] != 2 || attempts[2] != 3 {
		t.Fatalf("attempts = %v", attempts)
	}

	entries, err := store.Attempts(context.Background(), file.Path)
	if err != nil {
		t.Fatalf("Attempts: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 journal entries, got %d", len(entries))
	}
	if entries[0].Success || entries[0].Error == "" || entries[0].RunID != "run-test" {
		t.Fatalf("unexpected first entry %+v", entries[0])
	}
	last := entries[2]
	if !last.Success || last.Backend != "fake" || last.Segments != 2 || last.ArchivePath == "" {
		t.Fatalf("unexpected last entry %+v", last)
	}
}

func TestAttemptNumbersResumeFromJournal(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithDirectories())
	store := testsupport.MustOpenJournal(t, cfg)
	fake := testsupport.NewFakeTranscriber()
	fake.FailWith("again.wav", errors.New("boom"))
	file := mediaFile(t, cfg, "again.wav")

	first := newRunner(t, cfg, fake, store).Process(context.Background(), file)
	if first.Success || first.Attempt != 1 {
		t.Fatalf("unexpected first outcome %+v", first)
	}
	// A new runner stands in for a restarted process.
	second := newRunner(t, cfg, fake, store).Process(context.Background(), file)
	if !second.Success || second.Attempt != 2 {
		t.Fatalf("unexpected second outcome success=%v attempt=%d", second.Success, second.Attempt)
	}
}

func TestNewRunnerRequiresCollaborators(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := job.NewRunner(job.Options{Transcriber: testsupport.NewFakeTranscriber()}); err == nil {
		t.Fatal("expected error without config")
	}
	if _, err := job.NewRunner(job.Options{Config: cfg}); err == nil {
		t.Fatal("expected error without transcriber")
	}
}
