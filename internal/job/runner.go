package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"scribe/internal/config"
	"scribe/internal/fileutil"
	"scribe/internal/journal"
	"scribe/internal/logging"
	"scribe/internal/media"
	"scribe/internal/subtitles"
	"scribe/internal/transcriber"
)

const maxSettleChecks = 120

// Recorder persists job outcomes. *journal.Store satisfies it.
type Recorder interface {
	Record(ctx context.Context, e journal.Entry) (int64, error)
}

// failureCounter lets a recorder seed attempt numbers across restarts.
type failureCounter interface {
	FailuresSinceSuccess(ctx context.Context, path string) (int, error)
}

// Options configures a Runner.
type Options struct {
	Config      *config.Config
	Transcriber transcriber.Transcriber
	// Recorder is optional; nil disables journaling.
	Recorder Recorder
	// Prober is optional; nil skips the audio stream check.
	Prober media.Prober
	Logger   *slog.Logger
	// RunID tags journal entries written by this process.
	RunID string
}

// Runner executes jobs. It is safe for concurrent use by dispatcher workers.
type Runner struct {
	paths           config.Paths
	writeTranscript bool
	policy          string
	settle          time.Duration
	transcriber     transcriber.Transcriber
	recorder        Recorder
	prober          media.Prober
	logger          *slog.Logger
	runID           string
	results         Results

	mu       sync.Mutex
	attempts map[string]int
}

// NewRunner validates opts and returns a Runner.
func NewRunner(opts Options) (*Runner, error) {
	if opts.Config == nil {
		return nil, errors.New("job runner: config is required")
	}
	if opts.Transcriber == nil {
		return nil, errors.New("job runner: transcriber is required")
	}
	cfg := opts.Config
	return &Runner{
		paths:           cfg.Paths,
		writeTranscript: cfg.Transcription.WriteTranscript,
		policy:          cfg.Workflow.FailurePolicy,
		settle:          time.Duration(cfg.Workflow.SettleSeconds) * time.Second,
		transcriber:     opts.Transcriber,
		recorder:        opts.Recorder,
		prober:          opts.Prober,
		logger:          logging.NewComponentLogger(opts.Logger, "job"),
		runID:           opts.RunID,
		attempts:        make(map[string]int),
	}, nil
}

// Summary returns the outcomes collected so far.
func (r *Runner) Summary() Summary {
	return r.results.Summary()
}

// Process runs one job for file and returns its outcome. It never panics on
// job failures and never returns an error; failures are reported in Outcome.Err.
func (r *Runner) Process(ctx context.Context, file media.File) Outcome {
	out := Outcome{
		ID:      uuid.NewString(),
		File:    file,
		Name:    file.Name,
		Attempt: r.nextAttempt(ctx, file.Path),
		Started: time.Now(),
	}
	jobCtx := logging.WithJob(ctx, out.ID, file.Path, out.Attempt)
	logger := logging.WithContext(jobCtx, r.logger)

	logger.Info("processing file",
		logging.String("name", file.Name),
		logging.String(logging.FieldEventType, "job_start"),
	)

	out.Err = r.run(jobCtx, logger, file, &out)
	out.Duration = time.Since(out.Started)
	out.Success = out.Err == nil

	if out.Success {
		r.clearAttempts(file.Path)
		logger.Info(fmt.Sprintf("completed processing %s in %.2f seconds", file.Name, out.Duration.Seconds()),
			logging.Int("segments", out.Segments),
			logging.String("archive_path", out.ArchivePath),
			logging.String(logging.FieldEventType, "job_complete"),
		)
	} else {
		r.applyFailurePolicy(logger, file, &out)
		logging.ErrorWithContext(logger, "error processing file", "job_failed",
			logging.String("name", file.Name),
			logging.String("stage", Stage(out.Err)),
			logging.Error(out.Err),
			logging.String(logging.FieldErrorHint, Hint(out.Err)),
			logging.String(logging.FieldImpact, "no outputs for this file; other files are unaffected"),
		)
	}

	r.record(jobCtx, logger, out)
	r.results.Add(out)
	return out
}

func (r *Runner) run(ctx context.Context, logger *slog.Logger, file media.File, out *Outcome) error {
	if r.settle > 0 {
		if err := waitForStableSize(ctx, file.Path, r.settle); err != nil {
			return wrap(ErrSettle, "wait for stable size", err)
		}
	}

	if r.prober != nil {
		info, err := r.prober.Probe(ctx, file.Path)
		if err != nil {
			return wrap(ErrProbe, "ffprobe", err)
		}
		if info.AudioStreams == 0 {
			return wrap(ErrProbe, "no audio stream", nil)
		}
		out.MediaDuration = info.Duration
		logger.Debug("media probed",
			logging.Duration("media_duration", info.Duration),
			logging.Int("audio_streams", info.AudioStreams),
		)
	}

	result, err := r.transcriber.Transcribe(ctx, file.Path)
	if err != nil {
		return wrap(ErrTranscribe, r.transcriber.Name(), err)
	}
	out.Segments = len(result.Segments)
	logger.Debug("transcription returned",
		logging.Int("segments", len(result.Segments)),
		logging.String("language", result.Language),
	)

	if r.writeTranscript {
		path := file.OutputPath(r.paths.TranscriptDir, ".txt")
		if err := fileutil.WriteFileAtomic(path, []byte(result.Text), 0o644); err != nil {
			return wrap(ErrOutput, "write transcript", err)
		}
		out.TranscriptPath = path
		logger.Info("transcript saved", logging.String("path", path))
	}

	srtPath := file.OutputPath(r.paths.SubtitleDir, ".srt")
	if err := subtitles.WriteFile(srtPath, result.Segments); err != nil {
		return wrap(ErrOutput, "write subtitles", err)
	}
	out.SubtitlePath = srtPath
	logger.Info("subtitles saved", logging.String("path", srtPath))
	if issues := subtitles.Validate(srtPath, len(result.Segments)); len(issues) > 0 {
		logging.WarnWithContext(logger, "subtitle validation reported issues", "srt_validation",
			logging.String("path", srtPath),
			logging.Any("issues", issues),
			logging.String(logging.FieldImpact, "players may reject or mistime the subtitles"),
		)
	}

	dst := filepath.Join(r.paths.ArchiveDir, file.Rel)
	if err := fileutil.MoveFile(file.Path, dst); err != nil {
		return wrap(ErrArchive, "move to archive", err)
	}
	out.ArchivePath = dst
	logger.Info("source archived", logging.String("path", dst))
	return nil
}

func (r *Runner) applyFailurePolicy(logger *slog.Logger, file media.File, out *Outcome) {
	if r.policy != config.FailureQuarantine {
		return
	}
	// Archive failures leave complete outputs behind; the source stays put so
	// the operator can finish the move.
	if errors.Is(out.Err, ErrArchive) {
		return
	}
	if _, err := os.Stat(file.Path); err != nil {
		return
	}
	dst := filepath.Join(r.paths.QuarantineDir, file.Rel)
	if err := fileutil.MoveFile(file.Path, dst); err != nil {
		logging.WarnWithContext(logger, "quarantine move failed", "quarantine_failed",
			logging.String("path", dst),
			logging.Error(err),
			logging.String(logging.FieldImpact, "failed source remains in the input directory"),
		)
		return
	}
	out.QuarantinePath = dst
	logger.Info("source quarantined", logging.String("path", dst))
}

func (r *Runner) record(ctx context.Context, logger *slog.Logger, out Outcome) {
	if r.recorder == nil {
		return
	}
	entry := journal.Entry{
		JobID:          out.ID,
		RunID:          r.runID,
		SourcePath:     out.File.Path,
		Name:           out.Name,
		Attempt:        out.Attempt,
		Success:        out.Success,
		Backend:        r.transcriber.Name(),
		Segments:       out.Segments,
		TranscriptPath: out.TranscriptPath,
		SubtitlePath:   out.SubtitlePath,
		ArchivePath:    out.ArchivePath,
		QuarantinePath: out.QuarantinePath,
		StartedAt:      out.Started,
		Duration:       out.Duration,
	}
	if out.Err != nil {
		entry.Error = out.Err.Error()
	}
	if _, err := r.recorder.Record(context.WithoutCancel(ctx), entry); err != nil {
		logging.WarnWithContext(logger, "journal record failed", "journal_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "outcome missing from scribe history"),
		)
	}
}

func (r *Runner) nextAttempt(ctx context.Context, path string) int {
	r.mu.Lock()
	prev, ok := r.attempts[path]
	r.mu.Unlock()

	if !ok {
		if counter, isCounter := r.recorder.(failureCounter); isCounter {
			if failures, err := counter.FailuresSinceSuccess(ctx, path); err == nil {
				prev = failures
			} else {
				r.logger.Debug("journal attempt lookup failed", logging.Error(err))
			}
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, seen := r.attempts[path]; seen && cur > prev {
		prev = cur
	}
	r.attempts[path] = prev + 1
	return prev + 1
}

func (r *Runner) clearAttempts(path string) {
	r.mu.Lock()
	delete(r.attempts, path)
	r.mu.Unlock()
}

// waitForStableSize returns once two stats taken interval apart agree on size
// and modification time.
func waitForStableSize(ctx context.Context, path string, interval time.Duration) error {
	prev, err := os.Stat(path)
	if err != nil {
		return err
	}
	timer := time.NewTimer(interval)
	defer timer.Stop()
	for range maxSettleChecks {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
		cur, err := os.Stat(path)
		if err != nil {
			return err
		}
		if cur.Size() == prev.Size() && cur.ModTime().Equal(prev.ModTime()) {
			return nil
		}
		prev = cur
		timer.Reset(interval)
	}
	return fmt.Errorf("size still changing after %d checks", maxSettleChecks)
}
