package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"scribe/internal/config"
	"scribe/internal/daemon"
	"scribe/internal/job"
	"scribe/internal/journal"
	"scribe/internal/language"
	"scribe/internal/logging"
	"scribe/internal/logs"
	"scribe/internal/media"
	"scribe/internal/media/ffprobe"
	"scribe/internal/notifications"
	"scribe/internal/pipeline"
	"scribe/internal/preflight"
	"scribe/internal/transcriber"
	"scribe/internal/watcher"
)

// Factory builds the transcriber for a run. Tests substitute a fake.
type Factory func(cfg *config.Config, logger *slog.Logger) (transcriber.Transcriber, error)

// Options configures process runtime behavior.
type Options struct {
	// OutputDir, for batch runs, collects transcripts, subtitles and archived
	// sources under one directory mirroring the input tree.
	OutputDir string
	// Logger replaces the per-run console and file logger when set.
	Logger   *slog.Logger
	NewModel Factory
}

type session struct {
	cfg         *config.Config
	logger      *slog.Logger
	runID       string
	logPath     string
	store       *journal.Store
	prober      media.Prober
	notifier    notifications.Service
	transcriber transcriber.Transcriber
}

// Watch runs watch mode until SIGINT or SIGTERM, then drains queued jobs.
func Watch(cmdCtx context.Context, cfg *config.Config, opts Options) (job.Summary, error) {
	if cfg == nil {
		return job.Summary{}, fmt.Errorf("config is required")
	}
	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	s, err := openSession(cfg, "watch", opts)
	if err != nil {
		return job.Summary{}, err
	}
	defer s.close()

	p, err := s.pipeline()
	if err != nil {
		return job.Summary{}, err
	}
	src, err := watcher.New(cfg, s.logger)
	if err != nil {
		return job.Summary{}, err
	}
	d, err := daemon.New(cfg, p, s.logger)
	if err != nil {
		return job.Summary{}, fmt.Errorf("create daemon: %w", err)
	}

	s.logger.Info("watching",
		logging.String("input_dir", cfg.Paths.InputDir),
		logging.String("watcher", cfg.Workflow.Watcher),
		logging.Int("workers", cfg.Workflow.MaxWorkers),
		logging.String("backend", s.transcriber.Name()),
	)
	summary, err := d.Run(logging.WithCorrelationID(signalCtx, s.runID), src)
	if err != nil {
		return summary, err
	}
	s.logger.Info("scribe shutting down")
	return summary, nil
}

// Batch processes every media file under cfg.Paths.InputDir once.
func Batch(cmdCtx context.Context, cfg *config.Config, opts Options) (job.Summary, error) {
	if cfg == nil {
		return job.Summary{}, fmt.Errorf("config is required")
	}
	if info, err := os.Stat(cfg.Paths.InputDir); err != nil {
		return job.Summary{}, fmt.Errorf("input directory: %w", err)
	} else if !info.IsDir() {
		return job.Summary{}, fmt.Errorf("input directory %s is not a directory", cfg.Paths.InputDir)
	}
	if dir := strings.TrimSpace(opts.OutputDir); dir != "" {
		expanded, err := config.ExpandPath(dir)
		if err != nil {
			return job.Summary{}, fmt.Errorf("resolve output directory: %w", err)
		}
		cfg = pipeline.MirrorOutput(cfg, expanded)
		if err := cfg.Validate(); err != nil {
			return job.Summary{}, err
		}
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	s, err := openSession(cfg, "run", opts)
	if err != nil {
		return job.Summary{}, err
	}
	defer s.close()

	p, err := s.pipeline()
	if err != nil {
		return job.Summary{}, err
	}
	return p.Run(logging.WithCorrelationID(signalCtx, s.runID), watcher.NewWalk(cfg.Paths.InputDir, cfg.ManagedDirs(), s.logger))
}

func openSession(cfg *config.Config, mode string, opts Options) (*session, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	s := &session{cfg: cfg, runID: uuid.NewString()}
	s.logPath = logging.RunLogPath(cfg.Paths.LogDir, mode, time.Now())
	if opts.Logger != nil {
		s.logger = opts.Logger
	} else {
		logger, err := logging.NewFromConfig(cfg, s.logPath, s.runID)
		if err != nil {
			return nil, fmt.Errorf("init logger: %w", err)
		}
		s.logger = logger
		if err := ensureCurrentLogPointer(cfg.Paths.LogDir, s.logPath); err != nil {
			fmt.Fprintf(os.Stderr, "warn: unable to update scribe.log link: %v\n", err)
		}
	}
	logging.PruneRunLogs(s.logger, cfg.Paths.LogDir, cfg.Logging.RetentionDays, s.logPath)

	logDependencySnapshot(s.logger, cfg)
	for _, failed := range preflight.Failed(preflight.RunAll(context.Background(), cfg, preflight.Options{})) {
		logging.WarnWithContext(s.logger, "preflight check failed", "preflight_failed",
			logging.String("check", failed.Name),
			logging.String("detail", failed.Detail),
			logging.String(logging.FieldErrorHint, "run scribe doctor for details"),
		)
	}

	if cfg.Journal.Enabled {
		store, err := journal.Open(cfg)
		if err != nil {
			logging.WarnWithContext(s.logger, "journal unavailable", "journal_open_failed",
				logging.String("path", cfg.JournalPath()),
				logging.Error(err),
				logging.String(logging.FieldImpact, "outcomes are logged but not recorded for scribe history or retries"),
			)
		} else {
			s.store = store
		}
	}

	if cfg.Workflow.ProbeMedia {
		if path, err := exec.LookPath(cfg.FFprobeBinary()); err == nil {
			s.prober = ffprobe.Prober{Binary: path}
		} else {
			logging.WarnWithContext(s.logger, "ffprobe not found, media probing disabled", "probe_unavailable",
				logging.String(logging.FieldImpact, "files without audio reach the model and fail there"),
				logging.String(logging.FieldErrorHint, "install ffmpeg or set workflow.probe_media = false"),
			)
		}
	}
	s.notifier = notifications.NewService(cfg)

	factory := opts.NewModel
	if factory == nil {
		factory = transcriber.New
	}
	model, err := factory(cfg, s.logger)
	if err != nil {
		s.close()
		return nil, fmt.Errorf("init transcriber: %w", err)
	}
	s.transcriber = model
	return s, nil
}

func (s *session) pipeline() (*pipeline.Pipeline, error) {
	opts := pipeline.Options{
		Config:      s.cfg,
		Transcriber: s.transcriber,
		Prober:      s.prober,
		Notifier:    s.notifier,
		Logger:      s.logger,
		RunID:       s.runID,
	}
	if s.store != nil {
		opts.Recorder = s.store
	}
	return pipeline.New(opts)
}

func (s *session) close() {
	if s.transcriber != nil {
		if err := s.transcriber.Close(); err != nil && !errors.Is(err, transcriber.ErrClosed) {
			s.logger.Warn("transcriber close failed", logging.Error(err))
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn("journal close failed", logging.Error(err))
		}
	}
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, logs.PointerName)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.String("backend", cfg.Transcription.Backend),
		logging.String("language", language.DisplayName(cfg.Transcription.Language)),
		logging.Bool("journal_enabled", cfg.Journal.Enabled),
		logging.String("failure_policy", cfg.Workflow.FailurePolicy),
		logging.Bool("ffprobe_available", binaryAvailable(cfg.FFprobeBinary())),
		logging.Bool("notifications_enabled", cfg.Notifications.NtfyTopic != ""),
	}
	switch cfg.Transcription.Backend {
	case config.BackendWhisperX:
		attrs = append(attrs,
			logging.Bool("uvx_available", binaryAvailable(cfg.UVXBinary())),
			logging.Bool("ffmpeg_available", binaryAvailable(cfg.FFmpegBinary())),
			logging.String("whisperx_model", cfg.Transcription.Model),
			logging.Bool("whisperx_cuda", cfg.Transcription.CUDAEnabled),
			logging.String("whisperx_vad_method", cfg.Transcription.VADMethod),
		)
	case config.BackendOpenAI:
		attrs = append(attrs,
			logging.String("openai_base_url", cfg.OpenAI.BaseURL),
			logging.String("openai_model", cfg.OpenAI.Model),
			logging.Bool("openai_key_present", strings.TrimSpace(cfg.OpenAI.APIKey) != ""),
		)
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}

func binaryAvailable(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	_, err := exec.LookPath(name)
	return err == nil
}
