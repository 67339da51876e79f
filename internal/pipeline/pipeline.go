package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"scribe/internal/config"
	"scribe/internal/dispatch"
	"scribe/internal/job"
	"scribe/internal/logging"
	"scribe/internal/media"
	"scribe/internal/notifications"
	"scribe/internal/transcriber"
	"scribe/internal/watcher"
)

// Options configures a Pipeline.
type Options struct {
	Config      *config.Config
	Transcriber transcriber.Transcriber
	// Recorder is optional; pass nil (not a typed nil pointer) to disable journaling.
	Recorder job.Recorder
	// Prober is optional; nil skips the audio stream check.
	Prober media.Prober
	// Notifier defaults to a no-op.
	Notifier notifications.Service
	Logger   *slog.Logger
	RunID    string
}

// Pipeline runs jobs for the files a watcher source emits.
type Pipeline struct {
	runner      *job.Runner
	pool        *dispatch.Pool
	notifier    notifications.Service
	logger      *slog.Logger
	policy      string
	maxAttempts int
	retryDelay  time.Duration

	// intake is cancelled on interrupt; jobs run on a detached copy.
	intake context.Context
}

// New builds a pipeline from opts.
func New(opts Options) (*Pipeline, error) {
	runner, err := job.NewRunner(job.Options{
		Config:      opts.Config,
		Transcriber: opts.Transcriber,
		Recorder:    opts.Recorder,
		Prober:      opts.Prober,
		Logger:      opts.Logger,
		RunID:       opts.RunID,
	})
	if err != nil {
		return nil, err
	}
	cfg := opts.Config
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notifications.NewService(nil)
	}
	p := &Pipeline{
		runner:      runner,
		notifier:    notifier,
		logger:      logging.NewComponentLogger(opts.Logger, "pipeline"),
		policy:      cfg.Workflow.FailurePolicy,
		maxAttempts: cfg.Workflow.MaxAttempts,
		retryDelay:  time.Duration(cfg.Workflow.RetryDelaySeconds) * time.Second,
		intake:      context.Background(),
	}
	p.pool = dispatch.New(cfg.Workflow.MaxWorkers, p.handle, opts.Logger)
	return p, nil
}

// Run starts src and processes its files until the source channel closes,
// then drains the queue. Only a source startup failure is returned as an error.
func (p *Pipeline) Run(ctx context.Context, src watcher.Source) (job.Summary, error) {
	if src == nil {
		return job.Summary{}, errors.New("pipeline: source is required")
	}
	files, err := src.Watch(ctx)
	if err != nil {
		return job.Summary{}, fmt.Errorf("start watcher: %w", err)
	}

	started := time.Now()
	p.intake = ctx
	p.pool.Start(context.WithoutCancel(ctx))

	for file := range files {
		if !p.pool.Submit(file) {
			p.logger.Debug("file already queued",
				logging.String(logging.FieldFile, file.Path),
				logging.String(logging.FieldEventType, "submit_rejected"),
			)
		}
	}

	if ctx.Err() != nil {
		stats := p.pool.Stats()
		p.logger.Info("interrupt received, finishing queued jobs",
			logging.Int("queued", stats.Queued),
			logging.Int("active", stats.Active),
			logging.String(logging.FieldEventType, "drain_start"),
		)
	}
	p.pool.Close()
	p.pool.Wait()

	summary := p.runner.Summary()
	stats := p.pool.Stats()
	p.logger.Info("run finished",
		logging.Int("processed", summary.Processed),
		logging.Int("failed", summary.Failed),
		logging.Int("peak_workers", stats.Peak),
		logging.String(logging.FieldEventType, "run_complete"),
	)
	p.publish(ctx, notifications.EventRunCompleted, notifications.Payload{
		"processed": summary.Processed,
		"failed":    len(summary.Unresolved()),
		"duration":  time.Since(started),
	})
	return summary, nil
}

// Stats exposes dispatcher counters.
func (p *Pipeline) Stats() dispatch.Stats {
	return p.pool.Stats()
}

// handle runs a file and, under the retry policy, runs it again after the
// retry delay until max_attempts tries have been made in this dispatch.
// Attempt numbers still continue from the journal. The worker is held for
// the delay.
func (p *Pipeline) handle(ctx context.Context, file media.File) {
	for tries := 1; ; tries++ {
		out := p.runner.Process(ctx, file)
		if out.Success || !p.shouldRetry(out, tries) {
			p.announce(ctx, out)
			return
		}
		p.logger.Info("retrying file",
			logging.String(logging.FieldFile, file.Path),
			logging.Int(logging.FieldAttempt, out.Attempt),
			logging.Int("try", tries),
			logging.Int("max_attempts", p.maxAttempts),
			logging.Duration("delay", p.retryDelay),
			logging.String(logging.FieldEventType, "job_retry_scheduled"),
		)
		if !p.sleep(p.retryDelay) {
			logging.WarnWithContext(p.logger, "retry abandoned on interrupt", "job_retry_abandoned",
				logging.String(logging.FieldFile, file.Path),
				logging.String(logging.FieldImpact, "file stays in the input directory"),
			)
			return
		}
	}
}

func (p *Pipeline) shouldRetry(out job.Outcome, tries int) bool {
	if p.policy != config.FailureRetry || tries >= p.maxAttempts {
		return false
	}
	// The source is gone, unusable or already handled; nothing to retry.
	if errors.Is(out.Err, job.ErrSettle) || errors.Is(out.Err, job.ErrArchive) || errors.Is(out.Err, job.ErrProbe) {
		return false
	}
	return p.intake.Err() == nil
}

// sleep waits d and reports false when intake was cancelled first.
func (p *Pipeline) sleep(d time.Duration) bool {
	if d <= 0 {
		return p.intake.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-p.intake.Done():
		return false
	}
}

func (p *Pipeline) announce(ctx context.Context, out job.Outcome) {
	if out.Success {
		p.publish(ctx, notifications.EventJobCompleted, notifications.Payload{
			"name":     out.Name,
			"segments": out.Segments,
			"duration": out.Duration,
		})
		return
	}
	p.publish(ctx, notifications.EventJobFailed, notifications.Payload{
		"name":        out.Name,
		"stage":       job.Stage(out.Err),
		"error":       out.Err,
		"quarantined": out.QuarantinePath != "",
	})
}

func (p *Pipeline) publish(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if err := p.notifier.Publish(context.WithoutCancel(ctx), event, payload); err != nil {
		logging.WarnWithContext(p.logger, "notification failed", "notification_failed",
			logging.String("event", string(event)),
			logging.Error(err),
			logging.String(logging.FieldImpact, "ntfy subscribers miss this event"),
		)
	}
}
