package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"

	"github.com/gofrs/flock"

	"scribe/internal/config"
	"scribe/internal/job"
	"scribe/internal/logging"
	"scribe/internal/watcher"
)

// ErrAlreadyRunning is returned when another process holds the watch lock.
var ErrAlreadyRunning = errors.New("another scribe instance is already running")

// Runner is the pipeline surface the daemon drives.
type Runner interface {
	Run(ctx context.Context, src watcher.Source) (job.Summary, error)
}

// Daemon runs a pipeline under the single-instance lock.
type Daemon struct {
	runner Runner
	logger *slog.Logger

	lockPath string
	pidPath  string
	lock     *flock.Flock

	running atomic.Bool
}

// New constructs a daemon for cfg's log directory.
func New(cfg *config.Config, runner Runner, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || runner == nil {
		return nil, errors.New("daemon requires config and runner")
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		runner:   runner,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		lockPath: lockPath,
		pidPath:  PIDPath(cfg),
		lock:     flock.New(lockPath),
	}, nil
}

// PIDPath returns the pid file written while watch mode runs.
func PIDPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.LogDir, "scribe.pid")
}

// Run acquires the lock, runs src through the pipeline until it is
// interrupted and drained, then releases the lock.
func (d *Daemon) Run(ctx context.Context, src watcher.Source) (job.Summary, error) {
	if !d.running.CompareAndSwap(false, true) {
		return job.Summary{}, errors.New("daemon already running")
	}
	defer d.running.Store(false)

	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return job.Summary{}, fmt.Errorf("create lock directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return job.Summary{}, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return job.Summary{}, ErrAlreadyRunning
	}
	defer func() {
		if err := d.lock.Unlock(); err != nil {
			d.logger.Warn("failed to release daemon lock", logging.Error(err))
		}
	}()

	if err := writePIDFile(d.pidPath); err != nil {
		return job.Summary{}, fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(d.pidPath)

	d.logger.Info("scribe daemon started",
		logging.String("lock", d.lockPath),
		logging.Int("pid", os.Getpid()),
		logging.String(logging.FieldEventType, "daemon_start"),
	)
	summary, err := d.runner.Run(ctx, src)
	if err != nil {
		return summary, err
	}
	d.logger.Info("scribe daemon stopped",
		logging.Int("processed", summary.Processed),
		logging.Int("failed", summary.Failed),
		logging.String(logging.FieldEventType, "daemon_stop"),
	)
	return summary, nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
