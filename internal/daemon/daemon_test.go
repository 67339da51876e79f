package daemon_test

import (
	"context"
	"errors"
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/gofrs/flock"

	"scribe/internal/config"
	"scribe/internal/daemon"
	"scribe/internal/job"
	"scribe/internal/testsupport"
	"scribe/internal/watcher"
)

type stubRunner struct {
	cfg     *config.Config
	calls   int
	sawPID  string
	summary job.Summary
	err     error
}

func (s *stubRunner) Run(ctx context.Context, src watcher.Source) (job.Summary, error) {
	s.calls++
	data, err := os.ReadFile(daemon.PIDPath(s.cfg))
	if err == nil {
		s.sawPID = strings.TrimSpace(string(data))
	}
	return s.summary, s.err
}

func TestDaemonRunWritesAndRemovesPIDFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	runner := &stubRunner{cfg: cfg, summary: job.Summary{Processed: 2}}
	d, err := daemon.New(cfg, runner, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	summary, err := d.Run(context.Background(), watcher.NewWalk(t.TempDir(), nil, nil))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Processed != 2 || runner.calls != 1 {
		t.Fatalf("unexpected summary %+v calls=%d", summary, runner.calls)
	}
	if runner.sawPID != strconv.Itoa(os.Getpid()) {
		t.Fatalf("pid file held %q during run", runner.sawPID)
	}
	testsupport.AssertMissing(t, daemon.PIDPath(cfg))
	after := flock.New(cfg.LockPath())
	if ok, err := after.TryLock(); err != nil || !ok {
		t.Fatalf("lock not released: ok=%v err=%v", ok, err)
	}
	after.Unlock()
}

func TestDaemonFailsFastWhenLocked(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithDirectories())
	other := flock.New(cfg.LockPath())
	ok, err := other.TryLock()
	if err != nil || !ok {
		t.Fatalf("TryLock: ok=%v err=%v", ok, err)
	}
	defer other.Unlock()

	runner := &stubRunner{cfg: cfg}
	d, err := daemon.New(cfg, runner, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if _, err := d.Run(context.Background(), nil); !errors.Is(err, daemon.ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
	if runner.calls != 0 {
		t.Fatal("pipeline must not run without the lock")
	}
}

func TestDaemonReleasesLockAfterRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	runner := &stubRunner{cfg: cfg, err: errors.New("watch root missing")}
	d, err := daemon.New(cfg, runner, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if _, err := d.Run(context.Background(), nil); err == nil {
		t.Fatal("expected runner error to propagate")
	}

	probe := flock.New(cfg.LockPath())
	ok, err := probe.TryLock()
	if err != nil || !ok {
		t.Fatalf("lock should be free after Run: ok=%v err=%v", ok, err)
	}
	_ = probe.Unlock()
}

func TestNewRequiresRunner(t *testing.T) {
	if _, err := daemon.New(testsupport.NewConfig(t), nil, nil); err == nil {
		t.Fatal("expected error without runner")
	}
}
