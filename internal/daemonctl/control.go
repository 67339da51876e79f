package daemonctl

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"

	"scribe/internal/config"
	"scribe/internal/daemon"
)

// ErrDaemonNotRunning indicates no watch process holds the lock.
var ErrDaemonNotRunning = errors.New("daemon not running")

// ProcessStatus describes the watch process as seen from another process.
type ProcessStatus struct {
	Running  bool   `json:"running"`
	PID      int    `json:"pid,omitempty"`
	LockPath string `json:"lock_path"`
	PIDPath  string `json:"pid_path"`
}

// StopResult captures daemon stop/termination outcome.
type StopResult struct {
	PID        int
	Graceful   bool
	ForcedKill bool
}

// ProcessInfo probes the watch lock and reads the pid file.
func ProcessInfo(cfg *config.Config) (ProcessStatus, error) {
	if cfg == nil {
		return ProcessStatus{}, errors.New("configuration not available")
	}
	status := ProcessStatus{
		LockPath: cfg.LockPath(),
		PIDPath:  daemon.PIDPath(cfg),
	}
	held, err := lockHeld(status.LockPath)
	if err != nil {
		return status, err
	}
	status.Running = held
	if !held {
		return status, nil
	}
	pid, err := readPID(status.PIDPath)
	if err != nil {
		return status, err
	}
	status.PID = pid
	return status, nil
}

// StopAndTerminate sends SIGTERM to the watch process so it drains its queue,
// and sends SIGKILL if the lock is still held after gracePeriod.
func StopAndTerminate(cfg *config.Config, gracePeriod time.Duration) (StopResult, error) {
	status, err := ProcessInfo(cfg)
	if err != nil {
		return StopResult{}, err
	}
	if !status.Running {
		return StopResult{}, ErrDaemonNotRunning
	}
	if status.PID <= 0 {
		return StopResult{}, fmt.Errorf("unable to determine daemon pid (pid file: %s)", status.PIDPath)
	}
	if status.PID == os.Getpid() {
		return StopResult{}, fmt.Errorf("refusing to signal current process (pid %d)", status.PID)
	}

	result := StopResult{PID: status.PID}
	if err := syscall.Kill(status.PID, syscall.SIGTERM); err != nil {
		return result, fmt.Errorf("signal daemon process %d: %w", status.PID, err)
	}
	if WaitForShutdown(status.LockPath, gracePeriod) == nil {
		result.Graceful = true
		return result, nil
	}

	if err := ForceKillProcess(status.PIDPath, status.PID); err != nil {
		return result, fmt.Errorf("failed to stop daemon process: %w", err)
	}
	result.ForcedKill = true
	return result, nil
}

// WaitForShutdown waits for the watch lock to be released.
func WaitForShutdown(lockPath string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		held, err := lockHeld(lockPath)
		if err == nil && !held {
			return nil
		}
		if time.Now().After(deadline) {
			if err != nil {
				return fmt.Errorf("daemon did not stop: %w", err)
			}
			return errors.New("daemon did not stop: lock still held")
		}
		time.Sleep(200 * time.Millisecond)
	}
}

// ForceKillProcess sends SIGKILL to pid and removes the pid file.
func ForceKillProcess(pidPath string, pid int) error {
	if pid <= 0 {
		return fmt.Errorf("invalid pid %d", pid)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("locate daemon process %d: %w", pid, err)
	}
	if err := proc.Kill(); err != nil {
		return fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	if err := os.Remove(pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove pid file %q: %w", pidPath, err)
	}
	return nil
}

func lockHeld(lockPath string) (bool, error) {
	if _, err := os.Stat(lockPath); errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	probe := flock.New(lockPath)
	ok, err := probe.TryRLock()
	if err != nil {
		return false, fmt.Errorf("probe lock %s: %w", lockPath, err)
	}
	if ok {
		_ = probe.Unlock()
		return false, nil
	}
	return true, nil
}

func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read daemon pid file %q: %w", path, err)
	}
	value := strings.TrimSpace(string(data))
	if value == "" {
		return 0, nil
	}
	pid, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("parse daemon pid file %q: %w", path, err)
	}
	return pid, nil
}
