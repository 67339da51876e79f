package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// RunLogPattern matches the per-run log files written by RunLogPath.
const RunLogPattern = "scribe-*.log"

// PruneRunLogs deletes run logs in dir last modified more than retentionDays
// ago. keep names the current run's log, which is never removed. A
// retentionDays of zero keeps everything.
func PruneRunLogs(logger *slog.Logger, dir string, retentionDays int, keep string) {
	if retentionDays <= 0 || dir == "" {
		return
	}
	matches, err := filepath.Glob(filepath.Join(dir, RunLogPattern))
	if err != nil {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	for _, path := range matches {
		if keep != "" && filepath.Clean(path) == filepath.Clean(keep) {
			continue
		}
		info, err := os.Lstat(path)
		if err != nil || !info.Mode().IsRegular() || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			WarnWithContext(logger, "could not prune run log", "log_retention_failed",
				String("path", path),
				Error(err),
				String(FieldErrorHint, "check permissions on paths.log_dir"),
				String(FieldImpact, "stale run log keeps using disk space"),
			)
			continue
		}
		if logger != nil {
			logger.Debug("pruned run log", String("path", path), String(FieldEventType, "log_pruned"))
		}
	}
}
