package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// PruneLogs deletes files in dir matching pattern that were last modified
// more than retentionDays ago and returns how many were removed. Paths listed
// in keep survive regardless of age. A non-positive retentionDays disables
// pruning.
func PruneLogs(logger *slog.Logger, dir, pattern string, retentionDays int, keep ...string) int {
	if retentionDays <= 0 || strings.TrimSpace(dir) == "" {
		return 0
	}
	if logger == nil {
		logger = NewNop()
	}
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return 0
	}
	protected := make(map[string]bool, len(keep))
	for _, path := range keep {
		protected[filepath.Clean(path)] = true
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	removed := 0
	for _, path := range matches {
		if protected[filepath.Clean(path)] {
			continue
		}
		info, err := os.Stat(path)
		if err != nil || info.IsDir() || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			WarnWithContext(logger, "log retention remove failed; file remains", "log_retention_failed",
				String("path", path),
				String(FieldErrorHint, "check file permissions and log_dir ownership"),
				String(FieldImpact, "old log file remains on disk"),
				Error(err),
			)
			continue
		}
		removed++
	}
	if removed > 0 {
		logger.Info("old log files pruned",
			String(FieldEventType, "logs_pruned"),
			String("dir", dir),
			Int("removed", removed),
		)
	}
	return removed
}
