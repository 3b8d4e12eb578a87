package pipeline

import (
	"context"
	"log/slog"
	"strings"

	"boxd/internal/logging"
	"boxd/internal/preflight"
)

// runPreflightChecks validates the local environment before the first stage.
// Failures are configuration errors and are never retried.
func (m *Manager) runPreflightChecks(ctx context.Context, logger *slog.Logger) error {
	if m.preflight == nil {
		return nil
	}
	results := m.preflight(ctx, m.cfg)
	err := preflight.Err(results)
	if err == nil {
		logger.Debug("preflight checks passed",
			logging.String(logging.FieldEventType, "preflight_passed"),
			logging.Int("checks", len(results)),
		)
		return nil
	}

	var failed []string
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r.Name+": "+r.Detail)
		}
	}
	logging.ErrorWithContext(logger, "preflight failed; attempt aborted before scrape", "preflight_failed",
		logging.String("failed_checks", strings.Join(failed, "; ")),
		logging.String(logging.FieldErrorHint, "run boxd status to see every check"),
		logging.Error(err),
	)
	return err
}
