package cleaning

import (
	"context"
	"log/slog"
	"os"

	"boxd/internal/config"
	"boxd/internal/logging"
	"boxd/internal/runs"
	"boxd/internal/services"
	"boxd/internal/stage"
)

// Stage adapts Transform to the pipeline stage contract.
type Stage struct {
	cfg    *config.Config
	logger *slog.Logger
}

// NewStage builds the clean stage for cfg.
func NewStage(cfg *config.Config, logger *slog.Logger) *Stage {
	s := &Stage{cfg: cfg}
	s.SetLogger(logger)
	return s
}

// SetLogger replaces the stage logger, applying any clean-stage level override.
func (s *Stage) SetLogger(logger *slog.Logger) {
	s.logger = logging.ForStage(logging.NewComponentLogger(logger, "cleaning"), s.cfg, stageName)
}

// Prepare verifies the raw artifact exists before any work starts.
func (s *Stage) Prepare(_ context.Context, _ *runs.Run) error {
	if _, err := os.Stat(s.cfg.RawPath()); err != nil {
		return services.Wrap(services.ErrIO, stageName, "stat raw artifact", s.cfg.RawPath(), err)
	}
	return nil
}

// Execute runs the transform and records the record count on run.
func (s *Stage) Execute(ctx context.Context, run *runs.Run) error {
	result, err := Transform(ctx, s.cfg.RawPath(), s.cfg.RecordsPath())
	if err != nil {
		return err
	}
	run.RecordCount = len(result.Records)

	s.logger.Info("records cleaned",
		logging.String(logging.FieldEventType, "records_cleaned"),
		logging.String("records_file", result.OutputPath),
		logging.Int("input", result.Stats.Input),
		logging.Int("records", len(result.Records)),
		logging.Int("skipped", result.Stats.Skipped),
		logging.Int("duplicates", result.Stats.Duplicates),
	)
	if result.Stats.Input > 0 && len(result.Records) == 0 {
		logging.WarnWithContext(s.logger, "no tooltip matched the expected shape", "records_empty",
			logging.String("raw_file", result.InputPath),
			logging.String(logging.FieldErrorHint, "inspect the raw artifact; the site tooltip format may have changed"),
			logging.String(logging.FieldImpact, "the sink receives zero rows this run"),
		)
	}
	return nil
}

// HealthCheck reports whether the records directory is writable.
func (s *Stage) HealthCheck(context.Context) stage.Health {
	return stage.OutputDirHealth(stageName, "records directory", s.cfg.RecordsPath())
}
