package scraper

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"boxd/internal/artifact"
	"boxd/internal/config"
	"boxd/internal/logging"
	"boxd/internal/runs"
	"boxd/internal/services"
	"boxd/internal/stage"
)

// Stage adapts Scraper to the pipeline stage contract.
type Stage struct {
	cfg     *config.Config
	scraper *Scraper
	logger  *slog.Logger
}

// NewStage builds the scrape stage for cfg. A nil scraper uses New(cfg).
func NewStage(cfg *config.Config, scraper *Scraper, logger *slog.Logger) *Stage {
	if scraper == nil {
		scraper = New(cfg, logger)
	}
	s := &Stage{cfg: cfg, scraper: scraper}
	s.SetLogger(logger)
	return s
}

// SetLogger replaces the stage logger, applying any scrape-stage level override.
func (s *Stage) SetLogger(logger *slog.Logger) {
	s.logger = logging.ForStage(logging.NewComponentLogger(logger, "scraper"), s.cfg, stageName)
	s.scraper.logger = s.logger
}

// Prepare makes sure the raw artifact directory exists.
func (s *Stage) Prepare(_ context.Context, _ *runs.Run) error {
	dir := filepath.Dir(s.cfg.RawPath())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return services.Wrap(services.ErrIO, stageName, "create artifact directory", dir, err)
	}
	return nil
}

// Execute scrapes every page and replaces the raw artifact.
func (s *Stage) Execute(ctx context.Context, run *runs.Run) error {
	tooltips, err := s.scraper.Scrape(ctx)
	if err != nil {
		return err
	}
	path := s.cfg.RawPath()
	if err := artifact.WriteTooltips(path, tooltips); err != nil {
		return services.Wrap(services.ErrIO, stageName, "write raw artifact", path, err)
	}
	if run != nil {
		run.RawCount = len(tooltips)
	}
	s.logger.Info("list scraped",
		logging.String(logging.FieldEventType, "list_scraped"),
		logging.String("raw_file", path),
		logging.Int("pages", len(s.scraper.pages)),
		logging.Int("tooltips", len(tooltips)),
	)
	return nil
}

// HealthCheck reports whether the raw artifact directory is writable.
func (s *Stage) HealthCheck(context.Context) stage.Health {
	return stage.OutputDirHealth(stageName, "raw artifact directory", s.cfg.RawPath())
}
