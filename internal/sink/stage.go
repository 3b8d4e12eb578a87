package sink

import (
	"context"
	"log/slog"
	"os"

	"boxd/internal/artifact"
	"boxd/internal/config"
	"boxd/internal/logging"
	"boxd/internal/runs"
	"boxd/internal/services"
	"boxd/internal/stage"
)

// Stage loads the records artifact into the sink.
type Stage struct {
	cfg    *config.Config
	logger *slog.Logger
}

// NewStage builds the load stage for cfg.
func NewStage(cfg *config.Config, logger *slog.Logger) *Stage {
	s := &Stage{cfg: cfg}
	s.SetLogger(logger)
	return s
}

// SetLogger replaces the stage logger, applying any load-stage level override.
func (s *Stage) SetLogger(logger *slog.Logger) {
	s.logger = logging.ForStage(logging.NewComponentLogger(logger, "sink"), s.cfg, stageName)
}

// Prepare verifies the records artifact exists.
func (s *Stage) Prepare(_ context.Context, _ *runs.Run) error {
	if _, err := os.Stat(s.cfg.RecordsPath()); err != nil {
		return services.Wrap(services.ErrIO, stageName, "stat records artifact", s.cfg.RecordsPath(), err)
	}
	return nil
}

// Execute reads the records artifact and appends it to the movies table.
func (s *Stage) Execute(ctx context.Context, run *runs.Run) error {
	result, err := LoadFile(ctx, s.cfg, s.cfg.RecordsPath())
	if err != nil {
		return err
	}
	if run != nil {
		run.LoadedCount = result.Loaded
	}
	s.logger.Info("records loaded",
		logging.String(logging.FieldEventType, "records_loaded"),
		logging.String("records_file", result.InputPath),
		logging.String("database", result.DatabasePath),
		logging.Int("loaded", result.Loaded),
		logging.Int("total_rows", result.TotalRows),
		logging.Bool("truncated", result.Truncated),
	)
	return nil
}

// HealthCheck reports whether the database directory is writable.
func (s *Stage) HealthCheck(context.Context) stage.Health {
	return stage.OutputDirHealth(stageName, "database directory", s.cfg.DatabasePath())
}

// LoadResult describes one completed load.
type LoadResult struct {
	InputPath    string
	DatabasePath string
	Loaded       int
	TotalRows    int
	Truncated    bool
}

// LoadFile reads the CSV at path and loads it into the database configured in
// cfg. Read failures carry services.ErrIO and malformed rows services.ErrFormat.
func LoadFile(ctx context.Context, cfg *config.Config, path string) (LoadResult, error) {
	recs, err := artifact.ReadRecords(path)
	if err != nil {
		return LoadResult{}, stage.ArtifactError(stageName, "read records artifact", path, err)
	}
	db, err := Open(cfg)
	if err != nil {
		return LoadResult{}, err
	}
	defer db.Close()

	loaded, err := db.Load(ctx, recs)
	if err != nil {
		return LoadResult{}, err
	}
	total, err := db.Count(ctx)
	if err != nil {
		return LoadResult{}, services.Wrap(services.ErrIO, stageName, "count movies", db.Path(), err)
	}
	return LoadResult{
		InputPath:    path,
		DatabasePath: db.Path(),
		Loaded:       loaded,
		TotalRows:    total,
		Truncated:    cfg.Load.TruncateBeforeLoad,
	}, nil
}
