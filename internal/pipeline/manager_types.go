package pipeline

import (
	"log/slog"

	"boxd/internal/cleaning"
	"boxd/internal/config"
	"boxd/internal/runs"
	"boxd/internal/scraper"
	"boxd/internal/sink"
	"boxd/internal/stage"
)

// StageSet bundles the concrete stage handlers the manager orchestrates.
type StageSet struct {
	Scraper stage.Handler
	Cleaner stage.Handler
	Loader  stage.Handler
}

// DefaultStages builds the production scrape, clean and load stages.
func DefaultStages(cfg *config.Config, logger *slog.Logger) StageSet {
	return StageSet{
		Scraper: scraper.NewStage(cfg, nil, logger),
		Cleaner: cleaning.NewStage(cfg, logger),
		Loader:  sink.NewStage(cfg, logger),
	}
}

type pipelineStage struct {
	name             string
	handler          stage.Handler
	processingStatus runs.Status
	doneStatus       runs.Status
}

// Result summarizes one RunOnce call.
type Result struct {
	RunID    string
	Attempts []*runs.Run
}

// Final returns the last attempt, or nil when no attempt was recorded.
func (r Result) Final() *runs.Run {
	if len(r.Attempts) == 0 {
		return nil
	}
	return r.Attempts[len(r.Attempts)-1]
}
