// Package stage defines the contract each pipeline stage implements.
package stage

import (
	"context"
	"log/slog"

	"boxd/internal/runs"
)

// Handler describes what the pipeline manager needs from each stage.
type Handler interface {
	Prepare(context.Context, *runs.Run) error
	Execute(context.Context, *runs.Run) error
	HealthCheck(context.Context) Health
}

// LoggerAware handlers receive the stage-scoped logger before Prepare runs.
type LoggerAware interface {
	SetLogger(*slog.Logger)
}
