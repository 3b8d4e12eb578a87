// Package stageexec runs a single stage against a run row, persisting the
// status transitions and logging the stage lifecycle.
package stageexec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"boxd/internal/logging"
	"boxd/internal/runs"
	"boxd/internal/services"
	"boxd/internal/stage"
)

// Handler is the stage contract used by the execution helper.
type Handler interface {
	Prepare(context.Context, *runs.Run) error
	Execute(context.Context, *runs.Run) error
}

// Options controls stage execution and run persistence behavior.
type Options struct {
	Logger     *slog.Logger
	Store      *runs.Store
	Handler    Handler
	StageName  string
	Processing runs.Status
	Done       runs.Status
	Run        *runs.Run
}

// Run executes a stage: it persists the processing status, calls Prepare and
// Execute, then persists the done status. On failure the run is marked failed
// and the stage error is returned unchanged.
func Run(ctx context.Context, opts Options) error {
	if opts.Handler == nil {
		return fmt.Errorf("stage handler unavailable: %s", opts.StageName)
	}
	if opts.Store == nil {
		return errors.New("run store is required")
	}
	if opts.Run == nil {
		return errors.New("run is required")
	}

	stageCtx := services.WithStage(ctx, opts.StageName)
	stageLogger := logging.WithContext(stageCtx, opts.Logger)
	if aware, ok := opts.Handler.(stage.LoggerAware); ok {
		aware.SetLogger(stageLogger)
	}

	started := time.Now()
	stageLogger.Info(
		"stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("processing_status", string(opts.Processing)),
	)

	opts.Run.Status = opts.Processing
	opts.Run.ErrorMessage = ""
	opts.Run.MarkStarted(started)
	if err := opts.Store.Update(stageCtx, opts.Run); err != nil {
		return fmt.Errorf("persist processing transition: %w", err)
	}

	if err := opts.Handler.Prepare(stageCtx, opts.Run); err != nil {
		return handleFailure(stageCtx, stageLogger, opts.Store, opts.Run, err)
	}
	if err := opts.Handler.Execute(stageCtx, opts.Run); err != nil {
		return handleFailure(stageCtx, stageLogger, opts.Store, opts.Run, err)
	}

	if opts.Run.Status == opts.Processing || opts.Run.Status == "" {
		opts.Run.Status = opts.Done
	}
	if err := opts.Store.Update(stageCtx, opts.Run); err != nil {
		return fmt.Errorf("persist stage result: %w", err)
	}

	stageLogger.Info(
		"stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("next_status", string(opts.Run.Status)),
		logging.Duration("stage_duration", time.Since(started).Round(time.Millisecond)),
	)
	return nil
}

func handleFailure(ctx context.Context, logger *slog.Logger, store *runs.Store, run *runs.Run, stageErr error) error {
	message := "stage failed"
	if stageErr != nil {
		if msg := strings.TrimSpace(stageErr.Error()); msg != "" {
			message = msg
		}
	}
	run.SetFailed(message, time.Now())

	logging.ErrorWithContext(logger, "stage failed", "stage_failure",
		logging.String("resolved_status", string(runs.StatusFailed)),
		logging.String("error_kind", services.Kind(stageErr)),
		logging.String(logging.FieldErrorHint, failureHint(stageErr)),
		logging.Error(stageErr),
	)
	// The stage context may already be cancelled; persist the failure regardless.
	if err := store.Update(context.WithoutCancel(ctx), run); err != nil {
		logger.Error("failed to persist stage failure", logging.Error(err))
	}
	return stageErr
}

func failureHint(err error) string {
	switch services.Kind(err) {
	case "io":
		return "check that the artifact path exists and is writable"
	case "format":
		return "inspect the artifact named in the error; a fresh scrape rewrites it"
	case "external":
		return "check network access to the list URL and whether the page layout changed"
	case "configuration":
		return "fix the configuration and rerun"
	default:
		return "check logs for details"
	}
}
