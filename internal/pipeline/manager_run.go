package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"boxd/internal/logging"
	"boxd/internal/runs"
	"boxd/internal/services"
	"boxd/internal/stageexec"
)

const cancelledReason = "run cancelled"

// RunOnce executes one pipeline run with retries. It returns ErrRunActive
// without waiting when another run holds the lock. The returned Result lists
// every attempt made, including on error.
func (m *Manager) RunOnce(ctx context.Context, trigger runs.Trigger) (Result, error) {
	m.mu.RLock()
	stages := append([]pipelineStage(nil), m.stages...)
	m.mu.RUnlock()
	if len(stages) == 0 {
		return Result{}, errors.New("pipeline stages not configured")
	}

	release, err := m.acquire()
	if err != nil {
		return Result{}, err
	}
	defer release()

	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, m.logger)
	result := Result{RunID: runID}

	maxAttempts := m.cfg.Pipeline.Retries + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	started := time.Now()
	logger.Info("pipeline run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.String("trigger", string(trigger)),
		logging.Int("max_attempts", maxAttempts),
	)

	for attempt := 1; ; attempt++ {
		run, err := m.runAttempt(ctx, stages, runID, attempt, trigger)
		if run != nil {
			result.Attempts = append(result.Attempts, run)
			m.setLastRun(run)
		}
		if err == nil {
			m.setLastError(nil)
			logger.Info("pipeline run completed",
				logging.String(logging.FieldEventType, "run_complete"),
				logging.Int(logging.FieldAttempt, attempt),
				logging.Int("raw_count", run.RawCount),
				logging.Int("record_count", run.RecordCount),
				logging.Int("loaded_count", run.LoadedCount),
				logging.Duration("run_duration", time.Since(started).Round(time.Millisecond)),
			)
			return result, nil
		}
		m.setLastError(err)

		if ctxErr := ctx.Err(); ctxErr != nil {
			logging.WarnWithContext(logger, "pipeline run cancelled", "run_cancelled",
				logging.Int(logging.FieldAttempt, attempt),
				logging.String(logging.FieldErrorHint, "rerun with boxd run once the process can finish"),
				logging.String(logging.FieldImpact, "the sink was not updated by this run"),
			)
			return result, ctxErr
		}
		if !services.Retryable(err) || attempt >= maxAttempts {
			logging.ErrorWithContext(logger, "pipeline run failed", "run_failed",
				logging.Int(logging.FieldAttempt, attempt),
				logging.Bool("retryable", services.Retryable(err)),
				logging.String("error_kind", services.Kind(err)),
				logging.String(logging.FieldErrorHint, "inspect the stage_failure entry for this run"),
				logging.Error(err),
			)
			return result, err
		}

		logging.WarnWithContext(logger, "pipeline attempt failed; retrying", "run_retry",
			logging.Int(logging.FieldAttempt, attempt),
			logging.Int("next_attempt", attempt+1),
			logging.Duration("retry_delay", m.retryDelay),
			logging.String("error_kind", services.Kind(err)),
			logging.String(logging.FieldErrorHint, "the next attempt restarts at the scrape stage"),
			logging.Error(err),
		)
		if err := waitForRetry(ctx, m.retryDelay); err != nil {
			return result, err
		}
	}
}

func (m *Manager) runAttempt(ctx context.Context, stages []pipelineStage, runID string, attempt int, trigger runs.Trigger) (*runs.Run, error) {
	ctx = services.WithAttempt(ctx, attempt)
	logger := logging.WithContext(ctx, m.logger)

	run, err := m.store.NewRun(ctx, runID, attempt, trigger)
	if err != nil {
		return nil, services.Wrap(services.ErrIO, "pipeline", "record attempt", m.store.Path(), err)
	}

	if err := m.runPreflightChecks(ctx, logger); err != nil {
		m.failRun(ctx, logger, run, err.Error())
		return run, err
	}

	for _, stg := range stages {
		if err := ctx.Err(); err != nil {
			m.failRun(ctx, logger, run, cancelledReason)
			return run, err
		}
		err := stageexec.Run(ctx, stageexec.Options{
			Logger:     logger,
			Store:      m.store,
			Handler:    stg.handler,
			StageName:  stg.name,
			Processing: stg.processingStatus,
			Done:       stg.doneStatus,
			Run:        run,
		})
		if err != nil {
			if run.Status != runs.StatusFailed {
				// Persistence failed before the stage ran.
				m.failRun(ctx, logger, run, err.Error())
			}
			return run, err
		}
	}

	run.SetCompleted(time.Now())
	if err := m.store.Update(context.WithoutCancel(ctx), run); err != nil {
		return run, services.Wrap(services.ErrIO, "pipeline", "persist completion", m.store.Path(), err)
	}
	return run, nil
}

func (m *Manager) failRun(ctx context.Context, logger *slog.Logger, run *runs.Run, reason string) {
	now := time.Now()
	run.MarkStarted(now)
	run.SetFailed(reason, now)
	if err := m.store.Update(context.WithoutCancel(ctx), run); err != nil {
		logger.Error("failed to persist run failure",
			logging.String(logging.FieldEventType, "run_persist_failed"),
			logging.Error(err),
		)
	}
}

// acquire takes the in-process guard and the cross-process file lock.
func (m *Manager) acquire() (func(), error) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil, ErrRunActive
	}
	m.running = true
	m.mu.Unlock()

	reset := func() {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
	}

	if err := os.MkdirAll(filepath.Dir(m.lock.Path()), 0o755); err != nil {
		reset()
		return nil, fmt.Errorf("ensure lock directory: %w", err)
	}
	ok, err := m.lock.TryLock()
	if err != nil {
		reset()
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		reset()
		return nil, ErrRunActive
	}
	return func() {
		if err := m.lock.Unlock(); err != nil {
			m.logger.Warn("failed to release run lock",
				logging.String(logging.FieldEventType, "run_lock_release_failed"),
				logging.String("lock", m.lock.Path()),
				logging.Error(err),
			)
		}
		reset()
	}, nil
}

func waitForRetry(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
