package daemon

import (
	"context"
	"errors"
	"time"

	"boxd/internal/logging"
	"boxd/internal/pipeline"
	"boxd/internal/runs"
)

// Due reports whether a scheduled run should start now, along with the time
// the next run becomes due. A store with no started run is always due.
func (d *Daemon) Due(ctx context.Context) (bool, time.Time, error) {
	now := d.now()
	last, err := d.store.LastStarted(ctx)
	if err != nil {
		return false, time.Time{}, err
	}
	if last == nil || last.StartedAt == nil {
		return true, now, nil
	}
	next := last.StartedAt.Add(d.cfg.SchedulePeriod())
	return !now.Before(next), next, nil
}

func (d *Daemon) loop(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.tick(ctx)
		}
	}
}

// tick runs at most one scheduled pipeline run. Ticks that arrive while a run
// is in progress are dropped by the ticker, so missed periods collapse into
// one run.
func (d *Daemon) tick(ctx context.Context) {
	d.mu.Lock()
	d.lastCheck = d.now()
	d.mu.Unlock()

	due, next, err := d.Due(ctx)
	if err != nil {
		logging.WarnWithContext(d.logger, "schedule check failed", "schedule_check_failed",
			logging.String(logging.FieldErrorHint, "check run store access"),
			logging.String(logging.FieldImpact, "scheduled runs are delayed until the store is readable"),
			logging.Error(err),
		)
		return
	}
	if !due {
		d.logger.Debug("scheduled run not due",
			logging.String(logging.FieldEventType, "schedule_idle"),
			logging.String("next_due", next.Format(time.RFC3339)),
		)
		return
	}

	d.logger.Info("scheduled run due",
		logging.String(logging.FieldEventType, "schedule_due"),
	)
	_, err = d.pipeline.RunOnce(ctx, runs.TriggerScheduled)
	switch {
	case err == nil:
	case errors.Is(err, pipeline.ErrRunActive):
		d.logger.Info("scheduled run skipped; another run is active",
			logging.String(logging.FieldEventType, "schedule_skipped"),
		)
	case ctx.Err() != nil:
		return
	default:
		// RunOnce already logged the failure with run context.
		d.logger.Debug("scheduled run failed", logging.Error(err))
	}
	d.pruneLogs()
}
