package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"boxd/internal/config"
	"boxd/internal/logging"
	"boxd/internal/pipeline"
	"boxd/internal/runs"
)

const (
	lockFileName         = "boxd-daemon.lock"
	defaultCheckInterval = time.Minute
	reclaimReason        = "interrupted: daemon restarted while the run was in progress"
)

// Daemon schedules pipeline runs and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *runs.Store
	pipeline *pipeline.Manager

	lockPath string
	lock     *flock.Flock
	interval time.Duration
	now      func() time.Time

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu        sync.Mutex
	lastCheck time.Time
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Pipeline     pipeline.StatusSummary
	NextDue      time.Time
	LastCheck    time.Time
	StateDBPath  string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *runs.Store, logger *slog.Logger, mgr *pipeline.Manager) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil || mgr == nil {
		return nil, errors.New("daemon requires config, store, logger, and pipeline manager")
	}
	interval := cfg.CheckInterval()
	if interval <= 0 {
		interval = defaultCheckInterval
	}
	lockPath := LockFilePath(cfg)
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		pipeline: mgr,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
		interval: interval,
		now:      time.Now,
	}, nil
}

// LockFilePath returns the daemon lock location for cfg.
func LockFilePath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.StateDir, lockFileName)
}

// IsRunning reports whether some process currently holds the daemon lock.
func IsRunning(cfg *config.Config) (bool, error) {
	path := LockFilePath(cfg)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	held := flock.New(path)
	ok, err := held.TryLock()
	if err != nil {
		return false, fmt.Errorf("check daemon lock: %w", err)
	}
	if ok {
		_ = held.Unlock()
		return false, nil
	}
	return true, nil
}

// Start acquires the daemon lock, reclaims interrupted runs and launches the
// scheduling loop.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("ensure lock directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another boxd daemon instance is already running")
	}

	if err := d.reclaimInterrupted(ctx); err != nil {
		_ = d.lock.Unlock()
		return err
	}
	d.pruneLogs()

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.running.Store(true)
	d.wg.Add(1)
	go d.loop(runCtx)

	d.logger.Info("boxd daemon started",
		logging.String(logging.FieldEventType, "daemon_start"),
		logging.String("lock", d.lockPath),
		logging.Duration("check_interval", d.interval),
		logging.Duration("schedule_period", d.cfg.SchedulePeriod()),
	)
	return nil
}

// reclaimInterrupted fails runs left in a processing status by a process that
// died mid-run. Nothing is touched while another process holds the pipeline
// run lock, since its in-flight rows are still live.
func (d *Daemon) reclaimInterrupted(ctx context.Context) error {
	runLock := flock.New(d.cfg.LockPath())
	ok, err := runLock.TryLock()
	if err != nil {
		return fmt.Errorf("check run lock: %w", err)
	}
	if !ok {
		d.logger.Info("pipeline run active in another process; skipping reclaim",
			logging.String(logging.FieldEventType, "runs_reclaim_skipped"),
			logging.String("lock", runLock.Path()),
		)
		return nil
	}
	defer func() { _ = runLock.Unlock() }()

	reclaimed, err := d.store.FailInFlight(ctx, reclaimReason)
	if err != nil {
		return fmt.Errorf("reclaim in-flight runs: %w", err)
	}
	if reclaimed > 0 {
		logging.WarnWithContext(d.logger, "reclaimed interrupted runs", "runs_reclaimed",
			logging.Int64("count", reclaimed),
			logging.String(logging.FieldErrorHint, "the previous process stopped mid-run; the next scheduled run starts fresh"),
			logging.String(logging.FieldImpact, "interrupted runs are marked failed"),
		)
	}
	return nil
}

// Stop cancels the scheduling loop, waits for an in-progress run to unwind and
// releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("boxd daemon stopped", logging.String(logging.FieldEventType, "daemon_stop"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status reports the daemon state, the pipeline summary and the next due time.
func (d *Daemon) Status(ctx context.Context) Status {
	_, next, err := d.Due(ctx)
	if err != nil {
		d.logger.Warn("failed to evaluate schedule", logging.Error(err))
	}
	d.mu.Lock()
	lastCheck := d.lastCheck
	d.mu.Unlock()
	return Status{
		Running:      d.running.Load(),
		Pipeline:     d.pipeline.Status(ctx),
		NextDue:      next,
		LastCheck:    lastCheck,
		StateDBPath:  d.store.Path(),
		LockFilePath: d.lockPath,
	}
}

// LockPath returns the daemon lock file location.
func (d *Daemon) LockPath() string {
	return d.lockPath
}

func (d *Daemon) pruneLogs() {
	logging.PruneLogs(d.logger, d.cfg.Paths.LogDir, "*.log*", d.cfg.Logging.RetentionDays, logging.LogFilePath(d.cfg))
}
