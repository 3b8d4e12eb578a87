package daemon_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"boxd/internal/config"
	"boxd/internal/daemon"
	"boxd/internal/logging"
	"boxd/internal/pipeline"
	"boxd/internal/runs"
	"boxd/internal/stage"
	"boxd/internal/testsupport"
)

type countingStage struct {
	calls atomic.Int32
}

func (s *countingStage) Prepare(context.Context, *runs.Run) error { return nil }

func (s *countingStage) Execute(context.Context, *runs.Run) error {
	s.calls.Add(1)
	return nil
}

func (s *countingStage) HealthCheck(context.Context) stage.Health {
	return stage.Healthy("counting")
}

func newDaemon(t *testing.T, cfg *config.Config) (*daemon.Daemon, *runs.Store, *countingStage) {
	t.Helper()
	store, err := runs.Open(cfg)
	if err != nil {
		t.Fatalf("runs.Open: %v", err)
	}
	st := &countingStage{}
	mgr := pipeline.NewManager(cfg, store, logging.NewNop())
	mgr.ConfigureStages(pipeline.StageSet{Scraper: st})
	d, err := daemon.New(cfg, store, logging.NewNop(), mgr)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d, store, st
}

func seedStartedRun(t *testing.T, store *runs.Store, status runs.Status, startedAt time.Time) *runs.Run {
	t.Helper()
	run := testsupport.NewRun(t, store, "seed-run", 1)
	run.Status = status
	run.MarkStarted(startedAt)
	if status == runs.StatusCompleted {
		run.SetCompleted(startedAt.Add(time.Minute))
	}
	if err := store.Update(context.Background(), run); err != nil {
		t.Fatalf("Update: %v", err)
	}
	return run
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestDaemonStartRunsWhenNothingHasRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, store, st := newDaemon(t, cfg)

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, func() bool {
		status := d.Status(context.Background())
		return st.calls.Load() == 1 && status.Pipeline.LastRun != nil && status.Pipeline.LastRun.IsTerminal()
	})

	status := d.Status(context.Background())
	if !status.Running {
		t.Fatal("expected running daemon")
	}
	if status.Pipeline.LastRun.Trigger != runs.TriggerScheduled {
		t.Fatalf("expected scheduled trigger, got %q", status.Pipeline.LastRun.Trigger)
	}
	if status.NextDue.IsZero() || status.LastCheck.IsZero() {
		t.Fatalf("expected schedule timestamps, got %+v", status)
	}

	d.Stop()
	if d.Status(context.Background()).Running {
		t.Fatal("expected daemon to stop")
	}
	list, err := store.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected exactly one scheduled run, got %d", len(list))
	}
}

func TestDaemonSkipsWhenRecentRunExists(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, store, st := newDaemon(t, cfg)
	seedStartedRun(t, store, runs.StatusCompleted, time.Now().Add(-time.Hour))

	due, next, err := d.Due(context.Background())
	if err != nil {
		t.Fatalf("Due: %v", err)
	}
	if due {
		t.Fatal("expected run not to be due")
	}
	if until := time.Until(next); until < 22*time.Hour || until > 24*time.Hour {
		t.Fatalf("unexpected next due %v", next)
	}

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, func() bool { return !d.Status(context.Background()).LastCheck.IsZero() })
	d.Stop()
	if st.calls.Load() != 0 {
		t.Fatalf("expected no run, stage ran %d times", st.calls.Load())
	}
}

func TestDueAfterSchedulePeriod(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, store, _ := newDaemon(t, cfg)

	due, _, err := d.Due(context.Background())
	if err != nil || !due {
		t.Fatalf("expected empty store to be due, due=%v err=%v", due, err)
	}

	seedStartedRun(t, store, runs.StatusFailed, time.Now().Add(-3*24*time.Hour))
	due, _, err = d.Due(context.Background())
	if err != nil || !due {
		t.Fatalf("expected stale run to be due, due=%v err=%v", due, err)
	}
}

func TestDaemonReclaimsInFlightRuns(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, store, _ := newDaemon(t, cfg)
	run := seedStartedRun(t, store, runs.StatusCleaning, time.Now())

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()

	got, err := store.GetByID(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != runs.StatusFailed || got.ErrorMessage == "" {
		t.Fatalf("expected reclaimed run to be failed, got %+v", got)
	}
}

func TestDaemonLeavesLiveRunAlone(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, store, _ := newDaemon(t, cfg)
	run := seedStartedRun(t, store, runs.StatusScraping, time.Now())

	runLock := flock.New(cfg.LockPath())
	ok, err := runLock.TryLock()
	if err != nil || !ok {
		t.Fatalf("TryLock run lock: ok=%v err=%v", ok, err)
	}
	defer runLock.Unlock()

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()

	got, err := store.GetByID(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != runs.StatusScraping || got.ErrorMessage != "" {
		t.Fatalf("expected live run untouched, got status=%s error=%q", got.Status, got.ErrorMessage)
	}
}

func TestDaemonSingleInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first, store, _ := newDaemon(t, cfg)
	seedStartedRun(t, store, runs.StatusCompleted, time.Now())
	second, _, _ := newDaemon(t, cfg)

	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	defer first.Stop()
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("expected second daemon to fail to start")
	}
}

func TestIsRunningReflectsLock(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, store, _ := newDaemon(t, cfg)
	seedStartedRun(t, store, runs.StatusCompleted, time.Now())

	running, err := daemon.IsRunning(cfg)
	if err != nil || running {
		t.Fatalf("expected no daemon, running=%v err=%v", running, err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	running, err = daemon.IsRunning(cfg)
	if err != nil || !running {
		t.Fatalf("expected running daemon, running=%v err=%v", running, err)
	}
	d.Stop()
	running, err = daemon.IsRunning(cfg)
	if err != nil || running {
		t.Fatalf("expected stopped daemon, running=%v err=%v", running, err)
	}
}
