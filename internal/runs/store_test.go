package runs_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"boxd/internal/runs"
	"boxd/internal/testsupport"
)

func TestNewRunAndGetByID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	run, err := store.NewRun(ctx, "run-1", 1, runs.TriggerScheduled)
	if err != nil {
		t.Fatalf("NewRun failed: %v", err)
	}
	if run.ID == 0 {
		t.Fatal("expected run ID to be assigned")
	}
	if run.Status != runs.StatusPending || run.Attempt != 1 || run.Trigger != runs.TriggerScheduled {
		t.Fatalf("unexpected new run: %#v", run)
	}
	if run.StartedAt != nil || run.FinishedAt != nil {
		t.Fatalf("expected unset start/finish, got %#v", run)
	}

	missing, err := store.GetByID(ctx, run.ID+100)
	if err != nil || missing != nil {
		t.Fatalf("expected nil for missing id, got %#v %v", missing, err)
	}
}

func TestNewRunRequiresRunID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	if _, err := store.NewRun(context.Background(), "  ", 1, runs.TriggerManual); err == nil {
		t.Fatal("expected error when run id missing")
	}
}

func TestUpdatePersistsProgress(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	run := testsupport.NewRun(t, store, "run-2", 2)
	now := time.Now()
	run.MarkStarted(now)
	run.Status = runs.StatusCleaned
	run.RawCount = 250
	run.RecordCount = 248
	if err := store.Update(ctx, run); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	run.SetFailed("  sink unavailable ", now.Add(time.Second))
	if err := store.Update(ctx, run); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	fetched, err := store.GetByID(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.Status != runs.StatusFailed || fetched.ErrorMessage != "sink unavailable" {
		t.Fatalf("unexpected status/error: %#v", fetched)
	}
	if fetched.RawCount != 250 || fetched.RecordCount != 248 || fetched.Attempt != 2 {
		t.Fatalf("counts not persisted: %#v", fetched)
	}
	if fetched.StartedAt == nil || fetched.FinishedAt == nil {
		t.Fatalf("expected start and finish times, got %#v", fetched)
	}
	if got := fetched.Duration(); got != time.Second {
		t.Fatalf("expected 1s duration, got %s", got)
	}
}

func TestUpdateMissingRow(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	if err := store.Update(context.Background(), &runs.Run{ID: 42, Status: runs.StatusFailed}); err == nil {
		t.Fatal("expected error updating missing row")
	}
}

func TestListNewestFirstWithLimit(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		testsupport.NewRun(t, store, "run-list", i)
	}
	list, err := store.List(ctx, 2)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 || list[0].Attempt != 3 || list[1].Attempt != 2 {
		t.Fatalf("unexpected list order: %+v", list)
	}
	all, err := store.List(ctx, 0)
	if err != nil || len(all) != 3 {
		t.Fatalf("expected all runs, got %d %v", len(all), err)
	}

	attempts, err := store.ListByRunID(ctx, "run-list")
	if err != nil || len(attempts) != 3 || attempts[0].Attempt != 1 {
		t.Fatalf("unexpected attempts: %+v %v", attempts, err)
	}
}

func TestLastStarted(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	last, err := store.LastStarted(ctx)
	if err != nil || last != nil {
		t.Fatalf("expected no started runs, got %#v %v", last, err)
	}

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	older := testsupport.NewRun(t, store, "older", 1)
	older.MarkStarted(base.Add(100 * time.Millisecond))
	if err := store.Update(ctx, older); err != nil {
		t.Fatal(err)
	}
	newer := testsupport.NewRun(t, store, "newer", 1)
	newer.MarkStarted(base.Add(120 * time.Millisecond))
	if err := store.Update(ctx, newer); err != nil {
		t.Fatal(err)
	}
	testsupport.NewRun(t, store, "never-started", 1)

	last, err = store.LastStarted(ctx)
	if err != nil {
		t.Fatalf("LastStarted failed: %v", err)
	}
	if last == nil || last.RunID != "newer" {
		t.Fatalf("expected newer run, got %#v", last)
	}
}

func TestFailInFlight(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	statuses := []runs.Status{
		runs.StatusPending,
		runs.StatusScraping,
		runs.StatusCleaned,
		runs.StatusLoading,
		runs.StatusCompleted,
		runs.StatusFailed,
	}
	ids := make(map[runs.Status]int64, len(statuses))
	for _, status := range statuses {
		run := testsupport.NewRun(t, store, "run-"+string(status), 1)
		run.Status = status
		if err := store.Update(ctx, run); err != nil {
			t.Fatal(err)
		}
		ids[status] = run.ID
	}

	n, err := store.FailInFlight(ctx, "")
	if err != nil {
		t.Fatalf("FailInFlight failed: %v", err)
	}
	if n != 4 {
		t.Fatalf("expected 4 reclaimed runs, got %d", n)
	}
	for _, status := range statuses {
		run, err := store.GetByID(ctx, ids[status])
		if err != nil {
			t.Fatal(err)
		}
		want := runs.StatusFailed
		if status == runs.StatusCompleted {
			want = runs.StatusCompleted
		}
		if run.Status != want {
			t.Fatalf("%s: expected %s, got %s", status, want, run.Status)
		}
		if status != runs.StatusCompleted && status != runs.StatusFailed && run.ErrorMessage != runs.InterruptedReason {
			t.Fatalf("%s: expected interrupted reason, got %q", status, run.ErrorMessage)
		}
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats[runs.StatusFailed] != 5 || stats[runs.StatusCompleted] != 1 {
		t.Fatalf("unexpected stats: %v", stats)
	}
}

func TestClear(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.NewRun(t, store, "a", 1)
	testsupport.NewRun(t, store, "b", 1)
	n, err := store.Clear(ctx)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 cleared, got %d %v", n, err)
	}
	list, err := store.List(ctx, 0)
	if err != nil || len(list) != 0 {
		t.Fatalf("expected empty list, got %d %v", len(list), err)
	}
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	store.Close()

	db, err := sql.Open("sqlite", cfg.StatePath())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec("PRAGMA user_version = 99"); err != nil {
		t.Fatal(err)
	}
	db.Close()

	if _, err := runs.Open(cfg); !errors.Is(err, runs.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestParseStatus(t *testing.T) {
	if s, ok := runs.ParseStatus(" Completed "); !ok || s != runs.StatusCompleted {
		t.Fatalf("ParseStatus failed: %q %v", s, ok)
	}
	if _, ok := runs.ParseStatus("encoding"); ok {
		t.Fatal("expected unknown status to be rejected")
	}
	if !runs.IsProcessingStatus(runs.StatusLoading) || runs.IsProcessingStatus(runs.StatusCleaned) {
		t.Fatal("unexpected processing classification")
	}
}
