package stageexec_test

import (
	"context"
	"errors"
	"testing"

	"boxd/internal/logging"
	"boxd/internal/runs"
	"boxd/internal/services"
	"boxd/internal/stageexec"
	"boxd/internal/testsupport"
)

type fakeHandler struct {
	prepareErr error
	executeErr error
	seenStatus runs.Status
	seenStage  string
	executed   bool
}

func (h *fakeHandler) Prepare(ctx context.Context, run *runs.Run) error {
	h.seenStatus = run.Status
	h.seenStage, _ = services.StageFromContext(ctx)
	return h.prepareErr
}

func (h *fakeHandler) Execute(context.Context, *runs.Run) error {
	h.executed = true
	return h.executeErr
}

func TestRunAdvancesStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	run := testsupport.NewRun(t, store, "run-ok", 1)
	handler := &fakeHandler{}

	err := stageexec.Run(context.Background(), stageexec.Options{
		Logger:     logging.NewNop(),
		Store:      store,
		Handler:    handler,
		StageName:  "scrape",
		Processing: runs.StatusScraping,
		Done:       runs.StatusScraped,
		Run:        run,
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if handler.seenStatus != runs.StatusScraping || handler.seenStage != "scrape" || !handler.executed {
		t.Fatalf("handler saw status=%q stage=%q executed=%v", handler.seenStatus, handler.seenStage, handler.executed)
	}

	stored, err := store.GetByID(context.Background(), run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != runs.StatusScraped || stored.StartedAt == nil {
		t.Fatalf("unexpected stored run: %#v", stored)
	}
}

func TestRunRecordsFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	run := testsupport.NewRun(t, store, "run-fail", 1)
	stageErr := services.Wrap(services.ErrFormat, "clean", "read raw artifact", "bad json", nil)
	handler := &fakeHandler{executeErr: stageErr}

	err := stageexec.Run(context.Background(), stageexec.Options{
		Logger:     logging.NewNop(),
		Store:      store,
		Handler:    handler,
		StageName:  "clean",
		Processing: runs.StatusCleaning,
		Done:       runs.StatusCleaned,
		Run:        run,
	})
	if !errors.Is(err, services.ErrFormat) {
		t.Fatalf("expected stage error to propagate, got %v", err)
	}

	stored, err := store.GetByID(context.Background(), run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != runs.StatusFailed || stored.ErrorMessage == "" || stored.FinishedAt == nil {
		t.Fatalf("expected failed run with message, got %#v", stored)
	}
}

func TestRunPrepareFailureSkipsExecute(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	run := testsupport.NewRun(t, store, "run-prep", 1)
	handler := &fakeHandler{prepareErr: errors.New("not ready")}

	err := stageexec.Run(context.Background(), stageexec.Options{
		Store:      store,
		Handler:    handler,
		StageName:  "load",
		Processing: runs.StatusLoading,
		Done:       runs.StatusCompleted,
		Run:        run,
	})
	if err == nil || handler.executed {
		t.Fatalf("expected prepare failure without execute, err=%v executed=%v", err, handler.executed)
	}
}

func TestRunValidatesOptions(t *testing.T) {
	if err := stageexec.Run(context.Background(), stageexec.Options{StageName: "scrape"}); err == nil {
		t.Fatal("expected error without handler")
	}
	if err := stageexec.Run(context.Background(), stageexec.Options{Handler: &fakeHandler{}}); err == nil {
		t.Fatal("expected error without store")
	}
}
