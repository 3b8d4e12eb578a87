package testsupport

import (
	"context"
	"testing"

	"boxd/internal/config"
	"boxd/internal/runs"
)

// MustOpenStore opens a runs.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *runs.Store {
	t.Helper()

	store, err := runs.Open(cfg)
	if err != nil {
		t.Fatalf("runs.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewRun inserts a pending run attempt for tests.
func NewRun(t testing.TB, store *runs.Store, runID string, attempt int) *runs.Run {
	t.Helper()

	run, err := store.NewRun(context.Background(), runID, attempt, runs.TriggerManual)
	if err != nil {
		t.Fatalf("store.NewRun: %v", err)
	}
	return run
}
