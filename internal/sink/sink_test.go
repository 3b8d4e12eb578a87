package sink_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"boxd/internal/logging"
	"boxd/internal/records"
	"boxd/internal/runs"
	"boxd/internal/services"
	"boxd/internal/sink"
	"boxd/internal/testsupport"
)

func openSink(t *testing.T, opts ...testsupport.ConfigOption) *sink.Sink {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	s, err := sink.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

var sample = []records.Record{
	{Title: "Parasite", Year: "2019", Rating: 5},
	{Title: "Oldboy", Year: "2003", Rating: 4},
}

func TestLoadAppendsRows(t *testing.T) {
	s := openSink(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		n, err := s.Load(ctx, sample)
		if err != nil {
			t.Fatalf("Load #%d: %v", i+1, err)
		}
		if n != len(sample) {
			t.Fatalf("expected %d rows loaded, got %d", len(sample), n)
		}
	}

	count, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 4 {
		t.Fatalf("expected repeated loads to accumulate 4 rows, got %d", count)
	}

	movies, err := s.List(ctx, 3)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []sink.Movie{
		{ID: 1, Title: "Parasite", Year: 2019, Rating: 5},
		{ID: 2, Title: "Oldboy", Year: 2003, Rating: 4},
		{ID: 3, Title: "Parasite", Year: 2019, Rating: 5},
	}
	if diff := cmp.Diff(want, movies); diff != "" {
		t.Fatalf("movies mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadTruncateReplacesRows(t *testing.T) {
	s := openSink(t, testsupport.WithTruncate())
	ctx := context.Background()

	if _, err := s.Load(ctx, sample); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := s.Load(ctx, sample[:1]); err != nil {
		t.Fatalf("Load: %v", err)
	}
	count, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected truncate to leave 1 row, got %d", count)
	}
}

func TestLoadRejectsNonNumericYear(t *testing.T) {
	s := openSink(t)
	ctx := context.Background()

	bad := append([]records.Record{}, sample...)
	bad = append(bad, records.Record{Title: "Broken", Year: "19x9", Rating: 3})
	_, err := s.Load(ctx, bad)
	if !errors.Is(err, services.ErrFormat) {
		t.Fatalf("expected ErrFormat, got %v", err)
	}
	count, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no rows after rejected load, got %d", count)
	}
}

func TestLoadEmptySet(t *testing.T) {
	s := openSink(t)
	n, err := s.Load(context.Background(), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 rows, got %d", n)
	}
}

func TestStageLoadsRecordsArtifact(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteFile(t, cfg.RecordsPath(), "Title,Year,Rating\nParasite,2019,5\n\"Crouching Tiger, Hidden Dragon\",2000,4\n")

	st := sink.NewStage(cfg, logging.NewNop())
	run := &runs.Run{RunID: "run-1", Attempt: 1}
	ctx := context.Background()
	if err := st.Prepare(ctx, run); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := st.Execute(ctx, run); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if run.LoadedCount != 2 {
		t.Fatalf("expected 2 loaded, got %d", run.LoadedCount)
	}

	s, err := sink.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	movies, err := s.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(movies) != 2 || movies[1].Title != "Crouching Tiger, Hidden Dragon" {
		t.Fatalf("unexpected movies: %+v", movies)
	}
}

func TestStagePrepareMissingArtifact(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := sink.NewStage(cfg, logging.NewNop())
	err := st.Prepare(context.Background(), &runs.Run{})
	if !errors.Is(err, services.ErrIO) {
		t.Fatalf("expected ErrIO, got %v", err)
	}
}

func TestLoadFileMalformedCSV(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteFile(t, cfg.RecordsPath(), "Title,Year,Rating\nParasite,2019,five\n")

	_, err := sink.LoadFile(context.Background(), cfg, cfg.RecordsPath())
	if !errors.Is(err, services.ErrFormat) {
		t.Fatalf("expected ErrFormat, got %v", err)
	}
}
