package runs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"boxd/internal/config"
	"boxd/internal/sqlitedb"
)

// Store manages run history backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const runColumns = "id, run_id, status, attempt, trigger_kind, raw_count, record_count, loaded_count, error_message, created_at, started_at, finished_at, updated_at"

// Open initializes or connects to the run database under the state directory.
func Open(cfg *config.Config) (*Store, error) {
	return OpenPath(cfg.StatePath())
}

// OpenPath opens the run database at an explicit path.
func OpenPath(path string) (*Store, error) {
	db, err := sqlitedb.Open(path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db, path: path}
	if err := store.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// NewRun inserts a pending attempt for runID.
func (s *Store) NewRun(ctx context.Context, runID string, attempt int, trigger Trigger) (*Run, error) {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return nil, errors.New("run id is required")
	}
	if attempt <= 0 {
		attempt = 1
	}
	if trigger == "" {
		trigger = TriggerManual
	}
	timestamp := formatTime(time.Now())

	res, err := sqlitedb.Exec(ctx, s.db,
		`INSERT INTO runs (run_id, status, attempt, trigger_kind, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		runID, StatusPending, attempt, string(trigger), timestamp, timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches a run row. It returns nil, nil when the row does not exist.
func (s *Store) GetByID(ctx context.Context, id int64) (*Run, error) {
	ctx = sqlitedb.EnsureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// Update persists changes to an existing run.
func (s *Store) Update(ctx context.Context, run *Run) error {
	if run == nil {
		return errors.New("run is nil")
	}
	run.UpdatedAt = time.Now().UTC()
	res, err := sqlitedb.Exec(ctx, s.db,
		`UPDATE runs SET
            status = ?, raw_count = ?, record_count = ?, loaded_count = ?,
            error_message = ?, started_at = ?, finished_at = ?, updated_at = ?
         WHERE id = ?`,
		string(run.Status),
		run.RawCount,
		run.RecordCount,
		run.LoadedCount,
		nullableString(run.ErrorMessage),
		nullableTime(run.StartedAt),
		nullableTime(run.FinishedAt),
		formatTime(run.UpdatedAt),
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update run %d: no such row", run.ID)
	}
	return nil
}

// List returns the most recent runs, newest first. A limit <= 0 returns all rows.
func (s *Store) List(ctx context.Context, limit int) ([]*Run, error) {
	ctx = sqlitedb.EnsureContext(ctx)
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// ListByRunID returns every attempt recorded for runID in attempt order.
func (s *Store) ListByRunID(ctx context.Context, runID string) ([]*Run, error) {
	ctx = sqlitedb.EnsureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE run_id = ? ORDER BY attempt, id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var out []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// LastStarted returns the most recently started run, or nil when no run has
// started yet.
func (s *Store) LastStarted(ctx context.Context) (*Run, error) {
	ctx = sqlitedb.EnsureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE started_at IS NOT NULL ORDER BY started_at DESC, id DESC LIMIT 1`)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last started run: %w", err)
	}
	return run, nil
}

// FailInFlight marks every run that never reached a terminal status as
// failed with reason. It returns the number of rows changed.
func (s *Store) FailInFlight(ctx context.Context, reason string) (int64, error) {
	if strings.TrimSpace(reason) == "" {
		reason = InterruptedReason
	}
	now := formatTime(time.Now())
	args := []any{string(StatusFailed), reason, now, now}
	for _, status := range inFlightStatuses {
		args = append(args, string(status))
	}
	res, err := sqlitedb.Exec(ctx, s.db,
		`UPDATE runs SET status = ?, error_message = ?, finished_at = ?, updated_at = ?
         WHERE status IN (`+makePlaceholders(len(inFlightStatuses))+`)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("fail in-flight runs: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns a count of runs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	ctx = sqlitedb.EnsureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM runs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("run stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Clear removes all run history.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := sqlitedb.Exec(ctx, s.db, `DELETE FROM runs`)
	if err != nil {
		return 0, fmt.Errorf("clear runs: %w", err)
	}
	return res.RowsAffected()
}
