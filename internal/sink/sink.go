// Package sink appends cleaned records to the movies table in SQLite.
package sink

import (
	"context"
	_ "embed"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"

	"boxd/internal/config"
	"boxd/internal/records"
	"boxd/internal/services"
	"boxd/internal/sqlitedb"
)

const stageName = "load"

//go:embed schema.sql
var schemaDDL string

// Movie is one stored row.
type Movie struct {
	ID     int64  `db:"id" json:"id"`
	Title  string `db:"title" json:"title"`
	Year   int    `db:"year" json:"year"`
	Rating int    `db:"rating" json:"rating"`
}

// Sink writes to the movies database.
type Sink struct {
	db       *sqlx.DB
	path     string
	truncate bool
}

// Open connects to the database configured in cfg and ensures the movies
// table exists.
func Open(cfg *config.Config) (*Sink, error) {
	s, err := OpenPath(cfg.DatabasePath())
	if err != nil {
		return nil, err
	}
	s.truncate = cfg.Load.TruncateBeforeLoad
	return s, nil
}

// OpenPath opens the database at an explicit path in append mode.
func OpenPath(path string) (*Sink, error) {
	sqlDB, err := sqlitedb.Open(path)
	if err != nil {
		return nil, services.Wrap(services.ErrIO, stageName, "open database", path, err)
	}
	if _, err := sqlitedb.Exec(context.Background(), sqlDB, schemaDDL); err != nil {
		_ = sqlDB.Close()
		return nil, services.Wrap(services.ErrIO, stageName, "create movies table", path, err)
	}
	return &Sink{db: sqlx.NewDb(sqlDB, "sqlite"), path: path}, nil
}

// SetTruncate toggles deleting existing rows before each load.
func (s *Sink) SetTruncate(truncate bool) {
	s.truncate = truncate
}

// Path returns the database file location.
func (s *Sink) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Sink) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Load inserts one row per record inside a single transaction and returns
// the number inserted. Existing rows are kept unless truncation is enabled,
// in which case they are deleted in the same transaction. A record whose year
// is not an integer fails the load before anything is written.
func (s *Sink) Load(ctx context.Context, recs []records.Record) (int, error) {
	ctx = sqlitedb.EnsureContext(ctx)
	years := make([]int, len(recs))
	for i, rec := range recs {
		year, err := strconv.Atoi(strings.TrimSpace(rec.Year))
		if err != nil {
			return 0, services.Wrap(services.ErrFormat, stageName, "convert year",
				fmt.Sprintf("record %d (%q) has year %q", i+1, rec.Title, rec.Year), err)
		}
		years[i] = year
	}

	err := sqlitedb.RetryOnBusy(ctx, func() error {
		return s.loadTx(ctx, recs, years)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		return 0, services.Wrap(services.ErrIO, stageName, "insert movies", s.path, err)
	}
	return len(recs), nil
}

func (s *Sink) loadTx(ctx context.Context, recs []records.Record, years []int) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if s.truncate {
		if _, err = tx.ExecContext(ctx, `DELETE FROM movies`); err != nil {
			return fmt.Errorf("truncate movies: %w", err)
		}
	}

	stmt, err := tx.PreparexContext(ctx, `INSERT INTO movies (title, year, rating) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, rec := range recs {
		if _, err = stmt.ExecContext(ctx, rec.Title, years[i], rec.Rating); err != nil {
			return fmt.Errorf("insert %q: %w", rec.Title, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// List returns up to limit rows in insertion order. A non-positive limit
// returns every row.
func (s *Sink) List(ctx context.Context, limit int) ([]Movie, error) {
	ctx = sqlitedb.EnsureContext(ctx)
	query := `SELECT id, COALESCE(title, '') AS title, COALESCE(year, 0) AS year, COALESCE(rating, 0) AS rating
              FROM movies ORDER BY id`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	var movies []Movie
	if err := s.db.SelectContext(ctx, &movies, query, args...); err != nil {
		return nil, fmt.Errorf("list movies: %w", err)
	}
	return movies, nil
}

// Count returns the number of stored rows.
func (s *Sink) Count(ctx context.Context) (int, error) {
	ctx = sqlitedb.EnsureContext(ctx)
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM movies`); err != nil {
		return 0, fmt.Errorf("count movies: %w", err)
	}
	return n, nil
}
