package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"boxd/internal/config"
	"boxd/internal/runs"
	"boxd/internal/sink"
)

func newRecordsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "records",
		Short: "List films stored in the SQLite sink",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			db, err := sink.Open(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			movies, err := db.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				if movies == nil {
					movies = []sink.Movie{}
				}
				return writeJSON(cmd, movies)
			}

			out := cmd.OutOrStdout()
			if len(movies) == 0 {
				fmt.Fprintln(out, "No records loaded")
				return nil
			}
			rows := make([][]string, 0, len(movies))
			for _, m := range movies {
				rows = append(rows, []string{
					strconv.FormatInt(m.ID, 10),
					m.Title,
					strconv.Itoa(m.Year),
					strconv.Itoa(m.Rating),
				})
			}
			fmt.Fprintln(out, renderTable(out,
				[]column{numCol("ID"), col("Title"), numCol("Year"), numCol("Rating")},
				rows,
			))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum rows to show (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

type runView struct {
	ID           int64      `json:"id"`
	RunID        string     `json:"run_id"`
	Attempt      int        `json:"attempt"`
	Trigger      string     `json:"trigger"`
	Status       string     `json:"status"`
	RawCount     int        `json:"raw_count"`
	RecordCount  int        `json:"record_count"`
	LoadedCount  int        `json:"loaded_count"`
	ErrorMessage string     `json:"error_message,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

func newRunView(r *runs.Run) runView {
	return runView{
		ID:           r.ID,
		RunID:        r.RunID,
		Attempt:      r.Attempt,
		Trigger:      string(r.Trigger),
		Status:       string(r.Status),
		RawCount:     r.RawCount,
		RecordCount:  r.RecordCount,
		LoadedCount:  r.LoadedCount,
		ErrorMessage: r.ErrorMessage,
		StartedAt:    r.StartedAt,
		FinishedAt:   r.FinishedAt,
	}
}

var runColumns = []column{
	numCol("ID"), col("Run"), numCol("Attempt"), col("Trigger"), col("Status"),
	numCol("Raw"), numCol("Records"), numCol("Loaded"),
	col("Started"), numCol("Duration"), col("Error"),
}

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show pipeline run history, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *runs.Store) error {
				list, err := store.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				views := make([]runView, 0, len(list))
				for _, r := range list {
					views = append(views, newRunView(r))
				}
				if asJSON {
					return writeJSON(cmd, views)
				}

				out := cmd.OutOrStdout()
				if len(views) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				rows := make([][]string, 0, len(list))
				for _, r := range list {
					rows = append(rows, []string{
						strconv.FormatInt(r.ID, 10),
						shortRunID(r.RunID),
						strconv.Itoa(r.Attempt),
						string(r.Trigger),
						string(r.Status),
						strconv.Itoa(r.RawCount),
						strconv.Itoa(r.RecordCount),
						strconv.Itoa(r.LoadedCount),
						formatStarted(r.StartedAt),
						formatDuration(r.Duration()),
						truncate(r.ErrorMessage, 60),
					})
				}
				fmt.Fprintln(out, renderTable(out, runColumns, rows))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to show (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatStarted(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(time.Millisecond).String()
}

func truncate(value string, max int) string {
	value = strings.TrimSpace(value)
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	return string(runes[:max-1]) + "…"
}
