package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"boxd/internal/config"
	"boxd/internal/daemon"
	"boxd/internal/preflight"
	"boxd/internal/runs"
	"boxd/internal/sink"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var checkNetwork bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show environment checks, daemon state and the last run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *runs.Store) error {
				out := cmd.OutOrStdout()
				return buildStatusReport(cmd.Context(), cfg, store, checkNetwork, isTerminal(out)).writeTo(out)
			})
		},
	}
	cmd.Flags().BoolVar(&checkNetwork, "network", false, "Also check that the list URL is reachable")
	return cmd
}

func buildStatusReport(ctx context.Context, cfg *config.Config, store *runs.Store, checkNetwork, colorize bool) *statusReport {
	report := &statusReport{color: colorize}

	report.section("Environment")
	results := preflight.RunAll(ctx, cfg)
	if checkNetwork {
		results = preflight.RunWithNetwork(ctx, cfg)
	}
	for _, r := range results {
		sev := sevOK
		if !r.Passed {
			sev = sevError
		}
		report.add(r.Name, sev, r.Detail)
	}

	report.section("Scheduler")
	running, err := daemon.IsRunning(cfg)
	switch {
	case err != nil:
		report.add("Daemon", sevWarn, err.Error())
	case running:
		report.add("Daemon", sevOK, "running")
	default:
		report.add("Daemon", sevInfo, "not running (start with `boxd serve`)")
	}
	report.add("Schedule period", sevInfo, cfg.SchedulePeriod().String())

	report.section("Last run")
	last, err := store.LastStarted(ctx)
	switch {
	case err != nil:
		report.add("Run store", sevError, err.Error())
	case last == nil:
		report.add("Run", sevInfo, "no runs recorded")
	default:
		report.add("Run", runSeverity(last.Status),
			fmt.Sprintf("%s attempt %d (%s)", shortRunID(last.RunID), last.Attempt, last.Status))
		report.add("Started", sevInfo, formatStarted(last.StartedAt))
		report.add("Counts", sevInfo,
			fmt.Sprintf("tooltips %d, records %d, loaded %d", last.RawCount, last.RecordCount, last.LoadedCount))
		if msg := strings.TrimSpace(last.ErrorMessage); msg != "" {
			report.add("Error", sevError, truncate(msg, 120))
		}
	}
	if stats, err := store.Stats(ctx); err == nil && len(stats) > 0 {
		parts := make([]string, 0, len(stats))
		for _, status := range runs.AllStatuses() {
			if n := stats[status]; n > 0 {
				parts = append(parts, fmt.Sprintf("%s %d", status, n))
			}
		}
		report.add("History", sevInfo, strings.Join(parts, ", "))
	}

	report.section("Sink")
	db, err := sink.Open(cfg)
	if err != nil {
		report.add("Database", sevError, err.Error())
		return report
	}
	defer db.Close()
	count, err := db.Count(ctx)
	if err != nil {
		report.add("Database", sevError, err.Error())
		return report
	}
	report.add("Database", sevOK, fmt.Sprintf("%s (%d rows)", db.Path(), count))
	report.add("Truncate on load", sevInfo, yesNo(cfg.Load.TruncateBeforeLoad))
	return report
}

func runSeverity(status runs.Status) severity {
	switch status {
	case runs.StatusCompleted:
		return sevOK
	case runs.StatusFailed:
		return sevError
	default:
		return sevWarn
	}
}
