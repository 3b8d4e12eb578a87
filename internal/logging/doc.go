// Package logging assembles structured slog loggers and formatting helpers used
// across boxd.
//
// It owns the console and JSON handlers, routes output to stdout and the
// rolling log file under log_dir, and exposes context helpers so stage code
// tags every line with the run ID, attempt, and stage automatically. Per-stage
// level overrides and log retention pruning also live here.
package logging
