package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"boxd/internal/artifact"
	"boxd/internal/cleaning"
	"boxd/internal/config"
	"boxd/internal/scraper"
	"boxd/internal/services"
	"boxd/internal/sink"
)

func newScrapeCommand(ctx *commandContext) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Fetch the list pages and write the raw tooltip artifact",
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx := cmd.Context()

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			target, err := resolveArtifactFlag(outPath, cfg.RawPath())
			if err != nil {
				return err
			}

			unlock, err := acquireRunLock(cfg)
			if err != nil {
				return err
			}
			defer unlock()

			tooltips, err := scraper.New(cfg, logger).Scrape(runCtx)
			if err != nil {
				return err
			}
			if err := artifact.WriteTooltips(target, tooltips); err != nil {
				return services.Wrap(services.ErrIO, "scrape", "write raw artifact", target, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Scraped %d tooltips from %d page(s) to %s\n", len(tooltips), len(cfg.PageURLs()), target)
			return nil
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "", "Raw artifact destination (default artifacts.raw_file)")
	return cmd
}

func newCleanCommand(ctx *commandContext) *cobra.Command {
	var inPath string
	var outPath string

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Transform the raw tooltip artifact into the records CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			in, err := resolveArtifactFlag(inPath, cfg.RawPath())
			if err != nil {
				return err
			}
			out, err := resolveArtifactFlag(outPath, cfg.RecordsPath())
			if err != nil {
				return err
			}

			unlock, err := acquireRunLock(cfg)
			if err != nil {
				return err
			}
			defer unlock()

			result, err := cleaning.Transform(cmd.Context(), in, out)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleaned %d records to %s (input %d, skipped %d, duplicates %d)\n",
				len(result.Records), result.OutputPath, result.Stats.Input, result.Stats.Skipped, result.Stats.Duplicates)
			return nil
		},
	}
	cmd.Flags().StringVar(&inPath, "in", "", "Raw artifact to read (default artifacts.raw_file)")
	cmd.Flags().StringVar(&outPath, "out", "", "Records CSV to write (default artifacts.records_file)")
	return cmd
}

func newLoadCommand(ctx *commandContext) *cobra.Command {
	var inPath string

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Append the records CSV to the SQLite sink",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			in, err := resolveArtifactFlag(inPath, cfg.RecordsPath())
			if err != nil {
				return err
			}

			unlock, err := acquireRunLock(cfg)
			if err != nil {
				return err
			}
			defer unlock()

			result, err := sink.LoadFile(cmd.Context(), cfg, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d rows into %s (table now has %d rows)\n",
				result.Loaded, result.DatabasePath, result.TotalRows)
			return nil
		},
	}
	cmd.Flags().StringVar(&inPath, "in", "", "Records CSV to read (default artifacts.records_file)")
	return cmd
}

// acquireRunLock takes the pipeline run lock so a single stage never writes
// artifacts or the sink underneath a scheduled or manual run.
func acquireRunLock(cfg *config.Config) (func(), error) {
	lock := flock.New(cfg.LockPath())
	if err := os.MkdirAll(filepath.Dir(lock.Path()), 0o755); err != nil {
		return nil, fmt.Errorf("ensure lock directory: %w", err)
	}
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("a pipeline run is active (lock %s)", lock.Path())
	}
	return func() { _ = lock.Unlock() }, nil
}

func resolveArtifactFlag(value, fallback string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	expanded, err := config.ExpandPath(value)
	if err != nil {
		return "", fmt.Errorf("resolve path %q: %w", value, err)
	}
	return expanded, nil
}
