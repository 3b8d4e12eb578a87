package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"boxd/internal/config"
	"boxd/internal/daemon"
	"boxd/internal/logging"
	"boxd/internal/pipeline"
	"boxd/internal/runs"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the full scrape, clean and load pipeline once",
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx := cmd.Context()

			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfgVal *config.Config, store *runs.Store) error {
				mgr := pipeline.NewManager(cfgVal, store, logger)
				mgr.ConfigureStages(pipeline.DefaultStages(cfgVal, logger))

				result, err := mgr.RunOnce(runCtx, runs.TriggerManual)
				if errors.Is(err, pipeline.ErrRunActive) {
					return fmt.Errorf("a pipeline run is already active (lock %s)", mgr.LockPath())
				}
				out := cmd.OutOrStdout()
				if final := result.Final(); final != nil {
					fmt.Fprintf(out, "Run %s: %s after %d attempt(s)\n", result.RunID, final.Status, len(result.Attempts))
					fmt.Fprintf(out, "  Tooltips: %d  Records: %d  Loaded: %d\n", final.RawCount, final.RecordCount, final.LoadedCount)
				}
				return err
			})
		},
	}
}

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler daemon in the foreground",
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
			store, err := runs.Open(cfg)
			if err != nil {
				logger.Error("open run store", logging.Error(err))
				return err
			}

			mgr := pipeline.NewManager(cfg, store, logger)
			mgr.ConfigureStages(pipeline.DefaultStages(cfg, logger))

			d, err := daemon.New(cfg, store, logger, mgr)
			if err != nil {
				_ = store.Close()
				return fmt.Errorf("create daemon: %w", err)
			}
			defer d.Close()

			if err := d.Start(runCtx); err != nil {
				return err
			}
			<-runCtx.Done()
			logger.Info("boxd daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
			return nil
		},
	}
}
