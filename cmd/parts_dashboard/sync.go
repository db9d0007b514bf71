package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/parts-dashboard/internal/observability"
	"github.com/jonathan/parts-dashboard/internal/types"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync in-scope jobs from the Zuper API into the local store",
	Long: `Fetches every job in the tracked category from the Zuper API, normalizes it
and upserts it into the local store. The run is recorded in the sync log.

The command exits non-zero when the run fails, so it can be scheduled from cron.`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the last sync run and the sync history",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().IntVarP(&statusLimit, "limit", "n", 10, "Number of runs to list")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statusCmd)
}

func runSync(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.cfg.App.Features.ManualSync {
		return fmt.Errorf("manual sync is disabled (app.features.manual_sync)")
	}

	run, err := a.syncer.RunSync(cmd.Context())
	printer := observability.NewPrinter(cmd.OutOrStdout())
	if run != nil {
		printer.PrintSyncRun(run)
	}
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}
	if run.Status == types.SyncStatusFailed {
		return fmt.Errorf("sync failed with %d errors", len(run.ErrorMessages))
	}
	return nil
}

func runStatus(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	last, err := a.syncer.GetLastSyncInfo(cmd.Context())
	if err != nil {
		return err
	}
	runs, err := a.db.ListSyncRuns(cmd.Context(), statusLimit)
	if err != nil {
		return err
	}

	printer := observability.NewPrinter(cmd.OutOrStdout())
	printer.PrintSyncRun(last)
	if len(runs) > 1 {
		printer.PrintSyncRuns(runs)
	}
	return nil
}
