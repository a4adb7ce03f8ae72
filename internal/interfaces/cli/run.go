package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/catalogsync/backend/internal/application/catalogsync"
	"github.com/catalogsync/backend/internal/domain/integration"
)

var (
	runTriggerType string
	runTimeout     time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a catalog reconciliation now",
	Long: `Starts a reconciliation run and waits for it to finish.
The command exits non-zero when the run fails or another run is in progress.`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func init() {
	runCmd.Flags().StringVar(&runTriggerType, "type", string(integration.TriggerManual), "trigger type recorded in the ledger (manual or scheduled)")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 30*time.Minute, "upper bound for the whole run")
	rootCmd.AddCommand(runCmd)
}

func runSync(cmd *cobra.Command, _ []string) error {
	trigger, err := integration.ParseTriggerType(runTriggerType)
	if err != nil {
		return err
	}

	return withService(cmd, func(ctx context.Context, svc SyncService) error {
		if runTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, runTimeout)
			defer cancel()
		}

		cmd.Printf("Starting %s catalog sync...\n", trigger)
		result, err := svc.Trigger(ctx, catalogsync.TriggerInput{TriggerType: trigger})
		if err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}

		printStats(cmd, result.Stats)
		if !result.Success {
			return fmt.Errorf("sync run %s failed (%s): %s", result.SyncLogID, result.ErrorKind, result.Error)
		}
		cmd.Printf("Sync run %s finished successfully.\n", result.SyncLogID)
		return nil
	})
}

func printStats(cmd *cobra.Command, stats integration.RunStats) {
	cmd.Printf("Synced %d products: %d created, %d updated, %d skipped, %d deactivated, %d failed\n",
		stats.Synced, stats.Created, stats.Updated, stats.Skipped, stats.Deactivated, stats.Failed)
	cmd.Printf("Variants: %d created, %d updated, %d skipped, %d products not fetched\n",
		stats.VariantsCreated, stats.VariantsUpdated, stats.VariantsSkipped, stats.VariantFetchFailures)
	cmd.Printf("Pages: %d fetched, %d skipped\n", stats.PagesFetched, stats.PagesSkipped)
}
