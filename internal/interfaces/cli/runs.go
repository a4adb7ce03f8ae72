package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/catalogsync/backend/internal/application/catalogsync"
)

var (
	runsStatus   string
	runsPage     int
	runsPageSize int
	runsJSON     bool
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect the sync run ledger",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sync runs, newest first",
	Args:  cobra.NoArgs,
	RunE:  listRuns,
}

var runsGetCmd = &cobra.Command{
	Use:   "get <run-id>",
	Short: "Show one sync run",
	Args:  cobra.ExactArgs(1),
	RunE:  getRun,
}

func init() {
	runsListCmd.Flags().StringVar(&runsStatus, "status", "", "filter by status (running, success, failed)")
	runsListCmd.Flags().IntVar(&runsPage, "page", 1, "page number")
	runsListCmd.Flags().IntVar(&runsPageSize, "page-size", 20, "runs per page")
	runsCmd.PersistentFlags().BoolVar(&runsJSON, "json", false, "print JSON instead of a table")

	runsCmd.AddCommand(runsListCmd, runsGetCmd)
	rootCmd.AddCommand(runsCmd)
}

func listRuns(cmd *cobra.Command, _ []string) error {
	return withService(cmd, func(ctx context.Context, svc SyncService) error {
		result, err := svc.ListRuns(ctx, catalogsync.ListRunsInput{
			Status:   runsStatus,
			Page:     runsPage,
			PageSize: runsPageSize,
		})
		if err != nil {
			return fmt.Errorf("list runs: %w", err)
		}

		views := make([]catalogsync.RunView, 0, len(result.Runs))
		for i := range result.Runs {
			views = append(views, catalogsync.ToRunView(&result.Runs[i]))
		}
		if runsJSON {
			return printJSON(cmd, views)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTRIGGER\tSTATUS\tSTARTED\tDURATION\tSYNCED\tFAILED\tERROR")
		for _, v := range views {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
				v.ID, v.TriggerType, v.Status, v.StartedAt.Format(time.RFC3339),
				v.Duration.Round(time.Second), v.Stats.Synced, v.Stats.Failed, v.ErrorKind)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		cmd.Printf("Page %d, %d of %d runs\n", result.Page, len(views), result.Total)
		return nil
	})
}

func getRun(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid run id %q: %w", args[0], err)
	}

	return withService(cmd, func(ctx context.Context, svc SyncService) error {
		run, err := svc.GetRun(ctx, id)
		if err != nil {
			return fmt.Errorf("get run: %w", err)
		}

		view := catalogsync.ToRunView(run)
		if runsJSON {
			return printJSON(cmd, view)
		}
		cmd.Printf("Run %s\n", view.ID)
		cmd.Printf("Trigger: %s\n", view.TriggerType)
		cmd.Printf("Status: %s\n", view.Status)
		cmd.Printf("Started: %s\n", view.StartedAt.Format(time.RFC3339))
		if view.FinishedAt != nil {
			cmd.Printf("Finished: %s (%s)\n", view.FinishedAt.Format(time.RFC3339), view.Duration.Round(time.Millisecond))
		}
		if view.ErrorMessage != "" {
			cmd.Printf("Error [%s]: %s\n", view.ErrorKind, view.ErrorMessage)
		}
		printStats(cmd, view.Stats)
		return nil
	})
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
