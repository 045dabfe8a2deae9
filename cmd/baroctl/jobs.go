package main

import (
	"context"
	"fmt"
	"strings"

	"baro-tracker-api/internal/service"

	"github.com/spf13/cobra"
)

var jobNames = []string{service.JobArrival, service.JobDeparture, service.JobDepartingSoon}

var jobCmd = &cobra.Command{
	Use:       "job <" + strings.Join(jobNames, "|") + ">",
	Short:     "Runs one visit job and prints its report.",
	Args:      cobra.ExactValidArgs(1),
	ValidArgs: jobNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.Visits.Run(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("%s job failed: %w", args[0], err)
		}
		return printJSON(report)
	},
}

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Assigns canonical paths to catalog items that have none.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		summary, err := a.Backfill.BackfillCanonicalPaths(context.Background())
		if err != nil {
			return err
		}
		return printJSON(summary)
	},
}

var marketIngestCmd = &cobra.Command{
	Use:   "market-ingest",
	Short: "Refreshes the 90-day trade history of tradable catalog items.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.Market.Ingest(context.Background())
		if err != nil {
			return fmt.Errorf("market ingest failed: %w", err)
		}
		return printJSON(report)
	},
}

var purgeTokensCmd = &cobra.Command{
	Use:   "purge-tokens",
	Short: "Deletes deactivated push tokens older than the retention period.",
	RunE: func(cmd *cobra.Command, args []string) error {
		retention, _ := cmd.Flags().GetDuration("retention")

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if retention == 0 {
			retention = a.Config.Scheduler.TokenRetention
		}
		n, err := a.Tokens.PurgeInactive(context.Background(), retention)
		if err != nil {
			return err
		}
		fmt.Printf("Deleted %d inactive push token(s) unused for %v\n", n, retention)
		return nil
	},
}

func init() {
	purgeTokensCmd.Flags().Duration("retention", 0, "Retention period (default: PUSH_TOKEN_RETENTION)")

	rootCmd.AddCommand(jobCmd)
	rootCmd.AddCommand(backfillCmd)
	rootCmd.AddCommand(marketIngestCmd)
	rootCmd.AddCommand(purgeTokensCmd)
}
