package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var currentCmd = &cobra.Command{
	Use:   "current",
	Short: "Prints the stored vendor status and inventory.",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		view, err := a.Status.Current(context.Background())
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(view)
		}

		state := "away"
		if view.IsActive {
			state = "active at " + view.Location
		}
		fmt.Printf("Vendor %s (%s - %s)\n\n", state, view.Activation.Format(time.RFC3339), view.Expiry.Format(time.RFC3339))

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "NAME\tTYPE\tDUCATS\tCREDITS\tOFFERED")
		for _, item := range view.Items {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\n", item.Name, item.Type, item.DucatPrice, item.CreditPrice, len(item.OfferingDates))
		}
		return w.Flush()
	},
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetches the live snapshot from the upstream feeds without storing it.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		snap, err := a.Source.FetchCurrentInventory(context.Background())
		if err != nil {
			return err
		}
		return printJSON(snap)
	},
}

var unknownCmd = &cobra.Command{
	Use:   "unknown",
	Short: "Lists inventory lines no strategy could resolve.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		items, err := a.Store.ListUnknown(context.Background())
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Println("No unknown items recorded.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "NAME\tPATH\tNEW?\tLAST SEEN")
		for _, u := range items {
			fmt.Fprintf(w, "%s\t%s\t%v\t%s\n", u.DisplayName, u.CanonicalPathRaw, u.IsSuspectedNew, u.LastSeenAt.Format(time.RFC3339))
		}
		return w.Flush()
	},
}

func init() {
	currentCmd.Flags().Bool("json", false, "Print JSON instead of a table")

	rootCmd.AddCommand(currentCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(unknownCmd)
}
