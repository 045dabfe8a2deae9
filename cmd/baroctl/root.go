package main

import (
	"encoding/json"
	"fmt"
	"os"

	"baro-tracker-api/internal/app"
	"baro-tracker-api/internal/config"
	"baro-tracker-api/internal/logger"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "baroctl",
	Short:         "Operator tool for the Baro Ki'Teer tracker.",
	Long:          "baroctl runs the tracker's jobs and maintenance tasks against the configured store, outside the HTTP server.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, _ := cmd.Flags().GetString("loglevel")
		logger.SetLogLevel(level)
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error")
}

// openApp loads configuration from the environment and wires the app.
func openApp() (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return app.New(cfg)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
