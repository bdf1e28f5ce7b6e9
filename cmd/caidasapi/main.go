package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:          "caidasapi",
		Short:        "Fall monitoring API: users, fall events and their photos",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a config file (default ./config.yaml if present)")

	rootCmd.AddCommand(newServeCmd(), newIngestCmd(), newStatsCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
