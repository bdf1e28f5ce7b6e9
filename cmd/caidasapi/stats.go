package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print how many users, images and falls are stored",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStats(cmd.Context(), cmd, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the totals as JSON")

	return cmd
}

func runStats(ctx context.Context, cmd *cobra.Command, asJSON bool) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	totals, err := a.status.Totals(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		b, err := json.Marshal(totals)
		if err != nil {
			return fmt.Errorf("encoding totals: %w", err)
		}
		fmt.Fprintln(out, string(b))
		return nil
	}

	fmt.Fprintf(out, "users:  %d\nimages: %d\nfalls:  %d\n", totals.Users, totals.Images, totals.Events)
	return nil
}
