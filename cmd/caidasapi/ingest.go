package main

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"caidasapi/internal/apperr"
	"caidasapi/internal/services"
)

func newIngestCmd() *cobra.Command {
	var (
		sourceURL   string
		sourceFile  string
		description string
		eventID     string
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Upload one image by URL or local path and record it",
		Example: `  caidasapi ingest --url https://example.com/caida.jpg --description "kitchen"
  caidasapi ingest --file ./fotos/caida.png --caida 65f1c2a9e4b0a1b2c3d4e5f6`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			source := sourceURL
			if sourceFile != "" {
				abs, err := filepath.Abs(sourceFile)
				if err != nil {
					return fmt.Errorf("resolving %s: %w", sourceFile, err)
				}
				source = abs
			}
			return runIngest(cmd.Context(), services.IngestRequest{
				Source:      source,
				Description: description,
				EventID:     eventID,
			}, cmd)
		},
	}

	cmd.Flags().StringVar(&sourceURL, "url", "", "Remote image URL (http or https)")
	cmd.Flags().StringVar(&sourceFile, "file", "", "Local image file (png, jpg, jpeg, gif)")
	cmd.Flags().StringVarP(&description, "description", "d", "", "Image description")
	cmd.Flags().StringVar(&eventID, "caida", "", "Id of the fall event to link the image to")
	cmd.MarkFlagsMutuallyExclusive("url", "file")
	cmd.MarkFlagsOneRequired("url", "file")

	return cmd
}

func runIngest(ctx context.Context, req services.IngestRequest, cmd *cobra.Command) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	img, err := a.pipeline.Ingest(ctx, req)
	if err != nil {
		return fmt.Errorf("%s (%s): %w", apperr.PublicMessage(err), apperr.KindOf(err), err)
	}

	out, err := json.MarshalIndent(img, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
