package commands

import (
	"fmt"
	"time"

	"batchrun/pkg/core"
	"batchrun/pkg/exporter"
	"batchrun/pkg/state"

	"github.com/spf13/cobra"
)

func newExportCommand() *cobra.Command {
	var (
		statePath       string
		format          string
		outputPath      string
		appendExisting  bool
		flattenOutcomes bool
		webhookURL      string
		webhookBatch    int
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Bulk-export the results of a saved state snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			if statePath == "" {
				return fmt.Errorf("--state is required")
			}
			snapshot, err := state.Load(statePath)
			if err != nil {
				return fmt.Errorf("load state %q: %w", statePath, err)
			}

			cfg := exporter.Config{
				Format:           format,
				Path:             outputPath,
				AppendToExisting: appendExisting,
				FlattenOutcomes:  flattenOutcomes,
			}
			if format == exporter.FormatWebhook {
				if webhookURL == "" {
					return fmt.Errorf("--webhook-url is required for --format webhook")
				}
				cfg.Webhook = exporter.WebhookBulkConfig{
					URL:       webhookURL,
					BatchSize: webhookBatch,
					Timeout:   30 * time.Second,
					Logger:    logger,
				}
			}

			var exp core.Exporter = exporter.Exporter{Config: cfg}
			if err := exp.Export(cmd.Context(), snapshot.Results); err != nil {
				return fmt.Errorf("export: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d rows from %s\n", len(snapshot.Results), statePath)
			return nil
		},
	}

	cmd.Flags().StringVar(&statePath, "state", "", "path to a saved state snapshot")
	cmd.Flags().StringVar(&format, "format", exporter.FormatDelimited, "export format: delimited, structured, webhook")
	cmd.Flags().StringVar(&outputPath, "output", "", "destination path (required for delimited/structured)")
	cmd.Flags().BoolVar(&appendExisting, "append", false, "append to an existing output file instead of overwriting")
	cmd.Flags().BoolVar(&flattenOutcomes, "flatten-outcomes", false, "flatten each evaluator outcome into its own columns")
	cmd.Flags().StringVar(&webhookURL, "webhook-url", "", "destination URL when --format webhook")
	cmd.Flags().IntVar(&webhookBatch, "webhook-batch-size", 50, "rows per bulk webhook POST")

	return cmd
}
