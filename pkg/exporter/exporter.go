// Package exporter implements the Batch Orchestrator's post-hoc export
// path (§4.E `export(exportConfig)`): a one-shot, non-streaming write of an
// already-accumulated result set, as distinct from the Streaming Sink which
// writes incrementally as rows commit.
package exporter

import (
	"context"
	"fmt"

	"batchrun/pkg/core"
	"batchrun/pkg/sink"
)

// Config selects the destination format and shape for a bulk export.
type Config struct {
	Format           string // "delimited", "structured", or "webhook"
	Path             string
	AppendToExisting bool
	FlattenOutcomes  bool
	Filter           sink.Filter

	Webhook WebhookBulkConfig
}

const (
	FormatDelimited  = "delimited"
	FormatStructured = "structured"
	FormatWebhook    = "webhook"
)

// Exporter adapts a Config into core.Exporter, so callers (the orchestrator,
// the CLI's export command) can depend on the interface rather than this
// package's concrete Config/Export pair.
type Exporter struct {
	Config Config
}

func (e Exporter) Export(ctx context.Context, results []core.RowResult) error {
	return Export(ctx, results, e.Config)
}

// Export writes results to cfg's destination in one pass, reusing the
// Streaming Sink's delimited/structured writers in one-shot mode for file
// destinations, and posting a single bulk payload for webhook destinations.
func Export(ctx context.Context, results []core.RowResult, cfg Config) error {
	switch cfg.Format {
	case FormatDelimited:
		return exportDelimited(ctx, results, cfg)
	case FormatStructured:
		return exportStructured(ctx, results, cfg)
	case FormatWebhook:
		return exportWebhook(ctx, results, cfg)
	default:
		return fmt.Errorf("exporter: unsupported export format %q", cfg.Format)
	}
}

func exportDelimited(ctx context.Context, results []core.RowResult, cfg Config) error {
	s := sink.NewDelimitedSink(sink.DelimitedConfig{
		Path:             cfg.Path,
		AppendToExisting: cfg.AppendToExisting,
		FlattenOutcomes:  cfg.FlattenOutcomes,
		Filter:           cfg.Filter,
	})
	return streamThrough(ctx, s, results)
}

func exportStructured(ctx context.Context, results []core.RowResult, cfg Config) error {
	s := sink.NewStructuredSink(sink.StructuredConfig{Path: cfg.Path, Filter: cfg.Filter})
	return streamThrough(ctx, s, results)
}

// streamThrough drives a Streaming Sink through its full initialize /
// exportResult* / finalize lifecycle against an already-accumulated result
// set, giving file exports the same write logic the live streaming path
// uses without requiring a separate bulk writer per format.
func streamThrough(ctx context.Context, s core.Sink, results []core.RowResult) error {
	if err := s.Initialize(ctx); err != nil {
		return fmt.Errorf("exporter: initialize destination: %w", err)
	}
	for _, r := range results {
		if err := s.ExportResult(ctx, r); err != nil {
			return fmt.Errorf("exporter: export row %d: %w", r.Index, err)
		}
	}
	if err := s.Finalize(ctx); err != nil {
		return fmt.Errorf("exporter: finalize destination: %w", err)
	}
	return nil
}
