package commands

import (
	"fmt"
	"time"

	"batchrun/pkg/cache"
	"batchrun/pkg/input"
	"batchrun/pkg/orchestrator"
	"batchrun/pkg/state"

	"github.com/spf13/cobra"
)

func newResumeCommand() *cobra.Command {
	var (
		statePath      string
		inputPath      string
		inputFormat    string
		evaluatorSpecs []string
		concurrency    int
		cachePath      string
		outputPath     string
		reportFormat   string
		hasHeader      bool
	)

	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume a batch from a saved state snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			if inputPath == "" {
				inputPath = appConfig.Input
			}
			if len(evaluatorSpecs) == 0 {
				evaluatorSpecs = appConfig.Evaluators
			}
			if !cmd.Flags().Changed("concurrency") && appConfig.Concurrency > 0 {
				concurrency = appConfig.Concurrency
			}
			if outputPath == "" {
				outputPath = appConfig.Output
			}
			if !cmd.Flags().Changed("report-format") && appConfig.ReportFormat != "" {
				reportFormat = appConfig.ReportFormat
			}
			if statePath == "" {
				statePath = appConfig.StatePath
			}

			if statePath == "" {
				return fmt.Errorf("--state is required")
			}
			if inputPath == "" {
				return fmt.Errorf("--input is required")
			}

			snapshot, err := state.Load(statePath)
			if err != nil {
				return fmt.Errorf("load state %q: %w", statePath, err)
			}

			parser, err := input.Resolve(inputPath, inputFormat, input.FieldMapping{}, input.DelimitedOptions{HasHeader: hasHeader})
			if err != nil {
				return err
			}
			rows, err := parser.Rows(cmd.Context())
			if err != nil {
				return fmt.Errorf("parse input: %w", err)
			}

			var c *cache.Cache
			if cachePath != "" {
				c, err = cache.New(cachePath, 0)
				if err != nil {
					return fmt.Errorf("open cache: %w", err)
				}
			}
			evaluators, err := buildEvaluators(evaluatorSpecs, c)
			if err != nil {
				return err
			}

			bar := newProgressBar(progressWriter(cmd))
			cfg := orchestrator.Config{
				Evaluators:             evaluators,
				EvaluatorExecutionMode: orchestrator.ModeParallel,
				Concurrency:            concurrency,
				ProgressInterval:       time.Second,
				OnProgress:             bar.Update,
				StatePath:              statePath,
				SaveStateInterval:      30 * time.Second,
				ResumeFromState:        &snapshot,
				Logger:                 logger,
			}

			orc := orchestrator.New(cfg)
			result, err := orc.Evaluate(cmd.Context(), rows)
			if err != nil {
				return fmt.Errorf("evaluate: %w", err)
			}

			rep, err := buildReporter(reportFormat, outputPath)
			if err != nil {
				return err
			}
			return rep.Report(result)
		},
	}

	cmd.Flags().StringVar(&statePath, "state", "", "path to a saved state snapshot to resume from")
	cmd.Flags().StringVar(&inputPath, "input", "", "path to the same input dataset the original run used")
	cmd.Flags().StringVar(&inputFormat, "input-format", "auto", "input format: auto, delimited, structured, jsonl")
	cmd.Flags().BoolVar(&hasHeader, "has-header", true, "treat the delimited input's first row as a header")
	cmd.Flags().StringSliceVar(&evaluatorSpecs, "evaluator", nil, "evaluator spec, matching the original run's evaluators")
	cmd.Flags().IntVar(&concurrency, "concurrency", 5, "max simultaneous rows in flight")
	cmd.Flags().StringVar(&cachePath, "cache-dir", "", "directory for the evaluator outcome cache (disabled if unset)")
	cmd.Flags().StringVar(&outputPath, "output", "", "report output path (stdout if unset)")
	cmd.Flags().StringVar(&reportFormat, "report-format", "table", "report format: table, json, html, markdown, csv")

	return cmd
}
