package commands

import (
	"fmt"
	"io"
	"os"
	"time"

	"batchrun/pkg/cache"
	"batchrun/pkg/core"
	"batchrun/pkg/input"
	"batchrun/pkg/orchestrator"
	"batchrun/pkg/reporter"
	"batchrun/pkg/sink"

	"github.com/spf13/cobra"
)

func newEvalCommand() *cobra.Command {
	var (
		inputPath       string
		inputFormat     string
		evaluatorSpecs  []string
		concurrency     int
		rateLimitMin    int
		rateLimitHour   int
		maxRetries      int
		retryDelayMs    int
		noBackoff       bool
		retryOnErrors   []string
		evalMode        string
		evalTimeoutMs   int
		stopOnError     bool
		combineScores   bool
		cachePath       string
		startIndex      int
		statePath       string
		saveIntervalSec int
		streamPath      string
		streamFormat    string
		outputPath      string
		reportFormat    string
		hasHeader       bool
	)

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Run evaluators over an input file and report the results",
		RunE: func(cmd *cobra.Command, args []string) error {
			applyConfigDefaults(cmd, &inputPath, &inputFormat, &evaluatorSpecs, &concurrency, &outputPath, &reportFormat, &statePath, &streamPath, &streamFormat)

			if inputPath == "" {
				return fmt.Errorf("--input is required")
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

			backoff := !noBackoff
			var maxRetriesPtr *int
			if cmd.Flags().Changed("max-retries") {
				maxRetriesPtr = &maxRetries
			}
			cfg := orchestrator.Config{
				Evaluators:             evaluators,
				EvaluatorExecutionMode: evalMode,
				EvaluatorTimeout:       time.Duration(evalTimeoutMs) * time.Millisecond,
				Concurrency:            concurrency,
				RateLimitPerMinute:     rateLimitMin,
				RateLimitPerHour:       rateLimitHour,
				Retry: orchestrator.RetryConfig{
					MaxRetries:         maxRetriesPtr,
					RetryDelay:         time.Duration(retryDelayMs) * time.Millisecond,
					ExponentialBackoff: &backoff,
					RetryOnErrors:      retryOnErrors,
				},
				ProgressInterval:  time.Second,
				OnProgress:        bar.Update,
				StatePath:         statePath,
				SaveStateInterval: time.Duration(saveIntervalSec) * time.Second,
				StopOnError:       stopOnError,
				StartIndex:        startIndex,
				Logger:            logger,
			}
			if combineScores {
				cfg.CalculateCombinedScore = defaultCombiner
			}
			if streamPath != "" {
				s, err := buildSink(streamFormat, streamPath)
				if err != nil {
					return err
				}
				cfg.Sink = s
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

	cmd.Flags().StringVar(&inputPath, "input", "", "path to the input dataset")
	cmd.Flags().StringVar(&inputFormat, "input-format", "auto", "input format: auto, delimited, structured, jsonl")
	cmd.Flags().BoolVar(&hasHeader, "has-header", true, "treat the delimited input's first row as a header")
	cmd.Flags().StringSliceVar(&evaluatorSpecs, "evaluator", nil, "evaluator spec, e.g. exact, includes, anthropic:claude-3-5-haiku-latest")
	cmd.Flags().IntVar(&concurrency, "concurrency", 5, "max simultaneous rows in flight")
	cmd.Flags().IntVar(&rateLimitMin, "rate-limit-per-minute", 0, "cap admissions per rolling minute (0 disables)")
	cmd.Flags().IntVar(&rateLimitHour, "rate-limit-per-hour", 0, "cap admissions per rolling hour (0 disables)")
	cmd.Flags().IntVar(&maxRetries, "max-retries", 3, "retries permitted per row after the first attempt")
	cmd.Flags().IntVar(&retryDelayMs, "retry-delay-ms", 1000, "base retry backoff in milliseconds")
	cmd.Flags().BoolVar(&noBackoff, "no-exponential-backoff", false, "use a constant retry delay instead of exponential")
	cmd.Flags().StringSliceVar(&retryOnErrors, "retry-on", nil, "case-sensitive substrings that qualify an error for retry, replacing the default classifier")
	cmd.Flags().StringVar(&evalMode, "evaluator-mode", orchestrator.ModeParallel, "parallel or sequential evaluator execution")
	cmd.Flags().IntVar(&evalTimeoutMs, "evaluator-timeout-ms", 0, "per-evaluator timeout in milliseconds (0 disables)")
	cmd.Flags().BoolVar(&stopOnError, "stop-on-error", false, "abort the batch on the first row's terminal failure")
	cmd.Flags().BoolVar(&combineScores, "combine-scores", false, "compute a combined score across evaluators")
	cmd.Flags().StringVar(&cachePath, "cache-dir", "", "directory for the evaluator outcome cache (disabled if unset)")
	cmd.Flags().IntVar(&startIndex, "start-index", 0, "skip rows before this zero-based index")
	cmd.Flags().StringVar(&statePath, "state-path", "", "path to persist a resumable state snapshot")
	cmd.Flags().IntVar(&saveIntervalSec, "state-save-interval", 30, "seconds between periodic state saves")
	cmd.Flags().StringVar(&streamPath, "stream-path", "", "destination for the streaming sink (disabled if unset)")
	cmd.Flags().StringVar(&streamFormat, "stream-format", "delimited", "streaming sink format: delimited, structured, webhook")
	cmd.Flags().StringVar(&outputPath, "output", "", "report output path (stdout if unset)")
	cmd.Flags().StringVar(&reportFormat, "report-format", reporter.FormatTable, "report format: table, json, html, markdown, csv")

	return cmd
}

func applyConfigDefaults(cmd *cobra.Command, inputPath, inputFormat *string, evaluatorSpecs *[]string, concurrency *int, outputPath, reportFormat, statePath, streamPath, streamFormat *string) {
	if *inputPath == "" {
		*inputPath = appConfig.Input
	}
	if *inputFormat == "" || *inputFormat == "auto" {
		if appConfig.InputFormat != "" {
			*inputFormat = appConfig.InputFormat
		}
	}
	if len(*evaluatorSpecs) == 0 {
		*evaluatorSpecs = appConfig.Evaluators
	}
	if !cmd.Flags().Changed("concurrency") && appConfig.Concurrency > 0 {
		*concurrency = appConfig.Concurrency
	}
	if *outputPath == "" {
		*outputPath = appConfig.Output
	}
	if !cmd.Flags().Changed("report-format") && appConfig.ReportFormat != "" {
		*reportFormat = appConfig.ReportFormat
	}
	if *statePath == "" {
		*statePath = appConfig.StatePath
	}
	if *streamPath == "" {
		*streamPath = appConfig.StreamPath
	}
	if !cmd.Flags().Changed("stream-format") && appConfig.StreamFormat != "" {
		*streamFormat = appConfig.StreamFormat
	}
}

func defaultCombiner(outcomes []core.EvaluatorOutcome) string {
	if len(outcomes) == 0 {
		return core.CombinedScoreNA
	}
	var sum float64
	count := 0
	for _, o := range outcomes {
		if o.Score.Kind == core.ScoreKindNumber {
			sum += o.Score.Number
			count++
		}
	}
	if count == 0 {
		return core.CombinedScoreNA
	}
	return fmt.Sprintf("%.4f", sum/float64(count))
}

func buildSink(format, path string) (core.Sink, error) {
	switch format {
	case "delimited", "csv":
		return sink.NewDelimitedSink(sink.DelimitedConfig{Path: path}), nil
	case "structured", "json":
		return sink.NewStructuredSink(sink.StructuredConfig{Path: path}), nil
	case "webhook":
		return sink.NewWebhookSink(sink.WebhookConfig{URL: path, Logger: logger}), nil
	default:
		return nil, fmt.Errorf("unknown stream format %q", format)
	}
}

func buildReporter(format, path string) (reporter.Reporter, error) {
	writer, err := reportWriter(path)
	if err != nil {
		return nil, err
	}
	switch format {
	case reporter.FormatJSON:
		return reporter.JSONReporter{Writer: writer, Pretty: true}, nil
	case reporter.FormatHTML:
		return reporter.HTMLReporter{Writer: writer}, nil
	case reporter.FormatMarkdown:
		return reporter.MarkdownReporter{Writer: writer}, nil
	case reporter.FormatCSV:
		return reporter.CSVReporter{Writer: writer}, nil
	case reporter.FormatTable, "":
		return reporter.TableReporter{Writer: writer}, nil
	default:
		return nil, fmt.Errorf("unknown report format %q", format)
	}
}

func reportWriter(path string) (io.Writer, error) {
	if path == "" {
		return os.Stdout, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create report output %q: %w", path, err)
	}
	return f, nil
}
