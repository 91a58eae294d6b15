package reporter_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"batchrun/pkg/core"
	"batchrun/pkg/reporter"

	"github.com/stretchr/testify/require"
)

func sampleResult() core.BatchResult {
	combined := "0.8500"
	return core.BatchResult{
		ID:             "batch-1",
		TotalRows:      2,
		SuccessfulRows: 1,
		FailedRows:     1,
		DurationMs:     120,
		Summary: core.Summary{
			AverageProcessingTimeMs: 60,
			TotalTokensUsed:         300,
			ErrorRate:               0.5,
		},
		Results: []core.RowResult{
			{
				ID:             "row-0",
				Index:          0,
				EffectiveInput: core.Row{CandidateText: "hi", Reference: "hi"},
				Outcomes:       []core.EvaluatorOutcome{{EvaluatorName: "exact_match", Score: core.NumberScore(1)}},
				CombinedScore:  &combined,
			},
			{
				ID:             "row-1",
				Index:          1,
				EffectiveInput: core.Row{CandidateText: "bye"},
				Error:          "context deadline exceeded",
				RetryCount:     3,
			},
		},
	}
}

func TestCSVReporterWritesHeaderAndRows(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, reporter.CSVReporter{Writer: &buf}.Report(sampleResult()))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	require.Contains(t, lines[0], "candidate_text")
}

func TestJSONReporterRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, reporter.JSONReporter{Writer: &buf, Pretty: true}.Report(sampleResult()))
	var decoded core.BatchResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Equal(t, "batch-1", decoded.ID)
	require.Len(t, decoded.Results, 2)
}

func TestMarkdownReporterEscapesPipes(t *testing.T) {
	result := sampleResult()
	result.Results[1].EffectiveInput.CandidateText = "a | b"
	var buf bytes.Buffer
	require.NoError(t, reporter.MarkdownReporter{Writer: &buf}.Report(result))
	require.Contains(t, buf.String(), `a \| b`)
}

func TestHTMLReporterIncludesSummary(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, reporter.HTMLReporter{Writer: &buf}.Report(sampleResult()))
	require.Contains(t, buf.String(), "batch-1")
	require.Contains(t, buf.String(), "0.50")
}

func TestTableReporterRendersWithoutError(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, reporter.TableReporter{Writer: &buf}.Report(sampleResult()))
	require.Contains(t, buf.String(), "Total rows")
}

func TestRowScoreFallsBackToSoleEvaluator(t *testing.T) {
	result := sampleResult()
	result.Results[0].CombinedScore = nil
	var buf bytes.Buffer
	require.NoError(t, reporter.CSVReporter{Writer: &buf}.Report(result))
	require.Contains(t, buf.String(), "1.0000")
}
