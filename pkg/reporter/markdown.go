package reporter

import (
	"fmt"
	"io"

	"batchrun/pkg/core"
)

type MarkdownReporter struct {
	Writer io.Writer
}

func (r MarkdownReporter) Report(result core.BatchResult) error {
	if _, err := fmt.Fprintf(r.Writer, "# Batch Evaluation Report\n\n"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(r.Writer, "- Batch ID: %s\n- Duration: %dms\n\n", result.ID, result.DurationMs); err != nil {
		return err
	}

	if _, err := fmt.Fprintf(r.Writer, "## Summary\n\n"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(r.Writer, "| Metric | Value |\n|---|---|\n"); err != nil {
		return err
	}
	lines := []struct {
		Name  string
		Value string
	}{
		{"Total rows", fmt.Sprintf("%d", result.TotalRows)},
		{"Successful rows", fmt.Sprintf("%d", result.SuccessfulRows)},
		{"Failed rows", fmt.Sprintf("%d", result.FailedRows)},
		{"Error rate", fmt.Sprintf("%.2f", result.Summary.ErrorRate)},
		{"Average row time (ms)", fmt.Sprintf("%.2f", result.Summary.AverageProcessingTimeMs)},
		{"Total tokens used", fmt.Sprintf("%d", result.Summary.TotalTokensUsed)},
	}
	for _, line := range lines {
		if _, err := fmt.Fprintf(r.Writer, "| %s | %s |\n", line.Name, line.Value); err != nil {
			return err
		}
	}

	if _, err := fmt.Fprintf(r.Writer, "\n## Rows\n\n"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(r.Writer, "| ID | Candidate | Reference | Score | Retries | Error |\n|---|---|---|---|---|---|\n"); err != nil {
		return err
	}
	for _, row := range result.Results {
		if _, err := fmt.Fprintf(
			r.Writer,
			"| %s | %s | %s | %s | %d | %s |\n",
			row.ID,
			escapePipe(row.EffectiveInput.CandidateText),
			escapePipe(row.EffectiveInput.Reference),
			escapePipe(rowScore(row)),
			row.RetryCount,
			escapePipe(row.Error),
		); err != nil {
			return err
		}
	}
	return nil
}

func escapePipe(input string) string {
	if input == "" {
		return ""
	}
	out := make([]rune, 0, len(input))
	for _, r := range input {
		if r == '|' {
			out = append(out, '\\', r)
		} else if r == '\n' || r == '\r' {
			out = append(out, ' ')
		} else {
			out = append(out, r)
		}
	}
	return string(out)
}
