package reporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"batchrun/pkg/core"
)

type CSVReporter struct {
	Writer io.Writer
}

func (r CSVReporter) Report(result core.BatchResult) error {
	writer := csv.NewWriter(r.Writer)
	header := []string{"id", "index", "candidate_text", "reference", "combined_score", "retry_count", "error", "duration_ms"}
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, row := range result.Results {
		record := []string{
			row.ID,
			strconv.Itoa(row.Index),
			row.EffectiveInput.CandidateText,
			row.EffectiveInput.Reference,
			rowScore(row),
			strconv.Itoa(row.RetryCount),
			row.Error,
			fmt.Sprintf("%d", row.DurationMs),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
