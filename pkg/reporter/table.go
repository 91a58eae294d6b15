package reporter

import (
	"fmt"
	"io"

	"batchrun/pkg/core"

	"github.com/olekukonko/tablewriter"
)

type TableReporter struct {
	Writer io.Writer
}

func (r TableReporter) Report(result core.BatchResult) error {
	table := tablewriter.NewWriter(r.Writer)
	table.Header([]string{"Metric", "Value"})
	table.Append([]string{"Total rows", fmt.Sprintf("%d", result.TotalRows)})
	table.Append([]string{"Successful rows", fmt.Sprintf("%d", result.SuccessfulRows)})
	table.Append([]string{"Failed rows", fmt.Sprintf("%d", result.FailedRows)})
	table.Append([]string{"Error rate", fmt.Sprintf("%.2f", result.Summary.ErrorRate)})
	table.Append([]string{"Average row time (ms)", fmt.Sprintf("%.2f", result.Summary.AverageProcessingTimeMs)})
	table.Append([]string{"Total tokens used", fmt.Sprintf("%d", result.Summary.TotalTokensUsed)})
	table.Append([]string{"Batch duration (ms)", fmt.Sprintf("%d", result.DurationMs)})
	table.Render()
	return nil
}
