package commands

import (
	"batchrun/pkg/exporter"
	"batchrun/pkg/reporter"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func newListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the evaluator kinds, report formats, and export formats batchrun supports",
		RunE: func(cmd *cobra.Command, args []string) error {
			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.Header([]string{"Category", "Value", "Notes"})

			rows := [][]string{
				{"evaluator", "exact", "exact string match, whitespace-normalized"},
				{"evaluator", "includes", "substring containment match"},
				{"evaluator", "numeric", "numeric comparison within tolerance"},
				{"evaluator", "anthropic:<model>", "Claude-judge evaluator, reads ANTHROPIC_API_KEY"},
				{"evaluator", "openai:<model>", "OpenAI-judge evaluator, reads OPENAI_API_KEY"},
				{"evaluator", "gemini:<model>", "Gemini-judge evaluator, reads GEMINI_API_KEY"},
				{"report-format", reporter.FormatTable, "rendered table (default)"},
				{"report-format", reporter.FormatJSON, "pretty-printed JSON"},
				{"report-format", reporter.FormatHTML, "single-file HTML report"},
				{"report-format", reporter.FormatMarkdown, "markdown table"},
				{"report-format", reporter.FormatCSV, "one CSV record per row"},
				{"export-format", exporter.FormatDelimited, "CSV-style bulk export"},
				{"export-format", exporter.FormatStructured, "JSON array bulk export"},
				{"export-format", exporter.FormatWebhook, "batched bulk HTTP POST"},
			}
			for _, r := range rows {
				table.Append(r)
			}
			return table.Render()
		},
	}
	return cmd
}
