package reporter

import (
	"html/template"
	"io"

	"batchrun/pkg/core"
)

type HTMLReporter struct {
	Writer io.Writer
	Title  string
}

func (r HTMLReporter) Report(result core.BatchResult) error {
	title := r.Title
	if title == "" {
		title = "Batch Evaluation Report"
	}

	data := struct {
		Title  string
		Result core.BatchResult
		Scores map[int]string
	}{
		Title:  title,
		Result: result,
		Scores: make(map[int]string, len(result.Results)),
	}
	for _, row := range result.Results {
		data.Scores[row.Index] = rowScore(row)
	}

	tpl := template.Must(template.New("report").Parse(htmlTemplate))
	return tpl.Execute(r.Writer, data)
}

const htmlTemplate = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>{{ .Title }}</title>
  <style>
    body { font-family: Arial, sans-serif; margin: 24px; }
    table { border-collapse: collapse; width: 100%; margin-top: 16px; }
    th, td { border: 1px solid #ddd; padding: 8px; }
    th { background: #f5f5f5; text-align: left; }
    .meta { margin-bottom: 12px; }
  </style>
</head>
<body>
  <h1>{{ .Title }}</h1>
  <div class="meta">
    <div><strong>Batch ID:</strong> {{ .Result.ID }}</div>
    <div><strong>Duration:</strong> {{ .Result.DurationMs }}ms</div>
  </div>
  <h2>Summary</h2>
  <table>
    <tr><th>Metric</th><th>Value</th></tr>
    <tr><td>Total rows</td><td>{{ .Result.TotalRows }}</td></tr>
    <tr><td>Successful rows</td><td>{{ .Result.SuccessfulRows }}</td></tr>
    <tr><td>Failed rows</td><td>{{ .Result.FailedRows }}</td></tr>
    <tr><td>Error rate</td><td>{{ printf "%.2f" .Result.Summary.ErrorRate }}</td></tr>
    <tr><td>Average row time (ms)</td><td>{{ printf "%.2f" .Result.Summary.AverageProcessingTimeMs }}</td></tr>
    <tr><td>Total tokens used</td><td>{{ .Result.Summary.TotalTokensUsed }}</td></tr>
  </table>
  <h2>Rows</h2>
  <table>
    <tr><th>ID</th><th>Candidate</th><th>Reference</th><th>Score</th><th>Retries</th><th>Error</th></tr>
    {{ range .Result.Results }}
    <tr>
      <td>{{ .ID }}</td>
      <td>{{ .EffectiveInput.CandidateText }}</td>
      <td>{{ .EffectiveInput.Reference }}</td>
      <td>{{ index $.Scores .Index }}</td>
      <td>{{ .RetryCount }}</td>
      <td>{{ .Error }}</td>
    </tr>
    {{ end }}
  </table>
</body>
</html>
`
