package reporter

import (
	"strconv"

	"batchrun/pkg/core"
)

// Reporter renders a finished BatchResult into one output format.
type Reporter interface {
	Report(result core.BatchResult) error
}

const (
	FormatJSON     = "json"
	FormatTable    = "table"
	FormatHTML     = "html"
	FormatMarkdown = "markdown"
	FormatCSV      = "csv"
)

// rowScore renders a row's combined score, falling back to its sole
// evaluator's score when no Combiner ever ran, per the N/A sentinel rule.
func rowScore(r core.RowResult) string {
	if r.CombinedScore != nil {
		return *r.CombinedScore
	}
	if len(r.Outcomes) == 1 {
		return scoreString(r.Outcomes[0].Score)
	}
	return core.CombinedScoreNA
}

func scoreString(s core.Score) string {
	if s.Kind == core.ScoreKindCategory {
		return s.Category
	}
	return strconv.FormatFloat(s.Number, 'f', 4, 64)
}
