package core

import "time"

// Assemble computes BatchResult's final counts and Summary from a completed
// result list, per §4.E "Final assembly". started and finished are unix
// milliseconds.
func Assemble(id string, started, finished int64, results []RowResult) BatchResult {
	successful, failed := 0, 0
	var totalDuration int64
	var totalTokens int
	for _, r := range results {
		if r.Error == "" {
			successful++
		} else {
			failed++
		}
		totalDuration += r.DurationMs
		for _, o := range r.Outcomes {
			if o.Stats.Tokens != nil {
				totalTokens += o.Stats.Tokens.Total
			}
		}
	}

	total := len(results)
	var avg float64
	if total > 0 {
		avg = float64(totalDuration) / float64(total)
	}
	var errorRate float64
	if total > 0 {
		errorRate = float64(failed) / float64(total)
	}

	return BatchResult{
		ID:             id,
		StartedAt:      time.UnixMilli(started),
		FinishedAt:     time.UnixMilli(finished),
		DurationMs:     finished - started,
		TotalRows:      total,
		SuccessfulRows: successful,
		FailedRows:     failed,
		Results:        results,
		Summary: Summary{
			AverageProcessingTimeMs: avg,
			TotalTokensUsed:         totalTokens,
			ErrorRate:               errorRate,
		},
	}
}

// SumOutcomeTokens sums the Total token field across a row's outcomes,
// treating missing token stats as zero (§4.E "COMMITTING").
func SumOutcomeTokens(outcomes []EvaluatorOutcome) int {
	sum := 0
	for _, o := range outcomes {
		if o.Stats.Tokens != nil {
			sum += o.Stats.Tokens.Total
		}
	}
	return sum
}
