// Package evaluator ships concrete Evaluator implementations: lexical
// metrics, LLM-judge wrappers around hosted providers, a response-caching
// decorator, and a mock for tests. The core engine (pkg/orchestrator) never
// imports this package directly — it only depends on core.Evaluator.
package evaluator

import (
	"context"
	"math"
	"regexp"
	"strconv"
	"strings"

	"batchrun/pkg/core"
)

func normalizeText(input string, caseSensitive, normalizeWhitespace bool) string {
	text := input
	if normalizeWhitespace {
		text = strings.Join(strings.Fields(text), " ")
	} else {
		text = strings.TrimSpace(text)
	}
	if !caseSensitive {
		text = strings.ToLower(text)
	}
	return text
}

// ExactMatchEvaluator scores a row by exact string match against Reference.
type ExactMatchEvaluator struct {
	CaseSensitive       bool
	NormalizeWhitespace bool
}

func (e ExactMatchEvaluator) Name() string { return "exact_match" }

func (e ExactMatchEvaluator) Evaluate(_ context.Context, row core.Row) (core.EvaluatorOutcome, error) {
	expected := normalizeText(row.Reference, e.CaseSensitive, e.NormalizeWhitespace)
	actual := normalizeText(row.CandidateText, e.CaseSensitive, e.NormalizeWhitespace)
	passed := expected == actual
	return core.EvaluatorOutcome{
		EvaluatorName: e.Name(),
		Score:         boolScore(passed),
		Feedback:      feedback(passed),
	}, nil
}

// IncludesEvaluator scores a row by substring containment of Reference
// within CandidateText.
type IncludesEvaluator struct {
	CaseSensitive       bool
	NormalizeWhitespace bool
}

func (e IncludesEvaluator) Name() string { return "includes" }

func (e IncludesEvaluator) Evaluate(_ context.Context, row core.Row) (core.EvaluatorOutcome, error) {
	expected := normalizeText(row.Reference, e.CaseSensitive, e.NormalizeWhitespace)
	actual := normalizeText(row.CandidateText, e.CaseSensitive, e.NormalizeWhitespace)
	passed := strings.Contains(actual, expected)
	return core.EvaluatorOutcome{
		EvaluatorName: e.Name(),
		Score:         boolScore(passed),
		Feedback:      feedback(passed),
	}, nil
}

// NumericMatchEvaluator compares the last number found in CandidateText
// against the last number found in Reference, within Tolerance.
type NumericMatchEvaluator struct {
	Tolerance float64
}

func (e NumericMatchEvaluator) Name() string { return "numeric_match" }

func (e NumericMatchEvaluator) Evaluate(_ context.Context, row core.Row) (core.EvaluatorOutcome, error) {
	expectedNum, expectedRaw := lastNumber(row.Reference)
	actualNum, actualRaw := lastNumber(row.CandidateText)

	var passed bool
	if expectedRaw != "" && actualRaw != "" {
		tol := e.Tolerance
		if tol <= 0 {
			tol = 1e-6
		}
		passed = math.Abs(expectedNum-actualNum) <= tol
	} else {
		passed = normalizeText(row.Reference, false, true) == normalizeText(row.CandidateText, false, true)
	}

	return core.EvaluatorOutcome{
		EvaluatorName: e.Name(),
		Score:         boolScore(passed),
		Feedback:      feedback(passed),
	}, nil
}

var numberRegex = regexp.MustCompile(`[-+]?\d[\d,]*(?:\.\d+)?`)

func lastNumber(text string) (float64, string) {
	matches := numberRegex.FindAllString(text, -1)
	if len(matches) == 0 {
		return 0, ""
	}
	raw := matches[len(matches)-1]
	clean := strings.ReplaceAll(raw, ",", "")
	value, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, ""
	}
	return value, raw
}

func boolScore(passed bool) core.Score {
	if passed {
		return core.NumberScore(1)
	}
	return core.NumberScore(0)
}

func feedback(passed bool) string {
	if passed {
		return "match"
	}
	return "no match"
}
