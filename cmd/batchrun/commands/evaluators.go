package commands

import (
	"fmt"
	"strings"

	"batchrun/pkg/cache"
	"batchrun/pkg/core"
	"batchrun/pkg/evaluator"
)

// buildEvaluators resolves a comma-separated spec list like
// "exact,includes,anthropic:claude-3-5-haiku-latest,openai" into the
// concrete Evaluator set, wrapping each in a CachedEvaluator when c is
// non-nil.
func buildEvaluators(specs []string, c *cache.Cache) ([]core.Evaluator, error) {
	evaluators := make([]core.Evaluator, 0, len(specs))
	for _, spec := range specs {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			continue
		}
		kind, arg, _ := strings.Cut(spec, ":")

		var ev core.Evaluator
		var err error
		switch kind {
		case "exact", "exact_match":
			ev = evaluator.ExactMatchEvaluator{NormalizeWhitespace: true}
		case "includes":
			ev = evaluator.IncludesEvaluator{NormalizeWhitespace: true}
		case "numeric", "numeric_match":
			ev = evaluator.NumericMatchEvaluator{}
		case "anthropic":
			ev, err = evaluator.NewAnthropicJudgeFromEnv(arg)
		case "openai":
			ev, err = evaluator.NewOpenAIJudgeFromEnv(arg)
		case "gemini":
			ev, err = evaluator.NewGeminiJudgeFromEnv(arg)
		default:
			return nil, fmt.Errorf("unknown evaluator %q", spec)
		}
		if err != nil {
			return nil, fmt.Errorf("build evaluator %q: %w", spec, err)
		}
		if c != nil {
			ev = evaluator.CachedEvaluator{Evaluator: ev, Cache: c}
		}
		evaluators = append(evaluators, ev)
	}
	if len(evaluators) == 0 {
		return nil, fmt.Errorf("at least one --evaluator is required")
	}
	return evaluators, nil
}
