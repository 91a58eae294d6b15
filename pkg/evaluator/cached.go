package evaluator

import (
	"context"

	"batchrun/pkg/cache"
	"batchrun/pkg/core"
)

// CachedEvaluator decorates any Evaluator with a lookup-then-store against a
// cache.Cache, so resuming a batch never re-pays a provider call for a row
// already judged in a prior run.
type CachedEvaluator struct {
	Evaluator core.Evaluator
	Cache     *cache.Cache
}

func (c CachedEvaluator) Name() string {
	if c.Evaluator == nil {
		return ""
	}
	return c.Evaluator.Name()
}

func (c CachedEvaluator) Evaluate(ctx context.Context, row core.Row) (core.EvaluatorOutcome, error) {
	if c.Cache != nil {
		if outcome, ok := c.Cache.Get(c.Name(), row); ok {
			return outcome, nil
		}
	}
	outcome, err := c.Evaluator.Evaluate(ctx, row)
	if err != nil {
		return core.EvaluatorOutcome{}, err
	}
	if c.Cache != nil {
		_ = c.Cache.Set(c.Name(), row, outcome)
	}
	return outcome, nil
}
