package orchestrator

import (
	"context"
	"fmt"
	"time"

	"batchrun/pkg/core"

	"golang.org/x/sync/errgroup"
)

// runRow drives one row through NEW → ATTEMPTING → {COMMITTING|ERRORING} →
// RETRY_SLEEP ↺ ATTEMPTING | DONE_OK | DONE_FAIL (§4.E "Per-row task"). It
// returns true when the row terminally failed and cfg.StopOnError is set,
// signalling the caller to abort the remainder of the batch.
func (o *Orchestrator) runRow(ctx context.Context, row core.Row) bool {
	if o.alreadyProcessed(row.Index) {
		return false
	}

	effective := core.MergeInput(o.cfg.DefaultInput, row)
	start := time.Now()
	retryCount := 0

	for {
		outcomes, err := o.runEvaluators(ctx, effective)
		if err == nil {
			err = o.commit(ctx, row, effective, outcomes, retryCount, time.Since(start))
			if err == nil {
				return false
			}
		}

		msg := err.Error()
		if classifyRetry(msg, retryCount, o.cfg.Retry) {
			retryCount++
			o.tracker.RecordRetry(msg, retryCount)

			timer := time.NewTimer(retryDelay(retryCount, o.cfg.Retry))
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return false
			}
			continue
		}

		o.commitFailure(row, msg, retryCount, time.Since(start))
		return o.cfg.StopOnError
	}
}

// runEvaluators runs the configured evaluator set against row, in parallel
// (default) or in declaration order, per §4.E "ATTEMPTING". Outcome order
// always matches evaluator declaration order regardless of mode.
func (o *Orchestrator) runEvaluators(ctx context.Context, row core.Row) ([]core.EvaluatorOutcome, error) {
	outcomes := make([]core.EvaluatorOutcome, len(o.cfg.Evaluators))

	if o.cfg.EvaluatorExecutionMode == ModeSequential {
		for i, ev := range o.cfg.Evaluators {
			outcome, err := o.runOneEvaluator(ctx, ev, row)
			if err != nil {
				return nil, err
			}
			outcomes[i] = outcome
		}
		return outcomes, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, ev := range o.cfg.Evaluators {
		i, ev := i, ev
		g.Go(func() error {
			outcome, err := o.runOneEvaluator(gctx, ev, row)
			if err != nil {
				return err
			}
			outcomes[i] = outcome
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

// runOneEvaluator races ev.Evaluate against the configured per-evaluator
// timeout, if any.
func (o *Orchestrator) runOneEvaluator(ctx context.Context, ev core.Evaluator, row core.Row) (core.EvaluatorOutcome, error) {
	if o.cfg.EvaluatorTimeout <= 0 {
		return ev.Evaluate(ctx, row)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, o.cfg.EvaluatorTimeout)
	defer cancel()

	type result struct {
		outcome core.EvaluatorOutcome
		err     error
	}
	ch := make(chan result, 1)
	go func() {
		outcome, err := ev.Evaluate(timeoutCtx, row)
		ch <- result{outcome, err}
	}()

	select {
	case r := <-ch:
		return r.outcome, r.err
	case <-timeoutCtx.Done():
		return core.EvaluatorOutcome{}, fmt.Errorf("orchestrator: evaluator %q timed out after %s", ev.Name(), o.cfg.EvaluatorTimeout)
	}
}

// commit runs the strict five-step commit sequence (§4.E "COMMITTING"):
// sink export, onResult callback, append + processed-set insert, tracker
// success, state update.
func (o *Orchestrator) commit(ctx context.Context, row, effective core.Row, outcomes []core.EvaluatorOutcome, retryCount int, duration time.Duration) error {
	result := core.RowResult{
		ID:             row.ID,
		Index:          row.Index,
		EffectiveInput: effective,
		Outcomes:       outcomes,
		CompletedAt:    time.Now(),
		DurationMs:     duration.Milliseconds(),
		RetryCount:     retryCount,
	}
	if o.cfg.CalculateCombinedScore != nil {
		score := o.cfg.CalculateCombinedScore(outcomes)
		result.CombinedScore = &score
	}

	o.commitMu.Lock()
	defer o.commitMu.Unlock()

	if o.cfg.Sink != nil {
		if err := o.cfg.Sink.ExportResult(ctx, result); err != nil {
			return fmt.Errorf("orchestrator: streaming sink export failed: %w", err)
		}
	}
	if o.cfg.OnResult != nil {
		if err := o.cfg.OnResult(ctx, result); err != nil {
			return fmt.Errorf("orchestrator: onResult callback failed: %w", err)
		}
	}

	o.mu.Lock()
	o.results = append(o.results, result)
	o.processed[row.Index] = struct{}{}
	o.mu.Unlock()

	o.tracker.RecordSuccess(float64(result.DurationMs), core.SumOutcomeTokens(outcomes))

	if o.stateMgr != nil {
		progress := o.tracker.CurrentProgress()
		o.stateMgr.Update(row.Index, result, &progress)
	}
	return nil
}

// commitFailure builds and commits a terminal RowResult carrying the raw,
// pre-merge row input (§3 invariant 7) and an empty outcomes list. It never
// touches the Streaming Sink or onResult: those run only on the success
// path per §4.E.
func (o *Orchestrator) commitFailure(row core.Row, msg string, retryCount int, duration time.Duration) {
	result := core.RowResult{
		ID:             row.ID,
		Index:          row.Index,
		EffectiveInput: row,
		CompletedAt:    time.Now(),
		DurationMs:     duration.Milliseconds(),
		RetryCount:     retryCount,
		Error:          msg,
	}
	if o.cfg.CalculateCombinedScore != nil {
		na := core.CombinedScoreNA
		result.CombinedScore = &na
	}

	o.mu.Lock()
	o.results = append(o.results, result)
	o.processed[row.Index] = struct{}{}
	o.mu.Unlock()

	o.tracker.RecordFailure(float64(result.DurationMs))

	if o.stateMgr != nil {
		progress := o.tracker.CurrentProgress()
		o.stateMgr.Update(row.Index, result, &progress)
	}
}
