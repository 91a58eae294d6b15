package orchestrator_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"batchrun/pkg/core"
	"batchrun/pkg/evaluator"
	"batchrun/pkg/orchestrator"

	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int { return &n }

func rowsOf(n int) []core.Row {
	rows := make([]core.Row, n)
	for i := range rows {
		rows[i] = core.Row{ID: "", Index: i, CandidateText: "hello"}
	}
	return rows
}

func TestEvaluateCommitsEveryRowOnSuccess(t *testing.T) {
	mock := &evaluator.MockEvaluator{NameValue: "mock", FixedScore: 1}
	o := orchestrator.New(orchestrator.Config{
		Evaluators:  []core.Evaluator{mock},
		Concurrency: 2,
	})

	result, err := o.Evaluate(context.Background(), rowsOf(5))
	require.NoError(t, err)
	require.Equal(t, 5, result.TotalRows)
	require.Equal(t, 5, result.SuccessfulRows)
	require.Equal(t, 0, result.FailedRows)
	for i, r := range result.Results {
		require.Equal(t, 0, r.RetryCount, "row %d", i)
		require.Len(t, r.Outcomes, 1)
	}
}

func TestEvaluateRetriesTransientFailureThenSucceeds(t *testing.T) {
	mock := &evaluator.MockEvaluator{FailTimes: 2, FailMessage: "503 service unavailable", FixedScore: 1}
	falseVal := false
	o := orchestrator.New(orchestrator.Config{
		Evaluators: []core.Evaluator{mock},
		Retry: orchestrator.RetryConfig{
			MaxRetries:         intPtr(3),
			RetryDelay:         time.Millisecond,
			ExponentialBackoff: &falseVal,
		},
	})

	result, err := o.Evaluate(context.Background(), rowsOf(1))
	require.NoError(t, err)
	require.Equal(t, 1, result.SuccessfulRows)
	require.Equal(t, 2, result.Results[0].RetryCount)
}

func TestEvaluateTerminalFailureAfterExhaustingRetries(t *testing.T) {
	mock := &evaluator.MockEvaluator{FailTimes: 99, FailMessage: "rate limit exceeded"}
	o := orchestrator.New(orchestrator.Config{
		Evaluators: []core.Evaluator{mock},
		Retry:      orchestrator.RetryConfig{MaxRetries: intPtr(2), RetryDelay: time.Millisecond},
	})

	result, err := o.Evaluate(context.Background(), rowsOf(1))
	require.NoError(t, err)
	require.Equal(t, 1, result.FailedRows)
	require.Equal(t, 2, result.Results[0].RetryCount)
	require.Empty(t, result.Results[0].Outcomes)
	require.NotEmpty(t, result.Results[0].Error)
}

func TestEvaluateNonRetryableErrorFailsImmediately(t *testing.T) {
	mock := &evaluator.MockEvaluator{FailTimes: 99, FailMessage: "permanently malformed input"}
	o := orchestrator.New(orchestrator.Config{
		Evaluators: []core.Evaluator{mock},
		Retry:      orchestrator.RetryConfig{MaxRetries: intPtr(5), RetryDelay: time.Millisecond},
	})

	result, err := o.Evaluate(context.Background(), rowsOf(1))
	require.NoError(t, err)
	require.Equal(t, 1, result.FailedRows)
	require.Equal(t, 0, result.Results[0].RetryCount)
	require.Equal(t, 1, mock.Calls())
}

func TestEvaluateMaxRetriesZeroMeansOneAttempt(t *testing.T) {
	mock := &evaluator.MockEvaluator{FailTimes: 99, FailMessage: "503 service unavailable"}
	o := orchestrator.New(orchestrator.Config{
		Evaluators: []core.Evaluator{mock},
		Retry:      orchestrator.RetryConfig{MaxRetries: intPtr(0), RetryDelay: time.Millisecond},
	})

	result, err := o.Evaluate(context.Background(), rowsOf(1))
	require.NoError(t, err)
	require.Equal(t, 1, result.FailedRows)
	require.Equal(t, 0, result.Results[0].RetryCount)
	require.Equal(t, 1, mock.Calls())
}

func TestEvaluateStopOnErrorAbortsBatch(t *testing.T) {
	mock := &evaluator.MockEvaluator{FailTimes: 99, FailMessage: "permanent failure"}
	o := orchestrator.New(orchestrator.Config{
		Evaluators:  []core.Evaluator{mock},
		Concurrency: 1,
		StopOnError: true,
	})

	_, err := o.Evaluate(context.Background(), rowsOf(3))
	require.Error(t, err)
}

func TestEvaluateStartIndexSkipsPrefix(t *testing.T) {
	mock := &evaluator.MockEvaluator{FixedScore: 1}
	o := orchestrator.New(orchestrator.Config{
		Evaluators: []core.Evaluator{mock},
		StartIndex: 2,
	})

	result, err := o.Evaluate(context.Background(), rowsOf(5))
	require.NoError(t, err)
	require.Len(t, result.Results, 3)
	require.Equal(t, 3, mock.Calls()) // only rows 2,3,4 reach the evaluator
}

func TestEvaluateCombinedScoreOnSuccessAndNAOnFailure(t *testing.T) {
	success := &evaluator.MockEvaluator{NameValue: "s", FixedScore: 1}
	failure := &evaluator.MockEvaluator{NameValue: "f", FailTimes: 99, FailMessage: "permanent"}

	combiner := func(outcomes []core.EvaluatorOutcome) string { return "combined" }

	oSucc := orchestrator.New(orchestrator.Config{
		Evaluators:             []core.Evaluator{success},
		CalculateCombinedScore: combiner,
	})
	res, err := oSucc.Evaluate(context.Background(), rowsOf(1))
	require.NoError(t, err)
	require.NotNil(t, res.Results[0].CombinedScore)
	require.Equal(t, "combined", *res.Results[0].CombinedScore)

	oFail := orchestrator.New(orchestrator.Config{
		Evaluators:             []core.Evaluator{failure},
		Retry:                  orchestrator.RetryConfig{MaxRetries: intPtr(1), RetryDelay: time.Millisecond},
		CalculateCombinedScore: combiner,
	})
	res, err = oFail.Evaluate(context.Background(), rowsOf(1))
	require.NoError(t, err)
	require.NotNil(t, res.Results[0].CombinedScore)
	require.Equal(t, core.CombinedScoreNA, *res.Results[0].CombinedScore)
}

func TestEvaluateWithStatePersistsSnapshot(t *testing.T) {
	mock := &evaluator.MockEvaluator{FixedScore: 1}
	path := filepath.Join(t.TempDir(), "state.json")
	o := orchestrator.New(orchestrator.Config{
		Evaluators: []core.Evaluator{mock},
		StatePath:  path,
	})

	_, err := o.Evaluate(context.Background(), rowsOf(3))
	require.NoError(t, err)

	_, statErr := os.Stat(path)
	require.NoError(t, statErr)

	snap := o.CurrentState()
	require.NotNil(t, snap)
	require.Len(t, snap.ProcessedRows, 3)
}

func TestEvaluateEmitsProgressEvents(t *testing.T) {
	mock := &evaluator.MockEvaluator{FixedScore: 1}
	var events []core.ProgressEventKind
	var mu sync.Mutex
	o := orchestrator.New(orchestrator.Config{
		Evaluators: []core.Evaluator{mock},
		OnProgress: func(ev core.ProgressEvent) {
			mu.Lock()
			events = append(events, ev.Kind)
			mu.Unlock()
		},
	})

	_, err := o.Evaluate(context.Background(), rowsOf(2))
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Contains(t, events, core.EventStarted)
	require.Contains(t, events, core.EventCompleted)
}
