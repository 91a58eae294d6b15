package evaluator_test

import (
	"context"
	"testing"

	"batchrun/pkg/cache"
	"batchrun/pkg/core"
	"batchrun/pkg/evaluator"

	"github.com/stretchr/testify/require"
)

func TestExactMatchEvaluator(t *testing.T) {
	e := evaluator.ExactMatchEvaluator{NormalizeWhitespace: true}

	outcome, err := e.Evaluate(context.Background(), core.Row{CandidateText: "Hello World", Reference: "hello world"})
	require.NoError(t, err)
	require.Equal(t, 1.0, outcome.Score.Number)

	outcome, err = e.Evaluate(context.Background(), core.Row{CandidateText: "Goodbye", Reference: "hello world"})
	require.NoError(t, err)
	require.Equal(t, 0.0, outcome.Score.Number)
}

func TestIncludesEvaluator(t *testing.T) {
	e := evaluator.IncludesEvaluator{NormalizeWhitespace: true}
	outcome, err := e.Evaluate(context.Background(), core.Row{CandidateText: "the quick brown fox", Reference: "brown fox"})
	require.NoError(t, err)
	require.Equal(t, 1.0, outcome.Score.Number)
}

func TestNumericMatchEvaluator(t *testing.T) {
	e := evaluator.NumericMatchEvaluator{Tolerance: 0.01}
	outcome, err := e.Evaluate(context.Background(), core.Row{CandidateText: "the answer is 42.0", Reference: "42"})
	require.NoError(t, err)
	require.Equal(t, 1.0, outcome.Score.Number)

	outcome, err = e.Evaluate(context.Background(), core.Row{CandidateText: "the answer is 7", Reference: "42"})
	require.NoError(t, err)
	require.Equal(t, 0.0, outcome.Score.Number)
}

func TestMockEvaluatorFailsThenSucceeds(t *testing.T) {
	m := &evaluator.MockEvaluator{FailTimes: 2, FailMessage: "rate limit exceeded", FixedScore: 90}

	_, err := m.Evaluate(context.Background(), core.Row{})
	require.Error(t, err)
	_, err = m.Evaluate(context.Background(), core.Row{})
	require.Error(t, err)
	outcome, err := m.Evaluate(context.Background(), core.Row{})
	require.NoError(t, err)
	require.Equal(t, 90.0, outcome.Score.Number)
	require.Equal(t, 3, m.Calls())
}

func TestCachedEvaluatorReusesResult(t *testing.T) {
	mock := &evaluator.MockEvaluator{FixedScore: 75}
	c, err := cache.New(t.TempDir(), 0)
	require.NoError(t, err)
	cached := evaluator.CachedEvaluator{Evaluator: mock, Cache: c}

	row := core.Row{CandidateText: "hello"}
	first, err := cached.Evaluate(context.Background(), row)
	require.NoError(t, err)
	require.Equal(t, 75.0, first.Score.Number)

	second, err := cached.Evaluate(context.Background(), row)
	require.NoError(t, err)
	require.Equal(t, 75.0, second.Score.Number)
	require.Equal(t, 1, mock.Calls())
}
