package evaluator

import (
	"context"

	"batchrun/pkg/core"
)

// MockEvaluator returns a fixed score/feedback pair, or fails a configured
// number of times first. Used by orchestrator tests to drive retry and
// concurrency scenarios deterministically.
type MockEvaluator struct {
	NameValue    string
	FixedScore   float64
	FixedFeedback string
	FailTimes    int
	FailMessage  string

	calls int
}

func (m *MockEvaluator) Name() string {
	if m.NameValue == "" {
		return "mock"
	}
	return m.NameValue
}

func (m *MockEvaluator) Evaluate(_ context.Context, row core.Row) (core.EvaluatorOutcome, error) {
	m.calls++
	if m.calls <= m.FailTimes {
		msg := m.FailMessage
		if msg == "" {
			msg = "mock evaluator failure"
		}
		return core.EvaluatorOutcome{}, errString(msg)
	}
	return core.EvaluatorOutcome{
		EvaluatorName: m.Name(),
		Score:         core.NumberScore(m.FixedScore),
		Feedback:      m.FixedFeedback,
	}, nil
}

// Calls reports how many times Evaluate has been invoked.
func (m *MockEvaluator) Calls() int { return m.calls }

type errString string

func (e errString) Error() string { return string(e) }
