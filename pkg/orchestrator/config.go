package orchestrator

import (
	"context"
	"time"

	"batchrun/pkg/core"
	"batchrun/pkg/state"

	"go.uber.org/zap"
)

const (
	ModeParallel   = "parallel"
	ModeSequential = "sequential"
)

// RetryConfig controls the per-row retry classifier and backoff (§4.E
// "Retry classifier" / "Retry delay").
type RetryConfig struct {
	// MaxRetries caps the number of retries consumed per row; the permitted
	// attempt sequence is 1 initial + MaxRetries retries. nil defaults to 3;
	// a pointer to 0 means exactly one attempt per row, per spec's named
	// boundary — distinct from "unset", the same way ExponentialBackoff
	// distinguishes nil from an explicit false.
	MaxRetries *int
	// RetryDelay is the base backoff duration. Zero or negative defaults to
	// one second.
	RetryDelay time.Duration
	// ExponentialBackoff toggles base × 2^(attempt-1) growth; nil defaults
	// to enabled. Set to a false pointer to use a constant delay.
	ExponentialBackoff *bool
	// RetryOnErrors, if non-empty, replaces the default classifier with a
	// case-sensitive substring allow-list.
	RetryOnErrors []string
}

// Config configures an Orchestrator. It is the union of spec.md §6's
// recognized configuration keys.
type Config struct {
	Evaluators             []core.Evaluator
	EvaluatorExecutionMode string // "parallel" (default) or "sequential"
	EvaluatorTimeout       time.Duration

	Concurrency        int
	RateLimitPerMinute int
	RateLimitPerHour   int

	Retry RetryConfig

	ProgressInterval time.Duration
	OnProgress       func(core.ProgressEvent)

	OnResult func(ctx context.Context, result core.RowResult) error

	Sink core.Sink

	ResumeFromState *core.StateSnapshot
	StatePath       string
	SaveStateInterval time.Duration
	OnStateSave     state.SaveFunc

	StopOnError bool

	CalculateCombinedScore core.Combiner
	DefaultInput           core.Row
	StartIndex             int
	InputConfig            map[string]string

	CostPerMillionTokensUSD float64
	AssumedTokensPerRow     float64

	Logger *zap.Logger
}

func (c RetryConfig) maxRetries() int {
	if c.MaxRetries == nil {
		return 3
	}
	return *c.MaxRetries
}

func (c RetryConfig) baseDelay() time.Duration {
	if c.RetryDelay <= 0 {
		return time.Second
	}
	return c.RetryDelay
}

func (c RetryConfig) backoffEnabled() bool {
	return c.ExponentialBackoff == nil || *c.ExponentialBackoff
}
