package evaluator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"batchrun/pkg/core"
)

const defaultAnthropicModel = "claude-3-5-haiku-latest"

// judgeSystemPrompt asks the model to grade a candidate against a reference
// and reply with a single parseable score line, grounded on the teacher's
// model_graded scorer's hardcoded rubric string.
const judgeSystemPrompt = "You are grading a candidate answer against a reference answer. " +
	"Reply with exactly one line: SCORE: <integer 0-100>, followed by a line of feedback."

// AnthropicJudge evaluates a row by asking a Claude model to grade
// CandidateText against Reference. Unlike the teacher's AnthropicModel, this
// makes exactly one attempt per call: retry and backoff are the
// orchestrator's responsibility, and a provider client that retried
// internally would double-count against the row's retry budget.
type AnthropicJudge struct {
	Client    anthropic.Client
	Model     string
	Timeout   time.Duration
	MaxTokens int
}

// NewAnthropicJudgeFromEnv builds an AnthropicJudge using ANTHROPIC_API_KEY.
func NewAnthropicJudgeFromEnv(modelName string) (*AnthropicJudge, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return nil, errors.New("evaluator: ANTHROPIC_API_KEY is required")
	}
	if modelName == "" {
		modelName = defaultAnthropicModel
	}
	return &AnthropicJudge{
		Client:    anthropic.NewClient(option.WithAPIKey(apiKey), option.WithMaxRetries(0)),
		Model:     modelName,
		Timeout:   30 * time.Second,
		MaxTokens: 256,
	}, nil
}

func (j *AnthropicJudge) Name() string {
	if j.Model == "" {
		return defaultAnthropicModel
	}
	return j.Model
}

func (j *AnthropicJudge) Evaluate(ctx context.Context, row core.Row) (core.EvaluatorOutcome, error) {
	timeout := j.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxTokens := j.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 256
	}

	prompt := fmt.Sprintf("Reference answer:\n%s\n\nCandidate answer:\n%s", row.Reference, row.CandidateText)
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(j.Name()),
		MaxTokens: int64(maxTokens),
		System:    []anthropic.TextBlockParam{{Text: judgeSystemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	start := time.Now()
	message, err := j.Client.Messages.New(attemptCtx, params)
	if err != nil {
		return core.EvaluatorOutcome{}, fmt.Errorf("evaluator: anthropic judge call failed: %w", err)
	}

	text := extractAnthropicText(message.Content)
	score, feedback := parseJudgeReply(text)
	return core.EvaluatorOutcome{
		EvaluatorName: j.Name(),
		Score:         core.NumberScore(score),
		Feedback:      feedback,
		Stats: core.ProcessingStats{
			ExecutionTimeMs: time.Since(start).Milliseconds(),
			Tokens: &core.TokenStats{
				Input:  int(message.Usage.InputTokens),
				Output: int(message.Usage.OutputTokens),
				Total:  int(message.Usage.InputTokens + message.Usage.OutputTokens),
			},
		},
	}, nil
}

func extractAnthropicText(blocks []anthropic.ContentBlockUnion) string {
	var b strings.Builder
	for _, block := range blocks {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}
