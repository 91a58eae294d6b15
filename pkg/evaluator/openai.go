package evaluator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"

	"batchrun/pkg/core"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAIJudge evaluates a row by asking a GPT model to grade CandidateText
// against Reference, one attempt per call (see AnthropicJudge's comment on
// why retry lives in the orchestrator, not here).
type OpenAIJudge struct {
	Client  openai.Client
	Model   string
	Timeout time.Duration
}

func NewOpenAIJudgeFromEnv(modelName string) (*OpenAIJudge, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, errors.New("evaluator: OPENAI_API_KEY is required")
	}
	if modelName == "" {
		modelName = defaultOpenAIModel
	}
	return &OpenAIJudge{
		Client:  openai.NewClient(option.WithAPIKey(apiKey), option.WithMaxRetries(0)),
		Model:   modelName,
		Timeout: 30 * time.Second,
	}, nil
}

func (j *OpenAIJudge) Name() string {
	if j.Model == "" {
		return defaultOpenAIModel
	}
	return j.Model
}

func (j *OpenAIJudge) Evaluate(ctx context.Context, row core.Row) (core.EvaluatorOutcome, error) {
	timeout := j.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	prompt := fmt.Sprintf("Reference answer:\n%s\n\nCandidate answer:\n%s", row.Reference, row.CandidateText)
	params := responses.ResponseNewParams{
		Model:        openai.ChatModel(j.Name()),
		Instructions: openai.String(judgeSystemPrompt),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: openai.String(prompt),
		},
		Store: openai.Bool(false),
	}

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	start := time.Now()
	resp, err := j.Client.Responses.New(attemptCtx, params)
	if err != nil {
		return core.EvaluatorOutcome{}, fmt.Errorf("evaluator: openai judge call failed: %w", err)
	}

	score, feedback := parseJudgeReply(resp.OutputText())
	return core.EvaluatorOutcome{
		EvaluatorName: j.Name(),
		Score:         core.NumberScore(score),
		Feedback:      feedback,
		Stats: core.ProcessingStats{
			ExecutionTimeMs: time.Since(start).Milliseconds(),
			Tokens: &core.TokenStats{
				Input:  int(resp.Usage.InputTokens),
				Output: int(resp.Usage.OutputTokens),
				Total:  int(resp.Usage.TotalTokens),
			},
		},
	}, nil
}
