package evaluator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"google.golang.org/genai"

	"batchrun/pkg/core"
)

const defaultGeminiModel = "gemini-2.0-flash"

// GeminiJudge evaluates a row by asking a Gemini model to grade
// CandidateText against Reference, one attempt per call.
type GeminiJudge struct {
	Client  *genai.Client
	Model   string
	Timeout time.Duration
}

func NewGeminiJudgeFromEnv(modelName string) (*GeminiJudge, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New("evaluator: GEMINI_API_KEY or GOOGLE_API_KEY is required")
	}
	if modelName == "" {
		modelName = defaultGeminiModel
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("evaluator: build gemini client: %w", err)
	}
	return &GeminiJudge{Client: client, Model: modelName, Timeout: 60 * time.Second}, nil
}

func (j *GeminiJudge) Name() string {
	if j.Model == "" {
		return defaultGeminiModel
	}
	return j.Model
}

func (j *GeminiJudge) Evaluate(ctx context.Context, row core.Row) (core.EvaluatorOutcome, error) {
	timeout := j.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	prompt := fmt.Sprintf("Reference answer:\n%s\n\nCandidate answer:\n%s", row.Reference, row.CandidateText)
	sysParts := genai.Text(judgeSystemPrompt)
	config := &genai.GenerateContentConfig{}
	if len(sysParts) > 0 {
		config.SystemInstruction = sysParts[0]
	}

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	start := time.Now()
	result, err := j.Client.Models.GenerateContent(attemptCtx, j.Name(), genai.Text(prompt), config)
	if err != nil {
		return core.EvaluatorOutcome{}, fmt.Errorf("evaluator: gemini judge call failed: %w", err)
	}

	score, feedback := parseJudgeReply(result.Text())
	outcome := core.EvaluatorOutcome{
		EvaluatorName: j.Name(),
		Score:         core.NumberScore(score),
		Feedback:      feedback,
		Stats:         core.ProcessingStats{ExecutionTimeMs: time.Since(start).Milliseconds()},
	}
	if result.UsageMetadata != nil {
		outcome.Stats.Tokens = &core.TokenStats{
			Input:  int(result.UsageMetadata.PromptTokenCount),
			Output: int(result.UsageMetadata.CandidatesTokenCount),
			Total:  int(result.UsageMetadata.PromptTokenCount + result.UsageMetadata.CandidatesTokenCount),
		}
	}
	return outcome, nil
}
