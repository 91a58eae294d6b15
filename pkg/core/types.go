package core

import (
	"sort"
	"time"
)

// Row is one input record: the unit of retry and commit. CandidateText is
// required; the rest are optional standard fields plus arbitrary named
// additions in Fields.
type Row struct {
	ID            string            `json:"id" yaml:"id"`
	Index         int               `json:"index" yaml:"index"`
	CandidateText string            `json:"candidate_text" yaml:"candidate_text"`
	Reference     string            `json:"reference,omitempty" yaml:"reference,omitempty"`
	Source        string            `json:"source,omitempty" yaml:"source,omitempty"`
	Prompt        string            `json:"prompt,omitempty" yaml:"prompt,omitempty"`
	ContentType   string            `json:"content_type,omitempty" yaml:"content_type,omitempty"`
	Language      string            `json:"language,omitempty" yaml:"language,omitempty"`
	Fields        map[string]string `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// ScoreKind distinguishes a bounded numeric score from a categorical one.
type ScoreKind int

const (
	ScoreKindNumber ScoreKind = iota
	ScoreKindCategory
)

// Score is either a bounded number or a member of an enumerated category set.
type Score struct {
	Kind     ScoreKind `json:"kind" yaml:"kind"`
	Number   float64   `json:"number,omitempty" yaml:"number,omitempty"`
	Category string    `json:"category,omitempty" yaml:"category,omitempty"`
}

// NumberScore builds a bounded-numeric Score.
func NumberScore(v float64) Score { return Score{Kind: ScoreKindNumber, Number: v} }

// CategoryScore builds a categorical Score.
func CategoryScore(c string) Score { return Score{Kind: ScoreKindCategory, Category: c} }

// TokenStats is optional per-call token accounting.
type TokenStats struct {
	Input  int `json:"input" yaml:"input"`
	Output int `json:"output" yaml:"output"`
	Total  int `json:"total" yaml:"total"`
}

// ProcessingStats carries execution time and optional token counts for one
// EvaluatorOutcome.
type ProcessingStats struct {
	ExecutionTimeMs int64       `json:"execution_time_ms" yaml:"execution_time_ms"`
	Tokens          *TokenStats `json:"tokens,omitempty" yaml:"tokens,omitempty"`
}

// EvaluatorOutcome is one evaluator's verdict on one row.
type EvaluatorOutcome struct {
	EvaluatorName string          `json:"evaluator_name" yaml:"evaluator_name"`
	Score         Score           `json:"score" yaml:"score"`
	Feedback      string          `json:"feedback,omitempty" yaml:"feedback,omitempty"`
	Stats         ProcessingStats `json:"stats" yaml:"stats"`
	Error         string          `json:"error,omitempty" yaml:"error,omitempty"`
}

// RowResult is the committed outcome of one row's processing.
type RowResult struct {
	ID             string             `json:"id" yaml:"id"`
	Index          int                `json:"index" yaml:"index"`
	EffectiveInput Row                `json:"effective_input" yaml:"effective_input"`
	Outcomes       []EvaluatorOutcome `json:"outcomes" yaml:"outcomes"`
	CombinedScore  *string            `json:"combined_score,omitempty" yaml:"combined_score,omitempty"`
	CompletedAt    time.Time          `json:"completed_at" yaml:"completed_at"`
	DurationMs     int64              `json:"duration_ms" yaml:"duration_ms"`
	RetryCount     int                `json:"retry_count" yaml:"retry_count"`
	Error          string             `json:"error,omitempty" yaml:"error,omitempty"`
}

// Summary is BatchResult's derived aggregate block.
type Summary struct {
	AverageProcessingTimeMs float64 `json:"average_processing_time_ms" yaml:"average_processing_time_ms"`
	TotalTokensUsed         int     `json:"total_tokens_used,omitempty" yaml:"total_tokens_used,omitempty"`
	ErrorRate               float64 `json:"error_rate" yaml:"error_rate"`
}

// BatchResult is the final, immutable outcome of one evaluate() call.
type BatchResult struct {
	ID             string      `json:"id" yaml:"id"`
	StartedAt      time.Time   `json:"started_at" yaml:"started_at"`
	FinishedAt     time.Time   `json:"finished_at" yaml:"finished_at"`
	DurationMs     int64       `json:"duration_ms" yaml:"duration_ms"`
	TotalRows      int         `json:"total_rows" yaml:"total_rows"`
	SuccessfulRows int         `json:"successful_rows" yaml:"successful_rows"`
	FailedRows     int         `json:"failed_rows" yaml:"failed_rows"`
	Results        []RowResult `json:"results" yaml:"results"`
	Summary        Summary     `json:"summary" yaml:"summary"`
}

// ProgressEventKind enumerates the lifecycle and periodic event kinds.
type ProgressEventKind string

const (
	EventStarted   ProgressEventKind = "started"
	EventProgress  ProgressEventKind = "progress"
	EventCompleted ProgressEventKind = "completed"
	EventError     ProgressEventKind = "error"
	EventRetry     ProgressEventKind = "retry"
	EventPaused    ProgressEventKind = "paused"
	EventResumed   ProgressEventKind = "resumed"
)

// ProgressEvent is one emission from the Progress Tracker.
type ProgressEvent struct {
	Kind                 ProgressEventKind `json:"kind" yaml:"kind"`
	Timestamp            time.Time         `json:"timestamp" yaml:"timestamp"`
	TotalRows            int               `json:"total_rows" yaml:"total_rows"`
	ProcessedRows        int               `json:"processed_rows" yaml:"processed_rows"`
	SuccessfulRows       int               `json:"successful_rows" yaml:"successful_rows"`
	FailedRows           int               `json:"failed_rows" yaml:"failed_rows"`
	CurrentRowIndex      *int              `json:"current_row_index,omitempty" yaml:"current_row_index,omitempty"`
	PercentComplete      float64           `json:"percent_complete" yaml:"percent_complete"`
	EstimatedRemainingMs *int64            `json:"estimated_remaining_ms,omitempty" yaml:"estimated_remaining_ms,omitempty"`
	AverageRowTimeMs     *float64          `json:"average_row_time_ms,omitempty" yaml:"average_row_time_ms,omitempty"`
	CurrentError         string            `json:"current_error,omitempty" yaml:"current_error,omitempty"`
	RetryCount           int               `json:"retry_count,omitempty" yaml:"retry_count,omitempty"`
	EstimatedCostUSD     *float64          `json:"estimated_cost_usd,omitempty" yaml:"estimated_cost_usd,omitempty"`
	EstimatedTokensLeft  *int64            `json:"estimated_tokens_left,omitempty" yaml:"estimated_tokens_left,omitempty"`
}

// StateSnapshot is a durable image of batch progress sufficient to resume
// processing from a partial run.
type StateSnapshot struct {
	BatchID        string            `json:"batch_id" yaml:"batch_id"`
	StartedAt      time.Time         `json:"started_at" yaml:"started_at"`
	LastUpdateTime time.Time         `json:"last_update_time" yaml:"last_update_time"`
	InputConfig    map[string]string `json:"input_config,omitempty" yaml:"input_config,omitempty"`
	EvaluatorNames []string          `json:"evaluator_names" yaml:"evaluator_names"`
	TotalRows      int               `json:"total_rows" yaml:"total_rows"`
	ProcessedRows  map[int]struct{}  `json:"-" yaml:"-"`
	Results        []RowResult       `json:"results" yaml:"results"`
	LatestProgress *ProgressEvent    `json:"latest_progress,omitempty" yaml:"latest_progress,omitempty"`
}

// Clone returns a copy whose ProcessedRows, Results and EvaluatorNames can be
// modified without affecting s. InputConfig, LatestProgress and each
// RowResult's nested slices are shared with s, not copied.
func (s StateSnapshot) Clone() StateSnapshot {
	out := s
	out.ProcessedRows = make(map[int]struct{}, len(s.ProcessedRows))
	for k := range s.ProcessedRows {
		out.ProcessedRows[k] = struct{}{}
	}
	out.Results = append([]RowResult(nil), s.Results...)
	out.EvaluatorNames = append([]string(nil), s.EvaluatorNames...)
	return out
}

// ProcessedIndices returns the processed set as a sorted slice, used for
// JSON/zip-bundle persistence where a set has no native representation.
func (s StateSnapshot) ProcessedIndices() []int {
	out := make([]int, 0, len(s.ProcessedRows))
	for k := range s.ProcessedRows {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
