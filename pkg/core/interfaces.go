package core

import "context"

// Evaluator consumes an effective Row, produces an EvaluatorOutcome, and may
// fail. The engine treats evaluators as opaque black boxes: it never inspects
// what they do, only whether they returned an outcome or an error.
type Evaluator interface {
	Name() string
	Evaluate(ctx context.Context, row Row) (EvaluatorOutcome, error)
}

// RowSource yields the finite ordered sequence of rows an input parser
// produces (spec's "external collaborator" contract, §6).
type RowSource interface {
	Rows(ctx context.Context) ([]Row, error)
}

// Sink is the Streaming Sink's contract (§4.C): prepare a destination, accept
// one committed RowResult at a time, and close out.
type Sink interface {
	Initialize(ctx context.Context) error
	ExportResult(ctx context.Context, result RowResult) error
	Finalize(ctx context.Context) error
}

// Exporter performs a post-hoc, non-streaming bulk write of an accumulated
// result set (§4.E export()).
type Exporter interface {
	Export(ctx context.Context, results []RowResult) error
}

// Combiner produces a single combined score string from a row's outcomes.
// It runs only on the success path; on terminal failure the combined score
// is always the sentinel "N/A".
type Combiner func(outcomes []EvaluatorOutcome) string

// CombinedScoreNA is the sentinel combined score for terminally failed rows.
const CombinedScoreNA = "N/A"
