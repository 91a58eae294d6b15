// Package sink implements the Streaming Sink (§4.C): destinations that
// accept one committed RowResult at a time as a batch runs.
package sink

import (
	"encoding/json"
	"fmt"
	"sort"

	"batchrun/pkg/core"
)

// Filter narrows and transforms the flattened field map for one RowResult
// before it is written. Include, if non-empty, keeps only the named keys.
// Exclude drops the named keys after Include is applied. Predicate, if set,
// is consulted last and may veto individual keys.
type Filter struct {
	Include   []string
	Exclude   []string
	Predicate func(key string, value any) bool
}

// Project exposes the package's row-flattening projection to other packages
// (the bulk exporter reuses it so webhook batches share the same field
// layout as streamed webhook calls).
func Project(result core.RowResult, f Filter) []KV {
	return project(result, f)
}

// project flattens a RowResult into an ordered key/value projection, applying
// f. Standard input fields get named columns; remaining input fields get an
// input_<name> prefix. A single evaluator's outcome flattens unprefixed;
// multiple evaluators get eval<i>_<field> columns.
func project(result core.RowResult, f Filter) []KV {
	fields := map[string]any{
		"id":          result.ID,
		"index":       result.Index,
		"duration_ms": result.DurationMs,
		"retry_count": result.RetryCount,
		"completed_at": result.CompletedAt,
	}
	if result.Error != "" {
		fields["error"] = result.Error
	}
	if result.CombinedScore != nil {
		fields["combined_score"] = *result.CombinedScore
	}

	row := result.EffectiveInput
	fields["candidate_text"] = row.CandidateText
	if row.Reference != "" {
		fields["reference"] = row.Reference
	}
	if row.Source != "" {
		fields["source"] = row.Source
	}
	if row.Prompt != "" {
		fields["prompt"] = row.Prompt
	}
	if row.ContentType != "" {
		fields["content_type"] = row.ContentType
	}
	if row.Language != "" {
		fields["language"] = row.Language
	}
	for k, v := range row.Fields {
		fields["input_"+k] = v
	}

	switch len(result.Outcomes) {
	case 0:
		// terminal failure: no outcomes to flatten.
	case 1:
		flattenOutcome(fields, "", result.Outcomes[0])
	default:
		for i, o := range result.Outcomes {
			flattenOutcome(fields, fmt.Sprintf("eval%d_", i+1), o)
		}
	}

	return apply(fields, f)
}

func flattenOutcome(fields map[string]any, prefix string, o core.EvaluatorOutcome) {
	fields[prefix+"evaluator_name"] = o.EvaluatorName
	fields[prefix+"score"] = scoreValue(o.Score)
	fields[prefix+"feedback"] = o.Feedback
	if o.Error != "" {
		fields[prefix+"error"] = o.Error
	}
}

func scoreValue(s core.Score) any {
	if s.Kind == core.ScoreKindCategory {
		return s.Category
	}
	return s.Number
}

// KV is one ordered field of a projection.
type KV struct {
	Key   string
	Value any
}

func apply(fields map[string]any, f Filter) []KV {
	keys := make([]string, 0, len(fields))
	if len(f.Include) > 0 {
		keys = append(keys, f.Include...)
	} else {
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
	}

	excluded := make(map[string]bool, len(f.Exclude))
	for _, k := range f.Exclude {
		excluded[k] = true
	}

	out := make([]KV, 0, len(keys))
	for _, k := range keys {
		if excluded[k] {
			continue
		}
		v, ok := fields[k]
		if !ok {
			continue
		}
		if f.Predicate != nil && !f.Predicate(k, v) {
			continue
		}
		out = append(out, KV{Key: k, Value: v})
	}
	return out
}

// resultsAsJSON marshals a row's outcomes as an escaped structured-document
// string, used by the delimited sink's "results" column when outcomes are
// not flattened into per-evaluator columns.
func resultsAsJSON(outcomes []core.EvaluatorOutcome) (string, error) {
	b, err := json.Marshal(outcomes)
	if err != nil {
		return "", fmt.Errorf("sink: marshal outcomes: %w", err)
	}
	return string(b), nil
}
