package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"batchrun/pkg/core"
)

func timeFromUnixMilli(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// jsonSnapshot is the plain-JSON wire shape: core.StateSnapshot's processed
// set has no native JSON representation, so it round-trips as a sorted slice.
type jsonSnapshot struct {
	BatchID          string            `json:"batch_id"`
	StartedAt        int64             `json:"started_at_unix_ms"`
	LastUpdateTime   int64             `json:"last_update_time_unix_ms"`
	InputConfig      map[string]string `json:"input_config,omitempty"`
	EvaluatorNames   []string          `json:"evaluator_names"`
	TotalRows        int               `json:"total_rows"`
	ProcessedIndices []int             `json:"processed_indices"`
	Results          []core.RowResult  `json:"results"`
	LatestProgress   *core.ProgressEvent `json:"latest_progress,omitempty"`
}

// Write persists snapshot to path, choosing the wire format by extension:
// ".json" writes plain JSON via an atomic temp-file rename (grounded on the
// cache package's same pattern); anything else writes a zip bundle.
func Write(path string, snapshot core.StateSnapshot) error {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return writeJSON(path, snapshot)
	}
	return writeBundle(path, snapshot)
}

// Read is Write's inverse.
func Read(path string) (core.StateSnapshot, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return readJSON(path)
	}
	return readBundle(path)
}

func writeJSON(path string, snapshot core.StateSnapshot) error {
	wire := jsonSnapshot{
		BatchID:          snapshot.BatchID,
		StartedAt:        snapshot.StartedAt.UnixMilli(),
		LastUpdateTime:   snapshot.LastUpdateTime.UnixMilli(),
		InputConfig:      snapshot.InputConfig,
		EvaluatorNames:   snapshot.EvaluatorNames,
		TotalRows:        snapshot.TotalRows,
		ProcessedIndices: snapshot.ProcessedIndices(),
		Results:          snapshot.Results,
		LatestProgress:   snapshot.LatestProgress,
	}

	payload, err := json.MarshalIndent(wire, "", "  ")
	if err != nil {
		return fmt.Errorf("state: marshal snapshot: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("state: create snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".state-*.tmp")
	if err != nil {
		return fmt.Errorf("state: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("state: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("state: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("state: rename temp file: %w", err)
	}
	return nil
}

func readJSON(path string) (core.StateSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return core.StateSnapshot{}, fmt.Errorf("state: read snapshot: %w", err)
	}
	var wire jsonSnapshot
	if err := json.Unmarshal(data, &wire); err != nil {
		return core.StateSnapshot{}, fmt.Errorf("state: unmarshal snapshot: %w", err)
	}

	processed := make(map[int]struct{}, len(wire.ProcessedIndices))
	for _, idx := range wire.ProcessedIndices {
		processed[idx] = struct{}{}
	}

	return core.StateSnapshot{
		BatchID:        wire.BatchID,
		StartedAt:      timeFromUnixMilli(wire.StartedAt),
		LastUpdateTime: timeFromUnixMilli(wire.LastUpdateTime),
		InputConfig:    wire.InputConfig,
		EvaluatorNames: wire.EvaluatorNames,
		TotalRows:      wire.TotalRows,
		ProcessedRows:  processed,
		Results:        wire.Results,
		LatestProgress: wire.LatestProgress,
	}, nil
}
