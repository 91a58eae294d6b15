package state_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"batchrun/pkg/core"
	"batchrun/pkg/state"

	"github.com/stretchr/testify/require"
)

func buildSnapshot() core.StateSnapshot {
	return core.StateSnapshot{
		BatchID:        "batch-123",
		StartedAt:      time.Now().Add(-time.Minute).UTC().Truncate(time.Millisecond),
		LastUpdateTime: time.Now().UTC().Truncate(time.Millisecond),
		EvaluatorNames: []string{"exact", "includes"},
		TotalRows:      3,
		ProcessedRows:  map[int]struct{}{0: {}, 1: {}},
		Results: []core.RowResult{
			{ID: "row-0", Index: 0, DurationMs: 10},
			{ID: "row-1", Index: 1, DurationMs: 20, Error: "boom"},
		},
	}
}

func TestJSONRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	snap := buildSnapshot()

	require.NoError(t, state.Write(path, snap))
	loaded, err := state.Read(path)
	require.NoError(t, err)

	require.Equal(t, snap.BatchID, loaded.BatchID)
	require.Equal(t, snap.TotalRows, loaded.TotalRows)
	require.Equal(t, snap.ProcessedRows, loaded.ProcessedRows)
	require.Len(t, loaded.Results, 2)
	require.Equal(t, snap.StartedAt, loaded.StartedAt)
}

func TestBundleRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.zip")
	snap := buildSnapshot()

	require.NoError(t, state.Write(path, snap))
	loaded, err := state.Read(path)
	require.NoError(t, err)

	require.Equal(t, snap.BatchID, loaded.BatchID)
	require.Equal(t, snap.ProcessedRows, loaded.ProcessedRows)
	require.Len(t, loaded.Results, 2)
	require.Equal(t, "row-0", loaded.Results[0].ID)
	require.Equal(t, "row-1", loaded.Results[1].ID)
}

func TestManagerUpdateThenCleanupSaves(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	m := state.New(state.Config{Path: path})
	m.Initialize(core.StateSnapshot{BatchID: "b1", TotalRows: 1})

	result := core.RowResult{ID: "row-0", Index: 0}
	m.Update(0, result, nil)

	require.NoError(t, m.Cleanup(context.Background()))

	loaded, err := state.Read(path)
	require.NoError(t, err)
	require.Len(t, loaded.Results, 1)
	require.Contains(t, loaded.ProcessedRows, 0)
}

func TestManagerOnSaveCallback(t *testing.T) {
	var received core.StateSnapshot
	m := state.New(state.Config{
		OnSave: func(ctx context.Context, snapshot core.StateSnapshot) error {
			received = snapshot
			return nil
		},
	})
	m.Initialize(core.StateSnapshot{BatchID: "b2"})
	require.NoError(t, m.Save(context.Background()))
	require.Equal(t, "b2", received.BatchID)
}
