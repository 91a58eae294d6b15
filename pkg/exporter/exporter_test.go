package exporter_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"batchrun/pkg/core"
	"batchrun/pkg/exporter"

	"github.com/stretchr/testify/require"
)

func sampleResults() []core.RowResult {
	return []core.RowResult{
		{
			ID:             "row-0",
			Index:          0,
			EffectiveInput: core.Row{CandidateText: "hi"},
			Outcomes:       []core.EvaluatorOutcome{{EvaluatorName: "exact_match", Score: core.NumberScore(1)}},
		},
		{
			ID:             "row-1",
			Index:          1,
			EffectiveInput: core.Row{CandidateText: "bye"},
			Outcomes:       []core.EvaluatorOutcome{{EvaluatorName: "exact_match", Score: core.NumberScore(0)}},
		},
	}
}

func TestExportDelimitedWritesAllRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	err := exporter.Export(context.Background(), sampleResults(), exporter.Config{
		Format: exporter.FormatDelimited,
		Path:   path,
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "row-0")
	require.Contains(t, string(data), "row-1")
}

func TestExportStructuredProducesJSONArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	err := exporter.Export(context.Background(), sampleResults(), exporter.Config{
		Format: exporter.FormatStructured,
		Path:   path,
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 2)
}

func TestExportWebhookSendsBatchedBulkPayload(t *testing.T) {
	var received []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		received = append(received, body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := exporter.Export(context.Background(), sampleResults(), exporter.Config{
		Format: exporter.FormatWebhook,
		Webhook: exporter.WebhookBulkConfig{
			URL:       srv.URL,
			BatchSize: 1,
		},
	})
	require.NoError(t, err)
	require.Len(t, received, 2)
	require.Equal(t, float64(1), received[0]["count"])
}

func TestExportUnsupportedFormatErrors(t *testing.T) {
	err := exporter.Export(context.Background(), sampleResults(), exporter.Config{Format: "carrier-pigeon"})
	require.Error(t, err)
}
