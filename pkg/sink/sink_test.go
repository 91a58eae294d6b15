package sink_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"batchrun/pkg/core"
	"batchrun/pkg/sink"

	"github.com/stretchr/testify/require"
)

func sampleResult(index int) core.RowResult {
	return core.RowResult{
		ID:    "row-1",
		Index: index,
		EffectiveInput: core.Row{
			CandidateText: "hello world",
		},
		Outcomes: []core.EvaluatorOutcome{
			{EvaluatorName: "exact", Score: core.NumberScore(1), Feedback: "match"},
		},
		DurationMs: 42,
	}
}

func TestDelimitedSinkWritesHeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	s := sink.NewDelimitedSink(sink.DelimitedConfig{Path: path})

	require.NoError(t, s.Initialize(context.Background()))
	require.NoError(t, s.ExportResult(context.Background(), sampleResult(0)))
	require.NoError(t, s.ExportResult(context.Background(), sampleResult(1)))
	require.NoError(t, s.Finalize(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 3)
}

func TestDelimitedSinkAppendSkipsHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")

	first := sink.NewDelimitedSink(sink.DelimitedConfig{Path: path})
	require.NoError(t, first.Initialize(context.Background()))
	require.NoError(t, first.ExportResult(context.Background(), sampleResult(0)))
	require.NoError(t, first.Finalize(context.Background()))

	second := sink.NewDelimitedSink(sink.DelimitedConfig{Path: path, AppendToExisting: true})
	require.NoError(t, second.Initialize(context.Background()))
	require.NoError(t, second.ExportResult(context.Background(), sampleResult(1)))
	require.NoError(t, second.Finalize(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 3) // one header + two data rows, never two headers
}

func TestStructuredSinkProducesValidJSONArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	s := sink.NewStructuredSink(sink.StructuredConfig{Path: path})

	require.NoError(t, s.Initialize(context.Background()))
	require.NoError(t, s.ExportResult(context.Background(), sampleResult(0)))
	require.NoError(t, s.ExportResult(context.Background(), sampleResult(1)))
	require.NoError(t, s.Finalize(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var parsed []map[string]any
	require.NoError(t, json.Unmarshal(data, &parsed))
	require.Len(t, parsed, 2)
}

func TestWebhookSinkSwallowsFinalFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := sink.NewWebhookSink(sink.WebhookConfig{URL: srv.URL})
	err := s.ExportResult(context.Background(), sampleResult(0))
	require.NoError(t, err)
}

func TestWebhookSinkPostsWrappedPayload(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := sink.NewWebhookSink(sink.WebhookConfig{URL: srv.URL})
	require.NoError(t, s.ExportResult(context.Background(), sampleResult(0)))
	require.Contains(t, received, "timestamp")
	require.Contains(t, received, "result")
}
