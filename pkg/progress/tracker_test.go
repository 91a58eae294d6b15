package progress_test

import (
	"testing"
	"time"

	"batchrun/pkg/core"
	"batchrun/pkg/progress"

	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, ch <-chan core.ProgressEvent) core.ProgressEvent {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("expected an emitted progress event")
		return core.ProgressEvent{}
	}
}

func TestStartEmitsImmediately(t *testing.T) {
	tr := progress.New(progress.Config{TotalRows: 2})
	tr.Start()
	ev := drain(t, tr.Events)
	require.Equal(t, core.EventStarted, ev.Kind)
}

func TestRecordRetryBypassesInterval(t *testing.T) {
	tr := progress.New(progress.Config{TotalRows: 1, Interval: time.Hour})
	tr.Start()
	drain(t, tr.Events)

	tr.RecordRetry("rate limit exceeded", 1)
	ev := drain(t, tr.Events)
	require.Equal(t, core.EventRetry, ev.Kind)
	require.Equal(t, "rate limit exceeded", ev.CurrentError)
	require.Equal(t, 1, ev.RetryCount)
}

func TestSkipRowsAdvancesCountersWithoutEmission(t *testing.T) {
	tr := progress.New(progress.Config{TotalRows: 5})
	tr.SkipRows(2)

	current := tr.CurrentProgress()
	require.Equal(t, core.ProgressEventKind(""), current.Kind)

	select {
	case <-tr.Events:
		t.Fatal("SkipRows must not emit")
	default:
	}

	tr.Start()
	ev := drain(t, tr.Events)
	require.Equal(t, 2, ev.ProcessedRows)
	require.Equal(t, 2, ev.SuccessfulRows)
}

func TestRecordSuccessComputesETA(t *testing.T) {
	tr := progress.New(progress.Config{TotalRows: 4, Interval: time.Nanosecond})
	tr.Start()
	drain(t, tr.Events)

	tr.RecordSuccess(100, 0)
	ev := drain(t, tr.Events)
	require.NotNil(t, ev.AverageRowTimeMs)
	require.InDelta(t, 100.0, *ev.AverageRowTimeMs, 0.001)
	require.NotNil(t, ev.EstimatedRemainingMs)
}

func TestCompleteReportsFinalCounters(t *testing.T) {
	tr := progress.New(progress.Config{TotalRows: 1, Interval: time.Nanosecond})
	tr.Start()
	drain(t, tr.Events)
	tr.RecordFailure(50)
	drain(t, tr.Events)

	tr.Complete()
	ev := drain(t, tr.Events)
	require.Equal(t, core.EventCompleted, ev.Kind)
	require.Equal(t, 1, ev.FailedRows)
	require.Equal(t, 1, ev.ProcessedRows)
}
