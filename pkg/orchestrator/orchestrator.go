// Package orchestrator implements the Batch Orchestrator (§4.E): the
// component that drives the row pipeline, runs evaluators per row under
// retry and backoff, and coordinates the Concurrency Gate, Progress
// Tracker, Streaming Sink, and State Snapshot.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"batchrun/pkg/core"
	"batchrun/pkg/gate"
	"batchrun/pkg/progress"
	"batchrun/pkg/state"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Orchestrator sequences one batch's evaluation per §4.E's pipeline. A
// single instance is intended for one Evaluate call at a time; CurrentState
// and CurrentResults are safe to call concurrently from another goroutine
// while Evaluate is in flight.
type Orchestrator struct {
	cfg Config

	gate     *gate.Gate
	stateMgr *state.Manager
	logger   *zap.Logger

	mu        sync.Mutex
	results   []core.RowResult
	processed map[int]struct{}

	commitMu sync.Mutex
	tracker  *progress.Tracker
}

// New builds an Orchestrator from cfg. It panics if cfg.Evaluators is empty,
// since a batch with no evaluator set has nothing to commit (a configuration
// error per §7, raised at setup time).
func New(cfg Config) *Orchestrator {
	if len(cfg.Evaluators) == 0 {
		panic("orchestrator: at least one evaluator is required")
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	var windows []gate.WindowLimit
	if cfg.RateLimitPerMinute > 0 {
		windows = append(windows, gate.WindowLimit{Window: time.Minute, Cap: cfg.RateLimitPerMinute})
	}
	if cfg.RateLimitPerHour > 0 {
		windows = append(windows, gate.WindowLimit{Window: time.Hour, Cap: cfg.RateLimitPerHour})
	}
	cfg.Concurrency = concurrency

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	o := &Orchestrator{
		cfg:    cfg,
		gate:   gate.New(gate.Config{MaxConcurrency: concurrency, Windows: windows}),
		logger: logger,
	}

	if cfg.StatePath != "" || cfg.OnStateSave != nil || cfg.SaveStateInterval > 0 {
		o.stateMgr = state.New(state.Config{
			Path:     cfg.StatePath,
			OnSave:   cfg.OnStateSave,
			Interval: cfg.SaveStateInterval,
		})
	}

	return o
}

// Evaluate drives rows through the full pipeline and returns the assembled
// BatchResult. An error is returned only when StopOnError aborts the batch
// or a setup/finalize step fails; individual row failures are contained in
// the returned BatchResult.
func (o *Orchestrator) Evaluate(ctx context.Context, rows []core.Row) (core.BatchResult, error) {
	batchID := uuid.NewString()
	startedAt := time.Now()

	processed := make(map[int]struct{})
	var results []core.RowResult

	startIndex := o.cfg.StartIndex
	if startIndex > 0 {
		for i := 0; i < startIndex && i < len(rows); i++ {
			processed[i] = struct{}{}
		}
	}
	if o.cfg.ResumeFromState != nil {
		snap := o.cfg.ResumeFromState
		batchID = snap.BatchID
		startedAt = snap.StartedAt
		for idx := range snap.ProcessedRows {
			processed[idx] = struct{}{}
		}
		results = append(results, snap.Results...)
	}

	o.mu.Lock()
	o.results = results
	o.processed = processed
	o.mu.Unlock()

	totalRows := len(rows)
	tracker := progress.New(progress.Config{
		TotalRows:               totalRows,
		Interval:                o.cfg.ProgressInterval,
		CostPerMillionTokensUSD: o.cfg.CostPerMillionTokensUSD,
		AssumedTokensPerRow:     o.cfg.AssumedTokensPerRow,
	})
	o.tracker = tracker

	stopProgress := make(chan struct{})
	progressDone := make(chan struct{})
	if o.cfg.OnProgress != nil {
		go o.forwardProgress(tracker, stopProgress, progressDone)
	} else {
		close(progressDone)
	}
	defer func() {
		close(stopProgress)
		<-progressDone
	}()

	if o.cfg.Sink != nil {
		if err := o.cfg.Sink.Initialize(ctx); err != nil {
			return core.BatchResult{}, fmt.Errorf("orchestrator: initialize streaming sink: %w", err)
		}
	}

	if o.stateMgr != nil {
		o.stateMgr.Initialize(core.StateSnapshot{
			BatchID:        batchID,
			StartedAt:      startedAt,
			LastUpdateTime: startedAt,
			InputConfig:    o.cfg.InputConfig,
			EvaluatorNames: evaluatorNames(o.cfg.Evaluators),
			TotalRows:      totalRows,
			ProcessedRows:  cloneIntSet(processed),
			Results:        append([]core.RowResult(nil), results...),
		})
		o.stateMgr.Start(ctx)
	}

	tracker.Start()
	if startIndex > 0 {
		tracker.SkipRows(startIndex)
	}

	var aborted atomic.Bool
	var engineErr error

	if startIndex < len(rows) {
		pending := rows[startIndex:]
		chunkSize := 2 * o.cfg.Concurrency
		for start := 0; start < len(pending); start += chunkSize {
			if aborted.Load() {
				break
			}
			end := start + chunkSize
			if end > len(pending) {
				end = len(pending)
			}
			if err := o.runChunk(ctx, pending[start:end], &aborted); err != nil && engineErr == nil {
				engineErr = err
			}
		}
	}

	tracker.Complete()

	if o.cfg.Sink != nil {
		if err := o.cfg.Sink.Finalize(ctx); err != nil && engineErr == nil {
			engineErr = fmt.Errorf("orchestrator: finalize streaming sink: %w", err)
		}
	}
	if o.stateMgr != nil {
		if err := o.stateMgr.Cleanup(ctx); err != nil && engineErr == nil {
			engineErr = fmt.Errorf("orchestrator: final state save: %w", err)
		}
	}

	finishedAt := time.Now()
	batchResult := core.Assemble(batchID, startedAt.UnixMilli(), finishedAt.UnixMilli(), o.CurrentResults())

	if aborted.Load() {
		return batchResult, fmt.Errorf("orchestrator: batch aborted after a terminal row failure (stopOnError)")
	}
	return batchResult, engineErr
}

// errStopOnError is returned by a row's gated task once it signals a
// terminal failure under StopOnError, so errgroup cancels gctx and rows of
// the same chunk still queued at the gate are never admitted.
var errStopOnError = errors.New("orchestrator: row requested batch stop")

// runChunk submits every row in chunk through the Concurrency Gate and
// awaits them all before returning, per §4.E pipeline step 6.
func (o *Orchestrator) runChunk(ctx context.Context, chunk []core.Row, aborted *atomic.Bool) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, row := range chunk {
		row := row
		g.Go(func() error {
			_, err := gate.Run(gctx, o.gate, func(taskCtx context.Context) (struct{}, error) {
				if o.runRow(taskCtx, row) {
					aborted.Store(true)
					return struct{}{}, errStopOnError
				}
				return struct{}{}, nil
			})
			return err
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, errStopOnError) && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// forwardProgress drains tracker.Events into cfg.OnProgress until stop is
// closed, then delivers any events still buffered and closes done.
func (o *Orchestrator) forwardProgress(tracker *progress.Tracker, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case ev := <-tracker.Events:
			o.cfg.OnProgress(ev)
		case <-stop:
			for {
				select {
				case ev := <-tracker.Events:
					o.cfg.OnProgress(ev)
				default:
					return
				}
			}
		}
	}
}

// Export performs a post-hoc, non-streaming write of the accumulated
// results via whatever core.Exporter the caller supplies (§4.E export()) —
// typically an exporter.Exporter wrapping a file or webhook Config.
func (o *Orchestrator) Export(ctx context.Context, exp core.Exporter) error {
	return exp.Export(ctx, o.CurrentResults())
}

// CurrentResults returns a defensive copy of the accumulated RowResult list.
func (o *Orchestrator) CurrentResults() []core.RowResult {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]core.RowResult(nil), o.results...)
}

// CurrentState returns the live state snapshot, or nil if state management
// is not enabled.
func (o *Orchestrator) CurrentState() *core.StateSnapshot {
	if o.stateMgr == nil {
		return nil
	}
	snap := o.stateMgr.Current()
	return &snap
}

func (o *Orchestrator) alreadyProcessed(index int) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.processed[index]
	return ok
}

func evaluatorNames(evaluators []core.Evaluator) []string {
	names := make([]string, len(evaluators))
	for i, e := range evaluators {
		names[i] = e.Name()
	}
	return names
}

func cloneIntSet(m map[int]struct{}) map[int]struct{} {
	out := make(map[int]struct{}, len(m))
	for k := range m {
		out[k] = struct{}{}
	}
	return out
}
