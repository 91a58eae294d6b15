// Package progress implements the Progress Tracker: cumulative counters,
// rolling per-row duration statistics, and rate-limited event emission with
// forced lifecycle emissions.
package progress

import (
	"sync"
	"time"

	"batchrun/pkg/core"
)

// maxRollingSamples bounds the ETA rolling window (§9 open question,
// resolved to the spec's own suggested figure).
const maxRollingSamples = 1000

// Config configures a Tracker.
type Config struct {
	TotalRows int
	// Interval is the minimum spacing between non-forced emissions. Zero
	// defaults to one second.
	Interval time.Duration
	// CostPerMillionTokensUSD and AssumedTokensPerRow feed the best-effort
	// cost/remaining-token estimate; both zero disables the estimate.
	CostPerMillionTokensUSD float64
	AssumedTokensPerRow     float64
}

// Tracker maintains cumulative counts and derives ETA/throughput, emitting
// events onto Events at most once per Interval except for forced lifecycle
// transitions (start, retry, complete).
type Tracker struct {
	cfg    Config
	Events chan core.ProgressEvent

	mu         sync.Mutex
	processed  int
	successful int
	failed     int
	durations  []float64
	tokens     int64
	lastEmit   time.Time
	latest     core.ProgressEvent
}

// New builds a Tracker from cfg.
func New(cfg Config) *Tracker {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	return &Tracker{
		cfg:    cfg,
		Events: make(chan core.ProgressEvent, 64),
	}
}

// Start records the epoch and emits a started event immediately.
func (t *Tracker) Start() {
	t.mu.Lock()
	ev := t.snapshotLocked(core.EventStarted)
	t.latest = ev
	t.lastEmit = ev.Timestamp
	t.mu.Unlock()
	t.emit(ev)
}

// SkipRows bumps processed and successful by n without duration sampling,
// used when resuming past an index the caller asserts was already done.
func (t *Tracker) SkipRows(n int) {
	t.mu.Lock()
	t.processed += n
	t.successful += n
	t.mu.Unlock()
}

// RecordSuccess increments processed/successful, appends the duration to the
// rolling window, adds tokens to the running total, and maybe emits progress.
func (t *Tracker) RecordSuccess(durationMs float64, tokens int) {
	t.mu.Lock()
	t.processed++
	t.successful++
	t.appendDurationLocked(durationMs)
	t.tokens += int64(tokens)
	ev, shouldEmit := t.maybeSnapshotLocked(core.EventProgress)
	t.mu.Unlock()
	if shouldEmit {
		t.emit(ev)
	}
}

// RecordFailure is RecordSuccess's symmetric counterpart for a terminally
// failed row.
func (t *Tracker) RecordFailure(durationMs float64) {
	t.mu.Lock()
	t.processed++
	t.failed++
	t.appendDurationLocked(durationMs)
	ev, shouldEmit := t.maybeSnapshotLocked(core.EventProgress)
	t.mu.Unlock()
	if shouldEmit {
		t.emit(ev)
	}
}

// RecordRetry emits a retry event immediately, bypassing the emission
// interval.
func (t *Tracker) RecordRetry(errMsg string, attempt int) {
	t.mu.Lock()
	ev := t.snapshotLocked(core.EventRetry)
	ev.CurrentError = errMsg
	ev.RetryCount = attempt
	t.latest = ev
	t.lastEmit = ev.Timestamp
	t.mu.Unlock()
	t.emit(ev)
}

// Complete emits a completed event immediately with final counters.
func (t *Tracker) Complete() {
	t.mu.Lock()
	ev := t.snapshotLocked(core.EventCompleted)
	t.latest = ev
	t.lastEmit = ev.Timestamp
	t.mu.Unlock()
	t.emit(ev)
}

// CurrentProgress synchronously reads the latest derived event without
// emitting anything.
func (t *Tracker) CurrentProgress() core.ProgressEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.latest
}

func (t *Tracker) appendDurationLocked(durationMs float64) {
	t.durations = append(t.durations, durationMs)
	if len(t.durations) > maxRollingSamples {
		t.durations = t.durations[len(t.durations)-maxRollingSamples:]
	}
}

// maybeSnapshotLocked returns a fresh snapshot and whether enough time has
// passed since the last emission to actually send it.
func (t *Tracker) maybeSnapshotLocked(kind core.ProgressEventKind) (core.ProgressEvent, bool) {
	ev := t.snapshotLocked(kind)
	t.latest = ev
	if ev.Timestamp.Sub(t.lastEmit) < t.cfg.Interval {
		return ev, false
	}
	t.lastEmit = ev.Timestamp
	return ev, true
}

func (t *Tracker) snapshotLocked(kind core.ProgressEventKind) core.ProgressEvent {
	now := time.Now()
	ev := core.ProgressEvent{
		Kind:           kind,
		Timestamp:      now,
		TotalRows:      t.cfg.TotalRows,
		ProcessedRows:  t.processed,
		SuccessfulRows: t.successful,
		FailedRows:     t.failed,
	}
	if t.cfg.TotalRows > 0 {
		ev.PercentComplete = float64(t.processed) / float64(t.cfg.TotalRows) * 100
	}

	if avg, ok := t.averageLocked(); ok {
		ev.AverageRowTimeMs = &avg
		remaining := t.cfg.TotalRows - t.processed
		if remaining > 0 {
			etaMs := int64(avg * float64(remaining))
			ev.EstimatedRemainingMs = &etaMs
		}
	}

	if t.cfg.AssumedTokensPerRow > 0 {
		remaining := int64(t.cfg.TotalRows - t.processed)
		if remaining < 0 {
			remaining = 0
		}
		tokensLeft := int64(float64(remaining) * t.cfg.AssumedTokensPerRow)
		ev.EstimatedTokensLeft = &tokensLeft
		if t.cfg.CostPerMillionTokensUSD > 0 {
			cost := (float64(t.tokens) + float64(tokensLeft)) / 1_000_000 * t.cfg.CostPerMillionTokensUSD
			ev.EstimatedCostUSD = &cost
		}
	}

	return ev
}

func (t *Tracker) averageLocked() (float64, bool) {
	if len(t.durations) == 0 {
		return 0, false
	}
	var sum float64
	for _, d := range t.durations {
		sum += d
	}
	return sum / float64(len(t.durations)), true
}

func (t *Tracker) emit(ev core.ProgressEvent) {
	select {
	case t.Events <- ev:
	default:
		// Events is a best-effort feed for slow consumers; a full buffer
		// drops the emission rather than blocking the commit path.
	}
}
