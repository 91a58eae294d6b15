// Package state implements the State Snapshot (§4.D): a live, resumable
// image of batch progress, persisted on an interval and at batch end.
package state

import (
	"context"
	"sync"
	"time"

	"batchrun/pkg/core"
)

// SaveFunc persists a snapshot; its error is surfaced to the caller of Save
// but never aborts the batch on its own.
type SaveFunc func(ctx context.Context, snapshot core.StateSnapshot) error

// Config configures a Manager.
type Config struct {
	// Path, if set, is written on every Save call using the format resolved
	// by its extension (.json for plain JSON, otherwise a zip bundle).
	Path string
	// OnSave, if set, additionally receives every saved snapshot.
	OnSave SaveFunc
	// Interval triggers a periodic Save; zero disables the timer.
	Interval time.Duration
}

// Manager owns the live StateSnapshot and its persistence.
type Manager struct {
	cfg Config

	mu       sync.Mutex
	snapshot core.StateSnapshot

	ticker *time.Ticker
	stop   chan struct{}
	done   chan struct{}
}

// New builds a Manager. Call Initialize before Start.
func New(cfg Config) *Manager {
	return &Manager{cfg: cfg}
}

// Initialize installs the starting snapshot.
func (m *Manager) Initialize(snapshot core.StateSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot = snapshot
}

// Update merges fields into the live snapshot and stamps LastUpdateTime.
// Called strictly after the commit side of §4.E, so a saved snapshot never
// references a row that was not successfully exported.
func (m *Manager) Update(processedIndex int, result core.RowResult, progress *core.ProgressEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snapshot.ProcessedRows == nil {
		m.snapshot.ProcessedRows = make(map[int]struct{})
	}
	m.snapshot.ProcessedRows[processedIndex] = struct{}{}
	m.snapshot.Results = append(m.snapshot.Results, result)
	m.snapshot.LastUpdateTime = time.Now()
	if progress != nil {
		m.snapshot.LatestProgress = progress
	}
}

// Current returns a defensive copy of the live snapshot.
func (m *Manager) Current() core.StateSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot.Clone()
}

// Save writes the current snapshot to Path (if set) and invokes OnSave (if
// set).
func (m *Manager) Save(ctx context.Context) error {
	snapshot := m.Current()
	if m.cfg.Path != "" {
		if err := Write(m.cfg.Path, snapshot); err != nil {
			return err
		}
	}
	if m.cfg.OnSave != nil {
		return m.cfg.OnSave(ctx, snapshot)
	}
	return nil
}

// Start begins the periodic save timer, if configured. It is safe to call
// Start with a zero Interval: no timer is started.
func (m *Manager) Start(ctx context.Context) {
	if m.cfg.Interval <= 0 {
		return
	}
	m.ticker = time.NewTicker(m.cfg.Interval)
	m.stop = make(chan struct{})
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)
		for {
			select {
			case <-m.ticker.C:
				_ = m.Save(ctx)
			case <-m.stop:
				return
			}
		}
	}()
}

// Cleanup stops the timer (if running) and performs one final save.
func (m *Manager) Cleanup(ctx context.Context) error {
	if m.ticker != nil {
		m.ticker.Stop()
		close(m.stop)
		<-m.done
	}
	return m.Save(ctx)
}

// Load reads a previously written snapshot back, auto-detecting format by
// extension exactly like Write chooses it.
func Load(path string) (core.StateSnapshot, error) {
	return Read(path)
}
