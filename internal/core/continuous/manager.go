// Package continuous pushes incremental updates for long-lived views: a
// periodic check plus change-triggered checks decide whether the accumulated
// per-view metrics moved enough to be worth a send.
package continuous

import (
	"sync"
	"time"

	"github.com/bep/debounce"

	"github.com/penwyp/go-optima-rum/internal/core/constants"
	"github.com/penwyp/go-optima-rum/internal/core/model"
	"github.com/penwyp/go-optima-rum/internal/core/view"
	"github.com/penwyp/go-optima-rum/internal/util"
)

// Config carries the significance thresholds and the check interval.
type Config struct {
	Interval       time.Duration
	CLSDelta       float64
	INPDeltaMs     float64
	ResourceGrowth int
	AjaxGrowth     int
	ChangeCoalesce time.Duration // debounce for change-triggered checks
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		Interval:       constants.ContinuousMetricsInterval,
		CLSDelta:       constants.CLSSignificantDelta,
		INPDeltaMs:     constants.INPSignificantDeltaMs,
		ResourceGrowth: constants.ResourceSignificantGrowth,
		AjaxGrowth:     constants.AjaxSignificantGrowth,
		ChangeCoalesce: 50 * time.Millisecond,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.CLSDelta <= 0 {
		c.CLSDelta = d.CLSDelta
	}
	if c.INPDeltaMs <= 0 {
		c.INPDeltaMs = d.INPDeltaMs
	}
	if c.ResourceGrowth <= 0 {
		c.ResourceGrowth = d.ResourceGrowth
	}
	if c.AjaxGrowth <= 0 {
		c.AjaxGrowth = d.AjaxGrowth
	}
	if c.ChangeCoalesce <= 0 {
		c.ChangeCoalesce = d.ChangeCoalesce
	}
}

// Manager runs the significance checks. The periodic timer runs for the
// lifetime of the session: a view transition resets the "last sent" baseline
// but never restarts the timer.
type Manager struct {
	cfg   Config
	views *view.Manager
	emit  func(viewID string) // forwards an incremental update

	mu       sync.Mutex
	last     view.Counters
	hasLast  bool
	running  bool
	done     chan struct{}
	coalesce func(func())
}

// NewManager creates a continuous-metrics manager. emit is called with the
// view ID whenever accumulated metrics changed significantly.
func NewManager(cfg Config, views *view.Manager, emit func(viewID string)) *Manager {
	cfg.applyDefaults()
	return &Manager{
		cfg:      cfg,
		views:    views,
		emit:     emit,
		coalesce: debounce.New(cfg.ChangeCoalesce),
	}
}

// Run starts the periodic checks. Idempotent.
func (m *Manager) Run() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.done = make(chan struct{})
	done := m.done
	m.mu.Unlock()

	go func() {
		ticker := time.NewTicker(m.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				m.CheckNow()
			}
		}
	}()
}

// Stop halts the periodic checks.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		close(m.done)
		m.running = false
	}
}

// Teardown satisfies the view collaborator contract. The timer keeps
// running across view transitions; there is nothing to detach.
func (m *Manager) Teardown() {}

// StartView resets the last-sent baseline for the new view.
func (m *Manager) StartView(v *model.View) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = view.Counters{ViewID: v.ID}
	m.hasLast = true
}

// OnChange schedules a coalesced check after a layout-shift or interaction
// signal mutated CLS/INP.
func (m *Manager) OnChange() {
	m.coalesce(m.CheckNow)
}

// CheckNow runs a significance check against the active view and emits an
// incremental update when warranted.
func (m *Manager) CheckNow() {
	current, ok := m.views.ActiveCounters()
	if !ok || current.Completed {
		return
	}

	m.mu.Lock()
	baseline := m.last
	if !m.hasLast || baseline.ViewID != current.ViewID {
		baseline = view.Counters{ViewID: current.ViewID}
	}
	significant := m.significantLocked(baseline, current)
	if significant {
		m.last = current
		m.hasLast = true
	}
	m.mu.Unlock()

	if significant {
		util.LogDebugf("Continuous metrics changed significantly for view %s", current.ViewID)
		m.emit(current.ViewID)
	}
}

// significantLocked applies the thresholds: CLS moved ≥ CLSDelta, INP moved
// ≥ INPDeltaMs, a previously-null vital gained a value, resource/ajax counts
// grew past their growth thresholds, or any new error appeared.
func (m *Manager) significantLocked(last, current view.Counters) bool {
	if changedBy(last.CLS, current.CLS, m.cfg.CLSDelta) {
		return true
	}
	if changedBy(last.INP, current.INP, m.cfg.INPDeltaMs) {
		return true
	}
	for kind := range current.Vitals {
		if !last.Vitals[kind] {
			return true
		}
	}
	if current.Resources-last.Resources >= m.cfg.ResourceGrowth {
		return true
	}
	if current.Ajax-last.Ajax >= m.cfg.AjaxGrowth {
		return true
	}
	if current.Errors > last.Errors {
		return true
	}
	return false
}

// changedBy reports whether a vital moved by at least delta; gaining a first
// value always counts.
func changedBy(last, current *float64, delta float64) bool {
	if current == nil {
		return false
	}
	if last == nil {
		return true
	}
	diff := *current - *last
	if diff < 0 {
		diff = -diff
	}
	return diff >= delta
}
