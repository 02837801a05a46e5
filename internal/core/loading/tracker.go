// Package loading determines when a view has finished loading: a
// quiet-period detector fed by resource timing, intercepted XHR/fetch
// activity, and significant DOM mutations.
package loading

import (
	"sync"
	"time"

	"github.com/bep/debounce"

	"github.com/penwyp/go-optima-rum/internal/core/constants"
	"github.com/penwyp/go-optima-rum/internal/core/model"
	"github.com/penwyp/go-optima-rum/internal/core/view"
	"github.com/penwyp/go-optima-rum/internal/util"
)

// Completion reasons.
const (
	ReasonActivityQuiet   = "activity_quiet"
	ReasonAbsoluteTimeout = "absolute_timeout"
)

// Config carries tracker timing; zero values take the defaults. Tests shrink
// these to keep wall time low.
type Config struct {
	QuietPeriod    time.Duration
	MaxDuration    time.Duration
	CheckInterval  time.Duration
	DetailCapacity int
}

func (c *Config) applyDefaults() {
	if c.QuietPeriod <= 0 {
		c.QuietPeriod = constants.LoadingQuietPeriod
	}
	if c.MaxDuration <= 0 {
		c.MaxDuration = constants.LoadingMaxDuration
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = constants.LoadingCheckInterval
	}
	if c.DetailCapacity <= 0 {
		c.DetailCapacity = constants.ActivityDetailCapacity
	}
}

// ActivityDetail is one entry in the bounded activity ring.
type ActivityDetail struct {
	Source  string    `json:"source"`
	Detail  string    `json:"detail,omitempty"`
	RelTime float64   `json:"rel_time"`
	SeenAt  time.Time `json:"seen_at"`
}

// Result is the completion snapshot.
type Result struct {
	Reason        string
	LoadingTimeMs float64
	Sources       []string
	Details       []ActivityDetail
}

// Tracker is a per-view activity-quiescence detector. It transitions from
// tracking to complete exactly once, either when all activity sources go
// quiet with nothing in flight, or at the absolute ceiling.
type Tracker struct {
	cfg      Config
	manager  *view.Manager
	observer NetworkActivityObserver

	mu        sync.Mutex
	v         *model.View
	tracking  bool
	completed bool
	reason    string

	baselineRel float64

	lastActivityRel  float64
	lastActivityWall time.Time
	startedWall      time.Time

	pending map[string]struct{} // in-flight request IDs
	sources map[string]struct{} // activity source kinds seen
	details []ActivityDetail

	quiet    func(func()) // debounced quiet-period trigger
	ceiling  *time.Timer
	ticker   *time.Ticker
	tickDone chan struct{}
	release  func() // network observer release
	onResult func(v *model.View, r Result)
}

// NewTracker creates a loading-time tracker. onResult (optional) fires once
// per completed view after the loading_time vital is pushed.
func NewTracker(cfg Config, manager *view.Manager, observer NetworkActivityObserver, onResult func(v *model.View, r Result)) *Tracker {
	cfg.applyDefaults()
	return &Tracker{
		cfg:      cfg,
		manager:  manager,
		observer: observer,
		onResult: onResult,
	}
}

// StartView begins tracking for the new view. The baseline is the route
// trigger for route changes (falling back to the view start); for initial
// views it starts at the view start and is refined to the navigation
// entry's fetchStart when that entry arrives. navigationStart is always
// zero and useless as a loading origin.
func (t *Tracker) StartView(v *model.View) {
	t.stop(false)

	t.mu.Lock()
	t.v = v
	t.tracking = true
	t.completed = false
	t.reason = ""
	t.baselineRel = v.StartRelTime
	if v.Type == model.ViewRouteChange && v.RouteTriggerRelTime != nil {
		t.baselineRel = *v.RouteTriggerRelTime
	}
	t.lastActivityRel = t.baselineRel
	t.lastActivityWall = time.Now()
	t.startedWall = time.Now()
	t.pending = make(map[string]struct{})
	t.sources = make(map[string]struct{})
	t.details = make([]ActivityDetail, 0, t.cfg.DetailCapacity)
	t.quiet = debounce.New(t.cfg.QuietPeriod)

	t.ceiling = time.AfterFunc(t.cfg.MaxDuration, func() {
		t.complete(ReasonAbsoluteTimeout)
	})
	t.ticker = time.NewTicker(t.cfg.CheckInterval)
	t.tickDone = make(chan struct{})
	go t.periodicCheck(t.ticker, t.tickDone)
	t.mu.Unlock()

	if t.observer != nil {
		release, err := t.observer.Acquire(t.onNetworkSignal)
		if err != nil {
			util.LogWarnf("Loading tracker could not acquire network observer: %v", err)
		} else {
			t.mu.Lock()
			t.release = release
			t.mu.Unlock()
		}
	}
}

// Teardown stops tracking without recording a result (the view was
// superseded before loading settled). The network observer acquisition is
// always released so nothing leaks across views.
func (t *Tracker) Teardown() {
	t.stop(false)
}

// OnNavigationTiming refines the baseline of an initial view to fetchStart.
func (t *Tracker) OnNavigationTiming(sig *model.Signal) {
	entry := sig.NavigationTiming
	if entry == nil || entry.FetchStart <= 0 {
		return
	}
	t.mu.Lock()
	if t.tracking && !t.completed && t.v != nil && t.v.Type == model.ViewInitial {
		t.baselineRel = entry.FetchStart
		if t.lastActivityRel < entry.FetchStart {
			t.lastActivityRel = entry.FetchStart
		}
	}
	t.mu.Unlock()
}

// OnResourceEntry records resource timing activity at or after the baseline.
func (t *Tracker) OnResourceEntry(sig *model.Signal) {
	entry := sig.Resource
	if entry == nil {
		return
	}
	t.mu.Lock()
	if entry.StartTime < t.baselineRel {
		t.mu.Unlock()
		return
	}
	end := entry.ResponseEnd
	if end <= 0 {
		end = entry.StartTime + entry.Duration
	}
	t.recordActivityLocked("resource", entry.URL, end)
	t.mu.Unlock()
}

// onNetworkSignal receives intercepted XHR/fetch activity while this tracker
// holds the observer.
func (t *Tracker) onNetworkSignal(sig *model.Signal) {
	net := sig.Network
	if net == nil {
		return
	}

	t.mu.Lock()
	switch net.Phase {
	case "start":
		t.pending[net.RequestID] = struct{}{}
	case "end":
		delete(t.pending, net.RequestID)
	}
	t.recordActivityLocked(net.Kind, net.URL, sig.RelTime)
	t.mu.Unlock()
}

// OnMutation records significant DOM mutations: node insertion/removal and
// attribute changes other than style/class churn.
func (t *Tracker) OnMutation(sig *model.Signal) {
	mut := sig.Mutation
	if mut == nil || !isSignificantMutation(mut) {
		return
	}
	t.mu.Lock()
	t.recordActivityLocked("mutation", mut.Target, sig.RelTime)
	t.mu.Unlock()
}

func isSignificantMutation(m *model.MutationSignal) bool {
	switch m.Kind {
	case "childList":
		return m.AddedNodes > 0 || m.RemovedNodes > 0
	case "attributes":
		return m.AttributeName != "style" && m.AttributeName != "class"
	case "characterData":
		return true
	default:
		return false
	}
}

// recordActivityLocked updates the activity state and restarts the quiet
// timer. Caller holds t.mu.
func (t *Tracker) recordActivityLocked(source, detail string, relTime float64) {
	if !t.tracking || t.completed {
		return
	}

	if relTime > t.lastActivityRel {
		t.lastActivityRel = relTime
	}
	t.lastActivityWall = time.Now()
	t.sources[source] = struct{}{}

	if len(t.details) >= t.cfg.DetailCapacity {
		copy(t.details, t.details[1:])
		t.details = t.details[:len(t.details)-1]
	}
	t.details = append(t.details, ActivityDetail{
		Source:  source,
		Detail:  detail,
		RelTime: relTime,
		SeenAt:  t.lastActivityWall,
	})

	owner := t.v
	t.quiet(func() { t.quietCheck(owner) })
}

// quietCheck fires after a full quiet period with no recorded activity. The
// arming view is captured in the closure: a debounce timer left over from a
// superseded view must not complete its successor, and activity recorded
// since arming resets the window.
func (t *Tracker) quietCheck(owner *model.View) {
	t.mu.Lock()
	active := t.tracking && !t.completed && t.v == owner
	pending := len(t.pending)
	quietFor := time.Since(t.lastActivityWall)
	t.mu.Unlock()

	if active && pending == 0 && quietFor >= t.cfg.QuietPeriod {
		t.complete(ReasonActivityQuiet)
	}
}

// periodicCheck covers the window where the quiet timer fired while requests
// were still in flight and the last of them drained without producing a new
// activity record.
func (t *Tracker) periodicCheck(ticker *time.Ticker, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			t.mu.Lock()
			active := t.tracking && !t.completed
			quietFor := time.Since(t.lastActivityWall)
			pending := len(t.pending)
			t.mu.Unlock()

			if active && pending == 0 && quietFor >= t.cfg.QuietPeriod {
				t.complete(ReasonActivityQuiet)
			}
		}
	}
}

// complete transitions to the terminal state, pushes the loading_time vital
// and snapshots the activity record.
func (t *Tracker) complete(reason string) {
	t.mu.Lock()
	if !t.tracking || t.completed {
		t.mu.Unlock()
		return
	}
	v := t.v
	if !t.manager.IsCurrent(v) {
		// The owning view is gone; a queued timer callback must not write
		// into whatever view replaced it.
		t.mu.Unlock()
		t.stop(false)
		return
	}

	t.completed = true
	t.reason = reason

	loadingTime := t.lastActivityRel - t.baselineRel
	if loadingTime < 0 {
		loadingTime = 0
	}

	result := Result{
		Reason:        reason,
		LoadingTimeMs: loadingTime,
		Sources:       setKeys(t.sources),
		Details:       append([]ActivityDetail(nil), t.details...),
	}
	viewRel := t.lastActivityRel - v.StartRelTime
	t.pending = make(map[string]struct{})
	t.mu.Unlock()

	t.stop(true)

	t.manager.UpdateWebVital(model.VitalLoadingTime, loadingTime, viewRel, nil)
	util.LogDebugf("Loading complete for view %s: %.0fms (%s)", v.ID, loadingTime, reason)

	if t.onResult != nil {
		t.onResult(v, result)
	}
}

// stop cancels timers and releases the network observer. keepState leaves
// the completion flags for inspection; otherwise tracking simply ends.
func (t *Tracker) stop(keepState bool) {
	t.mu.Lock()
	if t.ceiling != nil {
		t.ceiling.Stop()
		t.ceiling = nil
	}
	if t.ticker != nil {
		t.ticker.Stop()
		close(t.tickDone)
		t.ticker = nil
		t.tickDone = nil
	}
	release := t.release
	t.release = nil
	if !keepState {
		t.tracking = false
	}
	t.mu.Unlock()

	if release != nil {
		release()
	}
}

// Completed returns the terminal state and reason.
func (t *Tracker) Completed() (bool, string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completed, t.reason
}

// PendingCount returns the number of in-flight requests (status reporting).
func (t *Tracker) PendingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

func setKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	return keys
}
