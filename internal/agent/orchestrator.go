package agent

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/penwyp/go-optima-rum/internal/capture"
	"github.com/penwyp/go-optima-rum/internal/core/collect"
	"github.com/penwyp/go-optima-rum/internal/core/constants"
	"github.com/penwyp/go-optima-rum/internal/core/continuous"
	"github.com/penwyp/go-optima-rum/internal/core/loading"
	"github.com/penwyp/go-optima-rum/internal/core/model"
	"github.com/penwyp/go-optima-rum/internal/core/route"
	"github.com/penwyp/go-optima-rum/internal/core/view"
	"github.com/penwyp/go-optima-rum/internal/exclusion"
	"github.com/penwyp/go-optima-rum/internal/sender"
	"github.com/penwyp/go-optima-rum/internal/util"
)

// Orchestrator wires the view manager, collectors, loading tracker,
// continuous metrics and sender together, and routes every incoming signal
// to the components that care about it.
//
// ProcessSignal must be called from a single goroutine. Components lock
// their own state, so view completion and timers may still race in, but
// the signal stream itself is ordered.
type Orchestrator struct {
	mu          sync.Mutex
	cfg         *Config
	initialized bool
	disabled    bool
	closed      bool
	pending     []Command

	sessionID   string
	sessionType string

	views      *view.Manager
	detector   *route.Detector
	resources  *collect.ResourceCollector
	vitals     *collect.WebVitalsCollector
	tracker    *loading.Tracker
	metrics    *continuous.Manager
	errors     *capture.Capture
	intercepts *loading.InterceptRegistry
	out        *sender.Sender

	staleDone chan struct{}
	wg        sync.WaitGroup
}

// New creates an orchestrator. Nothing runs until the init command is
// executed; every other command queues up behind it.
func New(cfg *Config) *Orchestrator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Orchestrator{
		cfg:         cfg,
		sessionType: "user",
	}
}

// SessionID is empty until init ran.
func (o *Orchestrator) SessionID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sessionID
}

// Disabled reports whether the engine gave up silently (missing key,
// explicit disable, or sampled out).
func (o *Orchestrator) Disabled() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.disabled
}

func (o *Orchestrator) initLocked() error {
	if o.initialized {
		return nil
	}
	o.initialized = true

	level := "warn"
	if o.cfg.Debug {
		level = "debug"
	}
	util.InitLogger(level, "", o.cfg.Debug)

	if err := o.cfg.Normalize(); err != nil {
		// A page without a key must never break; disable and stay quiet.
		util.LogWarnf("engine disabled: %v", err)
		o.disabled = true
		return nil
	}
	if o.cfg.Disabled {
		o.disabled = true
		return nil
	}
	if !SampledIn(o.cfg.SampleRate) {
		util.LogDebugf("session sampled out at rate %d", o.cfg.SampleRate)
		o.disabled = true
		return nil
	}

	o.sessionID = uuid.NewString()
	o.intercepts = loading.NewInterceptRegistry()
	transport := sender.NewTransport(o.cfg.Endpoint, o.cfg.APIKey)
	if o.cfg.DryRunWriter != nil {
		transport = sender.NewDryRunTransport(o.cfg.DryRunWriter)
	}
	o.out = sender.NewSender(sender.Config{
		BatchSize:    o.cfg.BatchSize,
		BatchTimeout: o.cfg.BatchTimeout,
	}, transport)

	o.views = view.NewManager(o.onViewComplete)
	filter := exclusion.NewFilter(o.cfg.ExclusionList)

	o.resources = collect.NewResourceCollector(o.views, filter)
	o.vitals = collect.NewWebVitalsCollector(o.views)
	o.tracker = loading.NewTracker(loading.Config{}, o.views, o.intercepts, o.onLoadingResult)
	o.errors = capture.NewCapture(o.views)

	metricsCfg := continuous.DefaultConfig()
	metricsCfg.Interval = o.cfg.ContinuousMetricsInterval
	o.metrics = continuous.NewManager(metricsCfg, o.views, o.onContinuousEmit)

	// Registration order is start/teardown order: the loading tracker must
	// release its network intercept before the next view acquires it.
	o.views.Register(o.resources)
	o.views.Register(o.vitals)
	o.views.Register(o.tracker)
	o.views.Register(o.metrics)
	o.views.Register(o.errors)

	o.detector = route.NewDetector(route.DefaultConfig(), o.views, o.cfg.InitialURL)

	if o.cfg.EnableContinuousMetrics {
		o.metrics.Run()
	}
	o.staleDone = make(chan struct{})
	o.wg.Add(1)
	go o.watchStaleViews()

	o.views.StartNewView(model.ViewInitial, o.cfg.InitialURL, "initial", 0, nil, nil)
	util.LogInfof("session %s started on %s", o.sessionID, o.cfg.InitialURL)
	return nil
}

// onViewComplete ships the finished view. The completion reason doubles as
// the delivery trigger: route changes, page-hidden and unload go out
// immediately, everything else batches.
func (o *Orchestrator) onViewComplete(v *model.View, reason string) {
	p := model.BuildPayload(v, o.sessionID, o.sessionType, o.cfg.Meta, false)
	o.out.SendView(p, reason)
}

func (o *Orchestrator) onLoadingResult(v *model.View, r loading.Result) {
	util.LogDebugf("loading settled for view %s: %.0fms (%s)", v.ID, r.LoadingTimeMs, r.Reason)
	o.metricsChanged()
}

// metricsChanged forwards a change-triggered significance check. Continuous
// updates (periodic and change-triggered alike) are off when the feature is
// disabled.
func (o *Orchestrator) metricsChanged() {
	if o.cfg.EnableContinuousMetrics {
		o.metrics.OnChange()
	}
}

func (o *Orchestrator) onContinuousEmit(viewID string) {
	p := o.views.BuildActivePayload(o.sessionID, o.sessionType, o.cfg.Meta, true)
	if p == nil || p.ViewID != viewID {
		return
	}
	o.out.SendContinuousUpdate(p)
}

// Run consumes signals until the channel closes or ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context, signals <-chan *model.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-signals:
			if !ok {
				return
			}
			o.ProcessSignal(sig)
		}
	}
}

// ProcessSignal routes one signal. Instrumentation faults are contained
// here: a panic in any handler is logged and the stream continues.
func (o *Orchestrator) ProcessSignal(sig *model.Signal) {
	o.mu.Lock()
	ready := o.initialized && !o.disabled && !o.closed
	o.mu.Unlock()
	if !ready || sig == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			util.LogErrorf("signal handler panic on %s: %v", sig.Type, r)
		}
	}()

	switch sig.Type {
	case model.SignalNavigation:
		if o.cfg.EnableRouteChangeTracking {
			o.detector.OnNavigation(sig)
		}
	case model.SignalNavigationTiming:
		o.vitals.OnNavigationTiming(sig)
		o.tracker.OnNavigationTiming(sig)
	case model.SignalInteraction:
		o.detector.OnInteraction(sig)
		o.vitals.OnInteraction(sig)
	case model.SignalResource:
		o.resources.OnResourceEntry(sig)
		o.tracker.OnResourceEntry(sig)
		o.metricsChanged()
	case model.SignalPaint:
		o.vitals.OnPaint(sig)
	case model.SignalLargestPaint:
		o.vitals.OnLargestPaint(sig)
	case model.SignalFirstInput:
		o.vitals.OnFirstInput(sig)
	case model.SignalLayoutShift:
		o.vitals.OnLayoutShift(sig)
		o.metricsChanged()
	case model.SignalEventTiming:
		o.vitals.OnEventTiming(sig)
		o.metricsChanged()
	case model.SignalNetwork:
		o.intercepts.Dispatch(sig)
	case model.SignalMutation:
		o.tracker.OnMutation(sig)
	case model.SignalLifecycle:
		o.onLifecycle(sig)
	case model.SignalError:
		if o.errors.OnError(sig) {
			o.metricsChanged()
		}
	case model.SignalCustomEvent:
		o.onCustomEvent(sig)
	default:
		util.LogDebugf("unknown signal type %q dropped", sig.Type)
	}
}

func (o *Orchestrator) onLifecycle(sig *model.Signal) {
	if sig.Lifecycle == nil {
		return
	}
	switch sig.Lifecycle.State {
	case "hidden":
		// Snapshot the live view so nothing is lost if the page never
		// comes back.
		if p := o.views.BuildActivePayload(o.sessionID, o.sessionType, o.cfg.Meta, true); p != nil {
			o.out.SendView(p, "page_hidden")
		}
		o.out.ForceFlush()
	case "unload":
		o.views.CompleteView("unload")
		o.out.ForceFlush()
	case "visible":
		// nothing to do; the next signal touches the view
	}
}

func (o *Orchestrator) onCustomEvent(sig *model.Signal) {
	if sig.CustomEvent == nil || sig.CustomEvent.Name == "" {
		return
	}
	o.recordEvent(sig.CustomEvent.Name, sig.CustomEvent.Properties)
}

func (o *Orchestrator) recordEvent(name string, props map[string]interface{}) {
	rec := model.EventRecord{
		Name:       name,
		Properties: props,
		Timestamp:  time.Now(),
	}
	o.views.AddEvent(rec)

	ev := &model.EventPayload{
		SessionID:  o.sessionID,
		Name:       name,
		Properties: props,
		Timestamp:  rec.Timestamp.UnixMilli(),
	}
	if v := o.views.ActiveView(); v != nil {
		ev.ViewID = v.ID
	}
	o.out.SendEvent(ev)
}

// watchStaleViews force-completes a view that stopped receiving activity.
func (o *Orchestrator) watchStaleViews() {
	defer o.wg.Done()
	ticker := time.NewTicker(constants.StaleViewThreshold / 2)
	defer ticker.Stop()
	for {
		select {
		case <-o.staleDone:
			return
		case <-ticker.C:
			if o.views.IsStale(constants.StaleViewThreshold) {
				o.views.CompleteView("stale_timeout")
			}
		}
	}
}

// Shutdown completes the active view, flushes everything and stops the
// background work. Safe to call more than once.
func (o *Orchestrator) Shutdown() {
	o.mu.Lock()
	if o.closed || !o.initialized || o.disabled {
		o.closed = true
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.mu.Unlock()

	o.views.CompleteView("unload")
	o.metrics.Stop()
	close(o.staleDone)
	o.wg.Wait()
	o.out.ForceFlush()
	o.out.Close()
	util.LogInfof("session %s shut down", o.sessionID)
}
