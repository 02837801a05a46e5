package collect

import (
	"sync"

	"github.com/penwyp/go-optima-rum/internal/core/model"
	"github.com/penwyp/go-optima-rum/internal/core/view"
	"github.com/penwyp/go-optima-rum/internal/util"
)

// WebVitalsCollector records web vitals for the active view. Initial-load
// metrics (LCP, FID, FCP, TTFB) are recorded only for initial views;
// continuous metrics (CLS, INP) accumulate for both view types.
//
// Like the resource collector it is view-scoped with callback-time guards:
// an entry queued for a superseded view is dropped, not misattributed.
type WebVitalsCollector struct {
	mu       sync.Mutex
	manager  *view.Manager
	current  *model.View
	attached bool

	// CLS accumulator (additive, never decreasing within a view)
	clsValue   float64
	clsSources []string
	lastShift  float64

	// INP max reducer
	inpValue float64
	inpAttr  model.INPAttribution
	inpSeen  bool
}

// NewWebVitalsCollector creates a vitals collector.
func NewWebVitalsCollector(manager *view.Manager) *WebVitalsCollector {
	return &WebVitalsCollector{manager: manager}
}

// Teardown detaches the collector from its view.
func (c *WebVitalsCollector) Teardown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attached = false
	c.current = nil
}

// StartView resets the accumulators and attaches to the new view.
func (c *WebVitalsCollector) StartView(v *model.View) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = v
	c.attached = true
	c.clsValue = 0
	c.clsSources = nil
	c.lastShift = 0
	c.inpValue = 0
	c.inpAttr = model.INPAttribution{}
	c.inpSeen = false
}

// guardedView returns the attached view if it is still current and, for
// initial-only metrics, an initial view. Entries that predate a route-change
// view's start are rejected: buffered replay is only valid for initial
// views, otherwise the prior view's entries would leak in.
func (c *WebVitalsCollector) guardedView(kind model.VitalKind, entryRelTime float64) *model.View {
	v := c.current
	if !c.attached || v == nil || !c.manager.IsCurrent(v) {
		return nil
	}
	if kind.InitialOnly() && v.Type != model.ViewInitial {
		return nil
	}
	if v.Type == model.ViewRouteChange && entryRelTime < v.StartRelTime {
		return nil
	}
	return v
}

// OnNavigationTiming records TTFB from the navigation entry.
func (c *WebVitalsCollector) OnNavigationTiming(sig *model.Signal) {
	entry := sig.NavigationTiming
	if entry == nil || entry.ResponseStart <= 0 {
		return
	}
	c.mu.Lock()
	v := c.guardedView(model.VitalTTFB, entry.ResponseStart)
	c.mu.Unlock()
	if v == nil {
		return
	}
	c.manager.UpdateWebVital(model.VitalTTFB, entry.ResponseStart, entry.ResponseStart-v.StartRelTime, nil)
}

// OnPaint records FCP.
func (c *WebVitalsCollector) OnPaint(sig *model.Signal) {
	entry := sig.Paint
	if entry == nil || entry.Name != "first-contentful-paint" {
		return
	}
	c.mu.Lock()
	v := c.guardedView(model.VitalFCP, entry.StartTime)
	c.mu.Unlock()
	if v == nil {
		return
	}
	c.manager.UpdateWebVital(model.VitalFCP, entry.StartTime, entry.StartTime-v.StartRelTime, nil)
}

// OnLargestPaint records LCP with element attribution. Later candidates
// replace earlier ones, mirroring how the browser finalizes LCP.
func (c *WebVitalsCollector) OnLargestPaint(sig *model.Signal) {
	entry := sig.LargestPaint
	if entry == nil {
		return
	}
	c.mu.Lock()
	v := c.guardedView(model.VitalLCP, entry.StartTime)
	c.mu.Unlock()
	if v == nil {
		return
	}
	c.manager.UpdateWebVital(model.VitalLCP, entry.StartTime, entry.StartTime-v.StartRelTime, model.LCPAttribution{
		Element: entry.Element,
		Size:    entry.Size,
		URL:     entry.URL,
	})
}

// OnFirstInput records FID as input delay (processingStart - startTime).
func (c *WebVitalsCollector) OnFirstInput(sig *model.Signal) {
	entry := sig.FirstInput
	if entry == nil {
		return
	}
	delay := entry.ProcessingStart - entry.StartTime
	if delay < 0 {
		return
	}
	c.mu.Lock()
	v := c.guardedView(model.VitalFID, entry.StartTime)
	c.mu.Unlock()
	if v == nil {
		return
	}
	c.manager.UpdateWebVital(model.VitalFID, delay, entry.StartTime-v.StartRelTime, nil)
}

// OnLayoutShift accumulates CLS. Only shifts without recent user input and
// starting at or after the view start contribute; each contribution is
// additive so the recorded value never decreases within a view.
func (c *WebVitalsCollector) OnLayoutShift(sig *model.Signal) {
	entry := sig.LayoutShift
	if entry == nil || entry.HadRecentInput || entry.Value <= 0 {
		return
	}

	c.mu.Lock()
	v := c.guardedView(model.VitalCLS, entry.StartTime)
	if v == nil {
		c.mu.Unlock()
		return
	}
	if entry.StartTime < v.StartRelTime {
		c.mu.Unlock()
		return
	}
	c.clsValue += entry.Value
	c.lastShift = entry.StartTime
	for _, s := range entry.Sources {
		c.clsSources = appendCapped(c.clsSources, s, 10)
	}
	value := c.clsValue
	attr := model.CLSAttribution{
		Sources:          append([]string(nil), c.clsSources...),
		LastShiftRelTime: c.lastShift,
	}
	c.mu.Unlock()

	c.manager.UpdateWebVital(model.VitalCLS, value, entry.StartTime-v.StartRelTime, attr)
}

// OnEventTiming feeds the INP max reducer from event-timing entries.
func (c *WebVitalsCollector) OnEventTiming(sig *model.Signal) {
	entry := sig.EventTiming
	if entry == nil {
		return
	}
	c.recordInteractionDuration(entry.Duration, entry.StartTime, entry.EventType, entry.Target)
}

// OnInteraction feeds the INP fallback path: manual listeners measuring the
// longest time-to-next-paint for click/keydown/pointerdown.
func (c *WebVitalsCollector) OnInteraction(sig *model.Signal) {
	in := sig.Interaction
	if in == nil || in.DurationMs <= 0 {
		return
	}
	switch in.Kind {
	case "click", "keydown", "pointerdown":
	default:
		return
	}
	c.recordInteractionDuration(in.DurationMs, sig.RelTime, in.Kind, in.Element.Tag)
}

// recordInteractionDuration keeps only the maximum interaction duration
// observed since view start.
func (c *WebVitalsCollector) recordInteractionDuration(duration, startRelTime float64, eventType, target string) {
	if duration <= 0 {
		return
	}

	c.mu.Lock()
	v := c.guardedView(model.VitalINP, startRelTime)
	if v == nil {
		c.mu.Unlock()
		return
	}
	if startRelTime < v.StartRelTime {
		c.mu.Unlock()
		return
	}
	if c.inpSeen && duration <= c.inpValue {
		c.mu.Unlock()
		return
	}
	c.inpSeen = true
	c.inpValue = duration
	c.inpAttr = model.INPAttribution{EventType: eventType, Target: target}
	attr := c.inpAttr
	c.mu.Unlock()

	c.manager.UpdateWebVital(model.VitalINP, duration, startRelTime-v.StartRelTime, attr)
	util.LogDebugf("INP candidate %.0fms from %s", duration, eventType)
}

// appendCapped appends without growing past limit.
func appendCapped(list []string, item string, limit int) []string {
	if len(list) >= limit {
		return list
	}
	return append(list, item)
}
