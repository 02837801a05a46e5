package collect

import (
	"sync"

	"github.com/penwyp/go-optima-rum/internal/core/model"
	"github.com/penwyp/go-optima-rum/internal/core/view"
	"github.com/penwyp/go-optima-rum/internal/exclusion"
	"github.com/penwyp/go-optima-rum/internal/util"
)

// ResourceCollector attributes resource timing entries to the currently
// active view. It is strictly view-scoped: Teardown detaches it before a new
// view is installed, and every entry is re-checked against the owning view
// at callback time, because an already-queued entry cannot be cancelled.
type ResourceCollector struct {
	mu        sync.Mutex
	manager   *view.Manager
	filter    *exclusion.Filter
	current   *model.View
	attached  bool
	processed map[string]struct{} // per-view URL dedup
}

// NewResourceCollector creates a resource collector.
func NewResourceCollector(manager *view.Manager, filter *exclusion.Filter) *ResourceCollector {
	return &ResourceCollector{
		manager:   manager,
		filter:    filter,
		processed: make(map[string]struct{}),
	}
}

// Teardown detaches the collector from its view.
func (c *ResourceCollector) Teardown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attached = false
	c.current = nil
}

// StartView resets per-view state and attaches to the new view.
func (c *ResourceCollector) StartView(v *model.View) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.processed = make(map[string]struct{})
	c.current = v
	c.attached = true
}

// OnResourceEntry processes one resource timing entry.
func (c *ResourceCollector) OnResourceEntry(sig *model.Signal) {
	entry := sig.Resource
	if entry == nil {
		return
	}

	c.mu.Lock()
	v := c.current
	if !c.attached || v == nil || !c.manager.IsCurrent(v) {
		c.mu.Unlock()
		return
	}

	if c.filter.IsExcluded(entry.URL) {
		c.mu.Unlock()
		return
	}

	filterTime := v.ResourceFilterRelTime()
	if entry.StartTime < filterTime {
		c.mu.Unlock()
		return
	}

	if _, seen := c.processed[entry.URL]; seen {
		c.mu.Unlock()
		return
	}
	c.processed[entry.URL] = struct{}{}
	c.mu.Unlock()

	res := buildResource(entry, v.Type, filterTime)
	if !c.manager.AddResource(res) {
		return
	}

	if IsAjaxResource(entry.URL, entry.InitiatorType) {
		c.manager.AddAjax(model.AjaxRequest{
			URL:          entry.URL,
			StartRelTime: entry.StartTime,
			DurationMs:   entry.Duration,
		})
	}

	util.LogDebugf("Collected resource %s type=%s cache=%s", entry.URL, res.Type, res.CacheStatus)
}

// buildResource converts a timing entry into the attributed record. The
// view-relative start is absolute for initial views and offset from the
// filter time for route changes.
func buildResource(entry *model.ResourceEntrySignal, viewType model.ViewType, filterTime float64) model.Resource {
	viewStart := entry.StartTime
	if viewType == model.ViewRouteChange {
		viewStart = entry.StartTime - filterTime
	}

	return model.Resource{
		URL:             entry.URL,
		Type:            ClassifyResourceType(entry.URL, entry.InitiatorType),
		CacheStatus:     ClassifyCacheStatus(entry.TransferSize, entry.EncodedBodySize),
		TransferSize:    entry.TransferSize,
		EncodedBodySize: entry.EncodedBodySize,
		DecodedBodySize: entry.DecodedBodySize,
		StartRelTime:    entry.StartTime,
		DurationMs:      entry.Duration,
		DNSMs:           phase(entry.DomainLookupStart, entry.DomainLookupEnd),
		TLSMs:           phase(entry.SecureConnectionStart, entry.ConnectEnd),
		ConnectMs:       phase(entry.ConnectStart, entry.ConnectEnd),
		RequestMs:       phase(entry.RequestStart, entry.ResponseStart),
		ResponseMs:      phase(entry.ResponseStart, entry.ResponseEnd),
		ViewStartMs:     viewStart,
	}
}

// phase computes a non-negative phase duration; zero start means the phase
// did not occur (cross-origin entries without timing access report zeros).
func phase(start, end float64) float64 {
	if start <= 0 || end <= 0 || end < start {
		return 0
	}
	return end - start
}
