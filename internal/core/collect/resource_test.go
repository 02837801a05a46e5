package collect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/penwyp/go-optima-rum/internal/core/model"
	"github.com/penwyp/go-optima-rum/internal/core/view"
	"github.com/penwyp/go-optima-rum/internal/exclusion"
)

func resourceSignal(url string, startTime float64) *model.Signal {
	return &model.Signal{
		Type:    model.SignalResource,
		RelTime: startTime,
		Resource: &model.ResourceEntrySignal{
			URL:             url,
			InitiatorType:   "script",
			StartTime:       startTime,
			Duration:        120,
			TransferSize:    5000,
			EncodedBodySize: 4800,
		},
	}
}

func newResourceHarness(t *testing.T) (*view.Manager, *ResourceCollector) {
	t.Helper()
	m := view.NewManager(nil)
	c := NewResourceCollector(m, exclusion.NewFilter(nil))
	m.Register(c)
	return m, c
}

func TestInitialViewCollectsFromTimeOrigin(t *testing.T) {
	m, c := newResourceHarness(t)
	m.StartNewView(model.ViewInitial, "https://app.dev/", "initial", 0, nil, nil)

	c.OnResourceEntry(resourceSignal("https://cdn.app.dev/bundle.js", 35))

	v := m.ActiveView()
	require.Len(t, v.Resources, 1)
	assert.Equal(t, 35.0, v.Resources[0].ViewStartMs, "initial views keep absolute start times")
}

func TestRouteChangeFiltersEarlierResources(t *testing.T) {
	m, c := newResourceHarness(t)
	baseline := 2000.0
	m.StartNewView(model.ViewRouteChange, "https://app.dev/settings", "pushState", 2050, &baseline, nil)

	c.OnResourceEntry(resourceSignal("https://cdn.app.dev/old-chunk.js", 1800))
	c.OnResourceEntry(resourceSignal("https://cdn.app.dev/new-chunk.js", 2100))

	v := m.ActiveView()
	require.Len(t, v.Resources, 1)
	assert.Equal(t, "https://cdn.app.dev/new-chunk.js", v.Resources[0].URL)
	assert.Equal(t, 100.0, v.Resources[0].ViewStartMs, "route-change starts are offset from the baseline")
}

func TestResourceDedupPerView(t *testing.T) {
	m, c := newResourceHarness(t)
	m.StartNewView(model.ViewInitial, "https://app.dev/", "initial", 0, nil, nil)

	c.OnResourceEntry(resourceSignal("https://cdn.app.dev/bundle.js", 35))
	c.OnResourceEntry(resourceSignal("https://cdn.app.dev/bundle.js", 90))
	assert.Len(t, m.ActiveView().Resources, 1)

	// A new view resets the dedup set.
	m.StartNewView(model.ViewRouteChange, "https://app.dev/a", "pushState", 500, nil, nil)
	c.OnResourceEntry(resourceSignal("https://cdn.app.dev/bundle.js", 600))
	assert.Len(t, m.ActiveView().Resources, 1)
}

func TestExcludedURLsDropped(t *testing.T) {
	m, c := newResourceHarness(t)
	m.StartNewView(model.ViewInitial, "https://app.dev/", "initial", 0, nil, nil)

	c.OnResourceEntry(resourceSignal("https://collect.optima.dev/api/optima/collect", 40))
	c.OnResourceEntry(resourceSignal("https://www.google-analytics.com/analytics.js", 45))

	assert.Empty(t, m.ActiveView().Resources)
}

func TestStaleCallbackRejected(t *testing.T) {
	m, c := newResourceHarness(t)
	v1 := m.StartNewView(model.ViewInitial, "https://app.dev/", "initial", 0, nil, nil)
	m.StartNewView(model.ViewRouteChange, "https://app.dev/a", "pushState", 500, nil, nil)

	// v1 is superseded; nothing may land in it.
	c.OnResourceEntry(resourceSignal("https://cdn.app.dev/late.js", 600))
	assert.Empty(t, v1.Resources)
	assert.Len(t, m.ActiveView().Resources, 1)
}

func TestAjaxAlsoRecorded(t *testing.T) {
	m, c := newResourceHarness(t)
	m.StartNewView(model.ViewInitial, "https://app.dev/", "initial", 0, nil, nil)

	sig := resourceSignal("https://app.dev/api/users", 200)
	sig.Resource.InitiatorType = "fetch"
	c.OnResourceEntry(sig)

	v := m.ActiveView()
	require.Len(t, v.Resources, 1)
	require.Len(t, v.AjaxRequests, 1)
	assert.Equal(t, "https://app.dev/api/users", v.AjaxRequests[0].URL)
	assert.Equal(t, 120.0, v.AjaxRequests[0].DurationMs)
}

func TestPhaseDurations(t *testing.T) {
	entry := &model.ResourceEntrySignal{
		URL:               "https://cdn.app.dev/app.css",
		InitiatorType:     "link",
		StartTime:         100,
		Duration:          80,
		DomainLookupStart: 100,
		DomainLookupEnd:   110,
		ConnectStart:      110,
		ConnectEnd:        130,
		RequestStart:      130,
		ResponseStart:     160,
		ResponseEnd:       180,
	}

	r := buildResource(entry, model.ViewInitial, 0)
	assert.Equal(t, 10.0, r.DNSMs)
	assert.Equal(t, 20.0, r.ConnectMs)
	assert.Equal(t, 30.0, r.RequestMs)
	assert.Equal(t, 20.0, r.ResponseMs)
	assert.Equal(t, 0.0, r.TLSMs, "zero secureConnectionStart means no TLS phase")
}
