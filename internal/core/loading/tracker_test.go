package loading

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/penwyp/go-optima-rum/internal/core/model"
	"github.com/penwyp/go-optima-rum/internal/core/view"
)

func fastConfig() Config {
	return Config{
		QuietPeriod:   30 * time.Millisecond,
		MaxDuration:   400 * time.Millisecond,
		CheckInterval: 10 * time.Millisecond,
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func resourceActivity(url string, start, end float64) *model.Signal {
	return &model.Signal{
		Type:    model.SignalResource,
		RelTime: start,
		Resource: &model.ResourceEntrySignal{
			URL:         url,
			StartTime:   start,
			ResponseEnd: end,
		},
	}
}

func networkActivity(phase, id string, relTime float64) *model.Signal {
	return &model.Signal{
		Type:    model.SignalNetwork,
		RelTime: relTime,
		Network: &model.NetworkSignal{Phase: phase, Kind: "fetch", RequestID: id, URL: "https://app.dev/api/x"},
	}
}

func TestQuietCompletion(t *testing.T) {
	m := view.NewManager(nil)
	registry := NewInterceptRegistry()

	var results []Result
	tr := NewTracker(fastConfig(), m, registry, func(v *model.View, r Result) {
		results = append(results, r)
	})
	m.Register(tr)

	m.StartNewView(model.ViewInitial, "https://app.dev/", "initial", 0, nil, nil)
	tr.OnResourceEntry(resourceActivity("https://cdn.app.dev/a.js", 100, 350))
	tr.OnResourceEntry(resourceActivity("https://cdn.app.dev/b.css", 120, 420))

	waitFor(t, time.Second, func() bool {
		done, _ := tr.Completed()
		return done
	})

	_, reason := tr.Completed()
	assert.Equal(t, ReasonActivityQuiet, reason)

	require.Len(t, results, 1)
	assert.Equal(t, 420.0, results[0].LoadingTimeMs, "loading time is last activity minus baseline")
	assert.Contains(t, results[0].Sources, "resource")

	vital := m.ActiveView().WebVitals[model.VitalLoadingTime]
	require.NotNil(t, vital)
	assert.Equal(t, 420.0, vital.Value)
}

func TestPendingRequestBlocksCompletion(t *testing.T) {
	m := view.NewManager(nil)
	registry := NewInterceptRegistry()
	tr := NewTracker(fastConfig(), m, registry, nil)
	m.Register(tr)

	m.StartNewView(model.ViewInitial, "https://app.dev/", "initial", 0, nil, nil)
	registry.Dispatch(networkActivity("start", "req-1", 50))

	time.Sleep(120 * time.Millisecond)
	done, _ := tr.Completed()
	assert.False(t, done, "an in-flight request must hold completion open")
	assert.Equal(t, 1, tr.PendingCount())

	registry.Dispatch(networkActivity("end", "req-1", 260))
	waitFor(t, time.Second, func() bool {
		done, _ := tr.Completed()
		return done
	})

	_, reason := tr.Completed()
	assert.Equal(t, ReasonActivityQuiet, reason)
	assert.Equal(t, 0, tr.PendingCount())
}

func TestAbsoluteTimeout(t *testing.T) {
	m := view.NewManager(nil)
	registry := NewInterceptRegistry()
	cfg := fastConfig()
	cfg.MaxDuration = 80 * time.Millisecond

	var result Result
	tr := NewTracker(cfg, m, registry, func(v *model.View, r Result) { result = r })
	m.Register(tr)

	m.StartNewView(model.ViewInitial, "https://app.dev/", "initial", 0, nil, nil)
	// A request that never finishes.
	registry.Dispatch(networkActivity("start", "req-stuck", 20))

	waitFor(t, time.Second, func() bool {
		done, _ := tr.Completed()
		return done
	})

	_, reason := tr.Completed()
	assert.Equal(t, ReasonAbsoluteTimeout, reason)
	assert.Equal(t, ReasonAbsoluteTimeout, result.Reason)
}

func TestRouteChangeBaseline(t *testing.T) {
	m := view.NewManager(nil)
	registry := NewInterceptRegistry()

	var result Result
	tr := NewTracker(fastConfig(), m, registry, func(v *model.View, r Result) { result = r })
	m.Register(tr)

	trigger := 5000.0
	m.StartNewView(model.ViewRouteChange, "https://app.dev/a", "pushState", 5010, nil, &trigger)
	tr.OnResourceEntry(resourceActivity("https://cdn.app.dev/chunk.js", 5100, 5400))

	waitFor(t, time.Second, func() bool {
		done, _ := tr.Completed()
		return done
	})

	assert.Equal(t, 400.0, result.LoadingTimeMs, "route-change loading counts from the trigger")
}

func TestResourcesBeforeBaselineIgnored(t *testing.T) {
	m := view.NewManager(nil)
	registry := NewInterceptRegistry()

	var result Result
	tr := NewTracker(fastConfig(), m, registry, func(v *model.View, r Result) { result = r })
	m.Register(tr)

	trigger := 5000.0
	m.StartNewView(model.ViewRouteChange, "https://app.dev/a", "pushState", 5010, nil, &trigger)
	tr.OnResourceEntry(resourceActivity("https://cdn.app.dev/old.js", 3000, 4900))

	waitFor(t, time.Second, func() bool {
		done, _ := tr.Completed()
		return done
	})

	assert.Equal(t, 0.0, result.LoadingTimeMs)
	assert.Empty(t, result.Sources)
}

func TestSupersededViewDiscardsResult(t *testing.T) {
	m := view.NewManager(nil)
	registry := NewInterceptRegistry()
	cfg := fastConfig()
	cfg.QuietPeriod = 150 * time.Millisecond

	var results []Result
	tr := NewTracker(cfg, m, registry, func(v *model.View, r Result) {
		results = append(results, r)
	})
	m.Register(tr)

	v1 := m.StartNewView(model.ViewInitial, "https://app.dev/", "initial", 0, nil, nil)
	tr.OnResourceEntry(resourceActivity("https://cdn.app.dev/a.js", 50, 90))

	// Supersede before the quiet period can elapse for v1.
	m.StartNewView(model.ViewRouteChange, "https://app.dev/a", "pushState", 200, nil, nil)

	waitFor(t, time.Second, func() bool {
		done, _ := tr.Completed()
		return done
	})

	require.Len(t, results, 1, "only the current view may produce a result")
	_, hasVital := v1.WebVitals[model.VitalLoadingTime]
	assert.False(t, hasVital, "no loading time may land on the superseded view")
}

func TestQuietTimerFromSupersededViewCannotCompleteSuccessor(t *testing.T) {
	m := view.NewManager(nil)
	registry := NewInterceptRegistry()
	cfg := fastConfig()
	cfg.QuietPeriod = 60 * time.Millisecond

	tr := NewTracker(cfg, m, registry, nil)
	m.Register(tr)

	m.StartNewView(model.ViewInitial, "https://app.dev/", "initial", 0, nil, nil)
	tr.OnResourceEntry(resourceActivity("https://cdn.app.dev/a.js", 50, 90))

	// Supersede while the first view's quiet timer is still armed.
	m.StartNewView(model.ViewRouteChange, "https://app.dev/a", "pushState", 200, nil, nil)

	// Keep the new view busy well past the old timer's firing point.
	deadline := time.Now().Add(4 * cfg.QuietPeriod)
	rel := 250.0
	for time.Now().Before(deadline) {
		tr.OnMutation(&model.Signal{
			Type:     model.SignalMutation,
			RelTime:  rel,
			Mutation: &model.MutationSignal{Kind: "childList", AddedNodes: 1, Target: "div"},
		})
		rel += 10
		time.Sleep(cfg.QuietPeriod / 4)

		done, _ := tr.Completed()
		require.False(t, done, "completed while activity was still arriving")
	}

	// Once the activity actually stops, the view completes normally.
	waitFor(t, time.Second, func() bool {
		done, _ := tr.Completed()
		return done
	})
	_, reason := tr.Completed()
	assert.Equal(t, ReasonActivityQuiet, reason)
}

func TestMutationSignificance(t *testing.T) {
	tests := []struct {
		name        string
		mutation    model.MutationSignal
		significant bool
	}{
		{
			name:        "child list with added nodes",
			mutation:    model.MutationSignal{Kind: "childList", AddedNodes: 3},
			significant: true,
		},
		{
			name:        "empty child list batch",
			mutation:    model.MutationSignal{Kind: "childList"},
			significant: false,
		},
		{
			name:        "style attribute churn",
			mutation:    model.MutationSignal{Kind: "attributes", AttributeName: "style"},
			significant: false,
		},
		{
			name:        "class attribute churn",
			mutation:    model.MutationSignal{Kind: "attributes", AttributeName: "class"},
			significant: false,
		},
		{
			name:        "src attribute change",
			mutation:    model.MutationSignal{Kind: "attributes", AttributeName: "src"},
			significant: true,
		},
		{
			name:        "character data",
			mutation:    model.MutationSignal{Kind: "characterData"},
			significant: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.significant, isSignificantMutation(&tt.mutation))
		})
	}
}

func TestActivityDetailRingIsBounded(t *testing.T) {
	m := view.NewManager(nil)
	registry := NewInterceptRegistry()
	cfg := fastConfig()
	cfg.DetailCapacity = 5

	var result Result
	tr := NewTracker(cfg, m, registry, func(v *model.View, r Result) { result = r })
	m.Register(tr)

	m.StartNewView(model.ViewInitial, "https://app.dev/", "initial", 0, nil, nil)
	for i := 0; i < 20; i++ {
		tr.OnResourceEntry(resourceActivity("https://cdn.app.dev/r.js", float64(10+i), float64(20+i)))
	}

	waitFor(t, time.Second, func() bool {
		done, _ := tr.Completed()
		return done
	})

	assert.Len(t, result.Details, 5, "ring evicts oldest entries")
	assert.Equal(t, 39.0, result.Details[4].RelTime)
}
