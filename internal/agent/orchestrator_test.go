package agent

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/penwyp/go-optima-rum/internal/core/model"
)

// syncBuffer makes the dry-run writer safe for the sender's goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newEngine(t *testing.T) (*Orchestrator, *syncBuffer) {
	t.Helper()
	buf := &syncBuffer{}
	cfg := DefaultConfig()
	cfg.InitialURL = "https://app.dev/"
	cfg.DryRunWriter = buf
	o := New(cfg)
	require.NoError(t, o.Execute(Command{Name: CmdInit}))
	t.Cleanup(o.Shutdown)
	return o, buf
}

func sig(sigType model.SignalType, relTime float64) *model.Signal {
	return &model.Signal{Type: sigType, RelTime: relTime, Timestamp: time.Now().UnixMilli()}
}

func TestInitStartsInitialView(t *testing.T) {
	o, _ := newEngine(t)

	st := o.GetStatus()
	assert.True(t, st.Initialized)
	assert.False(t, st.Disabled)
	assert.NotEmpty(t, st.SessionID)
	assert.Equal(t, string(model.ViewInitial), st.ViewType)
	assert.Equal(t, "https://app.dev/", st.ActiveViewURL)
}

func TestMissingKeyDisablesSilently(t *testing.T) {
	o := New(&Config{InitialURL: "https://app.dev/"})
	require.NoError(t, o.Execute(Command{Name: CmdInit}), "a missing key must never error out")
	assert.True(t, o.Disabled())

	// Everything afterwards is a silent no-op.
	o.ProcessSignal(sig(model.SignalPaint, 800))
	o.Track("signup", nil)
	assert.NoError(t, o.Execute(Command{Name: CmdTrack, Args: map[string]interface{}{"name": "x"}}))
}

func TestRouteChangeShipsCompletedView(t *testing.T) {
	o, buf := newEngine(t)
	firstViewID := o.GetStatus().ActiveViewID

	nav := sig(model.SignalNavigation, 2500)
	nav.Navigation = &model.NavigationSignal{Method: "pushState", URL: "https://app.dev/settings"}
	o.ProcessSignal(nav)

	st := o.GetStatus()
	assert.NotEqual(t, firstViewID, st.ActiveViewID)
	assert.Equal(t, string(model.ViewRouteChange), st.ViewType)
	assert.Equal(t, 1, st.ViewHistory)

	// The superseded initial view went out immediately.
	waitForContains(t, buf, firstViewID)
	waitForContains(t, buf, `"send_strategy":"immediate"`)
}

func TestSignalsPopulateActiveView(t *testing.T) {
	o, _ := newEngine(t)

	res := sig(model.SignalResource, 120)
	res.Resource = &model.ResourceEntrySignal{
		URL: "https://cdn.app.dev/a.js", InitiatorType: "script", StartTime: 100, Duration: 80,
	}
	o.ProcessSignal(res)

	errSig := sig(model.SignalError, 300)
	errSig.Error = &model.ErrorSignal{Source: "error", Message: "boom", File: "app.js", Line: 3}
	o.ProcessSignal(errSig)

	paint := sig(model.SignalPaint, 800)
	paint.Paint = &model.PaintSignal{Name: "first-contentful-paint", StartTime: 800}
	o.ProcessSignal(paint)

	p := o.views.BuildActivePayload(o.SessionID(), "user", o.cfg.Meta, true)
	require.NotNil(t, p)
	assert.Len(t, p.Resources, 1)
	assert.Len(t, p.Errors, 1)
	assert.Contains(t, p.WebVitals, model.VitalFCP)
}

func TestDisabledContinuousMetricsShipsNoUpdates(t *testing.T) {
	buf := &syncBuffer{}
	cfg := DefaultConfig()
	cfg.InitialURL = "https://app.dev/"
	cfg.DryRunWriter = buf
	cfg.EnableContinuousMetrics = false
	o := New(cfg)
	require.NoError(t, o.Execute(Command{Name: CmdInit}))
	defer o.Shutdown()

	// A first CLS value is always a significant change, so with the feature
	// on this would emit an update.
	ls := sig(model.SignalLayoutShift, 500)
	ls.LayoutShift = &model.LayoutShiftSignal{Value: 0.2, StartTime: 500}
	o.ProcessSignal(ls)

	time.Sleep(200 * time.Millisecond)
	assert.Empty(t, buf.String(), "change-triggered updates must respect the flag")
}

func TestUnloadCompletesAndFlushes(t *testing.T) {
	o, buf := newEngine(t)
	viewID := o.GetStatus().ActiveViewID

	lc := sig(model.SignalLifecycle, 9000)
	lc.Lifecycle = &model.LifecycleSignal{State: "unload"}
	o.ProcessSignal(lc)

	v := o.views.ActiveView()
	require.NotNil(t, v)
	assert.True(t, v.Completed)
	assert.Equal(t, "unload", v.CompletionReason)
	assert.Equal(t, 1, o.GetStatus().ViewHistory)
	waitForContains(t, buf, viewID)
}

func TestPageHiddenSnapshotsWithoutCompleting(t *testing.T) {
	o, buf := newEngine(t)
	viewID := o.GetStatus().ActiveViewID

	lc := sig(model.SignalLifecycle, 4000)
	lc.Lifecycle = &model.LifecycleSignal{State: "hidden"}
	o.ProcessSignal(lc)

	st := o.GetStatus()
	assert.Equal(t, viewID, st.ActiveViewID, "hidden ships a snapshot but keeps the view")
	waitForContains(t, buf, viewID)
}

func TestCommandsQueueBeforeInit(t *testing.T) {
	buf := &syncBuffer{}
	cfg := DefaultConfig()
	cfg.InitialURL = "https://app.dev/"
	cfg.DryRunWriter = buf
	o := New(cfg)

	require.NoError(t, o.Execute(Command{
		Name: CmdTrack,
		Args: map[string]interface{}{"name": "pre_init_event"},
	}))
	assert.NotContains(t, buf.String(), "pre_init_event")

	require.NoError(t, o.Execute(Command{Name: CmdInit}))
	defer o.Shutdown()

	// The queued track replayed during init.
	waitForContains(t, buf, "pre_init_event")
}

func TestTrackRecordsEvent(t *testing.T) {
	o, buf := newEngine(t)

	o.Track("signup", map[string]interface{}{"plan": "pro"})

	v := o.views.ActiveView()
	require.Len(t, v.Events, 1)
	assert.Equal(t, "signup", v.Events[0].Name)
	assert.WithinDuration(t, time.Now(), v.Events[0].Timestamp, time.Second)
	waitForContains(t, buf, "/api/optima/events")
}

func TestIdentifyCommand(t *testing.T) {
	o, buf := newEngine(t)

	require.NoError(t, o.Execute(Command{
		Name: CmdIdentify,
		Args: map[string]interface{}{"user_id": "u-77"},
	}))
	assert.Contains(t, buf.String(), "/api/optima/identify")
	assert.Contains(t, buf.String(), "u-77")

	assert.Error(t, o.Execute(Command{Name: CmdIdentify, Args: map[string]interface{}{}}))
}

func TestUnknownCommandRejected(t *testing.T) {
	o, _ := newEngine(t)
	assert.Error(t, o.Execute(Command{Name: "selfDestruct"}))
}

func TestHandlerPanicIsContained(t *testing.T) {
	o, _ := newEngine(t)

	// A signal with a nil union member must not take the engine down.
	assert.NotPanics(t, func() {
		o.ProcessSignal(&model.Signal{Type: model.SignalNavigation})
		o.ProcessSignal(&model.Signal{Type: model.SignalResource})
		o.ProcessSignal(nil)
	})
	assert.True(t, o.GetStatus().Initialized)
}

func TestShutdownIsIdempotent(t *testing.T) {
	o, _ := newEngine(t)
	o.Shutdown()
	assert.NotPanics(t, o.Shutdown)
	assert.Error(t, o.Execute(Command{Name: CmdTrack, Args: map[string]interface{}{"name": "late"}}))
}

func waitForContains(t *testing.T, buf *syncBuffer, substr string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(buf.String(), substr) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("output never contained %q", substr)
}
