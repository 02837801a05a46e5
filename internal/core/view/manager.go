// Package view owns the active view's lifecycle: creation on navigation,
// population by collectors, completion, and bounded archival.
package view

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/penwyp/go-optima-rum/internal/core/constants"
	"github.com/penwyp/go-optima-rum/internal/core/model"
	"github.com/penwyp/go-optima-rum/internal/util"
)

// Collaborator is a view-scoped component driven by the manager. Teardown is
// called for the outgoing view before the incoming view is installed;
// StartView is called after installation with all collector state reset.
type Collaborator interface {
	Teardown()
	StartView(v *model.View)
}

// CompletionFunc is notified exactly once per completed view.
type CompletionFunc func(v *model.View, reason string)

// Manager owns the current logical view. At most one view is active at any
// time; superseded views survive only as trimmed history records.
type Manager struct {
	mu            sync.Mutex
	active        *model.View
	history       []model.ViewHistoryRecord
	historyLimit  int
	collaborators []Collaborator
	onComplete    CompletionFunc
	now           func() time.Time
	newID         func() string
}

// NewManager creates a view manager. onComplete may be nil.
func NewManager(onComplete CompletionFunc) *Manager {
	return &Manager{
		historyLimit: constants.ViewHistoryLimit,
		onComplete:   onComplete,
		now:          time.Now,
		newID:        func() string { return uuid.NewString() },
	}
}

// Register adds a view-scoped collaborator. Registration order is teardown
// and start order.
func (m *Manager) Register(c Collaborator) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collaborators = append(m.collaborators, c)
}

// SetClock overrides the wall clock (tests).
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

// StartNewView transitions to a new view. Order is load-bearing: observers
// for the outgoing view are torn down before the previous view completes and
// before the new view is installed, so no stale callback can write into the
// incoming view's containers.
func (m *Manager) StartNewView(viewType model.ViewType, url, trigger string, startRelTime float64, interactionBaseline, routeTrigger *float64) *model.View {
	m.mu.Lock()
	collaborators := append([]Collaborator(nil), m.collaborators...)
	m.mu.Unlock()

	// Hooks run outside the manager lock: collaborators call back into the
	// manager from their own callbacks, so holding the lock across
	// Teardown/StartView would invert the lock order.
	for _, c := range collaborators {
		c.Teardown()
	}

	// The outgoing view's completion reason is the navigation that
	// superseded it; the sender treats route_change completions as
	// immediate deliveries.
	supersededReason := "superseded"
	if viewType == model.ViewRouteChange {
		supersededReason = "route_change"
	}

	m.mu.Lock()
	completed := m.completeLocked(supersededReason)

	v := model.NewView(m.newID(), viewType, url, trigger, startRelTime, m.now())
	v.InteractionBaseline = interactionBaseline
	v.RouteTriggerRelTime = routeTrigger
	m.active = v
	m.mu.Unlock()

	m.notifyCompletion(completed, supersededReason)

	for _, c := range collaborators {
		c.StartView(v)
	}

	util.LogDebugf("Started %s view %s url=%s trigger=%s", viewType, v.ID, url, trigger)
	return v
}

// CompleteView marks the active view terminal, archives a trimmed copy and
// notifies the completion hook. Completing an already-completed view or
// having no active view is a no-op. Returns whether a completion happened.
func (m *Manager) CompleteView(reason string) bool {
	m.mu.Lock()
	completed := m.completeLocked(reason)
	m.mu.Unlock()

	m.notifyCompletion(completed, reason)
	return completed != nil
}

// completeLocked marks the active view terminal and archives it. Returns the
// completed view, or nil when there was nothing to complete. The completion
// hook is the caller's responsibility, outside the lock.
func (m *Manager) completeLocked(reason string) *model.View {
	v := m.active
	if v == nil || v.Completed {
		return nil
	}

	now := m.now()
	v.Completed = true
	v.Active = false
	v.CompletedAt = now
	v.CompletionReason = reason
	v.DurationMs = float64(now.Sub(v.StartedAt).Milliseconds())

	m.history = append(m.history, v.Archive())
	if len(m.history) > m.historyLimit {
		m.history = m.history[len(m.history)-m.historyLimit:]
	}

	util.LogDebugf("Completed view %s reason=%s duration=%.0fms", v.ID, reason, v.DurationMs)
	return v
}

// notifyCompletion fires the completion hook exactly once per view: a view
// only ever passes through completeLocked once, and the hook runs right
// after.
func (m *Manager) notifyCompletion(v *model.View, reason string) {
	if v != nil && m.onComplete != nil {
		m.onComplete(v, reason)
	}
}

// ActiveView returns the current active view, or nil.
func (m *Manager) ActiveView() *model.View {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// IsCurrent reports whether v is still the installed, active view. This is
// the cancellation check stale observer callbacks must run before writing:
// a view that has been superseded rejects every late result.
func (m *Manager) IsCurrent(v *model.View) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return v != nil && v == m.active && v.Active && !v.Completed
}

// IsStale reports whether the active view has seen no activity for longer
// than maxIdle. Zero maxIdle uses the default threshold.
func (m *Manager) IsStale(maxIdle time.Duration) bool {
	if maxIdle <= 0 {
		maxIdle = constants.StaleViewThreshold
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil || m.active.Completed {
		return false
	}
	return m.now().Sub(m.active.LastActivityAt) > maxIdle
}

// AddResource appends a resource to the active view. Returns false with no
// active view.
func (m *Manager) AddResource(r model.Resource) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.mutableView()
	if v == nil {
		return false
	}
	v.Resources = append(v.Resources, r)
	v.Touch(m.now())
	return true
}

// AddAjax appends an AJAX request to the active view.
func (m *Manager) AddAjax(a model.AjaxRequest) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.mutableView()
	if v == nil {
		return false
	}
	v.AjaxRequests = append(v.AjaxRequests, a)
	v.Touch(m.now())
	return true
}

// AddError appends an error record to the active view.
func (m *Manager) AddError(e model.ErrorRecord) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.mutableView()
	if v == nil {
		return false
	}
	v.Errors = append(v.Errors, e)
	v.Touch(m.now())
	return true
}

// BumpErrorCount folds a repeated error (same content hash) into its
// existing record instead of appending a duplicate.
func (m *Manager) BumpErrorCount(hash string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.mutableView()
	if v == nil {
		return false
	}
	for i := range v.Errors {
		if v.Errors[i].Hash == hash {
			v.Errors[i].Count++
			v.Touch(m.now())
			return true
		}
	}
	return false
}

// AddEvent appends a tracked event to the active view.
func (m *Manager) AddEvent(e model.EventRecord) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.mutableView()
	if v == nil {
		return false
	}
	v.Events = append(v.Events, e)
	v.Touch(m.now())
	return true
}

// UpdateWebVital sets or replaces a vital on the active view.
func (m *Manager) UpdateWebVital(kind model.VitalKind, value float64, viewRelativeTime float64, attribution model.VitalAttribution) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.mutableView()
	if v == nil {
		return false
	}
	v.WebVitals[kind] = &model.WebVital{
		Kind:             kind,
		Value:            value,
		Timestamp:        m.now(),
		ViewRelativeTime: viewRelativeTime,
		Attribution:      attribution,
	}
	v.Touch(m.now())
	return true
}

// mutableView returns the active view if it can still accept data.
func (m *Manager) mutableView() *model.View {
	if m.active == nil || m.active.Completed {
		return nil
	}
	return m.active
}

// Counters is a cheap snapshot of the active view's accumulation state,
// used for significance checks without exposing mutable containers.
type Counters struct {
	ViewID    string
	Completed bool
	CLS       *float64
	INP       *float64
	Vitals    map[model.VitalKind]bool
	Resources int
	Ajax      int
	Errors    int
}

// ActiveCounters snapshots the active view's counters. The second return is
// false when no view is active.
func (m *Manager) ActiveCounters() (Counters, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.active
	if v == nil {
		return Counters{}, false
	}

	c := Counters{
		ViewID:    v.ID,
		Completed: v.Completed,
		Vitals:    make(map[model.VitalKind]bool, len(v.WebVitals)),
		Resources: len(v.Resources),
		Ajax:      len(v.AjaxRequests),
		Errors:    len(v.Errors),
	}
	for k, vital := range v.WebVitals {
		c.Vitals[k] = true
		switch k {
		case model.VitalCLS:
			val := vital.Value
			c.CLS = &val
		case model.VitalINP:
			val := vital.Value
			c.INP = &val
		}
	}
	return c, true
}

// BuildActivePayload snapshots the active view into a payload under the
// manager lock so queued payloads never alias live containers. Returns nil
// with no active view.
func (m *Manager) BuildActivePayload(sessionID, sessionType string, meta model.PageMeta, isUpdate bool) *model.Payload {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return nil
	}
	return model.BuildPayload(m.active, sessionID, sessionType, meta, isUpdate)
}

// History returns a copy of the archived view records, oldest first.
func (m *Manager) History() []model.ViewHistoryRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.ViewHistoryRecord(nil), m.history...)
}
