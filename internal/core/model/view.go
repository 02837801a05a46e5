package model

import "time"

// ViewType distinguishes the initial document load from client-side route
// changes.
type ViewType string

const (
	ViewInitial     ViewType = "initial"
	ViewRouteChange ViewType = "route_change"
)

// View is the unit of attribution: one logical page impression and its
// isolated telemetry containers. At most one view is active at any time.
// Once Completed is set the view is immutable except for archival trimming.
type View struct {
	ID      string   `json:"view_id"`
	Type    ViewType `json:"view_type"`
	URL     string   `json:"url"`
	Trigger string   `json:"trigger"`

	StartedAt    time.Time `json:"started_at"`     // wall clock at creation
	StartRelTime float64   `json:"start_rel_time"` // monotonic ms since time origin

	// RouteTriggerRelTime is the moment the navigation signal fired;
	// InteractionBaseline is an earlier user-intent moment when a recent
	// navigational interaction preceded the route change. Both monotonic.
	RouteTriggerRelTime *float64 `json:"route_trigger_rel_time,omitempty"`
	InteractionBaseline *float64 `json:"interaction_baseline,omitempty"`

	Active           bool      `json:"active"`
	Completed        bool      `json:"completed"`
	CompletedAt      time.Time `json:"completed_at,omitempty"`
	CompletionReason string    `json:"completion_reason,omitempty"`
	DurationMs       float64   `json:"duration_ms"`
	LastActivityAt   time.Time `json:"last_activity_at"`

	WebVitals    map[VitalKind]*WebVital `json:"web_vitals"`
	Resources    []Resource              `json:"resources"`
	AjaxRequests []AjaxRequest           `json:"ajax_requests"`
	Errors       []ErrorRecord           `json:"errors"`
	Events       []EventRecord           `json:"events"`
}

// NewView constructs a view with empty containers.
func NewView(id string, viewType ViewType, url, trigger string, startRelTime float64, now time.Time) *View {
	return &View{
		ID:             id,
		Type:           viewType,
		URL:            url,
		Trigger:        trigger,
		StartedAt:      now,
		StartRelTime:   startRelTime,
		Active:         true,
		LastActivityAt: now,
		WebVitals:      make(map[VitalKind]*WebVital),
		Resources:      make([]Resource, 0),
		AjaxRequests:   make([]AjaxRequest, 0),
		Errors:         make([]ErrorRecord, 0),
		Events:         make([]EventRecord, 0),
	}
}

// ResourceFilterRelTime resolves the rel-time threshold resources must start
// at or after to belong to this view. Initial views collect everything
// (threshold 0); route-change views prefer the user-intent baseline, then
// the route trigger moment, then the view start.
func (v *View) ResourceFilterRelTime() float64 {
	if v.Type == ViewInitial {
		return 0
	}
	if v.InteractionBaseline != nil {
		return *v.InteractionBaseline
	}
	if v.RouteTriggerRelTime != nil {
		return *v.RouteTriggerRelTime
	}
	return v.StartRelTime
}

// Touch refreshes the last-activity timestamp.
func (v *View) Touch(now time.Time) {
	v.LastActivityAt = now
}

// ViewHistoryRecord is the trimmed archival form of a superseded view:
// counts survive, full payloads do not.
type ViewHistoryRecord struct {
	ID               string    `json:"view_id"`
	Type             ViewType  `json:"view_type"`
	URL              string    `json:"url"`
	Trigger          string    `json:"trigger"`
	StartedAt        time.Time `json:"started_at"`
	DurationMs       float64   `json:"duration_ms"`
	CompletionReason string    `json:"completion_reason"`
	VitalCount       int       `json:"web_vitals"`
	ResourceCount    int       `json:"resources"`
	AjaxCount        int       `json:"ajax_requests"`
	ErrorCount       int       `json:"errors"`
	EventCount       int       `json:"events"`
}

// Archive produces the trimmed history record for a completed view.
func (v *View) Archive() ViewHistoryRecord {
	return ViewHistoryRecord{
		ID:               v.ID,
		Type:             v.Type,
		URL:              v.URL,
		Trigger:          v.Trigger,
		StartedAt:        v.StartedAt,
		DurationMs:       v.DurationMs,
		CompletionReason: v.CompletionReason,
		VitalCount:       len(v.WebVitals),
		ResourceCount:    len(v.Resources),
		AjaxCount:        len(v.AjaxRequests),
		ErrorCount:       len(v.Errors),
		EventCount:       len(v.Events),
	}
}
