package model

import "time"

// SendStrategy records how a payload was delivered.
type SendStrategy string

const (
	StrategyImmediate SendStrategy = "immediate"
	StrategyBatched   SendStrategy = "batched"
	StrategyBeacon    SendStrategy = "beacon"
	StrategyRetry     SendStrategy = "sync_retry"
)

// PageMeta is page and device metadata captured once per session.
type PageMeta struct {
	UserAgent      string `json:"user_agent,omitempty"`
	Language       string `json:"language,omitempty"`
	Referrer       string `json:"referrer,omitempty"`
	ScreenWidth    int    `json:"screen_width,omitempty"`
	ScreenHeight   int    `json:"screen_height,omitempty"`
	ConnectionType string `json:"connection_type,omitempty"`
	SDKVersion     string `json:"sdk_version"`
}

// ViewMetadata summarizes container sizes for the collector side.
type ViewMetadata struct {
	ResourceCount int  `json:"resource_count"`
	AjaxCount     int  `json:"ajax_count"`
	ErrorCount    int  `json:"error_count"`
	EventCount    int  `json:"event_count"`
	VitalCount    int  `json:"vital_count"`
	IsUpdate      bool `json:"is_update"`
}

// Payload is the serializable snapshot of a view (or an incremental update)
// produced at send time. It is never persisted.
type Payload struct {
	SessionID     string                  `json:"session_id"`
	SessionType   string                  `json:"session_type"`
	ViewID        string                  `json:"view_id"`
	Trigger       string                  `json:"trigger"`
	Timestamp     int64                   `json:"timestamp"` // epoch ms of view start
	URL           string                  `json:"url"`
	DurationMs    float64                 `json:"duration"`
	WebVitals     map[VitalKind]*WebVital `json:"web_vitals"`
	Resources     []Resource              `json:"resources"`
	AjaxRequests  []AjaxRequest           `json:"ajax_requests"`
	Errors        []ErrorRecord           `json:"errors"`
	Events        []EventRecord           `json:"events"`
	Meta          PageMeta                `json:"meta"`
	ViewMetadata  ViewMetadata            `json:"view_metadata"`
	SendTimestamp int64                   `json:"send_timestamp"`
	SendStrategy  SendStrategy            `json:"send_strategy"`
}

// BuildPayload snapshots a view into a payload. The containers are copied so
// a queued payload is immune to later view mutation.
func BuildPayload(v *View, sessionID, sessionType string, meta PageMeta, isUpdate bool) *Payload {
	vitals := make(map[VitalKind]*WebVital, len(v.WebVitals))
	for k, vital := range v.WebVitals {
		c := *vital
		vitals[k] = &c
	}

	p := &Payload{
		SessionID:    sessionID,
		SessionType:  sessionType,
		ViewID:       v.ID,
		Trigger:      v.Trigger,
		Timestamp:    v.StartedAt.UnixMilli(),
		URL:          v.URL,
		DurationMs:   v.DurationMs,
		WebVitals:    vitals,
		Resources:    append([]Resource(nil), v.Resources...),
		AjaxRequests: append([]AjaxRequest(nil), v.AjaxRequests...),
		Errors:       append([]ErrorRecord(nil), v.Errors...),
		Events:       append([]EventRecord(nil), v.Events...),
		Meta:         meta,
		ViewMetadata: ViewMetadata{
			ResourceCount: len(v.Resources),
			AjaxCount:     len(v.AjaxRequests),
			ErrorCount:    len(v.Errors),
			EventCount:    len(v.Events),
			VitalCount:    len(v.WebVitals),
			IsUpdate:      isUpdate,
		},
	}

	if !v.Completed {
		p.DurationMs = float64(time.Since(v.StartedAt).Milliseconds())
	}
	return p
}

// IdentifyPayload carries user identity to the collector.
type IdentifyPayload struct {
	SessionID string                 `json:"session_id"`
	UserID    string                 `json:"user_id"`
	Traits    map[string]interface{} `json:"traits,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

// EventPayload carries a discrete tracked event to the collector.
type EventPayload struct {
	SessionID  string                 `json:"session_id"`
	ViewID     string                 `json:"view_id,omitempty"`
	Name       string                 `json:"name"`
	Properties map[string]interface{} `json:"properties,omitempty"`
	Timestamp  int64                  `json:"timestamp"`
}
