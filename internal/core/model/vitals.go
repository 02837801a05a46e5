package model

import "time"

// VitalKind names a tracked web vital.
type VitalKind string

const (
	VitalLCP         VitalKind = "LCP"
	VitalFID         VitalKind = "FID"
	VitalFCP         VitalKind = "FCP"
	VitalTTFB        VitalKind = "TTFB"
	VitalCLS         VitalKind = "CLS"
	VitalINP         VitalKind = "INP"
	VitalLoadingTime VitalKind = "loading_time"
)

// InitialOnly reports whether the vital is observed only for initial views.
// LCP, FID, FCP and TTFB only make sense against a real document load; a
// client-side route change never repaints from a blank document.
func (k VitalKind) InitialOnly() bool {
	switch k {
	case VitalLCP, VitalFID, VitalFCP, VitalTTFB:
		return true
	}
	return false
}

// Continuous reports whether the vital keeps evolving after initial paint
// and stays meaningful across route changes.
func (k VitalKind) Continuous() bool {
	return k == VitalCLS || k == VitalINP
}

// VitalAttribution is the metric-specific detail attached to a vital. Each
// kind carries a typed payload instead of ad-hoc side-channel fields.
type VitalAttribution interface {
	vitalAttribution()
}

// LCPAttribution describes the largest contentful paint element.
type LCPAttribution struct {
	Element *ElementInfo `json:"element,omitempty"`
	Size    float64      `json:"size"`
	URL     string       `json:"url,omitempty"`
}

// CLSAttribution describes accumulated layout shift sources.
type CLSAttribution struct {
	Sources          []string `json:"sources,omitempty"`
	LastShiftRelTime float64  `json:"last_shift_rel_time"`
}

// INPAttribution describes the slowest interaction seen so far.
type INPAttribution struct {
	EventType string `json:"event_type"`
	Target    string `json:"target,omitempty"`
}

func (LCPAttribution) vitalAttribution() {}
func (CLSAttribution) vitalAttribution() {}
func (INPAttribution) vitalAttribution() {}

// WebVital is one recorded metric value for a view.
type WebVital struct {
	Kind             VitalKind        `json:"-"`
	Value            float64          `json:"value"`
	Timestamp        time.Time        `json:"timestamp"`
	ViewRelativeTime float64          `json:"view_relative_time"` // ms since view start
	Attribution      VitalAttribution `json:"attribution,omitempty"`
}
