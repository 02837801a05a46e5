package model

// SignalType identifies a browser bridge signal.
type SignalType string

const (
	SignalNavigation       SignalType = "navigation"
	SignalNavigationTiming SignalType = "navigation_timing"
	SignalInteraction      SignalType = "interaction"
	SignalResource         SignalType = "resource"
	SignalPaint            SignalType = "paint"
	SignalLargestPaint     SignalType = "largest_contentful_paint"
	SignalFirstInput       SignalType = "first_input"
	SignalLayoutShift      SignalType = "layout_shift"
	SignalEventTiming      SignalType = "event_timing"
	SignalNetwork          SignalType = "network"
	SignalMutation         SignalType = "mutation"
	SignalLifecycle        SignalType = "lifecycle"
	SignalError            SignalType = "error"
	SignalCustomEvent      SignalType = "custom_event"
)

// Signal is one record from the browser bridge stream. Timestamp is the wall
// clock at capture; RelTime is milliseconds since the page time origin
// (performance.now() at capture). RelTime is the monotonic axis every
// attribution decision runs on: it is taken when the signal fires in the
// page, never when the engine processes it.
//
// Exactly one of the payload pointers is non-nil, according to Type.
type Signal struct {
	Type      SignalType `json:"type"`
	Timestamp int64      `json:"ts"`       // epoch milliseconds
	RelTime   float64    `json:"rel_time"` // ms since time origin

	Navigation       *NavigationSignal       `json:"-"`
	NavigationTiming *NavigationTimingSignal `json:"-"`
	Interaction      *InteractionSignal      `json:"-"`
	Resource         *ResourceEntrySignal    `json:"-"`
	Paint            *PaintSignal            `json:"-"`
	LargestPaint     *LargestPaintSignal     `json:"-"`
	FirstInput       *FirstInputSignal       `json:"-"`
	LayoutShift      *LayoutShiftSignal      `json:"-"`
	EventTiming      *EventTimingSignal      `json:"-"`
	Network          *NetworkSignal          `json:"-"`
	Mutation         *MutationSignal         `json:"-"`
	Lifecycle        *LifecycleSignal        `json:"-"`
	Error            *ErrorSignal            `json:"-"`
	CustomEvent      *CustomEventSignal      `json:"-"`
}

// NavigationSignal reports a history/hash navigation hook firing.
type NavigationSignal struct {
	Method string `json:"method"` // pushState, replaceState, popstate, hashchange, dom_mutation
	URL    string `json:"url"`
}

// NavigationTimingSignal carries the initial document navigation entry.
// FetchStart is the loading baseline for initial views: navigationStart is
// always zero on the rel-time axis and useless as an origin.
type NavigationTimingSignal struct {
	FetchStart       float64 `json:"fetch_start"`
	ResponseStart    float64 `json:"response_start"`
	DomContentLoaded float64 `json:"dom_content_loaded"`
	LoadEvent        float64 `json:"load_event"`
}

// ElementInfo describes a DOM element involved in an interaction or paint.
// Parent chains upward so the navigational-element heuristic can inspect
// ancestors without another round trip to the page.
type ElementInfo struct {
	Tag        string       `json:"tag"`
	ID         string       `json:"id,omitempty"`
	ClassName  string       `json:"class_name,omitempty"`
	Href       string       `json:"href,omitempty"`
	HasOnClick bool         `json:"has_onclick,omitempty"`
	DataRoute  string       `json:"data_route,omitempty"`
	Parent     *ElementInfo `json:"parent,omitempty"`
}

// InteractionSignal reports a discrete user input. DurationMs is the
// time-to-next-paint measured by the bridge's manual listeners and feeds the
// INP fallback path.
type InteractionSignal struct {
	Kind       string      `json:"kind"` // click, keydown, pointerdown, touchstart
	Element    ElementInfo `json:"element"`
	DurationMs float64     `json:"duration_ms,omitempty"`
}

// ResourceEntrySignal mirrors a PerformanceResourceTiming entry. All times
// are on the rel-time axis.
type ResourceEntrySignal struct {
	URL                   string  `json:"url"`
	InitiatorType         string  `json:"initiator_type"`
	StartTime             float64 `json:"start_time"`
	Duration              float64 `json:"duration"`
	DomainLookupStart     float64 `json:"domain_lookup_start"`
	DomainLookupEnd       float64 `json:"domain_lookup_end"`
	ConnectStart          float64 `json:"connect_start"`
	ConnectEnd            float64 `json:"connect_end"`
	SecureConnectionStart float64 `json:"secure_connection_start"`
	RequestStart          float64 `json:"request_start"`
	ResponseStart         float64 `json:"response_start"`
	ResponseEnd           float64 `json:"response_end"`
	TransferSize          int64   `json:"transfer_size"`
	EncodedBodySize       int64   `json:"encoded_body_size"`
	DecodedBodySize       int64   `json:"decoded_body_size"`
}

// PaintSignal mirrors a PerformancePaintTiming entry (FCP).
type PaintSignal struct {
	Name      string  `json:"name"` // first-contentful-paint
	StartTime float64 `json:"start_time"`
}

// LargestPaintSignal mirrors a largest-contentful-paint entry.
type LargestPaintSignal struct {
	StartTime float64      `json:"start_time"`
	Size      float64      `json:"size"`
	URL       string       `json:"url,omitempty"`
	Element   *ElementInfo `json:"element,omitempty"`
}

// FirstInputSignal mirrors a first-input entry; FID is
// ProcessingStart - StartTime.
type FirstInputSignal struct {
	StartTime       float64 `json:"start_time"`
	ProcessingStart float64 `json:"processing_start"`
	Name            string  `json:"name,omitempty"`
}

// LayoutShiftSignal mirrors a layout-shift entry.
type LayoutShiftSignal struct {
	Value          float64  `json:"value"`
	HadRecentInput bool     `json:"had_recent_input"`
	StartTime      float64  `json:"start_time"`
	Sources        []string `json:"sources,omitempty"`
}

// EventTimingSignal mirrors an event-timing entry (INP candidate).
type EventTimingSignal struct {
	EventType string  `json:"event_type"`
	StartTime float64 `json:"start_time"`
	Duration  float64 `json:"duration"`
	Target    string  `json:"target,omitempty"`
}

// NetworkSignal reports XHR/fetch activity observed by the interception
// layer. Start and end of each request arrive as separate signals sharing a
// RequestID so in-flight tracking can pair them.
type NetworkSignal struct {
	Phase     string `json:"phase"` // start, end
	Kind      string `json:"kind"`  // xhr, fetch
	RequestID string `json:"request_id"`
	URL       string `json:"url"`
	Method    string `json:"method,omitempty"`
	Status    int    `json:"status,omitempty"`
}

// MutationSignal reports a DOM mutation batch summary.
type MutationSignal struct {
	Kind          string `json:"kind"` // childList, attributes, characterData
	AttributeName string `json:"attribute_name,omitempty"`
	AddedNodes    int    `json:"added_nodes"`
	RemovedNodes  int    `json:"removed_nodes"`
	Target        string `json:"target,omitempty"`
}

// LifecycleSignal reports page visibility and unload transitions.
type LifecycleSignal struct {
	State string `json:"state"` // hidden, visible, unload
}

// ErrorSignal reports a captured host-page error.
type ErrorSignal struct {
	Source  string `json:"source"` // error, unhandledrejection, console
	Type    string `json:"error_type,omitempty"`
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Stack   string `json:"stack,omitempty"`
}

// CustomEventSignal reports a host-page track() call.
type CustomEventSignal struct {
	Name       string                 `json:"name"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}
