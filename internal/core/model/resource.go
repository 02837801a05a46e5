package model

// ResourceType classifies a loaded resource.
type ResourceType string

const (
	ResourceScript     ResourceType = "script"
	ResourceStylesheet ResourceType = "stylesheet"
	ResourceImage      ResourceType = "image"
	ResourceFont       ResourceType = "font"
	ResourceMedia      ResourceType = "media"
	ResourceOther      ResourceType = "other"
)

// CacheStatus classifies how a resource was delivered.
type CacheStatus string

const (
	CacheHit     CacheStatus = "cache"
	CacheNetwork CacheStatus = "network"
	CacheUnknown CacheStatus = "unknown"
)

// Resource is one attributed resource load. Timing fields are phase
// durations in milliseconds derived from the underlying entry. ViewStartMs
// is the view-relative start: absolute rel-time for initial views, offset
// from the resource filter time for route-change views.
type Resource struct {
	URL             string       `json:"url"`
	Type            ResourceType `json:"resource_type"`
	CacheStatus     CacheStatus  `json:"cache_status"`
	TransferSize    int64        `json:"transfer_size"`
	EncodedBodySize int64        `json:"encoded_body_size"`
	DecodedBodySize int64        `json:"decoded_body_size"`
	StartRelTime    float64      `json:"start_time"`
	DurationMs      float64      `json:"duration"`
	DNSMs           float64      `json:"dns"`
	TLSMs           float64      `json:"tls"`
	ConnectMs       float64      `json:"connect"`
	RequestMs       float64      `json:"request"`
	ResponseMs      float64      `json:"response"`
	ViewStartMs     float64      `json:"view_start_ms"`
}

// AjaxRequest is one attributed XHR/fetch call.
type AjaxRequest struct {
	URL          string  `json:"url"`
	Method       string  `json:"method,omitempty"`
	Status       int     `json:"status,omitempty"`
	StartRelTime float64 `json:"start_time"`
	DurationMs   float64 `json:"duration"`
}
