package constants

import "time"

const (
	// View lifecycle
	ViewHistoryLimit   = 10
	StaleViewThreshold = 30 * time.Second

	// Route change detection. The interaction recency window and the
	// meaningful-change rules are empirically chosen; they are surfaced
	// through RouteConfig rather than read from here directly.
	InteractionRecencyWindow = 5 * time.Second
	NavigationAncestorDepth  = 3

	// Loading time tracking
	LoadingQuietPeriod     = 200 * time.Millisecond
	LoadingMaxDuration     = 20 * time.Second
	LoadingCheckInterval   = 1 * time.Second
	ActivityDetailCapacity = 50

	// Continuous metrics
	ContinuousMetricsInterval = 10 * time.Second
	CLSSignificantDelta       = 0.01
	INPSignificantDeltaMs     = 50.0
	ResourceSignificantGrowth = 5
	AjaxSignificantGrowth     = 3

	// Delivery
	DefaultBatchSize        = 3
	DefaultBatchTimeout     = 5 * time.Second
	BatchSendStagger        = 100 * time.Millisecond
	ContinuousUpdateGrace   = 3 * time.Second
	SendTimeout             = 10 * time.Second
	BeaconSendTimeout       = 2 * time.Second

	// Error capture
	ErrorDedupWindow    = 100 * time.Millisecond
	ErrorStackHashLimit = 200 // stack prefix length fed into the content hash
)
