package agent

import (
	"errors"
	"io"
	"math/rand"
	"time"

	"github.com/penwyp/go-optima-rum/internal/core/constants"
	"github.com/penwyp/go-optima-rum/internal/core/model"
)

// Config is the recognized configuration surface.
type Config struct {
	APIKey   string `json:"api_key"`
	Endpoint string `json:"endpoint"`

	// SampleRate is the percentage of sessions tracked, 1-100. Out-of-range
	// values clamp instead of failing: a misconfigured host page should
	// degrade, not break.
	SampleRate int `json:"sample_rate"`

	BatchSize                 int           `json:"batch_size"`
	BatchTimeout              time.Duration `json:"batch_timeout"`
	FlushInterval             time.Duration `json:"flush_interval"` // alias for BatchTimeout
	ContinuousMetricsInterval time.Duration `json:"continuous_metrics_interval"`

	EnableRouteChangeTracking bool `json:"enable_route_change_tracking"`
	EnableContinuousMetrics   bool `json:"enable_continuous_metrics"`

	// ExclusionList overrides the default third-party exclusions. The fixed
	// internal-SDK exclusion list can never be overridden.
	ExclusionList []string `json:"exclusion_list"`

	Debug    bool `json:"debug"`
	Disabled bool `json:"disabled"`

	// DryRunWriter, when set, routes every would-be HTTP request to this
	// writer instead of the network. Replay tooling uses it.
	DryRunWriter io.Writer `json:"-"`

	// InitialURL is the page URL at engine start.
	InitialURL string         `json:"initial_url"`
	Meta       model.PageMeta `json:"meta"`
}

// DefaultConfig returns a config with defaults applied; the API key must
// still be supplied.
func DefaultConfig() *Config {
	return &Config{
		Endpoint:                  "https://collect.optima.dev",
		SampleRate:                100,
		BatchSize:                 constants.DefaultBatchSize,
		BatchTimeout:              constants.DefaultBatchTimeout,
		ContinuousMetricsInterval: constants.ContinuousMetricsInterval,
		EnableRouteChangeTracking: true,
		EnableContinuousMetrics:   true,
	}
}

// ErrMissingAPIKey disables the engine; it is never surfaced to the host.
var ErrMissingAPIKey = errors.New("missing API key")

// Normalize clamps and defaults the config in place and reports whether the
// engine can run at all.
func (c *Config) Normalize() error {
	if c.SampleRate < 1 {
		if c.SampleRate != 0 {
			c.SampleRate = 1
		} else {
			c.SampleRate = 100
		}
	}
	if c.SampleRate > 100 {
		c.SampleRate = 100
	}
	if c.Endpoint == "" {
		c.Endpoint = DefaultConfig().Endpoint
	}
	if c.BatchSize <= 0 {
		c.BatchSize = constants.DefaultBatchSize
	}
	if c.FlushInterval > 0 && c.BatchTimeout <= 0 {
		c.BatchTimeout = c.FlushInterval
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = constants.DefaultBatchTimeout
	}
	if c.ContinuousMetricsInterval <= 0 {
		c.ContinuousMetricsInterval = constants.ContinuousMetricsInterval
	}
	if c.Meta.SDKVersion == "" {
		c.Meta.SDKVersion = Version
	}
	if c.APIKey == "" && c.DryRunWriter == nil {
		return ErrMissingAPIKey
	}
	return nil
}

// sampleSource is stubbed in tests.
var sampleSource = rand.New(rand.NewSource(time.Now().UnixNano()))

// SampledIn decides once per session whether this session is tracked.
func SampledIn(rate int) bool {
	if rate >= 100 {
		return true
	}
	if rate < 1 {
		return false
	}
	return sampleSource.Intn(100) < rate
}
