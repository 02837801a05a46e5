// Package sender formats and transmits view payloads to the collector, with
// an immediate-vs-batched delivery policy, bounded batching, and a
// beacon-style synchronous path for unload.
package sender

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/bytedance/sonic"

	"github.com/penwyp/go-optima-rum/internal/core/constants"
)

// Collector API paths.
const (
	CollectPath  = "/api/optima/collect"
	EventsPath   = "/api/optima/events"
	IdentifyPath = "/api/optima/identify"

	apiKeyHeader = "X-Optima-Api-Key"
)

// Transport posts JSON bodies to the collector. The core treats delivery as
// fire-and-forget: a payload counts as sent once the transmit call returns.
type Transport struct {
	endpoint string
	apiKey   string
	client   *http.Client
	beacon   *http.Client
	dryRun   io.Writer // when set, payloads are written here instead of posted
}

// NewTransport creates a transport for the given collector endpoint.
func NewTransport(endpoint, apiKey string) *Transport {
	return &Transport{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: constants.SendTimeout},
		beacon:   &http.Client{Timeout: constants.BeaconSendTimeout},
	}
}

// NewDryRunTransport writes every would-be request to w instead of posting.
func NewDryRunTransport(w io.Writer) *Transport {
	t := NewTransport("", "")
	t.dryRun = w
	return t
}

// Post sends a JSON body with the API key in a header.
func (t *Transport) Post(ctx context.Context, path string, body interface{}) error {
	data, err := sonic.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	if t.dryRun != nil {
		return t.writeDryRun(path, data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(apiKeyHeader, t.apiKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("post %s: status %d", path, resp.StatusCode)
	}
	return nil
}

// PostBeacon sends synchronously with a short timeout, carrying the API key
// as a query parameter the way sendBeacon-style transports must (no
// custom headers on unload paths). The response body is ignored.
func (t *Transport) PostBeacon(path string, body interface{}) error {
	data, err := sonic.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal beacon payload: %w", err)
	}
	if t.dryRun != nil {
		return t.writeDryRun(path, data)
	}

	u := t.endpoint + path + "?api_key=" + url.QueryEscape(t.apiKey)
	req, err := http.NewRequest(http.MethodPost, u, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build beacon request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.beacon.Do(req)
	if err != nil {
		return fmt.Errorf("beacon %s: %w", path, err)
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("beacon %s: status %d", path, resp.StatusCode)
	}
	return nil
}

func (t *Transport) writeDryRun(path string, data []byte) error {
	_, err := fmt.Fprintf(t.dryRun, "%s %s\n", path, data)
	return err
}

// now is stubbed in tests.
var now = time.Now
