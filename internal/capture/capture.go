// Package capture attributes host-page errors (global error events,
// unhandled rejections, console.error calls) to the active view, with
// content-hash deduplication and near-duplicate suppression so an error
// storm cannot flood a payload.
package capture

import (
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/penwyp/go-optima-rum/internal/core/constants"
	"github.com/penwyp/go-optima-rum/internal/core/model"
	"github.com/penwyp/go-optima-rum/internal/core/view"
	"github.com/penwyp/go-optima-rum/internal/util"
)

// Capture deduplicates and records host-page errors.
type Capture struct {
	mu     sync.Mutex
	views  *view.Manager
	window time.Duration
	now    func() time.Time

	seenInView map[string]struct{}  // content hashes recorded in the active view
	recent     map[string]time.Time // message+file, last occurrence inside the near-dup window
}

// NewCapture creates an error capture bound to the view manager.
func NewCapture(views *view.Manager) *Capture {
	return &Capture{
		views:      views,
		window:     constants.ErrorDedupWindow,
		now:        time.Now,
		seenInView: make(map[string]struct{}),
		recent:     make(map[string]time.Time),
	}
}

// SetClock overrides the wall clock (tests).
func (c *Capture) SetClock(now func() time.Time) {
	c.now = now
}

// Teardown satisfies the view collaborator contract.
func (c *Capture) Teardown() {}

// StartView resets the per-view hash set. The near-duplicate window carries
// across views: an error storm spanning a route change is still a storm.
func (c *Capture) StartView(v *model.View) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seenInView = make(map[string]struct{})
}

// OnError processes a captured error signal. Returns true when a record was
// added or folded into an existing one, false when suppressed or when no
// view was active.
func (c *Capture) OnError(sig *model.Signal) bool {
	e := sig.Error
	if e == nil || e.Message == "" {
		return false
	}

	hash := ContentHash(e)
	nearKey := e.Message + "\x00" + e.File
	now := c.now()

	c.mu.Lock()
	if last, ok := c.recent[nearKey]; ok && now.Sub(last) <= c.window {
		c.recent[nearKey] = now
		c.mu.Unlock()
		return false
	}
	c.recent[nearKey] = now
	c.pruneLocked(now)

	_, repeat := c.seenInView[hash]
	c.seenInView[hash] = struct{}{}
	c.mu.Unlock()

	if repeat {
		return c.views.BumpErrorCount(hash)
	}

	added := c.views.AddError(model.ErrorRecord{
		Source:    e.Source,
		Type:      e.Type,
		Message:   e.Message,
		File:      e.File,
		Line:      e.Line,
		Stack:     e.Stack,
		Hash:      hash,
		Count:     1,
		Timestamp: now,
	})
	if added {
		util.LogDebugf("Captured %s error: %s", e.Source, e.Message)
	}
	return added
}

// pruneLocked drops near-dup entries older than the window so the map stays
// bounded under sustained error storms.
func (c *Capture) pruneLocked(now time.Time) {
	for k, t := range c.recent {
		if now.Sub(t) > 10*c.window {
			delete(c.recent, k)
		}
	}
}

// ContentHash fingerprints an error by type, message, source location and a
// stack prefix. The prefix bound keeps hashing cheap and makes errors that
// differ only deep in the stack fold together.
func ContentHash(e *model.ErrorSignal) string {
	stack := e.Stack
	if len(stack) > constants.ErrorStackHashLimit {
		stack = stack[:constants.ErrorStackHashLimit]
	}
	h := xxhash.New()
	fmt.Fprintf(h, "%s|%s|%s:%d|%s", e.Type, e.Message, e.File, e.Line, stack)
	return fmt.Sprintf("%016x", h.Sum64())
}
