// Package route turns raw navigation signals into view transitions. It
// decides which URL changes are meaningful and resolves the resource-filter
// baseline for the new view.
package route

import (
	"net/url"
	"time"

	"github.com/penwyp/go-optima-rum/internal/core/constants"
	"github.com/penwyp/go-optima-rum/internal/core/model"
	"github.com/penwyp/go-optima-rum/internal/core/view"
	"github.com/penwyp/go-optima-rum/internal/util"
)

// Config carries the empirically chosen detection thresholds. They are
// configuration, not constants: the recency window and keyword set were
// tuned against real traffic and remain open to product-level adjustment.
type Config struct {
	// InteractionRecencyWindow is how far back a navigational interaction
	// may lie and still serve as the resource-filter baseline.
	InteractionRecencyWindow time.Duration
	// NavigationKeywords are class-name fragments that mark an element as
	// navigational.
	NavigationKeywords []string
	// AncestorDepth is how many ancestor levels the navigational-element
	// heuristic climbs.
	AncestorDepth int
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		InteractionRecencyWindow: constants.InteractionRecencyWindow,
		NavigationKeywords:       []string{"nav", "link", "button", "menu", "tab"},
		AncestorDepth:            constants.NavigationAncestorDepth,
	}
}

// recentInteraction remembers the last navigational user input.
type recentInteraction struct {
	relTime float64
	valid   bool
}

// Detector observes navigation and interaction signals and triggers view
// transitions on the manager.
type Detector struct {
	cfg        Config
	manager    *view.Manager
	currentURL string
	lastNav    recentInteraction
}

// NewDetector creates a detector tracking from the given initial URL.
func NewDetector(cfg Config, manager *view.Manager, initialURL string) *Detector {
	if cfg.InteractionRecencyWindow <= 0 {
		cfg.InteractionRecencyWindow = constants.InteractionRecencyWindow
	}
	if cfg.AncestorDepth <= 0 {
		cfg.AncestorDepth = constants.NavigationAncestorDepth
	}
	if len(cfg.NavigationKeywords) == 0 {
		cfg.NavigationKeywords = DefaultConfig().NavigationKeywords
	}
	return &Detector{
		cfg:        cfg,
		manager:    manager,
		currentURL: initialURL,
	}
}

// CurrentURL returns the URL the detector currently tracks.
func (d *Detector) CurrentURL() string {
	return d.currentURL
}

// OnInteraction records a user input. Only inputs on navigational elements
// are remembered as baseline candidates: a click that cannot cause a
// navigation must not pull the resource filter backwards.
func (d *Detector) OnInteraction(sig *model.Signal) {
	in := sig.Interaction
	if in == nil {
		return
	}
	switch in.Kind {
	case "click", "touchstart", "pointerdown", "keydown":
	default:
		return
	}
	if !IsNavigational(&in.Element, d.cfg.NavigationKeywords, d.cfg.AncestorDepth) {
		return
	}
	d.lastNav = recentInteraction{relTime: sig.RelTime, valid: true}
}

// OnNavigation handles a navigation signal. The signal's RelTime is the
// trigger timestamp captured when the hook fired in the page; it is used
// as-is, never re-derived at processing time. Returns the started view, or
// nil if the change was not meaningful.
func (d *Detector) OnNavigation(sig *model.Signal) *model.View {
	nav := sig.Navigation
	if nav == nil || nav.URL == "" {
		return nil
	}

	if !IsMeaningfulChange(d.currentURL, nav.URL) {
		// Track the URL so a later meaningful change diffs against the
		// page's real location.
		d.currentURL = nav.URL
		return nil
	}

	trigger := sig.RelTime
	baseline := d.resolveBaseline(trigger)
	d.currentURL = nav.URL
	d.lastNav = recentInteraction{}

	util.LogDebugf("Route change via %s to %s trigger=%.1fms", nav.Method, nav.URL, trigger)

	return d.manager.StartNewView(model.ViewRouteChange, nav.URL, nav.Method, trigger, baseline, &trigger)
}

// resolveBaseline prefers a recent navigational interaction over the raw
// trigger: a user-initiated navigation should attribute resources from the
// moment of intent, not the moment the framework reacted.
func (d *Detector) resolveBaseline(triggerRelTime float64) *float64 {
	if !d.lastNav.valid {
		return nil
	}
	windowMs := float64(d.cfg.InteractionRecencyWindow.Milliseconds())
	age := triggerRelTime - d.lastNav.relTime
	if age < 0 || age > windowMs {
		return nil
	}
	b := d.lastNav.relTime
	return &b
}

// IsMeaningfulChange reports whether navigating from oldURL to newURL is a
// view transition. Origin or pathname differences count, as does a
// non-trivial hash difference. Pure query-string changes do not.
func IsMeaningfulChange(oldURL, newURL string) bool {
	if oldURL == newURL {
		return false
	}

	prev, err1 := url.Parse(oldURL)
	next, err2 := url.Parse(newURL)
	if err1 != nil || err2 != nil {
		return oldURL != newURL
	}

	if prev.Scheme != next.Scheme || prev.Host != next.Host {
		return true
	}
	if normalizePath(prev.Path) != normalizePath(next.Path) {
		return true
	}
	if prev.Fragment != next.Fragment && next.Fragment != "" {
		return true
	}
	return false
}

// normalizePath treats "" and "/" as the same document.
func normalizePath(p string) string {
	if p == "" {
		return "/"
	}
	return p
}
