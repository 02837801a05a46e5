// Package exclusion decides whether a URL belongs to the collector itself or
// to a configured third party and must therefore never be attributed to a
// view. Keeping the engine's own traffic out of the data it reports is what
// stops the collector from measuring itself in a loop.
package exclusion

import "strings"

// internalPatterns match the engine's own traffic. This list can never be
// overridden by configuration.
var internalPatterns = []string{
	"/api/optima/collect",
	"/api/optima/events",
	"/api/optima/identify",
	"optima-rum.js",
	"optima-sdk",
}

// defaultThirdParty is the default third-party exclusion list; a
// user-supplied list replaces it entirely.
var defaultThirdParty = []string{
	"google-analytics.com",
	"googletagmanager.com",
	"doubleclick.net",
	"connect.facebook.net",
	"hotjar.com",
	"segment.com",
	"fullstory.com",
	"newrelic.com",
	"datadoghq.com",
}

// Filter is a pure predicate over URLs.
type Filter struct {
	thirdParty []string
}

// NewFilter builds a filter. A nil userList keeps the default third-party
// exclusions; a non-nil list (including an empty one) replaces them.
func NewFilter(userList []string) *Filter {
	patterns := defaultThirdParty
	if userList != nil {
		patterns = userList
	}
	return &Filter{thirdParty: patterns}
}

// IsInternal reports whether the URL is the engine's own traffic.
func (f *Filter) IsInternal(url string) bool {
	lower := strings.ToLower(url)
	for _, p := range internalPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// IsExcluded reports whether the URL must be dropped, either as internal
// traffic or as a configured third party.
func (f *Filter) IsExcluded(url string) bool {
	if url == "" {
		return false
	}
	if f.IsInternal(url) {
		return true
	}
	lower := strings.ToLower(url)
	for _, p := range f.thirdParty {
		if p != "" && strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// ThirdPartyPatterns returns the active third-party list (status reporting).
func (f *Filter) ThirdPartyPatterns() []string {
	return append([]string(nil), f.thirdParty...)
}
