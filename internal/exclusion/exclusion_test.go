package exclusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsInternal(t *testing.T) {
	f := NewFilter(nil)

	tests := []struct {
		name     string
		url      string
		internal bool
	}{
		{
			name:     "collect endpoint",
			url:      "https://collect.optima.dev/api/optima/collect",
			internal: true,
		},
		{
			name:     "events endpoint",
			url:      "https://collect.optima.dev/api/optima/events",
			internal: true,
		},
		{
			name:     "sdk script",
			url:      "https://cdn.example.com/optima-rum.js?v=3",
			internal: true,
		},
		{
			name:     "application api",
			url:      "https://app.example.com/api/users",
			internal: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.internal, f.IsInternal(tt.url))
		})
	}
}

func TestIsExcludedDefaults(t *testing.T) {
	f := NewFilter(nil)

	assert.True(t, f.IsExcluded("https://www.google-analytics.com/collect"))
	assert.True(t, f.IsExcluded("https://collect.optima.dev/api/optima/collect"))
	assert.False(t, f.IsExcluded("https://app.example.com/main.js"))
}

func TestUserListReplacesDefaults(t *testing.T) {
	f := NewFilter([]string{"cdn.internal.corp"})

	// User list replaces the third-party defaults.
	assert.False(t, f.IsExcluded("https://www.google-analytics.com/collect"))
	assert.True(t, f.IsExcluded("https://cdn.internal.corp/lib.js"))

	// Internal SDK traffic stays excluded no matter what.
	assert.True(t, f.IsExcluded("https://collect.optima.dev/api/optima/identify"))
}

func TestEmptyUserListKeepsInternalOnly(t *testing.T) {
	f := NewFilter([]string{})

	assert.False(t, f.IsExcluded("https://www.google-analytics.com/collect"))
	assert.True(t, f.IsExcluded("https://x.dev/api/optima/collect"))
}
