package collect

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/penwyp/go-optima-rum/internal/core/model"
)

func TestClassifyResourceType(t *testing.T) {
	tests := []struct {
		name          string
		url           string
		initiatorType string
		expected      model.ResourceType
	}{
		{
			name:          "script by extension",
			url:           "https://cdn.app.dev/bundle.js?v=12",
			initiatorType: "script",
			expected:      model.ResourceScript,
		},
		{
			name:          "extension wins over initiator",
			url:           "https://cdn.app.dev/chunk.js",
			initiatorType: "link",
			expected:      model.ResourceScript,
		},
		{
			name:          "stylesheet",
			url:           "https://cdn.app.dev/app.css",
			initiatorType: "link",
			expected:      model.ResourceStylesheet,
		},
		{
			name:          "image",
			url:           "https://cdn.app.dev/hero.webp",
			initiatorType: "img",
			expected:      model.ResourceImage,
		},
		{
			name:          "font",
			url:           "https://cdn.app.dev/inter.woff2",
			initiatorType: "css",
			expected:      model.ResourceFont,
		},
		{
			name:          "media",
			url:           "https://cdn.app.dev/intro.mp4",
			initiatorType: "video",
			expected:      model.ResourceMedia,
		},
		{
			name:          "initiator fallback for extensionless URL",
			url:           "https://cdn.app.dev/render",
			initiatorType: "img",
			expected:      model.ResourceImage,
		},
		{
			name:          "unknown",
			url:           "https://app.dev/api/data",
			initiatorType: "fetch",
			expected:      model.ResourceOther,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClassifyResourceType(tt.url, tt.initiatorType))
		})
	}
}

func TestClassifyCacheStatus(t *testing.T) {
	tests := []struct {
		name            string
		transferSize    int64
		encodedBodySize int64
		expected        model.CacheStatus
	}{
		{
			name:            "cache hit",
			transferSize:    0,
			encodedBodySize: 48211,
			expected:        model.CacheHit,
		},
		{
			name:            "network",
			transferSize:    48500,
			encodedBodySize: 48211,
			expected:        model.CacheNetwork,
		},
		{
			name:            "cross-origin opaque",
			transferSize:    0,
			encodedBodySize: 0,
			expected:        model.CacheUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClassifyCacheStatus(tt.transferSize, tt.encodedBodySize))
		})
	}
}

func TestIsAjaxResource(t *testing.T) {
	tests := []struct {
		name          string
		url           string
		initiatorType string
		expected      bool
	}{
		{
			name:          "xhr initiator",
			url:           "https://app.dev/data",
			initiatorType: "xmlhttprequest",
			expected:      true,
		},
		{
			name:          "fetch initiator",
			url:           "https://app.dev/data",
			initiatorType: "fetch",
			expected:      true,
		},
		{
			name:          "api path heuristic",
			url:           "https://app.dev/api/users",
			initiatorType: "other",
			expected:      true,
		},
		{
			name:          "graphql path heuristic",
			url:           "https://app.dev/graphql",
			initiatorType: "other",
			expected:      true,
		},
		{
			name:          "static asset on api path",
			url:           "https://app.dev/api/docs/logo.png",
			initiatorType: "img",
			expected:      false,
		},
		{
			name:          "plain script",
			url:           "https://cdn.app.dev/bundle.js",
			initiatorType: "script",
			expected:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsAjaxResource(tt.url, tt.initiatorType))
		})
	}
}
