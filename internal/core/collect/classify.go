// Package collect holds the view-scoped performance collectors: resource
// timing attribution and web-vitals recording.
package collect

import (
	"net/url"
	"path"
	"strings"

	"github.com/penwyp/go-optima-rum/internal/core/model"
)

var extensionTypes = map[string]model.ResourceType{
	".js":    model.ResourceScript,
	".mjs":   model.ResourceScript,
	".css":   model.ResourceStylesheet,
	".png":   model.ResourceImage,
	".jpg":   model.ResourceImage,
	".jpeg":  model.ResourceImage,
	".gif":   model.ResourceImage,
	".webp":  model.ResourceImage,
	".svg":   model.ResourceImage,
	".ico":   model.ResourceImage,
	".avif":  model.ResourceImage,
	".woff":  model.ResourceFont,
	".woff2": model.ResourceFont,
	".ttf":   model.ResourceFont,
	".otf":   model.ResourceFont,
	".eot":   model.ResourceFont,
	".mp4":   model.ResourceMedia,
	".webm":  model.ResourceMedia,
	".mp3":   model.ResourceMedia,
	".wav":   model.ResourceMedia,
	".ogg":   model.ResourceMedia,
	".m4a":   model.ResourceMedia,
	".mov":   model.ResourceMedia,
}

// urlExtension extracts the lowercase filename extension, ignoring query and
// fragment.
func urlExtension(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return strings.ToLower(path.Ext(rawURL))
	}
	return strings.ToLower(path.Ext(u.Path))
}

// ClassifyResourceType determines the resource type. The filename extension
// wins over the initiator type so that a .js file delivered through a <link>
// preload still classifies as a script.
func ClassifyResourceType(rawURL, initiatorType string) model.ResourceType {
	if t, ok := extensionTypes[urlExtension(rawURL)]; ok {
		return t
	}
	switch strings.ToLower(initiatorType) {
	case "script":
		return model.ResourceScript
	case "link", "css":
		return model.ResourceStylesheet
	case "img", "image":
		return model.ResourceImage
	case "media", "video", "audio":
		return model.ResourceMedia
	default:
		return model.ResourceOther
	}
}

// ClassifyCacheStatus determines delivery: zero transfer with a non-zero
// encoded body means the browser served it from cache; any transfer means
// the network was hit.
func ClassifyCacheStatus(transferSize, encodedBodySize int64) model.CacheStatus {
	if transferSize == 0 && encodedBodySize > 0 {
		return model.CacheHit
	}
	if transferSize > 0 {
		return model.CacheNetwork
	}
	return model.CacheUnknown
}

var ajaxPathMarkers = []string{"/api/", "/ajax/", "/graphql"}

// IsAjaxResource reports whether a resource entry also qualifies as an AJAX
// request: explicit xhr/fetch initiators always do; otherwise the URL must
// look like an API path and must not be a static asset.
func IsAjaxResource(rawURL, initiatorType string) bool {
	switch strings.ToLower(initiatorType) {
	case "xmlhttprequest", "xhr", "fetch":
		return true
	}
	if _, static := extensionTypes[urlExtension(rawURL)]; static {
		return false
	}
	lower := strings.ToLower(rawURL)
	for _, marker := range ajaxPathMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
