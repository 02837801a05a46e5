package route

import (
	"strings"

	"github.com/penwyp/go-optima-rum/internal/core/model"
)

// IsNavigational reports whether an element can plausibly cause a
// navigation: a link or button, an element carrying href/onclick/data-route,
// a class name containing one of the keywords, or any ancestor within depth
// levels satisfying the same test.
func IsNavigational(el *model.ElementInfo, keywords []string, depth int) bool {
	current := el
	for level := 0; current != nil && level <= depth; level++ {
		if elementIsNavigational(current, keywords) {
			return true
		}
		current = current.Parent
	}
	return false
}

func elementIsNavigational(el *model.ElementInfo, keywords []string) bool {
	switch strings.ToLower(el.Tag) {
	case "a", "button":
		return true
	}
	if el.Href != "" || el.HasOnClick || el.DataRoute != "" {
		return true
	}
	class := strings.ToLower(el.ClassName)
	for _, kw := range keywords {
		if strings.Contains(class, kw) {
			return true
		}
	}
	return false
}
