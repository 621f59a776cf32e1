package relay

import (
	"html"
	"strings"

	"github.com/aquilax/truncate"
	"github.com/microcosm-cc/bluemonday"
)

const maxNameLen = 24

var namePolicy = bluemonday.StrictPolicy()

// SanitizeName strips markup from a nickname and bounds its length.
func SanitizeName(name string) string {
	clean := strings.TrimSpace(namePolicy.Sanitize(html.UnescapeString(name)))
	clean = truncate.Truncate(clean, maxNameLen, "", truncate.PositionEnd)
	if clean == "" {
		return "anon"
	}
	return clean
}
