package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer strips every HTML element from member-supplied text. Titles,
// descriptions and locations are stored and rendered as plain text.
type Sanitizer struct {
	policy *bluemonday.Policy
}

func New() Sanitizer {
	return Sanitizer{policy: bluemonday.StrictPolicy()}
}

func (s Sanitizer) Sanitize(value string) string {
	policy := s.policy
	if policy == nil {
		policy = bluemonday.StrictPolicy()
	}
	escaped := policy.Sanitize(value)
	plain := html.UnescapeString(escaped)
	// Unescaping must not turn encoded input back into markup.
	if strings.ContainsAny(plain, "<>") {
		return strings.TrimSpace(escaped)
	}
	return strings.TrimSpace(plain)
}
