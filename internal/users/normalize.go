package users

import (
	"regexp"
	"strings"
	"unicode"
)

var handlePattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// NormalizeHandle lowercases the raw input and strips whitespace together
// with invisible formatting runes (zero-width spaces and similar) that
// mobile keyboards tend to smuggle in. Normalizing twice gives the same
// result as normalizing once.
func NormalizeHandle(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range strings.ToLower(raw) {
		if unicode.IsSpace(r) || unicode.IsControl(r) || unicode.Is(unicode.Cf, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ValidHandle reports whether a normalized handle consists solely of
// lowercase letters, digits and underscores.
func ValidHandle(handle string) bool {
	return handlePattern.MatchString(handle)
}
