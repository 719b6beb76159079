// Package util holds small helpers shared across packages.
package util

import "strings"

// NormalizeTagSlug reduces user input to a canonical tag slug. The slug,
// not the display name, is what identifies a tag: "Sci-Fi", "sci fi" and
// "SCI_FI" all resolve to the same one.
//
// Rules: lowercase; spaces, underscores and slashes become dashes;
// everything else non-alphanumeric is dropped; runs of dashes collapse;
// leading and trailing dashes go.
func NormalizeTagSlug(input string) string {
	var b strings.Builder
	b.Grow(len(input))

	lastDash := true // suppresses a leading dash
	for _, r := range strings.ToLower(input) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case r == ' ', r == '\t', r == '\n', r == '_', r == '/', r == '-':
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
		// Anything else, punctuation or emoji, is dropped.
	}

	return strings.TrimSuffix(b.String(), "-")
}
