// Package hashtag turns raw hashtag input into bare, ordered tag strings.
package hashtag

import (
	"regexp"
	"strings"
)

var separators = regexp.MustCompile(`[\s,]+`)

// Parse splits raw text on runs of whitespace and commas and normalizes
// every token. Empty input yields an empty, non-nil slice.
func Parse(raw string) []string {
	return Normalize(separators.Split(raw, -1))
}

// Normalize strips any run of leading '#' or '%' from each token, trims it
// and drops tokens left empty. Input order is kept and duplicates survive.
// Tokens that still contain separators are split as Parse would.
func Normalize(tokens []string) []string {
	tags := make([]string, 0, len(tokens))
	for _, token := range tokens {
		for _, part := range separators.Split(token, -1) {
			tag := strings.TrimSpace(strings.TrimLeft(part, "#%"))
			if tag != "" {
				tags = append(tags, tag)
			}
		}
	}
	return tags
}

// ArchiveName picks the default archive file name for a combined run:
// the target user when given, else the first tag, else fallback.
func ArchiveName(tags []string, targetUser, fallback string) string {
	switch {
	case strings.TrimSpace(targetUser) != "":
		return strings.TrimSpace(targetUser) + ".epub"
	case len(tags) > 0:
		return tags[0] + ".epub"
	default:
		return fallback
	}
}
