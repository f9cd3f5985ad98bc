package normalize

import (
	"regexp"
	"strings"
)

var (
	annotationMarker = regexp.MustCompile(`【[^】]*†[^】]*】`)
	multiSpace       = regexp.MustCompile(`\s{2,}`)
)

// StripAnnotations removes file-search citation markers like 【4:0†source】
// from assistant output and collapses the whitespace they leave behind.
func StripAnnotations(s string) string {
	s = annotationMarker.ReplaceAllString(s, "")
	s = multiSpace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
