package extract

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// NFKD then drop combining marks: "Hà Nội" -> "Ha Noi".
	markStripper = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))

	reSpaces = regexp.MustCompile(`\s+`)
)

// Normalize produces the comparison key for a line of recognized text:
// diacritics stripped, lowercased, inner whitespace collapsed, trimmed.
// Used for label matching only; output values keep their original form.
// Idempotent: Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	stripped, _, err := transform.String(markStripper, s)
	if err != nil {
		stripped = s
	}
	stripped = strings.ToLower(strings.TrimSpace(stripped))
	return reSpaces.ReplaceAllString(stripped, " ")
}
