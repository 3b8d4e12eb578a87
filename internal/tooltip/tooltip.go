// Package tooltip parses the hover text attached to a ranked list entry.
//
// A tooltip reads "<title> (<year>) <stars>", for example
// "Oldboy (2003 version) (2003) ★★★★". The year and rating are anchored at
// the end of the string so titles may themselves contain parentheses.
package tooltip

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// StarGlyph is the only glyph counted as a rating unit by the parser.
const StarGlyph = "★"

// Separators accept any Unicode space so a non-breaking space between the
// year and the stars still parses.
var pattern = regexp.MustCompile(`^(.+?)[\s\p{Zs}]\((\d{4})\)[\s\p{Zs}](★+)$`)

// Candidate holds the exact substrings captured from one tooltip.
type Candidate struct {
	Title string
	Year  string
	Stars string
}

// Parse matches raw against the tooltip shape. It reports false for anything
// that does not match: missing year, missing stars, trailing text after the
// stars, or an empty title.
func Parse(raw string) (Candidate, bool) {
	m := pattern.FindStringSubmatch(raw)
	if m == nil {
		return Candidate{}, false
	}
	return Candidate{Title: m[1], Year: m[2], Stars: m[3]}, true
}

// Rating converts a star token to a numeric rating: one point per glyph after
// trimming surrounding whitespace. Any glyph counts as a whole point, so a
// half-star "½" is counted as 1. An empty token yields 0.
func Rating(stars string) int {
	return utf8.RuneCountInString(strings.TrimSpace(stars))
}
