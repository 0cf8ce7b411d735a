// Package parser turns raw catalog markup into records. Every field is read
// by a small pure extractor over the immutable page text; extractors for
// the same field are folded with firstOf so the first hit wins.
package parser

import (
	"html"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// extractor reads one typed value out of page text.
type extractor[T any] func(text string) (T, bool)

// firstOf returns an extractor yielding the result of the first extractor
// that succeeds.
func firstOf[T any](extractors ...extractor[T]) extractor[T] {
	return func(text string) (T, bool) {
		for _, extract := range extractors {
			if v, ok := extract(text); ok {
				return v, true
			}
		}
		var zero T
		return zero, false
	}
}

// submatch extracts the first capture group of re as cleaned text.
func submatch(re *regexp.Regexp) extractor[string] {
	return func(text string) (string, bool) {
		m := re.FindStringSubmatch(text)
		if m == nil {
			return "", false
		}
		v := cleanText(m[1])
		return v, v != ""
	}
}

var whitespaceRegex = regexp.MustCompile(`\s+`)

// cleanText unescapes entities, collapses whitespace and normalizes to NFC.
func cleanText(s string) string {
	s = html.UnescapeString(s)
	s = whitespaceRegex.ReplaceAllString(s, " ")
	return norm.NFC.String(strings.TrimSpace(s))
}
