// Package textutil provides sentence-level text helpers for the sanitizer.
package textutil

import (
	"regexp"
	"strings"
)

// abbreviationRE matches a single capital letter followed by a period,
// e.g. the "S." in "S. 4HANA" or an initial in a cited author name.
var abbreviationRE = regexp.MustCompile(`^[A-Z]\.$`)

// terminatorRE matches sentence-terminator punctuation only when followed by
// whitespace or end of text, so decimals ("3.5 million") and version numbers
// never split a sentence.
var terminatorRE = regexp.MustCompile(`[.!?](\s|$)`)

var whitespaceRE = regexp.MustCompile(`\s+`)

// FirstSentence extracts the first sentence from text without breaking URLs
// or single-letter abbreviations. If no valid terminator is found the whole
// trimmed string is returned.
func FirstSentence(text string) string {
	txt := strings.TrimSpace(text)

	for _, loc := range terminatorRE.FindAllStringIndex(txt, -1) {
		// loc[0] is the terminator rune; the trailing whitespace (if any)
		// stays out of the candidate.
		candidate := strings.TrimSpace(txt[:loc[0]+1])
		if candidate == "" {
			continue
		}

		fields := strings.Fields(candidate)
		lastToken := fields[len(fields)-1]
		if strings.HasPrefix(lastToken, "http") {
			continue
		}
		if abbreviationRE.MatchString(lastToken) {
			continue
		}
		return candidate
	}
	return txt
}

// CollapseWhitespace reduces internal whitespace runs to a single space and
// trims the result.
func CollapseWhitespace(text string) string {
	return strings.TrimSpace(whitespaceRE.ReplaceAllString(text, " "))
}

// TrimSeparators strips leading/trailing separator punctuation left behind by
// bullet and citation stripping.
func TrimSeparators(text string) string {
	return strings.Trim(text, " -;:,")
}
