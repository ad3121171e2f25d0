// Package evidence checks validation-row evidence pointers and canonicalizes
// module labels.
package evidence

import (
	"net/url"
	"sort"
	"strings"

	"github.com/quarrylabs/verilim/internal/policy"
)

type normalization struct {
	pattern   string // lower-case token or alias
	canonical string
}

// normalizationTokens is ModulesOrdered plus the alias table, sorted
// longest-pattern-first so "opentext infoarchive" resolves before the bare
// "infoarchive" alias and "employee central payroll" before "employee
// central".
var normalizationTokens = func() []normalization {
	var tokens []normalization
	for _, label := range policy.ModulesOrdered {
		tokens = append(tokens, normalization{strings.ToLower(label), label})
	}
	for alias, label := range policy.ModuleAliases {
		tokens = append(tokens, normalization{alias, label})
	}
	sort.SliceStable(tokens, func(i, j int) bool {
		if len(tokens[i].pattern) != len(tokens[j].pattern) {
			return len(tokens[i].pattern) > len(tokens[j].pattern)
		}
		return tokens[i].pattern < tokens[j].pattern
	})
	return tokens
}()

// IsAuthoritative reports whether the URL belongs to an allowed authoritative
// domain. Userinfo and port are stripped before the suffix check. Anything
// unparseable is not authoritative.
func IsAuthoritative(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.TrimSuffix(strings.ToLower(parsed.Host), ".")
	if at := strings.LastIndex(host, "@"); at >= 0 {
		host = host[at+1:]
	}
	if colon := strings.Index(host, ":"); colon >= 0 {
		host = host[:colon]
	}
	if host == "" {
		return false
	}
	for _, suffix := range policy.AuthoritativeSuffixes {
		if host == suffix || strings.HasSuffix(host, suffix) {
			return true
		}
	}
	return false
}

// NormalizeModule resolves loose module spellings into the canonical label.
// Matching is case-insensitive and word-boundary safe, so "ec" will not match
// inside "recruiting". Returns "" when no known module is found.
func NormalizeModule(value string) string {
	lowered := strings.ToLower(strings.TrimSpace(value))
	if lowered == "" {
		return ""
	}
	for _, token := range normalizationTokens {
		if containsWord(lowered, token.pattern) {
			return token.canonical
		}
	}
	return ""
}

func isWordChar(b byte) bool {
	return b == '_' ||
		(b >= '0' && b <= '9') ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z')
}

// containsWord reports whether needle occurs in haystack with non-word
// characters (or string edges) on both sides.
func containsWord(haystack, needle string) bool {
	for start := 0; ; {
		idx := strings.Index(haystack[start:], needle)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(needle)
		leftOK := idx == 0 || !isWordChar(haystack[idx-1])
		rightOK := end == len(haystack) || !isWordChar(haystack[end])
		if leftOK && rightOK {
			return true
		}
		start = idx + 1
	}
}
