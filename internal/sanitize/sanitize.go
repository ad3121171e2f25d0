// Package sanitize turns raw model output into a numbered limitation list
// plus a parsed validation block.
//
// The stages are fixed: split off the trailing validation JSON, clean
// decorative markup, extract numbered items (with a per-line fallback), gate
// by topic and negative phrasing, dedup case-insensitively, cap, renumber.
// Any stage that comes up empty collapses the text to the sentinel literal;
// the validation block extracted in stage one is returned either way.
package sanitize

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/quarrylabs/verilim/internal/gate"
	"github.com/quarrylabs/verilim/internal/policy"
	"github.com/quarrylabs/verilim/internal/record"
	"github.com/quarrylabs/verilim/internal/textutil"
)

var (
	// validationJSONRE matches a validation JSON object at the very end of
	// the raw text, allowing trailing whitespace.
	validationJSONRE = regexp.MustCompile(`(?s)(\{\s*"validation"\s*:\s*\[.*?\]\s*\})\s*$`)

	// validationAnywhereRE is the fallback when the block is not trailing;
	// the last occurrence wins.
	validationAnywhereRE = regexp.MustCompile(`(?s)(\{.*"validation"\s*:\s*\[.*?\]\s*\})`)

	// itemMarkerRE locates numbered-item markers like "1. " or "12) " at
	// line starts. Item bodies run from one marker to the next.
	itemMarkerRE = regexp.MustCompile(`(?m)^\s*(\d{1,2})[.)]\s+`)

	leadingNumberRE = regexp.MustCompile(`^\d{1,2}[.)]\s+`)

	// bulletGlyphRE strips decorative markup the model tends to emit.
	bulletGlyphRE = regexp.MustCompile(`[*\x2D\x{2022}\x{2013}\x{2014}]`)

	// citationRE strips bracketed citation markers like [1] or [Doe, 2020].
	citationRE = regexp.MustCompile(`\[(?:\d+|[^\]]+)\]`)
)

// Result is the sanitizer output: the numbered (or sentinel) text and the
// validation block that was split off the raw input.
type Result struct {
	Text       string
	Validation record.ValidationBlock
}

// filterControls keeps only rows whose control tag is in the allowed set.
// This is the extraction-time filter; full row pruning happens later in the
// record validator.
func filterControls(block record.ValidationBlock) record.ValidationBlock {
	var filtered []record.ValidationRow
	for _, row := range block.Validation {
		control := strings.ToLower(strings.TrimSpace(row.Control))
		if control != "" && policy.AllowedControls[control] {
			filtered = append(filtered, row)
		}
	}
	return record.ValidationBlock{Validation: filtered}
}

// ExtractValidation removes and parses any trailing validation JSON block,
// returning the remaining text and the parsed block. When the JSON does not
// parse, the matched region is still removed so malformed blocks never leak
// into the limitation text.
func ExtractValidation(raw string) (string, record.ValidationBlock) {
	if raw == "" {
		return "", record.ValidationBlock{}
	}

	loc := validationJSONRE.FindStringSubmatchIndex(raw)
	if loc == nil {
		all := validationAnywhereRE.FindAllStringSubmatchIndex(raw, -1)
		if len(all) == 0 {
			return raw, record.ValidationBlock{}
		}
		loc = all[len(all)-1]
	}

	jsonPart := raw[loc[2]:loc[3]]
	rest := strings.TrimSpace(raw[:loc[2]])

	var block record.ValidationBlock
	if err := json.Unmarshal([]byte(jsonPart), &block); err != nil {
		return rest, record.ValidationBlock{}
	}
	return rest, filterControls(block)
}

// StripValidationBlock returns numbered text without a trailing validation
// JSON block, leaving non-trailing content alone.
func StripValidationBlock(text string) string {
	if text == "" {
		return ""
	}
	loc := validationJSONRE.FindStringSubmatchIndex(text)
	if loc == nil {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(text[:loc[2]])
}

// extractNumberedItems pulls one sentence per numbered item. Item bodies are
// the text between consecutive markers, so multi-line items collapse to their
// first sentence.
func extractNumberedItems(text string) []string {
	markers := itemMarkerRE.FindAllStringSubmatchIndex(text, -1)
	var items []string
	for i, m := range markers {
		end := len(text)
		if i+1 < len(markers) {
			end = markers[i+1][0]
		}
		body := strings.TrimSpace(text[m[1]:end])
		sentence := textutil.TrimSeparators(textutil.CollapseWhitespace(textutil.FirstSentence(body)))
		if sentence != "" {
			items = append(items, sentence)
		}
	}
	return items
}

// fallbackItems treats every non-empty line as a candidate item when no
// numbered markers were found.
func fallbackItems(text string) []string {
	var items []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		line = leadingNumberRE.ReplaceAllString(line, "")
		sentence := textutil.TrimSeparators(textutil.CollapseWhitespace(textutil.FirstSentence(line)))
		if sentence != "" {
			items = append(items, sentence)
		}
	}
	return items
}

// Sanitize enforces numbering, single-sentence items, gating, deduplication,
// and validation structure on raw model output. Minimum item count is not
// enforced here; the record validator owns that. maxItems caps the list
// length after dedup.
func Sanitize(raw, description string, maxItems int) Result {
	textPart, validation := ExtractValidation(raw)

	sentinel := Result{Text: policy.SentinelText, Validation: validation}

	if strings.TrimSpace(textPart) == "" {
		return sentinel
	}

	cleaned := strings.ReplaceAll(textPart, "\r\n", "\n")
	cleaned = strings.ReplaceAll(cleaned, "\r", "\n")
	cleaned = bulletGlyphRE.ReplaceAllString(cleaned, "")
	cleaned = citationRE.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(cleaned)

	items := extractNumberedItems(cleaned)
	if len(items) == 0 {
		items = fallbackItems(cleaned)
	}
	if len(items) == 0 {
		return sentinel
	}

	gated := gate.EnforceTopicGate(items, description)
	if len(gated) == 0 {
		return sentinel
	}

	seen := make(map[string]bool, len(gated))
	var deduped []string
	for _, sentence := range gated {
		lowered := strings.ToLower(sentence)
		if !seen[lowered] {
			seen[lowered] = true
			deduped = append(deduped, sentence)
		}
	}
	if len(deduped) == 0 {
		return sentinel
	}
	if maxItems > 0 && len(deduped) > maxItems {
		deduped = deduped[:maxItems]
	}

	var b strings.Builder
	for i, sentence := range deduped {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d. %s", i+1, sentence)
	}
	return Result{Text: b.String(), Validation: validation}
}
