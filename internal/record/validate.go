package record

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/quarrylabs/verilim/internal/evidence"
	"github.com/quarrylabs/verilim/internal/policy"
)

var numberedLineRE = regexp.MustCompile(`^\d+[.)]\s+`)

// extractNumberedLines returns the lines of text that start with a numbered
// marker. This is a line-based count, deliberately simpler than the
// sentence-based extraction the sanitizer performs.
func extractNumberedLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if numberedLineRE.MatchString(line) {
			lines = append(lines, line)
		}
	}
	return lines
}

// validationRows reads the record's validation block regardless of whether it
// was produced by this process (a ValidationBlock) or decoded from JSONL
// (a map). Anything unrecognizable yields no rows.
func validationRows(rec Record) []ValidationRow {
	switch v := rec[KeyValidation].(type) {
	case ValidationBlock:
		return v.Validation
	case *ValidationBlock:
		if v != nil {
			return v.Validation
		}
	case map[string]any:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		var block ValidationBlock
		if err := json.Unmarshal(raw, &block); err != nil {
			return nil
		}
		return block.Validation
	}
	return nil
}

// pruneRows drops rows that fail any well-formedness test: empty object,
// unrecognized module, control outside the allowed set, evidence that is
// neither an authoritative URL nor an SAP KBA citation, or empty impact.
// Surviving rows get their module canonicalized. No partial fixes.
func pruneRows(rows []ValidationRow) []ValidationRow {
	var pruned []ValidationRow
	for _, row := range rows {
		obj := strings.TrimSpace(row.Object)
		module := evidence.NormalizeModule(row.Module)
		control := strings.ToLower(strings.TrimSpace(row.Control))
		impact := strings.TrimSpace(row.Impact)
		pointer := strings.TrimSpace(row.EvidencePointer)

		evidenceOK := pointer != "" &&
			(evidence.IsAuthoritative(pointer) || strings.HasPrefix(strings.ToLower(pointer), "sap kba"))

		if obj == "" || module == "" || !policy.AllowedControls[control] || !evidenceOK || impact == "" {
			continue
		}
		cleaned := row
		cleaned.Module = module
		pruned = append(pruned, cleaned)
	}
	return pruned
}

// Validate cross-checks the sanitized text against the validation rows and
// returns a modified copy of the record carrying processed, metrics, and
// failure_reason. Violations accumulate rather than short-circuiting so the
// failure reason names every problem at once.
func Validate(rec Record, minItems int) Record {
	out := rec.Clone()

	rawText, _ := out[KeyResearchAnalysis].(string)
	text := strings.TrimSpace(rawText)

	items := extractNumberedLines(text)
	rows := validationRows(out)
	sentinel := policy.IsSentinel(rawText)

	var violations []string

	if sentinel && len(rows) > 0 {
		violations = append(violations, "sentinel_with_validation")
	}
	if !sentinel && len(items) < minItems {
		violations = append(violations, fmt.Sprintf("min_items<%d", minItems))
	}

	pruned := pruneRows(rows)

	if !sentinel && len(pruned) == 0 {
		violations = append(violations, "missing_validation")
	}
	if !sentinel && len(pruned) > 0 && len(pruned) > len(items) {
		violations = append(violations, "validation_count>items")
	}

	out[KeyValidation] = ValidationBlock{Validation: pruned}

	if sentinel {
		out[KeyProcessed] = len(violations) == 0
	} else {
		out[KeyProcessed] = len(items) >= minItems &&
			len(pruned) == len(items) &&
			len(violations) == 0
	}

	out[KeyMetrics] = Metrics{
		Items:          len(items),
		ValidationRows: len(pruned),
		MinItems:       minItems,
	}

	if len(violations) > 0 {
		out[KeyFailureReason] = strings.Join(violations, ",")
	} else {
		delete(out, KeyFailureReason)
	}
	return out
}
