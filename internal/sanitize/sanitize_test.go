package sanitize

import (
	"fmt"
	"strings"
	"testing"

	"github.com/quarrylabs/verilim/internal/policy"
)

const workflowDescription = "Approval workflow for job requisitions."

func TestExtractValidation_TrailingBlock(t *testing.T) {
	raw := "1. The route map cannot notify operators.\n" +
		`{"validation": [{"item": 1, "object": "Route Map", "module": "RCM", "impact": "x", "evidence_pointer": "https://help.sap.com/a", "control": "audit-trail"}]}`

	text, block := ExtractValidation(raw)

	if strings.Contains(text, "validation") {
		t.Errorf("JSON block should be removed from text, got %q", text)
	}
	if len(block.Validation) != 1 {
		t.Fatalf("Expected 1 row, got %d", len(block.Validation))
	}
	if block.Validation[0].Object != "Route Map" {
		t.Errorf("Unexpected row: %+v", block.Validation[0])
	}
}

func TestExtractValidation_NonTrailingBlockStillParsed(t *testing.T) {
	raw := "1. Text before the block.\n" +
		`{"validation": [{"item": 1, "control": "privacy", "object": "A"}]}` + "\n" +
		"Trailing commentary after the block.\n"

	text, block := ExtractValidation(raw)

	if len(block.Validation) != 1 {
		t.Fatalf("Expected fallback match to parse 1 row, got %d", len(block.Validation))
	}
	// Everything from the block onward is cut, trailing commentary included.
	if text != "1. Text before the block." {
		t.Errorf("Unexpected remaining text: %q", text)
	}
}

func TestExtractValidation_DropsDisallowedControls(t *testing.T) {
	raw := `{"validation": [` +
		`{"item": 1, "control": "audit-trail", "object": "A"},` +
		`{"item": 2, "control": "velocity", "object": "B"},` +
		`{"item": 3, "control": "", "object": "C"}` +
		`]}`

	_, block := ExtractValidation(raw)

	if len(block.Validation) != 1 {
		t.Fatalf("Expected only the allowed control to survive, got %d rows", len(block.Validation))
	}
	if block.Validation[0].Control != "audit-trail" {
		t.Errorf("Unexpected surviving row: %+v", block.Validation[0])
	}
}

func TestExtractValidation_MalformedJSONStillRemoved(t *testing.T) {
	raw := "1. Text before.\n" + `{"validation": [{"unterminated": ]}`

	text, block := ExtractValidation(raw)

	if len(block.Validation) != 0 {
		t.Errorf("Malformed block should yield no rows, got %d", len(block.Validation))
	}
	if strings.Contains(text, "{") {
		t.Errorf("Malformed block should still be cut from text, got %q", text)
	}
}

func TestExtractValidation_NoBlock(t *testing.T) {
	text, block := ExtractValidation("just plain text")
	if text != "just plain text" {
		t.Errorf("Text should pass through, got %q", text)
	}
	if len(block.Validation) != 0 {
		t.Errorf("Expected no rows, got %d", len(block.Validation))
	}
}

func TestSanitize_TwoItemsSurviveGate(t *testing.T) {
	raw := "3. The route map cannot branch per operator type.\n" +
		"7. Approval steps lack field level permission checks.\n"

	result := Sanitize(raw, workflowDescription, policy.DefaultMaxItems)

	want := "1. The route map cannot branch per operator type.\n" +
		"2. Approval steps lack field level permission checks."
	if result.Text != want {
		t.Errorf("Sanitize text:\n got %q\nwant %q", result.Text, want)
	}
}

func TestSanitize_DeduplicatesCaseInsensitive(t *testing.T) {
	raw := "1. The route map cannot branch per operator type.\n" +
		"2. THE ROUTE MAP CANNOT BRANCH PER OPERATOR TYPE.\n"

	result := Sanitize(raw, workflowDescription, policy.DefaultMaxItems)

	if strings.Count(result.Text, "\n") != 0 {
		t.Errorf("Expected single deduped item, got %q", result.Text)
	}
	if !strings.HasPrefix(result.Text, "1. The route map") {
		t.Errorf("First occurrence should win, got %q", result.Text)
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	raw := "1. The route map cannot branch per operator type.\n" +
		"2. Approval steps lack field level permission checks."

	once := Sanitize(raw, workflowDescription, policy.DefaultMaxItems)
	twice := Sanitize(once.Text, workflowDescription, policy.DefaultMaxItems)

	if once.Text != twice.Text {
		t.Errorf("Sanitize not idempotent:\n once %q\ntwice %q", once.Text, twice.Text)
	}
}

func TestSanitize_EmptyInputYieldsSentinel(t *testing.T) {
	result := Sanitize("", workflowDescription, policy.DefaultMaxItems)
	if result.Text != policy.SentinelText {
		t.Errorf("Expected sentinel, got %q", result.Text)
	}
}

func TestSanitize_GateFailureYieldsSentinelKeepsValidation(t *testing.T) {
	raw := "1. Everything works as expected.\n" +
		`{"validation": [{"item": 1, "control": "privacy", "object": "A"}]}`

	result := Sanitize(raw, workflowDescription, policy.DefaultMaxItems)

	if result.Text != policy.SentinelText {
		t.Errorf("Expected sentinel, got %q", result.Text)
	}
	if len(result.Validation.Validation) != 1 {
		t.Errorf("Validation block should survive independently, got %d rows", len(result.Validation.Validation))
	}
}

func TestSanitize_StripsBulletsAndCitations(t *testing.T) {
	raw := "1. **The route map** cannot branch per operator type [1][SAP Docs].\n"

	result := Sanitize(raw, workflowDescription, policy.DefaultMaxItems)

	if strings.ContainsAny(result.Text, "*[]") {
		t.Errorf("Decorations should be stripped, got %q", result.Text)
	}
	if !strings.Contains(result.Text, "The route map cannot branch per operator type") {
		t.Errorf("Sentence content lost: %q", result.Text)
	}
}

func TestSanitize_MultiLineItemCollapsesToFirstSentence(t *testing.T) {
	raw := "1. The route map cannot branch per operator type. This second sentence\n" +
		"continues on another line and should disappear.\n" +
		"2. Approval steps lack field level permission checks.\n"

	result := Sanitize(raw, workflowDescription, policy.DefaultMaxItems)

	if strings.Contains(result.Text, "second sentence") {
		t.Errorf("Only the first sentence of each item should survive, got %q", result.Text)
	}
	if !strings.Contains(result.Text, "2. Approval steps lack") {
		t.Errorf("Second item lost: %q", result.Text)
	}
}

func TestSanitize_CapsAtMaxItems(t *testing.T) {
	var b strings.Builder
	for i := 1; i <= 15; i++ {
		fmt.Fprintf(&b, "%d. The route map cannot process approval case number %d.\n", i, i)
	}
	result := Sanitize(b.String(), workflowDescription, 12)

	lines := strings.Split(result.Text, "\n")
	if len(lines) != 12 {
		t.Fatalf("Expected 12 capped items, got %d", len(lines))
	}
	if !strings.HasPrefix(lines[11], "12. ") {
		t.Errorf("Renumbering broken: %q", lines[11])
	}
}

func TestSanitize_FallbackLineExtraction(t *testing.T) {
	// No numbered markers at all, but gateable content per line.
	raw := "The route map cannot branch per operator type.\nApproval steps lack permission checks."

	result := Sanitize(raw, workflowDescription, policy.DefaultMaxItems)

	if result.Text == policy.SentinelText {
		t.Fatal("Fallback extraction should rescue unnumbered lines")
	}
	if !strings.HasPrefix(result.Text, "1. ") {
		t.Errorf("Fallback items should be renumbered, got %q", result.Text)
	}
}
