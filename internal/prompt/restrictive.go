// Package prompt builds the model prompts from record fields.
//
// Builders take an explicit Inputs struct with documented defaults rather
// than formatting free-form maps, so a missing field is always a visible
// zero value and never a silently empty placeholder.
package prompt

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/quarrylabs/verilim/internal/policy"
	"github.com/quarrylabs/verilim/internal/record"
)

const restrictiveTemplateText = `
Instruction:
Think step by step INTERNALLY to identify only verified LIMITATIONS of the feature described in Context; DO NOT reveal your steps. Output must strictly follow Deliverable.

Context:
- Title: {{.Title}}
- Description: {{.Description}}
- Area: {{.Area}}
- Product: {{.Product}}

Scope:
- Object of analysis: {{.ObjectOfAnalysis}}
- In-scope modules: {{.InScopeModules}}
- Constraint filter: {{.ConstraintFilter}}
- Exclude: generic UX opinions, performance anecdotes, benefits, mitigations, workarounds, sales claims, and topics not directly constraining the object of analysis.

Rules (hard):
Allowed controls for "control" field in validation JSON:
["record-keeping","audit-trail","privacy","data-retention","equal-opportunity","merit-selection",
 "conflict-of-interest","notification-content","access-control","provenance","reporting-disclosure",
 "localization","jurisdiction-mapping","appeals-review","governance"].

1) Produce ONLY a numbered list starting at 1; one item per line; each item is a SINGLE factual sentence; no headers/preface/summary/citations/markdown.
2) Each item MUST explicitly state the system limitation AND how it constrains the object of analysis within the stated scope.
3) Include ONLY limitations that are documented or widely recognized in authoritative sources (product docs, admin guides, release notes, KBAs). No speculation.
4) Output AT LEAST {{.MinItems}} verified items if any exist; otherwise use the sentinel. Each item MUST include an authoritative evidence pointer (SAP Help/Support/KBA/Release Note/Implementation Guide URL or ID).
5) Controls must be one of the allowed list above.
6) After the numbered list, output a VALIDATION JSON object exactly in this format (no extra text):

{"validation":[
  {"item":1,"object":"<component>","module":"<module>","impact":"<short clause>","config_required":"yes|no","evidence_pointer":"<SAP Help/KBA URL or ID>","control":"<see allowed list>"},
  {"item":2,"object":"<component>","module":"<module>","impact":"<short clause>","config_required":"yes|no","evidence_pointer":"<SAP Help/KBA URL or ID>","control":"<see allowed list>"}
]}

7) If no verified, scope-specific limitations exist, output EXACTLY:
1. No verified limitations found within the specified scope.
{"validation":[]}

Deliverable:
1. <single-sentence limitation tied to the scope>
2. <single-sentence limitation tied to the scope>
...
{"validation":[...]}
`

var restrictiveTemplate = template.Must(template.New("restrictive").Parse(restrictiveTemplateText))

// Inputs holds the fields injected into the restrictive template.
type Inputs struct {
	Title            string
	Description      string
	Area             string
	Product          string
	ObjectOfAnalysis string
	InScopeModules   string
	ConstraintFilter string
	MinItems         int
}

// applyDefaults fills unset fields with the documented fallbacks.
func (in *Inputs) applyDefaults() {
	if in.Title == "" {
		in.Title = "Unknown Title"
	}
	if in.Description == "" {
		in.Description = "No description available"
	}
	if in.ObjectOfAnalysis == "" {
		in.ObjectOfAnalysis = policy.DefaultObjectOfAnalysis
	}
	if in.InScopeModules == "" {
		in.InScopeModules = policy.DefaultInScopeModules
	}
	if in.ConstraintFilter == "" {
		in.ConstraintFilter = policy.DefaultConstraintFilter
	}
	if in.MinItems <= 0 {
		in.MinItems = policy.DefaultMinItems
	}
}

// joinField renders a record field that may be a string or a list of
// strings as a comma-joined string.
func joinField(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []string:
		return strings.Join(v, ", ")
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, fmt.Sprintf("%v", item))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprintf("%v", v)
	}
}

// firstString returns the first non-empty string field among keys.
func firstString(rec record.Record, keys ...string) string {
	for _, key := range keys {
		if s, ok := rec[key].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// InputsFromRecord maps record fields onto restrictive-prompt inputs,
// accepting both the upstream CamelCase and snake_case key spellings.
func InputsFromRecord(rec record.Record) Inputs {
	return Inputs{
		Title:            firstString(rec, "Title"),
		Description:      firstString(rec, "Description"),
		Area:             joinField(rec["Area"]),
		Product:          joinField(rec["Product"]),
		ObjectOfAnalysis: firstString(rec, "ObjectOfAnalysis", "object_of_analysis"),
		InScopeModules:   firstString(rec, "InScopeModules", "in_scope_modules"),
		ConstraintFilter: firstString(rec, "ConstraintFilter", "constraint_filter"),
	}
}

// BuildRestrictive renders the restrictive limitation-assessment prompt.
func BuildRestrictive(in Inputs) string {
	in.applyDefaults()
	var b strings.Builder
	// Template and data are static; execution cannot fail.
	_ = restrictiveTemplate.Execute(&b, in)
	return b.String()
}
