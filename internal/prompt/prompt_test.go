package prompt

import (
	"strings"
	"testing"

	"github.com/quarrylabs/verilim/internal/policy"
	"github.com/quarrylabs/verilim/internal/record"
)

func TestBuildRestrictive_InjectsFields(t *testing.T) {
	in := Inputs{
		Title:       "Requisition approval routing",
		Description: "Approvals must follow the agency delegation schedule.",
		Area:        "Recruitment",
		Product:     "SAP SuccessFactors Recruiting",
	}
	got := BuildRestrictive(in)

	for _, want := range []string{
		"- Title: Requisition approval routing",
		"- Description: Approvals must follow the agency delegation schedule.",
		"- Area: Recruitment",
		"- Product: SAP SuccessFactors Recruiting",
		"Output AT LEAST 3 verified items",
		policy.SentinelText,
		`{"validation":[]}`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("Prompt missing %q", want)
		}
	}
}

func TestBuildRestrictive_Defaults(t *testing.T) {
	got := BuildRestrictive(Inputs{})

	for _, want := range []string{
		"- Title: Unknown Title",
		"- Description: No description available",
		"- Object of analysis: " + policy.DefaultObjectOfAnalysis,
		"- Constraint filter: " + policy.DefaultConstraintFilter,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("Prompt missing default %q", want)
		}
	}
	if strings.Contains(got, "{{") {
		t.Error("Unrendered template action left in prompt")
	}
}

func TestInputsFromRecord_ListFields(t *testing.T) {
	rec := record.Record{
		"Title":       "T",
		"Description": "D",
		"Area":        []any{"Recruitment", "Onboarding"},
		"Product":     "RCM",
	}
	in := InputsFromRecord(rec)

	if in.Area != "Recruitment, Onboarding" {
		t.Errorf("Area = %q", in.Area)
	}
	if in.Product != "RCM" {
		t.Errorf("Product = %q", in.Product)
	}
}

func TestInputsFromRecord_SnakeCaseFallback(t *testing.T) {
	rec := record.Record{
		"object_of_analysis": "the approval chain",
		"in_scope_modules":   "RCM, RBP",
	}
	in := InputsFromRecord(rec)

	if in.ObjectOfAnalysis != "the approval chain" {
		t.Errorf("ObjectOfAnalysis = %q", in.ObjectOfAnalysis)
	}
	if in.InScopeModules != "RCM, RBP" {
		t.Errorf("InScopeModules = %q", in.InScopeModules)
	}
}

func TestBuildWRICEF_SentinelAndDefaults(t *testing.T) {
	got := BuildWRICEF(WRICEFInputs{Title: "T", Description: "D"})

	for _, want := range []string{
		"- Requirement title: T",
		"- Requirement summary: D",
		"- Project / program: Not supplied",
		"- WRICEF components in focus: " + DefaultWRICEFComponents,
		policy.WRICEFSentinelText,
		`{"wricef_summary":[]}`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("Prompt missing %q", want)
		}
	}
}

func TestWRICEFInputsFromRecord_FallbackKeys(t *testing.T) {
	rec := record.Record{
		"Program":     "HR Transformation",
		"ProcessArea": []any{"Hire to Retire"},
		"Systems":     "EC, ECP",
	}
	in := WRICEFInputsFromRecord(rec)

	if in.Project != "HR Transformation" {
		t.Errorf("Project = %q", in.Project)
	}
	if in.BusinessProcess != "Hire to Retire" {
		t.Errorf("BusinessProcess = %q", in.BusinessProcess)
	}
	if in.Landscape != "EC, ECP" {
		t.Errorf("Landscape = %q", in.Landscape)
	}
}
