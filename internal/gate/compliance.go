package gate

import "strings"

// complianceTerms mark a sentence as addressing a compliance obligation.
var complianceTerms = []string{
	"compliance",
	"legislation",
	"legislative",
	"statutory",
	"evidence",
	"audit",
	"record",
	"retention",
	"privacy",
	"equal opportunity",
	"merit",
	"disclosure",
	"appeal",
	"governance",
	"policy",
	"directive",
	"act",
	"award",
	"agreement",
	"provenance",
	"access control",
	"consent",
}

// negativeVerbs is the fixed list of limiting-signal phrases. A sentence
// must contain at least one to ever pass the gate. "no " keeps its trailing
// space so "normal" and "notification" don't match.
var negativeVerbs = []string{
	"cannot",
	"does not",
	"no ",
	"limits",
	"restrict",
	"missing",
	"lack",
	"lacks",
	"prevents",
	"risks",
	"fails",
	"disabled",
	"unsupported",
}

// IsComplianceTied reports whether the sentence addresses compliance
// constraints with negative framing.
func IsComplianceTied(sentence string) bool {
	lowered := strings.ToLower(sentence)
	return containsAny(lowered, complianceTerms) && containsAny(lowered, negativeVerbs)
}

func containsAny(lowered string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(lowered, term) {
			return true
		}
	}
	return false
}
