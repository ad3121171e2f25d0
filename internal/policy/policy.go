// Package policy holds the fixed vocabularies and output contracts shared
// across the harness: the sentinel literal, the allowed control tags, the
// canonical module labels, and the authoritative documentation domains.
//
// Everything here is deliberately static. The pipeline's determinism depends
// on these sets never changing at runtime.
package policy

import (
	"regexp"
	"strings"
)

// SentinelText is the exact empty-but-valid result literal. Whenever a
// record's research_analysis equals this string, its validation rows must be
// empty; the reverse combination is a contradiction the validator flags.
const SentinelText = "1. No verified limitations found within the specified scope."

// WRICEFSentinelText is the corresponding literal for the WRICEF assessment
// prompt family.
const WRICEFSentinelText = "1. No WRICEF components required for this requirement."

const (
	// DefaultMinItems is the minimum numbered-item count a non-sentinel
	// record must carry to validate.
	DefaultMinItems = 3

	// DefaultMaxItems caps the sanitized list length.
	DefaultMaxItems = 12
)

// Prompt scope defaults, used when a record does not override them.
const (
	DefaultObjectOfAnalysis = "the requirement under evaluation"

	DefaultInScopeModules = "RCM, EC, ECP, ONB, RBP, RMK, BTP(Workflow/Ext), Integration Suite/IC, OData APIs, " +
		"Stories/Reporting, Data Sphere, ALM, OpenText xECM/InfoArchive, " +
		"S/4HANA Finance(if interfaced), " +
		"Microsoft Fabric HR RG, DataHub, Purview, Azure DevOps, Terraform, Sentinel/Splunk"

	DefaultConstraintFilter = "only constraints that directly affect meeting the stated requirement"
)

// AllowedControls is the closed set of control tags a validation row may
// carry. Rows with any other control value are dropped.
var AllowedControls = map[string]bool{
	"record-keeping":       true,
	"audit-trail":          true,
	"privacy":              true,
	"data-retention":       true,
	"equal-opportunity":    true,
	"merit-selection":      true,
	"conflict-of-interest": true,
	"notification-content": true,
	"access-control":       true,
	"provenance":           true,
	"reporting-disclosure": true,
	"localization":         true,
	"jurisdiction-mapping": true,
	"appeals-review":       true,
	"governance":           true,
}

// ModulesOrdered lists the canonical module labels. Normalization tries these
// longest-first so that "OpenText InfoArchive" wins over "OpenText xECM" when
// both could match, and compound labels beat their fragments.
var ModulesOrdered = []string{
	"RCM",
	"EC",
	"ECP",
	"ONB",
	"RBP",
	"RMK",
	"BTP",
	"Integration Suite",
	"IC",
	"OData APIs",
	"Stories/Reporting",
	"Data Sphere",
	"ALM",
	"OpenText xECM",
	"OpenText InfoArchive",
	"S/4HANA Finance",
	"Microsoft Fabric HR RG",
	"DataHub",
	"Purview",
	"Azure DevOps",
	"Terraform",
	"Sentinel",
	"Splunk",
}

// ModuleAliases maps common variant spellings to their canonical label.
// Keys are lower-case; matching is word-boundary safe like the canonical
// tokens, and longer aliases win over shorter ones.
var ModuleAliases = map[string]string{
	"infoarchive":              "OpenText InfoArchive",
	"info archive":             "OpenText InfoArchive",
	"xecm":                     "OpenText xECM",
	"x-ecm":                    "OpenText xECM",
	"employee central payroll": "ECP",
	"employee central":         "EC",
	"recruiting":               "RCM",
	"onboarding":               "ONB",
	"role-based permissions":   "RBP",
	"role based permissions":   "RBP",
	"integration center":       "IC",
	"integration centre":       "IC",
	"business technology platform": "BTP",
}

// AuthoritativeSuffixes is the allow-list of SAP documentation host suffixes.
// A URL counts as authoritative evidence only when its host equals or ends
// with one of these.
var AuthoritativeSuffixes = []string{
	".help.sap.com",
	".support.sap.com",
	".userapps.support.sap.com",
	".launchpad.support.sap.com",
	".me.sap.com",
	"help.sap.com",
	"support.sap.com",
	"userapps.support.sap.com",
	"launchpad.support.sap.com",
	"me.sap.com",
}

var whitespaceRE = regexp.MustCompile(`\s+`)

// IsSentinel reports whether text matches the sentinel response, ignoring
// case and runs of whitespace.
func IsSentinel(text string) bool {
	normalized := strings.TrimSpace(whitespaceRE.ReplaceAllString(text, " "))
	return strings.EqualFold(normalized, SentinelText)
}
