package gate

import "strings"

var workflowTerms = []string{
	"route map",
	"approval",
	"approver",
	"step",
	"stage",
	"notification",
	"operator",
	"rbp",
	"permission",
	"status",
	"field",
	"rule",
	"business rule",
	"template",
	"workflow",
}

var identifierTerms = []string{
	"identifier",
	"id",
	"external id",
	"key",
	"unique",
	"duplication",
	"collision",
	"mapping",
}

var defaultingTerms = []string{
	"default",
	"derive",
	"pre-populate",
	"propagate",
	"rule",
	"picklist",
	"position",
	"org unit",
	"job",
	"role description",
}

var mandatoryTerms = []string{
	"mandatory",
	"required",
	"validation",
	"error",
	"warning",
	"submit",
	"incomplete",
	"field",
}

var topicTerms = map[Topic][]string{
	TopicWorkflow:        workflowTerms,
	TopicIdentifier:      identifierTerms,
	TopicDefaulting:      defaultingTerms,
	TopicMandatoryFields: mandatoryTerms,
}

// TopicGate reports whether a single sentence matches the relevant topic
// signals for the given topic set.
func TopicGate(sentence string, topics map[Topic]bool) bool {
	lowered := strings.ToLower(sentence)
	verbsHit := containsAny(lowered, negativeVerbs)

	// Legislative descriptions accept any compliance-tied sentence outright,
	// regardless of the term-list check below.
	if topics[TopicLegislative] && IsComplianceTied(sentence) {
		return true
	}

	if len(topics) == 0 {
		return verbsHit
	}

	topicHits := false
	for topic, terms := range topicTerms {
		if topics[topic] && containsAny(lowered, terms) {
			topicHits = true
			break
		}
	}
	return verbsHit && topicHits
}

// EnforceComplianceGate filters items to those tied to compliance.
func EnforceComplianceGate(items []string) []string {
	var gated []string
	for _, item := range items {
		if IsComplianceTied(item) {
			gated = append(gated, item)
		}
	}
	return gated
}

// EnforceTopicGate classifies topics from the description and filters the
// items through TopicGate. Legislative descriptions get a second, stricter
// compliance-only pass over the already-gated result; when that second pass
// yields nothing, the net result is empty (the sanitizer then emits the
// sentinel) rather than an error.
func EnforceTopicGate(items []string, description string) []string {
	topics := ClassifyTopic(description)

	var gated []string
	for _, sentence := range items {
		if TopicGate(sentence, topics) {
			gated = append(gated, sentence)
		}
	}

	if topics[TopicLegislative] {
		return EnforceComplianceGate(gated)
	}
	return gated
}
