// Package gate filters candidate limitation sentences by topic relevance and
// negative-limitation phrasing.
//
// A sentence survives the gate only when it carries a negative signal
// ("cannot", "lacks", ...) and, when the record's description triggered any
// topics, at least one term from a triggered topic's vocabulary. Legislative
// descriptions additionally force a stricter compliance-only pass.
package gate

import "strings"

// Topic identifies one of the fixed topic tags a description can trigger.
type Topic string

const (
	TopicLegislative     Topic = "legislative"
	TopicWorkflow        Topic = "workflow"
	TopicIdentifier      Topic = "identifier"
	TopicDefaulting      Topic = "defaulting"
	TopicMandatoryFields Topic = "mandatory_fields"
)

// topicKeywords maps each topic to the description phrases that trigger it.
// Matching is lower-cased substring membership.
var topicKeywords = map[Topic][]string{
	TopicLegislative: {
		"legislation",
		"legislative",
		"statutory",
		"public service act",
		"award",
		"enterprise agreement",
		"directive",
		"policy",
		"policies",
		"compliance",
	},
	TopicWorkflow: {
		"workflow",
		"approval",
		"approvals",
		"route map",
		"routing",
		"endorsement",
		"teaching",
		"non-teaching",
		"hr business partner",
	},
	TopicIdentifier: {
		"unique identifier",
		"unique id",
		"requisition id",
		"job id",
		"req id",
		"identifier",
	},
	TopicDefaulting: {
		"default",
		"auto default",
		"pre-populate",
		"prepopulate",
		"organisational unit",
		"org unit",
		"job",
		"position",
		"role description",
	},
	TopicMandatoryFields: {
		"mandatory",
		"required field",
		"validation",
		"error message",
		"warning",
		"incomplete",
		"submission",
		"submit",
	},
}

// ClassifyTopic returns the set of topics triggered by keywords in the
// description. The empty set means "no topic signal": callers fall back to
// the generic negative-verb gate.
func ClassifyTopic(description string) map[Topic]bool {
	lowered := strings.ToLower(description)
	topics := make(map[Topic]bool)
	for topic, keywords := range topicKeywords {
		for _, kw := range keywords {
			if strings.Contains(lowered, kw) {
				topics[topic] = true
				break
			}
		}
	}
	return topics
}
