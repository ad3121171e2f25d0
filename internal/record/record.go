// Package record defines the JSONL record shape and the post-run validation
// gate that decides whether a record counts as processed.
package record

import (
	"encoding/json"
	"strings"
)

// Record is one JSONL line. Beyond the handful of fields the pipeline reads
// and writes, records carry arbitrary caller fields that must round-trip
// untouched, so the representation stays an open map.
type Record map[string]any

// Well-known record keys.
const (
	KeyDescription      = "description"
	KeyResearchAnalysis = "research_analysis"
	KeyHumanReadable    = "human_readable"
	KeyValidation       = "validation"
	KeyProcessed        = "processed"
	KeyMetrics          = "metrics"
	KeyFailureReason    = "failure_reason"
)

// Clone returns a shallow copy of the record. Nested values are shared; the
// validator only ever replaces top-level keys.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// StringField returns the named field as a trimmed string, or "" when the
// field is absent or not a string.
func (r Record) StringField(key string) string {
	s, _ := r[key].(string)
	return strings.TrimSpace(s)
}

// ValidationRow is one structured evidence entry accompanying a numbered
// limitation item.
type ValidationRow struct {
	Item            int    `json:"item"`
	Object          string `json:"object"`
	Module          string `json:"module"`
	Impact          string `json:"impact"`
	ConfigRequired  string `json:"config_required"`
	EvidencePointer string `json:"evidence_pointer"`
	Control         string `json:"control"`
}

// ValidationBlock is the {"validation": [...]} object the model appends to
// its answer.
type ValidationBlock struct {
	Validation []ValidationRow `json:"validation"`
}

// UnmarshalJSON tolerates malformed rows: elements of the validation array
// that are not objects, or that fail to decode, are skipped rather than
// failing the whole block.
func (b *ValidationBlock) UnmarshalJSON(data []byte) error {
	var outer struct {
		Validation []json.RawMessage `json:"validation"`
	}
	if err := json.Unmarshal(data, &outer); err != nil {
		return err
	}
	b.Validation = nil
	for _, raw := range outer.Validation {
		var row ValidationRow
		if err := json.Unmarshal(raw, &row); err != nil {
			continue
		}
		b.Validation = append(b.Validation, row)
	}
	return nil
}

// Metrics summarizes a validated record.
type Metrics struct {
	Items          int `json:"items"`
	ValidationRows int `json:"validation_rows"`
	MinItems       int `json:"min_items"`
}
