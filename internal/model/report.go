package model

import "time"

// MaxReportExamples caps how many per-record examples a run report keeps
// for each error class; counts are always exact.
const MaxReportExamples = 25

// RunReport is the per-run accounting of what was processed, dropped and
// left unresolved. Record-level problems are accumulated here rather than
// raised individually; a corpus with isolated bad records still produces
// a usable partial graph.
type RunReport struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	RecordsRead   int `json:"records_read"`
	Normalized    int `json:"normalized"`
	Rejected      int `json:"rejected"`
	WarningCount  int `json:"warning_count"`
	Entities      int `json:"entities"`
	MergedPairs   int `json:"merged_pairs"`
	SeparatorHits int `json:"separator_hits"` // Merges refused by a hard separator
	Relations     int `json:"relations"`
	Unresolved    int `json:"unresolved"`

	Rejections []RejectionExample  `json:"rejections,omitempty"`
	Warnings   []WarningExample    `json:"warnings,omitempty"`
	Dropped    []UnresolvedExample `json:"dropped_relations,omitempty"`

	Annotation *Annotation `json:"annotation,omitempty"` // Optional LLM review, never affects the graph
}

// RejectionExample is one rejected record with the constraint it violated
type RejectionExample struct {
	RecordID   string `json:"record_id"`
	Constraint string `json:"constraint"`
}

// WarningExample is one dropped attribute value
type WarningExample struct {
	RecordID  string `json:"record_id"`
	Attribute string `json:"attribute"`
	Reason    string `json:"reason"`
}

// UnresolvedExample is one relation claim whose target matched no
// canonical entity above the merge threshold
type UnresolvedExample struct {
	RecordID    string  `json:"record_id"`
	Type        string  `json:"type"`
	SurfaceForm string  `json:"surface_form"`
	BestScore   float64 `json:"best_score"`
}

// Annotation is the optional LLM-generated review of low-confidence
// clusters. It is produced after resolution completes and never feeds
// back into clustering, confidences or the export.
type Annotation struct {
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	Review     string `json:"review_md"`
	Clusters   int    `json:"clusters_reviewed"`
	TokensUsed int    `json:"tokens_used,omitempty"`
}

// AddRejection records a rejection, keeping at most MaxReportExamples
func (r *RunReport) AddRejection(recordID, constraint string) {
	r.Rejected++
	if len(r.Rejections) < MaxReportExamples {
		r.Rejections = append(r.Rejections, RejectionExample{RecordID: recordID, Constraint: constraint})
	}
}

// AddWarning records a dropped attribute
func (r *RunReport) AddWarning(recordID, attribute, reason string) {
	r.WarningCount++
	if len(r.Warnings) < MaxReportExamples {
		r.Warnings = append(r.Warnings, WarningExample{RecordID: recordID, Attribute: attribute, Reason: reason})
	}
}

// AddUnresolved records a dropped relation claim
func (r *RunReport) AddUnresolved(recordID, relType, surface string, bestScore float64) {
	r.Unresolved++
	if len(r.Dropped) < MaxReportExamples {
		r.Dropped = append(r.Dropped, UnresolvedExample{
			RecordID:    recordID,
			Type:        relType,
			SurfaceForm: surface,
			BestScore:   bestScore,
		})
	}
}
