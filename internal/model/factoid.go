package model

// Certainty is the uncertainty marker a factoid inherits from extraction
type Certainty string

const (
	CertaintyCertain   Certainty = "certain"
	CertaintyUncertain Certainty = "uncertain"
)

// RawFactoid is one extracted biographical claim, exactly as the extraction
// collaborator emits it. Attribute values are untyped strings; nothing is
// validated yet. Immutable once decoded.
type RawFactoid struct {
	RecordID        string            `json:"record_id"`                 // Source record identifier
	EntityTypeClaim string            `json:"entity_type_claim"`         // Claimed ontology type (unchecked)
	Attributes      map[string]string `json:"attributes"`                // Raw attribute name -> raw string value
	Relations       []RelationClaim   `json:"relations,omitempty"`       // Outgoing relation claims
	Uncertainty     Certainty         `json:"uncertainty"`               // certain / uncertain
}

// RelationClaim is a relation asserted by a factoid whose target is still a
// surface form, not a resolved entity
type RelationClaim struct {
	Type              string `json:"type"`                // Relation type name
	TargetSurfaceForm string `json:"target_surface_form"` // Target as written in the source
}
