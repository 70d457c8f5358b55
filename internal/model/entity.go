package model

// Stage identifies which pipeline stage produced a value
type Stage string

const (
	StageNormalize Stage = "normalize"
	StageResolve   Stage = "resolve"
	StageAssemble  Stage = "assemble"
)

// Provenance records which source record and pipeline stage produced a
// value. Immutable; attached to every resolved attribute and relation.
type Provenance struct {
	RecordID string `json:"record_id"`
	Stage    Stage  `json:"stage"`
}

// ResolvedAttr is a conflict-resolved attribute of a canonical entity
type ResolvedAttr struct {
	Value      AttrValue    `json:"value"`
	Support    int          `json:"support"` // Cumulative source corroboration count
	Provenance []Provenance `json:"provenance"`
}

// CanonicalEntity is the resolved real-world entity one or more mentions
// refer to. Created only by the resolver; frozen before the assembler
// reads it.
type CanonicalEntity struct {
	ID         string                  `json:"id"`
	Type       string                  `json:"type"`
	Name       string                  `json:"name"`
	Mentions   []string                `json:"mentions"` // Constituent record ids, sorted
	Attributes map[string]ResolvedAttr `json:"attributes"`
	Confidence float64                 `json:"confidence"` // Weakest-link estimate in [0,1]
	Uncertain  bool                    `json:"uncertain"`  // Inherited from any constituent mention
}
