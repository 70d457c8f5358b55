package model

import "sort"

// Relation is an edge between two canonical entities. Both endpoints must
// already be resolved; relations are never built against raw mentions.
type Relation struct {
	SourceID   string       `json:"source_id"`
	TargetID   string       `json:"target_id"`
	Type       string       `json:"type"`
	Confidence float64      `json:"confidence"`
	Provenance []Provenance `json:"provenance"`
}

// Graph is the assembled node/edge set, sorted for deterministic output
type Graph struct {
	Entities  []CanonicalEntity `json:"entities"`  // Sorted by id
	Relations []Relation        `json:"relations"` // Sorted by (source, target, type)
}

// Sort puts the graph in its canonical order. Repeated runs on identical
// input must serialize byte-for-byte identically.
func (g *Graph) Sort() {
	sort.Slice(g.Entities, func(i, j int) bool {
		return g.Entities[i].ID < g.Entities[j].ID
	})
	sort.Slice(g.Relations, func(i, j int) bool {
		a, b := g.Relations[i], g.Relations[j]
		if a.SourceID != b.SourceID {
			return a.SourceID < b.SourceID
		}
		if a.TargetID != b.TargetID {
			return a.TargetID < b.TargetID
		}
		return a.Type < b.Type
	})
}

// EntityByID returns the entity with the given id, or nil
func (g *Graph) EntityByID(id string) *CanonicalEntity {
	for i := range g.Entities {
		if g.Entities[i].ID == id {
			return &g.Entities[i]
		}
	}
	return nil
}
