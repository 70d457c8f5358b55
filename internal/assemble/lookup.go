package assemble

import (
	"github.com/mbarbier/studium/internal/model"
	"github.com/mbarbier/studium/internal/resolve"
	"github.com/mbarbier/studium/internal/schema"
)

// lookupIndex is a restricted form of the resolver's blocking, rebuilt
// over the frozen entity partition. Relation targets are matched against
// it instead of re-running clustering, so relation resolution can never
// feed back into entity merging.
type lookupIndex struct {
	entities []model.CanonicalEntity
	aliases  [][]string       // Per entity: canonical name plus constituent mention names
	byKey    map[string][]int // Block key -> entity indices
}

func newLookupIndex(entities []model.CanonicalEntity, mentions map[string]*model.Mention, registry *schema.Registry) *lookupIndex {
	idx := &lookupIndex{
		entities: entities,
		aliases:  make([][]string, len(entities)),
		byKey:    make(map[string][]int),
	}
	for i := range entities {
		e := &entities[i]
		names := []string{e.Name}
		for _, rec := range e.Mentions {
			if m, ok := mentions[rec]; ok && m.Name != e.Name {
				names = append(names, m.Name)
			}
		}
		idx.aliases[i] = names

		seen := make(map[string]bool)
		for _, name := range names {
			probe := model.Mention{Name: name, Type: e.Type}
			for _, key := range resolve.BlockKeys(&probe, registry) {
				if !seen[key] {
					seen[key] = true
					idx.byKey[key] = append(idx.byKey[key], i)
				}
			}
		}
	}
	return idx
}

// candidates returns the entity indices sharing a block with the surface
// form, deduplicated, in index order
func (idx *lookupIndex) candidates(surface, rootType string, registry *schema.Registry) []int {
	probe := model.Mention{Name: surface, Type: rootType}
	seen := make(map[int]bool)
	var out []int
	for _, key := range resolve.BlockKeys(&probe, registry) {
		for _, i := range idx.byKey[key] {
			if !seen[i] {
				seen[i] = true
				out = append(out, i)
			}
		}
	}
	return out
}

// bestMatch scores the surface form against every admissible
// candidate's aliases and returns the best entity index with its score
// (-1 when nothing is admissible)
func (idx *lookupIndex) bestMatch(surface, rootType string, registry *schema.Registry, admissible func(int) bool) (int, float64) {
	best, bestScore := -1, 0.0
	for _, i := range idx.candidates(surface, rootType, registry) {
		if !admissible(i) {
			continue
		}
		score := 0.0
		for _, alias := range idx.aliases[i] {
			if s := resolve.NameSimilarity(surface, alias); s > score {
				score = s
			}
		}
		// Deterministic tie-break: keep the entity with the smaller id
		if score > bestScore || (score == bestScore && best >= 0 && score > 0 && idx.entities[i].ID < idx.entities[best].ID) {
			best, bestScore = i, score
		}
	}
	return best, bestScore
}
