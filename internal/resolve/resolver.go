// Package resolve partitions mentions into canonical entities using
// blocking, pairwise scoring and union-find clustering with hard
// separator constraints.
package resolve

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/mbarbier/studium/internal/model"
	"github.com/mbarbier/studium/internal/schema"
)

// Fixed namespace for deterministic entity ids: the same cluster key
// always yields the same id across runs.
var entityNamespace = uuid.MustParse("a1f8c3de-9b42-4f11-8c6a-2d5e07b91c44")

// ContractViolation means a mention carries a type absent from the
// registry after normalization succeeded. The normalizer and resolver
// disagree about the schema; this aborts the run.
type ContractViolation struct {
	RecordID string
	Type     string
}

func (e *ContractViolation) Error() string {
	return fmt.Sprintf("resolver contract violation: record %s has type %q absent from registry", e.RecordID, e.Type)
}

// Resolver clusters mentions under one registry and threshold set
type Resolver struct {
	registry *schema.Registry
	cfg      model.ResolverConfig
}

// NewResolver creates a resolver. Thresholds must leave a gap:
// merge > conflict.
func NewResolver(registry *schema.Registry, cfg model.ResolverConfig) (*Resolver, error) {
	if cfg.MergeThreshold <= cfg.ConflictThreshold {
		return nil, fmt.Errorf("resolve: merge threshold %.2f must exceed conflict threshold %.2f",
			cfg.MergeThreshold, cfg.ConflictThreshold)
	}
	return &Resolver{registry: registry, cfg: cfg}, nil
}

// Result is the frozen outcome of one resolution run. Every input
// mention belongs to exactly one entity.
type Result struct {
	Entities      []model.CanonicalEntity
	EntityOf      map[string]string // Record id -> entity id
	MergedPairs   int
	SeparatorHits int
}

type pairKey struct{ a, b int } // a < b

type candidate struct {
	a, b  int
	score float64
}

// clusterState is the single-owner mutable clustering state for one run. It
// is created inside Resolve and never escapes, so concurrent runs with
// different configurations cannot interfere.
type clusterState struct {
	mentions   []*model.Mention
	uf         *unionFind
	members    map[int][]int       // Root -> member indices
	minScore   map[int]float64     // Root -> weakest triggering pair score
	separators map[int][]int       // Mention -> mentions it must never join
	pairScores map[pairKey]float64 // All scored pairs
}

// Resolve partitions the mentions. The input slice is not mutated;
// mentions are re-sorted by record id internally so input order never
// affects the outcome.
func (r *Resolver) Resolve(mentions []*model.Mention) (*Result, error) {
	sorted := make([]*model.Mention, len(mentions))
	copy(sorted, mentions)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].RecordID < sorted[j].RecordID })

	for _, m := range sorted {
		if !r.registry.HasType(m.Type) {
			return nil, &ContractViolation{RecordID: m.RecordID, Type: m.Type}
		}
	}

	st := &clusterState{
		mentions:   sorted,
		uf:         newUnionFind(len(sorted)),
		members:    make(map[int][]int),
		minScore:   make(map[int]float64),
		separators: make(map[int][]int),
		pairScores: make(map[pairKey]float64),
	}
	for i := range sorted {
		st.members[i] = []int{i}
	}

	candidates := r.scoreBlocks(st)

	// Deterministic merge order: strongest pairs first, record ids break
	// ties. Combined with the canonical mention sort this makes the
	// partition independent of input order.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		if candidates[i].a != candidates[j].a {
			return candidates[i].a < candidates[j].a
		}
		return candidates[i].b < candidates[j].b
	})

	result := &Result{EntityOf: make(map[string]string, len(sorted))}
	for _, c := range candidates {
		ra, rb := st.uf.find(c.a), st.uf.find(c.b)
		if ra == rb {
			continue
		}
		// Separator constraints take precedence over similarity and are
		// checked before every merge, not only at the end
		if st.separated(ra, rb) {
			result.SeparatorHits++
			continue
		}
		st.merge(ra, rb, c.score)
		result.MergedPairs++
	}

	r.buildEntities(st, result)
	return result, nil
}

// scoreBlocks groups mentions into blocks and scores every in-block pair
// once. Pairs at or below the conflict threshold become separators;
// pairs at or above the merge threshold become candidates.
func (r *Resolver) scoreBlocks(st *clusterState) []candidate {
	blocks := make(map[string][]int)
	for i, m := range st.mentions {
		for _, key := range BlockKeys(m, r.registry) {
			blocks[key] = append(blocks[key], i)
		}
	}

	var candidates []candidate
	seen := make(map[pairKey]bool)
	for _, block := range blocks {
		for x := 0; x < len(block); x++ {
			for y := x + 1; y < len(block); y++ {
				a, b := block[x], block[y]
				key := pairKey{a, b}
				if seen[key] {
					continue
				}
				seen[key] = true

				ma, mb := st.mentions[a], st.mentions[b]
				// Type compatibility is a precondition, not a score input
				if !r.registry.IsAssignable(ma.Type, mb.Type) && !r.registry.IsAssignable(mb.Type, ma.Type) {
					continue
				}

				s := ScorePair(r.cfg, ma, mb)
				st.pairScores[key] = s.Total
				switch {
				case s.Total <= r.cfg.ConflictThreshold:
					st.separators[a] = append(st.separators[a], b)
					st.separators[b] = append(st.separators[b], a)
				case s.Total >= r.cfg.MergeThreshold:
					candidates = append(candidates, candidate{a: a, b: b, score: s.Total})
				}
			}
		}
	}
	return candidates
}

// separated reports whether any member of root ra is a hard separator
// partner of any member of root rb
func (st *clusterState) separated(ra, rb int) bool {
	small, other := ra, rb
	if len(st.members[small]) > len(st.members[other]) {
		small, other = other, small
	}
	for _, x := range st.members[small] {
		for _, y := range st.separators[x] {
			if st.uf.find(y) == other {
				return true
			}
		}
	}
	return false
}

// merge joins two clusters and tracks the weakest triggering score
func (st *clusterState) merge(ra, rb int, score float64) {
	minA, okA := st.minScore[ra]
	minB, okB := st.minScore[rb]
	newMin := score
	if okA && minA < newMin {
		newMin = minA
	}
	if okB && minB < newMin {
		newMin = minB
	}

	root := st.uf.union(ra, rb)
	merged := append(st.members[ra], st.members[rb]...)
	delete(st.members, ra)
	delete(st.members, rb)
	delete(st.minScore, ra)
	delete(st.minScore, rb)
	st.members[root] = merged
	st.minScore[root] = newMin
}

// buildEntities freezes the partition into canonical entities
func (r *Resolver) buildEntities(st *clusterState, result *Result) {
	roots := make([]int, 0, len(st.members))
	for root := range st.members {
		roots = append(roots, root)
	}
	// Earliest record id first for reproducible construction order
	sort.Slice(roots, func(i, j int) bool {
		return earliestRecord(st, roots[i]) < earliestRecord(st, roots[j])
	})

	for _, root := range roots {
		idxs := append([]int(nil), st.members[root]...)
		sort.Slice(idxs, func(i, j int) bool {
			return st.mentions[idxs[i]].RecordID < st.mentions[idxs[j]].RecordID
		})

		entity := r.buildEntity(st, root, idxs)
		result.Entities = append(result.Entities, entity)
		for _, i := range idxs {
			result.EntityOf[st.mentions[i].RecordID] = entity.ID
		}
	}

	sort.Slice(result.Entities, func(i, j int) bool {
		return result.Entities[i].ID < result.Entities[j].ID
	})
}

func earliestRecord(st *clusterState, root int) string {
	best := ""
	for _, i := range st.members[root] {
		if best == "" || st.mentions[i].RecordID < best {
			best = st.mentions[i].RecordID
		}
	}
	return best
}

func (r *Resolver) buildEntity(st *clusterState, root int, idxs []int) model.CanonicalEntity {
	first := st.mentions[idxs[0]]

	confidence := 1.0 // A singleton is vacuously unambiguous
	if len(idxs) > 1 {
		confidence = st.minScore[root]
	}

	uncertain := false
	for _, i := range idxs {
		m := st.mentions[i]
		if !m.Uncertain {
			continue
		}
		uncertain = true
		// An uncertain mention can join a confident cluster, but the
		// entity's confidence is capped at that mention's own
		// similarity to its cluster
		if len(idxs) > 1 {
			if sim, ok := clusterSimilarity(st, i, idxs); ok && sim < confidence {
				confidence = sim
			}
		}
	}

	entity := model.CanonicalEntity{
		ID:         entityID(first.Type, first.RecordID),
		Type:       first.Type,
		Name:       first.Name,
		Confidence: confidence,
		Uncertain:  uncertain,
		Attributes: mergeAttributes(st, idxs),
	}
	for _, i := range idxs {
		entity.Mentions = append(entity.Mentions, st.mentions[i].RecordID)
	}
	if id, ok := entity.Attributes[r.registry.IdentifyingAttribute(entity.Type)]; ok && id.Value.Text != "" {
		entity.Name = id.Value.Text
	}
	return entity
}

// clusterSimilarity is the best scored pair between mention i and its
// co-members
func clusterSimilarity(st *clusterState, i int, idxs []int) (float64, bool) {
	best, found := 0.0, false
	for _, j := range idxs {
		if j == i {
			continue
		}
		key := pairKey{i, j}
		if j < i {
			key = pairKey{j, i}
		}
		if s, ok := st.pairScores[key]; ok {
			found = true
			if s > best {
				best = s
			}
		}
	}
	return best, found
}

type valueGroup struct {
	value    model.AttrValue
	support  int
	earliest string
	records  []string
}

// mergeAttributes conflict-resolves the cluster's attributes. Per
// attribute the value with the highest corroboration count wins; ties
// break by earliest record id. Overlapping date ranges corroborate each
// other and merge into their envelope.
func mergeAttributes(st *clusterState, idxs []int) map[string]model.ResolvedAttr {
	byName := make(map[string][]valueGroup)

	for _, i := range idxs {
		m := st.mentions[i]
		names := make([]string, 0, len(m.Attributes))
		for name := range m.Attributes {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			v := m.Attributes[name]
			groups := byName[name]
			placed := false
			for gi := range groups {
				if sameValue(groups[gi].value, v) {
					groups[gi].support++
					groups[gi].records = append(groups[gi].records, m.RecordID)
					if v.Kind == model.KindDate && v.Date != nil && groups[gi].value.Date != nil {
						u := groups[gi].value.Date.Union(*v.Date)
						groups[gi].value.Date = &u
					}
					placed = true
					break
				}
			}
			if !placed {
				groups = append(groups, valueGroup{
					value:    v,
					support:  1,
					earliest: m.RecordID,
					records:  []string{m.RecordID},
				})
			}
			byName[name] = groups
		}
	}

	out := make(map[string]model.ResolvedAttr, len(byName))
	for name, groups := range byName {
		best := 0
		for gi := 1; gi < len(groups); gi++ {
			if groups[gi].support > groups[best].support ||
				(groups[gi].support == groups[best].support && groups[gi].earliest < groups[best].earliest) {
				best = gi
			}
		}
		g := groups[best]
		prov := make([]model.Provenance, 0, len(g.records))
		for _, rec := range g.records {
			prov = append(prov, model.Provenance{RecordID: rec, Stage: model.StageResolve})
		}
		out[name] = model.ResolvedAttr{Value: g.value, Support: g.support, Provenance: prov}
	}
	return out
}

// sameValue reports whether a new value corroborates the group: exact
// canonical key match, or overlapping ranges for dates
func sameValue(a, b model.AttrValue) bool {
	if a.Kind != b.Kind {
		return false
	}
	if a.Kind == model.KindDate && a.Date != nil && b.Date != nil {
		return a.Date.Overlaps(*b.Date)
	}
	return a.Key() == b.Key()
}

// entityID derives a stable id from the cluster's type and earliest
// record, so identical input always exports identical ids
func entityID(entityType, earliestRecord string) string {
	return uuid.NewSHA1(entityNamespace, []byte(entityType+"|"+earliestRecord)).String()
}
