// Package assemble builds the canonical node/edge set from resolved
// entities and the relation claims their mentions carry.
package assemble

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/mbarbier/studium/internal/cache"
	"github.com/mbarbier/studium/internal/model"
	"github.com/mbarbier/studium/internal/normalize"
	"github.com/mbarbier/studium/internal/resolve"
	"github.com/mbarbier/studium/internal/schema"
)

// Assembler resolves relation claims against a frozen entity partition
type Assembler struct {
	registry *schema.Registry
	cfg      model.ResolverConfig
	lookups  cache.Cache // Optional memoization of repeated surface-form lookups
	cacheTTL time.Duration
}

// NewAssembler creates an assembler. The cache may be nil.
func NewAssembler(registry *schema.Registry, cfg model.ResolverConfig, lookups cache.Cache, cacheTTL time.Duration) *Assembler {
	return &Assembler{registry: registry, cfg: cfg, lookups: lookups, cacheTTL: cacheTTL}
}

type cachedLookup struct {
	EntityIndex int     `json:"i"`
	Score       float64 `json:"s"`
}

// Assemble builds the graph. Relation claims whose target clears the
// merge threshold become edges; everything else is dropped into the run
// report, never fabricated as a new entity. The assembled graph contains
// no dangling endpoints by construction.
func (a *Assembler) Assemble(resolved *resolve.Result, mentions []*model.Mention, report *model.RunReport) *model.Graph {
	byRecord := make(map[string]*model.Mention, len(mentions))
	for _, m := range mentions {
		byRecord[m.RecordID] = m
	}
	byID := make(map[string]*model.CanonicalEntity, len(resolved.Entities))
	for i := range resolved.Entities {
		byID[resolved.Entities[i].ID] = &resolved.Entities[i]
	}

	idx := newLookupIndex(resolved.Entities, byRecord, a.registry)

	// Deterministic claim order
	records := make([]string, 0, len(byRecord))
	for rec := range byRecord {
		records = append(records, rec)
	}
	sort.Strings(records)

	relations := make(map[string]*model.Relation)
	for _, rec := range records {
		m := byRecord[rec]
		srcID := resolved.EntityOf[m.RecordID]
		src, ok := byID[srcID]
		if !ok {
			continue
		}
		for _, claim := range m.Relations {
			a.assembleClaim(idx, src, m, claim, relations, report)
		}
	}

	graph := &model.Graph{Entities: resolved.Entities}
	for _, rel := range relations {
		graph.Relations = append(graph.Relations, *rel)
	}
	graph.Sort()
	report.Relations = len(graph.Relations)
	return graph
}

func (a *Assembler) assembleClaim(idx *lookupIndex, src *model.CanonicalEntity, m *model.Mention, claim model.RelationClaim, relations map[string]*model.Relation, report *model.RunReport) {
	spec, ok := a.registry.Relation(claim.Type)
	if !ok {
		report.AddUnresolved(m.RecordID, claim.Type, claim.TargetSurfaceForm, 0)
		return
	}
	surface := normalize.Clean(claim.TargetSurfaceForm)
	if surface == "" {
		report.AddUnresolved(m.RecordID, claim.Type, claim.TargetSurfaceForm, 0)
		return
	}

	target, score := a.resolveTarget(idx, surface, spec, src.Type)
	if target == nil || score < a.cfg.MergeThreshold {
		report.AddUnresolved(m.RecordID, claim.Type, claim.TargetSurfaceForm, score)
		return
	}

	key := src.ID + "|" + target.ID + "|" + claim.Type
	prov := model.Provenance{RecordID: m.RecordID, Stage: model.StageAssemble}
	if existing, dup := relations[key]; dup {
		// Identical (source, target, type): merge provenance, keep the
		// maximum confidence
		existing.Provenance = appendProvenance(existing.Provenance, prov)
		if score > existing.Confidence {
			existing.Confidence = score
		}
		return
	}
	relations[key] = &model.Relation{
		SourceID:   src.ID,
		TargetID:   target.ID,
		Type:       claim.Type,
		Confidence: score,
		Provenance: []model.Provenance{prov},
	}
}

// resolveTarget finds the best already-resolved entity for a surface
// form, memoizing repeated lookups
func (a *Assembler) resolveTarget(idx *lookupIndex, surface string, spec *schema.RelationSpec, srcType string) (*model.CanonicalEntity, float64) {
	cacheKey := cache.Key(spec.Name + "|" + srcType + "|" + surface)
	if a.lookups != nil {
		if data, hit := a.lookups.Get(cacheKey); hit {
			var c cachedLookup
			if err := json.Unmarshal(data, &c); err == nil {
				if c.EntityIndex < 0 {
					return nil, c.Score
				}
				return &idx.entities[c.EntityIndex], c.Score
			}
		}
	}

	targetRoot := a.registry.Root(spec.Target)
	best, score := idx.bestMatch(surface, targetRoot, a.registry, func(i int) bool {
		return a.registry.RelationAllowed(spec.Name, srcType, idx.entities[i].Type)
	})

	if a.lookups != nil {
		if data, err := json.Marshal(cachedLookup{EntityIndex: best, Score: score}); err == nil {
			_ = a.lookups.Set(cacheKey, data, a.cacheTTL)
		}
	}
	if best < 0 {
		return nil, score
	}
	return &idx.entities[best], score
}

func appendProvenance(list []model.Provenance, p model.Provenance) []model.Provenance {
	for _, existing := range list {
		if existing == p {
			return list
		}
	}
	return append(list, p)
}
