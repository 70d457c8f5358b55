package resolve

import (
	"math/rand"
	"reflect"
	"testing"

	"github.com/mbarbier/studium/internal/model"
	"github.com/mbarbier/studium/internal/schema"
)

const testSchema = `{
  "types": [
    {
      "name": "person",
      "attributes": [
        {"name": "name", "kind": "string", "identifying": true},
        {"name": "active", "kind": "date"},
        {"name": "occupation", "kind": "string"},
        {"name": "see_also", "kind": "reference"}
      ]
    },
    {"name": "master", "parent": "person"},
    {
      "name": "place",
      "attributes": [{"name": "name", "kind": "string", "identifying": true}]
    }
  ]
}`

func testRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	registry, err := schema.Parse([]byte(testSchema))
	if err != nil {
		t.Fatalf("schema.Parse: %v", err)
	}
	return registry
}

func testResolver(t *testing.T) *Resolver {
	t.Helper()
	r, err := NewResolver(testRegistry(t), model.DefaultConfig().Resolver)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	return r
}

func person(record, name string, attrs map[string]model.AttrValue) *model.Mention {
	if attrs == nil {
		attrs = map[string]model.AttrValue{}
	}
	attrs["name"] = model.AttrValue{Kind: model.KindString, Text: name}
	return &model.Mention{
		RecordID:   record,
		Type:       "person",
		Name:       name,
		Attributes: attrs,
	}
}

func activeYear(start, end int) model.AttrValue {
	return model.AttrValue{Kind: model.KindDate, Date: &model.DateRange{
		Start: start, End: end,
		StartQualifier: model.QualifierSimple,
		EndQualifier:   model.QualifierSimple,
	}}
}

func occupation(v string) model.AttrValue {
	return model.AttrValue{Kind: model.KindString, Text: v}
}

func TestNewResolver_ThresholdGap(t *testing.T) {
	cfg := model.DefaultConfig().Resolver
	cfg.MergeThreshold = 0.3
	cfg.ConflictThreshold = 0.3
	if _, err := NewResolver(testRegistry(t), cfg); err == nil {
		t.Fatal("Expected error when merge threshold does not exceed conflict threshold")
	}
}

func TestResolve_VariantSpellingsMerge(t *testing.T) {
	r := testResolver(t)

	// Orthographic variants of the same scholar, agreeing on occupation
	mentions := []*model.Mention{
		person("reg-001", "Johannes de Parisius", map[string]model.AttrValue{"occupation": occupation("magister")}),
		person("reg-002", "Jean de Paris", map[string]model.AttrValue{"occupation": occupation("magister")}),
	}

	result, err := r.Resolve(mentions)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(result.Entities) != 1 {
		t.Fatalf("Expected 1 entity, got %d", len(result.Entities))
	}
	if result.MergedPairs != 1 {
		t.Errorf("MergedPairs = %d, want 1", result.MergedPairs)
	}

	e := result.Entities[0]
	if len(e.Mentions) != 2 {
		t.Errorf("Mentions = %v, want both records", e.Mentions)
	}
	if e.Confidence >= 1.0 || e.Confidence < r.cfg.MergeThreshold {
		t.Errorf("Confidence = %.3f, want the triggering pair score in [%.2f, 1)", e.Confidence, r.cfg.MergeThreshold)
	}
	if result.EntityOf["reg-001"] != result.EntityOf["reg-002"] {
		t.Error("Expected both records mapped to the same entity")
	}
}

func TestResolve_SameNameDisjointDatesSeparate(t *testing.T) {
	r := testResolver(t)

	// Identical names a century apart never merge
	mentions := []*model.Mention{
		person("reg-001", "Guillelmus Arnaldi", map[string]model.AttrValue{"active": activeYear(1300, 1305)}),
		person("reg-002", "Guillelmus Arnaldi", map[string]model.AttrValue{"active": activeYear(1400, 1405)}),
	}

	result, err := r.Resolve(mentions)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(result.Entities) != 2 {
		t.Fatalf("Expected 2 entities, got %d", len(result.Entities))
	}
	if result.EntityOf["reg-001"] == result.EntityOf["reg-002"] {
		t.Error("Expected the records to stay apart")
	}
	for _, e := range result.Entities {
		if e.Confidence != 1.0 {
			t.Errorf("Singleton confidence = %.3f, want 1.0", e.Confidence)
		}
	}
}

func TestResolve_SeparatorBlocksTransitiveMerge(t *testing.T) {
	r := testResolver(t)

	// A and C are hard-separated by disjoint dates; B matches both by
	// name. The separator must win over the transitive chain.
	mentions := []*model.Mention{
		person("reg-001", "Petrus de Alvernia", map[string]model.AttrValue{"active": activeYear(1290, 1295)}),
		person("reg-002", "Petrus de Alvernia", nil),
		person("reg-003", "Petrus de Alvernia", map[string]model.AttrValue{"active": activeYear(1420, 1425)}),
	}

	result, err := r.Resolve(mentions)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if result.EntityOf["reg-001"] == result.EntityOf["reg-003"] {
		t.Fatal("Separated mentions ended up in the same cluster")
	}
	if result.SeparatorHits == 0 {
		t.Error("Expected at least one refused merge")
	}
	if len(result.Entities) != 2 {
		t.Errorf("Expected 2 entities, got %d", len(result.Entities))
	}
}

func TestResolve_OrderInvariance(t *testing.T) {
	r := testResolver(t)

	build := func() []*model.Mention {
		return []*model.Mention{
			person("reg-001", "Johannes de Parisius", map[string]model.AttrValue{"occupation": occupation("magister")}),
			person("reg-002", "Jean de Paris", map[string]model.AttrValue{"occupation": occupation("magister")}),
			person("reg-003", "Guillelmus Arnaldi", map[string]model.AttrValue{"active": activeYear(1300, 1305)}),
			person("reg-004", "Guillelmus Arnaldi", map[string]model.AttrValue{"active": activeYear(1400, 1405)}),
			person("reg-005", "Petrus de Alvernia", nil),
		}
	}

	baseline, err := r.Resolve(build())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 10; trial++ {
		shuffled := build()
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		got, err := r.Resolve(shuffled)
		if err != nil {
			t.Fatalf("Resolve (trial %d): %v", trial, err)
		}
		if !reflect.DeepEqual(got.EntityOf, baseline.EntityOf) {
			t.Fatalf("Trial %d: partition differs from baseline\nbaseline: %v\ngot: %v",
				trial, baseline.EntityOf, got.EntityOf)
		}
		if !reflect.DeepEqual(got.Entities, baseline.Entities) {
			t.Fatalf("Trial %d: entities differ from baseline", trial)
		}
	}
}

func TestResolve_DeterministicIDs(t *testing.T) {
	r := testResolver(t)

	mentions := []*model.Mention{
		person("reg-001", "Johannes de Parisius", map[string]model.AttrValue{"occupation": occupation("magister")}),
		person("reg-002", "Jean de Paris", map[string]model.AttrValue{"occupation": occupation("magister")}),
	}

	first, err := r.Resolve(mentions)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	second, err := r.Resolve(mentions)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if first.Entities[0].ID != second.Entities[0].ID {
		t.Errorf("Entity id changed between runs: %s vs %s", first.Entities[0].ID, second.Entities[0].ID)
	}
	if first.Entities[0].ID == "" {
		t.Error("Expected non-empty entity id")
	}
}

func TestResolve_UncertainMentionCapsConfidence(t *testing.T) {
	r := testResolver(t)

	uncertain := person("reg-002", "Jean de Paris", map[string]model.AttrValue{"occupation": occupation("magister")})
	uncertain.Uncertain = true

	mentions := []*model.Mention{
		person("reg-001", "Johannes de Parisius", map[string]model.AttrValue{"occupation": occupation("magister")}),
		uncertain,
	}

	result, err := r.Resolve(mentions)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(result.Entities) != 1 {
		t.Fatalf("Expected the uncertain mention to still merge, got %d entities", len(result.Entities))
	}

	e := result.Entities[0]
	if !e.Uncertain {
		t.Error("Expected the entity to carry the uncertainty flag")
	}
	pair := ScorePair(r.cfg, mentions[0], mentions[1])
	if e.Confidence > pair.Total {
		t.Errorf("Confidence %.3f exceeds the uncertain mention's own pair score %.3f", e.Confidence, pair.Total)
	}
}

func TestResolve_AttributeCorroboration(t *testing.T) {
	r := testResolver(t)

	// Four records for one scholar. Two say magister, one says scriptor;
	// the dissenter still joins the cluster because its dates agree with
	// a record that carries no occupation at all.
	mentions := []*model.Mention{
		person("reg-001", "Johannes de Parisius", map[string]model.AttrValue{
			"occupation": occupation("magister"), "active": activeYear(1340, 1350)}),
		person("reg-002", "Johannes de Parisius", map[string]model.AttrValue{
			"occupation": occupation("magister"), "active": activeYear(1341, 1351)}),
		person("reg-003", "Johannes de Parisius", map[string]model.AttrValue{
			"occupation": occupation("scriptor"), "active": activeYear(1342, 1352)}),
		person("reg-004", "Johannes de Parisius", map[string]model.AttrValue{
			"active": activeYear(1343, 1353)}),
	}

	result, err := r.Resolve(mentions)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(result.Entities) != 1 {
		t.Fatalf("Expected 1 entity, got %d", len(result.Entities))
	}

	occ, ok := result.Entities[0].Attributes["occupation"]
	if !ok {
		t.Fatal("occupation missing from merged entity")
	}
	if occ.Value.Text != "magister" {
		t.Errorf("occupation = %q, want the better-supported value", occ.Value.Text)
	}
	if occ.Support != 2 {
		t.Errorf("Support = %d, want 2", occ.Support)
	}
	if len(occ.Provenance) != 2 {
		t.Errorf("Provenance = %v, want the two supporting records", occ.Provenance)
	}

	active := result.Entities[0].Attributes["active"]
	if active.Value.Date == nil || active.Value.Date.Start != 1340 || active.Value.Date.End != 1353 {
		t.Errorf("active = %+v, want the 1340-1353 envelope", active.Value.Date)
	}
	if active.Support != 4 {
		t.Errorf("active Support = %d, want 4", active.Support)
	}
}

func TestResolve_OverlappingDatesMergeToEnvelope(t *testing.T) {
	r := testResolver(t)

	mentions := []*model.Mention{
		person("reg-001", "Johannes de Parisius", map[string]model.AttrValue{
			"occupation": occupation("magister"),
			"active":     activeYear(1340, 1350),
		}),
		person("reg-002", "Jean de Paris", map[string]model.AttrValue{
			"occupation": occupation("magister"),
			"active":     activeYear(1348, 1360),
		}),
	}

	result, err := r.Resolve(mentions)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(result.Entities) != 1 {
		t.Fatalf("Expected 1 entity, got %d", len(result.Entities))
	}

	active := result.Entities[0].Attributes["active"]
	if active.Value.Date == nil || active.Value.Date.Start != 1340 || active.Value.Date.End != 1360 {
		t.Errorf("active = %+v, want the 1340-1360 envelope", active.Value.Date)
	}
	if active.Support != 2 {
		t.Errorf("Support = %d, want 2", active.Support)
	}
}

func TestResolve_CrossReferenceBoostsScore(t *testing.T) {
	r := testResolver(t)

	a := person("reg-001", "Johannes de Parisius", nil)
	b := person("reg-002", "Jean de Paris", nil)
	withRef := person("reg-002", "Jean de Paris", nil)
	withRef.CrossRefs = []string{"reg-001"}

	plain := ScorePair(r.cfg, a, b)
	boosted := ScorePair(r.cfg, a, withRef)
	if boosted.Total <= plain.Total {
		t.Errorf("Expected cross-reference to raise the score: %.3f vs %.3f", boosted.Total, plain.Total)
	}
	if !boosted.XRef {
		t.Error("Expected XRef component to be set")
	}
}

func TestResolve_IncompatibleTypesNeverCompared(t *testing.T) {
	r := testResolver(t)

	mentions := []*model.Mention{
		person("reg-001", "Parisius", nil),
		{
			RecordID: "reg-002",
			Type:     "place",
			Name:     "Parisius",
			Attributes: map[string]model.AttrValue{
				"name": {Kind: model.KindString, Text: "Parisius"},
			},
		},
	}

	result, err := r.Resolve(mentions)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(result.Entities) != 2 {
		t.Fatalf("Expected identical names of incompatible types to stay apart, got %d entities", len(result.Entities))
	}
}

func TestResolve_SubtypeMergesWithParentType(t *testing.T) {
	r := testResolver(t)

	sub := &model.Mention{
		RecordID: "reg-002",
		Type:     "master",
		Name:     "Jean de Paris",
		Attributes: map[string]model.AttrValue{
			"name":       {Kind: model.KindString, Text: "Jean de Paris"},
			"occupation": occupation("magister"),
		},
	}
	mentions := []*model.Mention{
		person("reg-001", "Johannes de Parisius", map[string]model.AttrValue{"occupation": occupation("magister")}),
		sub,
	}

	result, err := r.Resolve(mentions)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(result.Entities) != 1 {
		t.Fatalf("Expected subtype and parent type to merge, got %d entities", len(result.Entities))
	}
}

func TestResolve_ContractViolation(t *testing.T) {
	r := testResolver(t)

	mentions := []*model.Mention{
		{RecordID: "reg-001", Type: "dragon", Name: "Fafnir"},
	}
	_, err := r.Resolve(mentions)
	if err == nil {
		t.Fatal("Expected contract violation")
	}
	if _, ok := err.(*ContractViolation); !ok {
		t.Errorf("Expected *ContractViolation, got %T", err)
	}
}

func TestResolve_Empty(t *testing.T) {
	r := testResolver(t)

	result, err := r.Resolve(nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(result.Entities) != 0 || result.MergedPairs != 0 {
		t.Errorf("Expected empty result, got %+v", result)
	}
}
