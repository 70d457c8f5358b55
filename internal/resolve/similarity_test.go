package resolve

import (
	"testing"

	"github.com/mbarbier/studium/internal/model"
)

func TestNameSimilarity(t *testing.T) {
	cases := []struct {
		a, b string
		min  float64
		max  float64
	}{
		{"Johannes de Parisius", "Johannes de Parisius", 1.0, 1.0},
		{"Université", "universite", 1.0, 1.0}, // Fold-equal
		{"Johannes de Parisius", "Jean de Paris", 0.80, 0.90},
		{"Guillelmus Arnaldi", "Guillelmus Arnaldi", 1.0, 1.0},
		{"Paris", "Parisius", 0.90, 0.95},
		{"Johannes", "Margareta", 0.0, 0.60},
		{"", "Johannes", 0.0, 0.0},
	}
	for _, tc := range cases {
		got := NameSimilarity(tc.a, tc.b)
		if got < tc.min || got > tc.max {
			t.Errorf("NameSimilarity(%q, %q) = %.4f, want in [%.2f, %.2f]", tc.a, tc.b, got, tc.min, tc.max)
		}
	}
}

func TestNameSimilarity_Symmetric(t *testing.T) {
	pairs := [][2]string{
		{"Johannes de Parisius", "Jean de Paris"},
		{"Guillelmus Arnaldi", "Willelmus Arnaldus"},
		{"Paris", "Bononia"},
	}
	for _, p := range pairs {
		ab := NameSimilarity(p[0], p[1])
		ba := NameSimilarity(p[1], p[0])
		if ab != ba {
			t.Errorf("NameSimilarity not symmetric for %q/%q: %.6f vs %.6f", p[0], p[1], ab, ba)
		}
	}
}

func TestNameSimilarity_ParticlesIgnored(t *testing.T) {
	with := NameSimilarity("Johannes de Parisius", "Johannes Parisius")
	if with < 0.99 {
		t.Errorf("Expected particle not to matter, got %.4f", with)
	}
}

func TestJaroWinkler(t *testing.T) {
	if got := jaroWinkler("paris", "paris"); got != 1.0 {
		t.Errorf("Identical strings = %.4f, want 1.0", got)
	}
	if got := jaroWinkler("paris", "xyzzy"); got != 0.0 {
		t.Errorf("Disjoint strings = %.4f, want 0.0", got)
	}
	// Shared prefix outscores the same edits elsewhere
	prefixed := jaroWinkler("parisius", "paris")
	suffixed := jaroWinkler("siusipar", "sirap")
	if prefixed <= suffixed {
		t.Errorf("Expected prefix boost: %.4f vs %.4f", prefixed, suffixed)
	}
}

func TestScorePair_Renormalization(t *testing.T) {
	cfg := model.DefaultConfig().Resolver

	// No comparable attributes, no cross-reference: judged on name alone
	a := &model.Mention{RecordID: "r1", Type: "person", Name: "Johannes"}
	b := &model.Mention{RecordID: "r2", Type: "person", Name: "Johannes"}
	s := ScorePair(cfg, a, b)
	if s.AttrComparable {
		t.Error("Expected no comparable attributes")
	}
	if s.Total != 1.0 {
		t.Errorf("Total = %.4f, want 1.0 on exact name with nothing else present", s.Total)
	}
}

func TestScorePair_ClampedToUnitInterval(t *testing.T) {
	cfg := model.DefaultConfig().Resolver

	disjoint := func(start int) model.AttrValue {
		return model.AttrValue{Kind: model.KindDate, Date: &model.DateRange{
			Start: start, End: start,
			StartQualifier: model.QualifierSimple, EndQualifier: model.QualifierSimple,
		}}
	}
	a := &model.Mention{RecordID: "r1", Type: "person", Name: "Alpha",
		Attributes: map[string]model.AttrValue{"active": disjoint(1300)}}
	b := &model.Mention{RecordID: "r2", Type: "person", Name: "Zeta",
		Attributes: map[string]model.AttrValue{"active": disjoint(1400)}}

	s := ScorePair(cfg, a, b)
	if s.Total < 0 || s.Total > 1 {
		t.Errorf("Total = %.4f, want clamped to [0,1]", s.Total)
	}
	if s.Attr >= 0 {
		t.Errorf("Attr = %.4f, want active disagreement to be negative", s.Attr)
	}
}

func TestBlockKeys(t *testing.T) {
	registry := testRegistry(t)

	m := person("r1", "Johannes de Parisius", nil)
	keys := BlockKeys(m, registry)
	want := map[string]bool{"joha|person": true, "pari|person": true}
	if len(keys) != len(want) {
		t.Fatalf("BlockKeys = %v, want keys %v", keys, want)
	}
	for _, k := range keys {
		if !want[k] {
			t.Errorf("Unexpected block key %q", k)
		}
	}

	// Variants sharing a token prefix block together
	other := person("r2", "Jean de Paris", nil)
	otherKeys := BlockKeys(other, registry)
	shared := false
	for _, k := range keys {
		for _, ok := range otherKeys {
			if k == ok {
				shared = true
			}
		}
	}
	if !shared {
		t.Errorf("Expected %v and %v to share a block", keys, otherKeys)
	}

	// Short tokens use their full length
	short := person("r3", "Po", nil)
	if keys := BlockKeys(short, registry); len(keys) != 1 || keys[0] != "po|person" {
		t.Errorf("BlockKeys(Po) = %v, want [po|person]", keys)
	}

	// No usable tokens means a singleton block
	if keys := BlockKeys(person("r4", "de la", nil), registry); keys != nil {
		t.Errorf("BlockKeys(de la) = %v, want nil", keys)
	}
}
