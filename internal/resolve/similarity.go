package resolve

import (
	"github.com/mbarbier/studium/internal/model"
	"github.com/mbarbier/studium/internal/normalize"
)

// PairScore is the transparent breakdown of one pairwise comparison.
// Total is in [0,1]; the components explain how it was reached.
type PairScore struct {
	Name           float64 // Normalized name similarity
	Attr           float64 // Attribute agreement in [-1,1]; negative is active disagreement
	AttrComparable bool    // Whether any attribute was comparable at all
	XRef           bool    // Explicit cross-reference between the records
	Total          float64
}

// ScorePair scores two mentions. Type compatibility is a precondition the
// resolver checks before calling; it is not an input to the score.
// Weights renormalize over the components that are actually present, so a
// pair with no comparable attributes is judged on name alone.
func ScorePair(cfg model.ResolverConfig, a, b *model.Mention) PairScore {
	s := PairScore{Name: NameSimilarity(a.Name, b.Name)}

	s.Attr, s.AttrComparable = attributeAgreement(a, b)
	s.XRef = crossReferenced(a, b)

	num := cfg.NameWeight * s.Name
	den := cfg.NameWeight
	if s.AttrComparable {
		num += cfg.AttrWeight * s.Attr
		den += cfg.AttrWeight
	}
	if s.XRef {
		num += cfg.XRefWeight
		den += cfg.XRefWeight
	}
	if den > 0 {
		s.Total = num / den
	}
	if s.Total < 0 {
		s.Total = 0
	}
	if s.Total > 1 {
		s.Total = 1
	}
	return s
}

// attributeAgreement compares attributes present on both mentions with
// the same declared kind. Dates agree when their ranges overlap and
// actively disagree when disjoint; other kinds compare by canonical key.
// Returns (agree-disagree)/compared and whether anything was comparable.
func attributeAgreement(a, b *model.Mention) (float64, bool) {
	agree, compared := 0, 0
	for name, av := range a.Attributes {
		bv, ok := b.Attributes[name]
		if !ok || bv.Kind != av.Kind {
			continue
		}
		if av.Kind == model.KindReference {
			// References are handled as the explicit cross-reference signal
			continue
		}
		if av.Text == a.Name && bv.Text == b.Name {
			// The identifying values are the name signal, already scored
			continue
		}
		compared++
		if av.Kind == model.KindDate && av.Date != nil && bv.Date != nil {
			if av.Date.Overlaps(*bv.Date) {
				agree++
			}
			continue
		}
		if av.Key() == bv.Key() {
			agree++
		}
	}
	if compared == 0 {
		return 0, false
	}
	disagree := compared - agree
	return float64(agree-disagree) / float64(compared), true
}

// crossReferenced reports whether either record explicitly names the
// other through a reference attribute
func crossReferenced(a, b *model.Mention) bool {
	for _, ref := range a.CrossRefs {
		if ref == b.RecordID {
			return true
		}
	}
	for _, ref := range b.CrossRefs {
		if ref == a.RecordID {
			return true
		}
	}
	return false
}

// NameSimilarity compares two names. Tokenized best-pair Jaro-Winkler
// handles medieval orthographic variants ("Parisius"/"Paris") better than
// whole-string comparison; the full-string score is kept as a floor for
// names that tokenize poorly.
func NameSimilarity(a, b string) float64 {
	fa, fb := normalize.Fold(a), normalize.Fold(b)
	if fa == "" || fb == "" {
		return 0
	}
	if fa == fb {
		return 1
	}

	full := jaroWinkler(fa, fb)

	ta, tb := significantTokens(a), significantTokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return full
	}
	if len(ta) > len(tb) {
		ta, tb = tb, ta
	}
	var sum float64
	for _, t := range ta {
		best := 0.0
		for _, u := range tb {
			if s := jaroWinkler(t, u); s > best {
				best = s
			}
		}
		sum += best
	}
	tokens := sum / float64(len(ta))

	if tokens > full {
		return tokens
	}
	return full
}

// Name particles carry no identity signal
var particles = map[string]bool{
	"de": true, "del": true, "della": true, "di": true, "da": true,
	"du": true, "des": true, "la": true, "le": true, "van": true,
	"von": true, "of": true, "the": true,
}

func significantTokens(name string) []string {
	all := normalize.NameTokens(name)
	out := all[:0]
	for _, t := range all {
		if !particles[t] {
			out = append(out, t)
		}
	}
	return out
}

// jaroWinkler computes the Jaro-Winkler similarity of two folded strings
func jaroWinkler(a, b string) float64 {
	j := jaro(a, b)
	if j == 0 {
		return 0
	}
	// Common prefix boost, capped at 4 runes
	prefix := 0
	ra, rb := []rune(a), []rune(b)
	for prefix < len(ra) && prefix < len(rb) && prefix < 4 && ra[prefix] == rb[prefix] {
		prefix++
	}
	return j + float64(prefix)*0.1*(1-j)
}

func jaro(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)
	if la == 0 || lb == 0 {
		return 0
	}

	window := la
	if lb > window {
		window = lb
	}
	window = window/2 - 1
	if window < 0 {
		window = 0
	}

	matchedA := make([]bool, la)
	matchedB := make([]bool, lb)
	matches := 0
	for i := 0; i < la; i++ {
		lo := i - window
		if lo < 0 {
			lo = 0
		}
		hi := i + window + 1
		if hi > lb {
			hi = lb
		}
		for j := lo; j < hi; j++ {
			if matchedB[j] || ra[i] != rb[j] {
				continue
			}
			matchedA[i] = true
			matchedB[j] = true
			matches++
			break
		}
	}
	if matches == 0 {
		return 0
	}

	transpositions := 0
	j := 0
	for i := 0; i < la; i++ {
		if !matchedA[i] {
			continue
		}
		for !matchedB[j] {
			j++
		}
		if ra[i] != rb[j] {
			transpositions++
		}
		j++
	}
	t := float64(transpositions) / 2

	m := float64(matches)
	return (m/float64(la) + m/float64(lb) + (m-t)/m) / 3
}
