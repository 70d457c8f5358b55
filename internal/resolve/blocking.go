package resolve

import (
	"github.com/mbarbier/studium/internal/model"
	"github.com/mbarbier/studium/internal/schema"
)

// Blocking keys are deliberately coarse: a short folded prefix of each
// significant name token plus the root ontology type. Only mentions that
// share at least one key are ever compared, which keeps the pairwise
// phase near-linear. A short prefix (rather than the whole token) lets
// orthographic variants like "Paris"/"Parisius" land in the same block.

const blockPrefixLen = 4

// BlockKeys returns the candidate block keys for a mention. An empty
// result makes the mention a singleton block.
func BlockKeys(m *model.Mention, registry *schema.Registry) []string {
	root := registry.Root(m.Type)
	tokens := significantTokens(m.Name)
	if len(tokens) == 0 {
		return nil
	}
	keys := make([]string, 0, len(tokens))
	seen := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		p := t
		if len(p) > blockPrefixLen {
			p = p[:blockPrefixLen]
		}
		key := p + "|" + root
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	return keys
}
