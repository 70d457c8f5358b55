package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Editorial markers the source corpus uses inside values: $ and £ flag
// manuscript readings, * flags restored text, = joins name parts.
var markerReplacer = strings.NewReplacer("$", "", "£", "", "*", "", "=", " ")

// Placeholder values that mean "no data" in the corpus
var stopWords = map[string]bool{
	"INCONNU":      true,
	"NON SPÉCIFIÉ": true,
	"NON SPECIFIE": true,
	"UNKNOWN":      true,
	"?":            true,
	"":             true,
}

var (
	emptyParens = regexp.MustCompile(`\(\s*\)`)
	multiSpace  = regexp.MustCompile(`\s{2,}`)
)

// Clean strips editorial markers and collapses whitespace. Returns "" for
// values that are stop words or empty after cleaning.
func Clean(text string) string {
	t := markerReplacer.Replace(strings.TrimSpace(text))
	t = strings.ReplaceAll(t, "?", "")
	t = emptyParens.ReplaceAllString(t, "")
	t = multiSpace.ReplaceAllString(t, " ")
	t = strings.TrimRight(t, ";,. ")
	t = strings.TrimSpace(t)
	if stopWords[strings.ToUpper(t)] {
		return ""
	}
	return t
}

// StripUncertainty detects the corpus '?' uncertainty marker anywhere in
// the value, removes it and reports whether it was present
func StripUncertainty(text string) (string, bool) {
	t := strings.TrimSpace(text)
	if t == "" {
		return "", false
	}
	if !strings.Contains(t, "?") {
		return t, false
	}
	t = strings.ReplaceAll(t, "?", "")
	t = emptyParens.ReplaceAllString(t, "")
	t = strings.ReplaceAll(t, "( ", "(")
	t = strings.ReplaceAll(t, " )", ")")
	t = multiSpace.ReplaceAllString(t, " ")
	t = strings.TrimRight(strings.TrimSpace(t), ".,;: ")
	return strings.TrimSpace(t), true
}

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold lowercases and strips diacritics for fuzzy key matching
// ("Université" -> "universite")
func Fold(text string) string {
	t := strings.ToLower(strings.TrimSpace(text))
	folded, _, err := transform.String(foldTransformer, t)
	if err != nil {
		return t
	}
	return folded
}

// NameTokens splits a cleaned name into folded tokens, dropping
// single-letter particles
func NameTokens(name string) []string {
	fields := strings.FieldsFunc(Fold(name), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) > 1 {
			out = append(out, f)
		}
	}
	return out
}
