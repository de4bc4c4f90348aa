package patterns

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// normalizeText folds case, applies NFKC and collapses whitespace.
func normalizeText(s string) string {
	folded := cases.Fold().String(norm.NFKC.String(s))
	return strings.Join(strings.Fields(folded), " ")
}

// trimPunct strips leading and trailing punctuation and symbols.
func trimPunct(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r) || unicode.IsSpace(r)
	})
}

// tokenSet splits normalized text into letter/digit runs. Single-rune tokens
// (conjunctions, prepositions like "и", "в") are dropped.
func tokenSet(normalized string) map[string]struct{} {
	fields := strings.FieldsFunc(normalized, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if utf8.RuneCountInString(f) < 2 {
			continue
		}
		set[f] = struct{}{}
	}
	return set
}

// overlap returns |a∩b| / min(|a|,|b|), or 0 when either set is empty.
func overlap(a, b map[string]struct{}) float64 {
	small, large := a, b
	if len(large) < len(small) {
		small, large = large, small
	}
	if len(small) == 0 {
		return 0
	}
	shared := 0
	for tok := range small {
		if _, ok := large[tok]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(small))
}

// Similarity reports how alike two note texts are, in [0,1]. Texts that are
// equal once case, whitespace and surrounding punctuation are ignored score 1.
func Similarity(a, b string) float64 {
	na, nb := normalizeText(a), normalizeText(b)
	if trimPunct(na) == trimPunct(nb) {
		return 1
	}
	return overlap(tokenSet(na), tokenSet(nb))
}

type textKey struct {
	normalized string
	bare       string
	tokens     map[string]struct{}
}

func newTextKey(s string) textKey {
	n := normalizeText(s)
	return textKey{normalized: n, bare: trimPunct(n), tokens: tokenSet(n)}
}

func (k textKey) similar(other textKey, threshold float64) bool {
	if k.bare == other.bare {
		return true
	}
	return overlap(k.tokens, other.tokens) >= threshold
}
