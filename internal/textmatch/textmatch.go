// Package textmatch folds Portuguese free text for case- and accent-insensitive
// keyword matching.
package textmatch

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lowercases s and strips diacritics, so "Reunião" and "reuniao" compare equal.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}

// Keywords splits and folds a keyword list. Entries may themselves contain
// several words ("reunião marketing"); empty entries are dropped.
func Keywords(raw []string) []string {
	var out []string
	for _, entry := range raw {
		for _, w := range strings.FieldsFunc(Fold(entry), isSeparator) {
			if w = strings.Trim(w, "."); w != "" {
				out = append(out, w)
			}
		}
	}
	return out
}

// ContainsAll reports whether every keyword occurs in at least one of the fields.
// An empty keyword list matches nothing.
func ContainsAll(keywords []string, fields ...string) bool {
	if len(keywords) == 0 {
		return false
	}
	folded := make([]string, len(fields))
	for i, f := range fields {
		folded[i] = Fold(f)
	}
	for _, kw := range keywords {
		found := false
		for _, f := range folded {
			if strings.Contains(f, kw) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// stopwords are common verbs and connectives the translator tends to leave in
// keyword lists ("falar com Claudia") that never appear in event titles.
var stopwords = map[string]struct{}{
	"falar": {}, "ver": {}, "ter": {}, "pegar": {}, "fazer": {}, "marcar": {},
	"ir": {}, "conversar": {}, "encontrar": {}, "reunir": {}, "participar": {},
	"tratar": {}, "discutir": {}, "com": {}, "de": {}, "da": {}, "do": {},
	"a": {}, "o": {}, "e": {}, "para": {}, "sobre": {}, "na": {}, "no": {},
}

// StripStopwords removes stoplist entries from already-folded keywords.
func StripStopwords(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if _, stop := stopwords[kw]; stop {
			continue
		}
		out = append(out, kw)
	}
	return out
}

func isSeparator(r rune) bool {
	return unicode.IsSpace(r) || (unicode.IsPunct(r) && r != '@' && r != '-' && r != '.')
}
