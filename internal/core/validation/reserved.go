package validation

import "strings"

// ReservedWords is a blacklist of literal values compared case-insensitively
// against the whole candidate string.
type ReservedWords struct {
	words []string
}

// NewReservedWords copies words; blank entries are dropped.
func NewReservedWords(words ...string) ReservedWords {
	kept := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.TrimSpace(w); w != "" {
			kept = append(kept, w)
		}
	}
	return ReservedWords{words: kept}
}

// Allows reports whether value differs from every reserved word under
// Unicode simple case folding.
func (r ReservedWords) Allows(value string) bool {
	for _, w := range r.words {
		if strings.EqualFold(w, value) {
			return false
		}
	}
	return true
}

// Words returns a copy of the configured words.
func (r ReservedWords) Words() []string {
	return append([]string(nil), r.words...)
}
