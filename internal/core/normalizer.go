package core

import "strings"

// DefaultAliases maps alternate phrasings seen in user queries to the
// canonical form used throughout the corpus. Extend as new synonyms surface.
var DefaultAliases = map[string]string{
	"ស្រូវស្បៃមង្គល": "ស្រូវដំណើបស្បៃមង្គល",
}

// Normalizer rewrites known alias phrases so queries match the corpus wording.
type Normalizer struct {
	aliases map[string]string
}

func NewNormalizer(aliases map[string]string) *Normalizer {
	return &Normalizer{aliases: aliases}
}

// Normalize replaces occurrences of the first alias key found in the query
// with its canonical form. At most one rule is applied per query; a query with
// no matching alias is returned unchanged.
func (n *Normalizer) Normalize(query string) string {
	for alias, canonical := range n.aliases {
		if strings.Contains(query, alias) {
			return strings.ReplaceAll(query, alias, canonical)
		}
	}
	return query
}
