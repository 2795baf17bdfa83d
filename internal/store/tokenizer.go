package store

import "strings"

// Tokenize splits text for BM25 indexing and querying: case-folded,
// whitespace-separated. No stemming and no stop words, so Polish documents
// and queries match on exact word forms. Build and query paths must use
// this same function.
func Tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}
