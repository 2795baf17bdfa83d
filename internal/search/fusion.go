package search

import "sort"

// DefaultRRFK is the standard reciprocal rank fusion constant.
const DefaultRRFK = 60

// FusedDoc is a document id with its accumulated fusion score.
type FusedDoc struct {
	ID    string
	Score float64
}

// FuseRankings combines ranked id lists with reciprocal rank fusion. Each
// list contributes 1/(k+rank) per document, with rank starting at 1; a
// document absent from a list gets no contribution from it. Ties are broken
// by id ascending so the ordering is deterministic.
func FuseRankings(k int, rankings ...[]string) []FusedDoc {
	if k <= 0 {
		k = DefaultRRFK
	}

	scores := make(map[string]float64)
	for _, ranking := range rankings {
		for i, id := range ranking {
			scores[id] += 1.0 / float64(k+i+1)
		}
	}

	fused := make([]FusedDoc, 0, len(scores))
	for id, score := range scores {
		fused = append(fused, FusedDoc{ID: id, Score: score})
	}
	sort.Slice(fused, func(a, b int) bool {
		if fused[a].Score != fused[b].Score {
			return fused[a].Score > fused[b].Score
		}
		return fused[a].ID < fused[b].ID
	})
	return fused
}
