package search

import (
	"sort"
	"strings"

	"github.com/mzurek/szperacz/internal/store"
)

// videoKeywords are the Polish and English terms that signal the user is
// asking about video material. Inflected forms are listed explicitly
// because stemming Polish is out of scope.
var videoKeywords = []string{
	"film", "filmie", "filmu", "wideo", "video", "movie", "nagranie", "nagraniu", "klip",
}

// audioKeywords signal interest in audio recordings.
var audioKeywords = []string{
	"audio", "podcast", "podcastu", "podcaście", "dźwięk", "dźwięku", "posłuchać",
}

// ApplyMediaBoost reorders results when the query explicitly mentions a
// media kind: transcription chunks of that kind move ahead of the rest,
// preserving relative order within each group. Queries without media terms
// leave the ranking untouched.
func ApplyMediaBoost(query string, results []*Result) []*Result {
	preferred := preferredChunkType(query)
	if preferred == "" {
		return results
	}

	sort.SliceStable(results, func(a, b int) bool {
		aMatch := results[a].Chunk != nil && results[a].Chunk.ChunkType == preferred
		bMatch := results[b].Chunk != nil && results[b].Chunk.ChunkType == preferred
		return aMatch && !bMatch
	})
	return results
}

func preferredChunkType(query string) store.ChunkType {
	lowered := strings.ToLower(query)
	for _, kw := range videoKeywords {
		if strings.Contains(lowered, kw) {
			return store.ChunkTypeVideo
		}
	}
	for _, kw := range audioKeywords {
		if strings.Contains(lowered, kw) {
			return store.ChunkTypeAudio
		}
	}
	return ""
}
