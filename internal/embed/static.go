package embed

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const staticDimensions = 384

// StaticEmbedder produces deterministic vectors via token feature hashing.
// It requires no model server and no network, which makes it the terminal
// fallback of the provider chain and a convenient test double. The vectors
// carry lexical overlap signal only, not semantics.
type StaticEmbedder struct {
	dims int
}

var _ Embedder = (*StaticEmbedder)(nil)

// NewStaticEmbedder creates a static embedder with the default dimension.
func NewStaticEmbedder() *StaticEmbedder {
	return &StaticEmbedder{dims: staticDimensions}
}

func (e *StaticEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vectors[i] = e.embedOne(text)
	}
	return vectors, nil
}

func (e *StaticEmbedder) embedOne(text string) []float32 {
	vec := make([]float32, e.dims)
	tokens := splitTokens(text)

	var prev string
	for _, tok := range tokens {
		addFeature(vec, tok, 1.0)
		// Bigrams preserve a little word order, which matters for
		// inflected languages where single tokens are ambiguous.
		if prev != "" {
			addFeature(vec, prev+" "+tok, 0.5)
		}
		prev = tok
	}

	normalizeL2(vec)
	return vec
}

func (e *StaticEmbedder) Dimensions() int { return e.dims }

func (e *StaticEmbedder) ModelID() string { return "static-hash-v1" }

func (e *StaticEmbedder) Close() error { return nil }

func addFeature(vec []float32, feature string, weight float32) {
	h := fnv.New64a()
	h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(len(vec)))
	// The high bit picks the sign so hash collisions tend to cancel
	// rather than accumulate.
	sign := float32(1)
	if sum&(1<<63) != 0 {
		sign = -1
	}
	vec[idx] += sign * weight
}

func splitTokens(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

func normalizeL2(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sum))
	for i := range vec {
		vec[i] *= inv
	}
}
