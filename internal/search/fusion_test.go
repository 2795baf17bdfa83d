package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuseRankings_TwoLists(t *testing.T) {
	// given two stage rankings that agree on the top document
	dense := []string{"b", "a", "c"}
	lexical := []string{"b", "d", "a"}

	// when fusing with the default constant
	fused := FuseRankings(DefaultRRFK, dense, lexical)

	// then every document appears once, ordered by accumulated score
	require.Len(t, fused, 4)
	assert.Equal(t, "b", fused[0].ID)
	assert.Equal(t, "a", fused[1].ID)
	assert.Equal(t, "d", fused[2].ID)
	assert.Equal(t, "c", fused[3].ID)

	assert.InDelta(t, 1.0/61+1.0/61, fused[0].Score, 1e-12)
	assert.InDelta(t, 1.0/62+1.0/63, fused[1].Score, 1e-12)
	assert.InDelta(t, 1.0/62, fused[2].Score, 1e-12)
	assert.InDelta(t, 1.0/63, fused[3].Score, 1e-12)
}

func TestFuseRankings_SingleList(t *testing.T) {
	// given only one stage produced results
	fused := FuseRankings(DefaultRRFK, []string{"x", "y", "z"})

	// then the input order is preserved with pure reciprocal scores
	require.Len(t, fused, 3)
	assert.Equal(t, []string{"x", "y", "z"}, ids(fused))
	assert.InDelta(t, 1.0/61, fused[0].Score, 1e-12)
	assert.InDelta(t, 1.0/62, fused[1].Score, 1e-12)
	assert.InDelta(t, 1.0/63, fused[2].Score, 1e-12)
}

func TestFuseRankings_TieBreakByID(t *testing.T) {
	// given two documents with identical contributions
	dense := []string{"zeta", "alpha"}
	lexical := []string{"alpha", "zeta"}

	// when both end up with the same score
	fused := FuseRankings(DefaultRRFK, dense, lexical)

	// then ids break the tie ascending
	require.Len(t, fused, 2)
	assert.InDelta(t, fused[0].Score, fused[1].Score, 1e-12)
	assert.Equal(t, "alpha", fused[0].ID)
	assert.Equal(t, "zeta", fused[1].ID)
}

func TestFuseRankings_EmptyInputs(t *testing.T) {
	assert.Empty(t, FuseRankings(DefaultRRFK))
	assert.Empty(t, FuseRankings(DefaultRRFK, nil, nil))
}

func TestFuseRankings_NonPositiveKUsesDefault(t *testing.T) {
	fused := FuseRankings(0, []string{"a"})
	require.Len(t, fused, 1)
	assert.InDelta(t, 1.0/61, fused[0].Score, 1e-12)
}

func ids(fused []FusedDoc) []string {
	out := make([]string, len(fused))
	for i, f := range fused {
		out[i] = f.ID
	}
	return out
}
