package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHNSW(t *testing.T) *HNSWIndex {
	t.Helper()
	idx, err := NewHNSWIndex(DefaultHNSWConfig(3))
	require.NoError(t, err)
	return idx
}

func TestHNSWIndex_AddAndSearch(t *testing.T) {
	idx := newTestHNSW(t)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx,
		[]string{"x", "y", "z"},
		[][]float32{{1, 0, 0}, {0, 1, 0}, {0.9, 0.1, 0}}))

	results, err := idx.Search(ctx, []float32{1, 0, 0}, 2)

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "x", results[0].ID)
	assert.Equal(t, "z", results[1].ID)
	assert.Greater(t, results[0].Score, results[1].Score)
	assert.InDelta(t, 1.0, float64(results[0].Score), 1e-5)
}

func TestHNSWIndex_SimilarityScale(t *testing.T) {
	// identical vectors score 1, orthogonal score 0, opposed clamp to 0
	assert.InDelta(t, 1.0, float64(distanceToSimilarity(0)), 1e-6)
	assert.InDelta(t, 0.5, float64(distanceToSimilarity(0.5)), 1e-6)
	assert.InDelta(t, 0.0, float64(distanceToSimilarity(1)), 1e-6)
	assert.InDelta(t, 0.0, float64(distanceToSimilarity(2)), 1e-6)

	idx := newTestHNSW(t)
	ctx := context.Background()
	require.NoError(t, idx.Add(ctx,
		[]string{"x", "y"}, [][]float32{{1, 0, 0}, {0, 1, 0}}))

	results, err := idx.Search(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	// orthogonal vector: cosine distance 1, similarity 0
	assert.Equal(t, "y", results[1].ID)
	assert.InDelta(t, 0.0, float64(results[1].Score), 1e-5)
}

func TestHNSWIndex_DimensionMismatch(t *testing.T) {
	idx := newTestHNSW(t)
	ctx := context.Background()

	err := idx.Add(ctx, []string{"x"}, [][]float32{{1, 0}})
	require.Error(t, err)
	var dimErr ErrVectorDimension
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, 3, dimErr.Expected)
	assert.Equal(t, 2, dimErr.Got)

	_, err = idx.Search(ctx, []float32{1, 0}, 1)
	assert.Error(t, err)
}

func TestHNSWIndex_DeleteHidesVector(t *testing.T) {
	idx := newTestHNSW(t)
	ctx := context.Background()
	require.NoError(t, idx.Add(ctx,
		[]string{"x", "y"}, [][]float32{{1, 0, 0}, {0, 1, 0}}))

	require.NoError(t, idx.Delete(ctx, []string{"x"}))

	assert.False(t, idx.Contains("x"))
	assert.True(t, idx.Contains("y"))
	assert.Equal(t, 1, idx.Count())

	results, err := idx.Search(ctx, []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "x", r.ID)
	}
}

func TestHNSWIndex_ReAddReplaces(t *testing.T) {
	idx := newTestHNSW(t)
	ctx := context.Background()
	require.NoError(t, idx.Add(ctx, []string{"x"}, [][]float32{{1, 0, 0}}))

	// re-adding under the same id points the id at the new vector
	require.NoError(t, idx.Add(ctx, []string{"x"}, [][]float32{{0, 1, 0}}))

	assert.Equal(t, 1, idx.Count())
	results, err := idx.Search(ctx, []float32{0, 1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "x", results[0].ID)
	assert.InDelta(t, 1.0, float64(results[0].Score), 1e-5)
}

func TestHNSWIndex_EmptySearch(t *testing.T) {
	idx := newTestHNSW(t)

	results, err := idx.Search(context.Background(), []float32{1, 0, 0}, 5)

	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHNSWIndex_SaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.hnsw")
	ctx := context.Background()

	first := newTestHNSW(t)
	require.NoError(t, first.Add(ctx,
		[]string{"x", "y"}, [][]float32{{1, 0, 0}, {0, 1, 0}}))
	require.NoError(t, first.Save(path))

	second := newTestHNSW(t)
	require.NoError(t, second.Load(path))

	assert.Equal(t, 2, second.Count())
	results, err := second.Search(ctx, []float32{0, 1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "y", results[0].ID)
}

func TestHNSWIndex_ClosedOperationsFail(t *testing.T) {
	idx := newTestHNSW(t)
	require.NoError(t, idx.Close())

	assert.Error(t, idx.Add(context.Background(), []string{"x"}, [][]float32{{1, 0, 0}}))
	_, err := idx.Search(context.Background(), []float32{1, 0, 0}, 1)
	assert.Error(t, err)
	assert.Zero(t, idx.Count())
}
