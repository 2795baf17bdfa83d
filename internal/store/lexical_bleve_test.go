package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBleveLexicalIndex_RebuildAndSearch(t *testing.T) {
	idx, err := NewBleveLexicalIndex("")
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.Rebuild(context.Background(), docsFixture()))
	require.True(t, idx.Ready())

	results, err := idx.Search(context.Background(), "lokalu", 10)

	require.NoError(t, err)
	require.Len(t, results, 2)
	hitIDs := []string{results[0].DocID, results[1].DocID}
	assert.ElementsMatch(t, []string{"c1", "c2"}, hitIDs)
}

func TestBleveLexicalIndex_RebuildReplacesCorpus(t *testing.T) {
	idx, err := NewBleveLexicalIndex("")
	require.NoError(t, err)
	defer idx.Close()
	require.NoError(t, idx.Rebuild(context.Background(), docsFixture()))

	require.NoError(t, idx.Rebuild(context.Background(), []*Document{
		{ID: "n1", Content: "regulamin parkingu"},
	}))

	old, err := idx.Search(context.Background(), "lokalu", 10)
	require.NoError(t, err)
	assert.Empty(t, old)

	stats := idx.Stats()
	assert.Equal(t, 1, stats.DocumentCount)
}

func TestBleveLexicalIndex_DiskRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lexical.bleve")

	first, err := NewBleveLexicalIndex(path)
	require.NoError(t, err)
	require.NoError(t, first.Rebuild(context.Background(), docsFixture()))
	require.NoError(t, first.Close())

	second, err := NewBleveLexicalIndex(path)
	require.NoError(t, err)
	defer second.Close()
	require.True(t, second.LoadCache())

	results, err := second.Search(context.Background(), "faktura", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c3", results[0].DocID)
}

func TestBleveLexicalIndex_MissingDirIsMiss(t *testing.T) {
	idx, err := NewBleveLexicalIndex(filepath.Join(t.TempDir(), "absent.bleve"))
	require.NoError(t, err)
	defer idx.Close()

	assert.False(t, idx.LoadCache())
	assert.False(t, idx.Ready())
}

func TestNewLexicalIndex_Factory(t *testing.T) {
	mem, err := NewLexicalIndex("memory", "", DefaultBM25Config())
	require.NoError(t, err)
	assert.IsType(t, &MemoryLexicalIndex{}, mem)

	def, err := NewLexicalIndex("", "", DefaultBM25Config())
	require.NoError(t, err)
	assert.IsType(t, &MemoryLexicalIndex{}, def)

	blv, err := NewLexicalIndex("bleve", "", DefaultBM25Config())
	require.NoError(t, err)
	assert.IsType(t, &BleveLexicalIndex{}, blv)

	_, err = NewLexicalIndex("elastic", "", DefaultBM25Config())
	assert.Error(t, err)
}
