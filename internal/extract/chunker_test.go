package extract_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/notedex/notedex/internal/extract"
	"github.com/notedex/notedex/internal/model"
)

func TestChunkPageEmptyContent(t *testing.T) {
	chunker := extract.NewChunker(1000, 200)
	chunks, chars, err := chunker.ChunkPage(context.Background(), model.Page{ID: "p1", Content: ""})
	require.NoError(t, err)
	require.Empty(t, chunks)
	require.Equal(t, 0, chars)
}

func TestChunkPageSingleChunk(t *testing.T) {
	chunker := extract.NewChunker(1000, 200)
	page := model.Page{
		ID:         "p1",
		Name:       "France",
		Content:    "Paris is the capital of France.",
		NotebookID: "nb1",
		SectionID:  "sec1",
		TopicID:    "top1",
	}
	chunks, chars, err := chunker.ChunkPage(context.Background(), page)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	require.Equal(t, "Paris is the capital of France.", chunks[0].Text)
	require.Equal(t, 0, chunks[0].ChunkIndex)
	require.Equal(t, "p1", chunks[0].PageID)
	require.Equal(t, "France", chunks[0].PageName)
	require.Equal(t, "nb1", chunks[0].NotebookID)
	require.Equal(t, "sec1", chunks[0].SectionID)
	require.Equal(t, "top1", chunks[0].TopicID)
	require.Equal(t, len(page.Content), chars)
}

func TestChunkPageSplitsLongContent(t *testing.T) {
	paragraph := "The quick brown fox jumps over the lazy dog near the river bank."
	content := strings.Repeat(paragraph+"\n\n", 20)
	chunker := extract.NewChunker(120, 20)

	chunks, chars, err := chunker.ChunkPage(context.Background(), model.Page{ID: "p1", Name: "dogs", Content: content})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	require.Greater(t, chars, 0)
	for i, chunk := range chunks {
		require.Equal(t, i, chunk.ChunkIndex)
		require.NotEmpty(t, chunk.Text)
		require.Contains(t, chunk.Text, "fox")
	}
}

func TestChunkPagesKeepsOrder(t *testing.T) {
	chunker := extract.NewChunker(1000, 200)
	pages := []model.Page{
		{ID: "a", Name: "A", Content: "alpha content here"},
		{ID: "b", Name: "B", Content: ""},
		{ID: "c", Name: "C", Content: "gamma content here"},
	}
	chunks, chars, err := chunker.ChunkPages(context.Background(), pages)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	require.Equal(t, "a", chunks[0].PageID)
	require.Equal(t, "c", chunks[1].PageID)
	require.Equal(t, len("alpha content here")+len("gamma content here"), chars)
}
