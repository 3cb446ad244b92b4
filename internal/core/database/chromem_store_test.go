package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SiegfredLorelle/iskobot-api/internal/models"
)

func records() []models.VectorRecord {
	return []models.VectorRecord{
		{
			ID:        "a",
			Text:      "enrollment opens in june",
			Embedding: []float32{1, 0, 0},
			Metadata:  map[string]any{"source": "handbook.pdf", "page_numbers": []int{1, 2}, "chunk_index": 0},
		},
		{
			ID:        "b",
			Text:      "library hours",
			Embedding: []float32{0, 1, 0},
			Metadata:  map[string]any{"source": "https://plm.edu.ph/library", "chunk_index": 3},
		},
		{
			ID:        "c",
			Text:      "scholarship deadlines",
			Embedding: []float32{0.9, 0.1, 0},
			Metadata:  map[string]any{"source": "https://plm.edu.ph/scholarships"},
		},
	}
}

func TestChromemStore_InsertAndSearch(t *testing.T) {
	ctx := context.Background()
	s, err := NewChromemStore("", "test")
	require.NoError(t, err)

	require.NoError(t, s.Insert(ctx, records()))
	assert.Equal(t, 3, s.Count())

	res, err := s.SimilaritySearch(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "a", res[0].ID)
	assert.Equal(t, "c", res[1].ID)
	assert.InDelta(t, 1.0, res[0].Score, 1e-5)
	assert.Equal(t, "enrollment opens in june", res[0].Text)
	assert.Equal(t, "handbook.pdf", res[0].Metadata["source"])
	assert.Equal(t, []any{float64(1), float64(2)}, res[0].Metadata["page_numbers"])
	assert.Equal(t, float64(0), res[0].Metadata["chunk_index"])
}

func TestChromemStore_SearchClampsK(t *testing.T) {
	ctx := context.Background()
	s, err := NewChromemStore("", "test")
	require.NoError(t, err)

	res, err := s.SimilaritySearch(ctx, []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, res)

	require.NoError(t, s.Insert(ctx, records()[:1]))
	res, err = s.SimilaritySearch(ctx, []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Len(t, res, 1)

	_, err = s.SimilaritySearch(ctx, []float32{1, 0, 0}, 0)
	assert.Error(t, err)
}

func TestChromemStore_ResetCollection(t *testing.T) {
	ctx := context.Background()
	s, err := NewChromemStore("", "test")
	require.NoError(t, err)
	require.NoError(t, s.Insert(ctx, records()))

	require.NoError(t, s.ResetCollection(ctx))
	assert.Zero(t, s.Count())

	require.NoError(t, s.Insert(ctx, records()[1:2]))
	assert.Equal(t, 1, s.Count())
}

func TestChromemStore_Persistent(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := NewChromemStore(dir, "persisted")
	require.NoError(t, err)
	require.NoError(t, s.Insert(ctx, records()))

	reopened, err := NewChromemStore(dir, "persisted")
	require.NoError(t, err)
	assert.Equal(t, 3, reopened.Count())
}

func TestChromemStore_RequiresEmbedding(t *testing.T) {
	s, err := NewChromemStore("", "test")
	require.NoError(t, err)

	err = s.Insert(context.Background(), []models.VectorRecord{{ID: "x", Text: "no vector"}})
	assert.ErrorIs(t, err, errEmbeddingRequired)
}

func TestStaticSeedSource(t *testing.T) {
	src := NewStaticSeedSource([]string{"https://plm.edu.ph/", "", "https://plm.edu.ph/news/"})

	seeds, err := src.ListSeeds(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.Seed{{URL: "https://plm.edu.ph/"}, {URL: "https://plm.edu.ph/news/"}}, seeds)
	assert.NoError(t, src.MarkScraped(context.Background(), "https://plm.edu.ph/", testNow))
}
