package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SiegfredLorelle/iskobot-api/internal/core"
	"github.com/SiegfredLorelle/iskobot-api/internal/core/mock"
	"github.com/SiegfredLorelle/iskobot-api/internal/models"
)

func testChunks(n int) []models.Chunk {
	out := make([]models.Chunk, n)
	for i := range out {
		out[i] = models.Chunk{
			Text:     fmt.Sprintf("chunk text %d", i),
			Metadata: map[string]any{"source": "doc", "chunk_index": i},
			Index:    i,
		}
	}
	return out
}

func TestWriter_Write(t *testing.T) {
	store := mock.NewVectorStore()
	w := newTestWriter(store, mock.NewEmbeddingProvider(), 20)

	ids, err := w.Write(context.Background(), []string{"a", "b"}, []map[string]any{{"n": 1}, {"n": 2}})
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.NotEqual(t, ids[0], ids[1])

	recs := store.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, ids[0], recs[0].ID)
	assert.Equal(t, "b", recs[1].Text)
	assert.Equal(t, map[string]any{"n": 2}, recs[1].Metadata)
	assert.Len(t, recs[0].Embedding, 8)
}

func TestWriter_WriteLengthMismatch(t *testing.T) {
	w := newTestWriter(mock.NewVectorStore(), mock.NewEmbeddingProvider(), 20)
	_, err := w.Write(context.Background(), []string{"a"}, nil)
	assert.Error(t, err)
}

func TestWriter_WriteChunksBatches(t *testing.T) {
	store := mock.NewVectorStore()
	w := newTestWriter(store, mock.NewEmbeddingProvider(), 20)

	var calls [][2]int
	saved, err := w.WriteChunks(context.Background(), testChunks(45), func(done, total int) {
		calls = append(calls, [2]int{done, total})
	})
	require.NoError(t, err)
	assert.Equal(t, 3, saved)
	assert.Equal(t, 3, store.Inserts())
	assert.Len(t, store.Records(), 45)
	assert.Equal(t, [][2]int{{1, 3}, {2, 3}, {3, 3}}, calls)
}

func TestWriter_WriteChunksStopsOnFirstFailure(t *testing.T) {
	store := mock.NewVectorStore()
	boom := errors.New("connection reset")
	inserts := 0
	store.InsertFunc = func(context.Context, []models.VectorRecord) error {
		inserts++
		if inserts == 2 {
			return boom
		}
		return nil
	}
	w := newTestWriter(store, mock.NewEmbeddingProvider(), 10)

	saved, err := w.WriteChunks(context.Background(), testChunks(40), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrPersistenceFailure)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, saved)
	assert.Equal(t, 2, inserts)
	assert.Len(t, store.Records(), 10)
}

func TestWriter_EmbeddingExhaustionIsPersistenceFailure(t *testing.T) {
	provider := mock.NewEmbeddingProvider()
	provider.EmbedDocumentsFunc = func(context.Context, []string) ([][]float32, error) {
		return nil, errors.New("model unavailable")
	}
	store := mock.NewVectorStore()
	w := newTestWriter(store, provider, 20)

	saved, err := w.WriteChunks(context.Background(), testChunks(5), nil)
	assert.Equal(t, 0, saved)
	assert.ErrorIs(t, err, core.ErrPersistenceFailure)
	assert.ErrorIs(t, err, core.ErrEmbeddingFailed)
	assert.Equal(t, 0, store.Inserts())
}

func TestWriter_ResetAndSearch(t *testing.T) {
	store := mock.NewVectorStore()
	w := newTestWriter(store, mock.NewEmbeddingProvider(), 20)

	_, err := w.WriteChunks(context.Background(), testChunks(3), nil)
	require.NoError(t, err)

	res, err := w.Search(context.Background(), "chunk", 2)
	require.NoError(t, err)
	assert.Len(t, res, 2)

	require.NoError(t, w.Reset(context.Background()))
	assert.Equal(t, 1, store.Resets())
	assert.Empty(t, store.Records())
}
