package ingestion_engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SiegfredLorelle/iskobot-api/internal/core"
	"github.com/SiegfredLorelle/iskobot-api/internal/models"
)

// Writer embeds chunk text through the rate-limited gateway and persists
// the resulting records in batches.
type Writer struct {
	store     core.VectorStore
	embedder  core.Embedder
	batchSize int
	newID     func() string
	logger    *zap.Logger
}

func NewWriter(store core.VectorStore, embedder core.Embedder, batchSize int, logger *zap.Logger) *Writer {
	if batchSize <= 0 {
		batchSize = 20
	}
	return &Writer{
		store:     store,
		embedder:  embedder,
		batchSize: batchSize,
		newID:     uuid.NewString,
		logger:    logger.Named("writer"),
	}
}

// Reset empties the collection.
func (w *Writer) Reset(ctx context.Context) error {
	if err := w.store.ResetCollection(ctx); err != nil {
		return fmt.Errorf("%w: reset collection: %w", core.ErrPersistenceFailure, err)
	}
	w.logger.Info("collection reset")
	return nil
}

// Write embeds texts and inserts one record per text, returning the new
// record IDs in input order. Nothing is inserted when embedding fails.
func (w *Writer) Write(ctx context.Context, texts []string, metadatas []map[string]any) ([]string, error) {
	if len(texts) != len(metadatas) {
		return nil, fmt.Errorf("texts and metadatas differ in length: %d != %d", len(texts), len(metadatas))
	}
	if len(texts) == 0 {
		return nil, nil
	}

	vecs, err := w.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("embed size mismatch: got %d want %d", len(vecs), len(texts))
	}

	records := make([]models.VectorRecord, len(texts))
	ids := make([]string, len(texts))
	for i := range texts {
		ids[i] = w.newID()
		records[i] = models.VectorRecord{
			ID:        ids[i],
			Text:      texts[i],
			Embedding: vecs[i],
			Metadata:  metadatas[i],
		}
	}
	if err := w.store.Insert(ctx, records); err != nil {
		return nil, fmt.Errorf("insert records: %w", err)
	}
	return ids, nil
}

// WriteChunks writes chunks in batches of the configured size, calling
// onBatch after each saved batch. It stops at the first failing batch and
// returns the number of batches saved before it; the error wraps
// core.ErrPersistenceFailure.
func (w *Writer) WriteChunks(ctx context.Context, chunks []models.Chunk, onBatch func(done, total int)) (int, error) {
	total := (len(chunks) + w.batchSize - 1) / w.batchSize
	for b := 0; b < total; b++ {
		start := b * w.batchSize
		end := min(start+w.batchSize, len(chunks))

		texts := make([]string, 0, end-start)
		metadatas := make([]map[string]any, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Text)
			metadatas = append(metadatas, c.Metadata)
		}

		if _, err := w.Write(ctx, texts, metadatas); err != nil {
			return b, fmt.Errorf("%w: batch %d/%d: %w", core.ErrPersistenceFailure, b+1, total, err)
		}
		w.logger.Info("saved batch", zap.Int("batch", b+1), zap.Int("total", total), zap.Int("chunks", end-start))
		if onBatch != nil {
			onBatch(b+1, total)
		}
	}
	return total, nil
}

// Search embeds query and returns its k nearest records.
func (w *Writer) Search(ctx context.Context, query string, k int) ([]models.SearchResult, error) {
	vec, err := w.embedder.EmbedOne(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	res, err := w.store.SimilaritySearch(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	return res, nil
}
