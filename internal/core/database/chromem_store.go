package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/philippgille/chromem-go"

	"github.com/SiegfredLorelle/iskobot-api/internal/core"
	"github.com/SiegfredLorelle/iskobot-api/internal/models"
)

var _ core.VectorStore = (*ChromemStore)(nil)

var errEmbeddingRequired = errors.New("chromem store requires precomputed embeddings")

// ChromemStore is an embedded vector store backed by chromem-go, optionally
// persisted to a directory. Metadata values that are not strings are stored
// JSON-encoded and decoded again on read.
type ChromemStore struct {
	db   *chromem.DB
	name string

	mu  sync.RWMutex
	col *chromem.Collection
}

// NewChromemStore opens the store. An empty path keeps everything in memory.
func NewChromemStore(path, name string) (*ChromemStore, error) {
	var (
		cdb *chromem.DB
		err error
	)
	if path == "" {
		cdb = chromem.NewDB()
	} else {
		cdb, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("open chromem db at %q: %w", path, err)
		}
	}

	col, err := cdb.GetOrCreateCollection(name, nil, noEmbedding)
	if err != nil {
		return nil, fmt.Errorf("open collection %q: %w", name, err)
	}
	return &ChromemStore{db: cdb, name: name, col: col}, nil
}

func noEmbedding(context.Context, string) ([]float32, error) {
	return nil, errEmbeddingRequired
}

func (s *ChromemStore) ResetCollection(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.DeleteCollection(s.name); err != nil {
		return fmt.Errorf("drop collection: %w", err)
	}
	col, err := s.db.CreateCollection(s.name, nil, noEmbedding)
	if err != nil {
		return fmt.Errorf("recreate collection: %w", err)
	}
	s.col = col
	return nil
}

func (s *ChromemStore) Insert(ctx context.Context, records []models.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	docs := make([]chromem.Document, len(records))
	for i, rec := range records {
		if len(rec.Embedding) == 0 {
			return fmt.Errorf("record %s: %w", rec.ID, errEmbeddingRequired)
		}
		meta, err := flattenMetadata(rec.Metadata)
		if err != nil {
			return fmt.Errorf("record %s: %w", rec.ID, err)
		}
		docs[i] = chromem.Document{
			ID:        rec.ID,
			Metadata:  meta,
			Embedding: rec.Embedding,
			Content:   rec.Text,
		}
	}

	s.mu.RLock()
	col := s.col
	s.mu.RUnlock()
	return col.AddDocuments(ctx, docs, runtime.NumCPU())
}

func (s *ChromemStore) SimilaritySearch(ctx context.Context, embedding []float32, k int) ([]models.SearchResult, error) {
	if k <= 0 {
		return nil, errors.New("k must be positive")
	}
	s.mu.RLock()
	col := s.col
	s.mu.RUnlock()

	k = min(k, col.Count())
	if k == 0 {
		return nil, nil
	}
	res, err := col.QueryEmbedding(ctx, embedding, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	out := make([]models.SearchResult, 0, len(res))
	for _, r := range res {
		out = append(out, models.SearchResult{
			ID:       r.ID,
			Text:     r.Content,
			Metadata: expandMetadata(r.Metadata),
			Score:    r.Similarity,
		})
	}
	return out, nil
}

// Count returns the number of records in the collection.
func (s *ChromemStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.col.Count()
}

func (s *ChromemStore) Close() error {
	return nil
}

func flattenMetadata(in map[string]any) (map[string]string, error) {
	out := make(map[string]string, len(in))
	for k, v := range in {
		if str, ok := v.(string); ok {
			out[k] = str
			continue
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode metadata %q: %w", k, err)
		}
		out[k] = string(b)
	}
	return out, nil
}

func expandMetadata(in map[string]string) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		var decoded any
		if err := json.Unmarshal([]byte(v), &decoded); err == nil {
			if _, isString := decoded.(string); !isString {
				out[k] = decoded
				continue
			}
		}
		out[k] = v
	}
	return out
}
