package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/SiegfredLorelle/iskobot-api/internal/core"
	"github.com/SiegfredLorelle/iskobot-api/internal/models"
)

var _ core.VectorStore = (*PgVectorStore)(nil)

// PgVectorStore keeps one named collection in the langchain_pg_* tables.
// Embeddings are stored in a pgvector column and searched by cosine distance.
type PgVectorStore struct {
	db   *sql.DB
	name string

	mu           sync.RWMutex
	collectionID string
}

// NewPgVectorStore resolves (or creates) the collection row for name.
func NewPgVectorStore(ctx context.Context, db *sql.DB, name string) (*PgVectorStore, error) {
	s := &PgVectorStore{db: db, name: name}
	id, err := s.ensureCollection(ctx)
	if err != nil {
		return nil, err
	}
	s.collectionID = id
	return s, nil
}

func (s *PgVectorStore) ensureCollection(ctx context.Context) (string, error) {
	const insert = `
		INSERT INTO langchain_pg_collection (uuid, name, cmetadata)
		VALUES ($1, $2, '{}'::jsonb)
		ON CONFLICT (name) DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, insert, uuid.NewString(), s.name); err != nil {
		return "", fmt.Errorf("create collection %q: %w", s.name, err)
	}
	var id string
	if err := s.db.QueryRowContext(ctx, `SELECT uuid FROM langchain_pg_collection WHERE name = $1`, s.name).Scan(&id); err != nil {
		return "", fmt.Errorf("lookup collection %q: %w", s.name, err)
	}
	return id, nil
}

// ResetCollection deletes the collection (its embeddings cascade) and
// recreates it under a new id in a single transaction.
func (s *PgVectorStore) ResetCollection(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM langchain_pg_collection WHERE name = $1`, s.name); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("drop collection: %w", err)
	}
	id := uuid.NewString()
	if _, err := tx.ExecContext(ctx, `INSERT INTO langchain_pg_collection (uuid, name, cmetadata) VALUES ($1, $2, '{}'::jsonb)`, id, s.name); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("recreate collection: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reset: %w", err)
	}
	s.collectionID = id
	return nil
}

// Insert writes records in a single transaction.
func (s *PgVectorStore) Insert(ctx context.Context, records []models.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	s.mu.RLock()
	collectionID := s.collectionID
	s.mu.RUnlock()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}

	const q = `
		INSERT INTO langchain_pg_embedding (id, collection_id, embedding, document, cmetadata)
		VALUES ($1, $2, $3, $4, $5::jsonb)
	`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i := range records {
		rec := &records[i]
		meta, err := json.Marshal(rec.Metadata)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("encode metadata for %s: %w", rec.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, rec.ID, collectionID, pgvector.NewVector(rec.Embedding), rec.Text, string(meta)); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// SimilaritySearch returns the k records closest to embedding.
func (s *PgVectorStore) SimilaritySearch(ctx context.Context, embedding []float32, k int) ([]models.SearchResult, error) {
	if k <= 0 {
		return nil, errors.New("k must be positive")
	}
	s.mu.RLock()
	collectionID := s.collectionID
	s.mu.RUnlock()

	const q = `
		SELECT id, document, cmetadata, 1 - (embedding <=> $1) AS score
		FROM langchain_pg_embedding
		WHERE collection_id = $2
		ORDER BY embedding <=> $1
		LIMIT $3
	`
	rows, err := s.db.QueryContext(ctx, q, pgvector.NewVector(embedding), collectionID, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.SearchResult
	for rows.Next() {
		var (
			r     models.SearchResult
			meta  []byte
			score float64
		)
		if err := rows.Scan(&r.ID, &r.Text, &meta, &score); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &r.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata for %s: %w", r.ID, err)
			}
		}
		r.Score = float32(score)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close is a no-op; the *sql.DB is owned by the caller.
func (s *PgVectorStore) Close() error {
	return nil
}
