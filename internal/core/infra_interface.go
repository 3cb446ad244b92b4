package core

import (
	"context"
	"time"

	"github.com/SiegfredLorelle/iskobot-api/internal/models"
)

// ObjectClient enumerates and reads stored source files.
type ObjectClient interface {
	ListFilesByExtension(ctx context.Context, exts []string) ([]models.FileRef, error)
	Download(ctx context.Context, name string) ([]byte, error)
}

// VectorStore persists embedded records and answers nearest-neighbour queries
// over a single named collection.
type VectorStore interface {
	// ResetCollection drops the backing collection and recreates it empty.
	ResetCollection(ctx context.Context) error
	Insert(ctx context.Context, records []models.VectorRecord) error
	SimilaritySearch(ctx context.Context, embedding []float32, k int) ([]models.SearchResult, error)
	Close() error
}

// SeedSource supplies the ordered list of websites to crawl.
type SeedSource interface {
	ListSeeds(ctx context.Context) ([]models.Seed, error)
	MarkScraped(ctx context.Context, url string, at time.Time) error
}
