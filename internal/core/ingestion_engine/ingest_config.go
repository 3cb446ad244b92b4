package ingestion_engine

import (
	"github.com/SiegfredLorelle/iskobot-api/internal/config"
)

// IngestConfig tunes one ingestion run.
//
// ChunkSize:       maximum chunk length in runes.
// ChunkOverlap:    runes shared by consecutive chunks of one document.
// WriteBatchSize:  chunks embedded and inserted per store write.
// MaxPagesPerSite: crawl budget per seed.
// ClearCollection: drop and recreate the collection before the first write.
type IngestConfig struct {
	ChunkSize       int
	ChunkOverlap    int
	WriteBatchSize  int
	MaxPagesPerSite int
	ClearCollection bool
}

// NewIngestConfig copies the pipeline settings out of the service config.
func NewIngestConfig(cfg *config.Config) IngestConfig {
	return IngestConfig{
		ChunkSize:       cfg.ChunkSize,
		ChunkOverlap:    cfg.ChunkOverlap,
		WriteBatchSize:  cfg.WriteBatchSize,
		MaxPagesPerSite: cfg.MaxPagesPerSite,
		ClearCollection: cfg.ClearCollection,
	}
}

// DefaultIngestConfig mirrors the configuration defaults.
func DefaultIngestConfig() IngestConfig {
	return IngestConfig{
		ChunkSize:       1000,
		ChunkOverlap:    100,
		WriteBatchSize:  20,
		MaxPagesPerSite: 100,
		ClearCollection: true,
	}
}
