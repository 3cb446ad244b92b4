package core

import "context"

// EmbeddingProvider is the underlying embedding model. Either call may fail
// with a rate or quota error that callers are expected to retry.
type EmbeddingProvider interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Embedder is the rate-limited gateway used by the pipeline.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}
