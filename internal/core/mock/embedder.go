// Package mock provides in-memory test doubles for the core ports.
package mock

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/SiegfredLorelle/iskobot-api/internal/core"
)

var _ core.EmbeddingProvider = (*EmbeddingProvider)(nil)

// EmbeddingProvider is a test double for core.EmbeddingProvider.
// Behaviour can be injected via the function fields; by default it returns
// deterministic vectors derived from a hash of each text.
type EmbeddingProvider struct {
	EmbedDocumentsFunc func(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQueryFunc     func(ctx context.Context, text string) ([]float32, error)

	mu      sync.Mutex
	batches [][]string
	queries []string
}

func NewEmbeddingProvider() *EmbeddingProvider {
	return &EmbeddingProvider{}
}

func (m *EmbeddingProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.batches = append(m.batches, append([]string(nil), texts...))
	m.mu.Unlock()

	if m.EmbedDocumentsFunc != nil {
		return m.EmbedDocumentsFunc(ctx, texts)
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = Vector(t, 8)
	}
	return out, nil
}

func (m *EmbeddingProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.queries = append(m.queries, text)
	m.mu.Unlock()

	if m.EmbedQueryFunc != nil {
		return m.EmbedQueryFunc(ctx, text)
	}
	return Vector(text, 8), nil
}

// Calls returns the number of EmbedDocuments calls.
func (m *EmbeddingProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.batches)
}

// Batches returns the texts received by each EmbedDocuments call.
func (m *EmbeddingProvider) Batches() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]string(nil), m.batches...)
}

// Vector derives a deterministic non-zero vector of length dim from text.
func Vector(text string, dim int) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, dim)
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(seed>>40)/float32(1<<24) + 0.01
	}
	return vec
}
