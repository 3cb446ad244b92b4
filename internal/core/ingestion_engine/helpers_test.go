package ingestion_engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/SiegfredLorelle/iskobot-api/internal/core"
	"github.com/SiegfredLorelle/iskobot-api/internal/core/llm"
	"github.com/SiegfredLorelle/iskobot-api/internal/core/retry"
)

func noSleep(context.Context, time.Duration) error { return nil }

// fastPolicy keeps the production shape but never waits.
func fastPolicy() retry.Policy {
	p := retry.DefaultPolicy()
	p.MaxAttempts = 2
	return p
}

func newTestWriter(store core.VectorStore, provider core.EmbeddingProvider, batchSize int) *Writer {
	gw := llm.NewRateLimitedEmbedder(provider, 5, 0, fastPolicy(), zap.NewNop(), llm.WithSleeper(noSleep))
	return NewWriter(store, gw, batchSize, zap.NewNop())
}
