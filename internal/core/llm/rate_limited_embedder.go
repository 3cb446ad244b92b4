package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/SiegfredLorelle/iskobot-api/internal/core"
	"github.com/SiegfredLorelle/iskobot-api/internal/core/retry"
)

var _ core.Embedder = (*RateLimitedEmbedder)(nil)

// RateLimitedEmbedder splits embedding requests into fixed-size batches,
// pauses between batches and retries each batch with exponential backoff.
//
// provider:  the underlying embedding model.
// batchSize: texts per provider call.
// delay:     pause between two consecutive batches (not before the first).
// policy:    backoff applied to each failing batch.
// sleep:     waits for delay and backoff; replaced in tests.
// onBatch:   optional hook called after every completed batch.
type RateLimitedEmbedder struct {
	provider  core.EmbeddingProvider
	batchSize int
	delay     time.Duration
	policy    retry.Policy
	sleep     retry.Sleeper
	onBatch   func(done, total int)
	logger    *zap.Logger
}

// Option customises a RateLimitedEmbedder.
type Option func(*RateLimitedEmbedder)

// WithSleeper replaces the real-time sleeper for inter-batch delays and backoff.
func WithSleeper(s retry.Sleeper) Option {
	return func(e *RateLimitedEmbedder) { e.sleep = s }
}

// WithBatchHook registers a callback run after each completed batch.
func WithBatchHook(fn func(done, total int)) Option {
	return func(e *RateLimitedEmbedder) { e.onBatch = fn }
}

func NewRateLimitedEmbedder(provider core.EmbeddingProvider, batchSize int, delay time.Duration, policy retry.Policy, logger *zap.Logger, opts ...Option) *RateLimitedEmbedder {
	if batchSize <= 0 {
		batchSize = 5
	}
	e := &RateLimitedEmbedder{
		provider:  provider,
		batchSize: batchSize,
		delay:     delay,
		policy:    policy,
		sleep:     retry.Sleep,
		logger:    logger.Named("embedder"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Embed returns one vector per text, in order. If a batch still fails after
// the retry policy is exhausted the error wraps core.ErrEmbeddingQuotaExceeded
// or core.ErrEmbeddingFailed and no vectors are returned.
func (e *RateLimitedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	total := (len(texts) + e.batchSize - 1) / e.batchSize
	out := make([][]float32, 0, len(texts))
	for b := 0; b < total; b++ {
		if b > 0 && e.delay > 0 {
			if err := e.sleep(ctx, e.delay); err != nil {
				return nil, err
			}
		}

		start := b * e.batchSize
		end := min(start+e.batchSize, len(texts))
		batch := texts[start:end]

		var vecs [][]float32
		err := retry.Do(ctx, e.policy, func(ctx context.Context) error {
			v, err := e.provider.EmbedDocuments(ctx, batch)
			if err != nil {
				return err
			}
			if len(v) != len(batch) {
				return fmt.Errorf("embedding count mismatch: got %d want %d", len(v), len(batch))
			}
			vecs = v
			return nil
		}, retry.WithSleeper(e.sleep), retry.OnRetry(e.logRetry(b+1, total)))
		if err != nil {
			return nil, fmt.Errorf("batch %d/%d: %w", b+1, total, classify(err))
		}

		out = append(out, vecs...)
		e.logger.Info("embedded batch", zap.Int("batch", b+1), zap.Int("total", total), zap.Int("texts", len(batch)))
		if e.onBatch != nil {
			e.onBatch(b+1, total)
		}
	}
	return out, nil
}

// EmbedOne embeds a single query under the same retry policy.
func (e *RateLimitedEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := retry.Do(ctx, e.policy, func(ctx context.Context) error {
		v, err := e.provider.EmbedQuery(ctx, text)
		if err != nil {
			return err
		}
		vec = v
		return nil
	}, retry.WithSleeper(e.sleep), retry.OnRetry(e.logRetry(1, 1)))
	if err != nil {
		return nil, classify(err)
	}
	return vec, nil
}

func (e *RateLimitedEmbedder) logRetry(batch, total int) func(int, time.Duration, error) {
	return func(attempt int, wait time.Duration, err error) {
		e.logger.Warn("embedding attempt failed, backing off",
			zap.Int("batch", batch),
			zap.Int("total", total),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Bool("quota", IsQuotaError(err)),
			zap.Error(err))
	}
}

func classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if IsQuotaError(err) {
		return fmt.Errorf("%w: %v", core.ErrEmbeddingQuotaExceeded, err)
	}
	return fmt.Errorf("%w: %v", core.ErrEmbeddingFailed, err)
}

// IsQuotaError reports whether err is a rate-limit or quota rejection from
// the provider, either as a gRPC ResourceExhausted status or an HTTP 429.
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, core.ErrEmbeddingQuotaExceeded) {
		return true
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusTooManyRequests {
		return true
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		if s, ok := status.FromError(e); ok && s.Code() == codes.ResourceExhausted {
			return true
		}
	}
	return false
}
