package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/SiegfredLorelle/iskobot-api/internal/api/handlers"
	"github.com/SiegfredLorelle/iskobot-api/internal/config"
	"github.com/SiegfredLorelle/iskobot-api/internal/core"
	"github.com/SiegfredLorelle/iskobot-api/internal/core/crawler"
	db "github.com/SiegfredLorelle/iskobot-api/internal/core/database"
	"github.com/SiegfredLorelle/iskobot-api/internal/core/extraction"
	"github.com/SiegfredLorelle/iskobot-api/internal/core/ingestion_engine"
	"github.com/SiegfredLorelle/iskobot-api/internal/core/llm"
	objectclient "github.com/SiegfredLorelle/iskobot-api/internal/core/object-client"
	"github.com/SiegfredLorelle/iskobot-api/internal/core/retry"
)

type App struct {
	DB           *sql.DB
	ObjectClient core.ObjectClient
	VectorStore  core.VectorStore
	Embedder     *llm.GeminiEmbedder
	Runner       *ingestion_engine.Runner
	Server       *Server

	logger *zap.Logger
}

func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *App, err error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	a := &App{logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if cfg.VectorBackend == config.VectorPgvector || cfg.SeedSource == config.SeedsDatabase {
		a.DB, err = db.Open(appCtx, cfg, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("database initialized and ready")
	}

	a.ObjectClient, err = objectclient.New(appCtx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("object client: %w", err)
	}
	logger.Info("object client initialized and ready", zap.String("backend", cfg.StorageBackend))

	a.VectorStore, err = newVectorStore(appCtx, cfg, a.DB)
	if err != nil {
		return nil, fmt.Errorf("vector store: %w", err)
	}
	logger.Info("vector store ready", zap.String("backend", cfg.VectorBackend), zap.String("collection", cfg.CollectionName))

	var seeds core.SeedSource
	if cfg.SeedSource == config.SeedsDatabase {
		seeds = db.NewPgSeedSource(a.DB)
	} else {
		seeds = db.NewStaticSeedSource(cfg.SeedURLs)
	}

	a.Embedder, err = llm.NewGeminiEmbedder(appCtx, cfg.AIAPIKey, cfg.EmbedModel)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the embedder: %w", err)
	}
	policy := retry.Policy{
		MaxAttempts: cfg.RetryMaxAttempts,
		Multiplier:  cfg.RetryMultiplier,
		MinWait:     cfg.RetryMinWait,
		MaxWait:     cfg.RetryMaxWait,
	}
	gateway := llm.NewRateLimitedEmbedder(a.Embedder, cfg.EmbedBatchSize, cfg.EmbedBatchDelay, policy, logger)

	chunker, err := ingestion_engine.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	writer := ingestion_engine.NewWriter(a.VectorStore, gateway, cfg.WriteBatchSize, logger)

	webCrawler := crawler.New(&http.Client{Timeout: cfg.FetchTimeout}, crawler.Options{
		UserAgent:     cfg.UserAgent,
		Delay:         cfg.CrawlDelay,
		FetchTimeout:  cfg.FetchTimeout,
		RespectRobots: cfg.RespectRobots,
	}, logger)

	tracker := ingestion_engine.NewTracker()
	orchestrator := ingestion_engine.NewOrchestrator(
		a.ObjectClient,
		extraction.NewDefaultRegistry(),
		webCrawler,
		seeds,
		chunker,
		writer,
		tracker,
		ingestion_engine.NewIngestConfig(cfg),
		logger,
	)

	a.Runner, err = ingestion_engine.NewRunner(orchestrator, tracker, logger)
	if err != nil {
		return nil, err
	}

	a.Server = NewServer(cfg, logger,
		handlers.NewIngestHandler(a.Runner, tracker, orchestrator, cfg.StreamInterval, logger),
		handlers.NewSearchHandler(writer, logger),
	)
	return a, nil
}

func newVectorStore(ctx context.Context, cfg *config.Config, sqlDB *sql.DB) (core.VectorStore, error) {
	switch cfg.VectorBackend {
	case config.VectorPgvector:
		s, err := db.NewPgVectorStore(ctx, sqlDB, cfg.CollectionName)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.VectorChromem:
		s, err := db.NewChromemStore(cfg.ChromemPath, cfg.CollectionName)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown vector backend %q", cfg.VectorBackend)
	}
}

// Run serves HTTP until ctx is cancelled, then shuts the server down.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(a.Server.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return a.Server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Close waits for an in-flight ingestion run and releases every client.
func (a *App) Close() {
	if a.Runner != nil {
		a.logger.Info("waiting for ingestion run to finish")
		a.Runner.Close()
	}
	var errs []error
	if a.VectorStore != nil {
		errs = append(errs, a.VectorStore.Close())
	}
	if a.Embedder != nil {
		errs = append(errs, a.Embedder.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("error while closing", zap.Error(err))
	}
}
