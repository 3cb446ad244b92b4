package ingestion_engine

import (
	"context"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/SiegfredLorelle/iskobot-api/internal/core"
	"github.com/SiegfredLorelle/iskobot-api/internal/core/crawler"
	"github.com/SiegfredLorelle/iskobot-api/internal/core/extraction"
	"github.com/SiegfredLorelle/iskobot-api/internal/models"
)

// Orchestrator runs the full re-ingestion: stored files, then seed websites,
// then embedding and persistence of every chunk.
//
// objects:   lists and downloads stored files.
// registry:  turns file bytes into documents by declared type.
// crawler:   walks the seed websites.
// seeds:     supplies the seed URLs and records when they were scraped.
// chunker:   cuts documents into chunks.
// writer:    embeds and persists chunks.
// tracker:   receives phase and percentage updates.
type Orchestrator struct {
	objects  core.ObjectClient
	registry *extraction.Registry
	crawler  *crawler.Crawler
	seeds    core.SeedSource
	chunker  *Chunker
	writer   *Writer
	tracker  *Tracker
	cfg      IngestConfig
	logger   *zap.Logger
	now      func() time.Time

	mu      sync.Mutex
	lastRun *models.IngestionRun
}

func NewOrchestrator(
	objects core.ObjectClient,
	registry *extraction.Registry,
	c *crawler.Crawler,
	seeds core.SeedSource,
	chunker *Chunker,
	writer *Writer,
	tracker *Tracker,
	cfg IngestConfig,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		objects:  objects,
		registry: registry,
		crawler:  c,
		seeds:    seeds,
		chunker:  chunker,
		writer:   writer,
		tracker:  tracker,
		cfg:      cfg,
		logger:   logger.Named("orchestrator"),
		now:      time.Now,
	}
}

// Run performs one ingestion. The tracker must already have been started
// with TryBegin; Run leaves it completed or failed.
//
// Failures tied to a single file, seed or document are recorded in the
// returned run's Errors and skipped. A failure while resetting or writing the
// collection ends the run: remaining batches are not attempted, the partial
// statistics are kept, and the error is returned.
func (o *Orchestrator) Run(ctx context.Context) (*models.IngestionRun, error) {
	run := &models.IngestionRun{StartedAt: o.now(), Errors: []string{}}
	o.logger.Info("ingestion started")

	var chunks []models.Chunk
	chunks = append(chunks, o.processFiles(ctx, run)...)
	chunks = append(chunks, o.processSites(ctx, run)...)
	err := o.storeChunks(ctx, run, chunks)
	if err != nil {
		run.Errors = append(run.Errors, err.Error())
	}

	finished := o.now()
	run.FinishedAt = &finished
	o.setLastRun(run)

	if err != nil {
		o.logger.Error("ingestion failed", zap.Error(err), zap.Int("batches_saved", run.BatchesSaved))
		o.tracker.Fail(err)
		return run, err
	}

	o.logger.Info("ingestion complete",
		zap.Int("files_processed", run.FilesProcessed),
		zap.Int("pages_scraped", run.PagesScraped),
		zap.Int("total_chunks", run.TotalChunks),
		zap.Int("batches_saved", run.BatchesSaved),
		zap.Int("errors", len(run.Errors)),
		zap.Duration("took", finished.Sub(run.StartedAt)))
	o.tracker.Complete("Ingestion complete!")
	return run, nil
}

// LastRun returns the statistics of the most recent finished run, or nil.
func (o *Orchestrator) LastRun() *models.IngestionRun {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.lastRun == nil {
		return nil
	}
	cp := *o.lastRun
	cp.Errors = append([]string{}, o.lastRun.Errors...)
	return &cp
}

func (o *Orchestrator) setLastRun(run *models.IngestionRun) {
	o.mu.Lock()
	defer o.mu.Unlock()
	cp := *run
	cp.Errors = append([]string{}, run.Errors...)
	o.lastRun = &cp
}

func (o *Orchestrator) processFiles(ctx context.Context, run *models.IngestionRun) []models.Chunk {
	o.tracker.Update(models.PhaseListing, 5, "Listing files...")

	refs, err := o.objects.ListFilesByExtension(ctx, o.registry.Extensions())
	if err != nil {
		o.record(run, fmt.Errorf("list files: %w", err))
		return nil
	}
	run.FilesFound = len(refs)

	o.tracker.Update(models.PhaseExtractingFiles, 10, "Processing documents...")

	var chunks []models.Chunk
	for idx, ref := range refs {
		pct := 10 + idx*25/len(refs)
		o.tracker.Update(models.PhaseExtractingFiles, pct, fmt.Sprintf("Processing document %d/%d", idx+1, len(refs)))

		cs, err := o.processFile(ctx, ref)
		if err != nil {
			o.record(run, err)
			continue
		}
		run.FilesProcessed++
		chunks = append(chunks, cs...)
		o.logger.Info("processed file", zap.String("file", ref.Name), zap.Int("chunks", len(cs)))
	}
	return chunks
}

func (o *Orchestrator) processFile(ctx context.Context, ref models.FileRef) ([]models.Chunk, error) {
	content, err := o.objects.Download(ctx, ref.Name)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", ref.Name, err)
	}
	doc, err := o.registry.Extract(ctx, ref, content)
	if err != nil {
		return nil, err
	}
	cs, err := o.chunker.Split(doc.Text, doc.Metadata)
	if err != nil {
		return nil, fmt.Errorf("chunk %s: %w", ref.Name, err)
	}
	return cs, nil
}

func (o *Orchestrator) processSites(ctx context.Context, run *models.IngestionRun) []models.Chunk {
	o.tracker.Update(models.PhaseCrawling, 40, "Scraping websites...")

	seeds, err := o.seeds.ListSeeds(ctx)
	if err != nil {
		o.record(run, fmt.Errorf("list seeds: %w", err))
		return nil
	}
	if len(seeds) == 0 {
		return nil
	}

	at := o.now().UTC()
	urls := make([]string, len(seeds))
	for i, s := range seeds {
		urls[i] = s.URL
		if err := o.seeds.MarkScraped(ctx, s.URL, at); err != nil {
			o.logger.Warn("could not update last_scraped", zap.String("url", s.URL), zap.Error(err))
		}
	}

	results := o.crawler.ScrapeSites(ctx, urls, o.cfg.MaxPagesPerSite, func(done, total int, res crawler.SiteResult) {
		o.tracker.Update(models.PhaseCrawling, 40+done*30/total, fmt.Sprintf("Scraped website %d/%d", done, total))
	})

	var chunks []models.Chunk
	for _, res := range results {
		switch {
		case res.Err != nil:
			o.record(run, fmt.Errorf("crawl %s: %w", res.Seed, res.Err))
			continue
		case res.Skipped:
			o.record(run, fmt.Errorf("crawl %s: disallowed by robots.txt", res.Seed))
			continue
		}
		run.SitesCrawled++
		run.PagesScraped += len(res.Documents)
		for _, doc := range res.Documents {
			cs, err := o.chunker.Split(doc.Text, doc.Metadata)
			if err != nil {
				o.record(run, fmt.Errorf("chunk %v: %w", doc.Metadata["source"], err))
				continue
			}
			chunks = append(chunks, cs...)
		}
	}
	return chunks
}

func (o *Orchestrator) storeChunks(ctx context.Context, run *models.IngestionRun, chunks []models.Chunk) error {
	o.tracker.Update(models.PhaseStoring, 70, "Storing chunks...")

	run.TotalChunks = len(chunks)
	if len(chunks) == 0 {
		return nil
	}
	var runes int
	for _, c := range chunks {
		runes += utf8.RuneCountInString(c.Text)
	}
	run.AvgChunkSize = float64(runes) / float64(len(chunks))

	if o.cfg.ClearCollection {
		if err := o.writer.Reset(ctx); err != nil {
			return err
		}
	}

	saved, err := o.writer.WriteChunks(ctx, chunks, func(done, total int) {
		o.tracker.Update(models.PhaseStoring, 70+done*30/total, fmt.Sprintf("Saved batch %d/%d", done, total))
	})
	run.BatchesSaved = saved
	return err
}

func (o *Orchestrator) record(run *models.IngestionRun, err error) {
	o.logger.Warn("skipping source item", zap.Error(err))
	run.Errors = append(run.Errors, err.Error())
}
