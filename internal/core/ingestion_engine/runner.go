package ingestion_engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/SiegfredLorelle/iskobot-api/internal/core"
	"github.com/SiegfredLorelle/iskobot-api/internal/models"
)

// Job is one ingestion run.
type Job interface {
	Run(ctx context.Context) (*models.IngestionRun, error)
}

// Runner executes at most one Job at a time on a single background worker.
type Runner struct {
	job     Job
	tracker *Tracker
	pool    *ants.Pool
	wg      sync.WaitGroup
	logger  *zap.Logger
}

// NewRunner starts the worker pool. Admission is decided by the tracker, so
// Submit only ever waits for the previous run's worker to be returned.
func NewRunner(job Job, tracker *Tracker, logger *zap.Logger) (*Runner, error) {
	r := &Runner{job: job, tracker: tracker, logger: logger.Named("runner")}
	pool, err := ants.NewPool(1,
		ants.WithMaxBlockingTasks(1),
		ants.WithPanicHandler(r.onPanic),
	)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	r.pool = pool
	return r, nil
}

// Trigger starts a run in the background and returns immediately. It fails
// with core.ErrConcurrentRunRejected while another run is active, leaving
// that run's progress untouched.
func (r *Runner) Trigger() error {
	if !r.tracker.TryBegin() {
		return core.ErrConcurrentRunRejected
	}

	r.wg.Add(1)
	err := r.pool.Submit(func() {
		defer r.wg.Done()
		// Runs are not cancelled by the caller's request.
		run, err := r.job.Run(context.Background())
		if err != nil {
			r.logger.Error("ingestion run failed", zap.Error(err))
			return
		}
		r.logger.Info("ingestion run finished", zap.Int("total_chunks", run.TotalChunks), zap.Int("errors", len(run.Errors)))
	})
	if err != nil {
		r.wg.Done()
		err = fmt.Errorf("schedule ingestion: %w", err)
		r.tracker.Fail(err)
		return err
	}
	return nil
}

// Wait blocks until the current run, if any, has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Close waits for the current run and releases the worker.
func (r *Runner) Close() {
	r.wg.Wait()
	r.pool.Release()
}

func (r *Runner) onPanic(p any) {
	r.logger.Error("ingestion run panicked", zap.Any("panic", p))
	r.tracker.Fail(fmt.Errorf("ingestion panicked: %v", p))
}
