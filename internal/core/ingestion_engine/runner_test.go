package ingestion_engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/SiegfredLorelle/iskobot-api/internal/core"
	"github.com/SiegfredLorelle/iskobot-api/internal/models"
)

type blockingJob struct {
	tracker *Tracker
	started chan struct{}
	release chan struct{}
	fail    error
	runs    atomic.Int32
}

func newBlockingJob(tr *Tracker) *blockingJob {
	return &blockingJob{tracker: tr, started: make(chan struct{}, 4), release: make(chan struct{})}
}

func (j *blockingJob) Run(context.Context) (*models.IngestionRun, error) {
	j.runs.Add(1)
	j.tracker.Update(models.PhaseCrawling, 42, "Scraping websites...")
	j.started <- struct{}{}
	<-j.release
	if j.fail != nil {
		j.tracker.Fail(j.fail)
		return &models.IngestionRun{}, j.fail
	}
	j.tracker.Complete("Ingestion complete!")
	return &models.IngestionRun{}, nil
}

func waitStarted(t *testing.T, j *blockingJob) {
	t.Helper()
	select {
	case <-j.started:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not start")
	}
}

func TestRunner_RejectsConcurrentTrigger(t *testing.T) {
	tr := NewTracker()
	job := newBlockingJob(tr)
	r, err := NewRunner(job, tr, zap.NewNop())
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.Trigger())
	waitStarted(t, job)

	before := tr.Snapshot()
	assert.True(t, before.Active)

	err = r.Trigger()
	assert.ErrorIs(t, err, core.ErrConcurrentRunRejected)
	assert.Equal(t, before, tr.Snapshot())

	close(job.release)
	r.Wait()

	assert.Equal(t, int32(1), job.runs.Load())
	assert.Equal(t, models.PhaseComplete, tr.Snapshot().Phase)
}

func TestRunner_AcceptsNewRunAfterCompletion(t *testing.T) {
	tr := NewTracker()
	job := newBlockingJob(tr)
	close(job.release)
	r, err := NewRunner(job, tr, zap.NewNop())
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.Trigger())
	waitStarted(t, job)
	r.Wait()

	require.NoError(t, r.Trigger())
	waitStarted(t, job)
	r.Wait()

	assert.Equal(t, int32(2), job.runs.Load())
}

func TestRunner_FailedRunReleasesSlot(t *testing.T) {
	tr := NewTracker()
	job := newBlockingJob(tr)
	job.fail = errors.New("persistence failure")
	close(job.release)
	r, err := NewRunner(job, tr, zap.NewNop())
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.Trigger())
	waitStarted(t, job)
	r.Wait()

	s := tr.Snapshot()
	assert.False(t, s.Active)
	assert.Equal(t, "persistence failure", s.Error)

	job.fail = nil
	require.NoError(t, r.Trigger())
	waitStarted(t, job)
	r.Wait()
	assert.Equal(t, models.PhaseComplete, tr.Snapshot().Phase)
}
