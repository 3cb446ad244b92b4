package ingestion_engine

import (
	"sync"
	"sync/atomic"

	"github.com/SiegfredLorelle/iskobot-api/internal/models"
)

// Tracker publishes the progress of the single ingestion run a process may
// have in flight. Writers are serialized; readers load an immutable snapshot.
type Tracker struct {
	mu      sync.Mutex
	state   atomic.Pointer[models.ProgressState]
	changed chan struct{}
}

func NewTracker() *Tracker {
	t := &Tracker{changed: make(chan struct{})}
	t.state.Store(&models.ProgressState{Phase: models.PhaseIdle})
	return t
}

// Snapshot returns the current state.
func (t *Tracker) Snapshot() models.ProgressState {
	return *t.state.Load()
}

// Changes returns a channel that is closed on the next state change.
func (t *Tracker) Changes() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.changed
}

// TryBegin marks a run as started unless one is already active. It reports
// whether the caller now owns the run.
func (t *Tracker) TryBegin() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.Load().Active {
		return false
	}
	t.publish(models.ProgressState{
		Percentage: 0,
		Message:    "Starting ingestion...",
		Phase:      models.PhaseListing,
		Active:     true,
	})
	return true
}

// Update moves an active run to phase. The percentage never decreases and
// stays below 100 until Complete.
func (t *Tracker) Update(phase models.Phase, pct int, msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cur := t.state.Load()
	if !cur.Active {
		return
	}
	pct = max(pct, cur.Percentage)
	pct = min(pct, 99)
	t.publish(models.ProgressState{Percentage: pct, Message: msg, Phase: phase, Active: true})
}

// Complete finishes the active run successfully.
func (t *Tracker) Complete(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.state.Load().Active {
		return
	}
	t.publish(models.ProgressState{Percentage: 100, Message: msg, Phase: models.PhaseComplete})
}

// Fail ends the active run with err, keeping the last percentage.
func (t *Tracker) Fail(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cur := t.state.Load()
	if !cur.Active {
		return
	}
	t.publish(models.ProgressState{
		Percentage: cur.Percentage,
		Message:    cur.Message,
		Phase:      models.PhaseFailed,
		Error:      err.Error(),
	})
}

// publish must be called with mu held.
func (t *Tracker) publish(s models.ProgressState) {
	t.state.Store(&s)
	close(t.changed)
	t.changed = make(chan struct{})
}
