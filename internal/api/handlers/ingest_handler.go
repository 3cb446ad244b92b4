package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/SiegfredLorelle/iskobot-api/internal/core"
	"github.com/SiegfredLorelle/iskobot-api/internal/models"
)

// Trigger starts an ingestion run in the background.
type Trigger interface {
	Trigger() error
}

// ProgressSource exposes the current run's progress. Changes returns a
// channel that is closed on the next state change.
type ProgressSource interface {
	Snapshot() models.ProgressState
	Changes() <-chan struct{}
}

// RunStats exposes the statistics of the last finished run.
type RunStats interface {
	LastRun() *models.IngestionRun
}

type IngestHandler struct {
	trigger  Trigger
	progress ProgressSource
	stats    RunStats
	interval time.Duration
	logger   *zap.Logger
}

func NewIngestHandler(trigger Trigger, progress ProgressSource, stats RunStats, interval time.Duration, logger *zap.Logger) *IngestHandler {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &IngestHandler{
		trigger:  trigger,
		progress: progress,
		stats:    stats,
		interval: interval,
		logger:   logger.Named("ingest_handler"),
	}
}

// StartIngestion handles POST /ingest.
func (h *IngestHandler) StartIngestion(w http.ResponseWriter, r *http.Request) {
	err := h.trigger.Trigger()
	switch {
	case errors.Is(err, core.ErrConcurrentRunRejected):
		writeDetail(w, http.StatusBadRequest, "Ingestion already in progress")
		return
	case err != nil:
		h.logger.Error("could not start ingestion", zap.Error(err))
		writeDetail(w, http.StatusInternalServerError, fmt.Sprintf("could not start ingestion: %v", err))
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"message": "Ingestion started"})
}

// Status handles GET /ingest/status.
func (h *IngestHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"progress": h.progress.Snapshot(),
		"last_run": h.stats.LastRun(),
	})
}

// Stream handles GET /ingest/stream. It wakes on every progress change (and
// at least every interval) and sends a progress event whenever the
// percentage changes. It ends with
// an error event if the run failed, or a complete event once the run is
// finished or none is active.
func (h *IngestHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeDetail(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	send := func(event string, data any) bool {
		payload, err := json.Marshal(data)
		if err != nil {
			h.logger.Error("encode event", zap.String("event", event), zap.Error(err))
			return false
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	last := -1
	for {
		changed := h.progress.Changes()
		cur := h.progress.Snapshot()

		if cur.Error != "" {
			send("error", map[string]string{"error": cur.Error})
			return
		}
		if cur.Percentage != last {
			if !send("progress", map[string]any{"percentage": cur.Percentage, "message": cur.Message}) {
				return
			}
			last = cur.Percentage
		}
		if cur.Percentage >= 100 || !cur.Active {
			send("complete", struct{}{})
			return
		}

		select {
		case <-r.Context().Done():
			return
		case <-changed:
		case <-ticker.C:
		}
	}
}
