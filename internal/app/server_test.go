package app

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/SiegfredLorelle/iskobot-api/internal/api/handlers"
	"github.com/SiegfredLorelle/iskobot-api/internal/config"
	"github.com/SiegfredLorelle/iskobot-api/internal/core"
	"github.com/SiegfredLorelle/iskobot-api/internal/core/ingestion_engine"
	"github.com/SiegfredLorelle/iskobot-api/internal/core/llm"
	"github.com/SiegfredLorelle/iskobot-api/internal/core/mock"
	"github.com/SiegfredLorelle/iskobot-api/internal/core/retry"
	"github.com/SiegfredLorelle/iskobot-api/internal/models"
)

type trackerTrigger struct{ tr *ingestion_engine.Tracker }

func (t trackerTrigger) Trigger() error {
	if !t.tr.TryBegin() {
		return core.ErrConcurrentRunRejected
	}
	return nil
}

type noRuns struct{}

func (noRuns) LastRun() *models.IngestionRun { return nil }

func newTestServer(t *testing.T) (*httptest.Server, *ingestion_engine.Tracker) {
	t.Helper()
	cfg, err := config.Load(map[string]string{
		"STORAGE_BACKEND": config.StorageLocal,
		"VECTOR_BACKEND":  config.VectorChromem,
		"SEED_SOURCE":     config.SeedsEnv,
		"GEMINI_API_KEY":  "test",
	})
	require.NoError(t, err)

	tracker := ingestion_engine.NewTracker()
	gw := llm.NewRateLimitedEmbedder(mock.NewEmbeddingProvider(), 5, 0, retry.DefaultPolicy(), zap.NewNop())
	writer := ingestion_engine.NewWriter(mock.NewVectorStore(), gw, 20, zap.NewNop())

	srv := NewServer(cfg, zap.NewNop(),
		handlers.NewIngestHandler(trackerTrigger{tracker}, tracker, noRuns{}, 5*time.Millisecond, zap.NewNop()),
		handlers.NewSearchHandler(writer, zap.NewNop()),
	)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, tracker
}

func TestServer_Routes(t *testing.T) {
	ts, tracker := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/ingest", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.True(t, tracker.Snapshot().Active)

	resp, err = http.Post(ts.URL+"/ingest", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/ingest/status")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_StreamIsFlushedThroughMiddleware(t *testing.T) {
	ts, tracker := newTestServer(t)
	require.True(t, tracker.TryBegin())

	go func() {
		time.Sleep(30 * time.Millisecond)
		tracker.Complete("Ingestion complete!")
	}()

	resp, err := http.Get(ts.URL + "/ingest/stream")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	body := make([]byte, 4096)
	var got []byte
	for {
		n, err := resp.Body.Read(body)
		got = append(got, body[:n]...)
		if err != nil {
			break
		}
	}
	assert.Contains(t, string(got), "event: progress")
	assert.Contains(t, string(got), "event: complete")
}

func TestServer_CORSPreflight(t *testing.T) {
	ts, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/ingest", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
}
