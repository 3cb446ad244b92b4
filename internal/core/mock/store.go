package mock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/SiegfredLorelle/iskobot-api/internal/core"
	"github.com/SiegfredLorelle/iskobot-api/internal/models"
)

var (
	_ core.VectorStore  = (*VectorStore)(nil)
	_ core.ObjectClient = (*ObjectClient)(nil)
	_ core.SeedSource   = (*SeedSource)(nil)
)

// VectorStore keeps inserted records in memory.
type VectorStore struct {
	// InsertFunc, when set, runs before the default behaviour; a non-nil
	// error is returned without storing the records.
	InsertFunc func(ctx context.Context, records []models.VectorRecord) error

	mu      sync.Mutex
	records []models.VectorRecord
	inserts int
	resets  int
}

func NewVectorStore() *VectorStore {
	return &VectorStore{}
}

func (m *VectorStore) ResetCollection(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = nil
	m.resets++
	return nil
}

func (m *VectorStore) Insert(ctx context.Context, records []models.VectorRecord) error {
	if m.InsertFunc != nil {
		if err := m.InsertFunc(ctx, records); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, records...)
	m.inserts++
	return nil
}

// SimilaritySearch returns the first k records with a fixed score.
func (m *VectorStore) SimilaritySearch(_ context.Context, _ []float32, k int) ([]models.SearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.SearchResult
	for i := 0; i < len(m.records) && i < k; i++ {
		r := m.records[i]
		out = append(out, models.SearchResult{ID: r.ID, Text: r.Text, Metadata: r.Metadata, Score: 1})
	}
	return out, nil
}

func (m *VectorStore) Close() error { return nil }

func (m *VectorStore) Records() []models.VectorRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.VectorRecord(nil), m.records...)
}

func (m *VectorStore) Inserts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inserts
}

func (m *VectorStore) Resets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resets
}

// ObjectClient serves files from a map keyed by name. When Refs is set it is
// returned by ListFilesByExtension as is.
type ObjectClient struct {
	Files   map[string][]byte
	Refs    []models.FileRef
	ListErr error
}

func (m *ObjectClient) ListFilesByExtension(_ context.Context, exts []string) ([]models.FileRef, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	if m.Refs != nil {
		return m.Refs, nil
	}
	allowed := make(map[string]bool, len(exts))
	for _, e := range exts {
		allowed[e] = true
	}
	var out []models.FileRef
	for _, name := range sortedKeys(m.Files) {
		ext := extension(name)
		if len(exts) > 0 && !allowed[ext] {
			continue
		}
		t, _ := models.ParseFileType(ext)
		out = append(out, models.FileRef{Name: name, Size: int64(len(m.Files[name])), Type: t})
	}
	return out, nil
}

func (m *ObjectClient) Download(_ context.Context, name string) ([]byte, error) {
	b, ok := m.Files[name]
	if !ok {
		return nil, errors.New("object not found: " + name)
	}
	return b, nil
}

// SeedSource returns a fixed list of seeds and records MarkScraped calls.
type SeedSource struct {
	Seeds   []models.Seed
	ListErr error

	mu      sync.Mutex
	scraped map[string]time.Time
}

func (m *SeedSource) ListSeeds(context.Context) ([]models.Seed, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return m.Seeds, nil
}

func (m *SeedSource) MarkScraped(_ context.Context, url string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.scraped == nil {
		m.scraped = make(map[string]time.Time)
	}
	m.scraped[url] = at
	return nil
}

func (m *SeedSource) Scraped() map[string]time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]time.Time, len(m.scraped))
	for k, v := range m.scraped {
		out[k] = v
	}
	return out
}
