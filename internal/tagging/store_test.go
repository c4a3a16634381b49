package tagging

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/minime/inspirations/internal/db"
	"github.com/minime/inspirations/internal/models"
)

// memStore is an in-memory Store for pipeline, ingest, and runner tests.
type memStore struct {
	mu         sync.Mutex
	candidates []models.Candidate
	runs       []models.TaggingRun
	results    []models.AIResult
	labels     []models.Label
	errs       []models.AIError
	summaries  map[string]string
	triageRows []models.TriageRow
}

func newMemStore(candidates ...models.Candidate) *memStore {
	return &memStore{candidates: candidates, summaries: map[string]string{}}
}

func (m *memStore) CreateRun(_ context.Context, provider, model string) (models.TaggingRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run := models.TaggingRun{ID: uuid.NewString(), Provider: provider, Model: model, CreatedAt: time.Now()}
	m.runs = append(m.runs, run)
	return run, nil
}

func (m *memStore) hasResultLocked(assetID, provider string) bool {
	for _, r := range m.results {
		if r.AssetID == assetID && r.Provider == provider {
			return true
		}
	}
	return false
}

func (m *memStore) SelectUnlabeled(_ context.Context, _, provider string, limit int) ([]models.Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Candidate
	for _, c := range m.candidates {
		if m.hasResultLocked(c.AssetID, provider) {
			continue
		}
		out = append(out, c)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *memStore) CountUnlabeled(ctx context.Context, source, provider string) (int, error) {
	rows, err := m.SelectUnlabeled(ctx, source, provider, 0)
	return len(rows), err
}

func (m *memStore) HasResult(_ context.Context, assetID, provider string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hasResultLocked(assetID, provider), nil
}

func (m *memStore) InsertResult(_ context.Context, r models.AIResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, r)
	return nil
}

func (m *memStore) InsertLabelIfAbsent(_ context.Context, l models.Label) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.labels {
		if existing.AssetID == l.AssetID && existing.Label == l.Label && existing.Source == l.Source {
			return nil
		}
	}
	m.labels = append(m.labels, l)
	return nil
}

func (m *memStore) InsertError(_ context.Context, e models.AIError) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs = append(m.errs, e)
	return nil
}

func (m *memStore) UpdateAssetSummary(_ context.Context, assetID, summary string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries[assetID] = summary
	return nil
}

func (m *memStore) ListErrors(_ context.Context, f db.TriageFilters) ([]models.TriageRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.triageRows
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *memStore) labelsFor(assetID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, l := range m.labels {
		if l.AssetID == assetID {
			out = append(out, l.Label)
		}
	}
	return out
}

func (m *memStore) errorsFor(assetID string) []models.AIError {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.AIError
	for _, e := range m.errs {
		if e.AssetID == assetID {
			out = append(out, e)
		}
	}
	return out
}
