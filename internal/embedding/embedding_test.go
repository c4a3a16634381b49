package embedding

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/minime/inspirations/internal/db"
	"github.com/minime/inspirations/internal/models"
)

type memStore struct {
	candidates []db.EmbedCandidate
	rows       []db.EmbeddingRow
	runs       []models.TaggingRun
	upserts    []models.Embedding
}

func (m *memStore) CreateRun(_ context.Context, provider, model string) (models.TaggingRun, error) {
	run := models.TaggingRun{ID: uuid.NewString(), Provider: provider, Model: model, CreatedAt: time.Now()}
	m.runs = append(m.runs, run)
	return run, nil
}

func (m *memStore) SelectEmbeddingCandidates(_ context.Context, _, _, _ string, limit int) ([]db.EmbedCandidate, error) {
	out := m.candidates
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) UpsertEmbedding(_ context.Context, e models.Embedding) error {
	m.upserts = append(m.upserts, e)
	return nil
}

func (m *memStore) ListEmbeddingRows(_ context.Context, _, _, source string) ([]db.EmbeddingRow, error) {
	var out []db.EmbeddingRow
	for _, r := range m.rows {
		if source != "" && r.Asset.Source != source {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

type fakeEmbedder struct {
	docFn   func(text string) ([]float64, error)
	queryFn func(text string) ([]float64, error)
}

func (f *fakeEmbedder) Model() string { return "test-embed" }

func (f *fakeEmbedder) EmbedDocument(_ context.Context, text string) ([]float64, error) {
	return f.docFn(text)
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float64, error) {
	return f.queryFn(text)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func strp(s string) *string { return &s }

func TestBuildInputText(t *testing.T) {
	c := db.EmbedCandidate{
		Asset: models.Asset{
			Title:     strp("  Kitchen reno  "),
			Board:     strp("Inspiration"),
			Notes:     strp(""),
			AISummary: strp("bright kitchen with oak floors"),
		},
		LabelsCSV: "kitchen, white oak, , brass",
	}
	got := BuildInputText(c)
	want := "Kitchen reno\nInspiration\nbright kitchen with oak floors\nlabels: kitchen, white oak, brass"
	if got != want {
		t.Errorf("BuildInputText = %q, want %q", got, want)
	}

	if got := BuildInputText(db.EmbedCandidate{}); got != "" {
		t.Errorf("empty candidate = %q, want empty", got)
	}
}

func TestBuildInputTextCapsLabelsAndLength(t *testing.T) {
	labels := make([]string, 100)
	for i := range labels {
		labels[i] = fmt.Sprintf("label%03d", i)
	}
	c := db.EmbedCandidate{LabelsCSV: strings.Join(labels, ", ")}
	got := BuildInputText(c)
	if strings.Contains(got, "label080") {
		t.Error("labels past 80 should be dropped")
	}
	if !strings.Contains(got, "label079") {
		t.Error("label 79 should survive the cap")
	}

	long := db.EmbedCandidate{Asset: models.Asset{Notes: strp(strings.Repeat("x", 5000))}}
	if got := BuildInputText(long); len(got) > maxInputChars {
		t.Errorf("len = %d, want <= %d", len(got), maxInputChars)
	}
}

func TestCosine(t *testing.T) {
	cases := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical", []float64{1, 2, 3}, []float64{1, 2, 3}, 1},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0},
		{"opposite", []float64{1, 0}, []float64{-1, 0}, -1},
		{"length mismatch", []float64{1, 2}, []float64{1, 2, 3}, 0},
		{"zero vector", []float64{0, 0}, []float64{1, 2}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Cosine(tc.a, tc.b)
			if diff := got - tc.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("Cosine = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestEmbedAssets(t *testing.T) {
	store := &memStore{candidates: []db.EmbedCandidate{
		{Asset: models.Asset{ID: "a1", Title: strp("Kitchen")}},
		{Asset: models.Asset{ID: "a2"}}, // no text
		{Asset: models.Asset{ID: "a3", Title: strp("Bath")}},
	}}
	emb := &fakeEmbedder{docFn: func(string) ([]float64, error) {
		return []float64{0.1, 0.2}, nil
	}}

	report, err := EmbedAssets(context.Background(), store, emb, discardLogger(), RunOptions{})
	if err != nil {
		t.Fatalf("EmbedAssets: %v", err)
	}
	if report.Attempted != 3 || report.EmbeddedAssets != 2 {
		t.Fatalf("report = %+v", report)
	}
	if len(report.Errors) != 1 || report.Errors[0].AssetID != "a2" ||
		report.Errors[0].Error != "No text content available for embedding" {
		t.Fatalf("errors = %+v", report.Errors)
	}
	if len(store.upserts) != 2 {
		t.Fatalf("upserts = %d", len(store.upserts))
	}
	up := store.upserts[0]
	if up.Provider != Provider || up.Model != "test-embed" || up.InputText != "Kitchen" {
		t.Errorf("upsert = %+v", up)
	}
	if len(store.runs) != 1 || store.runs[0].Provider != RunProvider {
		t.Errorf("runs = %+v", store.runs)
	}
}

func TestEmbedAssetsHonorsLimitAndFailures(t *testing.T) {
	store := &memStore{candidates: []db.EmbedCandidate{
		{Asset: models.Asset{ID: "a1", Title: strp("one")}},
		{Asset: models.Asset{ID: "a2", Title: strp("two")}},
		{Asset: models.Asset{ID: "a3", Title: strp("three")}},
	}}
	emb := &fakeEmbedder{docFn: func(text string) ([]float64, error) {
		if text == "two" {
			return nil, fmt.Errorf("Gemini embed HTTP 500: boom")
		}
		return []float64{1}, nil
	}}

	report, err := EmbedAssets(context.Background(), store, emb, discardLogger(), RunOptions{Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if report.Attempted != 2 || report.EmbeddedAssets != 1 || len(report.Errors) != 1 {
		t.Fatalf("report = %+v", report)
	}
}

func TestSimilaritySearch(t *testing.T) {
	row := func(assetID, source string, vec []float64) db.EmbeddingRow {
		return db.EmbeddingRow{
			Embedding: models.Embedding{AssetID: assetID, Provider: Provider, Model: "test-embed", Vector: vec, Dimensions: len(vec)},
			Asset:     models.Asset{ID: assetID, Source: source},
		}
	}
	store := &memStore{rows: []db.EmbeddingRow{
		row("a1", "pinterest", []float64{1, 0}),
		row("a2", "pinterest", []float64{0.7, 0.7}),
		row("a3", "pinterest", []float64{1, 0, 0}), // stale dimension
		row("a4", "houzz", []float64{0, 1}),
	}}
	emb := &fakeEmbedder{queryFn: func(string) ([]float64, error) {
		return []float64{1, 0}, nil
	}}

	report, err := SimilaritySearch(context.Background(), store, emb, SearchOptions{Query: "white kitchen"})
	if err != nil {
		t.Fatalf("SimilaritySearch: %v", err)
	}
	if report.SkippedDimensionMismatch != 1 || report.ComparedAssets != 3 {
		t.Fatalf("report = %+v", report)
	}
	if report.Results[0].Asset.ID != "a1" || report.Results[1].Asset.ID != "a2" {
		t.Errorf("order = %s, %s", report.Results[0].Asset.ID, report.Results[1].Asset.ID)
	}

	filtered, err := SimilaritySearch(context.Background(), store, emb, SearchOptions{Query: "q", Source: "houzz"})
	if err != nil {
		t.Fatal(err)
	}
	if filtered.ComparedAssets != 1 || filtered.Results[0].Asset.ID != "a4" {
		t.Errorf("filtered = %+v", filtered.Results)
	}

	limited, err := SimilaritySearch(context.Background(), store, emb, SearchOptions{Query: "q", Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(limited.Results) != 1 || limited.ComparedAssets != 3 {
		t.Errorf("limited = %+v", limited)
	}

	if _, err := SimilaritySearch(context.Background(), store, emb, SearchOptions{Query: "   "}); err == nil {
		t.Error("blank query should error")
	}
}
