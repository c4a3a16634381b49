package embedding

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/minime/inspirations/internal/models"
)

// DefaultSearchLimit bounds similarity results when no limit is given.
const DefaultSearchLimit = 25

// Cosine returns the cosine similarity of two vectors, or 0 when the
// vectors are empty, differ in length, or have zero magnitude.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na <= 0 || nb <= 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// SearchResult is one scored asset.
type SearchResult struct {
	Asset              models.Asset `json:"asset"`
	Score              float64      `json:"score"`
	EmbeddingCreatedAt time.Time    `json:"embedding_created_at"`
}

// SearchReport is the full similarity-search output.
type SearchReport struct {
	Query                    string         `json:"query"`
	Provider                 string         `json:"provider"`
	Model                    string         `json:"model"`
	ComparedAssets           int            `json:"compared_assets"`
	SkippedDimensionMismatch int            `json:"skipped_dimension_mismatch"`
	Results                  []SearchResult `json:"results"`
}

// SearchOptions narrows a similarity search. A zero Limit means
// DefaultSearchLimit.
type SearchOptions struct {
	Query  string
	Source string
	Limit  int
}

// SimilaritySearch embeds the query and ranks every stored vector for the
// embedder's model by cosine similarity. Vectors whose dimension differs
// from the query vector (stale rows from an older model revision) are
// skipped and counted.
func SimilaritySearch(ctx context.Context, store Store, emb Embedder, opts SearchOptions) (SearchReport, error) {
	query := strings.TrimSpace(opts.Query)
	if query == "" {
		return SearchReport{}, fmt.Errorf("query is required")
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	queryVec, err := emb.EmbedQuery(ctx, query)
	if err != nil {
		return SearchReport{}, fmt.Errorf("embed query: %w", err)
	}

	rows, err := store.ListEmbeddingRows(ctx, Provider, emb.Model(), opts.Source)
	if err != nil {
		return SearchReport{}, err
	}

	report := SearchReport{Query: query, Provider: Provider, Model: emb.Model()}
	for _, row := range rows {
		if len(row.Embedding.Vector) != len(queryVec) {
			report.SkippedDimensionMismatch++
			continue
		}
		report.Results = append(report.Results, SearchResult{
			Asset:              row.Asset,
			Score:              Cosine(queryVec, row.Embedding.Vector),
			EmbeddingCreatedAt: row.Embedding.CreatedAt,
		})
	}
	report.ComparedAssets = len(report.Results)

	sort.SliceStable(report.Results, func(i, j int) bool {
		return report.Results[i].Score > report.Results[j].Score
	})
	if len(report.Results) > limit {
		report.Results = report.Results[:limit]
	}
	return report, nil
}
