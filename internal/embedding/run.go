package embedding

import (
	"context"
	"log/slog"
	"strings"

	"github.com/minime/inspirations/internal/db"
	"github.com/minime/inspirations/internal/models"
)

const (
	maxInputChars = 4000
	maxLabels     = 80
	maxRunErrors  = 25
)

// Store is the persistence surface an embedding run needs. *db.DB satisfies
// it.
type Store interface {
	CreateRun(ctx context.Context, provider, model string) (models.TaggingRun, error)
	SelectEmbeddingCandidates(ctx context.Context, source, provider, model string, limit int) ([]db.EmbedCandidate, error)
	UpsertEmbedding(ctx context.Context, e models.Embedding) error
	ListEmbeddingRows(ctx context.Context, provider, model, source string) ([]db.EmbeddingRow, error)
}

// BuildInputText assembles the text embedded for one asset: the descriptive
// fields joined by newlines, then a labels line with at most 80 labels,
// capped at 4000 characters. Returns "" when the asset has no text at all.
func BuildInputText(c db.EmbedCandidate) string {
	var parts []string
	for _, field := range []*string{
		c.Asset.Title, c.Asset.Description, c.Asset.Board, c.Asset.Notes, c.Asset.AISummary,
	} {
		if field == nil {
			continue
		}
		if v := strings.TrimSpace(*field); v != "" {
			parts = append(parts, v)
		}
	}
	var labels []string
	for _, l := range strings.Split(c.LabelsCSV, ",") {
		if l = strings.TrimSpace(l); l != "" {
			labels = append(labels, l)
		}
	}
	if len(labels) > maxLabels {
		labels = labels[:maxLabels]
	}
	if len(labels) > 0 {
		parts = append(parts, "labels: "+strings.Join(labels, ", "))
	}
	text := strings.TrimSpace(strings.Join(parts, "\n"))
	if len(text) > maxInputChars {
		text = strings.TrimSpace(text[:maxInputChars])
	}
	return text
}

// RunError records one asset an embedding run could not process.
type RunError struct {
	AssetID string `json:"id"`
	Error   string `json:"error"`
}

// RunReport summarizes one embedding run. Errors is capped at 25 entries.
type RunReport struct {
	Provider       string     `json:"provider"`
	Model          string     `json:"model"`
	RunID          string     `json:"run_id"`
	Attempted      int        `json:"attempted"`
	EmbeddedAssets int        `json:"embedded_assets"`
	Errors         []RunError `json:"errors,omitempty"`
}

// RunOptions narrows an embedding run. A zero Limit embeds every candidate.
type RunOptions struct {
	Source string
	Limit  int
}

// EmbedAssets embeds every asset that has text content and no stored vector
// yet for the embedder's model, upserting one row per asset. Failed assets
// are recorded and skipped; they get retried on the next run.
func EmbedAssets(ctx context.Context, store Store, emb Embedder, logger *slog.Logger, opts RunOptions) (RunReport, error) {
	run, err := store.CreateRun(ctx, RunProvider, emb.Model())
	if err != nil {
		return RunReport{}, err
	}
	report := RunReport{Provider: Provider, Model: emb.Model(), RunID: run.ID}

	candidates, err := store.SelectEmbeddingCandidates(ctx, opts.Source, Provider, emb.Model(), 0)
	if err != nil {
		return report, err
	}

	for _, c := range candidates {
		if opts.Limit > 0 && report.Attempted >= opts.Limit {
			break
		}
		report.Attempted++

		text := BuildInputText(c)
		if text == "" {
			report.recordError(c.Asset.ID, "No text content available for embedding")
			continue
		}
		vector, err := emb.EmbedDocument(ctx, text)
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			report.recordError(c.Asset.ID, err.Error())
			continue
		}
		if err := store.UpsertEmbedding(ctx, models.Embedding{
			AssetID:   c.Asset.ID,
			Provider:  Provider,
			Model:     emb.Model(),
			InputText: text,
			Vector:    vector,
		}); err != nil {
			report.recordError(c.Asset.ID, err.Error())
			continue
		}
		report.EmbeddedAssets++
	}

	logger.Info("embedding run finished",
		"run_id", run.ID, "model", emb.Model(),
		"attempted", report.Attempted, "embedded", report.EmbeddedAssets,
		"errors", len(report.Errors))
	return report, nil
}

func (r *RunReport) recordError(assetID, msg string) {
	if len(r.Errors) < maxRunErrors {
		r.Errors = append(r.Errors, RunError{AssetID: assetID, Error: msg})
	}
}
