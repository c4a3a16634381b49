package tagging

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/minime/inspirations/internal/models"
)

// WriteSuccess stores one successful payload for an asset: the result row,
// the denormalized asset summary, and one idempotent label row per flattened
// label. When the provider already has any result for the asset the write is
// skipped, which makes every caller safely re-runnable.
func WriteSuccess(ctx context.Context, store Store, assetID, provider, usedModel, runID string, payload map[string]any) (labels int, written bool, err error) {
	exists, err := store.HasResult(ctx, assetID, provider)
	if err != nil {
		return 0, false, fmt.Errorf("check existing result: %w", err)
	}
	if exists {
		return 0, false, nil
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return 0, false, fmt.Errorf("encode payload: %w", err)
	}
	summary := PayloadSummary(payload)
	if err := store.InsertResult(ctx, models.AIResult{
		AssetID:  assetID,
		Provider: provider,
		Model:    usedModel,
		Summary:  summary,
		Payload:  string(encoded),
	}); err != nil {
		return 0, false, err
	}
	if summary != "" {
		if err := store.UpdateAssetSummary(ctx, assetID, summary); err != nil {
			return 0, false, err
		}
	}

	for _, label := range FlattenLabels(payload) {
		if err := store.InsertLabelIfAbsent(ctx, models.Label{
			AssetID:    assetID,
			Label:      label,
			Confidence: ConfidenceModel,
			Source:     models.LabelSourceAI,
			Model:      usedModel,
			RunID:      runID,
		}); err != nil {
			return labels, true, err
		}
		labels++
	}
	return labels, true, nil
}

// WriteFailure records one expected failure. Failures without an asset ID
// (batch bookkeeping keys, timeouts) are dropped: the error table references
// assets.
func WriteFailure(ctx context.Context, store Store, provider, runID string, f Failure) error {
	if !LooksLikeAssetID(f.AssetID) {
		return nil
	}
	return store.InsertError(ctx, models.AIError{
		AssetID:  f.AssetID,
		Provider: provider,
		Model:    f.Model,
		Error:    f.Message,
		Raw:      TruncateRaw(f.Raw),
		RunID:    runID,
	})
}

// LooksLikeAssetID reports whether a string has the shape of a UUID. Worker
// error lists mix asset IDs with sentinel keys like "pending_futures".
func LooksLikeAssetID(s string) bool {
	return len(s) == 36 && strings.Count(s, "-") == 4
}
