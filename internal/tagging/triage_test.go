package tagging

import (
	"context"
	"testing"
	"time"

	"github.com/minime/inspirations/internal/models"
)

func triageRow(assetID, errMsg, raw string, resolved bool) models.TriageRow {
	return models.TriageRow{
		AIError: models.AIError{
			ID:        "err-" + assetID + "-" + errMsg[:3],
			AssetID:   assetID,
			Provider:  ProviderGemini,
			Model:     "m",
			Error:     errMsg,
			Raw:       raw,
			CreatedAt: time.Now(),
		},
		AssetSource:        "pinterest",
		ResolvedAfterError: resolved,
	}
}

func TestTriageAggregates(t *testing.T) {
	store := newMemStore()
	store.triageRows = []models.TriageRow{
		triageRow(assetA, "No image available for tagging", "", false),
		triageRow(assetA, "No image available for tagging", "", false),
		triageRow(assetB, "Gemini HTTP 429: quota", "", false),
		triageRow(assetC, "No JSON object in Gemini response (finishReason=RECITATION)", "", true),
	}

	report, err := Triage(context.Background(), store, TriageOptions{Source: "pinterest"})
	if err != nil {
		t.Fatalf("Triage: %v", err)
	}

	if report.TotalErrors != 4 || report.TotalAssets != 3 {
		t.Errorf("totals = %d errors / %d assets", report.TotalErrors, report.TotalAssets)
	}
	if report.ActionableErrors != 3 || report.ActionableAssets != 2 {
		t.Errorf("actionable = %d errors / %d assets", report.ActionableErrors, report.ActionableAssets)
	}

	if len(report.Categories) != 3 {
		t.Fatalf("categories = %+v", report.Categories)
	}
	// Highest volume first.
	first := report.Categories[0]
	if first.Category != CategoryMissingImage || first.Total != 2 || first.Actionable != 2 {
		t.Errorf("top category = %+v", first)
	}
	for _, c := range report.Categories {
		if c.Category == CategoryNoJSONRecitation && (c.Resolved != 1 || c.Actionable != 0) {
			t.Errorf("recitation category = %+v", c)
		}
	}

	if len(report.Actions) == 0 || report.Actions[0].Action != ActionRepairMedia || report.Actions[0].Count != 2 {
		t.Errorf("actions = %+v", report.Actions)
	}

	foundResolved := false
	for _, group := range report.ExamplesByAction {
		if group.Action == ActionHistoricalResolved {
			foundResolved = true
			if len(group.Examples) != 1 || !group.Examples[0].ResolvedAfterError {
				t.Errorf("resolved examples = %+v", group.Examples)
			}
		}
	}
	if !foundResolved {
		t.Error("missing historical_resolved example group")
	}
}

func TestTriageCapsExamples(t *testing.T) {
	store := newMemStore()
	for i := 0; i < 10; i++ {
		store.triageRows = append(store.triageRows,
			triageRow(assetA, "No image available for tagging", "", false))
	}
	report, err := Triage(context.Background(), store, TriageOptions{ExamplesPerAction: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(report.ExamplesByAction) != 1 {
		t.Fatalf("example groups = %+v", report.ExamplesByAction)
	}
	if got := len(report.ExamplesByAction[0].Examples); got != 2 {
		t.Errorf("examples = %d, want 2", got)
	}
}
