package tagging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/minime/inspirations/internal/models"
)

// HeuristicModel names the keyword labeler in runs and label rows.
const HeuristicModel = "keyword-heuristic"

// HeuristicKeywords is the fixed vocabulary the mock labeler scans for.
var HeuristicKeywords = []string{
	"kitchen",
	"cabinet",
	"cabinets",
	"backsplash",
	"tile",
	"bathroom",
	"vanity",
	"lighting",
	"pendant",
	"sconce",
	"exterior",
	"siding",
	"window",
	"windows",
	"floor",
	"flooring",
	"white oak",
	"oak",
	"brass",
	"hardware",
	"fireplace",
	"mudroom",
	"built-ins",
	"shelves",
	"hood",
	"countertop",
}

// ExtractKeywords returns the keywords present in the text, in vocabulary
// order, deduped.
func ExtractKeywords(text string) []string {
	text = strings.ToLower(text)
	var out []string
	for _, k := range HeuristicKeywords {
		if strings.Contains(text, k) {
			out = append(out, k)
		}
	}
	return out
}

// HeuristicReport summarizes one mock labeler run.
type HeuristicReport struct {
	Provider      string   `json:"provider"`
	RunID         string   `json:"run_id"`
	Attempted     int      `json:"attempted"`
	LabeledAssets int      `json:"labeled_assets"`
	Errors        []string `json:"errors,omitempty"`
}

// RunHeuristic labels assets by keyword-matching their title and board
// text. It needs no API key and exists to exercise the label plumbing end
// to end. A limit of 0 means all candidates.
func RunHeuristic(ctx context.Context, store Store, logger *slog.Logger, source string, limit int) (HeuristicReport, error) {
	run, err := store.CreateRun(ctx, ProviderMock, HeuristicModel)
	if err != nil {
		return HeuristicReport{}, err
	}
	report := HeuristicReport{Provider: ProviderMock, RunID: run.ID}

	rows, err := store.SelectUnlabeled(ctx, source, ProviderMock, 0)
	if err != nil {
		return report, err
	}
	for _, c := range rows {
		if limit > 0 && report.Attempted >= limit {
			break
		}
		report.Attempted++
		text := strings.TrimSpace(c.Title + " " + c.Board)
		if text == "" {
			continue
		}
		labels := ExtractKeywords(text)
		if len(labels) == 0 {
			continue
		}
		for _, label := range labels {
			if err := store.InsertLabelIfAbsent(ctx, models.Label{
				AssetID:    c.AssetID,
				Label:      label,
				Confidence: ConfidenceHeuristic,
				Source:     models.LabelSourceAI,
				Model:      HeuristicModel,
				RunID:      run.ID,
			}); err != nil {
				if len(report.Errors) < 25 {
					report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", c.AssetID, err))
				}
				continue
			}
		}
		report.LabeledAssets++
	}

	logger.Info("heuristic labeler finished",
		"run_id", run.ID, "attempted", report.Attempted, "labeled_assets", report.LabeledAssets)
	return report, nil
}
