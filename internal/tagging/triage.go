package tagging

import (
	"context"
	"sort"
	"time"

	"github.com/minime/inspirations/internal/db"
)

// TriageOptions narrows the error rows a triage report covers. Zero values
// mean "no filter".
type TriageOptions struct {
	Source            string
	Provider          string
	Model             string
	Days              int
	Limit             int
	ExamplesPerAction int
}

// ReportFilters echoes the applied filters in the report output.
type ReportFilters struct {
	Source   string `json:"source,omitempty"`
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
	Days     int    `json:"days,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

// CategoryStats counts one failure category.
type CategoryStats struct {
	Category   Category `json:"category"`
	Total      int      `json:"total"`
	Actionable int      `json:"actionable"`
	Resolved   int      `json:"resolved"`
}

// ActionCount counts one recommended action.
type ActionCount struct {
	Action Action `json:"action"`
	Count  int    `json:"count"`
}

// TriageExample is one concrete error row illustrating an action.
type TriageExample struct {
	ErrorID            string    `json:"error_id"`
	AssetID            string    `json:"asset_id,omitempty"`
	Source             string    `json:"source,omitempty"`
	Provider           string    `json:"provider"`
	Model              string    `json:"model,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	Error              string    `json:"error"`
	Category           Category  `json:"category"`
	ResolvedAfterError bool      `json:"resolved_after_error"`
}

// ActionExamples groups examples under one action.
type ActionExamples struct {
	Action   Action          `json:"action"`
	Examples []TriageExample `json:"examples"`
}

// TriageReport is the JSON-serializable triage output: category and action
// breakdowns plus a few examples per action.
type TriageReport struct {
	Filters          ReportFilters    `json:"filters"`
	TotalErrors      int              `json:"total_errors"`
	TotalAssets      int              `json:"total_assets"`
	ActionableErrors int              `json:"actionable_errors"`
	ActionableAssets int              `json:"actionable_assets"`
	Categories       []CategoryStats  `json:"categories"`
	Actions          []ActionCount    `json:"actions"`
	ExamplesByAction []ActionExamples `json:"examples_by_action"`
}

// Triage classifies recorded tagging failures and aggregates them into a
// report: totals, per-category stats (ordered by volume), per-action counts,
// and up to ExamplesPerAction examples each.
func Triage(ctx context.Context, store Store, opts TriageOptions) (TriageReport, error) {
	filters := db.TriageFilters{
		Source:   opts.Source,
		Provider: opts.Provider,
		Model:    opts.Model,
		Limit:    opts.Limit,
	}
	if opts.Days > 0 {
		filters.Since = time.Now().UTC().AddDate(0, 0, -opts.Days)
	}
	rows, err := store.ListErrors(ctx, filters)
	if err != nil {
		return TriageReport{}, err
	}

	examplesPerAction := opts.ExamplesPerAction
	if examplesPerAction < 1 {
		examplesPerAction = 3
	}

	categoryStats := map[Category]*CategoryStats{}
	actionCounts := map[Action]int{}
	examples := map[Action][]TriageExample{}
	uniqueAssets := map[string]bool{}
	actionableAssets := map[string]bool{}
	actionableErrors := 0

	for _, row := range rows {
		if row.AssetID != "" {
			uniqueAssets[row.AssetID] = true
		}
		category := Classify(row.Error, row.Raw)
		action := ActionFor(category, row.ResolvedAfterError)
		if !row.ResolvedAfterError {
			actionableErrors++
			if row.AssetID != "" {
				actionableAssets[row.AssetID] = true
			}
		}

		stats, ok := categoryStats[category]
		if !ok {
			stats = &CategoryStats{Category: category}
			categoryStats[category] = stats
		}
		stats.Total++
		if row.ResolvedAfterError {
			stats.Resolved++
		} else {
			stats.Actionable++
		}

		actionCounts[action]++
		if len(examples[action]) < examplesPerAction {
			examples[action] = append(examples[action], TriageExample{
				ErrorID:            row.ID,
				AssetID:            row.AssetID,
				Source:             row.AssetSource,
				Provider:           row.Provider,
				Model:              row.Model,
				CreatedAt:          row.CreatedAt,
				Error:              row.Error,
				Category:           category,
				ResolvedAfterError: row.ResolvedAfterError,
			})
		}
	}

	report := TriageReport{
		Filters: ReportFilters{
			Source:   opts.Source,
			Provider: opts.Provider,
			Model:    opts.Model,
			Days:     opts.Days,
			Limit:    opts.Limit,
		},
		TotalErrors:      len(rows),
		TotalAssets:      len(uniqueAssets),
		ActionableErrors: actionableErrors,
		ActionableAssets: len(actionableAssets),
	}
	for _, stats := range categoryStats {
		report.Categories = append(report.Categories, *stats)
	}
	sort.Slice(report.Categories, func(i, j int) bool {
		a, b := report.Categories[i], report.Categories[j]
		if a.Total != b.Total {
			return a.Total > b.Total
		}
		return a.Category < b.Category
	})
	for action, count := range actionCounts {
		report.Actions = append(report.Actions, ActionCount{Action: action, Count: count})
	}
	sort.Slice(report.Actions, func(i, j int) bool {
		a, b := report.Actions[i], report.Actions[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Action < b.Action
	})
	for action, ex := range examples {
		report.ExamplesByAction = append(report.ExamplesByAction, ActionExamples{Action: action, Examples: ex})
	}
	sort.Slice(report.ExamplesByAction, func(i, j int) bool {
		return report.ExamplesByAction[i].Action < report.ExamplesByAction[j].Action
	})
	return report, nil
}
