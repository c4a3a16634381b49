package tagging

import (
	"context"
	"reflect"
	"testing"

	"github.com/minime/inspirations/internal/models"
)

func TestExtractKeywords(t *testing.T) {
	got := ExtractKeywords("White Oak floating shelves over the kitchen backsplash")
	want := []string{"kitchen", "backsplash", "white oak", "oak", "shelves"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractKeywords = %v, want %v", got, want)
	}
	if got := ExtractKeywords("nothing matches here"); got != nil {
		t.Errorf("ExtractKeywords = %v, want nil", got)
	}
}

func TestRunHeuristic(t *testing.T) {
	store := newMemStore(
		models.Candidate{AssetID: assetA, Title: "Brass pendant over kitchen island", Board: "Kitchen"},
		models.Candidate{AssetID: assetB, Title: "", Board: ""},
		models.Candidate{AssetID: assetC, Title: "no matching words"},
	)
	report, err := RunHeuristic(context.Background(), store, discardLogger(), "pinterest", 0)
	if err != nil {
		t.Fatalf("RunHeuristic: %v", err)
	}
	if report.Provider != ProviderMock || report.Attempted != 3 || report.LabeledAssets != 1 {
		t.Fatalf("report = %+v", report)
	}

	labels := store.labelsFor(assetA)
	want := []string{"kitchen", "pendant", "brass"}
	if !reflect.DeepEqual(labels, want) {
		t.Errorf("labels = %v, want %v", labels, want)
	}
	for _, l := range store.labels {
		if l.Confidence != ConfidenceHeuristic || l.Model != HeuristicModel || l.Source != models.LabelSourceAI {
			t.Errorf("label row = %+v", l)
		}
	}
	if len(store.runs) != 1 || store.runs[0].Provider != ProviderMock {
		t.Errorf("runs = %+v", store.runs)
	}
}
