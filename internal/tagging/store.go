package tagging

import (
	"context"

	"github.com/minime/inspirations/internal/db"
	"github.com/minime/inspirations/internal/models"
)

// Store is the persistence surface the tagging flows need. *db.DB satisfies
// it; tests use in-memory fakes.
type Store interface {
	CreateRun(ctx context.Context, provider, model string) (models.TaggingRun, error)
	SelectUnlabeled(ctx context.Context, source, provider string, limit int) ([]models.Candidate, error)
	CountUnlabeled(ctx context.Context, source, provider string) (int, error)
	HasResult(ctx context.Context, assetID, provider string) (bool, error)
	InsertResult(ctx context.Context, r models.AIResult) error
	InsertLabelIfAbsent(ctx context.Context, l models.Label) error
	InsertError(ctx context.Context, e models.AIError) error
	UpdateAssetSummary(ctx context.Context, assetID, summary string) error
	ListErrors(ctx context.Context, f db.TriageFilters) ([]models.TriageRow, error)
}
