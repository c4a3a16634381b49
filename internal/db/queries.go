package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/minime/inspirations/internal/models"
)

// nullString converts a string to sql.NullString; "" becomes NULL.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringPtr converts a *string to sql.NullString; nil becomes NULL.
func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if ns.Valid {
		return &ns.String
	}
	return nil
}

func stringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func timePtr(nt sql.NullTime) *time.Time {
	if nt.Valid {
		return &nt.Time
	}
	return nil
}

// CreateRun records a labeler invocation and returns the new run.
func (db *DB) CreateRun(ctx context.Context, provider, model string) (models.TaggingRun, error) {
	run := models.TaggingRun{
		ID:       uuid.NewString(),
		Provider: provider,
		Model:    model,
	}
	err := withRetry(ctx, func() error {
		return db.QueryRowContext(ctx,
			`INSERT INTO ai_runs (id, provider, model) VALUES ($1, $2, $3) RETURNING created_at`,
			run.ID, provider, model,
		).Scan(&run.CreatedAt)
	})
	if err != nil {
		return models.TaggingRun{}, fmt.Errorf("create run: %w", conflict(err))
	}
	return run, nil
}

// SelectUnlabeled returns candidates for assets with no stored result for
// the provider, oldest imports first. A limit of 0 means no limit.
func (db *DB) SelectUnlabeled(ctx context.Context, source, provider string, limit int) ([]models.Candidate, error) {
	query := `
		SELECT a.id, COALESCE(a.title, ''), COALESCE(a.description, ''),
		       COALESCE(a.board, ''), COALESCE(a.stored_path, ''), COALESCE(a.thumb_path, '')
		FROM assets a
		WHERE a.source = $1
		  AND NOT EXISTS (
		      SELECT 1 FROM asset_ai r WHERE r.asset_id = a.id AND r.provider = $2
		  )
		ORDER BY a.imported_at ASC`
	args := []any{source, provider}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select unlabeled: %w", err)
	}
	defer rows.Close()

	var out []models.Candidate
	for rows.Next() {
		var c models.Candidate
		if err := rows.Scan(&c.AssetID, &c.Title, &c.Description, &c.Board, &c.StoredPath, &c.ThumbPath); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CountUnlabeled returns how many assets SelectUnlabeled would match.
func (db *DB) CountUnlabeled(ctx context.Context, source, provider string) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `
		SELECT count(*)
		FROM assets a
		WHERE a.source = $1
		  AND NOT EXISTS (
		      SELECT 1 FROM asset_ai r WHERE r.asset_id = a.id AND r.provider = $2
		  )`, source, provider).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unlabeled: %w", err)
	}
	return n, nil
}

// HasResult reports whether any result row exists for the asset and provider.
func (db *DB) HasResult(ctx context.Context, assetID, provider string) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM asset_ai WHERE asset_id = $1 AND provider = $2)`,
		assetID, provider).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("has result: %w", err)
	}
	return exists, nil
}

// InsertResult appends one successful tagging outcome.
func (db *DB) InsertResult(ctx context.Context, r models.AIResult) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	err := withRetry(ctx, func() error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO asset_ai (id, asset_id, provider, model, summary, payload)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			r.ID, r.AssetID, r.Provider, r.Model, nullString(r.Summary), r.Payload)
		return err
	})
	if err != nil {
		return fmt.Errorf("insert result: %w", conflict(err))
	}
	return nil
}

// InsertLabelIfAbsent attaches a label to an asset; a duplicate
// (asset, label, source) is a silent no-op.
func (db *DB) InsertLabelIfAbsent(ctx context.Context, l models.Label) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	err := withRetry(ctx, func() error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO asset_labels (id, asset_id, label, confidence, source, model, run_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (asset_id, label, source) DO NOTHING`,
			l.ID, l.AssetID, l.Label, l.Confidence, l.Source, nullString(l.Model), nullString(l.RunID))
		return err
	})
	if err != nil {
		return fmt.Errorf("insert label: %w", conflict(err))
	}
	return nil
}

// InsertError appends a failed tagging attempt. AssetID may be empty when
// the failure could not be attributed to an asset.
func (db *DB) InsertError(ctx context.Context, e models.AIError) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	err := withRetry(ctx, func() error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO asset_ai_errors (id, asset_id, provider, model, error, raw, run_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			e.ID, nullString(e.AssetID), e.Provider, e.Model, e.Error, nullString(e.Raw), nullString(e.RunID))
		return err
	})
	if err != nil {
		return fmt.Errorf("insert error row: %w", conflict(err))
	}
	return nil
}

// UpdateAssetSummary denormalizes the latest AI summary onto the asset.
func (db *DB) UpdateAssetSummary(ctx context.Context, assetID, summary string) error {
	err := withRetry(ctx, func() error {
		_, err := db.ExecContext(ctx,
			`UPDATE assets SET ai_summary = $2 WHERE id = $1`, assetID, nullString(summary))
		return err
	})
	if err != nil {
		return fmt.Errorf("update asset summary: %w", err)
	}
	return nil
}

// TriageFilters narrows the error rows a triage report covers. Zero values
// mean "no filter"; Limit 0 means no limit.
type TriageFilters struct {
	Source   string
	Provider string
	Model    string
	Since    time.Time
	Limit    int
}

// ListErrors returns error rows newest first, joined with the owning asset's
// source and a resolved-after-error flag (a same-provider result recorded at
// or after the error).
func (db *DB) ListErrors(ctx context.Context, f TriageFilters) ([]models.TriageRow, error) {
	query := `
		SELECT e.id, e.asset_id, e.provider, e.model, e.error, e.raw, e.run_id, e.created_at,
		       COALESCE(a.source, ''),
		       EXISTS (
		           SELECT 1 FROM asset_ai r
		           WHERE r.asset_id = e.asset_id
		             AND r.provider = e.provider
		             AND r.created_at >= e.created_at
		       )
		FROM asset_ai_errors e
		LEFT JOIN assets a ON a.id = e.asset_id`

	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Source != "" {
		add("a.source = $%d", f.Source)
	}
	if f.Provider != "" {
		add("e.provider = $%d", f.Provider)
	}
	if f.Model != "" {
		add("e.model = $%d", f.Model)
	}
	if !f.Since.IsZero() {
		add("e.created_at >= $%d", f.Since)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY e.created_at DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list errors: %w", err)
	}
	defer rows.Close()

	var out []models.TriageRow
	for rows.Next() {
		var row models.TriageRow
		var assetID, model, raw, runID sql.NullString
		if err := rows.Scan(&row.ID, &assetID, &row.Provider, &model, &row.Error, &raw, &runID,
			&row.CreatedAt, &row.AssetSource, &row.ResolvedAfterError); err != nil {
			return nil, fmt.Errorf("scan error row: %w", err)
		}
		row.AssetID = stringValue(assetID)
		row.Model = stringValue(model)
		row.Raw = stringValue(raw)
		row.RunID = stringValue(runID)
		out = append(out, row)
	}
	return out, rows.Err()
}

const assetColumns = `id, source, source_ref, title, description, board, notes,
	created_at, imported_at, image_url, stored_path, thumb_path, sha256, ai_summary`

func scanAsset(scan func(...any) error) (models.Asset, error) {
	var a models.Asset
	var title, description, board, notes, imageURL, storedPath, thumbPath, sha, summary sql.NullString
	var createdAt sql.NullTime
	err := scan(&a.ID, &a.Source, &a.SourceRef, &title, &description, &board, &notes,
		&createdAt, &a.ImportedAt, &imageURL, &storedPath, &thumbPath, &sha, &summary)
	if err != nil {
		return models.Asset{}, err
	}
	a.Title = stringPtr(title)
	a.Description = stringPtr(description)
	a.Board = stringPtr(board)
	a.Notes = stringPtr(notes)
	a.CreatedAt = timePtr(createdAt)
	a.ImageURL = stringPtr(imageURL)
	a.StoredPath = stringPtr(storedPath)
	a.ThumbPath = stringPtr(thumbPath)
	a.SHA256 = stringPtr(sha)
	a.AISummary = stringPtr(summary)
	return a, nil
}

// UpsertAsset inserts an asset or, when (source, source_ref) already exists,
// refreshes its metadata. The stable asset ID is returned either way.
func (db *DB) UpsertAsset(ctx context.Context, a models.Asset) (string, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	var id string
	err := withRetry(ctx, func() error {
		return db.QueryRowContext(ctx, `
			INSERT INTO assets (id, source, source_ref, title, description, board, notes,
			                    created_at, image_url, stored_path, thumb_path, sha256)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			ON CONFLICT (source, source_ref) DO UPDATE SET
			    title = COALESCE(EXCLUDED.title, assets.title),
			    description = COALESCE(EXCLUDED.description, assets.description),
			    board = COALESCE(EXCLUDED.board, assets.board),
			    notes = COALESCE(EXCLUDED.notes, assets.notes),
			    image_url = COALESCE(EXCLUDED.image_url, assets.image_url),
			    stored_path = COALESCE(EXCLUDED.stored_path, assets.stored_path),
			    thumb_path = COALESCE(EXCLUDED.thumb_path, assets.thumb_path),
			    sha256 = COALESCE(EXCLUDED.sha256, assets.sha256)
			RETURNING id`,
			a.ID, a.Source, a.SourceRef, nullStringPtr(a.Title), nullStringPtr(a.Description),
			nullStringPtr(a.Board), nullStringPtr(a.Notes), a.CreatedAt,
			nullStringPtr(a.ImageURL), nullStringPtr(a.StoredPath), nullStringPtr(a.ThumbPath),
			nullStringPtr(a.SHA256),
		).Scan(&id)
	})
	if err != nil {
		return "", fmt.Errorf("upsert asset: %w", conflict(err))
	}
	return id, nil
}

// GetAsset fetches one asset by ID. Returns ErrNotFound when absent.
func (db *DB) GetAsset(ctx context.Context, id string) (models.Asset, error) {
	row := db.QueryRowContext(ctx, `SELECT `+assetColumns+` FROM assets WHERE id = $1`, id)
	a, err := scanAsset(row.Scan)
	if err != nil {
		return models.Asset{}, fmt.Errorf("get asset: %w", notFound(err))
	}
	return a, nil
}

// ListAssets pages through assets, newest imports first. An empty source
// matches all sources.
func (db *DB) ListAssets(ctx context.Context, source string, limit, offset int) ([]models.Asset, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + assetColumns + ` FROM assets`
	args := []any{}
	if source != "" {
		query += ` WHERE source = $1`
		args = append(args, source)
	}
	query += fmt.Sprintf(` ORDER BY imported_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var out []models.Asset
	for rows.Next() {
		a, err := scanAsset(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CountAssets returns the number of assets, optionally narrowed to a source.
func (db *DB) CountAssets(ctx context.Context, source string) (int, error) {
	query := `SELECT COUNT(*) FROM assets`
	args := []any{}
	if source != "" {
		query += ` WHERE source = $1`
		args = append(args, source)
	}
	var n int
	if err := db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count assets: %w", err)
	}
	return n, nil
}

// ListAssetLabels returns an asset's labels, highest confidence first.
func (db *DB) ListAssetLabels(ctx context.Context, assetID string) ([]models.Label, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, asset_id, label, confidence, source, model, run_id, created_at
		FROM asset_labels WHERE asset_id = $1
		ORDER BY confidence DESC, label ASC`, assetID)
	if err != nil {
		return nil, fmt.Errorf("list labels: %w", err)
	}
	defer rows.Close()

	var out []models.Label
	for rows.Next() {
		var l models.Label
		var model, runID sql.NullString
		if err := rows.Scan(&l.ID, &l.AssetID, &l.Label, &l.Confidence, &l.Source, &model, &runID, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan label: %w", err)
		}
		l.Model = stringValue(model)
		l.RunID = stringValue(runID)
		out = append(out, l)
	}
	return out, rows.Err()
}

// EmbedCandidate is an asset awaiting embedding, with its labels already
// aggregated into a comma-separated string.
type EmbedCandidate struct {
	Asset     models.Asset
	LabelsCSV string
}

// SelectEmbeddingCandidates returns assets with no embedding row for the
// (provider, model) pair. A limit of 0 means no limit.
func (db *DB) SelectEmbeddingCandidates(ctx context.Context, source, provider, model string, limit int) ([]EmbedCandidate, error) {
	query := `
		SELECT ` + assetColumns + `,
		       COALESCE((SELECT string_agg(l.label, ', ' ORDER BY l.label)
		                 FROM asset_labels l WHERE l.asset_id = assets.id), '')
		FROM assets
		WHERE source = $1
		  AND NOT EXISTS (
		      SELECT 1 FROM asset_embeddings e
		      WHERE e.asset_id = assets.id AND e.provider = $2 AND e.model = $3
		  )
		ORDER BY imported_at ASC`
	args := []any{source, provider, model}
	if limit > 0 {
		query += ` LIMIT $4`
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select embedding candidates: %w", err)
	}
	defer rows.Close()

	var out []EmbedCandidate
	for rows.Next() {
		var c EmbedCandidate
		var title, description, board, notes, imageURL, storedPath, thumbPath, sha, summary sql.NullString
		var createdAt sql.NullTime
		if err := rows.Scan(&c.Asset.ID, &c.Asset.Source, &c.Asset.SourceRef,
			&title, &description, &board, &notes, &createdAt, &c.Asset.ImportedAt,
			&imageURL, &storedPath, &thumbPath, &sha, &summary, &c.LabelsCSV); err != nil {
			return nil, fmt.Errorf("scan embedding candidate: %w", err)
		}
		c.Asset.Title = stringPtr(title)
		c.Asset.Description = stringPtr(description)
		c.Asset.Board = stringPtr(board)
		c.Asset.Notes = stringPtr(notes)
		c.Asset.CreatedAt = timePtr(createdAt)
		c.Asset.ImageURL = stringPtr(imageURL)
		c.Asset.StoredPath = stringPtr(storedPath)
		c.Asset.ThumbPath = stringPtr(thumbPath)
		c.Asset.SHA256 = stringPtr(sha)
		c.Asset.AISummary = stringPtr(summary)
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpsertEmbedding stores an embedding vector, replacing any previous one for
// the same (asset, provider, model).
func (db *DB) UpsertEmbedding(ctx context.Context, e models.Embedding) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	vec, err := json.Marshal(e.Vector)
	if err != nil {
		return fmt.Errorf("encode vector: %w", err)
	}
	err = withRetry(ctx, func() error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO asset_embeddings (id, asset_id, provider, model, input_text, vector, dimensions)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (asset_id, provider, model) DO UPDATE SET
			    input_text = EXCLUDED.input_text,
			    vector = EXCLUDED.vector,
			    dimensions = EXCLUDED.dimensions,
			    created_at = now()`,
			e.ID, e.AssetID, e.Provider, e.Model, e.InputText, string(vec), len(e.Vector))
		return err
	})
	if err != nil {
		return fmt.Errorf("upsert embedding: %w", conflict(err))
	}
	return nil
}

// EmbeddingRow pairs a stored vector with its owning asset, for scoring
// against a query vector.
type EmbeddingRow struct {
	Embedding models.Embedding
	Asset     models.Asset
}

// ListEmbeddingRows returns all (provider, model) vectors joined with their
// assets. An empty source means all sources.
func (db *DB) ListEmbeddingRows(ctx context.Context, provider, model, source string) ([]EmbeddingRow, error) {
	query := `
		SELECT e.id, e.asset_id, e.provider, e.model, e.vector, e.dimensions, e.created_at,
		       a.id, a.source, a.source_ref, a.title, a.description, a.board, a.notes,
		       a.created_at, a.imported_at, a.image_url, a.stored_path, a.thumb_path, a.sha256, a.ai_summary
		FROM asset_embeddings e
		JOIN assets a ON a.id = e.asset_id
		WHERE e.provider = $1 AND e.model = $2`
	args := []any{provider, model}
	if source != "" {
		query += ` AND a.source = $3`
		args = append(args, source)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list embedding rows: %w", err)
	}
	defer rows.Close()

	var out []EmbeddingRow
	for rows.Next() {
		var r EmbeddingRow
		var vec string
		var title, description, board, notes, imageURL, storedPath, thumbPath, sha, summary sql.NullString
		var createdAt sql.NullTime
		if err := rows.Scan(
			&r.Embedding.ID, &r.Embedding.AssetID, &r.Embedding.Provider, &r.Embedding.Model,
			&vec, &r.Embedding.Dimensions, &r.Embedding.CreatedAt,
			&r.Asset.ID, &r.Asset.Source, &r.Asset.SourceRef, &title, &description, &board, &notes,
			&createdAt, &r.Asset.ImportedAt, &imageURL, &storedPath, &thumbPath, &sha, &summary,
		); err != nil {
			return nil, fmt.Errorf("scan embedding row: %w", err)
		}
		if err := json.Unmarshal([]byte(vec), &r.Embedding.Vector); err != nil {
			return nil, fmt.Errorf("decode vector for %s: %w", r.Embedding.AssetID, err)
		}
		r.Asset.Title = stringPtr(title)
		r.Asset.Description = stringPtr(description)
		r.Asset.Board = stringPtr(board)
		r.Asset.Notes = stringPtr(notes)
		r.Asset.CreatedAt = timePtr(createdAt)
		r.Asset.ImageURL = stringPtr(imageURL)
		r.Asset.StoredPath = stringPtr(storedPath)
		r.Asset.ThumbPath = stringPtr(thumbPath)
		r.Asset.SHA256 = stringPtr(sha)
		r.Asset.AISummary = stringPtr(summary)
		out = append(out, r)
	}
	return out, rows.Err()
}
