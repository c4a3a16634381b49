package models

import "time"

// Label provenance sources.
const (
	LabelSourceAI = "ai"
)

// TaggingRun is an audit record for one labeler invocation. Labels and
// errors reference it by RunID only; nothing enforces the link.
type TaggingRun struct {
	ID        string    `json:"id"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
}

// AIResult is one successful tagging outcome for one asset. The most recent
// row per (asset, provider) is treated as authoritative.
type AIResult struct {
	ID        string    `json:"id"`
	AssetID   string    `json:"asset_id"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	Summary   string    `json:"summary,omitempty"`
	Payload   string    `json:"json"`
	CreatedAt time.Time `json:"created_at"`
}

// Label is a normalized tag attached to an asset. Unique per
// (AssetID, Label, Source); duplicate inserts are no-ops.
type Label struct {
	ID         string    `json:"id"`
	AssetID    string    `json:"asset_id"`
	Label      string    `json:"label"`
	Confidence float64   `json:"confidence"`
	Source     string    `json:"source"`
	Model      string    `json:"model,omitempty"`
	RunID      string    `json:"run_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// AIError is one failed tagging attempt. Append-only; Raw is bounded to
// 10,000 characters by the writers.
type AIError struct {
	ID        string    `json:"id"`
	AssetID   string    `json:"asset_id,omitempty"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model,omitempty"`
	Error     string    `json:"error"`
	Raw       string    `json:"raw,omitempty"`
	RunID     string    `json:"run_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TriageRow is an AIError joined with the owning asset's source and with
// whether a same-provider result was recorded at or after the error.
type TriageRow struct {
	AIError
	AssetSource        string `json:"source,omitempty"`
	ResolvedAfterError bool   `json:"resolved_after_error"`
}

// Embedding is a stored text-embedding vector for an asset, unique per
// (AssetID, Provider, Model).
type Embedding struct {
	ID         string    `json:"id"`
	AssetID    string    `json:"asset_id"`
	Provider   string    `json:"provider"`
	Model      string    `json:"model"`
	InputText  string    `json:"input_text,omitempty"`
	Vector     []float64 `json:"-"`
	Dimensions int       `json:"dimensions"`
	CreatedAt  time.Time `json:"created_at"`
}
