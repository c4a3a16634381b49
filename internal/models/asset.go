// Package models holds the shared data types for the inspirations store.
package models

import "time"

// Asset is one imported image-bearing record. Unique per (Source, SourceRef).
// Importers create assets; thumbnailing sets ThumbPath; tagging sets
// AISummary and attaches labels.
type Asset struct {
	ID          string     `json:"id"`
	Source      string     `json:"source"`
	SourceRef   string     `json:"source_ref"`
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Board       *string    `json:"board,omitempty"`
	Notes       *string    `json:"notes,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	ImportedAt  time.Time  `json:"imported_at"`
	ImageURL    *string    `json:"image_url,omitempty"`
	StoredPath  *string    `json:"stored_path,omitempty"`
	ThumbPath   *string    `json:"thumb_path,omitempty"`
	SHA256      *string    `json:"sha256,omitempty"`
	AISummary   *string    `json:"ai_summary,omitempty"`
}

// Candidate is the slice of asset fields a tagging attempt needs.
// It is a transient join row, never persisted on its own.
type Candidate struct {
	AssetID     string
	Title       string
	Description string
	Board       string
	StoredPath  string
	ThumbPath   string
}
