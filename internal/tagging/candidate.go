package tagging

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/minime/inspirations/internal/models"
)

// Failure is an expected per-candidate failure. It carries everything
// needed to append an AIError row; it is a value, not a Go error, because
// failures here are data the pipeline records and moves past.
type Failure struct {
	AssetID string
	Message string
	Raw     string
	Model   string
}

// ValidatedImage is a candidate image that passed validation.
type ValidatedImage struct {
	Path     string
	MIMEType string
}

// ValidateCandidate picks the preferred image path for the kind (falling
// back to the other path when the preferred one is unset), then checks that
// the file exists and carries a supported image extension.
func ValidateCandidate(c models.Candidate, kind ImageKind) (ValidatedImage, *Failure) {
	preferred, fallback := c.ThumbPath, c.StoredPath
	if kind == ImageKindOriginal {
		preferred, fallback = c.StoredPath, c.ThumbPath
	}
	path := preferred
	if path == "" {
		path = fallback
	}
	if path == "" {
		return ValidatedImage{}, &Failure{
			AssetID: c.AssetID,
			Message: "No image available for tagging",
		}
	}
	if _, err := os.Stat(path); err != nil {
		return ValidatedImage{}, &Failure{
			AssetID: c.AssetID,
			Message: "No image available for tagging",
			Raw:     path,
		}
	}
	mimeType := MIMEFromPath(path)
	if mimeType == "" {
		return ValidatedImage{}, &Failure{
			AssetID: c.AssetID,
			Message: fmt.Sprintf("Unsupported image type: %s", filepath.Ext(path)),
			Raw:     path,
		}
	}
	return ValidatedImage{Path: path, MIMEType: mimeType}, nil
}
