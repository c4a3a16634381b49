package tagging

import (
	"path/filepath"
	"strings"
)

// Provider names used in stored results and errors.
const (
	ProviderGemini = "gemini"
	ProviderMock   = "mock"
)

// DefaultPrompt instructs the model to return a single JSON object whose
// array fields line up with the label buckets FlattenLabels reads.
const DefaultPrompt = `You are an interior design tagging assistant. Analyze the image and return ONLY valid JSON:
{
  "summary": "short, 1-2 sentence description",
  "image_type": "interior | exterior | product | plan | document | other",
  "rooms": [],
  "elements": [],
  "materials": [],
  "colors": [],
  "styles": [],
  "lighting": [],
  "fixtures": [],
  "appliances": [],
  "text_in_image": [],
  "brands_products": [],
  "tags": []
}

Rules:
- Use lowercase strings.
- Use short phrases when helpful (e.g., "white oak", "brass hardware").
- Return JSON only. No markdown. No extra keys.
`

// Label confidence constants. The remote API reports no usable per-label
// confidence, so stored labels carry a fixed value per labeler.
const (
	ConfidenceHeuristic = 0.35
	ConfidenceModel     = 0.7
)

// MaxRawDiagnostic bounds the raw text stored with an AIError row.
const MaxRawDiagnostic = 10000

// DefaultBatchMaxBytes is the size ceiling for one batch input file.
const DefaultBatchMaxBytes = 1_500_000_000

// ImageKind selects which stored file a tagging attempt prefers.
type ImageKind string

const (
	ImageKindThumb    ImageKind = "thumb"
	ImageKindOriginal ImageKind = "original"
)

// MIMEFromPath maps a file extension to a supported image MIME type.
// Returns "" for anything the remote API will not accept.
func MIMEFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	default:
		return ""
	}
}

// TruncateRaw bounds diagnostic text to MaxRawDiagnostic characters.
func TruncateRaw(raw string) string {
	if len(raw) > MaxRawDiagnostic {
		return raw[:MaxRawDiagnostic]
	}
	return raw
}
