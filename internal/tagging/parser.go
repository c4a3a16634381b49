// Package tagging implements the image-tagging pipeline: candidate
// validation, batch construction, result ingestion, the interactive worker
// pool, and error triage.
package tagging

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/minime/inspirations/internal/genai"
)

var (
	fenceOpenRe  = regexp.MustCompile("^```[a-zA-Z0-9]*")
	whitespaceRe = regexp.MustCompile(`\s+`)
)

const labelEdgeCutset = " ,.;:!#*()[]{}<>\"'"

// stripCodeFences removes a single leading/trailing fenced code block.
func stripCodeFences(text string) string {
	stripped := strings.TrimSpace(text)
	if strings.HasPrefix(stripped, "```") {
		stripped = fenceOpenRe.ReplaceAllString(stripped, "")
		stripped = strings.TrimSpace(stripped)
		if strings.HasSuffix(stripped, "```") {
			stripped = strings.TrimSpace(strings.TrimSuffix(stripped, "```"))
		}
	}
	return stripped
}

// decodeObjectAt decodes a JSON object starting at the beginning of text,
// tolerating trailing content after the object.
func decodeObjectAt(text string) (map[string]any, bool) {
	dec := json.NewDecoder(strings.NewReader(text))
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// ExtractJSON pulls a JSON object out of a raw model response. It strips a
// fenced code block if present, tries the whole text, then scans for each
// '{' and returns the first object that decodes.
func ExtractJSON(text string) (map[string]any, bool) {
	cleaned := stripCodeFences(text)
	if obj, ok := decodeObjectAt(cleaned); ok {
		return obj, true
	}
	for i := 0; i < len(cleaned); i++ {
		if cleaned[i] != '{' {
			continue
		}
		if obj, ok := decodeObjectAt(cleaned[i:]); ok {
			return obj, true
		}
	}
	return nil, false
}

// ResponseText concatenates all text parts across all candidates, separated
// by newlines.
func ResponseText(resp *genai.GenerateResponse) string {
	if resp == nil {
		return ""
	}
	var parts []string
	for _, cand := range resp.Candidates {
		for _, part := range cand.Content.Parts {
			if part.Text != "" {
				parts = append(parts, part.Text)
			}
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

// FinishReasons collects candidate finish reasons in first-seen order,
// deduplicated.
func FinishReasons(resp *genai.GenerateResponse) []string {
	if resp == nil {
		return nil
	}
	var reasons []string
	for _, cand := range resp.Candidates {
		reason := strings.TrimSpace(cand.FinishReason)
		if reason == "" {
			continue
		}
		seen := false
		for _, r := range reasons {
			if r == reason {
				seen = true
				break
			}
		}
		if !seen {
			reasons = append(reasons, reason)
		}
	}
	return reasons
}

// HasFinishReason reports whether any candidate finished with the given
// reason, compared case-insensitively.
func HasFinishReason(resp *genai.GenerateResponse, reason string) bool {
	target := strings.ToUpper(strings.TrimSpace(reason))
	if target == "" {
		return false
	}
	for _, r := range FinishReasons(resp) {
		if strings.ToUpper(r) == target {
			return true
		}
	}
	return false
}

// NoJSONMessage builds the error message recorded when a response carried no
// decodable JSON object. The finish reasons are included so triage can
// distinguish recitation blocks from plain garbage.
func NoJSONMessage(resp *genai.GenerateResponse) string {
	if reasons := FinishReasons(resp); len(reasons) > 0 {
		return fmt.Sprintf("No JSON object in Gemini response (finishReason=%s)", strings.Join(reasons, ","))
	}
	return "No JSON object in Gemini response"
}

// NormalizeLabel lowercases, collapses internal whitespace, and strips edge
// punctuation. Labels shorter than 2 characters normalize to "".
func NormalizeLabel(raw string) string {
	label := whitespaceRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(raw)), " ")
	label = strings.Trim(label, labelEdgeCutset)
	if utf8.RuneCountInString(label) < 2 {
		return ""
	}
	return label
}

// labelBuckets are the array-valued payload fields flattened into labels,
// in a fixed order so output is stable.
var labelBuckets = []string{
	"rooms",
	"elements",
	"materials",
	"colors",
	"styles",
	"lighting",
	"fixtures",
	"appliances",
	"text_in_image",
	"brands_products",
	"tags",
}

// FlattenLabels reads the bucket fields plus the scalar image_type field and
// returns the normalized, deduplicated labels in first-seen order.
func FlattenLabels(payload map[string]any) []string {
	var labels []string
	for _, key := range labelBuckets {
		items, ok := payload[key].([]any)
		if !ok {
			continue
		}
		for _, item := range items {
			if lab := NormalizeLabel(fmt.Sprint(item)); lab != "" {
				labels = append(labels, lab)
			}
		}
	}
	if imageType, ok := payload["image_type"].(string); ok {
		if lab := NormalizeLabel(imageType); lab != "" {
			labels = append(labels, lab)
		}
	}

	seen := make(map[string]bool, len(labels))
	out := labels[:0]
	for _, lab := range labels {
		if seen[lab] {
			continue
		}
		seen[lab] = true
		out = append(out, lab)
	}
	return out
}

// PayloadSummary returns the trimmed summary field of a payload, if any.
func PayloadSummary(payload map[string]any) string {
	s, _ := payload["summary"].(string)
	return strings.TrimSpace(s)
}
