package tagging

import "strings"

// Category classifies a recorded tagging failure.
type Category string

const (
	CategoryNetworkDNS       Category = "network_dns"
	CategoryNoJSONRecitation Category = "no_json_recitation"
	CategoryNoJSONOther      Category = "no_json_other"
	CategoryMissingImage     Category = "missing_image"
	CategoryUnsupportedImage Category = "unsupported_image"
	CategoryGeminiHTTP       Category = "gemini_http"
	CategoryOther            Category = "other"
)

// Action is the remediation recommended for a failure category.
type Action string

const (
	ActionHistoricalResolved Action = "historical_resolved"
	ActionRetryWhenNetwork   Action = "retry_when_network_available"
	ActionUseFallbackModel   Action = "use_fallback_or_alt_model"
	ActionInspectPrompt      Action = "inspect_prompt_or_parser"
	ActionRepairMedia        Action = "repair_media"
	ActionInspectAPI         Action = "inspect_api_response"
	ActionManual             Action = "manual_investigation"
)

// Classify pattern-matches an error message (and optional raw diagnostic
// text) into a failure category. Precedence: DNS failures, then missing
// JSON (split by recitation), then media problems, then remote HTTP errors.
func Classify(errMsg, raw string) Category {
	err := strings.ToLower(errMsg)
	rawL := strings.ToLower(raw)

	if strings.Contains(err, "nodename nor servname provided") ||
		strings.Contains(err, "temporary failure in name resolution") ||
		strings.Contains(err, "no such host") {
		return CategoryNetworkDNS
	}
	if strings.Contains(err, "no json object") {
		if strings.Contains(err, "recitation") ||
			(strings.Contains(rawL, "finishreason") && strings.Contains(rawL, "recitation")) {
			return CategoryNoJSONRecitation
		}
		return CategoryNoJSONOther
	}
	if strings.Contains(err, "no image available") {
		return CategoryMissingImage
	}
	if strings.Contains(err, "unsupported image type") {
		return CategoryUnsupportedImage
	}
	if strings.Contains(err, "gemini http") {
		return CategoryGeminiHTTP
	}
	return CategoryOther
}

// ActionFor maps a category to a remediation action. A failure that was
// later resolved (a newer successful result exists for the same asset and
// provider) is historical regardless of category.
func ActionFor(category Category, resolvedAfterError bool) Action {
	if resolvedAfterError {
		return ActionHistoricalResolved
	}
	switch category {
	case CategoryNetworkDNS:
		return ActionRetryWhenNetwork
	case CategoryNoJSONRecitation:
		return ActionUseFallbackModel
	case CategoryNoJSONOther:
		return ActionInspectPrompt
	case CategoryMissingImage, CategoryUnsupportedImage:
		return ActionRepairMedia
	case CategoryGeminiHTTP:
		return ActionInspectAPI
	default:
		return ActionManual
	}
}
