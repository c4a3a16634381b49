package tagging

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  string
		raw  string
		want Category
	}{
		{"dns macos", "urlopen error [Errno 8] nodename nor servname provided", "", CategoryNetworkDNS},
		{"dns linux", "Temporary failure in name resolution", "", CategoryNetworkDNS},
		{"dns go", "dial tcp: lookup generativelanguage.googleapis.com: no such host", "", CategoryNetworkDNS},
		{"recitation in message", "No JSON object in Gemini response (finishReason=RECITATION)", "", CategoryNoJSONRecitation},
		{"recitation in raw", "No JSON object in Gemini response", `{"finishReason":"RECITATION"}`, CategoryNoJSONRecitation},
		{"no json plain", "No JSON object in Gemini response (finishReason=MAX_TOKENS)", "", CategoryNoJSONOther},
		{"missing image", "No image available for tagging", "", CategoryMissingImage},
		{"unsupported image", "Unsupported image type: .heic", "", CategoryUnsupportedImage},
		{"http error", "Gemini HTTP 429: resource exhausted", "", CategoryGeminiHTTP},
		{"dns wins over http", "Gemini HTTP 0: no such host", "", CategoryNetworkDNS},
		{"unknown", "something odd happened", "", CategoryOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err, tt.raw); got != tt.want {
				t.Errorf("Classify(%q, %q) = %q, want %q", tt.err, tt.raw, got, tt.want)
			}
		})
	}
}

func TestActionFor(t *testing.T) {
	tests := []struct {
		category Category
		resolved bool
		want     Action
	}{
		{CategoryNetworkDNS, false, ActionRetryWhenNetwork},
		{CategoryNoJSONRecitation, false, ActionUseFallbackModel},
		{CategoryNoJSONOther, false, ActionInspectPrompt},
		{CategoryMissingImage, false, ActionRepairMedia},
		{CategoryUnsupportedImage, false, ActionRepairMedia},
		{CategoryGeminiHTTP, false, ActionInspectAPI},
		{CategoryOther, false, ActionManual},
		{CategoryNetworkDNS, true, ActionHistoricalResolved},
		{CategoryOther, true, ActionHistoricalResolved},
	}
	for _, tt := range tests {
		if got := ActionFor(tt.category, tt.resolved); got != tt.want {
			t.Errorf("ActionFor(%q, %v) = %q, want %q", tt.category, tt.resolved, got, tt.want)
		}
	}
}
