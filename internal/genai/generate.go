package genai

import (
	"context"
	"fmt"
	"time"

	"github.com/minime/inspirations/internal/metrics"
)

// GenerationConfigLadder returns generation configs from most to least
// specific. Older API revisions reject the newer config fields with a bad
// request, so Generate walks the ladder until one config is accepted.
func GenerationConfigLadder() []*GenerationConfig {
	return []*GenerationConfig{
		{
			Temperature:      0.2,
			MaxOutputTokens:  4096,
			ResponseMIMEType: "application/json",
			ThinkingConfig:   &ThinkingConfig{ThinkingBudget: 0},
		},
		{
			Temperature:      0.2,
			MaxOutputTokens:  4096,
			ResponseMIMEType: "application/json",
		},
		{
			Temperature:     0.2,
			MaxOutputTokens: 4096,
		},
		{
			Temperature:     0.2,
			MaxOutputTokens: 2048,
		},
	}
}

// BuildImageRequest assembles the request for tagging one image: the prompt
// text plus the inline base64 payload.
func BuildImageRequest(prompt, mimeType, dataB64 string, cfg *GenerationConfig) GenerateRequest {
	return GenerateRequest{
		Contents: []Content{{
			Parts: []Part{
				{Text: prompt},
				{InlineData: &InlineData{MIMEType: mimeType, Data: dataB64}},
			},
		}},
		GenerationConfig: cfg,
	}
}

// Generate runs one generateContent call against the model, walking the
// generation-config ladder on field-rejection errors. Any other error stops
// the ladder immediately.
func (c *Client) Generate(ctx context.Context, model string, contents []Content) (*GenerateResponse, error) {
	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, model)
	start := time.Now()
	var lastErr error
	for _, cfg := range GenerationConfigLadder() {
		req := GenerateRequest{Contents: contents, GenerationConfig: cfg}
		var resp GenerateResponse
		if _, err := c.doJSON(ctx, "POST", url, req, &resp, nil); err != nil {
			lastErr = err
			if retryableBadRequest(err) {
				continue
			}
			return nil, err
		}
		var in, out int64
		if resp.Usage != nil {
			in, out = resp.Usage.PromptTokenCount, resp.Usage.CandidatesTokenCount
		}
		c.recordUsage(metrics.OpGenerate, start, in, out)
		return &resp, nil
	}
	return nil, lastErr
}

// EmbedText embeds one text with the given task type, returning the vector.
func (c *Client) EmbedText(ctx context.Context, model, text, taskType string) ([]float64, error) {
	url := fmt.Sprintf("%s/models/%s:embedContent", c.baseURL, model)
	req := map[string]any{
		"content": map[string]any{
			"parts": []map[string]string{{"text": text}},
		},
	}
	if taskType != "" {
		req["taskType"] = taskType
	}
	start := time.Now()
	var resp EmbedResponse
	if _, err := c.doJSON(ctx, "POST", url, req, &resp, nil); err != nil {
		return nil, err
	}
	values := resp.ResolveValues()
	if len(values) == 0 {
		return nil, fmt.Errorf("embed %s: empty embedding in response", model)
	}
	c.record(metrics.OpEmbed, start)
	return values, nil
}
