package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/minime/inspirations/internal/metrics"
)

// UploadFile uploads a local file via the resumable upload protocol and
// returns the remote file object. Batch inputs are JSONL, so the payload is
// sent as a single chunk.
func (c *Client) UploadFile(ctx context.Context, path, displayName, mimeType string) (*FileInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read upload payload: %w", err)
	}
	start := time.Now()

	startBody := map[string]any{
		"file": map[string]any{"display_name": displayName},
	}
	headers, err := c.doJSON(ctx, "POST", c.uploadURL, startBody, nil, map[string]string{
		"X-Goog-Upload-Protocol":              "resumable",
		"X-Goog-Upload-Command":               "start",
		"X-Goog-Upload-Header-Content-Length": strconv.Itoa(len(data)),
		"X-Goog-Upload-Header-Content-Type":   mimeType,
	})
	if err != nil {
		return nil, fmt.Errorf("start upload: %w", err)
	}
	sessionURL := headers.Get("X-Goog-Upload-URL")
	if sessionURL == "" {
		return nil, fmt.Errorf("start upload: no upload session URL in response")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sessionURL, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("x-goog-api-key", c.apiKey)
	req.Header.Set("Content-Length", strconv.Itoa(len(data)))
	req.Header.Set("X-Goog-Upload-Offset", "0")
	req.Header.Set("X-Goog-Upload-Command", "upload, finalize")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read upload response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	var envelope fileEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}
	info := envelope.resolve()
	if info.Name == "" {
		return nil, fmt.Errorf("finalize upload: no file name in response")
	}
	c.record(metrics.OpUploadFile, start)
	return info, nil
}

// GetFile fetches remote file metadata by resource name ("files/abc123").
func (c *Client) GetFile(ctx context.Context, name string) (*FileInfo, error) {
	url := fmt.Sprintf("%s/%s", c.baseURL, strings.TrimPrefix(name, "/"))
	var envelope fileEnvelope
	if _, err := c.doJSON(ctx, "GET", url, nil, &envelope, nil); err != nil {
		return nil, err
	}
	return envelope.resolve(), nil
}

// DownloadFile streams a remote file's contents to w. It first asks for the
// file's download URI; when the metadata lookup rejects the name or reports
// no URI, it falls back to the direct media download endpoint.
func (c *Client) DownloadFile(ctx context.Context, name string, w io.Writer) error {
	start := time.Now()
	directURL := fmt.Sprintf("%s/%s:download?alt=media", c.baseURL, strings.TrimPrefix(name, "/"))

	info, err := c.GetFile(ctx, name)
	if err != nil {
		// Some revisions reject batch output names in GetFile with
		// INVALID_ARGUMENT; the media endpoint still serves them.
		err = c.downloadTo(ctx, directURL, true, w)
		if err == nil {
			c.record(metrics.OpDownloadFile, start)
		}
		return err
	}
	if uri := info.ResolveDownloadURI(); uri != "" {
		if err := c.downloadTo(ctx, uri, true, w); err == nil {
			c.record(metrics.OpDownloadFile, start)
			return nil
		}
	}
	if err := c.downloadTo(ctx, directURL, true, w); err != nil {
		return err
	}
	c.record(metrics.OpDownloadFile, start)
	return nil
}
