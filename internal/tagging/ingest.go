package tagging

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/minime/inspirations/internal/genai"
)

// maxOutputLine bounds one batch output line; responses are text-only but
// can still carry long recitation dumps.
const maxOutputLine = 16 * 1024 * 1024

// IngestError is one line-level problem captured during ingest.
type IngestError struct {
	Index   int    `json:"index,omitempty"`
	AssetID string `json:"id,omitempty"`
	Error   string `json:"error"`
}

// IngestReport summarizes one ingest pass. Errors is capped at 25 entries;
// ErrorCount is the real total.
type IngestReport struct {
	Labeled         int           `json:"labeled"`
	SkippedExisting int           `json:"skipped_existing"`
	ErrorCount      int           `json:"error_count"`
	Errors          []IngestError `json:"errors,omitempty"`
}

// outputLine is one record of a batch responses file. Which fields carry the
// response varies across API revisions.
type outputLine struct {
	Key      string `json:"key"`
	Metadata struct {
		Key string `json:"key"`
	} `json:"metadata"`
	Error      json.RawMessage           `json:"error"`
	Response   *genai.GenerateResponse   `json:"response"`
	Result     *genai.GenerateResponse   `json:"result"`
	Candidates []genai.ResponseCandidate `json:"candidates"`
}

func (l *outputLine) resolveKey() string {
	if l.Key != "" {
		return l.Key
	}
	return l.Metadata.Key
}

func (l *outputLine) resolveResponse() *genai.GenerateResponse {
	if l.Response != nil {
		return l.Response
	}
	if l.Result != nil {
		return l.Result
	}
	if len(l.Candidates) > 0 {
		return &genai.GenerateResponse{Candidates: l.Candidates}
	}
	return nil
}

func (l *outputLine) errorText() string {
	if len(l.Error) == 0 || string(l.Error) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(l.Error, &s); err == nil {
		return s
	}
	return string(l.Error)
}

// readMapFile returns asset IDs in input-line order for positional fallback.
func readMapFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open map file: %w", err)
	}
	defer f.Close()

	var ids []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var m mapLine
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			return nil, fmt.Errorf("decode map line: %w", err)
		}
		id := m.AssetID
		if id == "" {
			id = m.Key
		}
		ids = append(ids, id)
	}
	return ids, scanner.Err()
}

// IngestOutput replays one downloaded batch responses file into the store.
// Line keys win over the map file's positional fallback; assets that already
// have a result for the provider are skipped, so re-running an ingest is
// harmless.
func IngestOutput(ctx context.Context, store Store, logger *slog.Logger, outputPath, mapPath, provider, model, runID string) (IngestReport, error) {
	assetIDs, err := readMapFile(mapPath)
	if err != nil {
		return IngestReport{}, err
	}

	f, err := os.Open(outputPath)
	if err != nil {
		return IngestReport{}, fmt.Errorf("open output file: %w", err)
	}
	defer f.Close()

	var report IngestReport
	recordErr := func(e IngestError) {
		report.ErrorCount++
		if len(report.Errors) < 25 {
			report.Errors = append(report.Errors, e)
		}
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxOutputLine)
	idx := -1
	for scanner.Scan() {
		idx++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var line outputLine
		if err := json.Unmarshal([]byte(raw), &line); err != nil {
			recordErr(IngestError{Index: idx, Error: fmt.Sprintf("JSON decode failed: %v", err)})
			continue
		}

		assetID := line.resolveKey()
		if assetID == "" && idx < len(assetIDs) {
			assetID = assetIDs[idx]
		}
		if assetID == "" {
			recordErr(IngestError{Index: idx, Error: "Missing asset_id mapping"})
			continue
		}

		exists, err := store.HasResult(ctx, assetID, provider)
		if err != nil {
			return report, fmt.Errorf("check existing result: %w", err)
		}
		if exists {
			report.SkippedExisting++
			continue
		}

		if msg := line.errorText(); msg != "" {
			recordErr(IngestError{AssetID: assetID, Error: msg})
			if err := WriteFailure(ctx, store, provider, runID, Failure{
				AssetID: assetID, Message: msg, Raw: raw, Model: model,
			}); err != nil {
				return report, err
			}
			continue
		}

		resp := line.resolveResponse()
		if resp == nil {
			recordErr(IngestError{AssetID: assetID, Error: "Missing response"})
			if err := WriteFailure(ctx, store, provider, runID, Failure{
				AssetID: assetID, Message: "Missing response", Raw: raw, Model: model,
			}); err != nil {
				return report, err
			}
			continue
		}

		text := ResponseText(resp)
		payload, ok := ExtractJSON(text)
		if !ok {
			msg := NoJSONMessage(resp)
			diag := text
			if diag == "" {
				encoded, _ := json.Marshal(resp)
				diag = string(encoded)
			}
			recordErr(IngestError{AssetID: assetID, Error: msg})
			if err := WriteFailure(ctx, store, provider, runID, Failure{
				AssetID: assetID, Message: msg, Raw: diag, Model: model,
			}); err != nil {
				return report, err
			}
			continue
		}

		if _, written, err := WriteSuccess(ctx, store, assetID, provider, model, runID, payload); err != nil {
			return report, err
		} else if written {
			report.Labeled++
		} else {
			report.SkippedExisting++
		}
	}
	if err := scanner.Err(); err != nil {
		return report, fmt.Errorf("read output file: %w", err)
	}

	logger.Info("ingest complete", "output", outputPath,
		"labeled", report.Labeled, "errors", report.ErrorCount, "skipped_existing", report.SkippedExisting)
	return report, nil
}
