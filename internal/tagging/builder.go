package tagging

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/minime/inspirations/internal/genai"
	"github.com/minime/inspirations/internal/models"
)

// BatchGenerationConfig is the per-request config embedded in batch input
// lines. Batch endpoints predate the newer config fields, so this stays
// conservative.
var BatchGenerationConfig = &genai.GenerationConfig{
	Temperature:     0.2,
	MaxOutputTokens: 2048,
}

// BatchInput describes one written input file and its sidecars.
type BatchInput struct {
	Idx         int
	InputPath   string
	MapPath     string
	SkippedPath string
	Count       int
	SizeBytes   int64
}

// BuildResult is everything BuildInputs produced.
type BuildResult struct {
	Inputs  []BatchInput
	Skipped []Failure
}

// inputLine is one batch request record.
type inputLine struct {
	Key     string                `json:"key"`
	Request genai.GenerateRequest `json:"request"`
}

// mapLine links an input line back to its asset for positional fallback
// during ingest.
type mapLine struct {
	Index   int    `json:"index"`
	AssetID string `json:"asset_id"`
	Key     string `json:"key"`
}

// skippedLine records a candidate excluded from the input file.
type skippedLine struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// batchFiles is the open triple for the current batch index.
type batchFiles struct {
	idx     int
	input   *os.File
	mapF    *os.File
	skipped *os.File
	paths   BatchInput
}

func openBatchFiles(outDir string, idx int) (*batchFiles, error) {
	b := &batchFiles{idx: idx}
	b.paths = BatchInput{
		Idx:         idx,
		InputPath:   filepath.Join(outDir, fmt.Sprintf("input_%03d.jsonl", idx)),
		MapPath:     filepath.Join(outDir, fmt.Sprintf("map_%03d.jsonl", idx)),
		SkippedPath: filepath.Join(outDir, fmt.Sprintf("skipped_%03d.jsonl", idx)),
	}
	var err error
	if b.input, err = os.Create(b.paths.InputPath); err != nil {
		return nil, fmt.Errorf("create input file: %w", err)
	}
	if b.mapF, err = os.Create(b.paths.MapPath); err != nil {
		_ = b.input.Close()
		return nil, fmt.Errorf("create map file: %w", err)
	}
	if b.skipped, err = os.Create(b.paths.SkippedPath); err != nil {
		_ = b.input.Close()
		_ = b.mapF.Close()
		return nil, fmt.Errorf("create skipped file: %w", err)
	}
	return b, nil
}

func (b *batchFiles) close() error {
	var firstErr error
	for _, f := range []*os.File{b.input, b.mapF, b.skipped} {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func writeJSONLine(f *os.File, v any) (int64, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return 0, err
	}
	n, err := f.Write(append(data, '\n'))
	return int64(n), err
}

// BuildInputs writes batch input files under outDir: input_NNN.jsonl with
// one request per candidate (inline base64 image), map_NNN.jsonl for
// positional recovery, skipped_NNN.jsonl for candidates with missing or
// unsupported images. A new file starts whenever appending a record would
// push the current file past maxBytes (an oversized single record still gets
// a file of its own). A limit of 0 means all candidates.
func BuildInputs(logger *slog.Logger, candidates []models.Candidate, outDir string, kind ImageKind, prompt string, maxBytes int64, limit int) (BuildResult, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return BuildResult{}, fmt.Errorf("create batch dir: %w", err)
	}
	if maxBytes <= 0 {
		maxBytes = DefaultBatchMaxBytes
	}

	var result BuildResult
	cur, err := openBatchFiles(outDir, 1)
	if err != nil {
		return BuildResult{}, err
	}
	count, lineIdx := 0, 0
	var sizeBytes int64

	finish := func() error {
		if err := cur.close(); err != nil {
			return fmt.Errorf("close batch files: %w", err)
		}
		if count > 0 {
			done := cur.paths
			done.Count = count
			done.SizeBytes = sizeBytes
			result.Inputs = append(result.Inputs, done)
		}
		return nil
	}

	for _, c := range candidates {
		if limit > 0 && count >= limit {
			break
		}
		img, failure := ValidateCandidate(c, kind)
		if failure != nil {
			result.Skipped = append(result.Skipped, *failure)
			if _, err := writeJSONLine(cur.skipped, skippedLine{ID: failure.AssetID, Error: failure.Message}); err != nil {
				_ = cur.close()
				return BuildResult{}, fmt.Errorf("write skipped line: %w", err)
			}
			continue
		}
		raw, err := os.ReadFile(img.Path)
		if err != nil {
			result.Skipped = append(result.Skipped, Failure{AssetID: c.AssetID, Message: "No image available for tagging", Raw: img.Path})
			if _, err := writeJSONLine(cur.skipped, skippedLine{ID: c.AssetID, Error: "No image available for tagging"}); err != nil {
				_ = cur.close()
				return BuildResult{}, fmt.Errorf("write skipped line: %w", err)
			}
			continue
		}

		line := inputLine{
			Key: c.AssetID,
			Request: genai.BuildImageRequest(prompt, img.MIMEType,
				base64.StdEncoding.EncodeToString(raw), BatchGenerationConfig),
		}
		encoded, err := json.Marshal(line)
		if err != nil {
			_ = cur.close()
			return BuildResult{}, fmt.Errorf("encode input line: %w", err)
		}
		lineSize := int64(len(encoded)) + 1

		if sizeBytes+lineSize > maxBytes && count > 0 {
			if err := finish(); err != nil {
				return BuildResult{}, err
			}
			cur, err = openBatchFiles(outDir, cur.idx+1)
			if err != nil {
				return BuildResult{}, err
			}
			count, lineIdx, sizeBytes = 0, 0, 0
		}

		if _, err := cur.input.Write(append(encoded, '\n')); err != nil {
			_ = cur.close()
			return BuildResult{}, fmt.Errorf("write input line: %w", err)
		}
		if _, err := writeJSONLine(cur.mapF, mapLine{Index: lineIdx, AssetID: c.AssetID, Key: c.AssetID}); err != nil {
			_ = cur.close()
			return BuildResult{}, fmt.Errorf("write map line: %w", err)
		}
		sizeBytes += lineSize
		count++
		lineIdx++

		if count%50 == 0 {
			logger.Info("prepared batch requests", "batch", cur.idx, "count", count, "size_mb", float64(sizeBytes)/1e6)
		}
	}

	if err := finish(); err != nil {
		return BuildResult{}, err
	}
	return result, nil
}
