package tagging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/minime/inspirations/internal/genai"
)

// BatchMeta is the durable sidecar for one submitted batch. It is written
// after submit and updated after watch and ingest, so every later phase can
// resume from the file alone.
type BatchMeta struct {
	Idx            int           `json:"idx"`
	BatchName      string        `json:"batch_name"`
	DisplayName    string        `json:"display_name"`
	InputFile      string        `json:"input_file"`
	MapFile        string        `json:"map_file"`
	SkippedFile    string        `json:"skipped_file"`
	InputFileID    string        `json:"input_file_id"`
	RequestCount   int           `json:"request_count"`
	InputSizeBytes int64         `json:"input_size_bytes"`
	Model          string        `json:"model"`
	Source         string        `json:"source"`
	ImageKind      string        `json:"image_kind"`
	CreatedAt      time.Time     `json:"created_at"`
	State          string        `json:"state,omitempty"`
	OutputFileID   string        `json:"output_file_id,omitempty"`
	OutputPath     string        `json:"output_path,omitempty"`
	IngestReport   *IngestReport `json:"ingest_report,omitempty"`
}

// MetaPath returns the sidecar path for a batch index inside a run dir.
func MetaPath(dir string, idx int) string {
	return filepath.Join(dir, fmt.Sprintf("meta_%03d.json", idx))
}

// WriteMeta persists a meta file.
func WriteMeta(path string, meta BatchMeta) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode meta: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write meta: %w", err)
	}
	return nil
}

// LoadMeta reads one meta file.
func LoadMeta(path string) (BatchMeta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return BatchMeta{}, fmt.Errorf("read meta: %w", err)
	}
	var meta BatchMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return BatchMeta{}, fmt.Errorf("decode meta %s: %w", path, err)
	}
	return meta, nil
}

// LoadMetas reads every meta_NNN.json in a run dir, ordered by index.
func LoadMetas(dir string) ([]BatchMeta, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "meta_*.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	var metas []BatchMeta
	for _, path := range matches {
		meta, err := LoadMeta(path)
		if err != nil {
			return nil, err
		}
		metas = append(metas, meta)
	}
	return metas, nil
}

// PipelineConfig tunes one batch tagging pipeline.
type PipelineConfig struct {
	Source       string
	Model        string
	ImageKind    ImageKind
	Prompt       string
	OutDir       string
	MaxBytes     int64
	Limit        int
	PollInterval time.Duration
	MaxWait      time.Duration
}

// Pipeline drives select → build → submit → watch → download → ingest
// against the asynchronous batch API.
type Pipeline struct {
	Store  Store
	Client *genai.Client
	Logger *slog.Logger
	Config PipelineConfig
}

// NewRunDir creates a fresh timestamped directory under the configured
// output root.
func (p *Pipeline) NewRunDir() (string, error) {
	dir := filepath.Join(p.Config.OutDir, "batch_"+time.Now().Format("20060102_150405"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create run dir: %w", err)
	}
	return dir, nil
}

// Run executes the whole pipeline: submit all batches, then watch, download,
// and ingest each one in turn.
func (p *Pipeline) Run(ctx context.Context) ([]BatchMeta, error) {
	dir, err := p.NewRunDir()
	if err != nil {
		return nil, err
	}
	metas, err := p.Submit(ctx, dir)
	if err != nil {
		return nil, err
	}
	for i := range metas {
		if err := p.WatchAndIngest(ctx, dir, &metas[i]); err != nil {
			return metas, err
		}
	}
	return metas, nil
}

// Submit selects candidates, builds input files, and uploads + submits each
// one. A failed upload or create abandons that file only; the rest of the
// run continues.
func (p *Pipeline) Submit(ctx context.Context, dir string) ([]BatchMeta, error) {
	candidates, err := p.Store.SelectUnlabeled(ctx, p.Config.Source, ProviderGemini, 0)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		p.Logger.Info("no candidates to tag", "source", p.Config.Source)
		return nil, nil
	}

	p.Logger.Info("building batch inputs", "candidates", len(candidates), "dir", dir)
	built, err := BuildInputs(p.Logger, candidates, dir, p.Config.ImageKind, p.Config.Prompt, p.Config.MaxBytes, p.Config.Limit)
	if err != nil {
		return nil, err
	}
	if len(built.Skipped) > 0 {
		p.Logger.Warn("skipped candidates with missing or unsupported images", "count", len(built.Skipped))
	}

	var metas []BatchMeta
	for _, input := range built.Inputs {
		displayName := fmt.Sprintf("inspirations-%s-%03d-%d", p.Config.Source, input.Idx, time.Now().Unix())

		p.Logger.Info("uploading batch input", "batch", input.Idx, "file", input.InputPath, "requests", input.Count)
		fileInfo, err := p.Client.UploadFile(ctx, input.InputPath, displayName, "application/jsonl")
		if err != nil {
			p.Logger.Error("upload failed, abandoning batch file", "batch", input.Idx, "error", err)
			continue
		}

		p.Logger.Info("creating batch job", "batch", input.Idx, "file_id", fileInfo.Name)
		batchName, err := p.Client.CreateBatch(ctx, p.Config.Model, displayName, fileInfo.Name)
		if err != nil {
			p.Logger.Error("batch create failed, abandoning batch file", "batch", input.Idx, "error", err)
			continue
		}

		meta := BatchMeta{
			Idx:            input.Idx,
			BatchName:      batchName,
			DisplayName:    displayName,
			InputFile:      input.InputPath,
			MapFile:        input.MapPath,
			SkippedFile:    input.SkippedPath,
			InputFileID:    fileInfo.Name,
			RequestCount:   input.Count,
			InputSizeBytes: input.SizeBytes,
			Model:          p.Config.Model,
			Source:         p.Config.Source,
			ImageKind:      string(p.Config.ImageKind),
			CreatedAt:      time.Now().UTC(),
		}
		if err := WriteMeta(MetaPath(dir, input.Idx), meta); err != nil {
			return metas, err
		}
		metas = append(metas, meta)
		p.Logger.Info("batch submitted", "batch", input.Idx, "name", batchName)
	}
	return metas, nil
}

// WatchAndIngest polls one batch to completion, downloads its output, and
// ingests it. A terminal batch without an output file produces a zero-result
// report; FAILED and CANCELLED states are logged but not fatal, since their
// meta files keep enough state for a later retry.
func (p *Pipeline) WatchAndIngest(ctx context.Context, dir string, meta *BatchMeta) error {
	metaPath := MetaPath(dir, meta.Idx)

	op, err := p.Client.WaitForBatch(ctx, p.Logger, meta.BatchName, p.Config.PollInterval, p.Config.MaxWait)
	if err != nil {
		return fmt.Errorf("watch batch %s: %w", meta.BatchName, err)
	}
	meta.State = op.State()
	batch := op.ResolveBatch()
	responsesFile := batch.ResponsesFile()

	if responsesFile == "" {
		switch meta.State {
		case genai.StateFailed, genai.StateCancelled:
			p.Logger.Warn("batch finished without output", "batch", meta.Idx, "state", meta.State)
		default:
			p.Logger.Info("batch has no output file yet", "batch", meta.Idx, "state", meta.State)
		}
		meta.IngestReport = &IngestReport{}
		return WriteMeta(metaPath, *meta)
	}

	meta.OutputFileID = responsesFile
	meta.OutputPath = filepath.Join(dir, fmt.Sprintf("output_%03d.jsonl", meta.Idx))
	if err := WriteMeta(metaPath, *meta); err != nil {
		return err
	}

	if err := p.Fetch(ctx, meta); err != nil {
		return err
	}
	return p.Ingest(ctx, metaPath, meta)
}

// Fetch downloads the batch output file to meta.OutputPath.
func (p *Pipeline) Fetch(ctx context.Context, meta *BatchMeta) error {
	if meta.OutputFileID == "" {
		return fmt.Errorf("batch %d: no output file id recorded", meta.Idx)
	}
	p.Logger.Info("downloading batch output", "batch", meta.Idx, "file_id", meta.OutputFileID)
	out, err := os.Create(meta.OutputPath)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer out.Close()
	if err := p.Client.DownloadFile(ctx, meta.OutputFileID, out); err != nil {
		return fmt.Errorf("download batch output: %w", err)
	}
	return nil
}

// Ingest creates a run row and replays the downloaded output into the
// store, then records the report in the meta file.
func (p *Pipeline) Ingest(ctx context.Context, metaPath string, meta *BatchMeta) error {
	run, err := p.Store.CreateRun(ctx, ProviderGemini, meta.Model)
	if err != nil {
		return err
	}
	report, err := IngestOutput(ctx, p.Store, p.Logger, meta.OutputPath, meta.MapFile, ProviderGemini, meta.Model, run.ID)
	if err != nil {
		return err
	}
	meta.IngestReport = &report
	return WriteMeta(metaPath, *meta)
}

// ResolveOutput refreshes a resumed meta that predates the output file id by
// asking the API for the batch's current state.
func (p *Pipeline) ResolveOutput(ctx context.Context, metaPath string, meta *BatchMeta) error {
	if meta.OutputFileID != "" {
		return nil
	}
	op, err := p.Client.GetBatch(ctx, meta.BatchName)
	if err != nil {
		return fmt.Errorf("get batch %s: %w", meta.BatchName, err)
	}
	meta.State = op.State()
	if ref := op.ResolveBatch().ResponsesFile(); ref != "" {
		meta.OutputFileID = ref
		if meta.OutputPath == "" {
			meta.OutputPath = filepath.Join(filepath.Dir(metaPath), fmt.Sprintf("output_%03d.jsonl", meta.Idx))
		}
		return WriteMeta(metaPath, *meta)
	}
	return fmt.Errorf("batch %d: no output file available (state=%s)", meta.Idx, meta.State)
}
