package tagging

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/minime/inspirations/internal/genai"
	"github.com/minime/inspirations/internal/models"
)

// Generator is the single-item generation surface the runner needs.
// *genai.Client satisfies it; tests plug in fakes.
type Generator interface {
	Generate(ctx context.Context, model string, contents []genai.Content) (*genai.GenerateResponse, error)
}

// RunnerConfig tunes the interactive tagging loop.
type RunnerConfig struct {
	Source         string
	Model          string
	FallbackModel  string
	ImageKind      ImageKind
	Prompt         string
	BatchSize      int
	Workers        int
	RequestTimeout time.Duration
	BatchDeadline  time.Duration
}

// Snapshot is a point-in-time view of runner progress for the UI.
type Snapshot struct {
	Batch           int
	Attempted       int
	Labeled         int
	FallbackLabeled int
	Errors          int
	Remaining       int
	Rate            float64
	ETA             time.Duration
	Done            bool
}

// Runner pulls unlabeled candidates in batches and tags them with a bounded
// worker pool, writing through the same idempotent writer the batch ingestor
// uses.
type Runner struct {
	Store  Store
	Gen    Generator
	Logger *slog.Logger
	Config RunnerConfig

	mu   sync.Mutex
	snap Snapshot
}

// taggedResult is one successful generation before it is written.
type taggedResult struct {
	assetID   string
	payload   map[string]any
	usedModel string
}

// Snapshot returns the current progress counters.
func (r *Runner) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap
}

func (r *Runner) updateSnapshot(fn func(*Snapshot)) {
	r.mu.Lock()
	fn(&r.snap)
	r.mu.Unlock()
}

// stallLimit is how many consecutive zero-labeled batches stop the run; a
// run that labels nothing three times in a row is burning quota on
// permanently failing candidates.
const stallLimit = 3

// Run executes the tagging loop until no candidates remain, the stall limit
// trips, or the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	cfg := r.Config
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 60
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	fallback := cfg.FallbackModel
	if fallback == cfg.Model {
		fallback = ""
	}

	run, err := r.Store.CreateRun(ctx, ProviderGemini, cfg.Model)
	if err != nil {
		return err
	}
	r.Logger.Info("runner start",
		"run_id", run.ID, "batch_size", cfg.BatchSize, "workers", cfg.Workers,
		"source", cfg.Source, "image_kind", cfg.ImageKind,
		"request_timeout", cfg.RequestTimeout, "batch_deadline", cfg.BatchDeadline,
		"fallback_model", fallback)

	batchNum := 0
	consecutiveZero := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		batchNum++

		rows, err := r.Store.SelectUnlabeled(ctx, cfg.Source, ProviderGemini, cfg.BatchSize)
		if err != nil {
			return fmt.Errorf("fetch batch %d: %w", batchNum, err)
		}
		if len(rows) == 0 {
			r.Logger.Info("runner done: no more candidates")
			break
		}

		batchStart := time.Now()
		results, failures := r.processBatch(ctx, cfg, fallback, rows)

		labeled, fallbackLabeled := 0, 0
		for _, res := range results {
			if _, written, err := WriteSuccess(ctx, r.Store, res.assetID, ProviderGemini, res.usedModel, run.ID, res.payload); err != nil {
				r.Logger.Error("write result failed", "asset_id", res.assetID, "error", err)
			} else if written {
				labeled++
				if res.usedModel != cfg.Model {
					fallbackLabeled++
				}
			}
		}
		for _, f := range failures {
			if err := WriteFailure(ctx, r.Store, ProviderGemini, run.ID, f); err != nil {
				r.Logger.Error("write error row failed", "asset_id", f.AssetID, "error", err)
			}
		}

		elapsed := time.Since(batchStart)
		rate := float64(labeled) / elapsed.Seconds()
		remaining, err := r.Store.CountUnlabeled(ctx, cfg.Source, ProviderGemini)
		if err != nil {
			r.Logger.Warn("remaining count failed", "error", err)
			remaining = -1
		}
		var eta time.Duration
		if rate > 0 && remaining >= 0 {
			eta = time.Duration(float64(remaining)/rate) * time.Second
		}

		r.updateSnapshot(func(s *Snapshot) {
			s.Batch = batchNum
			s.Attempted += len(rows)
			s.Labeled += labeled
			s.FallbackLabeled += fallbackLabeled
			s.Errors += len(failures)
			s.Remaining = remaining
			s.Rate = rate
			s.ETA = eta
		})
		r.Logger.Info("batch complete",
			"batch", batchNum, "attempted", len(rows), "labeled", labeled,
			"fallback_labeled", fallbackLabeled, "errors", len(failures),
			"batch_s", elapsed.Seconds(), "rate_per_s", rate,
			"remaining", remaining, "eta", eta)

		if labeled == 0 {
			consecutiveZero++
		} else {
			consecutiveZero = 0
		}
		if consecutiveZero >= stallLimit {
			r.Logger.Warn("runner stopping: consecutive zero-labeled batches", "count", consecutiveZero)
			break
		}
	}

	r.updateSnapshot(func(s *Snapshot) { s.Done = true })
	snap := r.Snapshot()
	r.Logger.Info("runner finished",
		"run_id", run.ID, "labeled_total", snap.Labeled, "fallback_labeled_total", snap.FallbackLabeled)
	return nil
}

// processBatch runs one candidate batch through the worker pool. The batch
// deadline cancels stragglers; candidates the pool never got to are reported
// as one pending_futures failure (dropped from the store, counted in logs).
func (r *Runner) processBatch(ctx context.Context, cfg RunnerConfig, fallback string, rows []models.Candidate) ([]taggedResult, []Failure) {
	batchCtx := ctx
	cancel := context.CancelFunc(func() {})
	if cfg.BatchDeadline > 0 {
		batchCtx, cancel = context.WithTimeout(ctx, cfg.BatchDeadline)
	}
	defer cancel()

	jobs := make(chan int)
	var mu sync.Mutex
	var results []taggedResult
	var failures []Failure
	completed := 0

	var wg sync.WaitGroup
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				res, failure := r.processOne(batchCtx, cfg, fallback, rows[i])
				mu.Lock()
				completed++
				if failure != nil {
					failures = append(failures, *failure)
				} else {
					results = append(results, res)
				}
				mu.Unlock()
			}
		}()
	}

	start := time.Now()
feed:
	for i := range rows {
		select {
		case jobs <- i:
		case <-batchCtx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if pending := len(rows) - completed; pending > 0 {
		failures = append(failures, Failure{
			AssetID: "pending_futures",
			Message: fmt.Sprintf("cancelled %d pending after %ds", pending, int(time.Since(start).Seconds())),
		})
	}
	return results, failures
}

// processOne tags a single candidate: validate, generate, parse, and retry
// once on the fallback model when the primary hit a RECITATION stop without
// usable JSON.
func (r *Runner) processOne(ctx context.Context, cfg RunnerConfig, fallback string, c models.Candidate) (taggedResult, *Failure) {
	img, failure := ValidateCandidate(c, cfg.ImageKind)
	if failure != nil {
		failure.Model = cfg.Model
		return taggedResult{}, failure
	}
	raw, err := os.ReadFile(img.Path)
	if err != nil {
		return taggedResult{}, &Failure{AssetID: c.AssetID, Message: "No image available for tagging", Raw: img.Path, Model: cfg.Model}
	}

	contents := genai.BuildImageRequest(cfg.Prompt, img.MIMEType, base64.StdEncoding.EncodeToString(raw), nil).Contents

	resp, err := r.generate(ctx, cfg, cfg.Model, contents)
	if err != nil {
		return taggedResult{}, &Failure{AssetID: c.AssetID, Message: err.Error(), Model: cfg.Model}
	}
	usedModel := cfg.Model
	text := ResponseText(resp)
	payload, ok := ExtractJSON(text)

	if !ok && fallback != "" && HasFinishReason(resp, "RECITATION") {
		fbResp, err := r.generate(ctx, cfg, fallback, contents)
		if err != nil {
			return taggedResult{}, &Failure{AssetID: c.AssetID, Message: err.Error(), Model: fallback}
		}
		resp = fbResp
		usedModel = fallback
		text = ResponseText(resp)
		payload, ok = ExtractJSON(text)
	}

	if !ok {
		diag := text
		if diag == "" {
			encoded, _ := json.Marshal(resp)
			diag = string(encoded)
		}
		return taggedResult{}, &Failure{AssetID: c.AssetID, Message: NoJSONMessage(resp), Raw: TruncateRaw(diag), Model: usedModel}
	}
	return taggedResult{assetID: c.AssetID, payload: payload, usedModel: usedModel}, nil
}

func (r *Runner) generate(ctx context.Context, cfg RunnerConfig, model string, contents []genai.Content) (*genai.GenerateResponse, error) {
	if cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.RequestTimeout)
		defer cancel()
	}
	return r.Gen.Generate(ctx, model, contents)
}
