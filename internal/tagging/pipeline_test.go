package tagging

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/minime/inspirations/internal/genai"
	"github.com/minime/inspirations/internal/models"
)

func TestMetaRoundTrip(t *testing.T) {
	dir := t.TempDir()
	first := BatchMeta{
		Idx:          1,
		BatchName:    "batches/job-1",
		RequestCount: 12,
		Model:        "gemini-2.5-flash",
		CreatedAt:    time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
	}
	second := BatchMeta{Idx: 2, BatchName: "batches/job-2"}

	// Written out of order; LoadMetas must come back sorted by index.
	if err := WriteMeta(MetaPath(dir, 2), second); err != nil {
		t.Fatal(err)
	}
	if err := WriteMeta(MetaPath(dir, 1), first); err != nil {
		t.Fatal(err)
	}

	metas, err := LoadMetas(dir)
	if err != nil {
		t.Fatalf("LoadMetas: %v", err)
	}
	if len(metas) != 2 {
		t.Fatalf("metas = %d", len(metas))
	}
	if metas[0].BatchName != "batches/job-1" || metas[1].BatchName != "batches/job-2" {
		t.Fatalf("order = %q, %q", metas[0].BatchName, metas[1].BatchName)
	}
	if metas[0].RequestCount != 12 || !metas[0].CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("round trip = %+v", metas[0])
	}
}

// batchAPI fakes the remote endpoints one pipeline run touches: resumable
// upload, batch create, batch poll, and output download.
func batchAPI(t *testing.T, outputLines []string) http.Handler {
	t.Helper()
	var mux http.ServeMux
	mux.HandleFunc("/upload/files", func(w http.ResponseWriter, r *http.Request) {
		switch r.Header.Get("X-Goog-Upload-Command") {
		case "start":
			w.Header().Set("X-Goog-Upload-URL", "http://"+r.Host+"/upload/files?session=1")
			fmt.Fprint(w, `{}`)
		default:
			fmt.Fprint(w, `{"file":{"name":"files/in-1","state":"ACTIVE"}}`)
		}
	})
	mux.HandleFunc("/models/", func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, ":batchGenerateContent") {
			t.Errorf("unexpected model call %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"name":"batches/job-1","metadata":{"state":"BATCH_STATE_PENDING"}}`)
	})
	mux.HandleFunc("/batches/job-1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"name":"batches/job-1","done":true,"response":{"state":"SUCCEEDED","output":{"responsesFile":"files/out-1"}}}`)
	})
	mux.HandleFunc("/files/out-1", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"Invalid value","status":"INVALID_ARGUMENT"}}`)
	})
	mux.HandleFunc("/files/out-1:download", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, strings.Join(outputLines, "\n")+"\n")
	})
	return &mux
}

func pipelineFixture(t *testing.T, store Store, handler http.Handler, outDir string) *Pipeline {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := genai.NewClient("test-key",
		genai.WithBaseURL(srv.URL),
		genai.WithUploadURL(srv.URL+"/upload/files"),
		genai.WithHTTPClient(srv.Client()),
	)
	return &Pipeline{
		Store:  store,
		Client: client,
		Logger: discardLogger(),
		Config: PipelineConfig{
			Source:       "pinterest",
			Model:        "gemini-2.5-flash",
			ImageKind:    ImageKindThumb,
			Prompt:       "p",
			OutDir:       outDir,
			PollInterval: time.Millisecond,
		},
	}
}

func TestPipelineRunSubmitsWatchesAndIngests(t *testing.T) {
	imgDir := t.TempDir()
	store := newMemStore(
		models.Candidate{AssetID: assetA, ThumbPath: writeTempImage(t, imgDir, "a.jpg")},
	)
	output := []string{
		`{"key":"` + assetA + `","response":{"candidates":[{"content":{"parts":[{"text":"{\"summary\":\"sunlit loft\",\"rooms\":[\"kitchen\"]}"}]},"finishReason":"STOP"}]}}`,
	}

	p := pipelineFixture(t, store, batchAPI(t, output), t.TempDir())
	metas, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(metas) != 1 {
		t.Fatalf("metas = %d", len(metas))
	}

	meta := metas[0]
	if meta.BatchName != "batches/job-1" || meta.InputFileID != "files/in-1" {
		t.Fatalf("meta = %+v", meta)
	}
	if meta.State != "SUCCEEDED" || meta.OutputFileID != "files/out-1" {
		t.Fatalf("meta after watch = %+v", meta)
	}
	if meta.IngestReport == nil || meta.IngestReport.Labeled != 1 || meta.IngestReport.ErrorCount != 0 {
		t.Fatalf("ingest report = %+v", meta.IngestReport)
	}
	if store.summaries[assetA] != "sunlit loft" {
		t.Errorf("summary = %q", store.summaries[assetA])
	}
	if got := store.labelsFor(assetA); len(got) != 1 || got[0] != "kitchen" {
		t.Errorf("labels = %v", got)
	}

	// The sidecar on disk carries the final state too.
	runDirs, err := filepath.Glob(filepath.Join(p.Config.OutDir, "batch_*"))
	if err != nil || len(runDirs) != 1 {
		t.Fatalf("run dirs = %v, %v", runDirs, err)
	}
	persisted, err := LoadMeta(MetaPath(runDirs[0], meta.Idx))
	if err != nil {
		t.Fatalf("LoadMeta: %v", err)
	}
	if persisted.State != "SUCCEEDED" || persisted.IngestReport == nil || persisted.IngestReport.Labeled != 1 {
		t.Fatalf("persisted = %+v", persisted)
	}
}

func TestPipelineSubmitSkipsMissingImages(t *testing.T) {
	store := newMemStore(
		models.Candidate{AssetID: assetA},
	)
	p := pipelineFixture(t, store, batchAPI(t, nil), t.TempDir())

	dir, err := p.NewRunDir()
	if err != nil {
		t.Fatal(err)
	}
	metas, err := p.Submit(context.Background(), dir)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(metas) != 0 {
		t.Fatalf("metas = %+v", metas)
	}
}

func TestWatchAndIngestFailedBatchWritesEmptyReport(t *testing.T) {
	var mux http.ServeMux
	mux.HandleFunc("/batches/job-9", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"name":"batches/job-9","done":true,"response":{"state":"FAILED"}}`)
	})

	store := newMemStore()
	p := pipelineFixture(t, store, &mux, t.TempDir())
	dir := t.TempDir()
	meta := BatchMeta{Idx: 1, BatchName: "batches/job-9"}

	if err := p.WatchAndIngest(context.Background(), dir, &meta); err != nil {
		t.Fatalf("WatchAndIngest: %v", err)
	}
	if meta.State != genai.StateFailed {
		t.Fatalf("state = %q", meta.State)
	}
	if meta.IngestReport == nil || meta.IngestReport.Labeled != 0 {
		t.Fatalf("report = %+v", meta.IngestReport)
	}

	persisted, err := LoadMeta(MetaPath(dir, 1))
	if err != nil {
		t.Fatalf("LoadMeta: %v", err)
	}
	if persisted.State != genai.StateFailed || persisted.IngestReport == nil {
		t.Fatalf("persisted = %+v", persisted)
	}
}
