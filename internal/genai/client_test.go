package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient("test-key",
		WithBaseURL(srv.URL),
		WithUploadURL(srv.URL+"/upload/files"),
		WithHTTPClient(srv.Client()),
	)
	return c, srv
}

func TestGenerateWalksConfigLadder(t *testing.T) {
	var bodies []GenerateRequest
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req GenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		bodies = append(bodies, req)
		if req.GenerationConfig != nil && req.GenerationConfig.ThinkingConfig != nil {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":{"message":"Invalid JSON payload received. Unknown name \"thinkingConfig\""}}`)
			return
		}
		fmt.Fprint(w, `{"candidates":[{"content":{"parts":[{"text":"{}"}]},"finishReason":"STOP"}]}`)
	}))

	resp, err := c.Generate(context.Background(), "gemini-2.5-flash", []Content{{Parts: []Part{{Text: "hi"}}}})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(resp.Candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(resp.Candidates))
	}
	if len(bodies) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(bodies))
	}
	if bodies[1].GenerationConfig == nil || bodies[1].GenerationConfig.ThinkingConfig != nil {
		t.Fatalf("second attempt should drop thinkingConfig only, got %+v", bodies[1].GenerationConfig)
	}
}

func TestGenerateStopsOnHardError(t *testing.T) {
	attempts := 0
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":{"message":"permission denied"}}`)
	}))

	_, err := c.Generate(context.Background(), "gemini-2.5-flash", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Fatalf("expected a single attempt, got %d", attempts)
	}
	if !strings.Contains(err.Error(), "Gemini HTTP 403") {
		t.Fatalf("unexpected error message: %v", err)
	}
}

func TestUploadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "input_000.jsonl")
	payload := []byte(`{"key":"a"}` + "\n")
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		t.Fatal(err)
	}

	var mux http.ServeMux
	var uploaded []byte
	mux.HandleFunc("/upload/files", func(w http.ResponseWriter, r *http.Request) {
		switch r.Header.Get("X-Goog-Upload-Command") {
		case "start":
			if got := r.Header.Get("X-Goog-Upload-Protocol"); got != "resumable" {
				t.Errorf("upload protocol = %q", got)
			}
			w.Header().Set("X-Goog-Upload-URL", "http://"+r.Host+"/upload/files?session=1")
			fmt.Fprint(w, `{}`)
		case "upload, finalize":
			var err error
			uploaded, err = io.ReadAll(r.Body)
			if err != nil {
				t.Fatal(err)
			}
			fmt.Fprint(w, `{"file":{"name":"files/abc123","state":"ACTIVE"}}`)
		default:
			t.Errorf("unexpected upload command %q", r.Header.Get("X-Goog-Upload-Command"))
		}
	})

	c, _ := testClient(t, &mux)
	info, err := c.UploadFile(context.Background(), path, "input_000.jsonl", "application/jsonl")
	if err != nil {
		t.Fatalf("UploadFile: %v", err)
	}
	if info.Name != "files/abc123" {
		t.Fatalf("file name = %q", info.Name)
	}
	if !bytes.Equal(uploaded, payload) {
		t.Fatalf("uploaded body = %q", uploaded)
	}
}

func TestCreateBatchResolvesNestedName(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "models/gemini-2.5-flash:batchGenerateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req batchCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.Batch.InputConfig.FileName != "files/abc123" {
			t.Errorf("input file = %q", req.Batch.InputConfig.FileName)
		}
		fmt.Fprint(w, `{"response":{"name":"batches/job-1","state":"BATCH_STATE_PENDING"}}`)
	}))

	name, err := c.CreateBatch(context.Background(), "gemini-2.5-flash", "inspirations batch 0", "files/abc123")
	if err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}
	if name != "batches/job-1" {
		t.Fatalf("job name = %q", name)
	}
}

func TestWaitForBatchPollsUntilTerminal(t *testing.T) {
	polls := 0
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		polls++
		switch polls {
		case 1:
			w.WriteHeader(http.StatusBadGateway)
		case 2:
			fmt.Fprint(w, `{"name":"batches/job-1","metadata":{"state":"BATCH_STATE_RUNNING"}}`)
		default:
			fmt.Fprint(w, `{"name":"batches/job-1","done":true,"response":{"state":"SUCCEEDED","output":{"responsesFile":"files/out-1"}}}`)
		}
	}))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	op, err := c.WaitForBatch(context.Background(), logger, "batches/job-1", time.Millisecond, 0)
	if err != nil {
		t.Fatalf("WaitForBatch: %v", err)
	}
	if !op.IsTerminal() {
		t.Fatal("expected terminal operation")
	}
	if got := op.ResolveBatch().ResponsesFile(); got != "files/out-1" {
		t.Fatalf("responses file = %q", got)
	}
	if polls != 3 {
		t.Fatalf("polls = %d", polls)
	}
}

func TestWaitForBatchMaxWaitReturnsLastState(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"name":"batches/job-1","metadata":{"state":"BATCH_STATE_RUNNING"}}`)
	}))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	op, err := c.WaitForBatch(context.Background(), logger, "batches/job-1", time.Millisecond, 5*time.Millisecond)
	if err != nil {
		t.Fatalf("WaitForBatch: %v", err)
	}
	if op == nil || op.IsTerminal() {
		t.Fatalf("expected in-flight operation, got %+v", op)
	}
	if op.State() != "BATCH_STATE_RUNNING" {
		t.Fatalf("state = %q", op.State())
	}
}

func TestDownloadFileFallsBackToMediaEndpoint(t *testing.T) {
	var mux http.ServeMux
	mux.HandleFunc("/files/out-1", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"Invalid value at 'GetFileRequest.name'","status":"INVALID_ARGUMENT"}}`)
	})
	mux.HandleFunc("/files/out-1:download", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("alt") != "media" {
			t.Errorf("alt = %q", r.URL.Query().Get("alt"))
		}
		fmt.Fprint(w, "line-1\nline-2\n")
	})

	c, _ := testClient(t, &mux)
	var buf bytes.Buffer
	if err := c.DownloadFile(context.Background(), "files/out-1", &buf); err != nil {
		t.Fatalf("DownloadFile: %v", err)
	}
	if buf.String() != "line-1\nline-2\n" {
		t.Fatalf("downloaded = %q", buf.String())
	}
}

func TestDownloadFilePrefersDownloadURI(t *testing.T) {
	var mux http.ServeMux
	var host string
	mux.HandleFunc("/files/out-2", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"name":"files/out-2","downloadUri":"http://%s/media/out-2"}`, host)
	})
	mux.HandleFunc("/media/out-2", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "payload")
	})

	c, srv := testClient(t, &mux)
	host = strings.TrimPrefix(srv.URL, "http://")

	var buf bytes.Buffer
	if err := c.DownloadFile(context.Background(), "files/out-2", &buf); err != nil {
		t.Fatalf("DownloadFile: %v", err)
	}
	if buf.String() != "payload" {
		t.Fatalf("downloaded = %q", buf.String())
	}
}

func TestOperationEnvelopeVariants(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		state     string
		terminal  bool
		responses string
	}{
		{
			name:      "response with camelCase output",
			body:      `{"name":"batches/a","done":true,"response":{"state":"SUCCEEDED","outputConfig":{"fileName":"files/x"}}}`,
			state:     "SUCCEEDED",
			terminal:  true,
			responses: "files/x",
		},
		{
			name:      "metadata with snake_case output",
			body:      `{"name":"batches/b","metadata":{"state":"FAILED","output_config":{"file_name":"files/y"}}}`,
			state:     "FAILED",
			terminal:  true,
			responses: "files/y",
		},
		{
			name:      "batch nested under response",
			body:      `{"name":"batches/c","response":{"batch":{"state":"CANCELLED","output":{"responses_file":"files/z"}}}}`,
			state:     "CANCELLED",
			terminal:  true,
			responses: "files/z",
		},
		{
			name:     "running with stats only",
			body:     `{"name":"batches/d","metadata":{"batchStats":{"requestCount":60}}}`,
			state:    "",
			terminal: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var op Operation
			if err := json.Unmarshal([]byte(tt.body), &op); err != nil {
				t.Fatal(err)
			}
			if got := op.State(); got != tt.state {
				t.Errorf("State() = %q, want %q", got, tt.state)
			}
			if got := op.IsTerminal(); got != tt.terminal {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.terminal)
			}
			if got := op.ResolveBatch().ResponsesFile(); got != tt.responses {
				t.Errorf("ResponsesFile() = %q, want %q", got, tt.responses)
			}
		})
	}
}
