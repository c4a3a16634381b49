package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"MODEL", "EMBED_BACKEND", "SOURCE", "IMAGE_KIND", "TAG_BATCH_SIZE", "TAG_WORKERS", "REQ_TIMEOUT", "BATCH_TIMEOUT", "INSPIRATIONS_CONFIG"} {
		t.Setenv(key, "")
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Model != DefaultModel {
		t.Errorf("model = %q", cfg.Model)
	}
	if cfg.EmbedBackend != "gemini" {
		t.Errorf("embed backend = %q", cfg.EmbedBackend)
	}
	if cfg.Source != "pinterest" || cfg.ImageKind != "thumb" {
		t.Errorf("tagging defaults = %q, %q", cfg.Source, cfg.ImageKind)
	}
	if cfg.TagBatchSize != 60 || cfg.TagWorkers != 4 {
		t.Errorf("runner defaults = %d, %d", cfg.TagBatchSize, cfg.TagWorkers)
	}
	if cfg.RequestTimeout != 60*time.Second || cfg.BatchDeadline != 240*time.Second {
		t.Errorf("timeouts = %v, %v", cfg.RequestTimeout, cfg.BatchDeadline)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MODEL", "gemini-2.5-pro")
	t.Setenv("EMBED_BACKEND", "langchain")
	t.Setenv("TAG_WORKERS", "8")
	t.Setenv("REQ_TIMEOUT", "90")
	t.Setenv("BATCH_POLL_INTERVAL", "10s")
	t.Setenv("INSPIRATIONS_LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Model != "gemini-2.5-pro" {
		t.Errorf("model = %q", cfg.Model)
	}
	if cfg.EmbedBackend != "langchain" {
		t.Errorf("embed backend = %q", cfg.EmbedBackend)
	}
	if cfg.TagWorkers != 8 {
		t.Errorf("workers = %d", cfg.TagWorkers)
	}
	// Bare second counts are accepted alongside duration strings.
	if cfg.RequestTimeout != 90*time.Second {
		t.Errorf("request timeout = %v", cfg.RequestTimeout)
	}
	if cfg.PollInterval != 10*time.Second {
		t.Errorf("poll interval = %v", cfg.PollInterval)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("log level = %v", cfg.LogLevel)
	}
}

func TestLoadYAMLOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "model: gemini-2.5-pro\ntag_batch_size: 30\nsource: tumblr\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("INSPIRATIONS_CONFIG", path)
	t.Setenv("TAG_WORKERS", "2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Model != "gemini-2.5-pro" || cfg.TagBatchSize != 30 || cfg.Source != "tumblr" {
		t.Errorf("overlay = %q, %d, %q", cfg.Model, cfg.TagBatchSize, cfg.Source)
	}
	// Values absent from the file keep their env-derived settings.
	if cfg.TagWorkers != 2 {
		t.Errorf("workers = %d", cfg.TagWorkers)
	}
}

func TestLoadBadYAMLFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(":\n-broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("INSPIRATIONS_CONFIG", path)

	if _, err := Load(); err == nil {
		t.Fatal("expected parse error")
	}
}
