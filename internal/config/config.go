// Package config loads runtime configuration from the environment with an
// optional YAML overlay file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default model names for the Gemini provider.
const (
	DefaultModel          = "gemini-2.5-flash"
	DefaultFallbackModel  = "gemini-2.0-flash"
	DefaultEmbeddingModel = "gemini-embedding-001"
)

// Config holds all configuration values.
type Config struct {
	// Postgres connection
	DatabaseURL string `yaml:"database_url"`

	// Gemini API
	GeminiAPIKey   string `yaml:"gemini_api_key"`
	Model          string `yaml:"model"`
	FallbackModel  string `yaml:"fallback_model"`
	EmbeddingModel string `yaml:"embedding_model"`
	EmbedBackend   string `yaml:"embed_backend"` // "gemini" or "langchain"

	// Tagging defaults
	Source    string `yaml:"source"`
	ImageKind string `yaml:"image_kind"` // "thumb" or "original"

	// Batch pipeline
	BatchOutDir   string        `yaml:"batch_out_dir"`
	BatchMaxBytes int64         `yaml:"batch_max_bytes"`
	PollInterval  time.Duration `yaml:"poll_interval"`
	MaxWait       time.Duration `yaml:"max_wait"`

	// Interactive runner
	TagBatchSize   int           `yaml:"tag_batch_size"`
	TagWorkers     int           `yaml:"tag_workers"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	BatchDeadline  time.Duration `yaml:"batch_deadline"`

	// HTTP server
	ServerAddr string `yaml:"server_addr"`

	// Logging
	LogFile  string     `yaml:"log_file"`
	LogLevel slog.Level `yaml:"-"`
}

// Load reads configuration from environment variables, then applies the
// YAML file named by INSPIRATIONS_CONFIG on top if it exists.
func Load() (Config, error) {
	cfg := Config{
		DatabaseURL: getEnv("DATABASE_URL", "postgres://localhost/inspirations?sslmode=disable"),

		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		Model:          getEnv("MODEL", DefaultModel),
		FallbackModel:  getEnv("GEMINI_RECITATION_FALLBACK_MODEL", DefaultFallbackModel),
		EmbeddingModel: getEnv("GEMINI_EMBEDDING_MODEL", DefaultEmbeddingModel),
		EmbedBackend:   getEnv("EMBED_BACKEND", "gemini"),

		Source:    getEnv("SOURCE", "pinterest"),
		ImageKind: getEnv("IMAGE_KIND", "thumb"),

		BatchOutDir:   getEnv("BATCH_OUT_DIR", "data/batch_jobs"),
		BatchMaxBytes: getEnvInt64("BATCH_MAX_BYTES", 1_500_000_000),
		PollInterval:  getEnvDuration("BATCH_POLL_INTERVAL", 30*time.Second),
		MaxWait:       getEnvDuration("BATCH_MAX_WAIT", 0),

		TagBatchSize:   getEnvInt("TAG_BATCH_SIZE", 60),
		TagWorkers:     getEnvInt("TAG_WORKERS", 4),
		RequestTimeout: getEnvDuration("REQ_TIMEOUT", 60*time.Second),
		BatchDeadline:  getEnvDuration("BATCH_TIMEOUT", 240*time.Second),

		ServerAddr: getEnv("INSPIRATIONS_ADDR", ":8787"),

		LogFile:  getEnv("INSPIRATIONS_LOG_FILE", "/tmp/inspirations.log"),
		LogLevel: parseLogLevel(getEnv("INSPIRATIONS_LOG_LEVEL", "INFO")),
	}

	if path := os.Getenv("INSPIRATIONS_CONFIG"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return cfg, fmt.Errorf("load config file %s: %w", path, err)
		}
	}
	return cfg, nil
}

// applyFile overlays values from a YAML file. Zero values in the file leave
// the corresponding environment-derived value untouched.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var overlay Config
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	merge(&c.DatabaseURL, overlay.DatabaseURL)
	merge(&c.GeminiAPIKey, overlay.GeminiAPIKey)
	merge(&c.Model, overlay.Model)
	merge(&c.FallbackModel, overlay.FallbackModel)
	merge(&c.EmbeddingModel, overlay.EmbeddingModel)
	merge(&c.EmbedBackend, overlay.EmbedBackend)
	merge(&c.Source, overlay.Source)
	merge(&c.ImageKind, overlay.ImageKind)
	merge(&c.BatchOutDir, overlay.BatchOutDir)
	merge(&c.ServerAddr, overlay.ServerAddr)
	merge(&c.LogFile, overlay.LogFile)
	if overlay.BatchMaxBytes > 0 {
		c.BatchMaxBytes = overlay.BatchMaxBytes
	}
	if overlay.PollInterval > 0 {
		c.PollInterval = overlay.PollInterval
	}
	if overlay.MaxWait > 0 {
		c.MaxWait = overlay.MaxWait
	}
	if overlay.TagBatchSize > 0 {
		c.TagBatchSize = overlay.TagBatchSize
	}
	if overlay.TagWorkers > 0 {
		c.TagWorkers = overlay.TagWorkers
	}
	if overlay.RequestTimeout > 0 {
		c.RequestTimeout = overlay.RequestTimeout
	}
	if overlay.BatchDeadline > 0 {
		c.BatchDeadline = overlay.BatchDeadline
	}
	return nil
}

func merge(dst *string, val string) {
	if val != "" {
		*dst = val
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvInt64(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			return n
		}
	}
	return defaultVal
}

// getEnvDuration accepts Go duration strings ("30s") and bare second counts
// ("30") for compatibility with older env files.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if n, err := strconv.Atoi(val); err == nil {
		return time.Duration(n) * time.Second
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
