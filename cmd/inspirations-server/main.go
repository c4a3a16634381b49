// Package main provides the read-only HTTP API server for inspirations.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/minime/inspirations/internal/config"
	"github.com/minime/inspirations/internal/db"
	"github.com/minime/inspirations/internal/embedding"
	"github.com/minime/inspirations/internal/genai"
	"github.com/minime/inspirations/internal/server"
)

const version = "0.1.0"

// searcher binds the embedding store and embedder into the server's search
// surface.
type searcher struct {
	store    embedding.Store
	embedder embedding.Embedder
}

func (s *searcher) Search(ctx context.Context, opts embedding.SearchOptions) (embedding.SearchReport, error) {
	return embedding.SimilaritySearch(ctx, s.store, s.embedder, opts)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer cleanup()

	logger.Info("inspirations-server starting",
		"version", version,
		"addr", cfg.ServerAddr,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig.String())
		cancel()
	}()

	database, err := db.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := database.InitSchema(ctx); err != nil {
		logger.Error("failed to initialize schema", "error", err)
		os.Exit(1)
	}

	// Search stays disabled without an API key; the rest of the API works.
	var search server.Searcher
	if cfg.GeminiAPIKey != "" {
		var embedder embedding.Embedder
		switch cfg.EmbedBackend {
		case "langchain":
			embedder, err = embedding.NewLangchainEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbeddingModel)
			if err != nil {
				logger.Error("failed to build langchain embedder", "error", err)
				os.Exit(1)
			}
		default:
			client := genai.NewClient(cfg.GeminiAPIKey)
			embedder = embedding.NewGeminiEmbedder(client, cfg.EmbeddingModel)
		}
		search = &searcher{store: database, embedder: embedder}
	} else {
		logger.Warn("GEMINI_API_KEY not set, /api/search disabled")
	}

	srv := server.New(cfg.ServerAddr, database, database, search, logger)
	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
