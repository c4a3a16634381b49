// Package server exposes the asset library over a small read-only HTTP API.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/minime/inspirations/internal/embedding"
	"github.com/minime/inspirations/internal/models"
	"github.com/minime/inspirations/internal/tagging"
)

// Store is the asset read surface the server needs. *db.DB satisfies it.
type Store interface {
	HealthCheck(ctx context.Context) error
	ListAssets(ctx context.Context, source string, limit, offset int) ([]models.Asset, error)
	GetAsset(ctx context.Context, id string) (models.Asset, error)
	ListAssetLabels(ctx context.Context, assetID string) ([]models.Label, error)
}

// Searcher runs similarity searches. Nil when no embedder is configured.
type Searcher interface {
	Search(ctx context.Context, opts embedding.SearchOptions) (embedding.SearchReport, error)
}

// Server serves assets, labels, triage reports, and similarity search.
type Server struct {
	store    Store
	tagStore tagging.Store
	searcher Searcher
	logger   *slog.Logger
	addr     string
}

// New wires a server. searcher may be nil; /api/search then reports 503.
func New(addr string, store Store, tagStore tagging.Store, searcher Searcher, logger *slog.Logger) *Server {
	return &Server{
		store:    store,
		tagStore: tagStore,
		searcher: searcher,
		logger:   logger,
		addr:     addr,
	}
}

// Handler builds the route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.CleanPath)
	r.Use(chimw.StripSlashes)
	r.Use(chimw.RequestID)
	r.Use(requestLogger(s.logger))

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/assets", s.handleListAssets)
		r.Get("/assets/{id}", s.handleGetAsset)
		r.Get("/triage", s.handleTriage)
		r.Get("/search", s.handleSearch)
	})
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
