package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/minime/inspirations/internal/db"
	"github.com/minime/inspirations/internal/embedding"
	"github.com/minime/inspirations/internal/models"
	"github.com/minime/inspirations/internal/tagging"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func queryInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.HealthCheck(r.Context()); err != nil {
		s.logger.Error("health check failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type assetListResponse struct {
	Assets []models.Asset `json:"assets"`
	Count  int            `json:"count"`
}

func (s *Server) handleListAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := s.store.ListAssets(r.Context(),
		r.URL.Query().Get("source"), queryInt(r, "limit"), queryInt(r, "offset"))
	if err != nil {
		s.logger.Error("list assets failed", "error", err)
		writeError(w, http.StatusInternalServerError, "list assets failed")
		return
	}
	if assets == nil {
		assets = []models.Asset{}
	}
	writeJSON(w, http.StatusOK, assetListResponse{Assets: assets, Count: len(assets)})
}

type assetDetailResponse struct {
	Asset  models.Asset   `json:"asset"`
	Labels []models.Label `json:"labels"`
}

func (s *Server) handleGetAsset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	asset, err := s.store.GetAsset(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "asset not found")
		return
	}
	if err != nil {
		s.logger.Error("get asset failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "get asset failed")
		return
	}
	labels, err := s.store.ListAssetLabels(r.Context(), id)
	if err != nil {
		s.logger.Error("list labels failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "list labels failed")
		return
	}
	if labels == nil {
		labels = []models.Label{}
	}
	writeJSON(w, http.StatusOK, assetDetailResponse{Asset: asset, Labels: labels})
}

func (s *Server) handleTriage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	report, err := tagging.Triage(r.Context(), s.tagStore, tagging.TriageOptions{
		Source:   q.Get("source"),
		Provider: q.Get("provider"),
		Model:    q.Get("model"),
		Days:     queryInt(r, "days"),
		Limit:    queryInt(r, "limit"),
	})
	if err != nil {
		s.logger.Error("triage failed", "error", err)
		writeError(w, http.StatusInternalServerError, "triage failed")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.searcher == nil {
		writeError(w, http.StatusServiceUnavailable, "search is not configured")
		return
	}
	q := r.URL.Query()
	query := q.Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	report, err := s.searcher.Search(r.Context(), embedding.SearchOptions{
		Query:  query,
		Source: q.Get("source"),
		Limit:  queryInt(r, "limit"),
	})
	if err != nil {
		s.logger.Error("search failed", "error", err)
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	writeJSON(w, http.StatusOK, report)
}
