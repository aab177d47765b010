package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/DNABoe/jetmonitor/internal/models"
)

var validSourceTypes = []string{"news", "government", "defense", "social", "comment"}

// SourcesHandler groups source registry HTTP handlers. Mutations are
// admin-gated in the router; sources are never hard-deleted, only disabled.
type SourcesHandler struct {
	Sources *models.SourceStore
}

// List handles GET /api/sources.
// Returns all sources, or only enabled ones for a country when ?country= is
// set.
func (h *SourcesHandler) List(w http.ResponseWriter, r *http.Request) {
	var (
		sources []models.Source
		err     error
	)
	if country := r.URL.Query().Get("country"); country != "" {
		sources, err = h.Sources.ListEnabled(r.Context(), country)
	} else {
		sources, err = h.Sources.ListAll(r.Context())
	}
	if err != nil {
		slog.Error("list sources", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if sources == nil {
		sources = []models.Source{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sources": sources, "count": len(sources)})
}

type sourceRequest struct {
	Name        string `json:"name"`
	BaseURL     string `json:"base_url"`
	FeedURL     string `json:"feed_url"`
	Type        string `json:"type"`
	Country     string `json:"country"`
	Credibility int    `json:"credibility"`
}

func (req sourceRequest) validate() string {
	if req.Name == "" || req.BaseURL == "" || req.Country == "" {
		return "name, base_url and country required"
	}
	if !slices.Contains(validSourceTypes, req.Type) {
		return "invalid source type"
	}
	if req.Credibility != 0 && (req.Credibility < 1 || req.Credibility > 5) {
		return "credibility must be between 1 and 5"
	}
	return ""
}

// Create handles POST /api/sources.
func (h *SourcesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req sourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	source := &models.Source{
		Name:        req.Name,
		BaseURL:     req.BaseURL,
		FeedURL:     req.FeedURL,
		Type:        req.Type,
		Country:     req.Country,
		Credibility: req.Credibility,
		Enabled:     true,
	}
	if err := h.Sources.Create(r.Context(), source); err != nil {
		slog.Error("create source", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, source)
}

// Update handles PUT /api/sources/{id}.
func (h *SourcesHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid source id")
		return
	}

	var req sourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	source := &models.Source{
		ID:      id,
		Name:    req.Name,
		BaseURL: req.BaseURL,
		FeedURL: req.FeedURL,
		Type:    req.Type,
		Country: req.Country,
	}
	if err := h.Sources.Update(r.Context(), source); err != nil {
		writeError(w, http.StatusNotFound, "source not found")
		return
	}
	if req.Credibility != 0 {
		if err := h.Sources.SetCredibility(r.Context(), id, req.Credibility); err != nil {
			slog.Error("set credibility", "err", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// SetEnabled handles PATCH /api/sources/{id}/enabled.
func (h *SourcesHandler) SetEnabled(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid source id")
		return
	}

	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.Sources.SetEnabled(r.Context(), id, req.Enabled); err != nil {
		writeError(w, http.StatusNotFound, "source not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "enabled": req.Enabled})
}
