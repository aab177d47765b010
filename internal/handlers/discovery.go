package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/DNABoe/jetmonitor/internal/middleware"
	"github.com/DNABoe/jetmonitor/internal/models"
	"github.com/DNABoe/jetmonitor/internal/registry"
)

// DiscoveryHandler exposes AI-assisted outlet discovery.
type DiscoveryHandler struct {
	Discovery    *registry.Discovery
	UserSettings *models.UserSettingsStore
}

type discoverRequest struct {
	Country     string `json:"country"`
	CountryName string `json:"countryName"`
	Save        bool   `json:"save"`
}

// DiscoverOutlets handles POST /api/discover-outlets.
// Asks the discovery collaborator for candidate outlets and optionally
// persists the domains as the caller's prioritized outlet list. Persistence
// only touches that list; other preferences survive.
func (h *DiscoveryHandler) DiscoverOutlets(w http.ResponseWriter, r *http.Request) {
	var req discoverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Country == "" || req.CountryName == "" {
		writeError(w, http.StatusBadRequest, "country and countryName required")
		return
	}

	outlets, err := h.Discovery.DiscoverOutlets(r.Context(), req.Country, req.CountryName)
	if err != nil {
		if errors.Is(err, registry.ErrDiscoveryUnavailable) {
			writeError(w, http.StatusBadGateway, "outlet discovery unavailable")
			return
		}
		slog.Error("outlet discovery failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if req.Save {
		user := middleware.UserFromContext(r.Context())
		if user == nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if err := registry.SaveDiscovered(r.Context(), h.UserSettings, user.ID, outlets); err != nil {
			slog.Error("save discovered outlets", "err", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"outlets": outlets,
		"count":   len(outlets),
	})
}
