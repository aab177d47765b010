package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/DNABoe/jetmonitor/internal/middleware"
	"github.com/DNABoe/jetmonitor/internal/models"
)

// SettingsHandler groups global and per-user settings handlers. Per-user
// writes each touch a single preference so unrelated values always survive.
type SettingsHandler struct {
	Settings     *models.SettingsStore
	UserSettings *models.UserSettingsStore
}

// GetGlobal handles GET /api/settings.
func (h *SettingsHandler) GetGlobal(w http.ResponseWriter, r *http.Request) {
	competitors, err := h.Settings.Competitors(r.Context())
	if err != nil {
		slog.Error("get competitors", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	keywords, err := h.Settings.Keywords(r.Context())
	if err != nil {
		slog.Error("get keywords", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"competitors": orEmptyList(competitors),
		"keywords":    orEmptyList(keywords),
	})
}

type globalSettingsRequest struct {
	Competitors *[]string `json:"competitors"`
	Keywords    *[]string `json:"keywords"`
}

// UpdateGlobal handles PUT /api/settings.
// Only the lists present in the body are written.
func (h *SettingsHandler) UpdateGlobal(w http.ResponseWriter, r *http.Request) {
	var req globalSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Competitors != nil {
		if err := h.Settings.SetStrings(r.Context(), models.SettingCompetitors, *req.Competitors); err != nil {
			slog.Error("set competitors", "err", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
	}
	if req.Keywords != nil {
		if err := h.Settings.SetStrings(r.Context(), models.SettingKeywords, *req.Keywords); err != nil {
			slog.Error("set keywords", "err", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// GetUser handles GET /api/settings/me.
func (h *SettingsHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	settings, err := h.UserSettings.Get(r.Context(), user.ID)
	if err != nil {
		slog.Error("get user settings", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

type userSettingsRequest struct {
	ActiveCountry *string   `json:"active_country"`
	Competitors   *[]string `json:"competitors"`
}

// UpdateUser handles PUT /api/settings/me.
// Each present field is written independently; prioritized outlets are only
// ever written through the discovery flow.
func (h *SettingsHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req userSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ActiveCountry != nil {
		if err := h.UserSettings.SetActiveCountry(r.Context(), user.ID, *req.ActiveCountry); err != nil {
			slog.Error("set active country", "err", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
	}
	if req.Competitors != nil {
		if err := h.UserSettings.SetCompetitors(r.Context(), user.ID, *req.Competitors); err != nil {
			slog.Error("set user competitors", "err", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func orEmptyList(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
