package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/DNABoe/jetmonitor/internal/models"
)

// ItemsHandler exposes read-only item queries. The pipeline is the sole
// writer of item data; this surface only observes it.
type ItemsHandler struct {
	Items     *models.ItemStore
	Baselines *models.BaselineStore
}

// List handles GET /api/items.
// Returns items for a country within the current baseline window, newest
// first. ?from= and ?to= (YYYY-MM-DD) override the window bounds.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	country := r.URL.Query().Get("country")
	if country == "" {
		writeError(w, http.StatusBadRequest, "country required")
		return
	}

	baseline, err := h.Baselines.Current(r.Context())
	if err != nil {
		slog.Error("current baseline", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if baseline == nil {
		writeError(w, http.StatusPreconditionFailed, "no completed baseline set")
		return
	}

	from, to := baseline.StartDate, baseline.EndDate
	if v := r.URL.Query().Get("from"); v != "" {
		if parsed, err := time.Parse("2006-01-02", v); err == nil {
			from = parsed
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if parsed, err := time.Parse("2006-01-02", v); err == nil {
			to = parsed.Add(24*time.Hour - time.Second)
		}
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	items, err := h.Items.ListWindow(r.Context(), country, from, to, limit, offset)
	if err != nil {
		slog.Error("list items", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if items == nil {
		items = []models.Item{}
	}

	total, err := h.Items.CountByCountry(r.Context(), country)
	if err != nil {
		slog.Error("count items", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"count": len(items),
		"total": total,
	})
}
