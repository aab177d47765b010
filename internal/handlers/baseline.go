package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/DNABoe/jetmonitor/internal/models"
)

// BaselineHandler groups tracking-window HTTP handlers.
type BaselineHandler struct {
	Baselines *models.BaselineStore
}

type baselineRequest struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// Set handles POST /api/baseline.
// Creates a new baseline row and completes it. A new tracking-date selection
// always creates a new row; rows are never mutated backward.
func (h *BaselineHandler) Set(w http.ResponseWriter, r *http.Request) {
	var req baselineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.StartDate == "" {
		writeError(w, http.StatusBadRequest, "startDate required")
		return
	}

	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid startDate")
		return
	}

	end := time.Now().UTC()
	if req.EndDate != "" {
		end, err = time.Parse("2006-01-02", req.EndDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid endDate")
			return
		}
		end = end.Add(24*time.Hour - time.Second)
	}

	baseline, err := h.Baselines.Create(r.Context(), start, end)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.Baselines.Complete(r.Context(), baseline.ID); err != nil {
		slog.Error("complete baseline", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	baseline.Status = models.BaselineCompleted

	writeJSON(w, http.StatusCreated, baseline)
}

// Current handles GET /api/baseline.
// Returns the most recently created completed baseline, or 404 if none.
func (h *BaselineHandler) Current(w http.ResponseWriter, r *http.Request) {
	baseline, err := h.Baselines.Current(r.Context())
	if err != nil {
		slog.Error("current baseline", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if baseline == nil {
		writeError(w, http.StatusNotFound, "no completed baseline set")
		return
	}
	writeJSON(w, http.StatusOK, baseline)
}
