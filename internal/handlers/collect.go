package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/DNABoe/jetmonitor/internal/pipeline"
)

// CollectHandler exposes the collection pipeline's trigger surface.
type CollectHandler struct {
	Pipeline *pipeline.Orchestrator
}

type collectRequest struct {
	Country     string   `json:"country"`
	Competitors []string `json:"competitors"`
	StartDate   string   `json:"startDate"`
	EndDate     string   `json:"endDate"`
}

func (req collectRequest) toPipeline() (pipeline.CollectRequest, error) {
	out := pipeline.CollectRequest{
		Country:     req.Country,
		Competitors: req.Competitors,
	}
	if req.StartDate != "" {
		start, err := time.Parse("2006-01-02", req.StartDate)
		if err != nil {
			return out, fmt.Errorf("invalid startDate: %s", req.StartDate)
		}
		out.StartDate = start
	}
	if req.EndDate != "" {
		end, err := time.Parse("2006-01-02", req.EndDate)
		if err != nil {
			return out, fmt.Errorf("invalid endDate: %s", req.EndDate)
		}
		// Include the whole end day.
		out.EndDate = end.Add(24*time.Hour - time.Second)
	}
	return out, nil
}

// writePipelineError maps pipeline precondition failures to HTTP statuses.
func writePipelineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pipeline.ErrNoBaseline):
		writeError(w, http.StatusPreconditionFailed, "no completed baseline set; select a tracking window first")
	case errors.Is(err, pipeline.ErrClassifierNotConfigured):
		writeError(w, http.StatusServiceUnavailable, "classification service not configured")
	default:
		slog.Error("collection run failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// Collect handles POST /api/collect.
// Runs the full pipeline for one country and returns aggregate counts.
func (h *CollectHandler) Collect(w http.ResponseWriter, r *http.Request) {
	var req collectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Country == "" {
		writeError(w, http.StatusBadRequest, "country required")
		return
	}

	pReq, err := req.toPipeline()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := h.Pipeline.Collect(r.Context(), pReq)
	if err != nil {
		writePipelineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"articlesFound":  summary.ItemsFound,
		"articlesStored": summary.ItemsStored,
		"errors":         summary.Errors(),
	})
}

// ScrapeFeeds handles POST /api/scrape-feeds.
// Fetches every enabled source with no window bound.
func (h *CollectHandler) ScrapeFeeds(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Pipeline.ScrapeFeeds(r.Context())
	if err != nil {
		writePipelineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"totalItemsScraped": summary.ItemsStored,
		"sourcesProcessed":  summary.SourcesProcessed,
		"results":           summary.Results,
	})
}

// ProcessPending handles POST /api/process-pending.
// Classifies stored items that still lack sentiment/tags.
func (h *CollectHandler) ProcessPending(w http.ResponseWriter, r *http.Request) {
	processed, err := h.Pipeline.ProcessPending(r.Context())
	if err != nil {
		writePipelineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"processedCount": processed})
}

type cleanRecollectRequest struct {
	collectRequest
	Confirm bool `json:"confirm"`
}

// CleanAndRecollect handles POST /api/clean-recollect.
// Destructive: wipes collected data for a country and re-runs collection.
// Requires {confirm: true} on top of the admin role check.
func (h *CollectHandler) CleanAndRecollect(w http.ResponseWriter, r *http.Request) {
	var req cleanRecollectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Confirm {
		writeError(w, http.StatusBadRequest, "confirmation required for destructive reset")
		return
	}
	if req.Country == "" {
		writeError(w, http.StatusBadRequest, "country required")
		return
	}

	pReq, err := req.toPipeline()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := h.Pipeline.CleanAndRecollect(r.Context(), pReq)
	if err != nil {
		writePipelineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("data cleared and recollected: %d items stored", summary.ItemsStored),
	})
}
