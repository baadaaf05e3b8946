package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"sectorindex/internal/contracts"
	"sectorindex/internal/publish"
	"sectorindex/pkg/logger"
)

// DailySummaryReader reads EOD rows for a calendar day.
type DailySummaryReader interface {
	DailySummaries(ctx context.Context, day time.Time) ([]contracts.DailyIndexSummary, error)
}

// IndexHandler serves computed index data to dashboards.
type IndexHandler struct {
	latest    *publish.LatestStore
	history   contracts.IndexRepository
	summaries DailySummaryReader
	logger    *logger.Logger
}

// NewIndexHandler creates the handler.
func NewIndexHandler(latest *publish.LatestStore, history contracts.IndexRepository, summaries DailySummaryReader, log *logger.Logger) *IndexHandler {
	return &IndexHandler{
		latest:    latest,
		history:   history,
		summaries: summaries,
		logger:    log,
	}
}

// GetLatest returns the most recently computed sector index mapping.
func (h *IndexHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	values, updatedAt := h.latest.Get()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"updated_at": updatedAt,
		"indices":    values,
	})
}

// GetHistory returns a sector's tick series for a time range
// (?from=RFC3339&to=RFC3339, defaulting to the current day).
func (h *IndexHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	sector := mux.Vars(r)["sector"]

	now := time.Now()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	to := from.AddDate(0, 0, 1)

	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from timestamp")
			return
		}
		from = t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid to timestamp")
			return
		}
		to = t
	}

	values, err := h.history.History(r.Context(), sector, from, to)
	if err != nil {
		h.logger.WithError(err).Error("Failed to query index history")
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sector": sector,
		"from":   from,
		"to":     to,
		"values": values,
	})
}

// GetDailySummaries returns the EOD rows for a day (?date=YYYY-MM-DD,
// defaulting to today).
func (h *IndexHandler) GetDailySummaries(w http.ResponseWriter, r *http.Request) {
	day := time.Now()
	if v := r.URL.Query().Get("date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
			return
		}
		day = t
	}

	summaries, err := h.summaries.DailySummaries(r.Context(), day)
	if err != nil {
		h.logger.WithError(err).Error("Failed to query daily summaries")
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"date":      day.Format("2006-01-02"),
		"summaries": summaries,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
