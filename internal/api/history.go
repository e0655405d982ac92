package api

import (
	"net/http"
	"strconv"
	"time"

	"wandbridge/internal/history"
)

// CastHistoryHandler handles cast history endpoints
type CastHistoryHandler struct {
	store *history.Store
}

// NewCastHistoryHandler creates new cast history handler
func NewCastHistoryHandler(store *history.Store) *CastHistoryHandler {
	return &CastHistoryHandler{store: store}
}

// List returns recent casts
// GET /api/history?limit=50 or ?since=RFC3339 timestamp
func (h *CastHistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"casts": []history.Cast{}})
		return
	}

	// Check for since parameter (casts after a timestamp)
	if sinceStr := r.URL.Query().Get("since"); sinceStr != "" {
		since, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid since timestamp"})
			return
		}
		casts, err := h.store.Since(r.Context(), since)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to query history"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"casts": casts})
		return
	}

	limit := 50 // default
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 500 {
			limit = l
		}
	}

	casts, err := h.store.Recent(r.Context(), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to query history"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"casts": casts})
}

// Stats returns per-spell cast counts
// GET /api/history/stats
func (h *CastHistoryHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"counts": map[string]int{}})
		return
	}

	counts, err := h.store.CountBySpell(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to query history"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"counts": counts})
}
