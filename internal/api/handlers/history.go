package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/zoumson/OpenFreeAI/internal/domain/history"
)

// HistoryStore reads history and usage; *history.Repository satisfies it.
type HistoryStore interface {
	List(ctx context.Context, q history.Query) ([]history.PromptRecord, error)
	Usage(ctx context.Context) (map[string]int64, error)
	ResetUsage(ctx context.Context, model string) (int, error)
}

// HistoryHandler serves prompt history and model usage.
type HistoryHandler struct {
	store HistoryStore
}

// NewHistoryHandler creates a HistoryHandler.
func NewHistoryHandler(store HistoryStore) *HistoryHandler {
	return &HistoryHandler{store: store}
}

// ResetUsageRequest optionally limits a reset to one model.
type ResetUsageRequest struct {
	ModelName string `json:"model_name,omitempty"`
}

// List handles GET /api/v1/history?limit=&model_name=.
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	q := history.Query{ModelName: r.URL.Query().Get("model_name")}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		q.Limit = limit
	}

	rows, err := h.store.List(r.Context(), q)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": rows})
}

// Usage handles GET /api/v1/usage.
func (h *HistoryHandler) Usage(w http.ResponseWriter, r *http.Request) {
	usage, err := h.store.Usage(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read usage")
		return
	}
	var total int64
	for _, n := range usage {
		total += n
	}
	writeJSON(w, http.StatusOK, map[string]any{"usage": usage, "total": total})
}

// ResetUsage handles POST /api/v1/usage/reset (admin). An empty body resets
// every model.
func (h *HistoryHandler) ResetUsage(w http.ResponseWriter, r *http.Request) {
	var req ResetUsageRequest
	if err := decodeJSON(r, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	n, err := h.store.ResetUsage(r.Context(), req.ModelName)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to reset usage")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "usage reset", "count": n})
}
