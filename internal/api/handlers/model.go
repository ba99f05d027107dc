package handlers

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/zoumson/OpenFreeAI/internal/domain/catalog"
)

// ModelCatalog is the catalog surface the HTTP API exposes; *catalog.Service
// satisfies it.
type ModelCatalog interface {
	ListModels(ctx context.Context) ([]string, error)
	Grouped(ctx context.Context) (map[string][]catalog.Variant, error)
	BulkAdd(ctx context.Context, batch catalog.Batch) (int, error)
	LoadFile(ctx context.Context, path string) (int, error)
	Clear(ctx context.Context) (int, error)
}

// ModelHandler lists and manages catalog models.
type ModelHandler struct {
	catalog ModelCatalog
	logger  *slog.Logger
}

// NewModelHandler creates a ModelHandler. A nil logger uses slog.Default().
func NewModelHandler(c ModelCatalog, logger *slog.Logger) *ModelHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ModelHandler{catalog: c, logger: logger}
}

// LoadModelsRequest names a server-side file or carries models inline.
type LoadModelsRequest struct {
	Path   string        `json:"path,omitempty"`
	Models catalog.Batch `json:"models,omitempty"`
}

// List handles GET /api/v1/model/list.
func (h *ModelHandler) List(w http.ResponseWriter, r *http.Request) {
	models, err := h.catalog.ListModels(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list models")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": models})
}

// Grouped handles GET /api/v1/model/grouped.
func (h *ModelHandler) Grouped(w http.ResponseWriter, r *http.Request) {
	grouped, err := h.catalog.Grouped(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list models")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": grouped})
}

// Load handles POST /api/v1/model/load (admin).
//
// Response codes:
//   - 200 OK: {message, count} with the number of new models
//   - 400 Bad Request: neither path nor models, bad format or invalid entry
//   - 404 Not Found: path does not exist
func (h *ModelHandler) Load(w http.ResponseWriter, r *http.Request) {
	var req LoadModelsRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var (
		count int
		err   error
	)
	switch {
	case req.Path != "":
		count, err = h.catalog.LoadFile(r.Context(), req.Path)
	case len(req.Models) > 0:
		count, err = h.catalog.BulkAdd(r.Context(), req.Models)
	default:
		writeError(w, http.StatusBadRequest, "path or models is required")
		return
	}

	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist):
		writeError(w, http.StatusNotFound, "catalog file not found")
		return
	case errors.Is(err, catalog.ErrInvalidModel), errors.Is(err, catalog.ErrUnsupportedFormat):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	default:
		h.logger.ErrorContext(r.Context(), "model load failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load models")
		return
	}

	h.logger.InfoContext(r.Context(), "models loaded", "count", count, "path", req.Path)
	writeJSON(w, http.StatusOK, map[string]any{"message": "models loaded", "count": count})
}

// Clear handles POST /api/v1/model/clear (admin).
func (h *ModelHandler) Clear(w http.ResponseWriter, r *http.Request) {
	n, err := h.catalog.Clear(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to clear models")
		return
	}
	h.logger.InfoContext(r.Context(), "models cleared", "count", n)
	writeJSON(w, http.StatusOK, map[string]any{"message": "models cleared", "count": n})
}
